// Package htmlsanitize strips HTML from untrusted text before it is
// persisted or rendered. The plan summary and rule strings come straight
// from a language model, so they are treated like any other user input.
package htmlsanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		// Strict: no markup survives. Narrative plan fields are plain text.
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Strip removes all HTML elements and attributes from s and trims
// surrounding whitespace.
func Strip(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(getPolicy().Sanitize(s))
}

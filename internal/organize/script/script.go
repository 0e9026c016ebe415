// internal/organize/script/script.go

// Package script renders a plan as a shell script the user can run locally
// instead of downloading the rewritten archive.
package script

import (
	"strings"

	"github.com/dalemusser/stratasort/internal/domain/models"
)

// FileName is the suggested download name for the rendered script.
const FileName = "organize.sh"

// Render produces the apply-locally artifact: a shebang, a banner naming
// the original archive, a blank line, then one shell-quoted move command
// per plan item in plan order. Output is byte-stable for identical input.
func Render(originalFileName string, items []models.PlanItem) []byte {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("# stratasort organization script\n")
	b.WriteString("# Generated for: " + originalFileName + "\n")
	b.WriteString("\n")
	for _, item := range items {
		b.WriteString("move " + quote(item.OriginalPath) + " " + quote(item.NewPath) + "\n")
	}
	return []byte(b.String())
}

// quote wraps s in double quotes, escaping the characters the shell treats
// specially inside them.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

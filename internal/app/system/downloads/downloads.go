// internal/app/system/downloads/downloads.go

// Package downloads issues and verifies short-lived signed tokens that
// authorize fetching a session's archives. Archives live in private
// object storage; the token is the only thing a client ever holds.
package downloads

import (
	"crypto/sha256"
	"errors"
	"time"

	"github.com/gorilla/securecookie"
)

// Archive kinds a token can grant access to.
const (
	KindOriginal  = "original"
	KindOrganized = "organized"
)

// ErrInvalidToken is returned for tokens that are malformed, expired, or
// signed with a different secret.
var ErrInvalidToken = errors.New("invalid or expired download token")

const tokenName = "download"

// Claim identifies what a download token grants.
type Claim struct {
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
}

// Signer signs and verifies download tokens.
type Signer struct {
	sc *securecookie.SecureCookie
}

// NewSigner creates a Signer. Tokens expire after ttl.
func NewSigner(secret string, ttl time.Duration) *Signer {
	hashKey := sha256.Sum256([]byte("stratasort-download-hash:" + secret))
	blockKey := sha256.Sum256([]byte("stratasort-download-block:" + secret))

	sc := securecookie.New(hashKey[:], blockKey[:])
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(ttl.Seconds()))
	return &Signer{sc: sc}
}

// Sign produces an opaque URL-safe token for the claim.
func (s *Signer) Sign(c Claim) (string, error) {
	return s.sc.Encode(tokenName, c)
}

// Verify decodes and validates a token.
func (s *Signer) Verify(token string) (Claim, error) {
	var c Claim
	if err := s.sc.Decode(tokenName, token, &c); err != nil {
		return Claim{}, ErrInvalidToken
	}
	if c.SessionID == "" || (c.Kind != KindOriginal && c.Kind != KindOrganized) {
		return Claim{}, ErrInvalidToken
	}
	return c, nil
}

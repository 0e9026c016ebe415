// internal/app/system/keycrypt/keycrypt.go

// Package keycrypt encrypts user-supplied completion API keys before they
// are stored. Keys are sealed with XChaCha20-Poly1305 under a key derived
// from the app's configured secret, so a database dump alone does not
// expose the credentials.
package keycrypt

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidCiphertext is returned when a stored credential cannot be
// opened, typically because the secret changed or the record is corrupt.
var ErrInvalidCiphertext = errors.New("keycrypt: invalid ciphertext")

func derive(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// Encrypt seals plaintext under the given secret. The random nonce is
// prepended to the returned ciphertext.
func Encrypt(secret, plaintext string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(derive(secret))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func Decrypt(secret string, box []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(derive(secret))
	if err != nil {
		return "", err
	}
	if len(box) < aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, sealed := box[:aead.NonceSize()], box[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

// Mask returns the display form of an API key: the first ten and last
// four characters with the middle elided. Keys too short to elide are
// fully starred.
func Mask(key string) string {
	if len(key) <= 14 {
		return strings.Repeat("*", len(key))
	}
	return key[:10] + "..." + key[len(key)-4:]
}

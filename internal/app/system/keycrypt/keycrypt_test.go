package keycrypt_test

import (
	"testing"

	"github.com/dalemusser/stratasort/internal/app/system/keycrypt"
)

func TestEncryptDecrypt(t *testing.T) {
	const secret = "test-secret"
	const key = "sk-or-v1-0123456789abcdef0123456789abcdef"

	box, err := keycrypt.Encrypt(secret, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if string(box) == key {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := keycrypt.Decrypt(secret, box)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != key {
		t.Errorf("Decrypt = %q, want %q", got, key)
	}
}

func TestDecryptWrongSecret(t *testing.T) {
	box, err := keycrypt.Encrypt("secret-a", "sk-or-v1-something")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := keycrypt.Decrypt("secret-b", box); err != keycrypt.ErrInvalidCiphertext {
		t.Errorf("Decrypt with wrong secret = %v, want ErrInvalidCiphertext", err)
	}
}

func TestDecryptTruncated(t *testing.T) {
	if _, err := keycrypt.Decrypt("secret", []byte("short")); err != keycrypt.ErrInvalidCiphertext {
		t.Errorf("Decrypt truncated = %v, want ErrInvalidCiphertext", err)
	}
}

func TestEncryptIsRandomized(t *testing.T) {
	a, _ := keycrypt.Encrypt("secret", "sk-or-v1-same-key")
	b, _ := keycrypt.Encrypt("secret", "sk-or-v1-same-key")
	if string(a) == string(b) {
		t.Error("two encryptions of the same key produced identical ciphertext")
	}
}

func TestMask(t *testing.T) {
	got := keycrypt.Mask("sk-or-v1-0123456789abcdef")
	want := "sk-or-v1-0...cdef"
	if got != want {
		t.Errorf("Mask = %q, want %q", got, want)
	}

	if got := keycrypt.Mask("short"); got != "*****" {
		t.Errorf("Mask(short) = %q, want fully starred", got)
	}
}

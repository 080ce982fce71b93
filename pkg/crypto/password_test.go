package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndCompare(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if string(hash) == "secret1" {
		t.Fatalf("expected hashed output")
	}
	if err := ComparePassword(hash, "secret1"); err != nil {
		t.Fatalf("expected match: %v", err)
	}
	if err := ComparePassword(hash, "secret2"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestComparePasswordCorruptHash(t *testing.T) {
	err := ComparePassword([]byte("not-a-bcrypt-hash"), "secret1")
	if err == nil || errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected corrupt hash error, got %v", err)
	}
}

func TestHashPasswordTooLong(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("a", MaxPasswordBytes)); err != nil {
		t.Fatalf("hash at limit: %v", err)
	}
	if _, err := HashPassword(strings.Repeat("a", MaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

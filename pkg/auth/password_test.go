package auth

import (
	"errors"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword("correct horse battery", hash) {
		t.Fatalf("expected password check to pass")
	}
	if CheckPassword("wrong guess", hash) {
		t.Fatalf("expected password check to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got: %v", err)
	}
	if err := ValidatePassword("long enough secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

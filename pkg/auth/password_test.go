package auth

import (
	"errors"
	"testing"
)

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret99")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !CheckPassword("s3cret99", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("guide2024"); err != nil {
		t.Fatalf("expected valid password, got: %v", err)
	}
	if err := ValidatePassword("sh0rt"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected short password to fail")
	}
	if err := ValidatePassword("lettersonly"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected missing digits to fail")
	}
	if err := ValidatePassword("12345678"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected missing letters to fail")
	}
	if err := ValidatePassword(" padded99"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected leading whitespace to fail")
	}
}

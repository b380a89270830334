package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anotherme-social/identity-service/config"

	"golang.org/x/crypto/bcrypt"
)

// PolicyError carries every password-policy violation at once so the
// caller can surface the full list, not just the first failure.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrWeakPassword.Error(), strings.Join(e.Violations, "; "))
}

func (e *PolicyError) Unwrap() error {
	return ErrWeakPassword
}

// ValidatePassword checks the plaintext against the configured policy.
// It never fails for operational reasons; a non-nil return is always a
// *PolicyError wrapping ErrWeakPassword.
func ValidatePassword(policy config.PasswordPolicy, password string) error {
	if violations := policy.Violations(password); len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}

// HashPassword produces a salted bcrypt digest. The salt is embedded in
// the output; the digest is one-way and never logged.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext against a stored digest. A wrong
// password returns ErrInvalidCredentials; a digest bcrypt cannot parse
// is an internal failure, not a mismatch.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidCredentials
	}
	return fmt.Errorf("malformed password digest: %w", err)
}

package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/anotherme-social/identity-service/app/entity"
	"github.com/anotherme-social/identity-service/app/service"
	"github.com/anotherme-social/identity-service/config"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:         "test-secret",
		JWTAccessTokenTTL: time.Hour,
		ResetTokenTTL:     time.Hour,
		VerifyTokenTTL:    24 * time.Hour,
		FrontendBaseURL:   "http://localhost:8080",
		PasswordPolicy: config.PasswordPolicy{
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireNumber:    true,
			RequireSpecial:   false,
		},
	}
}

func newIssuer(cfg *config.Config) *service.TokenIssuer {
	return service.NewTokenIssuer(cfg, service.NewStaticKeyProvider(cfg.JWTSecret))
}

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	cfg := testConfig()
	issuer := newIssuer(cfg)
	user := &entity.User{ID: "user-1", Email: "alice@example.com"}

	token, expiresIn, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if expiresIn != int64(time.Hour.Seconds()) {
		t.Fatalf("expected expires_in 3600, got %d", expiresIn)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected user id: %q", claims.UserID)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %q", claims.Subject)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("unexpected email: %q", claims.Email)
	}
}

func TestTokenIssuer_RejectsWrongKey(t *testing.T) {
	cfg := testConfig()
	issuer := newIssuer(cfg)
	user := &entity.User{ID: "user-1", Email: "alice@example.com"}

	token, _, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	otherCfg := testConfig()
	otherCfg.JWTSecret = "other-secret"
	other := newIssuer(otherCfg)

	if _, err := other.Verify(token); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong key, got %v", err)
	}
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	cfg := testConfig()
	cfg.JWTAccessTokenTTL = -time.Minute
	issuer := newIssuer(cfg)
	user := &entity.User{ID: "user-1", Email: "alice@example.com"}

	token, _, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	verifier := newIssuer(testConfig())
	if _, err := verifier.Verify(token); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenIssuer_RejectsMalformed(t *testing.T) {
	issuer := newIssuer(testConfig())

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := issuer.Verify(token); !errors.Is(err, service.ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", token, err)
		}
	}
}

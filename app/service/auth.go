package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/anotherme-social/identity-service/app/dto"
	"github.com/anotherme-social/identity-service/app/entity"
	"github.com/anotherme-social/identity-service/app/repository"
	"github.com/anotherme-social/identity-service/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWeakPassword       = errors.New("password does not meet policy requirements")
)

type emailSubmitter interface {
	Submit(job EmailJob) bool
}

type AuthService struct {
	db              *sql.DB
	userRepo        *repository.UserRepository
	resetTokenRepo  *repository.TokenRepository
	verifyTokenRepo *repository.TokenRepository
	issuer          *TokenIssuer
	emails          emailSubmitter
	cfg             *config.Config
}

func NewAuthService(
	db *sql.DB,
	userRepo *repository.UserRepository,
	resetTokenRepo *repository.TokenRepository,
	verifyTokenRepo *repository.TokenRepository,
	issuer *TokenIssuer,
	emails emailSubmitter,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		db:              db,
		userRepo:        userRepo,
		resetTokenRepo:  resetTokenRepo,
		verifyTokenRepo: verifyTokenRepo,
		issuer:          issuer,
		emails:          emails,
		cfg:             cfg,
	}
}

// NormalizeEmail lowercases and trims an address. Uniqueness checks and
// lookups always go through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*dto.RegisterResult, error) {
	email = NormalizeEmail(email)

	if err := ValidatePassword(s.cfg.PasswordPolicy, password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	secret, err := generateTokenSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &entity.User{
		ID:            uuid.New().String(),
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.userRepo.WithTx(tx).Create(ctx, user); err != nil {
		return nil, err
	}

	token := &entity.EphemeralToken{
		UserID:    user.ID,
		Token:     secret,
		ExpiresAt: now.Add(s.cfg.VerifyTokenTTL),
		CreatedAt: now,
	}
	if err := s.verifyTokenRepo.WithTx(tx).Create(ctx, token); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// Delivery is best-effort; the committed token row is the source of
	// truth and resend-verification can always mint a new one.
	s.emails.Submit(verificationEmail(s.cfg.FrontendBaseURL, user.Email, secret))

	return &dto.RegisterResult{User: user}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*dto.LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}

	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		return nil, err
	}

	accessToken, expiresIn, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResult{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	}, nil
}

// Logout acknowledges without invalidating anything server-side: session
// tokens are stateless and stay valid until expiry. The client discards
// its copy.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	logrus.WithField("user_id", userID).Debug("Logout acknowledged")
	return nil
}

// ForgotPassword returns nil whether or not the email is registered. A
// reset token is created and mailed only when the account exists; the
// caller must not be able to tell the difference.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	secret, err := s.issueEphemeralToken(ctx, s.resetTokenRepo, user.ID, s.cfg.ResetTokenTTL)
	if err != nil {
		return err
	}

	s.emails.Submit(passwordResetEmail(s.cfg.FrontendBaseURL, user.Email, secret))
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, secret, newPassword string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tokenRepo := s.resetTokenRepo.WithTx(tx)
	userID, err := redeemToken(ctx, tokenRepo, secret)
	if err != nil {
		return err
	}

	if err := ValidatePassword(s.cfg.PasswordPolicy, newPassword); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.WithTx(tx).UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *AuthService) VerifyEmail(ctx context.Context, secret string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tokenRepo := s.verifyTokenRepo.WithTx(tx)
	userID, err := redeemToken(ctx, tokenRepo, secret)
	if err != nil {
		return err
	}

	if err := s.userRepo.WithTx(tx).MarkEmailVerified(ctx, userID); err != nil {
		return err
	}

	return tx.Commit()
}

// ResendVerification behaves like ForgotPassword: the response is
// uniform whether the email is unknown, already verified, or pending.
// Previously issued tokens stay valid until they individually expire or
// are consumed.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerified {
		return nil
	}

	secret, err := s.issueEphemeralToken(ctx, s.verifyTokenRepo, user.ID, s.cfg.VerifyTokenTTL)
	if err != nil {
		return err
	}

	s.emails.Submit(verificationEmail(s.cfg.FrontendBaseURL, user.Email, secret))
	return nil
}

// Authenticate resolves a bearer token to its user. Signature, expiry
// and subject-resolution failures all collapse into ErrInvalidToken.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*entity.User, error) {
	claims, err := s.issuer.Verify(tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) issueEphemeralToken(ctx context.Context, repo *repository.TokenRepository, userID string, ttl time.Duration) (string, error) {
	secret, err := generateTokenSecret()
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := &entity.EphemeralToken{
		UserID:    userID,
		Token:     secret,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := repo.Create(ctx, token); err != nil {
		return "", err
	}
	return secret, nil
}

// redeemToken consumes a single-use token inside the caller's
// transaction. The row lock taken by FindBySecretForUpdate serializes
// concurrent redemptions: exactly one wins, the rest observe used=true.
// Not-found, expired and already-used all report ErrInvalidToken.
func redeemToken(ctx context.Context, repo *repository.TokenRepository, secret string) (string, error) {
	token, err := repo.FindBySecretForUpdate(ctx, secret)
	if err != nil {
		return "", err
	}
	if token == nil || token.Used || !time.Now().Before(token.ExpiresAt) {
		return "", ErrInvalidToken
	}

	if err := repo.MarkUsed(ctx, token.ID); err != nil {
		return "", err
	}
	return token.UserID, nil
}

// generateTokenSecret returns 256 bits of randomness, URL-safe encoded,
// for use in emailed links.
func generateTokenSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

package service

import (
	"fmt"
	"time"

	"github.com/anotherme-social/identity-service/app/entity"
	"github.com/anotherme-social/identity-service/config"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// KeyProvider supplies the HMAC signing key. The service loads one key
// at startup; rotation would slot in behind this interface.
type KeyProvider interface {
	SigningKey() []byte
}

type StaticKeyProvider struct {
	key []byte
}

func NewStaticKeyProvider(secret string) *StaticKeyProvider {
	return &StaticKeyProvider{key: []byte(secret)}
}

func (p *StaticKeyProvider) SigningKey() []byte {
	return p.key
}

// TokenIssuer creates and validates stateless session tokens. There is
// no revocation list: a token stays valid until its expiry, which is a
// documented trade-off of this service.
type TokenIssuer struct {
	keys KeyProvider
	ttl  time.Duration
}

func NewTokenIssuer(cfg *config.Config, keys KeyProvider) *TokenIssuer {
	return &TokenIssuer{keys: keys, ttl: cfg.JWTAccessTokenTTL}
}

func (t *TokenIssuer) Issue(user *entity.User) (string, int64, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.keys.SigningKey())
	if err != nil {
		return "", 0, err
	}
	return signed, int64(t.ttl.Seconds()), nil
}

// Verify rejects bad signatures, expired tokens and malformed payloads
// alike with ErrInvalidToken so callers cannot tell them apart.
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.keys.SigningKey(), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

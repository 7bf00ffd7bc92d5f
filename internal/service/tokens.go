package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/ecm-core/internal/errs"
)

// TokenService issues and verifies HS256 bearer tokens naming the acting user.
type TokenService interface {
	// Issue signs a token for subject valid for the configured TTL.
	Issue(subject string) (token string, expiresAt time.Time, err error)
	// Verify checks signature and expiry and returns the subject.
	Verify(token string) (subject string, err error)
}

type TokenServiceImpl struct {
	signKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewTokenService constructs TokenService. A nil clock means time.Now.
func NewTokenService(signKey []byte, ttl time.Duration, now func() time.Time) *TokenServiceImpl {
	if now == nil {
		now = time.Now
	}
	return &TokenServiceImpl{signKey: signKey, ttl: ttl, now: now}
}

// Issue creates a signed HS256 JWT for subject.
func (s *TokenServiceImpl) Issue(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errs.Validation("empty subject")
	}
	if len(s.signKey) == 0 {
		return "", time.Time{}, fmt.Errorf("sign key: %w", errs.ErrConfiguration)
	}
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// Verify parses token and returns its subject; any failure is errs.ErrUnauthorized.
func (s *TokenServiceImpl) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.signKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", errs.ErrUnauthorized)
	}
	return claims.Subject, nil
}


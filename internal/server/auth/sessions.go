// Package auth issues and verifies stateless session tokens.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gamevault/internal/server/apperr"
)

// TokenTTL is the fixed lifetime of a session token.
const TokenTTL = 7 * 24 * time.Hour

const (
	msgMissingToken = "missing token"
	msgInvalidToken = "invalid token"
)

// Sessions mints and checks HS256 tokens carrying the account id as subject.
type Sessions struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Sessions)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *Sessions) { s.now = now }
}

func NewSessions(secret []byte, opts ...Option) *Sessions {
	s := &Sessions{secret: secret, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sessions) Issue(accountID string) (string, error) {
	if accountID == "" {
		return "", errors.New("account id required")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the account id embedded in token. All failures other than
// an absent token report the same message.
func (s *Sessions) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperr.Authentication(msgMissingToken)
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", &apperr.Error{Kind: apperr.KindAuthentication, Message: msgInvalidToken, Err: err}
	}
	return claims.Subject, nil
}

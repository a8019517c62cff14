package client

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenSigner issues short-lived service tokens for the remote service
type TokenSigner struct {
	secret  []byte
	subject string
	ttl     time.Duration
	now     func() time.Time
}

// NewTokenSigner creates a signer. A zero ttl defaults to five minutes.
func NewTokenSigner(secret, subject string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenSigner{
		secret:  []byte(secret),
		subject: subject,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Sign returns an HS256 token for one request
func (s *TokenSigner) Sign() (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  s.subject,
		"exp":  now.Add(s.ttl).Unix(),
		"iat":  now.Unix(),
		"type": "service",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses a token signed by a signer with the same secret and returns
// its subject
func (s *TokenSigner) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid service token")
	}
	if tokenType, ok := claims["type"].(string); !ok || tokenType != "service" {
		return "", errors.New("invalid token type")
	}

	subject, _ := claims["sub"].(string)
	return subject, nil
}

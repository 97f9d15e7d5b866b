// Package auth verifies the bearer tokens issued by the identity provider.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the signed-in user as asserted by the identity provider.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
}

type TokenService struct {
	secret []byte
	issuer string
}

func NewTokenService(secret, issuer string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), issuer: issuer}, nil
}

type claims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for id valid for ttl. Used by operator tooling and tests.
func (s *TokenService) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, errors.New("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return Identity{}, errors.New("auth: token has no subject")
	}
	return Identity{UID: c.Subject, Email: c.Email, EmailVerified: c.EmailVerified}, nil
}

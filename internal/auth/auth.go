// Package auth issues and verifies the bearer tokens that identify an owner.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the lifetime of tokens minted by the CLI.
const DefaultTokenTTL = 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingOwner = errors.New("invalid token: 'sub' claim missing or not a UUID")
)

// TokenService signs and verifies HS256 tokens whose subject is the owner id.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), now: time.Now}
}

// IssueToken mints a token for owner valid for ttl.
func (s *TokenService) IssueToken(owner uuid.UUID, ttl time.Duration) (string, error) {
	if owner == uuid.Nil {
		return "", ErrMissingOwner
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   owner.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("IssueToken: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a token and returns the owner it names.
func (s *TokenService) ParseToken(tokenString string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	owner, err := uuid.Parse(claims.Subject)
	if err != nil || owner == uuid.Nil {
		return uuid.Nil, ErrMissingOwner
	}
	return owner, nil
}

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func fixedService(secret string, now time.Time) *TokenService {
	s := NewTokenService(secret)
	s.now = func() time.Time { return now }
	return s
}

func TestTokenService_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := fixedService("secret", now)
	owner := uuid.New()

	token, err := s.IssueToken(owner, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	got, err := s.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if got != owner {
		t.Errorf("ParseToken() = %v, want %v", got, owner)
	}
}

func TestTokenService_Rejects(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := fixedService("secret", now)
	owner := uuid.New()

	valid, _ := s.IssueToken(owner, time.Hour)
	expired, _ := fixedService("secret", now.Add(-2*time.Hour)).IssueToken(owner, time.Hour)
	otherSecret, _ := fixedService("other", now).IssueToken(owner, time.Hour)

	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("secret"))
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: owner.String(),
	}).SignedString([]byte("secret"))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrInvalidToken},
		{"wrong secret", otherSecret, ErrInvalidToken},
		{"garbage", "not.a.token", ErrInvalidToken},
		{"tampered", valid + "x", ErrInvalidToken},
		{"missing expiry", noExpiry, ErrInvalidToken},
		{"subject is not a uuid", badSubject, ErrMissingOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ParseToken(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseToken() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTokenService_IssueRequiresOwner(t *testing.T) {
	if _, err := NewTokenService("secret").IssueToken(uuid.Nil, time.Hour); !errors.Is(err, ErrMissingOwner) {
		t.Errorf("IssueToken() error = %v, want ErrMissingOwner", err)
	}
}

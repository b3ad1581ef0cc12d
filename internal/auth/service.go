package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidSession covers malformed, forged and expired tokens.
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionRevoked is returned for tokens invalidated by logout.
	ErrSessionRevoked = errors.New("session revoked")
)

// Session is an issued session credential.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
}

type claims struct {
	jwt.RegisteredClaims
}

// Service issues and verifies signed session tokens.
type Service struct {
	issuer      string
	secret      []byte
	ttl         time.Duration
	revocations RevocationList
	now         func() time.Time
}

// NewService builds a session service. A nil revocation list falls back to
// an in-memory one.
func NewService(issuer, secret string, ttl time.Duration, revocations RevocationList) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	if revocations == nil {
		revocations = NewMemoryRevocationList()
	}
	return &Service{issuer: issuer, secret: []byte(secret), ttl: ttl, revocations: revocations, now: time.Now}, nil
}

// TTL returns the lifetime of issued sessions.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs a new session for the user.
func (s *Service) Issue(_ context.Context, userID string) (Session, error) {
	if userID == "" {
		return Session{}, fmt.Errorf("user id is required")
	}
	now := s.now()
	exp := now.Add(s.ttl)
	sessionID := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	return Session{ID: sessionID, UserID: userID, Token: signed, ExpiresAt: exp.UTC()}, nil
}

// Verify checks the token signature, expiry and revocation status.
func (s *Service) Verify(ctx context.Context, token string) (Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidSession
	}
	if c.Subject == "" || c.ID == "" || c.ExpiresAt == nil {
		return Identity{}, ErrInvalidSession
	}

	revoked, err := s.revocations.IsRevoked(ctx, c.ID)
	if err != nil {
		return Identity{}, fmt.Errorf("check session revocation: %w", err)
	}
	if revoked {
		return Identity{}, ErrSessionRevoked
	}

	return Identity{UserID: c.Subject, SessionID: c.ID, ExpiresAt: c.ExpiresAt.Time.UTC()}, nil
}

// Revoke invalidates the session until its natural expiry.
func (s *Service) Revoke(ctx context.Context, id Identity) error {
	if id.SessionID == "" {
		return ErrInvalidSession
	}
	ttl := id.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.revocations.Revoke(ctx, id.SessionID, ttl)
}

package users

import (
	"fmt"
	"strings"
	"time"
)

// Status is the moderation state of an account.
type Status int

const (
	StatusActive Status = iota
	StatusBlocked
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusBlocked:
		return "Blocked"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Valid reports whether s is one of the two moderation states.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusBlocked
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrInvalidStatus
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus converts a case-insensitive status name.
func ParseStatus(v string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "active":
		return StatusActive, nil
	case "blocked":
		return StatusBlocked, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
}

// User represents a registered account and its moderation state.
type User struct {
	ID               string
	Name             string
	Email            string
	PasswordHash     []byte
	Status           Status
	RegistrationTime time.Time
	LastLoginTime    *time.Time
}

// Blocked reports whether the account is currently blocked.
func (u User) Blocked() bool {
	return u.Status == StatusBlocked
}

// RegisterInput is the registration request.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// LoginInput is the credential check request. EmailOrUsername is treated as
// an email when it contains '@'.
type LoginInput struct {
	EmailOrUsername string
	Password        string
}

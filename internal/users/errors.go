package users

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when no user exists for the given key.
	ErrNotFound = errors.New("user not found")

	// ErrAlreadyExists is returned when the name or email is taken.
	ErrAlreadyExists = errors.New("user already exists")

	// ErrInvalidStatus rejects anything outside Active/Blocked.
	ErrInvalidStatus = errors.New("invalid user status")

	// ErrInvalidCredentials covers unknown identifiers and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid login attempt")

	// ErrBlocked is returned when a blocked account tries to sign in.
	ErrBlocked = errors.New("user is blocked")
)

// ValidationError carries field-level messages for malformed input.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// DuplicateError names the field that collided with an existing account.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	switch e.Field {
	case "email":
		return "Email '" + e.Value + "' is already taken."
	default:
		return "Username '" + e.Value + "' is already taken."
	}
}

func (e *DuplicateError) Unwrap() error { return ErrAlreadyExists }

// StoreError wraps a failure reported by the backing store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

package model

import (
	"errors"
	"fmt"
)

var (
	// Access errors
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrAuthExchangeFailed = errors.New("auth exchange failed")
	ErrRateLimited        = errors.New("rate limited")

	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Role related errors
	ErrRoleNotFound = errors.New("role not found")

	// One-time code errors
	ErrCodeNotFound = errors.New("code not found")

	// Newsletter errors
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrInvalidSignature   = errors.New("invalid signature")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

// ConfigurationError reports missing or invalid infrastructure settings.
// It is the only error allowed to abort startup.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func NewConfigurationError(key string, reason string, err error) *ConfigurationError {
	return &ConfigurationError{Key: key, Reason: reason, Err: err}
}

package service

import (
	"regexp"
	"strings"

	"anything-world/pkg/apierror"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 6
	maxPasswordLen = 128
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return apierror.BadRequest("invalid email", email)
	}
	return nil
}

func validateUsername(username string) error {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen || !usernamePattern.MatchString(username) {
		return apierror.BadRequest("username must be 3-32 characters of letters, digits, '_', '.' or '-'", username)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return apierror.BadRequest("password must be 6-128 characters", "")
	}
	return nil
}

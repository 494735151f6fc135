package model

import "time"

// Identity is the authenticated caller resolved for a single request.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type SessionClaims struct {
	UserID    string
	Email     string
	Name      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// CodePurpose is the flow a one-time code was issued for. The callback
// endpoint receives it as the "type" query parameter.
type CodePurpose string

const (
	CodePurposeSignup    CodePurpose = "signup"
	CodePurposeMagicLink CodePurpose = "magiclink"
	CodePurposeRecovery  CodePurpose = "recovery"
)

func (p CodePurpose) Valid() bool {
	switch p {
	case CodePurposeSignup, CodePurposeMagicLink, CodePurposeRecovery:
		return true
	}
	return false
}

type OneTimeCode struct {
	UserID     string
	Purpose    CodePurpose
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

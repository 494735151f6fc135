package model

import "time"

type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Username         *string    `json:"username,omitempty"`
	Name             *string    `json:"name,omitempty"`
	PasswordHash     *string    `json:"-"`
	NewsletterOptIn  bool       `json:"newsletter_opt_in"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DisplayName prefers the full name, then the username.
func (u User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	if u.Username != nil {
		return *u.Username
	}
	return ""
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Name: u.DisplayName()}
}

type AuthUser struct {
	ID       string   `json:"id"`
	Email    string   `json:"email,omitempty"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles"`
}

type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

const (
	RoleViewer    = "viewer"
	RoleCreator   = "creator"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// DefaultRoles are seeded on startup.
var DefaultRoles = []string{RoleViewer, RoleCreator, RoleModerator, RoleAdmin}

type Onboarding struct {
	UserID       string    `json:"user_id"`
	UsageChoices []string  `json:"usage_choices"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OnboardingChoices lists the accepted usage choices.
var OnboardingChoices = []string{"watching", "live", "creating", "learning"}

package model

type SignUpRequest struct {
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Newsletter bool   `json:"newsletter"`
}

type SignInRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type EmailRequest struct {
	Email    string `json:"email"`
	Redirect string `json:"redirect,omitempty"`
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

type OnboardingRequest struct {
	Choices []string `json:"choices"`
}

type SubscribeRequest struct {
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Source    string   `json:"source"`
	Tags      []string `json:"tags"`
}

type RoleAssignmentRequest struct {
	User      string `json:"user"`
	Role      string `json:"role"`
	Exclusive bool   `json:"exclusive"`
}

type WatchProgressRequest struct {
	MediaID string `json:"mediaId"`
	Seconds int    `json:"seconds"`
}

package model

type AuditActor struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	IP     string `json:"ip,omitempty"`
}

type AuditEntry struct {
	Action     string     `json:"action"`
	OccurredAt string     `json:"occurred_at"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Resource   string     `json:"resource,omitempty"`
	Before     any        `json:"before,omitempty"`
	After      any        `json:"after,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type AuditQuery struct {
	Action  string
	ActorID string
	Status  string
	Page    int
	Limit   int
}

const (
	AuditActionRoleGrant    = "role.grant"
	AuditActionRoleRevoke   = "role.revoke"
	AuditActionSignIn       = "auth.signin"
	AuditActionCodeExchange = "auth.code_exchange"
	AuditActionSignup       = "auth.signup"
	AuditActionPasswordSet  = "auth.password_reset"
)

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}

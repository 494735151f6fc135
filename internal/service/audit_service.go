package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"anything-world/internal/model"
	"anything-world/pkg/apierror"
)

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Log records an entry. Audit failures are logged and never fail the
// operation being audited.
func (s *AuditService) Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, before any, after any, errText string) {
	if s == nil || s.store == nil {
		return
	}

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Actor:      actor,
		Status:     status,
		Resource:   resource,
		Before:     before,
		After:      after,
		Error:      errText,
	}

	if err := s.store.Log(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("audit log failed", "action", action, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}

	query.Action = strings.ToLower(strings.TrimSpace(query.Action))
	query.Status = strings.ToLower(strings.TrimSpace(query.Status))
	query.ActorID = strings.TrimSpace(query.ActorID)

	if query.Status != "" && query.Status != "success" && query.Status != "failure" {
		return nil, model.Meta{}, apierror.BadRequest("status must be success or failure", query.Status)
	}

	return s.store.Query(ctx, query)
}

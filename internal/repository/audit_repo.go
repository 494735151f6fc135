package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"anything-world/internal/model"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Log stores an entry. Before and after snapshots are kept as JSONB.
func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	before, err := encodeSnapshot(entry.Before)
	if err != nil {
		return fmt.Errorf("encode audit before: %w", err)
	}
	after, err := encodeSnapshot(entry.After)
	if err != nil {
		return fmt.Errorf("encode audit after: %w", err)
	}

	occurredAt, err := time.Parse(time.RFC3339Nano, entry.OccurredAt)
	if err != nil {
		occurredAt = time.Now().UTC()
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_entries
		 (action, occurred_at, actor_user_id, actor_email, actor_ip,
		  status, resource, before_data, after_data, error_text)
		 VALUES (@action, @occurred_at, @actor_user_id, @actor_email, @actor_ip,
		  @status, @resource, @before_data, @after_data, @error_text)`,
		pgx.NamedArgs{
			"action":        entry.Action,
			"occurred_at":   occurredAt,
			"actor_user_id": entry.Actor.UserID,
			"actor_email":   entry.Actor.Email,
			"actor_ip":      entry.Actor.IP,
			"status":        entry.Status,
			"resource":      entry.Resource,
			"before_data":   before,
			"after_data":    after,
			"error_text":    entry.Error,
		})
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Query pages through entries newest first. The service layer has already
// normalized paging and filters.
func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	var conds []string
	args := pgx.NamedArgs{
		"limit":  query.Limit,
		"offset": (query.Page - 1) * query.Limit,
	}

	if query.Action != "" {
		conds = append(conds, "lower(action) = @action")
		args["action"] = strings.ToLower(query.Action)
	}
	if query.ActorID != "" {
		conds = append(conds, "actor_user_id = @actor_id")
		args["actor_id"] = query.ActorID
	}
	if query.Status != "" {
		conds = append(conds, "status = @status")
		args["status"] = query.Status
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := r.pool.Query(ctx,
		`SELECT action, occurred_at, actor_user_id, actor_email, actor_ip,
		        status, resource, before_data, after_data, error_text,
		        count(*) OVER () AS total
		 FROM audit_entries `+where+`
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT @limit OFFSET @offset`, args)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	total := 0
	entries := []model.AuditEntry{}
	for rows.Next() {
		var (
			e             model.AuditEntry
			occurredAt    time.Time
			before, after []byte
		)
		if err := rows.Scan(&e.Action, &occurredAt, &e.Actor.UserID, &e.Actor.Email, &e.Actor.IP,
			&e.Status, &e.Resource, &before, &after, &e.Error, &total); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan audit entry: %w", err)
		}

		e.OccurredAt = occurredAt.UTC().Format(time.RFC3339Nano)
		e.Before = decodeSnapshot(before)
		e.After = decodeSnapshot(after)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Meta{}, fmt.Errorf("read audit entries: %w", err)
	}

	// A page past the end has no rows to carry the window count.
	if len(entries) == 0 && query.Page > 1 {
		if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM audit_entries `+where, args).Scan(&total); err != nil {
			return nil, model.Meta{}, fmt.Errorf("count audit entries: %w", err)
		}
	}

	meta := model.Meta{Page: query.Page, Limit: query.Limit, Total: total}
	if query.Limit > 0 {
		meta.TotalPages = (total + query.Limit - 1) / query.Limit
	}
	return entries, meta, nil
}

func encodeSnapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeSnapshot(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"anything-world/pkg/apierror"
)

type Pinger interface {
	Health(ctx context.Context) error
}

type HealthInfo struct {
	Environment string
	Region      string
	Commit      string
}

type HealthHandler struct {
	db      Pinger
	info    HealthInfo
	started time.Time
	now     func() time.Time
}

func NewHealthHandler(db Pinger, info HealthInfo) *HealthHandler {
	return &HealthHandler{db: db, info: info, started: time.Now(), now: time.Now}
}

type healthStatus struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	GoVersion     string `json:"goVersion"`
	Environment   string `json:"environment"`
	Region        string `json:"region,omitempty"`
	Commit        string `json:"commit,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	w.Header().Set("Cache-Control", "no-store")
	writeSuccess(w, http.StatusOK, healthStatus{
		Status:        "ok",
		Timestamp:     now.UTC().Format(time.RFC3339),
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
		GoVersion:     runtime.Version(),
		Environment:   h.info.Environment,
		Region:        h.info.Region,
		Commit:        h.info.Commit,
	}, nil)
}

func (h *HealthHandler) Database(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	w.Header().Set("Cache-Control", "no-store")

	start := h.now()
	if err := h.db.Health(ctx); err != nil {
		slog.Error("database ping failed", "error", err)
		writeError(w, apierror.New("DATABASE_UNAVAILABLE", "Database is unreachable", "", http.StatusServiceUnavailable))
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"ok":        true,
		"latencyMs": h.now().Sub(start).Milliseconds(),
	}, nil)
}

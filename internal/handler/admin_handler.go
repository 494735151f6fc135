package handler

import (
	"context"
	"net/http"
	"strings"

	"anything-world/internal/database"
	"anything-world/internal/model"
	"anything-world/internal/service"
	"anything-world/pkg/apierror"
)

type UserCounter interface {
	Count(ctx context.Context) (int, error)
}

type DatabaseInspector interface {
	Info(ctx context.Context) (database.Info, error)
}

type AdminHandler struct {
	roles *service.RoleService
	users UserCounter
	db    DatabaseInspector
}

func NewAdminHandler(roles *service.RoleService, users UserCounter, db DatabaseInspector) *AdminHandler {
	return &AdminHandler{roles: roles, users: users, db: db}
}

type adminStats struct {
	Database database.Info `json:"database"`
	Tables   struct {
		Users int `json:"users"`
		Roles int `json:"roles"`
	} `json:"tables"`
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var stats adminStats

	info, err := h.db.Info(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	stats.Database = info

	if stats.Tables.Users, err = h.users.Count(ctx); err != nil {
		writeError(w, err)
		return
	}

	if stats.Tables.Roles, err = h.roles.Count(ctx); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, stats, nil)
}

func (h *AdminHandler) GrantRole(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeRoleAssignment(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	change, err := h.roles.Grant(r.Context(), actorFromRequest(r), payload.User, payload.Role, payload.Exclusive)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, change, nil)
}

func (h *AdminHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeRoleAssignment(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	change, err := h.roles.Revoke(r.Context(), actorFromRequest(r), payload.User, payload.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, change, nil)
}

func decodeRoleAssignment(w http.ResponseWriter, r *http.Request) (model.RoleAssignmentRequest, error) {
	var payload model.RoleAssignmentRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		return payload, err
	}

	payload.User = strings.TrimSpace(payload.User)
	if payload.User == "" {
		return payload, apierror.BadRequest("user is required", "user")
	}

	return payload, nil
}

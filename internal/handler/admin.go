package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/faucetdb/rolekeeper/internal/catalog"
	"github.com/faucetdb/rolekeeper/internal/config"
	"github.com/faucetdb/rolekeeper/internal/model"
	"github.com/faucetdb/rolekeeper/internal/server/middleware"
	"github.com/faucetdb/rolekeeper/internal/service"
)

const (
	defaultListLimit    = 100
	maxListLimit        = 1000
	defaultHistoryLimit = 50
)

// AdminHandler serves the administrator listing, detail, edit and history
// endpoints together with the role options used by edit forms.
type AdminHandler struct {
	store  *config.Store
	edits  *service.EditService
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store *config.Store, edits *service.EditService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{store: store, edits: edits, logger: logger}
}

// ListAdmins returns administrator records ordered by id.
// GET /api/v1/admins?limit=&offset=&role=
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	filter := config.AdminFilter{
		Limit:  clampInt(queryInt(r, "limit", defaultListLimit), 1, maxListLimit),
		Offset: queryInt(r, "offset", 0),
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if raw := queryString(r, "role"); raw != "" {
		role, err := model.ParseRole(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), map[string]interface{}{"field": "role"})
			return
		}
		filter.Role = role
	}

	admins, err := h.store.ListAdmins(r.Context(), filter)
	if err != nil {
		h.logger.Error("list admins", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list admins")
		return
	}
	total, err := h.store.CountAdmins(r.Context(), filter.Role)
	if err != nil {
		h.logger.Error("count admins", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list admins")
		return
	}

	resources := make([]map[string]interface{}, 0, len(admins))
	for i := range admins {
		resources = append(resources, adminToMap(&admins[i]))
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count:  len(resources),
			Total:  &total,
			Limit:  filter.Limit,
			Offset: filter.Offset,
		},
	})
}

// GetAdmin returns one administrator record.
// GET /api/v1/admins/{adminId}
func (h *AdminHandler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "adminId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid admin ID")
		return
	}

	admin, err := h.store.GetAdmin(r.Context(), id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Admin not found")
			return
		}
		h.logger.Error("get admin", "admin_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get admin")
		return
	}

	writeJSON(w, http.StatusOK, adminToMap(admin))
}

// updateAdminRequest is the edit payload. Absent fields are left unchanged.
// The version may be sent as client_version or clientVersion.
type updateAdminRequest struct {
	Name             *string   `json:"name"`
	Email            *string   `json:"email"`
	Role             *string   `json:"role"`
	Permissions      *[]string `json:"permissions"`
	ClientVersion    *int64    `json:"client_version"`
	ClientVersionAlt *int64    `json:"clientVersion"`
}

func (b updateAdminRequest) version() *int64 {
	if b.ClientVersion != nil {
		return b.ClientVersion
	}
	return b.ClientVersionAlt
}

// UpdateAdmin applies an edit under optimistic concurrency and returns the
// record at its new version.
// PUT /api/v1/admins/{adminId}
func (h *AdminHandler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "adminId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid admin ID")
		return
	}
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body updateAdminRequest
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	updated, err := h.edits.UpdateAdmin(r.Context(), service.EditRequest{
		ActorID:       principal.AdminID,
		TargetID:      id,
		ClientVersion: body.version(),
		Name:          body.Name,
		Email:         body.Email,
		Role:          body.Role,
		Permissions:   body.Permissions,
		Method:        r.Method,
		Path:          r.URL.Path,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, adminToMap(updated))
}

// AdminHistory returns the audit trail of one administrator, newest first.
// GET /api/v1/admins/{adminId}/history?limit=
func (h *AdminHandler) AdminHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "adminId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid admin ID")
		return
	}

	if _, err := h.store.GetAdmin(r.Context(), id); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Admin not found")
			return
		}
		h.logger.Error("get admin", "admin_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	limit := clampInt(queryInt(r, "limit", defaultHistoryLimit), 1, maxListLimit)
	entries, err := h.store.ListAuditEntries(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("list audit entries", "admin_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	resources := make([]map[string]interface{}, 0, len(entries))
	for i := range entries {
		resources = append(resources, auditEntryToMap(&entries[i]))
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta:     &model.ResponseMeta{Count: len(resources), Limit: limit},
	})
}

// RoleOptions lists the assignable roles with their default permission
// sets and the full permission catalog.
// GET /api/v1/role-options
func (h *AdminHandler) RoleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.RoleOptions())
}

func adminToMap(admin *model.Admin) map[string]interface{} {
	perms := admin.Permissions
	if perms == nil {
		perms = model.PermissionSet{}
	}
	m := map[string]interface{}{
		"id":             admin.ID,
		"email":          admin.Email,
		"name":           admin.Name,
		"role":           string(admin.Role),
		"role_label":     admin.Role.Label(),
		"permissions":    []string(perms),
		"access_level":   admin.AccessLevel,
		"version":        admin.Version,
		"is_active":      admin.IsActive,
		"is_super_admin": admin.IsSuperAdmin(),
		"created_at":     admin.CreatedAt,
		"updated_at":     admin.UpdatedAt,
	}
	if admin.LastLoginAt != nil {
		m["last_login_at"] = admin.LastLoginAt
	}
	return m
}

func auditEntryToMap(e *model.AuditEntry) map[string]interface{} {
	return map[string]interface{}{
		"id":         e.ID,
		"target_id":  e.TargetID,
		"actor_id":   e.ActorID,
		"action":     e.Action,
		"details":    e.Details,
		"created_at": e.CreatedAt,
	}
}

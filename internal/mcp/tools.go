package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/rolekeeper/internal/catalog"
	"github.com/faucetdb/rolekeeper/internal/config"
	"github.com/faucetdb/rolekeeper/internal/errutil"
	"github.com/faucetdb/rolekeeper/internal/model"
	"github.com/faucetdb/rolekeeper/internal/mvcc"
	"github.com/faucetdb/rolekeeper/internal/service"
)

const (
	defaultListLimit    = 100
	defaultHistoryLimit = 50
	maxListLimit        = 1000
)

// registerTools registers all admin tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Read tools -----

	srv.AddTool(
		mcp.NewTool("list_admins",
			mcp.WithDescription(
				"List admin accounts ordered by ID. Each record carries its role, "+
					"permissions, derived access level and current version. Use the "+
					"version as client_version when calling update_admin.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("role",
				mcp.Description("Only return admins holding this role"),
				mcp.Enum(string(model.RoleRegularAdmin), string(model.RoleSuperAdmin)),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of admins to return (default 100, max 1000)"),
			),
			mcp.WithNumber("offset",
				mcp.Description("Number of admins to skip for pagination"),
			),
		),
		s.handleListAdmins,
	)

	srv.AddTool(
		mcp.NewTool("get_admin",
			mcp.WithDescription("Get one admin account by ID, including its current version."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Admin ID"),
			),
		),
		s.handleGetAdmin,
	)

	srv.AddTool(
		mcp.NewTool("admin_history",
			mcp.WithDescription("List the audit trail for one admin account, newest first."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Admin ID"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of entries to return (default 50, max 1000)"),
			),
		),
		s.handleAdminHistory,
	)

	srv.AddTool(
		mcp.NewTool("role_options",
			mcp.WithDescription(
				"List the assignable roles with their default permissions and access "+
					"levels, and the full permission catalog.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleRoleOptions,
	)

	// ----- Mutation tools -----

	srv.AddTool(
		mcp.NewTool("update_admin",
			mcp.WithDescription(
				"Edit an admin's name, email, role or permissions. client_version must "+
					"equal the version last read; on a conflict the current record is "+
					"returned and the edit should be reapplied to it. SuperAdmin roles and "+
					"permissions cannot be changed, and you cannot change your own role. "+
					"Unknown permission tokens are dropped. Requires SuperAdmin.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Admin ID to edit"),
			),
			mcp.WithNumber("client_version",
				mcp.Required(),
				mcp.Description("Version of the record the edit is based on"),
			),
			mcp.WithString("name",
				mcp.Description("New display name"),
			),
			mcp.WithString("email",
				mcp.Description("New email address"),
			),
			mcp.WithString("role",
				mcp.Description("New role"),
				mcp.Enum(string(model.RoleRegularAdmin), string(model.RoleSuperAdmin)),
			),
			mcp.WithArray("permissions",
				mcp.Description("Complete replacement permission set"),
				mcp.WithStringItems(),
			),
		),
		s.handleUpdateAdmin,
	)
}

// adminView adds the display fields the HTTP API also returns.
type adminView struct {
	*model.Admin
	RoleLabel    string `json:"role_label"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

func viewOf(a *model.Admin) adminView {
	return adminView{Admin: a, RoleLabel: a.Role.Label(), IsSuperAdmin: a.IsSuperAdmin()}
}

// actor loads the configured admin and checks it may act. Tool calls are
// re-checked every time so a disabled or demoted account loses access
// without a restart.
func (s *MCPServer) actor(ctx context.Context, needSuper bool) (*model.Admin, error) {
	a, err := s.store.GetAdmin(ctx, s.actorID)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, fmt.Errorf("acting admin %d does not exist", s.actorID)
		}
		return nil, fmt.Errorf("load acting admin: %w", err)
	}
	if !a.IsActive {
		return nil, fmt.Errorf("acting admin %d is disabled", s.actorID)
	}
	if needSuper && !a.IsSuperAdmin() {
		return nil, fmt.Errorf("acting admin %d is not a SuperAdmin", s.actorID)
	}
	return a, nil
}

// handleListAdmins returns a page of admins plus the overall count.
func (s *MCPServer) handleListAdmins(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	if _, err := s.actor(ctx, false); err != nil {
		return toolError("%v", err)
	}

	filter := config.AdminFilter{
		Limit:  clamp(optionalInt(request, "limit", defaultListLimit), 1, maxListLimit),
		Offset: optionalInt(request, "offset", 0),
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if raw := optionalString(request, "role"); raw != "" {
		role, err := model.ParseRole(raw)
		if err != nil {
			return toolError("%v", err)
		}
		filter.Role = role
	}

	admins, err := s.store.ListAdmins(ctx, filter)
	if err != nil {
		s.logger.Error("mcp list admins failed", "error", err)
		return toolError("Failed to list admins")
	}
	total, err := s.store.CountAdmins(ctx, filter.Role)
	if err != nil {
		s.logger.Error("mcp count admins failed", "error", err)
		return toolError("Failed to list admins")
	}

	views := make([]adminView, len(admins))
	for i := range admins {
		views[i] = viewOf(&admins[i])
	}
	return successJSON(map[string]interface{}{
		"admins": views,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// handleGetAdmin returns one admin.
func (s *MCPServer) handleGetAdmin(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	if _, err := s.actor(ctx, false); err != nil {
		return toolError("%v", err)
	}
	id, err := requireInt64(request, "id")
	if err != nil {
		return toolError("%v", err)
	}

	admin, err := s.store.GetAdmin(ctx, id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return toolError("Admin %d not found", id)
		}
		s.logger.Error("mcp get admin failed", "id", id, "error", err)
		return toolError("Failed to load admin %d", id)
	}
	return successJSON(viewOf(admin))
}

// handleAdminHistory returns the audit entries for one admin.
func (s *MCPServer) handleAdminHistory(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	if _, err := s.actor(ctx, false); err != nil {
		return toolError("%v", err)
	}
	id, err := requireInt64(request, "id")
	if err != nil {
		return toolError("%v", err)
	}
	if _, err := s.store.GetAdmin(ctx, id); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return toolError("Admin %d not found", id)
		}
		return toolError("Failed to load admin %d", id)
	}

	limit := clamp(optionalInt(request, "limit", defaultHistoryLimit), 1, maxListLimit)
	entries, err := s.store.ListAuditEntries(ctx, id, limit)
	if err != nil {
		s.logger.Error("mcp admin history failed", "id", id, "error", err)
		return toolError("Failed to load history for admin %d", id)
	}
	return successJSON(entries)
}

// handleRoleOptions returns the role-options document.
func (s *MCPServer) handleRoleOptions(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	if _, err := s.actor(ctx, false); err != nil {
		return toolError("%v", err)
	}
	return successJSON(catalog.RoleOptions())
}

// handleUpdateAdmin runs one edit through the Edit Service.
func (s *MCPServer) handleUpdateAdmin(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	actor, err := s.actor(ctx, true)
	if err != nil {
		return toolError("%v", err)
	}
	id, err := requireInt64(request, "id")
	if err != nil {
		return toolError("%v", err)
	}
	version, err := requireInt64(request, "client_version")
	if err != nil {
		return toolError("%v", err)
	}

	req := service.EditRequest{
		ActorID:       actor.ID,
		TargetID:      id,
		ClientVersion: &version,
	}
	if req.Name, err = stringArg(request, "name"); err != nil {
		return toolError("%v", err)
	}
	if req.Email, err = stringArg(request, "email"); err != nil {
		return toolError("%v", err)
	}
	if req.Role, err = stringArg(request, "role"); err != nil {
		return toolError("%v", err)
	}
	if req.Permissions, err = stringSliceArg(request, "permissions"); err != nil {
		return toolError("%v", err)
	}

	updated, err := s.edits.UpdateAdmin(ctx, req)
	if err != nil {
		return editError(err)
	}
	return successJSON(viewOf(updated))
}

// editError turns a coded Edit Service error into a tool error whose body
// names the code, so the caller can branch on it.
func editError(err error) (*mcp.CallToolResult, error) {
	code := errutil.Code(err)
	body := map[string]interface{}{"code": code, "message": err.Error()}

	switch code {
	case service.CodeValidation:
		if field, ok := errutil.ContextValue(err, service.KeyField); ok {
			body["field"] = field
		}
	case service.CodeForbidden:
		if reason, ok := errutil.ContextValue(err, service.KeyReason); ok {
			body["reason"] = reason
		}
	case service.CodeVersionConflict:
		body["message"] = "The record was modified by someone else. Reapply the edit to the current record."
		var conflict *mvcc.ConflictError
		if errors.As(err, &conflict) {
			body["current"] = viewOf(conflict.Current)
			body["client_version"] = conflict.ClientVersion
		}
	case service.CodeTooManyRequests:
		if v, ok := errutil.ContextValue(err, service.KeyRetryAfterSeconds); ok {
			body["retry_after_seconds"] = v
		}
	case service.CodeNotFound, service.CodeEmailConflict:
	default:
		body["code"] = service.CodeInternal
		body["message"] = "Internal error"
	}
	return toolErrorJSON(body)
}

package handler

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/faucetdb/rolekeeper/internal/catalog"
	"github.com/faucetdb/rolekeeper/internal/model"
)

type listBody struct {
	Resource []adminBody `json:"resource"`
	Meta     struct {
		Count  int   `json:"count"`
		Total  int64 `json:"total"`
		Limit  int   `json:"limit"`
		Offset int   `json:"offset"`
	} `json:"meta"`
}

// ---------------------------------------------------------------------------
// List / Get
// ---------------------------------------------------------------------------

func TestListAdmins(t *testing.T) {
	env := newTestEnv(t)
	root := env.seedAdmin(t, "root@example.com", model.RoleSuperAdmin)
	a := env.seedAdmin(t, "a@example.com", model.RoleRegularAdmin)
	env.seedAdmin(t, "b@example.com", model.RoleRegularAdmin)

	rr := env.doAs(t, root, "GET", "/api/v1/admins", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp listBody
	decodeJSON(t, rr, &resp)
	if resp.Meta.Count != 3 || resp.Meta.Total != 3 {
		t.Errorf("meta = %+v, want count 3 total 3", resp.Meta)
	}
	if resp.Meta.Limit != 100 {
		t.Errorf("default limit = %d, want 100", resp.Meta.Limit)
	}
	if resp.Resource[0].ID != root.ID || resp.Resource[1].ID != a.ID {
		t.Errorf("records not ordered by id: %+v", resp.Resource)
	}
	if resp.Resource[0].AccessLevel != 100 {
		t.Errorf("super admin access_level = %d, want 100", resp.Resource[0].AccessLevel)
	}
	if strings.Contains(rr.Body.String(), "password") {
		t.Error("response leaks password hash")
	}
}

func TestListAdmins_Filters(t *testing.T) {
	env := newTestEnv(t)
	root := env.seedAdmin(t, "root@example.com", model.RoleSuperAdmin)
	env.seedAdmin(t, "a@example.com", model.RoleRegularAdmin)
	b := env.seedAdmin(t, "b@example.com", model.RoleRegularAdmin)

	tests := []struct {
		name      string
		query     string
		wantCount int
		wantTotal int64
		wantLimit int
		firstID   int64
	}{
		{"role filter", "?role=super_admin", 1, 1, 100, root.ID},
		{"role alias", "?role=RegularAdmin", 2, 2, 100, root.ID + 1},
		{"paging", "?limit=1&offset=2", 1, 3, 1, b.ID},
		{"limit clamped high", "?limit=5000", 3, 3, 1000, root.ID},
		{"limit clamped low", "?limit=0", 1, 3, 1, root.ID},
		{"negative offset", "?offset=-4", 3, 3, 100, root.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.doAs(t, root, "GET", "/api/v1/admins"+tt.query, nil)
			assertStatus(t, rr, http.StatusOK)

			var resp listBody
			decodeJSON(t, rr, &resp)
			if resp.Meta.Count != tt.wantCount || resp.Meta.Total != tt.wantTotal || resp.Meta.Limit != tt.wantLimit {
				t.Errorf("meta = %+v", resp.Meta)
			}
			if len(resp.Resource) > 0 && resp.Resource[0].ID != tt.firstID {
				t.Errorf("first id = %d, want %d", resp.Resource[0].ID, tt.firstID)
			}
		})
	}
}

func TestListAdmins_InvalidRole(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/v1/admins?role=owner", nil)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestGetAdmin(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedAdmin(t, "a@example.com", model.RoleRegularAdmin)

	rr := env.do(t, "GET", fmt.Sprintf("/api/v1/admins/%d", a.ID), nil)
	assertStatus(t, rr, http.StatusOK)

	var got adminBody
	decodeJSON(t, rr, &got)
	if got.Email != "a@example.com" || got.Version != 0 || got.Role != "regular_admin" {
		t.Errorf("unexpected admin %+v", got)
	}
	if got.RoleLabel != "Regular Admin" {
		t.Errorf("role_label = %q", got.RoleLabel)
	}
	want := catalog.ComputeAccessLevel(model.RoleRegularAdmin, catalog.DefaultPermissionsFor(model.RoleRegularAdmin))
	if got.AccessLevel != want {
		t.Errorf("access_level = %d, want %d", got.AccessLevel, want)
	}
}

func TestGetAdmin_Errors(t *testing.T) {
	env := newTestEnv(t)
	assertStatus(t, env.do(t, "GET", "/api/v1/admins/999", nil), http.StatusNotFound)
	assertStatus(t, env.do(t, "GET", "/api/v1/admins/abc", nil), http.StatusBadRequest)
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func TestUpdateAdmin_Success(t *testing.T) {
	env := newTestEnv(t)
	root := env.seedAdmin(t, "root@example.com", model.RoleSuperAdmin)
	a := env.seedAdmin(t, "a@example.com", model.RoleRegularAdmin)

	body := toJSON(t, map[string]interface{}{
		"name":           "Alice",
		"permissions":    []string{"reports.view", "not.a.permission", "donors.manage"},
		"client_version": 0,
	})
	rr := env.doAs(t, root, "PUT", fmt.Sprintf("/api/v1/admins/%d", a.ID), body)
	assertStatus(t, rr, http.StatusOK)

	var got adminBody
	decodeJSON(t, rr, &got)
	if got.Version != 1 || got.Name != "Alice" {
		t.Errorf("unexpected admin %+v", got)
	}
	if len(got.Permissions) != 2 {
		t.Errorf("permissions = %v, want 2 valid tokens", got.Permissions)
	}
	if got.AccessLevel != catalog.ComputeAccessLevel(model.RoleRegularAdmin, got.Permissions) {
		t.Errorf("access_level = %d not derived from permissions", got.AccessLevel)
	}
}

func TestUpdateAdmin_CamelCaseVersion(t *testing.T) {
	env := newTestEnv(t)
	root := env.seedAdmin(t, "root@example.com", model.RoleSuperAdmin)
	a := env.seedAdmin(t, "a@example.com", model.RoleRegularAdmin)

	body := toJSON(t, map[string]interface{}{"name": "Alice", "clientVersion": 0})
	rr := env.doAs(t, root, "PUT", fmt.Sprintf("/api/v1/admins/%d", a.ID), body)
	assertStatus(t, rr, http.StatusOK)
}

func TestUpdateAdmin_VersionConflict(t *testing.T) {
	env := newTestEnv(t)
	root := env.seedAdmin(t, "root@example.com", model.RoleSuperAdmin)
	other := env.seedAdmin(t, "other@example.com", model.RoleSuperAdmin)
	a := env.seedAdmin(t, "a@example.com", model.RoleRegularAdmin)
	path := fmt.Sprintf("/api/v1/admins/%d", a.ID)

	rr := env.doAs(t, root, "PUT", path, toJSON(t, map[string]interface{}{"name": "First", "client_version": 0}))
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAs(t, other, "PUT", path, toJSON(t, map[string]interface{}{
		"permissions": []string{"reports.view"}, "client_version": 0,
	}))
	assertStatus(t, rr, http.StatusConflict)

	var resp errorBody
	decodeJSON(t, rr, &resp)
	if resp.Error.Context.Conflict != "version" {
		t.Errorf("conflict = %q, want version", resp.Error.Context.Conflict)
	}
	cur := resp.Error.Context.Current
	if cur == nil || cur.Version != 1 || cur.Name != "First" {
		t.Errorf("current = %+v, want version 1 named First", cur)
	}
	if resp.Error.Context.ClientVersion == nil || *resp.Error.Context.ClientVersion != 0 {
		t.Errorf("client_version = %v", resp.Error.Context.ClientVersion)
	}
}

func TestUpdateAdmin_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	root := env.seedAdmin(t, "root@example.com", model.RoleSuperAdmin)
	other := env.seedAdmin(t, "other@example.com", model.RoleSuperAdmin)

	tests := []struct {
		name   string
		target *model.Admin
		body   map[string]interface{}
		reason string
	}{
		{"super admin permissions", other, map[string]interface{}{"permissions": []string{}, "client_version": 0}, "super_admin_immutable"},
		{"super admin role", other, map[string]interface{}{"role": "regular_admin", "client_version": 0}, "super_admin_immutable"},
		{"own role", root, map[string]interface{}{"role": "regular_admin", "client_version": 7}, "self_role_edit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.advance(5 * time.Second)
			rr := env.doAs(t, root, "PUT", fmt.Sprintf("/api/v1/admins/%d", tt.target.ID), toJSON(t, tt.body))
			assertStatus(t, rr, http.StatusForbidden)

			var resp errorBody
			decodeJSON(t, rr, &resp)
			if resp.Error.Context.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", resp.Error.Context.Reason, tt.reason)
			}
		})
	}

	// A name change on a super admin is allowed and keeps access level 100.
	env.advance(5 * time.Second)
	rr := env.doAs(t, root, "PUT", fmt.Sprintf("/api/v1/admins/%d", other.ID),
		toJSON(t, map[string]interface{}{"name": "New Name", "client_version": 0}))
	assertStatus(t, rr, http.StatusOK)
	var got adminBody
	decodeJSON(t, rr, &got)
	if got.AccessLevel != 100 || got.Version != 1 {
		t.Errorf("unexpected admin %+v", got)
	}
}

func TestUpdateAdmin_DuplicateSubmit(t *testing.T) {
	env := newTestEnv(t)
	root := env.seedAdmin(t, "root@example.com", model.RoleSuperAdmin)
	a := env.seedAdmin(t, "a@example.com", model.RoleRegularAdmin)
	path := fmt.Sprintf("/api/v1/admins/%d", a.ID)

	rr := env.doAs(t, root, "PUT", path, toJSON(t, map[string]interface{}{"name": "Once", "client_version": 0}))
	assertStatus(t, rr, http.StatusOK)

	env.advance(200 * time.Millisecond)
	rr = env.doAs(t, root, "PUT", path, toJSON(t, map[string]interface{}{"name": "Once", "client_version": 0}))
	assertStatus(t, rr, http.StatusTooManyRequests)
	if got := rr.Header().Get("Retry-After"); got != "3" {
		t.Errorf("Retry-After = %q, want 3", got)
	}
	var resp errorBody
	decodeJSON(t, rr, &resp)
	if resp.Error.Context.RetryAfterSeconds != 3 {
		t.Errorf("retry_after_seconds = %d, want 3", resp.Error.Context.RetryAfterSeconds)
	}
}

func TestUpdateAdmin_BadRequests(t *testing.T) {
	env := newTestEnv(t)
	root := env.seedAdmin(t, "root@example.com", model.RoleSuperAdmin)
	a := env.seedAdmin(t, "a@example.com", model.RoleRegularAdmin)
	path := fmt.Sprintf("/api/v1/admins/%d", a.ID)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing version", `{"name":"x"}`, "client_version"},
		{"negative version", `{"name":"x","client_version":-1}`, "client_version"},
		{"no fields", `{"client_version":0}`, "body"},
		{"bad email", `{"email":"nope","client_version":0}`, "email"},
		{"bad role", `{"role":"owner","client_version":0}`, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.advance(5 * time.Second)
			rr := env.doAs(t, root, "PUT", path, strings.NewReader(tt.body))
			assertStatus(t, rr, http.StatusBadRequest)

			var resp errorBody
			decodeJSON(t, rr, &resp)
			if resp.Error.Context.Field != tt.field {
				t.Errorf("field = %q, want %q", resp.Error.Context.Field, tt.field)
			}
		})
	}

	assertStatus(t, env.doAs(t, root, "PUT", path, strings.NewReader("{not json")), http.StatusBadRequest)
	assertStatus(t, env.doAs(t, root, "PUT", "/api/v1/admins/zero", strings.NewReader(`{}`)), http.StatusBadRequest)
}

func TestUpdateAdmin_NotFound(t *testing.T) {
	env := newTestEnv(t)
	root := env.seedAdmin(t, "root@example.com", model.RoleSuperAdmin)
	rr := env.doAs(t, root, "PUT", "/api/v1/admins/999", toJSON(t, map[string]interface{}{"name": "x", "client_version": 0}))
	assertStatus(t, rr, http.StatusNotFound)
}

func TestUpdateAdmin_EmailConflict(t *testing.T) {
	env := newTestEnv(t)
	root := env.seedAdmin(t, "root@example.com", model.RoleSuperAdmin)
	a := env.seedAdmin(t, "a@example.com", model.RoleRegularAdmin)

	rr := env.doAs(t, root, "PUT", fmt.Sprintf("/api/v1/admins/%d", a.ID),
		toJSON(t, map[string]interface{}{"email": "ROOT@example.com", "client_version": 0}))
	assertStatus(t, rr, http.StatusConflict)

	var resp errorBody
	decodeJSON(t, rr, &resp)
	if resp.Error.Context.Conflict != "email" {
		t.Errorf("conflict = %q, want email", resp.Error.Context.Conflict)
	}
}

func TestUpdateAdmin_RequiresPrincipal(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedAdmin(t, "a@example.com", model.RoleRegularAdmin)
	rr := env.do(t, "PUT", fmt.Sprintf("/api/v1/admins/%d", a.ID), toJSON(t, map[string]interface{}{"name": "x", "client_version": 0}))
	assertStatus(t, rr, http.StatusUnauthorized)
}

// ---------------------------------------------------------------------------
// History / role options
// ---------------------------------------------------------------------------

func TestAdminHistory(t *testing.T) {
	env := newTestEnv(t)
	root := env.seedAdmin(t, "root@example.com", model.RoleSuperAdmin)
	a := env.seedAdmin(t, "a@example.com", model.RoleRegularAdmin)
	path := fmt.Sprintf("/api/v1/admins/%d", a.ID)

	assertStatus(t, env.doAs(t, root, "PUT", path, toJSON(t, map[string]interface{}{"name": "One", "client_version": 0})), http.StatusOK)
	env.advance(5 * time.Second)
	assertStatus(t, env.doAs(t, root, "PUT", path, toJSON(t, map[string]interface{}{"role": "super_admin", "client_version": 1})), http.StatusOK)

	rr := env.do(t, "GET", path+"/history", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Resource []struct {
			ActorID int64  `json:"actor_id"`
			Action  string `json:"action"`
			Details string `json:"details"`
		} `json:"resource"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Resource) != 2 {
		t.Fatalf("entries = %d, want 2", len(resp.Resource))
	}
	if resp.Resource[0].Action != model.ActionRoleChange || resp.Resource[1].Action != model.ActionProfileUpdate {
		t.Errorf("actions = %q, %q", resp.Resource[0].Action, resp.Resource[1].Action)
	}
	if resp.Resource[0].ActorID != root.ID {
		t.Errorf("actor_id = %d, want %d", resp.Resource[0].ActorID, root.ID)
	}

	rr = env.do(t, "GET", path+"/history?limit=1", nil)
	decodeJSON(t, rr, &resp)
	if len(resp.Resource) != 1 {
		t.Errorf("limited entries = %d, want 1", len(resp.Resource))
	}

	assertStatus(t, env.do(t, "GET", "/api/v1/admins/999/history", nil), http.StatusNotFound)
}

func TestRoleOptions(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/v1/role-options", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Roles []struct {
			Value              string   `json:"value"`
			Label              string   `json:"label"`
			DefaultPermissions []string `json:"default_permissions"`
			AccessLevel        int      `json:"access_level"`
		} `json:"roles"`
		Permissions []struct {
			Key string `json:"key"`
		} `json:"permissions"`
	}
	decodeJSON(t, rr, &resp)

	if len(resp.Roles) != 2 {
		t.Fatalf("roles = %d, want 2", len(resp.Roles))
	}
	for _, r := range resp.Roles {
		if r.Value == "super_admin" && (r.AccessLevel != 100 || len(r.DefaultPermissions) != catalog.MaxPermissionCount()) {
			t.Errorf("super admin option = %+v", r)
		}
	}
	if len(resp.Permissions) != catalog.MaxPermissionCount() {
		t.Errorf("permissions = %d, want %d", len(resp.Permissions), catalog.MaxPermissionCount())
	}
}

package catalog

import "github.com/faucetdb/rolekeeper/internal/model"

// RoleOption describes one assignable role for edit forms.
type RoleOption struct {
	Value              model.Role `json:"value"`
	Label              string     `json:"label"`
	DefaultPermissions []string   `json:"default_permissions"`
	AccessLevel        int        `json:"access_level"`
}

// Options is the role-options document: every role with its defaults, and
// the permission catalog in order.
type Options struct {
	Roles       []RoleOption `json:"roles"`
	Permissions []Definition `json:"permissions"`
}

// RoleOptions builds the role-options document.
func RoleOptions() Options {
	roles := make([]RoleOption, 0, len(model.Roles()))
	for _, role := range model.Roles() {
		defaults := DefaultPermissionsFor(role)
		roles = append(roles, RoleOption{
			Value:              role,
			Label:              role.Label(),
			DefaultPermissions: defaults,
			AccessLevel:        ComputeAccessLevel(role, defaults),
		})
	}
	return Options{Roles: roles, Permissions: Definitions()}
}

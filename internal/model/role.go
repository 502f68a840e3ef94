package model

import "fmt"

// Role is the closed set of administrator roles. The zero value is not a
// valid role; use ParseRole to convert untrusted input.
type Role string

const (
	RoleRegularAdmin Role = "regular_admin"
	RoleSuperAdmin   Role = "super_admin"
)

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleRegularAdmin, RoleSuperAdmin}
}

// Valid reports whether r is a member of the role set.
func (r Role) Valid() bool {
	switch r {
	case RoleRegularAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Label returns the human-readable role name.
func (r Role) Label() string {
	switch r {
	case RoleRegularAdmin:
		return "Regular Admin"
	case RoleSuperAdmin:
		return "Super Admin"
	}
	return string(r)
}

// ParseRole accepts the wire form ("regular_admin") as well as the display
// forms used by older clients ("RegularAdmin", "SuperAdmin").
func ParseRole(s string) (Role, error) {
	switch s {
	case "regular_admin", "RegularAdmin", "regular":
		return RoleRegularAdmin, nil
	case "super_admin", "SuperAdmin", "super":
		return RoleSuperAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

package service

import (
	"fmt"
	"strings"

	"github.com/faucetdb/rolekeeper/internal/model"
)

// auditAction picks the tag for an edit: a role change outranks a
// permission change, which outranks a profile change.
func auditAction(before, after *model.Admin) string {
	if before.Role != after.Role {
		return model.ActionRoleChange
	}
	added, removed := diffPermissions(before.Permissions, after.Permissions)
	if len(added) > 0 || len(removed) > 0 {
		return model.ActionPermissionsUpdate
	}
	return model.ActionProfileUpdate
}

// describeChanges summarizes the field-level differences between two
// versions of a record.
func describeChanges(before, after *model.Admin) string {
	var parts []string
	if before.Name != after.Name {
		parts = append(parts, fmt.Sprintf("name: %q -> %q", before.Name, after.Name))
	}
	if before.Email != after.Email {
		parts = append(parts, fmt.Sprintf("email: %s -> %s", before.Email, after.Email))
	}
	if before.Role != after.Role {
		parts = append(parts, fmt.Sprintf("role: %s -> %s", before.Role, after.Role))
	}
	added, removed := diffPermissions(before.Permissions, after.Permissions)
	if len(added) > 0 || len(removed) > 0 {
		var p []string
		for _, t := range added {
			p = append(p, "+"+t)
		}
		for _, t := range removed {
			p = append(p, "-"+t)
		}
		parts = append(parts, "permissions: "+strings.Join(p, " "))
	}
	if before.AccessLevel != after.AccessLevel {
		parts = append(parts, fmt.Sprintf("access_level: %d -> %d", before.AccessLevel, after.AccessLevel))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("no field changes (version %d -> %d)", before.Version, after.Version)
	}
	return strings.Join(parts, "; ")
}

func diffPermissions(before, after []string) (added, removed []string) {
	had := make(map[string]bool, len(before))
	for _, t := range before {
		had[t] = true
	}
	has := make(map[string]bool, len(after))
	for _, t := range after {
		has[t] = true
		if !had[t] {
			added = append(added, t)
		}
	}
	for _, t := range before {
		if !has[t] {
			removed = append(removed, t)
		}
	}
	return added, removed
}

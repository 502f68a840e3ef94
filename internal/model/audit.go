package model

import "time"

// Audit action tags recorded for admin edits.
const (
	ActionRoleChange        = "admin.role_change"
	ActionPermissionsUpdate = "admin.permissions_update"
	ActionProfileUpdate     = "admin.profile_update"
)

// AuditEntry is an immutable record of one successful admin edit.
type AuditEntry struct {
	ID        int64     `json:"id" db:"id"`
	TargetID  int64     `json:"target_id" db:"target_id"`
	ActorID   int64     `json:"actor_id" db:"actor_id"`
	Action    string    `json:"action" db:"action"`
	Details   string    `json:"details" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Admin is an administrator record. AccessLevel is derived from Role and
// Permissions and is never written by callers directly. Version is the
// optimistic-lock token: it starts at 0 and grows by exactly one per
// successful write.
type Admin struct {
	ID           int64         `json:"id" db:"id"`
	Email        string        `json:"email" db:"email"`
	PasswordHash string        `json:"-" db:"password_hash"` // bcrypt hash, never expose
	Name         string        `json:"name" db:"name"`
	Role         Role          `json:"role" db:"role"`
	Permissions  PermissionSet `json:"permissions" db:"permissions"`
	AccessLevel  int           `json:"access_level" db:"access_level"`
	Version      int64         `json:"version" db:"version"`
	IsActive     bool          `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time    `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// IsSuperAdmin reports whether the record holds the SuperAdmin role.
func (a *Admin) IsSuperAdmin() bool {
	return a.Role == RoleSuperAdmin
}

// Clone returns a deep copy so edits can be staged without touching the
// loaded record.
func (a *Admin) Clone() *Admin {
	c := *a
	if a.Permissions != nil {
		c.Permissions = append(PermissionSet(nil), a.Permissions...)
	}
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

// PermissionSet is an ordered list of permission tokens, stored as a JSON
// array in a single text column.
type PermissionSet []string

// Has reports whether token is in the set.
func (p PermissionSet) Has(token string) bool {
	for _, t := range p {
		if t == token {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (p PermissionSet) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *PermissionSet) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = PermissionSet{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan permissions: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*p = PermissionSet{}
		return nil
	}
	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return fmt.Errorf("scan permissions: %w", err)
	}
	if tokens == nil {
		tokens = []string{}
	}
	*p = tokens
	return nil
}

package config

import "errors"

// ErrNotFound is returned when a requested resource does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned by a conditional write when the stored
// version no longer equals the expected version.
var ErrVersionConflict = errors.New("version conflict")

// ErrEmailTaken is returned when a write would give two admins the same email.
var ErrEmailTaken = errors.New("email already in use")

package service

import (
	"github.com/samber/oops"

	"github.com/faucetdb/rolekeeper/internal/mvcc"
)

// Error codes carried by every error the Edit Service returns. Callers
// switch on them with errutil.Code.
const (
	CodeValidation      = "VALIDATION"
	CodeNotFound        = "ADMIN_NOT_FOUND"
	CodeForbidden       = "FORBIDDEN"
	CodeVersionConflict = "VERSION_CONFLICT"
	CodeEmailConflict   = "EMAIL_CONFLICT"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeInternal        = "INTERNAL"
)

// Context keys attached to coded errors.
const (
	KeyRetryAfterSeconds = "retry_after_seconds"
	KeyReason            = "reason"
	KeyField             = "field"
)

// Forbidden reasons.
const (
	ReasonSelfRoleEdit        = "self_role_edit"
	ReasonSuperAdminImmutable = "super_admin_immutable"
)

func validationError(field, format string, args ...any) error {
	return oops.In("admin_edit").Code(CodeValidation).With(KeyField, field).Errorf(format, args...)
}

func forbiddenError(reason, format string, args ...any) error {
	return oops.In("admin_edit").Code(CodeForbidden).With(KeyReason, reason).Errorf(format, args...)
}

// conflictError wraps the mvcc conflict so errors.As can recover the
// current record.
func conflictError(c *mvcc.ConflictError) error {
	return oops.In("admin_edit").
		Code(CodeVersionConflict).
		With("current_version", c.Current.Version, "client_version", c.ClientVersion).
		Wrap(c)
}

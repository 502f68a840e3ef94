package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/samber/oops"

	"github.com/faucetdb/rolekeeper/internal/audit"
	"github.com/faucetdb/rolekeeper/internal/catalog"
	"github.com/faucetdb/rolekeeper/internal/config"
	"github.com/faucetdb/rolekeeper/internal/dedup"
	"github.com/faucetdb/rolekeeper/internal/errutil"
	"github.com/faucetdb/rolekeeper/internal/model"
	"github.com/faucetdb/rolekeeper/internal/mvcc"
)

// AdminStore is the subset of the admin store the Edit Service needs.
type AdminStore interface {
	GetAdmin(ctx context.Context, id int64) (*model.Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	UpdateAdminIfVersion(ctx context.Context, admin *model.Admin, expectedVersion int64) error
}

// EditRequest is a single edit of one admin record. Nil fields are left
// unchanged; a non-nil field counts as a requested change even when its
// value equals the stored one.
type EditRequest struct {
	ActorID       int64
	TargetID      int64
	ClientVersion *int64

	Name        *string
	Email       *string
	Role        *string
	Permissions *[]string

	// Method and Path identify the request for duplicate suppression.
	// They default to PUT /admins/{id}.
	Method string
	Path   string
}

func (r EditRequest) hasChanges() bool {
	return r.Name != nil || r.Email != nil || r.Role != nil || r.Permissions != nil
}

// EditService applies role, permission and profile edits to admin records
// under optimistic concurrency.
type EditService struct {
	store  AdminStore
	dedup  dedup.Suppressor
	audit  audit.Sink
	clock  clockwork.Clock
	logger *slog.Logger
}

// EditOption configures an EditService.
type EditOption func(*EditService)

// WithClock sets the clock used for UpdatedAt and audit timestamps.
func WithClock(c clockwork.Clock) EditOption {
	return func(s *EditService) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EditOption {
	return func(s *EditService) { s.logger = l }
}

// NewEditService wires the Edit Service. suppressor and sink may be nil to
// disable duplicate suppression or auditing.
func NewEditService(store AdminStore, suppressor dedup.Suppressor, sink audit.Sink, opts ...EditOption) *EditService {
	s := &EditService{
		store:  store,
		dedup:  suppressor,
		audit:  sink,
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateAdmin runs one edit to completion and returns the stored record at
// its new version. Errors carry one of the Code* values.
func (s *EditService) UpdateAdmin(ctx context.Context, req EditRequest) (*model.Admin, error) {
	updated, err := s.updateAdmin(ctx, req)
	recordOutcome(errutil.Code(err))
	if err != nil {
		switch errutil.Code(err) {
		case CodeInternal:
			errutil.LogError(s.logger, "admin edit failed", err)
		default:
			s.logger.Info("admin edit rejected",
				"actor_id", req.ActorID, "target_id", req.TargetID, "code", errutil.Code(err), "error", err.Error())
		}
		return nil, err
	}
	return updated, nil
}

func (s *EditService) updateAdmin(ctx context.Context, req EditRequest) (*model.Admin, error) {
	internal := oops.In("admin_edit").Code(CodeInternal).With("actor_id", req.ActorID, "target_id", req.TargetID)

	// Request shape.
	if req.TargetID <= 0 {
		return nil, validationError("target_id", "target id is required")
	}
	if req.ClientVersion == nil {
		return nil, validationError("client_version", "client_version is required")
	}
	if *req.ClientVersion < 0 {
		return nil, validationError("client_version", "client_version must not be negative")
	}
	if !req.hasChanges() {
		return nil, validationError("body", "no fields to update")
	}

	// Nobody edits their own role.
	if req.ActorID == req.TargetID && req.Role != nil {
		return nil, forbiddenError(ReasonSelfRoleEdit, "administrators cannot change their own role")
	}

	if err := s.checkDuplicate(ctx, req); err != nil {
		return nil, err
	}

	current, err := s.store.GetAdmin(ctx, req.TargetID)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, oops.In("admin_edit").Code(CodeNotFound).With("target_id", req.TargetID).
				Errorf("admin %d not found", req.TargetID)
		}
		return nil, internal.Wrapf(err, "load admin")
	}

	// Policy rejections do not depend on the version the client holds.
	if current.IsSuperAdmin() && (req.Role != nil || req.Permissions != nil) {
		return nil, forbiddenError(ReasonSuperAdminImmutable, "role and permissions of a super admin cannot be changed")
	}

	if err := mvcc.CheckVersion(current, *req.ClientVersion); err != nil {
		var conflict *mvcc.ConflictError
		if errors.As(err, &conflict) {
			return nil, conflictError(conflict)
		}
		return nil, internal.Wrap(err)
	}

	next, err := s.apply(ctx, current, req)
	if err != nil {
		return nil, err
	}

	catalog.Normalize(next)
	next.Version = mvcc.NextVersion(current.Version)
	next.UpdatedAt = s.clock.Now().UTC()

	if err := s.store.UpdateAdminIfVersion(ctx, next, current.Version); err != nil {
		switch {
		case errors.Is(err, config.ErrVersionConflict):
			// Lost the race after our version check passed.
			latest, gerr := s.store.GetAdmin(ctx, req.TargetID)
			if gerr != nil {
				return nil, internal.Wrapf(gerr, "reload admin after conflict")
			}
			return nil, conflictError(&mvcc.ConflictError{Current: latest, ClientVersion: *req.ClientVersion})
		case errors.Is(err, config.ErrEmailTaken):
			return nil, emailConflict(next.Email)
		case errors.Is(err, config.ErrNotFound):
			return nil, oops.In("admin_edit").Code(CodeNotFound).With("target_id", req.TargetID).
				Errorf("admin %d not found", req.TargetID)
		default:
			return nil, internal.Wrapf(err, "persist admin")
		}
	}

	s.appendAudit(ctx, req.ActorID, current, next)
	return next, nil
}

func (s *EditService) checkDuplicate(ctx context.Context, req EditRequest) error {
	if s.dedup == nil {
		return nil
	}
	method := req.Method
	if method == "" {
		method = http.MethodPut
	}
	path := req.Path
	if path == "" {
		path = fmt.Sprintf("/admins/%d", req.TargetID)
	}

	decision, err := s.dedup.CheckAndRegister(ctx, dedup.Request{
		ActorID: strconv.FormatInt(req.ActorID, 10),
		Method:  method,
		Path:    path,
		Target:  strconv.FormatInt(req.TargetID, 10),
	})
	if err != nil {
		s.logger.Warn("duplicate check failed, admitting request", "error", err)
	}
	if decision.Admitted {
		return nil
	}
	return oops.In("admin_edit").
		Code(CodeTooManyRequests).
		With(KeyRetryAfterSeconds, decision.RetryAfterSeconds).
		Errorf("duplicate request, retry after %d seconds", decision.RetryAfterSeconds)
}

// apply stages the requested field changes on a copy of current.
func (s *EditService) apply(ctx context.Context, current *model.Admin, req EditRequest) (*model.Admin, error) {
	next := current.Clone()

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, validationError("name", "name must not be empty")
		}
		next.Name = name
	}

	if req.Email != nil {
		email, err := NormalizeEmail(*req.Email)
		if err != nil {
			return nil, validationError("email", "%s", err.Error())
		}
		if email != current.Email {
			other, err := s.store.GetAdminByEmail(ctx, email)
			switch {
			case err == nil && other.ID != current.ID:
				return nil, emailConflict(email)
			case err != nil && !errors.Is(err, config.ErrNotFound):
				return nil, oops.In("admin_edit").Code(CodeInternal).Wrapf(err, "check email uniqueness")
			}
		}
		next.Email = email
	}

	if req.Role != nil {
		role, err := model.ParseRole(*req.Role)
		if err != nil {
			return nil, validationError("role", "%s", err.Error())
		}
		next.Role = role
	}

	if req.Permissions != nil {
		if dropped := catalog.Invalid(*req.Permissions); len(dropped) > 0 {
			s.logger.Debug("dropping unknown permissions", "target_id", current.ID, "tokens", dropped)
		}
		next.Permissions = catalog.Filter(*req.Permissions)
	}

	return next, nil
}

func (s *EditService) appendAudit(ctx context.Context, actorID int64, before, after *model.Admin) {
	if s.audit == nil {
		return
	}
	entry := &model.AuditEntry{
		TargetID:  after.ID,
		ActorID:   actorID,
		Action:    auditAction(before, after),
		Details:   describeChanges(before, after),
		CreatedAt: after.UpdatedAt,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		auditFailuresTotal.Inc()
		errutil.LogError(s.logger, "audit append failed",
			oops.In("audit").Code(CodeInternal).With("target_id", after.ID, "version", after.Version).Wrap(err))
	}
}

func emailConflict(email string) error {
	return oops.In("admin_edit").Code(CodeEmailConflict).With("email", email).
		Errorf("email %s is already used by another administrator", email)
}

// NormalizeEmail trims and lowercases an address and checks its syntax.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", errors.New("email must not be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("invalid email address %q", raw)
	}
	return email, nil
}

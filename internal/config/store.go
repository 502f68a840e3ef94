package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/faucetdb/rolekeeper/internal/catalog"
	"github.com/faucetdb/rolekeeper/internal/model"
)

// Dialect selects the SQL flavor used for DDL and error classification.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Store is the admin record store. It persists administrator records, the
// audit trail of edits to them, and a small key-value settings table.
// Every write to an admin record goes through a conditional UPDATE keyed on
// the record version, so no locks are held between read and write.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

// NewStore opens the SQLite store in dataDir. Pass empty string for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "rolekeeper.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open admin database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, dialect: DialectSQLite}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate admin database: %w", err)
	}
	return s, nil
}

// NewPostgresStore opens the store on a PostgreSQL database through the
// pgx stdlib driver.
func NewPostgresStore(dsn string) (*Store, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open admin database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, dialect: DialectPostgres}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate admin database: %w", err)
	}
	return s, nil
}

// Open picks the backend from a storage config.
func Open(cfg StorageConfig) (*Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return NewStore(cfg.DataDir)
	case "postgres", "pgx":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage.dsn is required for the postgres driver")
		}
		return NewPostgresStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Dialect returns the SQL flavor of the backing database.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// ---------------------------------------------------------------------------
// Admin records
// ---------------------------------------------------------------------------

const adminColumns = `id, email, password_hash, name, role, permissions, access_level,
	version, is_active, last_login_at, created_at, updated_at`

// AdminFilter narrows ListAdmins. Zero values mean no filter; Limit <= 0
// means no limit.
type AdminFilter struct {
	Role   model.Role
	Limit  int
	Offset int
}

// CreateAdmin inserts a new admin record at version 0. Permissions are
// filtered through the catalog and AccessLevel is derived before insert.
// The ID, CreatedAt, and UpdatedAt fields are populated after a successful
// insert.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	if !admin.Role.Valid() {
		return fmt.Errorf("insert admin: invalid role %q", admin.Role)
	}
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now
	admin.Version = 0
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	catalog.Normalize(admin)

	const q = `INSERT INTO admins
		(email, password_hash, name, role, permissions, access_level, version, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	err := s.db.QueryRowxContext(ctx, s.db.Rebind(q),
		admin.Email, admin.PasswordHash, admin.Name, string(admin.Role), admin.Permissions,
		admin.AccessLevel, admin.Version, admin.IsActive, admin.CreatedAt, admin.UpdatedAt,
	).Scan(&admin.ID)
	if err != nil {
		if s.isUniqueViolation(err, "email") {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// GetAdmin returns an admin by ID.
func (s *Store) GetAdmin(ctx context.Context, id int64) (*model.Admin, error) {
	var admin model.Admin
	q := s.db.Rebind("SELECT " + adminColumns + " FROM admins WHERE id = ?")
	if err := s.db.GetContext(ctx, &admin, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	catalog.Normalize(&admin)
	return &admin, nil
}

// GetAdminByEmail returns an admin by email address. Emails are stored
// lowercased, so the lookup is case-insensitive for normalized input.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	q := s.db.Rebind("SELECT " + adminColumns + " FROM admins WHERE email = ?")
	if err := s.db.GetContext(ctx, &admin, q, strings.ToLower(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	catalog.Normalize(&admin)
	return &admin, nil
}

// ListAdmins returns admin records ordered by ID.
func (s *Store) ListAdmins(ctx context.Context, f AdminFilter) ([]model.Admin, error) {
	var (
		sb   strings.Builder
		args []interface{}
	)
	sb.WriteString("SELECT " + adminColumns + " FROM admins")
	if f.Role != "" {
		sb.WriteString(" WHERE role = ?")
		args = append(args, string(f.Role))
	}
	sb.WriteString(" ORDER BY id")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, f.Limit, f.Offset)
	}

	admins := []model.Admin{}
	if err := s.db.SelectContext(ctx, &admins, s.db.Rebind(sb.String()), args...); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	for i := range admins {
		catalog.Normalize(&admins[i])
	}
	return admins, nil
}

// CountAdmins returns the number of admins, optionally restricted to a role.
func (s *Store) CountAdmins(ctx context.Context, role model.Role) (int64, error) {
	q := "SELECT COUNT(*) FROM admins"
	var args []interface{}
	if role != "" {
		q += " WHERE role = ?"
		args = append(args, string(role))
	}
	var count int64
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(q), args...); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

// HasAnyAdmin reports whether at least one admin account exists. This is used
// for first-run detection.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	n, err := s.CountAdmins(ctx, "")
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateAdminIfVersion writes admin only if the stored version still equals
// expectedVersion. The caller must already have set admin.Version to
// expectedVersion+1 and recomputed AccessLevel. It returns ErrVersionConflict
// when another write got there first, ErrNotFound when the record is gone,
// and ErrEmailTaken on an email collision. A failed call leaves the stored
// row untouched.
func (s *Store) UpdateAdminIfVersion(ctx context.Context, admin *model.Admin, expectedVersion int64) error {
	if admin.Version != expectedVersion+1 {
		return fmt.Errorf("update admin %d: version must advance from %d to %d, got %d",
			admin.ID, expectedVersion, expectedVersion+1, admin.Version)
	}

	const q = `UPDATE admins
		SET name = ?, email = ?, role = ?, permissions = ?, access_level = ?,
			version = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND version = ?`

	result, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		admin.Name, admin.Email, string(admin.Role), admin.Permissions, admin.AccessLevel,
		admin.Version, admin.IsActive, admin.UpdatedAt,
		admin.ID, expectedVersion,
	)
	if err != nil {
		if s.isUniqueViolation(err, "email") {
			return ErrEmailTaken
		}
		return fmt.Errorf("update admin: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Nothing matched: either the row is gone or its version moved on.
	var current int64
	err = s.db.GetContext(ctx, &current, s.db.Rebind("SELECT version FROM admins WHERE id = ?"), admin.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update admin version lookup: %w", err)
	}
	return ErrVersionConflict
}

// UpdateAdminLastLogin sets the last_login_at timestamp for an admin. Login
// bookkeeping is not an edit of the record, so the version is unchanged.
func (s *Store) UpdateAdminLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE admins SET last_login_at = ? WHERE id = ?"), now, id)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin last login rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Audit trail
// ---------------------------------------------------------------------------

// AppendAuditEntry inserts an audit entry. ID and, when unset, CreatedAt are
// populated. Entries are never updated or deleted.
func (s *Store) AppendAuditEntry(ctx context.Context, e *model.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO audit_entries (target_id, actor_id, action, details, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(q),
		e.TargetID, e.ActorID, e.Action, e.Details, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns the audit entries for a target admin, most recent
// first. limit <= 0 returns all of them.
func (s *Store) ListAuditEntries(ctx context.Context, targetID int64, limit int) ([]model.AuditEntry, error) {
	q := `SELECT id, target_id, actor_id, action, details, created_at
		FROM audit_entries WHERE target_id = ?
		ORDER BY created_at DESC, id DESC`
	args := []interface{}{targetID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	entries := []model.AuditEntry{}
	if err := s.db.SelectContext(ctx, &entries, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns the value stored under key.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.db.GetContext(ctx, &value, s.db.Rebind("SELECT value FROM settings WHERE key = ?"), key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	const q = `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), key, value); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// isUniqueViolation reports whether err is a unique-constraint failure on a
// column whose name contains column.
func (s *Store) isUniqueViolation(err error, column string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, column)
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

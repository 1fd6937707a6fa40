// Package sqlite provides a SQLite-backed identity store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/teamdesk/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/teamdesk/internal/services/identity"
	"github.com/louisbranch/teamdesk/internal/services/identity/lockout"
	"github.com/louisbranch/teamdesk/internal/services/identity/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists identity records in SQLite. It doubles as the attempt
// counter store: every counter write runs on the bare handle so it commits
// independently of any transaction the caller holds.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite identity store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutUser upserts one identity record.
func (s *Store) PutUser(ctx context.Context, user identity.User, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	userID := strings.TrimSpace(user.ID)
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if email == "" {
		return fmt.Errorf("user email is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, email, display_name, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  email = excluded.email,
  display_name = excluded.display_name,
  updated_at = excluded.updated_at`,
		userID,
		email,
		strings.TrimSpace(user.DisplayName),
		toMillis(at),
		toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// LookupByID resolves one user by id.
func (s *Store) LookupByID(ctx context.Context, userID string) (identity.User, error) {
	if err := s.ready(ctx); err != nil {
		return identity.User{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, email, display_name
FROM users
WHERE id = ?`, strings.TrimSpace(userID))
	return scanUser(row)
}

// LookupByEmail resolves one user by email.
func (s *Store) LookupByEmail(ctx context.Context, email string) (identity.User, error) {
	if err := s.ready(ctx); err != nil {
		return identity.User{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, email, display_name
FROM users
WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func scanUser(row *sql.Row) (identity.User, error) {
	var user identity.User
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.User{}, identity.ErrUserNotFound
		}
		return identity.User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// IncrementFailure bumps the failure counter in its own unit of work. The
// upsert locks the row when the counter reaches maxAttempts.
func (s *Store) IncrementFailure(ctx context.Context, userID string, at time.Time, maxAttempts int, lockedUntil time.Time) (lockout.Attempt, error) {
	if err := s.ready(ctx); err != nil {
		return lockout.Attempt{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return lockout.Attempt{}, fmt.Errorf("user id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO login_attempts (user_id, failure_count, last_failed_at, locked_until)
VALUES (?, 1, ?, CASE WHEN 1 >= ? THEN ? ELSE NULL END)
ON CONFLICT(user_id) DO UPDATE SET
  failure_count = failure_count + 1,
  last_failed_at = excluded.last_failed_at,
  locked_until = CASE WHEN failure_count + 1 >= ? THEN ? ELSE locked_until END`,
		userID,
		toMillis(at),
		maxAttempts,
		toMillis(lockedUntil),
		maxAttempts,
		toMillis(lockedUntil),
	)
	if err != nil {
		return lockout.Attempt{}, fmt.Errorf("increment login failure: %w", err)
	}
	return s.GetAttempt(ctx, userID)
}

// ClearFailures removes the failure counter after a successful sign-in.
func (s *Store) ClearFailures(ctx context.Context, userID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM login_attempts WHERE user_id = ?`, strings.TrimSpace(userID))
	if err != nil {
		return fmt.Errorf("clear login failures: %w", err)
	}
	return nil
}

// GetAttempt returns the attempt counter for a user. A user with no recorded
// failures yields a zero-valued attempt.
func (s *Store) GetAttempt(ctx context.Context, userID string) (lockout.Attempt, error) {
	if err := s.ready(ctx); err != nil {
		return lockout.Attempt{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id, failure_count, last_failed_at, locked_until
FROM login_attempts
WHERE user_id = ?`, strings.TrimSpace(userID))

	var attempt lockout.Attempt
	var lastFailedAt int64
	var lockedUntil sql.NullInt64
	if err := row.Scan(&attempt.UserID, &attempt.FailureCount, &lastFailedAt, &lockedUntil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lockout.Attempt{UserID: strings.TrimSpace(userID)}, nil
		}
		return lockout.Attempt{}, fmt.Errorf("get login attempt: %w", err)
	}
	attempt.LastFailedAt = fromMillis(lastFailedAt)
	if lockedUntil.Valid {
		at := fromMillis(lockedUntil.Int64)
		attempt.LockedUntil = &at
	}
	return attempt, nil
}

var _ identity.Lookup = (*Store)(nil)
var _ lockout.Store = (*Store)(nil)

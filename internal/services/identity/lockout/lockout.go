// Package lockout tracks failed sign-in attempts and account lockout.
//
// Attempt counters commit through their own store handle, independent of any
// transaction the enclosing operation holds: a failed attempt must stay
// recorded even when the caller's unit of work rolls back.
package lockout

import (
	"context"
	"strings"
	"time"
)

const (
	// DefaultMaxAttempts locks an account after this many consecutive failures.
	DefaultMaxAttempts = 5
	// DefaultLockDuration is how long a locked account stays locked.
	DefaultLockDuration = 15 * time.Minute
)

// Attempt is the persisted failure counter for one user.
type Attempt struct {
	UserID       string
	FailureCount int
	LastFailedAt time.Time
	LockedUntil  *time.Time
}

// Store persists attempt counters. Implementations must commit each call as
// its own unit of work.
type Store interface {
	// IncrementFailure bumps the counter and returns the updated attempt.
	// When the count reaches maxAttempts the row is stamped with lockedUntil.
	IncrementFailure(ctx context.Context, userID string, at time.Time, maxAttempts int, lockedUntil time.Time) (Attempt, error)
	// ClearFailures resets the counter after a successful sign-in.
	ClearFailures(ctx context.Context, userID string) error
	GetAttempt(ctx context.Context, userID string) (Attempt, error)
}

// Recorder applies lockout policy over an attempt store.
type Recorder struct {
	store        Store
	clock        func() time.Time
	maxAttempts  int
	lockDuration time.Duration
}

// NewRecorder creates a recorder with default policy values.
func NewRecorder(store Store, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{
		store:        store,
		clock:        clock,
		maxAttempts:  DefaultMaxAttempts,
		lockDuration: DefaultLockDuration,
	}
}

// RecordFailure registers one failed sign-in and reports whether the account
// is now locked. The write commits regardless of the caller's transaction
// outcome.
func (r *Recorder) RecordFailure(ctx context.Context, userID string) (bool, error) {
	if r == nil || r.store == nil {
		return false, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, nil
	}
	now := r.clock().UTC()
	attempt, err := r.store.IncrementFailure(ctx, userID, now, r.maxAttempts, now.Add(r.lockDuration))
	if err != nil {
		return false, err
	}
	return attempt.LockedUntil != nil && attempt.LockedUntil.After(now), nil
}

// RecordSuccess clears the failure counter after a successful sign-in.
func (r *Recorder) RecordSuccess(ctx context.Context, userID string) error {
	if r == nil || r.store == nil {
		return nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	return r.store.ClearFailures(ctx, userID)
}

// Locked reports whether the user is currently locked out.
func (r *Recorder) Locked(ctx context.Context, userID string) (bool, error) {
	if r == nil || r.store == nil {
		return false, nil
	}
	attempt, err := r.store.GetAttempt(ctx, strings.TrimSpace(userID))
	if err != nil {
		return false, err
	}
	return attempt.LockedUntil != nil && attempt.LockedUntil.After(r.clock().UTC()), nil
}

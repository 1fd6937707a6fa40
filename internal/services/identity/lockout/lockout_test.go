package lockout

import (
	"context"
	"testing"
	"time"
)

type memoryStore struct {
	attempts map[string]Attempt
}

func newMemoryStore() *memoryStore {
	return &memoryStore{attempts: make(map[string]Attempt)}
}

func (m *memoryStore) IncrementFailure(_ context.Context, userID string, at time.Time, maxAttempts int, lockedUntil time.Time) (Attempt, error) {
	attempt := m.attempts[userID]
	attempt.UserID = userID
	attempt.FailureCount++
	attempt.LastFailedAt = at
	if attempt.FailureCount >= maxAttempts {
		until := lockedUntil
		attempt.LockedUntil = &until
	}
	m.attempts[userID] = attempt
	return attempt, nil
}

func (m *memoryStore) ClearFailures(_ context.Context, userID string) error {
	delete(m.attempts, userID)
	return nil
}

func (m *memoryStore) GetAttempt(_ context.Context, userID string) (Attempt, error) {
	return m.attempts[userID], nil
}

func TestRecorderLocksAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)
	recorder := NewRecorder(newMemoryStore(), func() time.Time { return now })
	ctx := context.Background()

	for i := 1; i < DefaultMaxAttempts; i++ {
		locked, err := recorder.RecordFailure(ctx, "user-1")
		if err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
		if locked {
			t.Fatalf("locked after %d failures", i)
		}
	}
	locked, err := recorder.RecordFailure(ctx, "user-1")
	if err != nil {
		t.Fatalf("final failure: %v", err)
	}
	if !locked {
		t.Fatalf("not locked after %d failures", DefaultMaxAttempts)
	}

	isLocked, err := recorder.Locked(ctx, "user-1")
	if err != nil {
		t.Fatalf("Locked returned error: %v", err)
	}
	if !isLocked {
		t.Fatal("Locked = false for a locked account")
	}
}

func TestRecorderLockExpires(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)
	recorder := NewRecorder(newMemoryStore(), func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < DefaultMaxAttempts; i++ {
		if _, err := recorder.RecordFailure(ctx, "user-1"); err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
	}

	now = now.Add(DefaultLockDuration + time.Second)
	locked, err := recorder.Locked(ctx, "user-1")
	if err != nil {
		t.Fatalf("Locked returned error: %v", err)
	}
	if locked {
		t.Fatal("lock did not expire")
	}
}

func TestRecorderSuccessClearsCounter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	recorder := NewRecorder(store, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < DefaultMaxAttempts-1; i++ {
		if _, err := recorder.RecordFailure(ctx, "user-1"); err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
	}
	if err := recorder.RecordSuccess(ctx, "user-1"); err != nil {
		t.Fatalf("RecordSuccess returned error: %v", err)
	}

	// The counter restarts from zero after a successful sign-in.
	locked, err := recorder.RecordFailure(ctx, "user-1")
	if err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}
	if locked {
		t.Fatal("locked on first failure after reset")
	}
	attempt, err := store.GetAttempt(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetAttempt returned error: %v", err)
	}
	if attempt.FailureCount != 1 {
		t.Fatalf("failure count = %d, want 1", attempt.FailureCount)
	}
}

func TestRecorderIgnoresBlankUser(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder(newMemoryStore(), nil)
	ctx := context.Background()

	locked, err := recorder.RecordFailure(ctx, "  ")
	if err != nil || locked {
		t.Fatalf("RecordFailure(blank) = %v, %v", locked, err)
	}
	if err := recorder.RecordSuccess(ctx, ""); err != nil {
		t.Fatalf("RecordSuccess(blank) = %v", err)
	}
}

// Package service orchestrates team, membership, and invitation use-cases
// over the storage boundary.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/teamdesk/internal/platform/id"
	"github.com/louisbranch/teamdesk/internal/services/identity"
	"github.com/louisbranch/teamdesk/internal/services/teams/domain"
	"github.com/louisbranch/teamdesk/internal/services/teams/notify"
	"github.com/louisbranch/teamdesk/internal/services/teams/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrStoreNotConfigured indicates the service is missing persistence wiring.
var ErrStoreNotConfigured = errors.New("teams store is not configured")

// Service implements team lifecycle, membership, and invitation use-cases.
type Service struct {
	store    storage.Store
	identity identity.Lookup
	notifier notify.Notifier
	clock    func() time.Time
	newID    func() (string, error)
	newToken func() (string, error)
	dispatch func(task func())
}

// Option adjusts optional service dependencies.
type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides the record ID generator.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithTokenGenerator overrides the invitation token generator.
func WithTokenGenerator(newToken func() (string, error)) Option {
	return func(s *Service) {
		if newToken != nil {
			s.newToken = newToken
		}
	}
}

// WithDispatcher overrides how post-commit side effects are scheduled.
// Tests use an inline dispatcher to make notification delivery observable.
func WithDispatcher(dispatch func(task func())) Option {
	return func(s *Service) {
		if dispatch != nil {
			s.dispatch = dispatch
		}
	}
}

// New creates a teams service.
func New(store storage.Store, lookup identity.Lookup, notifier notify.Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		identity: lookup,
		notifier: notifier,
		clock:    time.Now,
		newID:    id.NewID,
		newToken: domain.NewToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func clampPageSize(pageSize int) int {
	switch {
	case pageSize <= 0:
		return defaultPageSize
	case pageSize > maxPageSize:
		return maxPageSize
	default:
		return pageSize
	}
}

// RoleOf returns the actor's role in a team, or RoleUnspecified for
// non-members.
func (s *Service) RoleOf(ctx context.Context, teamID string, userID string) (domain.Role, error) {
	if s == nil || s.store == nil {
		return domain.RoleUnspecified, ErrStoreNotConfigured
	}
	membership, err := s.store.MembershipByTeamAndUser(ctx, strings.TrimSpace(teamID), strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.RoleUnspecified, nil
		}
		return domain.RoleUnspecified, err
	}
	return membership.Role, nil
}

// IsAdmin reports whether the user holds the admin role in the team.
func (s *Service) IsAdmin(ctx context.Context, teamID string, userID string) (bool, error) {
	role, err := s.RoleOf(ctx, teamID, userID)
	if err != nil {
		return false, err
	}
	return domain.IsAdminRole(role), nil
}

// IsMember reports whether the user belongs to the team.
func (s *Service) IsMember(ctx context.Context, teamID string, userID string) (bool, error) {
	role, err := s.RoleOf(ctx, teamID, userID)
	if err != nil {
		return false, err
	}
	return role != domain.RoleUnspecified, nil
}

// requireAdmin resolves the actor's membership and fails with ErrForbidden
// unless the actor is a team admin.
func (s *Service) requireAdmin(ctx context.Context, teamID string, actorID string) (domain.Membership, error) {
	membership, err := s.store.MembershipByTeamAndUser(ctx, teamID, actorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Membership{}, domain.ErrForbidden
		}
		return domain.Membership{}, err
	}
	if !domain.IsAdminRole(membership.Role) {
		return domain.Membership{}, domain.ErrForbidden
	}
	return membership, nil
}

// requireMember resolves the actor's membership and fails with ErrForbidden
// for non-members.
func (s *Service) requireMember(ctx context.Context, teamID string, actorID string) (domain.Membership, error) {
	membership, err := s.store.MembershipByTeamAndUser(ctx, teamID, actorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Membership{}, domain.ErrForbidden
		}
		return domain.Membership{}, err
	}
	return membership, nil
}

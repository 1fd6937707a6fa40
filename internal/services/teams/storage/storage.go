// Package storage defines the persistence boundary for team state.
//
// Implementations must enforce the transactional invariants documented on
// each method inside a single atomic unit of work: the admin-count guard, the
// one-pending-invitation-per-email rule, and capacity ceilings are re-checked
// at write time, never from an earlier read.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/teamdesk/internal/services/teams/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write hit a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrCapacityExceeded indicates a write would exceed team capacity.
	ErrCapacityExceeded = errors.New("team capacity exceeded")
	// ErrLastAdmin indicates a write would leave a team without admins.
	ErrLastAdmin = errors.New("write would remove last admin")
	// ErrNotPending indicates a conditional status transition found the
	// invitation outside the PENDING state.
	ErrNotPending = errors.New("invitation is not pending")
)

// TeamPage is one page of teams with a continuation token.
type TeamPage struct {
	Teams         []domain.Team
	NextPageToken string
}

// MembershipPage is one page of memberships with a continuation token.
type MembershipPage struct {
	Memberships   []domain.Membership
	NextPageToken string
}

// TeamStats aggregates headline numbers for one team.
type TeamStats struct {
	MemberCount        int
	AdminCount         int
	PendingInvitations int
	MaxMembers         int
}

// TeamStore persists team records.
type TeamStore interface {
	// CreateTeamWithOwner atomically inserts the team and its creator's
	// admin membership. Returns ErrConflict if the owner already holds a
	// team with the same name.
	CreateTeamWithOwner(ctx context.Context, team domain.Team, owner domain.Membership) error
	GetTeam(ctx context.Context, teamID string) (domain.Team, error)
	// UpdateTeam rewrites mutable team fields. Returns ErrConflict if the
	// new name collides with another team of the same owner.
	UpdateTeam(ctx context.Context, team domain.Team) error
	// DeleteTeam removes the team, its memberships, and its invitations in
	// one transaction.
	DeleteTeam(ctx context.Context, teamID string) error
	CountTeamsByCreator(ctx context.Context, creatorID string) (int, error)
	ListTeamsByUser(ctx context.Context, userID string, pageSize int, pageToken string) (TeamPage, error)
	SearchTeamsByUser(ctx context.Context, userID string, keyword string, pageSize int, pageToken string) (TeamPage, error)
	GetTeamStats(ctx context.Context, teamID string) (TeamStats, error)
}

// MembershipStore persists membership records.
type MembershipStore interface {
	// InsertMembership adds a member, re-checking the (team,user)
	// uniqueness (ErrConflict) and the member-count ceiling
	// (ErrCapacityExceeded) inside the inserting transaction.
	InsertMembership(ctx context.Context, membership domain.Membership) error
	GetMembership(ctx context.Context, teamID string, membershipID string) (domain.Membership, error)
	MembershipByTeamAndUser(ctx context.Context, teamID string, userID string) (domain.Membership, error)
	ListMemberships(ctx context.Context, teamID string, pageSize int, pageToken string) (MembershipPage, error)
	// ListMembershipsByRole returns every membership holding one role,
	// ordered by id. Bounded by the team capacity, so unpaginated.
	ListMembershipsByRole(ctx context.Context, teamID string, role domain.Role) ([]domain.Membership, error)
	// UpdateMembershipRole changes a member's role. Demoting an admin is a
	// conditional write that fails with ErrLastAdmin when no other admin
	// would remain.
	UpdateMembershipRole(ctx context.Context, teamID string, membershipID string, role domain.Role) (domain.Membership, error)
	// DeleteMembership removes a member under the same admin-count guard.
	DeleteMembership(ctx context.Context, teamID string, membershipID string) error
	CountMembers(ctx context.Context, teamID string) (int, error)
	CountMembersByRole(ctx context.Context, teamID string, role domain.Role) (int, error)
}

// InvitationStore persists invitation records and their state machine.
type InvitationStore interface {
	// InsertInvitation persists a pending invitation, re-checking the
	// pending-uniqueness rule (ErrConflict) and the members-plus-pending
	// capacity ceiling (ErrCapacityExceeded) inside the inserting
	// transaction.
	InsertInvitation(ctx context.Context, invitation domain.Invitation) error
	GetInvitation(ctx context.Context, invitationID string) (domain.Invitation, error)
	InvitationByToken(ctx context.Context, token string) (domain.Invitation, error)
	// AcceptInvitation flips PENDING to ACCEPTED and inserts the resulting
	// membership in one transaction. The status flip is conditional on the
	// current status so only one of two concurrent accepts can succeed
	// (ErrNotPending for the loser). Capacity and membership uniqueness
	// are re-checked inside the same transaction.
	AcceptInvitation(ctx context.Context, invitationID string, membership domain.Membership, acceptedAt time.Time) error
	// TransitionInvitation conditionally moves a PENDING invitation to a
	// terminal status. Returns ErrNotPending when the row already left
	// PENDING.
	TransitionInvitation(ctx context.Context, invitationID string, to domain.InvitationStatus, at time.Time) (domain.Invitation, error)
	// MarkInvitationResent extends expiry and stamps the resend time on a
	// PENDING invitation.
	MarkInvitationResent(ctx context.Context, invitationID string, expiresAt time.Time, resentAt time.Time) (domain.Invitation, error)
	ListPendingInvitationsByTeam(ctx context.Context, teamID string) ([]domain.Invitation, error)
	// ListPendingInvitationsForUser matches by email or resolved user id so
	// an invitee who registered after being invited still sees the offer.
	ListPendingInvitationsForUser(ctx context.Context, email string, userID string) ([]domain.Invitation, error)
	CountPendingInvitations(ctx context.Context, teamID string) (int, error)
	// ExpirePendingInvitations flips every PENDING row past its expiry to
	// EXPIRED and reports how many rows changed. Idempotent and safe to run
	// concurrently with itself.
	ExpirePendingInvitations(ctx context.Context, now time.Time) (int64, error)
}

// Store aggregates the per-entity stores backing the teams service.
type Store interface {
	TeamStore
	MembershipStore
	InvitationStore
}

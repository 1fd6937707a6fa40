package domain

import (
	"fmt"
	"time"

	apperrors "github.com/louisbranch/teamdesk/internal/errors"
	"github.com/louisbranch/teamdesk/internal/platform/id"
)

var (
	// ErrMembershipExists indicates the user already belongs to the team.
	ErrMembershipExists = apperrors.New(apperrors.CodeMembershipExists, "user is already a team member")
	// ErrMemberNotFound indicates the membership does not exist.
	ErrMemberNotFound = apperrors.New(apperrors.CodeMemberNotFound, "team member not found")
	// ErrLastAdmin indicates a mutation would leave the team without admins.
	ErrLastAdmin = apperrors.New(apperrors.CodeMembershipLastAdmin, "team must keep at least one admin")
	// ErrSelfModification indicates an actor targeting their own membership role.
	ErrSelfModification = apperrors.New(apperrors.CodeMembershipSelfModification, "cannot change own role")
	// ErrForbidden indicates the actor lacks the required role.
	ErrForbidden = apperrors.New(apperrors.CodeForbidden, "operation requires team admin")
)

// Membership grants one user one role within one team.
type Membership struct {
	ID        string
	TeamID    string
	UserID    string
	Role      Role
	InviterID string
	JoinedAt  time.Time
}

// NewMembership creates a membership with a generated ID and join timestamp.
func NewMembership(teamID string, userID string, role Role, inviterID string, now func() time.Time, idGenerator func() (string, error)) (Membership, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if role == RoleUnspecified {
		return Membership{}, ErrInvalidRole
	}

	membershipID, err := idGenerator()
	if err != nil {
		return Membership{}, fmt.Errorf("generate membership id: %w", err)
	}

	return Membership{
		ID:        membershipID,
		TeamID:    teamID,
		UserID:    userID,
		Role:      role,
		InviterID: inviterID,
		JoinedAt:  now().UTC(),
	}, nil
}

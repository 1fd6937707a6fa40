// Package identity exposes user lookup for the teams service and the
// login-attempt bookkeeping of the adjacent sign-in flow.
package identity

import (
	"context"

	apperrors "github.com/louisbranch/teamdesk/internal/errors"
)

// ErrUserNotFound indicates no identity matches the lookup key.
var ErrUserNotFound = apperrors.New(apperrors.CodeUserNotFound, "user not found")

// User is the opaque identity referenced by memberships and invitations.
type User struct {
	ID          string
	Email       string
	DisplayName string
}

// Lookup resolves users by id or email.
type Lookup interface {
	LookupByID(ctx context.Context, userID string) (User, error)
	LookupByEmail(ctx context.Context, email string) (User, error)
}

package domain

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/teamdesk/internal/errors"
	"github.com/louisbranch/teamdesk/internal/platform/id"
)

const (
	// InvitationTTL is how long an invitation stays claimable.
	InvitationTTL = 7 * 24 * time.Hour
	// ResendCooldown is the minimum gap between invitation resends.
	ResendCooldown = 60 * time.Second
	// tokenBytes sizes the invitation token at 256 bits of entropy.
	tokenBytes = 32
)

var (
	// ErrInvitationNotFound indicates an unknown invitation or token.
	ErrInvitationNotFound = apperrors.New(apperrors.CodeInvitationNotFound, "invitation not found")
	// ErrDuplicatePending indicates a pending invitation already exists for the email.
	ErrDuplicatePending = apperrors.New(apperrors.CodeInvitationDuplicatePending, "pending invitation already exists")
	// ErrAlreadyProcessed indicates the invitation left the PENDING state.
	ErrAlreadyProcessed = apperrors.New(apperrors.CodeInvitationAlreadyProcessed, "invitation already processed")
	// ErrInvitationExpired indicates the invitation passed its expiry.
	ErrInvitationExpired = apperrors.New(apperrors.CodeInvitationExpired, "invitation expired")
	// ErrCooldownActive indicates a resend attempted inside the cooldown window.
	ErrCooldownActive = apperrors.New(apperrors.CodeInvitationCooldownActive, "resend cooldown active")
	// ErrUnknownEmail indicates the invited email matches no registered identity.
	ErrUnknownEmail = apperrors.New(apperrors.CodeInvitationUnknownEmail, "no identity registered for email")
	// ErrAlreadyMember indicates the invited user already belongs to the team.
	ErrAlreadyMember = apperrors.New(apperrors.CodeInvitationAlreadyMember, "invited user is already a member")
	// ErrDeliveryFailed indicates the invitation email could not be sent.
	ErrDeliveryFailed = apperrors.New(apperrors.CodeInvitationDeliveryFailed, "invitation delivery failed")
)

// InvitationStatus represents the lifecycle status of an invitation.
type InvitationStatus int

const (
	// InvitationStatusUnspecified represents an invalid status.
	InvitationStatusUnspecified InvitationStatus = iota
	// InvitationStatusPending indicates an invitation awaiting a decision.
	InvitationStatusPending
	// InvitationStatusAccepted indicates the invitee joined the team.
	InvitationStatusAccepted
	// InvitationStatusRejected indicates the invitee declined.
	InvitationStatusRejected
	// InvitationStatusExpired indicates the invitation lapsed unanswered.
	InvitationStatusExpired
	// InvitationStatusCancelled indicates an admin withdrew the invitation.
	InvitationStatusCancelled
)

// Invitation is a token-bearing, time-bounded offer to join a team.
type Invitation struct {
	ID            string
	TeamID        string
	InvitedEmail  string
	InvitedUserID string
	Role          Role
	InviterID     string
	Token         string
	Message       string
	Status        InvitationStatus
	ExpiresAt     time.Time
	AcceptedAt    *time.Time
	RejectedAt    *time.Time
	LastResentAt  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateInvitationInput describes the metadata needed to create an invitation.
type CreateInvitationInput struct {
	TeamID        string
	InvitedEmail  string
	InvitedUserID string
	Role          Role
	InviterID     string
	Message       string
}

// NewInvitation creates a pending invitation with a fresh token and expiry.
func NewInvitation(input CreateInvitationInput, now func() time.Time, idGenerator func() (string, error), tokenGenerator func() (string, error)) (Invitation, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if tokenGenerator == nil {
		tokenGenerator = NewToken
	}
	if input.Role == RoleUnspecified {
		return Invitation{}, ErrInvalidRole
	}

	invitationID, err := idGenerator()
	if err != nil {
		return Invitation{}, fmt.Errorf("generate invitation id: %w", err)
	}
	token, err := tokenGenerator()
	if err != nil {
		return Invitation{}, fmt.Errorf("generate invitation token: %w", err)
	}

	createdAt := now().UTC()
	return Invitation{
		ID:            invitationID,
		TeamID:        strings.TrimSpace(input.TeamID),
		InvitedEmail:  NormalizeEmail(input.InvitedEmail),
		InvitedUserID: strings.TrimSpace(input.InvitedUserID),
		Role:          input.Role,
		InviterID:     strings.TrimSpace(input.InviterID),
		Token:         token,
		Message:       strings.TrimSpace(input.Message),
		Status:        InvitationStatusPending,
		ExpiresAt:     createdAt.Add(InvitationTTL),
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}, nil
}

// NewToken returns an unguessable URL-safe invitation token.
func NewToken() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// NormalizeEmail lowercases and trims an email address for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExpiredAt reports whether the invitation has lapsed at the given instant.
func (inv Invitation) ExpiredAt(at time.Time) bool {
	return !inv.ExpiresAt.After(at)
}

// InvitationStatusLabel returns the string label for an invitation status.
func InvitationStatusLabel(status InvitationStatus) string {
	switch status {
	case InvitationStatusPending:
		return "PENDING"
	case InvitationStatusAccepted:
		return "ACCEPTED"
	case InvitationStatusRejected:
		return "REJECTED"
	case InvitationStatusExpired:
		return "EXPIRED"
	case InvitationStatusCancelled:
		return "CANCELLED"
	default:
		return "UNSPECIFIED"
	}
}

// InvitationStatusFromLabel converts a status label to its status value.
func InvitationStatusFromLabel(label string) InvitationStatus {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PENDING":
		return InvitationStatusPending
	case "ACCEPTED":
		return InvitationStatusAccepted
	case "REJECTED":
		return InvitationStatusRejected
	case "EXPIRED":
		return InvitationStatusExpired
	case "CANCELLED":
		return InvitationStatusCancelled
	default:
		return InvitationStatusUnspecified
	}
}

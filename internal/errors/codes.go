// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Team errors
	CodeTeamNameEmpty        Code = "TEAM_NAME_EMPTY"
	CodeTeamNameConflict     Code = "TEAM_NAME_CONFLICT"
	CodeTeamQuotaExceeded    Code = "TEAM_QUOTA_EXCEEDED"
	CodeTeamCapacityExceeded Code = "TEAM_CAPACITY_EXCEEDED"
	CodeTeamInactive         Code = "TEAM_INACTIVE"
	CodeTeamNotFound         Code = "TEAM_NOT_FOUND"

	// Membership errors
	CodeMembershipExists           Code = "MEMBERSHIP_EXISTS"
	CodeMembershipInvalidRole      Code = "MEMBERSHIP_INVALID_ROLE"
	CodeMembershipLastAdmin        Code = "MEMBERSHIP_LAST_ADMIN"
	CodeMembershipSelfModification Code = "MEMBERSHIP_SELF_MODIFICATION"
	CodeMemberNotFound             Code = "MEMBER_NOT_FOUND"

	// Invitation errors
	CodeInvitationNotFound         Code = "INVITATION_NOT_FOUND"
	CodeInvitationDuplicatePending Code = "INVITATION_DUPLICATE_PENDING"
	CodeInvitationAlreadyProcessed Code = "INVITATION_ALREADY_PROCESSED"
	CodeInvitationExpired          Code = "INVITATION_EXPIRED"
	CodeInvitationCooldownActive   Code = "INVITATION_COOLDOWN_ACTIVE"
	CodeInvitationUnknownEmail     Code = "INVITATION_UNKNOWN_EMAIL"
	CodeInvitationAlreadyMember    Code = "INVITATION_ALREADY_MEMBER"
	CodeInvitationDeliveryFailed   Code = "INVITATION_DELIVERY_FAILED"

	// Authorization errors
	CodeForbidden Code = "FORBIDDEN"

	// Identity errors
	CodeUserNotFound Code = "USER_NOT_FOUND"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeTeamNameEmpty,
		CodeMembershipInvalidRole:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeTeamInactive,
		CodeMembershipLastAdmin,
		CodeMembershipSelfModification,
		CodeInvitationAlreadyProcessed,
		CodeInvitationExpired,
		CodeInvitationUnknownEmail:
		return codes.FailedPrecondition

	// AlreadyExists - uniqueness conflicts
	case CodeTeamNameConflict,
		CodeMembershipExists,
		CodeInvitationDuplicatePending,
		CodeInvitationAlreadyMember:
		return codes.AlreadyExists

	// ResourceExhausted - quota ceilings, capacity ceilings, cooldowns
	case CodeTeamQuotaExceeded,
		CodeTeamCapacityExceeded,
		CodeInvitationCooldownActive:
		return codes.ResourceExhausted

	// PermissionDenied
	case CodeForbidden:
		return codes.PermissionDenied

	// NotFound
	case CodeTeamNotFound,
		CodeMemberNotFound,
		CodeInvitationNotFound,
		CodeUserNotFound,
		CodeNotFound:
		return codes.NotFound

	// Unavailable - delivery failures surfaced to the caller
	case CodeInvitationDeliveryFailed:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}

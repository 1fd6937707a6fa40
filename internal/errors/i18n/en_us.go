package i18n

// Error codes must match the codes defined in internal/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeTeamNameEmpty        = "TEAM_NAME_EMPTY"
	CodeTeamNameConflict     = "TEAM_NAME_CONFLICT"
	CodeTeamQuotaExceeded    = "TEAM_QUOTA_EXCEEDED"
	CodeTeamCapacityExceeded = "TEAM_CAPACITY_EXCEEDED"
	CodeTeamInactive         = "TEAM_INACTIVE"
	CodeTeamNotFound         = "TEAM_NOT_FOUND"

	CodeMembershipExists           = "MEMBERSHIP_EXISTS"
	CodeMembershipInvalidRole      = "MEMBERSHIP_INVALID_ROLE"
	CodeMembershipLastAdmin        = "MEMBERSHIP_LAST_ADMIN"
	CodeMembershipSelfModification = "MEMBERSHIP_SELF_MODIFICATION"
	CodeMemberNotFound             = "MEMBER_NOT_FOUND"

	CodeInvitationNotFound         = "INVITATION_NOT_FOUND"
	CodeInvitationDuplicatePending = "INVITATION_DUPLICATE_PENDING"
	CodeInvitationAlreadyProcessed = "INVITATION_ALREADY_PROCESSED"
	CodeInvitationExpired          = "INVITATION_EXPIRED"
	CodeInvitationCooldownActive   = "INVITATION_COOLDOWN_ACTIVE"
	CodeInvitationUnknownEmail     = "INVITATION_UNKNOWN_EMAIL"
	CodeInvitationAlreadyMember    = "INVITATION_ALREADY_MEMBER"
	CodeInvitationDeliveryFailed   = "INVITATION_DELIVERY_FAILED"

	CodeForbidden    = "FORBIDDEN"
	CodeUserNotFound = "USER_NOT_FOUND"
	CodeNotFound     = "NOT_FOUND"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		// Team errors
		CodeTeamNameEmpty:        "Team name cannot be empty",
		CodeTeamNameConflict:     "You already own a team named {{.Name}}",
		CodeTeamQuotaExceeded:    "You cannot own more than {{.Limit}} teams",
		CodeTeamCapacityExceeded: "Team {{.Name}} is at its member limit",
		CodeTeamInactive:         "This team is inactive",
		CodeTeamNotFound:         "Team not found",

		// Membership errors
		CodeMembershipExists:           "This user is already a member of the team",
		CodeMembershipInvalidRole:      "Invalid team role specified",
		CodeMembershipLastAdmin:        "A team must keep at least one admin",
		CodeMembershipSelfModification: "You cannot change your own role",
		CodeMemberNotFound:             "Team member not found",

		// Invitation errors
		CodeInvitationNotFound:         "Invitation not found",
		CodeInvitationDuplicatePending: "An invitation for {{.Email}} is already pending",
		CodeInvitationAlreadyProcessed: "This invitation has already been {{.Status}}",
		CodeInvitationExpired:          "This invitation has expired",
		CodeInvitationCooldownActive:   "Please wait {{.Remaining}} before resending",
		CodeInvitationUnknownEmail:     "No account exists for {{.Email}}",
		CodeInvitationAlreadyMember:    "{{.Email}} is already a member of the team",
		CodeInvitationDeliveryFailed:   "The invitation email could not be sent",

		// Authorization errors
		CodeForbidden: "You do not have permission to perform this action",

		// Identity errors
		CodeUserNotFound: "User not found",

		// Storage errors
		CodeNotFound: "The requested record was not found",
	},
}

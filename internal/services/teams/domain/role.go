// Package domain holds team, membership, and invitation entities and the
// rules that govern their lifecycles.
package domain

import (
	"strings"

	apperrors "github.com/louisbranch/teamdesk/internal/errors"
)

// ErrInvalidRole indicates a role label outside the closed role set.
var ErrInvalidRole = apperrors.New(apperrors.CodeMembershipInvalidRole, "invalid team role")

// Role is the closed set of roles a membership can carry.
type Role int

const (
	// RoleUnspecified represents an invalid role.
	RoleUnspecified Role = iota
	// RoleAdmin has full management and destructive rights.
	RoleAdmin
	// RoleManager can manage day-to-day team activity.
	RoleManager
	// RoleDeveloper is a contributing engineer.
	RoleDeveloper
	// RoleDesigner is a contributing designer.
	RoleDesigner
	// RoleQA is a contributing tester.
	RoleQA
	// RoleMember is a regular contributor.
	RoleMember
	// RoleViewer has read-only access.
	RoleViewer
)

// RoleLabel returns the string label for a role.
func RoleLabel(role Role) string {
	switch role {
	case RoleAdmin:
		return "ADMIN"
	case RoleManager:
		return "MANAGER"
	case RoleDeveloper:
		return "DEVELOPER"
	case RoleDesigner:
		return "DESIGNER"
	case RoleQA:
		return "QA"
	case RoleMember:
		return "MEMBER"
	case RoleViewer:
		return "VIEWER"
	default:
		return "UNSPECIFIED"
	}
}

// RoleFromLabel converts a role label to a Role value.
func RoleFromLabel(label string) Role {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "ADMIN":
		return RoleAdmin
	case "MANAGER":
		return RoleManager
	case "DEVELOPER":
		return RoleDeveloper
	case "DESIGNER":
		return RoleDesigner
	case "QA":
		return RoleQA
	case "MEMBER":
		return RoleMember
	case "VIEWER":
		return RoleViewer
	default:
		return RoleUnspecified
	}
}

package domain

// Capability names a privileged action gated by role. Permission checks go
// through the capability table so adding a role can never silently widen or
// bypass a check.
type Capability string

const (
	// CapabilityAdminister covers destructive and structural team actions:
	// updating or deleting the team, inviting, and changing member roles.
	CapabilityAdminister Capability = "administer"
	// CapabilityManage covers day-to-day coordination actions elsewhere in
	// the product, such as assigning tasks.
	CapabilityManage Capability = "manage"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleAdmin: {
		CapabilityAdminister: true,
		CapabilityManage:     true,
	},
	RoleManager: {
		CapabilityManage: true,
	},
}

// HasCapability reports whether a role grants the given capability.
func HasCapability(role Role, capability Capability) bool {
	return roleCapabilities[role][capability]
}

// IsAdminRole reports whether a role carries administrative rights.
func IsAdminRole(role Role) bool {
	return HasCapability(role, CapabilityAdminister)
}

// CanManage reports whether a role can manage team activity.
func CanManage(role Role) bool {
	return HasCapability(role, CapabilityManage)
}

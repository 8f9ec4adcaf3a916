package teams

// MemberRole is a membership role
type MemberRole string

const (
	// RoleMember is a regular team member (view, edit)
	RoleMember MemberRole = "member"
	// RoleAdmin manages members and team settings
	RoleAdmin MemberRole = "admin"
	// RoleOwner is the single accountable owner of a team
	RoleOwner MemberRole = "owner"
	// RoleSuperAdmin is a platform wide role, never assigned through the
	// ordinary membership paths
	RoleSuperAdmin MemberRole = "super_admin"
)

// roleHierarchy backs the hierarchical IsAtLeast checks (route guards).
// Capability checks do NOT use this ordering, they use the explicit matrices
// below: an owner outranking an admin here does not grant the owner every
// admin capability and vice versa.
var roleHierarchy = map[MemberRole]int{
	RoleMember:     0,
	RoleAdmin:      1,
	RoleOwner:      2,
	RoleSuperAdmin: 3,
}

// assignableRoles is the exact set of roles each actor may set on a member.
// The sets are fixed and non-inherited.
var assignableRoles = map[MemberRole][]MemberRole{
	RoleSuperAdmin: {RoleMember, RoleAdmin, RoleOwner},
	RoleOwner:      {RoleMember, RoleAdmin},
	RoleAdmin:      {RoleMember, RoleAdmin},
	RoleMember:     {},
}

// modifiableRoles is the exact set of current roles each actor may change.
// Self-targeting and super_admin rows are rejected before these sets are
// consulted, so neither appears here.
var modifiableRoles = map[MemberRole]map[MemberRole]struct{}{
	RoleSuperAdmin: {RoleMember: {}, RoleAdmin: {}, RoleOwner: {}},
	RoleOwner:      {RoleMember: {}, RoleAdmin: {}, RoleOwner: {}},
	RoleAdmin:      {RoleMember: {}},
	RoleMember:     {},
}

// removableRoles is the exact set of current roles each actor may remove.
var removableRoles = map[MemberRole]map[MemberRole]struct{}{
	RoleSuperAdmin: {RoleMember: {}, RoleAdmin: {}, RoleOwner: {}},
	RoleOwner:      {RoleMember: {}, RoleAdmin: {}, RoleOwner: {}},
	RoleAdmin:      {RoleMember: {}},
	RoleMember:     {},
}

// invitableRoles mirrors assignableRoles: an inviter may not hand out a role
// it lacks the authority to grant.
var invitableRoles = map[MemberRole][]MemberRole{
	RoleSuperAdmin: {RoleMember, RoleAdmin, RoleOwner},
	RoleOwner:      {RoleMember, RoleAdmin},
	RoleAdmin:      {RoleMember, RoleAdmin},
	RoleMember:     {},
}

// IsValid checks if the role is one of the predefined valid roles
func (r MemberRole) IsValid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleOwner, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsAssignable reports whether the role may be handed out through the
// ordinary membership paths. super_admin is platform scoped and excluded.
func (r MemberRole) IsAssignable() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level. This is the
// hierarchical semantic only; capability checks go through the policy matrices.
func (r MemberRole) IsAtLeast(minRole MemberRole) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// CanAssign reports whether the role may set a member's role to target.
func (r MemberRole) CanAssign(target MemberRole) bool {
	for _, allowed := range assignableRoles[r] {
		if allowed == target {
			return true
		}
	}
	return false
}

// CanModify reports whether the role may change a member currently at the
// given role. Self and super_admin targets are excluded upstream.
func (r MemberRole) CanModify(current MemberRole) bool {
	_, ok := modifiableRoles[r][current]
	return ok
}

// CanRemove reports whether the role may remove a member currently at the
// given role. Self and super_admin targets are excluded upstream.
func (r MemberRole) CanRemove(current MemberRole) bool {
	_, ok := removableRoles[r][current]
	return ok
}

// CanInvite reports whether the role may invite a new member at target role.
func (r MemberRole) CanInvite(target MemberRole) bool {
	for _, allowed := range invitableRoles[r] {
		if allowed == target {
			return true
		}
	}
	return false
}

// AssignableRoles returns the roles this role may hand out, in hierarchy
// order. Useful for populating role pickers.
func (r MemberRole) AssignableRoles() []MemberRole {
	allowed := assignableRoles[r]
	out := make([]MemberRole, len(allowed))
	copy(out, allowed)
	return out
}

// GetAllRoles returns the team scoped roles in hierarchical order.
// super_admin is deliberately excluded: it is not a team role.
func GetAllRoles() []MemberRole {
	return []MemberRole{
		RoleMember,
		RoleAdmin,
		RoleOwner,
	}
}

// ParseRole safely parses a string into a MemberRole type
func ParseRole(roleStr string) (MemberRole, bool) {
	role := MemberRole(roleStr)
	return role, role.IsValid()
}

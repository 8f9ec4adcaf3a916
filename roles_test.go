package teams

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleMember.IsValid())
	assert.True(t, RoleAdmin.IsValid())
	assert.True(t, RoleOwner.IsValid())
	assert.True(t, RoleSuperAdmin.IsValid())
	assert.False(t, MemberRole("manager").IsValid())
	assert.False(t, MemberRole("").IsValid())
}

func TestRoleIsAssignable(t *testing.T) {
	assert.True(t, RoleMember.IsAssignable())
	assert.True(t, RoleAdmin.IsAssignable())
	assert.True(t, RoleOwner.IsAssignable())
	assert.False(t, RoleSuperAdmin.IsAssignable())
	assert.False(t, MemberRole("manager").IsAssignable())
}

func TestRoleIsAtLeast(t *testing.T) {
	tests := []struct {
		role     MemberRole
		min      MemberRole
		expected bool
	}{
		{RoleMember, RoleMember, true},
		{RoleMember, RoleAdmin, false},
		{RoleAdmin, RoleMember, true},
		{RoleAdmin, RoleOwner, false},
		{RoleOwner, RoleAdmin, true},
		{RoleSuperAdmin, RoleOwner, true},
		{MemberRole("bogus"), RoleMember, false},
		{RoleOwner, MemberRole("bogus"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.role.IsAtLeast(tt.min),
			"%s.IsAtLeast(%s)", tt.role, tt.min)
	}
}

func TestRoleCanAssign(t *testing.T) {
	tests := []struct {
		actor    MemberRole
		target   MemberRole
		expected bool
	}{
		{RoleSuperAdmin, RoleMember, true},
		{RoleSuperAdmin, RoleAdmin, true},
		{RoleSuperAdmin, RoleOwner, true},
		{RoleOwner, RoleMember, true},
		{RoleOwner, RoleAdmin, true},
		{RoleOwner, RoleOwner, false},
		{RoleAdmin, RoleMember, true},
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleOwner, false},
		{RoleMember, RoleMember, false},
		{RoleMember, RoleAdmin, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.actor.CanAssign(tt.target),
			"%s.CanAssign(%s)", tt.actor, tt.target)
	}
}

func TestRoleCanModifyAndRemoveAsymmetry(t *testing.T) {
	// An admin outranks no one hierarchically here: the matrices are exact.
	// Admins touch members only, owners touch everyone team-scoped.
	assert.True(t, RoleAdmin.CanModify(RoleMember))
	assert.False(t, RoleAdmin.CanModify(RoleAdmin))
	assert.False(t, RoleAdmin.CanModify(RoleOwner))

	assert.True(t, RoleOwner.CanModify(RoleMember))
	assert.True(t, RoleOwner.CanModify(RoleAdmin))
	assert.True(t, RoleOwner.CanModify(RoleOwner))

	assert.True(t, RoleAdmin.CanRemove(RoleMember))
	assert.False(t, RoleAdmin.CanRemove(RoleAdmin))
	assert.False(t, RoleAdmin.CanRemove(RoleOwner))

	assert.True(t, RoleOwner.CanRemove(RoleAdmin))
	assert.True(t, RoleSuperAdmin.CanRemove(RoleOwner))

	assert.False(t, RoleMember.CanModify(RoleMember))
	assert.False(t, RoleMember.CanRemove(RoleMember))
}

func TestRoleCanInviteMirrorsAssign(t *testing.T) {
	for _, actor := range []MemberRole{RoleMember, RoleAdmin, RoleOwner, RoleSuperAdmin} {
		for _, target := range GetAllRoles() {
			assert.Equal(t, actor.CanAssign(target), actor.CanInvite(target),
				"%s invite/assign mismatch for %s", actor, target)
		}
	}
}

func TestAssignableRolesReturnsCopy(t *testing.T) {
	roles := RoleOwner.AssignableRoles()
	assert.Equal(t, []MemberRole{RoleMember, RoleAdmin}, roles)

	roles[0] = RoleOwner
	assert.Equal(t, []MemberRole{RoleMember, RoleAdmin}, RoleOwner.AssignableRoles())
}

func TestGetAllRolesExcludesSuperAdmin(t *testing.T) {
	roles := GetAllRoles()
	assert.Equal(t, []MemberRole{RoleMember, RoleAdmin, RoleOwner}, roles)
	assert.NotContains(t, roles, RoleSuperAdmin)
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = ParseRole("janitor")
	assert.False(t, ok)
}

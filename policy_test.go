package teams

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teamActor(teamID uuid.UUID, role MemberRole) ActorContext {
	return ActorContext{
		UserID: uuid.New(),
		Role:   role,
		TeamID: teamID,
	}
}

func teamMember(teamID uuid.UUID, role MemberRole) *Member {
	return &Member{
		TeamID: teamID,
		UserID: uuid.New(),
		Role:   role,
	}
}

func TestCanAssignRoleMatrix(t *testing.T) {
	teamID := uuid.New()

	tests := []struct {
		name       string
		actorRole  MemberRole
		targetRole MemberRole
		newRole    MemberRole
		wantCode   string
	}{
		{"owner promotes member to admin", RoleOwner, RoleMember, RoleAdmin, ""},
		{"owner demotes admin to member", RoleOwner, RoleAdmin, RoleMember, ""},
		{"owner cannot mint a second owner", RoleOwner, RoleMember, RoleOwner, TextCodeRoleForbidden},
		{"admin promotes member to admin", RoleAdmin, RoleMember, RoleAdmin, ""},
		{"admin cannot promote member to owner", RoleAdmin, RoleMember, RoleOwner, TextCodeRoleForbidden},
		{"admin cannot touch another admin", RoleAdmin, RoleAdmin, RoleMember, TextCodeRoleForbidden},
		{"admin cannot touch the owner", RoleAdmin, RoleOwner, RoleMember, TextCodeRoleForbidden},
		{"member holds no assignment rights", RoleMember, RoleMember, RoleAdmin, TextCodeRoleForbidden},
		{"super admin assigns owner", RoleSuperAdmin, RoleAdmin, RoleOwner, ""},
		{"nobody assigns super_admin", RoleSuperAdmin, RoleMember, RoleSuperAdmin, TextCodeRoleForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := teamActor(teamID, tt.actorRole)
			target := teamMember(teamID, tt.targetRole)

			err := CanAssignRole(actor, target, tt.newRole)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, HasTextCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestCanAssignRoleSelfTargetDenied(t *testing.T) {
	teamID := uuid.New()

	// Self role changes are denied for every role, escalation or not.
	for _, role := range []MemberRole{RoleMember, RoleAdmin, RoleOwner, RoleSuperAdmin} {
		actor := teamActor(teamID, role)
		target := &Member{TeamID: teamID, UserID: actor.UserID, Role: role}

		err := CanAssignRole(actor, target, RoleMember)
		require.Error(t, err, "role %s", role)
		assert.True(t, HasTextCode(err, TextCodeSelfActionForbidden), "role %s got %v", role, err)
	}
}

func TestCanAssignRoleRequiresTeamMembership(t *testing.T) {
	actor := teamActor(uuid.New(), RoleOwner)
	target := teamMember(uuid.New(), RoleMember)

	err := CanAssignRole(actor, target, RoleAdmin)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeNotTeamMember))

	// super_admin is not scoped to a team and passes the membership gate.
	super := ActorContext{UserID: uuid.New(), Role: RoleSuperAdmin}
	assert.NoError(t, CanAssignRole(super, target, RoleAdmin))
}

func TestCanAssignRolePrivilegedTarget(t *testing.T) {
	teamID := uuid.New()
	actor := teamActor(teamID, RoleOwner)
	target := teamMember(teamID, RoleSuperAdmin)

	err := CanAssignRole(actor, target, RoleMember)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeTargetIsPrivileged))
}

func TestCanRemoveMember(t *testing.T) {
	teamID := uuid.New()

	tests := []struct {
		name       string
		actorRole  MemberRole
		targetRole MemberRole
		wantCode   string
	}{
		{"admin removes member", RoleAdmin, RoleMember, ""},
		{"admin cannot remove admin", RoleAdmin, RoleAdmin, TextCodeRoleForbidden},
		{"owner removes admin", RoleOwner, RoleAdmin, ""},
		{"member removes nobody", RoleMember, RoleMember, TextCodeRoleForbidden},
		{"super admin removes owner", RoleSuperAdmin, RoleOwner, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := teamActor(teamID, tt.actorRole)
			target := teamMember(teamID, tt.targetRole)

			err := CanRemoveMember(actor, target)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, HasTextCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestCanRemoveMemberSelfRemovalDenied(t *testing.T) {
	teamID := uuid.New()

	// An owner cannot remove themself; ownership leaves only via transfer.
	actor := teamActor(teamID, RoleOwner)
	target := &Member{TeamID: teamID, UserID: actor.UserID, Role: RoleOwner}

	err := CanRemoveMember(actor, target)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeSelfActionForbidden))
}

func TestCanInviteRole(t *testing.T) {
	teamID := uuid.New()

	assert.NoError(t, CanInviteRole(teamActor(teamID, RoleAdmin), teamID, RoleAdmin))
	assert.NoError(t, CanInviteRole(teamActor(teamID, RoleOwner), teamID, RoleAdmin))

	err := CanInviteRole(teamActor(teamID, RoleAdmin), teamID, RoleOwner)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeRoleForbidden))

	err = CanInviteRole(teamActor(teamID, RoleMember), teamID, RoleMember)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeRoleForbidden))

	err = CanInviteRole(teamActor(teamID, RoleOwner), teamID, RoleSuperAdmin)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeRoleForbidden))

	err = CanInviteRole(teamActor(uuid.New(), RoleOwner), teamID, RoleMember)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeNotTeamMember))
}

func TestCanTransferOwnership(t *testing.T) {
	teamID := uuid.New()

	assert.NoError(t, CanTransferOwnership(teamActor(teamID, RoleOwner), teamMember(teamID, RoleAdmin)))
	assert.NoError(t, CanTransferOwnership(teamActor(teamID, RoleSuperAdmin), teamMember(teamID, RoleMember)))

	err := CanTransferOwnership(teamActor(teamID, RoleAdmin), teamMember(teamID, RoleMember))
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeRoleForbidden))

	actor := teamActor(teamID, RoleOwner)
	self := &Member{TeamID: teamID, UserID: actor.UserID, Role: RoleOwner}
	err = CanTransferOwnership(actor, self)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeSelfActionForbidden))

	err = CanTransferOwnership(teamActor(teamID, RoleOwner), teamMember(teamID, RoleSuperAdmin))
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeTargetIsPrivileged))
}

func TestCanUpdateAndDeleteTeam(t *testing.T) {
	teamID := uuid.New()

	assert.NoError(t, CanUpdateTeam(teamActor(teamID, RoleAdmin), teamID))
	assert.NoError(t, CanUpdateTeam(teamActor(teamID, RoleOwner), teamID))
	assert.Error(t, CanUpdateTeam(teamActor(teamID, RoleMember), teamID))

	// Admins may update the team but never delete it.
	assert.NoError(t, CanDeleteTeam(teamActor(teamID, RoleOwner), teamID))
	err := CanDeleteTeam(teamActor(teamID, RoleAdmin), teamID)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeRoleForbidden))

	super := ActorContext{UserID: uuid.New(), Role: RoleSuperAdmin}
	assert.NoError(t, CanDeleteTeam(super, teamID))
}

func TestCanImpersonate(t *testing.T) {
	admin := ActorContext{UserID: uuid.New(), Role: RoleSuperAdmin}

	assert.NoError(t, CanImpersonate(admin, uuid.New(), RoleMember))

	err := CanImpersonate(teamActor(uuid.New(), RoleOwner), uuid.New(), RoleMember)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeImpersonationUnauthorized))

	err = CanImpersonate(admin, admin.UserID, RoleMember)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeSelfImpersonation))

	err = CanImpersonate(admin, uuid.New(), RoleSuperAdmin)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeTargetIsPrivileged))
}

func TestDecideDispatch(t *testing.T) {
	teamID := uuid.New()
	actor := teamActor(teamID, RoleOwner)
	target := teamMember(teamID, RoleMember)

	decision := Decide(actor, OpUpdateRole, target, RoleAdmin)
	assert.True(t, decision.Allowed)
	assert.NoError(t, decision.Reason)

	decision = Decide(teamActor(teamID, RoleMember), OpRemoveMember, target, "")
	assert.False(t, decision.Allowed)
	assert.True(t, HasTextCode(decision.Reason, TextCodeRoleForbidden))

	decision = Decide(actor, Operation("bogus"), nil, "")
	assert.False(t, decision.Allowed)
	assert.True(t, HasTextCode(decision.Reason, TextCodeRoleForbidden))
}

package teams

import (
	"github.com/google/uuid"
)

// Operation names the mutations the policy engine gates.
type Operation string

const (
	OpUpdateRole        Operation = "member.update_role"
	OpRemoveMember      Operation = "member.remove"
	OpInviteMember      Operation = "member.invite"
	OpTransferOwnership Operation = "team.transfer_ownership"
	OpUpdateTeam        Operation = "team.update"
	OpDeleteTeam        Operation = "team.delete"
)

// Decision is the outcome of a policy check. Reason is nil when allowed and
// one of the structured denial errors otherwise.
type Decision struct {
	Allowed bool
	Reason  error
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason error) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Decide is the single pure entry point for membership and team gating:
// (actor, operation, target, payload role) -> allow | deny(reason). It has no
// side effects and touches no storage, so every decision is testable in
// isolation. Target may be nil for operations without a member target.
func Decide(actor ActorContext, op Operation, target *Member, role MemberRole) Decision {
	switch op {
	case OpUpdateRole:
		if err := CanAssignRole(actor, target, role); err != nil {
			return deny(err)
		}
	case OpRemoveMember:
		if err := CanRemoveMember(actor, target); err != nil {
			return deny(err)
		}
	case OpInviteMember:
		teamID := actor.TeamID
		if target != nil {
			teamID = target.TeamID
		}
		if err := CanInviteRole(actor, teamID, role); err != nil {
			return deny(err)
		}
	case OpTransferOwnership:
		if err := CanTransferOwnership(actor, target); err != nil {
			return deny(err)
		}
	case OpUpdateTeam:
		if err := CanUpdateTeam(actor, actor.TeamID); err != nil {
			return deny(err)
		}
	case OpDeleteTeam:
		if err := CanDeleteTeam(actor, actor.TeamID); err != nil {
			return deny(err)
		}
	default:
		return deny(ErrRoleForbidden.WithMetadata(map[string]any{
			"operation": string(op),
		}))
	}
	return allow()
}

// requireTeamActor rejects actors that hold no role in the team. The platform
// super_admin role is not scoped to a single team and passes.
func requireTeamActor(actor ActorContext, teamID uuid.UUID) error {
	if actor.IsSuperAdmin() {
		return nil
	}
	if !actor.IsMemberOf(teamID) {
		return ErrNotTeamMember.WithMetadata(map[string]any{
			"team_id": teamID.String(),
		})
	}
	return nil
}

// CanAssignRole checks whether actor may set target's role to newRole.
// Denials are ordered: team membership, self-targeting, privileged target,
// then the exact capability matrices (modify current role + assign new role).
func CanAssignRole(actor ActorContext, target *Member, newRole MemberRole) error {
	if target == nil {
		return ErrMemberNotFound
	}

	if err := requireTeamActor(actor, target.TeamID); err != nil {
		return err
	}

	// Self escalation and de-escalation are denied regardless of role.
	if target.UserID == actor.UserID {
		return ErrSelfActionForbidden
	}

	if target.Role == RoleSuperAdmin {
		return ErrTargetIsPrivileged
	}

	if !newRole.IsAssignable() {
		return ErrRoleForbidden.WithMetadata(map[string]any{
			"new_role": string(newRole),
		})
	}

	if !actor.Role.CanModify(target.Role) {
		return ErrRoleForbidden.WithMetadata(map[string]any{
			"actor_role":  string(actor.Role),
			"target_role": string(target.Role),
		})
	}

	if !actor.Role.CanAssign(newRole) {
		return ErrRoleForbidden.WithMetadata(map[string]any{
			"actor_role": string(actor.Role),
			"new_role":   string(newRole),
		})
	}

	return nil
}

// CanRemoveMember checks whether actor may remove target from the team.
func CanRemoveMember(actor ActorContext, target *Member) error {
	if target == nil {
		return ErrMemberNotFound
	}

	if err := requireTeamActor(actor, target.TeamID); err != nil {
		return err
	}

	if target.UserID == actor.UserID {
		return ErrSelfActionForbidden
	}

	if target.Role == RoleSuperAdmin {
		return ErrTargetIsPrivileged
	}

	if !actor.Role.CanRemove(target.Role) {
		return ErrRoleForbidden.WithMetadata(map[string]any{
			"actor_role":  string(actor.Role),
			"target_role": string(target.Role),
		})
	}

	return nil
}

// CanInviteRole checks whether actor may invite a new member at the given
// role. The invite matrix mirrors the assignment matrix: an inviter cannot
// hand out a role it lacks the authority to grant.
func CanInviteRole(actor ActorContext, teamID uuid.UUID, role MemberRole) error {
	if err := requireTeamActor(actor, teamID); err != nil {
		return err
	}

	if !role.IsAssignable() {
		return ErrRoleForbidden.WithMetadata(map[string]any{
			"invite_role": string(role),
		})
	}

	if !actor.Role.CanInvite(role) {
		return ErrRoleForbidden.WithMetadata(map[string]any{
			"actor_role":  string(actor.Role),
			"invite_role": string(role),
		})
	}

	return nil
}

// CanTransferOwnership checks whether actor may hand the team to target.
// Only the current owner or a super_admin may transfer; the atomic
// demote+promote itself lives in the membership store.
func CanTransferOwnership(actor ActorContext, target *Member) error {
	if target == nil {
		return ErrMemberNotFound
	}

	if err := requireTeamActor(actor, target.TeamID); err != nil {
		return err
	}

	if target.UserID == actor.UserID {
		return ErrSelfActionForbidden
	}

	if target.Role == RoleSuperAdmin {
		return ErrTargetIsPrivileged
	}

	if actor.Role != RoleOwner && actor.Role != RoleSuperAdmin {
		return ErrRoleForbidden.WithMetadata(map[string]any{
			"actor_role": string(actor.Role),
		})
	}

	return nil
}

// CanUpdateTeam gates team renames and settings updates. This is a
// hierarchical check: admin and above.
func CanUpdateTeam(actor ActorContext, teamID uuid.UUID) error {
	if err := requireTeamActor(actor, teamID); err != nil {
		return err
	}

	if !actor.Role.IsAtLeast(RoleAdmin) {
		return ErrRoleForbidden.WithMetadata(map[string]any{
			"actor_role": string(actor.Role),
		})
	}

	return nil
}

// CanDeleteTeam gates team deletion. Owner and super_admin only: admins may
// update a team but never delete it.
func CanDeleteTeam(actor ActorContext, teamID uuid.UUID) error {
	if err := requireTeamActor(actor, teamID); err != nil {
		return err
	}

	if !actor.Role.IsAtLeast(RoleOwner) {
		return ErrRoleForbidden.WithMetadata(map[string]any{
			"actor_role": string(actor.Role),
		})
	}

	return nil
}

// CanImpersonate checks the synchronous impersonation preconditions that do
// not require storage: actor privilege, self-targeting, and target privilege.
func CanImpersonate(actor ActorContext, targetID uuid.UUID, targetRole MemberRole) error {
	if !actor.IsSuperAdmin() {
		return ErrImpersonationUnauthorized
	}

	if targetID == actor.UserID {
		return ErrSelfImpersonation
	}

	if targetRole == RoleSuperAdmin {
		return ErrTargetIsPrivileged
	}

	return nil
}

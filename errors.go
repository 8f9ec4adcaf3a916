package teams

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to callers. Authorization denials are permanent and
// never retried; validation codes are caller fixable; conflict codes may
// warrant a single retry with fresh input.
const (
	TextCodeRoleForbidden             = "ROLE_FORBIDDEN"
	TextCodeSelfActionForbidden       = "SELF_ACTION_FORBIDDEN"
	TextCodeTargetIsPrivileged        = "TARGET_IS_PRIVILEGED"
	TextCodeNotTeamMember             = "NOT_TEAM_MEMBER"
	TextCodeImpersonationUnauthorized = "IMPERSONATION_UNAUTHORIZED"
	TextCodeSelfImpersonation         = "SELF_IMPERSONATION"
	TextCodeReasonRequired            = "REASON_REQUIRED"
	TextCodeInviteExpired             = "INVITE_EXPIRED"
	TextCodeEmailMismatch             = "EMAIL_MISMATCH"
	TextCodeAlreadyMember             = "ALREADY_MEMBER"
	TextCodeInviteNotPending          = "INVITE_NOT_PENDING"
	TextCodeInviteAlreadyPending      = "INVITE_ALREADY_PENDING"
	TextCodeInviteNotFound            = "INVITE_NOT_FOUND"
	TextCodeTeamExists                = "TEAM_EXISTS"
	TextCodeTeamNameRequired          = "TEAM_NAME_REQUIRED"
	TextCodeTeamNotFound              = "TEAM_NOT_FOUND"
	TextCodeMemberNotFound            = "MEMBER_NOT_FOUND"
	TextCodeUserNotFound              = "USER_NOT_FOUND"
	TextCodeSessionNotFound           = "SESSION_NOT_FOUND"
	TextCodeOwnershipConflict         = "OWNERSHIP_CONFLICT"
	TextCodeInvariantViolation        = "INVARIANT_VIOLATION"
	TextCodeCredentialIssuance        = "CREDENTIAL_ISSUANCE_FAILED"
)

// ErrRoleForbidden is returned when the actor's capability matrix does not
// cover the requested operation.
var ErrRoleForbidden = goerrors.New("actor role does not permit this operation", goerrors.CategoryAuthz).
	WithTextCode(TextCodeRoleForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrSelfActionForbidden is returned when an actor targets themself for a
// role change or removal, regardless of role.
var ErrSelfActionForbidden = goerrors.New("actors may not modify or remove their own membership", goerrors.CategoryAuthz).
	WithTextCode(TextCodeSelfActionForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrTargetIsPrivileged is returned when the target holds the super_admin
// role, which the ordinary membership and impersonation paths never touch.
var ErrTargetIsPrivileged = goerrors.New("target is a privileged platform actor", goerrors.CategoryAuthz).
	WithTextCode(TextCodeTargetIsPrivileged).
	WithCode(goerrors.CodeForbidden)

// ErrNotTeamMember is returned when the actor holds no role in the team.
var ErrNotTeamMember = goerrors.New("actor is not a member of this team", goerrors.CategoryAuthz).
	WithTextCode(TextCodeNotTeamMember).
	WithCode(goerrors.CodeForbidden)

// ErrImpersonationUnauthorized is returned when a non super_admin actor
// attempts to start an impersonation session.
var ErrImpersonationUnauthorized = goerrors.New("only super admins may impersonate", goerrors.CategoryAuthz).
	WithTextCode(TextCodeImpersonationUnauthorized).
	WithCode(goerrors.CodeForbidden)

// ErrSelfImpersonation is returned when an admin targets their own identity.
var ErrSelfImpersonation = goerrors.New("admins may not impersonate themselves", goerrors.CategoryAuthz).
	WithTextCode(TextCodeSelfImpersonation).
	WithCode(goerrors.CodeForbidden)

// ErrReasonRequired is returned when the impersonation reason is empty or too
// short to serve as an audit justification.
var ErrReasonRequired = goerrors.New("impersonation requires a descriptive reason", goerrors.CategoryValidation).
	WithTextCode(TextCodeReasonRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrInviteExpired is returned when accepting an invitation past expires_at.
var ErrInviteExpired = goerrors.New("invitation has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeInviteExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrEmailMismatch is returned when the accepting identity's email does not
// match the invited email. Blocks token replay by a different account.
var ErrEmailMismatch = goerrors.New("invitation was issued to a different email", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmailMismatch).
	WithCode(goerrors.CodeForbidden)

// ErrAlreadyMember is returned when the invited or added user already holds a
// membership. The store enforces single-team-per-user.
var ErrAlreadyMember = goerrors.New("user is already a team member", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyMember).
	WithCode(goerrors.CodeConflict)

// ErrInviteNotPending is returned when accepting or revoking an invitation
// that already reached a terminal status.
var ErrInviteNotPending = goerrors.New("invitation is not pending", goerrors.CategoryConflict).
	WithTextCode(TextCodeInviteNotPending).
	WithCode(goerrors.CodeConflict)

// ErrInviteAlreadyPending is returned when the (team, email) pair already has
// an outstanding pending invitation.
var ErrInviteAlreadyPending = goerrors.New("a pending invitation already exists for this email", goerrors.CategoryConflict).
	WithTextCode(TextCodeInviteAlreadyPending).
	WithCode(goerrors.CodeConflict)

// ErrInviteNotFound is returned when no invitation matches the identifier.
var ErrInviteNotFound = goerrors.New("invitation not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeInviteNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTeamExists is returned when creating a team whose name is taken.
var ErrTeamExists = goerrors.New("a team with this name already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeTeamExists).
	WithCode(goerrors.CodeConflict)

// ErrTeamNameRequired is returned when creating or renaming a team with an
// empty name.
var ErrTeamNameRequired = goerrors.New("team name must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeTeamNameRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrTeamNotFound is returned when no team matches the identifier.
var ErrTeamNotFound = goerrors.New("team not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTeamNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMemberNotFound is returned when the (team, user) pair has no membership.
var ErrMemberNotFound = goerrors.New("member not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeMemberNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUserNotFound is returned when the identity provider knows no such user.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrSessionNotFound is returned when no impersonation session matches the
// stop request.
var ErrSessionNotFound = goerrors.New("impersonation session not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrOwnershipConflict is returned when a concurrent ownership transfer won
// the race. Callers may retry once with fresh state.
var ErrOwnershipConflict = goerrors.New("ownership changed concurrently", goerrors.CategoryConflict).
	WithTextCode(TextCodeOwnershipConflict).
	WithCode(goerrors.CodeConflict)

// ErrInvariantViolation is returned when a write the policy engine approved
// would still break a structural invariant. It indicates a policy bug, not a
// legitimate access decision, and is deliberately distinct from the
// authorization denials above.
var ErrInvariantViolation = goerrors.New("write rejected by structural invariant", goerrors.CategoryInternal).
	WithTextCode(TextCodeInvariantViolation).
	WithCode(goerrors.CodeInternal)

// ErrCredentialIssuance is returned when the identity provider failed to mint
// a credential. The session row is closed out before this error surfaces so
// no half-open session remains.
var ErrCredentialIssuance = goerrors.New("identity provider failed to issue credential", goerrors.CategoryOperation).
	WithTextCode(TextCodeCredentialIssuance).
	WithCode(goerrors.CodeInternal)

// HasTextCode reports whether err carries the given structured text code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

package teams

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Team is the tenant account model
type Team struct {
	bun.BaseModel `bun:"table:teams,alias:tm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	BillingEmail  string     `bun:"billing_email" json:"billing_email,omitempty"`
	AddressLine1  string     `bun:"address_line1" json:"address_line1,omitempty"`
	AddressLine2  string     `bun:"address_line2" json:"address_line2,omitempty"`
	City          string     `bun:"city" json:"city,omitempty"`
	PostalCode    string     `bun:"postal_code" json:"postal_code,omitempty"`
	Country       string     `bun:"country" json:"country,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Member maps a (team, user) pair to a role. The composite primary key
// guarantees a user holds at most one role per team.
type Member struct {
	bun.BaseModel `bun:"table:team_members,alias:mbr"`
	TeamID        uuid.UUID  `bun:"team_id,pk,type:uuid" json:"team_id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	Role          MemberRole `bun:"member_role,notnull" json:"member_role,omitempty"`
	JoinedAt      *time.Time `bun:"joined_at,nullzero,default:current_timestamp" json:"joined_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	Team          *Team      `bun:"rel:belongs-to,join:team_id=id" json:"team,omitempty"`
}

// InviteStatus is the invitation lifecycle status
type InviteStatus = string

const (
	// InviteStatusPending is the only non-terminal status
	InviteStatusPending InviteStatus = "pending"
	// InviteStatusAccepted is terminal, the membership row exists
	InviteStatusAccepted InviteStatus = "accepted"
	// InviteStatusRevoked is terminal, covers explicit revocation and expiry
	InviteStatusRevoked InviteStatus = "revoked"
)

// Invitation tracks a pending team invitation. The raw token is never stored,
// only its hash; at most one pending invitation exists per (team, email).
type Invitation struct {
	bun.BaseModel `bun:"table:team_invitations,alias:inv"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	TeamID        uuid.UUID    `bun:"team_id,notnull,type:uuid" json:"team_id,omitempty"`
	Email         string       `bun:"email,notnull" json:"email,omitempty"`
	InvitedBy     uuid.UUID    `bun:"invited_by,notnull,type:uuid" json:"invited_by,omitempty"`
	Role          MemberRole   `bun:"member_role,notnull" json:"member_role,omitempty"`
	TokenHash     string       `bun:"token_hash,notnull" json:"-"`
	Status        InviteStatus `bun:"status,notnull,default:'pending'" json:"status,omitempty"`
	ExpiresAt     time.Time    `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	AcceptedAt    *time.Time   `bun:"accepted_at,nullzero" json:"accepted_at,omitempty"`
	RevokedAt     *time.Time   `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	Team          *Team        `bun:"rel:belongs-to,join:team_id=id" json:"team,omitempty"`
}

// IsPending reports whether the invitation is still open, expiry included.
// An invitation past expires_at is treated as revoked on access even if no
// sweep has flipped the status yet.
func (i *Invitation) IsPending(now time.Time) bool {
	return i.Status == InviteStatusPending && now.Before(i.ExpiresAt)
}

// IsExpired reports whether the invitation outlived its expiry while still
// marked pending.
func (i *Invitation) IsExpired(now time.Time) bool {
	return i.Status == InviteStatusPending && !now.Before(i.ExpiresAt)
}

// Impersonation end reasons recorded on the audit row.
const (
	// EndReasonStopped means the session was explicitly terminated
	EndReasonStopped = "stopped"
	// EndReasonExpired means the expiry sweep closed the session
	EndReasonExpired = "expired"
	// EndReasonSuperseded means the same admin started a newer session
	EndReasonSuperseded = "superseded"
	// EndReasonIssuanceFailed means no credential was ever issued for the session
	EndReasonIssuanceFailed = "issuance_failed"
)

// ImpersonationSession is the durable audit record for an identity-assumption
// session. The row is written before any credential is issued so a crash
// immediately after still leaves an auditable session start.
type ImpersonationSession struct {
	bun.BaseModel `bun:"table:impersonation_sessions,alias:imps"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AdminUserID   uuid.UUID  `bun:"admin_user_id,notnull,type:uuid" json:"admin_user_id,omitempty"`
	TargetUserID  uuid.UUID  `bun:"target_user_id,notnull,type:uuid" json:"target_user_id,omitempty"`
	Reason        string     `bun:"reason,notnull" json:"reason,omitempty"`
	StartedAt     time.Time  `bun:"started_at,notnull" json:"started_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	EndedAt       *time.Time `bun:"ended_at,nullzero" json:"ended_at,omitempty"`
	EndReason     string     `bun:"end_reason" json:"end_reason,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsActive reports whether the session is live at the given instant. A session
// whose expires_at has passed is logically ended for every read path even when
// ended_at is still null, so a lagging close-out never widens the window.
func (s *ImpersonationSession) IsActive(now time.Time) bool {
	if s.EndedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// IsEnded reports whether the session reached a terminal state, logical expiry
// included.
func (s *ImpersonationSession) IsEnded(now time.Time) bool {
	return !s.IsActive(now)
}

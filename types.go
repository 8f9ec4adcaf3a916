package teams

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an identity as known by the external
// identity provider.
type Identity interface {
	ID() string
	Email() string
	Role() string
}

// Credential is an opaque session credential minted by the identity provider.
// Metadata carries impersonation tags (acting_as, original_admin_id,
// session_id) so downstream systems can distinguish impersonated activity.
type Credential struct {
	Token     string         `json:"token,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	IssuedAt  time.Time      `json:"issued_at,omitempty"`
	ExpiresAt time.Time      `json:"expires_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IsZero reports whether the credential carries no token.
func (c Credential) IsZero() bool {
	return c.Token == ""
}

// IdentityProvider is the external collaborator that owns user records and
// credential issuance. Magic-link or OTP mechanics are its implementation
// detail; this package only needs the ability to mint a session for a known
// identity.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email string) (Identity, error)
	FindUserByID(ctx context.Context, id string) (Identity, error)
	FindUserByEmail(ctx context.Context, email string) (Identity, error)
	GenerateOneTimeLink(ctx context.Context, email string, metadata map[string]any) (string, error)
	VerifyOneTimeToken(ctx context.Context, token string) (Credential, error)
	IssueSessionFor(ctx context.Context, identity Identity, metadata map[string]any) (Credential, error)
	DeleteUser(ctx context.Context, id string) error
}

// Config holds team management options
type Config interface {
	GetImpersonationTTL() time.Duration
	GetInvitationTTL() time.Duration
	GetMinReasonLength() int
	GetSingleActiveImpersonation() bool
}

// Default configuration values.
const (
	// DefaultImpersonationTTL is fixed at session creation and never extended.
	DefaultImpersonationTTL = 30 * time.Minute
	// DefaultInvitationTTL bounds how long an invitation stays acceptable.
	DefaultInvitationTTL = 7 * 24 * time.Hour
	// DefaultMinReasonLength keeps audit reasons descriptive, not placeholders.
	DefaultMinReasonLength = 10
)

// SimpleConfig is a plain struct Config implementation with sane defaults.
type SimpleConfig struct {
	ImpersonationTTL          time.Duration
	InvitationTTL             time.Duration
	MinReasonLength           int
	AllowConcurrentImpersonas bool
}

func (c SimpleConfig) GetImpersonationTTL() time.Duration {
	if c.ImpersonationTTL <= 0 {
		return DefaultImpersonationTTL
	}
	return c.ImpersonationTTL
}

func (c SimpleConfig) GetInvitationTTL() time.Duration {
	if c.InvitationTTL <= 0 {
		return DefaultInvitationTTL
	}
	return c.InvitationTTL
}

func (c SimpleConfig) GetMinReasonLength() int {
	if c.MinReasonLength <= 0 {
		return DefaultMinReasonLength
	}
	return c.MinReasonLength
}

func (c SimpleConfig) GetSingleActiveImpersonation() bool {
	return !c.AllowConcurrentImpersonas
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] TEAMS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] TEAMS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] TEAMS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] TEAMS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

package teams

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SessionClaims are the JWT claims minted by JWTSessionIssuer. The
// impersonation fields are only set on impersonated sessions so ordinary
// tokens stay clean.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email           string `json:"email,omitempty"`
	MemberRole      string `json:"member_role,omitempty"`
	ActingAs        bool   `json:"acting_as,omitempty"`
	OriginalAdminID string `json:"original_admin_id,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
}

// JWTSessionIssuer mints HS256 session credentials for identities. It backs
// the reference IdentityProvider; deployments fronted by an external auth
// service supply their own IssueSessionFor instead.
type JWTSessionIssuer struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// NewJWTSessionIssuer creates a new JWTSessionIssuer instance
func NewJWTSessionIssuer(signingKey []byte, ttl time.Duration, issuer string, audience jwt.ClaimStrings, logger Logger) *JWTSessionIssuer {
	if logger == nil {
		logger = defLogger{}
	}
	return &JWTSessionIssuer{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		audience:   audience,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (ts *JWTSessionIssuer) WithClock(clock func() time.Time) *JWTSessionIssuer {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// Issue mints a Credential for the given identity. Metadata keys acting_as,
// original_admin_id, and session_id are lifted into first class claims; the
// rest rides along on the credential only.
func (ts *JWTSessionIssuer) Issue(identity Identity, metadata map[string]any) (Credential, error) {
	if identity == nil {
		return Credential{}, goerrors.New("identity is required", goerrors.CategoryBadInput)
	}

	now := ts.now()
	expiresAt := now.Add(ts.ttl)

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:      identity.Email(),
		MemberRole: identity.Role(),
	}

	if actingAs, ok := metadata["acting_as"].(bool); ok && actingAs {
		claims.ActingAs = true
		if adminID, ok := metadata["original_admin_id"].(string); ok {
			claims.OriginalAdminID = adminID
		}
		if sessionID, ok := metadata["session_id"].(string); ok {
			claims.SessionID = sessionID
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return Credential{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session JWT")
	}

	return Credential{
		Token:     signed,
		UserID:    identity.ID(),
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		Metadata:  metadata,
	}, nil
}

// Validate parses a token string and returns its claims.
func (ts *JWTSessionIssuer) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("session issuer encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid session token")
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("session issuer could not decode or validate claims")
	return nil, goerrors.New("unable to decode session claims", goerrors.CategoryAuth)
}

// IsImpersonated reports whether the claims belong to an impersonated session.
func (c *SessionClaims) IsImpersonated() bool {
	return c != nil && c.ActingAs
}

package teams

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// MemberProfile pairs a membership row with the identity provider's profile
// for the user. Profile is nil when the provider no longer knows the user.
type MemberProfile struct {
	Member  *Member  `json:"member"`
	Profile Identity `json:"profile,omitempty"`
}

// MembersWithProfiles loads a team roster and resolves each member's profile
// through the identity provider. Membership rows stay authoritative; profiles
// are transient decorations.
func MembersWithProfiles(ctx context.Context, members Members, provider IdentityProvider, teamID uuid.UUID) ([]MemberProfile, error) {
	records, err := members.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list team members")
	}

	roster := make([]MemberProfile, 0, len(records))
	for _, record := range records {
		profile, err := provider.FindUserByID(ctx, record.UserID.String())
		if err != nil && !HasTextCode(err, TextCodeUserNotFound) {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "identity provider lookup failed")
		}
		roster = append(roster, MemberProfile{
			Member:  record,
			Profile: profile,
		})
	}

	return roster, nil
}

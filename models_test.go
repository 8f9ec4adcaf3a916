package teams

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestImpersonationSessionLogicalExpiry(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	session := &ImpersonationSession{
		ID:           uuid.New(),
		AdminUserID:  uuid.New(),
		TargetUserID: uuid.New(),
		StartedAt:    start,
		ExpiresAt:    start.Add(30 * time.Minute),
	}

	assert.True(t, session.IsActive(start))
	assert.True(t, session.IsActive(start.Add(29*time.Minute)))

	// Past expires_at the session is ended even though no close-out write
	// has flipped ended_at yet.
	assert.False(t, session.IsActive(start.Add(30*time.Minute)))
	assert.False(t, session.IsActive(start.Add(31*time.Minute)))
	assert.Nil(t, session.EndedAt)
	assert.True(t, session.IsEnded(start.Add(31*time.Minute)))
}

func TestImpersonationSessionEndedAtWins(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	endedAt := start.Add(5 * time.Minute)

	session := &ImpersonationSession{
		StartedAt: start,
		ExpiresAt: start.Add(30 * time.Minute),
		EndedAt:   &endedAt,
		EndReason: EndReasonStopped,
	}

	assert.False(t, session.IsActive(start.Add(10*time.Minute)))
}

func TestInvitationLifecycleChecks(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	invite := &Invitation{
		ID:        uuid.New(),
		Status:    InviteStatusPending,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}

	assert.True(t, invite.IsPending(now))
	assert.False(t, invite.IsExpired(now))

	past := now.Add(8 * 24 * time.Hour)
	assert.False(t, invite.IsPending(past))
	assert.True(t, invite.IsExpired(past))

	invite.Status = InviteStatusRevoked
	assert.False(t, invite.IsPending(now))
	assert.False(t, invite.IsExpired(past))
}

func TestInviteTokenRoundTrip(t *testing.T) {
	token, err := NewInviteToken()
	assert.NoError(t, err)
	assert.Len(t, token, 64)

	other, err := NewInviteToken()
	assert.NoError(t, err)
	assert.NotEqual(t, token, other)

	hash := HashInviteToken(token)
	assert.Len(t, hash, 64)
	assert.NotEqual(t, token, hash)
	assert.Equal(t, hash, HashInviteToken(token))
}

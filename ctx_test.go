package teams

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestActorContextRoundTrip(t *testing.T) {
	actor := ActorContext{
		UserID: uuid.New(),
		Email:  "pepe.rone@example.com",
		Role:   RoleAdmin,
		TeamID: uuid.New(),
	}

	ctx := WithActor(context.Background(), actor)

	got, ok := ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, actor, got)
}

func TestActorFromContextMissing(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)
}

func TestActorContextMembership(t *testing.T) {
	teamID := uuid.New()
	actor := ActorContext{UserID: uuid.New(), Role: RoleMember, TeamID: teamID}

	assert.True(t, actor.IsMemberOf(teamID))
	assert.False(t, actor.IsMemberOf(uuid.New()))
	assert.False(t, actor.IsSuperAdmin())

	// An actor with no resolved role is a member of nothing.
	anon := ActorContext{UserID: uuid.New(), TeamID: teamID}
	assert.False(t, anon.IsMemberOf(teamID))

	super := ActorContext{UserID: uuid.New(), Role: RoleSuperAdmin}
	assert.True(t, super.IsSuperAdmin())
}

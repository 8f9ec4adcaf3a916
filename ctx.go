package teams

import (
	"context"

	"github.com/google/uuid"
)

var actorCtxKey = &contextKey{"actor"}

type contextKey struct {
	name string
}

// ActorContext identifies the authenticated caller for a single request. It
// is resolved once per request and threaded explicitly through every
// operation; there is no process-wide "current user".
type ActorContext struct {
	UserID uuid.UUID
	Email  string
	Role   MemberRole
	TeamID uuid.UUID
}

// IsMemberOf reports whether the actor was resolved against the given team.
func (a ActorContext) IsMemberOf(teamID uuid.UUID) bool {
	return a.TeamID == teamID && a.Role.IsValid()
}

// IsSuperAdmin reports whether the actor holds the platform role.
func (a ActorContext) IsSuperAdmin() bool {
	return a.Role == RoleSuperAdmin
}

// WithActor sets the ActorContext in the given context
func WithActor(ctx context.Context, actor ActorContext) context.Context {
	return context.WithValue(ctx, actorCtxKey, actor)
}

// ActorFromContext finds the actor from the context.
func ActorFromContext(ctx context.Context) (ActorContext, bool) {
	raw, ok := ctx.Value(actorCtxKey).(ActorContext)
	return raw, ok
}

package teams

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventTeamCreated          ActivityEventType = "team.created"
	ActivityEventTeamUpdated          ActivityEventType = "team.updated"
	ActivityEventTeamDeleted          ActivityEventType = "team.deleted"
	ActivityEventMemberAdded          ActivityEventType = "team.member.added"
	ActivityEventMemberRoleChanged    ActivityEventType = "team.member.role_changed"
	ActivityEventMemberRemoved        ActivityEventType = "team.member.removed"
	ActivityEventOwnershipTransferred ActivityEventType = "team.ownership.transferred"
	ActivityEventInviteCreated        ActivityEventType = "team.invite.created"
	ActivityEventInviteAccepted       ActivityEventType = "team.invite.accepted"
	ActivityEventInviteRevoked        ActivityEventType = "team.invite.revoked"
	ActivityEventImpersonationStarted ActivityEventType = "auth.impersonation.started"
	ActivityEventImpersonationStopped ActivityEventType = "auth.impersonation.stopped"
	ActivityEventImpersonationFailure ActivityEventType = "auth.impersonation.failure"
)

// ActivityEvent captures audit-friendly information about an action: who did
// what to whom, the outcome, and when.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	TeamID     string
	TargetID   string
	FromRole   MemberRole
	ToRole     MemberRole
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// emitActivity records the event best-effort; sink failures are logged and
// never block the operation that produced them.
func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if logger == nil {
		logger = defLogger{}
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		logger.Warn("activity sink record error: %v", err)
	}
}

func actorRefFromContext(actor ActorContext) ActorRef {
	if actor.UserID == uuid.Nil {
		return ActorRef{Type: "system"}
	}
	return ActorRef{ID: actor.UserID.String(), Type: "user"}
}

package teams

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DeleteTeamMessage struct {
	TeamID     uuid.UUID    `json:"team_id"`
	Actor      ActorContext `json:"-"`
	OnResponse func(resp *DeleteTeamResponse)
}

func (e DeleteTeamMessage) Type() string { return "team.delete" }

type DeleteTeamResponse struct {
	Success bool
}

type DeleteTeamHandler struct {
	repo   RepositoryManager
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func NewDeleteTeamHandler(repo RepositoryManager) *DeleteTeamHandler {
	return &DeleteTeamHandler{
		repo:   repo,
		sink:   noopActivitySink{},
		logger: defLogger{},
		now:    time.Now,
	}
}

func (h *DeleteTeamHandler) WithLogger(logger Logger) *DeleteTeamHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *DeleteTeamHandler) WithActivitySink(sink ActivitySink) *DeleteTeamHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *DeleteTeamHandler) WithClock(clock func() time.Time) *DeleteTeamHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *DeleteTeamHandler) Execute(ctx context.Context, event DeleteTeamMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during team deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteTeamHandler) execute(ctx context.Context, event DeleteTeamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// Owner or super_admin only; admins may update a team but never delete.
	if err := CanDeleteTeam(event.Actor, event.TeamID); err != nil {
		return err
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Deleting a team cascades to every membership and invitation.
		return h.repo.Teams().DeleteCascadeTx(ctx, tx, event.TeamID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete team")
	}

	emitActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType:  ActivityEventTeamDeleted,
		Actor:      actorRefFromContext(event.Actor),
		TeamID:     event.TeamID.String(),
		OccurredAt: h.now(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&DeleteTeamResponse{Success: true})
	}

	return nil
}

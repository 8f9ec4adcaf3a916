package teams

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RemoveMemberMessage struct {
	TeamID     uuid.UUID    `json:"team_id"`
	UserID     uuid.UUID    `json:"user_id"`
	Actor      ActorContext `json:"-"`
	OnResponse func(resp *RemoveMemberResponse)
}

func (e RemoveMemberMessage) Type() string { return "team.remove_member" }

type RemoveMemberResponse struct {
	Removed *Member
	Success bool
}

type RemoveMemberHandler struct {
	repo   RepositoryManager
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func NewRemoveMemberHandler(repo RepositoryManager) *RemoveMemberHandler {
	return &RemoveMemberHandler{
		repo:   repo,
		sink:   noopActivitySink{},
		logger: defLogger{},
		now:    time.Now,
	}
}

func (h *RemoveMemberHandler) WithLogger(logger Logger) *RemoveMemberHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RemoveMemberHandler) WithActivitySink(sink ActivitySink) *RemoveMemberHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *RemoveMemberHandler) WithClock(clock func() time.Time) *RemoveMemberHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *RemoveMemberHandler) Execute(ctx context.Context, event RemoveMemberMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during member removal",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RemoveMemberHandler) execute(ctx context.Context, event RemoveMemberMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &RemoveMemberResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		target, err := h.repo.Members().GetTx(ctx, tx, event.TeamID, event.UserID)
		if err != nil {
			return err
		}
		resp.Removed = target

		if err := CanRemoveMember(event.Actor, target); err != nil {
			return err
		}

		return h.repo.Members().RemoveMemberTx(ctx, tx, event.TeamID, event.UserID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove member")
	}

	emitActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType:  ActivityEventMemberRemoved,
		Actor:      actorRefFromContext(event.Actor),
		TeamID:     event.TeamID.String(),
		TargetID:   event.UserID.String(),
		FromRole:   resp.Removed.Role,
		OccurredAt: h.now(),
	})

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

package teams

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UpdateMemberRoleMessage struct {
	TeamID     uuid.UUID    `json:"team_id"`
	UserID     uuid.UUID    `json:"user_id"`
	NewRole    MemberRole   `json:"member_role" example:"admin"`
	Actor      ActorContext `json:"-"`
	OnResponse func(resp *UpdateMemberRoleResponse)
}

func (e UpdateMemberRoleMessage) Type() string { return "team.update_member_role" }

type UpdateMemberRoleResponse struct {
	Member   *Member
	FromRole MemberRole
	Success  bool
}

type UpdateMemberRoleHandler struct {
	repo   RepositoryManager
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func NewUpdateMemberRoleHandler(repo RepositoryManager) *UpdateMemberRoleHandler {
	return &UpdateMemberRoleHandler{
		repo:   repo,
		sink:   noopActivitySink{},
		logger: defLogger{},
		now:    time.Now,
	}
}

func (h *UpdateMemberRoleHandler) WithLogger(logger Logger) *UpdateMemberRoleHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateMemberRoleHandler) WithActivitySink(sink ActivitySink) *UpdateMemberRoleHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *UpdateMemberRoleHandler) WithClock(clock func() time.Time) *UpdateMemberRoleHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *UpdateMemberRoleHandler) Execute(ctx context.Context, event UpdateMemberRoleMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during role update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateMemberRoleHandler) execute(ctx context.Context, event UpdateMemberRoleMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &UpdateMemberRoleResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		target, err := h.repo.Members().GetTx(ctx, tx, event.TeamID, event.UserID)
		if err != nil {
			return err
		}
		resp.FromRole = target.Role

		// Policy first; the store re-checks the structural invariants on
		// its own.
		if err := CanAssignRole(event.Actor, target, event.NewRole); err != nil {
			return err
		}

		updated, err := h.repo.Members().UpdateRoleTx(ctx, tx, event.TeamID, event.UserID, target.Role, event.NewRole)
		if err != nil {
			return err
		}
		resp.Member = updated

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update member role")
	}

	emitActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType:  ActivityEventMemberRoleChanged,
		Actor:      actorRefFromContext(event.Actor),
		TeamID:     event.TeamID.String(),
		TargetID:   event.UserID.String(),
		FromRole:   resp.FromRole,
		ToRole:     event.NewRole,
		OccurredAt: h.now(),
	})

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

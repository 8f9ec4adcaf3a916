package teams

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type TransferOwnershipMessage struct {
	TeamID     uuid.UUID    `json:"team_id"`
	NewOwnerID uuid.UUID    `json:"new_owner_id"`
	Actor      ActorContext `json:"-"`
	OnResponse func(resp *TransferOwnershipResponse)
}

func (e TransferOwnershipMessage) Type() string { return "team.transfer_ownership" }

type TransferOwnershipResponse struct {
	PreviousOwnerID uuid.UUID
	NewOwnerID      uuid.UUID
	Success         bool
}

type TransferOwnershipHandler struct {
	repo   RepositoryManager
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func NewTransferOwnershipHandler(repo RepositoryManager) *TransferOwnershipHandler {
	return &TransferOwnershipHandler{
		repo:   repo,
		sink:   noopActivitySink{},
		logger: defLogger{},
		now:    time.Now,
	}
}

func (h *TransferOwnershipHandler) WithLogger(logger Logger) *TransferOwnershipHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *TransferOwnershipHandler) WithActivitySink(sink ActivitySink) *TransferOwnershipHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *TransferOwnershipHandler) WithClock(clock func() time.Time) *TransferOwnershipHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *TransferOwnershipHandler) Execute(ctx context.Context, event TransferOwnershipMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during ownership transfer",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *TransferOwnershipHandler) execute(ctx context.Context, event TransferOwnershipMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &TransferOwnershipResponse{NewOwnerID: event.NewOwnerID}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		target, err := h.repo.Members().GetTx(ctx, tx, event.TeamID, event.NewOwnerID)
		if err != nil {
			return err
		}

		if err := CanTransferOwnership(event.Actor, target); err != nil {
			return err
		}

		// The demoted side is the actor when the owner transfers their own
		// team; a super_admin transfers on behalf of the current owner.
		currentOwnerID := event.Actor.UserID
		if event.Actor.IsSuperAdmin() {
			members, err := h.repo.Members().ListByTeamTx(ctx, tx, event.TeamID)
			if err != nil {
				return err
			}
			currentOwnerID = uuid.Nil
			for _, m := range members {
				if m.Role == RoleOwner {
					currentOwnerID = m.UserID
					break
				}
			}
			if currentOwnerID == uuid.Nil {
				return ErrInvariantViolation.WithMetadata(map[string]any{
					"team_id":   event.TeamID.String(),
					"invariant": "exactly one owner per team",
				})
			}
			if currentOwnerID == event.NewOwnerID {
				return ErrOwnershipConflict.WithMetadata(map[string]any{
					"team_id": event.TeamID.String(),
				})
			}
		}
		resp.PreviousOwnerID = currentOwnerID

		// Demote and promote are one transaction; if either half fails the
		// whole transfer rolls back and the single-owner invariant holds.
		return h.repo.Members().TransferOwnershipTx(ctx, tx, event.TeamID, currentOwnerID, event.NewOwnerID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to transfer ownership")
	}

	emitActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType:  ActivityEventOwnershipTransferred,
		Actor:      actorRefFromContext(event.Actor),
		TeamID:     event.TeamID.String(),
		TargetID:   event.NewOwnerID.String(),
		FromRole:   RoleOwner,
		ToRole:     RoleOwner,
		OccurredAt: h.now(),
		Metadata: map[string]any{
			"previous_owner_id": resp.PreviousOwnerID.String(),
		},
	})

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

package teams

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RevokeInvitationMessage struct {
	InviteID   uuid.UUID    `json:"invite_id"`
	Actor      ActorContext `json:"-"`
	OnResponse func(resp *RevokeInvitationResponse)
}

func (e RevokeInvitationMessage) Type() string { return "team.revoke_invitation" }

type RevokeInvitationResponse struct {
	// Revoked is true when this call performed the revocation; false when
	// the invitation was already terminal or unknown. Neither case is an
	// error: revocation is idempotent and does not leak invite existence.
	Revoked bool
	Success bool
}

type RevokeInvitationHandler struct {
	repo   RepositoryManager
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func NewRevokeInvitationHandler(repo RepositoryManager) *RevokeInvitationHandler {
	return &RevokeInvitationHandler{
		repo:   repo,
		sink:   noopActivitySink{},
		logger: defLogger{},
		now:    time.Now,
	}
}

func (h *RevokeInvitationHandler) WithLogger(logger Logger) *RevokeInvitationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RevokeInvitationHandler) WithActivitySink(sink ActivitySink) *RevokeInvitationHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *RevokeInvitationHandler) WithClock(clock func() time.Time) *RevokeInvitationHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *RevokeInvitationHandler) Execute(ctx context.Context, event RevokeInvitationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invitation revocation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RevokeInvitationHandler) execute(ctx context.Context, event RevokeInvitationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &RevokeInvitationResponse{}
	now := h.now()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		invite, err := h.repo.Invitations().GetInvitationTx(ctx, tx, event.InviteID)
		if err != nil {
			if HasTextCode(err, TextCodeInviteNotFound) {
				// Unknown id is a quiet no-op, same as already-terminal.
				return nil
			}
			return err
		}

		// Revocation requires the same authority as removing a member at
		// the invited role.
		if err := requireTeamActor(event.Actor, invite.TeamID); err != nil {
			return err
		}
		if !event.Actor.Role.CanRemove(invite.Role) {
			return ErrRoleForbidden.WithMetadata(map[string]any{
				"actor_role":  string(event.Actor.Role),
				"invite_role": string(invite.Role),
			})
		}

		revoked, err := h.repo.Invitations().MarkRevokedTx(ctx, tx, invite.ID, now)
		if err != nil {
			return err
		}
		resp.Revoked = revoked

		if revoked {
			emitActivity(ctx, h.sink, h.logger, ActivityEvent{
				EventType: ActivityEventInviteRevoked,
				Actor:     actorRefFromContext(event.Actor),
				TeamID:    invite.TeamID.String(),
				ToRole:    invite.Role,
				Metadata: map[string]any{
					"invite_id": invite.ID.String(),
				},
				OccurredAt: now,
			})
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke invitation")
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

package teams

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AcceptInvitationMessage struct {
	// Token is the raw invitation token presented by the accepting user.
	Token string `json:"token" doc:"Raw invitation token."`
	// ActingEmail is the authenticated email of the accepting identity. It
	// must match the invited email exactly; tokens are not transferable.
	ActingEmail string `json:"acting_email" example:"pepe.rone@example.com"`
	// ActingUserID identifies the accepting identity when already known.
	// When nil the identity is resolved (or created) through the provider.
	ActingUserID uuid.UUID `json:"acting_user_id,omitempty"`
	OnResponse   func(resp *AcceptInvitationResponse)
}

func (e AcceptInvitationMessage) Type() string { return "team.accept_invitation" }

// Validate will run validation rules
func (e AcceptInvitationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
		validation.Field(&e.ActingEmail, validation.Required),
	)
}

type AcceptInvitationResponse struct {
	Invitation *Invitation
	Member     *Member
	Success    bool
}

type AcceptInvitationHandler struct {
	repo     RepositoryManager
	provider IdentityProvider
	sink     ActivitySink
	logger   Logger
	now      func() time.Time
}

func NewAcceptInvitationHandler(repo RepositoryManager, provider IdentityProvider) *AcceptInvitationHandler {
	return &AcceptInvitationHandler{
		repo:     repo,
		provider: provider,
		sink:     noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (h *AcceptInvitationHandler) WithLogger(logger Logger) *AcceptInvitationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *AcceptInvitationHandler) WithActivitySink(sink ActivitySink) *AcceptInvitationHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *AcceptInvitationHandler) WithClock(clock func() time.Time) *AcceptInvitationHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *AcceptInvitationHandler) Execute(ctx context.Context, event AcceptInvitationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invitation acceptance",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AcceptInvitationHandler) execute(ctx context.Context, event AcceptInvitationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid acceptance payload")
	}

	resp := &AcceptInvitationResponse{}
	now := h.now()
	email := strings.ToLower(strings.TrimSpace(event.ActingEmail))

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		invite, err := h.repo.Invitations().GetByTokenHashTx(ctx, tx, HashInviteToken(event.Token))
		if err != nil {
			return err
		}
		resp.Invitation = invite

		if invite.Status != InviteStatusPending {
			return ErrInviteNotPending.WithMetadata(map[string]any{
				"invite_id": invite.ID.String(),
				"status":    invite.Status,
			})
		}

		// Expiry is treated as revocation on access. The settle write happens
		// after this transaction: returning an error here rolls everything
		// back, so marking the row revoked inside would be undone.
		if invite.IsExpired(now) {
			return ErrInviteExpired.WithMetadata(map[string]any{
				"invite_id": invite.ID.String(),
			})
		}

		if invite.Email != email {
			return ErrEmailMismatch.WithMetadata(map[string]any{
				"invite_id": invite.ID.String(),
			})
		}

		userID := event.ActingUserID
		if userID == uuid.Nil {
			identity, err := h.resolveIdentity(ctx, email)
			if err != nil {
				return err
			}
			if userID, err = uuid.Parse(identity.ID()); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "identity provider returned a malformed user id")
			}
		}

		// Membership creation and invite close-out are one atomic pair; a
		// crash between them never leaves an accepted invite with no
		// membership. AddMemberTx also enforces single-team-per-user.
		member := &Member{
			TeamID: invite.TeamID,
			UserID: userID,
			Role:   invite.Role,
		}
		if _, err := h.repo.Members().AddMemberTx(ctx, tx, member); err != nil {
			return err
		}
		resp.Member = member

		return h.repo.Invitations().MarkAcceptedTx(ctx, tx, invite.ID, now)
	})

	if err != nil {
		// Settle the expired row in its own transaction so the rollback of
		// the failed accept does not undo the close-out.
		if HasTextCode(err, TextCodeInviteExpired) && resp.Invitation != nil {
			settleErr := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				_, err := h.repo.Invitations().MarkRevokedTx(ctx, tx, resp.Invitation.ID, now)
				return err
			})
			if settleErr != nil {
				h.logger.Warn("failed to settle expired invitation %s: %v", resp.Invitation.ID, settleErr)
			}
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to accept invitation")
	}

	emitActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType: ActivityEventInviteAccepted,
		Actor:     ActorRef{ID: resp.Member.UserID.String(), Type: "user"},
		TeamID:    resp.Member.TeamID.String(),
		TargetID:  resp.Member.UserID.String(),
		ToRole:    resp.Member.Role,
		Metadata: map[string]any{
			"invite_id": resp.Invitation.ID.String(),
		},
		OccurredAt: now,
	})

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *AcceptInvitationHandler) resolveIdentity(ctx context.Context, email string) (Identity, error) {
	identity, err := h.provider.FindUserByEmail(ctx, email)
	if err == nil && identity != nil {
		return identity, nil
	}
	if err != nil && !HasTextCode(err, TextCodeUserNotFound) {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "identity provider lookup failed")
	}

	identity, err = h.provider.CreateUser(ctx, email)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "identity provider failed to create user")
	}
	return identity, nil
}

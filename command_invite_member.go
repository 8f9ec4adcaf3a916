package teams

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type InviteMemberMessage struct {
	TeamID     uuid.UUID    `json:"team_id" doc:"Team the invitation belongs to."`
	Email      string       `json:"email" example:"pepe.rone@example.com" doc:"Invitee email."`
	Role       MemberRole   `json:"member_role" example:"member" doc:"Role granted on acceptance."`
	Actor      ActorContext `json:"-"`
	OnResponse func(resp *InviteMemberResponse)
}

func (e InviteMemberMessage) Type() string { return "team.invite_member" }

// Validate will run validation rules
func (e InviteMemberMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Role, validation.Required),
	)
}

type InviteMemberResponse struct {
	Invitation *Invitation
	// Token is the raw single-use token; it is never persisted.
	Token string
	// Link is the one-time link minted by the identity provider.
	Link    string
	Success bool
}

type InviteMemberHandler struct {
	repo     RepositoryManager
	provider IdentityProvider
	config   Config
	sink     ActivitySink
	logger   Logger
	now      func() time.Time
}

func NewInviteMemberHandler(repo RepositoryManager, provider IdentityProvider, config Config) *InviteMemberHandler {
	if config == nil {
		config = SimpleConfig{}
	}
	return &InviteMemberHandler{
		repo:     repo,
		provider: provider,
		config:   config,
		sink:     noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (h *InviteMemberHandler) WithLogger(logger Logger) *InviteMemberHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InviteMemberHandler) WithActivitySink(sink ActivitySink) *InviteMemberHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *InviteMemberHandler) WithClock(clock func() time.Time) *InviteMemberHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *InviteMemberHandler) Execute(ctx context.Context, event InviteMemberMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during member invitation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InviteMemberHandler) execute(ctx context.Context, event InviteMemberMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid invitation payload")
	}

	// Policy first: the invite matrix mirrors the assignment matrix.
	if err := CanInviteRole(event.Actor, event.TeamID, event.Role); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(event.Email))

	// Single-team policy: an email that already maps to a member of any team
	// cannot be invited.
	if identity, err := h.provider.FindUserByEmail(ctx, email); err == nil && identity != nil {
		userID, parseErr := uuid.Parse(identity.ID())
		if parseErr == nil {
			memberships, listErr := h.repo.Members().ListByUser(ctx, userID)
			if listErr != nil {
				return goerrors.Wrap(listErr, goerrors.CategoryInternal, "failed to check existing memberships")
			}
			if len(memberships) > 0 {
				return ErrAlreadyMember.WithMetadata(map[string]any{
					"email": email,
				})
			}
		}
	} else if err != nil && !HasTextCode(err, TextCodeUserNotFound) {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "identity provider lookup failed")
	}

	token, err := NewInviteToken()
	if err != nil {
		return err
	}

	resp := &InviteMemberResponse{Token: token}
	now := h.now()

	invite := &Invitation{
		TeamID:    event.TeamID,
		Email:     email,
		InvitedBy: event.Actor.UserID,
		Role:      event.Role,
		TokenHash: HashInviteToken(token),
		ExpiresAt: now.Add(h.config.GetInvitationTTL()),
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.Invitations().CreateInvitationTx(ctx, tx, invite)
		if err != nil {
			return err
		}
		resp.Invitation = created

		// The provider mints the one-time link carrying the invitation
		// metadata; a failure here rolls the row back.
		link, err := h.provider.GenerateOneTimeLink(ctx, email, map[string]any{
			"team_id":      event.TeamID.String(),
			"member_role":  string(event.Role),
			"invited_by":   event.Actor.UserID.String(),
			"invite_token": token,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "identity provider failed to generate invite link")
		}
		resp.Link = link

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create invitation")
	}

	emitActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType: ActivityEventInviteCreated,
		Actor:     actorRefFromContext(event.Actor),
		TeamID:    event.TeamID.String(),
		ToRole:    event.Role,
		Metadata: map[string]any{
			"email":     email,
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

package teams

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CreateTeamMessage struct {
	Name         string    `json:"name" example:"Acme Inc" doc:"Globally unique team name."`
	BillingEmail string    `json:"billing_email,omitempty"`
	AddressLine1 string    `json:"address_line1,omitempty"`
	AddressLine2 string    `json:"address_line2,omitempty"`
	City         string    `json:"city,omitempty"`
	PostalCode   string    `json:"postal_code,omitempty"`
	Country      string    `json:"country,omitempty"`
	OwnerUserID  uuid.UUID `json:"owner_user_id" doc:"The signing-up user, becomes the owner."`
	OnResponse   func(resp *CreateTeamResponse)
}

func (e CreateTeamMessage) Type() string { return "team.create" }

// Validate will run validation rules
func (e CreateTeamMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required, validation.Length(1, 200)),
	)
}

type CreateTeamResponse struct {
	Team    *Team
	Owner   *Member
	Success bool
}

type CreateTeamHandler struct {
	repo   RepositoryManager
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func NewCreateTeamHandler(repo RepositoryManager) *CreateTeamHandler {
	return &CreateTeamHandler{
		repo:   repo,
		sink:   noopActivitySink{},
		logger: defLogger{},
		now:    time.Now,
	}
}

func (h *CreateTeamHandler) WithLogger(logger Logger) *CreateTeamHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *CreateTeamHandler) WithActivitySink(sink ActivitySink) *CreateTeamHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *CreateTeamHandler) WithClock(clock func() time.Time) *CreateTeamHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *CreateTeamHandler) Execute(ctx context.Context, event CreateTeamMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during team creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateTeamHandler) execute(ctx context.Context, event CreateTeamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid team payload")
	}

	if event.OwnerUserID == uuid.Nil {
		return goerrors.New("team owner is required", goerrors.CategoryBadInput)
	}

	resp := &CreateTeamResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		team, err := h.repo.Teams().CreateTeamTx(ctx, tx, &Team{
			Name:         event.Name,
			BillingEmail: event.BillingEmail,
			AddressLine1: event.AddressLine1,
			AddressLine2: event.AddressLine2,
			City:         event.City,
			PostalCode:   event.PostalCode,
			Country:      event.Country,
		})
		if err != nil {
			return err
		}
		resp.Team = team

		// The creating user is seeded as owner in the same transaction, so
		// no team ever exists without exactly one owner.
		owner, err := h.repo.Members().AddMemberTx(ctx, tx, &Member{
			TeamID: team.ID,
			UserID: event.OwnerUserID,
			Role:   RoleOwner,
		})
		if err != nil {
			return err
		}
		resp.Owner = owner

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create team")
	}

	emitActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType:  ActivityEventTeamCreated,
		Actor:      ActorRef{ID: event.OwnerUserID.String(), Type: "user"},
		TeamID:     resp.Team.ID.String(),
		ToRole:     RoleOwner,
		OccurredAt: h.now(),
	})

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

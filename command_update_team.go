package teams

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UpdateTeamMessage struct {
	TeamID       uuid.UUID    `json:"team_id"`
	Name         *string      `json:"name,omitempty"`
	BillingEmail *string      `json:"billing_email,omitempty"`
	AddressLine1 *string      `json:"address_line1,omitempty"`
	AddressLine2 *string      `json:"address_line2,omitempty"`
	City         *string      `json:"city,omitempty"`
	PostalCode   *string      `json:"postal_code,omitempty"`
	Country      *string      `json:"country,omitempty"`
	Actor        ActorContext `json:"-"`
	OnResponse   func(resp *UpdateTeamResponse)
}

func (e UpdateTeamMessage) Type() string { return "team.update" }

type UpdateTeamResponse struct {
	Team    *Team
	Success bool
}

type UpdateTeamHandler struct {
	repo   RepositoryManager
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func NewUpdateTeamHandler(repo RepositoryManager) *UpdateTeamHandler {
	return &UpdateTeamHandler{
		repo:   repo,
		sink:   noopActivitySink{},
		logger: defLogger{},
		now:    time.Now,
	}
}

func (h *UpdateTeamHandler) WithLogger(logger Logger) *UpdateTeamHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateTeamHandler) WithActivitySink(sink ActivitySink) *UpdateTeamHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *UpdateTeamHandler) WithClock(clock func() time.Time) *UpdateTeamHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *UpdateTeamHandler) Execute(ctx context.Context, event UpdateTeamMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during team update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateTeamHandler) execute(ctx context.Context, event UpdateTeamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := CanUpdateTeam(event.Actor, event.TeamID); err != nil {
		return err
	}

	resp := &UpdateTeamResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*Team)(nil)).
			Set("updated_at = ?", h.now()).
			Where("id = ?", event.TeamID)

		if event.Name != nil {
			name := strings.TrimSpace(*event.Name)
			if name == "" {
				return ErrTeamNameRequired
			}
			if existing, err := h.repo.Teams().GetByNameTx(ctx, tx, name); err == nil && existing != nil && existing.ID != event.TeamID {
				return ErrTeamExists.WithMetadata(map[string]any{
					"name": name,
				})
			} else if err != nil && !HasTextCode(err, TextCodeTeamNotFound) {
				return err
			}
			q = q.Set("name = ?", name)
		}
		if event.BillingEmail != nil {
			q = q.Set("billing_email = ?", *event.BillingEmail)
		}
		if event.AddressLine1 != nil {
			q = q.Set("address_line1 = ?", *event.AddressLine1)
		}
		if event.AddressLine2 != nil {
			q = q.Set("address_line2 = ?", *event.AddressLine2)
		}
		if event.City != nil {
			q = q.Set("city = ?", *event.City)
		}
		if event.PostalCode != nil {
			q = q.Set("postal_code = ?", *event.PostalCode)
		}
		if event.Country != nil {
			q = q.Set("country = ?", *event.Country)
		}

		res, err := q.Exec(ctx)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrTeamExists
			}
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrTeamNotFound.WithMetadata(map[string]any{
				"team_id": event.TeamID.String(),
			})
		}

		team := &Team{}
		if err := tx.NewSelect().
			Model(team).
			Where("?TableAlias.id = ?", event.TeamID).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}
		resp.Team = team

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update team")
	}

	emitActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType:  ActivityEventTeamUpdated,
		Actor:      actorRefFromContext(event.Actor),
		TeamID:     event.TeamID.String(),
		OccurredAt: h.now(),
	})

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

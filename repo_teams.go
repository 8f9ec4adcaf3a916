package teams

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Teams interface {
	repository.Repository[*Team]

	GetTeam(ctx context.Context, id uuid.UUID) (*Team, error)
	GetTeamTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Team, error)

	GetByName(ctx context.Context, name string) (*Team, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Team, error)

	CreateTeam(ctx context.Context, team *Team) (*Team, error)
	CreateTeamTx(ctx context.Context, tx bun.IDB, team *Team) (*Team, error)

	DeleteCascadeTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID) error
}

type teamsRepo struct {
	repository.Repository[*Team]
	db *bun.DB
}

var (
	_ Teams                        = (*teamsRepo)(nil)
	_ repository.Repository[*Team] = (*teamsRepo)(nil)
)

func NewTeamsRepository(db *bun.DB) Teams {
	repo := repository.NewRepository[*Team](db, repository.ModelHandlers[*Team]{
		NewRecord: func() *Team { return &Team{} },
		GetID: func(t *Team) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Team, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &teamsRepo{
		Repository: repo,
		db:         db,
	}
}

func (r *teamsRepo) GetTeam(ctx context.Context, id uuid.UUID) (*Team, error) {
	return r.GetTeamTx(ctx, r.db, id)
}

func (r *teamsRepo) GetTeamTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Team, error) {
	record := &Team{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTeamNotFound.WithMetadata(map[string]any{
				"team_id": id.String(),
			})
		}
		return nil, err
	}
	return record, nil
}

func (r *teamsRepo) GetByName(ctx context.Context, name string) (*Team, error) {
	return r.GetByNameTx(ctx, r.db, name)
}

func (r *teamsRepo) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Team, error) {
	record := &Team{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", strings.TrimSpace(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTeamNotFound.WithMetadata(map[string]any{
				"name": name,
			})
		}
		return nil, err
	}
	return record, nil
}

func (r *teamsRepo) CreateTeam(ctx context.Context, team *Team) (*Team, error) {
	return r.CreateTeamTx(ctx, r.db, team)
}

// CreateTeamTx inserts a team after checking name uniqueness. The unique
// index on name backstops the check under concurrency.
func (r *teamsRepo) CreateTeamTx(ctx context.Context, tx bun.IDB, team *Team) (*Team, error) {
	if team == nil || strings.TrimSpace(team.Name) == "" {
		return nil, ErrTeamNameRequired
	}

	team.Name = strings.TrimSpace(team.Name)

	if existing, err := r.GetByNameTx(ctx, tx, team.Name); err == nil && existing != nil {
		return nil, ErrTeamExists.WithMetadata(map[string]any{
			"name": team.Name,
		})
	} else if err != nil && !HasTextCode(err, TextCodeTeamNotFound) {
		return nil, err
	}

	if team.ID == uuid.Nil {
		team.ID = uuid.New()
	}

	if _, err := tx.NewInsert().Model(team).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTeamExists.WithMetadata(map[string]any{
				"name": team.Name,
			})
		}
		return nil, err
	}

	return team, nil
}

// DeleteCascadeTx removes the team along with every membership and
// invitation. Runs inside the caller's transaction so a partial cascade is
// never visible.
func (r *teamsRepo) DeleteCascadeTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID) error {
	if _, err := tx.NewDelete().
		Model((*Member)(nil)).
		Where("team_id = ?", teamID).
		Exec(ctx); err != nil {
		return err
	}

	if _, err := tx.NewDelete().
		Model((*Invitation)(nil)).
		Where("team_id = ?", teamID).
		Exec(ctx); err != nil {
		return err
	}

	if _, err := tx.NewDelete().
		Model((*Team)(nil)).
		Where("id = ?", teamID).
		ForceDelete().
		Exec(ctx); err != nil {
		return err
	}

	return nil
}

// isUniqueViolation matches unique constraint errors across the sqlite and
// postgres drivers without importing either.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "constraint violation")
}

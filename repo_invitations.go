package teams

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Invitations interface {
	repository.Repository[*Invitation]

	GetInvitation(ctx context.Context, id uuid.UUID) (*Invitation, error)
	GetInvitationTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Invitation, error)
	GetPending(ctx context.Context, teamID uuid.UUID, email string) (*Invitation, error)
	GetPendingTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID, email string) (*Invitation, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*Invitation, error)
	GetByTokenHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*Invitation, error)
	ListPending(ctx context.Context, teamID uuid.UUID) ([]*Invitation, error)

	CreateInvitationTx(ctx context.Context, tx bun.IDB, invite *Invitation) (*Invitation, error)
	MarkAcceptedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error
	MarkRevokedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error)
}

type invitationsRepo struct {
	repository.Repository[*Invitation]
	db *bun.DB
}

var (
	_ Invitations                        = (*invitationsRepo)(nil)
	_ repository.Repository[*Invitation] = (*invitationsRepo)(nil)
)

func NewInvitationsRepository(db *bun.DB) Invitations {
	repo := repository.NewRepository[*Invitation](db, repository.ModelHandlers[*Invitation]{
		NewRecord: func() *Invitation { return &Invitation{} },
		GetID: func(i *Invitation) uuid.UUID {
			if i == nil {
				return uuid.Nil
			}
			return i.ID
		},
		SetID: func(i *Invitation, id uuid.UUID) {
			if i != nil {
				i.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &invitationsRepo{
		Repository: repo,
		db:         db,
	}
}

func (r *invitationsRepo) GetInvitation(ctx context.Context, id uuid.UUID) (*Invitation, error) {
	return r.GetInvitationTx(ctx, r.db, id)
}

func (r *invitationsRepo) GetInvitationTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Invitation, error) {
	record := &Invitation{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInviteNotFound.WithMetadata(map[string]any{
				"invite_id": id.String(),
			})
		}
		return nil, err
	}
	return record, nil
}

func (r *invitationsRepo) GetPending(ctx context.Context, teamID uuid.UUID, email string) (*Invitation, error) {
	return r.GetPendingTx(ctx, r.db, teamID, email)
}

func (r *invitationsRepo) GetPendingTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID, email string) (*Invitation, error) {
	record := &Invitation{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.team_id = ?", teamID).
		Where("lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email)).
		Where("?TableAlias.status = ?", InviteStatusPending).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInviteNotFound.WithMetadata(map[string]any{
				"team_id": teamID.String(),
				"email":   email,
			})
		}
		return nil, err
	}
	return record, nil
}

func (r *invitationsRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*Invitation, error) {
	return r.GetByTokenHashTx(ctx, r.db, tokenHash)
}

func (r *invitationsRepo) GetByTokenHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*Invitation, error) {
	record := &Invitation{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", tokenHash).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInviteNotFound
		}
		return nil, err
	}
	return record, nil
}

func (r *invitationsRepo) ListPending(ctx context.Context, teamID uuid.UUID) ([]*Invitation, error) {
	var records []*Invitation
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.team_id = ?", teamID).
		Where("?TableAlias.status = ?", InviteStatusPending).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CreateInvitationTx inserts a pending invitation after checking the
// single-pending-per-(team,email) rule. The partial unique index backstops
// the check under concurrency.
func (r *invitationsRepo) CreateInvitationTx(ctx context.Context, tx bun.IDB, invite *Invitation) (*Invitation, error) {
	if invite == nil {
		return nil, ErrInviteNotFound
	}

	invite.Email = strings.ToLower(strings.TrimSpace(invite.Email))
	invite.Status = InviteStatusPending

	if existing, err := r.GetPendingTx(ctx, tx, invite.TeamID, invite.Email); err == nil && existing != nil {
		return nil, ErrInviteAlreadyPending.WithMetadata(map[string]any{
			"team_id": invite.TeamID.String(),
			"email":   invite.Email,
		})
	} else if err != nil && !HasTextCode(err, TextCodeInviteNotFound) {
		return nil, err
	}

	if invite.ID == uuid.Nil {
		invite.ID = uuid.New()
	}

	if _, err := tx.NewInsert().Model(invite).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrInviteAlreadyPending.WithMetadata(map[string]any{
				"team_id": invite.TeamID.String(),
				"email":   invite.Email,
			})
		}
		return nil, err
	}

	return invite, nil
}

// MarkAcceptedTx flips a pending invitation to accepted. The update is
// conditioned on status so a terminal invitation cannot be re-accepted.
func (r *invitationsRepo) MarkAcceptedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	res, err := tx.NewUpdate().
		Model((*Invitation)(nil)).
		Set("status = ?", InviteStatusAccepted).
		Set("accepted_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", InviteStatusPending).
		Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInviteNotPending.WithMetadata(map[string]any{
			"invite_id": id.String(),
		})
	}

	return nil
}

// MarkRevokedTx flips a pending invitation to revoked. Returns false without
// error when the invitation is already terminal: revocation is idempotent and
// never leaks whether the invitation existed.
func (r *invitationsRepo) MarkRevokedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*Invitation)(nil)).
		Set("status = ?", InviteStatusRevoked).
		Set("revoked_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", InviteStatusPending).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

package teams

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ImpersonationSessions interface {
	repository.Repository[*ImpersonationSession]

	GetSession(ctx context.Context, id uuid.UUID) (*ImpersonationSession, error)
	GetSessionTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*ImpersonationSession, error)

	// FindOpenByUser returns sessions with a null ended_at in which the user
	// appears as either the admin or the target. Callers must still apply
	// logical expiry: an open row past expires_at is not active.
	FindOpenByUser(ctx context.Context, userID uuid.UUID) ([]*ImpersonationSession, error)
	FindOpenByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*ImpersonationSession, error)
	FindOpenByAdminTx(ctx context.Context, tx bun.IDB, adminID uuid.UUID) ([]*ImpersonationSession, error)

	EndSession(ctx context.Context, id uuid.UUID, at time.Time, reason string) (bool, error)
	EndSessionTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time, reason string) (bool, error)
	CloseExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error)
}

type impersonationRepo struct {
	repository.Repository[*ImpersonationSession]
	db *bun.DB
}

var (
	_ ImpersonationSessions                        = (*impersonationRepo)(nil)
	_ repository.Repository[*ImpersonationSession] = (*impersonationRepo)(nil)
)

func NewImpersonationSessionsRepository(db *bun.DB) ImpersonationSessions {
	repo := repository.NewRepository[*ImpersonationSession](db, repository.ModelHandlers[*ImpersonationSession]{
		NewRecord: func() *ImpersonationSession { return &ImpersonationSession{} },
		GetID: func(s *ImpersonationSession) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *ImpersonationSession, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &impersonationRepo{
		Repository: repo,
		db:         db,
	}
}

func (r *impersonationRepo) GetSession(ctx context.Context, id uuid.UUID) (*ImpersonationSession, error) {
	return r.GetSessionTx(ctx, r.db, id)
}

func (r *impersonationRepo) GetSessionTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*ImpersonationSession, error) {
	record := &ImpersonationSession{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrSessionNotFound.WithMetadata(map[string]any{
				"session_id": id.String(),
			})
		}
		return nil, err
	}
	return record, nil
}

func (r *impersonationRepo) FindOpenByUser(ctx context.Context, userID uuid.UUID) ([]*ImpersonationSession, error) {
	return r.FindOpenByUserTx(ctx, r.db, userID)
}

func (r *impersonationRepo) FindOpenByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*ImpersonationSession, error) {
	var records []*ImpersonationSession
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.ended_at IS NULL").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.admin_user_id = ?", userID).
				WhereOr("?TableAlias.target_user_id = ?", userID)
		}).
		Order("started_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *impersonationRepo) FindOpenByAdminTx(ctx context.Context, tx bun.IDB, adminID uuid.UUID) ([]*ImpersonationSession, error) {
	var records []*ImpersonationSession
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.admin_user_id = ?", adminID).
		Where("?TableAlias.ended_at IS NULL").
		Order("started_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *impersonationRepo) EndSession(ctx context.Context, id uuid.UUID, at time.Time, reason string) (bool, error) {
	return r.EndSessionTx(ctx, r.db, id, at, reason)
}

// EndSessionTx sets ended_at exactly once. The update is conditioned on
// ended_at being null so a second call is a harmless no-op (reported as
// false), which absorbs double invocation from retries or duplicate UI
// triggers.
func (r *impersonationRepo) EndSessionTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time, reason string) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*ImpersonationSession)(nil)).
		Set("ended_at = ?", at).
		Set("end_reason = ?", reason).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("ended_at IS NULL").
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

// CloseExpiredTx finalizes every open session whose expiry has passed. This
// is the background half of expiry handling; read paths already treat such
// sessions as ended, so the sweep only settles the audit record.
func (r *impersonationRepo) CloseExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*ImpersonationSession)(nil)).
		Set("ended_at = expires_at").
		Set("end_reason = ?", EndReasonExpired).
		Set("updated_at = ?", now).
		Where("ended_at IS NULL").
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

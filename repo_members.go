package teams

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Members is the membership store. Policy approval is necessary but not
// sufficient for its mutating operations: the store re-checks the structural
// invariants (single owner, no super_admin churn, single team per user) and
// rejects writes that would break them even when policy said allow.
type Members interface {
	Get(ctx context.Context, teamID, userID uuid.UUID) (*Member, error)
	GetTx(ctx context.Context, tx bun.IDB, teamID, userID uuid.UUID) (*Member, error)
	GetRole(ctx context.Context, teamID, userID uuid.UUID) (MemberRole, error)
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*Member, error)
	ListByTeamTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID) ([]*Member, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Member, error)
	ListByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*Member, error)
	CountOwners(ctx context.Context, teamID uuid.UUID) (int, error)

	AddMember(ctx context.Context, member *Member) (*Member, error)
	AddMemberTx(ctx context.Context, tx bun.IDB, member *Member) (*Member, error)
	UpdateRoleTx(ctx context.Context, tx bun.IDB, teamID, userID uuid.UUID, from, to MemberRole) (*Member, error)
	RemoveMemberTx(ctx context.Context, tx bun.IDB, teamID, userID uuid.UUID) error
	TransferOwnershipTx(ctx context.Context, tx bun.IDB, teamID, currentOwnerID, newOwnerID uuid.UUID) error
}

type membersRepo struct {
	db *bun.DB
}

var _ Members = (*membersRepo)(nil)

func NewMembersRepository(db *bun.DB) Members {
	return &membersRepo{db: db}
}

func (r *membersRepo) Get(ctx context.Context, teamID, userID uuid.UUID) (*Member, error) {
	return r.GetTx(ctx, r.db, teamID, userID)
}

func (r *membersRepo) GetTx(ctx context.Context, tx bun.IDB, teamID, userID uuid.UUID) (*Member, error) {
	record := &Member{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.team_id = ?", teamID).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrMemberNotFound.WithMetadata(map[string]any{
				"team_id": teamID.String(),
				"user_id": userID.String(),
			})
		}
		return nil, err
	}
	return record, nil
}

func (r *membersRepo) GetRole(ctx context.Context, teamID, userID uuid.UUID) (MemberRole, error) {
	member, err := r.Get(ctx, teamID, userID)
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

func (r *membersRepo) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*Member, error) {
	return r.ListByTeamTx(ctx, r.db, teamID)
}

func (r *membersRepo) ListByTeamTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID) ([]*Member, error) {
	var records []*Member
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.team_id = ?", teamID).
		Order("joined_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *membersRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Member, error) {
	return r.ListByUserTx(ctx, r.db, userID)
}

func (r *membersRepo) ListByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*Member, error) {
	var records []*Member
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *membersRepo) CountOwners(ctx context.Context, teamID uuid.UUID) (int, error) {
	return r.countOwnersTx(ctx, r.db, teamID)
}

func (r *membersRepo) countOwnersTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID) (int, error) {
	return tx.NewSelect().
		Model((*Member)(nil)).
		Where("?TableAlias.team_id = ?", teamID).
		Where("?TableAlias.member_role = ?", RoleOwner).
		Count(ctx)
}

func (r *membersRepo) AddMember(ctx context.Context, member *Member) (*Member, error) {
	return r.AddMemberTx(ctx, r.db, member)
}

// AddMemberTx inserts a membership row. Structural backstops: no super_admin
// rows through this path, one membership per user (single-team policy), one
// owner per team. Concurrent inserts for the same (team, user) surface as a
// conflict through the composite primary key, never a silent overwrite.
func (r *membersRepo) AddMemberTx(ctx context.Context, tx bun.IDB, member *Member) (*Member, error) {
	if member == nil {
		return nil, ErrMemberNotFound
	}

	if member.Role == RoleSuperAdmin || !member.Role.IsValid() {
		return nil, ErrInvariantViolation.WithMetadata(map[string]any{
			"member_role": string(member.Role),
			"invariant":   "super_admin rows are managed outside the membership paths",
		})
	}

	existing, err := r.ListByUserTx(ctx, tx, member.UserID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrAlreadyMember.WithMetadata(map[string]any{
			"user_id": member.UserID.String(),
		})
	}

	if member.Role == RoleOwner {
		owners, err := r.countOwnersTx(ctx, tx, member.TeamID)
		if err != nil {
			return nil, err
		}
		if owners > 0 {
			return nil, ErrInvariantViolation.WithMetadata(map[string]any{
				"team_id":   member.TeamID.String(),
				"invariant": "exactly one owner per team",
			})
		}
	}

	if member.JoinedAt == nil {
		now := time.Now()
		member.JoinedAt = &now
	}

	if _, err := tx.NewInsert().Model(member).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyMember.WithMetadata(map[string]any{
				"team_id": member.TeamID.String(),
				"user_id": member.UserID.String(),
			})
		}
		return nil, err
	}

	return member, nil
}

// UpdateRoleTx changes a member's role with optimistic concurrency: the
// update is conditioned on the expected current role, so two concurrent
// writers resolve deterministically instead of racing. Owner rows never
// change through this path; ownership moves only via TransferOwnershipTx.
func (r *membersRepo) UpdateRoleTx(ctx context.Context, tx bun.IDB, teamID, userID uuid.UUID, from, to MemberRole) (*Member, error) {
	if from == RoleSuperAdmin || to == RoleSuperAdmin {
		return nil, ErrInvariantViolation.WithMetadata(map[string]any{
			"invariant": "super_admin rows are managed outside the membership paths",
		})
	}

	if from == RoleOwner || to == RoleOwner {
		return nil, ErrInvariantViolation.WithMetadata(map[string]any{
			"invariant": "ownership changes only through transfer",
		})
	}

	if !to.IsAssignable() {
		return nil, ErrInvariantViolation.WithMetadata(map[string]any{
			"member_role": string(to),
		})
	}

	now := time.Now()
	res, err := tx.NewUpdate().
		Model((*Member)(nil)).
		Set("member_role = ?", to).
		Set("updated_at = ?", now).
		Where("team_id = ?", teamID).
		Where("user_id = ?", userID).
		Where("member_role = ?", from).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Either the row is gone or the role changed underneath us.
		if _, getErr := r.GetTx(ctx, tx, teamID, userID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrOwnershipConflict.WithMetadata(map[string]any{
			"team_id":  teamID.String(),
			"user_id":  userID.String(),
			"expected": string(from),
		})
	}

	return r.GetTx(ctx, tx, teamID, userID)
}

// RemoveMemberTx deletes a membership row. Owner and super_admin rows are
// structural backstops here: the owner leaves only via transfer, and
// super_admin rows never leave via this path.
func (r *membersRepo) RemoveMemberTx(ctx context.Context, tx bun.IDB, teamID, userID uuid.UUID) error {
	member, err := r.GetTx(ctx, tx, teamID, userID)
	if err != nil {
		return err
	}

	if member.Role == RoleSuperAdmin {
		return ErrInvariantViolation.WithMetadata(map[string]any{
			"invariant": "super_admin rows are managed outside the membership paths",
		})
	}

	if member.Role == RoleOwner {
		return ErrInvariantViolation.WithMetadata(map[string]any{
			"invariant": "exactly one owner per team",
		})
	}

	res, err := tx.NewDelete().
		Model((*Member)(nil)).
		Where("team_id = ?", teamID).
		Where("user_id = ?", userID).
		Where("member_role = ?", member.Role).
		Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOwnershipConflict.WithMetadata(map[string]any{
			"team_id": teamID.String(),
			"user_id": userID.String(),
		})
	}

	return nil
}

// TransferOwnershipTx atomically demotes the current owner to admin and
// promotes the target to owner. Both updates are conditioned on the roles
// they expect, so of two concurrent transfers exactly one succeeds and the
// other observes OWNERSHIP_CONFLICT. The partial unique owner index backs
// this up at the schema level.
func (r *membersRepo) TransferOwnershipTx(ctx context.Context, tx bun.IDB, teamID, currentOwnerID, newOwnerID uuid.UUID) error {
	now := time.Now()

	res, err := tx.NewUpdate().
		Model((*Member)(nil)).
		Set("member_role = ?", RoleAdmin).
		Set("updated_at = ?", now).
		Where("team_id = ?", teamID).
		Where("user_id = ?", currentOwnerID).
		Where("member_role = ?", RoleOwner).
		Exec(ctx)
	if err != nil {
		return err
	}

	demoted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if demoted != 1 {
		return ErrOwnershipConflict.WithMetadata(map[string]any{
			"team_id": teamID.String(),
		})
	}

	res, err = tx.NewUpdate().
		Model((*Member)(nil)).
		Set("member_role = ?", RoleOwner).
		Set("updated_at = ?", now).
		Where("team_id = ?", teamID).
		Where("user_id = ?", newOwnerID).
		Where("member_role != ?", RoleOwner).
		Where("member_role != ?", RoleSuperAdmin).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOwnershipConflict.WithMetadata(map[string]any{
				"team_id": teamID.String(),
			})
		}
		return err
	}

	promoted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if promoted != 1 {
		// Rolls back the demotion with it; the single-owner invariant holds.
		return ErrMemberNotFound.WithMetadata(map[string]any{
			"team_id": teamID.String(),
			"user_id": newOwnerID.String(),
		})
	}

	owners, err := r.countOwnersTx(ctx, tx, teamID)
	if err != nil {
		return err
	}
	if owners != 1 {
		return ErrInvariantViolation.WithMetadata(map[string]any{
			"team_id":   teamID.String(),
			"owners":    owners,
			"invariant": "exactly one owner per team",
		})
	}

	return nil
}

package teams_test

import (
	"context"
	"testing"

	teams "github.com/goliatone/go-teams"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func seedTeam(t *testing.T, repo teams.RepositoryManager, name string) (*teams.Team, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	team, err := repo.Teams().CreateTeam(ctx, &teams.Team{Name: name})
	require.NoError(t, err)

	ownerID := uuid.New()
	_, err = repo.Members().AddMember(ctx, &teams.Member{
		TeamID: team.ID,
		UserID: ownerID,
		Role:   teams.RoleOwner,
	})
	require.NoError(t, err)

	return team, ownerID
}

func TestMembersAddAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := teams.NewRepositoryManager(db)
	ctx := context.Background()

	team, ownerID := seedTeam(t, repo, "Acme Inc")

	userID := uuid.New()
	member, err := repo.Members().AddMember(ctx, &teams.Member{
		TeamID: team.ID,
		UserID: userID,
		Role:   teams.RoleMember,
	})
	require.NoError(t, err)
	assert.NotNil(t, member.JoinedAt)

	role, err := repo.Members().GetRole(ctx, team.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, teams.RoleMember, role)

	members, err := repo.Members().ListByTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = repo.Members().Get(ctx, team.ID, uuid.New())
	require.Error(t, err)
	assert.True(t, teams.HasTextCode(err, teams.TextCodeMemberNotFound))

	_ = ownerID
}

func TestMembersSingleTeamPolicy(t *testing.T) {
	db := setupTestDB(t)
	repo := teams.NewRepositoryManager(db)
	ctx := context.Background()

	teamA, _ := seedTeam(t, repo, "Team A")
	teamB, _ := seedTeam(t, repo, "Team B")

	userID := uuid.New()
	_, err := repo.Members().AddMember(ctx, &teams.Member{
		TeamID: teamA.ID,
		UserID: userID,
		Role:   teams.RoleMember,
	})
	require.NoError(t, err)

	// The same user cannot join a second team, nor re-join the first.
	_, err = repo.Members().AddMember(ctx, &teams.Member{
		TeamID: teamB.ID,
		UserID: userID,
		Role:   teams.RoleMember,
	})
	require.Error(t, err)
	assert.True(t, teams.HasTextCode(err, teams.TextCodeAlreadyMember))

	_, err = repo.Members().AddMember(ctx, &teams.Member{
		TeamID: teamA.ID,
		UserID: userID,
		Role:   teams.RoleAdmin,
	})
	require.Error(t, err)
	assert.True(t, teams.HasTextCode(err, teams.TextCodeAlreadyMember))
}

func TestMembersSingleOwnerInvariant(t *testing.T) {
	db := setupTestDB(t)
	repo := teams.NewRepositoryManager(db)
	ctx := context.Background()

	team, _ := seedTeam(t, repo, "Acme Inc")

	_, err := repo.Members().AddMember(ctx, &teams.Member{
		TeamID: team.ID,
		UserID: uuid.New(),
		Role:   teams.RoleOwner,
	})
	require.Error(t, err)
	assert.True(t, teams.HasTextCode(err, teams.TextCodeInvariantViolation))

	owners, err := repo.Members().CountOwners(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, owners)
}

func TestMembersRejectSuperAdminRows(t *testing.T) {
	db := setupTestDB(t)
	repo := teams.NewRepositoryManager(db)
	ctx := context.Background()

	team, _ := seedTeam(t, repo, "Acme Inc")

	_, err := repo.Members().AddMember(ctx, &teams.Member{
		TeamID: team.ID,
		UserID: uuid.New(),
		Role:   teams.RoleSuperAdmin,
	})
	require.Error(t, err)
	assert.True(t, teams.HasTextCode(err, teams.TextCodeInvariantViolation))
}

func TestMembersUpdateRoleOptimistic(t *testing.T) {
	db := setupTestDB(t)
	repo := teams.NewRepositoryManager(db)
	ctx := context.Background()

	team, _ := seedTeam(t, repo, "Acme Inc")

	userID := uuid.New()
	_, err := repo.Members().AddMember(ctx, &teams.Member{
		TeamID: team.ID,
		UserID: userID,
		Role:   teams.RoleMember,
	})
	require.NoError(t, err)

	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		updated, err := repo.Members().UpdateRoleTx(ctx, tx, team.ID, userID, teams.RoleMember, teams.RoleAdmin)
		if err != nil {
			return err
		}
		assert.Equal(t, teams.RoleAdmin, updated.Role)
		return nil
	})
	require.NoError(t, err)

	// A writer holding a stale expected role loses deterministically.
	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Members().UpdateRoleTx(ctx, tx, team.ID, userID, teams.RoleMember, teams.RoleAdmin)
		return err
	})
	require.Error(t, err)
	assert.True(t, teams.HasTextCode(err, teams.TextCodeOwnershipConflict))

	// Ownership never moves through the role path.
	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Members().UpdateRoleTx(ctx, tx, team.ID, userID, teams.RoleAdmin, teams.RoleOwner)
		return err
	})
	require.Error(t, err)
	assert.True(t, teams.HasTextCode(err, teams.TextCodeInvariantViolation))
}

func TestMembersRemove(t *testing.T) {
	db := setupTestDB(t)
	repo := teams.NewRepositoryManager(db)
	ctx := context.Background()

	team, ownerID := seedTeam(t, repo, "Acme Inc")

	userID := uuid.New()
	_, err := repo.Members().AddMember(ctx, &teams.Member{
		TeamID: team.ID,
		UserID: userID,
		Role:   teams.RoleMember,
	})
	require.NoError(t, err)

	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Members().RemoveMemberTx(ctx, tx, team.ID, userID)
	})
	require.NoError(t, err)

	_, err = repo.Members().Get(ctx, team.ID, userID)
	require.Error(t, err)
	assert.True(t, teams.HasTextCode(err, teams.TextCodeMemberNotFound))

	// The owner row never leaves through the removal path.
	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Members().RemoveMemberTx(ctx, tx, team.ID, ownerID)
	})
	require.Error(t, err)
	assert.True(t, teams.HasTextCode(err, teams.TextCodeInvariantViolation))
}

func TestMembersTransferOwnership(t *testing.T) {
	db := setupTestDB(t)
	repo := teams.NewRepositoryManager(db)
	ctx := context.Background()

	team, ownerID := seedTeam(t, repo, "Acme Inc")

	adminID := uuid.New()
	_, err := repo.Members().AddMember(ctx, &teams.Member{
		TeamID: team.ID,
		UserID: adminID,
		Role:   teams.RoleAdmin,
	})
	require.NoError(t, err)

	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Members().TransferOwnershipTx(ctx, tx, team.ID, ownerID, adminID)
	})
	require.NoError(t, err)

	newOwnerRole, err := repo.Members().GetRole(ctx, team.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, teams.RoleOwner, newOwnerRole)

	oldOwnerRole, err := repo.Members().GetRole(ctx, team.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, teams.RoleAdmin, oldOwnerRole)

	owners, err := repo.Members().CountOwners(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, owners)
}

func TestMembersTransferOwnershipStaleOwnerLoses(t *testing.T) {
	db := setupTestDB(t)
	repo := teams.NewRepositoryManager(db)
	ctx := context.Background()

	team, ownerID := seedTeam(t, repo, "Acme Inc")

	firstID := uuid.New()
	_, err := repo.Members().AddMember(ctx, &teams.Member{
		TeamID: team.ID,
		UserID: firstID,
		Role:   teams.RoleAdmin,
	})
	require.NoError(t, err)

	secondID := uuid.New()
	_, err = repo.Members().AddMember(ctx, &teams.Member{
		TeamID: team.ID,
		UserID: secondID,
		Role:   teams.RoleAdmin,
	})
	require.NoError(t, err)

	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Members().TransferOwnershipTx(ctx, tx, team.ID, ownerID, firstID)
	})
	require.NoError(t, err)

	// A second transfer still naming the original owner observes a conflict:
	// the demotion touches zero rows and the whole transfer rolls back.
	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Members().TransferOwnershipTx(ctx, tx, team.ID, ownerID, secondID)
	})
	require.Error(t, err)
	assert.True(t, teams.HasTextCode(err, teams.TextCodeOwnershipConflict))

	owners, err := repo.Members().CountOwners(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, owners)

	role, err := repo.Members().GetRole(ctx, team.ID, firstID)
	require.NoError(t, err)
	assert.Equal(t, teams.RoleOwner, role)
}

func TestMembersTransferToMissingTargetRollsBack(t *testing.T) {
	db := setupTestDB(t)
	repo := teams.NewRepositoryManager(db)
	ctx := context.Background()

	team, ownerID := seedTeam(t, repo, "Acme Inc")

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Members().TransferOwnershipTx(ctx, tx, team.ID, ownerID, uuid.New())
	})
	require.Error(t, err)

	// The demotion rolled back with the failed promotion.
	role, err := repo.Members().GetRole(ctx, team.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, teams.RoleOwner, role)
}

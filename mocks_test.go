package teams_test

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"testing"

	teams "github.com/goliatone/go-teams"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// setupTestDB opens an in-memory sqlite database and applies the embedded
// migrations, so tests run against the same constraint surface production
// deployments get.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	migrations := teams.GetMigrationsFS()
	entries, err := fs.ReadDir(migrations, "data/sql/migrations")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(migrations, "data/sql/migrations/"+name)
		require.NoError(t, err)
		_, err = db.Exec(string(content))
		require.NoError(t, err, "migration %s", name)
	}

	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})

	return db
}

type stubIdentity struct {
	id    string
	email string
	role  string
}

func (s stubIdentity) ID() string    { return s.id }
func (s stubIdentity) Email() string { return s.email }
func (s stubIdentity) Role() string  { return s.role }

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) CreateUser(ctx context.Context, email string) (teams.Identity, error) {
	args := m.Called(ctx, email)
	var identity teams.Identity
	if v := args.Get(0); v != nil {
		identity = v.(teams.Identity)
	}
	return identity, args.Error(1)
}

func (m *MockIdentityProvider) FindUserByID(ctx context.Context, id string) (teams.Identity, error) {
	args := m.Called(ctx, id)
	var identity teams.Identity
	if v := args.Get(0); v != nil {
		identity = v.(teams.Identity)
	}
	return identity, args.Error(1)
}

func (m *MockIdentityProvider) FindUserByEmail(ctx context.Context, email string) (teams.Identity, error) {
	args := m.Called(ctx, email)
	var identity teams.Identity
	if v := args.Get(0); v != nil {
		identity = v.(teams.Identity)
	}
	return identity, args.Error(1)
}

func (m *MockIdentityProvider) GenerateOneTimeLink(ctx context.Context, email string, metadata map[string]any) (string, error) {
	args := m.Called(ctx, email, metadata)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) VerifyOneTimeToken(ctx context.Context, token string) (teams.Credential, error) {
	args := m.Called(ctx, token)
	cred, _ := args.Get(0).(teams.Credential)
	return cred, args.Error(1)
}

func (m *MockIdentityProvider) IssueSessionFor(ctx context.Context, identity teams.Identity, metadata map[string]any) (teams.Credential, error) {
	args := m.Called(ctx, identity, metadata)
	cred, _ := args.Get(0).(teams.Credential)
	return cred, args.Error(1)
}

func (m *MockIdentityProvider) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type capturingSink struct {
	events []teams.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt teams.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) eventsOfType(eventType teams.ActivityEventType) []teams.ActivityEvent {
	var out []teams.ActivityEvent
	for _, evt := range c.events {
		if evt.EventType == eventType {
			out = append(out, evt)
		}
	}
	return out
}

package auth_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/newsshelf/shelf-auth"
)

const (
	testSigningKey = "test-signing-key-0123456789abcdef"
	mainAdminEmail = "root@newsshelf.test"
)

type testConfig struct {
	expiration int
}

func (testConfig) GetSigningKey() string           { return testSigningKey }
func (testConfig) GetSigningMethod() string        { return "HS256" }
func (testConfig) GetContextKey() string           { return "user" }
func (testConfig) GetTokenLookup() string          { return "header:Authorization" }
func (testConfig) GetAuthScheme() string           { return "Bearer" }
func (testConfig) GetIssuer() string               { return "newsshelf-test" }
func (testConfig) GetAudience() []string           { return []string{"newsshelf"} }
func (testConfig) GetRejectedRouteKey() string     { return "rejected_route" }
func (testConfig) GetRejectedRouteDefault() string { return "/" }
func (testConfig) GetMainAdminEmail() string       { return mainAdminEmail }
func (c testConfig) GetTokenExpiration() int {
	if c.expiration == 0 {
		return 60
	}
	return c.expiration
}

// recordingSink collects activity events
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, e auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func (s *recordingSink) last() auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	require.NoError(t, auth.Migrate(ctx, db, nil))

	return db
}

type fixture struct {
	db       *bun.DB
	repo     auth.RepositoryManager
	auther   *auth.Auther
	profiles *auth.Profiles
	admin    *auth.Admin
	sink     *recordingSink
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:   newTestDB(t),
		sink: &recordingSink{},
		now:  time.Now().UTC().Truncate(time.Second),
	}
	clock := func() time.Time { return f.now }

	f.repo = auth.NewRepositoryManager(f.db, auth.WithUsersClock(clock))
	f.auther = auth.NewAuthenticator(auth.NewUserProvider(f.repo), f.repo, testConfig{}).
		WithActivitySink(f.sink).
		WithClock(clock)
	f.profiles = auth.NewProfiles(f.repo).WithActivitySink(f.sink).WithClock(clock)
	f.admin = auth.NewAdmin(f.repo, mainAdminEmail).WithActivitySink(f.sink).WithClock(clock)

	require.NoError(t, f.auther.SeedMainAdmin(context.Background(), mainAdminEmail, "root-password"))
	return f
}

// register signs up a user and returns its id and token
func (f *fixture) register(t *testing.T, email string, topics ...string) (string, *auth.IssuedToken) {
	t.Helper()

	token, err := f.auther.Register(context.Background(), auth.RegisterUserMessage{
		Email:          email,
		Password:       "secret1",
		DisplayName:    "User " + email,
		FavoriteTopics: topics,
	})
	require.NoError(t, err)

	claims, err := f.auther.TokenService().Validate(token.AccessToken)
	require.NoError(t, err)
	return claims.UserID(), token
}

func (f *fixture) userID(t *testing.T, email string) string {
	t.Helper()
	user, err := f.repo.Users().GetByIdentifier(context.Background(), email)
	require.NoError(t, err)
	return user.ID.String()
}

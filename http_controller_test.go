package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/newsshelf/shelf-auth"
)

func newTestController(t *testing.T, f *fixture) *auth.AuthController {
	t.Helper()
	httpAuth, err := auth.NewHTTPAuthenticator(f.auther.TokenService(), testConfig{})
	require.NoError(t, err)

	return auth.NewAuthController(
		auth.WithAuthenticator(f.auther),
		auth.WithRouteAuthenticator(httpAuth),
		auth.WithProfiles(f.profiles),
		auth.WithAdmin(f.admin),
	)
}

// bindTo makes Bind copy payload into the handler's request value
func bindTo[T any](ctx *router.MockContext, payload T) {
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		*(args.Get(0).(*T)) = payload
	}).Return(nil)
}

// signedIn stores verified claims the way ProtectedRoute does
func signedIn(t *testing.T, f *fixture, ctx *router.MockContext, token *auth.IssuedToken) {
	t.Helper()
	claims, err := f.auther.TokenService().Validate(token.AccessToken)
	require.NoError(t, err)
	ctx.LocalsMock["user"] = claims
}

func TestControllerLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, "reader@example.com", "tech")
	c := newTestController(t, f)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	bindTo(ctx, auth.LoginRequest{Email: " reader@example.com ", Password: "secret1"})
	ctx.On("Cookie", mock.MatchedBy(func(ck *router.Cookie) bool {
		return ck.Name == "user" && ck.Value != "" && ck.HTTPOnly
	})).Return()

	var body auth.LoginResponse
	ctx.On("JSON", http.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(auth.LoginResponse)
	}).Return(nil)

	require.NoError(t, c.Login(ctx))
	ctx.AssertExpectations(t)
	require.NotNil(t, body.IssuedToken)
	assert.NotEmpty(t, body.AccessToken)
	assert.Empty(t, body.Redirect)
}

func TestControllerLoginRejections(t *testing.T) {
	f := newFixture(t)
	f.register(t, "reader@example.com", "tech")
	c := newTestController(t, f)

	cases := []struct {
		name     string
		payload  auth.LoginRequest
		status   int
		textCode string
		message  string
	}{
		{"invalid email", auth.LoginRequest{Email: "nope", Password: "x"}, http.StatusBadRequest, auth.TextCodeValidation, "email: must be a valid email address"},
		{"missing password", auth.LoginRequest{Email: "reader@example.com"}, http.StatusBadRequest, auth.TextCodeValidation, "password: cannot be blank"},
		{"wrong password", auth.LoginRequest{Email: "reader@example.com", Password: "bad"}, http.StatusUnauthorized, auth.TextCodeInvalidCredentials, "invalid credentials"},
		{"unknown email", auth.LoginRequest{Email: "ghost@example.com", Password: "secret1"}, http.StatusUnauthorized, auth.TextCodeInvalidCredentials, "invalid credentials"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := router.NewMockContext()
			ctx.On("Context").Return(context.Background()).Maybe()
			bindTo(ctx, tc.payload)
			ctx.On("JSON", tc.status, auth.ErrorResponse{Message: tc.message, TextCode: tc.textCode}).Return(nil)

			require.NoError(t, c.Login(ctx))
			ctx.AssertExpectations(t)
			ctx.AssertNotCalled(t, "Cookie", mock.Anything)
		})
	}
}

func TestControllerRegister(t *testing.T) {
	f := newFixture(t)
	c := newTestController(t, f)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	bindTo(ctx, auth.RegisterRequest{
		Email:          "new@example.com",
		Password:       "secret1",
		DisplayName:    "New",
		FavoriteTopics: []string{"tech"},
	})
	ctx.On("Cookie", mock.Anything).Return()
	ctx.On("JSON", http.StatusCreated, mock.AnythingOfType("*auth.IssuedToken")).Return(nil)

	require.NoError(t, c.Register(ctx))
	ctx.AssertExpectations(t)

	dup := router.NewMockContext()
	dup.On("Context").Return(context.Background())
	bindTo(dup, auth.RegisterRequest{Email: "NEW@example.com", Password: "secret1", DisplayName: "Again"})
	dup.On("JSON", http.StatusConflict, auth.ErrorResponse{
		Message:  "email is already registered",
		TextCode: auth.TextCodeEmailTaken,
	}).Return(nil)

	require.NoError(t, c.Register(dup))
	dup.AssertExpectations(t)
}

func TestControllerHistory(t *testing.T) {
	f := newFixture(t)
	id, token := f.register(t, "reader@example.com", "tech")
	c := newTestController(t, f)

	for _, news := range []string{"n-1", "n-2"} {
		_, err := f.profiles.RecordRead(context.Background(), id, auth.ReadRecord{NewsID: news})
		require.NoError(t, err)
	}

	t.Run("bad take", func(t *testing.T) {
		ctx := router.NewMockContext()
		signedIn(t, f, ctx, token)
		ctx.QueriesM["take"] = "many"
		ctx.On("JSON", http.StatusBadRequest, auth.ErrorResponse{
			Message:  "take: must be an integer",
			TextCode: auth.TextCodeValidation,
		}).Return(nil)

		require.NoError(t, c.History(ctx))
		ctx.AssertExpectations(t)
	})

	t.Run("clamped take", func(t *testing.T) {
		ctx := router.NewMockContext()
		signedIn(t, f, ctx, token)
		ctx.QueriesM["take"] = "-4"
		ctx.On("Context").Return(context.Background())
		ctx.On("JSON", http.StatusOK, mock.MatchedBy(func(items []*auth.Activity) bool {
			return len(items) == 1
		})).Return(nil)

		require.NoError(t, c.History(ctx))
		ctx.AssertExpectations(t)
	})

	t.Run("no session", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("JSON", http.StatusUnauthorized, auth.ErrorResponse{
			Message:  "unable to find session",
			TextCode: auth.TextCodeSessionMissing,
		}).Return(nil)

		require.NoError(t, c.History(ctx))
		ctx.AssertExpectations(t)
	})
}

func TestControllerProfileMe(t *testing.T) {
	f := newFixture(t)
	id, token := f.register(t, "reader@example.com", "tech")
	c := newTestController(t, f)

	ctx := router.NewMockContext()
	signedIn(t, f, ctx, token)
	ctx.On("Context").Return(context.Background())
	ctx.On("JSON", http.StatusOK, mock.MatchedBy(func(p *auth.Profile) bool {
		return p.ID == id && p.Email == "reader@example.com"
	})).Return(nil)

	require.NoError(t, c.ProfileMe(ctx))
	ctx.AssertExpectations(t)
}

func TestControllerAdminSetRole(t *testing.T) {
	f := newFixture(t)
	lurkerID, _ := f.register(t, "lurker@example.com")
	readerID, _ := f.register(t, "reader@example.com", "tech")
	c := newTestController(t, f)

	adminToken, err := f.auther.Login(context.Background(), mainAdminEmail, "root-password")
	require.NoError(t, err)

	cases := []struct {
		name   string
		id     string
		role   string
		status int
		body   any
	}{
		{"no topics", lurkerID, "PUBLISHER", http.StatusBadRequest, auth.ErrorResponse{
			Message:  "favorite topics must be set for READER / PUBLISHER",
			TextCode: auth.TextCodeFavoriteTopicsRequired,
		}},
		{"main admin", f.userID(t, mainAdminEmail), "READER", http.StatusForbidden, auth.ErrorResponse{
			Message:  "main admin cannot be modified",
			TextCode: auth.TextCodeMainAdminProtected,
		}},
		{"unknown id", "123", "READER", http.StatusNotFound, auth.ErrorResponse{
			Message:  "identity not found",
			TextCode: auth.TextCodeIdentityNotFound,
		}},
		{"granted", readerID, "publisher", http.StatusOK, map[string]any{
			"ok":   true,
			"role": auth.RolePublisher,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := router.NewMockContext()
			signedIn(t, f, ctx, adminToken)
			ctx.ParamsM["id"] = tc.id
			ctx.On("Context").Return(context.Background())
			ctx.On("Body").Return([]byte(`{"role":"` + tc.role + `"}`))
			bindTo(ctx, auth.SetRoleRequest{Role: tc.role})
			ctx.On("JSON", tc.status, tc.body).Return(nil)

			require.NoError(t, c.AdminSetRole(ctx))
			ctx.AssertExpectations(t)
		})
	}

	event := f.sink.last()
	assert.Equal(t, auth.ActivityEventAdminRoleAssigned, event.EventType)
	assert.Equal(t, readerID, event.UserID)
	assert.Equal(t, "user", event.Actor.Type)
}

func TestControllerAdminSetRoleEmptyBodyGrantsReader(t *testing.T) {
	f := newFixture(t)
	publisherID, _ := f.register(t, "writer@example.com", "tech")
	_, err := f.admin.AssignRole(context.Background(), rootActor, publisherID, "PUBLISHER")
	require.NoError(t, err)
	c := newTestController(t, f)

	adminToken, err := f.auther.Login(context.Background(), mainAdminEmail, "root-password")
	require.NoError(t, err)

	for _, body := range [][]byte{nil, []byte("  \n")} {
		ctx := router.NewMockContext()
		signedIn(t, f, ctx, adminToken)
		ctx.ParamsM["id"] = publisherID
		ctx.On("Context").Return(context.Background())
		ctx.On("Body").Return(body)
		ctx.On("JSON", http.StatusOK, map[string]any{
			"ok":   true,
			"role": auth.RoleReader,
		}).Return(nil)

		require.NoError(t, c.AdminSetRole(ctx))
		ctx.AssertExpectations(t)
		ctx.AssertNotCalled(t, "Bind", mock.Anything)
	}

	profile, err := f.profiles.Get(context.Background(), publisherID)
	require.NoError(t, err)
	assert.Equal(t, []string{"READER"}, profile.Roles)
}

func TestControllerAdminListUsersInvalidFilter(t *testing.T) {
	f := newFixture(t)
	c := newTestController(t, f)

	ctx := router.NewMockContext()
	ctx.QueriesM["role"] = "EDITOR"
	ctx.On("Context").Return(context.Background())
	ctx.On("JSON", http.StatusBadRequest, auth.ErrorResponse{
		Message:  "invalid role",
		TextCode: auth.TextCodeInvalidRole,
	}).Return(nil)

	require.NoError(t, c.AdminListUsers(ctx))
	ctx.AssertExpectations(t)
}

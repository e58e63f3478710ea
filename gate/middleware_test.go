package gate_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/newsshelf/shelf-auth/gate"
)

func fixedNow() time.Time {
	return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
}

func resolveTo(view gate.View) gate.Resolver {
	return func(router.Context) gate.View { return view }
}

func TestRolesMiddleware_AnonymousRedirectsToLogin(t *testing.T) {
	mw := gate.Roles(gate.Config{Resolve: resolveTo(gate.Anonymous), Now: fixedNow}, "ADMIN")

	ctx := router.NewMockContext()
	ctx.On("OriginalURL").Return("/app/admin")
	ctx.On("Method").Return("GET")
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == "rejected_route" &&
			c.Value == "/app/admin" &&
			c.HTTPOnly &&
			c.Expires.Equal(fixedNow().Add(5*time.Minute))
	})).Return()
	ctx.On("Redirect", "/login", []int{http.StatusFound}).Return(nil)

	called := false
	err := mw(func(router.Context) error {
		called = true
		return nil
	})(ctx)

	require.NoError(t, err)
	assert.False(t, called)
	ctx.AssertExpectations(t)
}

func TestRolesMiddleware_ReaderRedirectsHome(t *testing.T) {
	view := gate.StaticView{Authenticated: true, RoleNames: []string{"READER"}}
	mw := gate.Roles(gate.Config{Resolve: resolveTo(view)}, "ADMIN")

	ctx := router.NewMockContext()
	ctx.On("OriginalURL").Return("/app/admin")
	ctx.On("Method").Return("POST")
	ctx.On("Redirect", "/", []int{http.StatusSeeOther}).Return(nil)

	called := false
	err := mw(func(router.Context) error {
		called = true
		return nil
	})(ctx)

	require.NoError(t, err)
	assert.False(t, called)
	ctx.AssertExpectations(t)
	ctx.AssertNotCalled(t, "Cookie", mock.Anything)
}

func TestProtectedMiddleware_RendersForAuthenticated(t *testing.T) {
	view := gate.StaticView{Authenticated: true}
	mw := gate.Protected(gate.Config{Resolve: resolveTo(view), LoginPath: "/signin"})

	ctx := router.NewMockContext()
	ctx.On("OriginalURL").Return("/app/profile")

	called := false
	err := mw(func(router.Context) error {
		called = true
		return nil
	})(ctx)

	require.NoError(t, err)
	assert.True(t, called)
}

func TestMiddlewareRequiresResolver(t *testing.T) {
	assert.Panics(t, func() {
		gate.Protected(gate.Config{})
	})
}

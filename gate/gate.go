// Package gate turns authentication state and roles into render or
// redirect decisions for page routes.
//
// Gated content is only rendered once the state has resolved: a loading
// view always yields a placeholder.
package gate

import "github.com/newsshelf/shelf-auth/claims"

// State is the resolved authentication state of a view
type State string

const (
	StateLoading       State = "LOADING"
	StateAnonymous     State = "ANONYMOUS"
	StateAuthenticated State = "AUTHENTICATED"
)

// Outcome is what a route renders
type Outcome string

const (
	RenderChildren    Outcome = "render_children"
	RenderPlaceholder Outcome = "render_placeholder"
	RedirectLogin     Outcome = "redirect_login"
	RedirectHome      Outcome = "redirect_home"
)

// Decision is the result of evaluating a route. From is set for
// RedirectLogin so the caller can return after signing in.
type Decision struct {
	Outcome Outcome
	From    string
}

// View is the session state a guard needs. session.Store implements it.
type View interface {
	Loading() bool
	IsAuthenticated() bool
	Roles() []string
}

// Route evaluates a view for a path
type Route interface {
	Evaluate(view View, path string) Decision
}

// StateOf resolves the state of a view. A nil view is anonymous.
func StateOf(view View) State {
	switch {
	case view == nil:
		return StateAnonymous
	case view.Loading():
		return StateLoading
	case view.IsAuthenticated():
		return StateAuthenticated
	default:
		return StateAnonymous
	}
}

// ProtectedRoute requires authentication only
type ProtectedRoute struct{}

func (ProtectedRoute) Evaluate(view View, path string) Decision {
	switch StateOf(view) {
	case StateLoading:
		return Decision{Outcome: RenderPlaceholder}
	case StateAnonymous:
		return Decision{Outcome: RedirectLogin, From: path}
	default:
		return Decision{Outcome: RenderChildren}
	}
}

// RoleRoute requires authentication and one of Allowed. An empty Allowed
// admits every authenticated view. Denied views go home, not to login.
type RoleRoute struct {
	Allowed []string
}

func (r RoleRoute) Evaluate(view View, path string) Decision {
	d := ProtectedRoute{}.Evaluate(view, path)
	if d.Outcome != RenderChildren {
		return d
	}

	if !claims.HasAnyRole(view.Roles(), r.Allowed) {
		return Decision{Outcome: RedirectHome}
	}

	return d
}

// StaticView is a resolved view, used on the server where state never loads
type StaticView struct {
	Authenticated bool
	RoleNames     []string
}

func (v StaticView) Loading() bool         { return false }
func (v StaticView) IsAuthenticated() bool { return v.Authenticated }
func (v StaticView) Roles() []string       { return v.RoleNames }

// Anonymous is the view of a caller without a usable token
var Anonymous View = StaticView{}

// TokenView derives a view from an unverified token for display gating.
// Server routes should resolve views from validated claims instead.
func TokenView(token string) View {
	if token == "" {
		return Anonymous
	}
	return StaticView{
		Authenticated: true,
		RoleNames:     claims.RolesFromToken(token),
	}
}

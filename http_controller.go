package auth

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Patch(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

type AuthControllerRoutes struct {
	Register       string
	Login          string
	External       string
	Logout         string
	ProfileMe      string
	Profile        string
	ReadNews       string
	History        string
	FavoriteTopics string
	AdminUsers     string
}

type AuthController struct {
	Debug    bool
	Logger   Logger
	Routes   *AuthControllerRoutes
	Auther   Authenticator
	HTTP     *RouteAuthenticator
	Profiles *Profiles
	Admin    *Admin
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(l)
		return c
	}
}

func WithAuthenticator(a Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

func WithRouteAuthenticator(r *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.HTTP = r
		return c
	}
}

func WithProfiles(p *Profiles) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Profiles = p
		return c
	}
}

func WithAdmin(a *Admin) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Admin = a
		return c
	}
}

func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:       "/api/auth/register",
			Login:          "/api/auth/login",
			External:       "/api/auth/external",
			Logout:         "/api/auth/logout",
			ProfileMe:      "/api/profiles/me",
			Profile:        "/api/profiles",
			ReadNews:       "/api/activities/read",
			History:        "/api/activities/history",
			FavoriteTopics: "/api/activities/favorite-topics",
			AdminUsers:     "/api/admin/users",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.HTTP == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	if c.Profiles == nil {
		panic("Missing Profiles in auth controller...")
	}

	if c.Admin == nil {
		panic("Missing Admin in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the public auth, profile, activity and admin APIs
func RegisterAuthRoutes(app RouteRegistrar, controller *AuthController) {
	member := controller.HTTP.ProtectedRoute()
	admin := controller.HTTP.AdminRoute()
	r := controller.Routes

	app.Post(r.Register, controller.Register).SetName("auth.register")
	app.Post(r.Login, controller.Login).SetName("auth.login")
	app.Post(r.External, controller.External).SetName("auth.external")
	app.Post(r.Logout, controller.Logout).SetName("auth.logout")

	app.Get(r.ProfileMe, controller.ProfileMe, member).SetName("profiles.me")
	app.Put(r.Profile, controller.ProfileUpdate, member).SetName("profiles.update")

	app.Post(r.ReadNews, controller.RecordRead, member).SetName("activities.read")
	app.Get(r.History, controller.History, member).SetName("activities.history")
	app.Get(r.FavoriteTopics, controller.FavoriteTopicsGet, member).SetName("activities.topics.get")
	app.Post(r.FavoriteTopics, controller.FavoriteTopicsSet, member).SetName("activities.topics.set")

	app.Get(r.AdminUsers, controller.AdminListUsers, admin).SetName("admin.users.list")
	app.Put(r.AdminUsers+"/:id/role", controller.AdminSetRole, admin).SetName("admin.users.role.put")
	app.Patch(r.AdminUsers+"/:id/role", controller.AdminSetRole, admin).SetName("admin.users.role.patch")
	app.Delete(r.AdminUsers+"/:id", controller.AdminDeleteUser, admin).SetName("admin.users.delete")
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// RegisterRequest payload
type RegisterRequest struct {
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	DisplayName    string   `json:"displayName"`
	Bio            string   `json:"bio"`
	FavoriteTopics []string `json:"favoriteTopics"`
	AccountType    string   `json:"accountType"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 0)),
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Bio, validation.Length(0, 1024)),
	)
}

// ExternalLoginRequest payload
type ExternalLoginRequest struct {
	Provider      string `json:"provider"`
	ExternalToken string `json:"externalToken"`
}

func (r ExternalLoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Provider, validation.Required),
		validation.Field(&r.ExternalToken, validation.Required),
	)
}

// UpdateProfileRequest payload. Omitting favoriteTopics keeps them.
type UpdateProfileRequest struct {
	DisplayName    string   `json:"displayName"`
	Bio            string   `json:"bio"`
	FavoriteTopics []string `json:"favoriteTopics"`
}

func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Bio, validation.Length(0, 1024)),
	)
}

// RecordReadRequest payload
type RecordReadRequest struct {
	NewsID    string `json:"newsId"`
	NewsTitle string `json:"newsTitle"`
	Topic     string `json:"topic"`
}

func (r RecordReadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewsID, validation.Required),
		validation.Field(&r.NewsTitle, validation.Length(0, 256)),
		validation.Field(&r.Topic, validation.Length(0, 64)),
	)
}

// SetFavoriteTopicsRequest payload
type SetFavoriteTopicsRequest struct {
	Topics []string `json:"topics"`
}

// SetRoleRequest payload. A blank role means READER.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// LoginResponse is the issued token plus the page a guard bounced the
// caller from, when there is one.
type LoginResponse struct {
	*IssuedToken
	Redirect string `json:"redirect,omitempty"`
}

func (a *AuthController) Register(ctx router.Context) error {
	payload := new(RegisterRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	token, err := a.Auther.Register(ctx.Context(), RegisterUserMessage{
		Email:          strings.TrimSpace(payload.Email),
		Password:       payload.Password,
		DisplayName:    payload.DisplayName,
		Bio:            payload.Bio,
		FavoriteTopics: payload.FavoriteTopics,
		AccountType:    payload.AccountType,
	})
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	a.HTTP.SetToken(ctx, token)
	return ctx.JSON(router.StatusCreated, token)
}

func (a *AuthController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	token, err := a.Auther.Login(ctx.Context(), strings.TrimSpace(payload.Email), payload.Password)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	a.HTTP.SetToken(ctx, token)
	return ctx.JSON(router.StatusOK, LoginResponse{
		IssuedToken: token,
		Redirect:    a.HTTP.GetRedirect(ctx, ""),
	})
}

func (a *AuthController) External(ctx router.Context) error {
	payload := new(ExternalLoginRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	token, err := a.Auther.ExternalLogin(ctx.Context(), payload.Provider, payload.ExternalToken)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	a.HTTP.SetToken(ctx, token)
	return ctx.JSON(router.StatusOK, token)
}

func (a *AuthController) Logout(ctx router.Context) error {
	a.HTTP.Logout(ctx)
	return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
}

func (a *AuthController) ProfileMe(ctx router.Context) error {
	userID, err := a.callerID(ctx)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	profile, err := a.Profiles.Get(ctx.Context(), userID)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, profile)
}

func (a *AuthController) ProfileUpdate(ctx router.Context) error {
	userID, err := a.callerID(ctx)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	payload := new(UpdateProfileRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	profile, err := a.Profiles.Update(ctx.Context(), userID, ProfileUpdate{
		DisplayName:    payload.DisplayName,
		Bio:            payload.Bio,
		FavoriteTopics: payload.FavoriteTopics,
	})
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, profile)
}

func (a *AuthController) RecordRead(ctx router.Context) error {
	userID, err := a.callerID(ctx)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	payload := new(RecordReadRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	activity, err := a.Profiles.RecordRead(ctx.Context(), userID, ReadRecord{
		NewsID:    payload.NewsID,
		NewsTitle: payload.NewsTitle,
		Topic:     payload.Topic,
	})
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, activity)
}

func (a *AuthController) History(ctx router.Context) error {
	userID, err := a.callerID(ctx)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	take := DefaultHistoryTake
	if raw := ctx.Query("take"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return a.HTTP.WriteError(ctx, newValidationError("take: must be an integer", nil))
		}
		take = n
	}

	items, err := a.Profiles.History(ctx.Context(), userID, take)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, items)
}

func (a *AuthController) FavoriteTopicsGet(ctx router.Context) error {
	userID, err := a.callerID(ctx)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	topics, err := a.Profiles.FavoriteTopics(ctx.Context(), userID)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, topics)
}

func (a *AuthController) FavoriteTopicsSet(ctx router.Context) error {
	userID, err := a.callerID(ctx)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	payload := new(SetFavoriteTopicsRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	topics, err := a.Profiles.SetFavoriteTopics(ctx.Context(), userID, payload.Topics)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, topics)
}

func (a *AuthController) AdminListUsers(ctx router.Context) error {
	list, err := a.Admin.ListIdentities(ctx.Context(), ctx.Query("role"))
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}
	return ctx.JSON(router.StatusOK, list)
}

func (a *AuthController) AdminSetRole(ctx router.Context) error {
	// an empty body assigns READER
	payload := new(SetRoleRequest)
	if len(bytes.TrimSpace(ctx.Body())) > 0 {
		if err := a.bind(ctx, payload); err != nil {
			return a.HTTP.WriteError(ctx, err)
		}
	}

	role, err := a.Admin.AssignRole(
		ctx.Context(),
		ActorFromRouter(ctx, a.HTTP.cfg.GetContextKey()),
		ctx.Param("id"),
		payload.Role,
	)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":   true,
		"role": role,
	})
}

func (a *AuthController) AdminDeleteUser(ctx router.Context) error {
	err := a.Admin.DeleteIdentity(
		ctx.Context(),
		ActorFromRouter(ctx, a.HTTP.cfg.GetContextKey()),
		ctx.Param("id"),
	)
	if err != nil {
		return a.HTTP.WriteError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
}

// callerID reads the user id from the verified claims set by ProtectedRoute
func (a *AuthController) callerID(ctx router.Context) (string, error) {
	claims, ok := GetRouterClaims(ctx, a.HTTP.cfg.GetContextKey())
	if !ok || claims.UserID() == "" {
		return "", ErrUnableToFindSession
	}
	return claims.UserID(), nil
}

// bind decodes the request body and runs its validation rules
func (a *AuthController) bind(ctx router.Context, payload any) error {
	if err := ctx.Bind(payload); err != nil {
		return newValidationError("invalid request body", nil)
	}

	if a.Debug {
		a.Logger.Debug("payload %s", print.MaybePrettyJSON(payload))
	}

	v, ok := payload.(validation.Validatable)
	if !ok {
		return nil
	}

	if err := v.Validate(); err != nil {
		return validationFailure(err)
	}

	return nil
}

// validationFailure surfaces the first field error, by field name, as the
// message and keeps every field error in the metadata.
func validationFailure(err error) error {
	errs, ok := err.(validation.Errors)
	if !ok || len(errs) == 0 {
		return newValidationError(err.Error(), nil)
	}

	fields := make([]string, 0, len(errs))
	meta := make(map[string]any, len(errs))
	for field, ferr := range errs {
		fields = append(fields, field)
		meta[field] = ferr.Error()
	}
	sort.Strings(fields)

	first := fields[0]
	return newValidationError(first+": "+errs[first].Error(), meta)
}

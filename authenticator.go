package auth

import (
	"context"
	"reflect"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type Auther struct {
	provider     IdentityProvider
	repo         RepositoryManager
	tokenService *TokenServiceImpl
	verifier     ExternalVerifier
	registration *RegisterUserHandler
	useHashid    bool
	logger       Logger
	activity     activityEmitter
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, repo RepositoryManager, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		jwt.ClaimStrings(opts.GetAudience()),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		repo:         repo,
		tokenService: tokenService,
		registration: NewRegisterUserHandler(repo),
		logger:       defLogger{},
		activity:     activityEmitter{logger: defLogger{}},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	s.activity.logger = s.logger
	s.tokenService.logger = s.logger
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activity.sink = normalizeActivitySink(sink)
	return s
}

// WithExternalVerifier sets the verifier used by ExternalLogin
func (s *Auther) WithExternalVerifier(v ExternalVerifier) *Auther {
	s.verifier = v
	return s
}

// WithHashidIDs derives new user ids from their email
func (s *Auther) WithHashidIDs(enabled bool) *Auther {
	s.useHashid = enabled
	return s
}

// WithClock overrides the time source for tokens and events
func (s *Auther) WithClock(c Clock) *Auther {
	s.tokenService.WithClock(c)
	s.activity.now = c
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

func (s *Auther) Login(ctx context.Context, email, password string) (*IssuedToken, error) {
	identity, err := s.provider.VerifyIdentity(ctx, email, password)
	if err != nil {
		s.logger.Error("Login verify identity error: %v", err)
		s.activity.emit(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return nil, ErrIdentityNotFound
	}

	token, err := s.tokenService.Issue(identity)
	if err != nil {
		s.activity.emit(ctx, ActivityEventLoginFailure, actorFromID(identity.ID()), identity.ID(), map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	s.activity.emit(ctx, ActivityEventLoginSuccess, actorFromID(identity.ID()), identity.ID(), map[string]any{
		"email": identity.Email(),
		"roles": identity.Roles(),
	})

	return token, nil
}

func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*IssuedToken, error) {
	msg.UseHashid = msg.UseHashid || s.useHashid

	user, err := s.registration.Execute(ctx, msg)
	if err != nil {
		s.logger.Warn("Register failed: %v", err)
		return nil, err
	}

	s.activity.emit(ctx, ActivityEventUserRegistered, actorFromID(user.ID.String()), user.ID.String(), map[string]any{
		"email":       user.Email,
		"displayName": user.DisplayName,
	})

	return s.tokenService.Issue(NewIdentityFromUser(user))
}

// ExternalLogin verifies a provider token then resolves the user by linked
// login, then by email, creating it when neither matches. The login link
// is recorded when missing.
func (s *Auther) ExternalLogin(ctx context.Context, provider, externalToken string) (*IssuedToken, error) {
	if s.verifier == nil {
		return nil, ErrExternalTokenInvalid
	}

	profile, err := s.verifier.Verify(ctx, provider, externalToken)
	if err != nil || profile == nil || strings.TrimSpace(profile.Email) == "" {
		s.logger.Warn("External token rejected for provider %s: %v", provider, err)
		return nil, ErrExternalTokenInvalid
	}

	provider = strings.ToLower(strings.TrimSpace(provider))
	var user *User

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		users := s.repo.Users()
		linked := true

		found, err := users.FindByExternalLoginTx(ctx, tx, provider, profile.Key())
		if err != nil && !repository.IsRecordNotFound(err) {
			return err
		}

		if found == nil {
			linked = false
			found, err = users.GetByIdentifierTx(ctx, tx, profile.Email)
			if err != nil && !repository.IsRecordNotFound(err) {
				return err
			}
		}

		if found == nil {
			found, err = users.CreateTx(ctx, tx, &User{
				Email:        profile.Email,
				DisplayName:  firstNonEmpty(profile.Name, profile.Email),
				PasswordHash: RandomPasswordHash(),
			})
			if err != nil {
				return err
			}
		}

		if !linked {
			if err := users.AddExternalLoginTx(ctx, tx, &ExternalLogin{
				UserID:      found.ID,
				Provider:    provider,
				ProviderKey: profile.Key(),
			}); err != nil {
				return err
			}
		}

		user, err = users.GetWithRelationsTx(ctx, tx, found.ID.String())
		return err
	})

	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "external login failed")
	}

	s.activity.emit(ctx, ActivityEventExternalLogin, actorFromID(user.ID.String()), user.ID.String(), map[string]any{
		"provider": provider,
	})

	return s.tokenService.Issue(NewIdentityFromUser(user))
}

// SeedMainAdmin makes sure the configured main admin exists and holds
// exactly the ADMIN role. An existing password is never overwritten.
func (s *Auther) SeedMainAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("main admin email is required", errors.CategoryBadInput)
	}

	return s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		users := s.repo.Users()

		user, err := users.GetByIdentifierTx(ctx, tx, email)
		if err != nil {
			if !repository.IsRecordNotFound(err) {
				return errors.Wrap(err, errors.CategoryInternal, "failed to look up main admin")
			}

			hash := RandomPasswordHash()
			if password != "" {
				if hash, err = HashPassword(password); err != nil {
					return err
				}
			}

			user, err = users.CreateTx(ctx, tx, &User{
				Email:        email,
				DisplayName:  "Administrator",
				PasswordHash: hash,
			})
			if err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to create main admin")
			}
			s.logger.Info("main admin %s created", user.Email)
		}

		if err := users.ReplaceRolesTx(ctx, tx, user.ID, RoleAdmin); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to grant main admin role")
		}

		return nil
	})
}

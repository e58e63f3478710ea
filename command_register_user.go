package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// RegisterUserMessage is a self-service registration
type RegisterUserMessage struct {
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	DisplayName    string   `json:"displayName"`
	Bio            string   `json:"bio"`
	FavoriteTopics []string `json:"favoriteTopics"`
	AccountType    string   `json:"accountType"`
	// UseHashid derives the user id from the email
	UseHashid bool `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// InitialRole is the role granted at registration. Without favorite topics
// no role is granted; ADMIN is never granted this way.
func (e RegisterUserMessage) InitialRole() (Role, bool) {
	if len(NormalizeTopics(e.FavoriteTopics)) == 0 {
		return "", false
	}

	if r, ok := ParseRole(e.AccountType); ok && r == RolePublisher {
		return RolePublisher, true
	}

	return RoleReader, true
}

// RegisterUserHandler stores a new user with its topics and initial role
type RegisterUserHandler struct {
	repo RepositoryManager
}

// NewRegisterUserHandler returns the registration handler
func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	return &RegisterUserHandler{repo: repo}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	var user *User
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.Email); err == nil {
			return ErrEmailTaken
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		record := &User{
			Email:        event.Email,
			DisplayName:  strings.TrimSpace(event.DisplayName),
			Bio:          event.Bio,
			PasswordHash: hash,
		}

		if event.UseHashid {
			if id, err := hashid.NewUUID(normalizeEmail(event.Email)); err == nil {
				record.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		if err := h.repo.Users().ReplaceTopicsTx(ctx, tx, user.ID, NormalizeTopics(event.FavoriteTopics)); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not store favorite topics")
		}

		if role, ok := event.InitialRole(); ok {
			if err := h.repo.Users().ReplaceRolesTx(ctx, tx, user.ID, role); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "could not assign initial role")
			}
		}

		user, err = h.repo.Users().GetWithRelationsTx(ctx, tx, user.ID.String())
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	return user, nil
}

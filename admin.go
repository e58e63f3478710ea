package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// AdminUserItem is a row of the admin identity listing
type AdminUserItem struct {
	ID     string     `json:"id"`
	Email  string     `json:"email"`
	Role   Role       `json:"role"`
	Status UserStatus `json:"status"`
}

// AdminUserList is the admin identity listing
type AdminUserList struct {
	Users []AdminUserItem `json:"users"`
	Total int             `json:"total"`
}

// Admin performs privileged identity mutations. The main admin, matched by
// email ignoring case, can never be mutated or deleted, whoever the caller.
type Admin struct {
	repo           RepositoryManager
	mainAdminEmail string
	logger         Logger
	activity       activityEmitter
}

// NewAdmin returns an Admin protecting mainAdminEmail
func NewAdmin(repo RepositoryManager, mainAdminEmail string) *Admin {
	a := &Admin{
		repo:           repo,
		mainAdminEmail: normalizeEmail(mainAdminEmail),
		logger:         defLogger{},
	}
	a.activity = activityEmitter{logger: a.logger}
	return a
}

func (a *Admin) WithLogger(logger Logger) *Admin {
	a.logger = normalizeLogger(logger)
	a.activity.logger = a.logger
	return a
}

// WithActivitySink configures an ActivitySink for admin events.
func (a *Admin) WithActivitySink(sink ActivitySink) *Admin {
	a.activity.sink = normalizeActivitySink(sink)
	return a
}

// WithClock overrides the event timestamp source
func (a *Admin) WithClock(c Clock) *Admin {
	a.activity.now = c
	return a
}

// IsMainAdmin reports whether email belongs to the protected identity
func (a *Admin) IsMainAdmin(email string) bool {
	return a.mainAdminEmail != "" && normalizeEmail(email) == a.mainAdminEmail
}

// ListIdentities enumerates identities, optionally restricted to holders of
// roleFilter. An empty filter lists everyone.
func (a *Admin) ListIdentities(ctx context.Context, roleFilter string) (*AdminUserList, error) {
	var role Role
	if strings.TrimSpace(roleFilter) != "" {
		r, ok := ParseRole(roleFilter)
		if !ok {
			return nil, ErrInvalidRole
		}
		role = r
	}

	records, _, err := a.repo.Users().ListByRole(ctx, role)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list identities")
	}

	out := &AdminUserList{Users: make([]AdminUserItem, 0, len(records))}
	for _, u := range records {
		out.Users = append(out.Users, AdminUserItem{
			ID:     u.ID.String(),
			Email:  u.Email,
			Role:   u.PrimaryRole(),
			Status: UserStatusActive,
		})
	}
	out.Total = len(out.Users)

	return out, nil
}

// AssignRole replaces every role of the identity with newRole. Checks run
// in order: existence, main admin protection, role validity, favorite
// topics precondition for READER and PUBLISHER.
func (a *Admin) AssignRole(ctx context.Context, actor ActorRef, identityID, newRole string) (Role, error) {
	var role Role

	err := a.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := a.findIdentity(ctx, tx, identityID)
		if err != nil {
			return err
		}

		if a.IsMainAdmin(user.Email) {
			return ErrMainAdminProtected
		}

		if strings.TrimSpace(newRole) == "" {
			newRole = string(RoleReader)
		}

		r, ok := ParseRole(newRole)
		if !ok {
			return ErrInvalidRole
		}

		if r.RequiresFavoriteTopics() {
			count, err := a.repo.Users().CountTopicsTx(ctx, tx, user.ID)
			if err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to count favorite topics")
			}
			if count == 0 {
				return ErrFavoriteTopicsRequired
			}
		}

		if err := a.repo.Users().ReplaceRolesTx(ctx, tx, user.ID, r); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to replace roles")
		}

		role = r
		return nil
	})

	if err != nil {
		a.logger.Warn("assign role rejected for %s: %v", identityID, err)
		return "", err
	}

	a.activity.emit(ctx, ActivityEventAdminRoleAssigned, actor, identityID, map[string]any{
		"role": string(role),
	})

	return role, nil
}

// DeleteIdentity removes the identity with its topics, history, external
// logins and roles.
func (a *Admin) DeleteIdentity(ctx context.Context, actor ActorRef, identityID string) error {
	err := a.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := a.findIdentity(ctx, tx, identityID)
		if err != nil {
			return err
		}

		if a.IsMainAdmin(user.Email) {
			return ErrMainAdminProtected
		}

		if err := a.repo.Users().DeleteCascadeTx(ctx, tx, user.ID); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return errors.Wrap(err, errors.CategoryInternal, "failed to delete identity")
		}

		return nil
	})

	if err != nil {
		a.logger.Warn("delete identity rejected for %s: %v", identityID, err)
		return err
	}

	a.activity.emit(ctx, ActivityEventAdminIdentityDeleted, actor, identityID, map[string]any{
		"deleted_at": normalizeClock(a.activity.now)().UTC(),
	})

	return nil
}

func (a *Admin) findIdentity(ctx context.Context, tx bun.IDB, identityID string) (*User, error) {
	if _, ok := parseUserID(identityID); !ok {
		return nil, ErrIdentityNotFound
	}

	user, err := a.repo.Users().GetByIdentifierTx(ctx, tx, identityID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load identity")
	}
	return user, nil
}

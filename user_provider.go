package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// UserProvider resolves identities from the users store
type UserProvider struct {
	repo   RepositoryManager
	logger Logger
}

var _ IdentityProvider = (*UserProvider)(nil)

// NewUserProvider will create a new UserProvider
func NewUserProvider(repo RepositoryManager) *UserProvider {
	return &UserProvider{
		repo:   repo,
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

// VerifyIdentity will find the user, compare to the password, and return
// identity. Unknown emails and wrong passwords fail the same way.
func (u *UserProvider) VerifyIdentity(ctx context.Context, email, password string) (Identity, error) {
	user, err := u.repo.Users().GetWithRelationsTx(ctx, u.repo.DB(), email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, ErrMismatchedHashAndPassword
		}
		u.logger.Error("password comparison failed for %s: %v", user.ID, err)
		return nil, ErrMismatchedHashAndPassword
	}

	return NewIdentityFromUser(user), nil
}

// FindIdentityByIdentifier accepts a user id or an email
func (u *UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.repo.Users().GetWithRelationsTx(ctx, u.repo.DB(), identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve identity")
	}

	return NewIdentityFromUser(user), nil
}

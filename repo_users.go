package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the identity store
type Users interface {
	repository.Repository[*User]

	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error)

	// GetWithRelationsTx loads the user with roles in insertion order and
	// favorite topics.
	GetWithRelationsTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error)
	ListByRole(ctx context.Context, role Role) ([]*User, int, error)

	ReplaceRolesTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, roles ...Role) error
	ReplaceTopicsTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, topics []string) error
	CountTopicsTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, displayName, bio string) error

	RecordActivityTx(ctx context.Context, tx bun.IDB, activity *Activity) error
	ListActivities(ctx context.Context, userID uuid.UUID, take int) ([]*Activity, error)

	FindByExternalLoginTx(ctx context.Context, tx bun.IDB, provider, providerKey string) (*User, error)
	AddExternalLoginTx(ctx context.Context, tx bun.IDB, login *ExternalLogin) error

	// DeleteCascadeTx removes the user and every row that references it
	DeleteCascadeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now Clock
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// UsersOption configures the users repository
type UsersOption func(*users)

// WithUsersClock overrides the time source used for timestamps
func WithUsersClock(c Clock) UsersOption {
	return func(u *users) {
		u.now = normalizeClock(c)
	}
}

// NewUsersRepository returns the bun backed identity store
func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

// GetByIdentifierTx resolves identifier as a user id first, then as an
// email compared case-insensitively.
func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	options := resolveUserIdentifier(identifier)

	for _, opt := range options {
		record := &User{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		if opt.column == "email" {
			q.Where("lower(?TableAlias.email) = ?", opt.value)
		} else {
			q.Where("?TableAlias.id = ?", opt.value)
		}

		err := q.Limit(1).Scan(ctx)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) GetWithRelationsTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error) {
	return a.GetByIdentifierTx(ctx, tx, identifier, withUserRelations)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	a.prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) ListByRole(ctx context.Context, role Role) ([]*User, int, error) {
	var records []*User

	q := a.db.NewSelect().
		Model(&records).
		Apply(withUserRelations).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.email ASC")

	if role != "" {
		q.Where("EXISTS (SELECT 1 FROM user_roles AS r WHERE r.user_id = ?TableAlias.id AND r.role = ?)", role)
	}

	count, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}

	return records, count, nil
}

func (a *users) ReplaceRolesTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, roles ...Role) error {
	if _, err := tx.NewDelete().
		Model((*UserRoleRecord)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx); err != nil {
		return err
	}

	if len(roles) == 0 {
		return nil
	}

	now := a.now()
	records := make([]*UserRoleRecord, 0, len(roles))
	for _, r := range roles {
		records = append(records, &UserRoleRecord{
			UserID:    userID,
			Role:      r,
			CreatedAt: &now,
		})
	}

	_, err := tx.NewInsert().Model(&records).Exec(ctx)
	return err
}

func (a *users) ReplaceTopicsTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, topics []string) error {
	if _, err := tx.NewDelete().
		Model((*FavoriteTopic)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx); err != nil {
		return err
	}

	if len(topics) == 0 {
		return nil
	}

	now := a.now()
	records := make([]*FavoriteTopic, 0, len(topics))
	for _, t := range topics {
		records = append(records, &FavoriteTopic{
			UserID:    userID,
			Topic:     t,
			CreatedAt: &now,
		})
	}

	_, err := tx.NewInsert().Model(&records).Exec(ctx)
	return err
}

func (a *users) CountTopicsTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	return tx.NewSelect().
		Model((*FavoriteTopic)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
}

func (a *users) UpdateProfileTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, displayName, bio string) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("display_name = ?", displayName).
		Set("bio = ?", bio).
		Set("updated_at = ?", a.now()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": userID.String(),
			})
	}

	return nil
}

func (a *users) RecordActivityTx(ctx context.Context, tx bun.IDB, activity *Activity) error {
	if activity.OccurredAt.IsZero() {
		activity.OccurredAt = a.now()
	}
	_, err := tx.NewInsert().Model(activity).Exec(ctx)
	return err
}

func (a *users) ListActivities(ctx context.Context, userID uuid.UUID, take int) ([]*Activity, error) {
	var records []*Activity
	err := a.db.NewSelect().
		Model(&records).
		Where("user_id = ?", userID).
		OrderExpr("occurred_at DESC, id DESC").
		Limit(take).
		Scan(ctx)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (a *users) FindByExternalLoginTx(ctx context.Context, tx bun.IDB, provider, providerKey string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("EXISTS (SELECT 1 FROM user_external_logins AS l WHERE l.user_id = ?TableAlias.id AND l.provider = ? AND l.provider_key = ?)",
			strings.ToLower(provider), providerKey).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"provider":     provider,
					"provider_key": providerKey,
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) AddExternalLoginTx(ctx context.Context, tx bun.IDB, login *ExternalLogin) error {
	login.Provider = strings.ToLower(login.Provider)
	if login.CreatedAt == nil {
		now := a.now()
		login.CreatedAt = &now
	}
	_, err := tx.NewInsert().Model(login).Exec(ctx)
	return err
}

func (a *users) DeleteCascadeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	dependents := []any{
		(*FavoriteTopic)(nil),
		(*Activity)(nil),
		(*ExternalLogin)(nil),
		(*UserRoleRecord)(nil),
	}

	for _, model := range dependents {
		if _, err := tx.NewDelete().
			Model(model).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return err
		}
	}

	res, err := tx.NewDelete().
		Model((*User)(nil)).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": userID.String(),
			})
	}

	return nil
}

func (a *users) prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = normalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := a.now()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}

func withUserRelations(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Relation("Roles", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("urol.id ASC")
		}).
		Relation("FavoriteTopics")
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	if id, err := uuid.Parse(trimmed); err == nil {
		return []identifierOption{{column: "id", value: id.String()}}
	}

	return []identifierOption{{column: "email", value: normalizeEmail(trimmed)}}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

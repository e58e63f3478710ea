package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is reported in admin listings. Every stored user is active.
type UserStatus string

const (
	// UserStatusActive is the only status an account can have
	UserStatusActive UserStatus = "ACTIVE"
)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	Email          string            `bun:"email,notnull,unique" json:"email"`
	DisplayName    string            `bun:"display_name,notnull" json:"displayName"`
	Bio            string            `bun:"bio" json:"bio,omitempty"`
	PasswordHash   string            `bun:"password_hash" json:"-"`
	CreatedAt      *time.Time        `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt      *time.Time        `bun:"updated_at,nullzero,default:current_timestamp" json:"updatedAt,omitempty"`
	Roles          []*UserRoleRecord `bun:"rel:has-many,join:id=user_id" json:"-"`
	FavoriteTopics []*FavoriteTopic  `bun:"rel:has-many,join:id=user_id" json:"-"`
}

// RoleNames returns stored roles in insertion order
func (u *User) RoleNames() []string {
	if u == nil {
		return nil
	}
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r == nil {
			continue
		}
		out = append(out, string(r.Role))
	}
	return out
}

// TopicNames returns the favorite topics sorted case-insensitively
func (u *User) TopicNames() []string {
	if u == nil {
		return nil
	}
	out := make([]string, 0, len(u.FavoriteTopics))
	for _, t := range u.FavoriteTopics {
		if t == nil {
			continue
		}
		out = append(out, t.Topic)
	}
	return sortTopics(out)
}

// PrimaryRole is the first stored role, READER when none is stored
func (u *User) PrimaryRole() Role {
	if u != nil {
		for _, r := range u.Roles {
			if r != nil && r.Role != "" {
				return r.Role
			}
		}
	}
	return RoleReader
}

// UserRoleRecord is a single role assignment, at most one per (user, role)
type UserRoleRecord struct {
	bun.BaseModel `bun:"table:user_roles,alias:urol"`
	ID            int64      `bun:"id,pk,autoincrement" json:"-"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"userId"`
	Role          Role       `bun:"role,notnull" json:"role"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
}

// FavoriteTopic is a topic a user follows
type FavoriteTopic struct {
	bun.BaseModel `bun:"table:user_favorite_topics,alias:uft"`
	ID            int64      `bun:"id,pk,autoincrement" json:"-"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"userId"`
	Topic         string     `bun:"topic,notnull" json:"topic"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
}

// Activity kinds recorded in the user history
const (
	ActivityKindNewsRead = "NEWS_READ"
)

// Activity is a reading history entry
type Activity struct {
	bun.BaseModel `bun:"table:user_activities,alias:uact"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"userId"`
	Kind          string    `bun:"kind,notnull" json:"kind"`
	NewsID        string    `bun:"news_id" json:"newsId"`
	NewsTitle     string    `bun:"news_title" json:"newsTitle,omitempty"`
	Topic         string    `bun:"topic" json:"topic,omitempty"`
	OccurredAt    time.Time `bun:"occurred_at,notnull" json:"occurredAt"`
}

// ExternalLogin links a provider account to a user
type ExternalLogin struct {
	bun.BaseModel `bun:"table:user_external_logins,alias:uext"`
	ID            int64      `bun:"id,pk,autoincrement" json:"-"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"userId"`
	Provider      string     `bun:"provider,notnull" json:"provider"`
	ProviderKey   string     `bun:"provider_key,notnull" json:"providerKey"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
}

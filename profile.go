package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Profile is the self-service view of a user
type Profile struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	DisplayName    string   `json:"displayName"`
	Bio            string   `json:"bio,omitempty"`
	FavoriteTopics []string `json:"favoriteTopics"`
	Roles          []string `json:"roles"`
}

// ProfileUpdate carries editable profile fields. A nil FavoriteTopics
// leaves the stored topics untouched.
type ProfileUpdate struct {
	DisplayName    string
	Bio            string
	FavoriteTopics []string
}

// ReadRecord is a news read to append to the history
type ReadRecord struct {
	NewsID    string
	NewsTitle string
	Topic     string
}

// Profiles serves profile, favorite topic and reading history operations
// for the authenticated user.
type Profiles struct {
	repo     RepositoryManager
	logger   Logger
	activity activityEmitter
}

// NewProfiles returns the profile service
func NewProfiles(repo RepositoryManager) *Profiles {
	p := &Profiles{
		repo:   repo,
		logger: defLogger{},
	}
	p.activity = activityEmitter{logger: p.logger}
	return p
}

func (p *Profiles) WithLogger(logger Logger) *Profiles {
	p.logger = normalizeLogger(logger)
	p.activity.logger = p.logger
	return p
}

// WithActivitySink configures an ActivitySink for profile events.
func (p *Profiles) WithActivitySink(sink ActivitySink) *Profiles {
	p.activity.sink = normalizeActivitySink(sink)
	return p
}

// WithClock overrides the event timestamp source
func (p *Profiles) WithClock(c Clock) *Profiles {
	p.activity.now = c
	return p
}

// Get returns the profile of userID
func (p *Profiles) Get(ctx context.Context, userID string) (*Profile, error) {
	user, err := p.load(ctx, p.db(), userID)
	if err != nil {
		return nil, err
	}
	return profileFromUser(user), nil
}

// Update changes display name and bio, and replaces favorite topics when
// they are given.
func (p *Profiles) Update(ctx context.Context, userID string, update ProfileUpdate) (*Profile, error) {
	var out *Profile

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := p.load(ctx, tx, userID)
		if err != nil {
			return err
		}

		if err := p.repo.Users().UpdateProfileTx(ctx, tx, user.ID, update.DisplayName, update.Bio); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to update profile")
		}

		if update.FavoriteTopics != nil {
			if err := p.repo.Users().ReplaceTopicsTx(ctx, tx, user.ID, NormalizeTopics(update.FavoriteTopics)); err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to update favorite topics")
			}
		}

		user, err = p.load(ctx, tx, userID)
		if err != nil {
			return err
		}

		out = profileFromUser(user)
		return nil
	})

	if err != nil {
		return nil, err
	}

	p.activity.emit(ctx, ActivityEventUserProfileUpdated, actorFromID(out.ID), out.ID, map[string]any{
		"displayName":    out.DisplayName,
		"favoriteTopics": out.FavoriteTopics,
	})

	return out, nil
}

// FavoriteTopics returns the stored topics sorted
func (p *Profiles) FavoriteTopics(ctx context.Context, userID string) ([]string, error) {
	user, err := p.load(ctx, p.db(), userID)
	if err != nil {
		return nil, err
	}
	return user.TopicNames(), nil
}

// SetFavoriteTopics replaces the topics with the normalized input
func (p *Profiles) SetFavoriteTopics(ctx context.Context, userID string, topics []string) ([]string, error) {
	normalized := NormalizeTopics(topics)
	var out []string

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := p.load(ctx, tx, userID)
		if err != nil {
			return err
		}

		if err := p.repo.Users().ReplaceTopicsTx(ctx, tx, user.ID, normalized); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to store favorite topics")
		}

		user, err = p.load(ctx, tx, userID)
		if err != nil {
			return err
		}

		out = user.TopicNames()
		return nil
	})

	if err != nil {
		return nil, err
	}

	p.activity.emit(ctx, ActivityEventFavoriteTopicAdded, actorFromID(userID), userID, map[string]any{
		"topics": out,
	})

	return out, nil
}

// RecordRead appends a news read to the history of userID
func (p *Profiles) RecordRead(ctx context.Context, userID string, read ReadRecord) (*Activity, error) {
	id, ok := parseUserID(userID)
	if !ok {
		return nil, ErrIdentityNotFound
	}

	activity := &Activity{
		UserID:    id,
		Kind:      ActivityKindNewsRead,
		NewsID:    read.NewsID,
		NewsTitle: read.NewsTitle,
		Topic:     read.Topic,
	}

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := p.load(ctx, tx, userID); err != nil {
			return err
		}
		if err := p.repo.Users().RecordActivityTx(ctx, tx, activity); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to record activity")
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	p.activity.emit(ctx, ActivityEventNewsRead, actorFromID(userID), userID, map[string]any{
		"newsId":   read.NewsID,
		"category": read.Topic,
	})

	return activity, nil
}

// History returns the newest take reads, take clamped to 1..200
func (p *Profiles) History(ctx context.Context, userID string, take int) ([]*Activity, error) {
	id, ok := parseUserID(userID)
	if !ok {
		return nil, ErrIdentityNotFound
	}

	items, err := p.repo.Users().ListActivities(ctx, id, ClampHistoryTake(take))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list activities")
	}
	if items == nil {
		items = []*Activity{}
	}
	return items, nil
}

func (p *Profiles) load(ctx context.Context, tx bun.IDB, userID string) (*User, error) {
	if _, ok := parseUserID(userID); !ok {
		return nil, ErrIdentityNotFound
	}

	user, err := p.repo.Users().GetWithRelationsTx(ctx, tx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load profile")
	}
	return user, nil
}

func (p *Profiles) db() bun.IDB {
	return p.repo.DB()
}

func profileFromUser(user *User) *Profile {
	return &Profile{
		ID:             user.ID.String(),
		Email:          user.Email,
		DisplayName:    user.DisplayName,
		Bio:            user.Bio,
		FavoriteTopics: user.TopicNames(),
		Roles:          user.RoleNames(),
	}
}

package auth_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/newsshelf/shelf-auth"
)

func TestProfileGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.register(t, "reader@example.com", "tech")

	p, err := f.profiles.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "reader@example.com", p.Email)
	assert.Equal(t, "User reader@example.com", p.DisplayName)

	_, err = f.profiles.Get(ctx, "bogus")
	require.ErrorIs(t, err, auth.ErrIdentityNotFound)
	_, err = f.profiles.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, auth.ErrIdentityNotFound)
}

func TestProfileUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.register(t, "reader@example.com", "tech", "sports")

	p, err := f.profiles.Update(ctx, id, auth.ProfileUpdate{DisplayName: "Ada", Bio: "reads a lot"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.Equal(t, "reads a lot", p.Bio)
	assert.Equal(t, []string{"sports", "tech"}, p.FavoriteTopics)

	p, err = f.profiles.Update(ctx, id, auth.ProfileUpdate{DisplayName: "Ada", FavoriteTopics: []string{"Art"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Art"}, p.FavoriteTopics)
	assert.Empty(t, p.Bio)

	p, err = f.profiles.Update(ctx, id, auth.ProfileUpdate{DisplayName: "Ada", FavoriteTopics: []string{}})
	require.NoError(t, err)
	assert.Empty(t, p.FavoriteTopics)

	assert.Equal(t, auth.ActivityEventUserProfileUpdated, f.sink.last().EventType)
}

func TestSetFavoriteTopics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.register(t, "reader@example.com")

	topics, err := f.profiles.SetFavoriteTopics(ctx, id, []string{" world ", "Tech", "tech", "", "art"})
	require.NoError(t, err)
	assert.Equal(t, []string{"art", "Tech", "world"}, topics)

	stored, err := f.profiles.FavoriteTopics(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, topics, stored)

	event := f.sink.last()
	assert.Equal(t, auth.ActivityEventFavoriteTopicAdded, event.EventType)
	assert.Equal(t, id, event.UserID)

	_, err = f.profiles.SetFavoriteTopics(ctx, uuid.NewString(), []string{"x"})
	require.ErrorIs(t, err, auth.ErrIdentityNotFound)
}

func TestRecordReadAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.register(t, "reader@example.com", "tech")

	for i := 0; i < 3; i++ {
		f.now = f.now.Add(time.Minute)
		a, err := f.profiles.RecordRead(ctx, id, auth.ReadRecord{
			NewsID:    fmt.Sprintf("n-%d", i),
			NewsTitle: fmt.Sprintf("Story %d", i),
			Topic:     "tech",
		})
		require.NoError(t, err)
		assert.Equal(t, auth.ActivityKindNewsRead, a.Kind)
		assert.True(t, a.OccurredAt.Equal(f.now))
	}

	items, err := f.profiles.History(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "n-2", items[0].NewsID)
	assert.Equal(t, "n-0", items[2].NewsID)

	items, err = f.profiles.History(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "n-2", items[0].NewsID)

	event := f.sink.last()
	assert.Equal(t, auth.ActivityEventNewsRead, event.EventType)
	assert.Equal(t, "n-2", event.Metadata["newsId"])
}

func TestHistoryOfUnknownUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items, err := f.profiles.History(ctx, uuid.NewString(), 5)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = f.profiles.History(ctx, "nope", 5)
	require.ErrorIs(t, err, auth.ErrIdentityNotFound)

	_, err = f.profiles.RecordRead(ctx, uuid.NewString(), auth.ReadRecord{NewsID: "n"})
	require.ErrorIs(t, err, auth.ErrIdentityNotFound)
}

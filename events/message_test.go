package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	auth "github.com/newsshelf/shelf-auth"
	"github.com/newsshelf/shelf-auth/events"
)

func TestNewMessage(t *testing.T) {
	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventAdminRoleAssigned,
		Actor:      auth.ActorRef{ID: "admin-42", Type: "user"},
		UserID:     "user-100",
		Metadata:   map[string]any{"role": "PUBLISHER"},
		OccurredAt: ts,
	}

	msg := events.NewMessage(event, nil)

	assert.Equal(t, events.Message{
		ActorID:    "admin-42",
		Verb:       "admin.role.assigned",
		ObjectType: "user",
		ObjectID:   "user-100",
		Channel:    "admin",
		Metadata: map[string]any{
			"role":                      "PUBLISHER",
			events.MetadataKeyActorType: "user",
		},
		OccurredAt: ts,
	}, msg)
	assert.Len(t, event.Metadata, 1)
}

func TestNewMessageFallbacks(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		event   auth.ActivityEvent
		actor   string
		channel string
	}{
		{"actor from user", auth.ActivityEvent{EventType: auth.ActivityEventNewsRead, UserID: "u-1"}, "u-1", "news"},
		{"system actor", auth.ActivityEvent{EventType: auth.ActivityEventLoginFailure}, "system", "auth"},
		{"no namespace", auth.ActivityEvent{EventType: "custom"}, "system", "auth"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := events.NewMessage(tc.event, func() time.Time { return now })
			assert.Equal(t, tc.actor, msg.ActorID)
			assert.Equal(t, tc.channel, msg.Channel)
			assert.True(t, msg.OccurredAt.Equal(now))
			assert.Nil(t, msg.Metadata)
		})
	}

	msg := events.NewMessage(auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		Actor:     auth.ActorRef{Type: "user"},
		Metadata:  map[string]any{events.MetadataKeyActorType: "kept"},
	}, func() time.Time { return now })
	assert.Equal(t, "kept", msg.Metadata[events.MetadataKeyActorType])
}

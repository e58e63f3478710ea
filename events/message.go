package events

import (
	"strings"
	"time"

	auth "github.com/newsshelf/shelf-auth"
)

// MetadataKeyActorType carries auth.ActorRef.Type in Message.Metadata
const MetadataKeyActorType = "actor_type"

const (
	defaultChannel    = "auth"
	defaultObjectType = "user"
	systemActor       = "system"
)

// Message is the payload published for every activity event. Consumers
// outside this module read this shape, never auth.ActivityEvent.
type Message struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewMessage flattens event. The actor falls back to the affected user,
// then to "system"; a zero timestamp is replaced with now.
func NewMessage(event auth.ActivityEvent, now func() time.Time) Message {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		if now == nil {
			now = time.Now
		}
		occurredAt = now().UTC()
	}

	return Message{
		ActorID: firstNonEmpty(
			strings.TrimSpace(event.Actor.ID),
			strings.TrimSpace(event.UserID),
			systemActor,
		),
		Verb:       string(event.EventType),
		ObjectType: defaultObjectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    channelOf(event.EventType),
		Metadata:   messageMetadata(event),
		OccurredAt: occurredAt,
	}
}

// channelOf is the event type namespace: "admin" for admin.role.assigned
func channelOf(t auth.ActivityEventType) string {
	head, _, found := strings.Cut(string(t), ".")
	if !found || head == "" {
		return defaultChannel
	}
	return head
}

// messageMetadata copies the event metadata so the source event is never
// mutated.
func messageMetadata(event auth.ActivityEvent) map[string]any {
	var out map[string]any
	if len(event.Metadata) > 0 {
		out = make(map[string]any, len(event.Metadata)+1)
		for k, v := range event.Metadata {
			out[k] = v
		}
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if out == nil {
			out = map[string]any{}
		}
		if _, exists := out[MetadataKeyActorType]; !exists {
			out[MetadataKeyActorType] = actorType
		}
	}

	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventExternalLogin        ActivityEventType = "auth.external.login"
	ActivityEventUserRegistered       ActivityEventType = "user.registered"
	ActivityEventUserProfileUpdated   ActivityEventType = "user.profile.updated"
	ActivityEventFavoriteTopicAdded   ActivityEventType = "user.favorite_topics.added"
	ActivityEventNewsRead             ActivityEventType = "news.read"
	ActivityEventAdminRoleAssigned    ActivityEventType = "admin.role.assigned"
	ActivityEventAdminIdentityDeleted ActivityEventType = "admin.user.deleted"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType `json:"eventType"`
	Actor      ActorRef          `json:"actor"`
	UserID     string            `json:"userId,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// ActivitySink consumes activity events. Delivery is best effort: a sink
// error is logged by the caller and never fails the originating operation.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// activityEmitter is embedded by services that publish events
type activityEmitter struct {
	sink   ActivitySink
	logger Logger
	now    Clock
}

func (e activityEmitter) emit(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: normalizeClock(e.now)(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := normalizeActivitySink(e.sink).Record(ctx, event); err != nil {
		normalizeLogger(e.logger).Warn("activity sink record error: %v", err)
	}
}

func actorFromID(id string) ActorRef {
	if id == "" {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: id, Type: "user"}
}

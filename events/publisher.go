// Package events publishes auth activity to redis pub/sub.
//
// Publishing is fire-and-forget: Record only queues the event, and a full
// queue drops it rather than blocking the request that produced it.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	auth "github.com/newsshelf/shelf-auth"
)

// DefaultChannelPrefix is prepended to the event type to form the channel
const DefaultChannelPrefix = "newsshelf.events."

// ErrQueueFull is returned by Record when the event was dropped
var ErrQueueFull = errors.New("event queue is full")

// ErrClosed is returned by Record after Run has returned
var ErrClosed = errors.New("event publisher is closed")

type Config struct {
	ChannelPrefix string
	QueueSize     int
	Logger        auth.Logger
}

// Publisher is an auth.ActivitySink backed by redis PUBLISH
type Publisher struct {
	client redis.UniversalClient
	prefix string
	queue  chan auth.ActivityEvent
	logger auth.Logger

	mu     sync.RWMutex
	closed bool
}

var _ auth.ActivitySink = (*Publisher)(nil)

func NewPublisher(client redis.UniversalClient, cfg Config) *Publisher {
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = DefaultChannelPrefix
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = auth.DefaultLogger()
	}

	return &Publisher{
		client: client,
		prefix: cfg.ChannelPrefix,
		queue:  make(chan auth.ActivityEvent, cfg.QueueSize),
		logger: cfg.Logger,
	}
}

// Channel returns the channel an event type is published on
func (p *Publisher) Channel(eventType auth.ActivityEventType) string {
	return p.prefix + string(eventType)
}

// Record queues the event without waiting for redis
func (p *Publisher) Record(_ context.Context, event auth.ActivityEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- event:
		return nil
	default:
		return fmt.Errorf("%w: dropped %s", ErrQueueFull, event.EventType)
	}
}

// Run publishes queued events until ctx is done, then drains what is
// already queued and returns.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.close()
			p.drain()
			return nil
		case event := <-p.queue:
			p.publish(ctx, event)
		}
	}
}

// Publish sends one event synchronously as a Message
func (p *Publisher) Publish(ctx context.Context, event auth.ActivityEvent) error {
	payload, err := json.Marshal(NewMessage(event, nil))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.client.Publish(ctx, p.Channel(event.EventType), payload).Err()
}

func (p *Publisher) publish(ctx context.Context, event auth.ActivityEvent) {
	if err := p.Publish(ctx, event); err != nil {
		p.logger.Warn("event publish %s failed: %v", event.EventType, err)
	}
}

func (p *Publisher) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *Publisher) drain() {
	ctx := context.Background()
	for {
		select {
		case event := <-p.queue:
			p.publish(ctx, event)
		default:
			return
		}
	}
}

// Fanout records an event in every sink, returning the joined errors
type Fanout []auth.ActivitySink

func (f Fanout) Record(ctx context.Context, event auth.ActivityEvent) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

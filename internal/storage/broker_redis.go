package storage

import (
	"context"
	"fmt"

	go_json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	liveKeyPrefix   = "notifications:live:"
	liveBroadcastCh = "notifications:broadcast"
)

var _ Broker = (*RedisBroker)(nil)

// RedisBroker carries events between server replicas over Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(cfg RedisConfig) *RedisBroker {
	return &RedisBroker{client: cfg.Client}
}

func (b *RedisBroker) liveKey(userID string) string {
	return liveKeyPrefix + userID
}

func (b *RedisBroker) Publish(ctx context.Context, e Event) error {
	data, err := go_json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := liveBroadcastCh
	if !e.Broadcast() {
		channel = b.liveKey(e.UserID)
	}
	if err := b.client.Publish(ctx, channel, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	pubsub := b.client.Subscribe(ctx, b.liveKey(userID), liveBroadcastCh)

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	events := make(chan Event)

	go func() {
		defer close(events)
		ch := pubsub.Channel()

		for msg := range ch {
			var e Event
			if err := go_json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				continue
			}

			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	unsubscribe := func() {
		_ = pubsub.Close()
	}

	return events, unsubscribe, nil
}

// Close is a no-op; the client is owned by the caller.
func (b *RedisBroker) Close() error { return nil }

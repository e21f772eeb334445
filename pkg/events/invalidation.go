package events

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultFAQChannel carries knowledge base invalidations between replicas.
const DefaultFAQChannel = "support:faq:invalidate"

// Invalidator broadcasts and receives cache invalidation notices over
// Redis pub/sub.
type Invalidator struct {
	client  *redis.Client
	channel string
}

// NewInvalidator builds an Invalidator on channel.
func NewInvalidator(client *redis.Client, channel string) (*Invalidator, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultFAQChannel
	}
	return &Invalidator{client: client, channel: channel}, nil
}

// Broadcast tells every subscribed replica to drop its cache.
func (i *Invalidator) Broadcast(ctx context.Context) error {
	return i.client.Publish(ctx, i.channel, "faq").Err()
}

// Subscribe calls onInvalidate for every notice until ctx is cancelled.
// It returns once the subscription is confirmed.
func (i *Invalidator) Subscribe(ctx context.Context, onInvalidate func()) error {
	sub := i.client.Subscribe(ctx, i.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				slog.Debug("knowledge base invalidation received", "channel", i.channel)
				onInvalidate()
			}
		}
	}()
	return nil
}

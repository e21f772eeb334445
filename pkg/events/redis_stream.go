package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamConfig configures a RedisStream.
type StreamConfig struct {
	Stream     string
	Group      string
	Consumer   string
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
}

// RedisStream appends lifecycle events to a Redis stream and consumes them
// through a consumer group. Failed handlers are retried by re-appending the
// event with an incremented attempt count.
type RedisStream struct {
	client     *redis.Client
	stream     string
	group      string
	consumer   string
	maxRetries int
	block      time.Duration
	claimIdle  time.Duration
	retryDelay time.Duration
	maxLen     int64
	readCount  int64
	claimCount int64
	once       sync.Once
}

// NewRedisStream builds a stream publisher/consumer on client.
func NewRedisStream(client *redis.Client, cfg StreamConfig) (*RedisStream, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("event stream required")
	}
	s := &RedisStream{
		client:     client,
		stream:     stream,
		group:      strings.TrimSpace(cfg.Group),
		consumer:   strings.TrimSpace(cfg.Consumer),
		maxRetries: cfg.MaxRetries,
		block:      cfg.Block,
		claimIdle:  cfg.ClaimIdle,
		retryDelay: cfg.RetryDelay,
		maxLen:     cfg.MaxLen,
		readCount:  cfg.ReadCount,
		claimCount: cfg.ClaimCount,
	}
	if s.group == "" {
		s.group = "support"
	}
	if s.consumer == "" {
		s.consumer = "consumer"
	}
	if s.maxRetries <= 0 {
		s.maxRetries = 3
	}
	if s.block <= 0 {
		s.block = 5 * time.Second
	}
	if s.claimIdle <= 0 {
		s.claimIdle = 30 * time.Second
	}
	if s.retryDelay < 0 {
		s.retryDelay = 0
	}
	if s.maxLen <= 0 {
		s.maxLen = 10000
	}
	if s.readCount <= 0 {
		s.readCount = 10
	}
	if s.claimCount <= 0 {
		s.claimCount = 10
	}
	return s, nil
}

// Publish implements Publisher with XADD, trimming the stream approximately.
func (s *RedisStream) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: encodeEvent(e),
	}).Err()
}

// Start runs the consumer loop until ctx is cancelled.
func (s *RedisStream) Start(ctx context.Context, handler func(context.Context, Event) error) {
	s.ensureGroup(ctx)
	go s.consumeLoop(ctx, handler)
}

func (s *RedisStream) ensureGroup(ctx context.Context) {
	s.once.Do(func() {
		err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			slog.Warn("event stream group create failed", "stream", s.stream, "group", s.group, "err", err)
		}
	})
}

func (s *RedisStream) consumeLoop(ctx context.Context, handler func(context.Context, Event) error) {
	for {
		if ctx.Err() != nil {
			return
		}
		if msgs, err := s.claimPending(ctx); err == nil {
			for _, msg := range msgs {
				s.handleMessage(ctx, msg, handler)
			}
		}
		s.readOnce(ctx, handler)
	}
}

// readOnce reads and handles one batch of new messages.
func (s *RedisStream) readOnce(ctx context.Context, handler func(context.Context, Event) error) int {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.readCount,
		Block:    s.block,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			slog.Warn("event stream read failed", "stream", s.stream, "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		return 0
	}
	handled := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			s.handleMessage(ctx, msg, handler)
			handled++
		}
	}
	return handled
}

func (s *RedisStream) claimPending(ctx context.Context) ([]redis.XMessage, error) {
	res, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  s.claimIdle,
		Start:    "0-0",
		Count:    s.claimCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return res, err
}

func (s *RedisStream) handleMessage(ctx context.Context, msg redis.XMessage, handler func(context.Context, Event) error) {
	e, err := decodeEvent(msg)
	if err != nil {
		slog.Warn("dropping malformed event", "stream", s.stream, "id", msg.ID, "err", err)
		s.ackAndDel(ctx, msg.ID)
		return
	}
	e.Attempts++
	err = handler(ctx, e)
	if err == nil {
		s.ackAndDel(ctx, msg.ID)
		return
	}
	if e.Attempts >= s.maxRetries {
		slog.Error("event handler failed, giving up", "type", e.Type, "entity_id", e.EntityID, "attempts", e.Attempts, "err", err)
		s.ackAndDel(ctx, msg.ID)
		return
	}
	if s.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay):
		}
	}
	if err := s.requeueAndAck(ctx, msg.ID, e); err != nil {
		slog.Warn("event requeue failed", "id", msg.ID, "err", err)
	}
}

func (s *RedisStream) ackAndDel(ctx context.Context, msgID string) {
	_, _ = s.client.XAck(ctx, s.stream, s.group, msgID).Result()
	_, _ = s.client.XDel(ctx, s.stream, msgID).Result()
}

// requeueAndAck re-appends e and acknowledges the original atomically, so a
// failure leaves the original pending for XAUTOCLAIM.
func (s *RedisStream) requeueAndAck(ctx context.Context, msgID string, e Event) error {
	pipe := s.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: encodeEvent(e),
	})
	pipe.XAck(ctx, s.stream, s.group, msgID)
	pipe.XDel(ctx, s.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func encodeEvent(e Event) map[string]any {
	return map[string]any{
		"type":        e.Type,
		"entity_id":   strconv.FormatInt(e.EntityID, 10),
		"reference":   e.Reference,
		"actor_id":    strconv.FormatInt(e.ActorID, 10),
		"status":      e.Status,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339Nano),
		"attempts":    strconv.Itoa(e.Attempts),
	}
}

func decodeEvent(msg redis.XMessage) (Event, error) {
	field := func(name string) string {
		v, _ := msg.Values[name].(string)
		return v
	}
	e := Event{
		StreamID:  msg.ID,
		Type:      field("type"),
		Reference: field("reference"),
		Status:    field("status"),
	}
	if e.Type == "" {
		return Event{}, errors.New("event type missing")
	}
	var err error
	if e.EntityID, err = strconv.ParseInt(field("entity_id"), 10, 64); err != nil {
		return Event{}, fmt.Errorf("entity_id: %w", err)
	}
	if v := field("actor_id"); v != "" {
		e.ActorID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := field("attempts"); v != "" {
		e.Attempts, _ = strconv.Atoi(v)
	}
	if v := field("occurred_at"); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			e.OccurredAt = t
		}
	}
	return e, nil
}

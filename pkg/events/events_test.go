package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStream(t *testing.T, cfg StreamConfig) (*RedisStream, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	if cfg.Stream == "" {
		cfg.Stream = "test:events"
	}
	cfg.Block = 20 * time.Millisecond
	s, err := NewRedisStream(client, cfg)
	if err != nil {
		t.Fatalf("new stream: %v", err)
	}
	s.ensureGroup(context.Background())
	return s, client
}

func TestRedisStreamPublishAndConsume(t *testing.T) {
	s, client := newTestStream(t, StreamConfig{})
	ctx := context.Background()
	occurred := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := s.Publish(ctx, Event{Type: TicketClosed, EntityID: 12, ActorID: 7, Status: "Closed", OccurredAt: occurred}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var got []Event
	handled := s.readOnce(ctx, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})
	if handled != 1 || len(got) != 1 {
		t.Fatalf("expected one event, handled=%d got=%v", handled, got)
	}
	e := got[0]
	if e.Type != TicketClosed || e.EntityID != 12 || e.ActorID != 7 || e.Status != "Closed" {
		t.Fatalf("unexpected event %+v", e)
	}
	if !e.OccurredAt.Equal(occurred) || e.Attempts != 1 || e.StreamID == "" {
		t.Fatalf("unexpected event metadata %+v", e)
	}
	if n, _ := client.XLen(ctx, "test:events").Result(); n != 0 {
		t.Fatalf("expected handled event to be deleted, len=%d", n)
	}
}

func TestRedisStreamRetriesThenGivesUp(t *testing.T) {
	s, client := newTestStream(t, StreamConfig{MaxRetries: 2})
	ctx := context.Background()
	if err := s.Publish(ctx, Event{Type: OrderStatusChanged, EntityID: 3, Reference: "P-1001", Status: "Shipped"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	calls := 0
	failing := func(_ context.Context, e Event) error {
		calls++
		if e.Reference != "P-1001" {
			t.Errorf("unexpected reference %q", e.Reference)
		}
		return errors.New("downstream unavailable")
	}

	s.readOnce(ctx, failing)
	if n, _ := client.XLen(ctx, "test:events").Result(); n != 1 {
		t.Fatalf("expected requeued event, len=%d", n)
	}
	pending, err := client.XPending(ctx, "test:events", s.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected original to be acked, pending=%d", pending.Count)
	}

	s.readOnce(ctx, failing)
	if calls != 2 {
		t.Fatalf("expected two handler calls, got %d", calls)
	}
	if n, _ := client.XLen(ctx, "test:events").Result(); n != 0 {
		t.Fatalf("expected event dropped after max retries, len=%d", n)
	}
}

func TestRedisStreamRequeueFailureKeepsPending(t *testing.T) {
	s, client := newTestStream(t, StreamConfig{})
	ctx := context.Background()
	if err := s.Publish(ctx, Event{Type: TicketCreated, EntityID: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: "consumer-1",
		Streams:  []string{s.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil || len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("readgroup: %v %+v", err, streams)
	}
	msg := streams[0].Messages[0]
	e, err := decodeEvent(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.requeueAndAck(canceled, msg.ID, e); err == nil {
		t.Fatalf("expected requeue to fail on canceled context")
	}
	pending, err := client.XPending(ctx, s.stream, s.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("expected original message to remain pending, got %d", pending.Count)
	}
}

func TestDecodeEventRejectsMalformed(t *testing.T) {
	if _, err := decodeEvent(redis.XMessage{ID: "1-0", Values: map[string]any{"entity_id": "1"}}); err == nil {
		t.Fatalf("expected missing type to fail")
	}
	if _, err := decodeEvent(redis.XMessage{ID: "1-0", Values: map[string]any{"type": TicketCreated, "entity_id": "x"}}); err == nil {
		t.Fatalf("expected bad entity id to fail")
	}
}

func TestInvalidatorBroadcast(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inv, err := NewInvalidator(client, "")
	if err != nil {
		t.Fatalf("new invalidator: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan struct{}, 1)
	if err := inv.Subscribe(ctx, func() { got <- struct{}{} }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := inv.Broadcast(ctx); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatalf("invalidation not delivered")
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_ = r.Publish(context.Background(), Event{Type: TicketCreated, EntityID: 1})
	_ = NopPublisher{}.Publish(context.Background(), Event{Type: TicketCreated})
	if evs := r.Events(); len(evs) != 1 || evs[0].EntityID != 1 {
		t.Fatalf("unexpected recorded events %+v", evs)
	}
}

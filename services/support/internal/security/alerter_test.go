package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestAlerter(t *testing.T) *AuditAlerter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	alerter := NewAuditAlerter(client, "test:alerts")
	alerter.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return alerter
}

func TestAuditAlerterTriggersOnceAtThreshold(t *testing.T) {
	alerter := newTestAlerter(t)
	ctx := context.Background()
	triggered := 0
	for range 12 {
		result, err := alerter.Observe(ctx, "support.login", "fail", "127.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if result.Triggered {
			triggered++
			if result.Count != 10 {
				t.Fatalf("triggered at count %d", result.Count)
			}
		}
	}
	if triggered != 1 {
		t.Fatalf("expected a single alert, got %d", triggered)
	}
}

func TestAuditAlerterCountsPerAddress(t *testing.T) {
	alerter := newTestAlerter(t)
	ctx := context.Background()
	for range 9 {
		if _, err := alerter.Observe(ctx, "support.login", "fail", "10.0.0.1"); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	result, err := alerter.Observe(ctx, "support.login", "fail", "10.0.0.2")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if result.Triggered || result.Count != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestAuditAlerterIgnoresSuccessAndUnknownEvents(t *testing.T) {
	alerter := newTestAlerter(t)
	for _, tc := range []struct{ event, outcome string }{
		{"support.login", "success"},
		{"support.custom", "fail"},
	} {
		result, err := alerter.Observe(context.Background(), tc.event, tc.outcome, "127.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if result.Threshold != 0 || result.Triggered {
			t.Fatalf("%s/%s: unexpected result %+v", tc.event, tc.outcome, result)
		}
	}
}

func TestNilAlerterIsInert(t *testing.T) {
	var alerter *AuditAlerter
	if NewAuditAlerter(nil, "") != nil {
		t.Fatalf("expected nil alerter without redis")
	}
	if result, err := alerter.Observe(context.Background(), "support.login", "fail", "x"); err != nil || result.Triggered {
		t.Fatalf("nil alerter observed %+v, %v", result, err)
	}
}

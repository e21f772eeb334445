package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryTokenRevokerExpires(t *testing.T) {
	r := NewMemoryTokenRevoker()
	if err := r.Revoke("jti-1", time.Millisecond); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := r.Revoke("jti-2", 0); err != nil {
		t.Fatalf("revoke zero ttl: %v", err)
	}
	if revoked, _ := r.IsRevoked("jti-2"); revoked {
		t.Fatalf("zero ttl should not revoke")
	}
	time.Sleep(5 * time.Millisecond)
	if revoked, _ := r.IsRevoked("jti-1"); revoked {
		t.Fatalf("expected revocation to lapse after ttl")
	}
}

func TestMemoryTokenRevokerUserCutoffMonotonic(t *testing.T) {
	r := NewMemoryTokenRevoker()
	first := time.Now().UTC().Add(-time.Minute)
	second := time.Now().UTC()

	if err := r.RevokeUser("user-1", first); err != nil {
		t.Fatalf("revoke user first: %v", err)
	}
	if err := r.RevokeUser("user-1", first.Add(-time.Minute)); err != nil {
		t.Fatalf("revoke user older cutoff: %v", err)
	}
	got, err := r.RevokedAfter("user-1")
	if err != nil {
		t.Fatalf("revoked after first: %v", err)
	}
	if !got.Equal(first) {
		t.Fatalf("expected first cutoff to be kept, got %v", got)
	}

	if err := r.RevokeUser("user-1", second); err != nil {
		t.Fatalf("revoke user second: %v", err)
	}
	got, err = r.RevokedAfter("user-1")
	if err != nil {
		t.Fatalf("revoked after second: %v", err)
	}
	if !got.Equal(second) {
		t.Fatalf("expected newest cutoff, got %v", got)
	}
}

func newTestRedisRevoker(t *testing.T) (*RedisTokenRevoker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTokenRevoker(client), mr
}

func TestRedisTokenRevokerRevokeAndExpire(t *testing.T) {
	r, mr := newTestRedisRevoker(t)

	if err := r.Revoke("jti-redis", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := r.IsRevoked("jti-redis")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !revoked {
		t.Fatalf("expected token to be revoked")
	}

	mr.FastForward(2 * time.Minute)
	revoked, err = r.IsRevoked("jti-redis")
	if err != nil {
		t.Fatalf("is revoked after ttl: %v", err)
	}
	if revoked {
		t.Fatalf("expected revocation to expire")
	}
}

func TestRedisTokenRevokerUserCutoff(t *testing.T) {
	r, _ := newTestRedisRevoker(t)
	first := time.Now().UTC().Add(-time.Minute)

	got, err := r.RevokedAfter("7")
	if err != nil {
		t.Fatalf("revoked after empty: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero cutoff, got %v", got)
	}

	if err := r.RevokeUser("7", first); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	if err := r.RevokeUser("7", first.Add(-time.Hour)); err != nil {
		t.Fatalf("revoke user older: %v", err)
	}
	got, err = r.RevokedAfter("7")
	if err != nil {
		t.Fatalf("revoked after: %v", err)
	}
	if got.Sub(first).Abs() > time.Millisecond {
		t.Fatalf("cutoff = %v, want %v", got, first)
	}
}

func TestJWTSessionStoreWithRedisRevoker(t *testing.T) {
	r, _ := newTestRedisRevoker(t)
	s := newTestSessions(t, r, JWTOptions{})

	token, err := s.NewSession(testPrincipal())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := s.Verify(token); err != nil {
		t.Fatalf("verify before logout: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := s.Verify(token); err == nil {
		t.Fatalf("expected token to be revoked across the shared redis")
	}
}

package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"supportdesk/pkg/domain"
)

const testSecret = "test-secret-0123456789"

func newTestSessions(t *testing.T, revoker TokenRevoker, opts JWTOptions) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore(testSecret, time.Hour, revoker, opts)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return s
}

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s := newTestSessions(t, NewMemoryTokenRevoker(), JWTOptions{})
	want := domain.Principal{UserID: 42, Role: domain.RoleInternal}

	token, err := s.NewSession(want)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	got, err := s.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != want {
		t.Fatalf("principal = %+v, want %+v", got, want)
	}
}

func TestJWTSessionStoreRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("short", time.Hour, nil, JWTOptions{}); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestJWTSessionStoreEnforcesAudience(t *testing.T) {
	signing := newTestSessions(t, nil, JWTOptions{Issuer: "issuer-a", Audience: "aud-a", Leeway: time.Second})
	verify := newTestSessions(t, nil, JWTOptions{Issuer: "issuer-a", Audience: "aud-b", Leeway: time.Second})

	token, err := signing.NewSession(domain.Principal{UserID: 1, Role: domain.RoleCustomer})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := verify.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected audience mismatch to fail, got %v", err)
	}
}

func TestJWTSessionStoreRejectsExpired(t *testing.T) {
	s := newTestSessions(t, nil, JWTOptions{Leeway: time.Second})
	issued := time.Now().Add(-2 * time.Hour)
	s.now = func() time.Time { return issued }
	token, err := s.NewSession(domain.Principal{UserID: 1, Role: domain.RoleCustomer})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s.now = time.Now
	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestJWTSessionStoreRejectsTamperedToken(t *testing.T) {
	s := newTestSessions(t, nil, JWTOptions{})
	token, err := s.NewSession(domain.Principal{UserID: 7, Role: domain.RoleCustomer})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role: string(domain.RoleAdmin),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			Issuer:    defaultJWTIssuer,
			Audience:  jwt.ClaimStrings{defaultJWTAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        "forged",
		},
	})
	forgedToken, err := forged.SignedString([]byte("another-secret-0123456789"))
	if err != nil {
		t.Fatalf("sign forged: %v", err)
	}
	if _, err := s.Verify(forgedToken); err == nil {
		t.Fatalf("expected token signed with another key to fail")
	}

	parts := strings.Split(token, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := s.Verify(strings.Join(parts, ".")); err == nil {
		t.Fatalf("expected bad signature to fail")
	}
	if _, err := s.Verify(""); err == nil {
		t.Fatalf("expected empty token to fail")
	}
}

func TestJWTSessionStoreRevokesByJTI(t *testing.T) {
	s := newTestSessions(t, NewMemoryTokenRevoker(), JWTOptions{})

	token, err := s.NewSession(domain.Principal{UserID: 3, Role: domain.RoleCustomer})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
}

func TestJWTSessionStoreRevokesByUserCutoff(t *testing.T) {
	s := newTestSessions(t, NewMemoryTokenRevoker(), JWTOptions{})

	token, err := s.NewSession(domain.Principal{UserID: 9, Role: domain.RoleInternal})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.RevokeUserSessions(9, time.Now().UTC()); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected user-revoked token to fail, got %v", err)
	}
}

func TestJWTSessionStoreUserCutoffKeepsLaterTokensInSameSecond(t *testing.T) {
	s := newTestSessions(t, NewMemoryTokenRevoker(), JWTOptions{})
	base := time.Date(2025, 3, 4, 10, 30, 0, 100_000_000, time.UTC)
	now := base
	s.now = func() time.Time { return now }
	principal := domain.Principal{UserID: 9, Role: domain.RoleInternal}

	before, err := s.NewSession(principal)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	now = base.Add(200 * time.Millisecond)
	if err := s.RevokeUserSessions(9, now); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	now = base.Add(400 * time.Millisecond)
	after, err := s.NewSession(principal)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	if _, err := s.Verify(before); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token issued before the cutoff must fail, got %v", err)
	}
	got, err := s.Verify(after)
	if err != nil {
		t.Fatalf("token issued after the cutoff in the same second must verify: %v", err)
	}
	if got != principal {
		t.Fatalf("principal = %+v, want %+v", got, principal)
	}
}

func TestJWTSessionStoreRejectsInvalidPrincipal(t *testing.T) {
	s := newTestSessions(t, nil, JWTOptions{})
	if _, err := s.NewSession(domain.Principal{UserID: 1, Role: "root"}); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
	if _, err := s.NewSession(domain.Principal{Role: domain.RoleCustomer}); err == nil {
		t.Fatalf("expected missing user id to be rejected")
	}
}

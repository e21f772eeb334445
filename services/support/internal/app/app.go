package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"supportdesk/internal/util"
	"supportdesk/pkg/domain"
	"supportdesk/pkg/events"
	"supportdesk/pkg/store"
)

// KnowledgeInvalidator drops cached knowledge base entries after an FAQ write.
type KnowledgeInvalidator interface {
	Invalidate(ctx context.Context)
}

// userSessionRevoker is implemented by session stores that can cut off every
// credential issued to one user.
type userSessionRevoker interface {
	RevokeUserSessions(userID int64, since time.Time) error
}

// Config wires the application layer.
type Config struct {
	Store     store.Store
	Sessions  store.SessionStore
	Events    events.Publisher
	Knowledge KnowledgeInvalidator

	// LegacyStatusUpdates accepts any non-empty status text on ticket and
	// order updates instead of enforcing the transition tables.
	LegacyStatusUpdates bool

	// Now and OrderCode are overridable for tests.
	Now       func() time.Time
	OrderCode func() string
}

// App implements the support desk operations on top of a Store.
type App struct {
	store     store.Store
	sessions  store.SessionStore
	events    events.Publisher
	knowledge KnowledgeInvalidator
	legacy    bool
	now       func() time.Time
	orderCode func() string
}

// New validates cfg and builds an App.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store required")
	}
	a := &App{
		store:     cfg.Store,
		sessions:  cfg.Sessions,
		events:    cfg.Events,
		knowledge: cfg.Knowledge,
		legacy:    cfg.LegacyStatusUpdates,
		now:       cfg.Now,
		orderCode: cfg.OrderCode,
	}
	if a.events == nil {
		a.events = events.NopPublisher{}
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.orderCode == nil {
		a.orderCode = randomOrderCode
	}
	return a, nil
}

func randomOrderCode() string {
	return fmt.Sprintf("P-%d", 1000+rand.IntN(9000))
}

// Authenticate verifies a bearer token and returns the caller.
func (a *App) Authenticate(token string) (domain.Principal, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Principal{}, &Error{Kind: ErrUnauthenticated, Msg: "missing token"}
	}
	p, err := a.sessions.Verify(token)
	if err != nil {
		return domain.Principal{}, &Error{Kind: ErrUnauthenticated, Msg: "invalid or expired token"}
	}
	return p, nil
}

// publish emits a lifecycle event after the owning transaction committed.
// Delivery is best effort.
func (a *App) publish(ctx context.Context, e events.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = a.now().UTC()
	}
	if err := a.events.Publish(ctx, e); err != nil {
		util.LoggerFromContext(ctx).Warn("support.event.publish_failed",
			"type", e.Type, "entity_id", e.EntityID, "error", err)
	}
}

func (a *App) invalidateKnowledge(ctx context.Context) {
	if a.knowledge != nil {
		a.knowledge.Invalidate(ctx)
	}
}

func requireStaff(p domain.Principal) error {
	if !p.Role.Staff() {
		return forbidden("forbidden")
	}
	return nil
}

func requireAdmin(p domain.Principal) error {
	if p.Role != domain.RoleAdmin {
		return forbidden("forbidden")
	}
	return nil
}

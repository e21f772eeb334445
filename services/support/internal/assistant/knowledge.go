package assistant

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"supportdesk/internal/util"
	"supportdesk/pkg/domain"
)

// loadTimeout bounds a shared load, which outlives any single caller's context.
const loadTimeout = 10 * time.Second

// FAQSource loads the persisted knowledge base.
type FAQSource interface {
	ListFAQs(ctx context.Context) ([]domain.FAQ, error)
}

// Knowledge is a read-through cache of FAQ entries. Entries expire after the
// TTL and are dropped immediately on Invalidate.
type Knowledge struct {
	source FAQSource
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group

	mu         sync.RWMutex
	entries    []domain.FAQ
	loadedAt   time.Time
	loaded     bool
	generation uint64
	broadcast  func(context.Context) error
}

// NewKnowledge builds a cache over source. A ttl <= 0 keeps entries until
// the next invalidation.
func NewKnowledge(source FAQSource, ttl time.Duration) *Knowledge {
	return &Knowledge{source: source, ttl: ttl, now: time.Now}
}

// SetBroadcaster registers fn to tell other replicas about invalidations.
func (k *Knowledge) SetBroadcaster(fn func(context.Context) error) {
	k.mu.Lock()
	k.broadcast = fn
	k.mu.Unlock()
}

// Entries returns the cached FAQ entries, loading them when missing or expired.
func (k *Knowledge) Entries(ctx context.Context) ([]domain.FAQ, error) {
	k.mu.RLock()
	if k.fresh() {
		entries := k.entries
		k.mu.RUnlock()
		return entries, nil
	}
	gen := k.generation
	k.mu.RUnlock()

	v, err, _ := k.group.Do("faq", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		entries, err := k.source.ListFAQs(loadCtx)
		if err != nil {
			return nil, err
		}
		k.mu.Lock()
		if k.generation == gen {
			k.entries = entries
			k.loadedAt = k.now()
			k.loaded = true
		}
		k.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.FAQ), nil
}

func (k *Knowledge) fresh() bool {
	if !k.loaded {
		return false
	}
	return k.ttl <= 0 || k.now().Sub(k.loadedAt) < k.ttl
}

// Drop discards the local copy without notifying other replicas.
func (k *Knowledge) Drop() {
	k.mu.Lock()
	k.entries = nil
	k.loaded = false
	k.generation++
	k.mu.Unlock()
}

// Invalidate discards the local copy and notifies other replicas.
func (k *Knowledge) Invalidate(ctx context.Context) {
	k.Drop()
	k.mu.RLock()
	broadcast := k.broadcast
	k.mu.RUnlock()
	if broadcast == nil {
		return
	}
	if err := broadcast(ctx); err != nil {
		util.LoggerFromContext(ctx).Warn("support.faq.invalidate_broadcast_failed", "error", err)
	}
}

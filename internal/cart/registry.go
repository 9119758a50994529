package cart

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
	"github.com/angelmondragon/rocketshoes-cart/pkg/metrics"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const DefaultMaxSessions = 10000

// RegistryParams holds the collaborators shared by every session's Manager.
// MaxSessions caps the loaded carts; the least recently used is dropped first.
type RegistryParams struct {
	Inventory      Inventory
	Store          SnapshotStore
	Notifier       Notifier
	Logger         *logger.Logger
	Metrics        *metrics.CartMetrics
	TracerProvider trace.TracerProvider
	MaxSessions    int
}

type registryEntry struct {
	sessionID  string
	manager    *Manager
	lastAccess time.Time
}

// Registry hands out one Manager per session, creating it on first use.
// Managers are only a cache over the store, so evicting one loses nothing.
type Registry struct {
	params      RegistryParams
	maxSessions int
	now         func() time.Time
	loads       singleflight.Group

	mu      sync.Mutex
	entries map[string]*list.Element
	recency *list.List
}

// NewRegistry validates the shared collaborators.
func NewRegistry(p RegistryParams) (*Registry, error) {
	if p.Inventory == nil {
		return nil, fmt.Errorf("inventory required")
	}
	if p.Store == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if p.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	maxSessions := p.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Registry{
		params:      p,
		maxSessions: maxSessions,
		now:         time.Now,
		entries:     make(map[string]*list.Element),
		recency:     list.New(),
	}, nil
}

// Get returns the session's Manager, hydrating a new one when needed.
// Concurrent first requests for a session share one hydration, and a failed
// hydration is not cached.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Manager, error) {
	if m := r.lookup(sessionID); m != nil {
		return m, nil
	}
	v, err, _ := r.loads.Do(sessionID, func() (any, error) {
		if m := r.lookup(sessionID); m != nil {
			return m, nil
		}
		m, err := NewManager(ctx, ManagerParams{
			SessionID:      sessionID,
			Inventory:      r.params.Inventory,
			Store:          r.params.Store,
			Notifier:       r.params.Notifier,
			Logger:         r.params.Logger,
			Metrics:        r.params.Metrics,
			TracerProvider: r.params.TracerProvider,
		})
		if err != nil {
			return nil, err
		}
		r.insert(sessionID, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Manager), nil
}

func (r *Registry) lookup(sessionID string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.entries[sessionID]
	if !ok {
		return nil
	}
	entry := el.Value.(*registryEntry)
	entry.lastAccess = r.now()
	r.recency.MoveToFront(el)
	return entry.manager
}

func (r *Registry) insert(sessionID string, m *Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[sessionID] = r.recency.PushFront(&registryEntry{
		sessionID:  sessionID,
		manager:    m,
		lastAccess: r.now(),
	})
	for r.recency.Len() > r.maxSessions {
		r.removeLocked(r.recency.Back())
	}
}

func (r *Registry) removeLocked(el *list.Element) {
	entry := r.recency.Remove(el).(*registryEntry)
	delete(r.entries, entry.sessionID)
}

// EvictIdle drops Managers not accessed since cutoff and reports how many went.
func (r *Registry) EvictIdle(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for el := r.recency.Back(); el != nil; {
		entry := el.Value.(*registryEntry)
		if !entry.lastAccess.Before(cutoff) {
			break
		}
		prev := el.Prev()
		r.removeLocked(el)
		evicted++
		el = prev
	}
	return evicted
}

// Forget drops the in-memory Manager; the persisted snapshot is kept.
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.entries[sessionID]; ok {
		r.removeLocked(el)
	}
}

// Len reports how many sessions are loaded.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

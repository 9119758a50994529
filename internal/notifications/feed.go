package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
)

const DefaultFeedCapacity = 20

type feedQueue struct {
	items   []cart.Notification
	updated time.Time
}

// Feed buffers notifications per session until the client drains them.
// Each session keeps at most capacity entries; the oldest are dropped first.
type Feed struct {
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*feedQueue
}

func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &Feed{
		capacity: capacity,
		now:      time.Now,
		pending:  make(map[string]*feedQueue),
	}
}

func (f *Feed) Notify(_ context.Context, n cart.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.pending[n.SessionID]
	if !ok {
		q = &feedQueue{}
		f.pending[n.SessionID] = q
	}
	q.items = append(q.items, n)
	if overflow := len(q.items) - f.capacity; overflow > 0 {
		q.items = append([]cart.Notification(nil), q.items[overflow:]...)
	}
	q.updated = f.now()
}

// Drain returns and clears the session's pending notifications, oldest first.
func (f *Feed) Drain(sessionID string) []cart.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.pending[sessionID]
	delete(f.pending, sessionID)
	if !ok {
		return []cart.Notification{}
	}
	return q.items
}

// EvictIdle drops queues nobody drained or appended to since cutoff.
func (f *Feed) EvictIdle(cutoff time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	evicted := 0
	for sessionID, q := range f.pending {
		if q.updated.Before(cutoff) {
			delete(f.pending, sessionID)
			evicted++
		}
	}
	return evicted
}

// Len reports how many sessions have pending notifications.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

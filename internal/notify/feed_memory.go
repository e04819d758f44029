package notify

import (
	"context"
	"sync"
)

// InMemoryFeed keeps feeds in process memory. Used by tests and single-node
// deployments without Redis.
type InMemoryFeed struct {
	mu      sync.RWMutex
	feeds   map[string][]Notification
	maxSize int
}

func NewInMemoryFeed(maxSize int) *InMemoryFeed {
	if maxSize <= 0 {
		maxSize = defaultFeedSize
	}
	return &InMemoryFeed{feeds: make(map[string][]Notification), maxSize: maxSize}
}

func (f *InMemoryFeed) Push(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := n.Recipient.Key()
	feed := append([]Notification{n}, f.feeds[key]...)
	if len(feed) > f.maxSize {
		feed = feed[:f.maxSize]
	}
	f.feeds[key] = feed
	return nil
}

func (f *InMemoryFeed) Recent(_ context.Context, r Recipient, limit int) ([]Notification, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	feed := f.feeds[r.Key()]
	if limit <= 0 || limit > len(feed) {
		limit = len(feed)
	}
	out := make([]Notification, limit)
	copy(out, feed[:limit])
	return out, nil
}

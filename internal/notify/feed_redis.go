package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for notification feeds
	feedKeyPrefix = "notify:feed:"

	defaultFeedSize = 200
)

// RedisFeed is the production feed store: one capped Redis list per
// recipient, newest entry first.
type RedisFeed struct {
	client  *redis.Client
	maxSize int64
}

type RedisFeedOption func(*RedisFeed)

// WithFeedSize overrides how many entries each feed retains.
func WithFeedSize(size int64) RedisFeedOption {
	return func(f *RedisFeed) {
		if size > 0 {
			f.maxSize = size
		}
	}
}

func NewRedisFeed(client *redis.Client, opts ...RedisFeedOption) *RedisFeed {
	f := &RedisFeed{client: client, maxSize: defaultFeedSize}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

func (f *RedisFeed) Push(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	key := feedKeyPrefix + n.Recipient.Key()

	// LPush then LTrim keeps the list capped without a round trip race.
	pipe := f.client.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, f.maxSize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

func (f *RedisFeed) Recent(ctx context.Context, r Recipient, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = int(f.maxSize)
	}
	key := feedKeyPrefix + r.Key()
	raw, err := f.client.LRange(ctx, key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", r.Key(), err)
	}

	out := make([]Notification, 0, len(raw))
	for _, item := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("unmarshal notification: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

package transport

import (
	"context"
	"errors"
	"time"
)

// DefaultPollInterval is the refetch cadence of an open thread.
const DefaultPollInterval = 3 * time.Second

// Feed tells a subscriber when a thread's history should be refetched. The
// returned channel is closed when ctx is cancelled. Signals carry no payload
// and may be coalesced.
type Feed interface {
	Watch(ctx context.Context, threadID string) (<-chan struct{}, error)
}

// PollFeed signals on a fixed interval.
type PollFeed struct {
	Interval time.Duration
}

// NewPollFeed creates a feed ticking every interval (DefaultPollInterval if
// zero or negative).
func NewPollFeed(interval time.Duration) *PollFeed {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollFeed{Interval: interval}
}

// Watch implements Feed.
func (f *PollFeed) Watch(ctx context.Context, threadID string) (<-chan struct{}, error) {
	if threadID == "" {
		return nil, errors.New("thread id is required")
	}
	interval := f.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

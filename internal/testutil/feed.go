package testutil

import (
	"context"
	"sync"

	"github.com/andertben/skillspot-chat/internal/transport"
)

var _ transport.Feed = (*ManualFeed)(nil)

// ManualFeed is a transport.Feed that signals only when Trigger is called.
// Each Watch gets its own channel, closed when its context ends.
type ManualFeed struct {
	mu       sync.Mutex
	watchers map[chan struct{}]string
	watched  chan string
}

func NewManualFeed() *ManualFeed {
	return &ManualFeed{
		watchers: make(map[chan struct{}]string),
		watched:  make(chan string, 16),
	}
}

func (f *ManualFeed) Watch(ctx context.Context, threadID string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	f.mu.Lock()
	f.watchers[ch] = threadID
	f.mu.Unlock()

	select {
	case f.watched <- threadID:
	default:
	}

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.watchers, ch)
		f.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// Trigger signals every watcher. A signal the watcher has not drained yet
// absorbs the new one.
func (f *ManualFeed) Trigger() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watchers returns the number of active watches.
func (f *ManualFeed) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

// Watched receives the thread ID of each Watch call.
func (f *ManualFeed) Watched() <-chan string {
	return f.watched
}

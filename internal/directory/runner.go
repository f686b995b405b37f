package directory

import (
	"context"
	"sync"
	"time"
)

// runner serializes refreshes on one goroutine. Triggers coalesce while a
// refresh is pending.
type runner struct {
	interval time.Duration
	refresh  func(ctx context.Context, trigger string)
	// tickWhen gates interval refreshes.
	tickWhen func() bool

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	triggers chan string
}

func newRunner(interval time.Duration, tickWhen func() bool, refresh func(ctx context.Context, trigger string)) *runner {
	return &runner{
		interval: interval,
		refresh:  refresh,
		tickWhen: tickWhen,
		triggers: make(chan string, 1),
	}
}

func (r *runner) start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go r.loop(ctx)
	return true
}

func (r *runner) stop() bool {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return false
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
	return true
}

func (r *runner) trigger(name string) {
	select {
	case r.triggers <- name:
	default:
	}
}

func (r *runner) loop(ctx context.Context) {
	defer r.wg.Done()

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			if r.tickWhen == nil || r.tickWhen() {
				r.refresh(ctx, "timer")
			}
		case name := <-r.triggers:
			r.refresh(ctx, name)
		}
	}
}

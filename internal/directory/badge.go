package directory

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/andertben/skillspot-chat/internal/auth"
	"github.com/andertben/skillspot-chat/internal/events"
	"github.com/andertben/skillspot-chat/internal/logging"
	"github.com/andertben/skillspot-chat/internal/metrics"
	"github.com/andertben/skillspot-chat/internal/models"
)

// DefaultBadgeCap is the largest count rendered verbatim.
const DefaultBadgeCap = 99

// FormatBadge renders an unread count for navigation chrome. Zero renders as
// the empty string; counts above limit render as "<limit>+".
func FormatBadge(n, limit int) string {
	if limit <= 0 {
		limit = DefaultBadgeCap
	}
	if n <= 0 {
		return ""
	}
	if n > limit {
		return strconv.Itoa(limit) + "+"
	}
	return strconv.Itoa(n)
}

// CountSource returns the total unread count.
type CountSource interface {
	UnreadCount(ctx context.Context) (int, error)
}

// BadgeOptions configures a Badge.
type BadgeOptions struct {
	Source  CountSource
	Hub     events.Publisher
	Session auth.Status
	Cap     int
	// OnChange receives the new count and its rendered label.
	OnChange func(count int, label string)
	Metrics  *metrics.Metrics
}

// Badge tracks the total unread count shown in navigation.
type Badge struct {
	opts    BadgeOptions
	logger  zerolog.Logger
	metrics *metrics.Metrics
	runner  *runner

	mu    sync.RWMutex
	count int
	epoch uint64
	subID string
}

// NewBadge creates a Badge.
func NewBadge(opts BadgeOptions) (*Badge, error) {
	if opts.Source == nil {
		return nil, errors.New("source is required")
	}
	if opts.Hub == nil {
		return nil, errors.New("event hub is required")
	}
	if opts.Session == nil {
		return nil, errors.New("session is required")
	}
	if opts.Cap <= 0 {
		opts.Cap = DefaultBadgeCap
	}
	b := &Badge{
		opts:    opts,
		logger:  logging.Component("badge"),
		metrics: opts.Metrics,
	}
	b.runner = newRunner(0, nil, b.refresh)
	return b, nil
}

// Start subscribes to the hub and fetches the count if signed in.
func (b *Badge) Start() error {
	if !b.runner.start() {
		return ErrAlreadyRunning
	}
	subID, err := b.opts.Hub.Subscribe(events.Filter{
		EventTypes: []models.EventType{
			models.EventTypeUnreadRefresh,
			models.EventTypeSessionLogin,
			models.EventTypeSessionLogout,
		},
	}, b.handleEvent)
	if err != nil {
		b.runner.stop()
		return err
	}
	b.mu.Lock()
	b.subID = subID
	b.mu.Unlock()

	if b.opts.Session.Authenticated() {
		b.runner.trigger("start")
	}
	return nil
}

// Stop unsubscribes and stops refreshing.
func (b *Badge) Stop() error {
	b.mu.Lock()
	subID := b.subID
	b.subID = ""
	b.mu.Unlock()
	if subID != "" {
		_ = b.opts.Hub.Unsubscribe(subID)
	}
	if !b.runner.stop() {
		return ErrNotRunning
	}
	return nil
}

// Navigate refreshes the count on a route change when signed in.
func (b *Badge) Navigate() {
	if b.opts.Session.Authenticated() {
		b.runner.trigger("navigate")
	}
}

// Count returns the last fetched unread count.
func (b *Badge) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Label returns the rendered badge text.
func (b *Badge) Label() string {
	return FormatBadge(b.Count(), b.opts.Cap)
}

func (b *Badge) handleEvent(e *models.Event) {
	switch e.Type {
	case models.EventTypeUnreadRefresh, models.EventTypeSessionLogin:
		if e.Type == models.EventTypeSessionLogin {
			b.mu.Lock()
			b.epoch++
			b.mu.Unlock()
		}
		if b.opts.Session.Authenticated() {
			b.runner.trigger(string(e.Type))
		}
	case models.EventTypeSessionLogout:
		b.mu.Lock()
		b.epoch++
		b.count = 0
		b.mu.Unlock()
		b.notify(0)
	}
}

func (b *Badge) refresh(ctx context.Context, trigger string) {
	if !b.opts.Session.Authenticated() {
		return
	}
	b.mu.RLock()
	epoch := b.epoch
	b.mu.RUnlock()

	b.metrics.DirectoryRefresh("badge_" + trigger)
	n, err := b.opts.Source.UnreadCount(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Str("trigger", trigger).Msg("unread count refresh failed")
		return
	}
	if n < 0 {
		n = 0
	}

	b.mu.Lock()
	if b.epoch != epoch {
		b.mu.Unlock()
		return
	}
	changed := b.count != n
	b.count = n
	b.mu.Unlock()

	if changed {
		b.notify(n)
	}
}

func (b *Badge) notify(n int) {
	if b.opts.OnChange != nil {
		b.opts.OnChange(n, FormatBadge(n, b.opts.Cap))
	}
}

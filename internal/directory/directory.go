// Package directory keeps the signed-in user's thread list and unread badge
// current.
package directory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/andertben/skillspot-chat/internal/auth"
	"github.com/andertben/skillspot-chat/internal/events"
	"github.com/andertben/skillspot-chat/internal/logging"
	"github.com/andertben/skillspot-chat/internal/metrics"
	"github.com/andertben/skillspot-chat/internal/models"
)

// DefaultRefreshInterval is the periodic directory refresh cadence.
const DefaultRefreshInterval = 30 * time.Second

// Directory errors.
var (
	ErrAlreadyRunning   = errors.New("already running")
	ErrNotRunning       = errors.New("not running")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// State is the directory lifecycle state.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateLoaded:
		return "loaded"
	default:
		return "unauthenticated"
	}
}

// Source lists thread summaries.
type Source interface {
	ListThreads(ctx context.Context) ([]models.ThreadSummary, error)
}

// Snapshot is a point-in-time copy of the directory.
type Snapshot struct {
	State     State
	Summaries []models.ThreadSummary
	// Err is the last refresh failure; summaries stay as they were.
	Err       error
	UpdatedAt time.Time
}

// TotalUnread sums the unread counts of all summaries.
func (s Snapshot) TotalUnread() int {
	total := 0
	for _, row := range s.Summaries {
		total += row.UnreadCount
	}
	return total
}

// Options configures a Directory.
type Options struct {
	Source          Source
	Hub             events.Publisher
	Session         auth.Status
	RefreshInterval time.Duration
	// OnChange is called after every state change, from the refresh goroutine
	// or a hub handler.
	OnChange func(Snapshot)
	Metrics  *metrics.Metrics
}

// Directory tracks the thread summaries of the signed-in user.
type Directory struct {
	opts    Options
	logger  zerolog.Logger
	metrics *metrics.Metrics
	runner  *runner
	now     func() time.Time

	mu        sync.RWMutex
	state     State
	summaries []models.ThreadSummary
	lastErr   error
	updatedAt time.Time
	lastPath  string
	// epoch changes on every login and logout; refreshes started in an older
	// epoch are discarded.
	epoch uint64
	subID string
}

// New creates a Directory.
func New(opts Options) (*Directory, error) {
	if opts.Source == nil {
		return nil, errors.New("source is required")
	}
	if opts.Hub == nil {
		return nil, errors.New("event hub is required")
	}
	if opts.Session == nil {
		return nil, errors.New("session is required")
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}

	d := &Directory{
		opts:    opts,
		logger:  logging.Component("directory"),
		metrics: opts.Metrics,
		now:     time.Now,
	}
	d.runner = newRunner(opts.RefreshInterval, opts.Session.Authenticated, d.refresh)
	return d, nil
}

// Start subscribes to the hub and begins refreshing. If the session is
// already signed in, the first refresh is issued immediately.
func (d *Directory) Start() error {
	if !d.runner.start() {
		return ErrAlreadyRunning
	}

	subID, err := d.opts.Hub.Subscribe(events.Filter{
		EventTypes: []models.EventType{
			models.EventTypeUnreadRefresh,
			models.EventTypeSessionLogin,
			models.EventTypeSessionLogout,
		},
	}, d.handleEvent)
	if err != nil {
		d.runner.stop()
		return err
	}

	d.mu.Lock()
	d.subID = subID
	authenticated := d.opts.Session.Authenticated()
	changed := authenticated && d.state == StateUnauthenticated
	if changed {
		d.state = StateAuthenticated
	}
	snap := d.snapshotLocked()
	d.mu.Unlock()

	if changed {
		d.notify(snap)
	}
	if authenticated {
		d.runner.trigger("start")
	}
	return nil
}

// Stop unsubscribes and stops refreshing.
func (d *Directory) Stop() error {
	d.mu.Lock()
	subID := d.subID
	d.subID = ""
	d.mu.Unlock()
	if subID != "" {
		_ = d.opts.Hub.Unsubscribe(subID)
	}
	if !d.runner.stop() {
		return ErrNotRunning
	}
	return nil
}

// Navigate records a route change and refreshes when signed in.
func (d *Directory) Navigate(path string) {
	d.mu.Lock()
	d.lastPath = path
	d.mu.Unlock()
	if d.opts.Session.Authenticated() {
		d.runner.trigger("navigate")
	}
}

// Refresh fetches summaries synchronously.
func (d *Directory) Refresh(ctx context.Context) error {
	if !d.opts.Session.Authenticated() {
		return ErrNotAuthenticated
	}
	return d.fetch(ctx, "manual")
}

// Snapshot returns a copy of the current state.
func (d *Directory) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked()
}

// State returns the lifecycle state.
func (d *Directory) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// LastPath returns the most recent navigation path.
func (d *Directory) LastPath() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastPath
}

func (d *Directory) snapshotLocked() Snapshot {
	var rows []models.ThreadSummary
	if d.summaries != nil {
		rows = make([]models.ThreadSummary, len(d.summaries))
		copy(rows, d.summaries)
	}
	return Snapshot{State: d.state, Summaries: rows, Err: d.lastErr, UpdatedAt: d.updatedAt}
}

func (d *Directory) handleEvent(e *models.Event) {
	switch e.Type {
	case models.EventTypeUnreadRefresh:
		if d.opts.Session.Authenticated() {
			d.runner.trigger("unread")
		}
	case models.EventTypeSessionLogin:
		d.mu.Lock()
		d.epoch++
		d.state = StateAuthenticated
		d.summaries = nil
		d.lastErr = nil
		snap := d.snapshotLocked()
		d.mu.Unlock()
		d.notify(snap)
		d.runner.trigger("login")
	case models.EventTypeSessionLogout:
		d.mu.Lock()
		d.epoch++
		d.state = StateUnauthenticated
		d.summaries = nil
		d.lastErr = nil
		d.updatedAt = time.Time{}
		snap := d.snapshotLocked()
		d.mu.Unlock()
		d.notify(snap)
	}
}

func (d *Directory) refresh(ctx context.Context, trigger string) {
	if !d.opts.Session.Authenticated() {
		return
	}
	_ = d.fetch(ctx, trigger)
}

func (d *Directory) fetch(ctx context.Context, trigger string) error {
	d.mu.RLock()
	epoch := d.epoch
	d.mu.RUnlock()

	d.metrics.DirectoryRefresh(trigger)
	rows, err := d.opts.Source.ListThreads(ctx)

	d.mu.Lock()
	if d.epoch != epoch {
		d.mu.Unlock()
		d.logger.Debug().Str("trigger", trigger).Msg("discarding refresh from previous session")
		return nil
	}
	if err != nil {
		d.lastErr = err
		snap := d.snapshotLocked()
		d.mu.Unlock()
		d.logger.Warn().Err(err).Str("trigger", trigger).Msg("directory refresh failed")
		d.notify(snap)
		return err
	}
	if rows == nil {
		rows = []models.ThreadSummary{}
	}
	d.summaries = rows
	d.lastErr = nil
	d.state = StateLoaded
	d.updatedAt = d.now()
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.logger.Debug().Str("trigger", trigger).Int("threads", len(rows)).Msg("directory refreshed")
	d.notify(snap)
	return nil
}

func (d *Directory) notify(snap Snapshot) {
	if d.opts.OnChange != nil {
		d.opts.OnChange(snap)
	}
}

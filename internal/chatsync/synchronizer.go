// Package chatsync keeps one open conversation consistent with the backend.
//
// A Synchronizer owns its View on a single event loop goroutine. Network
// calls run on their own goroutines and post results back to the loop, so
// every state transition is applied whole and in order.
package chatsync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/andertben/skillspot-chat/internal/auth"
	"github.com/andertben/skillspot-chat/internal/db"
	"github.com/andertben/skillspot-chat/internal/events"
	"github.com/andertben/skillspot-chat/internal/logging"
	"github.com/andertben/skillspot-chat/internal/metrics"
	"github.com/andertben/skillspot-chat/internal/models"
	"github.com/andertben/skillspot-chat/internal/transport"
)

// Synchronizer errors.
var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrSendInFlight     = errors.New("a send is already in flight")
	ErrAlreadyOpen      = errors.New("synchronizer already open")
	ErrNotOpen          = errors.New("synchronizer not open")
	ErrClosed           = errors.New("synchronizer closed")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// DefaultMaxConcurrentPolls bounds overlapping history fetches.
const DefaultMaxConcurrentPolls = 2

const draftDebounce = 500 * time.Millisecond

// Transport is the subset of the backend client the Synchronizer uses.
type Transport interface {
	GetThread(ctx context.Context, threadID string) (models.Thread, error)
	Messages(ctx context.Context, threadID string) ([]models.Message, error)
	SendMessage(ctx context.Context, threadID, text string) (models.Message, error)
	MarkRead(ctx context.Context, threadID string) error
}

// DraftStore persists composer text between sessions.
type DraftStore interface {
	Get(ctx context.Context, threadID string) (*models.Draft, error)
	Save(ctx context.Context, threadID, text string) error
	Delete(ctx context.Context, threadID string) error
}

// Options configures a Synchronizer.
type Options struct {
	ThreadID  string
	Transport Transport
	Hub       events.Publisher
	Session   auth.Status

	// Feed signals refetches. Defaults to a PollFeed at PollInterval.
	Feed         transport.Feed
	PollInterval time.Duration

	MaxConcurrentPolls int
	// ScrollThreshold is the auto-scroll distance; zero uses the default.
	ScrollThreshold int

	// Drafts is optional.
	Drafts DraftStore

	// OnUpdate receives every state change. It runs on the event loop and
	// must not call back into the Synchronizer synchronously.
	OnUpdate func(Update)

	Metrics *metrics.Metrics
}

// Synchronizer reconciles one thread's history, sends and read state.
type Synchronizer struct {
	opts    Options
	logger  zerolog.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan func()
	done   chan struct{}

	opened    atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	subID     string

	snapMu sync.RWMutex
	snap   View

	// trace observes loop events in tests.
	trace func(event string)

	// Loop-owned state below.
	view          View
	tracker       *ScrollTracker
	seq           uint64
	applied       uint64
	fence         uint64
	inflightPolls int
	loaded        bool
	authPaused    bool
	readMarked    bool
	draftDirty    bool
	draftTimer    *time.Timer
}

// New validates opts and creates a Synchronizer. Call Open to start it.
func New(opts Options) (*Synchronizer, error) {
	opts.ThreadID = strings.TrimSpace(opts.ThreadID)
	if opts.ThreadID == "" {
		return nil, errors.New("thread id is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if opts.Hub == nil {
		return nil, errors.New("event hub is required")
	}
	if opts.Session == nil {
		return nil, errors.New("session is required")
	}
	if opts.Feed == nil {
		opts.Feed = transport.NewPollFeed(opts.PollInterval)
	}
	if opts.MaxConcurrentPolls <= 0 {
		opts.MaxConcurrentPolls = DefaultMaxConcurrentPolls
	}

	ctx, cancel := context.WithCancel(context.Background())
	tracker := NewScrollTracker(opts.ScrollThreshold)
	s := &Synchronizer{
		opts:    opts,
		logger:  logging.WithThread("chatsync", opts.ThreadID),
		metrics: opts.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		cmds:    make(chan func(), 64),
		done:    make(chan struct{}),
		tracker: tracker,
		view: View{
			ThreadID:   opts.ThreadID,
			AutoScroll: tracker.AutoScroll(),
			Subject:    opts.Session.Subject(),
		},
	}
	s.snap = s.view.clone()
	return s, nil
}

// Open starts the event loop and the initial load. It returns once the loop
// is running; load results arrive through OnUpdate. A failed Open leaves the
// Synchronizer closed.
func (s *Synchronizer) Open(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.opened.Swap(true) {
		return ErrAlreadyOpen
	}

	ticks, err := s.opts.Feed.Watch(s.ctx, s.opts.ThreadID)
	if err != nil {
		s.abort()
		return err
	}

	if s.opts.Drafts != nil {
		draft, err := s.opts.Drafts.Get(ctx, s.opts.ThreadID)
		switch {
		case err == nil:
			s.view.Input = draft.Text
		case !errors.Is(err, db.ErrDraftNotFound):
			s.logger.Warn().Err(err).Msg("failed to restore draft")
		}
	}

	subID, err := s.opts.Hub.Subscribe(events.Filter{
		EventTypes: []models.EventType{models.EventTypeSessionLogin, models.EventTypeSessionLogout},
	}, func(e *models.Event) {
		eventType := e.Type
		go s.post(func() { s.onSession(eventType) })
	})
	if err != nil {
		s.abort()
		return err
	}
	s.subID = subID

	go s.run(ticks)
	s.post(s.startInitialLoad)
	return nil
}

// Retry re-runs the initial load. It clears load and auth errors.
func (s *Synchronizer) Retry() error {
	return s.call(func() error {
		if s.view.Loading {
			return nil
		}
		s.authPaused = false
		s.startInitialLoad()
		return nil
	})
}

// Send submits text. Whitespace-only text and a second send while one is in
// flight are rejected. The composer is cleared immediately and restored if
// the send fails.
func (s *Synchronizer) Send(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	return s.call(func() error {
		if s.view.Sending {
			return ErrSendInFlight
		}
		if !s.opts.Session.Authenticated() {
			return ErrNotAuthenticated
		}
		s.startSend(trimmed)
		return nil
	})
}

// SetInput replaces the composer text.
func (s *Synchronizer) SetInput(text string) error {
	return s.call(func() error {
		if s.view.Input == text {
			return nil
		}
		s.view.Input = text
		s.scheduleDraftSave()
		s.emit(ReasonInput, ScrollNone)
		return nil
	})
}

// ReportScroll records a manual scroll of the viewport.
func (s *Synchronizer) ReportScroll(pos ScrollPosition) error {
	return s.call(func() error {
		s.view.AutoScroll = s.tracker.Observe(pos)
		s.commit()
		return nil
	})
}

// Snapshot returns a copy of the current view.
func (s *Synchronizer) Snapshot() View {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap.clone()
}

// Close stops the loop, the feed and any in-flight requests. Results that
// arrive later are discarded. Close is idempotent.
func (s *Synchronizer) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		if s.subID != "" {
			_ = s.opts.Hub.Unsubscribe(s.subID)
		}
		if !s.opened.Load() {
			return
		}
		<-s.done
		if s.draftTimer != nil {
			s.draftTimer.Stop()
		}
		if s.draftDirty {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			s.saveDraft(ctx, s.view.Input)
			cancel()
		}
		s.logger.Debug().Msg("closed")
	})
	return nil
}

func (s *Synchronizer) abort() {
	s.closed.Store(true)
	s.cancel()
	close(s.done)
}

func (s *Synchronizer) run(ticks <-chan struct{}) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.cmds:
			if s.ctx.Err() != nil {
				return
			}
			fn()
		case _, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			s.onTick()
		}
	}
}

// post queues fn on the loop. It is dropped once the Synchronizer is closed.
func (s *Synchronizer) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.ctx.Done():
	}
}

// call runs fn on the loop and waits for its result.
func (s *Synchronizer) call(fn func() error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.opened.Load() {
		return ErrNotOpen
	}
	errCh := make(chan error, 1)
	select {
	case s.cmds <- func() { errCh <- fn() }:
	case <-s.ctx.Done():
		return ErrClosed
	}
	select {
	case err := <-errCh:
		return err
	case <-s.done:
		return ErrClosed
	}
}

func (s *Synchronizer) note(event string) {
	if s.trace != nil {
		s.trace(event)
	}
}

// commit publishes the loop's view to Snapshot readers.
func (s *Synchronizer) commit() {
	snap := s.view.clone()
	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()
}

func (s *Synchronizer) emit(reason Reason, scroll ScrollAction) {
	s.commit()
	s.metrics.Update(string(reason))
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate(Update{View: s.view.clone(), Reason: reason, Scroll: scroll})
	}
}

func (s *Synchronizer) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// stale reports whether a fetch issued as seq must not be applied.
func (s *Synchronizer) stale(seq uint64) bool {
	return seq <= s.applied || seq < s.fence
}

func (s *Synchronizer) startInitialLoad() {
	s.view.Subject = s.opts.Session.Subject()
	if !s.opts.Session.Authenticated() {
		s.authPaused = true
		s.view.Loading = false
		s.view.Err = &ViewError{Kind: ErrorAuth, Message: MessageAuthError, Err: ErrNotAuthenticated}
		s.emit(ReasonError, ScrollNone)
		s.note("initial-unauthenticated")
		return
	}

	s.view.Loading = true
	s.view.Err = nil
	s.emit(ReasonLoading, ScrollNone)

	seq := s.nextSeq()
	ctx := s.ctx
	threadID := s.opts.ThreadID

	go func() {
		thread, err := s.opts.Transport.GetThread(ctx, threadID)
		s.post(func() { s.applyThread(thread, err) })
	}()
	go func() {
		msgs, err := s.opts.Transport.Messages(ctx, threadID)
		s.post(func() { s.applyInitial(seq, msgs, err) })
	}()
}

func (s *Synchronizer) applyThread(thread models.Thread, err error) {
	if err != nil {
		s.logger.Warn().Err(err).Msg("thread metadata unavailable")
		s.note("thread-error")
		return
	}
	s.view.Title = thread.ServiceTitle
	s.view.Counterpart = thread.CounterpartName
	s.emit(ReasonThread, ScrollNone)
	s.note("thread")
}

func (s *Synchronizer) applyInitial(seq uint64, msgs []models.Message, err error) {
	s.view.Loading = false

	if s.stale(seq) {
		s.metrics.StaleDrop()
		s.logger.Debug().Uint64("seq", seq).Bool("failed", err != nil).Msg("dropping stale initial load")
		s.emit(ReasonInitial, ScrollNone)
		s.note("initial-stale")
		return
	}

	if err != nil {
		s.view.Err = s.loadError(err)
		if s.view.Err.Kind == ErrorAuth {
			s.authPaused = true
		}
		s.logger.Warn().Err(err).Str("kind", string(s.view.Err.Kind)).Msg("initial load failed")
		s.emit(ReasonError, ScrollNone)
		s.note("initial-error")
		return
	}

	s.applied = seq
	s.loaded = true
	s.view.Err = nil
	s.view.Messages = models.CloneMessages(msgs)
	s.emit(ReasonInitial, s.tracker.Decide(ReasonInitial, len(s.view.Messages)))
	s.note("initial")
	s.markReadOnce()
}

func (s *Synchronizer) onTick() {
	switch {
	case s.view.Loading:
		s.note("tick-loading")
		return
	case s.authPaused:
		s.note("tick-paused")
		return
	case !s.opts.Session.Authenticated():
		s.note("tick-unauthenticated")
		return
	case s.inflightPolls >= s.opts.MaxConcurrentPolls:
		s.metrics.PollSkipped()
		s.logger.Debug().Int("inflight", s.inflightPolls).Msg("skipping poll tick")
		s.note("tick-skipped")
		return
	}

	s.inflightPolls++
	s.metrics.PollTick()
	seq := s.nextSeq()
	ctx := s.ctx
	threadID := s.opts.ThreadID
	s.note("tick")

	go func() {
		msgs, err := s.opts.Transport.Messages(ctx, threadID)
		s.post(func() { s.applyPoll(seq, msgs, err) })
	}()
}

func (s *Synchronizer) applyPoll(seq uint64, msgs []models.Message, err error) {
	s.inflightPolls--

	if err != nil {
		if transport.IsAuth(err) {
			s.authPaused = true
			s.view.Err = s.loadError(err)
			s.logger.Warn().Err(err).Msg("poll unauthorized; pausing")
			s.emit(ReasonError, ScrollNone)
			s.note("poll-auth")
			return
		}
		s.logger.Warn().Err(err).Msg("poll failed")
		s.note("poll-error")
		return
	}

	if s.stale(seq) {
		s.metrics.StaleDrop()
		s.logger.Debug().Uint64("seq", seq).Uint64("applied", s.applied).Uint64("fence", s.fence).Msg("dropping stale poll")
		s.note("poll-stale")
		return
	}
	s.applied = seq

	firstLoad := !s.loaded
	s.loaded = true

	if models.MessagesEqual(msgs, s.view.Messages) && !firstLoad {
		if s.view.Err != nil {
			s.view.Err = nil
			s.emit(ReasonPoll, ScrollNone)
		}
		s.note("poll-equal")
		return
	}

	s.view.Err = nil
	s.view.Messages = models.CloneMessages(msgs)
	s.emit(ReasonPoll, s.tracker.Decide(ReasonPoll, len(s.view.Messages)))
	s.note("poll")
	s.markReadOnce()
}

func (s *Synchronizer) startSend(text string) {
	s.view.Sending = true
	s.view.SendErr = nil
	s.view.Input = ""
	s.draftDirty = false
	s.emit(ReasonInput, ScrollNone)

	ctx := s.ctx
	threadID := s.opts.ThreadID
	go func() {
		msg, err := s.opts.Transport.SendMessage(ctx, threadID, text)
		s.post(func() { s.applySend(text, msg, err) })
	}()
}

func (s *Synchronizer) applySend(text string, msg models.Message, err error) {
	s.view.Sending = false

	if err != nil {
		s.metrics.Send("error")
		s.view.Input = text
		s.view.SendErr = &ViewError{Kind: ErrorSend, Message: MessageSendError, Err: err}
		s.logger.Warn().Err(err).Msg("send failed")
		s.saveDraft(s.ctx, text)
		s.emit(ReasonSendFailed, ScrollNone)
		s.note("send-error")
		return
	}

	s.metrics.Send("ok")
	// Fetches issued before this point may predate the new message.
	s.fence = s.seq + 1

	if !containsID(s.view.Messages, msg.ID) {
		s.view.Messages = append(models.CloneMessages(s.view.Messages), msg)
	}
	s.saveDraft(s.ctx, "")
	s.emit(ReasonSend, s.tracker.Decide(ReasonSend, len(s.view.Messages)))
	s.note("send")

	s.opts.Hub.Publish(s.ctx, &models.Event{Type: models.EventTypeMessageSent, ThreadID: s.opts.ThreadID})
}

// markReadOnce issues the lifecycle's single read-mark.
func (s *Synchronizer) markReadOnce() {
	if s.readMarked {
		return
	}
	s.readMarked = true

	ctx := s.ctx
	threadID := s.opts.ThreadID
	go func() {
		err := s.opts.Transport.MarkRead(ctx, threadID)
		s.post(func() { s.applyMarkRead(err) })
	}()
}

func (s *Synchronizer) applyMarkRead(err error) {
	if err != nil {
		s.metrics.MarkRead("error")
		s.logger.Warn().Err(err).Msg("mark read failed")
		s.note("markread-error")
		return
	}
	s.metrics.MarkRead("ok")
	s.opts.Hub.Publish(s.ctx, &models.Event{Type: models.EventTypeThreadRead, ThreadID: s.opts.ThreadID})
	s.opts.Hub.Publish(s.ctx, &models.Event{Type: models.EventTypeUnreadRefresh})
	s.note("markread")
}

func (s *Synchronizer) onSession(eventType models.EventType) {
	switch eventType {
	case models.EventTypeSessionLogin:
		s.view.Subject = s.opts.Session.Subject()
		if s.authPaused || !s.loaded {
			s.authPaused = false
			if !s.view.Loading {
				s.startInitialLoad()
			}
		} else {
			s.commit()
		}
		s.note("login")
	case models.EventTypeSessionLogout:
		s.logger.Debug().Msg("session ended; polling paused")
		s.note("logout")
	}
}

func (s *Synchronizer) loadError(err error) *ViewError {
	if transport.IsAuth(err) {
		return &ViewError{Kind: ErrorAuth, Message: MessageAuthError, Err: err}
	}
	return &ViewError{Kind: ErrorLoad, Message: MessageLoadError, Err: err}
}

func (s *Synchronizer) scheduleDraftSave() {
	if s.opts.Drafts == nil {
		return
	}
	s.draftDirty = true
	if s.draftTimer != nil {
		return
	}
	s.draftTimer = time.AfterFunc(draftDebounce, func() {
		s.post(func() {
			s.draftTimer = nil
			if s.draftDirty {
				s.saveDraft(s.ctx, s.view.Input)
			}
		})
	})
}

func (s *Synchronizer) saveDraft(ctx context.Context, text string) {
	if s.opts.Drafts == nil {
		return
	}
	s.draftDirty = false
	var err error
	if strings.TrimSpace(text) == "" {
		err = s.opts.Drafts.Delete(ctx, s.opts.ThreadID)
	} else {
		err = s.opts.Drafts.Save(ctx, s.opts.ThreadID, text)
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist draft")
	}
}

func containsID(msgs []models.Message, id string) bool {
	if id == "" {
		return false
	}
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}

package chatsync

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andertben/skillspot-chat/internal/auth"
	"github.com/andertben/skillspot-chat/internal/db"
	"github.com/andertben/skillspot-chat/internal/events"
	"github.com/andertben/skillspot-chat/internal/models"
	"github.com/andertben/skillspot-chat/internal/testutil"
	"github.com/andertben/skillspot-chat/internal/transport"
)

const (
	testThread  = "t1"
	testSubject = "auth0|me"
)

var baseTime = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func msg(id, sender, text string, minute int) models.Message {
	return models.Message{
		ID:        id,
		ThreadID:  testThread,
		SenderID:  sender,
		Text:      text,
		Timestamp: baseTime.Add(time.Duration(minute) * time.Minute),
	}
}

type fetchReply struct {
	msgs []models.Message
	err  error
}

type pendingFetch struct {
	reply chan fetchReply
}

func (p *pendingFetch) release(msgs []models.Message, err error) {
	p.reply <- fetchReply{msgs: msgs, err: err}
}

// fakeTransport serves a scripted thread. In manual mode every Messages call
// parks on the pending channel until the test releases it.
type fakeTransport struct {
	mu sync.Mutex

	thread    models.Thread
	threadErr error
	server    []models.Message
	msgErr    error
	sendErr   error
	markErr   error
	sendGate  chan struct{}
	manual    bool
	nextID    int
	markReads int
	sent      []string

	pending chan *pendingFetch
}

func newFakeTransport(msgs ...models.Message) *fakeTransport {
	return &fakeTransport{
		thread: models.Thread{
			ThreadID:        testThread,
			ServiceID:       "svc-1",
			ServiceTitle:    "Fensterputzen",
			CounterpartName: "Bob",
		},
		server:  msgs,
		nextID:  42,
		pending: make(chan *pendingFetch, 16),
	}
}

func (f *fakeTransport) set(fn func(f *fakeTransport)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeTransport) GetThread(ctx context.Context, threadID string) (models.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.threadErr != nil {
		return models.Thread{}, f.threadErr
	}
	return f.thread, nil
}

func (f *fakeTransport) Messages(ctx context.Context, threadID string) ([]models.Message, error) {
	f.mu.Lock()
	if f.manual {
		f.mu.Unlock()
		p := &pendingFetch{reply: make(chan fetchReply, 1)}
		f.pending <- p
		select {
		case r := <-p.reply:
			return r.msgs, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer f.mu.Unlock()
	if f.msgErr != nil {
		return nil, f.msgErr
	}
	return models.CloneMessages(f.server), nil
}

func (f *fakeTransport) SendMessage(ctx context.Context, threadID, text string) (models.Message, error) {
	f.mu.Lock()
	gate := f.sendGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.Message{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	if f.sendErr != nil {
		return models.Message{}, f.sendErr
	}
	m := msg(strconv.Itoa(f.nextID), testSubject, text, 100+f.nextID)
	f.nextID++
	f.server = append(f.server, m)
	return m, nil
}

func (f *fakeTransport) MarkRead(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReads++
	return f.markErr
}

func (f *fakeTransport) markReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markReads
}

func (f *fakeTransport) nextPending(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-f.pending:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a history fetch")
		return nil
	}
}

type memDrafts struct {
	mu     sync.Mutex
	drafts map[string]string
}

func newMemDrafts() *memDrafts {
	return &memDrafts{drafts: make(map[string]string)}
}

func (m *memDrafts) Get(_ context.Context, threadID string) (*models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.drafts[threadID]
	if !ok {
		return nil, db.ErrDraftNotFound
	}
	return &models.Draft{ThreadID: threadID, Text: text}, nil
}

func (m *memDrafts) Save(_ context.Context, threadID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[threadID] = text
	return nil
}

func (m *memDrafts) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, threadID)
	return nil
}

func (m *memDrafts) get(threadID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.drafts[threadID]
	return text, ok
}

type harness struct {
	t         *testing.T
	sync      *Synchronizer
	transport *fakeTransport
	feed      *testutil.ManualFeed
	hub       *events.Hub
	session   *auth.Session
	drafts    *memDrafts

	mu      sync.Mutex
	updates []Update
	trace   map[string]int
	hubSeen map[models.EventType]int
}

type harnessOption func(*Options)

func newHarness(t *testing.T, ft *fakeTransport, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		t:         t,
		transport: ft,
		feed:      testutil.NewManualFeed(),
		hub:       events.NewHub(),
		drafts:    newMemDrafts(),
		trace:     make(map[string]int),
		hubSeen:   make(map[models.EventType]int),
	}
	h.session = auth.NewSession(h.hub)
	h.session.Login(context.Background(), testSubject)

	_, err := h.hub.Subscribe(events.Filter{}, func(e *models.Event) {
		h.mu.Lock()
		h.hubSeen[e.Type]++
		h.mu.Unlock()
	})
	require.NoError(t, err)

	o := Options{
		ThreadID:  testThread,
		Transport: ft,
		Hub:       h.hub,
		Session:   h.session,
		Feed:      h.feed,
		Drafts:    h.drafts,
		OnUpdate: func(u Update) {
			h.mu.Lock()
			h.updates = append(h.updates, u)
			h.mu.Unlock()
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	s, err := New(o)
	require.NoError(t, err)
	s.trace = func(event string) {
		h.mu.Lock()
		h.trace[event]++
		h.mu.Unlock()
	}
	h.sync = s
	t.Cleanup(func() { _ = s.Close() })
	return h
}

func (h *harness) open() {
	h.t.Helper()
	require.NoError(h.t, h.sync.Open(context.Background()))
}

// openLoaded opens and waits for the initial history.
func (h *harness) openLoaded() {
	h.t.Helper()
	h.open()
	h.wait("initial", 1)
}

func (h *harness) wait(event string, n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.trace[event] >= n
	}, 2*time.Second, 2*time.Millisecond, "waiting for %q x%d", event, n)
}

func (h *harness) count(event string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.trace[event]
}

func (h *harness) hubCount(t models.EventType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hubSeen[t]
}

func (h *harness) updateCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.updates)
}

func (h *harness) lastUpdate() Update {
	h.t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(h.t, h.updates)
	return h.updates[len(h.updates)-1]
}

func (h *harness) lastUpdateFor(reason Reason) Update {
	h.t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.updates) - 1; i >= 0; i-- {
		if h.updates[i].Reason == reason {
			return h.updates[i]
		}
	}
	h.t.Fatalf("no update with reason %s", reason)
	return Update{}
}

// tick triggers one feed signal and waits until the loop has handled it.
func (h *harness) tick(event string) {
	h.t.Helper()
	before := h.count(event)
	h.feed.Trigger()
	h.wait(event, before+1)
}

func authErr() error {
	return &transport.Error{Category: transport.CategoryAuth, Op: "messages", Status: 401, Err: errors.New("unauthorized")}
}

func loadErr() error {
	return &transport.Error{Category: transport.CategoryLoad, Op: "messages", Status: 500, Err: errors.New("boom")}
}

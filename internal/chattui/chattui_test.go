package chattui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/andertben/skillspot-chat/internal/chatsync"
	"github.com/andertben/skillspot-chat/internal/directory"
	"github.com/andertben/skillspot-chat/internal/models"
)

type fakeSyncer struct {
	mu        sync.Mutex
	sent      []string
	inputs    []string
	positions []chatsync.ScrollPosition
	retries   int
	closed    bool
	sendErr   error
}

func (f *fakeSyncer) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSyncer) SetInput(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, text)
	return nil
}

func (f *fakeSyncer) ReportScroll(pos chatsync.ScrollPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions = append(f.positions, pos)
	return nil
}

func (f *fakeSyncer) Retry() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries++
	return nil
}

func (f *fakeSyncer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// collect runs cmd, expanding batches, and returns the messages produced
// within a short window. Slow commands such as cursor blinks are dropped.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		if batch, ok := msg.(tea.BatchMsg); ok {
			var out []tea.Msg
			for _, c := range batch {
				out = append(out, collect(c)...)
			}
			return out
		}
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func messages(n int, own string) []models.Message {
	out := make([]models.Message, n)
	for i := range out {
		sender := "auth0|other"
		if i%2 == 0 {
			sender = own
		}
		out[i] = models.Message{
			ID:        fmt.Sprint(i + 1),
			ThreadID:  "t1",
			SenderID:  sender,
			Text:      fmt.Sprintf("message %d", i+1),
			Timestamp: time.Date(2026, 10, 18, 12, i%60, 0, 0, time.UTC),
		}
	}
	return out
}

func newTestConversation(t *testing.T) (*Conversation, *fakeSyncer) {
	t.Helper()
	fake := &fakeSyncer{}
	c := NewConversation("t1", fake, Styles{})
	c.SetSize(60, 20)
	return c, fake
}

func update(reason chatsync.Reason, scroll chatsync.ScrollAction, view chatsync.View) syncUpdateMsg {
	if view.ThreadID == "" {
		view.ThreadID = "t1"
	}
	return syncUpdateMsg{update: chatsync.Update{View: view, Reason: reason, Scroll: scroll}}
}

func TestConversationInstantScrollJumpsToBottom(t *testing.T) {
	c, _ := newTestConversation(t)
	c.Update(update(chatsync.ReasonInitial, chatsync.ScrollInstant, chatsync.View{
		Messages: messages(30, "auth0|me"),
		Subject:  "auth0|me",
	}))

	require.Greater(t, c.viewport.TotalLineCount(), c.viewport.Height)
	require.True(t, c.viewport.AtBottom())
}

func TestConversationSmoothScrollAnimates(t *testing.T) {
	c, _ := newTestConversation(t)
	msgs := messages(30, "auth0|me")
	c.Update(update(chatsync.ReasonInitial, chatsync.ScrollInstant, chatsync.View{Messages: msgs}))
	c.scrollBy(-10)
	require.False(t, c.viewport.AtBottom())

	cmd := c.Update(update(chatsync.ReasonPoll, chatsync.ScrollSmooth, chatsync.View{
		Messages: append(msgs, models.Message{ID: "99", Text: "neu"}),
	}))
	require.NotNil(t, cmd)
	require.True(t, c.animating)

	start := c.viewport.YOffset
	steps := 0
	for c.animating {
		c.step(c.animGen)
		steps++
		require.Less(t, steps, 100)
	}
	require.Greater(t, steps, 1)
	require.Greater(t, c.viewport.YOffset, start)
	require.True(t, c.viewport.AtBottom())
}

func TestConversationManualScrollCancelsAnimationAndReports(t *testing.T) {
	c, fake := newTestConversation(t)
	c.Update(update(chatsync.ReasonInitial, chatsync.ScrollInstant, chatsync.View{Messages: messages(30, "auth0|me")}))
	c.startAnimation()
	gen := c.animGen

	collect(c.Update(tea.KeyMsg{Type: tea.KeyPgUp}))
	require.False(t, c.animating)
	require.Nil(t, c.step(gen))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.positions, 1)
	pos := fake.positions[0]
	require.Equal(t, c.viewport.Height, pos.ViewportHeight)
	require.Equal(t, c.viewport.TotalLineCount(), pos.ContentHeight)
	require.Greater(t, pos.DistanceFromBottom(), 0)
}

func TestConversationNoneScrollKeepsOffset(t *testing.T) {
	c, _ := newTestConversation(t)
	msgs := messages(30, "auth0|me")
	c.Update(update(chatsync.ReasonInitial, chatsync.ScrollInstant, chatsync.View{Messages: msgs}))
	c.scrollBy(-12)
	offset := c.viewport.YOffset

	cmd := c.Update(update(chatsync.ReasonPoll, chatsync.ScrollNone, chatsync.View{
		Messages: append(msgs, models.Message{ID: "99", Text: "neu"}),
	}))
	require.Nil(t, cmd)
	require.Equal(t, offset, c.viewport.YOffset)
}

func TestConversationIgnoresOtherThreads(t *testing.T) {
	c, _ := newTestConversation(t)
	c.Update(update(chatsync.ReasonInitial, chatsync.ScrollNone, chatsync.View{
		ThreadID: "t2",
		Messages: messages(3, "auth0|me"),
	}))
	require.Empty(t, c.State().Messages)
	require.True(t, c.State().Loading)
}

func TestConversationTypingForwardsInput(t *testing.T) {
	c, fake := newTestConversation(t)
	collect(c.Update(keyRunes("h")))
	collect(c.Update(keyRunes("i")))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, []string{"h", "hi"}, fake.inputs)
}

func TestConversationSubmit(t *testing.T) {
	c, fake := newTestConversation(t)
	c.input.SetValue("  hallo  ")

	msgs := collect(c.Update(tea.KeyMsg{Type: tea.KeyEnter}))
	require.Empty(t, msgs)
	require.Equal(t, "", c.input.Value())
	require.Equal(t, []string{"  hallo  "}, fake.sent)
}

func TestConversationSubmitIgnoresBlankAndInFlight(t *testing.T) {
	c, fake := newTestConversation(t)
	c.input.SetValue("   ")
	require.Nil(t, c.submit())

	c.input.SetValue("text")
	c.view.Sending = true
	require.Nil(t, c.submit())
	require.Empty(t, fake.sent)
}

func TestConversationRejectedSendRestoresComposer(t *testing.T) {
	c, fake := newTestConversation(t)
	fake.sendErr = chatsync.ErrSendInFlight
	c.input.SetValue("hallo")

	msgs := collect(c.submit())
	require.Len(t, msgs, 1)
	c.Update(msgs[0])

	require.Equal(t, "hallo", c.input.Value())
	require.Contains(t, c.Render(), "Nachricht wird bereits gesendet")
}

func TestConversationSendFailureRestoresText(t *testing.T) {
	c, _ := newTestConversation(t)
	c.Update(update(chatsync.ReasonSendFailed, chatsync.ScrollNone, chatsync.View{
		Input:   "nochmal",
		SendErr: &chatsync.ViewError{Kind: chatsync.ErrorSend, Message: chatsync.MessageSendError},
	}))
	require.Equal(t, "nochmal", c.input.Value())
	require.Contains(t, c.Render(), chatsync.MessageSendError)
}

func TestConversationRestoresDraftOnce(t *testing.T) {
	c, _ := newTestConversation(t)
	c.Update(update(chatsync.ReasonLoading, chatsync.ScrollNone, chatsync.View{Loading: true, Input: "entwurf"}))
	require.Equal(t, "entwurf", c.input.Value())

	c.input.SetValue("entwurf weiter")
	c.Update(update(chatsync.ReasonLoading, chatsync.ScrollNone, chatsync.View{Loading: true, Input: "entwurf"}))
	require.Equal(t, "entwurf weiter", c.input.Value())
}

func TestConversationRetryOnlyForRetryableErrors(t *testing.T) {
	c, fake := newTestConversation(t)
	ctrlR := tea.KeyMsg{Type: tea.KeyCtrlR}

	require.Nil(t, c.Update(ctrlR))

	c.Update(update(chatsync.ReasonError, chatsync.ScrollNone, chatsync.View{
		Err: &chatsync.ViewError{Kind: chatsync.ErrorLoad, Message: chatsync.MessageLoadError},
	}))
	require.Contains(t, c.Render(), chatsync.MessageLoadError)
	collect(c.Update(ctrlR))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, 1, fake.retries)
}

func TestConversationAlignsOwnMessages(t *testing.T) {
	c, _ := newTestConversation(t)
	view := chatsync.View{Subject: "auth0|me"}
	c.view = view

	own := c.renderMessage(models.Message{SenderID: "auth0|me", Text: "hi"}, 40, 30)
	other := c.renderMessage(models.Message{SenderID: "auth0|other", Text: "yo"}, 40, 30)

	ownFirst := strings.Split(own, "\n")[0]
	otherFirst := strings.Split(other, "\n")[0]
	require.True(t, strings.HasPrefix(ownFirst, "  "), "own message should be right aligned: %q", ownFirst)
	require.True(t, strings.HasSuffix(strings.TrimRight(ownFirst, " "), "hi"))
	require.True(t, strings.HasPrefix(otherFirst, "yo"), "other message should be left aligned: %q", otherFirst)
}

func TestConversationHeaderFallbacks(t *testing.T) {
	c, _ := newTestConversation(t)
	out := c.Render()
	require.Contains(t, out, "Thread ID: t1")
	require.Contains(t, out, "Anfrage")
	require.Contains(t, out, "Lade Nachrichten…")

	c.Update(update(chatsync.ReasonThread, chatsync.ScrollNone, chatsync.View{Counterpart: "Bob", Title: "Gartenpflege"}))
	out = c.Render()
	require.Contains(t, out, "Bob")
	require.Contains(t, out, "Gartenpflege")
	require.Contains(t, out, "Noch keine Nachrichten")
}

func summaries() []models.ThreadSummary {
	return []models.ThreadSummary{
		{ThreadID: "t1", ServiceTitle: "Gartenpflege", CounterpartName: "Bob", LastMessageText: "Hallo", UnreadCount: 3},
		{ThreadID: "t2", CounterpartName: "Carla"},
		{ThreadID: "t3", ServiceTitle: "Umzug", UnreadCount: 150},
	}
}

func TestThreadListNavigation(t *testing.T) {
	l := NewThreadList(Styles{})
	l.SetSize(60, 20)
	l.SetSnapshot(directory.Snapshot{State: directory.StateLoaded, Summaries: summaries()})

	require.Equal(t, "t1", l.SelectedID())
	l.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, "t2", l.SelectedID())
	l.Update(tea.KeyMsg{Type: tea.KeyUp})
	l.Update(tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, "t1", l.SelectedID())
	l.Update(keyRunes("G"))
	require.Equal(t, "t3", l.SelectedID())
	l.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, "t3", l.SelectedID())

	msgs := collect(l.Update(tea.KeyMsg{Type: tea.KeyEnter}))
	require.Equal(t, []tea.Msg{openThreadMsg{threadID: "t3"}}, msgs)
}

func TestThreadListSelectionFollowsThread(t *testing.T) {
	l := NewThreadList(Styles{})
	l.SetSize(60, 20)
	l.SetSnapshot(directory.Snapshot{State: directory.StateLoaded, Summaries: summaries()})
	l.Update(tea.KeyMsg{Type: tea.KeyDown})

	rows := summaries()
	rows[0], rows[1] = rows[1], rows[0]
	l.SetSnapshot(directory.Snapshot{State: directory.StateLoaded, Summaries: rows})
	require.Equal(t, "t2", l.SelectedID())

	l.SetSnapshot(directory.Snapshot{State: directory.StateLoaded, Summaries: rows[2:]})
	require.Equal(t, "t3", l.SelectedID())
}

func TestThreadListRender(t *testing.T) {
	l := NewThreadList(Styles{})
	l.SetSize(80, 20)
	require.Contains(t, l.Render(), "Bitte anmelden")

	l.SetSnapshot(directory.Snapshot{State: directory.StateAuthenticated})
	require.Contains(t, l.Render(), "Lade Unterhaltungen")

	l.SetSnapshot(directory.Snapshot{State: directory.StateLoaded, Summaries: summaries()})
	out := l.Render()
	require.Contains(t, out, "Bob · Gartenpflege (3)")
	require.Contains(t, out, "Carla · Anfrage")
	require.Contains(t, out, "Umzug (99+)")
	require.Contains(t, out, "Noch keine Nachrichten")

	l.SetSnapshot(directory.Snapshot{State: directory.StateLoaded, Summaries: []models.ThreadSummary{}})
	require.Contains(t, l.Render(), "Keine Unterhaltungen")
}

func TestBridgeKeepsLatestDirectorySnapshot(t *testing.T) {
	b := NewBridge()
	b.OnDirectory(directory.Snapshot{State: directory.StateAuthenticated})
	b.OnDirectory(directory.Snapshot{State: directory.StateLoaded})
	b.OnBadge(1, "1")
	b.OnBadge(2, "2")

	require.Equal(t, directoryMsg{snapshot: directory.Snapshot{State: directory.StateLoaded}}, b.waitDirectory()())
	require.Equal(t, badgeMsg{label: "2"}, b.waitBadge()())
}

func TestBridgeCloseReleasesSenders(t *testing.T) {
	b := NewBridge()
	for i := 0; i < cap(b.updates); i++ {
		b.OnUpdate(chatsync.Update{})
	}
	done := make(chan struct{})
	go func() {
		b.OnUpdate(chatsync.Update{})
		close(done)
	}()
	b.Close()
	b.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnUpdate blocked after Close")
	}
}

func TestModelOpensAndClosesThreads(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	fake := &fakeSyncer{}
	bridge := NewBridge()
	defer bridge.Close()

	m, err := NewModel(context.Background(), Config{
		Bridge: bridge,
		Open: func(_ context.Context, threadID string) (Thread, error) {
			require.Equal(t, "t1", threadID)
			return fake, nil
		},
		Navigate: func(path string) {
			mu.Lock()
			paths = append(paths, path)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	_, cmd := m.Update(openThreadMsg{threadID: "t1"})
	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	m.Update(msgs[0])
	require.Equal(t, screenConversation, m.screen)
	require.Equal(t, "t1", m.conv.ThreadID())
	require.Contains(t, m.View(), "Thread ID: t1")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	collect(cmd)
	require.Equal(t, screenList, m.screen)
	require.Nil(t, m.conv)

	fake.mu.Lock()
	require.True(t, fake.closed)
	fake.mu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/chat/t1", "/chat"}, paths)
}

func TestModelOpenFailureStaysOnList(t *testing.T) {
	bridge := NewBridge()
	defer bridge.Close()
	m, err := NewModel(context.Background(), Config{
		Bridge: bridge,
		Open: func(context.Context, string) (Thread, error) {
			return nil, chatsync.ErrNotAuthenticated
		},
	})
	require.NoError(t, err)

	_, cmd := m.Update(openThreadMsg{threadID: "t1"})
	for _, msg := range collect(cmd) {
		m.Update(msg)
	}
	require.Equal(t, screenList, m.screen)
	require.Contains(t, m.View(), "konnte nicht geöffnet werden")
}

func TestNewModelValidates(t *testing.T) {
	_, err := NewModel(context.Background(), Config{})
	require.Error(t, err)
	_, err = NewModel(context.Background(), Config{Bridge: NewBridge()})
	require.Error(t, err)
}

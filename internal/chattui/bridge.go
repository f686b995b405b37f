package chattui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/andertben/skillspot-chat/internal/chatsync"
	"github.com/andertben/skillspot-chat/internal/directory"
)

type syncUpdateMsg struct {
	update chatsync.Update
}

type directoryMsg struct {
	snapshot directory.Snapshot
}

type badgeMsg struct {
	label string
}

// Bridge carries callbacks from background components into the bubbletea
// program. Conversation updates are delivered in order; directory and badge
// changes keep only the latest value.
type Bridge struct {
	updates   chan chatsync.Update
	snapshots chan directory.Snapshot
	badges    chan string

	done     chan struct{}
	doneOnce sync.Once
}

// NewBridge creates a Bridge.
func NewBridge() *Bridge {
	return &Bridge{
		updates:   make(chan chatsync.Update, 64),
		snapshots: make(chan directory.Snapshot, 1),
		badges:    make(chan string, 1),
		done:      make(chan struct{}),
	}
}

// OnUpdate is a chatsync.Options.OnUpdate callback. It blocks while the
// program is behind, and drops updates once the bridge is closed.
func (b *Bridge) OnUpdate(u chatsync.Update) {
	select {
	case b.updates <- u:
	case <-b.done:
	}
}

// OnDirectory is a directory.Options.OnChange callback.
func (b *Bridge) OnDirectory(s directory.Snapshot) {
	replaceLatest(b.snapshots, s)
}

// OnBadge is a directory.BadgeOptions.OnChange callback.
func (b *Bridge) OnBadge(_ int, label string) {
	replaceLatest(b.badges, label)
}

// Close releases blocked senders. Safe to call more than once.
func (b *Bridge) Close() {
	b.doneOnce.Do(func() { close(b.done) })
}

func replaceLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (b *Bridge) waitUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-b.updates:
			return syncUpdateMsg{update: u}
		case <-b.done:
			return nil
		}
	}
}

func (b *Bridge) waitDirectory() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-b.snapshots:
			return directoryMsg{snapshot: s}
		case <-b.done:
			return nil
		}
	}
}

func (b *Bridge) waitBadge() tea.Cmd {
	return func() tea.Msg {
		select {
		case label := <-b.badges:
			return badgeMsg{label: label}
		case <-b.done:
			return nil
		}
	}
}

package chattui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/andertben/skillspot-chat/internal/directory"
	"github.com/andertben/skillspot-chat/internal/models"
)

const previewWidth = 48

type openThreadMsg struct {
	threadID string
}

// ThreadList renders the directory of the signed-in user's threads.
type ThreadList struct {
	styles   Styles
	now      func() time.Time
	snapshot directory.Snapshot
	selected int
	top      int
	width    int
	height   int
}

// NewThreadList creates the list screen.
func NewThreadList(styles Styles) *ThreadList {
	return &ThreadList{styles: styles, now: time.Now}
}

// SetSize lays the list out for a width x height body.
func (l *ThreadList) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.clampSelection()
}

// SetSnapshot replaces the rendered directory. The selection follows the
// previously selected thread when it is still present.
func (l *ThreadList) SetSnapshot(s directory.Snapshot) {
	current := l.SelectedID()
	l.snapshot = s
	l.selected = 0
	for i, row := range s.Summaries {
		if row.ThreadID == current {
			l.selected = i
			break
		}
	}
	l.clampSelection()
}

// SelectedID returns the highlighted thread, or "".
func (l *ThreadList) SelectedID() string {
	if l.selected < 0 || l.selected >= len(l.snapshot.Summaries) {
		return ""
	}
	return l.snapshot.Summaries[l.selected].ThreadID
}

// Update handles navigation keys.
func (l *ThreadList) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch key.String() {
	case "up", "k":
		l.selected--
	case "down", "j":
		l.selected++
	case "home", "g":
		l.selected = 0
	case "end", "G":
		l.selected = len(l.snapshot.Summaries) - 1
	case "enter":
		if id := l.SelectedID(); id != "" {
			return func() tea.Msg { return openThreadMsg{threadID: id} }
		}
		return nil
	default:
		return nil
	}
	l.clampSelection()
	return nil
}

func (l *ThreadList) rowsVisible() int {
	// Each row renders as two lines.
	return maxInt(1, (l.height-2)/2)
}

func (l *ThreadList) clampSelection() {
	n := len(l.snapshot.Summaries)
	if l.selected >= n {
		l.selected = n - 1
	}
	if l.selected < 0 {
		l.selected = 0
	}
	visible := l.rowsVisible()
	if l.selected < l.top {
		l.top = l.selected
	}
	if l.selected >= l.top+visible {
		l.top = l.selected - visible + 1
	}
	if l.top < 0 {
		l.top = 0
	}
}

// Render draws the list.
func (l *ThreadList) Render() string {
	switch l.snapshot.State {
	case directory.StateUnauthenticated:
		return l.styles.Muted.Render("Bitte anmelden, um Nachrichten zu sehen.")
	case directory.StateAuthenticated:
		return l.styles.Muted.Render("Lade Unterhaltungen…")
	}

	var b strings.Builder
	if l.snapshot.Err != nil {
		b.WriteString(l.styles.Error.Render("Aktualisierung fehlgeschlagen: " + l.snapshot.Err.Error()))
		b.WriteString("\n")
	}
	rows := l.snapshot.Summaries
	if len(rows) == 0 {
		b.WriteString(l.styles.Muted.Render("Keine Unterhaltungen"))
		return b.String()
	}

	now := l.now()
	end := minInt(len(rows), l.top+l.rowsVisible())
	for i := l.top; i < end; i++ {
		b.WriteString(l.renderRow(rows[i], i == l.selected, now))
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (l *ThreadList) renderRow(row models.ThreadSummary, selected bool, now time.Time) string {
	title := row.Title()
	if row.CounterpartName != "" {
		title = fmt.Sprintf("%s · %s", row.CounterpartName, title)
	}
	cursor := "  "
	titleStyle := l.styles.Other
	if selected {
		cursor = "> "
		titleStyle = l.styles.Selected
	}
	line := cursor + titleStyle.Render(title)
	if badge := directory.FormatBadge(row.UnreadCount, directory.DefaultBadgeCap); badge != "" {
		line += " " + l.styles.Badge.Render("("+badge+")")
	}
	if when := directory.RelativeTime(row.LastMessageAt, now); when != "" {
		line += "  " + l.styles.Subtitle.Render(when)
	}
	preview := "  " + l.styles.Muted.Render(directory.Preview(row, previewWidth))
	return lipgloss.JoinVertical(lipgloss.Left, line, preview)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

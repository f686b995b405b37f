package chattui

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/andertben/skillspot-chat/internal/chatsync"
	"github.com/andertben/skillspot-chat/internal/models"
)

const smoothScrollFrame = 16 * time.Millisecond

// Syncer is the part of chatsync.Synchronizer the conversation screen drives.
// Calls are issued from tea.Cmd goroutines, never from Update.
type Syncer interface {
	Send(text string) error
	SetInput(text string) error
	ReportScroll(pos chatsync.ScrollPosition) error
	Retry() error
}

type scrollStepMsg struct {
	gen int
}

type syncErrMsg struct {
	op  string
	err error
	// text is the rejected composer text for op "send".
	text string
}

// Conversation renders one open thread: history in a viewport, composer below.
type Conversation struct {
	sync   Syncer
	styles Styles

	view     chatsync.View
	viewport viewport.Model
	input    textinput.Model
	notice   string

	width  int
	height int

	// animGen invalidates pending smooth-scroll frames.
	animGen   int
	animating bool
	restored  bool
}

// NewConversation creates the screen for threadID.
func NewConversation(threadID string, sync Syncer, styles Styles) *Conversation {
	input := textinput.New()
	input.Placeholder = "Nachricht schreiben…"
	input.CharLimit = models.MaxMessageLength
	input.Prompt = "> "
	input.Focus()

	return &Conversation{
		sync:     sync,
		styles:   styles,
		view:     chatsync.View{ThreadID: threadID, Loading: true, AutoScroll: true},
		viewport: viewport.New(0, 0),
		input:    input,
	}
}

// ThreadID returns the open thread.
func (c *Conversation) ThreadID() string {
	return c.view.ThreadID
}

// State returns the last applied synchronizer view.
func (c *Conversation) State() chatsync.View {
	return c.view
}

func (c *Conversation) Init() tea.Cmd {
	return textinput.Blink
}

// SetSize lays out the viewport for a width x height body.
func (c *Conversation) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.input.Width = maxInt(10, width-4)
	c.viewport.Width = width
	c.viewport.Height = maxInt(1, height-c.chromeHeight())
	c.refresh()
}

func (c *Conversation) chromeHeight() int {
	// header, subtitle, status line, bordered input (3 rows)
	return 6
}

// Update handles messages for the conversation screen.
func (c *Conversation) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case syncUpdateMsg:
		if msg.update.View.ThreadID != c.view.ThreadID {
			return nil
		}
		return c.apply(msg.update)
	case scrollStepMsg:
		return c.step(msg.gen)
	case syncErrMsg:
		c.notice = syncErrorText(msg)
		if msg.text != "" && c.input.Value() == "" {
			c.input.SetValue(msg.text)
			c.input.CursorEnd()
		}
		return nil
	case tea.MouseMsg:
		before := c.viewport.YOffset
		var cmd tea.Cmd
		c.viewport, cmd = c.viewport.Update(msg)
		if c.viewport.YOffset != before {
			c.stopAnimation()
			return tea.Batch(cmd, c.reportScroll())
		}
		return cmd
	case tea.KeyMsg:
		return c.handleKey(msg)
	}
	return nil
}

func (c *Conversation) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		return c.submit()
	case "ctrl+r":
		if c.view.Err != nil && c.view.Err.Retryable() {
			c.notice = ""
			return c.retry()
		}
		return nil
	case "up", "ctrl+p":
		return c.scrollBy(-1)
	case "down", "ctrl+n":
		return c.scrollBy(1)
	case "pgup":
		return c.scrollBy(-maxInt(1, c.viewport.Height/2))
	case "pgdown":
		return c.scrollBy(maxInt(1, c.viewport.Height/2))
	case "end":
		c.stopAnimation()
		c.viewport.GotoBottom()
		return c.reportScroll()
	}

	before := c.input.Value()
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	if value := c.input.Value(); value != before {
		return tea.Batch(cmd, c.setInput(value))
	}
	return cmd
}

func (c *Conversation) submit() tea.Cmd {
	text := c.input.Value()
	if strings.TrimSpace(text) == "" || c.view.Sending {
		return nil
	}
	c.notice = ""
	c.input.SetValue("")
	s := c.sync
	return func() tea.Msg {
		if err := s.Send(text); err != nil {
			return syncErrMsg{op: "send", err: err, text: text}
		}
		return nil
	}
}

func (c *Conversation) retry() tea.Cmd {
	s := c.sync
	return func() tea.Msg {
		if err := s.Retry(); err != nil {
			return syncErrMsg{op: "retry", err: err}
		}
		return nil
	}
}

func (c *Conversation) setInput(value string) tea.Cmd {
	s := c.sync
	return func() tea.Msg {
		if err := s.SetInput(value); err != nil && !errors.Is(err, chatsync.ErrClosed) {
			return syncErrMsg{op: "input", err: err}
		}
		return nil
	}
}

func (c *Conversation) scrollBy(delta int) tea.Cmd {
	c.stopAnimation()
	c.viewport.SetYOffset(c.viewport.YOffset + delta)
	return c.reportScroll()
}

func (c *Conversation) position() chatsync.ScrollPosition {
	return chatsync.ScrollPosition{
		Offset:         c.viewport.YOffset,
		ContentHeight:  c.viewport.TotalLineCount(),
		ViewportHeight: c.viewport.Height,
	}
}

func (c *Conversation) reportScroll() tea.Cmd {
	s := c.sync
	pos := c.position()
	return func() tea.Msg {
		if err := s.ReportScroll(pos); err != nil && !errors.Is(err, chatsync.ErrClosed) {
			return syncErrMsg{op: "scroll", err: err}
		}
		return nil
	}
}

func (c *Conversation) apply(u chatsync.Update) tea.Cmd {
	c.view = u.View
	restore := false
	switch u.Reason {
	case chatsync.ReasonLoading:
		// The first loading update carries the restored draft.
		restore = !c.restored
		c.restored = true
	case chatsync.ReasonSendFailed:
		restore = true
	}
	if restore && c.input.Value() != u.View.Input {
		c.input.SetValue(u.View.Input)
		c.input.CursorEnd()
	}
	c.refresh()

	switch u.Scroll {
	case chatsync.ScrollInstant:
		c.stopAnimation()
		c.viewport.GotoBottom()
	case chatsync.ScrollSmooth:
		return c.startAnimation()
	}
	return nil
}

func (c *Conversation) startAnimation() tea.Cmd {
	c.animGen++
	c.animating = true
	return scrollFrame(c.animGen)
}

func (c *Conversation) stopAnimation() {
	if c.animating {
		c.animGen++
		c.animating = false
	}
}

func scrollFrame(gen int) tea.Cmd {
	return tea.Tick(smoothScrollFrame, func(time.Time) tea.Msg {
		return scrollStepMsg{gen: gen}
	})
}

// step advances a smooth scroll by a third of the remaining distance.
func (c *Conversation) step(gen int) tea.Cmd {
	if gen != c.animGen || !c.animating {
		return nil
	}
	bottom := maxInt(0, c.viewport.TotalLineCount()-c.viewport.Height)
	remaining := bottom - c.viewport.YOffset
	if remaining <= 0 {
		c.animating = false
		return nil
	}
	c.viewport.SetYOffset(c.viewport.YOffset + maxInt(1, remaining/3))
	if c.viewport.YOffset >= bottom {
		c.animating = false
		return nil
	}
	return scrollFrame(gen)
}

func (c *Conversation) refresh() {
	offset := c.viewport.YOffset
	c.viewport.SetContent(c.renderMessages())
	c.viewport.SetYOffset(offset)
}

func (c *Conversation) renderMessages() string {
	if c.view.Loading && len(c.view.Messages) == 0 {
		return c.styles.Muted.Render("Lade Nachrichten…")
	}
	if len(c.view.Messages) == 0 {
		return c.styles.Muted.Render("Noch keine Nachrichten")
	}
	width := c.viewport.Width
	if width <= 0 {
		width = 80
	}
	bubbleWidth := maxInt(10, width*3/4)

	lines := make([]string, 0, len(c.view.Messages))
	for _, msg := range c.view.Messages {
		lines = append(lines, c.renderMessage(msg, width, bubbleWidth))
	}
	return strings.Join(lines, "\n")
}

func (c *Conversation) renderMessage(msg models.Message, width, bubbleWidth int) string {
	stamp := ""
	if !msg.Timestamp.IsZero() {
		stamp = msg.Timestamp.Local().Format("02.01. 15:04")
	}
	if c.view.IsOwn(msg) {
		body := c.styles.Own.Width(bubbleWidth).Align(lipgloss.Right).Render(msg.Text)
		meta := c.styles.Subtitle.Width(bubbleWidth).Align(lipgloss.Right).Render(stamp)
		block := lipgloss.JoinVertical(lipgloss.Right, body, meta)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, block)
	}
	body := c.styles.Other.Width(bubbleWidth).Render(msg.Text)
	meta := c.styles.Subtitle.Render(stamp)
	return lipgloss.JoinVertical(lipgloss.Left, body, meta)
}

// Render draws the screen.
func (c *Conversation) Render() string {
	header := c.styles.Header.Render(c.view.Header())
	subtitle := c.styles.Subtitle.Render(c.view.DisplayTitle())

	status := ""
	switch {
	case c.view.Err != nil:
		status = c.styles.Error.Render(c.view.Err.Message)
		if c.view.Err.Retryable() {
			status += c.styles.Muted.Render("  (ctrl+r: erneut versuchen)")
		}
	case c.view.SendErr != nil:
		status = c.styles.Error.Render(c.view.SendErr.Message)
	case c.view.Sending:
		status = c.styles.Muted.Render("Sende…")
	case c.notice != "":
		status = c.styles.Muted.Render(c.notice)
	}

	composer := c.styles.InputLine.Width(maxInt(10, c.width)).Render(c.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, c.viewport.View(), status, composer)
}

func syncErrorText(msg syncErrMsg) string {
	switch {
	case errors.Is(msg.err, chatsync.ErrSendInFlight):
		return "Nachricht wird bereits gesendet"
	case errors.Is(msg.err, chatsync.ErrEmptyMessage):
		return ""
	case errors.Is(msg.err, chatsync.ErrClosed), errors.Is(msg.err, chatsync.ErrNotOpen):
		return "Unterhaltung geschlossen"
	default:
		return msg.op + ": " + msg.err.Error()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

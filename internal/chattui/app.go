// Package chattui is the terminal front end: a thread list and a
// conversation screen driven by chatsync and directory callbacks.
package chattui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type screen int

const (
	screenList screen = iota
	screenConversation
)

// Thread is an opened conversation.
type Thread interface {
	Syncer
	Close() error
}

// Config wires the program to the rest of the client.
type Config struct {
	Bridge *Bridge
	// Open starts synchronizing threadID. Its OnUpdate must feed Bridge.
	Open func(ctx context.Context, threadID string) (Thread, error)
	// Navigate is called with a route whenever the screen changes.
	Navigate func(path string)
	// InitialThread opens directly into a conversation.
	InitialThread string
	Styles        *Styles
}

type threadOpenedMsg struct {
	threadID string
	thread   Thread
	err      error
}

type threadClosedMsg struct{}

// Model is the root bubbletea model.
type Model struct {
	ctx    context.Context
	cfg    Config
	styles Styles

	screen screen
	list   *ThreadList
	conv   *Conversation
	thread Thread

	badge  string
	status string
	width  int
	height int
}

// NewModel validates cfg and creates the root model.
func NewModel(ctx context.Context, cfg Config) (*Model, error) {
	if cfg.Bridge == nil {
		return nil, errors.New("bridge is required")
	}
	if cfg.Open == nil {
		return nil, errors.New("open func is required")
	}
	styles := DefaultStyles()
	if cfg.Styles != nil {
		styles = *cfg.Styles
	}
	return &Model{
		ctx:    ctx,
		cfg:    cfg,
		styles: styles,
		list:   NewThreadList(styles),
	}, nil
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, cfg Config) error {
	model, err := NewModel(ctx, cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Close stops the open thread and releases the bridge.
func (m *Model) Close() {
	m.cfg.Bridge.Close()
	if m.thread != nil {
		_ = m.thread.Close()
		m.thread = nil
	}
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.cfg.Bridge.waitUpdate(),
		m.cfg.Bridge.waitDirectory(),
		m.cfg.Bridge.waitBadge(),
	}
	if m.cfg.InitialThread != "" {
		cmds = append(cmds, m.openThread(m.cfg.InitialThread))
	} else {
		m.navigate("/chat")
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil
	case syncUpdateMsg:
		var cmd tea.Cmd
		if m.conv != nil {
			cmd = m.conv.Update(msg)
		}
		return m, tea.Batch(cmd, m.cfg.Bridge.waitUpdate())
	case directoryMsg:
		m.list.SetSnapshot(msg.snapshot)
		return m, m.cfg.Bridge.waitDirectory()
	case badgeMsg:
		m.badge = msg.label
		return m, m.cfg.Bridge.waitBadge()
	case openThreadMsg:
		return m, m.openThread(msg.threadID)
	case threadOpenedMsg:
		return m, m.handleOpened(msg)
	case threadClosedMsg:
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.screen == screenList {
				return m, tea.Quit
			}
		case "esc":
			if m.screen == screenConversation {
				return m, m.closeThread()
			}
			return m, tea.Quit
		}
	}

	if m.screen == screenConversation && m.conv != nil {
		return m, m.conv.Update(msg)
	}
	return m, m.list.Update(msg)
}

func (m *Model) View() string {
	header := m.renderHeader()
	footer := m.renderFooter()
	var body string
	if m.screen == screenConversation && m.conv != nil {
		body = m.conv.Render()
	} else {
		body = m.list.Render()
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) layout() {
	bodyHeight := maxInt(1, m.height-2)
	m.list.SetSize(m.width, bodyHeight)
	if m.conv != nil {
		m.conv.SetSize(m.width, bodyHeight)
	}
}

func (m *Model) renderHeader() string {
	title := m.styles.Header.Render("skillchat")
	if m.badge != "" {
		title += " " + m.styles.Badge.Render("["+m.badge+"]")
	}
	return title
}

func (m *Model) renderFooter() string {
	help := "↑/↓ auswählen · enter öffnen · q beenden"
	if m.screen == screenConversation {
		help = "enter senden · ↑/↓ pgup/pgdn scrollen · esc zurück · ctrl+c beenden"
	}
	if m.status != "" {
		help = m.status + "  " + help
	}
	return m.styles.Footer.Render(help)
}

func (m *Model) navigate(path string) {
	if m.cfg.Navigate != nil {
		m.cfg.Navigate(path)
	}
}

func (m *Model) openThread(threadID string) tea.Cmd {
	ctx := m.ctx
	open := m.cfg.Open
	return func() tea.Msg {
		thread, err := open(ctx, threadID)
		return threadOpenedMsg{threadID: threadID, thread: thread, err: err}
	}
}

func (m *Model) handleOpened(msg threadOpenedMsg) tea.Cmd {
	if msg.err != nil {
		m.status = m.styles.Error.Render("Unterhaltung konnte nicht geöffnet werden: " + msg.err.Error())
		return nil
	}
	previous := m.thread
	m.status = ""
	m.thread = msg.thread
	m.conv = NewConversation(msg.threadID, msg.thread, m.styles)
	m.screen = screenConversation
	m.layout()
	m.navigate("/chat/" + msg.threadID)

	cmd := m.conv.Init()
	if previous != nil {
		return tea.Batch(cmd, closeCmd(previous))
	}
	return cmd
}

func (m *Model) closeThread() tea.Cmd {
	thread := m.thread
	m.thread = nil
	m.conv = nil
	m.screen = screenList
	m.navigate("/chat")
	if thread == nil {
		return nil
	}
	return closeCmd(thread)
}

func closeCmd(thread Thread) tea.Cmd {
	return func() tea.Msg {
		_ = thread.Close()
		return threadClosedMsg{}
	}
}

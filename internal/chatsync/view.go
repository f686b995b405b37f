package chatsync

import (
	"strings"

	"github.com/andertben/skillspot-chat/internal/models"
)

// User-facing error texts.
const (
	MessageAuthError = "Kein Zugriff oder bitte anmelden"
	MessageLoadError = "Fehler beim Laden der Nachrichten"
	MessageSendError = "Fehler beim Senden der Nachricht"
)

// ErrorKind classifies a view error.
type ErrorKind string

const (
	ErrorAuth ErrorKind = "auth"
	ErrorLoad ErrorKind = "load"
	ErrorSend ErrorKind = "send"
)

// ViewError is an error shown to the user.
type ViewError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ViewError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ViewError) Unwrap() error {
	return e.Err
}

// Retryable reports whether Retry may clear the error.
func (e *ViewError) Retryable() bool {
	return e != nil && e.Kind != ErrorSend
}

// View is the renderable state of one open conversation.
type View struct {
	ThreadID string
	Messages []models.Message

	Loading bool
	Sending bool

	// Err is a load or auth failure. Messages stay visible.
	Err *ViewError
	// SendErr is the last send failure, cleared by the next send.
	SendErr *ViewError

	// Input is the composer text.
	Input string

	Title       string
	Counterpart string

	AutoScroll bool

	// Subject is the signed-in sender ID, used by IsOwn.
	Subject string
}

// IsOwn reports whether msg was sent by the signed-in user.
func (v View) IsOwn(msg models.Message) bool {
	return v.Subject != "" && msg.SenderID == v.Subject
}

// Header returns the conversation heading: the counterpart's name when known.
func (v View) Header() string {
	if strings.TrimSpace(v.Counterpart) != "" {
		return v.Counterpart
	}
	return "Thread ID: " + v.ThreadID
}

// DisplayTitle returns the service title, or a generic label.
func (v View) DisplayTitle() string {
	if strings.TrimSpace(v.Title) != "" {
		return v.Title
	}
	return "Anfrage"
}

// CanSend reports whether the composer may submit.
func (v View) CanSend() bool {
	return !v.Sending && strings.TrimSpace(v.Input) != ""
}

func (v View) clone() View {
	out := v
	out.Messages = models.CloneMessages(v.Messages)
	return out
}

// Reason says why an Update was emitted.
type Reason string

const (
	ReasonLoading    Reason = "loading"
	ReasonInitial    Reason = "initial"
	ReasonThread     Reason = "thread"
	ReasonPoll       Reason = "poll"
	ReasonSend       Reason = "send"
	ReasonSendFailed Reason = "send_failed"
	ReasonInput      Reason = "input"
	ReasonError      Reason = "error"
)

// Update is delivered to Options.OnUpdate after every state change.
type Update struct {
	View   View
	Reason Reason
	Scroll ScrollAction
}

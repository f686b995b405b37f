// Package models defines the chat domain types shared across skillchat.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// timestampLayouts are accepted when decoding wire timestamps. The backend
// emits RFC 3339; zone-less local date-times are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an ISO-8601 timestamp as sent by the chat backend.
// The boolean is false when the value is empty or not a recognised layout.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

// Thread is the read-only client projection of a conversation between the
// requester and the provider of one service listing.
type Thread struct {
	ThreadID        string    `json:"threadId"`
	ServiceID       string    `json:"dienstleistungId"`
	ServiceTitle    string    `json:"dienstleistungTitle,omitempty"`
	CounterpartName string    `json:"anbieterName,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type threadWire struct {
	ThreadID        string `json:"threadId"`
	ServiceID       string `json:"dienstleistungId"`
	ServiceTitle    string `json:"dienstleistungTitle,omitempty"`
	CounterpartName string `json:"anbieterName,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
	UpdatedAt       string `json:"updatedAt,omitempty"`
}

// UnmarshalJSON decodes a thread, tolerating unparsable timestamps.
func (t *Thread) UnmarshalJSON(b []byte) error {
	var w threadWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*t = Thread{
		ThreadID:        w.ThreadID,
		ServiceID:       w.ServiceID,
		ServiceTitle:    w.ServiceTitle,
		CounterpartName: w.CounterpartName,
	}
	t.CreatedAt, _ = ParseTimestamp(w.CreatedAt)
	t.UpdatedAt, _ = ParseTimestamp(w.UpdatedAt)
	return nil
}

// MarshalJSON encodes the thread in wire shape.
func (t Thread) MarshalJSON() ([]byte, error) {
	return json.Marshal(threadWire{
		ThreadID:        t.ThreadID,
		ServiceID:       t.ServiceID,
		ServiceTitle:    t.ServiceTitle,
		CounterpartName: t.CounterpartName,
		CreatedAt:       formatTimestamp(t.CreatedAt),
		UpdatedAt:       formatTimestamp(t.UpdatedAt),
	})
}

// ThreadSummary is one row of the thread directory. It is refreshed wholesale
// from the server and never computed locally.
type ThreadSummary struct {
	ThreadID        string
	ServiceTitle    string
	CounterpartName string
	LastMessageText string
	LastMessageAt   time.Time
	UnreadCount     int
}

type threadSummaryWire struct {
	ThreadID        string `json:"threadId"`
	ServiceTitle    string `json:"dienstleistungTitle,omitempty"`
	CounterpartName string `json:"anbieterName,omitempty"`
	LastMessageText string `json:"lastMessageText,omitempty"`
	LastMessageAt   string `json:"lastMessageAt,omitempty"`
	UnreadCount     int    `json:"unreadCount"`
}

// UnmarshalJSON decodes a summary; negative unread counts clamp to zero.
func (s *ThreadSummary) UnmarshalJSON(b []byte) error {
	var w threadSummaryWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = ThreadSummary{
		ThreadID:        w.ThreadID,
		ServiceTitle:    w.ServiceTitle,
		CounterpartName: w.CounterpartName,
		LastMessageText: w.LastMessageText,
		UnreadCount:     w.UnreadCount,
	}
	if s.UnreadCount < 0 {
		s.UnreadCount = 0
	}
	s.LastMessageAt, _ = ParseTimestamp(w.LastMessageAt)
	return nil
}

// MarshalJSON encodes the summary in wire shape.
func (s ThreadSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(threadSummaryWire{
		ThreadID:        s.ThreadID,
		ServiceTitle:    s.ServiceTitle,
		CounterpartName: s.CounterpartName,
		LastMessageText: s.LastMessageText,
		LastMessageAt:   formatTimestamp(s.LastMessageAt),
		UnreadCount:     s.UnreadCount,
	})
}

// Title returns the display title for the summary.
func (s ThreadSummary) Title() string {
	if strings.TrimSpace(s.ServiceTitle) != "" {
		return s.ServiceTitle
	}
	return "Anfrage"
}

// Message is one immutable chat message. IDs are server-assigned and unique
// within a thread.
type Message struct {
	ID        string
	ThreadID  string
	SenderID  string
	Text      string
	Timestamp time.Time
}

// messageWire accepts both the client shape and the server DTO field names
// (messageId, senderSub, createdAt).
type messageWire struct {
	ID        string `json:"id,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	ThreadID  string `json:"threadId"`
	SenderID  string `json:"senderId,omitempty"`
	SenderSub string `json:"senderSub,omitempty"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// UnmarshalJSON maps the server DTO onto Message. Client field names win when
// both are present.
func (m *Message) UnmarshalJSON(b []byte) error {
	var w messageWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = Message{
		ID:       firstNonEmpty(w.ID, w.MessageID),
		ThreadID: w.ThreadID,
		SenderID: firstNonEmpty(w.SenderID, w.SenderSub),
		Text:     w.Text,
	}
	m.Timestamp, _ = ParseTimestamp(firstNonEmpty(w.Timestamp, w.CreatedAt))
	return nil
}

// MarshalJSON encodes the message in client shape.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageWire{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Timestamp: formatTimestamp(m.Timestamp),
	})
}

// Equal reports structural equality.
func (m Message) Equal(other Message) bool {
	return m.ID == other.ID &&
		m.ThreadID == other.ThreadID &&
		m.SenderID == other.SenderID &&
		m.Text == other.Text &&
		m.Timestamp.Equal(other.Timestamp)
}

// MessagesEqual reports whether two message lists are structurally equal,
// element by element and in order.
func MessagesEqual(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// CloneMessages returns a copy of msgs that shares no backing array.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// CreateThreadRequest is the body of POST /chat/threads.
type CreateThreadRequest struct {
	ServiceID string `json:"dienstleistungId"`
}

// SendMessageRequest is the body of POST /chat/threads/{id}/messages.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// UnreadCount is the response of GET /chat/unread-count.
type UnreadCount struct {
	UnreadCount int `json:"unreadCount"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

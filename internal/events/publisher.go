// Package events is the in-process notification hub. Sessions, the
// synchronizer and the directory announce changes here; subscribers re-fetch
// whatever they display.
package events

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andertben/skillspot-chat/internal/logging"
	"github.com/andertben/skillspot-chat/internal/models"
)

var (
	ErrNilHandler            = errors.New("handler cannot be nil")
	ErrInvalidSubscriptionID = errors.New("subscription ID is required")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
)

// EventHandler runs synchronously on the publishing goroutine and must not
// block.
type EventHandler func(event *models.Event)

// Filter selects events. Zero fields match everything.
type Filter struct {
	EventTypes []models.EventType
	ThreadID   string
}

// Matches reports whether event passes the filter.
func (f *Filter) Matches(event *models.Event) bool {
	if event == nil {
		return false
	}
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, event.Type) {
		return false
	}
	return f.ThreadID == "" || f.ThreadID == event.ThreadID
}

// Publisher is what producers and consumers of hub events depend on.
type Publisher interface {
	Publish(ctx context.Context, event *models.Event)
	Subscribe(filter Filter, handler EventHandler) (string, error)
	Unsubscribe(id string) error
}

type subscriber struct {
	id      string
	filter  Filter
	handler EventHandler
}

// Hub delivers events to subscribers in the order they subscribed.
type Hub struct {
	mu     sync.RWMutex
	subs   []subscriber
	logger zerolog.Logger
	now    func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		logger: logging.Component("events"),
		now:    time.Now,
	}
}

// Publish stamps event with an ID and timestamp when missing and hands it
// to every matching subscriber. Handlers run without the hub lock held, so
// they may subscribe or unsubscribe. A panicking handler is logged.
func (h *Hub) Publish(_ context.Context, event *models.Event) {
	if event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = h.now().UTC()
	}

	h.mu.RLock()
	targets := make([]subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.filter.Matches(event) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		h.deliver(sub, event)
	}
}

// Notify publishes a bare event of type t.
func (h *Hub) Notify(ctx context.Context, t models.EventType) {
	h.Publish(ctx, &models.Event{Type: t})
}

func (h *Hub) deliver(sub subscriber, event *models.Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Interface("panic", r).
				Str("subscription_id", sub.id).
				Str("event_type", string(event.Type)).
				Msg("event handler panicked")
		}
	}()
	sub.handler(event)
}

func (h *Hub) Subscribe(filter Filter, handler EventHandler) (string, error) {
	if handler == nil {
		return "", ErrNilHandler
	}
	id := uuid.NewString()

	h.mu.Lock()
	h.subs = append(h.subs, subscriber{id: id, filter: filter, handler: handler})
	h.mu.Unlock()
	return id, nil
}

func (h *Hub) Unsubscribe(id string) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	i := slices.IndexFunc(h.subs, func(s subscriber) bool { return s.id == id })
	if i < 0 {
		return ErrSubscriptionNotFound
	}
	h.subs = slices.Delete(h.subs, i, i+1)
	return nil
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	h.subs = nil
	h.mu.Unlock()
}

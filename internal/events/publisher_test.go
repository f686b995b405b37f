package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andertben/skillspot-chat/internal/models"
)

func TestFilterMatches(t *testing.T) {
	read := &models.Event{Type: models.EventTypeThreadRead, ThreadID: "t1"}
	sessionTypes := []models.EventType{models.EventTypeSessionLogin, models.EventTypeSessionLogout}

	tests := []struct {
		name   string
		filter Filter
		event  *models.Event
		want   bool
	}{
		{"zero filter", Filter{}, read, true},
		{"nil event", Filter{}, nil, false},
		{"type listed", Filter{EventTypes: sessionTypes}, &models.Event{Type: models.EventTypeSessionLogout}, true},
		{"type not listed", Filter{EventTypes: sessionTypes}, read, false},
		{"same thread", Filter{ThreadID: "t1"}, read, true},
		{"other thread", Filter{ThreadID: "t2"}, read, false},
		{
			name:   "type and thread both required",
			filter: Filter{EventTypes: []models.EventType{models.EventTypeMessageSent}, ThreadID: "t1"},
			event:  read,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.filter.Matches(tt.event))
		})
	}
}

func TestHubSubscriptions(t *testing.T) {
	hub := NewHub()

	id, err := hub.Subscribe(Filter{}, func(*models.Event) {})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, 1, hub.SubscriberCount())

	_, err = hub.Subscribe(Filter{}, nil)
	require.ErrorIs(t, err, ErrNilHandler)

	require.NoError(t, hub.Unsubscribe(id))
	require.Zero(t, hub.SubscriberCount())
	require.ErrorIs(t, hub.Unsubscribe(id), ErrSubscriptionNotFound)
	require.ErrorIs(t, hub.Unsubscribe(""), ErrInvalidSubscriptionID)

	_, _ = hub.Subscribe(Filter{}, func(*models.Event) {})
	_, _ = hub.Subscribe(Filter{}, func(*models.Event) {})
	hub.Close()
	require.Zero(t, hub.SubscriberCount())
}

func TestHubDeliversInSubscriptionOrder(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	var got []string
	record := func(name string) EventHandler {
		return func(e *models.Event) { got = append(got, name+":"+string(e.Type)) }
	}
	_, _ = hub.Subscribe(Filter{}, record("a"))
	_, _ = hub.Subscribe(Filter{EventTypes: []models.EventType{models.EventTypeUnreadRefresh}}, record("b"))
	_, _ = hub.Subscribe(Filter{}, record("c"))

	hub.Notify(ctx, models.EventTypeUnreadRefresh)
	hub.Notify(ctx, models.EventTypeSessionLogin)

	require.Equal(t, []string{
		"a:unread.refresh", "b:unread.refresh", "c:unread.refresh",
		"a:session.login", "c:session.login",
	}, got)
}

func TestHubStampsEvents(t *testing.T) {
	hub := NewHub()

	var received []*models.Event
	_, _ = hub.Subscribe(Filter{}, func(e *models.Event) { received = append(received, e) })

	hub.Notify(context.Background(), models.EventTypeUnreadRefresh)
	hub.Publish(context.Background(), nil)

	require.Len(t, received, 1)
	require.NotEmpty(t, received[0].ID)
	require.False(t, received[0].Timestamp.IsZero())
}

func TestHubSurvivesHandlerPanic(t *testing.T) {
	hub := NewHub()

	after := false
	_, _ = hub.Subscribe(Filter{}, func(*models.Event) { panic("boom") })
	_, _ = hub.Subscribe(Filter{}, func(*models.Event) { after = true })

	require.NotPanics(t, func() { hub.Notify(context.Background(), models.EventTypeUnreadRefresh) })
	require.True(t, after)
}

func TestHubHandlerMayUnsubscribeItself(t *testing.T) {
	hub := NewHub()

	var id string
	calls := 0
	id, _ = hub.Subscribe(Filter{}, func(*models.Event) {
		calls++
		_ = hub.Unsubscribe(id)
	})

	hub.Notify(context.Background(), models.EventTypeUnreadRefresh)
	hub.Notify(context.Background(), models.EventTypeUnreadRefresh)

	require.Equal(t, 1, calls)
	require.Zero(t, hub.SubscriberCount())
}

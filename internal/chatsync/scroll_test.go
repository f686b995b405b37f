package chatsync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScrollPositionDistance(t *testing.T) {
	require.Equal(t, 500, ScrollPosition{Offset: 0, ContentHeight: 1000, ViewportHeight: 500}.DistanceFromBottom())
	require.Equal(t, 0, ScrollPosition{Offset: 500, ContentHeight: 1000, ViewportHeight: 500}.DistanceFromBottom())
	require.Equal(t, 0, ScrollPosition{Offset: 0, ContentHeight: 100, ViewportHeight: 500}.DistanceFromBottom())
}

func TestScrollTrackerObserve(t *testing.T) {
	tests := []struct {
		name string
		pos  ScrollPosition
		want bool
	}{
		{"at bottom", ScrollPosition{Offset: 500, ContentHeight: 1000, ViewportHeight: 500}, true},
		{"within threshold", ScrollPosition{Offset: 470, ContentHeight: 1000, ViewportHeight: 500}, true},
		{"just past threshold", ScrollPosition{Offset: 469, ContentHeight: 1000, ViewportHeight: 500}, false},
		{"scrolled up 500", ScrollPosition{Offset: 0, ContentHeight: 1000, ViewportHeight: 500}, false},
		{"short content", ScrollPosition{Offset: 0, ContentHeight: 10, ViewportHeight: 500}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewScrollTracker(DefaultScrollThreshold)
			require.Equal(t, tt.want, tracker.Observe(tt.pos))
			require.Equal(t, tt.want, tracker.AutoScroll())
		})
	}
}

func TestScrollTrackerDecide(t *testing.T) {
	tracker := NewScrollTracker(-1)
	require.True(t, tracker.AutoScroll(), "auto-scroll starts enabled")
	require.Equal(t, DefaultScrollThreshold, NewScrollTracker(0).threshold)
	require.Equal(t, 12, NewScrollTracker(12).threshold)

	require.Equal(t, ScrollSmooth, tracker.Decide(ReasonInitial, 3))
	require.Equal(t, ScrollSmooth, tracker.Decide(ReasonPoll, 3))
	require.Equal(t, ScrollInstant, tracker.Decide(ReasonSend, 3))
	require.Equal(t, ScrollNone, tracker.Decide(ReasonInitial, 0))
	require.Equal(t, ScrollNone, tracker.Decide(ReasonInput, 3))

	tracker.Observe(ScrollPosition{Offset: 0, ContentHeight: 1000, ViewportHeight: 500})
	require.Equal(t, ScrollNone, tracker.Decide(ReasonPoll, 3))
	require.Equal(t, ScrollInstant, tracker.Decide(ReasonSend, 3))
	require.False(t, tracker.AutoScroll(), "a send leaves the flag unchanged")
}

func TestScrollActionString(t *testing.T) {
	require.Equal(t, "none", ScrollNone.String())
	require.Equal(t, "smooth", ScrollSmooth.String())
	require.Equal(t, "instant", ScrollInstant.String())
}

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPollFeedTicksAndCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := NewPollFeed(10 * time.Millisecond)

	ch, err := feed.Watch(ctx, "t1")
	require.NoError(t, err)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a tick")
	}

	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("feed channel not closed after cancel")
		}
	}
}

func TestPollFeedRequiresThread(t *testing.T) {
	_, err := NewPollFeed(0).Watch(context.Background(), "")
	require.Error(t, err)
	require.Equal(t, DefaultPollInterval, NewPollFeed(0).Interval)
}

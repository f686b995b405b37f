package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualFeedCoalesces(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := NewManualFeed()

	ch, err := feed.Watch(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "t1", <-feed.Watched())
	require.Equal(t, 1, feed.Watchers())

	feed.Trigger()
	feed.Trigger()
	<-ch
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}

	cancel()
	require.Eventually(t, func() bool { return feed.Watchers() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-ch
	require.False(t, open)
}

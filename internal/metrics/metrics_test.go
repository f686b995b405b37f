package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("messages", 200, time.Millisecond)
	m.PollTick()
	m.PollSkipped()
	m.StaleDrop()
	m.Update("poll")
	m.Send("ok")
	m.MarkRead("error")
	m.DirectoryRefresh("timer")
	require.Nil(t, m.Registry())
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.ObserveRequest("messages", 200, 20*time.Millisecond)
	m.ObserveRequest("messages", 200, 10*time.Millisecond)
	m.PollTick()
	m.StaleDrop()
	m.Send("ok")

	require.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("messages", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.pollTicks))
	require.Equal(t, 1.0, testutil.ToFloat64(m.staleDrops))
	require.Equal(t, 1.0, testutil.ToFloat64(m.sends.WithLabelValues("ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	require.True(t, strings.Contains(string(body), "skillchat_poll_ticks_total 1"))
}

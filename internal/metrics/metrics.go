// Package metrics exposes Prometheus counters for the chat client.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andertben/skillspot-chat/internal/logging"
)

const namespace = "skillchat"

// Metrics holds the client's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pollTicks       prometheus.Counter
	pollsSkipped    prometheus.Counter
	staleDrops      prometheus.Counter
	updates         *prometheus.CounterVec
	sends           *prometheus.CounterVec
	markReads       *prometheus.CounterVec
	dirRefreshes    *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Backend requests by operation and status code.",
		}, []string{"op", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Backend request latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		pollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "History refetches started by the feed.",
		}),
		pollsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_skipped_total",
			Help:      "Feed ticks skipped because the concurrent fetch limit was reached.",
		}),
		staleDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_fetches_dropped_total",
			Help:      "History fetch results discarded as out of order.",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_updates_total",
			Help:      "View updates emitted by reason.",
		}, []string{"reason"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Message sends by result.",
		}, []string{"result"}),
		markReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mark_read_total",
			Help:      "Thread read-marks by result.",
		}, []string{"result"}),
		dirRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_refreshes_total",
			Help:      "Thread directory refreshes by trigger.",
		}, []string{"trigger"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.pollTicks,
		m.pollsSkipped,
		m.staleDrops,
		m.updates,
		m.sends,
		m.markReads,
		m.dirRefreshes,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one backend round trip. Status 0 means the request
// never got a response.
func (m *Metrics) ObserveRequest(op string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(op).Observe(d.Seconds())
}

// PollTick counts a started history refetch.
func (m *Metrics) PollTick() {
	if m == nil {
		return
	}
	m.pollTicks.Inc()
}

// PollSkipped counts a feed tick dropped at the concurrency limit.
func (m *Metrics) PollSkipped() {
	if m == nil {
		return
	}
	m.pollsSkipped.Inc()
}

// StaleDrop counts a discarded out-of-order fetch result.
func (m *Metrics) StaleDrop() {
	if m == nil {
		return
	}
	m.staleDrops.Inc()
}

// Update counts an emitted view update.
func (m *Metrics) Update(reason string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(reason).Inc()
}

// Send counts a send attempt by result ("ok" or "error").
func (m *Metrics) Send(result string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(result).Inc()
}

// MarkRead counts a read-mark by result ("ok" or "error").
func (m *Metrics) MarkRead(result string) {
	if m == nil {
		return
	}
	m.markReads.WithLabelValues(result).Inc()
}

// DirectoryRefresh counts a directory refresh by trigger.
func (m *Metrics) DirectoryRefresh(trigger string) {
	if m == nil {
		return
	}
	m.dirRefreshes.WithLabelValues(trigger).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger := logging.Component("metrics")
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ABOUTME: Prometheus instrumentation for playback sessions
// ABOUTME: Counters for completions, watchdog timeouts and underruns plus an HTTP exporter
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the player's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	tracksStarted    prometheus.Counter
	completions      *prometheus.CounterVec
	watchdogTimeouts prometheus.Counter
	underruns        prometheus.Counter
	trackFailures    *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	sessionSeconds   prometheus.Histogram
}

// New creates collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tracksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nigamp",
			Name:      "tracks_started_total",
			Help:      "Playback sessions started.",
		}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nigamp",
			Name:      "completions_total",
			Help:      "Completion notifications by result code.",
		}, []string{"code"}),
		watchdogTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nigamp",
			Name:      "watchdog_timeouts_total",
			Help:      "Tracks advanced by the completion watchdog.",
		}),
		underruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nigamp",
			Name:      "underruns_total",
			Help:      "Device underruns recovered by the writer loop.",
		}),
		trackFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nigamp",
			Name:      "track_failures_total",
			Help:      "Tracks that could not be played, by stage.",
		}, []string{"stage"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nigamp",
			Name:      "queue_depth_samples",
			Help:      "Samples waiting in the engine queue.",
		}),
		sessionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nigamp",
			Name:      "session_seconds",
			Help:      "Time from session start to completion.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 240, 480, 960},
		}),
	}

	m.registry.MustRegister(
		m.tracksStarted,
		m.completions,
		m.watchdogTimeouts,
		m.underruns,
		m.trackFailures,
		m.queueDepth,
		m.sessionSeconds,
		prometheus.NewGoCollector(),
	)
	return m
}

// TrackStarted counts a new playback session
func (m *Metrics) TrackStarted() {
	if m == nil {
		return
	}
	m.tracksStarted.Inc()
}

// Completion records a completion result
func (m *Metrics) Completion(code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(code).Inc()
	m.sessionSeconds.Observe(elapsed.Seconds())
}

// WatchdogTimeout counts a forced advance
func (m *Metrics) WatchdogTimeout() {
	if m == nil {
		return
	}
	m.watchdogTimeouts.Inc()
}

// Underrun counts a recovered device underrun
func (m *Metrics) Underrun() {
	if m == nil {
		return
	}
	m.underruns.Inc()
}

// TrackFailed counts a track skipped at stage ("open", "device", "decode")
func (m *Metrics) TrackFailed(stage string) {
	if m == nil {
		return
	}
	m.trackFailures.WithLabelValues(stage).Inc()
}

// SetQueueDepth publishes the engine queue depth
func (m *Metrics) SetQueueDepth(samples int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(samples))
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("Metrics listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Package metrics exposes the agent's Prometheus metrics: cycle runs,
// handler outcomes, queue sizes and invariant violations.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aatumaykin/cryptopilot/internal/cycle"
	"github.com/aatumaykin/cryptopilot/internal/handlers"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

const DefaultNamespace = "cryptopilot"

type Metrics struct {
	registry      *prometheus.Registry
	cycleRuns     *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	actions       *prometheus.CounterVec
	violations    *prometheus.CounterVec
}

var (
	_ handlers.Observer = (*Metrics)(nil)
	_ cycle.Observer    = (*Metrics)(nil)
)

// New creates the collectors on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		cycleRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycle_runs_total",
				Help:      "Cycle runs by status",
			},
			[]string{"cycle", "status"},
		),
		cycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of cycle runs",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 900},
			},
			[]string{"cycle"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Processed items by handler and outcome",
			},
			[]string{"handler", "outcome"},
		),
		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invariant_violations_total",
				Help:      "Detected invariant violations",
			},
			[]string{"invariant"},
		),
	}

	reg.MustRegister(
		m.cycleRuns,
		m.cycleDuration,
		m.actions,
		m.violations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveCycle(name string, status cycle.Status, duration time.Duration) {
	m.cycleRuns.WithLabelValues(name, string(status)).Inc()
	if status != cycle.StatusSkipped {
		m.cycleDuration.WithLabelValues(name).Observe(duration.Seconds())
	}
}

func (m *Metrics) ObserveAction(handler string, outcome handlers.Outcome) {
	m.actions.WithLabelValues(handler, string(outcome)).Inc()
}

// InvariantViolated counts one violation; it fits tracker.OnViolation.
func (m *Metrics) InvariantViolated(invariant string) {
	m.violations.WithLabelValues(invariant).Inc()
}

// WatchState registers gauges that read queue sizes and the tracked tweet
// count on every scrape.
func (m *Metrics) WatchState(namespace string, q *schedule.Queues, t *tracker.TweetTracker) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	for name := range q.Stats() {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "queue_pending",
				Help:        "Pending items per queue",
				ConstLabels: prometheus.Labels{"queue": name},
			}, func() float64 { return float64(q.Stats()[name].Pending) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "queue_completed",
				Help:        "Completed items per queue",
				ConstLabels: prometheus.Labels{"queue": name},
			}, func() float64 { return float64(q.Stats()[name].Completed) }),
		)
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracked_tweets",
		Help:      "Tweets produced by the agent and known to the tracker",
	}, func() float64 { return float64(t.TweetCount()) }))
	t.OnViolation(m.InvariantViolated)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics until Shutdown.
type Server struct {
	srv    *http.Server
	logger *logger.Logger
}

// NewServer creates a metrics server on addr.
func NewServer(addr string, m *Metrics, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log.Component("metrics"),
	}
}

// Start listens in the background. Listen errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics server listening", logger.Field{Key: "addr", Value: s.srv.Addr})
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

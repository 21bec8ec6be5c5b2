// Package metrics exposes Prometheus instrumentation for the allocation
// pipeline:
//   - oneway_episodes_total                 – episodes processed
//   - oneway_allocation_steps_total{branch} – decision branches taken (hold|partial|all_in)
//   - oneway_solver_fallbacks_total         – bisection fallbacks (should stay at zero)
//   - oneway_run_duration_seconds           – backtest run duration histogram
//   - oneway_feed_ticks_total               – live feed trade events consumed
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/oneway/pkg/logger"
)

var (
	EpisodesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oneway_episodes_total",
		Help: "Episodes processed by the allocation engine",
	})

	AllocationSteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oneway_allocation_steps_total",
		Help: "Per-step decision branches taken",
	}, []string{"branch"})

	SolverFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oneway_solver_fallbacks_total",
		Help: "Root-finding fallbacks to a clamped boundary",
	})

	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "oneway_run_duration_seconds",
		Help:    "Backtest run wall-clock duration",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	FeedTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oneway_feed_ticks_total",
		Help: "Trade events consumed from the live feed",
	})
)

func init() {
	prometheus.MustRegister(
		EpisodesTotal,
		AllocationSteps,
		SolverFallbacks,
		RunDuration,
		FeedTicks,
	)
}

// ObserveEpisode records the branch counters of one completed episode
func ObserveEpisode(hold, partial, allIn, fallbacks int) {
	EpisodesTotal.Inc()
	AllocationSteps.WithLabelValues("hold").Add(float64(hold))
	AllocationSteps.WithLabelValues("partial").Add(float64(partial))
	AllocationSteps.WithLabelValues("all_in").Add(float64(allIn))
	SolverFallbacks.Add(float64(fallbacks))
}

// Server serves the Prometheus exposition endpoint
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
}

// NewServer creates the /metrics server on the given port
func NewServer(port string, log *logger.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + port,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// Start serves until Shutdown
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting metrics server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

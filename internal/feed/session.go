package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/oneway/internal/algorithm"
	"github.com/wonny/oneway/pkg/logger"
)

// Session samples live trades into a fixed-length price sequence and
// closes it through the allocation engine. Prices are sampled on a
// steady interval so episode steps stay evenly spaced regardless of how
// bursty the feed is.
type Session struct {
	engine   *algorithm.Engine
	interval time.Duration
	steps    int
	logger   *logger.Logger

	mu       sync.Mutex
	latest   float64
	hasPrice bool
	prices   []float64
}

// NewSession creates a session of the given length. The engine must be
// fresh or Reset; the session spends its budget in one episode.
func NewSession(engine *algorithm.Engine, interval time.Duration, steps int, log *logger.Logger) (*Session, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("step interval must be positive")
	}
	if steps <= 0 {
		return nil, fmt.Errorf("session needs at least one step")
	}
	return &Session{
		engine:   engine,
		interval: interval,
		steps:    steps,
		logger:   log,
	}, nil
}

// Observe records the newest trade. Wire this as the feed client's
// OnTrade callback.
func (s *Session) Observe(t *Trade) {
	s.mu.Lock()
	s.latest = t.Price
	s.hasPrice = true
	s.mu.Unlock()
}

// Run samples prices until the configured step count is reached, then
// closes the episode. Cancellation closes the episode early over the
// prices collected so far.
func (s *Session) Run(ctx context.Context) (*algorithm.Result, error) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for len(s.collected()) < s.steps {
		select {
		case <-ctx.Done():
			if len(s.collected()) == 0 {
				return nil, ctx.Err()
			}
			s.logger.WithField("steps", len(s.collected())).Warn("Session cancelled, closing episode early")
			return s.close()
		case <-ticker.C:
			s.sample()
		}
	}

	return s.close()
}

// sample appends the latest observed price, skipping ticks before the
// first trade arrives
func (s *Session) sample() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasPrice {
		return
	}
	s.prices = append(s.prices, s.latest)
}

func (s *Session) collected() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prices
}

// close runs the collected sequence through the engine
func (s *Session) close() (*algorithm.Result, error) {
	s.mu.Lock()
	prices := make([]float64, len(s.prices))
	copy(prices, s.prices)
	s.mu.Unlock()

	result, err := s.engine.Allocate(algorithm.Episode(prices))
	if err != nil {
		return nil, fmt.Errorf("close session episode: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"steps":  result.Steps,
		"profit": fmt.Sprintf("%.2f", result.Profit),
	}).Info("Session episode closed")

	return result, nil
}

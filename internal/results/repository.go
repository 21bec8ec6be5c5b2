package results

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrRunNotFound is returned when a run ID is unknown
var ErrRunNotFound = errors.New("run not found")

// Run is one backtest execution over a range of weekly episodes
type Run struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      time.Time     `json:"end_date"`
	LowerBound   float64       `json:"lower_bound"`
	UpperBound   float64       `json:"upper_bound"`
	Lambda       float64       `json:"lambda"`
	Oracle       string        `json:"oracle"`
	EpisodeCount int           `json:"episode_count"`
	TotalProfit  float64       `json:"total_profit"`
	MeanRatio    float64       `json:"mean_ratio"`
	WorstRatio   float64       `json:"worst_ratio"`
	Duration     time.Duration `json:"duration"`
}

// EpisodeResult is the outcome of one weekly episode inside a run
type EpisodeResult struct {
	RunID           string    `json:"run_id"`
	Index           int       `json:"index"`
	WeekStart       time.Time `json:"week_start"`
	Steps           int       `json:"steps"`
	Profit          float64   `json:"profit"`
	Optimum         float64   `json:"optimum"`
	Ratio           float64   `json:"ratio"`
	Prediction      *float64  `json:"prediction,omitempty"`
	SolverFallbacks int       `json:"solver_fallbacks"`
}

// Repository stores backtest runs and their per-episode outcomes
type Repository interface {
	SaveRun(ctx context.Context, run *Run, episodes []EpisodeResult) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	GetEpisodes(ctx context.Context, runID string) ([]EpisodeResult, error)
}

// MemoryRepository keeps runs in memory. Used in tests and whenever no
// DATABASE_URL is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	runs     map[string]*Run
	episodes map[string][]EpisodeResult
}

// NewMemoryRepository creates an empty in-memory store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		runs:     make(map[string]*Run),
		episodes: make(map[string][]EpisodeResult),
	}
}

// SaveRun stores a run and its episodes
func (r *MemoryRepository) SaveRun(_ context.Context, run *Run, episodes []EpisodeResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *run
	r.runs[run.ID] = &cp
	r.episodes[run.ID] = append([]EpisodeResult(nil), episodes...)
	return nil
}

// ListRuns returns runs newest-first
func (r *MemoryRepository) ListRuns(_ context.Context, limit int) ([]*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		cp := *run
		runs = append(runs, &cp)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetRun returns one run by ID
func (r *MemoryRepository) GetRun(_ context.Context, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

// GetEpisodes returns the per-episode outcomes of a run in order
func (r *MemoryRepository) GetEpisodes(_ context.Context, runID string) ([]EpisodeResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	episodes, ok := r.episodes[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return append([]EpisodeResult(nil), episodes...), nil
}

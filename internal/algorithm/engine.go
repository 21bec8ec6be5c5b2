package algorithm

import (
	"errors"
	"fmt"
	"math"

	"github.com/wonny/oneway/pkg/logger"
)

// Episode is one ordered sequence of observed prices, e.g. a week of
// BTCUSD closes.
type Episode []float64

// Oracle supplies an untrusted price prediction from prior-episode
// history. The bool mirrors "no prediction available".
type Oracle interface {
	Predict(history []Episode) (float64, bool)
}

// Engine errors
var (
	ErrOracleRequired  = errors.New("lambda below 1.0 requires a prediction oracle")
	ErrSessionSpent    = errors.New("engine already ran an episode; call Reset first")
	ErrEmptyInstance   = errors.New("price instance is empty")
	ErrInvalidPrice    = errors.New("price instance contains a non-positive price")
)

// Result is the outcome of one allocation episode
type Result struct {
	Allocation      []float64 // per-step fractions, sums to 1.0
	Profit          float64   // Σ price·allocation
	Steps           int       // steps consumed before the budget ran out
	HoldSteps       int       // price below the reservation bar
	PartialSteps    int       // root-finding branch taken
	AllInSteps      int       // price at or above the full-allocation bar
	SolverFallbacks int       // bisection gave up and a clamped boundary was used
}

// Engine is the online one-way trading allocator. It consumes one price
// episode, asking the injected Threshold for the current reservation
// price at every step and converting just enough of the remaining budget
// to keep the observed price on the curve.
//
// ⭐ SSOT: 자원 배분 결정은 이 엔진에서만
//
// One engine services one episode at a time: a second Allocate without
// Reset is rejected. The engine is not safe for concurrent use; parallel
// episodes need independent engines. Episode history is owned by the
// engine and never shared between instances.
type Engine struct {
	params    Params
	threshold Threshold
	oracle    Oracle
	logger    *logger.Logger

	w       float64   // cumulative fraction already converted
	spent   bool      // an episode ran since the last Reset
	history []Episode // completed episodes, grows across episodes only
}

// NewEngine creates an allocation engine. A nil threshold selects the
// default curve for the parameters; a nil logger disables logging.
// Construction fails fast when λ < 1 has no oracle to consult.
func NewEngine(params Params, threshold Threshold, oracle Oracle, log *logger.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	// Pure worst-case robustness cannot be claimed without a predictor
	if params.Lambda < 1 && oracle == nil {
		return nil, ErrOracleRequired
	}

	if threshold == nil {
		var err error
		if params.Lambda < 1 {
			threshold, err = NewAugmentedThreshold(params.LowerBound, params.UpperBound, params.Lambda)
		} else {
			threshold, err = NewRobustThreshold(params.LowerBound, params.UpperBound)
		}
		if err != nil {
			return nil, fmt.Errorf("build default threshold: %w", err)
		}
	}

	if log == nil {
		log = logger.NewNop()
	}

	return &Engine{
		params:    params,
		threshold: threshold,
		oracle:    oracle,
		logger:    log,
		history:   make([]Episode, 0),
	}, nil
}

// Params returns the engine configuration
func (e *Engine) Params() Params {
	return e.params
}

// Allocated returns the cumulative allocation w
func (e *Engine) Allocated() float64 {
	return e.w
}

// History returns a copy of the completed episodes seen so far. The
// engine owns its history container; callers get their own.
func (e *Engine) History() []Episode {
	out := make([]Episode, len(e.history))
	for i, ep := range e.history {
		cp := make(Episode, len(ep))
		copy(cp, ep)
		out[i] = cp
	}
	return out
}

// SeedHistory preloads prior episodes for the oracle. Episodes are
// copied: the engine must own its history container.
func (e *Engine) SeedHistory(episodes []Episode) {
	for _, ep := range episodes {
		cp := make(Episode, len(ep))
		copy(cp, ep)
		e.history = append(e.history, cp)
	}
}

// Reset prepares the engine for the next episode. History is kept;
// only the per-episode allocation state is cleared.
func (e *Engine) Reset() {
	e.w = 0
	e.spent = false
}

// Allocate runs one episode. At each step the observed price is compared
// against the reservation price at the current allocation level:
//
//	price < φ(w)         hold
//	φ(w) <= price < φ(1) convert x solving φ(w+x) = price (bisection)
//	price >= φ(1)        convert everything remaining
//
// Whatever budget is left when the stream ends is liquidated at the last
// observed price, so the returned allocation always sums to 1.
func (e *Engine) Allocate(instance Episode) (*Result, error) {
	if e.spent {
		return nil, ErrSessionSpent
	}
	if len(instance) == 0 {
		return nil, ErrEmptyInstance
	}
	for i, p := range instance {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: %g at step %d", ErrInvalidPrice, p, i)
		}
	}

	e.spent = true

	// The oracle sees only pre-episode history, so the prediction is
	// fixed for the whole episode. Asking per step would return the same
	// value; hoisting the call makes that explicit.
	var prediction *float64
	if e.oracle != nil {
		if p, ok := e.oracle.Predict(e.history); ok {
			prediction = &p
		}
	}

	result := &Result{Allocation: make([]float64, len(instance))}
	reservationFull := e.threshold.ReservationPrice(1, prediction)

	for i, price := range instance {
		if e.w >= 1 {
			// Budget exhausted; later indices stay zero
			break
		}
		result.Steps = i + 1

		reservation := e.threshold.ReservationPrice(e.w, prediction)

		var x float64
		switch {
		case price < reservation:
			result.HoldSteps++

		case price < reservationFull:
			result.PartialSteps++
			x = e.solveStep(price, prediction, result)

		default:
			result.AllInSteps++
			x = 1 - e.w
		}

		result.Allocation[i] = x
		e.w += x
	}

	// Forced end-of-episode liquidation: any residual budget converts at
	// the last observed price, even when exhaustion happened earlier at a
	// different index.
	if e.w <= 1 {
		result.Allocation[len(instance)-1] += 1 - e.w
		e.w = 1
	}

	for i, price := range instance {
		result.Profit += price * result.Allocation[i]
	}

	// Record the episode for future predictions; history grows across
	// episodes, never within one.
	recorded := make(Episode, len(instance))
	copy(recorded, instance)
	e.history = append(e.history, recorded)

	return result, nil
}

// solveStep finds x >= 0 with φ(w+x) = price on the partial branch. The
// branch condition guarantees a root inside [0, 1-w]; the solver result
// is clamped there regardless, absorbing float artifacts.
func (e *Engine) solveStep(price float64, prediction *float64, result *Result) float64 {
	remaining := 1 - e.w

	root, ok := Bisect(func(x float64) float64 {
		return e.threshold.ReservationPrice(e.w+x, prediction) - price
	}, 0, remaining, defaultBisectTol, defaultBisectMaxIter)

	if !ok {
		// Recoverable: take the nearer boundary, keep the sum invariant
		// intact and flag the event.
		result.SolverFallbacks++
		if root > remaining/2 {
			root = remaining
		} else {
			root = 0
		}
		e.logger.WithFields(map[string]interface{}{
			"price":     price,
			"allocated": e.w,
			"fallback":  root,
		}).Warn("Reservation price solver did not converge")
	}

	return clamp(root, 0, remaining)
}

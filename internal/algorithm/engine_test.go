package algorithm

import (
	"errors"
	"math"
	"testing"
)

const sumTolerance = 1e-6

// staticOracle always predicts the same price
type staticOracle struct {
	value float64
}

func (o staticOracle) Predict(history []Episode) (float64, bool) {
	return o.value, true
}

// silentOracle never has a prediction
type silentOracle struct{}

func (silentOracle) Predict(history []Episode) (float64, bool) {
	return 0, false
}

func newTestEngine(t *testing.T, lower, upper, lambda float64, oracle Oracle) *Engine {
	t.Helper()
	engine, err := NewEngine(Params{LowerBound: lower, UpperBound: upper, Lambda: lambda}, nil, oracle, nil)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	return engine
}

func checkInvariants(t *testing.T, instance Episode, result *Result) {
	t.Helper()

	sum := 0.0
	for i, x := range result.Allocation {
		if x < 0 {
			t.Errorf("allocation[%d] = %g, want >= 0", i, x)
		}
		sum += x
	}
	if math.Abs(sum-1.0) > sumTolerance {
		t.Errorf("allocation sums to %g, want 1.0", sum)
	}

	profit := 0.0
	for i, p := range instance {
		profit += p * result.Allocation[i]
	}
	if profit != result.Profit {
		t.Errorf("profit = %g, want Σ price·alloc = %g", result.Profit, profit)
	}
}

func TestAllocateScenarioA(t *testing.T) {
	// L=1, U=2, λ=1, no oracle, instance [1, 2]
	engine := newTestEngine(t, 1, 2, 1, nil)

	instance := Episode{1, 2}
	result, err := engine.Allocate(instance)
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}

	checkInvariants(t, instance, result)

	if result.Profit < 1 || result.Profit > 2 {
		t.Errorf("profit = %g, want within [1, 2]", result.Profit)
	}

	// Price reaching U must exercise the full-allocation branch
	if result.AllInSteps != 1 {
		t.Errorf("AllInSteps = %d, want 1", result.AllInSteps)
	}
}

func TestAllocateScenarioB(t *testing.T) {
	// An early price triggers w >= 1 mid-sequence
	engine := newTestEngine(t, 1, 2, 1, nil)

	instance := Episode{1, 2, 1.5, 1.2}
	result, err := engine.Allocate(instance)
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}

	checkInvariants(t, instance, result)

	if result.Allocation[1] != 1 {
		t.Errorf("allocation[1] = %g, want 1 (price hit U)", result.Allocation[1])
	}
	for i := 2; i < len(instance); i++ {
		if result.Allocation[i] != 0 {
			t.Errorf("allocation[%d] = %g, want 0 after exhaustion", i, result.Allocation[i])
		}
	}
}

func TestAllocateScenarioC(t *testing.T) {
	// Single-element instance with a price strictly between φ(0) and φ(1):
	// the forced liquidation must place exactly 1.0 on that element.
	engine := newTestEngine(t, 1, 2, 1, nil)

	phi0 := engine.threshold.ReservationPrice(0, nil)
	phi1 := engine.threshold.ReservationPrice(1, nil)
	price := (phi0 + phi1) / 2

	instance := Episode{price}
	result, err := engine.Allocate(instance)
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}

	if math.Abs(result.Allocation[0]-1.0) > sumTolerance {
		t.Errorf("allocation[0] = %g, want exactly 1.0", result.Allocation[0])
	}
	if math.Abs(result.Profit-price) > sumTolerance {
		t.Errorf("profit = %g, want %g", result.Profit, price)
	}
	if result.PartialSteps != 1 {
		t.Errorf("PartialSteps = %d, want 1", result.PartialSteps)
	}
}

func TestAllocateWorstCaseBound(t *testing.T) {
	// Canonical adversary: price pinned at L, one final jump to U.
	// With λ=1 profit must stay above OPT/c.
	lower, upper := 1.0, 2.0
	engine := newTestEngine(t, lower, upper, 1, nil)

	robust := engine.threshold.(*RobustThreshold)
	ratio := robust.CompetitiveRatio()

	instance := Episode{lower, lower, lower, lower, upper}
	result, err := engine.Allocate(instance)
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}

	checkInvariants(t, instance, result)

	opt := upper // offline optimum sells everything at the peak
	if bound := opt / ratio; result.Profit < bound-sumTolerance {
		t.Errorf("profit = %g below worst-case bound %g (c = %g)", result.Profit, bound, ratio)
	}
}

func TestAllocateGradualClimb(t *testing.T) {
	// Monotone climb from L to U exercises the root-finding branch
	// repeatedly; every step allocation must be solvable and the sum
	// invariant must survive.
	engine := newTestEngine(t, 1, 2, 1, nil)

	instance := Episode{1.0, 1.3, 1.45, 1.6, 1.75, 1.9, 2.0}
	result, err := engine.Allocate(instance)
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}

	checkInvariants(t, instance, result)

	if result.PartialSteps == 0 {
		t.Error("expected at least one partial-allocation step")
	}
	if result.SolverFallbacks != 0 {
		t.Errorf("SolverFallbacks = %d, want 0", result.SolverFallbacks)
	}
}

func TestAllocateAllPricesBelowThreshold(t *testing.T) {
	// Prices never reach the bar: everything liquidates at the last price
	engine := newTestEngine(t, 1, 2, 1, nil)

	instance := Episode{1.0, 1.05, 1.1, 1.02}
	result, err := engine.Allocate(instance)
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}

	checkInvariants(t, instance, result)

	last := len(instance) - 1
	if math.Abs(result.Allocation[last]-1.0) > sumTolerance {
		t.Errorf("allocation[%d] = %g, want 1.0 via forced liquidation", last, result.Allocation[last])
	}
	if math.Abs(result.Profit-instance[last]) > sumTolerance {
		t.Errorf("profit = %g, want last price %g", result.Profit, instance[last])
	}
}

func TestAllocateWithOracle(t *testing.T) {
	// λ < 1 with a configured oracle must run and keep the invariants
	engine := newTestEngine(t, 1, 2, 0.6, staticOracle{value: 1.7})

	instance := Episode{1.1, 1.5, 1.7, 1.3, 1.6}
	result, err := engine.Allocate(instance)
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}

	checkInvariants(t, instance, result)
}

func TestAllocateOracleWithoutPrediction(t *testing.T) {
	// Oracle present but silent: engine must behave like the robust case
	engine := newTestEngine(t, 1, 2, 0.5, silentOracle{})

	instance := Episode{1, 2}
	result, err := engine.Allocate(instance)
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}

	checkInvariants(t, instance, result)
}

func TestNewEngineLambdaRequiresOracle(t *testing.T) {
	_, err := NewEngine(Params{LowerBound: 1, UpperBound: 2, Lambda: 0.5}, nil, nil, nil)
	if !errors.Is(err, ErrOracleRequired) {
		t.Errorf("NewEngine() error = %v, want ErrOracleRequired", err)
	}
}

func TestNewEngineInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{"zero lower bound", Params{LowerBound: 0, UpperBound: 2, Lambda: 1}},
		{"negative lower bound", Params{LowerBound: -1, UpperBound: 2, Lambda: 1}},
		{"inverted bounds", Params{LowerBound: 2, UpperBound: 1, Lambda: 1}},
		{"zero lambda", Params{LowerBound: 1, UpperBound: 2, Lambda: 0}},
		{"lambda above one", Params{LowerBound: 1, UpperBound: 2, Lambda: 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(tt.params, nil, nil, nil); err == nil {
				t.Error("NewEngine() succeeded, want error")
			}
		})
	}
}

func TestAllocateRejectsMalformedInstances(t *testing.T) {
	tests := []struct {
		name     string
		instance Episode
		want     error
	}{
		{"empty", Episode{}, ErrEmptyInstance},
		{"zero price", Episode{1.5, 0, 1.2}, ErrInvalidPrice},
		{"negative price", Episode{1.5, -3}, ErrInvalidPrice},
		{"NaN price", Episode{math.NaN()}, ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, 1, 2, 1, nil)

			_, err := engine.Allocate(tt.instance)
			if !errors.Is(err, tt.want) {
				t.Errorf("Allocate() error = %v, want %v", err, tt.want)
			}

			// Rejection must happen before any state mutation
			if engine.Allocated() != 0 {
				t.Errorf("w = %g after rejected instance, want 0", engine.Allocated())
			}
			if engine.spent {
				t.Error("engine marked spent after rejected instance")
			}
		})
	}
}

func TestAllocateSecondEpisodeNeedsReset(t *testing.T) {
	engine := newTestEngine(t, 1, 2, 1, nil)

	if _, err := engine.Allocate(Episode{1, 2}); err != nil {
		t.Fatalf("first Allocate() failed: %v", err)
	}

	if _, err := engine.Allocate(Episode{1, 2}); !errors.Is(err, ErrSessionSpent) {
		t.Errorf("second Allocate() error = %v, want ErrSessionSpent", err)
	}

	engine.Reset()
	if _, err := engine.Allocate(Episode{1, 2}); err != nil {
		t.Errorf("Allocate() after Reset failed: %v", err)
	}
}

func TestHistoryGrowsAcrossEpisodes(t *testing.T) {
	engine := newTestEngine(t, 1, 2, 1, nil)

	episodes := []Episode{{1, 2}, {1.5, 1.2}, {1.1, 1.9, 1.4}}
	for i, ep := range episodes {
		if _, err := engine.Allocate(ep); err != nil {
			t.Fatalf("Allocate() %d failed: %v", i, err)
		}
		engine.Reset()
	}

	history := engine.History()
	if len(history) != len(episodes) {
		t.Fatalf("history has %d episodes, want %d", len(history), len(episodes))
	}
	for i := range episodes {
		if len(history[i]) != len(episodes[i]) {
			t.Errorf("history[%d] has %d prices, want %d", i, len(history[i]), len(episodes[i]))
		}
	}
}

func TestHistoryCopies(t *testing.T) {
	engine := newTestEngine(t, 1, 2, 1, nil)

	if _, err := engine.Allocate(Episode{1.5, 1.6}); err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}

	engine.History()[0][0] = 99 // mutating the returned slice must not leak in

	if got := engine.History()[0][0]; got != 1.5 {
		t.Errorf("history[0][0] = %g, want 1.5 (engine must own its history)", got)
	}
}

func TestSeedHistoryCopies(t *testing.T) {
	engine := newTestEngine(t, 1, 2, 1, nil)

	seed := Episode{1.5, 1.6}
	engine.SeedHistory([]Episode{seed})
	seed[0] = 99 // mutating the caller's slice must not leak in

	if got := engine.History()[0][0]; got != 1.5 {
		t.Errorf("history[0][0] = %g, want 1.5 (engine must own its history)", got)
	}
}

func TestAllocateSumInvariantAcrossShapes(t *testing.T) {
	// The sum invariant must hold regardless of which branches fire
	shapes := map[string]Episode{
		"constant low":   {1, 1, 1, 1, 1},
		"constant high":  {2, 2, 2},
		"single low":     {1},
		"single high":    {2},
		"sawtooth":       {1.2, 1.8, 1.1, 1.9, 1.05, 1.95},
		"decline":        {1.9, 1.7, 1.5, 1.3, 1.1},
		"spike and fade": {1.1, 1.97, 1.2, 1.15, 1.1},
	}

	for name, instance := range shapes {
		t.Run(name, func(t *testing.T) {
			engine := newTestEngine(t, 1, 2, 1, nil)

			result, err := engine.Allocate(instance)
			if err != nil {
				t.Fatalf("Allocate() failed: %v", err)
			}
			checkInvariants(t, instance, result)
		})
	}
}

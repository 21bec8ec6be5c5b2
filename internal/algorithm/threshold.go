package algorithm

import (
	"fmt"
	"math"
)

// Threshold maps the cumulative allocation w to a reservation price: the
// lowest price the engine is willing to accept at that point of the episode.
//
// Contract, relied upon by the Engine and never re-checked at runtime:
//   - defined for w in [0, 1], values stay within [Bounds]
//   - non-decreasing in w
//   - ReservationPrice(1, p) == U, so nothing is rejected at full allocation
//   - pure: identical (w, prediction) always yields identical output
type Threshold interface {
	ReservationPrice(w float64, prediction *float64) float64
	Bounds() (lower, upper float64)
}

// Params holds the one-way trading configuration (L, U, λ).
// Fixed for the engine's lifetime.
type Params struct {
	LowerBound float64 // L: lowest price the episode can show
	UpperBound float64 // U: highest price the episode can show
	Lambda     float64 // robustness weight; 1.0 = ignore predictions entirely
}

// Validate checks the parameter domain
func (p Params) Validate() error {
	if p.LowerBound <= 0 {
		return fmt.Errorf("lower bound must be positive, got %g", p.LowerBound)
	}
	if p.UpperBound <= p.LowerBound {
		return fmt.Errorf("upper bound %g must exceed lower bound %g", p.UpperBound, p.LowerBound)
	}
	if p.Lambda <= 0 || p.Lambda > 1 {
		return fmt.Errorf("lambda must be in (0, 1], got %g", p.Lambda)
	}
	return nil
}

// RobustThreshold is the classical worst-case one-way trading curve
//
//	φ(w) = L·(1 + (c-1)·e^{c·w})
//
// where c is the optimal competitive ratio for the price range [L, U],
// the unique root of L·(1 + (c-1)·e^c) = U. Predictions are ignored.
type RobustThreshold struct {
	lower float64
	upper float64
	ratio float64 // competitive ratio c
}

// NewRobustThreshold solves for the competitive ratio and returns the curve
func NewRobustThreshold(lower, upper float64) (*RobustThreshold, error) {
	p := Params{LowerBound: lower, UpperBound: upper, Lambda: 1}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// φ(1) grows monotonically in c, so the defining equation is solvable
	// by bisection once the root is bracketed.
	f := func(c float64) float64 {
		return lower*(1+(c-1)*math.Exp(c)) - upper
	}

	hi := 2.0
	for f(hi) < 0 && hi < 64 {
		hi *= 2
	}

	c, ok := Bisect(f, 1, hi, defaultBisectTol, defaultBisectMaxIter)
	if !ok {
		return nil, fmt.Errorf("competitive ratio did not converge for bounds (%g, %g)", lower, upper)
	}

	return &RobustThreshold{lower: lower, upper: upper, ratio: c}, nil
}

// Bounds returns the configured price range
func (t *RobustThreshold) Bounds() (float64, float64) {
	return t.lower, t.upper
}

// CompetitiveRatio returns the solved worst-case ratio c
func (t *RobustThreshold) CompetitiveRatio() float64 {
	return t.ratio
}

// ReservationPrice evaluates the curve; the prediction argument is ignored
func (t *RobustThreshold) ReservationPrice(w float64, _ *float64) float64 {
	w = clamp(w, 0, 1)
	v := t.lower * (1 + (t.ratio-1)*math.Exp(t.ratio*w))
	if v > t.upper {
		// φ(1) equals U analytically; clip float error
		v = t.upper
	}
	return v
}

// allocationAt inverts the curve: the smallest w whose reservation price
// reaches the given price.
func (t *RobustThreshold) allocationAt(price float64) float64 {
	if price <= t.lower*t.ratio {
		return 0
	}
	if price >= t.upper {
		return 1
	}
	w := math.Log((price/t.lower-1)/(t.ratio-1)) / t.ratio
	return clamp(w, 0, 1)
}

// AugmentedThreshold blends the robust curve with trust in a predicted
// price. A budget share of 1-λ (the trust budget) is offered at the
// predicted price as a flat plateau spliced into the robust curve; the
// tail of the curve is compressed so that φ(1) still equals U.
//
// λ=1 reduces exactly to RobustThreshold, and so does any call without a
// prediction. The plateau keeps the curve non-decreasing for every λ, so
// the Threshold contract holds unconditionally.
type AugmentedThreshold struct {
	base   *RobustThreshold
	lambda float64
}

// NewAugmentedThreshold builds the λ-robust prediction-aware curve
func NewAugmentedThreshold(lower, upper, lambda float64) (*AugmentedThreshold, error) {
	p := Params{LowerBound: lower, UpperBound: upper, Lambda: lambda}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	base, err := NewRobustThreshold(lower, upper)
	if err != nil {
		return nil, err
	}

	return &AugmentedThreshold{base: base, lambda: lambda}, nil
}

// Bounds returns the configured price range
func (t *AugmentedThreshold) Bounds() (float64, float64) {
	return t.base.lower, t.base.upper
}

// ReservationPrice evaluates the spliced curve
func (t *AugmentedThreshold) ReservationPrice(w float64, prediction *float64) float64 {
	w = clamp(w, 0, 1)
	if prediction == nil {
		return t.base.ReservationPrice(w, nil)
	}

	trusted := clamp(*prediction, t.base.lower, t.base.upper)
	if floor := t.base.ReservationPrice(0, nil); trusted < floor {
		// The robust curve already opens at φ(0) = L·c. A prediction
		// below that earns no plateau under the opening price, or the
		// spliced curve would decrease right after w=0.
		trusted = floor
	}
	plateau := 1 - t.lambda               // budget share sold at the predicted price
	start := t.base.allocationAt(trusted) // where the robust curve reaches it

	switch {
	case w <= start:
		return t.base.ReservationPrice(w, nil)
	case w <= start+plateau:
		return trusted
	}

	remaining := 1 - start - plateau
	if remaining <= 0 {
		// Plateau runs to the end of the budget; the contract still
		// requires U at full allocation.
		if w >= 1 {
			return t.base.upper
		}
		return trusted
	}

	// Compress the rest of the robust curve into the remaining budget so
	// the curve passes through (1, U).
	scaled := start + (w-start-plateau)*(1-start)/remaining
	return t.base.ReservationPrice(scaled, nil)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

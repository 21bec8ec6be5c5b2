// Package predictor provides simple price oracles for the allocation
// engine. These are deliberately dumb statistics over prior episodes, not
// models: the engine treats whatever they return as untrusted anyway.
package predictor

import (
	"github.com/wonny/oneway/internal/algorithm"
)

// LastMax predicts the peak price of the most recent completed episode.
type LastMax struct{}

// NewLastMax creates a last-episode-peak oracle
func NewLastMax() *LastMax {
	return &LastMax{}
}

// Predict returns the maximum price of the latest episode, or no
// prediction when the history is empty.
func (p *LastMax) Predict(history []algorithm.Episode) (float64, bool) {
	if len(history) == 0 {
		return 0, false
	}

	last := history[len(history)-1]
	if len(last) == 0 {
		return 0, false
	}

	peak := last[0]
	for _, price := range last[1:] {
		if price > peak {
			peak = price
		}
	}
	return peak, true
}

// EWMA predicts an exponentially weighted average of episode peaks,
// newest episode weighted heaviest.
type EWMA struct {
	alpha float64
}

// NewEWMA creates the smoothed-peak oracle. Alpha in (0, 1]; higher
// means the latest episode dominates.
func NewEWMA(alpha float64) *EWMA {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.5
	}
	return &EWMA{alpha: alpha}
}

// Predict folds episode peaks oldest-to-newest through the EWMA
func (p *EWMA) Predict(history []algorithm.Episode) (float64, bool) {
	var smoothed float64
	var seeded bool

	for _, episode := range history {
		if len(episode) == 0 {
			continue
		}

		peak := episode[0]
		for _, price := range episode[1:] {
			if price > peak {
				peak = price
			}
		}

		if !seeded {
			smoothed = peak
			seeded = true
			continue
		}
		smoothed = p.alpha*peak + (1-p.alpha)*smoothed
	}

	return smoothed, seeded
}

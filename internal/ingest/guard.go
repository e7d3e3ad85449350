package ingest

import (
	"fmt"

	"gridfeed/internal/contracts"
)

// Guard screens a symbol/session batch for corporate-action contamination.
// A split or dividend adjustment distorts price continuity for the whole
// session, so rejection is all-or-nothing: one contaminated bar rejects
// the entire batch.
type Guard struct {
	// Threshold is the maximum tolerated |close-adjclose|/close
	Threshold float64
}

// Evaluation is the guard's verdict for one symbol/session batch
type Evaluation struct {
	Accepted bool
	MaxRatio float64
}

// Evaluate computes the maximum close/adjusted-close divergence over the
// batch. Bars are expected to carry an adjusted close (enforced upstream
// by the normalizer); a non-positive close makes the ratio meaningless
// and fails the evaluation instead of passing silently.
func (g Guard) Evaluate(bars []contracts.MinuteBar) (Evaluation, error) {
	maxRatio := 0.0
	for _, b := range bars {
		if b.Close <= 0 {
			return Evaluation{}, fmt.Errorf("cannot evaluate divergence: non-positive close %.4f at minute %d", b.Close, b.MinuteIndex)
		}

		ratio := (b.Close - b.AdjClose) / b.Close
		if ratio < 0 {
			ratio = -ratio
		}
		if ratio > maxRatio {
			maxRatio = ratio
		}
	}

	return Evaluation{
		Accepted: maxRatio <= g.Threshold,
		MaxRatio: maxRatio,
	}, nil
}

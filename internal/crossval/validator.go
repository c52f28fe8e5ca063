// Package crossval reconciles a deterministic structured claim against a
// probabilistic model claim for the same (ticker, field).
package crossval

import (
	"math"

	"go.uber.org/zap"

	"github.com/treasurylens/treasury-cli/internal/model"
)

// Recommendation says which claim, if any, to trust.
type Recommendation string

const (
	UseStructured Recommendation = "use_structured"
	UseLLM        Recommendation = "use_llm"
	ManualReview  Recommendation = "manual_review"
	NoData        Recommendation = "no_data"
)

// Result is the cross-validation outcome. Chosen is nil for ManualReview
// and NoData.
type Result struct {
	Recommendation Recommendation
	Chosen         *model.FactClaim
	DeviationPct   float64
	Note           string
}

// Validate applies the decision table. Structured data is deterministic and
// preferred whenever available; the probabilistic claim fills gaps or
// corroborates, and never silently overrides structured data on a large
// disagreement.
//
//	structured  probabilistic  outcome
//	absent      present        use probabilistic
//	present     absent         use structured
//	present     within tol     use structured (deterministic wins ties)
//	present     differs ≤rev   use structured, log discrepancy
//	present     differs >rev   neither, manual review
func Validate(structured, probabilistic *model.FactClaim, tolerancePct, reviewPct float64) Result {
	switch {
	case structured == nil && probabilistic == nil:
		return Result{Recommendation: NoData}
	case structured == nil:
		return Result{Recommendation: UseLLM, Chosen: probabilistic}
	case probabilistic == nil:
		return Result{Recommendation: UseStructured, Chosen: structured}
	}

	deviation := relativeDeviation(structured.Value, probabilistic.Value)

	switch {
	case deviation <= tolerancePct:
		return Result{Recommendation: UseStructured, Chosen: structured, DeviationPct: deviation}

	case deviation <= reviewPct:
		// Trust structured, but keep the disagreement visible for offline
		// accuracy tracking of the probabilistic path.
		zap.L().Info("crossval: probabilistic claim differs from structured",
			zap.String("ticker", structured.Ticker),
			zap.String("field", structured.Field),
			zap.Float64("structured", structured.Value),
			zap.Float64("probabilistic", probabilistic.Value),
			zap.Float64("deviation_pct", deviation),
		)
		return Result{
			Recommendation: UseStructured,
			Chosen:         structured,
			DeviationPct:   deviation,
			Note:           "probabilistic claim diverged within review bound",
		}

	default:
		return Result{
			Recommendation: ManualReview,
			DeviationPct:   deviation,
			Note:           "structured and probabilistic claims disagree beyond review bound",
		}
	}
}

// relativeDeviation computes |b-a| / |a|. A zero baseline with a nonzero
// counterpart is treated as maximal deviation rather than dividing by zero.
func relativeDeviation(a, b float64) float64 {
	if a == 0 {
		if b == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(b-a) / math.Abs(a)
}

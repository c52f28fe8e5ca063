package discrepancy

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/treasurylens/treasury-cli/internal/config"
	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/resilience"
)

// Engine fetches claims from every registered source and produces a
// discrepancy record when any of them disagrees with our value.
type Engine struct {
	registry *Registry
	cfg      config.ReconcileConfig
}

// NewEngine creates an Engine over the given source registry.
func NewEngine(registry *Registry, cfg config.ReconcileConfig) *Engine {
	return &Engine{registry: registry, cfg: cfg}
}

// SourceError records a single source's fetch failure. One bad adapter must
// not hide what the others reported.
type SourceError struct {
	Source string
	Err    error
}

// Check compares ourValue against every source tracking the field. Sources
// are queried concurrently. Returns nil when every reachable source agrees
// exactly; a record is only worth writing when there is a disagreement.
func (e *Engine) Check(ctx context.Context, company model.Company, field string, ourValue float64) (*model.DiscrepancyRecord, []SourceError) {
	sources := e.registry.ForField(field)
	if len(sources) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		claims  = make(map[string]model.FactClaim)
		fetches []SourceError
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			claim, err := src.Fetch(gctx, company, field)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case resilience.IsNotFound(err):
				// A source not covering this company is not a discrepancy.
			case err != nil:
				fetches = append(fetches, SourceError{Source: src.Name(), Err: err})
			case claim != nil:
				claims[src.Name()] = *claim
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(claims) == 0 {
		return nil, fetches
	}

	maxDev := 0.0
	for _, claim := range claims {
		if d := deviationPct(ourValue, claim.Value); d > maxDev {
			maxDev = d
		}
	}
	if maxDev == 0 {
		zap.L().Debug("discrepancy: all sources agree",
			zap.String("ticker", company.Ticker),
			zap.String("field", field),
			zap.Int("sources", len(claims)),
		)
		return nil, fetches
	}

	bands := e.cfg.BandsFor(field)
	rec := &model.DiscrepancyRecord{
		ID:              uuid.NewString(),
		Ticker:          company.Ticker,
		Field:           field,
		OurValue:        ourValue,
		SourceValues:    claims,
		MaxDeviationPct: maxDev,
		Severity:        classify(maxDev, bands),
		CheckedAt:       time.Now().UTC(),
	}
	zap.L().Info("discrepancy: sources disagree with recorded value",
		zap.String("ticker", company.Ticker),
		zap.String("field", field),
		zap.Float64("our_value", ourValue),
		zap.Float64("max_deviation_pct", maxDev),
		zap.String("severity", string(rec.Severity)),
	)
	return rec, fetches
}

// deviationPct is |theirs-ours| / |ours|. A zero recorded value against a
// nonzero claim is reported as full deviation so it classifies as major
// instead of dividing by zero.
func deviationPct(ours, theirs float64) float64 {
	if ours == 0 {
		if theirs == 0 {
			return 0
		}
		return 1.0
	}
	return math.Abs(theirs-ours) / math.Abs(ours)
}

func classify(dev float64, bands config.SeverityBands) model.Severity {
	switch {
	case dev <= bands.Minor:
		return model.SeverityMinor
	case dev <= bands.Moderate:
		return model.SeverityModerate
	default:
		return model.SeverityMajor
	}
}

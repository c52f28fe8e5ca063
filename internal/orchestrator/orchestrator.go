// Package orchestrator drives reconciliation: it gathers claims from the
// structured and probabilistic paths, cross-validates them, applies the
// update guards, and is the only writer of the holdings system of record.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/treasurylens/treasury-cli/internal/config"
	"github.com/treasurylens/treasury-cli/internal/crossval"
	"github.com/treasurylens/treasury-cli/internal/extract"
	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/resilience"
	"github.com/treasurylens/treasury-cli/internal/store"
)

// FactFetcher is the structured claim path.
type FactFetcher interface {
	Resolve(ctx context.Context, company model.Company, field string) (*model.FactClaim, error)
}

// Prober is the probabilistic claim path.
type Prober interface {
	Probe(ctx context.Context, company model.Company, ectx model.ExtractionContext) (*model.FactClaim, error)
}

// Orchestrator reconciles the tracked universe against fresh claims.
type Orchestrator struct {
	store  store.Store
	facts  FactFetcher
	probe  Prober
	cfg    config.ReconcileConfig
	dryRun bool
}

// Options tune orchestrator behavior.
type Options struct {
	// DryRun evaluates every guard and records decisions without writing
	// holdings rows.
	DryRun bool
}

// New creates an Orchestrator. Either path may be nil and is then skipped;
// cross-validation degrades to the single available path.
func New(st store.Store, facts FactFetcher, probe Prober, cfg config.ReconcileConfig, opts Options) *Orchestrator {
	return &Orchestrator{store: st, facts: facts, probe: probe, cfg: cfg, dryRun: opts.DryRun}
}

// Run reconciles every (company, field) pair sequentially, one company at a
// time with a politeness delay between them. The batch always completes: a
// failing company is recorded and the loop moves on.
func (o *Orchestrator) Run(ctx context.Context, companies []model.Company, fields []string) model.RunSummary {
	sum := model.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	zap.L().Info("reconcile: run started",
		zap.String("run_id", sum.RunID),
		zap.Int("companies", len(companies)),
		zap.Strings("fields", fields),
		zap.Bool("dry_run", o.dryRun),
	)

	delay := time.Duration(o.cfg.TickerDelaySecs) * time.Second
	for i, company := range companies {
		if i > 0 && delay > 0 {
			if !sleepCtx(ctx, delay) {
				break
			}
		}
		for _, field := range fields {
			d := o.ReconcileField(ctx, company, field)
			sum.Record(d)
			if d.Outcome == model.OutcomeError {
				sum.ErrorList = append(sum.ErrorList, model.TickerError{Ticker: company.Ticker, Err: d.Reason})
			}
			if err := o.store.AppendDecision(ctx, sum.RunID, d); err != nil {
				zap.L().Error("reconcile: append decision failed",
					zap.String("ticker", company.Ticker),
					zap.Error(err),
				)
			}
		}
	}

	sum.FinishedAt = time.Now().UTC()
	if err := o.store.SaveRun(ctx, sum); err != nil {
		zap.L().Error("reconcile: save run failed", zap.String("run_id", sum.RunID), zap.Error(err))
	}
	zap.L().Info("reconcile: run finished",
		zap.String("run_id", sum.RunID),
		zap.Int("processed", sum.Processed),
		zap.Int("updated", sum.Updated),
		zap.Int("needs_review", sum.NeedsReview),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("errors", sum.Errors),
	)
	return sum
}

// ReconcileField runs both claim paths for one (company, field),
// cross-validates, and applies the guards. It never panics the batch: every
// failure mode maps to a Decision.
func (o *Orchestrator) ReconcileField(ctx context.Context, company model.Company, field string) model.Decision {
	d := model.Decision{
		Ticker:    company.Ticker,
		Field:     field,
		DryRun:    o.dryRun,
		DecidedAt: time.Now().UTC(),
	}

	current, err := o.store.GetHolding(ctx, company.Ticker, field)
	if err != nil {
		return o.fail(d, eris.Wrap(err, "orchestrator: read current value"))
	}

	ectx := model.ExtractionContext{
		Ticker:      company.Ticker,
		CompanyName: company.Name,
		Asset:       company.Asset,
		Field:       field,
	}
	if current != nil {
		d.OldValue = current.Value
		ectx.CurrentValue = current.Value
		ectx.HasCurrent = true
	}

	structured, probabilistic, pathErr := o.gatherClaims(ctx, company, ectx)
	if structured == nil && probabilistic == nil && pathErr != nil {
		// Both paths down is a failure; one path down with the other
		// reporting is just a degraded comparison.
		return o.fail(d, pathErr)
	}

	res := crossval.Validate(structured, probabilistic, o.cfg.CrossValTolerancePct, o.cfg.CrossValReviewPct)
	switch res.Recommendation {
	case crossval.NoData:
		d.Outcome = model.OutcomeUnchanged
		d.Reason = "no source produced a claim"
		return d
	case crossval.ManualReview:
		d.Outcome = model.OutcomeNeedsReview
		d.Reason = fmt.Sprintf("sources disagree by %.1f%%", res.DeviationPct*100)
		return d
	}

	claim := res.Chosen
	d.Claim = claim
	d.NewValue = claim.Value
	return o.applyGuards(ctx, d, claim, current, ectx)
}

// gatherClaims runs both paths concurrently. Not-found is a nil claim; a
// real error from one path is carried alongside the other path's claim.
func (o *Orchestrator) gatherClaims(ctx context.Context, company model.Company, ectx model.ExtractionContext) (structured, probabilistic *model.FactClaim, pathErr error) {
	g, gctx := errgroup.WithContext(ctx)

	var structuredErr, probeErr error
	if o.facts != nil {
		g.Go(func() error {
			claim, err := o.facts.Resolve(gctx, company, ectx.Field)
			switch {
			case resilience.IsNotFound(err):
			case err != nil:
				structuredErr = err
			default:
				structured = claim
			}
			return nil
		})
	}
	if o.probe != nil {
		g.Go(func() error {
			claim, err := o.probe.Probe(gctx, company, ectx)
			switch {
			case resilience.IsNotFound(err):
			case err != nil:
				probeErr = err
			default:
				probabilistic = claim
			}
			return nil
		})
	}
	_ = g.Wait()

	if structuredErr != nil {
		zap.L().Warn("reconcile: structured path failed",
			zap.String("ticker", company.Ticker),
			zap.String("field", ectx.Field),
			zap.Error(structuredErr),
		)
		pathErr = structuredErr
	}
	if probeErr != nil {
		zap.L().Warn("reconcile: probabilistic path failed",
			zap.String("ticker", company.Ticker),
			zap.String("field", ectx.Field),
			zap.Error(probeErr),
		)
		if pathErr == nil {
			pathErr = probeErr
		}
	}
	return structured, probabilistic, pathErr
}

// applyGuards runs the update guards in order and writes the holding when
// all of them pass.
func (o *Orchestrator) applyGuards(ctx context.Context, d model.Decision, claim *model.FactClaim, current *model.HoldingsRecord, ectx model.ExtractionContext) model.Decision {
	if current != nil && claim.Value == current.Value {
		d.Outcome = model.OutcomeUnchanged
		d.Reason = "value matches current record"
		return d
	}

	plausibility := extract.CheckClaim(claim, ectx, o.cfg.SanityCeiling[d.Field])
	if !plausibility.Plausible {
		d.Outcome = model.OutcomeNeedsReview
		d.Reason = "implausible claim: " + plausibility.Reason
		return d
	}
	// Flags ride along on the decision even when the update goes through.
	if len(plausibility.Flags) > 0 {
		d.Flags = plausibility.Flags
		zap.L().Warn("reconcile: claim flagged",
			zap.String("ticker", d.Ticker),
			zap.String("field", d.Field),
			zap.Strings("flags", plausibility.Flags),
		)
	}

	if claim.Method == model.MethodLLM && claim.Confidence < o.cfg.MinConfidence {
		d.Outcome = model.OutcomeNeedsReview
		d.Reason = fmt.Sprintf("confidence %.2f below threshold %.2f", claim.Confidence, o.cfg.MinConfidence)
		return d
	}

	if current != nil && current.Value > 0 {
		change := (claim.Value - current.Value) / current.Value
		if change > o.cfg.MaxChangePct || change < -o.cfg.MaxChangePct {
			d.Outcome = model.OutcomeNeedsReview
			d.Reason = fmt.Sprintf("change %.1f%% exceeds limit %.0f%%", change*100, o.cfg.MaxChangePct*100)
			return d
		}
	}

	if o.dryRun {
		d.Outcome = model.OutcomeApplied
		d.Reason = "dry run: update not written"
		zap.L().Info("reconcile: would update",
			zap.String("ticker", d.Ticker),
			zap.String("field", d.Field),
			zap.Float64("old", d.OldValue),
			zap.Float64("new", claim.Value),
		)
		return d
	}

	rec := model.HoldingsRecord{
		Ticker:     d.Ticker,
		Field:      d.Field,
		Value:      claim.Value,
		Unit:       claim.Unit,
		AsOfDate:   claim.AsOfDate,
		SourceURL:  claim.SourceURL,
		SourceName: claim.SourceName,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := o.store.UpsertHolding(ctx, rec); err != nil {
		return o.fail(d, eris.Wrap(err, "orchestrator: write holding"))
	}

	d.Outcome = model.OutcomeApplied
	zap.L().Info("reconcile: updated",
		zap.String("ticker", d.Ticker),
		zap.String("field", d.Field),
		zap.Float64("old", d.OldValue),
		zap.Float64("new", claim.Value),
		zap.String("method", string(claim.Method)),
	)
	return d
}

func (o *Orchestrator) fail(d model.Decision, err error) model.Decision {
	d.Outcome = model.OutcomeError
	d.Reason = err.Error()
	zap.L().Error("reconcile: field failed",
		zap.String("ticker", d.Ticker),
		zap.String("field", d.Field),
		zap.Error(err),
	)
	return d
}

// sleepCtx sleeps for d unless the context ends first. Returns false when
// the context ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasurylens/treasury-cli/internal/config"
	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/resilience"
	"github.com/treasurylens/treasury-cli/internal/store"
)

type stubFacts struct {
	claims map[string]*model.FactClaim // keyed by ticker+"/"+field
	err    error
}

func (s *stubFacts) Resolve(_ context.Context, company model.Company, field string) (*model.FactClaim, error) {
	if s.err != nil {
		return nil, s.err
	}
	if c, ok := s.claims[company.Ticker+"/"+field]; ok {
		return c, nil
	}
	return nil, resilience.ErrNotFound
}

type stubProbe struct {
	claim *model.FactClaim
	err   error
}

func (s *stubProbe) Probe(_ context.Context, _ model.Company, _ model.ExtractionContext) (*model.FactClaim, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.claim == nil {
		return nil, resilience.ErrNotFound
	}
	return s.claim, nil
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func reconcileCfg() config.ReconcileConfig {
	return config.ReconcileConfig{
		MinConfidence:        0.7,
		MaxChangePct:         0.5,
		CrossValTolerancePct: 0.05,
		CrossValReviewPct:    0.20,
		SanityCeiling:        map[string]float64{model.FieldHoldings: 5000000},
		DefaultBands:         config.SeverityBands{Minor: 0.01, Moderate: 0.05},
	}
}

func structuredClaim(ticker string, value float64) *model.FactClaim {
	return &model.FactClaim{
		Ticker: ticker, Field: model.FieldHoldings, Value: value, Unit: "BTC",
		Method: model.MethodStructured, Confidence: 1.0, SourceName: "edgar",
		AsOfDate: time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC),
	}
}

func llmClaim(ticker string, value, confidence float64) *model.FactClaim {
	return &model.FactClaim{
		Ticker: ticker, Field: model.FieldHoldings, Value: value, Unit: "BTC",
		Method: model.MethodLLM, Confidence: confidence, SourceName: "filing",
	}
}

var mstr = model.Company{Ticker: "MSTR", Name: "Strategy Inc", CIK: "1050446", Asset: "BTC"}

func seedHolding(t *testing.T, st store.Store, ticker string, value float64) {
	t.Helper()
	require.NoError(t, st.UpsertHolding(context.Background(), model.HoldingsRecord{
		Ticker: ticker, Field: model.FieldHoldings, Value: value, Unit: "BTC",
	}))
}

func TestReconcileField_AppliesStructuredUpdate(t *testing.T) {
	st := testStore(t)
	seedHolding(t, st, "MSTR", 634781)

	facts := &stubFacts{claims: map[string]*model.FactClaim{
		"MSTR/crypto_holdings": structuredClaim("MSTR", 640031),
	}}
	o := New(st, facts, &stubProbe{}, reconcileCfg(), Options{})

	d := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeApplied, d.Outcome)
	assert.Equal(t, 634781.0, d.OldValue)
	assert.Equal(t, 640031.0, d.NewValue)

	got, err := st.GetHolding(context.Background(), "MSTR", model.FieldHoldings)
	require.NoError(t, err)
	assert.Equal(t, 640031.0, got.Value)
	assert.Equal(t, "edgar", got.SourceName)
}

func TestReconcileField_IdenticalValueUnchanged(t *testing.T) {
	st := testStore(t)
	seedHolding(t, st, "MSTR", 640031)

	facts := &stubFacts{claims: map[string]*model.FactClaim{
		"MSTR/crypto_holdings": structuredClaim("MSTR", 640031),
	}}
	o := New(st, facts, &stubProbe{}, reconcileCfg(), Options{})

	d := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeUnchanged, d.Outcome)
}

func TestReconcileField_Idempotent(t *testing.T) {
	// Applying once and reconciling again with the same inputs is a no-op.
	st := testStore(t)
	seedHolding(t, st, "MSTR", 634781)

	facts := &stubFacts{claims: map[string]*model.FactClaim{
		"MSTR/crypto_holdings": structuredClaim("MSTR", 640031),
	}}
	o := New(st, facts, &stubProbe{}, reconcileCfg(), Options{})

	first := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeApplied, first.Outcome)

	second := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeUnchanged, second.Outcome)
}

func TestReconcileField_LowConfidenceLLMNeedsReview(t *testing.T) {
	st := testStore(t)
	seedHolding(t, st, "MSTR", 634781)

	o := New(st, &stubFacts{}, &stubProbe{claim: llmClaim("MSTR", 640031, 0.55)}, reconcileCfg(), Options{})

	d := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeNeedsReview, d.Outcome)
	assert.Contains(t, d.Reason, "confidence")

	// The low-confidence claim must not have been written.
	got, err := st.GetHolding(context.Background(), "MSTR", model.FieldHoldings)
	require.NoError(t, err)
	assert.Equal(t, 634781.0, got.Value)
}

func TestReconcileField_ConfidentLLMApplied(t *testing.T) {
	st := testStore(t)
	seedHolding(t, st, "MSTR", 634781)

	o := New(st, &stubFacts{}, &stubProbe{claim: llmClaim("MSTR", 640031, 0.9)}, reconcileCfg(), Options{})

	d := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeApplied, d.Outcome)
}

func TestReconcileField_LargeChangeNeedsReview(t *testing.T) {
	st := testStore(t)
	seedHolding(t, st, "MSTR", 100000)

	facts := &stubFacts{claims: map[string]*model.FactClaim{
		"MSTR/crypto_holdings": structuredClaim("MSTR", 160000), // +60%
	}}
	o := New(st, facts, &stubProbe{}, reconcileCfg(), Options{})

	d := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeNeedsReview, d.Outcome)
	assert.Contains(t, d.Reason, "change")
}

func TestReconcileField_DoubledValueAppliedWithFlag(t *testing.T) {
	// A change past 100% of the prior value is flagged, not rejected. With
	// the change guard loosened the update still lands, and the flag rides
	// on the recorded decision.
	st := testStore(t)
	seedHolding(t, st, "MSTR", 100000)

	facts := &stubFacts{claims: map[string]*model.FactClaim{
		"MSTR/crypto_holdings": structuredClaim("MSTR", 250000),
	}}
	cfg := reconcileCfg()
	cfg.MaxChangePct = 3.0
	o := New(st, facts, &stubProbe{}, cfg, Options{})

	d := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeApplied, d.Outcome)
	assert.Contains(t, d.Flags, "relative change exceeds 100%")
}

func TestReconcileField_SanityCeilingNeedsReview(t *testing.T) {
	st := testStore(t)

	o := New(st, &stubFacts{}, &stubProbe{claim: llmClaim("MSTR", 6000000, 0.95)}, reconcileCfg(), Options{})

	d := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeNeedsReview, d.Outcome)
	assert.Contains(t, d.Reason, "implausible")
}

func TestReconcileField_PathDisagreementNeedsReview(t *testing.T) {
	st := testStore(t)
	seedHolding(t, st, "MSTR", 500000)

	facts := &stubFacts{claims: map[string]*model.FactClaim{
		"MSTR/crypto_holdings": structuredClaim("MSTR", 500000),
	}}
	o := New(st, facts, &stubProbe{claim: llmClaim("MSTR", 700000, 0.9)}, reconcileCfg(), Options{})

	d := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeNeedsReview, d.Outcome)
	assert.Contains(t, d.Reason, "disagree")
}

func TestReconcileField_NoDataUnchanged(t *testing.T) {
	st := testStore(t)

	o := New(st, &stubFacts{}, &stubProbe{}, reconcileCfg(), Options{})

	d := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeUnchanged, d.Outcome)
	assert.Contains(t, d.Reason, "no source")
}

func TestReconcileField_BothPathsFailingIsError(t *testing.T) {
	st := testStore(t)

	o := New(st,
		&stubFacts{err: eris.New("edgar down")},
		&stubProbe{err: eris.New("model down")},
		reconcileCfg(), Options{})

	d := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeError, d.Outcome)
}

func TestReconcileField_OnePathFailingStillReconciles(t *testing.T) {
	st := testStore(t)
	seedHolding(t, st, "MSTR", 634781)

	facts := &stubFacts{claims: map[string]*model.FactClaim{
		"MSTR/crypto_holdings": structuredClaim("MSTR", 640031),
	}}
	o := New(st, facts, &stubProbe{err: eris.New("model down")}, reconcileCfg(), Options{})

	d := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeApplied, d.Outcome)
}

func TestReconcileField_DryRunWritesNothing(t *testing.T) {
	st := testStore(t)
	seedHolding(t, st, "MSTR", 634781)

	facts := &stubFacts{claims: map[string]*model.FactClaim{
		"MSTR/crypto_holdings": structuredClaim("MSTR", 640031),
	}}
	o := New(st, facts, &stubProbe{}, reconcileCfg(), Options{DryRun: true})

	d := o.ReconcileField(context.Background(), mstr, model.FieldHoldings)
	assert.Equal(t, model.OutcomeApplied, d.Outcome)
	assert.True(t, d.DryRun)

	got, err := st.GetHolding(context.Background(), "MSTR", model.FieldHoldings)
	require.NoError(t, err)
	assert.Equal(t, 634781.0, got.Value)
}

func TestRun_BatchCompletesDespiteFailures(t *testing.T) {
	st := testStore(t)
	seedHolding(t, st, "MSTR", 634781)

	// MSTR resolves; FAIL's structured path errors and its probe is down too.
	facts := &stubFacts{claims: map[string]*model.FactClaim{
		"MSTR/crypto_holdings": structuredClaim("MSTR", 640031),
	}}
	companies := []model.Company{
		mstr,
		{Ticker: "FAIL", Name: "Broken Corp", Asset: "BTC"},
	}

	failing := &stubFacts{err: eris.New("edgar down")}
	o := New(st, &routingFacts{byTicker: map[string]FactFetcher{
		"MSTR": facts,
		"FAIL": failing,
	}}, nil, config.ReconcileConfig{
		MinConfidence: 0.7, MaxChangePct: 0.5,
		CrossValTolerancePct: 0.05, CrossValReviewPct: 0.20,
	}, Options{})

	sum := o.Run(context.Background(), companies, []string{model.FieldHoldings})
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Errors)
	require.Len(t, sum.ErrorList, 1)
	assert.Equal(t, "FAIL", sum.ErrorList[0].Ticker)

	// The run summary and decisions are persisted for the audit trail.
	runs, err := st.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sum.RunID, runs[0].RunID)

	decisions, err := st.ListDecisions(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Len(t, decisions, 2)
}

// routingFacts dispatches to a per-ticker FactFetcher.
type routingFacts struct {
	byTicker map[string]FactFetcher
}

func (r *routingFacts) Resolve(ctx context.Context, company model.Company, field string) (*model.FactClaim, error) {
	if f, ok := r.byTicker[company.Ticker]; ok {
		return f.Resolve(ctx, company, field)
	}
	return nil, resilience.ErrNotFound
}

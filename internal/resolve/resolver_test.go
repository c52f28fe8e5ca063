package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasurylens/treasury-cli/internal/model"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func seriesFor(aliases ...string) model.ConceptSeries {
	return model.ConceptSeries{Field: "shares_outstanding", Aliases: aliases}
}

func TestResolve_PrefersPeriodicOverNewerEvent(t *testing.T) {
	obs := model.ObservationSet{
		"CommonStockSharesOutstanding": {
			{Value: 200_000_000, Form: "10-Q", PeriodEnd: day(2025, 9, 30), FiledDate: day(2025, 11, 4)},
			{Value: 210_000_000, Form: "8-K", PeriodEnd: day(2025, 10, 15), FiledDate: day(2025, 10, 16)},
		},
	}

	res := Resolver{}.Resolve(seriesFor("CommonStockSharesOutstanding"), obs)
	require.NotNil(t, res)
	// The event observation is chronologically newer but excluded.
	assert.Equal(t, 200_000_000.0, res.Observation.Value)
	assert.Equal(t, "10-Q", res.Observation.Form)
}

func TestResolve_AliasPriorityOrder(t *testing.T) {
	obs := model.ObservationSet{
		"EntityCommonStockSharesOutstanding": {
			{Value: 150_000_000, Form: "10-Q", PeriodEnd: day(2025, 6, 30), FiledDate: day(2025, 8, 1)},
		},
		"CommonStockSharesIssued": {
			{Value: 999_000_000, Form: "10-K", PeriodEnd: day(2025, 9, 30), FiledDate: day(2025, 12, 1)},
		},
	}

	// First alias with any usable observation wins, even if a lower-priority
	// alias has a fresher value.
	res := Resolver{}.Resolve(
		seriesFor("EntityCommonStockSharesOutstanding", "CommonStockSharesIssued"), obs)
	require.NotNil(t, res)
	assert.Equal(t, 150_000_000.0, res.Observation.Value)
	assert.Equal(t, "EntityCommonStockSharesOutstanding", res.Alias)
}

func TestResolve_SortsByPeriodEndThenFiled(t *testing.T) {
	obs := model.ObservationSet{
		"LongTermDebt": {
			{Value: 100, Form: "10-Q", PeriodEnd: day(2025, 3, 31), FiledDate: day(2025, 5, 1)},
			{Value: 300, Form: "10-Q", PeriodEnd: day(2025, 6, 30), FiledDate: day(2025, 8, 15)},
			// Same period refiled later (amendment) must win the tie.
			{Value: 301, Form: "10-Q/A", PeriodEnd: day(2025, 6, 30), FiledDate: day(2025, 9, 1)},
		},
	}

	res := Resolver{}.Resolve(model.ConceptSeries{Field: "debt", Aliases: []string{"LongTermDebt"}}, obs)
	require.NotNil(t, res)
	assert.Equal(t, 301.0, res.Observation.Value)
}

func TestResolve_DiscardsZeroValues(t *testing.T) {
	obs := model.ObservationSet{
		"CommonStockSharesOutstanding": {
			{Value: 0, Form: "10-Q", PeriodEnd: day(2025, 9, 30), FiledDate: day(2025, 11, 1)},
			{Value: 120, Form: "10-Q", PeriodEnd: day(2025, 6, 30), FiledDate: day(2025, 8, 1)},
		},
	}

	res := Resolver{}.Resolve(seriesFor("CommonStockSharesOutstanding"), obs)
	require.NotNil(t, res)
	assert.Equal(t, 120.0, res.Observation.Value)
}

func TestResolve_NotFoundIsNil(t *testing.T) {
	obs := model.ObservationSet{
		"SomeUnrelatedConcept": {
			{Value: 42, Form: "10-K", PeriodEnd: day(2025, 12, 31), FiledDate: day(2026, 2, 1)},
		},
	}

	res := Resolver{}.Resolve(seriesFor("CommonStockSharesOutstanding"), obs)
	assert.Nil(t, res)

	res = Resolver{}.Resolve(seriesFor("CommonStockSharesOutstanding"), model.ObservationSet{})
	assert.Nil(t, res)
}

func TestResolve_EventOnlyConceptYieldsNothingByDefault(t *testing.T) {
	obs := model.ObservationSet{
		"CommonStockSharesOutstanding": {
			{Value: 500, Form: "8-K", PeriodEnd: day(2025, 10, 1), FiledDate: day(2025, 10, 2)},
		},
	}

	assert.Nil(t, Resolver{}.Resolve(seriesFor("CommonStockSharesOutstanding"), obs))

	res := Resolver{AllowEventForms: true}.Resolve(seriesFor("CommonStockSharesOutstanding"), obs)
	require.NotNil(t, res)
	assert.Equal(t, 500.0, res.Observation.Value)
}

func TestResolve_Deterministic(t *testing.T) {
	obs := model.ObservationSet{
		"CommonStockSharesOutstanding": {
			{Value: 100, Form: "10-Q", PeriodEnd: day(2025, 6, 30), FiledDate: day(2025, 8, 1)},
			{Value: 200, Form: "10-K", PeriodEnd: day(2025, 6, 30), FiledDate: day(2025, 8, 1)},
		},
	}

	series := seriesFor("CommonStockSharesOutstanding")
	first := Resolver{}.Resolve(series, obs)
	second := Resolver{}.Resolve(series, obs)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Observation, second.Observation)
}

func TestResolve_NormalizesConceptCasingAndPrefix(t *testing.T) {
	obs := model.ObservationSet{
		"us-gaap:commonstocksharesoutstanding": {
			{Value: 77, Form: "10-Q", PeriodEnd: day(2025, 6, 30), FiledDate: day(2025, 8, 1)},
		},
	}

	res := Resolver{}.Resolve(seriesFor("CommonStockSharesOutstanding"), obs)
	require.NotNil(t, res)
	assert.Equal(t, 77.0, res.Observation.Value)
}

func TestResolve_MergesNamespaceCollisions(t *testing.T) {
	// A filer's custom-namespace extension folds to the same local name as
	// the standard concept; both observation lists must stay in play.
	obs := model.ObservationSet{
		"us-gaap:CommonStockSharesOutstanding": {
			{Value: 100, Form: "10-Q", PeriodEnd: day(2025, 6, 30), FiledDate: day(2025, 8, 1)},
		},
		"mstr:CommonStockSharesOutstanding": {
			{Value: 999, Form: "10-Q", PeriodEnd: day(2025, 9, 30), FiledDate: day(2025, 11, 1)},
		},
	}

	series := seriesFor("CommonStockSharesOutstanding")
	for range 50 {
		res := Resolver{}.Resolve(series, obs)
		require.NotNil(t, res)
		// The fresher observation wins regardless of which namespace
		// carried it or how the map iterates.
		assert.Equal(t, 999.0, res.Observation.Value)
	}
}

func TestResolve_NamespaceTieIsDeterministic(t *testing.T) {
	// Identical period and filed date in both namespaces; recency cannot
	// break the tie, so sorted insertion order must.
	obs := model.ObservationSet{
		"us-gaap:CommonStockSharesOutstanding": {
			{Value: 100, Form: "10-Q", PeriodEnd: day(2025, 9, 30), FiledDate: day(2025, 11, 1)},
		},
		"mstr:CommonStockSharesOutstanding": {
			{Value: 999, Form: "10-Q", PeriodEnd: day(2025, 9, 30), FiledDate: day(2025, 11, 1)},
		},
	}

	series := seriesFor("CommonStockSharesOutstanding")
	first := Resolver{}.Resolve(series, obs)
	require.NotNil(t, first)
	for range 100 {
		res := Resolver{}.Resolve(series, obs)
		require.NotNil(t, res)
		assert.Equal(t, first.Observation, res.Observation)
	}
}

func TestToClaim(t *testing.T) {
	res := &Resolution{
		Observation: model.Observation{
			Value:     123,
			Unit:      "shares",
			Form:      "10-Q",
			PeriodEnd: day(2025, 9, 30),
			SourceID:  "https://www.sec.gov/Archives/acc-1",
		},
		Alias: "CommonStockSharesOutstanding",
	}

	claim := res.ToClaim("MSTR", model.FieldSharesOutstanding)
	require.NotNil(t, claim)
	assert.Equal(t, model.MethodStructured, claim.Method)
	assert.Equal(t, 1.0, claim.Confidence)
	assert.Equal(t, 123.0, claim.Value)
	assert.Equal(t, day(2025, 9, 30), claim.AsOfDate)

	var nilRes *Resolution
	assert.Nil(t, nilRes.ToClaim("MSTR", model.FieldSharesOutstanding))
}

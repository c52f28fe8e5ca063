package crossval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasurylens/treasury-cli/internal/model"
)

const (
	tolerance = 0.05
	review    = 0.20
)

func structuredClaim(v float64) *model.FactClaim {
	return &model.FactClaim{Ticker: "MSTR", Field: model.FieldSharesOutstanding, Value: v, Method: model.MethodStructured, Confidence: 1.0}
}

func llmClaim(v float64) *model.FactClaim {
	return &model.FactClaim{Ticker: "MSTR", Field: model.FieldSharesOutstanding, Value: v, Method: model.MethodLLM, Confidence: 0.85}
}

func TestValidate_BothAbsent(t *testing.T) {
	got := Validate(nil, nil, tolerance, review)
	assert.Equal(t, NoData, got.Recommendation)
	assert.Nil(t, got.Chosen)
}

func TestValidate_OnlyProbabilistic(t *testing.T) {
	p := llmClaim(100)
	got := Validate(nil, p, tolerance, review)
	assert.Equal(t, UseLLM, got.Recommendation)
	assert.Same(t, p, got.Chosen)
}

func TestValidate_OnlyStructured(t *testing.T) {
	s := structuredClaim(100)
	got := Validate(s, nil, tolerance, review)
	assert.Equal(t, UseStructured, got.Recommendation)
	assert.Same(t, s, got.Chosen)
}

func TestValidate_WithinToleranceStructuredWins(t *testing.T) {
	// Within 5% of each other: deterministic wins the tie, never use_llm.
	got := Validate(structuredClaim(100), llmClaim(104), tolerance, review)
	require.Equal(t, UseStructured, got.Recommendation)
	assert.Equal(t, model.MethodStructured, got.Chosen.Method)
	assert.InDelta(t, 0.04, got.DeviationPct, 1e-9)
}

func TestValidate_ModerateDisagreementLogged(t *testing.T) {
	got := Validate(structuredClaim(100), llmClaim(115), tolerance, review)
	assert.Equal(t, UseStructured, got.Recommendation)
	assert.NotEmpty(t, got.Note)
}

func TestValidate_LargeDisagreementNeitherTrusted(t *testing.T) {
	got := Validate(structuredClaim(100), llmClaim(150), tolerance, review)
	assert.Equal(t, ManualReview, got.Recommendation)
	assert.Nil(t, got.Chosen)
}

func TestValidate_ZeroStructuredBaseline(t *testing.T) {
	got := Validate(structuredClaim(0), llmClaim(100), tolerance, review)
	assert.Equal(t, ManualReview, got.Recommendation)
	assert.True(t, math.IsInf(got.DeviationPct, 1))
}

func TestValidate_ExactMatch(t *testing.T) {
	got := Validate(structuredClaim(100), llmClaim(100), tolerance, review)
	assert.Equal(t, UseStructured, got.Recommendation)
	assert.Zero(t, got.DeviationPct)
}

package extract

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/pkg/llm"
)

// rawResponse mirrors the JSON schema the prompt asks for.
type rawResponse struct {
	Found        bool               `json:"found"`
	Total        *float64           `json:"total"`
	Transaction  *rawTransaction    `json:"transaction"`
	ShareClasses map[string]float64 `json:"share_classes"`
	Unit         string             `json:"unit"`
	AsOfDate     string             `json:"as_of_date"`
	Confidence   float64            `json:"confidence"`
	Reasoning    string             `json:"reasoning"`
}

type rawTransaction struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

// parseResponse converts model output into a FactClaim. The new total is
// derived here, from a stated total, summed share classes, or transaction
// arithmetic against the recorded value, because downstream consumers need
// totals, not deltas. Returns nil when the model found no usable fact.
func parseResponse(text string, ectx model.ExtractionContext) *model.FactClaim {
	cleaned := llm.CleanJSON(text)

	var raw rawResponse
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		zap.L().Warn("extract: malformed model output",
			zap.String("ticker", ectx.Ticker),
			zap.String("field", ectx.Field),
			zap.Error(err),
		)
		return &model.FactClaim{
			Ticker:     ectx.Ticker,
			Field:      ectx.Field,
			Method:     model.MethodLLM,
			Confidence: 0,
			Reasoning:  "parse error: " + err.Error(),
		}
	}

	if !raw.Found {
		return nil
	}

	value, derivation, ok := deriveTotal(raw, ectx)
	if !ok {
		zap.L().Debug("extract: response stated no derivable total",
			zap.String("ticker", ectx.Ticker),
			zap.String("field", ectx.Field),
		)
		return nil
	}

	claim := &model.FactClaim{
		Ticker:     ectx.Ticker,
		Field:      ectx.Field,
		Value:      value,
		Unit:       raw.Unit,
		Method:     model.MethodLLM,
		Confidence: clampConfidence(raw.Confidence),
		Reasoning:  raw.Reasoning,
		SourceName: "llm",
	}
	if derivation != "" {
		claim.Reasoning = derivation + "; " + claim.Reasoning
	}
	if raw.AsOfDate != "" {
		if d, err := time.Parse("2006-01-02", raw.AsOfDate); err == nil {
			claim.AsOfDate = d
		}
	}
	return claim
}

// deriveTotal picks the new total in preference order: stated total, summed
// share classes, then transaction arithmetic relative to the recorded value.
func deriveTotal(raw rawResponse, ectx model.ExtractionContext) (float64, string, bool) {
	if raw.Total != nil {
		return *raw.Total, "", true
	}

	if len(raw.ShareClasses) > 0 {
		var sum float64
		for _, v := range raw.ShareClasses {
			sum += v
		}
		return sum, "summed from share classes", true
	}

	if raw.Transaction != nil && ectx.HasCurrent {
		switch raw.Transaction.Type {
		case "purchase":
			return ectx.CurrentValue + raw.Transaction.Amount, "derived from purchase transaction", true
		case "sale":
			return ectx.CurrentValue - raw.Transaction.Amount, "derived from sale transaction", true
		}
	}

	return 0, "", false
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

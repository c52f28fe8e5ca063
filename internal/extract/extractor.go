// Package extract derives fact claims from filing text via a language
// model. Output is always a FactClaim-shaped structure with confidence and
// reasoning; a failed parse degrades to a zero-confidence claim rather than
// aborting the batch.
package extract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/treasurylens/treasury-cli/internal/config"
	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/relevance"
	"github.com/treasurylens/treasury-cli/internal/resilience"
	"github.com/treasurylens/treasury-cli/pkg/llm"
)

// Extractor runs probabilistic fact extraction over filing documents.
type Extractor struct {
	client    llm.Client
	cfg       config.AnthropicConfig
	relevance relevance.Extractor
	retry     resilience.RetryConfig
}

// New creates an Extractor. The model configuration is passed in explicitly;
// nothing here reads the environment.
func New(client llm.Client, cfg config.AnthropicConfig, rel relevance.Extractor) *Extractor {
	return &Extractor{
		client:    client,
		cfg:       cfg,
		relevance: rel,
		retry:     resilience.DefaultRetryConfig(),
	}
}

// Extract asks the model for the fact described by ectx, bounded to a
// relevant excerpt of filingText. Returns (nil, nil) when the document is
// not worth a model call or states no usable fact; extraction ambiguity is
// "not found", never an error. Malformed model output yields a
// zero-confidence claim carrying the parse error in its reasoning.
func (e *Extractor) Extract(ctx context.Context, ectx model.ExtractionContext, filingText, sourceURL string) (*model.FactClaim, error) {
	if !e.relevance.ShouldAttempt(filingText) {
		zap.L().Debug("extract: document failed relevance pre-check",
			zap.String("ticker", ectx.Ticker),
			zap.String("field", ectx.Field),
		)
		return nil, nil
	}

	excerpt := e.relevance.Extract(filingText, ectx.SectionHints)
	if excerpt.Text == "" {
		return nil, nil
	}
	zap.L().Debug("extract: excerpt prepared",
		zap.String("ticker", ectx.Ticker),
		zap.String("strategy", excerpt.Strategy),
		zap.Int("chars", len(excerpt.Text)),
	)

	prompt := buildPrompt(ectx, excerpt.Text)

	retry := e.retry
	retry.OnRetry = resilience.RetryLogger("llm", "complete")
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*llm.Response, error) {
		return e.client.Complete(ctx, llm.Request{
			Model:     e.cfg.Model,
			MaxTokens: e.cfg.MaxTokens,
			System:    systemText,
			Prompt:    prompt,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: model call")
	}

	claim := parseResponse(resp.Text, ectx)
	if claim == nil {
		return nil, nil
	}
	claim.SourceURL = sourceURL
	if claim.AsOfDate.IsZero() {
		claim.AsOfDate = time.Now().UTC()
	}
	return claim, nil
}

// Plausibility is the outcome of sanity-checking a claim.
type Plausibility struct {
	Plausible bool
	Flags     []string
	Reason    string
}

// CheckClaim applies plausibility rules to an extracted claim: the value
// must be non-negative and below the field's sanity ceiling. A relative
// change beyond 100% of the prior value is flagged for attention but does
// not reject the claim.
func CheckClaim(claim *model.FactClaim, ectx model.ExtractionContext, ceiling float64) Plausibility {
	if claim == nil {
		return Plausibility{Plausible: false, Reason: "no claim"}
	}
	if claim.Value < 0 {
		return Plausibility{Plausible: false, Reason: "negative value"}
	}
	if ceiling > 0 && claim.Value > ceiling {
		return Plausibility{Plausible: false, Reason: "value exceeds sanity ceiling"}
	}

	p := Plausibility{Plausible: true}
	if ectx.HasCurrent && ectx.CurrentValue > 0 {
		change := (claim.Value - ectx.CurrentValue) / ectx.CurrentValue
		if change > 1.0 || change < -1.0 {
			p.Flags = append(p.Flags, "relative change exceeds 100%")
		}
	}
	return p
}

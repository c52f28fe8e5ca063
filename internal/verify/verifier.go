// Package verify re-checks recorded values against the sources that
// produced them. Unlike discrepancy classification, drift checks are
// zero-tolerance: the cited source either still says what we recorded, or
// it does not.
package verify

import (
	"context"

	"go.uber.org/zap"

	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/resilience"
)

// FactFetcher re-resolves a field from its structured source of record.
type FactFetcher interface {
	// Resolve returns the current structured claim for the field, or
	// resilience.ErrNotFound when the source has no observation.
	Resolve(ctx context.Context, company model.Company, field string) (*model.FactClaim, error)
}

// URLChecker probes whether a cited document URL is still reachable.
type URLChecker interface {
	Reachable(ctx context.Context, url string) error
}

// Verifier checks recorded values for drift against their sources.
type Verifier struct {
	facts FactFetcher
	urls  URLChecker
}

// New creates a Verifier. Either dependency may be nil; a nil fetcher skips
// straight to the URL fallback, a nil checker reports unverified when a URL
// check would be needed.
func New(facts FactFetcher, urls URLChecker) *Verifier {
	return &Verifier{facts: facts, urls: urls}
}

// Verify re-checks one recorded value. Structural re-resolution is
// attempted first; when the field cannot be re-resolved the check degrades
// to URL reachability, which confirms the citation still exists without
// confirming the value.
func (v *Verifier) Verify(ctx context.Context, company model.Company, field string, recorded float64, sourceURL string) model.VerificationResult {
	if v.facts != nil {
		claim, err := v.facts.Resolve(ctx, company, field)
		switch {
		case err == nil && claim != nil:
			if claim.Value == recorded {
				return model.VerificationResult{Status: model.StatusVerified, SourceFetchedValue: &claim.Value}
			}
			zap.L().Warn("verify: source no longer matches recorded value",
				zap.String("ticker", company.Ticker),
				zap.String("field", field),
				zap.Float64("recorded", recorded),
				zap.Float64("fetched", claim.Value),
			)
			return model.VerificationResult{Status: model.StatusSourceDrift, SourceFetchedValue: &claim.Value}
		case resilience.IsNotFound(err):
			// Fall through to the URL check.
		case err != nil:
			zap.L().Warn("verify: structured re-resolution failed",
				zap.String("ticker", company.Ticker),
				zap.String("field", field),
				zap.Error(err),
			)
			// Source unreadable is not the same as source changed. Degrade
			// to the reachability check rather than reporting drift.
		}
	}

	if sourceURL == "" || v.urls == nil {
		return model.VerificationResult{Status: model.StatusUnverified}
	}
	if err := v.urls.Reachable(ctx, sourceURL); err != nil {
		return model.VerificationResult{Status: model.StatusSourceInvalid, Error: err.Error()}
	}
	return model.VerificationResult{Status: model.StatusSourceAvailable}
}

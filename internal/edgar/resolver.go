package edgar

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/resilience"
	"github.com/treasurylens/treasury-cli/internal/resolve"
)

// FactResolver ties the EDGAR client to the concept catalog: fetch the
// company's structured facts, then resolve one field to a claim.
type FactResolver struct {
	client   *Client
	catalog  *resolve.Catalog
	resolver resolve.Resolver
}

// NewFactResolver creates a FactResolver over the given client and catalog.
func NewFactResolver(client *Client, catalog *resolve.Catalog) *FactResolver {
	return &FactResolver{client: client, catalog: catalog}
}

// Observations fetches and flattens the company's full fact set.
func (r *FactResolver) Observations(ctx context.Context, company model.Company) (model.ObservationSet, error) {
	if company.CIK == "" {
		return nil, eris.Wrapf(resilience.ErrNotFound, "edgar: no CIK for %s", company.Ticker)
	}
	facts, err := r.client.CompanyFacts(ctx, company.CIK)
	if err != nil {
		return nil, err
	}
	return facts.Observations(), nil
}

// Resolve produces the structured claim for one field, or
// resilience.ErrNotFound when neither the catalog nor the filings carry it.
func (r *FactResolver) Resolve(ctx context.Context, company model.Company, field string) (*model.FactClaim, error) {
	series, ok := r.catalog.Series(field)
	if !ok {
		return nil, eris.Wrapf(resilience.ErrNotFound, "edgar: no concept series for field %s", field)
	}

	obs, err := r.Observations(ctx, company)
	if err != nil {
		return nil, err
	}

	res := r.resolver.Resolve(series, obs)
	if res == nil {
		return nil, eris.Wrapf(resilience.ErrNotFound, "edgar: %s not resolvable for %s", field, company.Ticker)
	}
	return res.ToClaim(company.Ticker, field), nil
}

// Dilution runs basic-vs-diluted share comparison from the company's
// current filings. Returns nil when either series is unresolvable.
func (r *FactResolver) Dilution(ctx context.Context, company model.Company) (*model.DilutionResult, error) {
	basic, okB := r.catalog.Series(model.FieldSharesBasic)
	diluted, okD := r.catalog.Series(model.FieldSharesDiluted)
	if !okB || !okD {
		return nil, eris.Wrap(resilience.ErrNotFound, "edgar: share class series missing from catalog")
	}
	// The increment series is a fallback for filers that never tag a
	// diluted total; a catalog without it just resolves nothing there.
	increment, _ := r.catalog.Series(model.FieldDilutedIncrement)

	obs, err := r.Observations(ctx, company)
	if err != nil {
		return nil, err
	}
	return resolve.DetectDilution(r.resolver, basic, diluted, increment, obs), nil
}

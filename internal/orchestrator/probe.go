package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/treasurylens/treasury-cli/internal/edgar"
	"github.com/treasurylens/treasury-cli/internal/extract"
	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/resilience"
)

// eventFilingForms are the ad hoc disclosure forms worth probing: treasury
// purchases are announced in 8-Ks (6-Ks for foreign filers) well before
// they appear in periodic structured data.
var eventFilingForms = []string{"8-K", "8-K/A", "6-K"}

// FilingProber runs the probabilistic extractor over a company's most
// recent event filings, newest first, and returns the first claim found.
type FilingProber struct {
	client     *edgar.Client
	extractor  *extract.Extractor
	forms      []string
	maxFilings int
}

// NewFilingProber creates a FilingProber. maxFilings bounds how many
// documents are fetched and sent to the model per probe.
func NewFilingProber(client *edgar.Client, extractor *extract.Extractor, maxFilings int) *FilingProber {
	if maxFilings <= 0 {
		maxFilings = 3
	}
	return &FilingProber{
		client:     client,
		extractor:  extractor,
		forms:      eventFilingForms,
		maxFilings: maxFilings,
	}
}

// Probe implements Prober. A company without a CIK or without recent event
// filings yields resilience.ErrNotFound.
func (p *FilingProber) Probe(ctx context.Context, company model.Company, ectx model.ExtractionContext) (*model.FactClaim, error) {
	if company.CIK == "" {
		return nil, resilience.ErrNotFound
	}

	sub, err := p.client.Submissions(ctx, company.CIK)
	if err != nil {
		return nil, err
	}

	filings := sub.RecentFilings(p.forms, p.maxFilings)
	if len(filings) == 0 {
		return nil, resilience.ErrNotFound
	}

	for _, filing := range filings {
		text, err := p.client.FilingText(ctx, filing.DocumentURL)
		if err != nil {
			zap.L().Warn("probe: filing fetch failed",
				zap.String("ticker", company.Ticker),
				zap.String("url", filing.DocumentURL),
				zap.Error(err),
			)
			continue
		}

		fectx := ectx
		fectx.FilingType = filing.Form
		claim, err := p.extractor.Extract(ctx, fectx, text, filing.DocumentURL)
		if err != nil {
			return nil, err
		}
		if claim != nil {
			return claim, nil
		}
	}
	return nil, resilience.ErrNotFound
}

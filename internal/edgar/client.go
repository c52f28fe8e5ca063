package edgar

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/treasurylens/treasury-cli/internal/config"
	"github.com/treasurylens/treasury-cli/internal/fetcher"
)

const defaultArchiveURL = "https://www.sec.gov"

// Client fetches company fact data and filing documents from EDGAR.
type Client struct {
	fetch      fetcher.Fetcher
	baseURL    string
	archiveURL string

	// Company facts payloads are multi-megabyte and mostly static between
	// filings; conditional requests keep repeated batch runs cheap.
	mu    sync.Mutex
	etags map[string]string
	cache map[string]*CompanyFacts
}

// NewClient creates an EDGAR client over the given fetcher.
func NewClient(fetch fetcher.Fetcher, cfg config.EdgarConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://data.sec.gov"
	}
	archiveURL := strings.TrimSuffix(cfg.ArchiveURL, "/")
	if archiveURL == "" {
		archiveURL = defaultArchiveURL
	}
	return &Client{
		fetch:      fetch,
		baseURL:    baseURL,
		archiveURL: archiveURL,
		etags:      make(map[string]string),
		cache:      make(map[string]*CompanyFacts),
	}
}

// PadCIK normalizes a CIK to the zero-padded 10-digit form the facts API
// expects. A leading "CIK" prefix is tolerated.
func PadCIK(cik string) string {
	cik = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(cik)), "CIK")
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

// CompanyFacts fetches the full structured fact set for a company. A CIK
// unknown to EDGAR surfaces as resilience.ErrNotFound via the fetcher.
func (c *Client) CompanyFacts(ctx context.Context, cik string) (*CompanyFacts, error) {
	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.baseURL, PadCIK(cik))

	c.mu.Lock()
	etag := c.etags[url]
	cached := c.cache[url]
	c.mu.Unlock()

	data, newETag, changed, err := c.fetch.GetIfChanged(ctx, url, etag)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: company facts for CIK %s", cik)
	}
	if !changed && cached != nil {
		zap.L().Debug("edgar: company facts unchanged", zap.String("cik", cik))
		return cached, nil
	}

	facts, err := ParseCompanyFacts(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.etags[url] = newETag
	c.cache[url] = facts
	c.mu.Unlock()

	zap.L().Debug("edgar: company facts fetched",
		zap.String("cik", cik),
		zap.String("entity", facts.EntityName),
		zap.Int("namespaces", len(facts.Facts)),
	)
	return facts, nil
}

// FilingText downloads a filing document as text for the probabilistic
// extraction path.
func (c *Client) FilingText(ctx context.Context, url string) (string, error) {
	data, err := c.fetch.Get(ctx, url)
	if err != nil {
		return "", eris.Wrapf(err, "edgar: filing text %s", url)
	}
	return string(data), nil
}

package discrepancy

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/treasurylens/treasury-cli/internal/config"
	"github.com/treasurylens/treasury-cli/internal/fetcher"
	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/resilience"
)

// JSONSource reads claims from a community dashboard or aggregator that
// exposes a JSON endpoint per (ticker, field). Upstreams are third-party and
// occasionally malformed; a bad payload is an error on this source only and
// never aborts the comparison run.
type JSONSource struct {
	name   string
	url    string
	fields map[string]bool
	fetch  fetcher.Fetcher
}

// NewJSONSource builds a source from configuration. The configured URL may
// contain {ticker} and {field} placeholders.
func NewJSONSource(cfg config.SourceConfig, fetch fetcher.Fetcher) *JSONSource {
	fields := make(map[string]bool, len(cfg.Fields))
	for _, f := range cfg.Fields {
		fields[f] = true
	}
	return &JSONSource{name: cfg.Name, url: cfg.URL, fields: fields, fetch: fetch}
}

func (s *JSONSource) Name() string { return s.name }

func (s *JSONSource) CanProvide(field string) bool { return s.fields[field] }

// sourcePayload is the shape dashboards commonly expose. Value arrives as a
// number or a formatted string depending on the upstream.
type sourcePayload struct {
	Value json.RawMessage `json:"value"`
	Unit  string          `json:"unit"`
	AsOf  string          `json:"as_of"`
}

// Fetch retrieves and parses the source's current value for a company.
func (s *JSONSource) Fetch(ctx context.Context, company model.Company, field string) (*model.FactClaim, error) {
	url := strings.NewReplacer("{ticker}", company.Ticker, "{field}", field).Replace(s.url)

	data, err := s.fetch.Get(ctx, url)
	if err != nil {
		if resilience.IsNotFound(err) {
			return nil, err
		}
		return nil, eris.Wrapf(err, "discrepancy: source %s", s.name)
	}

	var payload sourcePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, eris.Wrapf(err, "discrepancy: source %s returned malformed payload", s.name)
	}
	value, err := parseValue(payload.Value)
	if err != nil {
		return nil, eris.Wrapf(err, "discrepancy: source %s value", s.name)
	}

	claim := &model.FactClaim{
		Ticker:     company.Ticker,
		Field:      field,
		Value:      value,
		Unit:       payload.Unit,
		Method:     model.MethodScrape,
		Confidence: 1,
		SourceURL:  url,
		SourceName: s.name,
	}
	if payload.AsOf != "" {
		if asOf, err := time.Parse("2006-01-02", payload.AsOf); err == nil {
			claim.AsOfDate = asOf
		}
	}
	return claim, nil
}

// parseValue accepts a JSON number or a numeric string, with thousands
// separators stripped.
func parseValue(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, eris.New("missing value")
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, eris.New("value is neither number nor string")
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(str), ",", ""), 64)
	if err != nil {
		return 0, eris.Wrap(err, "parse numeric string")
	}
	return n, nil
}

package model

import "time"

// Method identifies how a fact claim was produced.
type Method string

const (
	MethodStructured Method = "structured"
	MethodLLM        Method = "llm"
	MethodScrape     Method = "scrape"
)

// FactClaim is the resolved output of any extractor: one source's assertion
// about one (ticker, field) fact. Claims are produced fresh on each run and
// never mutated, only superseded by later runs.
type FactClaim struct {
	Ticker     string    `json:"ticker"`
	Field      string    `json:"field"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	AsOfDate   time.Time `json:"as_of_date"`
	Method     Method    `json:"method"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning,omitempty"`
	SourceURL  string    `json:"source_url,omitempty"`
	SourceName string    `json:"source_name,omitempty"`
}

// ExtractionContext is the question being asked of the probabilistic
// extractor. CurrentValue lets the extractor resolve "increased holdings by
// X" phrasing into a new total; HasCurrent distinguishes a recorded zero
// from no record at all.
type ExtractionContext struct {
	Ticker       string
	CompanyName  string
	Asset        string
	Field        string
	CurrentValue float64
	HasCurrent   bool
	ShareClasses []string
	FilingType   string
	SectionHints []string
}

// Company is one tracked company in the universe.
type Company struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	CIK    string `json:"cik"`
	Asset  string `json:"asset"`
}

// HoldingsRecord is the system-of-record row for one (ticker, field). It is
// the only mutable state in the system, and only the orchestrator writes it.
type HoldingsRecord struct {
	Ticker     string    `json:"ticker"`
	Field      string    `json:"field"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	AsOfDate   time.Time `json:"as_of_date"`
	SourceURL  string    `json:"source_url,omitempty"`
	SourceName string    `json:"source_name,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Well-known field keys.
const (
	FieldHoldings          = "crypto_holdings"
	FieldSharesOutstanding = "shares_outstanding"
	FieldSharesBasic       = "shares_basic"
	FieldSharesDiluted     = "shares_diluted"
	FieldDilutedIncrement  = "shares_diluted_increment"
	FieldDebt              = "debt"
	FieldCash              = "cash"
)

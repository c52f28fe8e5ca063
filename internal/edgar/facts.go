// Package edgar fetches and flattens structured company fact data from the
// SEC's EDGAR APIs.
package edgar

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/treasurylens/treasury-cli/internal/model"
)

// CompanyFacts mirrors the EDGAR company facts JSON-LD structure.
type CompanyFacts struct {
	CIK        int               `json:"cik"`
	EntityName string            `json:"entityName"`
	Facts      map[string]FactNS `json:"facts"`
}

// FactNS groups facts by namespace (e.g., "us-gaap", "dei").
type FactNS map[string]Fact

// Fact is a single XBRL fact with its units and values.
type Fact struct {
	Label       string                 `json:"label"`
	Description string                 `json:"description"`
	Units       map[string][]FactValue `json:"units"`
}

// FactValue is a single data point for a fact.
type FactValue struct {
	End   string `json:"end"`
	Val   any    `json:"val"`
	Accn  string `json:"accn"`
	FY    int    `json:"fy"`
	FP    string `json:"fp"`
	Form  string `json:"form"`
	Filed string `json:"filed"`
	Frame string `json:"frame,omitempty"`
}

// ParseCompanyFacts parses EDGAR company facts JSON.
func ParseCompanyFacts(data []byte) (*CompanyFacts, error) {
	var facts CompanyFacts
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, eris.Wrap(err, "edgar: parse company facts")
	}
	return &facts, nil
}

// factDate is the date layout used throughout the company facts payload.
const factDate = "2006-01-02"

// Observations flattens the facts into an ObservationSet keyed by
// namespaced concept name ("us-gaap:X", "dei:Y"). Non-numeric values and
// values without a period end are dropped at this boundary so downstream
// resolution only ever sees usable data points.
func (cf *CompanyFacts) Observations() model.ObservationSet {
	if cf == nil || len(cf.Facts) == 0 {
		return nil
	}

	out := make(model.ObservationSet)
	for ns, nsMap := range cf.Facts {
		for factName, fact := range nsMap {
			concept := ns + ":" + factName
			for unit, values := range fact.Units {
				for _, v := range values {
					num, ok := v.Val.(float64)
					if !ok || v.End == "" {
						continue
					}
					periodEnd, err := time.Parse(factDate, v.End)
					if err != nil {
						continue
					}
					filed, _ := time.Parse(factDate, v.Filed)
					out[concept] = append(out[concept], model.Observation{
						Value:     num,
						Unit:      unit,
						PeriodEnd: periodEnd,
						Form:      v.Form,
						FiledDate: filed,
						SourceID:  cf.filingURL(v.Accn),
					})
				}
			}
		}
	}
	return out
}

// filingURL builds the archive URL for the filing that carried a fact.
func (cf *CompanyFacts) filingURL(accn string) string {
	if accn == "" {
		return ""
	}
	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%d/%s",
		cf.CIK, strings.ReplaceAll(accn, "-", ""))
}

package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Submissions is the trimmed-down EDGAR submissions payload: the recent
// filing history for one company.
type Submissions struct {
	CIK    string
	Name   string
	Recent struct {
		AccessionNumber []string
		Form            []string
		FilingDate      []string
		PrimaryDocument []string
	}

	archive string
}

// submissionsEnvelope matches the real payload layout, which nests the
// recent arrays one level down.
type submissionsEnvelope struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			Form            []string `json:"form"`
			FilingDate      []string `json:"filingDate"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// Filing is one filing from the submissions feed, with its primary document
// resolved to a fetchable URL.
type Filing struct {
	Accession   string
	Form        string
	FiledDate   time.Time
	DocumentURL string
}

// Submissions fetches the recent filing history for a company.
func (c *Client) Submissions(ctx context.Context, cik string) (*Submissions, error) {
	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.baseURL, PadCIK(cik))
	data, err := c.fetch.Get(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: submissions for CIK %s", cik)
	}

	var env submissionsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, eris.Wrap(err, "edgar: parse submissions")
	}

	sub := &Submissions{CIK: env.CIK, Name: env.Name, archive: c.archiveURL}
	sub.Recent.AccessionNumber = env.Filings.Recent.AccessionNumber
	sub.Recent.Form = env.Filings.Recent.Form
	sub.Recent.FilingDate = env.Filings.Recent.FilingDate
	sub.Recent.PrimaryDocument = env.Filings.Recent.PrimaryDocument
	return sub, nil
}

// RecentFilings returns up to limit filings matching the given forms, newest
// first. An empty forms list matches everything.
func (s *Submissions) RecentFilings(forms []string, limit int) []Filing {
	want := make(map[string]bool, len(forms))
	for _, f := range forms {
		want[f] = true
	}

	var out []Filing
	r := s.Recent
	for i := range r.AccessionNumber {
		if i >= len(r.Form) || i >= len(r.FilingDate) || i >= len(r.PrimaryDocument) {
			break
		}
		if len(want) > 0 && !want[r.Form[i]] {
			continue
		}
		filed, err := time.Parse(factDate, r.FilingDate[i])
		if err != nil {
			continue
		}
		out = append(out, Filing{
			Accession:   r.AccessionNumber[i],
			Form:        r.Form[i],
			FiledDate:   filed,
			DocumentURL: s.documentURL(r.AccessionNumber[i], r.PrimaryDocument[i]),
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// documentURL builds the archive URL for a filing's primary document.
func (s *Submissions) documentURL(accn, doc string) string {
	archive := s.archive
	if archive == "" {
		archive = defaultArchiveURL
	}
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
		archive, strings.TrimLeft(s.CIK, "0"), strings.ReplaceAll(accn, "-", ""), doc)
}

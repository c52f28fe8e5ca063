package model

import "time"

// FormClass distinguishes regularly scheduled disclosures from ad hoc
// material-event disclosures.
type FormClass string

const (
	FormPeriodic FormClass = "periodic"
	FormEvent    FormClass = "event"
)

// periodicForms are the filing forms accepted by the concept resolver:
// annual and quarterly reports plus their foreign-filer equivalents.
var periodicForms = map[string]bool{
	"10-K":   true,
	"10-K/A": true,
	"10-Q":   true,
	"10-Q/A": true,
	"20-F":   true,
	"20-F/A": true,
	"40-F":   true,
	"40-F/A": true,
	"6-K":    true,
}

// ClassifyForm maps a filing form code to its class. Anything that is not a
// known periodic form is treated as an event form (8-K, S-1, 424B5, ...).
func ClassifyForm(form string) FormClass {
	if periodicForms[form] {
		return FormPeriodic
	}
	return FormEvent
}

// Observation is a single structured data point for one concept, as reported
// in a filing. Immutable once ingested; successive filings and comparative
// periods produce multiple observations per concept.
type Observation struct {
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	PeriodEnd time.Time `json:"period_end"`
	Form      string    `json:"form"`
	FiledDate time.Time `json:"filed_date"`
	SourceID  string    `json:"source_id"`
}

// FormClass returns the class of the filing form that carried this observation.
func (o Observation) FormClass() FormClass {
	return ClassifyForm(o.Form)
}

// ConceptSeries is an ordered list of concept-name aliases for one semantic
// field, ranked by priority. Different filers tag the same real-world fact
// under different taxonomy concepts, so resolution walks the aliases in
// order and the first alias that yields any usable observation wins.
type ConceptSeries struct {
	Field   string   `yaml:"field" json:"field"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

// ObservationSet holds all observations for a company keyed by concept name.
type ObservationSet map[string][]Observation

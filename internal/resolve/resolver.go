// Package resolve picks the single most representative observation for a
// semantic field out of a company's structured filing data.
package resolve

import (
	"sort"

	"github.com/treasurylens/treasury-cli/internal/model"
)

// Resolution is the outcome of resolving one ConceptSeries: the observation
// judged current, plus the alias that yielded it.
type Resolution struct {
	Observation model.Observation
	Alias       string
}

// Resolver applies the selection policy over concept aliases. The zero value
// excludes event forms, which is correct for periodic fields; event filings
// are the probabilistic extractor's territory.
type Resolver struct {
	// AllowEventForms admits 8-K-class observations into the candidate set.
	AllowEventForms bool
}

// Resolve walks the series aliases in priority order and returns the first
// alias's best observation. Returns nil when no alias yields any usable
// observation; a missing concept is "not found", never zero.
func (r Resolver) Resolve(series model.ConceptSeries, obs model.ObservationSet) *Resolution {
	if len(obs) == 0 {
		return nil
	}

	// Concepts from different namespaces can fold to the same normalized
	// key. Merge their lists, inserting in sorted concept order so the
	// stable recency sort sees the same candidate order on every call.
	keys := make([]string, 0, len(obs))
	for concept := range obs {
		keys = append(keys, concept)
	}
	sort.Strings(keys)
	index := make(map[string][]model.Observation, len(obs))
	for _, concept := range keys {
		norm := NormalizeConcept(concept)
		index[norm] = append(index[norm], obs[concept]...)
	}

	for _, alias := range series.Aliases {
		candidates := usable(index[NormalizeConcept(alias)], r.AllowEventForms)
		if len(candidates) == 0 {
			continue
		}

		sortByRecency(candidates)

		// Prefer the most recent periodic-form observation; fall back to the
		// most recent observation of any accepted form.
		for _, o := range candidates {
			if o.FormClass() == model.FormPeriodic {
				return &Resolution{Observation: o, Alias: alias}
			}
		}
		return &Resolution{Observation: candidates[0], Alias: alias}
	}

	return nil
}

// usable filters out zero values and, unless allowed, event-form observations.
// Non-numeric values are discarded at ingestion and never reach this point.
func usable(list []model.Observation, allowEvent bool) []model.Observation {
	var out []model.Observation
	for _, o := range list {
		if o.Value == 0 {
			continue
		}
		if !allowEvent && o.FormClass() == model.FormEvent {
			continue
		}
		out = append(out, o)
	}
	return out
}

// sortByRecency orders observations by period-end descending, tie-broken by
// filed date descending. Resolution is a pure function of its inputs: the
// sort is stable so equal observations keep their ingestion order.
func sortByRecency(list []model.Observation) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].PeriodEnd.Equal(list[j].PeriodEnd) {
			return list[i].PeriodEnd.After(list[j].PeriodEnd)
		}
		return list[i].FiledDate.After(list[j].FiledDate)
	})
}

// ToClaim converts a resolution into a structured-method FactClaim.
func (res *Resolution) ToClaim(ticker, field string) *model.FactClaim {
	if res == nil {
		return nil
	}
	return &model.FactClaim{
		Ticker:     ticker,
		Field:      field,
		Value:      res.Observation.Value,
		Unit:       res.Observation.Unit,
		AsOfDate:   res.Observation.PeriodEnd,
		Method:     model.MethodStructured,
		Confidence: 1.0,
		Reasoning:  "resolved from " + res.Observation.Form + " via concept " + res.Alias,
		SourceURL:  res.Observation.SourceID,
		SourceName: "edgar",
	}
}

package resolve

import (
	"github.com/treasurylens/treasury-cli/internal/model"
)

// DetectDilution compares basic and diluted share counts resolved through
// distinct concept series. Filers that report no diluted total sometimes tag
// only the dilutive increment; the diluted count is then basic plus that
// increment. Any positive gap flags dilutive instruments: the fact being
// asserted is their presence, not their magnitude, so there is no noise
// floor.
func DetectDilution(r Resolver, basic, diluted, increment model.ConceptSeries, obs model.ObservationSet) *model.DilutionResult {
	basicRes := r.Resolve(basic, obs)
	if basicRes == nil {
		return nil
	}
	b := basicRes.Observation.Value

	var d float64
	src := r.Resolve(diluted, obs)
	if src != nil {
		d = src.Observation.Value
	} else {
		src = r.Resolve(increment, obs)
		if src == nil {
			return nil
		}
		d = b + src.Observation.Value
	}

	result := &model.DilutionResult{
		Basic:      b,
		Diluted:    d,
		Delta:      d - b,
		AsOfDate:   src.Observation.PeriodEnd,
		FilingType: src.Observation.Form,
		SourceURL:  src.Observation.SourceID,
	}
	if b > 0 {
		result.DeltaPct = (d - b) / b
	}
	result.HasDilutiveInstruments = d > b

	return result
}

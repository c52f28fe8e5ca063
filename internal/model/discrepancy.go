package model

import "time"

// Severity classifies how far external sources disagree with our record.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
)

// VerificationStatus is the outcome of independently re-checking a recorded
// value against its cited source.
type VerificationStatus string

const (
	StatusVerified        VerificationStatus = "verified"
	StatusSourceDrift     VerificationStatus = "source_drift"
	StatusSourceInvalid   VerificationStatus = "source_invalid"
	StatusSourceAvailable VerificationStatus = "source_available"
	StatusUnverified      VerificationStatus = "unverified"
)

// VerificationResult is produced by the drift verifier. It is independent of
// DiscrepancyRecord severity: drift checks apply a stricter (often
// zero-tolerance) policy than the banded discrepancy classification.
type VerificationResult struct {
	Status             VerificationStatus `json:"status"`
	SourceFetchedValue *float64           `json:"source_fetched_value,omitempty"`
	Error              string             `json:"error,omitempty"`
}

// DiscrepancyRecord captures one comparison run between our recorded value
// and claims from external sources. Records are append-only: a new run
// produces a new record for the same (ticker, field) key.
type DiscrepancyRecord struct {
	ID              string               `json:"id"`
	Ticker          string               `json:"ticker"`
	Field           string               `json:"field"`
	OurValue        float64              `json:"our_value"`
	SourceValues    map[string]FactClaim `json:"source_values"`
	MaxDeviationPct float64              `json:"max_deviation_pct"`
	Severity        Severity             `json:"severity"`
	Verification    *VerificationResult  `json:"verification,omitempty"`
	CheckedAt       time.Time            `json:"checked_at"`
}

// DilutionResult reports whether a company has share-count-diluting
// instruments outstanding, inferred from the basic vs diluted count gap.
type DilutionResult struct {
	HasDilutiveInstruments bool      `json:"has_dilutive_instruments"`
	Basic                  float64   `json:"basic"`
	Diluted                float64   `json:"diluted"`
	Delta                  float64   `json:"delta"`
	DeltaPct               float64   `json:"delta_pct"`
	AsOfDate               time.Time `json:"as_of_date"`
	FilingType             string    `json:"filing_type"`
	SourceURL              string    `json:"source_url,omitempty"`
}

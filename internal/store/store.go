// Package store persists the reconciliation system of record: the tracked
// company universe, current holdings values, and the append-only audit
// trail of discrepancies, decisions, and runs.
package store

import (
	"context"

	"github.com/treasurylens/treasury-cli/internal/model"
)

// Store defines the persistence interface for the reconciliation engine.
// Read methods return (nil, nil) when the row does not exist; only the
// orchestrator writes holdings rows.
type Store interface {
	// Companies
	UpsertCompany(ctx context.Context, c model.Company) error
	GetCompany(ctx context.Context, ticker string) (*model.Company, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)

	// Holdings (system of record, one row per ticker+field)
	GetHolding(ctx context.Context, ticker, field string) (*model.HoldingsRecord, error)
	UpsertHolding(ctx context.Context, rec model.HoldingsRecord) error
	ListHoldings(ctx context.Context, ticker string) ([]model.HoldingsRecord, error)

	// Discrepancies (append-only)
	AppendDiscrepancy(ctx context.Context, rec model.DiscrepancyRecord) error
	ListDiscrepancies(ctx context.Context, ticker string, limit int) ([]model.DiscrepancyRecord, error)

	// Audit trail (append-only)
	AppendDecision(ctx context.Context, runID string, d model.Decision) error
	ListDecisions(ctx context.Context, runID string) ([]model.Decision, error)
	SaveRun(ctx context.Context, s model.RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasurylens/treasury-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetHolding_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT ticker, field, value, unit, as_of_date, source_url, source_name, updated_at`).
		WithArgs("MSTR", model.FieldHoldings).
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetHolding(context.Background(), "MSTR", model.FieldHoldings)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertHolding(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO holdings .* ON CONFLICT`).
		WithArgs("MSTR", model.FieldHoldings, 640031.0, "BTC",
			pgxmock.AnyArg(), "https://sec.gov/doc/1", "edgar", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertHolding(context.Background(), model.HoldingsRecord{
		Ticker:     "MSTR",
		Field:      model.FieldHoldings,
		Value:      640031,
		Unit:       "BTC",
		SourceURL:  "https://sec.gov/doc/1",
		SourceName: "edgar",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCompany(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO companies .* ON CONFLICT`).
		WithArgs("MSTR", "Strategy Inc", "1050446", "BTC").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertCompany(context.Background(), model.Company{
		Ticker: "MSTR", Name: "Strategy Inc", CIK: "1050446", Asset: "BTC",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendDiscrepancy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO discrepancies`).
		WithArgs(pgxmock.AnyArg(), "MARA", model.FieldSharesOutstanding, 200000000.0,
			pgxmock.AnyArg(), 0.025, "major", nil, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendDiscrepancy(context.Background(), model.DiscrepancyRecord{
		Ticker:          "MARA",
		Field:           model.FieldSharesOutstanding,
		OurValue:        200000000,
		SourceValues:    map[string]model.FactClaim{"aggregator": {Value: 195000000}},
		MaxDeviationPct: 0.025,
		Severity:        model.SeverityMajor,
		CheckedAt:       time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	now := time.Now().UTC()
	err := s.SaveRun(context.Background(), model.RunSummary{
		RunID: "run-1", StartedAt: now, FinishedAt: now.Add(time.Minute), Processed: 3,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCompany_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT ticker, name, cik, asset FROM companies`).
		WithArgs("NOPE").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCompany(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

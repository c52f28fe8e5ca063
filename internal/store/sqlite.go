package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/treasurylens/treasury-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	ticker TEXT PRIMARY KEY,
	name   TEXT NOT NULL,
	cik    TEXT NOT NULL DEFAULT '',
	asset  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS holdings (
	ticker      TEXT NOT NULL,
	field       TEXT NOT NULL,
	value       REAL NOT NULL,
	unit        TEXT NOT NULL DEFAULT '',
	as_of_date  DATETIME,
	source_url  TEXT NOT NULL DEFAULT '',
	source_name TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL,
	PRIMARY KEY (ticker, field)
);

CREATE TABLE IF NOT EXISTS discrepancies (
	id                TEXT PRIMARY KEY,
	ticker            TEXT NOT NULL,
	field             TEXT NOT NULL,
	our_value         REAL NOT NULL,
	source_values     TEXT NOT NULL,
	max_deviation_pct REAL NOT NULL,
	severity          TEXT NOT NULL,
	verification      TEXT,
	checked_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	ticker     TEXT NOT NULL,
	field      TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	detail     TEXT NOT NULL,
	decided_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	summary     TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discrepancies_ticker ON discrepancies(ticker, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_decisions_run_id ON decisions(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertCompany(ctx context.Context, c model.Company) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (ticker, name, cik, asset) VALUES (?, ?, ?, ?)
		 ON CONFLICT (ticker) DO UPDATE SET name = excluded.name, cik = excluded.cik, asset = excluded.asset`,
		c.Ticker, c.Name, c.CIK, c.Asset,
	)
	return eris.Wrapf(err, "sqlite: upsert company %s", c.Ticker)
}

func (s *SQLiteStore) GetCompany(ctx context.Context, ticker string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT ticker, name, cik, asset FROM companies WHERE ticker = ?`, ticker)

	var c model.Company
	err := row.Scan(&c.Ticker, &c.Name, &c.CIK, &c.Asset)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company %s", ticker)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, name, cik, asset FROM companies ORDER BY ticker`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.Ticker, &c.Name, &c.CIK, &c.Asset); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) GetHolding(ctx context.Context, ticker, field string) (*model.HoldingsRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT ticker, field, value, unit, as_of_date, source_url, source_name, updated_at
		 FROM holdings WHERE ticker = ? AND field = ?`,
		ticker, field,
	)

	var rec model.HoldingsRecord
	var asOf sql.NullTime
	err := row.Scan(&rec.Ticker, &rec.Field, &rec.Value, &rec.Unit, &asOf, &rec.SourceURL, &rec.SourceName, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get holding %s/%s", ticker, field)
	}
	if asOf.Valid {
		rec.AsOfDate = asOf.Time
	}
	return &rec, nil
}

func (s *SQLiteStore) UpsertHolding(ctx context.Context, rec model.HoldingsRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO holdings (ticker, field, value, unit, as_of_date, source_url, source_name, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (ticker, field) DO UPDATE SET
			value = excluded.value, unit = excluded.unit, as_of_date = excluded.as_of_date,
			source_url = excluded.source_url, source_name = excluded.source_name, updated_at = excluded.updated_at`,
		rec.Ticker, rec.Field, rec.Value, rec.Unit, rec.AsOfDate, rec.SourceURL, rec.SourceName, rec.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert holding %s/%s", rec.Ticker, rec.Field)
}

func (s *SQLiteStore) ListHoldings(ctx context.Context, ticker string) ([]model.HoldingsRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, field, value, unit, as_of_date, source_url, source_name, updated_at
		 FROM holdings WHERE ticker = ? ORDER BY field`,
		ticker,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list holdings %s", ticker)
	}
	defer rows.Close()

	var out []model.HoldingsRecord
	for rows.Next() {
		var rec model.HoldingsRecord
		var asOf sql.NullTime
		if err := rows.Scan(&rec.Ticker, &rec.Field, &rec.Value, &rec.Unit, &asOf, &rec.SourceURL, &rec.SourceName, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan holding")
		}
		if asOf.Valid {
			rec.AsOfDate = asOf.Time
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list holdings iterate")
}

func (s *SQLiteStore) AppendDiscrepancy(ctx context.Context, rec model.DiscrepancyRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	valuesJSON, err := json.Marshal(rec.SourceValues)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal source values")
	}
	var verification any
	if rec.Verification != nil {
		vj, err := json.Marshal(rec.Verification)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal verification")
		}
		verification = string(vj)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO discrepancies (id, ticker, field, our_value, source_values, max_deviation_pct, severity, verification, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Ticker, rec.Field, rec.OurValue, string(valuesJSON),
		rec.MaxDeviationPct, string(rec.Severity), verification, rec.CheckedAt,
	)
	return eris.Wrapf(err, "sqlite: append discrepancy %s/%s", rec.Ticker, rec.Field)
}

func (s *SQLiteStore) ListDiscrepancies(ctx context.Context, ticker string, limit int) ([]model.DiscrepancyRecord, error) {
	query := `SELECT id, ticker, field, our_value, source_values, max_deviation_pct, severity, verification, checked_at
		 FROM discrepancies`
	var args []any
	if ticker != "" {
		query += ` WHERE ticker = ?`
		args = append(args, ticker)
	}
	query += ` ORDER BY checked_at DESC LIMIT ?`
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list discrepancies")
	}
	defer rows.Close()

	var out []model.DiscrepancyRecord
	for rows.Next() {
		rec, err := scanDiscrepancy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list discrepancies iterate")
}

func (s *SQLiteStore) AppendDecision(ctx context.Context, runID string, d model.Decision) error {
	detailJSON, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal decision")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, run_id, ticker, field, outcome, detail, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, d.Ticker, d.Field, string(d.Outcome), string(detailJSON), d.DecidedAt,
	)
	return eris.Wrapf(err, "sqlite: append decision %s/%s", d.Ticker, d.Field)
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, runID string) ([]model.Decision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT detail FROM decisions WHERE run_id = ? ORDER BY decided_at`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list decisions %s", runID)
	}
	defer rows.Close()

	var out []model.Decision
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		var d model.Decision
		if err := json.Unmarshal([]byte(detail), &d); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal decision")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list decisions iterate")
}

func (s *SQLiteStore) SaveRun(ctx context.Context, sum model.RunSummary) error {
	summaryJSON, err := json.Marshal(sum)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run summary")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, summary, started_at, finished_at) VALUES (?, ?, ?, ?)`,
		sum.RunID, string(summaryJSON), sum.StartedAt, sum.FinishedAt,
	)
	return eris.Wrapf(err, "sqlite: save run %s", sum.RunID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT summary FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []model.RunSummary
	for rows.Next() {
		var summary string
		if err := rows.Scan(&summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		var sum model.RunSummary
		if err := json.Unmarshal([]byte(summary), &sum); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run summary")
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanDiscrepancy(row scannable) (*model.DiscrepancyRecord, error) {
	var rec model.DiscrepancyRecord
	var valuesJSON string
	var verification sql.NullString
	var severity string

	err := row.Scan(&rec.ID, &rec.Ticker, &rec.Field, &rec.OurValue, &valuesJSON,
		&rec.MaxDeviationPct, &severity, &verification, &rec.CheckedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan discrepancy")
	}
	rec.Severity = model.Severity(severity)

	if err := json.Unmarshal([]byte(valuesJSON), &rec.SourceValues); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal source values")
	}
	if verification.Valid {
		rec.Verification = &model.VerificationResult{}
		if err := json.Unmarshal([]byte(verification.String), rec.Verification); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal verification")
		}
	}
	return &rec, nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/treasurylens/treasury-cli/internal/db"
	"github.com/treasurylens/treasury-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot paths of a batch run.
var preparedStatements = map[string]string{
	"get_holding":    `SELECT ticker, field, value, unit, as_of_date, source_url, source_name, updated_at FROM holdings WHERE ticker = $1 AND field = $2`,
	"upsert_holding": `INSERT INTO holdings (ticker, field, value, unit, as_of_date, source_url, source_name, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (ticker, field) DO UPDATE SET value = EXCLUDED.value, unit = EXCLUDED.unit, as_of_date = EXCLUDED.as_of_date, source_url = EXCLUDED.source_url, source_name = EXCLUDED.source_name, updated_at = EXCLUDED.updated_at`,
	"append_decision": `INSERT INTO decisions (id, run_id, ticker, field, outcome, detail, decided_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk imports).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// BulkImportCompanies loads the tracked universe in one COPY-backed upsert.
// Row-at-a-time UpsertCompany is fine for single additions; spreadsheet
// imports go through here.
func (s *PostgresStore) BulkImportCompanies(ctx context.Context, companies []model.Company) (int64, error) {
	rows := make([][]any, len(companies))
	for i, c := range companies {
		rows[i] = []any{c.Ticker, c.Name, c.CIK, c.Asset}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "companies",
		Columns:      []string{"ticker", "name", "cik", "asset"},
		ConflictKeys: []string{"ticker"},
	}, rows)
	return n, eris.Wrap(err, "postgres: bulk import companies")
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	ticker TEXT PRIMARY KEY,
	name   TEXT NOT NULL,
	cik    TEXT NOT NULL DEFAULT '',
	asset  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS holdings (
	ticker      TEXT NOT NULL,
	field       TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	unit        TEXT NOT NULL DEFAULT '',
	as_of_date  TIMESTAMPTZ,
	source_url  TEXT NOT NULL DEFAULT '',
	source_name TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (ticker, field)
);

CREATE TABLE IF NOT EXISTS discrepancies (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	ticker            TEXT NOT NULL,
	field             TEXT NOT NULL,
	our_value         DOUBLE PRECISION NOT NULL,
	source_values     JSONB NOT NULL,
	max_deviation_pct DOUBLE PRECISION NOT NULL,
	severity          TEXT NOT NULL,
	verification      JSONB,
	checked_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL,
	ticker     TEXT NOT NULL,
	field      TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	detail     JSONB NOT NULL,
	decided_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	summary     JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discrepancies_ticker ON discrepancies(ticker, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_decisions_run_id ON decisions(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertCompany(ctx context.Context, c model.Company) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (ticker, name, cik, asset) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (ticker) DO UPDATE SET name = EXCLUDED.name, cik = EXCLUDED.cik, asset = EXCLUDED.asset`,
		c.Ticker, c.Name, c.CIK, c.Asset,
	)
	return eris.Wrapf(err, "postgres: upsert company %s", c.Ticker)
}

func (s *PostgresStore) GetCompany(ctx context.Context, ticker string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT ticker, name, cik, asset FROM companies WHERE ticker = $1`, ticker)

	var c model.Company
	err := row.Scan(&c.Ticker, &c.Name, &c.CIK, &c.Asset)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company %s", ticker)
	}
	return &c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ticker, name, cik, asset FROM companies ORDER BY ticker`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.Ticker, &c.Name, &c.CIK, &c.Asset); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) GetHolding(ctx context.Context, ticker, field string) (*model.HoldingsRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT ticker, field, value, unit, as_of_date, source_url, source_name, updated_at
		 FROM holdings WHERE ticker = $1 AND field = $2`,
		ticker, field,
	)

	var rec model.HoldingsRecord
	var asOf *time.Time
	err := row.Scan(&rec.Ticker, &rec.Field, &rec.Value, &rec.Unit, &asOf, &rec.SourceURL, &rec.SourceName, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get holding %s/%s", ticker, field)
	}
	if asOf != nil {
		rec.AsOfDate = *asOf
	}
	return &rec, nil
}

func (s *PostgresStore) UpsertHolding(ctx context.Context, rec model.HoldingsRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO holdings (ticker, field, value, unit, as_of_date, source_url, source_name, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (ticker, field) DO UPDATE SET
			value = EXCLUDED.value, unit = EXCLUDED.unit, as_of_date = EXCLUDED.as_of_date,
			source_url = EXCLUDED.source_url, source_name = EXCLUDED.source_name, updated_at = EXCLUDED.updated_at`,
		rec.Ticker, rec.Field, rec.Value, rec.Unit, rec.AsOfDate, rec.SourceURL, rec.SourceName, rec.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert holding %s/%s", rec.Ticker, rec.Field)
}

func (s *PostgresStore) ListHoldings(ctx context.Context, ticker string) ([]model.HoldingsRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ticker, field, value, unit, as_of_date, source_url, source_name, updated_at
		 FROM holdings WHERE ticker = $1 ORDER BY field`,
		ticker,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list holdings %s", ticker)
	}
	defer rows.Close()

	var out []model.HoldingsRecord
	for rows.Next() {
		var rec model.HoldingsRecord
		var asOf *time.Time
		if err := rows.Scan(&rec.Ticker, &rec.Field, &rec.Value, &rec.Unit, &asOf, &rec.SourceURL, &rec.SourceName, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan holding")
		}
		if asOf != nil {
			rec.AsOfDate = *asOf
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list holdings iterate")
}

func (s *PostgresStore) AppendDiscrepancy(ctx context.Context, rec model.DiscrepancyRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	valuesJSON, err := json.Marshal(rec.SourceValues)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal source values")
	}
	var verification any
	if rec.Verification != nil {
		vj, err := json.Marshal(rec.Verification)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal verification")
		}
		verification = string(vj)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO discrepancies (id, ticker, field, our_value, source_values, max_deviation_pct, severity, verification, checked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.Ticker, rec.Field, rec.OurValue, string(valuesJSON),
		rec.MaxDeviationPct, string(rec.Severity), verification, rec.CheckedAt,
	)
	return eris.Wrapf(err, "postgres: append discrepancy %s/%s", rec.Ticker, rec.Field)
}

func (s *PostgresStore) ListDiscrepancies(ctx context.Context, ticker string, limit int) ([]model.DiscrepancyRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, ticker, field, our_value, source_values, max_deviation_pct, severity, verification, checked_at
		 FROM discrepancies`
	var args []any
	if ticker != "" {
		query += ` WHERE ticker = $1 ORDER BY checked_at DESC LIMIT $2`
		args = append(args, ticker, limit)
	} else {
		query += ` ORDER BY checked_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list discrepancies")
	}
	defer rows.Close()

	var out []model.DiscrepancyRecord
	for rows.Next() {
		rec, err := scanPgDiscrepancy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list discrepancies iterate")
}

func (s *PostgresStore) AppendDecision(ctx context.Context, runID string, d model.Decision) error {
	detailJSON, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal decision")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO decisions (id, run_id, ticker, field, outcome, detail, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), runID, d.Ticker, d.Field, string(d.Outcome), string(detailJSON), d.DecidedAt,
	)
	return eris.Wrapf(err, "postgres: append decision %s/%s", d.Ticker, d.Field)
}

func (s *PostgresStore) ListDecisions(ctx context.Context, runID string) ([]model.Decision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT detail FROM decisions WHERE run_id = $1 ORDER BY decided_at`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list decisions %s", runID)
	}
	defer rows.Close()

	var out []model.Decision
	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		var d model.Decision
		if err := json.Unmarshal(detail, &d); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal decision")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list decisions iterate")
}

func (s *PostgresStore) SaveRun(ctx context.Context, sum model.RunSummary) error {
	summaryJSON, err := json.Marshal(sum)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run summary")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, summary, started_at, finished_at) VALUES ($1, $2, $3, $4)`,
		sum.RunID, string(summaryJSON), sum.StartedAt, sum.FinishedAt,
	)
	return eris.Wrapf(err, "postgres: save run %s", sum.RunID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT summary FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.RunSummary
	for rows.Next() {
		var summary []byte
		if err := rows.Scan(&summary); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		var sum model.RunSummary
		if err := json.Unmarshal(summary, &sum); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run summary")
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgDiscrepancy(rows pgx.Rows) (*model.DiscrepancyRecord, error) {
	var rec model.DiscrepancyRecord
	var valuesJSON []byte
	var verification []byte
	var severity string

	err := rows.Scan(&rec.ID, &rec.Ticker, &rec.Field, &rec.OurValue, &valuesJSON,
		&rec.MaxDeviationPct, &severity, &verification, &rec.CheckedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan discrepancy")
	}
	rec.Severity = model.Severity(severity)

	if err := json.Unmarshal(valuesJSON, &rec.SourceValues); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal source values")
	}
	if len(verification) > 0 {
		rec.Verification = &model.VerificationResult{}
		if err := json.Unmarshal(verification, rec.Verification); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal verification")
		}
	}
	return &rec, nil
}

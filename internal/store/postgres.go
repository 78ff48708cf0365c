package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/scoring"
	"github.com/YourlocalJay/reddit-persona-validator/internal/core/validator"
)

const schema = `
CREATE TABLE IF NOT EXISTS validation_results (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT NOT NULL,
	account_id  TEXT NOT NULL,
	score       INT NOT NULL,
	tier        TEXT NOT NULL,
	evidence    JSONB NOT NULL,
	errors      JSONB,
	started_at  TIMESTAMPTZ NOT NULL,
	elapsed_ms  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS validation_results_account_idx
	ON validation_results (account_id, started_at DESC);
`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(dbURL string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Simple protocol keeps transaction poolers (PgBouncer) from tripping
	// over prepared statements.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) Init(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, res validator.Result) error {
	evidence, err := json.Marshal(res.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	var errs []byte
	if len(res.Errors) > 0 {
		if errs, err = json.Marshal(res.Errors); err != nil {
			return fmt.Errorf("marshal errors: %w", err)
		}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO validation_results (run_id, account_id, score, tier, evidence, errors, started_at, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, res.RunID, res.AccountID, res.Score, string(res.Tier), evidence, errs, res.StartedAt, res.ElapsedMS)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Cached(ctx context.Context, accountID string, maxAge time.Duration) (*validator.Result, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT run_id, account_id, score, tier, evidence, errors, started_at, elapsed_ms
		FROM validation_results
		WHERE account_id = $1 AND started_at >= $2
		ORDER BY started_at DESC
		LIMIT 1
	`, accountID, time.Now().Add(-maxAge))

	res, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]validator.Result, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_id, account_id, score, tier, evidence, errors, started_at, elapsed_ms
		FROM validation_results
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []validator.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanResult(row pgx.Row) (validator.Result, error) {
	var (
		res      validator.Result
		tier     string
		evidence []byte
		errs     []byte
	)
	err := row.Scan(&res.RunID, &res.AccountID, &res.Score, &tier, &evidence, &errs, &res.StartedAt, &res.ElapsedMS)
	if err != nil {
		return validator.Result{}, err
	}
	res.Tier = scoring.Tier(tier)
	if err := json.Unmarshal(evidence, &res.Evidence); err != nil {
		return validator.Result{}, fmt.Errorf("decode evidence: %w", err)
	}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &res.Errors); err != nil {
			return validator.Result{}, fmt.Errorf("decode errors: %w", err)
		}
	}
	return res, nil
}

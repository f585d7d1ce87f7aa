// internal/audit/postgres.go
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	"career-predictor/internal/common/config"
	"career-predictor/internal/common/database"
	"career-predictor/internal/common/errors"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// PostgresSink appends entries to the prediction log table.
type PostgresSink struct {
	db    *sql.DB
	table string
	pool  *database.PostgresClient
}

func NewPostgresSink(db *sql.DB, table string) (*PostgresSink, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid audit table name %q", table)
	}
	return &PostgresSink{db: db, table: table}, nil
}

// OpenPostgresSink connects to the database, creates the log table and returns
// a sink that owns the pool. The pool is closed on every failure path.
func OpenPostgresSink(ctx context.Context, cfg config.PostgresConfig, table string) (*PostgresSink, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid audit table name %q", table)
	}
	pool, err := database.ConnectPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return openOnPool(ctx, pool, table)
}

func openOnPool(ctx context.Context, pool *database.PostgresClient, table string) (*PostgresSink, error) {
	s := &PostgresSink{db: pool.DB, table: table, pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool when the sink was created by OpenPostgresSink.
func (s *PostgresSink) Close() error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

func (s *PostgresSink) Name() string { return "postgres" }

// EnsureSchema creates the log table when it does not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id            UUID PRIMARY KEY,
			request_id    TEXT,
			source        TEXT NOT NULL,
			model_version TEXT NOT NULL,
			input         JSONB NOT NULL,
			prediction    SMALLINT NOT NULL,
			probability_0 DOUBLE PRECISION NOT NULL,
			probability   DOUBLE PRECISION NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresSink) Record(ctx context.Context, entry Entry) error {
	input, err := json.Marshal(entry.Input)
	if err != nil {
		return errors.NewAuditFailedError(s.Name(), err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, request_id, source, model_version, input, prediction, probability_0, probability, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.RequestID,
		entry.Source,
		entry.ModelVersion,
		input,
		entry.Output.Prediction,
		entry.Output.Probability0,
		entry.Output.Probability,
		entry.CreatedAt,
	)
	if err != nil {
		return errors.NewAuditFailedError(s.Name(), err)
	}
	return nil
}

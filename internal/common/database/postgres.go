// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"career-predictor/internal/common/config"

	_ "github.com/lib/pq"
)

// Audit writes are short single-row inserts, so idle connections are recycled
// well before a typical server-side idle timeout.
const (
	auditConnMaxLifetime = 5 * time.Minute
	auditConnMaxIdleTime = time.Minute
)

// PostgresClient holds the connection pool backing the prediction log.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens a pool for the prediction log. sql.Open does not dial;
// use ConnectPostgres to get a verified pool.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open prediction log database %s/%s: %w", cfg.Host, cfg.Database, err)
	}

	maxIdle := cfg.MaxIdle
	if cfg.MaxConnections > 0 && maxIdle > cfg.MaxConnections {
		maxIdle = cfg.MaxConnections
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(auditConnMaxLifetime)
	db.SetConnMaxIdleTime(auditConnMaxIdleTime)

	return &PostgresClient{DB: db}, nil
}

// ConnectPostgres opens the pool and pings it. A pool that does not answer is
// closed before the error is returned.
func ConnectPostgres(ctx context.Context, cfg config.PostgresConfig) (*PostgresClient, error) {
	c, err := NewPostgres(cfg)
	if err != nil {
		return nil, err
	}
	if err := pingOrClose(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

type pingCloser interface {
	Ping(ctx context.Context) error
	Close() error
}

// pingOrClose releases c when it cannot be reached so retry loops do not
// accumulate pools.
func pingOrClose(ctx context.Context, c pingCloser) error {
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

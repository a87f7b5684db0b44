package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresExecutor implements Executor on a pgx connection pool
type PostgresExecutor struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresExecutor creates a pooled executor on the primary database
func NewPostgresExecutor(ctx context.Context, cfg PostgresConfig) (*PostgresExecutor, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresExecutor{pool: pool}, nil
}

// Query runs a statement and collects every row as a column map
func (e *PostgresExecutor) Query(ctx context.Context, sql string, args ...any) ([]Row, error) {
	rows, err := e.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}

	out := make([]Row, len(maps))
	for i, m := range maps {
		out[i] = Row(m)
	}
	return out, nil
}

// Exec runs a statement and reports the affected row count
func (e *PostgresExecutor) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := e.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Pool exposes the pool for the migration runner
func (e *PostgresExecutor) Pool() *pgxpool.Pool {
	return e.pool
}

// Name identifies the executor in health reports
func (e *PostgresExecutor) Name() string {
	return "postgres"
}

// HealthCheck checks database connectivity
func (e *PostgresExecutor) HealthCheck(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

// Close closes the connection pool
func (e *PostgresExecutor) Close() error {
	e.pool.Close()
	return nil
}

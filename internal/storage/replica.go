package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ReplicaExecutor implements Executor on a read replica through database/sql
// and the lib/pq driver. Aggregation queries are read-only and run here when
// a replica is configured.
type ReplicaExecutor struct {
	db *sql.DB
}

// NewReplicaExecutor opens and pings the replica
func NewReplicaExecutor(ctx context.Context, dsn string, maxOpenConns int) (*ReplicaExecutor, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to replica: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping replica: %w", err)
	}

	return &ReplicaExecutor{db: db}, nil
}

// Query runs a read-only statement and collects every row as a column map
func (e *ReplicaExecutor) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := e.db.QueryContext(ctx, query, adaptArgs(args)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan replica row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			// the driver reuses byte buffers between rows
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// Exec is rejected: the replica is read-only
func (e *ReplicaExecutor) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return 0, fmt.Errorf("replica executor is read-only")
}

// Name identifies the executor in health reports
func (e *ReplicaExecutor) Name() string {
	return "postgres-replica"
}

// HealthCheck checks replica connectivity
func (e *ReplicaExecutor) HealthCheck(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close closes the replica connection pool
func (e *ReplicaExecutor) Close() error {
	return e.db.Close()
}

// adaptArgs wraps slices for lib/pq, which does not encode Go slices natively
func adaptArgs(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case []string:
			out[i] = pq.Array(v)
		case []int64:
			out[i] = pq.Array(v)
		default:
			out[i] = arg
		}
	}
	return out
}

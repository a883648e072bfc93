// Package postgres is the alternative budget store, talking to Postgres
// directly through pgx. It expects this table (no migrations are run):
//
//	CREATE TABLE budgets (
//	    number  text PRIMARY KEY,
//	    date    text,
//	    company jsonb,
//	    client  jsonb NOT NULL,
//	    items   jsonb NOT NULL,
//	    total   double precision
//	);
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

// Store is a pgx-backed budget store.
type Store struct {
	pool   *pgxpool.Pool
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// New opens a connection pool for dsn. Connections are established lazily.
func New(ctx context.Context, dsn string, cb *gobreaker.CircuitBreaker, logger *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 0
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, cb: cb, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

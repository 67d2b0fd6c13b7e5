package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOption adjusts the pool configuration before it is opened.
type PoolOption func(*poolSettings)

type poolSettings struct {
	ping        bool
	maxConns    int32
	idleTimeout time.Duration
}

// WithPing verifies the pool with a round trip before it is returned.
func WithPing(ping bool) PoolOption {
	return func(s *poolSettings) { s.ping = ping }
}

// WithMaxConns caps the pool size. A single-owner ledger needs few connections.
func WithMaxConns(n int32) PoolOption {
	return func(s *poolSettings) { s.maxConns = n }
}

// NewPgxPool opens a PostgreSQL connection pool for databaseURL.
func NewPgxPool(ctx context.Context, databaseURL string, opts ...PoolOption) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL cannot be empty")
	}
	settings := poolSettings{maxConns: 8, idleTimeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(&settings)
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config from URL: %w", err)
	}
	config.MaxConns = settings.maxConns
	config.MaxConnIdleTime = settings.idleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if settings.ping {
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}

	slog.Info("PostgreSQL pool ready", slog.Int("max_conns", int(config.MaxConns)))
	return pool, nil
}

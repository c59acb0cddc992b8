package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/willibrandon/rdsprobe/internal/logger"
)

// Pool is the part of a connection pool the bootstrapper and probes use.
// *pgxpool.Pool satisfies it.
type Pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// Dialer opens a pool for resolved params. The returned pool has already
// completed one round trip.
type Dialer interface {
	Dial(ctx context.Context, params ConnParams) (Pool, error)
}

// PgxDialer opens pgx connection pools.
type PgxDialer struct{}

// Dial creates a PostgreSQL connection pool and validates it with a ping.
func (PgxDialer) Dial(ctx context.Context, params ConnParams) (Pool, error) {
	logger.Debug("Creating new database connection pool",
		"host", params.Host,
		"port", params.Port,
		"database", params.Database,
		"user", params.User,
		"sslmode", params.SSLMode,
		"proxied", params.Proxied,
		"auth_mode", params.AuthMode,
	)

	poolConfig, err := pgxpool.ParseConfig(params.ConnString())
	if err != nil {
		// pgconn masks the password in parse errors.
		return nil, &ConfigurationError{Reason: "invalid connection parameters", Err: err}
	}

	// One invocation, one short-lived pool. Issued tokens expire after 15
	// minutes, so no connection outlives one.
	poolConfig.MaxConns = int32(params.PoolMaxConns)
	poolConfig.MinConns = 0
	poolConfig.MaxConnLifetime = 14 * time.Minute
	poolConfig.MaxConnIdleTime = time.Minute
	if params.ApplicationName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = params.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Database connection pool created successfully",
		"host", params.Host,
		"port", params.Port,
		"database", params.Database,
	)

	return pool, nil
}

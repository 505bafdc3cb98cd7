package database

import (
	"context"
	"fmt"
	"time"

	"event-booking/pkg/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName = "event-booking"

	// A unit of work holds ticket rows until it ends; a session stuck inside
	// one would block every reservation on those tickets.
	idleInTransactionTimeout = 30 * time.Second
)

// PgxIface is the slice of the pool the repositories depend on.
// *pgxpool.Pool satisfies it.
type PgxIface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var _ PgxIface = (*pgxpool.Pool)(nil)

// Execer is satisfied by the pool and by pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SetLockTimeout bounds row-lock waits for the rest of tx only.
func SetLockTimeout(ctx context.Context, tx Execer, timeout time.Duration) error {
	value := fmt.Sprintf("%dms", timeout.Milliseconds())
	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, value); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	return nil
}

// DSN builds a keyword/value connection string from config.
func DSN(config utils.DatabaseConfig) string {
	return fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%s sslmode=disable",
		config.User, config.Password, config.Name, config.Host, config.Port)
}

// PoolConfig parses config and sizes the pool. Every booking holds one
// connection for its whole unit of work, so MaxConns caps concurrent bookings.
func PoolConfig(config utils.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(DSN(config))
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	poolConfig.MaxConns = config.MaxConns
	poolConfig.MinConns = min(5, config.MaxConns)
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute
	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second

	params := poolConfig.ConnConfig.RuntimeParams
	params["application_name"] = applicationName
	params["idle_in_transaction_session_timeout"] = fmt.Sprintf("%d", idleInTransactionTimeout.Milliseconds())
	return poolConfig, nil
}

// InitDB opens the pool and pings it.
func InitDB(ctx context.Context, config utils.DatabaseConfig) (PgxIface, error) {
	poolConfig, err := PoolConfig(config)
	if err != nil {
		return nil, err
	}
	return Open(ctx, poolConfig)
}

// Open creates a pool from a parsed config. Integration tests use it with a URL DSN.
func Open(ctx context.Context, poolConfig *pgxpool.Config) (PgxIface, error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database failed: %w", err)
	}

	return pool, nil
}

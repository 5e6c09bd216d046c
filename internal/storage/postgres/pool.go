// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conn is a connection leased from a Pool. Release must be called exactly
// once when the caller is done with it.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Release()
}

// Pool hands out connections for the duration of one operation.
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Close()
}

// PoolConfig controls the pgx connection pool.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// TLSSkipVerify forces TLS (sslmode=require) unless the DSN or PGSSLMODE
	// picks a mode, and stops verifying the server certificate.
	TLSSkipVerify bool
}

// PgxPool adapts *pgxpool.Pool to Pool.
type PgxPool struct {
	pool *pgxpool.Pool
}

// NewPool creates a pgx pool using the provided config. No connection is
// opened until the first Acquire.
func NewPool(ctx context.Context, cfg PoolConfig) (*PgxPool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	dsn := cfg.DSN
	if cfg.TLSSkipVerify {
		dsn = requireTLS(dsn)
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.TLSSkipVerify {
		skipVerify(poolCfg.ConnConfig)
	}
	poolCfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PgxPool{pool: pool}, nil
}

// Acquire leases a connection from the pool.
func (p *PgxPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

// Close releases the underlying pool resources.
func (p *PgxPool) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

func skipVerify(cfg *pgx.ConnConfig) {
	relax := func(t *tls.Config) {
		if t == nil {
			return
		}
		t.InsecureSkipVerify = true //nolint:gosec // managed Postgres hosts present self-signed certificates
		t.VerifyPeerCertificate = nil
		t.VerifyConnection = nil
	}
	relax(cfg.TLSConfig)
	for _, fb := range cfg.Fallbacks {
		relax(fb.TLSConfig)
	}
}

// requireTLS adds sslmode=require to a DSN that leaves the mode unset, so the
// pool never drops to plaintext the way the libpq default "prefer" can.
func requireTLS(dsn string) string {
	if strings.Contains(dsn, "sslmode") || os.Getenv("PGSSLMODE") != "" {
		return dsn
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		q.Set("sslmode", "require")
		u.RawQuery = q.Encode()
		return u.String()
	}
	return strings.TrimSpace(dsn + " sslmode=require")
}

// internal/vault/postgres.go
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so tests can run against pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresKV keeps every key as one row of a JSONB table.
type PostgresKV struct {
	pool  DBPool
	table string
	log   *zap.Logger
	now   func() time.Time
}

// NewPostgresKV verifies the connection and creates the table if needed.
func NewPostgresKV(ctx context.Context, pool DBPool, table string, logger *zap.Logger) (*PostgresKV, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("vault: failed to ping database: %w", err)
	}
	kv := &PostgresKV{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
		log:   logger.Named("vault.postgres"),
		now:   time.Now,
	}
	if err := kv.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return kv, nil
}

func (p *PostgresKV) ensureSchema(ctx context.Context) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, p.table)
	if _, err := p.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("vault: create table %s: %w", p.table, err)
	}
	return nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, p.table), key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("vault: get %q: %w", key, err)
	}
	return value, nil
}

func (p *PostgresKV) Put(ctx context.Context, key string, value []byte) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`, p.table)
	tag, err := p.pool.Exec(ctx, sql, key, json.RawMessage(value), p.now().UTC())
	if err != nil {
		return fmt.Errorf("vault: put %q: %w", key, err)
	}
	p.log.Debug("Stored key.", zap.String("key", key), zap.Int64("rows", tag.RowsAffected()))
	return nil
}

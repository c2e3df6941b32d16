package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/david/bill-finder/internal/db"
	"github.com/david/bill-finder/internal/logger"
)

// Postgres stores values in the kv_store table created by the embedded migrations.
type Postgres struct {
	pool  *pgxpool.Pool
	owned bool
}

// NewPostgres connects, migrates, and owns the resulting pool. Migration
// progress is logged to log, which may be nil.
func NewPostgres(ctx context.Context, dbURL string, log *zap.Logger) (*Postgres, error) {
	pool, err := db.Connect(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	log = logger.OrNop(log)
	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	log.Info("postgres storage ready")
	return &Postgres{pool: pool, owned: true}, nil
}

// NewPostgresFromPool wraps an existing, already migrated pool.
func NewPostgresFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, "SELECT value FROM kv_store WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM kv_store WHERE key = $1", key); err != nil {
		return fmt.Errorf("postgres delete %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.owned {
		p.pool.Close()
	}
	return nil
}

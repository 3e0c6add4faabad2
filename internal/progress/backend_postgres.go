package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores the slot as one row of progress_slots.
type PostgresBackend struct {
	pool *pgxpool.Pool
	key  string
}

// NewPostgresBackend creates a PostgreSQL-backed slot. The progress_slots
// table must exist (see database.Migrate).
func NewPostgresBackend(pool *pgxpool.Pool, key string) (*PostgresBackend, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if key == "" {
		return nil, fmt.Errorf("storage key is required")
	}
	return &PostgresBackend{pool: pool, key: key}, nil
}

func (b *PostgresBackend) Load(ctx context.Context) ([]byte, error) {
	var payload string
	err := b.pool.QueryRow(ctx,
		`SELECT payload::text FROM progress_slots WHERE slot_key = $1`,
		b.key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress slot: %w", err)
	}
	return []byte(payload), nil
}

func (b *PostgresBackend) Save(ctx context.Context, data []byte) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO progress_slots (slot_key, payload, updated_at)
		 VALUES ($1, $2::jsonb, NOW())
		 ON CONFLICT (slot_key)
		 DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		b.key,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("save progress slot: %w", err)
	}
	return nil
}

func (b *PostgresBackend) HealthCheck(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

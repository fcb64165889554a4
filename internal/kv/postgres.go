package kv

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresStore keeps the key space in a single kv_entry table. SetIfAbsent
// maps onto INSERT ... ON CONFLICT DO NOTHING, which gives the conditional
// write the redemption path requires.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	query := `SELECT value FROM kv_entry WHERE key = $1`

	var value string
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "getting key %q", key)
	}
	return value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO kv_entry (key, value, updated_at) VALUES ($1, $2, $3)
	          ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query, key, value, time.Now())
	return errors.Wrapf(err, "setting key %q", key)
}

func (s *PostgresStore) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	query := `INSERT INTO kv_entry (key, value, updated_at) VALUES ($1, $2, $3)
	          ON CONFLICT (key) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, key, value, time.Now())
	if err != nil {
		return false, errors.Wrapf(err, "conditionally setting key %q", key)
	}
	return tag.RowsAffected() == 1, nil
}

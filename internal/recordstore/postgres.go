package recordstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var QueryTimeoutDuration = time.Second * 5

// PostgresBackend keeps each collection document in one jsonb row.
type PostgresBackend struct {
	db *pgxpool.Pool
}

func NewPostgresBackend(db *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := b.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS record_collections (
  name       TEXT PRIMARY KEY,
  data       JSONB NOT NULL DEFAULT '[]'::jsonb,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	return err
}

func (b *PostgresBackend) Load(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var data []byte
	err := b.db.QueryRow(ctx, `SELECT data FROM record_collections WHERE name = $1`, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *PostgresBackend) Save(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := b.db.Exec(ctx, `
INSERT INTO record_collections (name, data, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (name) DO UPDATE
SET data = EXCLUDED.data,
    updated_at = now()`, name, string(data))
	return err
}

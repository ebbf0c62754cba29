package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore keeps the token in the credentials table, one row per slot name.
type PostgresStore struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
	// Name is the row key; it defaults to Key.
	Name string
}

// NewPostgresStore creates a PostgresStore for the canonical slot.
// db must be a valid *sql.DB connected to a PostgreSQL instance with the
// schema from db.InitPostgres applied.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db, Name: Key}
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.DB.QueryRowContext(ctx,
		`SELECT token FROM credentials WHERE name = $1`,
		s.Name,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return token, nil
}

// Save implements Store. The row is inserted or overwritten and its
// updated_at stamp refreshed.
func (s *PostgresStore) Save(ctx context.Context, token string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO credentials (name, token, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at
	`, s.Name, token, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM credentials WHERE name = $1`, s.Name); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

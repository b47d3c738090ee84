package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	createCollectionsSQL = `
		CREATE TABLE IF NOT EXISTS collections (
			name       TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	loadCollectionSQL = "SELECT data FROM collections WHERE name = $1"

	upsertCollectionSQL = `
		INSERT INTO collections (name, data, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
)

// PostgresBackend stores each collection document as one JSONB row, so a
// batch is a single transaction.
type PostgresBackend struct {
	db *sqlx.DB
}

// NewPostgresBackend connects to the database
func NewPostgresBackend(databaseURL string) (*PostgresBackend, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresBackend{db: db}, nil
}

// NewPostgresBackendWithDB wraps an existing connection
func NewPostgresBackendWithDB(db *sqlx.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// Migrate creates the collections table
func (b *PostgresBackend) Migrate(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, createCollectionsSQL); err != nil {
		return fmt.Errorf("failed to create collections table: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Load(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := b.db.GetContext(ctx, &data, loadCollectionSQL, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *PostgresBackend) SaveBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, doc := range docs {
		// lib/pq would send []byte as bytea
		if _, err := tx.ExecContext(ctx, upsertCollectionSQL, doc.Name, string(doc.Data)); err != nil {
			return fmt.Errorf("failed to save %s: %w", doc.Name, err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection
func (b *PostgresBackend) Close() error {
	return b.db.Close()
}

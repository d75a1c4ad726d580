package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps property tables in a PostgreSQL database
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and creates the schema
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &PostgresStore{Pool: pool}
	if err := db.Initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

// Initialize sets up the database tables
func (db *PostgresStore) Initialize(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS property_tables (
            design_id TEXT PRIMARY KEY,
            mode TEXT NOT NULL,
            category TEXT NOT NULL DEFAULT '',
            max_rows INTEGER NOT NULL DEFAULT 0,
            content TEXT NOT NULL,
            escape_quotes BOOLEAN NOT NULL DEFAULT FALSE,
            row_count INTEGER NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
        ALTER TABLE property_tables ADD COLUMN IF NOT EXISTS category TEXT NOT NULL DEFAULT '';
        ALTER TABLE property_tables ADD COLUMN IF NOT EXISTS max_rows INTEGER NOT NULL DEFAULT 0
    `)
	if err != nil {
		return fmt.Errorf("failed to create property_tables table: %w", err)
	}
	return nil
}

// GetTable loads the table stored for designID
func (db *PostgresStore) GetTable(ctx context.Context, designID string) (*StoredTable, error) {
	t := StoredTable{DesignID: designID}
	err := db.Pool.QueryRow(ctx, `
        SELECT mode, category, max_rows, content, escape_quotes, row_count, updated_at
        FROM property_tables
        WHERE design_id = $1
    `, designID).Scan(&t.Mode, &t.Category, &t.MaxRows, &t.Content, &t.EscapeQuotes, &t.Rows, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query property table: %w", err)
	}
	return &t, nil
}

// PutTable inserts or replaces the table for t.DesignID
func (db *PostgresStore) PutTable(ctx context.Context, t *StoredTable) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO property_tables (design_id, mode, category, max_rows, content, escape_quotes, row_count, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, now())
        ON CONFLICT (design_id) DO UPDATE SET
            mode = EXCLUDED.mode,
            category = EXCLUDED.category,
            max_rows = EXCLUDED.max_rows,
            content = EXCLUDED.content,
            escape_quotes = EXCLUDED.escape_quotes,
            row_count = EXCLUDED.row_count,
            updated_at = EXCLUDED.updated_at
    `, t.DesignID, t.Mode, t.Category, t.MaxRows, t.Content, t.EscapeQuotes, t.Rows)
	if err != nil {
		return fmt.Errorf("failed to store property table: %w", err)
	}
	return nil
}

// DeleteTable removes the table for designID, if any
func (db *PostgresStore) DeleteTable(ctx context.Context, designID string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM property_tables WHERE design_id = $1`, designID); err != nil {
		return fmt.Errorf("failed to delete property table: %w", err)
	}
	return nil
}

// ListDesigns returns every design id with a stored table
func (db *PostgresStore) ListDesigns(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `SELECT design_id FROM property_tables ORDER BY design_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query designs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return ids, nil
}

// Close closes the database connection
func (db *PostgresStore) Close() error {
	db.Pool.Close()
	return nil
}

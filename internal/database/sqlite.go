package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS property_tables (
    design_id     TEXT PRIMARY KEY,
    mode          TEXT NOT NULL,
    category      TEXT NOT NULL DEFAULT '',
    max_rows      INTEGER NOT NULL DEFAULT 0,
    content       TEXT NOT NULL,
    escape_quotes INTEGER NOT NULL DEFAULT 0,
    row_count     INTEGER NOT NULL,
    updated_at    TEXT NOT NULL
);
`

// sqliteAddedColumns are added to databases created before they existed.
var sqliteAddedColumns = []struct{ name, decl string }{
	{"category", "TEXT NOT NULL DEFAULT ''"},
	{"max_rows", "INTEGER NOT NULL DEFAULT 0"},
}

// SQLiteStore keeps property tables in a single embedded database file
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the database at path and runs migrations
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	if err := addMissingColumns(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func addMissingColumns(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info('property_tables')`)
	if err != nil {
		return err
	}
	have := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		have[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, c := range sqliteAddedColumns {
		if have[c.name] {
			continue
		}
		if _, err := db.ExecContext(ctx, `ALTER TABLE property_tables ADD COLUMN `+c.name+` `+c.decl); err != nil {
			return fmt.Errorf("add column %s: %w", c.name, err)
		}
	}
	return nil
}

// Path returns the database file location
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) GetTable(ctx context.Context, designID string) (*StoredTable, error) {
	t := StoredTable{DesignID: designID}
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT mode, category, max_rows, content, escape_quotes, row_count, updated_at FROM property_tables WHERE design_id = ?`,
		designID,
	).Scan(&t.Mode, &t.Category, &t.MaxRows, &t.Content, &t.EscapeQuotes, &t.Rows, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("get table: bad timestamp %q: %w", updated, err)
	}
	return &t, nil
}

func (s *SQLiteStore) PutTable(ctx context.Context, t *StoredTable) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO property_tables (design_id, mode, category, max_rows, content, escape_quotes, row_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(design_id) DO UPDATE SET
		     mode = excluded.mode,
		     category = excluded.category,
		     max_rows = excluded.max_rows,
		     content = excluded.content,
		     escape_quotes = excluded.escape_quotes,
		     row_count = excluded.row_count,
		     updated_at = excluded.updated_at`,
		t.DesignID, t.Mode, t.Category, t.MaxRows, t.Content, t.EscapeQuotes, t.Rows, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteTable(ctx context.Context, designID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM property_tables WHERE design_id = ?`, designID); err != nil {
		return fmt.Errorf("delete table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDesigns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT design_id FROM property_tables ORDER BY design_id`)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan design: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

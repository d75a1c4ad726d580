package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when no table is stored for a design
var ErrNotFound = errors.New("table not found")

// StoredTable is a rendered property table persisted for one design.
// Mode, Category, MaxRows and EscapeQuotes record the settings it was built with.
type StoredTable struct {
	DesignID     string
	Mode         string
	Category     string
	MaxRows      int
	Content      string
	EscapeQuotes bool
	Rows         int
	UpdatedAt    time.Time
}

// TableStore persists rendered property tables keyed by design id
type TableStore interface {
	GetTable(ctx context.Context, designID string) (*StoredTable, error)
	PutTable(ctx context.Context, t *StoredTable) error
	DeleteTable(ctx context.Context, designID string) error
	ListDesigns(ctx context.Context) ([]string, error)
	Close() error
}

// Open connects to the store named by dsn. postgres:// and postgresql://
// URLs select PostgresStore, "sqlite:" prefixed paths or bare paths select
// SQLiteStore.
func Open(ctx context.Context, dsn string) (TableStore, error) {
	switch {
	case dsn == "":
		return nil, fmt.Errorf("open store: empty dsn")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStore(ctx, dsn)
	default:
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite:"))
	}
}

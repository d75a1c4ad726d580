// Package table renders property records as a fixed-schema CSV-like table.
//
// The text form is one header line "id,name,attr_1,...,attr_k" followed by one
// line per element: the object id, the name wrapped in double quotes, and one
// cell per attribute holding a number or nothing. Embedded double quotes in
// names are written as-is unless Config.EscapeQuotes is set, in which case
// they are doubled as in RFC 4180. Names containing line breaks are not
// representable.
package table

import (
	"regexp"
	"strconv"
	"strings"

	"design-props-rag/internal/models"
)

const (
	// DefaultCategory is the property category the attributes are read from.
	DefaultCategory = "Dimensions"
	// DefaultMaxRows caps the number of data rows.
	DefaultMaxRows = 512
)

// DefaultAttributes are the dimensional attributes tabulated by default.
var DefaultAttributes = []string{"Width", "Height", "Length", "Area", "Volume"}

// Config selects the columns and size of a table.
type Config struct {
	Category     string   `yaml:"category"`
	Attributes   []string `yaml:"attributes"`
	MaxRows      int      `yaml:"max_rows"`
	EscapeQuotes bool     `yaml:"escape_quotes"`
}

// DefaultConfig returns the dimensional table configuration.
func DefaultConfig() Config {
	return Config{
		Category:   DefaultCategory,
		Attributes: append([]string(nil), DefaultAttributes...),
		MaxRows:    DefaultMaxRows,
	}
}

// Cell is an optional numeric value.
type Cell struct {
	Value float64
	Valid bool
}

// Num returns a present cell.
func Num(v float64) Cell {
	return Cell{Value: v, Valid: true}
}

func (c Cell) String() string {
	if !c.Valid {
		return ""
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

// Row is one element of the table.
type Row struct {
	ID    int64
	Name  string
	Cells []Cell
}

// Table is a header plus rows aligned to it.
type Table struct {
	Header []string
	Rows   []Row
	// Malformed counts attribute values that were present but not numeric.
	Malformed int

	escapeQuotes bool
}

// leading decimal number, the way a lenient float parser reads "12.5 m^2"
var numberPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// ParseValue normalizes an upstream value into a numeric cell. Absent and
// empty values give an invalid cell; malformed reports present text that has
// no leading number.
func ParseValue(v models.Value) (cell Cell, malformed bool) {
	if !v.Valid {
		return Cell{}, false
	}
	s := strings.TrimSpace(v.Text)
	if s == "" {
		return Cell{}, false
	}
	m := numberPrefix.FindString(s)
	if m == "" {
		return Cell{}, true
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return Cell{}, true
	}
	return Num(f), false
}

// Index maps object ids to records. The first record wins on duplicates.
func Index(records []models.PropertyRecord) map[int64]*models.PropertyRecord {
	idx := make(map[int64]*models.PropertyRecord, len(records))
	for i := range records {
		if _, ok := idx[records[i].ObjectID]; !ok {
			idx[records[i].ObjectID] = &records[i]
		}
	}
	return idx
}

// Project renders records in their given order, truncated to cfg.MaxRows.
func Project(records []models.PropertyRecord, cfg Config) *Table {
	t := newTable(cfg)
	n := capRows(len(records), cfg.MaxRows)
	t.Rows = make([]Row, 0, n)
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, t.project(&records[i], records[i].ObjectID, cfg))
	}
	return t
}

// ProjectLeaves renders one row per leaf id, in id order, looking the
// properties up in index. A leaf without a record gets an empty name and
// empty cells.
func ProjectLeaves(ids []int64, index map[int64]*models.PropertyRecord, cfg Config) *Table {
	t := newTable(cfg)
	n := capRows(len(ids), cfg.MaxRows)
	t.Rows = make([]Row, 0, n)
	for _, id := range ids[:n] {
		t.Rows = append(t.Rows, t.project(index[id], id, cfg))
	}
	return t
}

// Header returns the column names a table built with cfg carries.
func Header(cfg Config) []string {
	header := make([]string, 0, len(cfg.Attributes)+2)
	header = append(header, "id", "name")
	return append(header, cfg.Attributes...)
}

func newTable(cfg Config) *Table {
	return &Table{Header: Header(cfg), escapeQuotes: cfg.EscapeQuotes}
}

func capRows(n, max int) int {
	if max > 0 && n > max {
		return max
	}
	return n
}

func (t *Table) project(rec *models.PropertyRecord, id int64, cfg Config) Row {
	row := Row{ID: id, Cells: make([]Cell, len(cfg.Attributes))}
	if rec == nil {
		return row
	}
	row.Name = rec.Name
	for i, attr := range cfg.Attributes {
		v, ok := rec.Lookup(cfg.Category, attr)
		if !ok {
			continue
		}
		cell, malformed := ParseValue(v)
		if malformed {
			t.Malformed++
		}
		row.Cells[i] = cell
	}
	return row
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Records returns the header followed by every row as plain string fields.
// Names are unquoted.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, append([]string(nil), t.Header...))
	for _, r := range t.Rows {
		rec := make([]string, 0, len(r.Cells)+2)
		rec = append(rec, strconv.FormatInt(r.ID, 10), r.Name)
		for _, c := range r.Cells {
			rec = append(rec, c.String())
		}
		out = append(out, rec)
	}
	return out
}

// String returns the table text, rows separated by "\n" and no trailing newline.
func (t *Table) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Header, ","))
	for _, r := range t.Rows {
		b.WriteByte('\n')
		b.WriteString(strconv.FormatInt(r.ID, 10))
		b.WriteString(`,"`)
		if t.escapeQuotes {
			b.WriteString(strings.ReplaceAll(r.Name, `"`, `""`))
		} else {
			b.WriteString(r.Name)
		}
		b.WriteByte('"')
		for _, c := range r.Cells {
			b.WriteByte(',')
			b.WriteString(c.String())
		}
	}
	return b.String()
}

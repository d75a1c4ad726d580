package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse rebuilds a Table from the text written by String. escapeQuotes must
// match the setting the text was written with.
//
// Names are located by position rather than by quote scanning: the id ends at
// the first comma and the attribute cells occupy the last k fields, so names
// with embedded commas or unescaped quotes still parse back exactly.
func Parse(text string, escapeQuotes bool) (*Table, error) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, fmt.Errorf("parse table: missing header")
	}
	header := strings.Split(lines[0], ",")
	if len(header) < 2 || header[0] != "id" || header[1] != "name" {
		return nil, fmt.Errorf("parse table: header must start with id,name: %q", lines[0])
	}
	k := len(header) - 2

	t := &Table{Header: header, Rows: make([]Row, 0, len(lines)-1), escapeQuotes: escapeQuotes}
	for n, line := range lines[1:] {
		row, err := parseRow(line, k, escapeQuotes)
		if err != nil {
			return nil, fmt.Errorf("parse table: line %d: %w", n+2, err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func parseRow(line string, k int, escapeQuotes bool) (Row, error) {
	idText, rest, ok := strings.Cut(line, ",")
	if !ok {
		return Row{}, fmt.Errorf("missing name field")
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("bad id %q: %w", idText, err)
	}

	cells := make([]Cell, k)
	for i := k - 1; i >= 0; i-- {
		cut := strings.LastIndexByte(rest, ',')
		if cut < 0 {
			return Row{}, fmt.Errorf("want %d attribute cells", k)
		}
		field := rest[cut+1:]
		rest = rest[:cut]
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Row{}, fmt.Errorf("bad cell %q: %w", field, err)
		}
		cells[i] = Num(v)
	}

	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return Row{}, fmt.Errorf("name must be quoted: %s", rest)
	}
	name := rest[1 : len(rest)-1]
	if escapeQuotes {
		name = strings.ReplaceAll(name, `""`, `"`)
	}
	return Row{ID: id, Name: name, Cells: cells}, nil
}

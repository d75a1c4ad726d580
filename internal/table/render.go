package table

import (
	"fmt"
	"io"
	"strconv"

	pretty "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Format selects how Render writes a table.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatASCII    Format = "ascii"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatASCII, FormatMarkdown:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown table format %q (use csv, ascii or markdown)", s)
	}
}

// Render writes t to w in the given format.
func Render(w io.Writer, t *Table, f Format) error {
	if f == FormatCSV || f == "" {
		_, err := io.WriteString(w, t.String()+"\n")
		return err
	}

	tw := pretty.NewWriter()
	header := make(pretty.Row, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, r := range t.Rows {
		row := make(pretty.Row, 0, len(r.Cells)+2)
		row = append(row, strconv.FormatInt(r.ID, 10), r.Name)
		for _, c := range r.Cells {
			row = append(row, c.String())
		}
		tw.AppendRow(row)
	}

	cols := make([]pretty.ColumnConfig, 0, len(t.Header))
	cols = append(cols, pretty.ColumnConfig{Number: 1, Align: text.AlignRight})
	for i := 3; i <= len(t.Header); i++ {
		cols = append(cols, pretty.ColumnConfig{Number: i, Align: text.AlignRight})
	}
	tw.SetColumnConfigs(cols)

	var out string
	switch f {
	case FormatMarkdown:
		out = tw.RenderMarkdown()
	default:
		tw.SetStyle(pretty.StyleLight)
		out = tw.Render()
	}
	_, err := io.WriteString(w, out+"\n")
	return err
}

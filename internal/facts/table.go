// Package facts parses HTML tables into a small tabular form and renders
// them back to styled markup.
package facts

import (
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// ErrNoTable is returned when a document contains no <table>.
var ErrNoTable = eris.New("facts: no table found")

// Table is a rectangular grid of cell text with optional row keys.
type Table struct {
	Columns []string
	// Index names the column promoted to row keys by SetIndex; empty when
	// the table has no key column.
	Index string
	Keys  []string
	Rows  [][]string
}

// ParseFirstTable reads an HTML document and returns its first table.
//
// Header rows are the rows of <thead>, or when there is no <thead>, the
// leading rows made only of <th> cells. The last header row names the
// columns; tables without one get positional names "0", "1", ... Short
// rows are padded with empty cells to the table width.
func ParseFirstTable(r io.Reader) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "facts: parse html")
	}

	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return nil, ErrNoTable
	}

	var header []string
	var rows [][]string

	thead := tbl.Find("thead tr")
	thead.Each(func(_ int, tr *goquery.Selection) {
		header = cells(tr)
	})

	inHeader := thead.Length() == 0
	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.ParentsFiltered("thead").Length() > 0 {
			return
		}
		// Nested tables belong to their own cell.
		if tr.ParentsFiltered("table").First().Get(0) != tbl.Get(0) {
			return
		}
		if inHeader && tr.Find("td").Length() == 0 && tr.Find("th").Length() > 0 {
			header = cells(tr)
			return
		}
		inHeader = false
		rows = append(rows, cells(tr))
	})

	width := len(header)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return nil, eris.Wrap(ErrNoTable, "facts: table has no cells")
	}

	columns := make([]string, width)
	for i := range columns {
		if i < len(header) {
			columns[i] = header[i]
		} else {
			columns[i] = strconv.Itoa(i)
		}
	}

	for i, row := range rows {
		for len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

func cells(tr *goquery.Selection) []string {
	var out []string
	tr.ChildrenFiltered("th, td").Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.TrimSpace(c.Text()))
	})
	return out
}

// Rename replaces every column name. The number of names must match the
// number of columns.
func (t *Table) Rename(names ...string) error {
	if len(names) != len(t.Columns) {
		return eris.Errorf("facts: length mismatch: table has %d columns, got %d names", len(t.Columns), len(names))
	}
	t.Columns = append([]string(nil), names...)
	return nil
}

// SetIndex promotes column name to the row keys and removes it from the
// data columns.
func (t *Table) SetIndex(name string) error {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return eris.Errorf("facts: no column %q", name)
	}

	keys := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		keys[i] = row[idx]
		t.Rows[i] = append(append([]string(nil), row[:idx]...), row[idx+1:]...)
	}
	t.Columns = append(append([]string(nil), t.Columns[:idx]...), t.Columns[idx+1:]...)
	t.Index = name
	t.Keys = keys
	return nil
}

package cli

import (
	"bufio"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const tablePadding = 2

// table renders aligned columns for human-readable output. Cells are measured
// by display width so umlauts and emoji line up.
type table struct {
	headers []string
	rows    [][]string
	// maxWidth truncates cells wider than it; zero disables truncation.
	maxWidth int
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) cell(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if t.maxWidth > 0 && runewidth.StringWidth(value) > t.maxWidth {
		return runewidth.Truncate(value, t.maxWidth, "…")
	}
	return value
}

func (t *table) write(out io.Writer) error {
	cols := len(t.headers)
	for _, row := range t.rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return nil
	}

	widths := make([]int, cols)
	all := append([][]string{t.headers}, t.rows...)
	for _, row := range all {
		for i, value := range row {
			if w := runewidth.StringWidth(t.cell(value)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	w := bufio.NewWriter(out)
	for r, row := range all {
		if r == 0 && len(t.headers) == 0 {
			continue
		}
		var line strings.Builder
		for i := 0; i < cols; i++ {
			value := ""
			if i < len(row) {
				value = t.cell(row[i])
			}
			line.WriteString(value)
			if i < cols-1 {
				line.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(value)+tablePadding))
			}
		}
		if _, err := w.WriteString(strings.TrimRight(line.String(), " ") + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

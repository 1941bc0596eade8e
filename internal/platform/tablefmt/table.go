// Package tablefmt prints pipe-delimited tables padded by terminal display
// width, so names with accents or wide characters stay aligned.
package tablefmt

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const minColumnWidth = 3

// Table accumulates rows for one render.
type Table struct {
	header []string
	rows   [][]string
	// MaxCellWidth truncates longer cells with "…"; 0 disables truncation.
	MaxCellWidth int
}

func New(header ...string) *Table {
	return &Table{header: header}
}

// Append adds a row. Missing cells render empty; extra cells widen the table.
func (t *Table) Append(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *Table) Len() int { return len(t.rows) }

func (t *Table) cell(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "|", "/"))
	if t.MaxCellWidth > 0 && runewidth.StringWidth(s) > t.MaxCellWidth {
		s = runewidth.Truncate(s, t.MaxCellWidth, "…")
	}
	return s
}

// Lines renders the header, a dash separator and every row.
func (t *Table) Lines() []string {
	table := make([][]string, 0, len(t.rows)+1)
	for _, row := range append([][]string{t.header}, t.rows...) {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = t.cell(c)
		}
		table = append(table, cells)
	}

	colCount := 0
	for _, row := range table {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	widths := make([]int, colCount)
	for i := range widths {
		widths[i] = minColumnWidth
	}
	for _, row := range table {
		for i, c := range row {
			if w := runewidth.StringWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(table)+1)
	for i, row := range table {
		lines = append(lines, renderRow(row, widths))
		if i == 0 {
			lines = append(lines, renderSeparator(widths))
		}
	}
	return lines
}

func renderRow(row []string, widths []int) string {
	var sb strings.Builder
	sb.WriteString("|")
	for j, w := range widths {
		content := ""
		if j < len(row) {
			content = row[j]
		}
		sb.WriteString(" ")
		sb.WriteString(runewidth.FillRight(content, w))
		sb.WriteString(" |")
	}
	return sb.String()
}

func renderSeparator(widths []int) string {
	var sb strings.Builder
	sb.WriteString("|")
	for _, w := range widths {
		sb.WriteString(" ")
		sb.WriteString(strings.Repeat("-", w))
		sb.WriteString(" |")
	}
	return sb.String()
}

// Render writes the table to w, one line per row.
func (t *Table) Render(w io.Writer) error {
	_, err := io.WriteString(w, strings.Join(t.Lines(), "\n")+"\n")
	return err
}

package tablefmt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestTable_Lines(t *testing.T) {
	tbl := New("NPI", "Name")
	tbl.Append("1", "Ana")
	tbl.Append("22", "José Núñez")

	got := tbl.Lines()
	want := []string{
		"| NPI | Name       |",
		"| --- | ---------- |",
		"| 1   | Ana        |",
		"| 22  | José Núñez |",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(got), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d:\nexpected %q\ngot      %q", i, want[i], got[i])
		}
	}
}

func TestTable_WideCharactersAligned(t *testing.T) {
	tbl := New("Name", "X")
	tbl.Append("田中", "1")
	tbl.Append("Li", "2")

	lines := tbl.Lines()
	width := runewidth.StringWidth(lines[0])
	for i, l := range lines {
		if w := runewidth.StringWidth(l); w != width {
			t.Errorf("line %d has display width %d, want %d: %q", i, w, width, l)
		}
	}
}

func TestTable_RaggedRowsAndPipes(t *testing.T) {
	tbl := New("A")
	tbl.Append("x", "extra")
	tbl.Append("a|b")

	lines := tbl.Lines()
	if lines[0] != "| A   |       |" {
		t.Errorf("expected header padded to two columns, got %q", lines[0])
	}
	if lines[3] != "| a/b |       |" {
		t.Errorf("expected pipe replaced, got %q", lines[3])
	}
}

func TestTable_Truncate(t *testing.T) {
	tbl := New("Address")
	tbl.MaxCellWidth = 10
	tbl.Append("General Hospital, Springfield")

	lines := tbl.Lines()
	if !strings.Contains(lines[2], "…") {
		t.Errorf("expected truncated cell, got %q", lines[2])
	}
	if w := runewidth.StringWidth(lines[2]); w != 14 {
		t.Errorf("expected display width 14, got %d (%q)", w, lines[2])
	}
}

func TestTable_Render(t *testing.T) {
	tbl := New("A")
	tbl.Append("1")
	var buf bytes.Buffer
	if err := tbl.Render(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "| A   |\n| --- |\n| 1   |\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
	if tbl.Len() != 1 {
		t.Errorf("expected 1 row, got %d", tbl.Len())
	}
}

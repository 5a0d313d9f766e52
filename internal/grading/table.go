// Package grading holds the grade point table and the credit-weighted
// average arithmetic (SGPA and CGPA) that every planner computation builds on.
// All functions are pure and safe for concurrent use.
package grading

import (
	"fmt"
	"strings"
)

// Symbol is a letter-grade label such as "A-".
type Symbol string

const (
	GradeA      Symbol = "A"
	GradeAMinus Symbol = "A-"
	GradeB      Symbol = "B"
	GradeBMinus Symbol = "B-"
	GradeC      Symbol = "C"
	GradeCMinus Symbol = "C-"
	GradeD      Symbol = "D"
	GradeDMinus Symbol = "D-"
	GradeE      Symbol = "E"
	GradeEMinus Symbol = "E-"
	GradeF      Symbol = "F"
	// GradeS marks satisfactory (ungraded) credit. Courses carrying it are
	// left out of every average.
	GradeS Symbol = "S"
)

// ShortAlphabet is the five-grade search space used for quick plans.
var ShortAlphabet = []Symbol{GradeA, GradeAMinus, GradeB, GradeBMinus, GradeC}

// ExtendedAlphabet covers every passing grade from A down to E-.
var ExtendedAlphabet = []Symbol{
	GradeA, GradeAMinus, GradeB, GradeBMinus, GradeC,
	GradeCMinus, GradeD, GradeDMinus, GradeE, GradeEMinus,
}

// Entry pairs a symbol with its point value.
type Entry struct {
	Symbol Symbol
	Points float64
}

// Table is an immutable, ordered mapping from grade symbol to points.
type Table struct {
	order  []Symbol
	points map[Symbol]float64
}

// NewTable builds a Table from entries, preserving their order. Duplicate
// symbols and negative point values are rejected.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{
		order:  make([]Symbol, 0, len(entries)),
		points: make(map[Symbol]float64, len(entries)),
	}
	for _, e := range entries {
		if e.Symbol == "" {
			return nil, fmt.Errorf("grade table: empty symbol")
		}
		if e.Points < 0 {
			return nil, fmt.Errorf("grade table: negative points %v for %q", e.Points, e.Symbol)
		}
		if _, dup := t.points[e.Symbol]; dup {
			return nil, fmt.Errorf("grade table: duplicate symbol %q", e.Symbol)
		}
		t.order = append(t.order, e.Symbol)
		t.points[e.Symbol] = e.Points
	}
	return t, nil
}

var defaultTable = mustTable([]Entry{
	{GradeA, 10},
	{GradeAMinus, 9},
	{GradeB, 8},
	{GradeBMinus, 7},
	{GradeC, 6},
	{GradeCMinus, 5},
	{GradeD, 4},
	{GradeDMinus, 3},
	{GradeE, 2},
	{GradeEMinus, 1},
	{GradeF, 0},
	{GradeS, 0},
})

// DefaultTable returns the process-wide ten-point table. The returned value
// is shared and must be treated as read-only.
func DefaultTable() *Table {
	return defaultTable
}

func mustTable(entries []Entry) *Table {
	t, err := NewTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// Points returns the point value for sym.
func (t *Table) Points(sym Symbol) (float64, bool) {
	p, ok := t.points[sym]
	return p, ok
}

// Has reports whether sym is in the table.
func (t *Table) Has(sym Symbol) bool {
	_, ok := t.points[sym]
	return ok
}

// Symbols returns the table's symbols in declaration order.
func (t *Table) Symbols() []Symbol {
	out := make([]Symbol, len(t.order))
	copy(out, t.order)
	return out
}

// ParseAlphabet turns a comma separated list such as "A,A-,B" into symbols,
// checking each one against the table. An empty string yields nil.
func (t *Table) ParseAlphabet(raw string) ([]Symbol, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]Symbol, 0, len(parts))
	for _, p := range parts {
		sym := Symbol(strings.ToUpper(strings.TrimSpace(p)))
		if !t.Has(sym) {
			return nil, fmt.Errorf("unknown grade %q", p)
		}
		out = append(out, sym)
	}
	return out, nil
}

// ValidateAlphabet checks that every symbol in alphabet has a table entry.
func (t *Table) ValidateAlphabet(alphabet []Symbol) error {
	for _, sym := range alphabet {
		if !t.Has(sym) {
			return fmt.Errorf("unknown grade %q", sym)
		}
	}
	return nil
}

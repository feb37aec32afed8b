// Package sqlbuild translates a core.Filter into a parameterized WHERE clause.
// Only fixed SQL fragments are concatenated; every user value travels as an
// argument.
package sqlbuild

import (
	"strconv"
	"strings"

	"haushaltsbuch/internal/core"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Contains renders a case-sensitive substring test of column against the
	// bind parameter ph.
	Contains func(column, ph string) string
}

var (
	SQLite = Dialect{
		Placeholder: func(int) string { return "?" },
		Contains:    func(column, ph string) string { return "instr(" + column + ", " + ph + ") > 0" },
	}
	Postgres = Dialect{
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		Contains:    func(column, ph string) string { return "strpos(" + column + ", " + ph + ") > 0" },
	}
)

// Where builds "owner_id = ? AND ..." for the filter. The owner condition is
// always present.
func (d Dialect) Where(owner int64, f core.Filter) (string, []any) {
	b := &builder{d: d}
	b.add("owner_id = %s", owner)
	if f.Category != "" {
		b.add("category = %s", f.Category)
	}
	if f.Query != "" {
		ph := b.bind(f.Query)
		b.conds = append(b.conds, d.Contains("note", ph))
	}
	if f.DateFrom != "" {
		b.add("entry_date >= %s", f.DateFrom)
	}
	if f.DateTo != "" {
		b.add("entry_date <= %s", f.DateTo)
	}
	switch f.Type {
	case core.Income:
		b.conds = append(b.conds, "amount_cents > 0")
	case core.Expense:
		b.conds = append(b.conds, "amount_cents < 0")
	}
	return strings.Join(b.conds, " AND "), b.args
}

type builder struct {
	d     Dialect
	conds []string
	args  []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

// add appends a condition whose single %s is replaced by the bound placeholder.
func (b *builder) add(format string, v any) {
	ph := b.bind(v)
	b.conds = append(b.conds, strings.Replace(format, "%s", ph, 1))
}

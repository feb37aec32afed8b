package core

// Totals aggregates a filtered entry set. Expense is zero or negative.
type Totals struct {
	Income  Money
	Expense Money
	Balance Money
}

// ComputeTotals sums the given entries.
func ComputeTotals(entries []Entry) Totals {
	var t Totals
	for _, e := range entries {
		t.Add(e.Amount)
	}
	return t
}

// Add folds one signed amount into the totals.
func (t *Totals) Add(m Money) {
	switch {
	case m.Cents > 0:
		t.Income.Cents += m.Cents
	case m.Cents < 0:
		t.Expense.Cents += m.Cents
	}
	t.Balance.Cents = t.Income.Cents + t.Expense.Cents
}

// NewTotals builds totals from income and expense sums.
func NewTotals(income, expense int64) Totals {
	return Totals{
		Income:  Money{Cents: income},
		Expense: Money{Cents: expense},
		Balance: Money{Cents: income + expense},
	}
}

// ExportRow is one line of an export, with the amount already formatted.
type ExportRow struct {
	Date     string
	Category string
	Amount   string
	Note     string
}

// ExportHeader is the fixed column order of exports.
var ExportHeader = []string{"Datum", "Kategorie", "Betrag", "Notiz"}

// Strings returns the row in export column order.
func (r ExportRow) Strings() []string {
	return []string{r.Date, r.Category, r.Amount, r.Note}
}

// ToExportRows formats entries for export, preserving order.
func ToExportRows(entries []Entry) []ExportRow {
	rows := make([]ExportRow, len(entries))
	for i, e := range entries {
		rows[i] = ExportRow{
			Date:     e.Date,
			Category: e.Category,
			Amount:   e.Amount.Format(),
			Note:     e.Note,
		}
	}
	return rows
}

// DefaultCategories is used when no category file is configured.
var DefaultCategories = []string{
	"Lebensmittel",
	"Wohnen",
	"Mobilität",
	"Freizeit",
	"Gesundheit",
	"Gehalt",
	"Sonstiges",
}

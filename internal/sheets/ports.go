package sheets

import (
	"context"
	"strconv"
)

// RowWriter replaces the content of one spreadsheet tab.
type RowWriter interface {
	// ReplaceRows writes header followed by rows into tab, creating the tab
	// when missing and removing whatever was there before.
	ReplaceRows(ctx context.Context, tab string, header []string, rows [][]string) error
}

// TabName is the tab holding the mirror of one owner's ledger.
func TabName(owner int64) string {
	return "ledger-" + strconv.FormatInt(owner, 10)
}

// Package export serialises export rows as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"haushaltsbuch/internal/core"
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// CSVSeparator is ";" because "," is the decimal mark in amounts.
	CSVSeparator = ';'

	sheetName = "Buchungen"
)

// utf8BOM makes spreadsheet programs detect the encoding of umlauts.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Filename returns e.g. "haushaltsbuch_20240501.csv".
func Filename(ext string, now time.Time) string {
	return fmt.Sprintf("haushaltsbuch_%s.%s", now.Format("20060102"), ext)
}

// WriteCSV writes the header and rows in export column order.
func WriteCSV(w io.Writer, rows []core.ExportRow) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = CSVSeparator
	if err := cw.Write(core.ExportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(cells(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with a single sheet. Amounts stay formatted
// text so the sheet shows exactly what the CSV carries.
func WriteXLSX(w io.Writer, rows []core.ExportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := setRow(f, 1, core.ExportHeader); err != nil {
		return err
	}
	for i, r := range rows {
		if err := setRow(f, i+2, cells(r)); err != nil {
			return err
		}
	}

	widths := map[string]float64{"A": 12, "B": 18, "C": 14, "D": 40}
	for col, width := range widths {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &vals); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

// formulaPrefixes start a formula in spreadsheet programs.
const formulaPrefixes = "=+-@\t\r"

// cells returns r in column order. User text a spreadsheet would evaluate gets
// a leading apostrophe; amounts are our own formatting and pass through.
func cells(r core.ExportRow) []string {
	return []string{literal(r.Date), literal(r.Category), r.Amount, literal(r.Note)}
}

func literal(s string) string {
	if s != "" && strings.ContainsRune(formulaPrefixes, rune(s[0])) {
		return "'" + s
	}
	return s
}

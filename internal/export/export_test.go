package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"haushaltsbuch/internal/core"
)

var sampleRows = []core.ExportRow{
	{Date: "2024-05-02", Category: "Gehalt", Amount: "2.500,00", Note: ""},
	{Date: "2024-05-01", Category: "Lebensmittel", Amount: "-45,50", Note: "Markt; Bäcker"},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRows); err != nil {
		t.Fatalf("WriteCSV error: %v", err)
	}

	data := buf.Bytes()
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Fatal("missing UTF-8 BOM")
	}

	r := csv.NewReader(bytes.NewReader(data[len(utf8BOM):]))
	r.Comma = CSVSeparator
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	want := [][]string{
		{"Datum", "Kategorie", "Betrag", "Notiz"},
		{"2024-05-02", "Gehalt", "2.500,00", ""},
		{"2024-05-01", "Lebensmittel", "-45,50", "Markt; Bäcker"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteCSV_EmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV error: %v", err)
	}
	if got := buf.String()[len(utf8BOM):]; got != "Datum;Kategorie;Betrag;Notiz\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleRows); err != nil {
		t.Fatalf("WriteXLSX error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3: %v", len(rows), rows)
	}
	if diff := cmp.Diff(core.ExportHeader, rows[0]); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
	// Trailing empty cells are not reported by GetRows.
	if len(rows[1]) < 3 || rows[1][2] != "2.500,00" {
		t.Fatalf("unexpected first row: %v", rows[1])
	}
	if diff := cmp.Diff(sampleRows[1].Strings(), rows[2]); diff != "" {
		t.Fatalf("second row mismatch (-want +got):\n%s", diff)
	}
}

func TestFilename(t *testing.T) {
	got := Filename("csv", time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC))
	if got != "haushaltsbuch_20240501.csv" {
		t.Fatalf("Filename = %q", got)
	}
}

func TestFormulaTextIsExportedLiterally(t *testing.T) {
	rows := []core.ExportRow{
		{Date: "2024-05-03", Category: "@Freizeit", Amount: "-10,00", Note: "=HYPERLINK(\"http://x\")"},
		{Date: "2024-05-04", Category: "Sonstiges", Amount: "5,00", Note: "+49 Anruf"},
		{Date: "2024-05-05", Category: "Sonstiges", Amount: "-1,00", Note: "-minus"},
		{Date: "2024-05-06", Category: "Sonstiges", Amount: "1,00", Note: "harmlos = ok"},
	}
	want := [][]string{
		{"2024-05-03", "'@Freizeit", "-10,00", "'=HYPERLINK(\"http://x\")"},
		{"2024-05-04", "Sonstiges", "5,00", "'+49 Anruf"},
		{"2024-05-05", "Sonstiges", "-1,00", "'-minus"},
		{"2024-05-06", "Sonstiges", "1,00", "harmlos = ok"},
	}

	var csvBuf bytes.Buffer
	if err := WriteCSV(&csvBuf, rows); err != nil {
		t.Fatalf("WriteCSV error: %v", err)
	}
	r := csv.NewReader(bytes.NewReader(csvBuf.Bytes()[len(utf8BOM):]))
	r.Comma = CSVSeparator
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if diff := cmp.Diff(want, records[1:]); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}

	var xlsxBuf bytes.Buffer
	if err := WriteXLSX(&xlsxBuf, rows); err != nil {
		t.Fatalf("WriteXLSX error: %v", err)
	}
	f, err := excelize.OpenReader(&xlsxBuf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	got, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if diff := cmp.Diff(want, got[1:]); diff != "" {
		t.Fatalf("xlsx mismatch (-want +got):\n%s", diff)
	}
}

package memory

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSinkReplacesTab(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, ok := s.Tab("ledger-1"); ok {
		t.Fatal("unexpected tab before first write")
	}

	header := []string{"Datum", "Betrag"}
	if err := s.ReplaceRows(ctx, "ledger-1", header, [][]string{{"2024-01-01", "1,00"}, {"2024-01-02", "2,00"}}); err != nil {
		t.Fatalf("ReplaceRows error: %v", err)
	}
	if err := s.ReplaceRows(ctx, "ledger-1", header, [][]string{{"2024-01-03", "-3,00"}}); err != nil {
		t.Fatalf("ReplaceRows error: %v", err)
	}

	got, ok := s.Tab("ledger-1")
	if !ok {
		t.Fatal("tab missing")
	}
	want := [][]string{{"Datum", "Betrag"}, {"2024-01-03", "-3,00"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tab mismatch (-want +got):\n%s", diff)
	}
	if s.Writes() != 2 {
		t.Fatalf("writes = %d, want 2", s.Writes())
	}

	// Returned grids are copies.
	got[1][0] = "x"
	again, _ := s.Tab("ledger-1")
	if again[1][0] != "2024-01-03" {
		t.Fatal("Tab must return a copy")
	}
}

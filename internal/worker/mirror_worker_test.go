package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/log"
	sheetsmem "haushaltsbuch/internal/sheets/memory"
	"haushaltsbuch/internal/storage/memory"
)

type failingWriter struct{}

func (failingWriter) ReplaceRows(context.Context, string, []string, [][]string) error {
	return errors.New("quota exceeded")
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: &bytes.Buffer{}})
}

func TestHandleEvent_MirrorsOwnerLedger(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.Insert(ctx, 1, core.EntryInput{Date: "2024-05-01", Category: "Wohnen", Amount: core.Money{Cents: -80000}, Note: "Miete"})
	store.Insert(ctx, 1, core.EntryInput{Date: "2024-05-02", Category: "Gehalt", Amount: core.Money{Cents: 250000}})
	store.Insert(ctx, 2, core.EntryInput{Date: "2024-05-03", Category: "Freizeit", Amount: core.Money{Cents: -1000}})

	sink := sheetsmem.New()
	w := NewMirrorWorker(store, sink, quietLogger())

	if err := w.HandleEvent(ctx, core.NewLedgerEvent(core.EventEntryCreated, 1, 2)); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}

	got, ok := sink.Tab("ledger-1")
	if !ok {
		t.Fatal("tab ledger-1 not written")
	}
	want := [][]string{
		{"Datum", "Kategorie", "Betrag", "Notiz"},
		{"2024-05-02", "Gehalt", "2.500,00", ""},
		{"2024-05-01", "Wohnen", "-800,00", "Miete"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tab mismatch (-want +got):\n%s", diff)
	}
	if _, ok := sink.Tab("ledger-2"); ok {
		t.Fatal("other owners must not be mirrored")
	}
}

func TestHandleEvent_ClearedLedgerLeavesHeader(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.Insert(ctx, 1, core.EntryInput{Date: "2024-05-01", Category: "Wohnen", Amount: core.Money{Cents: -1}})
	sink := sheetsmem.New()
	w := NewMirrorWorker(store, sink, quietLogger())

	w.HandleEvent(ctx, core.NewLedgerEvent(core.EventEntryCreated, 1, 1))
	store.Clear(ctx, 1)
	if err := w.HandleEvent(ctx, core.NewLedgerEvent(core.EventLedgerCleared, 1, 0)); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}

	got, _ := sink.Tab("ledger-1")
	if len(got) != 1 {
		t.Fatalf("expected header only, got %v", got)
	}
}

func TestHandleEvent_WriterErrorIsReturned(t *testing.T) {
	w := NewMirrorWorker(memory.New(), failingWriter{}, quietLogger())
	err := w.HandleEvent(context.Background(), core.NewLedgerEvent(core.EventEntryDeleted, 1, 1))
	if err == nil {
		t.Fatal("expected error so the delivery is requeued")
	}
}

func TestMirrorAll_WritesEveryOwner(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for owner := int64(1); owner <= 5; owner++ {
		store.Insert(ctx, owner, core.EntryInput{Date: "2024-06-01", Category: "Freizeit", Amount: core.Money{Cents: -owner * 100}})
	}
	sink := sheetsmem.New()
	w := NewMirrorWorker(store, sink, quietLogger())

	if err := w.MirrorAll(ctx, []int64{1, 2, 3, 4, 5}, 2); err != nil {
		t.Fatalf("MirrorAll error: %v", err)
	}
	if sink.Writes() != 5 {
		t.Fatalf("Writes() = %d, want 5", sink.Writes())
	}
	got, _ := sink.Tab("ledger-3")
	if len(got) != 2 || got[1][2] != "-3,00" {
		t.Fatalf("ledger-3 = %v", got)
	}
}

func TestMirrorAll_StopsOnError(t *testing.T) {
	w := NewMirrorWorker(memory.New(), failingWriter{}, quietLogger())
	if err := w.MirrorAll(context.Background(), []int64{1, 2}, 0); err == nil {
		t.Fatal("expected writer error")
	}
}

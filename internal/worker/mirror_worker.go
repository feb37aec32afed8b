package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/sheets"
	"haushaltsbuch/internal/storage"
)

// MirrorWorker keeps one spreadsheet tab per owner in step with the ledger.
// Events only say which owner changed; the worker re-reads that owner's
// entries and rewrites the whole tab, so redelivered or reordered events are
// harmless.
type MirrorWorker struct {
	store  storage.EntryStore
	writer sheets.RowWriter
	logger *log.Logger
}

func NewMirrorWorker(store storage.EntryStore, writer sheets.RowWriter, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &MirrorWorker{
		store:  store,
		writer: writer,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent mirrors the ledger of ev.Owner.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev core.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventKind, string(ev.Kind), log.FieldOwner, ev.Owner, log.FieldEntryID, ev.EntryID)
	return w.Mirror(ctx, ev.Owner)
}

// Mirror rewrites the tab of owner from the current ledger.
func (w *MirrorWorker) Mirror(ctx context.Context, owner int64) error {
	entries, err := w.store.Fetch(ctx, owner, core.Filter{})
	if err != nil {
		return fmt.Errorf("fetch ledger of owner %d: %w", owner, err)
	}

	exported := core.ToExportRows(entries)
	rows := make([][]string, len(exported))
	for i, r := range exported {
		rows[i] = r.Strings()
	}

	tab := sheets.TabName(owner)
	if err := w.writer.ReplaceRows(ctx, tab, core.ExportHeader, rows); err != nil {
		return fmt.Errorf("mirror owner %d to %s: %w", owner, tab, err)
	}

	w.logger.InfoContext(ctx, "Ledger mirrored",
		log.FieldOwner, owner, log.FieldCount, len(rows), log.FieldOperation, log.OpMirror)
	return nil
}

// MirrorAll rewrites the tab of every owner, at most limit at a time. It is
// run on start-up to catch events published while the worker was down.
func (w *MirrorWorker) MirrorAll(ctx context.Context, owners []int64, limit int) error {
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, owner := range owners {
		g.Go(func() error {
			return w.Mirror(gctx, owner)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Start-up mirror complete", log.FieldCount, len(owners))
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/storage"
)

// Publisher receives ledger change notifications. Failures are logged and
// never undo the mutation.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
}

// EntryForm holds the raw fields of an add or edit submission.
type EntryForm struct {
	Date     string
	Category string
	Amount   string
	Note     string
	Type     string
}

// EntryFormFromValues reads the form fields by their HTML names.
func EntryFormFromValues(v url.Values) EntryForm {
	return EntryForm{
		Date:     v.Get("date"),
		Category: v.Get("category"),
		Amount:   v.Get("amount"),
		Note:     v.Get("note"),
		Type:     v.Get("type"),
	}
}

// EntryFormFromEntry pre-fills an edit form. The amount is shown as a positive
// magnitude because the sign travels in Type.
func EntryFormFromEntry(e core.Entry) EntryForm {
	return EntryForm{
		Date:     e.Date,
		Category: e.Category,
		Amount:   e.Amount.Abs().Format(),
		Note:     e.Note,
		Type:     string(e.Type()),
	}
}

// Listing is what the overview page renders.
type Listing struct {
	Entries []core.Entry
	Totals  core.Totals
	Filter  core.Filter
	Params  core.FilterParams
}

type LedgerOptions struct {
	Categories       []string
	StrictCategories bool
}

// LedgerService validates submissions and drives an EntryStore. Every call is
// scoped to the owner passed in.
type LedgerService struct {
	store      storage.EntryStore
	publisher  Publisher
	categories []string
	strict     bool
	logger     *log.Logger
}

func NewLedgerService(store storage.EntryStore, publisher Publisher, opts LedgerOptions, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	cats := opts.Categories
	if len(cats) == 0 {
		cats = core.DefaultCategories
	}
	return &LedgerService{
		store:      store,
		publisher:  publisher,
		categories: cats,
		strict:     opts.StrictCategories,
		logger:     logger.WithComponent(log.ComponentLedger),
	}
}

// Categories returns the configured category enumeration.
func (s *LedgerService) Categories() []string {
	return slices.Clone(s.categories)
}

// AddEntry validates form and inserts the entry. A rejected form yields
// core.ValidationErrors listing every problem.
func (s *LedgerService) AddEntry(ctx context.Context, owner int64, form EntryForm) (int64, error) {
	in, err := s.validate(form)
	if err != nil {
		return 0, err
	}
	id, err := s.store.Insert(ctx, owner, in)
	if err != nil {
		return 0, fmt.Errorf("add entry: %w", err)
	}

	s.logger.InfoContext(ctx, "Entry added",
		log.NewFields().WithEntry(owner, id, in.Amount.Cents, in.Category).WithOperation(log.OpCreate).ToSlice()...)
	s.publish(ctx, core.NewLedgerEvent(core.EventEntryCreated, owner, id))
	return id, nil
}

// UpdateEntry replaces the entry. core.ErrNotFound is returned for ids the
// owner does not have, before the form is looked at.
func (s *LedgerService) UpdateEntry(ctx context.Context, owner, id int64, form EntryForm) error {
	if _, err := s.GetEntry(ctx, owner, id); err != nil {
		return err
	}
	in, err := s.validate(form)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, owner, id, in); err != nil {
		return fmt.Errorf("update entry %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Entry updated",
		log.NewFields().WithEntry(owner, id, in.Amount.Cents, in.Category).WithOperation(log.OpUpdate).ToSlice()...)
	s.publish(ctx, core.NewLedgerEvent(core.EventEntryUpdated, owner, id))
	return nil
}

func (s *LedgerService) DeleteEntry(ctx context.Context, owner, id int64) error {
	if _, err := s.GetEntry(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, owner, id); err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Entry deleted", log.FieldOwner, owner, log.FieldEntryID, id)
	s.publish(ctx, core.NewLedgerEvent(core.EventEntryDeleted, owner, id))
	return nil
}

// ClearAll removes every entry of owner and reports how many were deleted.
func (s *LedgerService) ClearAll(ctx context.Context, owner int64) (int64, error) {
	n, err := s.store.Clear(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("clear ledger: %w", err)
	}

	s.logger.WarnContext(ctx, "Ledger cleared", log.FieldOwner, owner, log.FieldCount, n)
	s.publish(ctx, core.NewLedgerEvent(core.EventLedgerCleared, owner, 0))
	return n, nil
}

func (s *LedgerService) GetEntry(ctx context.Context, owner, id int64) (core.Entry, error) {
	e, err := s.store.Get(ctx, owner, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Entry{}, core.ErrNotFound
		}
		return core.Entry{}, fmt.Errorf("get entry %d: %w", id, err)
	}
	return e, nil
}

// ListEntries applies the raw filter parameters. Totals are computed from the
// returned rows so both always describe the same set.
func (s *LedgerService) ListEntries(ctx context.Context, owner int64, raw url.Values) (Listing, error) {
	f, params := core.BuildFilter(raw)
	entries, err := s.store.Fetch(ctx, owner, f)
	if err != nil {
		return Listing{}, fmt.Errorf("list entries: %w", err)
	}
	return Listing{
		Entries: entries,
		Totals:  core.ComputeTotals(entries),
		Filter:  f,
		Params:  params,
	}, nil
}

// ExportRows returns the filtered entries as (date, category, amount, note)
// with the amount already formatted.
func (s *LedgerService) ExportRows(ctx context.Context, owner int64, raw url.Values) ([]core.ExportRow, error) {
	f, _ := core.BuildFilter(raw)
	entries, err := s.store.Fetch(ctx, owner, f)
	if err != nil {
		return nil, fmt.Errorf("export entries: %w", err)
	}
	return core.ToExportRows(entries), nil
}

// Totals aggregates in the store without loading rows.
func (s *LedgerService) Totals(ctx context.Context, owner int64, raw url.Values) (core.Totals, error) {
	f, _ := core.BuildFilter(raw)
	t, err := s.store.Totals(ctx, owner, f)
	if err != nil {
		return core.Totals{}, fmt.Errorf("totals: %w", err)
	}
	return t, nil
}

func (s *LedgerService) validate(form EntryForm) (core.EntryInput, error) {
	var errs core.ValidationErrors

	date := strings.TrimSpace(form.Date)
	if date == "" {
		errs = append(errs, core.ValidationError{Field: "date", Kind: core.ErrMissingField, Message: "Bitte ein Datum angeben."})
	}

	category := strings.TrimSpace(form.Category)
	switch {
	case category == "":
		errs = append(errs, core.ValidationError{Field: "category", Kind: core.ErrMissingField, Message: "Bitte eine Kategorie wählen."})
	case s.strict && !slices.Contains(s.categories, category):
		errs = append(errs, core.ValidationError{Field: "category", Kind: core.ErrInvalidCategory, Message: "Unbekannte Kategorie."})
	}

	amount, err := core.ParseAmount(form.Amount)
	if err != nil || amount.Cents <= 0 {
		errs = append(errs, core.ValidationError{Field: "amount", Kind: core.ErrInvalidAmount, Message: "Bitte einen gültigen Betrag größer als 0 eingeben."})
	}

	typ, ok := core.ParseEntryType(form.Type)
	if !ok {
		errs = append(errs, core.ValidationError{Field: "type", Kind: core.ErrInvalidType, Message: "Bitte Einnahme oder Ausgabe wählen."})
	}

	if len(errs) > 0 {
		return core.EntryInput{}, errs
	}
	if typ == core.Expense {
		amount = amount.Neg()
	}
	return core.EntryInput{
		Date:     date,
		Category: category,
		Amount:   amount,
		Note:     strings.TrimSpace(form.Note),
	}, nil
}

func (s *LedgerService) publish(ctx context.Context, ev core.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventKind, string(ev.Kind), log.FieldOwner, ev.Owner, log.FieldError, err)
	}
}

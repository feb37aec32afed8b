package storage

import (
	"context"

	"haushaltsbuch/internal/core"
)

// Ports implemented by every backend (memory, sqlite, postgres).
type (
	// EntryStore persists ledger entries. Every method is scoped to the
	// owner passed by the caller; ids belonging to other owners behave as
	// if they did not exist.
	EntryStore interface {
		Insert(ctx context.Context, owner int64, in core.EntryInput) (int64, error)
		// Fetch returns matching entries newest first.
		Fetch(ctx context.Context, owner int64, f core.Filter) ([]core.Entry, error)
		// Get returns core.ErrNotFound for absent and foreign ids alike.
		Get(ctx context.Context, owner, id int64) (core.Entry, error)
		// Update and Delete are no-ops for ids the owner does not own.
		Update(ctx context.Context, owner, id int64, in core.EntryInput) error
		Delete(ctx context.Context, owner, id int64) error
		Clear(ctx context.Context, owner int64) (int64, error)
		Totals(ctx context.Context, owner int64, f core.Filter) (core.Totals, error)
	}

	UserStore interface {
		// CreateUser returns ErrEmailTaken when the e-mail is registered.
		CreateUser(ctx context.Context, email, passwordHash string, isAdmin bool) (core.User, error)
		UserByEmail(ctx context.Context, email string) (core.User, error)
		UserByID(ctx context.Context, id int64) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
		SetAdmin(ctx context.Context, id int64, isAdmin bool) error
	}

	Store interface {
		EntryStore
		UserStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// Package storagetest holds the behaviour every storage.Store backend must
// share. Backends call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/storage"
)

// Run exercises s against the shared contract. Each subtest gets a fresh
// store from newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("insert and fetch newest first", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		first := mustInsert(t, s, 1, entry("2024-01-05", "Wohnen", -80000, "Miete Januar"))
		second := mustInsert(t, s, 1, entry("2024-01-01", "Gehalt", 250000, "Lohn"))

		got, err := s.Fetch(ctx, 1, core.Filter{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, second, got[0].ID)
		assert.Equal(t, first, got[1].ID)
		assert.Equal(t, int64(1), got[0].Owner)
		assert.Equal(t, "Lohn", got[0].Note)
		assert.False(t, got[0].CreatedAt.IsZero())
	})

	t.Run("fetch empty ledger returns empty slice", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Fetch(context.Background(), 1, core.Filter{})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("filters", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		mustInsert(t, s, 1, entry("2024-01-05", "Wohnen", -80000, "Miete Januar"))
		mustInsert(t, s, 1, entry("2024-02-05", "Wohnen", -80000, "Miete Februar"))
		mustInsert(t, s, 1, entry("2024-02-10", "Lebensmittel", -4550, "Wocheneinkauf"))
		mustInsert(t, s, 1, entry("2024-02-28", "Gehalt", 250000, "Lohn"))

		cases := []struct {
			name   string
			filter core.Filter
			want   []string
		}{
			{"category", core.Filter{Category: "Wohnen"}, []string{"Miete Februar", "Miete Januar"}},
			{"note substring", core.Filter{Query: "Miete"}, []string{"Miete Februar", "Miete Januar"}},
			{"note is case sensitive", core.Filter{Query: "miete"}, nil},
			{"date range inclusive", core.Filter{DateFrom: "2024-02-05", DateTo: "2024-02-10"}, []string{"Wocheneinkauf", "Miete Februar"}},
			{"income only", core.Filter{Type: core.Income}, []string{"Lohn"}},
			{"expense in february", core.Filter{Type: core.Expense, DateFrom: "2024-02-01"}, []string{"Wocheneinkauf", "Miete Februar"}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got, err := s.Fetch(ctx, 1, tc.filter)
				require.NoError(t, err)
				assert.Equal(t, tc.want, notes(got))
			})
		}
	})

	t.Run("totals match fetched rows", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		mustInsert(t, s, 1, entry("2024-01-05", "Wohnen", -80000, "Miete"))
		mustInsert(t, s, 1, entry("2024-01-10", "Lebensmittel", -4550, "Einkauf"))
		mustInsert(t, s, 1, entry("2024-01-28", "Gehalt", 250000, "Lohn"))
		mustInsert(t, s, 2, entry("2024-01-28", "Gehalt", 999900, "fremd"))

		for _, f := range []core.Filter{{}, {Type: core.Expense}, {Category: "Gehalt"}, {Query: "nichts"}} {
			totals, err := s.Totals(ctx, 1, f)
			require.NoError(t, err)
			rows, err := s.Fetch(ctx, 1, f)
			require.NoError(t, err)
			assert.Equal(t, core.ComputeTotals(rows), totals, "filter %+v", f)
		}

		totals, err := s.Totals(ctx, 1, core.Filter{})
		require.NoError(t, err)
		assert.Equal(t, core.NewTotals(250000, -84550), totals)
	})

	t.Run("owner isolation", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		mine := mustInsert(t, s, 1, entry("2024-03-01", "Freizeit", -1200, "Kino"))
		theirs := mustInsert(t, s, 2, entry("2024-03-01", "Freizeit", -3000, "Konzert"))

		_, err := s.Get(ctx, 1, theirs)
		assert.True(t, errors.Is(err, core.ErrNotFound))

		require.NoError(t, s.Update(ctx, 1, theirs, entry("2024-03-02", "Sonstiges", -1, "gekapert")))
		require.NoError(t, s.Delete(ctx, 1, theirs))

		got, err := s.Get(ctx, 2, theirs)
		require.NoError(t, err)
		assert.Equal(t, "Konzert", got.Note)
		assert.Equal(t, int64(-3000), got.Amount.Cents)

		own, err := s.Fetch(ctx, 1, core.Filter{})
		require.NoError(t, err)
		require.Len(t, own, 1)
		assert.Equal(t, mine, own[0].ID)
	})

	t.Run("update and delete own entry", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		id := mustInsert(t, s, 1, entry("2024-03-01", "Freizeit", -1200, "Kino"))

		require.NoError(t, s.Update(ctx, 1, id, entry("2024-03-03", "Freizeit", -1500, "Kino mit Popcorn")))
		got, err := s.Get(ctx, 1, id)
		require.NoError(t, err)
		assert.Equal(t, entry("2024-03-03", "Freizeit", -1500, "Kino mit Popcorn"), got.Input())

		require.NoError(t, s.Delete(ctx, 1, id))
		_, err = s.Get(ctx, 1, id)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("clear is scoped to owner", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		mustInsert(t, s, 1, entry("2024-03-01", "Freizeit", -1200, "a"))
		mustInsert(t, s, 1, entry("2024-03-02", "Freizeit", -1300, "b"))
		mustInsert(t, s, 2, entry("2024-03-03", "Freizeit", -1400, "c"))

		n, err := s.Clear(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		own, err := s.Fetch(ctx, 1, core.Filter{})
		require.NoError(t, err)
		assert.Empty(t, own)
		other, err := s.Fetch(ctx, 2, core.Filter{})
		require.NoError(t, err)
		assert.Len(t, other, 1)
	})

	t.Run("users", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		u, err := s.CreateUser(ctx, "anna@example.org", "hash", false)
		require.NoError(t, err)
		assert.NotZero(t, u.ID)

		_, err = s.CreateUser(ctx, "anna@example.org", "other", false)
		assert.ErrorIs(t, err, storage.ErrEmailTaken)

		byEmail, err := s.UserByEmail(ctx, "anna@example.org")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
		assert.Equal(t, "hash", byEmail.PasswordHash)

		_, err = s.UserByEmail(ctx, "nobody@example.org")
		assert.ErrorIs(t, err, core.ErrNotFound)

		require.NoError(t, s.SetAdmin(ctx, u.ID, true))
		byID, err := s.UserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, byID.IsAdmin)

		assert.ErrorIs(t, s.SetAdmin(ctx, 9999, true), core.ErrNotFound)

		_, err = s.CreateUser(ctx, "ben@example.org", "hash", true)
		require.NoError(t, err)
		users, err := s.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "anna@example.org", users[0].Email)
		assert.Equal(t, "ben@example.org", users[1].Email)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(context.Background()))
	})
}

func entry(date, category string, cents int64, note string) core.EntryInput {
	return core.EntryInput{Date: date, Category: category, Amount: core.Money{Cents: cents}, Note: note}
}

func mustInsert(t *testing.T, s storage.Store, owner int64, in core.EntryInput) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), owner, in)
	require.NoError(t, err)
	return id
}

func notes(entries []core.Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Note)
	}
	return out
}

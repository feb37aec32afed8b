// Package memory is a process-local Store used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/storage"
)

type Store struct {
	mu      sync.Mutex
	nextID  int64
	nextUID int64
	entries map[int64]core.Entry
	users   map[int64]core.User
}

func New() *Store {
	return &Store{
		entries: map[int64]core.Entry{},
		users:   map[int64]core.User{},
	}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) Insert(_ context.Context, owner int64, in core.EntryInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.entries[s.nextID] = core.Entry{
		ID:        s.nextID,
		Owner:     owner,
		Date:      in.Date,
		Category:  in.Category,
		Amount:    in.Amount,
		Note:      in.Note,
		CreatedAt: time.Now().UTC(),
	}
	return s.nextID, nil
}

// Fetch returns the owner's entries matching f, newest id first.
func (s *Store) Fetch(_ context.Context, owner int64, f core.Filter) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Entry{}
	for _, e := range s.entries {
		if e.Owner == owner && f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) Get(_ context.Context, owner, id int64) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.Owner != owner {
		return core.Entry{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) Update(_ context.Context, owner, id int64, in core.EntryInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.Owner != owner {
		return nil
	}
	e.Date, e.Category, e.Amount, e.Note = in.Date, in.Category, in.Amount, in.Note
	s.entries[id] = e
	return nil
}

func (s *Store) Delete(_ context.Context, owner, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok && e.Owner == owner {
		delete(s.entries, id)
	}
	return nil
}

func (s *Store) Clear(_ context.Context, owner int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.entries {
		if e.Owner == owner {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Totals(ctx context.Context, owner int64, f core.Filter) (core.Totals, error) {
	entries, err := s.Fetch(ctx, owner, f)
	if err != nil {
		return core.Totals{}, err
	}
	return core.ComputeTotals(entries), nil
}

func (s *Store) CreateUser(_ context.Context, email, passwordHash string, isAdmin bool) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return core.User{}, storage.ErrEmailTaken
		}
	}
	s.nextUID++
	u := core.User{
		ID:           s.nextUID,
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetAdmin(_ context.Context, id int64, isAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.ErrNotFound
	}
	u.IsAdmin = isAdmin
	s.users[id] = u
	return nil
}

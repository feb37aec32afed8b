// Package memory is a RowWriter that keeps tabs in process memory. It stands
// in for Google Sheets when no spreadsheet is configured.
package memory

import (
	"context"
	"slices"
	"sync"

	"haushaltsbuch/internal/sheets"
)

type Sink struct {
	mu     sync.Mutex
	tabs   map[string][][]string
	writes int
}

var _ sheets.RowWriter = (*Sink)(nil)

func New() *Sink {
	return &Sink{tabs: map[string][][]string{}}
}

func (s *Sink) ReplaceRows(_ context.Context, tab string, header []string, rows [][]string) error {
	grid := make([][]string, 0, len(rows)+1)
	grid = append(grid, slices.Clone(header))
	for _, r := range rows {
		grid = append(grid, slices.Clone(r))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[tab] = grid
	s.writes++
	return nil
}

// Tab returns a copy of the tab including its header row; ok is false for
// tabs never written.
func (s *Sink) Tab(tab string) (grid [][]string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.tabs[tab]
	if !ok {
		return nil, false
	}
	out := make([][]string, len(g))
	for i, r := range g {
		out[i] = slices.Clone(r)
	}
	return out, true
}

// Writes counts ReplaceRows calls.
func (s *Sink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

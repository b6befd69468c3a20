package memory

import (
	"context"
	"sort"
	"sync"

	"despesas/internal/core"
	"despesas/internal/sheets"
)

var _ sheets.ScheduleExporter = (*Store)(nil)

// Store keeps exported schedules in memory. It is the exporter used when
// no spreadsheet is configured, and in tests.
type Store struct {
	mu       sync.Mutex
	rows     map[int64][]sheets.ScheduleRow
	versions map[int64]int64
	exports  int
}

func New() *Store {
	return &Store{
		rows:     make(map[int64][]sheets.ScheduleRow),
		versions: make(map[int64]int64),
	}
}

// ExportSchedule replaces the rows of e. An export older than the one
// already stored is ignored, so late redeliveries cannot roll a schedule back.
func (s *Store) ExportSchedule(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.versions[e.ID]; ok && e.Version < v {
		return nil
	}
	s.rows[e.ID] = sheets.RowsFor(e)
	s.versions[e.ID] = e.Version
	s.exports++
	return nil
}

func (s *Store) DeleteSchedule(_ context.Context, expenseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, expenseID)
	delete(s.versions, expenseID)
	return nil
}

// Rows returns a copy of the rows exported for expenseID.
func (s *Store) Rows(expenseID int64) []sheets.ScheduleRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.ScheduleRow(nil), s.rows[expenseID]...)
}

// ExpenseIDs returns the ids with exported rows, ascending.
func (s *Store) ExpenseIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Exports counts the exports that were applied.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}

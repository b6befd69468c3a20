package cache

import (
	"fmt"
	"sync"
	"time"

	"despesas/internal/core"
)

// LookupObserver is told about every statement lookup.
type LookupObserver interface {
	CacheLookup(hit bool)
}

// StatementCache keeps month statements keyed by year and month. Any write
// to expenses must call Invalidate. Readers take a Generation before going
// to the store and hand it back to Set, so a statement read across a write
// is never cached.
type StatementCache struct {
	lru      *LRUCache[core.MonthStatement]
	observer LookupObserver

	mu  sync.Mutex
	gen uint64
}

func NewStatementCache(size int, ttl time.Duration, observer LookupObserver) *StatementCache {
	return &StatementCache{
		lru:      NewLRUCache[core.MonthStatement](size, ttl),
		observer: observer,
	}
}

func statementKey(year, month int) string {
	return fmt.Sprintf("statement:%04d-%02d", year, month)
}

func (s *StatementCache) Get(year, month int) (core.MonthStatement, bool) {
	st, ok := s.lru.Get(statementKey(year, month))
	if s.observer != nil {
		s.observer.CacheLookup(ok)
	}
	return st, ok
}

// Generation identifies the cache contents since the last Invalidate.
func (s *StatementCache) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Set stores st when no Invalidate happened since gen was taken and
// reports whether it did.
func (s *StatementCache) Set(gen uint64, st core.MonthStatement) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.lru.Set(statementKey(st.Year, st.Month), st)
	return true
}

// Invalidate drops every cached statement. A single expense write can move
// amounts across many months, so per-key invalidation is not attempted.
func (s *StatementCache) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.lru.Purge()
}

func (s *StatementCache) CleanExpired() int {
	return s.lru.CleanExpired()
}

func (s *StatementCache) Size() int {
	return s.lru.Size()
}

package memory

import (
	"context"
	"fmt"
	"sync"

	"profitloss/internal/sheets"
)

// Store is an in-memory LedgerWriter used in tests and local runs.
type Store struct {
	mu      sync.Mutex
	entries []sheets.Entry
	err     error
}

func New() *Store {
	return &Store{}
}

var _ sheets.LedgerWriter = (*Store)(nil)

// AppendTransaction stores the entry and returns a synthetic row reference.
func (s *Store) AppendTransaction(_ context.Context, e sheets.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.entries = append(s.entries, e)
	return fmt.Sprintf("mem:%d", len(s.entries)), nil
}

// Entries returns a copy of everything appended so far.
func (s *Store) Entries() []sheets.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.Entry(nil), s.entries...)
}

// SetError makes subsequent appends fail with err. Pass nil to recover.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

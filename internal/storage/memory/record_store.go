package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/pyq-crawler/internal/question"
)

// RecordStore provides an in-memory question.Store for development/testing.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]question.Record
	now     func() time.Time
	indexed bool
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]question.Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Insert stores a new record; ids must be unique.
func (s *RecordStore) Insert(_ context.Context, rec question.Record) error {
	if rec.ID == "" {
		return &question.PersistenceError{Op: "insert", Err: errors.New("record id is required")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return &question.PersistenceError{Op: "insert", ID: rec.ID, Err: errors.New("duplicate id")}
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

// Scan returns up to limit records with ids greater than afterID, ascending.
func (s *RecordStore) Scan(_ context.Context, afterID string, limit int) ([]question.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.sortedIDs()
	out := make([]question.Record, 0, limit)
	for _, id := range ids {
		if id <= afterID {
			continue
		}
		out = append(out, s.records[id].Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Update applies the patch to one record.
func (s *RecordStore) Update(_ context.Context, id string, patch question.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return &question.PersistenceError{Op: "update", ID: id, Err: question.ErrNotFound}
	}
	s.records[id] = patch.Apply(rec, s.now())
	return nil
}

// Delete removes one record.
func (s *RecordStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return &question.PersistenceError{Op: "delete", ID: id, Err: question.ErrNotFound}
	}
	delete(s.records, id)
	return nil
}

// DuplicateGroups groups records the same way the Mongo aggregation does.
func (s *RecordStore) DuplicateGroups(_ context.Context, prefixLen int) ([]question.DuplicateGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type groupID struct {
		exam, lang, prefix string
		year               int
		hasYear            bool
	}
	order := make([]groupID, 0)
	groups := make(map[groupID]*question.DuplicateGroup)
	for _, id := range s.sortedIDs() {
		rec := s.records[id]
		key := groupID{exam: rec.Exam, lang: rec.Lang, prefix: question.Prefix(rec.Question, prefixLen)}
		if rec.Year != nil {
			key.year, key.hasYear = *rec.Year, true
		}
		g, ok := groups[key]
		if !ok {
			g = &question.DuplicateGroup{Key: question.GroupKey{
				Exam:   rec.Exam,
				Lang:   rec.Lang,
				Prefix: key.prefix,
			}}
			if key.hasYear {
				g.Key.Year = question.IntPtr(key.year)
			}
			groups[key] = g
			order = append(order, key)
		}
		g.Members = append(g.Members, question.GroupMember{
			ID:         rec.ID,
			Verified:   rec.Verified,
			SourceLink: rec.SourceLink,
		})
	}
	out := make([]question.DuplicateGroup, 0)
	for _, key := range order {
		if g := groups[key]; len(g.Members) > 1 {
			out = append(out, *g)
		}
	}
	return out, nil
}

// EnsureIndexes is a no-op beyond remembering it was called.
func (s *RecordStore) EnsureIndexes(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = true
	return nil
}

// Close implements question.Store.
func (s *RecordStore) Close(context.Context) error {
	return nil
}

// Get returns a copy of one record.
func (s *RecordStore) Get(id string) (question.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return question.Record{}, false
	}
	return rec.Clone(), true
}

// Len reports how many records are stored.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *RecordStore) sortedIDs() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

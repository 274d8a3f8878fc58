package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
)

// MemoryStore holds records in memory, ordered per table by insertion.
// It backs JSON document files and the empty fail-open store.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]Record
	order  []string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]Record)}
}

// OpenJSONStore loads a JSON document file laid out as
//
//	{"<table>": {"<doc id>": {<record>}, ...}, ...}
//
// Records are ordered by numeric document ID, which is their insertion order.
func OpenJSONStore(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read store %s: %w", path, err)
	}

	var doc map[string]map[string]Record
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", path, err)
	}

	s := NewMemoryStore()

	tables := make([]string, 0, len(doc))
	for table := range doc {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		rows := doc[table]
		ids := make([]string, 0, len(rows))
		for id := range rows {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			return docIDLess(ids[i], ids[j])
		})
		for _, id := range ids {
			s.Insert(table, rows[id])
		}
	}

	return s, nil
}

// docIDLess orders numeric IDs numerically, and before any non-numeric ID
func docIDLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}

// Insert appends a record to table
func (s *MemoryStore) Insert(table string, r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table]; !ok {
		s.order = append(s.order, table)
	}
	s.tables[table] = append(s.tables[table], r)
}

// Tables returns table names in the order they were first written
func (s *MemoryStore) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.order...)
}

func (s *MemoryStore) GetSingleton(table string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.tables[table]
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", table, ErrNotFound)
	}
	return rows[0], nil
}

func (s *MemoryStore) FindAll(table string, q Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []Record
	for _, r := range s.tables[table] {
		if q.Match(r) {
			found = append(found, r)
		}
	}
	return found, nil
}

func (s *MemoryStore) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rows := range s.tables {
		if len(rows) > 0 {
			return false
		}
	}
	return true
}

func (s *MemoryStore) Close() error {
	return nil
}

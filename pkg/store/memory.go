package store

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Records keep insertion order, which is
// the native order Query returns.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]Record)}
}

// Seed inserts records with caller-chosen ids.
func (m *MemoryStore) Seed(table string, records ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if r.CreatedTime.IsZero() {
			r.CreatedTime = time.Now()
		}
		r.Fields = maps.Clone(r.Fields)
		m.tables[table] = append(m.tables[table], r)
	}
}

func (m *MemoryStore) Query(_ context.Context, table string, filter Filter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, r := range m.tables[table] {
		if filter.IsZero() || filter.Matches(r.Fields.String(filter.Field)) {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, table, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.indexOf(table, id); i >= 0 {
		r := cloneRecord(m.tables[table][i])
		return &r, nil
	}
	return nil, fmt.Errorf("get %s: %w", table, ErrNotFound)
}

func (m *MemoryStore) Create(_ context.Context, table string, fields Fields) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	m.tables[table] = append(m.tables[table], Record{
		ID:          id,
		CreatedTime: time.Now(),
		Fields:      compact(maps.Clone(fields)),
	})
	return id, nil
}

func (m *MemoryStore) Update(_ context.Context, table, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(table, id)
	if i < 0 {
		return fmt.Errorf("update %s: %w", table, ErrNotFound)
	}
	r := &m.tables[table][i]
	if r.Fields == nil {
		r.Fields = Fields{}
	}
	for k, v := range fields {
		if v == nil {
			delete(r.Fields, k)
			continue
		}
		r.Fields[k] = v
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(table, id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", table, ErrNotFound)
	}
	m.tables[table] = append(m.tables[table][:i], m.tables[table][i+1:]...)
	return nil
}

// Len returns the number of records in table.
func (m *MemoryStore) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

func (m *MemoryStore) indexOf(table, id string) int {
	for i, r := range m.tables[table] {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func cloneRecord(r Record) Record {
	r.Fields = maps.Clone(r.Fields)
	return r
}

func compact(fields Fields) Fields {
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
		}
	}
	return fields
}

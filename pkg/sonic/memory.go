package sonic

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used for dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	tables  map[string]map[string]map[string]string
	applies int
	err     error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: map[string]map[string]map[string]string{}}
}

// Apply implements Store.
func (m *MemoryStore) Apply(_ context.Context, changes ...TableChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, c := range changes {
		m.applies++
		if c.IsDelete() {
			delete(m.tables[c.Table], c.Key)
			continue
		}
		t, ok := m.tables[c.Table]
		if !ok {
			t = map[string]map[string]string{}
			m.tables[c.Table] = t
		}
		t[c.Key] = copyFields(c.Fields)
	}
	return nil
}

// Entries implements Store.
func (m *MemoryStore) Entries(_ context.Context, table string) (map[string]map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]map[string]string, len(m.tables[table]))
	for k, v := range m.tables[table] {
		out[k] = copyFields(v)
	}
	return out, nil
}

// Get returns one entry, or nil.
func (m *MemoryStore) Get(table, key string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.tables[table][key]; ok {
		return copyFields(v)
	}
	return nil
}

// Len returns the number of entries in table.
func (m *MemoryStore) Len(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

// Applies returns how many individual changes have been applied.
func (m *MemoryStore) Applies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applies
}

// SetError makes subsequent calls fail with err; nil restores normal
// operation.
func (m *MemoryStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func copyFields(f map[string]string) map[string]string {
	out := make(map[string]string, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

package statestore

import (
	"context"
	"sort"
	"sync"

	"pinengine/internal/domain"
)

// MemoryStore is a map-backed domain.StateStore. Records do not survive a
// restart. Fail* inject errors for tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[int]string

	failGet    error
	failPut    error
	failDelete error
	puts       int
	deletes    int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int]string)}
}

func (m *MemoryStore) Get(_ context.Context, pin int) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return "", false, storeError("MemoryStore.Get", pin, m.failGet)
	}
	v, ok := m.records[pin]
	return v, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, pin int, mode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return storeError("MemoryStore.Put", pin, m.failPut)
	}
	m.records[pin] = mode
	m.puts++
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, pin int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return storeError("MemoryStore.Delete", pin, m.failDelete)
	}
	delete(m.records, pin)
	m.deletes++
	return nil
}

func (m *MemoryStore) ForEach(_ context.Context, fn func(pin int, mode string) error) error {
	m.mu.Lock()
	if m.failGet != nil {
		err := m.failGet
		m.mu.Unlock()
		return storeError("MemoryStore.ForEach", -1, err)
	}
	pins := make([]int, 0, len(m.records))
	for p := range m.records {
		pins = append(pins, p)
	}
	sort.Ints(pins)
	snapshot := make([]string, len(pins))
	for i, p := range pins {
		snapshot[i] = m.records[p]
	}
	m.mu.Unlock()

	for i, p := range pins {
		if err := fn(p, snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// FailGet makes Get and ForEach return err. A nil err clears the fault.
func (m *MemoryStore) FailGet(err error) {
	m.mu.Lock()
	m.failGet = err
	m.mu.Unlock()
}

// FailPut makes Put return err. A nil err clears the fault.
func (m *MemoryStore) FailPut(err error) {
	m.mu.Lock()
	m.failPut = err
	m.mu.Unlock()
}

// FailDelete makes Delete return err. A nil err clears the fault.
func (m *MemoryStore) FailDelete(err error) {
	m.mu.Lock()
	m.failDelete = err
	m.mu.Unlock()
}

// Snapshot returns a copy of every record.
func (m *MemoryStore) Snapshot() map[int]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]string, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out
}

// Puts returns the number of successful Put calls.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Deletes returns the number of successful Delete calls.
func (m *MemoryStore) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

var _ domain.StateStore = (*MemoryStore)(nil)

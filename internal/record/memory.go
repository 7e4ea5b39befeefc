package record

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local runs without a
// database. Names are unique, ids are assigned sequentially from 1.
type MemoryStore[T any] struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]T
	name   func(rec T) string
	id     func(rec T) int64
	setID  func(rec *T, id int64)
}

func NewMemoryStore[T any](name func(T) string, id func(T) int64, setID func(*T, int64)) *MemoryStore[T] {
	return &MemoryStore[T]{
		rows:  make(map[int64]T),
		name:  name,
		id:    id,
		setID: setID,
	}
}

func (m *MemoryStore[T]) FindByName(_ context.Context, name string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.rows {
		if m.name(rec) == name {
			return rec, nil
		}
	}
	var zero T
	return zero, ErrNotFound
}

func (m *MemoryStore[T]) FindByID(_ context.Context, id int64) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.rows[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore[T]) FindAll(_ context.Context) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records := make([]T, 0, len(ids))
	for _, id := range ids {
		records = append(records, m.rows[id])
	}
	return records, nil
}

func (m *MemoryStore[T]) Save(_ context.Context, rec *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.id(*rec)
	for otherID, other := range m.rows {
		if otherID != id && m.name(other) == m.name(*rec) {
			return ErrConflict
		}
	}

	if id == 0 {
		m.nextID++
		m.setID(rec, m.nextID)
		m.rows[m.nextID] = *rec
		return nil
	}

	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	m.rows[id] = *rec
	return nil
}

func (m *MemoryStore[T]) Delete(_ context.Context, rec T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.id(rec)
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// Package store provides domain.Repository implementations.
//
// Both implementations keep entities as encoded snapshots, so a value
// returned by GetByID or GetAll never aliases what is stored: callers may
// mutate it freely and must Update to persist. Writes are last-writer-wins
// per id; callers that read-modify-write an aggregate serialize through the
// service lock.
package store

import (
	"context"
	"sync"

	"github.com/rndsolutions/HawkCD/internal/codec"
	"github.com/rndsolutions/HawkCD/internal/domain"
)

// Memory is an in-process Repository. It is safe for concurrent use.
type Memory[T domain.Entity] struct {
	entity string

	mu    sync.RWMutex
	order []string
	items map[string][]byte
}

var _ domain.Repository[domain.Pipeline] = (*Memory[domain.Pipeline])(nil)

// NewMemory creates an empty in-memory repository. entity names the stored
// type in error messages.
func NewMemory[T domain.Entity](entity string) *Memory[T] {
	return &Memory[T]{
		entity: entity,
		items:  make(map[string][]byte),
	}
}

func (m *Memory[T]) GetByID(_ context.Context, id string) (T, error) {
	m.mu.RLock()
	data, ok := m.items[id]
	m.mu.RUnlock()
	if !ok {
		var zero T
		return zero, domain.NotFound(m.entity, id)
	}
	return m.decode(data)
}

func (m *Memory[T]) GetAll(_ context.Context) ([]T, error) {
	m.mu.RLock()
	snapshot := make([][]byte, 0, len(m.order))
	for _, id := range m.order {
		snapshot = append(snapshot, m.items[id])
	}
	m.mu.RUnlock()

	result := make([]T, 0, len(snapshot))
	for _, data := range snapshot {
		v, err := m.decode(data)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

func (m *Memory[T]) Add(_ context.Context, entity T) (T, error) {
	id := entity.Key()
	if id == "" {
		var zero T
		return zero, domain.InvalidState("%s has no id", m.entity)
	}
	data, err := codec.Marshal(entity)
	if err != nil {
		var zero T
		return zero, domain.Transient("encoding "+m.entity, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[id]; exists {
		var zero T
		return zero, domain.AlreadyExists(m.entity, id)
	}
	m.items[id] = data
	m.order = append(m.order, id)
	return entity, nil
}

func (m *Memory[T]) Update(_ context.Context, entity T) (T, error) {
	id := entity.Key()
	data, err := codec.Marshal(entity)
	if err != nil {
		var zero T
		return zero, domain.Transient("encoding "+m.entity, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[id]; !exists {
		var zero T
		return zero, domain.NotFound(m.entity, id)
	}
	m.items[id] = data
	return entity, nil
}

func (m *Memory[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[id]; !exists {
		return domain.NotFound(m.entity, id)
	}
	delete(m.items, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory[T]) decode(data []byte) (T, error) {
	var v T
	if err := codec.Unmarshal(data, &v); err != nil {
		return v, domain.Transient("decoding "+m.entity, err)
	}
	return v, nil
}

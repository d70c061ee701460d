package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend keeps records in process memory. Used for tests and the "memory" driver.
type MemoryBackend struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tasks: map[string]Task{}}
}

func (m *MemoryBackend) Insert(_ context.Context, t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, t.Name)
	}
	m.tasks[t.Name] = t.Clone()
	return nil
}

func (m *MemoryBackend) Load(_ context.Context, name string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[name]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t.Clone(), nil
}

func (m *MemoryBackend) Save(_ context.Context, t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.Name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, t.Name)
	}
	m.tasks[t.Name] = t.Clone()
	return nil
}

func (m *MemoryBackend) LoadAll(_ context.Context) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (m *MemoryBackend) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.tasks)), nil
}

func (m *MemoryBackend) Close() error { return nil }

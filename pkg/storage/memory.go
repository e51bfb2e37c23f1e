package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend is an in-memory backend. It is the default for the session
// area and is convenient for tests of the durable area.
type MemoryBackend struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers map[uint64]func(string)
	nextID   uint64
	closed   bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data:     make(map[string][]byte),
		watchers: make(map[uint64]func(string)),
	}
}

// Load returns a copy of the data stored under key.
func (m *MemoryBackend) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errClosed()
	}

	data, ok := m.data[key]
	if !ok {
		return nil, nil
	}

	// Return a copy to prevent mutations
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Save stores a copy of data under key.
func (m *MemoryBackend) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errClosed()
	}

	// Make a copy of data to prevent mutations
	stored := make([]byte, len(data))
	copy(stored, data)
	m.data[key] = stored
	watchers := m.snapshotWatchers()
	m.mu.Unlock()

	for _, fn := range watchers {
		fn(key)
	}
	return nil
}

// Delete removes key.
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errClosed()
	}

	_, existed := m.data[key]
	delete(m.data, key)
	watchers := m.snapshotWatchers()
	m.mu.Unlock()

	if existed {
		for _, fn := range watchers {
			fn(key)
		}
	}
	return nil
}

// Keys lists stored keys.
func (m *MemoryBackend) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errClosed()
	}

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every key. Used to end a session.
func (m *MemoryBackend) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.data = make(map[string][]byte)
}

// Len returns the number of stored keys.
// This is for monitoring/testing purposes.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Watch reports every Save and Delete of an existing key. Delivery is
// synchronous with the write, after the backend lock is released.
func (m *MemoryBackend) Watch(fn func(key string)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errClosed()
	}

	m.nextID++
	id := m.nextID
	m.watchers[id] = fn

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}, nil
}

// Close shuts down the backend and drops its contents.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.data = nil
	m.watchers = nil
	return nil
}

func (m *MemoryBackend) snapshotWatchers() []func(string) {
	if len(m.watchers) == 0 {
		return nil
	}
	out := make([]func(string), 0, len(m.watchers))
	for _, fn := range m.watchers {
		out = append(out, fn)
	}
	return out
}

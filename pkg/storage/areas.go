package storage

import (
	"context"
	"sync"
	"time"

	"github.com/vango-dev/dux/internal/errors"
)

// DefaultTimeout bounds each backend call made through Areas.
const DefaultTimeout = 5 * time.Second

// Areas routes each Area to its backend.
type Areas struct {
	mu       sync.RWMutex
	backends map[Area]Backend
	timeout  time.Duration
}

// NewAreas creates a routing table with durable and session backends.
// A nil backend leaves the area unconfigured.
func NewAreas(durable, session Backend) *Areas {
	a := &Areas{
		backends: make(map[Area]Backend, 2),
		timeout:  DefaultTimeout,
	}
	if durable != nil {
		a.backends[Durable] = durable
	}
	if session != nil {
		a.backends[Session] = session
	}
	return a
}

// InMemory returns areas backed by two independent memory backends.
func InMemory() *Areas {
	return NewAreas(NewMemoryBackend(), NewMemoryBackend())
}

// SetTimeout changes the per-call timeout. Zero disables it.
func (a *Areas) SetTimeout(d time.Duration) {
	a.mu.Lock()
	a.timeout = d
	a.mu.Unlock()
}

// Backend returns the backend for area.
func (a *Areas) Backend(area Area) (Backend, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	b, ok := a.backends[area]
	if !ok {
		return nil, errors.New("D005").WithKey(area.String())
	}
	return b, nil
}

// Context returns a context bounded by the configured timeout.
func (a *Areas) Context(parent context.Context) (context.Context, context.CancelFunc) {
	a.mu.RLock()
	timeout := a.timeout
	a.mu.RUnlock()

	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// Load reads key from the backend for area.
func (a *Areas) Load(ctx context.Context, area Area, key string) ([]byte, error) {
	b, err := a.Backend(area)
	if err != nil {
		return nil, err
	}
	ctx, cancel := a.Context(ctx)
	defer cancel()
	return b.Load(ctx, key)
}

// Save writes key to the backend for area.
func (a *Areas) Save(ctx context.Context, area Area, key string, data []byte) error {
	b, err := a.Backend(area)
	if err != nil {
		return err
	}
	ctx, cancel := a.Context(ctx)
	defer cancel()
	return b.Save(ctx, key, data)
}

// Watch subscribes to changes of key in area. The backend must implement
// Watcher.
func (a *Areas) Watch(area Area, key string, fn func()) (func(), error) {
	b, err := a.Backend(area)
	if err != nil {
		return nil, err
	}
	w, ok := b.(Watcher)
	if !ok {
		return nil, errors.New("D007").WithKey(area.String())
	}
	return w.Watch(func(changed string) {
		if changed == key {
			fn()
		}
	})
}

// Close closes every configured backend. The first error is returned.
func (a *Areas) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var first error
	seen := make(map[Backend]bool, len(a.backends))
	for _, b := range a.backends {
		if seen[b] {
			continue
		}
		seen[b] = true
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/vango-dev/dux/internal/errors"
)

// Backend defines the interface for persistence backends.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Load retrieves the bytes stored under key.
	// Returns (nil, nil) if the key doesn't exist.
	// Returns (nil, err) on backend errors.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores data under key, overwriting any previous value.
	Save(ctx context.Context, key string, data []byte) error

	// Delete removes a key.
	// Should not return an error if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Keys lists the stored keys in lexical order.
	Keys(ctx context.Context) ([]string, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Watcher is implemented by backends that can report writes made by other
// handles or processes. fn receives the key that changed and runs on a
// backend-owned goroutine. The returned cancel stops delivery.
type Watcher interface {
	Watch(fn func(key string)) (cancel func(), err error)
}

// Area selects which backend a persistent store uses.
type Area int

const (
	// Durable survives application restarts until explicitly cleared.
	Durable Area = iota

	// Session is cleared when the application session ends.
	Session
)

// String returns the lowercase area name.
func (a Area) String() string {
	switch a {
	case Durable:
		return "durable"
	case Session:
		return "session"
	default:
		return fmt.Sprintf("area(%d)", int(a))
	}
}

// ParseArea parses an area name. "local" is accepted as an alias for durable.
func ParseArea(s string) (Area, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "durable", "local", "":
		return Durable, nil
	case "session":
		return Session, nil
	default:
		return 0, errors.New("D150").WithKey(s)
	}
}

// errClosed returns the error reported by operations on a closed backend.
func errClosed() error {
	return errors.New("D006")
}

// IsClosed reports whether err was caused by a closed backend.
func IsClosed(err error) bool {
	return errors.HasCode(err, "D006")
}

package store

import (
	"fmt"
	"log/slog"

	"github.com/vango-dev/dux/pkg/storage"
)

// Store is the contract every store definition satisfies. New produces the
// initial value the first time the store is needed in a registry. It may use
// link to read persisted state.
//
// Definitions must be comparable; the registry uses them as map keys.
type Store[S any] interface {
	New(link Link[S]) S
}

// ChangeDetector decides whether a reduce produced a change worth
// broadcasting. When Changed returns false no subscriber is notified and no
// MutationHook runs.
type ChangeDetector[S any] interface {
	Changed(prev, next *S) bool
}

// MutationHook runs after every reduce that changed the store, before
// subscribers are notified.
type MutationHook[S any] interface {
	Mutated(link Link[S], next *S)
}

// Cloner is implemented by state types that hold maps, slices or pointers.
// Reducers then receive Clone's result instead of a shallow copy, so changes
// made in place never reach a published snapshot.
//
// Without Cloner a reducer works on a shallow copy: it may reassign fields
// freely but must replace, not modify, any map, slice or pointee it shares
// with the current snapshot.
type Cloner[S any] interface {
	Clone() S
}

// Clone returns the copy of *v a reducer works on: v's Clone when S
// implements Cloner (with a value or pointer receiver), otherwise *v.
func Clone[S any](v *S) S {
	if c, ok := any(v).(Cloner[S]); ok {
		return c.Clone()
	}
	return *v
}

// Named gives a store a display name for logs, metrics and devtools.
type Named interface {
	Name() string
}

// Link is the handle a store implementation uses to talk back to the
// registry that owns its value.
type Link[S any] interface {
	// Name returns the store's display name.
	Name() string

	// Get returns the current snapshot, or nil while the store is being
	// constructed.
	Get() *S

	// Notify rebroadcasts the current snapshot to every subscriber.
	Notify()

	// Reduce mutates the store like a Dispatch would.
	Reduce(fn func(S) S)

	// Load reads key from the backend for area. ok is false when the key is
	// missing or the read failed; failures are logged.
	Load(area storage.Area, key string) (data []byte, ok bool)

	// Save writes key to the backend for area. Failures are logged.
	Save(area storage.Area, key string, data []byte)

	// Watch calls fn whenever key changes in area outside this store. The
	// subscription ends when the registry is closed.
	Watch(area storage.Area, key string, fn func())

	// Logger returns a logger tagged with the store name.
	Logger() *slog.Logger
}

// NameOf returns the display name of def: its Name when it implements
// Named, otherwise the state type.
func NameOf[S any](def Store[S]) string {
	if n, ok := def.(Named); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	var zero S
	return fmt.Sprintf("%T", zero)
}

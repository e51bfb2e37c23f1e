package registry

import (
	"context"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/dux/internal/errors"
	"github.com/vango-dev/dux/pkg/storage"
	"github.com/vango-dev/dux/pkg/store"
)

// HandlerID identifies one subscriber of one store.
type HandlerID uint64

// Registry is the table of store values and subscribers.
type Registry struct {
	mu      sync.Mutex
	entries map[any]entryHandle

	areas  *storage.Areas
	logger *slog.Logger
	chain  []Middleware

	watchMu  sync.RWMutex
	watchers map[uint64]func(Change)
	watchID  uint64

	nextHandler atomic.Uint64
}

// entryHandle is the type-erased view of an entry.
type entryHandle interface {
	info() StoreInfo
	close()
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Default: slog.Default() tagged with
// component=dux.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStorage sets the storage areas used by persistent stores.
// Default: storage.InMemory().
func WithStorage(areas *storage.Areas) Option {
	return func(r *Registry) {
		if areas != nil {
			r.areas = areas
		}
	}
}

// WithMiddleware appends mutation middleware. The first middleware is the
// outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(r *Registry) {
		r.chain = append(r.chain, mw...)
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries:  make(map[any]entryHandle),
		watchers: make(map[uint64]func(Change)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default().With("component", "dux")
	}
	if r.areas == nil {
		r.areas = storage.InMemory()
	}
	return r
}

// Logger returns the registry logger.
func (r *Registry) Logger() *slog.Logger {
	return r.logger
}

// Storage returns the storage areas persistent stores use.
func (r *Registry) Storage() *storage.Areas {
	return r.areas
}

// NewHandlerID returns an ID no other subscriber of this registry uses.
func (r *Registry) NewHandlerID() HandlerID {
	return HandlerID(r.nextHandler.Add(1))
}

// Close tears the registry down: background watches stop and every store
// value and subscriber is dropped. Storage areas are left open; they belong
// to the caller.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[any]entryHandle)
	r.mu.Unlock()

	for _, e := range entries {
		e.close()
	}

	r.watchMu.Lock()
	r.watchers = make(map[uint64]func(Change))
	r.watchMu.Unlock()
	return nil
}

// lookup returns the entry for def, creating it on first use. Construction
// of the value is deferred to ensure.
func lookup[S any](r *Registry, def store.Store[S]) *entry[S] {
	if def == nil || !reflect.TypeOf(def).Comparable() {
		panic(errors.New("D050").WithStore(store.NameOf(def)))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.entries[def]; ok {
		e, ok := h.(*entry[S])
		if !ok {
			panic(errors.New("D051").WithStore(store.NameOf(def)))
		}
		return e
	}

	e := newEntry(r, def)
	r.entries[def] = e
	return e
}

// find returns the entry for def without creating it.
func find[S any](r *Registry, def store.Store[S]) *entry[S] {
	if def == nil || !reflect.TypeOf(def).Comparable() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, _ := r.entries[def].(*entry[S])
	return e
}

// Get returns the current snapshot of def, constructing the store on first
// access. The snapshot must be treated as read-only.
func Get[S any](r *Registry, def store.Store[S]) *S {
	return lookup(r, def).ensure()
}

// Subscribe registers fn for def under id and delivers the current snapshot
// to it. Re-subscribing an id replaces its callback.
//
// When called from inside a notification of the same store, the initial
// delivery is queued behind the fan-out in progress.
func Subscribe[S any](r *Registry, def store.Store[S], id HandlerID, fn func(*S)) {
	lookup(r, def).subscribe(id, fn)
}

// Unsubscribe removes the subscriber id from def. It is a no-op when id is
// not subscribed.
//
// Called from a notification callback of def, it also drops id from the
// fan-out in progress. Called from another goroutine, a callback invocation
// that already started still completes.
func Unsubscribe[S any](r *Registry, def store.Store[S], id HandlerID) {
	if e := find(r, def); e != nil {
		e.unsubscribe(id)
	}
}

// Mutate applies fn to a copy of the current value of def and publishes the
// result. The copy comes from store.Clone: deep when the state type
// implements store.Cloner, shallow otherwise. Subscribers are notified unless the store's ChangeDetector reports
// no change. A panic in fn propagates to the caller and leaves the previous
// snapshot in place.
func Mutate[S any](r *Registry, def store.Store[S], fn func(S) S) Mutation {
	return MutateContext(context.Background(), r, def, fn)
}

// MutateContext is Mutate with a context for middleware (tracing).
func MutateContext[S any](ctx context.Context, r *Registry, def store.Store[S], fn func(S) S) Mutation {
	e := lookup(r, def)
	e.ensure()
	return r.runMiddleware(ctx, e.name, func(context.Context) Mutation {
		return e.mutate(fn)
	})
}

// Version returns how many changes def has published in this registry.
func Version[S any](r *Registry, def store.Store[S]) uint64 {
	if e := find(r, def); e != nil {
		return e.version.Load()
	}
	return 0
}

// SubscriberCount returns the number of live subscribers of def.
func SubscriberCount[S any](r *Registry, def store.Store[S]) int {
	if e := find(r, def); e != nil {
		return e.subscriberCount()
	}
	return 0
}

// StoreInfo describes one store for inspection.
type StoreInfo struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Version     uint64    `json:"version"`
	Subscribers int       `json:"subscribers"`
	UpdatedAt   time.Time `json:"updated_at"`
	Value       any       `json:"value"`
}

// Stores lists every constructed store, sorted by name.
func (r *Registry) Stores() []StoreInfo {
	r.mu.Lock()
	handles := make([]entryHandle, 0, len(r.entries))
	for _, h := range r.entries {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	infos := make([]StoreInfo, 0, len(handles))
	for _, h := range handles {
		info := h.info()
		if info.Value == nil {
			continue
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Store returns the info of the store called name.
func (r *Registry) Store(name string) (StoreInfo, bool) {
	for _, info := range r.Stores() {
		if info.Name == name {
			return info, true
		}
	}
	return StoreInfo{}, false
}

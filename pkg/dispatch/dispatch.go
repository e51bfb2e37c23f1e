package dispatch

import (
	"context"
	"sync/atomic"

	"github.com/vango-dev/dux/pkg/registry"
	"github.com/vango-dev/dux/pkg/store"
)

// Dispatch reads and mutates one store in one registry.
type Dispatch[S any] struct {
	reg        *registry.Registry
	def        store.Store[S]
	id         registry.HandlerID
	subscribed atomic.Bool
}

// Bridge returns a subscribed Dispatch. fn is invoked with the current
// snapshot before Bridge returns and after every change until Close.
func Bridge[S any](r *registry.Registry, def store.Store[S], fn func(*S)) *Dispatch[S] {
	d := &Dispatch[S]{reg: r, def: def, id: r.NewHandlerID()}
	d.subscribed.Store(true)
	registry.Subscribe(r, def, d.id, fn)
	return d
}

// New returns a detached Dispatch. It never receives notifications.
func New[S any](r *registry.Registry, def store.Store[S]) *Dispatch[S] {
	return &Dispatch[S]{reg: r, def: def, id: r.NewHandlerID()}
}

// Registry returns the registry the dispatch is bound to.
func (d *Dispatch[S]) Registry() *registry.Registry { return d.reg }

// Store returns the store definition.
func (d *Dispatch[S]) Store() store.Store[S] { return d.def }

// Get returns the current snapshot, constructing the store if needed.
func (d *Dispatch[S]) Get() *S {
	return registry.Get(d.reg, d.def)
}

// Reduce replaces the value with fn's result.
func (d *Dispatch[S]) Reduce(fn func(S) S) {
	registry.Mutate(d.reg, d.def, fn)
}

// ReduceContext is Reduce with a context passed to registry middleware.
func (d *Dispatch[S]) ReduceContext(ctx context.Context, fn func(S) S) registry.Mutation {
	return registry.MutateContext(ctx, d.reg, d.def, fn)
}

// ReduceMut changes the value in place. fn receives a pointer to a copy of
// the current snapshot, made by the state's Clone method when it implements
// store.Cloner. Otherwise the copy is shallow and fn must replace maps,
// slices and pointees rather than write into them.
func (d *Dispatch[S]) ReduceMut(fn func(*S)) {
	d.Reduce(func(s S) S {
		fn(&s)
		return s
	})
}

// ReduceCallback returns a function that applies fn each time it is called.
func (d *Dispatch[S]) ReduceCallback(fn func(S) S) func() {
	return func() { d.Reduce(fn) }
}

// ReduceMutCallback is ReduceCallback for in-place mutation.
func (d *Dispatch[S]) ReduceMutCallback(fn func(*S)) func() {
	return func() { d.ReduceMut(fn) }
}

// ReduceCallbackWith returns a function that folds each event it is called
// with into the value.
func ReduceCallbackWith[S, E any](d *Dispatch[S], fn func(S, E) S) func(E) {
	return func(e E) {
		d.Reduce(func(s S) S { return fn(s, e) })
	}
}

// Subscribed reports whether the dispatch still receives notifications.
func (d *Dispatch[S]) Subscribed() bool {
	return d.subscribed.Load()
}

// Close ends the subscription. Once Close returns no new delivery starts.
// When Close runs inside a notification callback, which is the goroutine
// delivering the fan-out, the callback is also skipped for the rest of that
// fan-out. A Close from another goroutine may race one callback that had
// already started. Close is idempotent and a closed Dispatch can still read
// and mutate.
func (d *Dispatch[S]) Close() {
	if d.subscribed.CompareAndSwap(true, false) {
		registry.Unsubscribe(d.reg, d.def, d.id)
	}
}

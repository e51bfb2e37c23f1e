package dispatch

import (
	"github.com/vango-dev/dux/pkg/registry"
	"github.com/vango-dev/dux/pkg/store"
)

// ReducerDispatch sends actions to a Reducer store.
type ReducerDispatch[S store.Reducible[S, A], A any] struct {
	*Dispatch[S]
	def *store.Reducer[S, A]
}

// BridgeReducer returns a subscribed ReducerDispatch.
func BridgeReducer[S store.Reducible[S, A], A any](r *registry.Registry, def *store.Reducer[S, A], fn func(*S)) *ReducerDispatch[S, A] {
	return &ReducerDispatch[S, A]{Dispatch: Bridge[S](r, def, fn), def: def}
}

// NewReducer returns a detached ReducerDispatch.
func NewReducer[S store.Reducible[S, A], A any](r *registry.Registry, def *store.Reducer[S, A]) *ReducerDispatch[S, A] {
	return &ReducerDispatch[S, A]{Dispatch: New[S](r, def), def: def}
}

// Send folds action into the value. Subscribers are notified only if the
// action changed it.
func (d *ReducerDispatch[S, A]) Send(action A) {
	d.Reduce(func(s S) S { return d.def.Apply(s, action) })
}

// SendCallback returns a function that sends action each time it is called.
func (d *ReducerDispatch[S, A]) SendCallback(action A) func() {
	return func() { d.Send(action) }
}

// SendCallbackWith returns a function that converts each event into an
// action and sends it.
func SendCallbackWith[S store.Reducible[S, A], A, E any](d *ReducerDispatch[S, A], fn func(E) A) func(E) {
	return func(e E) { d.Send(fn(e)) }
}

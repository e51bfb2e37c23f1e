package component

import (
	"github.com/vango-dev/dux/pkg/dispatch"
	"github.com/vango-dev/dux/pkg/registry"
	"github.com/vango-dev/dux/pkg/store"
)

// Inner is a component that renders store state.
type Inner[S, M any] interface {
	// Update handles every message that is not a state change.
	Update(msg M) bool

	// View renders state, the latest snapshot received. Read-only.
	View(state *S) string
}

// WithDispatch owns a Dispatch for one store and feeds its snapshots to an
// Inner component.
type WithDispatch[S, M any] struct {
	inner    Inner[S, M]
	dispatch *dispatch.Dispatch[S]
	unwrap   func(M) (*S, bool)
	state    *S
}

// NewWithDispatch bridges def into loop. Each snapshot is wrapped into a
// message and sent; unwrap recognizes those messages in Update. newInner
// receives the dispatch so the component can mutate the store.
func NewWithDispatch[S, M any](
	loop *Loop[M],
	r *registry.Registry,
	def store.Store[S],
	newInner func(d *dispatch.Dispatch[S]) Inner[S, M],
	wrap func(*S) M,
	unwrap func(M) (*S, bool),
) *WithDispatch[S, M] {
	w := &WithDispatch[S, M]{unwrap: unwrap}
	w.dispatch = dispatch.Bridge(r, def, func(s *S) {
		loop.Send(wrap(s))
	})
	w.inner = newInner(w.dispatch)
	return w
}

// Update implements Component. State messages replace the stored snapshot
// and always re-render.
func (w *WithDispatch[S, M]) Update(msg M) bool {
	if s, ok := w.unwrap(msg); ok {
		w.state = s
		return true
	}
	return w.inner.Update(msg)
}

// View implements Component. Before the first state message arrives the
// current snapshot is read from the registry.
func (w *WithDispatch[S, M]) View() string {
	state := w.state
	if state == nil {
		state = w.dispatch.Get()
	}
	return w.inner.View(state)
}

// State returns the last snapshot received, or nil.
func (w *WithDispatch[S, M]) State() *S { return w.state }

// Dispatch returns the owned dispatch.
func (w *WithDispatch[S, M]) Dispatch() *dispatch.Dispatch[S] { return w.dispatch }

// Close drops the subscription.
func (w *WithDispatch[S, M]) Close() { w.dispatch.Close() }

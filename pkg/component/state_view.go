package component

import (
	"github.com/vango-dev/dux/pkg/dispatch"
	"github.com/vango-dev/dux/pkg/registry"
	"github.com/vango-dev/dux/pkg/store"
)

// StateView is a WithDispatch whose view is a plain function of the store
// state. It ignores every message other than state changes.
type StateView[S, M any] struct {
	*WithDispatch[S, M]
	onChange func(state *S)
}

// NewStateView bridges def into loop and renders each snapshot with view.
// onChange, when not nil, is called on the loop goroutine with every
// snapshot the view receives.
func NewStateView[S, M any](
	loop *Loop[M],
	r *registry.Registry,
	def store.Store[S],
	view func(state *S) string,
	onChange func(state *S),
	wrap func(*S) M,
	unwrap func(M) (*S, bool),
) *StateView[S, M] {
	w := NewWithDispatch(loop, r, def,
		func(*dispatch.Dispatch[S]) Inner[S, M] { return viewFunc[S, M](view) },
		wrap, unwrap)
	return &StateView[S, M]{WithDispatch: w, onChange: onChange}
}

// Update implements Component.
func (v *StateView[S, M]) Update(msg M) bool {
	if s, ok := v.unwrap(msg); ok && v.onChange != nil {
		v.onChange(s)
	}
	return v.WithDispatch.Update(msg)
}

type viewFunc[S, M any] func(state *S) string

func (viewFunc[S, M]) Update(M) bool { return false }

func (f viewFunc[S, M]) View(state *S) string { return f(state) }

package store

// Reducible is implemented by state types that fold an action into their
// next value.
type Reducible[S any, A any] interface {
	Reduce(action A) S
}

// Reducer is the message-driven strategy. Subscribers are notified only when
// an action actually changes the state, as decided by Equal or WithEquals.
type Reducer[S Reducible[S, A], A any] struct {
	init   func() S
	name   string
	equals func(a, b S) bool
}

// NewReducer creates a Reducer store definition. A nil init yields the zero
// value of S.
func NewReducer[S Reducible[S, A], A any](init func() S, opts ...Option) *Reducer[S, A] {
	cfg := applyOptions(opts)
	eq := equalsFor[S](cfg)
	if eq == nil {
		eq = Equal[S]
	}
	return &Reducer[S, A]{
		init:   init,
		name:   cfg.name,
		equals: eq,
	}
}

// New implements Store.
func (r *Reducer[S, A]) New(Link[S]) S {
	if r.init == nil {
		var zero S
		return zero
	}
	return r.init()
}

// Apply returns the state after folding action into s.
func (r *Reducer[S, A]) Apply(s S, action A) S {
	return s.Reduce(action)
}

// Changed implements ChangeDetector.
func (r *Reducer[S, A]) Changed(prev, next *S) bool {
	return !r.equals(*prev, *next)
}

// Name implements Named.
func (r *Reducer[S, A]) Name() string {
	return r.name
}

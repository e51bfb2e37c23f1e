package store

// Basic is the default strategy: the initial value comes from init (or the
// zero value) and every reduce notifies subscribers.
type Basic[S any] struct {
	init   func() S
	name   string
	equals func(a, b S) bool
}

// NewBasic creates a Basic store definition. A nil init yields the zero
// value of S.
func NewBasic[S any](init func() S, opts ...Option) *Basic[S] {
	cfg := applyOptions(opts)
	return &Basic[S]{
		init:   init,
		name:   cfg.name,
		equals: equalsFor[S](cfg),
	}
}

// New implements Store.
func (b *Basic[S]) New(Link[S]) S {
	if b.init == nil {
		var zero S
		return zero
	}
	return b.init()
}

// Changed implements ChangeDetector. Without WithEquals every reduce is a
// change.
func (b *Basic[S]) Changed(prev, next *S) bool {
	if b.equals == nil {
		return true
	}
	return !b.equals(*prev, *next)
}

// Name implements Named.
func (b *Basic[S]) Name() string {
	return b.name
}

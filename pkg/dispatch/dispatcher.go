package dispatch

// Dispatcher is what every dispatch handle can do with its store. Code that
// only reads and reduces should accept a Dispatcher so it works with a
// Dispatch, a ReducerDispatch or Props alike.
type Dispatcher[S any] interface {
	Get() *S
	Reduce(fn func(S) S)
	ReduceMut(fn func(*S))
	ReduceCallback(fn func(S) S) func()
	ReduceMutCallback(fn func(*S)) func()
}

var (
	_ Dispatcher[struct{}] = (*Dispatch[struct{}])(nil)
	_ Dispatcher[struct{}] = Props[struct{}]{}
)

// Props is a Dispatcher handed from a parent component to its children.
// It shares the parent's subscription: a child holding Props registers
// nothing and sees new state when the parent passes it down again.
//
// Props values compare equal when they come from the same Dispatch, so a
// child can tell a changed parent from an unchanged one.
type Props[S any] struct {
	d *Dispatch[S]
}

// Props returns a handle for child components that shares d's
// subscription. It stays usable after d is closed.
func (d *Dispatch[S]) Props() Props[S] {
	return Props[S]{d: d}
}

// Valid reports whether p was obtained from a Dispatch. The zero Props is
// not valid and panics on use.
func (p Props[S]) Valid() bool { return p.d != nil }

// Get returns the current snapshot.
func (p Props[S]) Get() *S { return p.d.Get() }

// Reduce replaces the value with fn's result.
func (p Props[S]) Reduce(fn func(S) S) { p.d.Reduce(fn) }

// ReduceMut changes the value in place; see Dispatch.ReduceMut.
func (p Props[S]) ReduceMut(fn func(*S)) { p.d.ReduceMut(fn) }

// ReduceCallback returns a function that applies fn each time it is called.
func (p Props[S]) ReduceCallback(fn func(S) S) func() { return p.d.ReduceCallback(fn) }

// ReduceMutCallback is ReduceCallback for in-place mutation.
func (p Props[S]) ReduceMutCallback(fn func(*S)) func() { return p.d.ReduceMutCallback(fn) }

// PropsOwner is implemented by component properties that carry a Props
// field, so an adapter can fill it in for the component. SetDispatchProps
// must store p on the receiver.
type PropsOwner[S any] interface {
	SetDispatchProps(p Props[S])
}

// Attach gives owner the Props of d.
func Attach[S any](d *Dispatch[S], owner PropsOwner[S]) {
	owner.SetDispatchProps(d.Props())
}

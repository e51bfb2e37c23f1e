package registry

import "context"

// Mutation reports the outcome of one Mutate call.
type Mutation struct {
	// Store is the display name of the mutated store.
	Store string

	// Version is the store version after the call.
	Version uint64

	// Changed is false when the store's ChangeDetector dropped the result.
	Changed bool

	// Subscribers is the number of subscribers when the value was published.
	Subscribers int
}

// Middleware wraps every mutation of every store in a registry.
type Middleware interface {
	Mutate(ctx context.Context, store string, next func(context.Context) Mutation) Mutation
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, store string, next func(context.Context) Mutation) Mutation

// Mutate implements Middleware.
func (f MiddlewareFunc) Mutate(ctx context.Context, store string, next func(context.Context) Mutation) Mutation {
	return f(ctx, store, next)
}

// SubscriberObserver is implemented by middleware that wants subscriber
// counts whenever they change.
type SubscriberObserver interface {
	Subscribers(store string, count int)
}

// NotifyObserver is implemented by middleware that wants to know how many
// subscribers each fan-out reached.
type NotifyObserver interface {
	Notified(store string, version uint64, delivered int)
}

func (r *Registry) runMiddleware(ctx context.Context, store string, final func(context.Context) Mutation) Mutation {
	next := final
	for i := len(r.chain) - 1; i >= 0; i-- {
		mw := r.chain[i]
		inner := next
		next = func(ctx context.Context) Mutation {
			return mw.Mutate(ctx, store, inner)
		}
	}
	return next(ctx)
}

func (r *Registry) observeSubscribers(store string, count int) {
	for _, mw := range r.chain {
		if o, ok := mw.(SubscriberObserver); ok {
			o.Subscribers(store, count)
		}
	}
}

func (r *Registry) observeNotify(store string, version uint64, delivered int) {
	for _, mw := range r.chain {
		if o, ok := mw.(NotifyObserver); ok {
			o.Notified(store, version, delivered)
		}
	}
}

// Package registry owns the canonical value and the subscriber table of
// every store.
//
// A Registry is an explicit context object: one per application (or per
// test), created with New and torn down with Close. Store values are built
// lazily, the first time any operation touches their definition, and are
// kept until Close even when the last subscriber leaves.
//
//	reg := registry.New(registry.WithLogger(logger))
//	defer reg.Close()
//
//	id := reg.NewHandlerID()
//	registry.Subscribe(reg, CounterStore, id, func(c *Counter) { ... })
//	registry.Mutate(reg, CounterStore, func(c Counter) Counter {
//	    c.Count++
//	    return c
//	})
//
// # Snapshots
//
// Values are published as *S snapshots. A mutation never touches a published
// snapshot: the reducer receives a copy and its result becomes the next
// snapshot. Every reader between two mutations gets the same pointer, and
// reads never take the mutation lock.
//
// # Notification order
//
// Mutations of one store are serialized. Each published change is queued
// together with the subscribers present at that moment, and one goroutine at
// a time drains the queue. A mutation made from inside a subscriber callback
// is published immediately but its fan-out starts only after the current
// fan-out finishes. A subscriber removed mid fan-out receives nothing further.
//
// Reducers, Store.New and MutationHook implementations must not mutate their
// own store synchronously; doing so deadlocks.
package registry

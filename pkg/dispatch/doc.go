// Package dispatch provides the handle components use to read and change a
// shared store.
//
// A Dispatch is bound to one store definition in one registry. Bridge
// creates a subscribed handle whose callback receives the current snapshot
// at once and again after every change; New creates a detached handle that
// can read and mutate but receives nothing. Close ends the subscription.
//
//	d := dispatch.Bridge(reg, countStore, func(s *Count) {
//	    loop.Send(countChanged{s})
//	})
//	defer d.Close()
//
//	inc := d.ReduceCallback(func(c Count) Count { c.N++; return c })
//	inc()
//
// Snapshots passed to callbacks and returned by Get are shared by every
// reader and must not be modified. Reduce receives a copy of the value:
// the state's Clone when it implements store.Cloner, a shallow copy
// otherwise. With a shallow copy, maps, slices and pointees still alias the
// published snapshot and must be replaced before being changed.
//
// Every handle kind satisfies Dispatcher. A parent passes Props to its
// children so they share its subscription instead of registering their own.
package dispatch

package registry

import "time"

// Change is one published snapshot, as seen by registry-wide watchers.
type Change struct {
	Store   string    `json:"store"`
	Version uint64    `json:"version"`
	Value   any       `json:"value"`
	At      time.Time `json:"at"`
}

// Watch registers fn for every change of every store in the registry,
// delivered after the store's own subscribers. It returns a function that
// removes the watcher.
func (r *Registry) Watch(fn func(Change)) (cancel func()) {
	r.watchMu.Lock()
	r.watchID++
	id := r.watchID
	r.watchers[id] = fn
	r.watchMu.Unlock()

	return func() {
		r.watchMu.Lock()
		delete(r.watchers, id)
		r.watchMu.Unlock()
	}
}

func (r *Registry) broadcast(c Change) {
	r.watchMu.RLock()
	if len(r.watchers) == 0 {
		r.watchMu.RUnlock()
		return
	}
	fns := make([]func(Change), 0, len(r.watchers))
	for _, fn := range r.watchers {
		fns = append(fns, fn)
	}
	r.watchMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

package registry

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/dux/internal/errors"
	"github.com/vango-dev/dux/pkg/storage"
	"github.com/vango-dev/dux/pkg/store"
)

// deliveryKind says why a snapshot is being delivered.
type deliveryKind int

const (
	// deliverChange follows a published mutation: hook, subscribers, watchers.
	deliverChange deliveryKind = iota
	// deliverRebroadcast comes from Link.Notify: subscribers and watchers.
	deliverRebroadcast
	// deliverInitial is the first delivery to a new subscriber.
	deliverInitial
)

type subscriber[S any] struct {
	id     HandlerID
	fn     func(*S)
	active atomic.Bool
}

type delivery[S any] struct {
	kind    deliveryKind
	value   *S
	version uint64
	subs    []*subscriber[S]
}

// entry holds one store's state inside a registry. It also implements
// store.Link for the store's own use.
type entry[S any] struct {
	reg    *Registry
	def    store.Store[S]
	name   string
	logger *slog.Logger

	detector store.ChangeDetector[S]
	hook     store.MutationHook[S]

	// initMu guards construction; value is published once New returns.
	initMu  sync.Mutex
	value   atomic.Pointer[S]
	version atomic.Uint64
	updated atomic.Int64

	// mu serializes mutations and guards subs, queue and draining.
	mu       sync.Mutex
	subs     map[HandlerID]*subscriber[S]
	queue    []delivery[S]
	draining bool

	// persistMu guards watch cancellation and the bytes last written per
	// key, which let Watch tell this store's own writes from foreign ones.
	persistMu sync.Mutex
	cancels   []func()
	lastSaved map[string][]byte
}

func newEntry[S any](r *Registry, def store.Store[S]) *entry[S] {
	name := store.NameOf(def)
	e := &entry[S]{
		reg:    r,
		def:    def,
		name:   name,
		logger: r.logger.With("store", name),
		subs:   make(map[HandlerID]*subscriber[S]),
	}
	e.detector, _ = def.(store.ChangeDetector[S])
	e.hook, _ = def.(store.MutationHook[S])
	return e
}

// ensure returns the current snapshot, constructing the value exactly once.
// A panicking New leaves the entry unconstructed so a later call retries.
func (e *entry[S]) ensure() *S {
	if v := e.value.Load(); v != nil {
		return v
	}

	e.initMu.Lock()
	defer e.initMu.Unlock()

	if v := e.value.Load(); v != nil {
		return v
	}

	start := time.Now()
	v := e.def.New(e)
	e.value.Store(&v)
	e.updated.Store(time.Now().UnixNano())
	e.logger.Debug("store constructed", "duration", time.Since(start))
	return &v
}

func (e *entry[S]) subscribe(id HandlerID, fn func(*S)) {
	e.ensure()

	sub := &subscriber[S]{id: id, fn: fn}
	sub.active.Store(true)

	e.mu.Lock()
	if old, ok := e.subs[id]; ok {
		old.active.Store(false)
	}
	e.subs[id] = sub
	count := len(e.subs)
	e.queue = append(e.queue, delivery[S]{
		kind:    deliverInitial,
		value:   e.value.Load(),
		version: e.version.Load(),
		subs:    []*subscriber[S]{sub},
	})
	e.mu.Unlock()

	e.reg.observeSubscribers(e.name, count)
	e.drain()
}

func (e *entry[S]) unsubscribe(id HandlerID) {
	e.mu.Lock()
	sub, ok := e.subs[id]
	if ok {
		sub.active.Store(false)
		delete(e.subs, id)
	}
	count := len(e.subs)
	e.mu.Unlock()

	if ok {
		e.reg.observeSubscribers(e.name, count)
	}
}

func (e *entry[S]) subscriberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// activeSubs snapshots the subscriber table. Caller holds e.mu.
func (e *entry[S]) activeSubs() []*subscriber[S] {
	subs := make([]*subscriber[S], 0, len(e.subs))
	for _, s := range e.subs {
		subs = append(subs, s)
	}
	return subs
}

// mutate publishes fn's result and drains the notification queue.
func (e *entry[S]) mutate(fn func(S) S) Mutation {
	m := e.apply(fn)
	if m.Changed {
		e.drain()
	}
	return m
}

// apply computes and publishes the next snapshot under the mutation lock.
func (e *entry[S]) apply(fn func(S) S) Mutation {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := Mutation{Store: e.name, Subscribers: len(e.subs)}

	// Reduce from inside New: nothing is published yet.
	prev := e.value.Load()
	if prev == nil {
		return m
	}
	next := fn(store.Clone(prev))

	if e.detector != nil && !e.detector.Changed(prev, &next) {
		m.Version = e.version.Load()
		return m
	}

	e.value.Store(&next)
	e.updated.Store(time.Now().UnixNano())
	m.Version = e.version.Add(1)
	m.Changed = true

	e.queue = append(e.queue, delivery[S]{
		kind:    deliverChange,
		value:   &next,
		version: m.Version,
		subs:    e.activeSubs(),
	})
	return m
}

// rebroadcast queues the current snapshot for every subscriber.
func (e *entry[S]) rebroadcast() {
	cur := e.value.Load()
	if cur == nil {
		return
	}

	e.mu.Lock()
	e.queue = append(e.queue, delivery[S]{
		kind:    deliverRebroadcast,
		value:   e.value.Load(),
		version: e.version.Load(),
		subs:    e.activeSubs(),
	})
	e.mu.Unlock()

	e.drain()
}

// drain delivers queued snapshots in order. Only one goroutine drains at a
// time; callers that find a drain in progress return immediately and their
// deliveries are handled by the active drainer.
func (e *entry[S]) drain() {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true

	finished := false
	defer func() {
		if !finished {
			// A callback or hook panicked; let the next caller drain.
			e.mu.Lock()
			e.draining = false
			e.mu.Unlock()
		}
	}()

	for len(e.queue) > 0 {
		d := e.queue[0]
		e.queue[0] = delivery[S]{}
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.deliver(d)

		e.mu.Lock()
	}
	e.queue = nil
	e.draining = false
	finished = true
	e.mu.Unlock()
}

func (e *entry[S]) deliver(d delivery[S]) {
	if d.kind == deliverChange && e.hook != nil {
		e.hook.Mutated(e, d.value)
	}

	delivered := 0
	for _, sub := range d.subs {
		// Exact only for unsubscribes made on this goroutine.
		if !sub.active.Load() {
			continue
		}
		sub.fn(d.value)
		delivered++
	}

	if d.kind == deliverInitial {
		return
	}
	e.reg.observeNotify(e.name, d.version, delivered)
	e.reg.broadcast(Change{
		Store:   e.name,
		Version: d.version,
		Value:   d.value,
		At:      time.Now(),
	})
}

func (e *entry[S]) info() StoreInfo {
	var zero S
	info := StoreInfo{
		Name:        e.name,
		Type:        fmt.Sprintf("%T", zero),
		Version:     e.version.Load(),
		Subscribers: e.subscriberCount(),
	}
	if v := e.value.Load(); v != nil {
		info.Value = v
		info.UpdatedAt = time.Unix(0, e.updated.Load())
	}
	return info
}

func (e *entry[S]) close() {
	e.persistMu.Lock()
	cancels := e.cancels
	e.cancels = nil
	e.persistMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	e.mu.Lock()
	for id, sub := range e.subs {
		sub.active.Store(false)
		delete(e.subs, id)
	}
	e.queue = nil
	e.mu.Unlock()
}

// ============================================================================
// store.Link
// ============================================================================

// Name implements store.Link.
func (e *entry[S]) Name() string { return e.name }

// Get implements store.Link. It never triggers construction.
func (e *entry[S]) Get() *S { return e.value.Load() }

// Notify implements store.Link.
func (e *entry[S]) Notify() { e.rebroadcast() }

// Logger implements store.Link.
func (e *entry[S]) Logger() *slog.Logger { return e.logger }

// Reduce implements store.Link.
func (e *entry[S]) Reduce(fn func(S) S) {
	e.reg.runMiddleware(context.Background(), e.name, func(context.Context) Mutation {
		return e.mutate(fn)
	})
}

// Load implements store.Link.
func (e *entry[S]) Load(area storage.Area, key string) ([]byte, bool) {
	data, err := e.reg.areas.Load(context.Background(), area, key)
	if err != nil {
		derr := errors.FromError(err, "D001").WithStore(e.name).WithKey(key)
		e.logger.Warn("persisted state unavailable",
			"code", derr.Code,
			"area", area.String(),
			"error", derr)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	return data, true
}

// Save implements store.Link.
func (e *entry[S]) Save(area storage.Area, key string, data []byte) {
	e.persistMu.Lock()
	if e.lastSaved == nil {
		e.lastSaved = make(map[string][]byte)
	}
	e.lastSaved[persistKey(area, key)] = data
	e.persistMu.Unlock()

	if err := e.reg.areas.Save(context.Background(), area, key, data); err != nil {
		derr := errors.New("D003").WithStore(e.name).WithKey(key).Wrap(err)
		e.logger.Error("state not persisted",
			"code", derr.Code,
			"area", area.String(),
			"error", derr)
	}
}

// Watch implements store.Link. Changes whose content equals the last value
// this store saved under key are its own and are not reported.
func (e *entry[S]) Watch(area storage.Area, key string, fn func()) {
	cancel, err := e.reg.areas.Watch(area, key, func() {
		data, err := e.reg.areas.Load(context.Background(), area, key)
		if err != nil {
			return
		}
		e.persistMu.Lock()
		own, saved := e.lastSaved[persistKey(area, key)]
		e.persistMu.Unlock()
		if saved && bytes.Equal(own, data) {
			return
		}
		fn()
	})
	if err != nil {
		e.logger.Warn("store sync disabled",
			"code", errors.FromError(err, "D007").Code,
			"area", area.String(),
			"error", err)
		return
	}

	e.persistMu.Lock()
	e.cancels = append(e.cancels, cancel)
	e.persistMu.Unlock()
}

func persistKey(area storage.Area, key string) string {
	return area.String() + "/" + key
}

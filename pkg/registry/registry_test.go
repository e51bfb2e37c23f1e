package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vango-dev/dux/internal/errors"
	"github.com/vango-dev/dux/pkg/store"
)

type counter struct {
	Count uint32
}

func increment(c counter) counter {
	c.Count++
	return c
}

// constructions counts how often New runs.
type constructions struct {
	calls atomic.Int32
	value int
}

func (c *constructions) New(store.Link[int]) int {
	c.calls.Add(1)
	return c.value
}

func TestCounterSubscribeReduceUnsubscribe(t *testing.T) {
	r := New()
	def := store.NewBasic[counter](nil)

	var got []uint32
	a := r.NewHandlerID()
	Subscribe(r, def, a, func(c *counter) { got = append(got, c.Count) })

	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("initial delivery = %v, want [0]", got)
	}

	Mutate(r, def, increment)
	if len(got) != 2 || got[1] != 1 {
		t.Fatalf("after first reduce = %v, want [0 1]", got)
	}

	Unsubscribe(r, def, a)
	Mutate(r, def, increment)
	if len(got) != 2 {
		t.Fatalf("unsubscribed handler notified: %v", got)
	}
	if c := Get(r, def); c.Count != 2 {
		t.Fatalf("Get().Count = %d, want 2", c.Count)
	}
}

func TestGetConstructsOnceUnderConcurrency(t *testing.T) {
	r := New()
	def := &constructions{value: 7}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v := Get(r, def); *v != 7 {
				t.Errorf("Get() = %d, want 7", *v)
			}
		}()
	}
	wg.Wait()

	if n := def.calls.Load(); n != 1 {
		t.Fatalf("New called %d times, want 1", n)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	def := store.NewBasic(func() int { return 1 })
	r1, r2 := New(), New()

	Mutate(r1, def, func(n int) int { return n + 10 })

	if v := *Get(r1, def); v != 11 {
		t.Fatalf("r1 value = %d, want 11", v)
	}
	if v := *Get(r2, def); v != 1 {
		t.Fatalf("r2 value = %d, want 1", v)
	}
}

func TestSnapshotIsStableAcrossMutation(t *testing.T) {
	r := New()
	def := store.NewBasic(func() []int { return []int{1} })

	before := Get(r, def)
	Mutate(r, def, func(s []int) []int {
		next := append([]int(nil), s...)
		return append(next, 2)
	})

	if len(*before) != 1 {
		t.Fatalf("old snapshot changed: %v", *before)
	}
	if after := Get(r, def); len(*after) != 2 {
		t.Fatalf("new snapshot = %v, want len 2", *after)
	}
	if Version(r, def) != 1 {
		t.Fatalf("Version = %d, want 1", Version(r, def))
	}
}

func TestUnsubscribeInsideCallback(t *testing.T) {
	r := New()
	def := store.NewBasic[int](nil)

	var a, b HandlerID = r.NewHandlerID(), r.NewHandlerID()
	var aCalls, bCalls int
	Subscribe(r, def, a, func(v *int) {
		aCalls++
		if *v == 1 {
			Unsubscribe(r, def, a)
			Unsubscribe(r, def, b)
		}
	})
	Subscribe(r, def, b, func(*int) { bCalls++ })

	Mutate(r, def, func(n int) int { return n + 1 })
	Mutate(r, def, func(n int) int { return n + 1 })

	if aCalls != 2 {
		t.Fatalf("a calls = %d, want 2", aCalls)
	}
	// b may or may not see version 1 depending on map order, never version 2.
	if bCalls > 2 {
		t.Fatalf("b calls = %d, want at most 2", bCalls)
	}
	if n := SubscriberCount(r, def); n != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", n)
	}
}

func TestNestedMutationIsBreadthFirst(t *testing.T) {
	r := New()
	def := store.NewBasic[int](nil)

	type seen struct {
		who   string
		value int
	}
	var log []seen
	var once bool

	Subscribe(r, def, r.NewHandlerID(), func(v *int) {
		log = append(log, seen{"a", *v})
		if *v == 1 && !once {
			once = true
			Mutate(r, def, func(n int) int { return n + 1 })
		}
	})
	Subscribe(r, def, r.NewHandlerID(), func(v *int) {
		log = append(log, seen{"b", *v})
		if *v == 1 && !once {
			once = true
			Mutate(r, def, func(n int) int { return n + 1 })
		}
	})
	log = nil

	Mutate(r, def, func(n int) int { return n + 1 })

	if len(log) != 4 {
		t.Fatalf("deliveries = %v, want 4", log)
	}
	for i, s := range log[:2] {
		if s.value != 1 {
			t.Fatalf("delivery %d = %+v, want value 1 before any 2", i, s)
		}
	}
	for i, s := range log[2:] {
		if s.value != 2 {
			t.Fatalf("delivery %d = %+v, want value 2", i+2, s)
		}
	}
}

func TestSubscribeInsideCallbackIsQueued(t *testing.T) {
	r := New()
	def := store.NewBasic[int](nil)

	var order []string
	inner := r.NewHandlerID()
	Subscribe(r, def, r.NewHandlerID(), func(v *int) {
		order = append(order, "outer")
		if *v == 1 {
			Subscribe(r, def, inner, func(*int) { order = append(order, "inner") })
			order = append(order, "outer-done")
		}
	})
	order = nil

	Mutate(r, def, func(n int) int { return n + 1 })

	want := []string{"outer", "outer-done", "inner"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestChangeDetectorSuppressesNotification(t *testing.T) {
	r := New()
	def := store.NewBasic(func() int { return 3 }, store.WithEquals(func(a, b int) bool { return a == b }))

	calls := 0
	Subscribe(r, def, r.NewHandlerID(), func(*int) { calls++ })

	m := Mutate(r, def, func(n int) int { return n })
	if m.Changed {
		t.Fatal("Mutation.Changed = true for equal value")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (initial only)", calls)
	}
	if Version(r, def) != 0 {
		t.Fatalf("Version = %d, want 0", Version(r, def))
	}

	m = Mutate(r, def, func(n int) int { return n + 1 })
	if !m.Changed || m.Version != 1 || m.Subscribers != 1 {
		t.Fatalf("Mutation = %+v", m)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestMutatePanicKeepsPreviousSnapshot(t *testing.T) {
	r := New()
	def := store.NewBasic(func() int { return 5 })

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		Mutate(r, def, func(int) int { panic("boom") })
	}()

	if v := *Get(r, def); v != 5 {
		t.Fatalf("value after panic = %d, want 5", v)
	}

	calls := 0
	Subscribe(r, def, r.NewHandlerID(), func(*int) { calls++ })
	Mutate(r, def, func(n int) int { return n + 1 })
	if v := *Get(r, def); v != 6 || calls != 2 {
		t.Fatalf("value = %d calls = %d, want 6 and 2", v, calls)
	}
}

func TestSubscriberPanicDoesNotWedgeStore(t *testing.T) {
	r := New()
	def := store.NewBasic[int](nil)

	id := r.NewHandlerID()
	Subscribe(r, def, id, func(v *int) {
		if *v == 1 {
			panic("subscriber")
		}
	})

	func() {
		defer func() { _ = recover() }()
		Mutate(r, def, func(n int) int { return n + 1 })
	}()
	Unsubscribe(r, def, id)

	calls := 0
	Subscribe(r, def, r.NewHandlerID(), func(*int) { calls++ })
	Mutate(r, def, func(n int) int { return n + 1 })
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestResubscribeReplacesCallback(t *testing.T) {
	r := New()
	def := store.NewBasic[int](nil)
	id := r.NewHandlerID()

	first, second := 0, 0
	Subscribe(r, def, id, func(*int) { first++ })
	Subscribe(r, def, id, func(*int) { second++ })
	Mutate(r, def, func(n int) int { return n + 1 })

	if first != 1 || second != 2 {
		t.Fatalf("first = %d second = %d, want 1 and 2", first, second)
	}
	if n := SubscriberCount(r, def); n != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", n)
	}
}

func TestValueRetainedAfterLastUnsubscribe(t *testing.T) {
	r := New()
	def := &constructions{value: 1}

	id := r.NewHandlerID()
	Subscribe(r, def, id, func(*int) {})
	Mutate(r, def, func(n int) int { return n + 1 })
	Unsubscribe(r, def, id)

	if v := *Get(r, def); v != 2 {
		t.Fatalf("value = %d, want 2", v)
	}
	if n := def.calls.Load(); n != 1 {
		t.Fatalf("New called %d times, want 1", n)
	}
}

type notComparable struct {
	fields []int
}

func (notComparable) New(store.Link[int]) int { return 0 }

func TestNonComparableDefinitionPanics(t *testing.T) {
	r := New()
	defer func() {
		rec := recover()
		err, ok := rec.(error)
		if !ok || !errors.HasCode(err, "D050") {
			t.Fatalf("recover() = %v, want D050 error", rec)
		}
	}()
	Get[int](r, notComparable{})
}

func TestStoresAndWatch(t *testing.T) {
	r := New()
	a := store.NewBasic(func() int { return 1 }, store.WithName("a"))
	b := store.NewBasic(func() string { return "x" }, store.WithName("b"))
	unused := store.NewBasic[int](nil, store.WithName("unused"))
	_ = unused

	var changes []Change
	cancel := r.Watch(func(c Change) { changes = append(changes, c) })

	Get(r, b)
	Mutate(r, a, func(n int) int { return n + 1 })

	infos := r.Stores()
	if len(infos) != 2 || infos[0].Name != "a" || infos[1].Name != "b" {
		t.Fatalf("Stores() = %+v", infos)
	}
	if infos[0].Version != 1 || infos[0].Type != "int" {
		t.Fatalf("a info = %+v", infos[0])
	}
	if info, ok := r.Store("b"); !ok || *(info.Value.(*string)) != "x" {
		t.Fatalf("Store(b) = %+v, %v", info, ok)
	}

	if len(changes) != 1 || changes[0].Store != "a" || changes[0].Version != 1 {
		t.Fatalf("changes = %+v", changes)
	}

	cancel()
	Mutate(r, a, func(n int) int { return n + 1 })
	if len(changes) != 1 {
		t.Fatalf("cancelled watcher notified: %+v", changes)
	}
}

func TestCloseDropsValuesAndSubscribers(t *testing.T) {
	r := New()
	def := &constructions{value: 1}

	calls := 0
	Subscribe(r, def, r.NewHandlerID(), func(*int) { calls++ })
	Mutate(r, def, func(n int) int { return n + 5 })

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(r.Stores()) != 0 {
		t.Fatalf("Stores() after Close = %+v", r.Stores())
	}
	if v := *Get(r, def); v != 1 {
		t.Fatalf("Get after Close = %d, want fresh 1", v)
	}
	if n := def.calls.Load(); n != 2 {
		t.Fatalf("New called %d times, want 2", n)
	}
	Mutate(r, def, func(n int) int { return n + 1 })
	if calls != 2 {
		t.Fatalf("old subscriber called after Close: %d", calls)
	}
}

type recordingMiddleware struct {
	name  string
	order *[]string

	mu          sync.Mutex
	subscribers map[string]int
	delivered   int
}

func (m *recordingMiddleware) Mutate(ctx context.Context, s string, next func(context.Context) Mutation) Mutation {
	*m.order = append(*m.order, m.name+">")
	res := next(ctx)
	*m.order = append(*m.order, "<"+m.name)
	return res
}

func (m *recordingMiddleware) Subscribers(s string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribers == nil {
		m.subscribers = make(map[string]int)
	}
	m.subscribers[s] = count
}

func (m *recordingMiddleware) Notified(s string, version uint64, delivered int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered += delivered
}

func TestMiddlewareOrderAndObservers(t *testing.T) {
	var order []string
	outer := &recordingMiddleware{name: "outer", order: &order}
	inner := &recordingMiddleware{name: "inner", order: &order}
	r := New(WithMiddleware(outer, inner))

	def := store.NewBasic[int](nil, store.WithName("n"))
	Subscribe(r, def, r.NewHandlerID(), func(*int) {})
	Subscribe(r, def, r.NewHandlerID(), func(*int) {})

	m := Mutate(r, def, func(n int) int { return n + 1 })
	if !m.Changed || m.Store != "n" {
		t.Fatalf("Mutation = %+v", m)
	}

	want := []string{"outer>", "inner>", "<inner", "<outer"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}

	if outer.subscribers["n"] != 2 {
		t.Fatalf("observed subscribers = %d, want 2", outer.subscribers["n"])
	}
	if outer.delivered != 2 {
		t.Fatalf("observed deliveries = %d, want 2", outer.delivered)
	}
}

func TestMiddlewareFunc(t *testing.T) {
	var seen string
	mw := MiddlewareFunc(func(ctx context.Context, s string, next func(context.Context) Mutation) Mutation {
		seen = s
		return next(ctx)
	})
	r := New(WithMiddleware(mw))
	def := store.NewBasic[int](nil, store.WithName("f"))

	MutateContext(context.Background(), r, def, func(n int) int { return n + 1 })
	if seen != "f" {
		t.Fatalf("middleware saw %q, want %q", seen, "f")
	}
}

func TestLinkNotifyRebroadcasts(t *testing.T) {
	r := New()
	def := &notifier{}

	calls := 0
	Subscribe(r, def, r.NewHandlerID(), func(*int) { calls++ })
	def.link.Notify()

	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if Version(r, def) != 0 {
		t.Fatalf("Notify bumped version to %d", Version(r, def))
	}
}

type notifier struct {
	link store.Link[int]
}

func (n *notifier) New(link store.Link[int]) int {
	n.link = link
	return 0
}

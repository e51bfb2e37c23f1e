package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/vango-dev/dux/internal/errors"
	"github.com/vango-dev/dux/pkg/registry"
	"github.com/vango-dev/dux/pkg/storage"
	"github.com/vango-dev/dux/pkg/store"
)

type prefs struct {
	Theme    string `json:"theme" yaml:"theme"`
	FontSize int    `json:"font_size" yaml:"font_size"`
}

func defaultPrefs() prefs {
	return prefs{Theme: "light", FontSize: 14}
}

type todos struct {
	Items []string
}

type todoAction struct {
	Add    string
	Remove int
	Noop   bool
}

func (t todos) Reduce(a todoAction) todos {
	switch {
	case a.Noop:
		return t
	case a.Add != "":
		items := append(append([]string(nil), t.Items...), a.Add)
		return todos{Items: items}
	case a.Remove >= 0 && a.Remove < len(t.Items):
		items := append(append([]string(nil), t.Items[:a.Remove]...), t.Items[a.Remove+1:]...)
		return todos{Items: items}
	}
	return t
}

func TestNameOf(t *testing.T) {
	if got := store.NameOf[int](store.NewBasic[int](nil)); got != "int" {
		t.Fatalf("NameOf(unnamed) = %q, want %q", got, "int")
	}
	if got := store.NameOf[int](store.NewBasic[int](nil, store.WithName("clicks"))); got != "clicks" {
		t.Fatalf("NameOf(named) = %q, want %q", got, "clicks")
	}
	p := store.NewPersistent("ui.prefs", storage.Durable, defaultPrefs)
	if got := store.NameOf[prefs](p); got != "ui.prefs" {
		t.Fatalf("NameOf(persistent) = %q, want key", got)
	}
}

func TestBasicDefaults(t *testing.T) {
	r := registry.New()
	zero := store.NewBasic[prefs](nil)
	init := store.NewBasic(defaultPrefs)

	if got := *registry.Get(r, zero); got != (prefs{}) {
		t.Fatalf("zero default = %+v", got)
	}
	if got := *registry.Get(r, init); got != defaultPrefs() {
		t.Fatalf("init default = %+v", got)
	}
}

func TestBasicNotifiesEveryReduce(t *testing.T) {
	r := registry.New()
	def := store.NewBasic(func() int { return 1 })

	calls := 0
	registry.Subscribe(r, def, r.NewHandlerID(), func(*int) { calls++ })
	registry.Mutate(r, def, func(n int) int { return n })
	registry.Mutate(r, def, func(n int) int { return n })

	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestReducerSkipsUnchangedActions(t *testing.T) {
	r := registry.New()
	def := store.NewReducer[todos, todoAction](nil, store.WithName("todos"))

	calls := 0
	registry.Subscribe(r, def, r.NewHandlerID(), func(*todos) { calls++ })

	send := func(a todoAction) registry.Mutation {
		return registry.Mutate(r, def, func(s todos) todos { return def.Apply(s, a) })
	}

	if m := send(todoAction{Add: "milk"}); !m.Changed {
		t.Fatal("add should change")
	}
	if m := send(todoAction{Noop: true}); m.Changed {
		t.Fatal("noop should not change")
	}
	if m := send(todoAction{Remove: 5}); m.Changed {
		t.Fatal("out-of-range remove should not change")
	}
	send(todoAction{Add: "eggs"})
	send(todoAction{Remove: 0})

	got := registry.Get(r, def)
	if len(got.Items) != 1 || got.Items[0] != "eggs" {
		t.Fatalf("items = %v, want [eggs]", got.Items)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
}

func TestEqual(t *testing.T) {
	if !store.Equal(3, 3) || store.Equal(3, 4) {
		t.Fatal("int equality")
	}
	if !store.Equal("a", "a") || store.Equal("a", "b") {
		t.Fatal("string equality")
	}
	if !store.Equal([]int{1, 2}, []int{1, 2}) {
		t.Fatal("slice deep equality")
	}
	if !store.Equal(todos{Items: []string{"x"}}, todos{Items: []string{"x"}}) {
		t.Fatal("struct deep equality")
	}
	var a, b any = 1, "1"
	if store.Equal(a, b) {
		t.Fatal("interface values of different types are equal")
	}
}

type roster struct {
	Names []string
}

func (r *roster) Clone() roster {
	return roster{Names: append([]string(nil), r.Names...)}
}

func TestClone(t *testing.T) {
	src := roster{Names: []string{"ada"}}
	cp := store.Clone(&src)
	cp.Names[0] = "bob"
	if src.Names[0] != "ada" {
		t.Fatalf("pointer-receiver Clone shared the slice: %v", src.Names)
	}

	plain := tagsNoClone{Names: []string{"ada"}}
	shallow := store.Clone(&plain)
	shallow.Names[0] = "bob"
	if plain.Names[0] != "bob" {
		t.Fatalf("shallow copy did not share the slice: %v", plain.Names)
	}
}

type tagsNoClone struct {
	Names []string
}

func TestWithEqualsTypeMismatchPanics(t *testing.T) {
	defer func() {
		err, _ := recover().(error)
		if !errors.HasCode(err, "D053") {
			t.Fatalf("recover() = %v, want D053", err)
		}
	}()
	store.NewBasic(func() int { return 0 },
		store.WithEquals(func(a, b string) bool { return a == b }))
}

func TestCodecByName(t *testing.T) {
	for _, name := range []string{"", "json", "yaml", "yml"} {
		if _, ok := store.CodecByName(name); !ok {
			t.Errorf("CodecByName(%q) not found", name)
		}
	}
	if _, ok := store.CodecByName("toml"); ok {
		t.Fatal("CodecByName(toml) found")
	}
}

func TestPersistentLoadsAndSaves(t *testing.T) {
	areas := storage.InMemory()
	ctx := context.Background()
	if err := areas.Save(ctx, storage.Durable, "ui.prefs", []byte(`{"theme":"dark","font_size":12}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := registry.New(registry.WithStorage(areas))
	def := store.NewPersistent("ui.prefs", storage.Durable, defaultPrefs)

	got := *registry.Get(r, def)
	if got != (prefs{Theme: "dark", FontSize: 12}) {
		t.Fatalf("loaded = %+v, want the persisted value", got)
	}

	registry.Mutate(r, def, func(p prefs) prefs {
		p.FontSize = 16
		return p
	})

	data, err := areas.Load(ctx, storage.Durable, "ui.prefs")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(data) != `{"theme":"dark","font_size":16}` {
		t.Fatalf("saved = %s", data)
	}

	// A fresh registry sees the saved value.
	r2 := registry.New(registry.WithStorage(areas))
	if got := *registry.Get(r2, def); got.FontSize != 16 {
		t.Fatalf("reloaded = %+v", got)
	}
}

type features struct {
	On map[string]bool `json:"on" yaml:"on"`
}

func TestPersistentMapFieldReplacesDefault(t *testing.T) {
	for _, codec := range []store.Codec{store.JSON, store.YAML} {
		t.Run(codec.Name(), func(t *testing.T) {
			areas := storage.InMemory()
			def := store.NewPersistent("features", storage.Durable,
				func() features { return features{On: map[string]bool{"beta": true}} },
				store.WithCodec(codec))

			r := registry.New(registry.WithStorage(areas))
			registry.Mutate(r, def, func(features) features {
				return features{On: map[string]bool{"gamma": true}}
			})

			r2 := registry.New(registry.WithStorage(areas))
			got := registry.Get(r2, def).On
			if len(got) != 1 || !got["gamma"] {
				t.Fatalf("reloaded = %v, want map[gamma:true]", got)
			}
		})
	}
}

func TestPersistentCorruptDataFallsBackToDefault(t *testing.T) {
	areas := storage.InMemory()
	_ = areas.Save(context.Background(), storage.Session, "p", []byte("{not json"))

	r := registry.New(registry.WithStorage(areas))
	def := store.NewPersistent("p", storage.Session, defaultPrefs)

	if got := *registry.Get(r, def); got != defaultPrefs() {
		t.Fatalf("corrupt load = %+v, want default", got)
	}
}

func TestPersistentMissingAreaFallsBackToDefault(t *testing.T) {
	areas := storage.NewAreas(storage.NewMemoryBackend(), nil)
	r := registry.New(registry.WithStorage(areas))
	def := store.NewPersistent("p", storage.Session, defaultPrefs)

	if got := *registry.Get(r, def); got != defaultPrefs() {
		t.Fatalf("value = %+v, want default", got)
	}
	// Saving to an unconfigured area is logged, not fatal.
	registry.Mutate(r, def, func(p prefs) prefs {
		p.Theme = "dark"
		return p
	})
	if got := registry.Get(r, def).Theme; got != "dark" {
		t.Fatalf("Theme = %q, want dark", got)
	}
}

func TestPersistentYAMLCodec(t *testing.T) {
	areas := storage.InMemory()
	r := registry.New(registry.WithStorage(areas))
	def := store.NewPersistent("prefs.yaml", storage.Durable, defaultPrefs, store.WithCodec(store.YAML))

	registry.Mutate(r, def, func(p prefs) prefs {
		p.Theme = "solarized"
		return p
	})

	data, _ := areas.Load(context.Background(), storage.Durable, "prefs.yaml")
	if !strings.Contains(string(data), "theme: solarized") {
		t.Fatalf("yaml = %q", data)
	}

	r2 := registry.New(registry.WithStorage(areas))
	if got := registry.Get(r2, def).Theme; got != "solarized" {
		t.Fatalf("Theme = %q, want solarized", got)
	}
}

func TestPersistentWithEqualsSkipsWrite(t *testing.T) {
	areas := storage.InMemory()
	r := registry.New(registry.WithStorage(areas))
	def := store.NewPersistent("n", storage.Durable, func() int { return 1 },
		store.WithEquals(func(a, b int) bool { return a == b }))

	registry.Mutate(r, def, func(n int) int { return n })

	if data, _ := areas.Load(context.Background(), storage.Durable, "n"); data != nil {
		t.Fatalf("unchanged reduce wrote %s", data)
	}
}

func TestPersistentSyncFollowsExternalWrites(t *testing.T) {
	backend := storage.NewMemoryBackend()
	areas := storage.NewAreas(backend, storage.NewMemoryBackend())
	r := registry.New(registry.WithStorage(areas))
	defer r.Close()

	def := store.NewPersistent("shared", storage.Durable, defaultPrefs, store.WithSync())

	var seen []string
	registry.Subscribe(r, def, r.NewHandlerID(), func(p *prefs) { seen = append(seen, p.Theme) })

	// Own write: persisted, not echoed back.
	registry.Mutate(r, def, func(p prefs) prefs {
		p.Theme = "dark"
		return p
	})
	if len(seen) != 2 {
		t.Fatalf("seen = %v, want [light dark]", seen)
	}

	// Another process writes the key.
	ctx := context.Background()
	if err := backend.Save(ctx, "shared", []byte(`{"theme":"blue","font_size":12}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got := *registry.Get(r, def)
	if got.Theme != "blue" || got.FontSize != 12 {
		t.Fatalf("synced = %+v", got)
	}
	if len(seen) != 3 || seen[2] != "blue" {
		t.Fatalf("seen = %v, want [light dark blue]", seen)
	}

	// Writing the same content again is not a change.
	_ = backend.Save(ctx, "shared", []byte(`{"theme":"blue","font_size":12}`))
	if len(seen) != 3 {
		t.Fatalf("seen = %v after identical write", seen)
	}
}

func TestPersistentSyncUnsupportedBackend(t *testing.T) {
	areas := storage.NewAreas(nopBackend{}, nil)
	r := registry.New(registry.WithStorage(areas))
	def := store.NewPersistent("x", storage.Durable, func() int { return 4 }, store.WithSync())

	if v := *registry.Get(r, def); v != 4 {
		t.Fatalf("value = %d, want 4", v)
	}
}

type nopBackend struct{}

func (nopBackend) Load(context.Context, string) ([]byte, error) { return nil, nil }
func (nopBackend) Save(context.Context, string, []byte) error   { return nil }
func (nopBackend) Delete(context.Context, string) error         { return nil }
func (nopBackend) Keys(context.Context) ([]string, error)       { return nil, nil }
func (nopBackend) Close() error                                 { return nil }

package store

import (
	"github.com/vango-dev/dux/internal/errors"
	"github.com/vango-dev/dux/pkg/storage"
)

// Persistent keeps its value in a storage area under a fixed key. The value
// is loaded once at construction and written back after every change.
type Persistent[S any] struct {
	key    string
	area   storage.Area
	init   func() S
	name   string
	codec  Codec
	sync   bool
	equals func(a, b S) bool
}

// NewPersistent creates a Persistent store definition. The display name
// defaults to key.
func NewPersistent[S any](key string, area storage.Area, init func() S, opts ...Option) *Persistent[S] {
	cfg := applyOptions(opts)
	name := cfg.name
	if name == "" {
		name = key
	}
	return &Persistent[S]{
		key:    key,
		area:   area,
		init:   init,
		name:   name,
		codec:  cfg.codec,
		sync:   cfg.sync,
		equals: equalsFor[S](cfg),
	}
}

// Key returns the storage key.
func (p *Persistent[S]) Key() string { return p.key }

// Area returns the storage area.
func (p *Persistent[S]) Area() storage.Area { return p.area }

// Codec returns the codec used to encode the value.
func (p *Persistent[S]) Codec() Codec { return p.codec }

// Name implements Named.
func (p *Persistent[S]) Name() string { return p.name }

func (p *Persistent[S]) defaultValue() S {
	if p.init == nil {
		var zero S
		return zero
	}
	return p.init()
}

// New implements Store. Load and decode failures are logged and produce the
// default value.
func (p *Persistent[S]) New(link Link[S]) S {
	value := p.load(link)
	if p.sync {
		link.Watch(p.area, p.key, func() { p.reload(link) })
	}
	return value
}

func (p *Persistent[S]) load(link Link[S]) S {
	data, ok := link.Load(p.area, p.key)
	if !ok {
		return p.defaultValue()
	}

	// Decode into a fresh value: decoders merge maps into existing ones.
	var value S
	if err := p.codec.Unmarshal(data, &value); err != nil {
		derr := errors.New("D002").WithStore(p.name).WithKey(p.key).Wrap(err)
		link.Logger().Warn("persisted state ignored",
			"code", derr.Code,
			"area", p.area.String(),
			"codec", p.codec.Name(),
			"error", derr)
		return p.defaultValue()
	}
	return value
}

// reload folds an external write back into the store.
func (p *Persistent[S]) reload(link Link[S]) {
	next := p.load(link)
	if cur := link.Get(); cur != nil && Equal(*cur, next) {
		return
	}
	link.Reduce(func(S) S { return next })
}

// Changed implements ChangeDetector. Without WithEquals every reduce is a
// change.
func (p *Persistent[S]) Changed(prev, next *S) bool {
	if p.equals == nil {
		return true
	}
	return !p.equals(*prev, *next)
}

// Mutated implements MutationHook by writing the new value back.
func (p *Persistent[S]) Mutated(link Link[S], next *S) {
	data, err := p.codec.Marshal(next)
	if err != nil {
		derr := errors.New("D004").WithStore(p.name).WithKey(p.key).Wrap(err)
		link.Logger().Error("state not persisted", "code", derr.Code, "error", derr)
		return
	}
	link.Save(p.area, p.key, data)
}

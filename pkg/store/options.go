package store

import (
	"fmt"

	"github.com/vango-dev/dux/internal/errors"
)

// Option configures a store definition.
type Option func(*config)

type config struct {
	name   string
	equals any
	codec  Codec
	sync   bool
}

func applyOptions(opts []Option) config {
	cfg := config{codec: JSON}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithName sets the display name used in logs, metrics and devtools.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithEquals installs a change predicate. A reduce whose result is equal to
// the previous value is dropped: no notification, no persistence write.
//
// The function's type must match the store's state type; building a
// definition with a mismatched predicate panics with D053.
func WithEquals[S any](fn func(a, b S) bool) Option {
	return func(c *config) {
		c.equals = fn
	}
}

// WithCodec selects the encoding a Persistent store writes. Default: JSON.
func WithCodec(codec Codec) Option {
	return func(c *config) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithSync makes a Persistent store follow writes made to its key by other
// processes. The backend for the store's area must implement storage.Watcher.
func WithSync() Option {
	return func(c *config) {
		c.sync = true
	}
}

func equalsFor[S any](cfg config) func(a, b S) bool {
	if cfg.equals == nil {
		return nil
	}
	fn, ok := cfg.equals.(func(a, b S) bool)
	if !ok {
		var zero S
		panic(errors.New("D053").
			WithStore(cfg.name).
			WithDetail(fmt.Sprintf("got %T, want func(a, b %T) bool", cfg.equals, zero)))
	}
	return fn
}

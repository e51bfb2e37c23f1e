package component

import (
	"context"
	"sync"
)

// Component is what a Loop drives.
type Component[M any] interface {
	// Update handles msg and reports whether the view must be rendered again.
	Update(msg M) bool

	// View renders the component.
	View() string
}

// Loop is a single-threaded message loop.
type Loop[M any] struct {
	mu      sync.Mutex
	pending []M
	wake    chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewLoop creates a loop. Messages sent before Run are kept until Run
// starts.
func NewLoop[M any]() *Loop[M] {
	return &Loop[M]{
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
}

// Send enqueues msg. Safe to call from any goroutine, including from inside
// Update. Messages sent after Stop are dropped.
func (l *Loop[M]) Send(msg M) {
	select {
	case <-l.stopCh:
		return
	default:
	}

	l.mu.Lock()
	l.pending = append(l.pending, msg)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Stop makes Run return. Stop is idempotent.
func (l *Loop[M]) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Run renders c once, then processes messages until Stop is called or ctx
// is done. Messages received together are applied in order and rendered
// once.
func (l *Loop[M]) Run(ctx context.Context, c Component[M], render func(view string)) error {
	render(c.View())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopCh:
			return nil
		case <-l.wake:
		}

		if l.step(c) {
			render(c.View())
		}
	}
}

// step applies pending messages, including those sent while applying.
func (l *Loop[M]) step(c Component[M]) bool {
	dirty := false
	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return dirty
		}
		for _, msg := range batch {
			if c.Update(msg) {
				dirty = true
			}
		}
	}
}

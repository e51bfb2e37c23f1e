package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/vango-dev/dux/pkg/component"
	"github.com/vango-dev/dux/pkg/devtools"
	"github.com/vango-dev/dux/pkg/dispatch"
	"github.com/vango-dev/dux/pkg/middleware"
	"github.com/vango-dev/dux/pkg/registry"
	"github.com/vango-dev/dux/pkg/storage"
	"github.com/vango-dev/dux/pkg/store"
)

// counterState is the demo's shared state.
type counterState struct {
	Count uint32 `json:"count"`
}

// counterStore persists the count, so the demo resumes where it stopped.
var counterStore = store.NewPersistent("demo.counter", storage.Durable,
	func() counterState { return counterState{} },
)

// demoMsg is the message type of every demo component.
type demoMsg struct {
	state     *counterState
	increment bool
}

func wrapState(s *counterState) demoMsg { return demoMsg{state: s} }

func unwrapState(m demoMsg) (*counterState, bool) { return m.state, m.state != nil }

// counterView shows the count.
type counterView struct {
	name string
}

func (v *counterView) Update(demoMsg) bool { return false }

func (v *counterView) View(s *counterState) string {
	return fmt.Sprintf("[%s] count=%d", v.name, s.Count)
}

// incrementer owns the button: it increments on request.
type incrementer struct {
	d *dispatch.Dispatch[counterState]
}

func (b *incrementer) Update(m demoMsg) bool {
	if m.increment {
		b.d.ReduceMut(func(s *counterState) { s.Count++ })
	}
	return false
}

func (b *incrementer) View(s *counterState) string {
	return fmt.Sprintf("[button] +1 (at %d)", s.Count)
}

func demoCmd(flags *globalFlags) *cobra.Command {
	var (
		interval time.Duration
		ticks    int
		addr     string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the shared counter demo",
		Long: `Run two counter views and a button as independent components that
share one persistent store. The button is pressed every --interval.

Every view re-renders on each change. The count is saved to the durable
area and resumes on the next run. With --addr the devtools server runs
alongside.

Examples:
  dux demo --ticks=5
  dux demo --interval=500ms --addr=localhost:7070`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDemo(ctx, flags, interval, ticks, addr)
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Time between button presses")
	cmd.Flags().IntVarP(&ticks, "ticks", "n", 0, "Stop after this many presses (0: run until interrupted)")
	cmd.Flags().StringVar(&addr, "addr", "", "Serve devtools on this address")

	return cmd
}

func runDemo(ctx context.Context, flags *globalFlags, interval time.Duration, ticks int, addr string) error {
	cfg, areas, logger, err := openStorage(ctx, flags)
	if err != nil {
		return err
	}
	defer areas.Close()

	promReg := prometheus.NewRegistry()
	reg := registry.New(
		registry.WithLogger(logger),
		registry.WithStorage(areas),
		registry.WithMiddleware(
			middleware.Logging(logger),
			middleware.OpenTelemetry(),
			middleware.Prometheus(
				middleware.WithRegistry(promReg),
				middleware.WithNamespace(cfg.Metrics.Namespace),
			),
		),
	)
	defer reg.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out sync.Mutex
	render := func(view string) {
		out.Lock()
		defer out.Unlock()
		fmt.Println(view)
	}

	var wg sync.WaitGroup
	run := func(loop *component.Loop[demoMsg], c component.Component[demoMsg]) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = loop.Run(ctx, c, render)
		}()
	}

	for _, name := range []string{"left", "right"} {
		v := &counterView{name: name}
		loop := component.NewLoop[demoMsg]()
		app := component.NewWithDispatch(loop, reg, counterStore,
			func(*dispatch.Dispatch[counterState]) component.Inner[counterState, demoMsg] { return v },
			wrapState, unwrapState)
		defer app.Close()
		run(loop, app)
	}

	buttonLoop := component.NewLoop[demoMsg]()
	button := component.NewWithDispatch(buttonLoop, reg, counterStore,
		func(d *dispatch.Dispatch[counterState]) component.Inner[counterState, demoMsg] {
			return &incrementer{d: d}
		},
		wrapState, unwrapState)
	defer button.Close()
	run(buttonLoop, button)

	if addr != "" {
		srv := devtools.New(reg,
			devtools.WithLogger(logger),
			devtools.WithGatherer(promReg),
			devtools.WithRate(rate.Limit(cfg.Devtools.Rate), cfg.Devtools.Burst),
		)
		defer srv.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				logger.Error("devtools stopped", "error", err)
			}
		}()
		info("devtools on http://%s", addr)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pressed := 0
	for ticks == 0 || pressed < ticks {
		select {
		case <-ctx.Done():
			cancel()
			wg.Wait()
			return nil
		case <-ticker.C:
			buttonLoop.Send(demoMsg{increment: true})
			pressed++
		}
	}

	// Let the button loop apply the last press before stopping.
	deadline := time.Now().Add(interval + time.Second)
	for registry.Version(reg, counterStore) < uint64(pressed) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	wg.Wait()
	success("Pressed %d times, count is %d", pressed, registry.Get(reg, counterStore).Count)
	return nil
}

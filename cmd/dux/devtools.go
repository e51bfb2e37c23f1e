package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/vango-dev/dux/internal/errors"
	"github.com/vango-dev/dux/pkg/devtools"
	"github.com/vango-dev/dux/pkg/middleware"
	"github.com/vango-dev/dux/pkg/registry"
	"github.com/vango-dev/dux/pkg/storage"
	"github.com/vango-dev/dux/pkg/store"
)

func devtoolsCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "devtools",
		Short: "Serve a live view of persisted state",
		Long: `Serve every persisted key as a store over the devtools HTTP API.

Each key in the durable and session areas becomes a store named
<area>/<key> that follows writes to storage, so changes made by running
applications (or by "dux set") appear on the /ws stream.

Routes:
  GET /stores                all stores
  GET /stores/<area>/<key>   one store
  GET /ws                    WebSocket change stream
  GET /metrics               Prometheus metrics

Examples:
  dux devtools
  dux devtools --addr=:7070`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDevtools(ctx, flags, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")

	return cmd
}

func runDevtools(ctx context.Context, flags *globalFlags, addr string) error {
	cfg, areas, logger, err := openStorage(ctx, flags)
	if err != nil {
		return err
	}
	defer areas.Close()
	if addr != "" {
		cfg.Devtools.Addr = addr
	}

	promReg := prometheus.NewRegistry()
	reg := registry.New(
		registry.WithLogger(logger),
		registry.WithStorage(areas),
		registry.WithMiddleware(
			middleware.Logging(logger),
			middleware.Prometheus(
				middleware.WithRegistry(promReg),
				middleware.WithNamespace(cfg.Metrics.Namespace),
			),
		),
	)
	defer reg.Close()

	count := 0
	for _, area := range []storage.Area{storage.Durable, storage.Session} {
		b, err := areas.Backend(area)
		if err != nil {
			continue
		}
		lctx, cancel := areas.Context(ctx)
		keys, err := b.Keys(lctx)
		cancel()
		if err != nil {
			return errors.FromError(err, "D001")
		}
		for _, key := range keys {
			def := store.NewPersistent[any](key, area, nil,
				store.WithName(area.String()+"/"+key),
				store.WithSync(),
			)
			registry.Get(reg, def)
			count++
		}
	}

	srv := devtools.New(reg,
		devtools.WithLogger(logger),
		devtools.WithGatherer(promReg),
		devtools.WithRate(rate.Limit(cfg.Devtools.Rate), cfg.Devtools.Burst),
	)
	defer srv.Close()

	success("Serving %d stores on http://%s", count, cfg.Devtools.Addr)
	info("Press Ctrl+C to stop")
	return srv.ListenAndServe(ctx, cfg.Devtools.Addr)
}

package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/vango-dev/dux/pkg/registry"
)

// Logging creates middleware that logs each mutation at debug level and
// each reducer panic at error level. Panics are re-raised after logging.
// A nil logger uses slog.Default().
func Logging(logger *slog.Logger) registry.Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return registry.MiddlewareFunc(func(ctx context.Context, store string, next func(context.Context) registry.Mutation) registry.Mutation {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "reducer panic",
					"store", store,
					"panic", r,
					"duration", time.Since(start))
				panic(r)
			}
		}()

		res := next(ctx)
		logger.DebugContext(ctx, "store mutated",
			"store", store,
			"version", res.Version,
			"changed", res.Changed,
			"subscribers", res.Subscribers,
			"duration", time.Since(start))
		return res
	})
}

package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/dux/pkg/registry"
)

// Default tracer name for dux registries.
const defaultTracerName = "dux"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "dux").
	TracerName string

	// TracerProvider supplies the tracer. Default: otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// Filter determines which stores to trace.
	// Return true to trace the mutation, false to skip.
	// If nil, all stores are traced.
	Filter func(store string) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(ctx context.Context, store string) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithStoreFilter sets a filter function for stores.
func WithStoreFilter(filter func(store string) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ctx context.Context, store string) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates middleware that traces every mutation.
//
// The span is a child of whatever span is in the context passed to
// registry.MutateContext. Reducers run with the span's context, so work
// they start can be correlated.
//
// Example:
//
//	reg := registry.New(
//	    registry.WithMiddleware(
//	        middleware.OpenTelemetry(middleware.WithTracerName("my-app")),
//	    ),
//	)
func OpenTelemetry(opts ...OTelOption) registry.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.TracerProvider == nil {
		config.TracerProvider = otel.GetTracerProvider()
	}
	tracer := config.TracerProvider.Tracer(config.TracerName)

	return registry.MiddlewareFunc(func(ctx context.Context, store string, next func(context.Context) registry.Mutation) registry.Mutation {
		if config.Filter != nil && !config.Filter(store) {
			return next(ctx)
		}

		attrs := []attribute.KeyValue{
			attribute.String("dux.store", store),
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(ctx, store)...)
		}

		spanCtx, span := tracer.Start(ctx, "dux.mutate "+store,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("reducer panic: %v", r)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				panic(r)
			}
		}()

		res := next(spanCtx)
		span.SetAttributes(
			attribute.Int64("dux.version", int64(res.Version)),
			attribute.Bool("dux.changed", res.Changed),
			attribute.Int("dux.subscribers", res.Subscribers),
		)
		span.SetStatus(codes.Ok, "")
		return res
	})
}

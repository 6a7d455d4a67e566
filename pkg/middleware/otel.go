package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/discuss/pkg/features/query"
)

// Default tracer name for discuss mutations.
const defaultTracerName = "discuss"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "discuss").
	TracerName string

	// TracerProvider supplies the tracer. The global provider is used
	// when nil.
	TracerProvider trace.TracerProvider

	// Filter determines which mutations to trace.
	// If nil, all mutations are traced.
	Filter func(info query.MutationInfo) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(info query.MutationInfo) []attribute.KeyValue
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

// WithMutationFilter sets a filter function for mutations.
func WithMutationFilter(filter func(info query.MutationInfo) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(info query.MutationInfo) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry creates middleware that traces every mutation attempt.
//
// The middleware:
//   - Creates a span per attempt with the mutation name and cache key
//   - Passes the span context to the hooks and the remote call
//   - Records errors and sets span status
func OpenTelemetry(opts ...OTelOption) query.Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.TracerProvider != nil {
		tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}

	return query.MiddlewareFunc(func(ctx context.Context, info query.MutationInfo, next func(context.Context) error) error {
		if config.Filter != nil && !config.Filter(info) {
			return next(ctx)
		}

		attrs := []attribute.KeyValue{
			attribute.String("discuss.mutation", info.Name),
		}
		if len(info.Key) > 0 {
			attrs = append(attrs, attribute.String("discuss.key", info.Key.String()))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(info)...)
		}

		spanCtx, span := tracer.Start(ctx, "mutation "+info.Name,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(time.Now()),
		)
		defer span.End()

		err := next(spanCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}

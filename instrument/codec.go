// Package instrument wraps a payload.Codec with tracing, structured
// logging, and metrics: a span-per-call plus slog.Error-on-failure
// shape, wrapped around each Encode/Decode call.
package instrument

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbaliyan/lizpack/payload"
)

const (
	spanKeyContentType = "lizpack.content_type"
	spanKeyBytes       = "lizpack.bytes"
)

// Codec wraps a payload.Codec, emitting an OpenTelemetry span, a
// log/slog record on failure, and an OpenTelemetry metric counter for
// every Encode/Decode call.
type Codec struct {
	next   payload.Codec
	tracer trace.Tracer
	logger *slog.Logger

	encoded      metric.Int64Counter
	decoded      metric.Int64Counter
	encodeErrors metric.Int64Counter
	decodeErrors metric.Int64Counter
}

// New wraps next with instrumentation. logger defaults to slog.Default
// when nil.
func New(next payload.Codec, logger *slog.Logger) (*Codec, error) {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.Meter("lizpack")

	encoded, err := meter.Int64Counter("lizpack.encoded_total",
		metric.WithDescription("Total values successfully encoded"))
	if err != nil {
		return nil, err
	}
	decoded, err := meter.Int64Counter("lizpack.decoded_total",
		metric.WithDescription("Total values successfully decoded"))
	if err != nil {
		return nil, err
	}
	encodeErrors, err := meter.Int64Counter("lizpack.encode_errors_total",
		metric.WithDescription("Total encode failures"))
	if err != nil {
		return nil, err
	}
	decodeErrors, err := meter.Int64Counter("lizpack.decode_errors_total",
		metric.WithDescription("Total decode failures"))
	if err != nil {
		return nil, err
	}

	return &Codec{
		next:         next,
		tracer:       otel.Tracer("lizpack"),
		logger:       logger,
		encoded:      encoded,
		decoded:      decoded,
		encodeErrors: encodeErrors,
		decodeErrors: decodeErrors,
	}, nil
}

// Encode delegates to the wrapped codec, recording a span, a metric,
// and (on failure) a log record.
func (c *Codec) Encode(ctx context.Context, v any) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "lizpack.encode",
		trace.WithAttributes(attribute.String(spanKeyContentType, c.next.ContentType())),
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	start := time.Now()
	data, err := c.next.Encode(v)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		c.encodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(spanKeyContentType, c.next.ContentType())))
		c.logger.ErrorContext(ctx, "lizpack encode failed",
			"content_type", c.next.ContentType(),
			"error", err,
			"duration", dur,
		)
		return nil, err
	}
	span.SetAttributes(attribute.Int(spanKeyBytes, len(data)))
	c.encoded.Add(ctx, 1, metric.WithAttributes(attribute.String(spanKeyContentType, c.next.ContentType())))
	return data, nil
}

// Decode delegates to the wrapped codec, recording a span, a metric,
// and (on failure) a log record.
func (c *Codec) Decode(ctx context.Context, data []byte, v any) error {
	ctx, span := c.tracer.Start(ctx, "lizpack.decode",
		trace.WithAttributes(
			attribute.String(spanKeyContentType, c.next.ContentType()),
			attribute.Int(spanKeyBytes, len(data)),
		),
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	start := time.Now()
	err := c.next.Decode(data, v)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		c.decodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(spanKeyContentType, c.next.ContentType())))
		c.logger.ErrorContext(ctx, "lizpack decode failed",
			"content_type", c.next.ContentType(),
			"error", err,
			"duration", dur,
		)
		return err
	}
	c.decoded.Add(ctx, 1, metric.WithAttributes(attribute.String(spanKeyContentType, c.next.ContentType())))
	return nil
}

// ContentType returns the wrapped codec's content type.
func (c *Codec) ContentType() string { return c.next.ContentType() }

// Package envelope provides the wire-level carrier that Encode/Decode
// operate on when a payload crosses a transport boundary: an ID,
// source, arbitrary metadata, and trace context alongside the payload
// bytes. It is the same shape package message gave the v3 event bus,
// trimmed of the acknowledgment and retry-count fields that belonged
// to at-least-once delivery rather than to serialization.
package envelope

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Envelope carries one encoded payload plus its addressing and trace
// metadata between a Codec's wire format and a caller-supplied handler.
type Envelope interface {
	// ID returns the envelope's unique identifier.
	ID() string
	// Source identifies the producer that created this envelope.
	Source() string
	// Payload returns the (still encoded, or already decoded by the
	// caller's Codec) payload carried by the envelope.
	Payload() any
	// Metadata returns optional key-value metadata.
	Metadata() map[string]string
	// Context returns a context carrying the envelope's trace span, if any.
	Context() context.Context
}

type envelope struct {
	id       string
	source   string
	payload  any
	metadata map[string]string
	span     trace.SpanContext
}

func (e *envelope) ID() string                  { return e.id }
func (e *envelope) Source() string              { return e.source }
func (e *envelope) Payload() any                { return e.payload }
func (e *envelope) Metadata() map[string]string { return e.metadata }
func (e *envelope) Context() context.Context {
	return trace.ContextWithRemoteSpanContext(context.Background(), e.span)
}

// New creates an Envelope with a freshly generated ID.
func New(source string, payload any, metadata map[string]string, spanCtx trace.SpanContext) Envelope {
	return &envelope{
		id:       uuid.NewString(),
		source:   source,
		payload:  payload,
		metadata: metadata,
		span:     spanCtx,
	}
}

// WithID creates an Envelope using a caller-supplied ID, for codecs
// that decode an ID off the wire instead of minting one.
func WithID(id, source string, payload any, metadata map[string]string, spanCtx trace.SpanContext) Envelope {
	return &envelope{
		id:       id,
		source:   source,
		payload:  payload,
		metadata: metadata,
		span:     spanCtx,
	}
}

// Compile-time interface check.
var _ Envelope = (*envelope)(nil)

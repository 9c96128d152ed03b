package envelope

import (
	"encoding/json"
	"errors"
	"maps"

	"go.opentelemetry.io/otel/trace"
)

// JSON implements Codec using human-readable JSON serialization.
// Payload is stored as pre-encoded bytes (base64 in the JSON
// wire format).
type JSON struct{}

type jsonEnvelope struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Payload  []byte            `json:"payload"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Encode serializes an Envelope to JSON bytes.
func (JSON) Encode(e Envelope) ([]byte, error) {
	je := jsonEnvelope{
		ID:     e.ID(),
		Source: e.Source(),
	}
	if p, ok := e.Payload().([]byte); ok {
		je.Payload = p
	} else if e.Payload() != nil {
		encoded, err := json.Marshal(e.Payload())
		if err != nil {
			return nil, errors.Join(ErrEncodeFailure, err)
		}
		je.Payload = encoded
	}
	if e.Metadata() != nil {
		je.Metadata = make(map[string]string, len(e.Metadata()))
		maps.Copy(je.Metadata, e.Metadata())
	}

	data, err := json.Marshal(je)
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	return data, nil
}

// Decode deserializes JSON bytes to an Envelope.
func (JSON) Decode(data []byte) (Envelope, error) {
	var je jsonEnvelope
	if err := json.Unmarshal(data, &je); err != nil {
		return nil, errors.Join(ErrDecodeFailure, err)
	}

	var metadata map[string]string
	if je.Metadata != nil {
		metadata = make(map[string]string, len(je.Metadata))
		maps.Copy(metadata, je.Metadata)
	}

	return WithID(je.ID, je.Source, je.Payload, metadata, trace.SpanContext{}), nil
}

// ContentType returns the MIME type for JSON.
func (JSON) ContentType() string { return "application/json" }

// Name returns the codec identifier.
func (JSON) Name() string { return "json" }

// Compile-time check.
var _ Codec = JSON{}

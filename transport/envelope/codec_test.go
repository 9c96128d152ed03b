package envelope

import (
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestMsgPackCodec(t *testing.T) {
	codec := MsgPack{}

	t.Run("Name and ContentType", func(t *testing.T) {
		if codec.Name() != "msgpack" {
			t.Errorf("expected msgpack, got %s", codec.Name())
		}
		if codec.ContentType() != "application/msgpack" {
			t.Errorf("expected application/msgpack, got %s", codec.ContentType())
		}
	})

	t.Run("Encode and Decode simple payload", func(t *testing.T) {
		type greeting struct {
			Text string `lizpack:"text"`
		}
		e := New("source-1", greeting{Text: "hello"}, nil, trace.SpanContext{})

		data, err := codec.Encode(e)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		decoded, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if decoded.Source() != "source-1" {
			t.Errorf("expected source-1, got %s", decoded.Source())
		}

		payload, _ := decoded.Payload().([]byte)
		if payload == nil {
			t.Fatalf("expected payload bytes, got %T", decoded.Payload())
		}
	})

	t.Run("Encode and Decode with metadata", func(t *testing.T) {
		metadata := map[string]string{"key": "value", "env": "test"}
		e := WithID("id-2", "source-2", "data", metadata, trace.SpanContext{})

		data, err := codec.Encode(e)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		decoded, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if decoded.ID() != "id-2" {
			t.Errorf("expected id-2, got %s", decoded.ID())
		}
		if decoded.Metadata()["key"] != "value" {
			t.Error("expected metadata key=value")
		}
		if decoded.Metadata()["env"] != "test" {
			t.Error("expected metadata env=test")
		}
	})

	t.Run("Decode invalid bytes returns error", func(t *testing.T) {
		_, err := codec.Decode([]byte{0xFF, 0xFF, 0xFF})
		if err == nil {
			t.Error("expected error for invalid msgpack")
		}
	})
}

func TestJSONCodec(t *testing.T) {
	codec := JSON{}

	t.Run("Name and ContentType", func(t *testing.T) {
		if codec.Name() != "json" {
			t.Errorf("expected json, got %s", codec.Name())
		}
		if codec.ContentType() != "application/json" {
			t.Errorf("expected application/json, got %s", codec.ContentType())
		}
	})

	t.Run("Encode and Decode struct payload", func(t *testing.T) {
		type order struct {
			ID     string  `json:"id"`
			Amount float64 `json:"amount"`
		}

		e := WithID("id-4", "source-4", order{ID: "ORD-123", Amount: 99.99}, nil, trace.SpanContext{})

		data, err := codec.Encode(e)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		decoded, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if decoded.ID() != "id-4" {
			t.Errorf("expected id-4, got %s", decoded.ID())
		}
	})

	t.Run("Decode invalid JSON returns error", func(t *testing.T) {
		_, err := codec.Decode([]byte("not json"))
		if err == nil {
			t.Error("expected error for invalid JSON")
		}
	})
}

func TestProtoCodec(t *testing.T) {
	codec := Proto{}

	t.Run("Encode and Decode with metadata", func(t *testing.T) {
		metadata := map[string]string{"env": "test"}
		e := WithID("id-5", "source-5", []byte("payload"), metadata, trace.SpanContext{})

		data, err := codec.Encode(e)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		decoded, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if decoded.ID() != "id-5" {
			t.Errorf("expected id-5, got %s", decoded.ID())
		}
		if decoded.Metadata()["env"] != "test" {
			t.Error("expected metadata env=test")
		}
		if string(decoded.Payload().([]byte)) != "payload" {
			t.Errorf("expected payload bytes, got %v", decoded.Payload())
		}
	})
}

func TestDefaultCodec(t *testing.T) {
	codec := Default()
	if codec.Name() != "msgpack" {
		t.Errorf("expected default codec to be msgpack, got %s", codec.Name())
	}
}

func TestCodecErrors(t *testing.T) {
	if ErrEncodeFailure.Error() != "failed to encode envelope" {
		t.Error("unexpected error message for ErrEncodeFailure")
	}
	if ErrDecodeFailure.Error() != "failed to decode envelope" {
		t.Error("unexpected error message for ErrDecodeFailure")
	}
}

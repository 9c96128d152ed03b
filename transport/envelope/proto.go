package envelope

import (
	"encoding/base64"
	"errors"

	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Proto implements Codec using Protocol Buffers serialization. The
// envelope itself is carried as a structpb.Struct (id, source,
// metadata, payload) rather than a purpose-generated message type, so
// Proto needs no .proto compilation step; a proto.Message payload is
// still wrapped in anypb and marshaled binary before being placed in
// the struct, matching how a generated envelope message would store
// it in an Any field.
type Proto struct{}

// Encode serializes an Envelope to Protocol Buffer bytes.
func (Proto) Encode(e Envelope) ([]byte, error) {
	fields := map[string]*structpb.Value{
		"id":     structpb.NewStringValue(e.ID()),
		"source": structpb.NewStringValue(e.Source()),
	}

	if md := e.Metadata(); md != nil {
		mfields := make(map[string]*structpb.Value, len(md))
		for k, v := range md {
			mfields[k] = structpb.NewStringValue(v)
		}
		fields["metadata"] = structpb.NewStructValue(&structpb.Struct{Fields: mfields})
	}

	if p := e.Payload(); p != nil {
		payloadBytes, kind, err := encodeProtoPayload(p)
		if err != nil {
			return nil, errors.Join(ErrEncodeFailure, err)
		}
		fields["payload"] = structpb.NewStringValue(base64.StdEncoding.EncodeToString(payloadBytes))
		fields["payload_kind"] = structpb.NewStringValue(kind)
	}

	data, err := proto.Marshal(&structpb.Struct{Fields: fields})
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	return data, nil
}

// Decode deserializes Protocol Buffer bytes to an Envelope.
func (Proto) Decode(data []byte) (Envelope, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, errors.Join(ErrDecodeFailure, err)
	}

	var metadata map[string]string
	if mv, ok := s.Fields["metadata"]; ok {
		mstruct := mv.GetStructValue()
		metadata = make(map[string]string, len(mstruct.GetFields()))
		for k, v := range mstruct.GetFields() {
			metadata[k] = v.GetStringValue()
		}
	}

	var payload any
	if pv, ok := s.Fields["payload"]; ok {
		raw, err := base64.StdEncoding.DecodeString(pv.GetStringValue())
		if err != nil {
			return nil, errors.Join(ErrDecodeFailure, err)
		}
		switch s.Fields["payload_kind"].GetStringValue() {
		case "any":
			var a anypb.Any
			if err := proto.Unmarshal(raw, &a); err != nil {
				return nil, errors.Join(ErrDecodeFailure, err)
			}
			payload = &a
		case "value":
			var val structpb.Value
			if err := proto.Unmarshal(raw, &val); err != nil {
				return nil, errors.Join(ErrDecodeFailure, err)
			}
			payload = val.AsInterface()
		default:
			payload = raw
		}
	}

	return WithID(
		s.Fields["id"].GetStringValue(),
		s.Fields["source"].GetStringValue(),
		payload,
		metadata,
		trace.SpanContext{},
	), nil
}

// ContentType returns the MIME type for Protocol Buffers.
func (Proto) ContentType() string { return "application/x-protobuf" }

// Name returns the codec identifier.
func (Proto) Name() string { return "proto" }

func encodeProtoPayload(v any) (data []byte, kind string, err error) {
	if pm, ok := v.(proto.Message); ok {
		a, err := anypb.New(pm)
		if err != nil {
			return nil, "", err
		}
		data, err = proto.Marshal(a)
		return data, "any", err
	}
	if b, ok := v.([]byte); ok {
		return b, "bytes", nil
	}
	val, err := structpb.NewValue(v)
	if err != nil {
		return nil, "", err
	}
	data, err = proto.Marshal(val)
	return data, "value", err
}

// Compile-time check.
var _ Codec = Proto{}

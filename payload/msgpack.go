package payload

import "github.com/rbaliyan/lizpack"

// MsgPack implements Codec using lizpack's reflection-driven
// MessagePack encoding: more compact than JSON while remaining
// schema-less at this layer (the codec interface operates on any;
// per-type wire shape is controlled with `lizpack:"..."` struct tags
// on the concrete payload type).
//
// Usage:
//
//	data, err := (payload.MsgPack{}).Encode(Order{ID: "123"})
type MsgPack struct{}

// Encode serializes the payload to MessagePack bytes.
func (MsgPack) Encode(v any) ([]byte, error) {
	return lizpack.Marshal(v)
}

// Decode deserializes MessagePack bytes to the target type.
func (MsgPack) Decode(data []byte, v any) error {
	return lizpack.Unmarshal(data, v)
}

// ContentType returns the MIME type for MessagePack.
func (MsgPack) ContentType() string {
	return "application/msgpack"
}

// Compile-time check.
var _ Codec = MsgPack{}

func init() {
	Register(MsgPack{})
}

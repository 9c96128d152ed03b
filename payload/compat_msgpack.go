package payload

import "github.com/vmihailenco/msgpack/v5"

// CompatMsgPack implements Codec using vmihailenco/msgpack directly,
// rather than lizpack. It exists for differential testing: round-
// tripping the same payload through MsgPack and CompatMsgPack and
// comparing the decoded values catches divergence between lizpack's
// reflection-driven encoding and an established MessagePack
// implementation. It registers under its own content type and is
// never MustGet's fallback.
type CompatMsgPack struct{}

// Encode serializes the payload to MessagePack bytes via vmihailenco/msgpack.
func (CompatMsgPack) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode deserializes MessagePack bytes via vmihailenco/msgpack.
func (CompatMsgPack) Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// ContentType returns a distinct MIME type so CompatMsgPack never
// shadows the default MsgPack registration.
func (CompatMsgPack) ContentType() string {
	return "application/x-msgpack-compat"
}

// Compile-time check.
var _ Codec = CompatMsgPack{}

func init() {
	Register(CompatMsgPack{})
}

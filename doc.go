// Package lizpack generates MessagePack codecs from Go types through
// reflection instead of a code generator or interface implementation.
// Any type built from bool, sized integers, float32/64, strings, byte
// slices, arrays, slices, structs, pointers (nil-as-absent optionals),
// Box[T], sum types, and registered enums has an encoding derived once
// from its reflect.Type and cached for reuse.
//
// Basic example:
//
//	type Order struct {
//	    ID       uint64
//	    Name     string
//	    Tags     []string
//	    Discount *float32
//	}
//
//	data, err := lizpack.Marshal(Order{ID: 1, Name: "widget"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	var out Order
//	if err := lizpack.Unmarshal(data, &out); err != nil {
//	    log.Fatal(err)
//	}
//
// Encode and Decode are the generic, allocation-disciplined entry
// points: Encode writes into a caller-owned buffer and Decode requires
// the target type to carry no variable-length subterm (no slice or
// string anywhere in it). EncodeBounded and LargestEncodedSize give an exact
// size bound for those same fixed-shape types, so a caller can size a
// stack or pooled buffer once and reuse it across many calls:
//
//	buf := make([]byte, 0)
//	n, err := lizpack.LargestEncodedSize[Header]()
//	buf = make([]byte, n)
//	written, err := lizpack.Encode(hdr, buf)
//	hdr2, err := lizpack.Decode[Header](buf[:written])
//
// Types containing a slice or string need DecodeAlloc instead of Decode, which
// attributes every slice and Box pointee it allocates to one Arena the
// caller releases as a unit:
//
//	decoded, err := lizpack.DecodeAlloc[Order](nil, data)
//	defer decoded.Arena.Release()
//	order := decoded.Value
//
// Marshal and Unmarshal are the dynamic, any-typed counterparts used
// by package payload's Codec implementations and anywhere the concrete
// type isn't known until runtime; they grow their own buffer and arena
// as needed.
//
// Wire customization, sum types, enums:
//
// A struct field's wire representation is controlled with the
// `lizpack:"..."` tag: name overrides the map key, and the bare
// options bin/str/array, layout=array, layout=active_field, enum=str,
// and sentinel=N select the byte encoding, struct/sum layout, enum
// representation, and terminator-value array convention; the tag is
// parsed by package internal/typeinfo.
// Sum types are modeled as a struct embedding lizpack.Sum followed by
// one pointer-typed field per variant, exactly one of which must be
// non-nil when the value is encoded. Enum types are named integer types registered
// once at init time with RegisterEnum; integer types narrower than a
// full Go width are registered with RegisterBitWidth so the codec
// knows which wire family to use for them.
package lizpack

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/rbaliyan/lizpack/internal/arena"
	"github.com/rbaliyan/lizpack/internal/typeinfo"
)

// Marshal encodes v, whose concrete type is discovered at runtime via
// reflection, into a freshly grown buffer. Unlike Encode/EncodeBounded
// it is defined for any admissible type, slices included, since it
// never needs a size bound computed up front.
func Marshal(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, fmt.Errorf("lizpack: cannot marshal a nil interface")
	}
	d, err := typeinfo.Describe(rv.Type())
	if err != nil {
		return nil, err
	}
	e := &encoder{growable: true}
	if err := encodeValue(e, "", d, fieldOpts{}, rv); err != nil {
		return nil, err
	}
	return e.buf[:e.pos], nil
}

// Unmarshal decodes data into *v, whose pointee type is discovered at
// runtime. When that type contains a variable-length subterm, the
// slices and Box pointees produced are attributed to a private arena
// that is never released, since Go's garbage collector owns the
// backing memory regardless and Unmarshal's any-typed signature gives
// the caller no handle to release through. Callers that need managed
// lifetimes should call DecodeAlloc directly instead.
func Unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("lizpack: Unmarshal requires a non-nil pointer, got %T", v)
	}
	elem := rv.Elem()
	d, err := typeinfo.Describe(elem.Type())
	if err != nil {
		return err
	}
	dc := &decoder{r: bytes.NewReader(data)}
	if d.ContainsVariableLength() {
		dc.arena = arena.New()
	}
	if err := decodeValue(dc, "", d, fieldOpts{}, elem); err != nil {
		return err
	}
	if dc.r.Len() != 0 {
		return invalidf("", dc.offset(), "unconsumed trailing bytes: %d", dc.r.Len())
	}
	return nil
}

package lizpack

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/rbaliyan/lizpack/internal/typeinfo"
	"github.com/rbaliyan/lizpack/tag"
)

// encoder writes into a caller-owned buffer, refusing once it runs out
// of room rather than growing, and never allocates on the caller's
// behalf.
//
// Marshal, which has no static size bound available for slice-bearing
// types, sets growable and lets writeByte/write append instead of
// failing; Encode and EncodeBounded never set it, since both of their
// callers already know (or have computed) an exact-fitting buffer.
type encoder struct {
	buf      []byte
	pos      int
	growable bool
}

func (e *encoder) remaining() int { return len(e.buf) - e.pos }

func (e *encoder) writeByte(b byte) error {
	if e.remaining() < 1 {
		if !e.growable {
			return ErrNoSpaceLeft
		}
		e.buf = append(e.buf, b)
		e.pos++
		return nil
	}
	e.buf[e.pos] = b
	e.pos++
	return nil
}

func (e *encoder) write(p []byte) error {
	if e.remaining() < len(p) {
		if !e.growable {
			return ErrNoSpaceLeft
		}
		e.buf = append(e.buf[:e.pos], p...)
		e.pos += len(p)
		return nil
	}
	copy(e.buf[e.pos:], p)
	e.pos += len(p)
	return nil
}

func (e *encoder) writeUint16(v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return e.write(buf[:])
}

func (e *encoder) writeUint32(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return e.write(buf[:])
}

func (e *encoder) writeUint64(v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return e.write(buf[:])
}

// Encode writes v's MessagePack encoding into out and returns the
// number of bytes written. It fails with ErrNoSpaceLeft if out is too
// small, or with ErrSliceLenTooLarge if a slice anywhere in v's type
// exceeds 2^32-1 elements.
func Encode[T any](v T, out []byte) (int, error) {
	d, err := typeinfo.TypeFor[T]()
	if err != nil {
		return 0, err
	}
	e := &encoder{buf: out}
	if err := encodeValue(e, "", d, fieldOpts{}, reflect.ValueOf(v)); err != nil {
		return 0, err
	}
	return e.pos, nil
}

// EncodeBounded encodes v into a freshly allocated, exactly-sized
// buffer. It is only defined for types with no variable-length
// subterm; for those, LargestEncodedSize is an exact bound so this
// call cannot fail with ErrNoSpaceLeft.
func EncodeBounded[T any](v T) ([]byte, error) {
	n, err := LargestEncodedSize[T]()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	written, err := Encode(v, buf)
	if err != nil {
		return nil, err
	}
	return buf[:written], nil
}

func encodeValue(e *encoder, path string, d *typeinfo.Descriptor, opts fieldOpts, v reflect.Value) error {
	switch d.Kind {
	case typeinfo.Bool:
		if v.Bool() {
			return e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindTrue}))
		}
		return e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindFalse}))

	case typeinfo.Uint:
		return encodeUint(e, d.BitSize, v.Uint())

	case typeinfo.Int:
		return encodeInt(e, d.BitSize, v.Int())

	case typeinfo.Float:
		if d.BitSize == 32 {
			return encodeFloat32(e, float32(v.Float()))
		}
		return encodeFloat64(e, v.Float())

	case typeinfo.Optional:
		if v.IsNil() {
			return e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindNil}))
		}
		return encodeValue(e, path, d.Elem, opts, v.Elem())

	case typeinfo.Box:
		fv := v.Field(0)
		if fv.IsNil() {
			return &EncodeError{Path: path, Err: fmt.Errorf("empty Box has no value to encode")}
		}
		return encodeValue(e, path, d.Elem, opts, fv.Elem())

	case typeinfo.Array:
		return encodeArrayLike(e, path, d, opts, v, false)

	case typeinfo.Slice:
		return encodeArrayLike(e, path, d, opts, v, true)

	case typeinfo.Str:
		return encodeStringValue(e, opts, v.String())

	case typeinfo.Struct:
		return encodeStruct(e, path, d, opts, v)

	case typeinfo.Sum:
		return encodeSum(e, path, d, opts, v)

	case typeinfo.Enum:
		return encodeEnum(e, path, d, opts, v)

	default:
		return &EncodeError{Path: path, Err: fmt.Errorf("inadmissible kind %s", d.Kind)}
	}
}

func encodeUint(e *encoder, bits int, val uint64) error {
	switch {
	case bits <= 7:
		return e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindPosFixint, Embedded: int64(val)}))
	case bits <= 8:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindUint8})); err != nil {
			return err
		}
		return e.writeByte(byte(val))
	case bits <= 16:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindUint16})); err != nil {
			return err
		}
		return e.writeUint16(uint16(val))
	case bits <= 32:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindUint32})); err != nil {
			return err
		}
		return e.writeUint32(uint32(val))
	default:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindUint64})); err != nil {
			return err
		}
		return e.writeUint64(val)
	}
}

func encodeInt(e *encoder, bits int, val int64) error {
	switch {
	case bits <= 6:
		if val >= 0 {
			return e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindPosFixint, Embedded: val}))
		}
		return e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindNegFixint, Embedded: val}))
	case bits <= 8:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindInt8})); err != nil {
			return err
		}
		return e.writeByte(byte(int8(val)))
	case bits <= 16:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindInt16})); err != nil {
			return err
		}
		return e.writeUint16(uint16(int16(val)))
	case bits <= 32:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindInt32})); err != nil {
			return err
		}
		return e.writeUint32(uint32(int32(val)))
	default:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindInt64})); err != nil {
			return err
		}
		return e.writeUint64(uint64(val))
	}
}

func encodeFloat32(e *encoder, f float32) error {
	if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindFloat32})); err != nil {
		return err
	}
	return e.writeUint32(math.Float32bits(f))
}

func encodeFloat64(e *encoder, f float64) error {
	if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindFloat64})); err != nil {
		return err
	}
	return e.writeUint64(math.Float64bits(f))
}

func encodeArrayHeader(e *encoder, n int) error {
	switch {
	case n <= 15:
		return e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindFixarray, Embedded: int64(n)}))
	case n <= 0xFFFF:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindArray16})); err != nil {
			return err
		}
		return e.writeUint16(uint16(n))
	default:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindArray32})); err != nil {
			return err
		}
		return e.writeUint32(uint32(n))
	}
}

func encodeMapHeader(e *encoder, n int) error {
	switch {
	case n <= 15:
		return e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindFixmap, Embedded: int64(n)}))
	case n <= 0xFFFF:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindMap16})); err != nil {
			return err
		}
		return e.writeUint16(uint16(n))
	default:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindMap32})); err != nil {
			return err
		}
		return e.writeUint32(uint32(n))
	}
}

func encodeFixstr(e *encoder, s string) error {
	return encodeBytesHeader(e, typeinfo.ByteFormatStr, []byte(s))
}

func encodeBytesHeader(e *encoder, bf typeinfo.ByteFormat, raw []byte) error {
	n := len(raw)
	if bf == typeinfo.ByteFormatBin {
		switch {
		case n <= 0xFF:
			if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindBin8})); err != nil {
				return err
			}
			if err := e.writeByte(byte(n)); err != nil {
				return err
			}
		case n <= 0xFFFF:
			if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindBin16})); err != nil {
				return err
			}
			if err := e.writeUint16(uint16(n)); err != nil {
				return err
			}
		default:
			if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindBin32})); err != nil {
				return err
			}
			if err := e.writeUint32(uint32(n)); err != nil {
				return err
			}
		}
		return e.write(raw)
	}
	switch {
	case n <= 31:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindFixstr, Embedded: int64(n)})); err != nil {
			return err
		}
	case n <= 0xFF:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindStr8})); err != nil {
			return err
		}
		if err := e.writeByte(byte(n)); err != nil {
			return err
		}
	case n <= 0xFFFF:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindStr16})); err != nil {
			return err
		}
		if err := e.writeUint16(uint16(n)); err != nil {
			return err
		}
	default:
		if err := e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindStr32})); err != nil {
			return err
		}
		if err := e.writeUint32(uint32(n)); err != nil {
			return err
		}
	}
	return e.write(raw)
}

// encodeStringValue encodes a Go string the same way a []byte field
// does: str by default, bin or an array of uint_8-family elements on
// request.
func encodeStringValue(e *encoder, opts fieldOpts, s string) error {
	raw := []byte(s)
	if opts.ByteFormat == typeinfo.ByteFormatArray {
		if err := encodeArrayHeader(e, len(raw)); err != nil {
			return err
		}
		for _, b := range raw {
			if err := encodeUint(e, 8, uint64(b)); err != nil {
				return err
			}
		}
		return nil
	}
	return encodeBytesHeader(e, opts.ByteFormat, raw)
}

func encodeArrayLike(e *encoder, path string, d *typeinfo.Descriptor, opts fieldOpts, v reflect.Value, variable bool) error {
	n := v.Len()
	sentinel := opts.Sentinel
	encodedLen := n
	if sentinel.Present {
		encodedLen = n + 1
	}
	if variable && uint64(encodedLen) > math.MaxUint32 {
		return &EncodeError{Path: path, Err: ErrSliceLenTooLarge}
	}
	elemDesc := d.Elem

	if typeinfo.IsByteKind(elemDesc) && opts.ByteFormat != typeinfo.ByteFormatArray {
		raw := make([]byte, 0, encodedLen)
		for i := 0; i < n; i++ {
			raw = append(raw, byte(v.Index(i).Uint()))
		}
		if sentinel.Present {
			raw = append(raw, byte(sentinel.Int))
		}
		return encodeBytesHeader(e, opts.ByteFormat, raw)
	}

	if err := encodeArrayHeader(e, encodedLen); err != nil {
		return err
	}
	childOpts := fieldOpts{}
	for i := 0; i < n; i++ {
		if err := encodeValue(e, fmt.Sprintf("%s[%d]", path, i), elemDesc, childOpts, v.Index(i)); err != nil {
			return err
		}
	}
	if sentinel.Present {
		return encodeSentinelElem(e, elemDesc, sentinel)
	}
	return nil
}

func encodeSentinelElem(e *encoder, elemDesc *typeinfo.Descriptor, s typeinfo.Sentinel) error {
	switch elemDesc.Kind {
	case typeinfo.Bool:
		if s.Bool {
			return e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindTrue}))
		}
		return e.writeByte(tag.Encode(tag.Tag{Kind: tag.KindFalse}))
	case typeinfo.Uint:
		return encodeUint(e, elemDesc.BitSize, uint64(s.Int))
	case typeinfo.Int:
		return encodeInt(e, elemDesc.BitSize, s.Int)
	default:
		return fmt.Errorf("lizpack: sentinel unsupported for element kind %s", elemDesc.Kind)
	}
}

func encodeStruct(e *encoder, path string, d *typeinfo.Descriptor, opts fieldOpts, v reflect.Value) error {
	fields := d.Fields
	if len(fields) == 0 {
		return nil
	}
	if opts.Layout == typeinfo.LayoutArray {
		if err := encodeArrayHeader(e, len(fields)); err != nil {
			return err
		}
		for _, f := range fields {
			if err := encodeValue(e, path+"."+f.WireName, f.Desc, fromField(f), v.Field(f.GoIndex)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := encodeMapHeader(e, len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := encodeFixstr(e, f.WireName); err != nil {
			return err
		}
		if err := encodeValue(e, path+"."+f.WireName, f.Desc, fromField(f), v.Field(f.GoIndex)); err != nil {
			return err
		}
	}
	return nil
}

func encodeSum(e *encoder, path string, d *typeinfo.Descriptor, opts fieldOpts, v reflect.Value) error {
	variants := d.Fields
	var active *typeinfo.Field
	var activeVal reflect.Value
	count := 0
	for i := range variants {
		fv := v.Field(variants[i].GoIndex)
		if !fv.IsNil() {
			count++
			active = &variants[i]
			activeVal = fv.Elem()
		}
	}
	if count != 1 {
		return &EncodeError{Path: path, Err: fmt.Errorf("sum must have exactly one active variant, found %d", count)}
	}
	if opts.Layout == typeinfo.LayoutActiveField {
		return encodeValue(e, path+"."+active.WireName, active.Desc, fromField(*active), activeVal)
	}
	if err := encodeMapHeader(e, 1); err != nil {
		return err
	}
	if err := encodeFixstr(e, active.WireName); err != nil {
		return err
	}
	return encodeValue(e, path+"."+active.WireName, active.Desc, fromField(*active), activeVal)
}

func encodeEnum(e *encoder, path string, d *typeinfo.Descriptor, opts fieldOpts, v reflect.Value) error {
	if opts.EnumFormat == typeinfo.EnumFormatStr {
		val := enumIntValue(v)
		name, ok := d.Enum.ByValue[val]
		if !ok {
			return &EncodeError{Path: path, Err: fmt.Errorf("value %d is not a declared variant of %s", val, d.Type)}
		}
		return encodeFixstr(e, name)
	}
	if isSignedKind(d.Type.Kind()) {
		return encodeInt(e, d.BitSize, v.Int())
	}
	return encodeUint(e, d.BitSize, v.Uint())
}

func enumIntValue(v reflect.Value) int64 {
	if isSignedKind(v.Kind()) {
		return v.Int()
	}
	return int64(v.Uint())
}

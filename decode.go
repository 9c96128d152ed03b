package lizpack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/rbaliyan/lizpack/internal/arena"
	"github.com/rbaliyan/lizpack/internal/typeinfo"
	"github.com/rbaliyan/lizpack/tag"
)

// decoder reads from a seekable in-memory buffer. Seeking is needed in
// exactly two places: optional peek-and-rewind, implemented
// here with bytes.Reader's ReadByte/UnreadByte rather than a general
// Seek, and sum active_field try-and-rollback, which does need an
// arbitrary-distance rewind and uses Seek.
type decoder struct {
	r     *bytes.Reader
	arena *arena.Arena
}

func (dc *decoder) offset() int { return int(dc.r.Size()) - dc.r.Len() }

func (dc *decoder) readByte() (byte, error) { return dc.r.ReadByte() }

func (dc *decoder) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(dc.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (dc *decoder) readLen8(path string) (int, error) {
	b, err := dc.readByte()
	if err != nil {
		return 0, invalidf(path, dc.offset(), "unexpected end of stream reading length")
	}
	return int(b), nil
}

func (dc *decoder) readLen16(path string) (int, error) {
	buf, err := dc.readN(2)
	if err != nil {
		return 0, invalidf(path, dc.offset(), "unexpected end of stream reading length")
	}
	return int(binary.BigEndian.Uint16(buf)), nil
}

func (dc *decoder) readLen32(path string) (int, error) {
	buf, err := dc.readN(4)
	if err != nil {
		return 0, invalidf(path, dc.offset(), "unexpected end of stream reading length")
	}
	return int(binary.BigEndian.Uint32(buf)), nil
}

// allocPtr allocates a zero T, attributing it to dc's arena when one
// is present (Box, and a present Optional, during DecodeAlloc); plain
// Decode has no arena and this falls back to ordinary reflect.New,
// which is legal exactly because neither Optional nor Box is reachable
// from a Decode call whose type contains no variable-length subterm
// unless the arena-free allocation is itself enough. Go's GC owns the
// memory in both cases regardless.
func (dc *decoder) allocPtr(t reflect.Type) reflect.Value {
	if dc.arena != nil {
		dc.arena.Track(int(t.Size()))
	}
	return reflect.New(t)
}

func (dc *decoder) allocSlice(t reflect.Type, n int) reflect.Value {
	if dc.arena != nil {
		dc.arena.Track(n * int(t.Size()))
	}
	return reflect.MakeSlice(reflect.SliceOf(t), n, n)
}

// Decode parses data as a T and requires the entire input to be
// consumed. It is only defined for types with no variable-length
// subterm; use DecodeAlloc otherwise.
func Decode[T any](data []byte) (T, error) {
	var zero T
	d, err := typeinfo.TypeFor[T]()
	if err != nil {
		return zero, err
	}
	if d.ContainsVariableLength() {
		return zero, fmt.Errorf("lizpack: Decode requires a type with no variable-length subterm; use DecodeAlloc")
	}
	r := bytes.NewReader(data)
	dc := &decoder{r: r}
	var out T
	if err := decodeValue(dc, "", d, fieldOpts{}, reflect.ValueOf(&out).Elem()); err != nil {
		return zero, err
	}
	if r.Len() != 0 {
		return zero, invalidf("", dc.offset(), "unconsumed trailing bytes: %d", r.Len())
	}
	return out, nil
}

// Decoded pairs a decoded value with the arena that owns every slice
// and Box pointee reachable from it. Release
// must be called through Arena once the value and everything reachable
// from it are no longer needed.
type Decoded[T any] struct {
	Arena *arena.Arena
	Value T
}

// DecodeAlloc parses data as a T, attributing dynamically-sized content
// (slices, Box pointees) to a freshly created arena returned in
// Decoded. parent is not used at all: the new arena is not derived
// from it and nothing is recorded on it, so it may be nil. Go's
// garbage collector rather than either arena is what actually owns the
// backing memory.
func DecodeAlloc[T any](parent *arena.Arena, data []byte) (Decoded[T], error) {
	d, err := typeinfo.TypeFor[T]()
	if err != nil {
		return Decoded[T]{}, err
	}
	child := arena.New()
	r := bytes.NewReader(data)
	dc := &decoder{r: r, arena: child}
	var out T
	if err := decodeValue(dc, "", d, fieldOpts{}, reflect.ValueOf(&out).Elem()); err != nil {
		child.Release()
		return Decoded[T]{}, err
	}
	if r.Len() != 0 {
		child.Release()
		return Decoded[T]{}, invalidf("", dc.offset(), "unconsumed trailing bytes: %d", r.Len())
	}
	return Decoded[T]{Arena: child, Value: out}, nil
}

func decodeValue(dc *decoder, path string, d *typeinfo.Descriptor, opts fieldOpts, out reflect.Value) error {
	switch d.Kind {
	case typeinfo.Bool:
		b, err := dc.readByte()
		if err != nil {
			return invalidf(path, dc.offset(), "unexpected end of stream reading bool")
		}
		t := tag.Decode(b)
		switch t.Kind {
		case tag.KindTrue:
			out.SetBool(true)
		case tag.KindFalse:
			out.SetBool(false)
		default:
			return invalidf(path, dc.offset()-1, "expected bool tag, got %s", t.Kind)
		}
		return nil

	case typeinfo.Uint:
		raw, negative, err := decodeIntegerRaw(dc, path)
		if err != nil {
			return err
		}
		if negative {
			return invalidf(path, dc.offset(), "negative value does not fit an unsigned %d-bit field", d.BitSize)
		}
		if d.BitSize < 64 && raw >= uint64(1)<<uint(d.BitSize) {
			return invalidf(path, dc.offset(), "value %d overflows unsigned %d-bit field", raw, d.BitSize)
		}
		out.SetUint(raw)
		return nil

	case typeinfo.Int:
		raw, negative, err := decodeIntegerRaw(dc, path)
		if err != nil {
			return err
		}
		var signed int64
		if negative {
			signed = int64(raw)
		} else {
			if raw > math.MaxInt64 {
				return invalidf(path, dc.offset(), "value %d overflows signed 64-bit field", raw)
			}
			signed = int64(raw)
		}
		if d.BitSize < 64 {
			min := -(int64(1) << uint(d.BitSize-1))
			max := (int64(1) << uint(d.BitSize-1)) - 1
			if signed < min || signed > max {
				return invalidf(path, dc.offset(), "value %d overflows signed %d-bit field", signed, d.BitSize)
			}
		}
		out.SetInt(signed)
		return nil

	case typeinfo.Float:
		f, err := decodeFloat(dc, path, d.BitSize)
		if err != nil {
			return err
		}
		out.SetFloat(f)
		return nil

	case typeinfo.Optional:
		return decodeOptional(dc, path, d, opts, out)

	case typeinfo.Box:
		ptr := dc.allocPtr(d.Elem.Type)
		if err := decodeValue(dc, path, d.Elem, opts, ptr.Elem()); err != nil {
			return err
		}
		out.Field(0).Set(ptr)
		return nil

	case typeinfo.Array:
		return decodeArrayLike(dc, path, d, opts, out, false)

	case typeinfo.Slice:
		return decodeArrayLike(dc, path, d, opts, out, true)

	case typeinfo.Str:
		return decodeStringValue(dc, path, opts, out)

	case typeinfo.Struct:
		return decodeStruct(dc, path, d, opts, out)

	case typeinfo.Sum:
		return decodeSum(dc, path, d, opts, out)

	case typeinfo.Enum:
		return decodeEnum(dc, path, d, opts, out)

	default:
		return invalidf(path, dc.offset(), "inadmissible kind %s", d.Kind)
	}
}

// decodeIntegerRaw reads any integer-family tag (fixint included) and
// returns its mathematical value as a 64-bit pattern plus a sign flag,
// leaving narrowing against the target host type to the caller.
func decodeIntegerRaw(dc *decoder, path string) (raw uint64, negative bool, err error) {
	b, err := dc.readByte()
	if err != nil {
		return 0, false, invalidf(path, dc.offset(), "unexpected end of stream reading integer")
	}
	t := tag.Decode(b)
	switch t.Kind {
	case tag.KindPosFixint:
		return uint64(t.Embedded), false, nil
	case tag.KindNegFixint:
		return uint64(t.Embedded), true, nil
	case tag.KindUint8:
		v, err := dc.readByte()
		if err != nil {
			return 0, false, invalidf(path, dc.offset(), "unexpected end of stream reading uint8")
		}
		return uint64(v), false, nil
	case tag.KindUint16:
		buf, err := dc.readN(2)
		if err != nil {
			return 0, false, invalidf(path, dc.offset(), "unexpected end of stream reading uint16")
		}
		return uint64(binary.BigEndian.Uint16(buf)), false, nil
	case tag.KindUint32:
		buf, err := dc.readN(4)
		if err != nil {
			return 0, false, invalidf(path, dc.offset(), "unexpected end of stream reading uint32")
		}
		return uint64(binary.BigEndian.Uint32(buf)), false, nil
	case tag.KindUint64:
		buf, err := dc.readN(8)
		if err != nil {
			return 0, false, invalidf(path, dc.offset(), "unexpected end of stream reading uint64")
		}
		return binary.BigEndian.Uint64(buf), false, nil
	case tag.KindInt8:
		v, err := dc.readByte()
		if err != nil {
			return 0, false, invalidf(path, dc.offset(), "unexpected end of stream reading int8")
		}
		sv := int64(int8(v))
		return uint64(sv), sv < 0, nil
	case tag.KindInt16:
		buf, err := dc.readN(2)
		if err != nil {
			return 0, false, invalidf(path, dc.offset(), "unexpected end of stream reading int16")
		}
		sv := int64(int16(binary.BigEndian.Uint16(buf)))
		return uint64(sv), sv < 0, nil
	case tag.KindInt32:
		buf, err := dc.readN(4)
		if err != nil {
			return 0, false, invalidf(path, dc.offset(), "unexpected end of stream reading int32")
		}
		sv := int64(int32(binary.BigEndian.Uint32(buf)))
		return uint64(sv), sv < 0, nil
	case tag.KindInt64:
		buf, err := dc.readN(8)
		if err != nil {
			return 0, false, invalidf(path, dc.offset(), "unexpected end of stream reading int64")
		}
		sv := int64(binary.BigEndian.Uint64(buf))
		return uint64(sv), sv < 0, nil
	default:
		return 0, false, invalidf(path, dc.offset()-1, "expected integer tag, got %s", t.Kind)
	}
}

func decodeFloat(dc *decoder, path string, bitSize int) (float64, error) {
	b, err := dc.readByte()
	if err != nil {
		return 0, invalidf(path, dc.offset(), "unexpected end of stream reading float")
	}
	t := tag.Decode(b)
	if bitSize == 32 {
		if t.Kind != tag.KindFloat32 {
			return 0, invalidf(path, dc.offset()-1, "expected float32 tag, got %s", t.Kind)
		}
		buf, err := dc.readN(4)
		if err != nil {
			return 0, invalidf(path, dc.offset(), "unexpected end of stream reading float32")
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(buf))), nil
	}
	if t.Kind != tag.KindFloat64 {
		return 0, invalidf(path, dc.offset()-1, "expected float64 tag, got %s", t.Kind)
	}
	buf, err := dc.readN(8)
	if err != nil {
		return 0, invalidf(path, dc.offset(), "unexpected end of stream reading float64")
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf)), nil
}

func decodeOptional(dc *decoder, path string, d *typeinfo.Descriptor, opts fieldOpts, out reflect.Value) error {
	b, err := dc.r.ReadByte()
	if err != nil {
		return invalidf(path, dc.offset(), "unexpected end of stream reading optional")
	}
	if tag.Decode(b).Kind == tag.KindNil {
		out.Set(reflect.Zero(out.Type()))
		return nil
	}
	if err := dc.r.UnreadByte(); err != nil {
		return invalidf(path, dc.offset(), "optional requires a seekable input")
	}
	ptr := dc.allocPtr(d.Elem.Type)
	if err := decodeValue(dc, path, d.Elem, opts, ptr.Elem()); err != nil {
		return err
	}
	out.Set(ptr)
	return nil
}

// decodeLengthHeader reads a length-prefixed container header of the
// requested family ("array", "map", "str", or "bin"), accepting any
// variant of that family (fix-form included).
func decodeLengthHeader(dc *decoder, path string, family string) (int, error) {
	b, err := dc.readByte()
	if err != nil {
		return 0, invalidf(path, dc.offset(), "unexpected end of stream reading %s header", family)
	}
	t := tag.Decode(b)
	switch family {
	case "array":
		switch t.Kind {
		case tag.KindFixarray:
			return int(t.Embedded), nil
		case tag.KindArray16:
			return dc.readLen16(path)
		case tag.KindArray32:
			return dc.readLen32(path)
		}
	case "map":
		switch t.Kind {
		case tag.KindFixmap:
			return int(t.Embedded), nil
		case tag.KindMap16:
			return dc.readLen16(path)
		case tag.KindMap32:
			return dc.readLen32(path)
		}
	case "str":
		switch t.Kind {
		case tag.KindFixstr:
			return int(t.Embedded), nil
		case tag.KindStr8:
			return dc.readLen8(path)
		case tag.KindStr16:
			return dc.readLen16(path)
		case tag.KindStr32:
			return dc.readLen32(path)
		}
	case "bin":
		switch t.Kind {
		case tag.KindBin8:
			return dc.readLen8(path)
		case tag.KindBin16:
			return dc.readLen16(path)
		case tag.KindBin32:
			return dc.readLen32(path)
		}
	}
	return 0, invalidf(path, dc.offset()-1, "expected %s tag, got %s", family, t.Kind)
}

// decodeName reads a map key / sum variant name / enum string, which
// accepts either a str-family or bin-family tag. maxLen <=
// 0 means no bound is enforced.
func decodeName(dc *decoder, path string, maxLen int) (string, error) {
	b, err := dc.readByte()
	if err != nil {
		return "", invalidf(path, dc.offset(), "unexpected end of stream reading name")
	}
	t := tag.Decode(b)
	var n int
	switch t.Kind {
	case tag.KindFixstr:
		n = int(t.Embedded)
	case tag.KindStr8, tag.KindBin8:
		n, err = dc.readLen8(path)
	case tag.KindStr16, tag.KindBin16:
		n, err = dc.readLen16(path)
	case tag.KindStr32, tag.KindBin32:
		n, err = dc.readLen32(path)
	default:
		return "", invalidf(path, dc.offset()-1, "expected a name (str or bin tag), got %s", t.Kind)
	}
	if err != nil {
		return "", err
	}
	if maxLen > 0 && n > maxLen {
		return "", invalidf(path, dc.offset(), "name length %d exceeds maximum %d", n, maxLen)
	}
	buf, err := dc.readN(n)
	if err != nil {
		return "", invalidf(path, dc.offset(), "unexpected end of stream reading name bytes")
	}
	return string(buf), nil
}

// decodeStringValue reads a str, bin, or integer-per-byte array family
// value (mirroring encodeStringValue's three choices) and sets out to
// the resulting Go string.
func decodeStringValue(dc *decoder, path string, opts fieldOpts, out reflect.Value) error {
	if opts.ByteFormat == typeinfo.ByteFormatArray {
		n, err := decodeLengthHeader(dc, path, "array")
		if err != nil {
			return err
		}
		raw := make([]byte, n)
		for i := 0; i < n; i++ {
			v, negative, err := decodeIntegerRaw(dc, path)
			if err != nil {
				return err
			}
			if negative || v > 0xFF {
				return invalidf(path, dc.offset(), "value %d does not fit a string byte", v)
			}
			raw[i] = byte(v)
		}
		out.SetString(string(raw))
		return nil
	}
	family := "str"
	if opts.ByteFormat == typeinfo.ByteFormatBin {
		family = "bin"
	}
	n, err := decodeLengthHeader(dc, path, family)
	if err != nil {
		return err
	}
	raw, err := dc.readN(n)
	if err != nil {
		return invalidf(path, dc.offset(), "unexpected end of stream reading %d bytes", n)
	}
	out.SetString(string(raw))
	return nil
}

func decodeArrayLike(dc *decoder, path string, d *typeinfo.Descriptor, opts fieldOpts, out reflect.Value, variable bool) error {
	elemDesc := d.Elem
	sentinel := opts.Sentinel
	declared := d.ArrayLen
	if sentinel.Present {
		declared++
	}

	if typeinfo.IsByteKind(elemDesc) && opts.ByteFormat != typeinfo.ByteFormatArray {
		family := "str"
		if opts.ByteFormat == typeinfo.ByteFormatBin {
			family = "bin"
		}
		n, err := decodeLengthHeader(dc, path, family)
		if err != nil {
			return err
		}
		if !variable && n != declared {
			return invalidf(path, dc.offset(), "length %d does not match declared length %d", n, declared)
		}
		raw, err := dc.readN(n)
		if err != nil {
			return invalidf(path, dc.offset(), "unexpected end of stream reading %d bytes", n)
		}
		if sentinel.Present {
			if len(raw) == 0 || raw[len(raw)-1] != byte(sentinel.Int) {
				return invalidf(path, dc.offset(), "missing or mismatched sentinel byte")
			}
			raw = raw[:len(raw)-1]
		}
		if variable {
			sliceVal := dc.allocSlice(elemDesc.Type, len(raw))
			reflect.Copy(sliceVal, reflect.ValueOf(raw))
			out.Set(sliceVal)
		} else {
			reflect.Copy(out, reflect.ValueOf(raw))
		}
		return nil
	}

	n, err := decodeLengthHeader(dc, path, "array")
	if err != nil {
		return err
	}
	if !variable && n != declared {
		return invalidf(path, dc.offset(), "length %d does not match declared length %d", n, declared)
	}
	logicalLen := n
	if sentinel.Present {
		logicalLen = n - 1
	}
	if logicalLen < 0 {
		return invalidf(path, dc.offset(), "length %d too small for declared sentinel", n)
	}

	var target reflect.Value
	if variable {
		target = dc.allocSlice(elemDesc.Type, logicalLen)
	} else {
		target = out
	}
	childOpts := fieldOpts{}
	for i := 0; i < logicalLen; i++ {
		if err := decodeValue(dc, fmt.Sprintf("%s[%d]", path, i), elemDesc, childOpts, target.Index(i)); err != nil {
			return err
		}
	}
	if sentinel.Present {
		sv := reflect.New(elemDesc.Type).Elem()
		if err := decodeValue(dc, path, elemDesc, childOpts, sv); err != nil {
			return err
		}
		if !sentinelMatches(elemDesc, sentinel, sv) {
			return invalidf(path, dc.offset(), "trailing element does not match declared sentinel")
		}
	}
	if variable {
		out.Set(target)
	}
	return nil
}

func sentinelMatches(elemDesc *typeinfo.Descriptor, s typeinfo.Sentinel, v reflect.Value) bool {
	switch elemDesc.Kind {
	case typeinfo.Bool:
		return v.Bool() == s.Bool
	case typeinfo.Uint:
		return int64(v.Uint()) == s.Int
	case typeinfo.Int:
		return v.Int() == s.Int
	default:
		return false
	}
}

func decodeStruct(dc *decoder, path string, d *typeinfo.Descriptor, opts fieldOpts, out reflect.Value) error {
	fields := d.Fields
	if len(fields) == 0 {
		return nil
	}
	if opts.Layout == typeinfo.LayoutArray {
		n, err := decodeLengthHeader(dc, path, "array")
		if err != nil {
			return err
		}
		if n != len(fields) {
			return invalidf(path, dc.offset(), "array length %d does not match field count %d", n, len(fields))
		}
		for _, f := range fields {
			if err := decodeValue(dc, path+"."+f.WireName, f.Desc, fromField(f), out.Field(f.GoIndex)); err != nil {
				return err
			}
		}
		return nil
	}

	n, err := decodeLengthHeader(dc, path, "map")
	if err != nil {
		return err
	}
	if n != len(fields) {
		return invalidf(path, dc.offset(), "map size %d does not match field count %d", n, len(fields))
	}
	byName := make(map[string]int, len(fields))
	for i, f := range fields {
		byName[f.WireName] = i
	}
	seen := make([]bool, len(fields))
	for i := 0; i < n; i++ {
		name, err := decodeName(dc, path, d.LargestFieldNameLength())
		if err != nil {
			return err
		}
		idx, ok := byName[name]
		if !ok {
			return invalidf(path, dc.offset(), "unknown field %q", name)
		}
		if seen[idx] {
			return invalidf(path, dc.offset(), "duplicate field %q", name)
		}
		seen[idx] = true
		f := fields[idx]
		if err := decodeValue(dc, path+"."+f.WireName, f.Desc, fromField(f), out.Field(f.GoIndex)); err != nil {
			return err
		}
	}
	for i, ok := range seen {
		if !ok {
			return invalidf(path, dc.offset(), "missing field %q", fields[i].WireName)
		}
	}
	return nil
}

func decodeSum(dc *decoder, path string, d *typeinfo.Descriptor, opts fieldOpts, out reflect.Value) error {
	variants := d.Fields
	if opts.Layout == typeinfo.LayoutActiveField {
		start, err := dc.r.Seek(0, io.SeekCurrent)
		if err != nil {
			return invalidf(path, dc.offset(), "active_field sum requires a seekable input")
		}
		for _, v := range variants {
			if _, err := dc.r.Seek(start, io.SeekStart); err != nil {
				return invalidf(path, dc.offset(), "active_field sum rollback failed")
			}
			ptr := dc.allocPtr(v.Desc.Type)
			if err := decodeValue(dc, path+"."+v.WireName, v.Desc, fromField(v), ptr.Elem()); err == nil {
				out.Field(v.GoIndex).Set(ptr)
				return nil
			}
		}
		return invalidf(path, dc.offset(), "no active_field variant of %s matched", d.Type)
	}

	n, err := decodeLengthHeader(dc, path, "map")
	if err != nil {
		return err
	}
	if n != 1 {
		return invalidf(path, dc.offset(), "sum map size %d, want 1", n)
	}
	name, err := decodeName(dc, path, d.LargestFieldNameLength())
	if err != nil {
		return err
	}
	for _, v := range variants {
		if v.WireName == name {
			ptr := dc.allocPtr(v.Desc.Type)
			if err := decodeValue(dc, path+"."+v.WireName, v.Desc, fromField(v), ptr.Elem()); err != nil {
				return err
			}
			out.Field(v.GoIndex).Set(ptr)
			return nil
		}
	}
	return invalidf(path, dc.offset(), "no variant named %q", name)
}

func decodeEnum(dc *decoder, path string, d *typeinfo.Descriptor, opts fieldOpts, out reflect.Value) error {
	if opts.EnumFormat == typeinfo.EnumFormatStr {
		name, err := decodeName(dc, path, d.LargestFieldNameLength())
		if err != nil {
			return err
		}
		val, ok := d.Enum.ByName[name]
		if !ok {
			return invalidf(path, dc.offset(), "%q is not a declared variant of %s", name, d.Type)
		}
		return setEnumValue(out, d, val)
	}
	raw, negative, err := decodeIntegerRaw(dc, path)
	if err != nil {
		return err
	}
	var val int64
	if negative {
		val = int64(raw)
	} else {
		if raw > math.MaxInt64 {
			return invalidf(path, dc.offset(), "enum tag value out of range")
		}
		val = int64(raw)
	}
	if _, ok := d.Enum.ByValue[val]; !ok {
		return invalidf(path, dc.offset(), "%d is not a declared variant tag of %s", val, d.Type)
	}
	return setEnumValue(out, d, val)
}

func setEnumValue(out reflect.Value, d *typeinfo.Descriptor, val int64) error {
	if isSignedKind(d.Type.Kind()) {
		out.SetInt(val)
	} else {
		out.SetUint(uint64(val))
	}
	return nil
}

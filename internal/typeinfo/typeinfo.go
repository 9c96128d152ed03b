// Package typeinfo implements the codec's type classifier and options
// model: given a Go reflect.Type, it derives and caches
// a Descriptor describing how that type's values are laid out on the
// MessagePack wire, and a companion Options tree mirroring the
// customization points available at each type node.
//
// Go has no compile-time reflection, so the static type introspection
// a code-generating codec would do at compile time is realized here
// as a reflect.Type-keyed cache computed once per type and reused for
// every subsequent Encode/Decode call.
package typeinfo

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Kind is the host-type classification used throughout the codec:
// the enumeration of admissible kinds a value's type may resolve to.
type Kind int

const (
	Invalid Kind = iota
	Bool
	Int
	Uint
	Float
	Array   // fixed-length [N]T, sentinel optional (array) or absent (vector)
	Optional // *T, nil = absent
	Box     // owning pointer-to-one (lizpack.Box[T])
	Slice   // []T, sentinel optional
	Str     // string; wire family chosen by ByteFormat like a byte slice
	Struct  // product
	Sum     // tagged union
	Enum    // closed set of named integer variants
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Uint:
		return "uint"
	case Float:
		return "float"
	case Array:
		return "array"
	case Optional:
		return "optional"
	case Box:
		return "box"
	case Slice:
		return "slice"
	case Str:
		return "str"
	case Struct:
		return "struct"
	case Sum:
		return "sum"
	case Enum:
		return "enum"
	default:
		return "invalid"
	}
}

// ByteFormat selects the wire family for byte-sequence host values:
// bin, str, or an array with one integer element per byte.
type ByteFormat int

const (
	ByteFormatStr ByteFormat = iota // default
	ByteFormatBin
	ByteFormatArray
)

// Layout selects how a product or sum is laid out on the wire.
type Layout int

const (
	LayoutMap Layout = iota // default for both product and sum
	LayoutArray             // product only
	LayoutActiveField       // sum only
)

// EnumFormat selects how an enum's active variant is encoded.
type EnumFormat int

const (
	EnumFormatInt EnumFormat = iota // default
	EnumFormatStr
)

// Sentinel describes a declared terminator value for an array or slice.
type Sentinel struct {
	Present bool
	// Int holds the sentinel for any integer-kind element (sign
	// extended); Bool holds it for a bool element.
	Int  int64
	Bool bool
}

// Field is one product field or one sum variant.
type Field struct {
	GoIndex    int
	WireName   string
	Desc       *Descriptor
	ByteFormat ByteFormat
	Layout     Layout
	EnumFormat EnumFormat
	Sentinel   Sentinel
}

// Descriptor is the cached, recursively-built type descriptor for one
// reflect.Type, combining the classifier output and its options-tree
// default into a single cached node since a field's wire customization
// is declared once, on the struct tag, rather than threaded as a
// separate runtime value.
type Descriptor struct {
	Type     reflect.Type
	Kind     Kind
	BitSize  int  // Int/Uint/Float: 8/16/32/64
	ArrayLen int  // Array
	Elem     *Descriptor // Array/Slice/Optional/Box element
	Fields   []Field     // Struct (declaration order) / Sum (variant order)
	IsSum    bool
	Enum     *EnumInfo

	// Root-level defaults; overridden per field via the owning struct's
	// tag (Field.ByteFormat/...). Encode/Decode take no per-call
	// override.
	ByteFormat ByteFormat
	Layout     Layout
	EnumFormat EnumFormat
	Sentinel   Sentinel

	hasVariableLength bool
	maxFieldNameLen   int
}

// ContainsVariableLength reports whether d recursively contains a
// slice or string, which governs whether
// Encode's error set includes SliceLenTooLarge and whether DecodeAlloc
// (rather than Decode) is required.
func (d *Descriptor) ContainsVariableLength() bool { return d.hasVariableLength }

// LargestFieldNameLength returns the maximum encoded byte length of
// any field/variant name reachable at or below d, used as the bound
// map-mode and enum-str decoding enforce on a name's length before
// reading it.
func (d *Descriptor) LargestFieldNameLength() int { return d.maxFieldNameLen }

// EnumInfo is the registered name<->value table for one enum type.
type EnumInfo struct {
	Type    reflect.Type
	Names   []string
	ByName  map[string]int64
	ByValue map[int64]string
}

var (
	cacheMu sync.RWMutex
	cache   = map[reflect.Type]*Descriptor{}

	enumMu sync.RWMutex
	enums  = map[reflect.Type]*EnumInfo{}

	bitWidthMu sync.RWMutex
	bitWidths  = map[reflect.Type]int{}
)

// RegisterBitWidth declares that the named integer type T represents a
// host integer narrower (or, for int/uint64-backed types, equal) than
// its underlying Go type's natural width, standing in for arbitrary
// 1-64 bit host integers, which Go's fixed 8/16/32/64-bit
// types cannot otherwise express. It must be called before the first
// Describe of T. bits must be between 1 and the bit size of T's
// underlying Go type.
func RegisterBitWidth[T ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64](bits int) {
	t := reflect.TypeOf(*new(T))
	bitWidthMu.Lock()
	bitWidths[t] = bits
	bitWidthMu.Unlock()
}

func lookupBitWidth(t reflect.Type, natural int) int {
	bitWidthMu.RLock()
	defer bitWidthMu.RUnlock()
	if b, ok := bitWidths[t]; ok {
		return b
	}
	return natural
}

// RegisterEnum records the closed variant set for an integer-kind
// named type T, standing in for the compile-time enumeration of named
// constants Go's reflect
// package cannot perform on its own (see DESIGN.md Open Question). It
// must be called before the first Describe of T, typically from an
// init function beside the type declaration.
func RegisterEnum[T ~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64](names map[string]T) {
	t := reflect.TypeOf(*new(T))
	info := &EnumInfo{
		Type:    t,
		ByName:  make(map[string]int64, len(names)),
		ByValue: make(map[int64]string, len(names)),
	}
	for name, v := range names {
		iv := int64(v)
		info.Names = append(info.Names, name)
		info.ByName[name] = iv
		info.ByValue[iv] = name
	}
	enumMu.Lock()
	enums[t] = info
	enumMu.Unlock()
}

func lookupEnum(t reflect.Type) (*EnumInfo, bool) {
	enumMu.RLock()
	defer enumMu.RUnlock()
	info, ok := enums[t]
	return info, ok
}

// Describe returns the cached Descriptor for t, building and caching
// it on first use. It returns an error for any inadmissible kind
// (maps, channels, functions, complex numbers, interfaces),
// standing in for a compile-time error in a
// code-generating codec.
func Describe(t reflect.Type) (*Descriptor, error) {
	cacheMu.RLock()
	if d, ok := cache[t]; ok {
		cacheMu.RUnlock()
		return d, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	return describeLocked(t)
}

// describeLocked is Describe with cacheMu already held for writing.
// build and buildStruct recurse through it rather than through
// Describe, since sync.RWMutex is not reentrant.
func describeLocked(t reflect.Type) (*Descriptor, error) {
	if d, ok := cache[t]; ok {
		return d, nil
	}
	// Reserve the slot before recursing so self-referential types
	// (through a pointer or Box[T]) terminate.
	d := &Descriptor{Type: t}
	cache[t] = d
	if err := build(d, t); err != nil {
		delete(cache, t)
		return nil, err
	}
	return d, nil
}

func build(d *Descriptor, t reflect.Type) error {
	if info, ok := lookupEnum(t); ok {
		d.Kind = Enum
		d.Enum = info
		d.BitSize = lookupBitWidth(t, intBitSize(t.Kind()))
		for _, n := range info.Names {
			if l := len(n); l > d.maxFieldNameLen {
				d.maxFieldNameLen = l
			}
		}
		return nil
	}

	if isBoxType(t) {
		d.Kind = Box
		elemType := t.Field(0).Type.Elem()
		elem, err := describeLocked(elemType)
		if err != nil {
			return fmt.Errorf("lizpack: Box element: %w", err)
		}
		d.Elem = elem
		d.hasVariableLength = elem.hasVariableLength
		d.maxFieldNameLen = elem.maxFieldNameLen
		return nil
	}

	switch t.Kind() {
	case reflect.Bool:
		d.Kind = Bool
		return nil

	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		d.Kind = Int
		d.BitSize = lookupBitWidth(t, intBitSize(t.Kind()))
		return nil

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		d.Kind = Uint
		d.BitSize = lookupBitWidth(t, intBitSize(t.Kind()))
		return nil

	case reflect.Float32:
		d.Kind = Float
		d.BitSize = 32
		return nil
	case reflect.Float64:
		d.Kind = Float
		d.BitSize = 64
		return nil

	case reflect.Pointer:
		d.Kind = Optional
		elem, err := describeLocked(t.Elem())
		if err != nil {
			return fmt.Errorf("lizpack: optional element: %w", err)
		}
		d.Elem = elem
		d.hasVariableLength = elem.hasVariableLength
		d.maxFieldNameLen = elem.maxFieldNameLen
		return nil

	case reflect.Array:
		d.Kind = Array
		d.ArrayLen = t.Len()
		elem, err := describeLocked(t.Elem())
		if err != nil {
			return fmt.Errorf("lizpack: array element: %w", err)
		}
		d.Elem = elem
		d.hasVariableLength = elem.hasVariableLength
		d.maxFieldNameLen = elem.maxFieldNameLen
		return nil

	case reflect.Slice:
		d.Kind = Slice
		elem, err := describeLocked(t.Elem())
		if err != nil {
			return fmt.Errorf("lizpack: slice element: %w", err)
		}
		d.Elem = elem
		d.hasVariableLength = true
		d.maxFieldNameLen = elem.maxFieldNameLen
		return nil

	case reflect.String:
		// A Go string has no static length bound, the same reason a
		// slice gates Decode/EncodeBounded/LargestEncodedSize, even
		// though decoding one never touches the arena: the decoded
		// bytes become an ordinary immutable Go string, owned by the
		// garbage collector like any other string value.
		d.Kind = Str
		d.hasVariableLength = true
		return nil

	case reflect.Struct:
		return buildStruct(d, t)

	default:
		return fmt.Errorf("lizpack: inadmissible host kind %s for type %s", t.Kind(), t)
	}
}

func intBitSize(k reflect.Kind) int {
	switch k {
	case reflect.Int8, reflect.Uint8:
		return 8
	case reflect.Int16, reflect.Uint16:
		return 16
	case reflect.Int32, reflect.Uint32:
		return 32
	default: // Int64/Uint64/Int/Uint: treat platform int as 64-bit
		return 64
	}
}

// SumMarker is the blank-field marker type struct tags cannot attach
// to a type itself, so an embedded `_ typeinfo.SumMarker` field is the
// convention that flips a struct from product to sum semantics.
type SumMarker struct{}

func buildStruct(d *Descriptor, t reflect.Type) error {
	isSum := false
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Type == reflect.TypeOf(SumMarker{}) {
			isSum = true
			break
		}
	}
	d.IsSum = isSum
	if isSum {
		d.Kind = Sum
		d.Layout = LayoutMap
	} else {
		d.Kind = Struct
		d.Layout = LayoutMap
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Type == reflect.TypeOf(SumMarker{}) {
			continue
		}
		if !sf.IsExported() {
			continue
		}
		fieldType := sf.Type
		if isSum {
			if fieldType.Kind() != reflect.Pointer {
				return fmt.Errorf("lizpack: sum variant %q of %s must be a pointer type", sf.Name, t)
			}
			fieldType = fieldType.Elem()
		}
		fd, err := describeLocked(fieldType)
		if err != nil {
			return fmt.Errorf("lizpack: field %q of %s: %w", sf.Name, t, err)
		}

		name, opts := parseTag(sf.Tag.Get("lizpack"), sf.Name)
		field := Field{
			GoIndex:  i,
			WireName: name,
			Desc:     fd,
		}
		applyFieldOptions(&field, fd, opts)

		d.Fields = append(d.Fields, field)
		if l := len(field.WireName); l > d.maxFieldNameLen {
			d.maxFieldNameLen = l
		}
		if fd.maxFieldNameLen > d.maxFieldNameLen {
			d.maxFieldNameLen = fd.maxFieldNameLen
		}
		if fd.hasVariableLength {
			d.hasVariableLength = true
		}
	}
	return nil
}

func parseTag(tag, fieldName string) (name string, opts map[string]string) {
	opts = map[string]string{}
	if tag == "" {
		return fieldName, opts
	}
	parts := strings.Split(tag, ",")
	name = fieldName
	if len(parts) > 0 && parts[0] != "" && !strings.Contains(parts[0], "=") {
		name = parts[0]
		parts = parts[1:]
	}
	for _, p := range parts {
		if p == "" {
			continue
		}
		if eq := strings.IndexByte(p, '='); eq >= 0 {
			opts[p[:eq]] = p[eq+1:]
		} else {
			opts[p] = ""
		}
	}
	return name, opts
}

func applyFieldOptions(f *Field, fd *Descriptor, opts map[string]string) {
	if _, ok := opts["bin"]; ok {
		f.ByteFormat = ByteFormatBin
	}
	if _, ok := opts["str"]; ok {
		f.ByteFormat = ByteFormatStr
	}
	if _, ok := opts["array"]; ok {
		f.ByteFormat = ByteFormatArray
	}
	if v, ok := opts["layout"]; ok && v == "array" {
		f.Layout = LayoutArray
	}
	if v, ok := opts["layout"]; ok && v == "active_field" {
		f.Layout = LayoutActiveField
	}
	if v, ok := opts["enum"]; ok && v == "str" {
		f.EnumFormat = EnumFormatStr
	}
	if v, ok := opts["sentinel"]; ok {
		f.Sentinel = parseSentinel(fd, v)
	}
}

func parseSentinel(fd *Descriptor, raw string) Sentinel {
	elem := fd
	if elem.Kind == Bool {
		b, _ := strconv.ParseBool(raw)
		return Sentinel{Present: true, Bool: b}
	}
	n, _ := strconv.ParseInt(raw, 10, 64)
	return Sentinel{Present: true, Int: n}
}

func isBoxType(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t.NumField() != 1 {
		return false
	}
	f := t.Field(0)
	if f.Name != "V" || f.Type.Kind() != reflect.Pointer {
		return false
	}
	m, ok := t.MethodByName("IsLizpackBox")
	if !ok {
		return false
	}
	return m.Type.NumOut() == 1 && m.Type.Out(0).Kind() == reflect.Bool
}

// IsByteKind reports whether d describes a host `byte` (uint8, not an
// enum) element, the condition that decides whether an
// array/slice defaults to str/bin/array dispatch instead of forcing
// array.
func IsByteKind(d *Descriptor) bool {
	return d.Kind == Uint && d.BitSize == 8
}

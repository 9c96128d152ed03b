package lizpack

import (
	"fmt"

	"github.com/rbaliyan/lizpack/internal/typeinfo"
)

// LargestEncodedSize returns the exact upper bound on the number of
// bytes Encode can write for a value of type T. It is defined only for types
// carrying no variable-length subterm: a fixed array's length and a
// product/sum's field count are known once T is described, so the
// bound mirrors the encoder's family selection exactly rather than
// conservatively over-estimating it.
func LargestEncodedSize[T any]() (int, error) {
	d, err := typeinfo.TypeFor[T]()
	if err != nil {
		return 0, err
	}
	if d.ContainsVariableLength() {
		return 0, fmt.Errorf("lizpack: LargestEncodedSize requires a type with no variable-length subterm")
	}
	return largestSize(d, fieldOpts{})
}

func largestSize(d *typeinfo.Descriptor, opts fieldOpts) (int, error) {
	switch d.Kind {
	case typeinfo.Bool:
		return 1, nil
	case typeinfo.Uint:
		return intWireSize(d.BitSize, false), nil
	case typeinfo.Int:
		return intWireSize(d.BitSize, true), nil
	case typeinfo.Float:
		if d.BitSize == 32 {
			return 5, nil
		}
		return 9, nil
	case typeinfo.Optional:
		inner, err := largestSize(d.Elem, opts)
		if err != nil {
			return 0, err
		}
		if inner < 1 {
			inner = 1
		}
		return inner, nil
	case typeinfo.Box:
		return largestSize(d.Elem, opts)
	case typeinfo.Array:
		return largestArraySize(d, opts)
	case typeinfo.Struct:
		return largestStructSize(d, opts)
	case typeinfo.Sum:
		return largestSumSize(d, opts)
	case typeinfo.Enum:
		return largestEnumSize(d, opts)
	default:
		return 0, fmt.Errorf("lizpack: %s contains a variable-length subterm", d.Type)
	}
}

// intWireSize mirrors the encoder's family-selection table: the
// wire family a scalar integer uses is a function of its declared bit
// width alone, never its runtime value, so the bound is also exact.
func intWireSize(bits int, signed bool) int {
	switch {
	case signed && bits <= 6:
		return 1
	case !signed && bits <= 7:
		return 1
	case bits <= 8:
		return 2
	case bits <= 16:
		return 3
	case bits <= 32:
		return 5
	default:
		return 9
	}
}

func largestArraySize(d *typeinfo.Descriptor, opts fieldOpts) (int, error) {
	n := d.ArrayLen
	if opts.Sentinel.Present {
		n++
	}
	if typeinfo.IsByteKind(d.Elem) && opts.ByteFormat != typeinfo.ByteFormatArray {
		return byteHeaderSize(opts.ByteFormat, n) + n, nil
	}
	elemSz, err := largestSize(d.Elem, fieldOpts{})
	if err != nil {
		return 0, err
	}
	return arrayHeaderSize(n) + n*elemSz, nil
}

func largestStructSize(d *typeinfo.Descriptor, opts fieldOpts) (int, error) {
	fields := d.Fields
	if len(fields) == 0 {
		return 0, nil
	}
	if opts.Layout == typeinfo.LayoutArray {
		total := arrayHeaderSize(len(fields))
		for _, f := range fields {
			sz, err := largestSize(f.Desc, fromField(f))
			if err != nil {
				return 0, err
			}
			total += sz
		}
		return total, nil
	}
	total := mapHeaderSize(len(fields))
	for _, f := range fields {
		total += fixstrSize(f.WireName)
		sz, err := largestSize(f.Desc, fromField(f))
		if err != nil {
			return 0, err
		}
		total += sz
	}
	return total, nil
}

// largestSumSize bounds the size at every variant, since a value of a
// sum type may be active in any one of them at runtime.
func largestSumSize(d *typeinfo.Descriptor, opts fieldOpts) (int, error) {
	max := 0
	for _, v := range d.Fields {
		sz, err := largestSize(v.Desc, fromField(v))
		if err != nil {
			return 0, err
		}
		if opts.Layout != typeinfo.LayoutActiveField {
			sz += fixstrSize(v.WireName)
		}
		if sz > max {
			max = sz
		}
	}
	if opts.Layout == typeinfo.LayoutActiveField {
		return max, nil
	}
	return mapHeaderSize(1) + max, nil
}

func largestEnumSize(d *typeinfo.Descriptor, opts fieldOpts) (int, error) {
	if opts.EnumFormat == typeinfo.EnumFormatStr {
		n := d.LargestFieldNameLength()
		return byteHeaderSize(typeinfo.ByteFormatStr, n) + n, nil
	}
	return intWireSize(d.BitSize, isSignedKind(d.Type.Kind())), nil
}

func arrayHeaderSize(n int) int {
	switch {
	case n <= 15:
		return 1
	case n <= 0xFFFF:
		return 3
	default:
		return 5
	}
}

func mapHeaderSize(n int) int {
	switch {
	case n <= 15:
		return 1
	case n <= 0xFFFF:
		return 3
	default:
		return 5
	}
}

func byteHeaderSize(bf typeinfo.ByteFormat, n int) int {
	if bf == typeinfo.ByteFormatBin {
		switch {
		case n <= 0xFF:
			return 2
		case n <= 0xFFFF:
			return 3
		default:
			return 5
		}
	}
	switch {
	case n <= 31:
		return 1
	case n <= 0xFF:
		return 2
	case n <= 0xFFFF:
		return 3
	default:
		return 5
	}
}

func fixstrSize(s string) int {
	n := len(s)
	return byteHeaderSize(typeinfo.ByteFormatStr, n) + n
}

package lizpack

import (
	"reflect"

	"github.com/rbaliyan/lizpack/internal/typeinfo"
)

// fieldOpts is the effective wire customization in force at one point
// in the type tree during an Encode/Decode/size walk. It is populated
// from a struct field's tag at the point the field is entered and then
// carried unchanged through Optional/Box, since those wrappers have no
// configurable choice of their own and route their options straight
// through to the inner type. A fresh zero-value fieldOpts, carrying the
// same defaults the root type gets, is used for array/slice elements
// and for struct fields, each of which carries its own tag-derived
// options instead.
type fieldOpts struct {
	ByteFormat typeinfo.ByteFormat
	Layout     typeinfo.Layout
	EnumFormat typeinfo.EnumFormat
	Sentinel   typeinfo.Sentinel
}

func fromField(f typeinfo.Field) fieldOpts {
	return fieldOpts{
		ByteFormat: f.ByteFormat,
		Layout:     f.Layout,
		EnumFormat: f.EnumFormat,
		Sentinel:   f.Sentinel,
	}
}

func isSignedKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

package lizpack

import "github.com/rbaliyan/lizpack/internal/typeinfo"

// Box is a single-element owning pointer to T: unlike an optional
// (*T, which may be nil),
// a Box is always populated once a decode into it succeeds, and gives
// the "pointer-to-one" kind a Go type of its own without colliding
// with the "optional" kind, which Go's bare *T already covers.
// Encoding an empty Box fails, so a self-referential type (e.g. a
// linked list node) ends its chain through an optional *Box[T].
//
// The codec identifies Box[T] structurally: a one-field struct named
// V of pointer type implementing IsLizpackBox. Field V is exported so
// the reflection-based encoder/decoder in package lizpack can reach
// into it without a type parameter of its own.
type Box[T any] struct {
	V *T
}

// NewBox allocates a Box holding a copy of v.
func NewBox[T any](v T) Box[T] {
	p := new(T)
	*p = v
	return Box[T]{V: p}
}

// IsLizpackBox marks Box[T] for the type classifier; see
// internal/typeinfo.isBoxType.
func (Box[T]) IsLizpackBox() bool { return true }

// Get dereferences the Box, panicking if it was never populated (the
// zero Box). A Box produced by Decode/DecodeAlloc is always populated.
func (b Box[T]) Get() T {
	if b.V == nil {
		panic("lizpack: Box.Get on an empty Box")
	}
	return *b.V
}

// Valid reports whether the Box holds a value.
func (b Box[T]) Valid() bool { return b.V != nil }

// Sum is embedded (blank-named) in a struct to mark it as a tagged
// union: `_ lizpack.Sum`. Every other exported field of such a struct
// must be a pointer to its variant's payload type, and exactly one
// must be non-nil when encoding.
type Sum = typeinfo.SumMarker

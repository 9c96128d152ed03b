// Package arena provides the allocation root used to back DecodeAlloc.
//
// Every allocation a decode makes while producing a dynamically-sized
// value (slices, Box[T] pointees) is attributed to one Arena, which the
// caller releases as a unit. Go's garbage collector, not the Arena,
// actually reclaims the backing memory; the Arena's job is ownership
// discipline: a single handle that every pointer/slice produced by
// one DecodeAlloc call is reachable from, and that a caller can
// explicitly invalidate by calling Release.
package arena

import "sync/atomic"

// Arena is the allocation root for a single DecodeAlloc call.
type Arena struct {
	released atomic.Bool
	bytes    atomic.Int64
}

// New creates an empty Arena.
func New() *Arena {
	return &Arena{}
}

// Release invalidates every value this Arena produced. It is the
// caller's responsibility not to dereference Box[T] pointees or use
// slices obtained from this Arena afterwards; Release itself does not
// scrub memory, it only flips the Arena into a state where further
// allocation attempts panic.
func (a *Arena) Release() {
	a.released.Store(true)
}

// Released reports whether Release has been called.
func (a *Arena) Released() bool {
	return a.released.Load()
}

// Bytes reports the cumulative size of values allocated from the
// Arena, for diagnostics/instrumentation only.
func (a *Arena) Bytes() int64 {
	return a.bytes.Load()
}

// Track attributes n additional bytes to a without allocating anything
// itself. The reflection-driven decoder in package lizpack calls this
// directly around its own reflect.MakeSlice/reflect.New calls, since a
// generic Arena method cannot be instantiated against a reflect.Type
// known only at runtime.
func (a *Arena) Track(n int) {
	if a.released.Load() {
		panic("arena: alloc after Release")
	}
	a.bytes.Add(int64(n))
}

// MakeSlice allocates a slice of n elements of type T attributed to a.
func MakeSlice[T any](a *Arena, n int) []T {
	a.Track(n * elemSize[T]())
	if n == 0 {
		return []T{}
	}
	return make([]T, n)
}

// New1 allocates a single T attributed to a and returns a pointer to it.
func New1[T any](a *Arena) *T {
	a.Track(elemSize[T]())
	return new(T)
}

func elemSize[T any]() int {
	var zero T
	switch any(zero).(type) {
	case bool, int8, uint8:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32, float32:
		return 4
	default:
		return 8
	}
}

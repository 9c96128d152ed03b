package typeinfo

import "reflect"

// Options is an introspectable options tree describing the wire
// customization in force for a type and its subterms. It is
// a read-only projection of a Descriptor: the wire
// customization a field carries is fixed once, on its struct tag, so
// Options exists for introspection rather than as a
// second value threaded through Encode/Decode alongside the type.
type Options struct {
	ByteFormat ByteFormat
	Layout     Layout
	EnumFormat EnumFormat
	Elem       *Options
	Fields     map[string]*Options
}

// DefaultOptions projects d into an Options tree.
func DefaultOptions(d *Descriptor) *Options {
	o := &Options{
		ByteFormat: d.ByteFormat,
		Layout:     d.Layout,
		EnumFormat: d.EnumFormat,
	}
	if d.Elem != nil {
		o.Elem = DefaultOptions(d.Elem)
	}
	if len(d.Fields) > 0 {
		o.Fields = make(map[string]*Options, len(d.Fields))
		for _, f := range d.Fields {
			fo := DefaultOptions(f.Desc)
			fo.ByteFormat = f.ByteFormat
			fo.Layout = f.Layout
			fo.EnumFormat = f.EnumFormat
			o.Fields[f.WireName] = fo
		}
	}
	return o
}

// TypeFor describes T, the generic entry point used by the root
// package's public API.
func TypeFor[T any]() (*Descriptor, error) {
	return Describe(reflect.TypeOf((*T)(nil)).Elem())
}

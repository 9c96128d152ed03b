package lizpack

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/rbaliyan/lizpack/internal/typeinfo"
)

// Literal wire-byte scenarios, big-endian, one assertion per documented
// case.

func TestSeedBool(t *testing.T) {
	buf := make([]byte, 1)
	if _, err := Encode(true, buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0xC3 {
		t.Errorf("encode(true) = %X, want C3", buf[0])
	}
	if _, err := Encode(false, buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0xC2 {
		t.Errorf("encode(false) = %X, want C2", buf[0])
	}
}

type u5 uint8
type i6 int8
type i5 int8

func init() {
	typeinfo.RegisterBitWidth[u5](5)
	typeinfo.RegisterBitWidth[i6](6)
	typeinfo.RegisterBitWidth[i5](5)
}

func TestSeedNonMinimalIntegerEncoding(t *testing.T) {
	buf := make([]byte, 1)
	if _, err := Encode(u5(0), buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0x00 {
		t.Errorf("encode((u5) 0) = %X, want 00", buf[0])
	}

	if _, err := Encode(i6(-32), buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0xE0 {
		t.Errorf("encode((i6) -32) = %X, want E0", buf[0])
	}

	if _, err := Encode(i5(-1), buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0xFF {
		t.Errorf("encode((i5) -1) = %X, want FF", buf[0])
	}
}

func TestSeedStringAsStr(t *testing.T) {
	data, err := Marshal("foo")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xA3, 0x66, 0x6F, 0x6F}
	if !bytes.Equal(data, want) {
		t.Errorf("encode(\"foo\" as str) = % X, want % X", data, want)
	}
	var got string
	if err := Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got != "foo" {
		t.Errorf("decoded %q, want foo", got)
	}
}

func TestSeedStringAsBin(t *testing.T) {
	type wrapper struct {
		S string `lizpack:"s,bin"`
	}
	e := &encoder{growable: true}
	fd, err := typeinfo.TypeFor[wrapper]()
	if err != nil {
		t.Fatal(err)
	}
	if err := encodeValue(e, "", fd, fieldOpts{}, reflect.ValueOf(wrapper{S: "foo"})); err != nil {
		t.Fatal(err)
	}
	// wrapper is a one-field map-layout struct: fixmap(1), fixstr "s", then the bin payload.
	want := []byte{0x81, 0xA1, 0x73, 0xC4, 0x03, 0x66, 0x6F, 0x6F}
	if !bytes.Equal(e.buf[:e.pos], want) {
		t.Errorf("encode({s: \"foo\" as bin}) = % X, want % X", e.buf[:e.pos], want)
	}
}

type seedWeekday uint8

const (
	seedFoo seedWeekday = iota
	seedBar
)

func init() {
	typeinfo.RegisterEnum[seedWeekday](map[string]seedWeekday{"foo": seedFoo, "bar": seedBar})
}

func TestSeedEnumAsStr(t *testing.T) {
	type wrapper struct {
		V seedWeekday `lizpack:"v,enum=str"`
	}
	d, err := typeinfo.TypeFor[wrapper]()
	if err != nil {
		t.Fatal(err)
	}
	e := &encoder{growable: true}
	if err := encodeValue(e, "", d, fieldOpts{}, reflect.ValueOf(wrapper{V: seedFoo})); err != nil {
		t.Fatal(err)
	}
	// fixmap(1), fixstr "v", then fixstr "foo".
	want := []byte{0x81, 0xA1, 0x76, 0xA3, 0x66, 0x6F, 0x6F}
	if !bytes.Equal(e.buf[:e.pos], want) {
		t.Errorf("encode(enum.foo as str) = % X, want % X", e.buf[:e.pos], want)
	}
}

type mapProduct struct {
	Foo uint8  `lizpack:"foo"`
	Bar uint16 `lizpack:"bar"`
}

// mapProduct's wire bytes below follow the encoder's family-selection
// rule (8-bit host -> uint_8, 16-bit host -> uint_16); see DESIGN.md
// for why an all-fixint encoding would be wrong for a true 8/16-bit
// host.
func TestSeedMapLayoutProduct(t *testing.T) {
	data, err := Marshal(mapProduct{Foo: 3, Bar: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x82, 0xA3, 0x66, 0x6F, 0x6F, 0xCC, 0x03, 0xA3, 0x62, 0x61, 0x72, 0xCD, 0x00, 0x02}
	if !bytes.Equal(data, want) {
		t.Errorf("encode({foo:3,bar:2}) = % X, want % X", data, want)
	}
	var got mapProduct
	if err := Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Foo != 3 || got.Bar != 2 {
		t.Errorf("decoded %+v, want {Foo:3 Bar:2}", got)
	}
}

func TestSeedMapLayoutOrderInsensitive(t *testing.T) {
	// Same two entries, bar before foo on the wire.
	permuted := []byte{0x82, 0xA3, 0x62, 0x61, 0x72, 0xCD, 0x00, 0x02, 0xA3, 0x66, 0x6F, 0x6F, 0xCC, 0x03}
	var got mapProduct
	if err := Unmarshal(permuted, &got); err != nil {
		t.Fatalf("permuted map failed to decode: %v", err)
	}
	if got.Foo != 3 || got.Bar != 2 {
		t.Errorf("decoded %+v, want {Foo:3 Bar:2}", got)
	}
}

func TestSeedMapLayoutDuplicateFieldRejected(t *testing.T) {
	dup := []byte{0x82, 0xA3, 0x66, 0x6F, 0x6F, 0xCC, 0x03, 0xA3, 0x66, 0x6F, 0x6F, 0xCC, 0x02}
	var got mapProduct
	if err := Unmarshal(dup, &got); err == nil {
		t.Error("expected duplicate field foo to be rejected")
	}
}

func TestSeedMapLayoutUnknownFieldRejected(t *testing.T) {
	// "baz" in place of "bar".
	renamed := []byte{0x82, 0xA3, 0x66, 0x6F, 0x6F, 0xCC, 0x03, 0xA3, 0x62, 0x61, 0x7A, 0xCD, 0x00, 0x02}
	var got mapProduct
	if err := Unmarshal(renamed, &got); err == nil {
		t.Error("expected unknown field baz to be rejected")
	}
}

func TestSeedBoolSlice(t *testing.T) {
	data, err := Marshal([]bool{true, false, true})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x93, 0xC3, 0xC2, 0xC3}
	if !bytes.Equal(data, want) {
		t.Errorf("encode([true,false,true]) = % X, want % X", data, want)
	}
}

func TestSeedOptionalFloat64(t *testing.T) {
	var none *float64
	data, err := Marshal(none)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0xC0}) {
		t.Errorf("encode(Optional<f64>.none) = % X, want C0", data)
	}

	v := 12.3
	data, err = Marshal(&v)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 9 || data[0] != 0xCB {
		t.Errorf("encode(Optional<f64>.some(12.3)) = % X, want 9 bytes starting CB", data)
	}
	var got *float64
	if err := Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != v {
		t.Errorf("decoded %v, want %v", got, v)
	}
}

type activeFieldSum struct {
	_      Sum
	MyU8   *uint8 `lizpack:"my_u8"`
	MyBool *bool  `lizpack:"my_bool"`
}

func TestSeedSumActiveFieldLayout(t *testing.T) {
	// Encoded byte C2 (false) decodes to my_bool=false.
	var got activeFieldSum
	if err := decodeActiveFieldSum(t, []byte{0xC2}, &got); err != nil {
		t.Fatal(err)
	}
	if got.MyBool == nil || *got.MyBool != false || got.MyU8 != nil {
		t.Errorf("decoding C2 gave %+v, want my_bool=false", got)
	}

	got = activeFieldSum{}
	if err := decodeActiveFieldSum(t, []byte{0x00}, &got); err != nil {
		t.Fatal(err)
	}
	if got.MyU8 == nil || *got.MyU8 != 0 || got.MyBool != nil {
		t.Errorf("decoding 00 gave %+v, want my_u8=0", got)
	}

	got = activeFieldSum{}
	if err := decodeActiveFieldSum(t, []byte{0xC4}, &got); err == nil {
		t.Error("expected C4 to fail as neither my_u8 nor my_bool")
	}
}

// decodeActiveFieldSum decodes data as an activeFieldSum laid out
// active_field, the layout a plain Unmarshal can't express since it's
// a root-level choice rather than a struct-tag default.
func decodeActiveFieldSum(t *testing.T, data []byte, out *activeFieldSum) error {
	t.Helper()
	d, err := typeinfo.TypeFor[activeFieldSum]()
	if err != nil {
		return err
	}
	dc := &decoder{r: bytes.NewReader(data)}
	return decodeValue(dc, "", d, fieldOpts{Layout: typeinfo.LayoutActiveField}, reflect.ValueOf(out).Elem())
}

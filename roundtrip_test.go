package lizpack

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"syreclabs.com/go/faker"

	"github.com/rbaliyan/lizpack/internal/typeinfo"
)

func init() {
	faker.Seed(time.Now().UnixNano())
}

type scalarProduct struct {
	Flag    bool
	Count   uint16
	Offset  int32
	Measure float64
	Label   string
	Raw     []byte `lizpack:"raw,bin"`
}

func randomScalarProduct() scalarProduct {
	return scalarProduct{
		Flag:    faker.RandomInt(0, 1) == 1,
		Count:   uint16(faker.RandomInt(0, 0xFFFF)),
		Offset:  int32(faker.RandomInt(-1000000, 1000000)),
		Measure: float64(faker.RandomInt(-100000, 100000)) / 100.0,
		Label:   faker.Lorem().String(),
		Raw:     []byte(faker.Lorem().String()),
	}
}

func TestRoundTripScalarProductMarshal(t *testing.T) {
	for i := 0; i < 20; i++ {
		want := randomScalarProduct()
		data, err := Marshal(want)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var got scalarProduct
		if err := Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

type fixedProduct struct {
	A uint8
	B int16
	C float32
	D bool
}

func randomFixedProduct() fixedProduct {
	return fixedProduct{
		A: uint8(faker.RandomInt(0, 255)),
		B: int16(faker.RandomInt(-30000, 30000)),
		C: float32(faker.RandomInt(-50000, 50000)) / 100.0,
		D: faker.RandomInt(0, 1) == 1,
	}
}

func TestRoundTripFixedProductEncodeDecode(t *testing.T) {
	for i := 0; i < 20; i++ {
		want := randomFixedProduct()
		n, err := LargestEncodedSize[fixedProduct]()
		if err != nil {
			t.Fatalf("LargestEncodedSize: %v", err)
		}
		buf := make([]byte, n)
		written, err := Encode(want, buf)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if written > n {
			t.Fatalf("encoded %d bytes, exceeds bound %d", written, n)
		}
		got, err := Decode[fixedProduct](buf[:written])
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestRoundTripEncodeBounded(t *testing.T) {
	want := randomFixedProduct()
	data, err := EncodeBounded(want)
	if err != nil {
		t.Fatalf("EncodeBounded: %v", err)
	}
	got, err := Decode[fixedProduct](data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

type withSlice struct {
	Name  string
	Items []uint32
}

func TestRoundTripDecodeAlloc(t *testing.T) {
	want := withSlice{
		Name:  faker.Lorem().String(),
		Items: []uint32{1, 2, 3, 4, 5},
	}
	data, err := Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := DecodeAlloc[withSlice](nil, data)
	if err != nil {
		t.Fatalf("DecodeAlloc: %v", err)
	}
	defer decoded.Arena.Release()
	if diff := cmp.Diff(want, decoded.Value); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsVariableLengthType(t *testing.T) {
	data, err := Marshal(withSlice{Name: "x", Items: []uint32{1}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := Decode[withSlice](data); err == nil {
		t.Error("expected Decode to reject a type with a slice subterm")
	}
}

func TestLargestEncodedSizeRejectsVariableLengthType(t *testing.T) {
	if _, err := LargestEncodedSize[withSlice](); err == nil {
		t.Error("expected LargestEncodedSize to reject a type with a slice subterm")
	}
}

type optionalProduct struct {
	Name     string
	Discount *float32
}

func TestRoundTripOptionalPresentAndAbsent(t *testing.T) {
	d := float32(12.3)
	present := optionalProduct{Name: "widget", Discount: &d}
	data, err := Marshal(present)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got optionalProduct
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Discount == nil || *got.Discount != d {
		t.Fatalf("expected discount %v, got %v", d, got.Discount)
	}

	absent := optionalProduct{Name: "widget"}
	data, err = Marshal(absent)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got = optionalProduct{}
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Discount != nil {
		t.Fatalf("expected nil discount, got %v", got.Discount)
	}
}

type boxNode struct {
	Value uint32
	Next  *Box[boxNode]
}

func TestRoundTripBox(t *testing.T) {
	inner := boxNode{Value: 2}
	next := NewBox(inner)
	outer := boxNode{Value: 1, Next: &next}
	data, err := Marshal(outer)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got boxNode
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Next == nil || !got.Next.Valid() {
		t.Fatal("expected populated Box")
	}
	if got.Next.Get().Value != 2 {
		t.Fatalf("expected nested value 2, got %d", got.Next.Get().Value)
	}
}

type shape struct {
	_      Sum
	Circle *circle
	Square *square
}

type circle struct {
	Radius float64
}

type square struct {
	Side float64
}

func TestRoundTripSumMapLayout(t *testing.T) {
	want := shape{Circle: &circle{Radius: 2.5}}
	data, err := Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got shape
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Circle == nil || got.Square != nil {
		t.Fatalf("expected only Circle active, got %+v", got)
	}
	if got.Circle.Radius != 2.5 {
		t.Fatalf("expected radius 2.5, got %v", got.Circle.Radius)
	}
}

func TestEncodeSumRejectsMultipleActiveVariants(t *testing.T) {
	bad := shape{Circle: &circle{Radius: 1}, Square: &square{Side: 1}}
	if _, err := Marshal(bad); err == nil {
		t.Error("expected error encoding a sum with more than one active variant")
	}
}

func TestEncodeSumRejectsNoActiveVariant(t *testing.T) {
	var bad shape
	if _, err := Marshal(bad); err == nil {
		t.Error("expected error encoding a sum with no active variant")
	}
}

type Weekday uint8

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
)

func init() {
	typeinfo.RegisterEnum[Weekday](map[string]Weekday{
		"monday": Monday, "tuesday": Tuesday, "wednesday": Wednesday,
	})
}

func TestRoundTripEnumInt(t *testing.T) {
	type hasWeekday struct {
		Day Weekday
	}
	want := hasWeekday{Day: Tuesday}
	data, err := Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got hasWeekday
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Day != Tuesday {
		t.Fatalf("expected Tuesday, got %v", got.Day)
	}
}

func TestRoundTripEnumStr(t *testing.T) {
	type hasWeekday struct {
		Day Weekday `lizpack:"day,enum=str"`
	}
	want := hasWeekday{Day: Wednesday}
	data, err := Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got hasWeekday
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Day != Wednesday {
		t.Fatalf("expected Wednesday, got %v", got.Day)
	}
}

type arrayProduct struct {
	Fixed [3]uint8
}

func TestRoundTripFixedArray(t *testing.T) {
	want := arrayProduct{Fixed: [3]uint8{1, 2, 3}}
	n, err := LargestEncodedSize[arrayProduct]()
	if err != nil {
		t.Fatalf("LargestEncodedSize: %v", err)
	}
	buf := make([]byte, n)
	written, err := Encode(want, buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode[arrayProduct](buf[:written])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

type layoutArrayProduct struct {
	A uint8
	B uint8
}

func TestRoundTripStructArrayLayout(t *testing.T) {
	// layout=array is a sum/product-level tag, applied here via the
	// field options of a wrapper so both fields share the layout.
	type wrapper struct {
		Inner layoutArrayProduct `lizpack:"inner,layout=array"`
	}
	want := wrapper{Inner: layoutArrayProduct{A: 9, B: 10}}
	data, err := Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got wrapper
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripStringByteFormats(t *testing.T) {
	type wrapper struct {
		AsStr   string
		AsBin   string `lizpack:"as_bin,bin"`
		AsArray string `lizpack:"as_array,array"`
	}
	want := wrapper{AsStr: "foo", AsBin: "bar", AsArray: "baz"}
	data, err := Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got wrapper
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

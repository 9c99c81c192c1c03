package psvalue

import (
	"math"
	"testing"
	"unsafe"
)

func TestTagsRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		typ  string
	}{
		{"undefined", Undefined(), "undefined"},
		{"null", Null(), "null"},
		{"true", Bool(true), "boolean"},
		{"false", Bool(false), "boolean"},
		{"zero", Number(0), "number"},
		{"negZero", Number(math.Copysign(0, -1)), "number"},
		{"pi", Number(math.Pi), "number"},
		{"negInf", Number(math.Inf(-1)), "number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeName(tt.v); got != tt.typ {
				t.Errorf("TypeName(%s) = %q, want %q", tt.name, got, tt.typ)
			}
		})
	}
}

func TestNumberCanonicalizesNaN(t *testing.T) {
	v := Number(math.NaN())
	if v != Value(TagNaN) {
		t.Errorf("Number(NaN) = %x, want canonical TagNaN %x", uint64(v), uint64(TagNaN))
	}
	if !IsNumber(v) {
		t.Error("canonicalized NaN should still report IsNumber")
	}
}

func TestNegativeZeroRoundTrips(t *testing.T) {
	negZero := Number(math.Copysign(0, -1))
	posZero := Number(0)
	if negZero == posZero {
		t.Error("-0 and +0 should have distinct bit patterns (arithmetic round-trip)")
	}
	if math.Signbit(AsNumber(negZero)) != true {
		t.Error("-0 sign bit lost across boxing")
	}
}

func TestBoolPredicates(t *testing.T) {
	if !AsBool(Bool(true)) {
		t.Error("AsBool(Bool(true)) should be true")
	}
	if AsBool(Bool(false)) {
		t.Error("AsBool(Bool(false)) should be false")
	}
	if IsNumber(Bool(true)) {
		t.Error("a boolean must not also report as a number")
	}
}

func TestPointerRefRoundTrip(t *testing.T) {
	var dummy int = 42
	p := unsafe.Pointer(&dummy)

	sref := StringRefFromPointer(p)
	if !IsStringRef(sref) || IsObjectRef(sref) {
		t.Fatal("StringRefFromPointer produced a value with the wrong tag")
	}
	if AsPointer(sref) != p {
		t.Error("StringRef did not round-trip the original pointer")
	}

	oref := ObjectRefFromPointer(p)
	if !IsObjectRef(oref) || IsStringRef(oref) {
		t.Fatal("ObjectRefFromPointer produced a value with the wrong tag")
	}
	if AsPointer(oref) != p {
		t.Error("ObjectRef did not round-trip the original pointer")
	}
}

func TestIsNullOrUndefined(t *testing.T) {
	if !IsNullOrUndefined(Null()) || !IsNullOrUndefined(Undefined()) {
		t.Error("Null/Undefined should both satisfy IsNullOrUndefined")
	}
	if IsNullOrUndefined(Number(0)) {
		t.Error("0 is not null or undefined")
	}
}

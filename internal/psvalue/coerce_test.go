package psvalue

import (
	"math"
	"testing"
	"unsafe"
)

func TestToBooleanPureTags(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"undefined", Undefined(), false},
		{"null", Null(), false},
		{"true", Bool(true), true},
		{"false", Bool(false), false},
		{"zero", Number(0), false},
		{"negZero", Number(math.Copysign(0, -1)), false},
		{"nan", Number(math.NaN()), false},
		{"one", Number(1), true},
		{"negativeOne", Number(-1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToBoolean(tt.v); got != tt.want {
				t.Errorf("ToBoolean(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestToNumberPureTags(t *testing.T) {
	if !math.IsNaN(ToNumber(Undefined())) {
		t.Error("ToNumber(undefined) should be NaN")
	}
	if ToNumber(Null()) != 0 {
		t.Error("ToNumber(null) should be 0")
	}
	if ToNumber(Bool(true)) != 1 {
		t.Error("ToNumber(true) should be 1")
	}
	if ToNumber(Bool(false)) != 0 {
		t.Error("ToNumber(false) should be 0")
	}
	if ToNumber(Number(42)) != 42 {
		t.Error("ToNumber(number) should round-trip")
	}
}

func TestToStringPureTags(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"undefined", Undefined(), "undefined"},
		{"null", Null(), "null"},
		{"true", Bool(true), "true"},
		{"false", Bool(false), "false"},
		{"nan", Number(math.NaN()), "NaN"},
		{"posInf", Number(math.Inf(1)), "Infinity"},
		{"negInf", Number(math.Inf(-1)), "-Infinity"},
		{"integer", Number(42), "42"},
		{"fraction", Number(3.5), "3.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToString(tt.v); got != tt.want {
				t.Errorf("ToString(%s) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

// TestStringCoercionWithoutAccessorIsSafe documents the fallback behavior
// when no psstring.RegisterStringAccessor call has happened yet in this
// process (this package's own tests never import psstring, so the
// accessor stays unregistered here) — coercions over a StringRef must
// degrade gracefully rather than panic on a nil accessor func.
func TestStringCoercionWithoutAccessorIsSafe(t *testing.T) {
	var dummy int
	sref := StringRefFromPointer(unsafe.Pointer(&dummy))
	if !ToBoolean(sref) {
		t.Error("ToBoolean on a StringRef with no accessor registered should default truthy")
	}
	if !math.IsNaN(ToNumber(sref)) {
		t.Error("ToNumber on a StringRef with no accessor registered should default to NaN")
	}
	if ToString(sref) != "" {
		t.Error("ToString on a StringRef with no accessor registered should default to empty")
	}
}

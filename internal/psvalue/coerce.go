package psvalue

import (
	"math"
	"strconv"
	"unsafe"
)

// StringAccessor lets ToBoolean/ToNumber/ToString inspect a StringRef's
// content without this package importing psstring — which already
// imports psvalue for the Value type itself. psstring's init() installs
// this, the same Register-based cycle break psgc uses for its
// Tracer/Finalizer/SurvivorHook hooks and psobject uses for
// RegisterInternalTracer.
type StringAccessor struct {
	Bytes    func(ptr unsafe.Pointer) []byte
	ToNumber func(ptr unsafe.Pointer) float64
}

var stringAccessor StringAccessor

// RegisterStringAccessor installs the string-inspection callbacks;
// psstring's init() calls this exactly once.
func RegisterStringAccessor(a StringAccessor) { stringAccessor = a }

// ObjectAccessor lets ToNumber/ToString unwrap a boxed primitive object
// without this package importing psobject.
type ObjectAccessor struct {
	UnboxPrimitive func(ptr unsafe.Pointer) (Value, bool)
}

var objectAccessor ObjectAccessor

// RegisterObjectAccessor installs the object-inspection callback;
// psobject's init() calls this exactly once.
func RegisterObjectAccessor(a ObjectAccessor) { objectAccessor = a }

// ToBoolean implements spec.md §4.1's to_boolean: undefined, null, false,
// 0, -0, NaN, and the empty string are falsy; every object (including a
// boxed primitive wrapper, which is a distinct object from the primitive
// it wraps) is truthy.
func ToBoolean(v Value) bool {
	switch {
	case IsUndefined(v), IsNull(v):
		return false
	case IsBoolean(v):
		return AsBool(v)
	case IsNumber(v):
		n := AsNumber(v)
		return n != 0 && !math.IsNaN(n)
	case IsStringRef(v):
		if stringAccessor.Bytes == nil {
			return true
		}
		return len(stringAccessor.Bytes(AsPointer(v))) != 0
	default:
		return true
	}
}

// ToNumber implements spec.md §4.1's to_number: booleans become 1/0,
// undefined becomes NaN, null becomes 0, a string follows the numeric
// grammar documented on psstring.String.ToNumber, and a boxed primitive
// object recursively coerces its wrapped value. Any other object is NaN:
// the core has no generic to_primitive/valueOf algorithm to fall back
// on — that dispatch belongs to the evaluator, out of scope here.
func ToNumber(v Value) float64 {
	switch {
	case IsNumber(v):
		return AsNumber(v)
	case IsUndefined(v):
		return math.NaN()
	case IsNull(v):
		return 0
	case IsBoolean(v):
		if AsBool(v) {
			return 1
		}
		return 0
	case IsStringRef(v):
		if stringAccessor.ToNumber == nil {
			return math.NaN()
		}
		return stringAccessor.ToNumber(AsPointer(v))
	case IsObjectRef(v):
		if objectAccessor.UnboxPrimitive == nil {
			return math.NaN()
		}
		if boxed, ok := objectAccessor.UnboxPrimitive(AsPointer(v)); ok {
			return ToNumber(boxed)
		}
		return math.NaN()
	default:
		return math.NaN()
	}
}

// ToString implements spec.md §4.1's to_string over primitive Values as a
// Go string. Numbers use the language's canonical decimal formatting:
// shortest round-trip, no trailing decimal point on integers, and the
// Infinity/-Infinity/NaN literals. A caller that needs a heap-allocated
// language String Value from this (rather than a Go string for host-side
// use) passes the result to psstring.New/MustNew.
func ToString(v Value) string {
	switch {
	case IsUndefined(v):
		return "undefined"
	case IsNull(v):
		return "null"
	case IsBoolean(v):
		if AsBool(v) {
			return "true"
		}
		return "false"
	case IsNumber(v):
		return formatNumber(AsNumber(v))
	case IsStringRef(v):
		if stringAccessor.Bytes == nil {
			return ""
		}
		return string(stringAccessor.Bytes(AsPointer(v)))
	case IsObjectRef(v):
		if objectAccessor.UnboxPrimitive != nil {
			if boxed, ok := objectAccessor.UnboxPrimitive(AsPointer(v)); ok {
				return ToString(boxed)
			}
		}
		return "[object Object]"
	default:
		return "undefined"
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0" // both +0 and -0
	}
	if a := math.Abs(f); a >= 1e-6 && a < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	if n := len(s); s[n-2] == '0' && (s[n-3] == '-' || s[n-3] == '+') {
		s = s[:n-2] + s[n-1:] // "1.5e-07" -> "1.5e-7"
	}
	return s
}

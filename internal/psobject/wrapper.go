package psobject

import (
	"protoscript/internal/psgc"
	"protoscript/internal/psvalue"
)

// Wrapper facilities: primitive-to-object boxing for Boolean/Number/
// String/Date, via the object's opaque internal slot (spec.md §2, "~5%").
// The boxed primitive is stored as a plain psvalue.Value in Internal().

func init() {
	RegisterInternalTracer(KindBoolean, tracePrimitivePayload)
	RegisterInternalTracer(KindNumber, tracePrimitivePayload)
	RegisterInternalTracer(KindString, tracePrimitivePayload)
	RegisterInternalTracer(KindDate, tracePrimitivePayload)
}

func tracePrimitivePayload(payload interface{}, gc *psgc.GC) {
	if v, ok := payload.(psvalue.Value); ok {
		gc.MarkValue(v)
	}
}

func newBoxed(gc *psgc.GC, prototype *Object, kind Kind, v psvalue.Value) *Object {
	return NewWithKind(gc, prototype, kind, v)
}

// NewBoxedBoolean, NewBoxedNumber and NewBoxedString box a primitive
// Value as an Object whose Kind names which primitive it wraps, the way
// `new Boolean(x)` / `new Number(x)` / `new String(x)` do in the
// language this runtime hosts.
func NewBoxedBoolean(gc *psgc.GC, prototype *Object, v psvalue.Value) *Object {
	return newBoxed(gc, prototype, KindBoolean, v)
}

func NewBoxedNumber(gc *psgc.GC, prototype *Object, v psvalue.Value) *Object {
	return newBoxed(gc, prototype, KindNumber, v)
}

func NewBoxedString(gc *psgc.GC, prototype *Object, v psvalue.Value) *Object {
	return newBoxed(gc, prototype, KindString, v)
}

// NewBoxedDate wraps an epoch-milliseconds Number as a Date object. Date
// arithmetic itself belongs to the stdlib prototype (out of scope here);
// the core only owns the box.
func NewBoxedDate(gc *psgc.GC, prototype *Object, epochMillis float64) *Object {
	return newBoxed(gc, prototype, KindDate, psvalue.Number(epochMillis))
}

// UnboxPrimitive returns the boxed psvalue.Value for a Boolean/Number/
// String/Date object, or (undefined, false) if o isn't one of those
// kinds.
func (o *Object) UnboxPrimitive() (psvalue.Value, bool) {
	switch o.kind {
	case KindBoolean, KindNumber, KindString, KindDate:
		v, ok := o.internal.(psvalue.Value)
		return v, ok
	default:
		return psvalue.Undefined(), false
	}
}

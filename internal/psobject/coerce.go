package psobject

import (
	"unsafe"

	"protoscript/internal/pserrors"
	"protoscript/internal/psgc"
	"protoscript/internal/psvalue"
)

func init() {
	psvalue.RegisterObjectAccessor(psvalue.ObjectAccessor{
		UnboxPrimitive: unboxPrimitiveByPointer,
	})
}

// unboxPrimitiveByPointer lets psvalue.ToNumber/ToString reach
// a boxed Boolean/Number/String object's wrapped primitive without
// psvalue importing this package (see psvalue.RegisterObjectAccessor).
func unboxPrimitiveByPointer(ptr unsafe.Pointer) (psvalue.Value, bool) {
	return (*Object)(ptr).UnboxPrimitive()
}

// WrapperProtos names the boxed-primitive prototypes ToObject needs,
// mirroring the explicit-prototype parameter NewBoxedBoolean/
// NewBoxedNumber/NewBoxedString already take.
type WrapperProtos struct {
	Boolean, Number, String *Object
}

// ToObject implements spec.md §4.1's to_object: undefined and null fail
// with a TypeError (the only coercion failure mode spec.md §4.1
// documents); an ObjectRef coerces to itself; every other primitive is
// boxed via the matching wrapper constructor from internal/psobject's
// wrapper facilities.
func ToObject(gc *psgc.GC, v psvalue.Value, protos WrapperProtos) (*Object, error) {
	switch {
	case psvalue.IsUndefined(v):
		return nil, pserrors.New(pserrors.KindTypeError, "cannot convert undefined to object")
	case psvalue.IsNull(v):
		return nil, pserrors.New(pserrors.KindTypeError, "cannot convert null to object")
	case psvalue.IsObjectRef(v):
		return FromValue(v), nil
	case psvalue.IsBoolean(v):
		return NewBoxedBoolean(gc, protos.Boolean, v), nil
	case psvalue.IsNumber(v):
		return NewBoxedNumber(gc, protos.Number, v), nil
	case psvalue.IsStringRef(v):
		return NewBoxedString(gc, protos.String, v), nil
	default:
		return nil, pserrors.New(pserrors.KindTypeError, "cannot convert value to object")
	}
}

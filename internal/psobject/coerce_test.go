package psobject_test

import (
	"testing"

	"protoscript/internal/pserrors"
	"protoscript/internal/psobject"
	"protoscript/internal/psstring"
	"protoscript/internal/psvalue"
)

func TestToObjectRejectsUndefinedAndNullWithTypeError(t *testing.T) {
	gc := newGC()
	protos := psobject.WrapperProtos{}

	if _, err := psobject.ToObject(gc, psvalue.Undefined(), protos); err == nil {
		t.Fatal("ToObject(undefined) should fail")
	} else if ce, ok := err.(*pserrors.CoreError); !ok || ce.Kind != pserrors.KindTypeError {
		t.Errorf("ToObject(undefined) error = %v, want a TypeError CoreError", err)
	}

	if _, err := psobject.ToObject(gc, psvalue.Null(), protos); err == nil {
		t.Fatal("ToObject(null) should fail")
	} else if ce, ok := err.(*pserrors.CoreError); !ok || ce.Kind != pserrors.KindTypeError {
		t.Errorf("ToObject(null) error = %v, want a TypeError CoreError", err)
	}
}

func TestToObjectBoxesPrimitives(t *testing.T) {
	gc := newGC()
	protos := psobject.WrapperProtos{
		Boolean: psobject.New(gc, nil),
		Number:  psobject.New(gc, nil),
		String:  psobject.New(gc, nil),
	}

	boolObj, err := psobject.ToObject(gc, psvalue.Bool(true), protos)
	if err != nil {
		t.Fatalf("ToObject(true): %v", err)
	}
	if boolObj.Kind() != psobject.KindBoolean || boolObj.Prototype() != protos.Boolean {
		t.Error("ToObject(true) should box as a Boolean object using the given prototype")
	}

	numObj, err := psobject.ToObject(gc, psvalue.Number(7), protos)
	if err != nil {
		t.Fatalf("ToObject(7): %v", err)
	}
	if numObj.Kind() != psobject.KindNumber {
		t.Error("ToObject(number) should box as a Number object")
	}

	s := psstring.MustNew(gc, "x")
	strObj, err := psobject.ToObject(gc, psstring.Ref(s), protos)
	if err != nil {
		t.Fatalf("ToObject(string): %v", err)
	}
	if strObj.Kind() != psobject.KindString {
		t.Error("ToObject(string) should box as a String object")
	}
}

func TestToObjectOnAnObjectReturnsItself(t *testing.T) {
	gc := newGC()
	obj := psobject.New(gc, nil)
	got, err := psobject.ToObject(gc, psobject.Ref(obj), psobject.WrapperProtos{})
	if err != nil {
		t.Fatalf("ToObject(object): %v", err)
	}
	if got != obj {
		t.Error("ToObject on an existing object should return it unchanged")
	}
}

func TestValueCoercionDelegatesThroughBoxedPrimitive(t *testing.T) {
	gc := newGC()
	boxed := psobject.NewBoxedNumber(gc, nil, psvalue.Number(5))
	ref := psobject.Ref(boxed)

	if got := psvalue.ToNumber(ref); got != 5 {
		t.Errorf("ToNumber(boxed Number) = %v, want 5", got)
	}
	if psvalue.ToString(ref) != "5" {
		t.Errorf("ToString(boxed Number) = %q, want %q", psvalue.ToString(ref), "5")
	}

	plain := psobject.New(gc, nil)
	plainRef := psobject.Ref(plain)
	if !psvalue.ToBoolean(plainRef) {
		t.Error("a plain object should be truthy")
	}
	if psvalue.ToString(plainRef) != "[object Object]" {
		t.Errorf("ToString(plain object) = %q, want %q", psvalue.ToString(plainRef), "[object Object]")
	}
}

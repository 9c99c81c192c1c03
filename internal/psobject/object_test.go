package psobject_test

import (
	"fmt"
	"testing"

	"github.com/kr/pretty"

	"protoscript/internal/psgc"
	"protoscript/internal/psobject"
	"protoscript/internal/psstring"
	"protoscript/internal/psvalue"
)

func newGC() *psgc.GC {
	return psgc.New(psgc.Options{MinThreshold: 1 << 20})
}

func name(gc *psgc.GC, t *testing.T, text string) *psstring.String {
	t.Helper()
	s, err := psstring.New(gc, []byte(text))
	if err != nil {
		t.Fatalf("psstring.New(%q): %v", text, err)
	}
	return s
}

func enumNames(o *psobject.Object) []string {
	var out []string
	o.EnumOwn(func(n *psstring.String, v psvalue.Value, attrs psobject.Attr) int {
		out = append(out, n.ToString())
		return 0
	})
	return out
}

func TestInsertionOrderPreservedAcrossRehash(t *testing.T) {
	gc := newGC()
	o := psobject.New(gc, nil)

	// Push past bucketThreshold (8) so the bucket table is created, and
	// past the rehash load factor so it doubles at least once.
	const count = 140
	var want []string
	for i := 0; i < count; i++ {
		n := name(gc, t, fmt.Sprintf("p%03d", i))
		o.Define(n, psvalue.Number(float64(i)), psobject.AttrNone)
		want = append(want, n.ToString())
	}

	got := enumNames(o)
	if len(got) != len(want) {
		t.Fatalf("got %d properties, want %d: %# v", len(got), len(want), pretty.Formatter(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order diverged at index %d: got %q want %q\nfull: %# v", i, got[i], want[i], pretty.Formatter(got))
		}
	}
}

func TestRedefineKeepsInsertionSlot(t *testing.T) {
	gc := newGC()
	o := psobject.New(gc, nil)

	a := name(gc, t, "a")
	b := name(gc, t, "b")
	c := name(gc, t, "c")

	o.Define(a, psvalue.Number(1), psobject.AttrNone)
	o.Define(b, psvalue.Number(2), psobject.AttrNone)
	o.Define(c, psvalue.Number(3), psobject.AttrNone)

	o.Define(b, psvalue.Number(99), psobject.AttrNone)

	got := enumNames(o)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("redefining an existing property must not move its slot: got %v want %v", got, want)
		}
	}
	v, ok := o.GetOwn(b)
	if !ok || psvalue.AsNumber(v) != 99 {
		t.Errorf("redefine did not update the value: got %v", v)
	}
}

func TestDeleteThenRedefineAppendsAtTail(t *testing.T) {
	gc := newGC()
	o := psobject.New(gc, nil)

	a := name(gc, t, "a")
	b := name(gc, t, "b")
	c := name(gc, t, "c")
	o.Define(a, psvalue.Number(1), psobject.AttrNone)
	o.Define(b, psvalue.Number(2), psobject.AttrNone)
	o.Define(c, psvalue.Number(3), psobject.AttrNone)

	ok, deleted := o.Delete(b)
	if !ok || !deleted {
		t.Fatal("expected b to be deletable and deleted")
	}
	// b2 is a distinct occurrence of the name "b" redefined after deletion;
	// it must land at the tail, not reclaim b's old slot.
	b2 := name(gc, t, "b")
	o.Define(b2, psvalue.Number(22), psobject.AttrNone)

	got := enumNames(o)
	want := []string{"a", "c", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestReadOnlyBlocksPut(t *testing.T) {
	gc := newGC()
	o := psobject.New(gc, nil)
	n := name(gc, t, "frozen")
	o.Define(n, psvalue.Number(1), psobject.AttrReadOnly)

	if ok := o.Put(n, psvalue.Number(2)); ok {
		t.Error("Put on a READONLY property should report failure")
	}
	v, _ := o.GetOwn(n)
	if psvalue.AsNumber(v) != 1 {
		t.Error("READONLY property value must not change")
	}
}

func TestDontDeleteBlocksDelete(t *testing.T) {
	gc := newGC()
	o := psobject.New(gc, nil)
	n := name(gc, t, "permanent")
	o.Define(n, psvalue.Number(1), psobject.AttrDontDelete)

	ok, deleted := o.Delete(n)
	if ok || deleted {
		t.Error("Delete on a DONTDELETE property must fail")
	}
	if !o.HasOwn(n) {
		t.Error("DONTDELETE property must still be present")
	}
}

func TestDontEnumSkippedByEnumOwn(t *testing.T) {
	gc := newGC()
	o := psobject.New(gc, nil)
	visible := name(gc, t, "visible")
	hidden := name(gc, t, "hidden")
	o.Define(visible, psvalue.Number(1), psobject.AttrNone)
	o.Define(hidden, psvalue.Number(2), psobject.AttrDontEnum)

	got := enumNames(o)
	if len(got) != 1 || got[0] != "visible" {
		t.Errorf("expected only the visible property, got %v", got)
	}
	// DONTENUM doesn't hide the property from direct lookup.
	if !o.HasOwn(hidden) {
		t.Error("DONTENUM property should still be reachable via HasOwn")
	}
}

func TestPrototypeChainLookup(t *testing.T) {
	gc := newGC()
	grandparent := psobject.New(gc, nil)
	parent := psobject.New(gc, grandparent)
	child := psobject.New(gc, parent)

	inherited := name(gc, t, "inherited")
	grandparent.Define(inherited, psvalue.Number(7), psobject.AttrNone)

	v, found := child.Get(inherited)
	if !found || psvalue.AsNumber(v) != 7 {
		t.Error("Get should walk the full prototype chain")
	}
	if child.HasOwn(inherited) {
		t.Error("HasOwn must not see inherited properties")
	}
}

func TestLookupCacheReflectsMostRecentPut(t *testing.T) {
	gc := newGC()
	o := psobject.New(gc, nil)
	n := name(gc, t, "x")
	o.Define(n, psvalue.Number(1), psobject.AttrNone)

	// Prime the one-slot cache.
	if v, _ := o.GetOwn(n); psvalue.AsNumber(v) != 1 {
		t.Fatal("sanity check failed")
	}

	o.Put(n, psvalue.Number(2))

	v, _ := o.GetOwn(n)
	if psvalue.AsNumber(v) != 2 {
		t.Error("lookup cache must never observe a value older than the most recent put")
	}
}

package psgc_test

import (
	"testing"

	"github.com/kr/pretty"

	"protoscript/internal/psgc"
	"protoscript/internal/psobject"
	"protoscript/internal/psstring"
)

// newGC returns a fresh collector with a tiny minimum threshold so tests
// don't need to allocate megabytes to trigger a collection.
func newGC() *psgc.GC {
	return psgc.New(psgc.Options{MinThreshold: 1})
}

func TestCollectReclaimsUnreachable(t *testing.T) {
	gc := newGC()

	root := psobject.New(gc, nil)
	garbage := psobject.New(gc, nil)
	_ = garbage

	n := gc.RootPush(psgc.RootObject, root)
	defer gc.RootPop(n)

	before := gc.Stats()
	gc.Collect()
	after := gc.Stats()

	if after.LiveBytesLast >= before.HeapBytes {
		t.Fatalf("expected live bytes to shrink after collecting unreachable garbage: %# v", pretty.Formatter(after))
	}
	if after.FreedLast == 0 {
		t.Errorf("expected at least one allocation to be freed, got FreedLast=%d", after.FreedLast)
	}
}

func TestRootPushProtectsFromCollection(t *testing.T) {
	gc := newGC()

	obj := psobject.New(gc, nil)
	n := gc.RootPush(psgc.RootObject, obj)

	gc.Collect()

	if !psgc.IsManaged(obj.GCHeader()) {
		t.Fatal("a root-pushed object must survive collection")
	}

	gc.RootPop(n)
	gc.Collect()

	if psgc.IsManaged(obj.GCHeader()) {
		t.Fatal("after RootPop, an otherwise-unreachable object must be swept")
	}
}

func TestStringIsLeafAndUnreachableIsSwept(t *testing.T) {
	gc := newGC()

	s := psstring.MustNew(gc, "ephemeral")
	if !psgc.IsManaged(s.GCHeader()) {
		t.Fatal("freshly allocated string should be managed")
	}

	gc.Collect()

	if psgc.IsManaged(s.GCHeader()) {
		t.Fatal("an unrooted string should not survive a collection")
	}
}

func TestObjectGraphKeepsPrototypeAlive(t *testing.T) {
	gc := newGC()

	proto := psobject.New(gc, nil)
	child := psobject.New(gc, proto)

	n := gc.RootPush(psgc.RootObject, child)
	defer gc.RootPop(n)

	gc.Collect()

	if !psgc.IsManaged(proto.GCHeader()) {
		t.Fatal("a reachable object's prototype must survive collection via tracing")
	}
}

func TestMarkedBitIsClearBetweenCollections(t *testing.T) {
	gc := newGC()
	obj := psobject.New(gc, nil)
	n := gc.RootPush(psgc.RootObject, obj)
	defer gc.RootPop(n)

	gc.Collect()
	gc.Collect() // a second collection must not find a stale marked bit

	if !psgc.IsManaged(obj.GCHeader()) {
		t.Fatal("rooted object should still be alive after a second collection")
	}
}

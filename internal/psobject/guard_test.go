package psobject

import (
	"testing"

	"protoscript/internal/psgc"
	"protoscript/internal/psstring"
	"protoscript/internal/psvalue"
)

// TestFindOwnGuardDisablesBucketsOnCorruptedChain forces a cyclic bucket
// chain (the kind of corruption the guard in original_source/src/object.c's
// find_prop defends against) and asserts findOwn disables the bucket
// table rather than spinning, then still finds the property via its
// linear-scan fallback over the (uncorrupted) insertion list.
func TestFindOwnGuardDisablesBucketsOnCorruptedChain(t *testing.T) {
	gc := psgc.New(psgc.Options{MinThreshold: 1 << 20})
	o := New(gc, nil)

	n1, err := psstring.New(gc, []byte("a"))
	if err != nil {
		t.Fatalf("psstring.New: %v", err)
	}
	n2, err := psstring.New(gc, []byte("b"))
	if err != nil {
		t.Fatalf("psstring.New: %v", err)
	}
	p1 := &Property{name: n1, value: psvalue.Number(1)}
	p2 := &Property{name: n2, value: psvalue.Number(2)}

	o.propsHead = p1
	p1.next = p2
	o.propsTail = p2
	o.propCount = 2

	o.buckets = make([]*Property, initialBuckets)
	o.bucketCount = initialBuckets
	idx := o.bucketIndex(n2.Hash())
	p1.hashNext = p1 // cycle in n2's bucket that never reaches p2: findOwn's bucket-chain walk must not spin forever
	o.buckets[idx] = p1

	got := o.findOwn(n2)
	if o.buckets != nil {
		t.Error("a corrupted bucket chain should disable buckets once the scan-count guard trips")
	}
	if got == nil || !psstring.Equal(got.name, n2) {
		t.Error("findOwn should still locate the property via its linear-scan fallback")
	}
}

// TestRehashGuardDisablesBucketsOnCorruptedList builds a genuinely long,
// finite insertion list whose real length overruns what propCount
// claims — the same corruption signal original_source/src/object.c's
// ps_object_rehash guards against (real chain length vs. prop_count+1024)
// — and asserts rehash disables the bucket table instead of building one
// off a list it can no longer trust.
func TestRehashGuardDisablesBucketsOnCorruptedList(t *testing.T) {
	gc := psgc.New(psgc.Options{MinThreshold: 1 << 20})
	o := New(gc, nil)

	const realLength = 1100 // overruns propCount(5)+1024 below
	var head, tail *Property
	for i := 0; i < realLength; i++ {
		n, err := psstring.New(gc, []byte{byte(i & 0x7f), byte(i >> 7)})
		if err != nil {
			t.Fatalf("psstring.New: %v", err)
		}
		p := &Property{name: n, value: psvalue.Number(float64(i))}
		if head == nil {
			head = p
			tail = p
		} else {
			tail.next = p
			tail = p
		}
	}
	o.propsHead = head
	o.propsTail = tail
	o.propCount = 5 // understated: the guard's limit becomes 5+1024 < realLength

	o.rehash(initialBuckets)

	if o.buckets != nil || o.bucketCount != 0 {
		t.Error("rehash should disable the bucket table once the scan-count guard trips")
	}
}

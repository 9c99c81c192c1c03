// Package psobject implements the prototype-based object model described
// in spec.md §3/§4.3, grounded on original_source/src/object.c. Property
// storage is a singly linked insertion-ordered list accelerated by a
// lazily created hash bucket table and a one-slot lookup cache, mirroring
// the C original's PSObject/PSProperty layout.
//
// Unlike the C original — which inserts new properties at the head of the
// list and notes the resulting order as "implementation-defined" — this
// package appends at the tail. spec.md §3 and §8 make insertion-order
// enumeration a hard invariant (including across rehashes and
// redefinition), so the list is built to satisfy that directly rather
// than reproduce the original's weaker guarantee.
package psobject

import (
	"unsafe"

	"protoscript/internal/psgc"
	"protoscript/internal/psstring"
	"protoscript/internal/psvalue"
)

func init() {
	psgc.RegisterTracer(psgc.TypeObject, traceObject)
	psgc.RegisterFinalizer(psgc.TypeObject, finalizeObject)
}

// Attr flags a property the way spec.md §3 describes.
type Attr uint8

const (
	AttrNone       Attr = 0
	AttrDontEnum   Attr = 1 << 0
	AttrReadOnly   Attr = 1 << 1
	AttrDontDelete Attr = 1 << 2
)

// Kind discriminates an Object's internal payload; the payload's Go type
// is wholly determined by Kind (spec.md §3).
type Kind uint8

const (
	KindPlain Kind = iota
	KindFunction
	KindBoolean
	KindNumber
	KindString
	KindDate
	KindRegexp
	KindBuffer
	KindImage
)

// Property is one entry in an object's insertion-ordered property list.
type Property struct {
	name  *psstring.String
	value psvalue.Value
	attrs Attr

	next     *Property // insertion-order list
	hashNext *Property // bucket chain
}

func (p *Property) Name() *psstring.String { return p.name }
func (p *Property) Value() psvalue.Value   { return p.value }
func (p *Property) Attrs() Attr            { return p.attrs }

const (
	bucketThreshold  = 8  // create the bucket table once prop_count exceeds this
	initialBuckets   = 64 // first bucket table size, per object.c
	rehashLoadFactor = 2  // rehash once prop_count > bucket_count * rehashLoadFactor
)

// Object is a GC-managed, prototype-linked property bag.
type Object struct {
	psgc.Header

	prototype *Object

	propsHead *Property
	propsTail *Property
	propCount int

	buckets     []*Property
	bucketCount int

	cacheName *psstring.String
	cacheProp *Property

	kind     Kind
	internal interface{}
}

func (o *Object) GCHeader() *psgc.Header { return &o.Header }

func traceObject(h *psgc.Header, gc *psgc.GC) {
	o := (*Object)(unsafe.Pointer(h))
	if o.prototype != nil {
		gc.MarkHolder(o.prototype)
	}
	for p := o.propsHead; p != nil; p = p.next {
		gc.MarkValue(psstring.Ref(p.name))
		gc.MarkValue(p.value)
	}
	if tracer, ok := internalTracers[o.kind]; ok {
		tracer(o.internal, gc)
	}
}

func finalizeObject(h *psgc.Header) {
	o := (*Object)(unsafe.Pointer(h))
	o.propsHead = nil
	o.propsTail = nil
	o.buckets = nil
	o.cacheProp = nil
	o.cacheName = nil
	o.internal = nil
}

// InternalTracer lets a kind-specific payload (function, boxed primitive,
// regexp source) register how to mark its own GC references, the way
// psfunction registers for KindFunction.
type InternalTracer func(payload interface{}, gc *psgc.GC)

var internalTracers = make(map[Kind]InternalTracer, 4)

// RegisterInternalTracer installs the trace function for objects of a
// given Kind's internal payload.
func RegisterInternalTracer(k Kind, fn InternalTracer) {
	internalTracers[k] = fn
}

// New allocates a plain object with the given prototype (nil for none).
func New(gc *psgc.GC, prototype *Object) *Object {
	o := &Object{prototype: prototype, kind: KindPlain}
	gc.Alloc(&o.Header, psgc.TypeObject, unsafe.Sizeof(*o))
	return o
}

// NewWithKind allocates an object of a non-plain kind carrying an opaque
// internal payload (e.g. a *psfunction.Function for KindFunction).
func NewWithKind(gc *psgc.GC, prototype *Object, kind Kind, internal interface{}) *Object {
	o := New(gc, prototype)
	o.kind = kind
	o.internal = internal
	return o
}

func (o *Object) Prototype() *Object  { return o.prototype }
func (o *Object) Kind() Kind          { return o.kind }
func (o *Object) Internal() interface{} { return o.internal }
func (o *Object) PropCount() int     { return o.propCount }

// SetPrototype assigns o's prototype. Callers must reject cycles before
// calling this (spec.md §4.3/§9): prototype chains are a DAG by contract,
// not something the object model itself enforces at runtime cost on
// every assignment.
func (o *Object) SetPrototype(p *Object) {
	o.prototype = p
}

func (o *Object) bucketIndex(hash uint32) int {
	return int(hash) & (o.bucketCount - 1)
}

// rehashGuardLimit bounds how many property-list nodes rehash/findOwn
// will walk before assuming the list or a bucket chain is corrupted
// (cyclic or otherwise unterminated), mirroring ps_object_rehash/
// find_prop's guard in original_source/src/object.c.
func rehashGuardLimit(propCount int) int {
	if propCount == 0 {
		return 65536
	}
	return propCount + 1024
}

// rehash rebuilds the bucket table at newCount entries. If walking the
// insertion list overruns the guard — the failure mode spec.md §4.3
// requires tolerating — the bucket table is disabled rather than risking
// an infinite loop or a corrupted table; the insertion list itself is
// never touched, so callers fall back to linear scan (findOwn) without
// losing any property.
func (o *Object) rehash(newCount int) {
	next := make([]*Property, newCount)
	guard := 0
	limit := rehashGuardLimit(o.propCount)
	for p := o.propsHead; p != nil; p = p.next {
		if guard > limit {
			o.buckets = nil
			o.bucketCount = 0
			return
		}
		guard++
		idx := int(p.name.Hash()) & (newCount - 1)
		p.hashNext = next[idx]
		next[idx] = p
	}
	o.buckets = next
	o.bucketCount = newCount
}

func (o *Object) ensureBuckets() {
	if o.buckets != nil {
		return
	}
	o.rehash(initialBuckets)
}

// findOwn locates a property by name on o alone (no prototype walk), in
// the order: one-slot cache, then buckets (if present), then linear
// scan, matching find_prop in object.c. A bucket chain that overruns the
// scan-count guard is assumed corrupted (e.g. an accidental cycle) and
// disabled on the spot, falling back to a linear scan over the
// (unaffected) insertion list instead of spinning or corrupting it —
// the "rehash failures fall back to linear scan without corrupting the
// insertion list" failure mode spec.md §4.3 requires.
func (o *Object) findOwn(name *psstring.String) *Property {
	if o.cacheProp != nil && o.cacheName != nil && psstring.Equal(o.cacheName, name) {
		return o.cacheProp
	}
	if o.buckets != nil {
		idx := o.bucketIndex(name.Hash())
		guard := 0
		limit := rehashGuardLimit(o.propCount)
		for p := o.buckets[idx]; p != nil; p = p.hashNext {
			if guard > limit {
				o.buckets = nil
				o.bucketCount = 0
				break
			}
			guard++
			if psstring.Equal(p.name, name) {
				o.cacheName = p.name
				o.cacheProp = p
				return p
			}
		}
		if o.buckets != nil {
			return nil
		}
		// buckets were just disabled by the guard above: fall through to
		// the linear scan below instead of reporting a false miss.
	}
	for p := o.propsHead; p != nil; p = p.next {
		if psstring.Equal(p.name, name) {
			o.cacheName = p.name
			o.cacheProp = p
			return p
		}
	}
	return nil
}

// HasOwn reports whether o itself (not its prototype chain) has name.
func (o *Object) HasOwn(name *psstring.String) bool {
	return o.findOwn(name) != nil
}

// GetOwn reads a property from o alone.
func (o *Object) GetOwn(name *psstring.String) (v psvalue.Value, found bool) {
	if p := o.findOwn(name); p != nil {
		return p.value, true
	}
	return psvalue.Undefined(), false
}

// Get walks the prototype chain starting at o, applying the own-property
// lookup at each step, and returns the nearest match (spec.md §4.3).
func (o *Object) Get(name *psstring.String) (v psvalue.Value, found bool) {
	for cur := o; cur != nil; cur = cur.prototype {
		if p := cur.findOwn(name); p != nil {
			return p.value, true
		}
	}
	return psvalue.Undefined(), false
}

// Has is Get without the value.
func (o *Object) Has(name *psstring.String) bool {
	_, found := o.Get(name)
	return found
}

func (o *Object) appendProperty(p *Property) {
	if o.propsTail == nil {
		o.propsHead = p
		o.propsTail = p
	} else {
		o.propsTail.next = p
		o.propsTail = p
	}
	o.propCount++

	if o.buckets == nil && o.propCount > bucketThreshold {
		o.ensureBuckets()
		// ensureBuckets rehashes the existing list; still need to index
		// the newly appended property if it wasn't part of that rehash.
	}
	if o.buckets != nil {
		idx := o.bucketIndex(p.name.Hash())
		// Avoid double-linking p if ensureBuckets already rehashed it in.
		already := false
		for bp := o.buckets[idx]; bp != nil; bp = bp.hashNext {
			if bp == p {
				already = true
				break
			}
		}
		if !already {
			p.hashNext = o.buckets[idx]
			o.buckets[idx] = p
		}
		if o.propCount > o.bucketCount*rehashLoadFactor {
			o.rehash(o.bucketCount * 2)
		}
	}
	o.cacheName = p.name
	o.cacheProp = p
}

// Define creates or replaces a property. Redefining an existing
// READONLY property fails without mutation; otherwise the insertion slot
// is preserved (the existing Property node is mutated in place) and the
// new value/attrs are set.
func (o *Object) Define(name *psstring.String, value psvalue.Value, attrs Attr) bool {
	if p := o.findOwn(name); p != nil {
		if p.attrs&AttrReadOnly != 0 {
			return false
		}
		p.value = value
		p.attrs = attrs
		o.cacheName = p.name
		o.cacheProp = p
		return true
	}

	p := &Property{name: name, value: value, attrs: attrs}
	o.appendProperty(p)
	return true
}

// Put updates an existing property honoring READONLY; if the property
// does not exist it behaves like Define(name, value, AttrNone).
func (o *Object) Put(name *psstring.String, value psvalue.Value) bool {
	if p := o.findOwn(name); p != nil {
		if p.attrs&AttrReadOnly != 0 {
			return false
		}
		p.value = value
		o.cacheName = p.name
		o.cacheProp = p
		return true
	}
	return o.Define(name, value, AttrNone)
}

// Delete honors DONTDELETE (returns false, *deleted=false). Deleting a
// non-existent property succeeds with *deleted=false. Removing an
// existing property clears the lookup cache if it pointed at it.
func (o *Object) Delete(name *psstring.String) (ok bool, deleted bool) {
	var prev *Property
	for p := o.propsHead; p != nil; prev, p = p, p.next {
		if !psstring.Equal(p.name, name) {
			continue
		}
		if p.attrs&AttrDontDelete != 0 {
			return false, false
		}

		if prev != nil {
			prev.next = p.next
		} else {
			o.propsHead = p.next
		}
		if o.propsTail == p {
			o.propsTail = prev
		}

		if o.buckets != nil {
			idx := o.bucketIndex(name.Hash())
			var hprev *Property
			for hp := o.buckets[idx]; hp != nil; hprev, hp = hp, hp.hashNext {
				if hp == p {
					if hprev != nil {
						hprev.hashNext = hp.hashNext
					} else {
						o.buckets[idx] = hp.hashNext
					}
					break
				}
			}
		}
		if o.propCount > 0 {
			o.propCount--
		}
		if o.cacheProp == p {
			o.cacheProp = nil
			o.cacheName = nil
		}
		return true, true
	}
	return true, false
}

// EnumOwn walks the insertion list, skipping DONTENUM properties, calling
// cb for each. A non-zero cb return aborts iteration and is returned to
// the caller.
func (o *Object) EnumOwn(cb func(name *psstring.String, value psvalue.Value, attrs Attr) int) int {
	for p := o.propsHead; p != nil; p = p.next {
		if p.attrs&AttrDontEnum != 0 {
			continue
		}
		if rc := cb(p.name, p.value, p.attrs); rc != 0 {
			return rc
		}
	}
	return 0
}

// Ref boxes o as a psvalue.Value ObjectRef.
func Ref(o *Object) psvalue.Value {
	return psvalue.ObjectRefFromPointer(unsafe.Pointer(o))
}

// FromValue unboxes an ObjectRef Value back to its Object, or nil if v is
// not an ObjectRef.
func FromValue(v psvalue.Value) *Object {
	if !psvalue.IsObjectRef(v) {
		return nil
	}
	return (*Object)(psvalue.AsPointer(v))
}

// Package psgc implements the tracing mark-and-sweep collector shared by
// every GC-managed type in the core runtime (psobject.Object, psstring.String,
// psenv.Env, psfunction.Function). It is grounded on original_source/src/gc.c
// and spec.md §4.6: every allocation carries a fixed header in a singly
// linked heap list, mark walks an explicit root set plus a polymorphic
// trace dispatch, and sweep frees anything left unmarked.
//
// Because Go cannot place a C-style header immediately before an
// allocation, every managed type embeds Header as its first field instead
// (mirroring how internal/vmregister.Object is embedded in StringObj,
// ArrayObj, etc. in the teacher repo) and registers a Tracer for its Type
// in an init() function — the idiomatic-Go expression of gc.c's
// switch-on-type mark dispatch, in the same spirit as sql.Register or
// image.RegisterFormat.
package psgc

import (
	"fmt"

	"protoscript/internal/psvalue"
)

// Magic validates that a pointer really is a psgc-managed header before it
// is dereferenced as one; it guards against non-GC values (host-provided
// strings, AST nodes) being mistaken for managed allocations.
const Magic uint32 = 0x50534743 // "PSGC"

// Type tags every managed allocation kind.
type Type uint8

const (
	TypeObject Type = iota + 1
	TypeString
	TypeEnv
	TypeFunction
)

func (t Type) String() string {
	switch t {
	case TypeObject:
		return "Object"
	case TypeString:
		return "String"
	case TypeEnv:
		return "Env"
	case TypeFunction:
		return "Function"
	default:
		return "Unknown"
	}
}

// Header precedes every GC-managed allocation (embedded as the struct's
// first field). Between collections Marked is always false.
type Header struct {
	Magic  uint32
	Marked bool
	Type   Type
	Size   uintptr
	Next   *Header
}

// IsManaged reports whether h looks like a live, correctly tagged header.
// Used defensively when a caller isn't sure whether a pointer originated
// from the GC heap or from host-provided memory.
func IsManaged(h *Header) bool {
	return h != nil && h.Magic == Magic
}

// Tracer walks every Value/pointer a managed allocation of a given Type
// holds, calling gc.Mark on each. Concrete packages register one Tracer
// per Type they own, in an init() function, rather than psgc importing
// the concrete types directly — this keeps psobject/psstring/psenv/
// psfunction free to depend on psgc without psgc depending back on them.
type Tracer func(h *Header, gc *GC)

var tracers = make(map[Type]Tracer, 4)

// RegisterTracer installs the trace function for a Type. Panics on a
// duplicate registration, which would indicate a programming error, not a
// runtime condition callers need to recover from.
func RegisterTracer(t Type, fn Tracer) {
	if _, exists := tracers[t]; exists {
		panic(fmt.Sprintf("psgc: tracer already registered for %s", t))
	}
	tracers[t] = fn
}

// RootType mirrors Type but for entries on the explicit root stack; kept
// distinct from Type because a root can reference a bare Value (which may
// be a non-pointer payload) rather than only a managed header pointer.
type RootType uint8

const (
	RootValue RootType = iota + 1
	RootObject
	RootString
	RootEnv
	RootFunction
)

// Root is one pinned entry on the explicit root stack.
type Root struct {
	Type RootType
	Ptr  interface{}
}

// Stats is a point-in-time snapshot of collector counters, exposed for
// diagnostics (see cmd/protoscript and internal/psvm).
type Stats struct {
	HeapBytes     uint64
	LiveBytesLast uint64
	BytesSinceGC  uint64
	Threshold     uint64
	Collections   int
	FreedLast     int
}

// GC owns the heap list, the adaptive threshold, and the explicit root
// stack. It is single-threaded and non-reentrant: InCollect guards against
// a collection triggering itself through an allocation made by a
// finalizer or tracer.
type GC struct {
	head *Header

	heapBytes     uint64
	liveBytesLast uint64
	bytesSinceGC  uint64

	threshold     uint64
	minThreshold  uint64
	growthFactor  float64

	collections int
	freedLast   int
	inCollect   bool

	roots []Root

	// markStack holds headers pending trace during Mark, keeping the
	// collector iterative instead of recursive so a long prototype chain
	// or deep AST can't blow the Go call stack.
	markStack []*Header

	// externalRoots lets VM-level collaborators (the evaluator's current
	// scope, the AST, the event queue) supply roots without the GC
	// depending on their types; see AddRootSource.
	externalRoots []RootSource
}

// RootSource lets a collaborator (VM, event queue, evaluator) contribute
// additional roots at mark time without psgc importing their types.
type RootSource interface {
	GCRoots() []Root
}

// Options configure a new GC; all fields are optional.
type Options struct {
	MinThreshold uint64
	GrowthFactor float64
}

// New creates a collector with adaptive-threshold defaults matching
// gc.c: a modest initial threshold that grows with live-set size so
// steady-state programs don't collect on every allocation.
func New(opts Options) *GC {
	min := opts.MinThreshold
	if min == 0 {
		min = 1 << 20 // 1 MiB
	}
	growth := opts.GrowthFactor
	if growth == 0 {
		growth = 2.0
	}
	return &GC{
		threshold:    min,
		minThreshold: min,
		growthFactor: growth,
	}
}

// AddRootSource registers a VM-level collaborator whose GCRoots are
// consulted on every Mark.
func (gc *GC) AddRootSource(src RootSource) {
	gc.externalRoots = append(gc.externalRoots, src)
}

// Alloc links a freshly constructed header into the heap list and charges
// its size against the bytes-since-GC counter. Callers construct the
// concrete struct (with Header as its first field) themselves and pass a
// pointer to the embedded Header; this mirrors ps_gc_alloc_vm, which
// returns raw memory for the caller to initialize.
func (gc *GC) Alloc(h *Header, typ Type, size uintptr) {
	h.Magic = Magic
	h.Marked = false
	h.Type = typ
	h.Size = size
	h.Next = gc.head
	gc.head = h

	gc.heapBytes += uint64(size)
	gc.bytesSinceGC += uint64(size)
}

// ShouldCollect reports whether bytes allocated since the last collection
// have crossed the adaptive threshold. Allocation never collects
// synchronously; callers check this at a safe point.
func (gc *GC) ShouldCollect() bool {
	return gc.bytesSinceGC >= gc.threshold
}

// SafePoint runs a collection if ShouldCollect is true and no collection
// is already running. The evaluator is expected to call this at backward
// branches and call-return boundaries (spec.md §5).
func (gc *GC) SafePoint() {
	if gc.inCollect {
		return
	}
	if gc.ShouldCollect() {
		gc.Collect()
	}
}

// Collect runs a full mark-and-sweep cycle to completion. A no-op if a
// collection is already in progress (non-reentrant, per spec.md §4.6).
func (gc *GC) Collect() {
	if gc.inCollect {
		return
	}
	gc.inCollect = true
	defer func() { gc.inCollect = false }()

	gc.mark()
	gc.sweep()

	gc.collections++
	gc.bytesSinceGC = 0
	gc.threshold = gc.minThreshold
	if grown := uint64(float64(gc.liveBytesLast) * gc.growthFactor); grown > gc.threshold {
		gc.threshold = grown
	}
}

func (gc *GC) mark() {
	gc.markStack = gc.markStack[:0]

	for _, r := range gc.roots {
		gc.markRoot(r)
	}
	for _, src := range gc.externalRoots {
		for _, r := range src.GCRoots() {
			gc.markRoot(r)
		}
	}

	for len(gc.markStack) > 0 {
		n := len(gc.markStack) - 1
		h := gc.markStack[n]
		gc.markStack = gc.markStack[:n]

		tracer, ok := tracers[h.Type]
		if !ok {
			continue
		}
		tracer(h, gc)
	}
}

func (gc *GC) markRoot(r Root) {
	switch v := r.Ptr.(type) {
	case *Header:
		gc.Mark(v)
	case HeaderHolder:
		gc.Mark(v.GCHeader())
	case psvalue.Value:
		gc.MarkValue(v)
	default:
		// RootValue entries may box a non-pointer payload (number,
		// boolean, undefined); nothing to mark in that case.
	}
}

// MarkValue marks the managed allocation (if any) referenced by a Value.
// Non-reference Values (number, boolean, undefined, null) are no-ops.
// Every managed struct embeds Header as its first field, so the Header
// behind a StringRef/ObjectRef can be recovered directly from the boxed
// pointer without psgc needing to know the concrete psstring/psobject type.
func (gc *GC) MarkValue(v psvalue.Value) {
	if !psvalue.IsStringRef(v) && !psvalue.IsObjectRef(v) {
		return
	}
	gc.Mark((*Header)(psvalue.AsPointer(v)))
}

// HeaderHolder is implemented by every managed type so generic code (root
// marking, sweep finalization) can reach the embedded Header without
// psgc importing the concrete type.
type HeaderHolder interface {
	GCHeader() *Header
}

// Mark marks h live and, on first visit, pushes it onto the trace
// worklist. Safe to call with a nil or unmanaged header.
func (gc *GC) Mark(h *Header) {
	if h == nil || !IsManaged(h) || h.Marked {
		return
	}
	h.Marked = true
	gc.markStack = append(gc.markStack, h)
}

// MarkHolder marks the Header embedded in any managed type implementing
// HeaderHolder — a convenience for tracers walking typed struct fields
// (e.g. an Env's parent *Env) rather than raw Values.
func (gc *GC) MarkHolder(h HeaderHolder) {
	if h == nil {
		return
	}
	gc.Mark(h.GCHeader())
}

// Finalizer releases any non-GC-managed memory owned by a header (the
// property list backing array, the string's byte buffer, and so on)
// before the header itself is freed. Registered per Type alongside the
// Tracer.
type Finalizer func(h *Header)

var finalizers = make(map[Type]Finalizer, 4)

// RegisterFinalizer installs the finalizer for a Type.
func RegisterFinalizer(t Type, fn Finalizer) {
	if _, exists := finalizers[t]; exists {
		panic(fmt.Sprintf("psgc: finalizer already registered for %s", t))
	}
	finalizers[t] = fn
}

// SurvivorHook runs once per collection against every header of a given
// Type that survives sweep. psfunction uses this to age out
// specialization tiers: spec.md §4.5/§9 guarantee that discarding a
// tier's cached code is always semantically safe, so the collector is
// free to prompt a function to drop stale tiers on any cycle it likes.
type SurvivorHook func(h *Header)

var survivorHooks = make(map[Type]SurvivorHook, 4)

// RegisterSurvivorHook installs the per-survivor hook for a Type.
func RegisterSurvivorHook(t Type, fn SurvivorHook) {
	survivorHooks[t] = fn
}

func (gc *GC) sweep() {
	var (
		head      *Header
		tail      *Header
		liveBytes uint64
		freed     int
	)

	for h := gc.head; h != nil; {
		next := h.Next
		if h.Marked {
			h.Marked = false
			h.Next = nil
			if head == nil {
				head = h
				tail = h
			} else {
				tail.Next = h
				tail = h
			}
			liveBytes += uint64(h.Size)
			if hook, ok := survivorHooks[h.Type]; ok {
				hook(h)
			}
		} else {
			if fn, ok := finalizers[h.Type]; ok {
				fn(h)
			}
			h.Magic = 0 // a freed header no longer reads as managed
			gc.heapBytes -= uint64(h.Size)
			freed++
		}
		h = next
	}

	gc.head = head
	gc.liveBytesLast = liveBytes
	gc.freedLast = freed
}

// RootPush pins ptr on the explicit LIFO root stack across a sequence of
// calls that may allocate, and returns the stack's new depth. RootPop
// takes a count of entries to remove, not a depth.
func (gc *GC) RootPush(t RootType, ptr interface{}) int {
	gc.roots = append(gc.roots, Root{Type: t, Ptr: ptr})
	return len(gc.roots)
}

// RootPop discards the top n entries of the root stack. Popping fewer
// than were pushed leaves stale roots alive until the next matching pop —
// a caller bug, not a GC failure.
func (gc *GC) RootPop(n int) {
	if n <= 0 {
		return
	}
	if n > len(gc.roots) {
		n = len(gc.roots)
	}
	gc.roots = gc.roots[:len(gc.roots)-n]
}

// Destroy finalizes and frees every remaining allocation, then releases
// the root stack. Called once, at VM teardown.
func (gc *GC) Destroy() {
	for h := gc.head; h != nil; {
		next := h.Next
		if fn, ok := finalizers[h.Type]; ok {
			fn(h)
		}
		h = next
	}
	gc.head = nil
	gc.heapBytes = 0
	gc.roots = nil
}

// Stats returns a snapshot of the collector's counters.
func (gc *GC) Stats() Stats {
	return Stats{
		HeapBytes:     gc.heapBytes,
		LiveBytesLast: gc.liveBytesLast,
		BytesSinceGC:  gc.bytesSinceGC,
		Threshold:     gc.threshold,
		Collections:   gc.collections,
		FreedLast:     gc.freedLast,
	}
}

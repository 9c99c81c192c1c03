// Package psfunction implements the unified native/script function record
// and the optional per-function specialization state described in
// spec.md §3/§4.5, grounded on original_source/include/ps_function.h
// and src/function.c.
package psfunction

import (
	"unsafe"

	"protoscript/internal/psast"
	"protoscript/internal/psenv"
	"protoscript/internal/psgc"
	"protoscript/internal/psobject"
	"protoscript/internal/psstring"
	"protoscript/internal/psvalue"
)

func init() {
	psgc.RegisterTracer(psgc.TypeFunction, traceFunction)
	psgc.RegisterFinalizer(psgc.TypeFunction, finalizeFunction)
	psgc.RegisterSurvivorHook(psgc.TypeFunction, ageTiersOnSurvive)
	psobject.RegisterInternalTracer(psobject.KindFunction, traceFunctionPayload)
}

// Host is the narrow slice of VM behavior a native function needs — just
// enough to raise a language-level error, per spec.md §6/§7. Kept here
// (rather than importing psvm) so psfunction has no dependency on the VM
// package.
type Host interface {
	Throw(errorValue psvalue.Value)
}

// NativeFunc is the native calling convention: (vm, this, argc via
// len(argv), argv).
type NativeFunc func(host Host, this psvalue.Value, argv []psvalue.Value) psvalue.Value

// TierState is the lifecycle of one specialization tier's cached code.
type TierState uint8

const (
	TierEmpty TierState = iota
	TierCompiled
	TierDiscarded
)

// GuardedTier is a lowered, narrower-semantics cached execution form of a
// function, guarded on the runtime types of specific local slots
// (spec.md §4.5/GLOSSARY). The lowered code itself ("Code") is opaque:
// the bytecode tier that would interpret it is out of scope for this
// core (spec.md §1); this package only owns the cache slot and the
// guard/hot-count bookkeeping around it.
type GuardedTier struct {
	State      TierState
	HotCount   uint32
	GuardSlots []int    // slot indices whose runtime type must match GuardTypes
	GuardTypes []string // psvalue.TypeName snapshot taken when the tier was built
	Code       interface{}
}

// GuardsPass reports whether the current runtime type of every guarded
// slot still matches what the tier was built against. A mismatch means
// the tier must be skipped for this call (spec.md §4.5); repeated
// mismatches are expected to lead the caller to Discard the tier.
func (t *GuardedTier) GuardsPass(slotValues []psvalue.Value) bool {
	if t.State != TierCompiled {
		return false
	}
	for i, slot := range t.GuardSlots {
		if slot < 0 || slot >= len(slotValues) {
			return false
		}
		if psvalue.TypeName(slotValues[slot]) != t.GuardTypes[i] {
			return false
		}
	}
	return true
}

// Compile installs a guarded tier's guard set and cached code, rejecting
// a guard list wider than the slot budget (PS_SPECIALIZATION_GUARD_MAX).
func (t *GuardedTier) Compile(slots []int, types []string, code interface{}) bool {
	if len(slots) > specializationMaxGuards || len(slots) != len(types) {
		return false
	}
	t.GuardSlots = slots
	t.GuardTypes = types
	t.Code = code
	t.State = TierCompiled
	t.HotCount = 0
	return true
}

// Discard drops the tier's cached code. Always semantically safe: every
// tier is recomputable from the AST and observed call history
// (spec.md §4.5's invariant).
func (t *GuardedTier) Discard() {
	t.State = TierDiscarded
	t.Code = nil
	t.GuardSlots = nil
	t.GuardTypes = nil
}

// UnboxedTier additionally records which slots the lowered code assigns
// to (spec.md §4.5's write bitmap): slots outside this set are fetched
// from the boxed environment rather than the unboxed register file.
type UnboxedTier struct {
	GuardedTier
	WriteSlots map[int]bool
}

// Writes reports whether the unboxed tier assigns to slot.
func (t *UnboxedTier) Writes(slot int) bool {
	return t.WriteSlots != nil && t.WriteSlots[slot]
}

// specializationMaxGuards bounds how many slots a single tier can guard,
// mirroring PS_SPECIALIZATION_GUARD_MAX in ps_function.h.
const specializationMaxGuards = 8

// hotCallThreshold is the call count at which a function becomes
// eligible for the next specialization tier.
const hotCallThreshold = 1000

// callCount tracks invocations for tiering decisions, separate from the
// per-tier HotCount (which the evaluator raises whenever it actually
// takes that tier's fast path; ageTiersOnSurvive treats zero as cold).
type callCount struct{ n uint32 }

func (c *callCount) observe() bool {
	c.n++
	return c.n >= hotCallThreshold
}

// Function is the unified record for native and script functions.
type Function struct {
	psgc.Header

	isNative bool
	native   NativeFunc

	body          psast.Node
	params        []psast.Node
	paramDefaults []psast.Node
	paramNames    []*psstring.String
	name          *psstring.String
	paramCount    int

	closureEnv *psenv.Env

	// fastMathExpr/numericOnlyOps are optional optimization hints the
	// evaluator may attach after analyzing a pure-numeric function body;
	// the core never interprets them, only keeps them alive and lets the
	// GC discard them like any other cache.
	fastMathExpr   psast.Node
	numericOnlyOps interface{}

	stmtCacheState TierState
	stmtCache      interface{}

	specTier    GuardedTier
	unboxedTier UnboxedTier
	calls       callCount
}

// RecordCall counts one invocation and reports whether the function has
// just crossed the hot-call threshold, signaling the evaluator that it
// may be worth building a specialization tier on the next call.
func (f *Function) RecordCall() bool {
	return f.calls.observe()
}

func (f *Function) GCHeader() *psgc.Header { return &f.Header }

func traceFunction(h *psgc.Header, gc *psgc.GC) {
	f := (*Function)(unsafe.Pointer(h))
	if f.closureEnv != nil {
		gc.MarkHolder(f.closureEnv)
	}
	if f.name != nil {
		gc.MarkValue(psstring.Ref(f.name))
	}
	for _, n := range f.paramNames {
		gc.MarkValue(psstring.Ref(n))
	}
	psast.Mark(f.body, gc.MarkValue)
	for _, p := range f.params {
		psast.Mark(p, gc.MarkValue)
	}
	for _, d := range f.paramDefaults {
		psast.Mark(d, gc.MarkValue)
	}
	psast.Mark(f.fastMathExpr, gc.MarkValue)
}

// traceFunctionPayload lets an Object of KindFunction (the wrapper that
// exposes a Function to the object model, per spec.md §4.5's "a function
// is wrapped in an Object whose kind is FUNCTION") delegate tracing to
// traceFunction via the Object's generic internal-payload tracer hook.
func traceFunctionPayload(payload interface{}, gc *psgc.GC) {
	fn, ok := payload.(*Function)
	if !ok || fn == nil {
		return
	}
	gc.MarkHolder(fn)
}

func finalizeFunction(h *psgc.Header) {
	f := (*Function)(unsafe.Pointer(h))
	f.params = nil
	f.paramDefaults = nil
	f.paramNames = nil
	f.body = nil
	f.fastMathExpr = nil
	f.numericOnlyOps = nil
	f.stmtCache = nil
	f.specTier.Discard()
	f.unboxedTier.Discard()
}

// ageTiersOnSurvive is the psgc.SurvivorHook for functions: every time a
// function survives a collection without its hot tier being exercised
// (HotCount still zero; the caller raises it on use), the specialization and unboxed
// tiers are discarded. This makes the "GC may blindly discard any tier's
// cached code at any safe point" invariant of spec.md §4.5/§9 concrete
// rather than merely aspirational.
func ageTiersOnSurvive(h *psgc.Header) {
	f := (*Function)(unsafe.Pointer(h))
	if f.specTier.State == TierCompiled && f.specTier.HotCount == 0 {
		f.specTier.Discard()
	}
	if f.unboxedTier.State == TierCompiled && f.unboxedTier.HotCount == 0 {
		f.unboxedTier.Discard()
	}
}

// NewNative allocates a native function record.
func NewNative(gc *psgc.GC, name *psstring.String, fn NativeFunc) *Function {
	f := &Function{isNative: true, native: fn, name: name}
	gc.Alloc(&f.Header, psgc.TypeFunction, unsafe.Sizeof(*f))
	return f
}

// NewScript allocates a script function record: parameter AST, parameter
// defaults, and the closure environment captured at creation. Parameter
// name strings are extracted by the caller (the compiler/evaluator,
// which owns the AST shape) and passed in paramNames.
func NewScript(gc *psgc.GC, name *psstring.String, params, defaults []psast.Node, paramNames []*psstring.String, body psast.Node, closureEnv *psenv.Env) *Function {
	f := &Function{
		name:          name,
		params:        params,
		paramDefaults: defaults,
		paramNames:    paramNames,
		paramCount:    len(params),
		body:          body,
		closureEnv:    closureEnv,
	}
	gc.Alloc(&f.Header, psgc.TypeFunction, unsafe.Sizeof(*f))
	return f
}

// SpecTier exposes the function's guarded specialization tier. The
// evaluator Compiles a tier onto it after a function crosses
// hotCallThreshold and checks GuardsPass/HotCount on subsequent calls;
// psgc's survivor hook (ageTiersOnSurvive) ages it out through the same
// pointer whenever the function survives a collection cold.
func (f *Function) SpecTier() *GuardedTier { return &f.specTier }

// UnboxedTier exposes the function's unboxed specialization tier; see
// SpecTier.
func (f *Function) UnboxedTier() *UnboxedTier { return &f.unboxedTier }

// StmtCache returns the function's cached per-statement compilation state
// and payload, set by SetStmtCache.
func (f *Function) StmtCache() (TierState, interface{}) {
	return f.stmtCacheState, f.stmtCache
}

// SetStmtCache installs the per-statement compilation cache's state and
// opaque payload (spec.md §4.5's statement-cache tier).
func (f *Function) SetStmtCache(state TierState, cache interface{}) {
	f.stmtCacheState = state
	f.stmtCache = cache
}

func (f *Function) IsNative() bool                 { return f.isNative }
func (f *Function) Native() NativeFunc             { return f.native }
func (f *Function) Body() psast.Node               { return f.body }
func (f *Function) Params() []psast.Node           { return f.params }
func (f *Function) ParamDefaults() []psast.Node    { return f.paramDefaults }
func (f *Function) ParamNames() []*psstring.String { return f.paramNames }
func (f *Function) ParamCount() int                { return f.paramCount }
func (f *Function) Name() *psstring.String         { return f.name }
func (f *Function) ClosureEnv() *psenv.Env         { return f.closureEnv }

// Setup boxes fn as a FUNCTION-kind Object and wires its `prototype`/
// `constructor` back-reference, per ps_function_setup in ps_function.h.
// prototypeOverride lets a caller supply a prototype object it already
// built (e.g. Function.prototype itself); otherwise a fresh one is
// allocated under objectProto.
func Setup(gc *psgc.GC, fn *Function, functionProto, objectProto, prototypeOverride *psobject.Object) *psobject.Object {
	fnObj := psobject.NewWithKind(gc, functionProto, psobject.KindFunction, fn)

	proto := prototypeOverride
	if proto == nil {
		proto = psobject.New(gc, objectProto)
	}
	fnObj.Define(mustName(gc, "prototype"), psobject.Ref(proto), psobject.AttrDontEnum)
	proto.Define(mustName(gc, "constructor"), psobject.Ref(fnObj), psobject.AttrDontEnum)
	return fnObj
}

var nameCache = map[string]*psstring.String{}

// mustName interns the small fixed set of identifier strings Setup needs
// ("prototype", "constructor") without requiring every caller to pass
// pre-built psstring.String values.
func mustName(gc *psgc.GC, text string) *psstring.String {
	if s, ok := nameCache[text]; ok && psgc.IsManaged(s.GCHeader()) {
		return s
	}
	s := psstring.MustNew(gc, text)
	nameCache[text] = s
	return s
}

// FromObject recovers the Function payload from an Object of KindFunction,
// or nil if obj isn't one.
func FromObject(obj *psobject.Object) *Function {
	if obj == nil || obj.Kind() != psobject.KindFunction {
		return nil
	}
	fn, _ := obj.Internal().(*Function)
	return fn
}

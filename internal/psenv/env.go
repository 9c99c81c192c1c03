// Package psenv implements the lexical scope chain described in
// spec.md §3/§4.4, grounded on original_source/src/env.c and expanded
// (per SPEC_FULL.md) with the fast-slot arrays and lazy arguments object
// spec.md adds beyond the original's plainer PSEnv.
package psenv

import (
	"strconv"
	"unsafe"

	"protoscript/internal/psgc"
	"protoscript/internal/psobject"
	"protoscript/internal/psstring"
	"protoscript/internal/psvalue"
)

func init() {
	psgc.RegisterTracer(psgc.TypeEnv, traceEnv)
	psgc.RegisterFinalizer(psgc.TypeEnv, finalizeEnv)
}

// Env is one lexical scope: a parent link, a record object used as the
// variable store, and the optional fast-slot acceleration arrays for
// locals and parameters described in spec.md §4.4.
type Env struct {
	psgc.Header

	parent     *Env
	record     *psobject.Object
	ownsRecord bool

	paramNames []*psstring.String

	fastNames  []*psstring.String
	fastValues []psvalue.Value

	// argumentsAliasing gates whether numeric `arguments` properties
	// mirror live parameter values (aliasing on) or a frozen snapshot
	// taken at call time (aliasing off). spec.md §9 leaves this an open
	// question gated by a compile-time flag in the original; DESIGN.md
	// records the default-off decision this runtime makes.
	argumentsAliasing bool

	argumentsObj   *psobject.Object // lazily materialized
	argIndexNames  []*psstring.String
	capturedArgs   []psvalue.Value
	callee         *psobject.Object
}

func (e *Env) GCHeader() *psgc.Header { return &e.Header }

func traceEnv(h *psgc.Header, gc *psgc.GC) {
	e := (*Env)(unsafe.Pointer(h))
	if e.parent != nil {
		gc.MarkHolder(e.parent)
	}
	if e.record != nil {
		gc.MarkHolder(e.record)
	}
	if e.argumentsObj != nil {
		gc.MarkHolder(e.argumentsObj)
	}
	if e.callee != nil {
		gc.MarkHolder(e.callee)
	}
	for _, n := range e.paramNames {
		gc.MarkValue(psstring.Ref(n))
	}
	for _, n := range e.fastNames {
		gc.MarkValue(psstring.Ref(n))
	}
	for _, n := range e.argIndexNames {
		gc.MarkValue(psstring.Ref(n))
	}
	for _, v := range e.fastValues {
		gc.MarkValue(v)
	}
	for _, v := range e.capturedArgs {
		gc.MarkValue(v)
	}
}

func finalizeEnv(h *psgc.Header) {
	e := (*Env)(unsafe.Pointer(h))
	e.fastNames = nil
	e.fastValues = nil
	e.capturedArgs = nil
	e.paramNames = nil
	e.argIndexNames = nil
}

// Options configures a new Env. ArgumentsAliasing defaults to false (a
// snapshot `arguments`), matching spec.md §9's default recommendation.
type Options struct {
	Record            *psobject.Object
	OwnsRecord         bool
	ParamNames         []*psstring.String
	FastNames          []*psstring.String
	Callee             *psobject.Object
	CapturedArgs       []psvalue.Value
	ArgumentsAliasing  bool
}

// New creates an environment whose parent is the given Env (nil for the
// global environment).
func New(gc *psgc.GC, parent *Env, opts Options) *Env {
	e := &Env{
		parent:            parent,
		record:            opts.Record,
		ownsRecord:        opts.OwnsRecord,
		paramNames:        opts.ParamNames,
		fastNames:         opts.FastNames,
		callee:            opts.Callee,
		capturedArgs:      opts.CapturedArgs,
		argumentsAliasing: opts.ArgumentsAliasing,
	}
	if len(e.fastNames) > 0 {
		e.fastValues = make([]psvalue.Value, len(e.fastNames))
		for i := range e.fastValues {
			e.fastValues[i] = psvalue.Undefined()
		}
	}
	gc.Alloc(&e.Header, psgc.TypeEnv, unsafe.Sizeof(*e))
	return e
}

// NewObjectScope creates a synthetic environment around a plain record
// object with no fast slots, for when the host needs a bare lexical
// scope (e.g. a `with`-like construct, or a module scope).
func NewObjectScope(gc *psgc.GC, parent *Env, record *psobject.Object) *Env {
	return New(gc, parent, Options{Record: record, OwnsRecord: true})
}

func (e *Env) Parent() *Env               { return e.parent }
func (e *Env) Record() *psobject.Object   { return e.record }
func (e *Env) Callee() *psobject.Object   { return e.callee }

func (e *Env) fastSlot(name *psstring.String) int {
	for i, n := range e.fastNames {
		if psstring.Equal(n, name) {
			return i
		}
	}
	return -1
}

// Define sets a local binding: if name has a reserved fast slot it is
// written there first, then the write always propagates to the record
// (spec.md §4.4's fast-slot invariant).
func (e *Env) Define(name *psstring.String, value psvalue.Value) {
	if i := e.fastSlot(name); i >= 0 {
		e.fastValues[i] = value
	}
	e.record.Put(name, value)
}

// Set walks the scope chain looking for an existing binding. At each
// level it checks the fast slot then the own record property; on a hit
// it writes through to both, and — when arguments aliasing is enabled —
// mirrors the write into the aliased numeric arguments property. If no
// binding exists anywhere, the write creates a property on the root
// (global) record.
func (e *Env) Set(name *psstring.String, value psvalue.Value) {
	for cur := e; cur != nil; cur = cur.parent {
		if i := cur.fastSlot(name); i >= 0 {
			cur.fastValues[i] = value
			cur.record.Put(name, value)
			cur.mirrorArgument(i, value)
			return
		}
		if cur.record.HasOwn(name) {
			cur.record.Put(name, value)
			return
		}
	}
	e.Root().record.Put(name, value)
}

// mirrorArgument writes value into arguments[paramIndex] when arguments
// aliasing is enabled, the parameter at paramIndex exists, and the
// arguments object has already been materialized (spec.md §4.4).
func (e *Env) mirrorArgument(paramIndex int, value psvalue.Value) {
	if !e.argumentsAliasing || e.argumentsObj == nil {
		return
	}
	if paramIndex < 0 || paramIndex >= len(e.argIndexNames) {
		return
	}
	e.argumentsObj.Put(e.argIndexNames[paramIndex], value)
}

// Get walks the scope chain: fast slot, then own property, then parent.
// Referencing the identifier "arguments" inside a scope whose callee is
// set lazily materializes the arguments object on first access.
func (e *Env) Get(gc *psgc.GC, name *psstring.String) (psvalue.Value, bool) {
	if e.callee != nil && argSpec.Arguments != nil && psstring.Equal(name, argSpec.Arguments) {
		return psobject.Ref(e.materializeArguments(gc)), true
	}
	for cur := e; cur != nil; cur = cur.parent {
		if i := cur.fastSlot(name); i >= 0 {
			return cur.fastValues[i], true
		}
		if v, found := cur.record.GetOwn(name); found {
			return v, true
		}
	}
	return psvalue.Undefined(), false
}

// Root returns the terminal parent — the global environment.
func (e *Env) Root() *Env {
	cur := e
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// ArgumentsSpec names the identifier and properties the lazy `arguments`
// materializer needs, per spec.md §4.4.
type ArgumentsSpec struct {
	Arguments *psstring.String
	Length    *psstring.String
	Callee    *psstring.String
}

var argSpec ArgumentsSpec

// ConfigureArgumentsNames must be called once at VM startup with the
// interned "arguments"/"length"/"callee" strings so the lazy
// materializer doesn't need a GC handle to allocate them on every call.
func ConfigureArgumentsNames(spec ArgumentsSpec) {
	argSpec = spec
}

// materializeArguments builds (or returns the cached) arguments object:
// numeric properties 0..n-1, `length` and `callee` (each
// READONLY+DONTENUM+DONTDELETE).
func (e *Env) materializeArguments(gc *psgc.GC) *psobject.Object {
	if e.argumentsObj != nil {
		return e.argumentsObj
	}

	obj := psobject.New(gc, nil)
	values := e.capturedArgs
	if e.argumentsAliasing {
		values = make([]psvalue.Value, len(e.capturedArgs))
		for i := range values {
			if i < len(e.fastNames) {
				if j := e.fastSlot(e.fastNames[i]); j >= 0 {
					values[i] = e.fastValues[j]
					continue
				}
			}
			values[i] = e.capturedArgs[i]
		}
	}
	e.argIndexNames = make([]*psstring.String, len(values))
	for i, v := range values {
		idxName, _ := psstring.New(gc, []byte(strconv.Itoa(i)))
		e.argIndexNames[i] = idxName
		obj.Define(idxName, v, psobject.AttrNone)
	}

	attrs := psobject.AttrReadOnly | psobject.AttrDontEnum | psobject.AttrDontDelete
	lengthName := argSpec.Length
	if lengthName == nil {
		lengthName, _ = psstring.New(gc, []byte("length"))
	}
	calleeName := argSpec.Callee
	if calleeName == nil {
		calleeName, _ = psstring.New(gc, []byte("callee"))
	}
	obj.Define(lengthName, psvalue.Number(float64(len(e.capturedArgs))), attrs)
	obj.Define(calleeName, psobject.Ref(e.callee), attrs)

	e.argumentsObj = obj
	return obj
}

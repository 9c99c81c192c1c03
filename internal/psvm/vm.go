// Package psvm ties the core runtime together: the global object, the
// current environment, the named builtin-prototype set, and the
// pending-throw channel described in spec.md §5/§6/§9, grounded on
// sentra-language-sentra's internal/vm/vm.go EnhancedVM/NewVM shape —
// narrowed to the core's scope (no bytecode chunk, no call stack, no
// module loader: those belong to the out-of-scope evaluator).
package psvm

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"protoscript/internal/pserrors"
	"protoscript/internal/psenv"
	"protoscript/internal/psevent"
	"protoscript/internal/psgc"
	"protoscript/internal/psobject"
	"protoscript/internal/psstring"
	"protoscript/internal/psvalue"
)

// Protos is the full named builtin-prototype set ps_vm.h caches on the
// VM (supplemented per SPEC_FULL.md beyond spec.md §2's bare "every
// built-in prototype" mention), each a GC root for as long as the VM
// lives.
type Protos struct {
	Object         *psobject.Object
	Function       *psobject.Object
	Boolean        *psobject.Object
	Number         *psobject.Object
	String         *psobject.Object
	Array          *psobject.Object
	Date           *psobject.Object
	Regexp         *psobject.Object
	Math           *psobject.Object
	Error          *psobject.Object
	TypeError      *psobject.Object
	RangeError     *psobject.Object
	ReferenceError *psobject.Object
	SyntaxError    *psobject.Object
	EvalError      *psobject.Object
}

// GCRoots implements psgc.RootSource: every non-nil named prototype is a
// GC root.
func (p *Protos) GCRoots() []psgc.Root {
	roots := make([]psgc.Root, 0, 16)
	for _, o := range []*psobject.Object{
		p.Object, p.Function, p.Boolean, p.Number, p.String, p.Array,
		p.Date, p.Regexp, p.Math, p.Error, p.TypeError, p.RangeError,
		p.ReferenceError, p.SyntaxError, p.EvalError,
	} {
		if o != nil {
			roots = append(roots, psgc.Root{Type: psgc.RootObject, Ptr: o})
		}
	}
	return roots
}

// VM is one instance of the core runtime. Only one VM may be "active"
// (installed via Activate) on a given OS thread at a time — spec.md §5's
// single-threaded, non-reentrant model.
type VM struct {
	id uuid.UUID

	gc     *psgc.GC
	events *psevent.Queue
	global *psobject.Object
	env    *psenv.Env

	protos Protos

	hasPendingThrow bool
	pendingThrow    psvalue.Value
	currentCallee   *psobject.Object
	isConstructing  bool

	interns *psstring.InternCache
}

// Option configures a VM at construction, the way cmd/sentra wires
// feature flags onto EnhancedVM by struct field assignment — expressed
// here as the idiomatic Go functional-options form.
type Option func(*config)

type config struct {
	gcOptions     psgc.Options
	eventCapacity int
}

// WithGCOptions overrides the collector's growth factor/minimum
// threshold (psgc.Options zero value uses psgc.New's own defaults).
func WithGCOptions(o psgc.Options) Option {
	return func(c *config) { c.gcOptions = o }
}

// WithEventCapacity overrides the event queue's fixed ring size.
func WithEventCapacity(n int) Option {
	return func(c *config) { c.eventCapacity = n }
}

// New constructs a VM: a fresh GC, a fresh global object and root
// environment, an empty event queue, and a random session id (surfaced
// in diagnostics so an embedder juggling several VMs behind the
// active-VM pointer can tell log lines apart).
func New(opts ...Option) *VM {
	cfg := config{eventCapacity: psevent.DefaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}

	gc := psgc.New(cfg.gcOptions)
	global := psobject.New(gc, nil)
	rootEnv := psenv.New(gc, nil, psenv.Options{Record: global, OwnsRecord: true})

	vm := &VM{
		id:      uuid.New(),
		gc:      gc,
		events:  psevent.New(cfg.eventCapacity),
		global:  global,
		env:     rootEnv,
		interns: psstring.NewInternCache(),
	}

	gc.AddRootSource(vm)
	gc.AddRootSource(vm.events)
	gc.AddRootSource(&vm.protos)

	return vm
}

func (vm *VM) ID() uuid.UUID                  { return vm.id }
func (vm *VM) GC() *psgc.GC                   { return vm.gc }
func (vm *VM) Events() *psevent.Queue         { return vm.events }
func (vm *VM) Global() *psobject.Object       { return vm.global }
func (vm *VM) Env() *psenv.Env                { return vm.env }
func (vm *VM) SetEnv(e *psenv.Env)            { vm.env = e }
func (vm *VM) Protos() *Protos                { return &vm.protos }
func (vm *VM) Interns() *psstring.InternCache { return vm.interns }

// GCRoots implements psgc.RootSource for the VM's own non-prototype
// roots: the global object (via the root environment), the current
// environment, the pending-throw value, and the current callee.
func (vm *VM) GCRoots() []psgc.Root {
	roots := make([]psgc.Root, 0, 4)
	if vm.env != nil {
		roots = append(roots, psgc.Root{Type: psgc.RootEnv, Ptr: vm.env})
	}
	if vm.hasPendingThrow {
		roots = append(roots, psgc.Root{Type: psgc.RootValue, Ptr: vm.pendingThrow})
	}
	if vm.currentCallee != nil {
		roots = append(roots, psgc.Root{Type: psgc.RootObject, Ptr: vm.currentCallee})
	}
	return roots
}

// HasPendingThrow reports the error-propagation flag of spec.md §7.
func (vm *VM) HasPendingThrow() bool { return vm.hasPendingThrow }

// PendingThrow returns the current thrown value; only meaningful when
// HasPendingThrow is true.
func (vm *VM) PendingThrow() psvalue.Value { return vm.pendingThrow }

// Throw sets the pending-throw flag with errorValue, per spec.md §7;
// satisfies psfunction.Host so native functions can raise without
// importing psvm.
func (vm *VM) Throw(errorValue psvalue.Value) {
	vm.hasPendingThrow = true
	vm.pendingThrow = errorValue
}

// ThrowKind builds a plain error object of the given kind (prototype
// chosen from Protos) with name/message set, then Throws it — the
// "error object is a plain object whose prototype matches the error
// kind" construction of spec.md §7.
func (vm *VM) ThrowKind(kind pserrors.Kind, message string) {
	proto := vm.protoForKind(kind)
	errObj := psobject.New(vm.gc, proto)
	nameStr := psstring.MustNew(vm.gc, string(kind))
	msgStr := psstring.MustNew(vm.gc, message)
	errObj.Define(psstring.MustNew(vm.gc, "name"), psstring.Ref(nameStr), psobject.AttrDontEnum)
	errObj.Define(psstring.MustNew(vm.gc, "message"), psstring.Ref(msgStr), psobject.AttrDontEnum)
	vm.Throw(psobject.Ref(errObj))
}

func (vm *VM) protoForKind(kind pserrors.Kind) *psobject.Object {
	switch kind {
	case pserrors.KindTypeError:
		return vm.protos.TypeError
	case pserrors.KindRangeError:
		return vm.protos.RangeError
	case pserrors.KindReferenceError:
		return vm.protos.ReferenceError
	case pserrors.KindSyntaxError:
		return vm.protos.SyntaxError
	case pserrors.KindEvalError:
		return vm.protos.EvalError
	default:
		return vm.protos.Error
	}
}

// ClearThrow clears the pending-throw flag, the way a successful `catch`
// handler in the evaluator would (spec.md §7); the core itself never
// calls this, it only maintains the flag for the evaluator to clear.
func (vm *VM) ClearThrow() {
	vm.hasPendingThrow = false
	vm.pendingThrow = psvalue.Undefined()
}

// CurrentCallee returns the function Object currently executing, or nil
// at the top level.
func (vm *VM) CurrentCallee() *psobject.Object { return vm.currentCallee }

// IsConstructing reports whether the current call was made via a
// `new`-style construction (ps_vm.h's is_constructing). Unused by the
// core itself — the evaluator that would branch on it is out of scope —
// but its state is maintained since it's a VM invariant.
func (vm *VM) IsConstructing() bool { return vm.isConstructing }

// EnterCall records the callee/constructing state around a function
// invocation; the caller is responsible for restoring the previous
// values via the returned closure once the call returns.
func (vm *VM) EnterCall(callee *psobject.Object, constructing bool) (restore func()) {
	prevCallee, prevConstructing := vm.currentCallee, vm.isConstructing
	vm.currentCallee = callee
	vm.isConstructing = constructing
	return func() {
		vm.currentCallee = prevCallee
		vm.isConstructing = prevConstructing
	}
}

// activeVM is the process-wide pointer of spec.md §5: "installed at VM
// creation and cleared on destruction; embedding two VMs on one thread
// is only permitted if the embedder swaps this pointer between
// operations."
var activeVM *VM

// Activate installs vm as the process-wide active VM.
func Activate(vm *VM) { activeVM = vm }

// Active returns the currently active VM, or nil if none is installed.
func Active() *VM { return activeVM }

// Deactivate clears the active-VM pointer if it currently points at vm.
func (vm *VM) Deactivate() {
	if activeVM == vm {
		activeVM = nil
	}
}

// SafePoint is the only point at which a collection may occur
// (spec.md §5): the evaluator must call this at least once per loop
// back-edge and once per call-return boundary.
func (vm *VM) SafePoint() {
	vm.gc.SafePoint()
}

// String renders a one-line diagnostic summary: session id, GC stats
// with humanized byte counts, and event-queue occupancy — the plain
// fmt.Fprintf-style reporting the teacher's cmd/sentra prints, now
// assembled as a single method the CLI and tests can both call.
func (vm *VM) String() string {
	stats := vm.gc.Stats()
	return fmt.Sprintf(
		"vm %s: heap=%s live=%s threshold=%s collections=%d freed_last=%d events=%d/%d",
		vm.id,
		humanize.Bytes(stats.HeapBytes),
		humanize.Bytes(stats.LiveBytesLast),
		humanize.Bytes(stats.Threshold),
		stats.Collections,
		stats.FreedLast,
		vm.events.Len(),
		vm.events.Cap(),
	)
}

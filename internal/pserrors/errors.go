// Package pserrors defines the error kinds raised across the ProtoScript
// core runtime and the host-side wrapping used to report them.
package pserrors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the closed set of language-level error kinds the core can raise.
// Names match the classical ECMAScript-family error hierarchy; SyntaxError
// is raised by the parser collaborator and ResourceLimitError by subsystems
// outside the core, but both are named here so error-kind-to-prototype
// mapping in psvm stays total.
type Kind string

const (
	KindError          Kind = "Error"
	KindTypeError      Kind = "TypeError"
	KindRangeError     Kind = "RangeError"
	KindReferenceError Kind = "ReferenceError"
	KindSyntaxError    Kind = "SyntaxError"
	KindEvalError      Kind = "EvalError"
	KindResourceLimit  Kind = "ResourceLimitError"
)

// Location pinpoints where a core error occurred, when known.
type Location struct {
	File   string
	Line   int
	Column int
}

// Frame is a single call-stack entry attached to a CoreError for reporting.
type Frame struct {
	Function string
	Location Location
}

// CoreError is the host-visible representation of a language-level error.
// It is distinct from the VM's pending-throw value (a PSValue wrapping an
// Error object, see psvm) but carries the same Kind/Message pair so the two
// can be constructed from each other at the VM boundary.
type CoreError struct {
	Kind     Kind
	Message  string
	Location Location
	Stack    []Frame
}

func New(kind Kind, format string, args ...interface{}) *CoreError {
	return &CoreError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *CoreError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Message)
	if e.Location.File != "" {
		fmt.Fprintf(&sb, "\n  at %s:%d:%d", e.Location.File, e.Location.Line, e.Location.Column)
	}
	for _, f := range e.Stack {
		if f.Function != "" {
			fmt.Fprintf(&sb, "\n  at %s (%s:%d:%d)", f.Function, f.Location.File, f.Location.Line, f.Location.Column)
		} else {
			fmt.Fprintf(&sb, "\n  at %s:%d:%d", f.Location.File, f.Location.Line, f.Location.Column)
		}
	}
	return sb.String()
}

// WithLocation attaches a source location to a CoreError and returns it,
// for convenient chaining at the call site that detects the error.
func (e *CoreError) WithLocation(loc Location) *CoreError {
	e.Location = loc
	return e
}

// PushFrame records a call-stack frame, innermost call first.
func (e *CoreError) PushFrame(f Frame) {
	e.Stack = append(e.Stack, f)
}

// Wrap attaches host-side context to an internal (non-language-visible)
// error — allocator failures, malformed embedder input, and the like.
// This is kept distinct from CoreError: CoreError crosses into the VM's
// pending-throw channel, Wrap never does.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, context)
}

// Cause unwraps a chain built with Wrap back to its root cause.
func Cause(err error) error {
	return errors.Cause(err)
}

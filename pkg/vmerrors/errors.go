// Package vmerrors defines the two structured error domains used throughout
// the pipeline: compile-time errors (raised by the lexer, parser, and
// compiler) and runtime errors (raised by the VM). Both carry enough context
// — a source location or a call-stack trace — to point a caller at the
// failure without re-deriving it from scratch.
package vmerrors

import (
	"fmt"
	"strings"
)

// Location identifies a point in source text.
type Location struct {
	Line   int
	Column int
	Length int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// CompileKind enumerates the compile-time error domains of spec §7.
type CompileKind int

const (
	LexError CompileKind = iota
	ParseError
	SemanticError
)

func (k CompileKind) String() string {
	switch k {
	case LexError:
		return "LexError"
	case ParseError:
		return "ParseError"
	case SemanticError:
		return "SemanticError"
	default:
		return "UnknownCompileError"
	}
}

// CompileError is raised by the lexer, parser, or compiler. Expected/Actual
// are populated only when the mismatch is meaningful (e.g. "expected token",
// not every semantic error has one).
type CompileError struct {
	Kind     CompileKind
	Message  string
	Location Location
	Expected string
	Actual   string
}

func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s: %s", e.Kind, e.Location, e.Message)
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, " (expected %q, got %q)", e.Expected, e.Actual)
	}
	return b.String()
}

// NewCompileError constructs a CompileError with no expected/actual pair.
func NewCompileError(kind CompileKind, loc Location, message string) *CompileError {
	return &CompileError{Kind: kind, Message: message, Location: loc}
}

// RuntimeKind enumerates the runtime fault domains of spec §7.
type RuntimeKind int

const (
	StackOverflow RuntimeKind = iota
	DivisionByZero
	TypeMismatch
	UndefinedVariable
	UndefinedFunction
	InvalidJump
	OutOfMemory
	BudgetExceeded
)

func (k RuntimeKind) String() string {
	switch k {
	case StackOverflow:
		return "StackOverflow"
	case DivisionByZero:
		return "DivisionByZero"
	case TypeMismatch:
		return "TypeMismatch"
	case UndefinedVariable:
		return "UndefinedVariable"
	case UndefinedFunction:
		return "UndefinedFunction"
	case InvalidJump:
		return "InvalidJump"
	case OutOfMemory:
		return "OutOfMemory"
	case BudgetExceeded:
		return "BudgetExceeded"
	default:
		return "UnknownRuntimeError"
	}
}

// Frame is a single entry in a runtime stack trace: the instruction address
// at the time of the call plus the name of the function entered, if any.
type Frame struct {
	Address      int
	FunctionName string
}

// RuntimeError is raised by the VM. It carries the fault kind, a message,
// and the call-frame chain active at the moment of the fault so callers can
// print a trace without the VM having to format one eagerly on every call.
type RuntimeError struct {
	Kind    RuntimeKind
	Message string
	Trace   []Frame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if len(e.Trace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.Trace) - 1; i >= 0; i-- {
			f := e.Trace[i]
			name := f.FunctionName
			if name == "" {
				name = "<main>"
			}
			fmt.Fprintf(&b, "\n  at %s [ip=%d]", name, f.Address)
		}
	}
	return b.String()
}

// NewRuntimeError constructs a RuntimeError with the given stack trace.
func NewRuntimeError(kind RuntimeKind, message string, trace []Frame) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: message, Trace: trace}
}

// WrapBuiltin wraps a coercion/argument failure from inside a built-in
// function as a TypeMismatch, per spec §7 ("failures from a coerced
// built-in operand propagate as a TypeMismatch wrapped with the built-in's
// name").
func WrapBuiltin(name string, err error, trace []Frame) *RuntimeError {
	return &RuntimeError{
		Kind:    TypeMismatch,
		Message: fmt.Sprintf("%s: %v", name, err),
		Trace:   trace,
	}
}

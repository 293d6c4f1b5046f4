package vm

import (
	"fmt"

	"github.com/smasher164/sid/lexer"
)

type ErrorKind int

const (
	TypeMismatch ErrorKind = iota
	StackUnderflow
	NoMatchingCase
	PrimitiveFailed
	DuplicateElement
	ReturnMismatch
	NotCallable
	ArityDrift
)

var errorKindNames = [...]string{
	TypeMismatch:     "type mismatch",
	StackUnderflow:   "stack underflow",
	NoMatchingCase:   "no matching case",
	PrimitiveFailed:  "primitive failed",
	DuplicateElement: "duplicate element",
	ReturnMismatch:   "return mismatch",
	NotCallable:      "not callable",
	ArityDrift:       "arity drift",
}

func (k ErrorKind) String() string { return errorKindNames[k] }

// RuntimeError is a failure while executing resolved code.
type RuntimeError struct {
	Kind ErrorKind
	Span lexer.Span
	Msg  string
	Err  error
}

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Span, e.Kind)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

func runtimeErrorf(kind ErrorKind, at lexer.Span, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Kind: kind, Span: at, Msg: fmt.Sprintf(format, args...)}
}

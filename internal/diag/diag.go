// Package diag defines the compiler's shared diagnostic type.
//
// Every fatal condition raised by the pipeline (lexical, syntactic,
// semantic, resource, or runtime-bridge) is reported through a single
// *Error value rather than a panic or bare error string, so the CLI
// front end can format and exit uniformly.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags the taxonomy of a diagnostic (spec §7).
type Kind string

const (
	Lexical      Kind = "lexical"
	Syntactic    Kind = "syntactic"
	Semantic     Kind = "semantic"
	Resource     Kind = "resource"
	RuntimeBridge Kind = "runtime-bridge"
)

// Error is a fatal compiler diagnostic with source position.
type Error struct {
	Kind   Kind
	Line   int
	Column int
	Msg    string
	Cause  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		if e.Column > 0 {
			return fmt.Sprintf("%s error at %d:%d: %s", e.Kind, e.Line, e.Column, e.Msg)
		}
		return fmt.Sprintf("%s error at line %d: %s", e.Kind, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a positionless diagnostic.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// At builds a diagnostic anchored to a line/column.
func At(kind Kind, line, column int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Line: line, Column: column, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a taxonomy kind and position to an existing cause,
// preserving it for errors.Unwrap/errors.Cause chains.
func Wrap(cause error, kind Kind, line int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:  kind,
		Line:  line,
		Msg:   fmt.Sprintf(format, args...),
		Cause: errors.WithStack(cause),
	}
}

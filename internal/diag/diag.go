// Package diag holds the error taxonomy reported by lowering.
package diag

import (
	"fmt"
	"strings"

	"tsbc/internal/token"
	"tsbc/internal/types"
)

// Error is a positioned diagnostic without a more specific kind
// (bad break targets, assignments to const, non-boolean conditions).
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

func Errorf(pos token.Position, format string, args ...any) *Error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// OverloadResolutionError reports a call site with no applicable candidate.
type OverloadResolutionError struct {
	Pos      token.Position
	Receiver types.Type
	Member   string
	Args     []types.Type
}

func (e *OverloadResolutionError) Error() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	recv := "<unknown>"
	if e.Receiver != nil {
		recv = e.Receiver.String()
	}
	return fmt.Sprintf("%s: no applicable overload for %s.%s(%s)", e.Pos, recv, e.Member, strings.Join(args, ", "))
}

// CaptureMutabilityError reports a captured binding that is not effectively final.
type CaptureMutabilityError struct {
	Pos      token.Position // offending write, or the closure when written before it
	Variable string
	Site     token.Position // closure creation site
}

func (e *CaptureMutabilityError) Error() string {
	return fmt.Sprintf("%s: variable %s is captured by the closure at %s and must not be reassigned", e.Pos, e.Variable, e.Site)
}

type UnresolvedIdentifierError struct {
	Pos  token.Position
	Name string
}

func (e *UnresolvedIdentifierError) Error() string {
	return fmt.Sprintf("%s: unresolved identifier %s", e.Pos, e.Name)
}

// ResourceTypeError reports a using declaration whose type cannot be closed.
type ResourceTypeError struct {
	Pos      token.Position
	Variable string
	Type     types.Type
}

func (e *ResourceTypeError) Error() string {
	return fmt.Sprintf("%s: using %s: type %s has no close() method", e.Pos, e.Variable, e.Type)
}

// ClosureTargetError reports a function literal with no usable target interface.
type ClosureTargetError struct {
	Pos    token.Position
	Target types.Type // may be nil when no target type was known
	Reason string
}

func (e *ClosureTargetError) Error() string {
	if e.Target == nil {
		return fmt.Sprintf("%s: function literal: %s", e.Pos, e.Reason)
	}
	return fmt.Sprintf("%s: function literal for %s: %s", e.Pos, e.Target, e.Reason)
}

type TypeMismatchError struct {
	Pos     token.Position
	From    types.Type
	To      types.Type
	Context string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s: cannot use %s as %s", e.Pos, e.Context, e.From, e.To)
}

// InternalError marks a broken compiler invariant. It aborts the run.
type InternalError struct {
	Pos token.Position
	Msg string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: internal error: %s", e.Pos, e.Msg)
}

func Internalf(pos token.Position, format string, args ...any) *InternalError {
	return &InternalError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

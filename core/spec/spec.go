// Package spec parses and validates controller definition files.
//
// A definition file is a Go source file, excluded from the normal build by a
// `//go:build ctldef` constraint, that declares exactly one state-holder
// struct marked `//ctl:controller` and the controller's operation set as
// methods on that struct. Parsing produces a Controller value; every
// structural defect is reported as a ShapeError at this boundary, never
// deferred to the generated code.
package spec

import (
	"fmt"
	"go/token"
)

// Controller is the validated in-memory form of a definition file. It is
// built once per generation run, handed to the classifier and emitter, and
// discarded.
type Controller struct {
	// Name is the state-holder type name.
	Name string

	// Package is the package name of the definition file.
	Package string

	// Fields are the state-holder fields in declaration order. Declaration
	// order drives constructor parameter order and dispatch arm order.
	Fields []Field

	// Operations are the methods of the operation set in declaration order.
	// Declaration order drives dispatch priority.
	Operations []Operation

	// Imports are the import specs of the definition file, as written
	// (including any alias), e.g. `"context"`.
	Imports []string

	// Others holds the source text of every declaration that is not the
	// state holder or one of its operations. The emitter re-attaches them
	// untouched so the output is a drop-in replacement for the input.
	Others []string

	// OtherNames are the package-level identifiers declared by Others. The
	// classifier checks them against the type and function names it
	// synthesizes.
	OtherNames []string
}

// Field is one state-holder field with its parsed directives.
type Field struct {
	// Name is the field name as declared.
	Name string

	// Type is the field's type expression, as written in the source.
	Type string

	// Publish marks the field for latest-value broadcast.
	Publish bool

	// Getter is the client read-accessor name, or "" when no getter was
	// requested. Defaults to the field name when the directive carries no
	// value.
	Getter string

	// Setter is the client write-accessor name, or "" when no setter was
	// requested. Defaults to set_<field>.
	Setter string
}

// HasAccessor reports whether the field needs a dispatch arm.
func (f Field) HasAccessor() bool { return f.Getter != "" || f.Setter != "" }

// Operation is one method of the operation set.
type Operation struct {
	// Name is the method name as declared.
	Name string

	// Params are the parameters after the leading context.Context.
	Params []Param

	// Results are the result types, excluding a trailing error.
	Results []string

	// ReturnsErr is true when the last result is error.
	ReturnsErr bool

	// Signal is true for body-less broadcast operations.
	Signal bool

	// Source is the full method declaration as written, body included.
	// Empty for signals, whose bodies the emitter synthesizes.
	Source string
}

// Param is a named operation parameter.
type Param struct {
	Name string
	Type string
}

// ShapeError reports a malformed definition file: wrong number of state
// holders, a mismatched operation set, a non-async operation, a
// reference-typed parameter, or a signal/body mismatch. It is fatal to the
// generation step.
type ShapeError struct {
	Pos token.Position
	Msg string
}

func (e *ShapeError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
	}
	return e.Msg
}

func shapeErrorf(fset *token.FileSet, pos token.Pos, format string, args ...any) *ShapeError {
	var p token.Position
	if fset != nil && pos.IsValid() {
		p = fset.Position(pos)
	}
	return &ShapeError{Pos: p, Msg: fmt.Sprintf(format, args...)}
}

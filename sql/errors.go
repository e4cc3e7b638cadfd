// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sql

import (
	"fmt"

	"github.com/difin/hive-sub000/parse"
	errors "gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrInvalidType is thrown when a type name or value cannot be
	// interpreted.
	ErrInvalidType = errors.NewKind("invalid type: %s")

	// ErrInvalidTable is returned when a table or view cannot be found in
	// the catalog, the CTEs in scope or the materialized CTEs.
	ErrInvalidTable = errors.NewKind("Table not found %s")

	// ErrInvalidTableAlias is returned when a qualified reference names an
	// alias that is not in scope.
	ErrInvalidTableAlias = errors.NewKind("Invalid table alias %s")

	// ErrInvalidColumn is returned when a column reference cannot be
	// resolved, or a column regex matches nothing.
	ErrInvalidColumn = errors.NewKind("Invalid column reference %s")

	// ErrInvalidTableOrColumn is returned when an unqualified identifier is
	// neither a column nor a table alias.
	ErrInvalidTableOrColumn = errors.NewKind("Invalid table alias or column reference '%s': (possible column names are: %s)")

	// ErrAmbiguousColumn is returned when an unqualified column name is
	// present in more than one table alias.
	ErrAmbiguousColumn = errors.NewKind("Ambiguous column reference %s in %s")

	// ErrDuplicateColumn is returned when a resolver already holds a
	// binding and the caller asked for conflict detection.
	ErrDuplicateColumn = errors.NewKind("Duplicate column name %s.%s")

	// ErrInvalidFunction is returned for unknown function names.
	ErrInvalidFunction = errors.NewKind("Invalid function %s")

	// ErrInvalidArgumentCount is returned when a function gets the wrong
	// number of arguments.
	ErrInvalidArgumentCount = errors.NewKind("Invalid number of arguments for function %s: expected %s, got %d")

	// ErrInvalidArgumentType is returned when an argument type is not
	// accepted by a function.
	ErrInvalidArgumentType = errors.NewKind("Argument type mismatch for %s: %s")

	// ErrNoCommonType is returned when two operands cannot be unified.
	ErrNoCommonType = errors.NewKind("No common type for %s and %s in %s")

	// ErrInvalidCast is returned when a value cannot be cast to a type.
	ErrInvalidCast = errors.NewKind("Cannot cast %s to %s")

	// ErrAggregateNotAllowed is returned when an aggregate appears where no
	// grouping context exists.
	ErrAggregateNotAllowed = errors.NewKind("Aggregate function %s is not allowed here")

	// ErrNestedAggregate is returned for aggregates nested inside
	// aggregates.
	ErrNestedAggregate = errors.NewKind("Nested aggregate functions are not allowed: %s")

	// ErrMissingOverClause is returned when a function that must be
	// windowed has no OVER clause.
	ErrMissingOverClause = errors.NewKind("Missing over clause for function: %s")

	// ErrWindowingNotAllowed is returned for windowing functions in
	// clauses that cannot carry them.
	ErrWindowingNotAllowed = errors.NewKind("Windowing function %s is not allowed here")

	// ErrNullTreatmentNotSupported is returned for RESPECT/IGNORE NULLS on
	// a function that does not support it.
	ErrNullTreatmentNotSupported = errors.NewKind("Function %s does not support null treatment")

	// ErrUnexpectedToken is returned when a switch over token kinds hits a
	// kind it does not handle.
	ErrUnexpectedToken = errors.NewKind("Unexpected token %s")

	// ErrInvalidChildrenNumber is returned when WithChildren is called
	// with the wrong number of children.
	ErrInvalidChildrenNumber = errors.NewKind("%T: invalid children number, got %d, expected %d")

	// ErrInvalidConfig is returned when a configuration file cannot be
	// decoded.
	ErrInvalidConfig = errors.NewKind("invalid configuration: %s")

	// ErrInternal wraps environment failures such as catalog I/O.
	ErrInternal = errors.NewKind("internal error: %s")
)

// SemanticError ties an analysis failure to the AST node it was raised
// for.
type SemanticError struct {
	// Err is the underlying error, built from one of the error kinds.
	Err error
	// Node is the offending AST node, if known.
	Node parse.Node
	// Table and Column are set for masking and row-filtering violations.
	Table  string
	Column string
}

// NewSemanticError attaches node to err. An error that already carries a
// node is returned unchanged so the innermost position wins.
func NewSemanticError(node parse.Node, err error) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*SemanticError); ok {
		if !se.Node.Valid() {
			se.Node = node
		}
		return se
	}
	return &SemanticError{Err: err, Node: node}
}

func (e *SemanticError) Error() string {
	if !e.Node.Valid() || e.Node.Line() == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("line %d:%d %s near '%s'", e.Node.Line(), e.Node.Col(), e.Err, e.Node.Snippet())
}

// Unwrap returns the underlying error.
func (e *SemanticError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err, or any error it wraps, was built from kind.
func IsKind(err error, kind *errors.Kind) bool {
	for err != nil {
		if kind.Is(err) {
			return true
		}
		switch e := err.(type) {
		case interface{ Unwrap() error }:
			err = e.Unwrap()
		case interface{ Cause() error }:
			err = e.Cause()
		default:
			return false
		}
	}
	return false
}

// IsEnvironmentError reports whether err is an internal execution failure
// rather than a semantic one.
func IsEnvironmentError(err error) bool {
	return IsKind(err, ErrInternal)
}

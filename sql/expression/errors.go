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

package expression

import errors "gopkg.in/src-d/go-errors.v1"

var (
	// ErrInvalidNumber is returned when a numeric literal cannot be
	// represented in its type.
	ErrInvalidNumber = errors.NewKind("Invalid numerical constant %s")

	// ErrInvalidDateLiteral is returned for malformed DATE literals.
	ErrInvalidDateLiteral = errors.NewKind("Invalid date literal %s")

	// ErrInvalidTimestampLiteral is returned for malformed TIMESTAMP
	// literals.
	ErrInvalidTimestampLiteral = errors.NewKind("Invalid timestamp literal %s")

	// ErrNotAStruct is returned when a field is projected out of a
	// non-struct value.
	ErrNotAStruct = errors.NewKind("%s is of type %s, which is not a struct")

	// ErrNoSuchField is returned when a struct has no field of that name.
	ErrNoSuchField = errors.NewKind("Invalid field name %s in %s")

	// ErrUDTFNotAllowed is returned when a table-generating function is
	// used inside an expression.
	ErrUDTFNotAllowed = errors.NewKind("UDTF's are not supported outside the SELECT clause, nor nested in expressions")

	// ErrSubqueryNotAllowed is returned for subquery expressions in a
	// context that cannot rewrite them.
	ErrSubqueryNotAllowed = errors.NewKind("Unsupported SubQuery Expression %s: currently SubQuery expressions are only allowed as Where and Having Clause predicates")

	// ErrStarNotAllowed is returned when * is used where a single value
	// is expected.
	ErrStarNotAllowed = errors.NewKind("* is not allowed here")

	// ErrDistinctNotSupported is returned for f(DISTINCT ...) on a
	// function that cannot take DISTINCT.
	ErrDistinctNotSupported = errors.NewKind("DISTINCT is not supported for function %s")

	// ErrDefaultNotAllowed is returned for DEFAULT outside INSERT VALUES
	// and UPDATE SET.
	ErrDefaultNotAllowed = errors.NewKind("DEFAULT keyword is only allowed in INSERT VALUES and UPDATE SET clauses")

	// ErrNonConstantArgument is returned when an argument that must be a
	// constant is not.
	ErrNonConstantArgument = errors.NewKind("Argument %d of function %s must be a constant")
)

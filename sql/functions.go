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

import "strings"

// FunctionKind classifies a function.
type FunctionKind int

const (
	// ScalarFunction produces one value per row.
	ScalarFunction FunctionKind = iota
	// AggregateFunction produces one value per group.
	AggregateFunction
	// WindowFunction only exists with an OVER clause (rank, lead, ...).
	WindowFunction
	// TableGeneratingFunction produces zero or more rows per input row.
	TableGeneratingFunction
	// TableFunction is a partitioned table function usable in FROM.
	TableFunction
)

func (k FunctionKind) String() string {
	switch k {
	case ScalarFunction:
		return "scalar"
	case AggregateFunction:
		return "aggregate"
	case WindowFunction:
		return "window"
	case TableGeneratingFunction:
		return "udtf"
	case TableFunction:
		return "ptf"
	default:
		return "unknown"
	}
}

// AnyArgs is the MaxArgs of variadic functions.
const AnyArgs = -1

// FunctionInfo is a resolved function handle.
type FunctionInfo struct {
	Name string
	Kind FunctionKind
	// MinArgs and MaxArgs bound the argument count.
	MinArgs int
	MaxArgs int
	// RequiresOver is set for functions that are meaningless without a
	// window.
	RequiresOver bool
	// Ordered aggregates take a WITHIN GROUP ordering.
	Ordered bool
	// SupportsNullTreatment allows RESPECT NULLS / IGNORE NULLS.
	SupportsNullTreatment bool
	// SupportsDistinct allows f(DISTINCT ...).
	SupportsDistinct bool
	// Deterministic functions over constants can be folded.
	Deterministic bool
	// Infix is the operator spelling, if the function is an operator.
	Infix string
	// ReturnType computes the result type. Table-generating functions
	// return a struct whose fields are the generated columns.
	ReturnType func(args []Type) (Type, error)
	// PartialType is the type of the intermediate aggregation buffer; nil
	// means the final type.
	PartialType func(args []Type) (Type, error)
	// Eval computes the result over constant arguments. Nil disables
	// folding.
	Eval func(args []interface{}) (interface{}, error)
}

// IsAggregate reports whether the function aggregates rows.
func (f *FunctionInfo) IsAggregate() bool {
	return f.Kind == AggregateFunction
}

// IsUDTF reports whether the function generates rows.
func (f *FunctionInfo) IsUDTF() bool {
	return f.Kind == TableGeneratingFunction
}

// AcceptsArgs reports whether n arguments is a valid call.
func (f *FunctionInfo) AcceptsArgs(n int) bool {
	return n >= f.MinArgs && (f.MaxArgs == AnyArgs || n <= f.MaxArgs)
}

// FunctionRegistry resolves function names.
type FunctionRegistry interface {
	Function(name string) (*FunctionInfo, bool)
}

// NormalizeFunctionName lower-cases a name and strips a default database
// qualifier.
func NormalizeFunctionName(name string) string {
	name = strings.ToLower(name)
	name = strings.TrimPrefix(name, "default.")
	return name
}

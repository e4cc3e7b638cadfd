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

import (
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression/function"
)

// Names of the built-in functions the planner synthesizes.
const (
	AndFunctionName       = "and"
	OrFunctionName        = "or"
	NotFunctionName       = "not"
	EqualsFunctionName    = "="
	NullSafeEqualsName    = "<=>"
	IsNullFunctionName    = "isnull"
	IsNotNullFunctionName = "isnotnull"
)

func builtin(name string) *sql.FunctionInfo {
	return function.Default().MustFunction(name)
}

// NewAnd combines the non-nil predicates with AND. A single predicate is
// returned as is and no predicate yields nil.
func NewAnd(preds ...sql.Expression) sql.Expression {
	var args []sql.Expression
	for _, p := range preds {
		if p == nil {
			continue
		}
		args = append(args, SplitConjunction(p)...)
	}
	switch len(args) {
	case 0:
		return nil
	case 1:
		return args[0]
	}
	return NewFunc(builtin(AndFunctionName), sql.BooleanType, args...)
}

// NewOr combines two predicates with OR.
func NewOr(a, b sql.Expression) sql.Expression {
	return NewFunc(builtin(OrFunctionName), sql.BooleanType, a, b)
}

// NewNot negates a predicate.
func NewNot(e sql.Expression) sql.Expression {
	return NewFunc(builtin(NotFunctionName), sql.BooleanType, e)
}

// NewIsNotNull tests e for non-NULL.
func NewIsNotNull(e sql.Expression) sql.Expression {
	return NewFunc(builtin(IsNotNullFunctionName), sql.BooleanType, e)
}

// NewIsNull tests e for NULL.
func NewIsNull(e sql.Expression) sql.Expression {
	return NewFunc(builtin(IsNullFunctionName), sql.BooleanType, e)
}

// NewComparison builds a comparison, casting both operands to their
// common comparison type.
func NewComparison(op string, left, right sql.Expression) (sql.Expression, error) {
	info, ok := function.Default().Function(op)
	if !ok {
		return nil, sql.ErrInvalidFunction.New(op)
	}
	common, ok := sql.CommonTypeForComparison(left.Type(), right.Type())
	if !ok {
		return nil, sql.ErrNoCommonType.New(left.Type(), right.Type(), op)
	}
	return NewFunc(info, sql.BooleanType, NewCast(left, common), NewCast(right, common)), nil
}

// NewEquals is NewComparison("=", ...).
func NewEquals(left, right sql.Expression) (sql.Expression, error) {
	return NewComparison(EqualsFunctionName, left, right)
}

// NewBuiltin calls a built-in function, typing it from its arguments.
func NewBuiltin(name string, args ...sql.Expression) (sql.Expression, error) {
	info, ok := function.Default().Function(name)
	if !ok {
		return nil, sql.ErrInvalidFunction.New(name)
	}
	types := make([]sql.Type, len(args))
	for i, a := range args {
		types[i] = a.Type()
	}
	typ, err := info.ReturnType(types)
	if err != nil {
		return nil, err
	}
	return NewFunc(info, typ, args...), nil
}

// ToBoolean coerces a filter predicate: booleans pass, other primitives
// are cast and complex values are tested for non-NULL.
func ToBoolean(e sql.Expression) sql.Expression {
	t := e.Type()
	switch {
	case t.Kind == sql.Boolean:
		return e
	case t.IsPrimitive():
		return NewCast(e, sql.BooleanType)
	default:
		return NewIsNotNull(e)
	}
}

// IsComparison reports whether e is a binary comparison by name.
func IsComparison(e sql.Expression, names ...string) bool {
	f, ok := e.(*Func)
	if !ok || len(f.Args) != 2 {
		return false
	}
	if len(names) == 0 {
		names = []string{"=", "<=>", "<>", "<", "<=", ">", ">="}
	}
	for _, n := range names {
		if f.Name == n {
			return true
		}
	}
	return false
}

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
)

// TransformUp applies a transformation function to the given expression from the
// bottom up.
func TransformUp(e sql.Expression, f sql.TransformExprFunc) (sql.Expression, error) {
	children := e.Children()
	if len(children) == 0 {
		return f(e)
	}

	newChildren := make([]sql.Expression, len(children))
	for i, c := range children {
		c, err := TransformUp(c, f)
		if err != nil {
			return nil, err
		}
		newChildren[i] = c
	}

	e, err := e.WithChildren(newChildren...)
	if err != nil {
		return nil, err
	}

	return f(e)
}

// ReplaceColumns rewrites column references through mapping, keyed by
// internal name. Columns missing from the mapping are kept.
func ReplaceColumns(e sql.Expression, mapping map[string]sql.Expression) (sql.Expression, error) {
	return TransformUp(e, func(e sql.Expression) (sql.Expression, error) {
		if c, ok := e.(*Column); ok {
			if r, ok := mapping[c.Name]; ok {
				return r, nil
			}
		}
		return e, nil
	})
}

// Equal reports structural equality of two expressions.
func Equal(a, b sql.Expression) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String() && a.Type().Equals(b.Type())
}

// IndexOf returns the position of e in list, or -1.
func IndexOf(list []sql.Expression, e sql.Expression) int {
	for i, x := range list {
		if Equal(x, e) {
			return i
		}
	}
	return -1
}

// SplitConjunction breaks an AND tree into its conjuncts.
func SplitConjunction(e sql.Expression) []sql.Expression {
	if f, ok := e.(*Func); ok && f.Name == AndFunctionName {
		var out []sql.Expression
		for _, a := range f.Args {
			out = append(out, SplitConjunction(a)...)
		}
		return out
	}
	return []sql.Expression{e}
}

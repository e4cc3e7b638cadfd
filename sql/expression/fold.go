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

// Fold evaluates a call whose arguments are all constants. Calls that
// cannot be folded are returned unchanged; an evaluation failure is not an
// error, the call is simply kept.
func Fold(e sql.Expression) sql.Expression {
	f, ok := e.(*Func)
	if !ok || f.Info == nil || !f.Info.Deterministic || f.Info.Kind != sql.ScalarFunction {
		return e
	}

	if s := simplifyBoolean(f); s != nil {
		return s
	}

	values := make([]interface{}, len(f.Args))
	for i, a := range f.Args {
		c, ok := a.(*Constant)
		if !ok {
			return e
		}
		values[i] = c.Value
	}

	var v interface{}
	var err error
	switch {
	case f.IsCast():
		v, err = f.Typ.Convert(values[0])
	case f.Info.Eval != nil:
		v, err = f.Info.Eval(values)
		if err == nil {
			v, err = f.Typ.Convert(v)
		}
	default:
		return e
	}
	if err != nil {
		return e
	}
	return &Constant{Value: v, Typ: f.Typ, FoldedFrom: f.String()}
}

// FoldTree folds bottom up.
func FoldTree(e sql.Expression) sql.Expression {
	folded, err := TransformUp(e, func(e sql.Expression) (sql.Expression, error) {
		return Fold(e), nil
	})
	if err != nil {
		return e
	}
	return folded
}

// simplifyBoolean short-circuits AND/OR over a constant operand, e.g.
// x AND false is false and x OR false is x.
func simplifyBoolean(f *Func) sql.Expression {
	if f.Name != AndFunctionName && f.Name != OrFunctionName {
		return nil
	}
	absorbing := f.Name == OrFunctionName
	var rest []sql.Expression
	for _, a := range f.Args {
		c, ok := a.(*Constant)
		if !ok || c.IsNull() {
			rest = append(rest, a)
			continue
		}
		b, isBool := c.Value.(bool)
		if !isBool {
			rest = append(rest, a)
			continue
		}
		if b == absorbing {
			return NewBoolean(absorbing)
		}
	}
	switch len(rest) {
	case len(f.Args):
		return nil
	case 0:
		return NewBoolean(!absorbing)
	case 1:
		return rest[0]
	}
	nf := *f
	nf.Args = rest
	return &nf
}

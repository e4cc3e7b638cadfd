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
	"fmt"
	"strings"

	"github.com/difin/hive-sub000/sql"
)

// Func is a call to a scalar, aggregate, window or table-generating
// function, or an operator.
type Func struct {
	Name     string
	Info     *sql.FunctionInfo
	Args     []sql.Expression
	Typ      sql.Type
	Distinct bool
	// Star marks f(*).
	Star bool
}

var _ sql.Expression = (*Func)(nil)

// NewFunc creates a call to a resolved function.
func NewFunc(info *sql.FunctionInfo, typ sql.Type, args ...sql.Expression) *Func {
	return &Func{Name: info.Name, Info: info, Args: args, Typ: typ}
}

// CastFunctionName is the name casts are rendered under.
const CastFunctionName = "CAST"

var castInfo = &sql.FunctionInfo{
	Name:          CastFunctionName,
	Kind:          sql.ScalarFunction,
	MinArgs:       1,
	MaxArgs:       1,
	Deterministic: true,
}

// NewCast converts e to typ. It returns e unchanged if it already has the
// type.
func NewCast(e sql.Expression, typ sql.Type) sql.Expression {
	if e.Type().Equals(typ) {
		return e
	}
	if c, ok := e.(*Constant); ok {
		if v, err := typ.Convert(c.Value); err == nil {
			return &Constant{Value: v, Typ: typ, FoldedFrom: c.String()}
		}
	}
	return &Func{Name: CastFunctionName, Info: castInfo, Args: []sql.Expression{e}, Typ: typ}
}

// IsCast reports whether the call is a cast.
func (f *Func) IsCast() bool { return f.Info == castInfo }

// IsAggregate reports whether the call is to an aggregate function.
func (f *Func) IsAggregate() bool { return f.Info != nil && f.Info.IsAggregate() }

// Is reports whether the call is to the named function.
func (f *Func) Is(name string) bool { return f.Name == name }

// Type implements the Expression interface.
func (f *Func) Type() sql.Type { return f.Typ }

// Children implements the Expression interface.
func (f *Func) Children() []sql.Expression { return f.Args }

// WithChildren implements the Expression interface.
func (f *Func) WithChildren(children ...sql.Expression) (sql.Expression, error) {
	nf := *f
	nf.Args = children
	return &nf, nil
}

func (f *Func) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}

	switch {
	case f.IsCast():
		return fmt.Sprintf("CAST( %s AS %s)", args[0], f.Typ)
	case f.Info != nil && f.Info.Infix != "" && len(args) == 2:
		return fmt.Sprintf("(%s %s %s)", args[0], f.Info.Infix, args[1])
	case f.Info != nil && f.Info.Infix != "" && len(args) == 1:
		return fmt.Sprintf("%s %s", f.Info.Infix, args[0])
	case f.Info != nil && f.Info.Infix != "" && len(args) > 2:
		return "(" + strings.Join(args, " "+f.Info.Infix+" ") + ")"
	case f.Star:
		return f.Name + "()"
	case f.Distinct:
		return fmt.Sprintf("%s(DISTINCT %s)", f.Name, strings.Join(args, ", "))
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(args, ", "))
}

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

package function

import (
	"strconv"

	"github.com/difin/hive-sub000/sql"
)

type returnTypeFunc func(args []sql.Type) (sql.Type, error)

func fixed(t sql.Type) returnTypeFunc {
	return func([]sql.Type) (sql.Type, error) { return t, nil }
}

func sameAsArg(i int) returnTypeFunc {
	return func(args []sql.Type) (sql.Type, error) {
		if t := args[i]; t.Kind != sql.Void {
			return t, nil
		}
		return sql.StringType, nil
	}
}

func requirePrimitive(name string, args []sql.Type) error {
	for _, a := range args {
		if !a.IsPrimitive() {
			return sql.ErrInvalidArgumentType.New(name, "only primitive type arguments are accepted but "+a.String()+" was passed")
		}
	}
	return nil
}

func toNumeric(t sql.Type) (sql.Type, bool) {
	switch {
	case t.IsNumeric():
		return t, true
	case t.IsStringGroup(), t.Kind == sql.Void:
		return sql.DoubleType, true
	}
	return sql.Type{}, false
}

// arithmetic returns the result type of +, - and *, widening to the
// larger operand and promoting strings to double.
func arithmetic(name string) returnTypeFunc {
	return func(args []sql.Type) (sql.Type, error) {
		if len(args) == 1 {
			t, ok := toNumeric(args[0])
			if !ok {
				return sql.Type{}, sql.ErrInvalidArgumentType.New(name, "numeric argument expected but "+args[0].String()+" was passed")
			}
			return t, nil
		}
		a, ok1 := toNumeric(args[0])
		b, ok2 := toNumeric(args[1])
		if !ok1 || !ok2 {
			return sql.Type{}, sql.ErrInvalidArgumentType.New(name, "numeric arguments expected but "+args[0].String()+" and "+args[1].String()+" were passed")
		}
		if a.Kind == sql.Decimal || b.Kind == sql.Decimal {
			if a.Kind == sql.Float || a.Kind == sql.Double || b.Kind == sql.Float || b.Kind == sql.Double {
				return sql.DoubleType, nil
			}
			t, _ := sql.CommonTypeForComparison(a, b)
			if name == "*" {
				a, b := decimalOf(a), decimalOf(b)
				return sql.DecimalType(a.Precision+b.Precision+1, a.Scale+b.Scale), nil
			}
			return sql.DecimalType(t.Precision+1, t.Scale), nil
		}
		t, _ := sql.CommonTypeForComparison(a, b)
		return t, nil
	}
}

func decimalOf(t sql.Type) sql.Type {
	if t.Kind == sql.Decimal {
		return t
	}
	d, _ := sql.CommonTypeForComparison(t, sql.DecimalType(1, 0))
	return d
}

// divide returns double unless a decimal is involved.
func divide(args []sql.Type) (sql.Type, error) {
	a, ok1 := toNumeric(args[0])
	b, ok2 := toNumeric(args[1])
	if !ok1 || !ok2 {
		return sql.Type{}, sql.ErrInvalidArgumentType.New("/", "numeric arguments expected")
	}
	if a.Kind == sql.Decimal || b.Kind == sql.Decimal {
		if a.Kind == sql.Float || a.Kind == sql.Double || b.Kind == sql.Float || b.Kind == sql.Double {
			return sql.DoubleType, nil
		}
		a, b := decimalOf(a), decimalOf(b)
		scale := a.Scale + b.Precision + 1
		if scale < 6 {
			scale = 6
		}
		return sql.DecimalType(a.Precision-a.Scale+b.Scale+scale, scale), nil
	}
	return sql.DoubleType, nil
}

func comparison(name string) returnTypeFunc {
	return func(args []sql.Type) (sql.Type, error) {
		if _, ok := sql.CommonTypeForComparison(args[0], args[1]); !ok {
			return sql.Type{}, sql.ErrNoCommonType.New(args[0], args[1], name)
		}
		return sql.BooleanType, nil
	}
}

func booleanArgs(name string) returnTypeFunc {
	return func(args []sql.Type) (sql.Type, error) {
		for _, a := range args {
			if a.Kind != sql.Boolean && a.Kind != sql.Void {
				return sql.Type{}, sql.ErrInvalidArgumentType.New(name, "boolean argument expected but "+a.String()+" was passed")
			}
		}
		return sql.BooleanType, nil
	}
}

// commonOf unifies every argument starting at from.
func commonOf(name string, from int) returnTypeFunc {
	return func(args []sql.Type) (sql.Type, error) {
		t := sql.VoidType
		for _, a := range args[from:] {
			u, ok := sql.CommonTypeForUnion(t, a)
			if !ok {
				return sql.Type{}, sql.ErrNoCommonType.New(t, a, name)
			}
			t = u
		}
		return t, nil
	}
}

func sumType(args []sql.Type) (sql.Type, error) {
	t := args[0]
	switch {
	case t.IsIntegral(), t.Kind == sql.Void:
		return sql.BigIntType, nil
	case t.Kind == sql.Decimal:
		return sql.DecimalType(sql.MaxDecimalPrecision, t.Scale), nil
	case t.Kind == sql.Float, t.Kind == sql.Double, t.IsStringGroup():
		return sql.DoubleType, nil
	}
	return sql.Type{}, sql.ErrInvalidArgumentType.New("sum", "only numeric or string type arguments are accepted but "+t.String()+" is passed")
}

func avgType(args []sql.Type) (sql.Type, error) {
	t := args[0]
	switch {
	case t.Kind == sql.Decimal:
		return sql.DecimalType(t.Precision+4, t.Scale+4), nil
	case t.IsNumeric(), t.IsStringGroup(), t.Kind == sql.Void, t.Kind == sql.Timestamp:
		return sql.DoubleType, nil
	}
	return sql.Type{}, sql.ErrInvalidArgumentType.New("avg", "only numeric or string type arguments are accepted but "+t.String()+" is passed")
}

func avgPartialType(args []sql.Type) (sql.Type, error) {
	sum, err := sumType(args)
	if err != nil {
		return sql.Type{}, err
	}
	return sql.StructOf(
		sql.StructField{Name: "count", Type: sql.BigIntType},
		sql.StructField{Name: "sum", Type: sum},
	), nil
}

func minMaxType(name string) returnTypeFunc {
	return func(args []sql.Type) (sql.Type, error) {
		if args[0].Kind == sql.Map {
			return sql.Type{}, sql.ErrInvalidArgumentType.New(name, "map type is not comparable")
		}
		return sameAsArg(0)(args)
	}
}

func explodeType(args []sql.Type) (sql.Type, error) {
	switch t := args[0]; t.Kind {
	case sql.Array:
		return sql.StructOf(sql.StructField{Name: "col", Type: *t.Elem}), nil
	case sql.Map:
		return sql.StructOf(
			sql.StructField{Name: "key", Type: *t.Key},
			sql.StructField{Name: "value", Type: *t.Value},
		), nil
	default:
		return sql.Type{}, sql.ErrInvalidArgumentType.New("explode", "explode() takes an array or a map as a parameter")
	}
}

func posexplodeType(args []sql.Type) (sql.Type, error) {
	t := args[0]
	if t.Kind != sql.Array {
		return sql.Type{}, sql.ErrInvalidArgumentType.New("posexplode", "posexplode() takes an array as a parameter")
	}
	return sql.StructOf(
		sql.StructField{Name: "pos", Type: sql.IntType},
		sql.StructField{Name: "val", Type: *t.Elem},
	), nil
}

func inlineType(args []sql.Type) (sql.Type, error) {
	t := args[0]
	if t.Kind != sql.Array || t.Elem.Kind != sql.Struct {
		return sql.Type{}, sql.ErrInvalidArgumentType.New("inline", "inline() takes an array of structs as a parameter")
	}
	return *t.Elem, nil
}

func replicateRowsType(args []sql.Type) (sql.Type, error) {
	if !args[0].IsIntegral() {
		return sql.Type{}, sql.ErrInvalidArgumentType.New("replicate_rows", "the first argument must be an integer")
	}
	fields := make([]sql.StructField, len(args))
	for i, a := range args {
		fields[i] = sql.StructField{Name: "col" + strconv.Itoa(i), Type: a}
	}
	return sql.StructOf(fields...), nil
}

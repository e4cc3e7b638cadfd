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
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/difin/hive-sub000/sql"
)

func scalar(name string, min, max int, rt returnTypeFunc, eval func([]interface{}) (interface{}, error)) *sql.FunctionInfo {
	return &sql.FunctionInfo{
		Name:          name,
		Kind:          sql.ScalarFunction,
		MinArgs:       min,
		MaxArgs:       max,
		Deterministic: true,
		ReturnType:    rt,
		Eval:          eval,
	}
}

func nondeterministic(f *sql.FunctionInfo) *sql.FunctionInfo {
	f.Deterministic = false
	f.Eval = nil
	return f
}

var scalars = []*sql.FunctionInfo{
	scalar("concat", 1, sql.AnyArgs, fixed(sql.StringType), concatEval),
	scalar("concat_ws", 2, sql.AnyArgs, fixed(sql.StringType), nil),
	scalar("upper", 1, 1, fixed(sql.StringType), stringEval(func(s string) interface{} { return strings.ToUpper(s) })),
	scalar("lower", 1, 1, fixed(sql.StringType), stringEval(func(s string) interface{} { return strings.ToLower(s) })),
	scalar("trim", 1, 1, fixed(sql.StringType), stringEval(func(s string) interface{} { return strings.TrimSpace(s) })),
	scalar("ltrim", 1, 1, fixed(sql.StringType), stringEval(func(s string) interface{} { return strings.TrimLeft(s, " ") })),
	scalar("rtrim", 1, 1, fixed(sql.StringType), stringEval(func(s string) interface{} { return strings.TrimRight(s, " ") })),
	scalar("length", 1, 1, fixed(sql.IntType), stringEval(func(s string) interface{} { return int32(utf8.RuneCountInString(s)) })),
	scalar("reverse", 1, 1, fixed(sql.StringType), stringEval(reverse)),
	scalar("substr", 2, 3, fixed(sql.StringType), substrEval),
	scalar("split", 2, 2, fixed(sql.ArrayOf(sql.StringType)), nil),
	scalar("coalesce", 1, sql.AnyArgs, commonOf("coalesce", 0), coalesceEval),
	scalar("nvl", 2, 2, commonOf("nvl", 0), coalesceEval),
	scalar("if", 3, 3, commonOf("if", 1), ifEval),
	scalar("when", 2, sql.AnyArgs, whenType, nil),
	scalar("case", 3, sql.AnyArgs, caseType, nil),
	scalar("abs", 1, 1, arithmetic("abs"), absEval),
	scalar("floor", 1, 1, fixed(sql.BigIntType), roundingEval(math.Floor)),
	scalar("ceil", 1, 1, fixed(sql.BigIntType), roundingEval(math.Ceil)),
	scalar("round", 1, 2, roundType, nil),
	scalar("size", 1, 1, fixed(sql.IntType), nil),
	scalar("array", 0, sql.AnyArgs, arrayType, nil),
	scalar("map", 0, sql.AnyArgs, mapType, nil),
	scalar("struct", 1, sql.AnyArgs, structType, nil),
	scalar("named_struct", 2, sql.AnyArgs, namedStructType, nil),
	scalar("index", 2, 2, indexType, nil),
	scalar("hash", 0, sql.AnyArgs, fixed(sql.IntType), nil),
	scalar("to_date", 1, 1, fixed(sql.DateType), nil),
	scalar("year", 1, 1, fixed(sql.IntType), nil),
	scalar("month", 1, 1, fixed(sql.IntType), nil),
	scalar("day", 1, 1, fixed(sql.IntType), nil),
	scalar("datediff", 2, 2, fixed(sql.IntType), nil),
	scalar("date_add", 2, 2, fixed(sql.DateType), nil),
	scalar("from_unixtime", 1, 2, fixed(sql.StringType), nil),
	scalar("assert_true", 1, 1, fixed(sql.VoidType), nil),
	scalar("sq_count_check", 1, 1, fixed(sql.BigIntType), nil),
	scalar("grouping", 2, 2, fixed(sql.BigIntType), nil),
	scalar("enforce_constraint", 1, 1, fixed(sql.BooleanType), nil),
	nondeterministic(scalar("rand", 0, 1, fixed(sql.DoubleType), nil)),
	nondeterministic(scalar("uuid", 0, 0, fixed(sql.StringType), nil)),
	nondeterministic(scalar("current_date", 0, 0, fixed(sql.DateType), nil)),
	nondeterministic(scalar("current_timestamp", 0, 0, fixed(sql.TimestampType), nil)),
	nondeterministic(scalar("unix_timestamp", 0, 2, fixed(sql.BigIntType), nil)),
	nondeterministic(scalar("current_user", 0, 0, fixed(sql.StringType), nil)),
	nondeterministic(scalar("reflect", 2, sql.AnyArgs, fixed(sql.StringType), nil)),
}

func reverse(s string) interface{} {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func substrEval(args []interface{}) (interface{}, error) {
	if anyNull(args) {
		return nil, nil
	}
	r := []rune(cast.ToString(args[0]))
	start := cast.ToInt(args[1])
	length := len(r)
	if len(args) == 3 {
		length = cast.ToInt(args[2])
	}
	switch {
	case start > 0:
		start--
	case start < 0:
		start = len(r) + start
	}
	if start < 0 || start >= len(r) || length <= 0 {
		return "", nil
	}
	end := start + length
	if end > len(r) {
		end = len(r)
	}
	return string(r[start:end]), nil
}

func absEval(args []interface{}) (interface{}, error) {
	if anyNull(args) {
		return nil, nil
	}
	switch v := args[0].(type) {
	case decimal.Decimal:
		return v.Abs(), nil
	case float32:
		return math.Abs(float64(v)), nil
	case float64:
		return math.Abs(v), nil
	}
	n, err := cast.ToInt64E(args[0])
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = -n
	}
	return n, nil
}

func roundingEval(f func(float64) float64) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		if anyNull(args) {
			return nil, nil
		}
		if d, ok := args[0].(decimal.Decimal); ok {
			return int64(f(d.InexactFloat64())), nil
		}
		v, err := cast.ToFloat64E(args[0])
		if err != nil {
			return nil, err
		}
		return int64(f(v)), nil
	}
}

func roundType(args []sql.Type) (sql.Type, error) {
	t, ok := toNumeric(args[0])
	if !ok {
		return sql.Type{}, sql.ErrInvalidArgumentType.New("round", "numeric argument expected")
	}
	return t, nil
}

// whenType types CASE WHEN c1 THEN v1 ... [ELSE e] END.
func whenType(args []sql.Type) (sql.Type, error) {
	t := sql.VoidType
	for i := 0; i < len(args); i++ {
		isCondition := i%2 == 0 && i != len(args)-1
		if isCondition {
			if args[i].Kind != sql.Boolean && args[i].Kind != sql.Void {
				return sql.Type{}, sql.ErrInvalidArgumentType.New("when", "WHEN condition must be boolean but "+args[i].String()+" was passed")
			}
			continue
		}
		u, ok := sql.CommonTypeForUnion(t, args[i])
		if !ok {
			return sql.Type{}, sql.ErrNoCommonType.New(t, args[i], "CASE")
		}
		t = u
	}
	return t, nil
}

// caseType types CASE x WHEN k1 THEN v1 ... [ELSE e] END.
func caseType(args []sql.Type) (sql.Type, error) {
	t := sql.VoidType
	for i := 1; i < len(args); i++ {
		isKey := i%2 == 1 && i != len(args)-1
		if isKey {
			if _, ok := sql.CommonTypeForComparison(args[0], args[i]); !ok {
				return sql.Type{}, sql.ErrNoCommonType.New(args[0], args[i], "CASE")
			}
			continue
		}
		u, ok := sql.CommonTypeForUnion(t, args[i])
		if !ok {
			return sql.Type{}, sql.ErrNoCommonType.New(t, args[i], "CASE")
		}
		t = u
	}
	return t, nil
}

func arrayType(args []sql.Type) (sql.Type, error) {
	elem, err := commonOf("array", 0)(args)
	if err != nil {
		return sql.Type{}, err
	}
	if elem.Kind == sql.Void {
		elem = sql.StringType
	}
	return sql.ArrayOf(elem), nil
}

func mapType(args []sql.Type) (sql.Type, error) {
	if len(args)%2 != 0 {
		return sql.Type{}, sql.ErrInvalidArgumentType.New("map", "arguments must be in key/value pairs")
	}
	k, v := sql.VoidType, sql.VoidType
	for i := 0; i < len(args); i += 2 {
		var ok bool
		if k, ok = sql.CommonTypeForUnion(k, args[i]); !ok {
			return sql.Type{}, sql.ErrNoCommonType.New(k, args[i], "map")
		}
		if v, ok = sql.CommonTypeForUnion(v, args[i+1]); !ok {
			return sql.Type{}, sql.ErrNoCommonType.New(v, args[i+1], "map")
		}
	}
	if k.Kind == sql.Void {
		k = sql.StringType
	}
	if v.Kind == sql.Void {
		v = sql.StringType
	}
	return sql.MapOf(k, v), nil
}

func structType(args []sql.Type) (sql.Type, error) {
	fields := make([]sql.StructField, len(args))
	for i, a := range args {
		fields[i] = sql.StructField{Name: "col" + itoa(i+1), Type: a}
	}
	return sql.StructOf(fields...), nil
}

// namedStructType only sees the value types; field names are constants the
// type checker fills in.
func namedStructType(args []sql.Type) (sql.Type, error) {
	if len(args)%2 != 0 {
		return sql.Type{}, sql.ErrInvalidArgumentType.New("named_struct", "arguments must be in name/value pairs")
	}
	fields := make([]sql.StructField, 0, len(args)/2)
	for i := 1; i < len(args); i += 2 {
		fields = append(fields, sql.StructField{Name: "col" + itoa(len(fields)+1), Type: args[i]})
	}
	return sql.StructOf(fields...), nil
}

func indexType(args []sql.Type) (sql.Type, error) {
	switch t := args[0]; t.Kind {
	case sql.Array:
		if !args[1].IsIntegral() {
			return sql.Type{}, sql.ErrInvalidArgumentType.New("[]", "non-constant expressions for array indexes are not supported")
		}
		return *t.Elem, nil
	case sql.Map:
		return *t.Value, nil
	}
	return sql.Type{}, sql.ErrInvalidArgumentType.New("[]", "[] not valid on type "+args[0].String())
}

func itoa(i int) string {
	return cast.ToString(i)
}

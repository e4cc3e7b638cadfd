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
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/difin/hive-sub000/sql"
)

func TestRegistryLookup(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()

	f, ok := r.Function("COUNT")
	require.True(ok)
	require.True(f.IsAggregate())

	f, ok = r.Function("default.upper")
	require.True(ok)
	require.Equal("upper", f.Name)

	f, ok = r.Function("TOK_ISNOTNULL")
	require.True(ok)
	require.Equal("isnotnull", f.Name)

	f, ok = r.Function("!=")
	require.True(ok)
	require.Equal("<>", f.Name)

	f, ok = r.Function("rank")
	require.True(ok)
	require.True(f.RequiresOver)

	f, ok = r.Function("explode")
	require.True(ok)
	require.True(f.IsUDTF())

	_, ok = r.Function("no_such_function")
	require.False(ok)
}

func TestReturnTypes(t *testing.T) {
	r := Default()
	testCases := []struct {
		fn       string
		args     []sql.Type
		expected sql.Type
	}{
		{"count", nil, sql.BigIntType},
		{"sum", []sql.Type{sql.IntType}, sql.BigIntType},
		{"sum", []sql.Type{sql.DoubleType}, sql.DoubleType},
		{"sum", []sql.Type{sql.DecimalType(10, 2)}, sql.DecimalType(38, 2)},
		{"avg", []sql.Type{sql.IntType}, sql.DoubleType},
		{"avg", []sql.Type{sql.DecimalType(10, 2)}, sql.DecimalType(14, 6)},
		{"max", []sql.Type{sql.StringType}, sql.StringType},
		{"+", []sql.Type{sql.IntType, sql.IntType}, sql.IntType},
		{"+", []sql.Type{sql.IntType, sql.BigIntType}, sql.BigIntType},
		{"+", []sql.Type{sql.IntType, sql.StringType}, sql.DoubleType},
		{"/", []sql.Type{sql.IntType, sql.IntType}, sql.DoubleType},
		{"=", []sql.Type{sql.IntType, sql.StringType}, sql.BooleanType},
		{"coalesce", []sql.Type{sql.VoidType, sql.IntType, sql.BigIntType}, sql.BigIntType},
		{"when", []sql.Type{sql.BooleanType, sql.IntType, sql.DoubleType}, sql.DoubleType},
		{"explode", []sql.Type{sql.ArrayOf(sql.IntType)}, sql.StructOf(sql.StructField{Name: "col", Type: sql.IntType})},
		{"array", []sql.Type{sql.IntType, sql.BigIntType}, sql.ArrayOf(sql.BigIntType)},
	}

	for _, tt := range testCases {
		t.Run(tt.fn, func(t *testing.T) {
			f, ok := r.Function(tt.fn)
			require.True(t, ok)
			typ, err := f.ReturnType(tt.args)
			require.NoError(t, err)
			require.True(t, tt.expected.Equals(typ), "expected %s, got %s", tt.expected, typ)
		})
	}
}

func TestReturnTypeErrors(t *testing.T) {
	r := Default()
	testCases := []struct {
		fn   string
		args []sql.Type
	}{
		{"sum", []sql.Type{sql.ArrayOf(sql.IntType)}},
		{"=", []sql.Type{sql.BooleanType, sql.IntType}},
		{"and", []sql.Type{sql.IntType, sql.BooleanType}},
		{"explode", []sql.Type{sql.IntType}},
		{"when", []sql.Type{sql.IntType, sql.IntType}},
	}
	for _, tt := range testCases {
		t.Run(tt.fn, func(t *testing.T) {
			f := r.MustFunction(tt.fn)
			_, err := f.ReturnType(tt.args)
			require.Error(t, err)
		})
	}
}

func TestEval(t *testing.T) {
	r := Default()
	testCases := []struct {
		fn       string
		args     []interface{}
		expected interface{}
	}{
		{"+", []interface{}{int32(1), int32(2)}, int64(3)},
		{"*", []interface{}{1.5, int32(2)}, 3.0},
		{"/", []interface{}{int32(1), int32(0)}, nil},
		{"-", []interface{}{decimal.RequireFromString("1.5"), int32(1)}, decimal.RequireFromString("0.5")},
		{"=", []interface{}{"a", "a"}, true},
		{"<", []interface{}{int32(1), int64(2)}, true},
		{"=", []interface{}{nil, int32(1)}, nil},
		{"<=>", []interface{}{nil, nil}, true},
		{"and", []interface{}{true, nil}, nil},
		{"and", []interface{}{false, nil}, false},
		{"or", []interface{}{nil, true}, true},
		{"not", []interface{}{true}, false},
		{"concat", []interface{}{"a", int32(1)}, "a1"},
		{"upper", []interface{}{"ab"}, "AB"},
		{"substr", []interface{}{"hello", int32(2), int32(3)}, "ell"},
		{"like", []interface{}{"hello", "h%o"}, true},
		{"like", []interface{}{"hello", "h_o"}, false},
		{"coalesce", []interface{}{nil, "x"}, "x"},
		{"isnull", []interface{}{nil}, true},
	}

	for _, tt := range testCases {
		t.Run(tt.fn, func(t *testing.T) {
			f := r.MustFunction(tt.fn)
			require.NotNil(t, f.Eval)
			v, err := f.Eval(tt.args)
			require.NoError(t, err)
			if d, ok := tt.expected.(decimal.Decimal); ok {
				require.True(t, d.Equal(v.(decimal.Decimal)))
				return
			}
			require.Equal(t, tt.expected, v)
		})
	}
}

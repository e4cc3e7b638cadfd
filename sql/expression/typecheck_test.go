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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression/function"
)

func testResolver() *sql.RowResolver {
	rr := sql.NewRowResolver()
	rr.Put("t", "a", sql.NewColumnInfo("a", sql.IntType, "t", false))
	rr.Put("t", "b", sql.NewColumnInfo("b", sql.StringType, "t", false))
	rr.Put("t", "s", sql.NewColumnInfo("s", sql.MustParseType("struct<x:int,y:string>"), "t", false))
	rr.Put("t", "arr", sql.NewColumnInfo("arr", sql.ArrayOf(sql.BigIntType), "t", false))
	rr.Put("u", "a", sql.NewColumnInfo("u_a", sql.BigIntType, "u", false))
	rr.Put("u", "t", sql.NewColumnInfo("u_t", sql.StringType, "u", false))
	return rr
}

func TestTypeCheck(t *testing.T) {
	testCases := []struct {
		name     string
		ast      string
		expected string
		typ      sql.Type
	}{
		{"column", `(. (TOK_TABLE_OR_COL t) b)`, "b", sql.StringType},
		{"unqualified", `(TOK_TABLE_OR_COL b)`, "b", sql.StringType},
		{"int literal", `1`, "1", sql.IntType},
		{"bigint literal", `1L`, "1L", sql.BigIntType},
		{"decimal literal", `1.25`, "1.25", sql.DecimalType(3, 2)},
		{"string literal", `'x'`, "'x'", sql.StringType},
		{"null", `TOK_NULL`, "null", sql.VoidType},
		{"struct field", `(. (TOK_TABLE_OR_COL s) x)`, "s.x", sql.IntType},
		{"array index", `([ (TOK_TABLE_OR_COL arr) 0)`, "index(arr, 0)", sql.BigIntType},
		{"arithmetic", `(+ (. (TOK_TABLE_OR_COL t) a) 1)`, "(a + 1)", sql.IntType},
		{"comparison cast", `(= (. (TOK_TABLE_OR_COL t) a) (. (TOK_TABLE_OR_COL u) a))`, "(CAST( a AS bigint) = u_a)", sql.BooleanType},
		{"string vs int", `(> (TOK_TABLE_OR_COL b) 5)`, "(CAST( b AS double) > 5.0)", sql.BooleanType},
		{"folded", `(+ 1 2)`, "3", sql.IntType},
		{"folded boolean", `(and (> (. (TOK_TABLE_OR_COL t) a) 1) true)`, "(a > 1)", sql.BooleanType},
		{"cast", `(TOK_FUNCTION TOK_BIGINT (TOK_TABLE_OR_COL b))`, "CAST( b AS bigint)", sql.BigIntType},
		{"cast decimal", `(TOK_FUNCTION (TOK_DECIMAL 10 2) (. (TOK_TABLE_OR_COL t) a))`, "CAST( a AS decimal(10,2))", sql.DecimalType(10, 2)},
		{"function", `(TOK_FUNCTION upper (TOK_TABLE_OR_COL b))`, "upper(b)", sql.StringType},
		{"isnotnull", `(TOK_FUNCTION TOK_ISNOTNULL (TOK_TABLE_OR_COL b))`, "isnotnull(b)", sql.BooleanType},
		{"in", `(TOK_FUNCTION in (. (TOK_TABLE_OR_COL t) a) 1 2)`, "in(a, 1, 2)", sql.BooleanType},
		{"negative", `(- (. (TOK_TABLE_OR_COL t) a))`, "- a", sql.IntType},
		{"hash star", `(TOK_FUNCTION hash (TOK_ALLCOLREF (TOK_TABNAME u)))`, "hash(u_a, u_t)", sql.IntType},
		{"named struct", `(TOK_FUNCTION named_struct 'k' (. (TOK_TABLE_OR_COL t) a))`, "named_struct('k', a)", sql.MustParseType("struct<k:int>")},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			tc := NewTypeCheckCtx(testResolver(), function.Default())
			e, err := TypeCheck(parse.MustRead(tt.ast), tc)
			require.NoError(err)
			require.Equal(tt.expected, e.String())
			require.True(tt.typ.Equals(e.Type()), "expected %s, got %s", tt.typ, e.Type())
		})
	}
}

func TestTypeCheckErrors(t *testing.T) {
	testCases := []struct {
		name string
		ast  string
		kind interface{ Is(error) bool }
	}{
		{"unknown column", `(TOK_TABLE_OR_COL nope)`, sql.ErrInvalidTableOrColumn},
		{"ambiguous", `(TOK_TABLE_OR_COL a)`, sql.ErrAmbiguousColumn},
		{"unknown qualified", `(. (TOK_TABLE_OR_COL t) nope)`, sql.ErrInvalidColumn},
		{"unknown function", `(TOK_FUNCTION nope 1)`, sql.ErrInvalidFunction},
		{"arg count", `(TOK_FUNCTION upper 1 2)`, sql.ErrInvalidArgumentCount},
		{"aggregate", `(TOK_FUNCTION sum (. (TOK_TABLE_OR_COL t) a))`, sql.ErrAggregateNotAllowed},
		{"no common type", `(= (TOK_TABLE_OR_COL s) 1)`, sql.ErrNoCommonType},
		{"missing over", `(TOK_FUNCTION rank)`, sql.ErrMissingOverClause},
		{"window not allowed", `(TOK_FUNCTION rank (TOK_WINDOWSPEC (TOK_PARTITIONINGSPEC (TOK_DISTRIBUTEBY (TOK_TABLE_OR_COL b)))))`, sql.ErrWindowingNotAllowed},
		{"null treatment", `(TOK_FUNCTION upper (TOK_TABLE_OR_COL b) TOK_IGNORE_NULLS)`, sql.ErrNullTreatmentNotSupported},
		{"udtf nested", `(TOK_FUNCTION size (TOK_FUNCTION explode (TOK_TABLE_OR_COL arr)))`, ErrUDTFNotAllowed},
		{"udtf", `(TOK_FUNCTION explode (TOK_TABLE_OR_COL arr))`, ErrUDTFNotAllowed},
		{"subquery", `(TOK_SUBQUERY_EXPR (TOK_SUBQUERY_OP exists) (TOK_QUERY))`, ErrSubqueryNotAllowed},
		{"no field", `(. (TOK_TABLE_OR_COL s) z)`, ErrNoSuchField},
		{"default", `TOK_DEFAULT_VALUE`, ErrDefaultNotAllowed},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			tc := NewTypeCheckCtx(testResolver(), function.Default())
			_, err := TypeCheck(parse.MustRead(tt.ast), tc)
			require.Error(err)
			se, ok := err.(*sql.SemanticError)
			require.True(ok, "expected a semantic error, got %T", err)
			require.True(tt.kind.Is(se.Err), "unexpected error: %s", err)
		})
	}
}

func TestTypeCheckAggregates(t *testing.T) {
	require := require.New(t)
	tc := NewTypeCheckCtx(testResolver(), function.Default())
	tc.AllowAggregates = true

	e, err := TypeCheck(parse.MustRead(`(TOK_FUNCTIONDI count (TOK_TABLE_OR_COL b))`), tc)
	require.NoError(err)
	require.Equal("count(DISTINCT b)", e.String())
	require.True(sql.BigIntType.Equals(e.Type()))

	e, err = TypeCheck(parse.MustRead(`(TOK_FUNCTIONSTAR count)`), tc)
	require.NoError(err)
	require.Equal("count()", e.String())

	_, err = TypeCheck(parse.MustRead(`(TOK_FUNCTION sum (TOK_FUNCTION max (. (TOK_TABLE_OR_COL t) a)))`), tc)
	require.Error(err)
	require.True(sql.IsKind(err, sql.ErrNestedAggregate))
}

func TestTypeCheckExpressionLookup(t *testing.T) {
	require := require.New(t)
	rr := sql.NewRowResolver()
	rr.SetIsExprResolver(true)
	agg := parse.MustRead(`(TOK_FUNCTION sum (. (TOK_TABLE_OR_COL t) a))`)
	rr.PutExpression(agg, sql.NewColumnInfo("_col1", sql.BigIntType, "", false))

	tc := NewTypeCheckCtx(rr, function.Default())
	e, err := TypeCheck(parse.MustRead(`(+ (TOK_FUNCTION SUM (. (TOK_TABLE_OR_COL T) A)) 1)`), tc)
	require.NoError(err)
	require.Equal("(_col1 + 1)", e.String())
	require.True(sql.BigIntType.Equals(e.Type()))
}

func TestTypeCheckSubqueryHandler(t *testing.T) {
	require := require.New(t)
	tc := NewTypeCheckCtx(testResolver(), function.Default())
	called := false
	tc.SubqueryHandler = func(parse.Node) (sql.Expression, error) {
		called = true
		return NewBoolean(true), nil
	}
	e, err := TypeCheck(parse.MustRead(`(TOK_SUBQUERY_EXPR (TOK_SUBQUERY_OP exists) (TOK_QUERY))`), tc)
	require.NoError(err)
	require.True(called)
	require.Equal("true", e.String())
}

func TestTypeCheckPosition(t *testing.T) {
	require := require.New(t)
	tc := NewTypeCheckCtx(testResolver(), function.Default())
	_, err := TypeCheck(parse.MustRead("(+ 1\n  (TOK_TABLE_OR_COL nope))"), tc)
	require.Error(err)
	se := err.(*sql.SemanticError)
	require.Equal(2, se.Node.Line())
	require.Contains(err.Error(), "line 2:")
}

func TestTranslator(t *testing.T) {
	require := require.New(t)
	tc := NewTypeCheckCtx(testResolver(), function.Default())
	tc.Translator = NewTranslator()
	tc.Translator.Enable()

	_, err := TypeCheck(parse.MustRead(`(+ (TOK_TABLE_OR_COL b) (. (TOK_TABLE_OR_COL u) a))`), tc)
	require.NoError(err)
	var repl []string
	for _, tr := range tc.Translator.Translations() {
		repl = append(repl, tr.Replacement)
	}
	require.Equal([]string{"`t`.`b`", "`u`.`a`"}, repl)
}

func TestToBoolean(t *testing.T) {
	require := require.New(t)
	require.Equal("a", ToBoolean(NewColumn("a", "", sql.BooleanType)).String())
	require.Equal("CAST( a AS boolean)", ToBoolean(NewColumn("a", "", sql.IntType)).String())
	require.Equal("isnotnull(a)", ToBoolean(NewColumn("a", "", sql.ArrayOf(sql.IntType))).String())
}

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

package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/plan"
)

func whereSubquery(pred string) string {
	return query("(TOK_TABREF (TOK_TABNAME t1))", selectStar+" (TOK_WHERE "+pred+")")
}

func joinTypes(p *plan.Plan) []plan.JoinType {
	var types []plan.JoinType
	for _, j := range operatorsOf(p, plan.JoinOp) {
		for _, cond := range j.Desc.(*plan.JoinDesc).Conds {
			types = append(types, cond.Type)
		}
	}
	return types
}

func TestSubqueryKind(t *testing.T) {
	testCases := []struct {
		op      string
		kind    subqueryKind
		negated bool
	}{
		{"(TOK_SUBQUERY_OP in)", inSubquery, false},
		{"(TOK_SUBQUERY_OP not in)", inSubquery, true},
		{"(TOK_SUBQUERY_OP exists)", existsSubquery, false},
		{"(TOK_SUBQUERY_OP not exists)", existsSubquery, true},
		{"TOK_SUBQUERY_OP", scalarSubquery, false},
	}

	for _, tt := range testCases {
		t.Run(tt.op, func(t *testing.T) {
			require := require.New(t)
			sq := parse.MustRead("(TOK_SUBQUERY_EXPR " + tt.op + " TOK_QUERY)")
			kind, negated := subqueryKindOf(sq)
			require.Equal(tt.kind, kind)
			require.Equal(tt.negated, negated)
		})
	}
}

func TestInSubquery(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, whereSubquery(
		"(TOK_SUBQUERY_EXPR (TOK_SUBQUERY_OP in) "+selectIDFrom("t2")+" (. (TOK_TABLE_OR_COL t1) id))"), nil)

	require.Equal([]plan.JoinType{plan.LeftSemiJoin}, joinTypes(p))
	require.Len(p.ResultSchema, 2)
	require.NotNil(p.Input("default.t2"))
}

func TestNotInSubquery(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, whereSubquery(
		"(TOK_SUBQUERY_EXPR (TOK_SUBQUERY_OP not in) "+selectIDFrom("t2")+" (. (TOK_TABLE_OR_COL t1) id))"), nil)

	types := joinTypes(p)
	require.Contains(types, plan.LeftAntiSemiJoin)
	// The subquery column is nullable, so its NULL count is joined in too.
	require.True(len(types) > 1)
	require.Len(p.ResultSchema, 2)
}

func TestScalarSubquery(t *testing.T) {
	require := require.New(t)
	maxID := query("(TOK_TABREF (TOK_TABNAME t2))", "(TOK_SELECT (TOK_SELEXPR (TOK_FUNCTION max (TOK_TABLE_OR_COL id))))")
	p := mustCompile(t, whereSubquery(
		"(> (. (TOK_TABLE_OR_COL t1) id) (TOK_SUBQUERY_EXPR TOK_SUBQUERY_OP "+maxID+"))"), nil)

	require.Equal([]plan.JoinType{plan.LeftOuterJoin}, joinTypes(p))
	require.Len(p.ResultSchema, 2)
}

func TestSubqueryNotTopLevelConjunct(t *testing.T) {
	require := require.New(t)
	_, err := compile(t, whereSubquery(
		"(or (> (. (TOK_TABLE_OR_COL t1) id) 1) (TOK_SUBQUERY_EXPR (TOK_SUBQUERY_OP exists) "+selectIDFrom("t2")+"))"), nil)
	require.Error(err)
}

func TestUnsupportedSubqueries(t *testing.T) {
	exists := func(q string) string {
		return "(TOK_SUBQUERY_EXPR (TOK_SUBQUERY_OP exists) " + q + ")"
	}
	nested := query("(TOK_TABREF (TOK_TABNAME t2))", selectStar+" (TOK_WHERE "+exists(selectIDFrom("t3"))+")")

	testCases := []struct {
		name, pred, reason string
	}{
		{
			name:   "two subqueries",
			pred:   "(and " + exists(selectIDFrom("t2")) + " " + exists(selectIDFrom("t3")) + ")",
			reason: "Only 1 SubQuery expression is supported.",
		},
		{
			name:   "nested subquery",
			pred:   exists(nested),
			reason: "Nested SubQuery expressions are not supported.",
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			_, err := compile(t, whereSubquery(tt.pred), nil)
			require.Error(err)
			require.True(sql.IsKind(err, ErrUnsupportedSubquery))
			require.Contains(err.Error(), tt.reason)
		})
	}
}

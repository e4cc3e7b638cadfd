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

	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/plan"
)

func threeWayJoin(leftKey, rightKey string) string {
	return "(TOK_JOIN " + joinT1T2 + " (TOK_TABREF (TOK_TABNAME t1) (TOK_TABALIAS z)) (= " + leftKey + " " + rightKey + "))"
}

func TestJoinTreeMerging(t *testing.T) {
	testCases := []struct {
		name    string
		join    string
		joins   int
		parents int
	}{
		{
			name:    "shared key",
			join:    threeWayJoin("(. (TOK_TABLE_OR_COL t2) id)", "(. (TOK_TABLE_OR_COL z) id)"),
			joins:   1,
			parents: 3,
		},
		{
			name:    "different key",
			join:    threeWayJoin("(. (TOK_TABLE_OR_COL t1) v)", "(. (TOK_TABLE_OR_COL z) v)"),
			joins:   2,
			parents: 2,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			p := mustCompile(t, query(tt.join, selectStar), nil)

			joins := operatorsOf(p, plan.JoinOp)
			require.Len(joins, tt.joins)
			for _, j := range joins {
				require.Len(j.Parents(), tt.parents)
				desc := j.Desc.(*plan.JoinDesc)
				require.Len(desc.Conds, tt.parents-1)
				for _, cond := range desc.Conds {
					require.Equal(plan.InnerJoin, cond.Type)
				}
			}
			require.Len(p.ResultSchema, 6)
		})
	}
}

func TestJoinTypes(t *testing.T) {
	testCases := []struct {
		token string
		typ   plan.JoinType
	}{
		{"TOK_JOIN", plan.InnerJoin},
		{"TOK_LEFTOUTERJOIN", plan.LeftOuterJoin},
		{"TOK_RIGHTOUTERJOIN", plan.RightOuterJoin},
		{"TOK_FULLOUTERJOIN", plan.FullOuterJoin},
	}

	for _, tt := range testCases {
		t.Run(tt.token, func(t *testing.T) {
			require := require.New(t)
			join := "(" + tt.token + " (TOK_TABREF (TOK_TABNAME t1)) (TOK_TABREF (TOK_TABNAME t2)) (= (. (TOK_TABLE_OR_COL t1) id) (. (TOK_TABLE_OR_COL t2) id)))"
			p := mustCompile(t, query(join, selectStar), nil)

			joins := operatorsOf(p, plan.JoinOp)
			require.Len(joins, 1)
			desc := joins[0].Desc.(*plan.JoinDesc)
			require.Len(desc.Conds, 1)
			require.Equal(tt.typ, desc.Conds[0].Type)
			require.Len(desc.Keys[0], 1)
			require.Len(desc.Keys[1], 1)
		})
	}
}

func TestLeftSemiJoin(t *testing.T) {
	require := require.New(t)
	join := "(TOK_LEFTSEMIJOIN (TOK_TABREF (TOK_TABNAME t1)) (TOK_TABREF (TOK_TABNAME t2)) (= (. (TOK_TABLE_OR_COL t1) id) (. (TOK_TABLE_OR_COL t2) id)))"
	p := mustCompile(t, query(join, selectStar), nil)

	joins := operatorsOf(p, plan.JoinOp)
	require.Len(joins, 1)
	require.Equal(plan.LeftSemiJoin, joins[0].Desc.(*plan.JoinDesc).Conds[0].Type)
	// The right side is grouped on its keys before the shuffle.
	rs := joins[0].Parents()[1]
	require.Equal(plan.GroupByOp, rs.Parent().Type())
	// Only the left columns are visible.
	require.Len(p.ResultSchema, 2)
}

func TestJoinKeepsVirtualColumnsHidden(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query(joinT1T2, selectStar), nil)
	require.Equal([]string{"id", "v", "id", "w"}, resultNames(p))

	// Still reachable by name.
	p = mustCompile(t, query(joinT1T2,
		"(TOK_SELECT (TOK_SELEXPR (. (TOK_TABLE_OR_COL t2) "+InputFileNameColumn+")))"), nil)
	require.Equal([]string{InputFileNameColumn}, resultNames(p))
	require.True(p.ResultSchema[0].Type.Equals(sql.StringType))
}

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
)

func TestGroupingSets(t *testing.T) {
	testCases := []struct {
		name string
		kind GroupingKind
		gby  string
		want []int64
		err  bool
	}{
		{
			name: "plain",
			kind: PlainGrouping,
			gby:  "(TOK_GROUPBY (TOK_TABLE_OR_COL a) (TOK_TABLE_OR_COL b))",
		},
		{
			name: "rollup",
			kind: RollupGrouping,
			gby:  "(TOK_ROLLUP_GROUPBY (TOK_TABLE_OR_COL a) (TOK_TABLE_OR_COL b))",
			want: []int64{0, 1, 3},
		},
		{
			name: "cube",
			kind: CubeGrouping,
			gby:  "(TOK_CUBE_GROUPBY (TOK_TABLE_OR_COL a) (TOK_TABLE_OR_COL b))",
			want: []int64{0, 1, 2, 3},
		},
		{
			name: "explicit sets",
			kind: GroupingSetsGrouping,
			gby: `(TOK_GROUPING_SETS (TOK_TABLE_OR_COL a) (TOK_TABLE_OR_COL b)
				(TOK_GROUPING_SETS_EXPRESSION (TOK_TABLE_OR_COL a))
				(TOK_GROUPING_SETS_EXPRESSION (TOK_TABLE_OR_COL b))
				(TOK_GROUPING_SETS_EXPRESSION))`,
			want: []int64{1, 2, 3},
		},
		{
			name: "duplicate sets",
			kind: GroupingSetsGrouping,
			gby: `(TOK_GROUPING_SETS (TOK_TABLE_OR_COL a) (TOK_TABLE_OR_COL b)
				(TOK_GROUPING_SETS_EXPRESSION (TOK_TABLE_OR_COL a))
				(TOK_GROUPING_SETS_EXPRESSION (TOK_TABLE_OR_COL a)))`,
			want: []int64{1},
		},
		{
			name: "only the full set",
			kind: GroupingSetsGrouping,
			gby: `(TOK_GROUPING_SETS (TOK_TABLE_OR_COL a) (TOK_TABLE_OR_COL b)
				(TOK_GROUPING_SETS_EXPRESSION (TOK_TABLE_OR_COL a) (TOK_TABLE_OR_COL b)))`,
			err: true,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			gby := parse.MustRead(tt.gby)
			var keys []parse.Node
			for _, k := range gby.Children() {
				if k.Kind() != parse.TokGroupingSetsExpression {
					keys = append(keys, k)
				}
			}
			masks, err := groupingSets(tt.kind, gby, keys)
			if tt.err {
				require.Error(err)
				require.True(sql.IsKind(err, ErrGroupingSetsEmpty))
				return
			}
			require.NoError(err)
			require.Equal(tt.want, masks)
		})
	}
}

func TestGroupingSetUnknownKey(t *testing.T) {
	require := require.New(t)
	gby := parse.MustRead(`(TOK_GROUPING_SETS (TOK_TABLE_OR_COL a)
		(TOK_GROUPING_SETS_EXPRESSION (TOK_TABLE_OR_COL b)))`)
	_, err := groupingSets(GroupingSetsGrouping, gby, gby.Children()[:1])
	require.Error(err)
	require.True(sql.IsKind(err, ErrGroupingSetExpression))
}

func TestGroupingSetsEmptyQuery(t *testing.T) {
	require := require.New(t)
	_, err := compile(t, query("(TOK_TABREF (TOK_TABNAME t))", `
		(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a)) (TOK_SELEXPR (TOK_TABLE_OR_COL b)))
		(TOK_GROUPING_SETS (TOK_TABLE_OR_COL a) (TOK_TABLE_OR_COL b)
			(TOK_GROUPING_SETS_EXPRESSION (TOK_TABLE_OR_COL a) (TOK_TABLE_OR_COL b)))`), nil)
	require.Error(err)
	require.True(sql.IsKind(err, ErrGroupingSetsEmpty))
}

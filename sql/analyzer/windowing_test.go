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
)

const rankOverA = `(TOK_FUNCTION rank (TOK_WINDOWSPEC (TOK_PARTITIONINGSPEC
	(TOK_DISTRIBUTEBY (TOK_TABLE_OR_COL a))
	(TOK_ORDERBY (TOK_TABSORTCOLNAMEASC (TOK_NULLS_FIRST (TOK_TABLE_OR_COL b)))))))`

func TestWindowingSpecDeduplicates(t *testing.T) {
	require := require.New(t)
	spec := newWindowingSpec()

	first, err := newWindowFunctionSpec(parse.MustRead(rankOverA))
	require.NoError(err)
	second, err := newWindowFunctionSpec(parse.MustRead(rankOverA))
	require.NoError(err)

	a := spec.Add(first)
	b := spec.Add(second)
	require.Len(spec.Functions, 1)
	require.Same(a, b)
	require.Equal("rank_window_0", a.Alias)

	found, ok := spec.Lookup(parse.MustRead(rankOverA))
	require.True(ok)
	require.Same(a, found)
}

func TestWindowDefaultFrames(t *testing.T) {
	require := require.New(t)

	ordered, err := newWindowFunctionSpec(parse.MustRead(rankOverA))
	require.NoError(err)
	require.False(ordered.Window.Frame.Rows)
	require.True(ordered.Window.Frame.isDefault(true))

	unordered, err := newWindowFunctionSpec(parse.MustRead(
		`(TOK_FUNCTION sum (TOK_TABLE_OR_COL c) (TOK_WINDOWSPEC (TOK_PARTITIONINGSPEC (TOK_DISTRIBUTEBY (TOK_TABLE_OR_COL a)))))`))
	require.NoError(err)
	require.True(unordered.Window.Frame.Rows)
	require.True(unordered.Window.Frame.isDefault(false))
	require.Len(unordered.Args, 1)
}

func TestWindowGroups(t *testing.T) {
	require := require.New(t)
	spec := newWindowingSpec()
	for _, text := range []string{
		rankOverA,
		`(TOK_FUNCTION dense_rank (TOK_WINDOWSPEC (TOK_PARTITIONINGSPEC
			(TOK_DISTRIBUTEBY (TOK_TABLE_OR_COL a))
			(TOK_ORDERBY (TOK_TABSORTCOLNAMEASC (TOK_NULLS_FIRST (TOK_TABLE_OR_COL b)))))))`,
		`(TOK_FUNCTION sum (TOK_TABLE_OR_COL c) (TOK_WINDOWSPEC (TOK_PARTITIONINGSPEC (TOK_DISTRIBUTEBY (TOK_TABLE_OR_COL b)))))`,
	} {
		fn, err := newWindowFunctionSpec(parse.MustRead(text))
		require.NoError(err)
		spec.Add(fn)
	}

	groups := spec.groups()
	require.Len(groups, 2)
	require.Len(groups[0], 2)
	require.Equal("rank", groups[0][0].Name)
	require.Equal("dense_rank", groups[0][1].Name)
	require.Equal("sum", groups[1][0].Name)
}

func TestOrderStrings(t *testing.T) {
	require := require.New(t)
	clause := parse.MustRead(`(TOK_ORDERBY
		(TOK_TABSORTCOLNAMEASC (TOK_NULLS_FIRST (TOK_TABLE_OR_COL a)))
		(TOK_TABSORTCOLNAMEDESC (TOK_NULLS_LAST (TOK_TABLE_OR_COL b))))`)
	keys := orderExprs(clause)
	require.Len(keys, 2)
	require.Equal("+-", orderString(keys))
	require.Equal("az", nullOrderString(keys))
}

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

package sql

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/difin/hive-sub000/parse"
)

func newTwoTableResolver() *RowResolver {
	rr := NewRowResolver()
	rr.Put("a", "id", NewColumnInfo("_col0", IntType, "a", false))
	rr.Put("a", "name", NewColumnInfo("_col1", StringType, "a", false))
	rr.Put("b", "id", NewColumnInfo("_col2", IntType, "b", false))
	rr.Put("b", "v", NewColumnInfo("_col3", DoubleType, "b", false))
	return rr
}

func TestRowResolverGet(t *testing.T) {
	require := require.New(t)
	rr := newTwoTableResolver()

	c, err := rr.Get("A", "NAME")
	require.NoError(err)
	require.Equal("_col1", c.InternalName)

	c, err = rr.Get("", "v")
	require.NoError(err)
	require.Equal("_col3", c.InternalName)

	c, err = rr.Get("", "missing")
	require.NoError(err)
	require.Nil(c)

	c, err = rr.Get("zzz", "id")
	require.NoError(err)
	require.Nil(c)

	_, err = rr.Get("", "id")
	require.Error(err)
	require.True(ErrAmbiguousColumn.Is(err))

	rr.SetCheckForAmbiguity(false)
	c, err = rr.Get("", "id")
	require.NoError(err)
	require.Equal("_col0", c.InternalName)
}

func TestRowResolverAlternateMappings(t *testing.T) {
	require := require.New(t)
	rr := NewRowResolver()
	col := NewColumnInfo("_col0", IntType, "t", false)
	rr.Put("t", "x", col)
	rr.Put("", "x_alias", col)

	require.Equal(1, rr.Len())
	tab, name, ok := rr.ReverseLookup("_col0")
	require.True(ok)
	require.Equal("t", tab)
	require.Equal("x", name)
	require.Equal([][2]string{{"", "x_alias"}}, rr.AlternateMappings("_col0"))

	// the same column reached through two aliases is not ambiguous
	c, err := rr.Get("", "x")
	require.NoError(err)
	require.Equal(col, c)
}

func TestRowResolverPutWithCheck(t *testing.T) {
	require := require.New(t)
	rr := NewRowResolver()
	require.NoError(rr.PutWithCheck("t", "x", NewColumnInfo("_col0", IntType, "t", false)))
	err := rr.PutWithCheck("t", "x", NewColumnInfo("_col1", IntType, "t", false))
	require.Error(err)
	require.True(ErrDuplicateColumn.Is(err))
}

func TestRowResolverExpressions(t *testing.T) {
	require := require.New(t)
	rr := NewRowResolver()
	rr.SetIsExprResolver(true)

	expr := parse.MustRead(`(TOK_FUNCTION count (TOK_TABLE_OR_COL A))`)
	rr.PutExpression(expr, NewColumnInfo("_col0", BigIntType, "", false))

	same := parse.MustRead(`(TOK_FUNCTION COUNT (TOK_TABLE_OR_COL a))`)
	c := rr.GetExpression(same)
	require.NotNil(c)
	require.Equal("_col0", c.InternalName)

	other := parse.MustRead(`(TOK_FUNCTION sum (TOK_TABLE_OR_COL a))`)
	require.Nil(rr.GetExpression(other))

	star := parse.MustRead(`(TOK_FUNCTIONSTAR count)`)
	rr.PutExpression(star, NewColumnInfo("_col1", BigIntType, "", false))
	c = rr.GetExpression(parse.MustRead(`(TOK_FUNCTIONSTAR COUNT)`))
	require.NotNil(c)
	require.Equal("_col1", c.InternalName)

	info, err := rr.Get("", "(tok_functionstar count)")
	require.NoError(err)
	require.Nil(info)
}

func TestRowResolverPutFrom(t *testing.T) {
	require := require.New(t)
	from := NewRowResolver()
	expr := parse.MustRead(`(TOK_FUNCTIONSTAR count)`)
	from.Put("t", "a", NewColumnInfo("_col0", IntType, "t", false))
	from.PutExpression(expr, NewColumnInfo("_col1", BigIntType, "", false))

	to := NewRowResolver()
	for _, info := range from.ColumnInfos() {
		tab, col, ok := from.ReverseLookup(info.InternalName)
		require.True(ok)
		to.PutFrom(from, tab, col, info.Copy())
	}

	c := to.GetExpression(expr)
	require.NotNil(c)
	require.Equal("_col1", c.InternalName)
	n, ok := to.ExpressionNode(expr.Normalized())
	require.True(ok)
	require.Equal(expr.String(), n.String())

	a, err := to.Get("T", "A")
	require.NoError(err)
	require.Equal("_col0", a.InternalName)
}

func TestRowResolverExpandColumns(t *testing.T) {
	rr := newTwoTableResolver()
	hidden := NewColumnInfo("_col4", StringType, "b", true)
	hidden.IsHidden = true
	rr.Put("b", "block__offset", hidden)

	testCases := []struct {
		name     string
		tab      string
		pattern  string
		expected []string
	}{
		{"all", "", ".*", []string{"_col0", "_col1", "_col2", "_col3"}},
		{"qualified", "b", ".*", []string{"_col2", "_col3"}},
		{"regex", "", "i.", []string{"_col0", "_col2"}},
		{"case insensitive", "a", "NA.*", []string{"_col1"}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			cols, err := rr.ExpandColumns(tt.tab, tt.pattern)
			require.NoError(err)
			var names []string
			for _, c := range cols {
				names = append(names, c.Info.InternalName)
			}
			require.Equal(tt.expected, names)
		})
	}

	t.Run("no match", func(t *testing.T) {
		_, err := rr.ExpandColumns("", "nope")
		require.True(t, ErrInvalidColumn.Is(err))
	})

	t.Run("bad alias", func(t *testing.T) {
		_, err := rr.ExpandColumns("c", ".*")
		require.True(t, ErrInvalidTableAlias.Is(err))
	})
}

func TestRowResolverExpandUsingColumns(t *testing.T) {
	require := require.New(t)
	rr := newTwoTableResolver()
	rr.SetNamedJoinInfo(&NamedJoinInfo{TableAliases: []string{"a", "b"}, NamedColumns: []string{"id"}})

	cols, err := rr.ExpandColumns("", ".*")
	require.NoError(err)
	var names []string
	for _, c := range cols {
		names = append(names, c.TabAlias+"."+c.Alias)
	}
	require.Equal([]string{"a.id", "a.name", "b.v"}, names)

	// shared USING columns are not ambiguous
	c, err := rr.Get("", "id")
	require.NoError(err)
	require.Equal("_col0", c.InternalName)
}

func TestRowResolverScopes(t *testing.T) {
	require := require.New(t)
	outer := newTwoTableResolver()
	inner := NewRowResolver()
	inner.Put("c", "w", NewColumnInfo("_col0", IntType, "c", false))
	inner.SetOuter(outer)

	c, depth, err := inner.LookupInScope("c", "w")
	require.NoError(err)
	require.Equal(0, depth)
	require.Equal("_col0", c.InternalName)

	c, depth, err = inner.LookupInScope("b", "v")
	require.NoError(err)
	require.Equal(1, depth)
	require.Equal("_col3", c.InternalName)

	c, _, err = inner.LookupInScope("", "nothing")
	require.NoError(err)
	require.Nil(c)
}

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

package parse

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestArenaRewrite(t *testing.T) {
	require := require.New(t)

	root := MustRead("(TOK_SELECT (TOK_SELEXPR (TOK_FUNCTION grouping (TOK_TABLE_OR_COL a))))")
	a := root.Arena()
	fn := root.Child(0).Child(0)

	gid := a.New(TokTableOrCol, "", a.New(Identifier, "grouping__id"))
	fn.AddChild(a.New(Number, "1"))
	fn.SetChild(1, gid)
	require.Equal("(TOK_SELECT (TOK_SELEXPR (TOK_FUNCTION grouping (TOK_TABLE_OR_COL grouping__id) 1)))", root.String())

	fn.DeleteChild(2)
	require.Equal(2, fn.ChildCount())

	fn.Rebind(a.New(TokNull, ""))
	require.Equal("(TOK_SELECT (TOK_SELEXPR TOK_NULL))", root.String())
}

func TestImportAndClone(t *testing.T) {
	require := require.New(t)

	view := MustRead("(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME t))))")
	outer := MustRead("(TOK_FROM (TOK_TABREF (TOK_TABNAME v)))")

	imported := outer.Arena().Import(view)
	require.Equal(outer.Arena(), imported.Arena())
	require.Equal(view.String(), imported.String())

	outer.SetChild(0, outer.Arena().New(TokSubquery, "", view, outer.Arena().New(Identifier, "v")))
	require.Equal("(TOK_FROM (TOK_SUBQUERY (TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME t)))) v))", outer.String())

	c := outer.Clone()
	c.Child(0).DeleteChild(1)
	require.NotEqual(c.String(), outer.String())
}

func TestNormalized(t *testing.T) {
	a := MustRead("(TOK_FUNCTION COUNT (TOK_TABLE_OR_COL Key) 'X')")
	b := MustRead("(TOK_FUNCTION count (TOK_TABLE_OR_COL key) 'X')")
	require.Equal(t, a.Normalized(), b.Normalized())
	require.NotEqual(t, a.String(), b.String())
}

func TestUnescapeIdentifier(t *testing.T) {
	require.Equal(t, "my col", UnescapeIdentifier("`My Col`"))
	require.Equal(t, "abc", UnescapeIdentifier("ABC"))
	require.True(t, IsQuotedIdentifier("`a|b`"))
	require.False(t, IsQuotedIdentifier("a"))
}

func TestSnippet(t *testing.T) {
	require := require.New(t)

	short := MustRead("(TOK_TABLE_OR_COL a)")
	require.Equal("(TOK_TABLE_OR_COL a)", short.Snippet())

	long := MustRead("(TOK_FUNCTION concat '" + strings.Repeat("é", 70) + "')")
	s := long.Snippet()
	require.True(utf8.ValidString(s))
	require.Equal(60, utf8.RuneCountInString(s))
	require.True(strings.HasSuffix(s, "..."))
	require.True(strings.HasPrefix(s, "(TOK_FUNCTION concat 'éé"))
}

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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	require := require.New(t)

	n, err := ReadString(`(TOK_QUERY
  (TOK_FROM (TOK_TABREF (TOK_TABNAME src) s))
  (TOK_INSERT (TOK_DESTINATION (TOK_DIR TOK_TMP_FILE))
    (TOK_SELECT (TOK_SELEXPR (. (TOK_TABLE_OR_COL s) key)) (TOK_SELEXPR 'a'))
    (TOK_WHERE (> (TOK_TABLE_OR_COL value) 5L))))`)
	require.NoError(err)
	require.Equal(TokQuery, n.Kind())
	require.Equal(2, n.ChildCount())

	from := n.Child(0)
	require.Equal(TokFrom, from.Kind())
	tabref := from.Child(0)
	require.Equal(TokTabRef, tabref.Kind())
	require.Equal(Identifier, tabref.Child(1).Kind())
	require.Equal("s", tabref.Child(1).Text())
	require.Equal(2, from.Line())

	ins := n.Child(1)
	sel := ins.Child(1)
	require.Equal(TokSelect, sel.Kind())
	dot := sel.Child(0).Child(0)
	require.Equal(Dot, dot.Kind())
	require.Equal(StringLiteral, sel.Child(1).Child(0).Kind())
	require.Equal("a", sel.Child(1).Child(0).Text())

	where := ins.Child(2)
	gt := where.Child(0)
	require.Equal(GreaterThan, gt.Kind())
	require.Equal(Number, gt.Child(1).Kind())
	require.Equal("5L", gt.Child(1).Text())
}

func TestReadErrors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"unbalanced", "(TOK_QUERY (TOK_FROM x)"},
		{"extra close", "(TOK_QUERY))"},
		{"two roots", "(TOK_FROM a) (TOK_FROM b)"},
		{"empty", "   "},
		{"unterminated string", "(TOK_SELEXPR 'abc"},
		{"missing head", "(()"},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadString(tt.input)
			require.Error(t, err)
			require.True(t, ErrSyntax.Is(err))
		})
	}
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		atom string
		kind Kind
	}{
		{"TOK_NULL", TokNull},
		{"and", KwAnd},
		{"AND", KwAnd},
		{"<=>", EqualNS},
		{"!=", NotEqual},
		{"12", Number},
		{"12.5", Number},
		{"1e10", Number},
		{"3BD", Number},
		{"7Y", Number},
		{"-4", Number},
		{"key", Identifier},
		{"e", Identifier},
		{"-", Minus},
	}

	for _, tt := range testCases {
		t.Run(tt.atom, func(t *testing.T) {
			k, _ := classify(&Token{Type: AtomToken, Value: tt.atom})
			require.Equal(t, tt.kind, k)
		})
	}

	k, text := classify(&Token{Type: QuotedIdentToken, Value: "`a.*`"})
	require.Equal(t, Identifier, k)
	require.Equal(t, "`a.*`", text)
}

func TestRoundTrip(t *testing.T) {
	src := "(TOK_FUNCTION concat (TOK_TABLE_OR_COL a) 'it\\'s' TOK_NULL)"
	n := MustRead(src)
	require.Equal(t, src, n.String())

	again := MustRead(n.String())
	require.Equal(t, n.String(), again.String())
}

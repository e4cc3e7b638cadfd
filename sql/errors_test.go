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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/difin/hive-sub000/parse"
)

func TestSemanticError(t *testing.T) {
	require := require.New(t)

	root := parse.MustRead("(TOK_QUERY\n  (TOK_TABLE_OR_COL x))")
	inner := root.Child(0)

	err := NewSemanticError(inner, ErrInvalidColumn.New("x"))
	require.Equal(2, inner.Line())
	expected := fmt.Sprintf("line 2:%d Invalid column reference x near '(TOK_TABLE_OR_COL x)'", inner.Col())
	require.Equal(expected, err.Error())

	// the innermost node is kept
	err = NewSemanticError(root, err)
	se, ok := err.(*SemanticError)
	require.True(ok)
	require.Equal(inner.Text(), se.Node.Text())

	require.Nil(NewSemanticError(root, nil))

	err = NewSemanticError(parse.Node{}, ErrInvalidColumn.New("y"))
	require.Equal("Invalid column reference y", err.Error())
}

func TestIsKind(t *testing.T) {
	require := require.New(t)

	base := ErrAmbiguousColumn.New("a", "t, u")
	wrapped := NewSemanticError(parse.Node{}, base)

	require.True(IsKind(base, ErrAmbiguousColumn))
	require.True(IsKind(wrapped, ErrAmbiguousColumn))
	require.False(IsKind(wrapped, ErrInvalidColumn))
	require.False(IsKind(fmt.Errorf("plain"), ErrAmbiguousColumn))
	require.False(IsKind(nil, ErrAmbiguousColumn))

	env := ErrInternal.Wrap(fmt.Errorf("disk"), "catalog")
	require.True(IsEnvironmentError(env))
	require.False(IsEnvironmentError(wrapped))
}

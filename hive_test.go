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

package hive

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/difin/hive-sub000/memory"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/plan"
)

func testCatalog() *memory.Catalog {
	c := memory.NewCatalog()
	c.AddTable(memory.NewTable("default", "t", []sql.FieldSchema{
		{Name: "a", Type: sql.IntType},
		{Name: "b", Type: sql.StringType},
	}))
	return c
}

const selectAB = `(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME t)))
	(TOK_INSERT (TOK_DESTINATION (TOK_DIR TOK_TMP_FILE))
		(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a)) (TOK_SELEXPR (TOK_TABLE_OR_COL b)))))`

func TestCompile(t *testing.T) {
	require := require.New(t)
	c := NewDefault(testCatalog())

	p, err := c.Compile(c.NewContext(context.Background()), selectAB)
	require.NoError(err)
	require.Len(p.Sinks, 1)
	require.Len(p.ResultSchema, 2)
	require.Equal("a", p.ResultSchema[0].Name)
	require.NotNil(p.Input("default.t"))

	text, err := c.Explain(c.NewContext(context.Background()), selectAB)
	require.NoError(err)
	require.Contains(text, "Result schema: [a:int, b:string]")
}

func TestCompileErrors(t *testing.T) {
	require := require.New(t)
	c := NewDefault(testCatalog())
	ctx := c.NewContext(context.Background())

	_, err := c.Compile(ctx, "(TOK_QUERY")
	require.Error(err)

	_, err = c.Compile(ctx, strings.Replace(selectAB, "TOK_TABNAME t", "TOK_TABNAME nope", 1))
	require.Error(err)
	require.True(sql.IsKind(err, sql.ErrInvalidTable))
}

func TestContextConfigIsolated(t *testing.T) {
	require := require.New(t)
	vars := sql.NewConfig()
	vars.Set(sql.ConfMapAggr, false)
	c := New(testCatalog(), &Config{Vars: vars})

	ctx := c.NewContext(context.Background())
	require.False(ctx.Config.GetBool(sql.ConfMapAggr))
	ctx.Config.Set(sql.ConfMapAggr, true)
	require.False(c.Vars.GetBool(sql.ConfMapAggr))
	require.False(c.NewContext(context.Background()).Config.GetBool(sql.ConfMapAggr))
}

type denyAll struct{}

func (denyAll) Authorize(*sql.Context, sql.Operation, []*plan.ReadEntity, []*plan.WriteEntity) error {
	return sql.ErrInternal.New("denied")
}

func TestCompilerHooks(t *testing.T) {
	require := require.New(t)
	c := New(testCatalog(), &Config{Authorizer: denyAll{}})
	_, err := c.Compile(c.NewContext(context.Background()), selectAB)
	require.Error(err)
	require.True(sql.IsKind(err, sql.ErrInternal))
}

func TestConfigureLogging(t *testing.T) {
	require := require.New(t)
	var buf bytes.Buffer
	require.NoError(ConfigureLogging(LogOptions{Level: "debug", JSON: true, Out: &buf}))
	defer func() {
		require.NoError(ConfigureLogging(LogOptions{Out: os.Stderr}))
	}()

	c := NewDefault(testCatalog())
	_, err := c.Compile(c.NewContext(context.Background()), selectAB)
	require.NoError(err)
	require.Contains(buf.String(), `"msg":"compiled"`)
	require.Contains(buf.String(), sql.QueryIDLogField)
	require.Contains(buf.String(), `"statement":"TOK_QUERY"`)
	require.Contains(buf.String(), `"database":"default"`)

	require.Error(ConfigureLogging(LogOptions{Level: "loud"}))
}

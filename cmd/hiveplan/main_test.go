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

package main

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/difin/hive-sub000/sql"
)

const catalogYAML = `
databases:
  - name: default
    tables:
      - name: t
        columns:
          - {name: a, type: int}
          - {name: b, type: string}
`

const groupByAST = `(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME t)))
  (TOK_INSERT (TOK_DESTINATION (TOK_DIR TOK_TMP_FILE))
    (TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a)) (TOK_SELEXPR (TOK_FUNCTIONSTAR count)))
    (TOK_GROUPBY (TOK_TABLE_OR_COL a))))`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(ioutil.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExplain(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	catalog := writeFile(t, dir, "catalog.yaml", catalogYAML)
	ast := writeFile(t, dir, "query.ast", groupByAST)

	out, err := run(t, "", "explain", "--catalog", catalog, ast)
	require.NoError(err)
	require.Contains(out, "FS_")
	require.Contains(out, "TS_")
	require.Contains(out, "Result schema: [a:int, _c1:bigint]")
}

func TestExplainFromStdin(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	catalog := writeFile(t, dir, "catalog.yaml", catalogYAML)

	out, err := run(t, groupByAST, "explain", "--catalog", catalog, "-")
	require.NoError(err)
	require.Contains(out, "Result schema:")
}

func TestExplainConfiguration(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	catalog := writeFile(t, dir, "catalog.yaml", catalogYAML)
	ast := writeFile(t, dir, "query.ast", groupByAST)
	conf := writeFile(t, dir, "conf.yaml", "hive.map.aggr: false\n")

	withMapAggr, err := run(t, "", "explain", "--catalog", catalog, ast)
	require.NoError(err)
	withoutMapAggr, err := run(t, "", "explain", "--catalog", catalog, "--conf", conf, ast)
	require.NoError(err)
	require.Equal(2, strings.Count(withMapAggr, "GBY_"))
	require.Equal(1, strings.Count(withoutMapAggr, "GBY_"))

	overridden, err := run(t, "", "explain", "--catalog", catalog, "--conf", conf, "--set", "hive.map.aggr=true", ast)
	require.NoError(err)
	require.Equal(2, strings.Count(overridden, "GBY_"))
}

func TestExplainErrors(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	catalog := writeFile(t, dir, "catalog.yaml", catalogYAML)
	bad := writeFile(t, dir, "bad.ast", strings.Replace(groupByAST, "TOK_TABNAME t", "TOK_TABNAME missing", 1))

	_, err := run(t, "", "explain", "--catalog", catalog, bad)
	require.Error(err)
	require.False(sql.IsEnvironmentError(err))

	_, err = run(t, "", "explain", "--catalog", catalog, filepath.Join(dir, "nope.ast"))
	require.Error(err)
	require.True(sql.IsEnvironmentError(err))

	_, err = run(t, "", "explain", "--catalog", catalog, "--set", "novalue", bad)
	require.Error(err)
}

func TestCatalogStore(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	catalog := writeFile(t, dir, "catalog.yaml", catalogYAML)
	store := filepath.Join(dir, "catalog.db")
	ast := writeFile(t, dir, "query.ast", groupByAST)

	_, err := run(t, "", "catalog", "import", catalog, store)
	require.NoError(err)

	out, err := run(t, "", "catalog", "list", store)
	require.NoError(err)
	require.Equal("default.t\n", out)

	fromStore, err := run(t, "", "explain", "--catalog", store, ast)
	require.NoError(err)
	require.Contains(fromStore, "Result schema: [a:int, _c1:bigint]")
}

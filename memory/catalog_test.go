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

package memory

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/difin/hive-sub000/sql"
)

const catalogYAML = `
databases:
  - name: default
    tables:
      - name: src
        columns:
          - {name: key, type: string}
          - {name: value, type: string}
      - name: srcpart
        columns:
          - {name: key, type: string}
        partition_columns:
          - {name: ds, type: string}
          - {name: hr, type: string}
        partitions: ["ds=2008-04-08/hr=11", "ds=2008-04-08/hr=12", "ds=2008-04-09/hr=11"]
      - name: acid
        columns:
          - {name: id, type: int}
        transactional: true
        storage:
          num_buckets: 2
          bucket_cols: [id]
      - name: v
        type: view
        columns:
          - {name: key, type: string}
        view_text: "(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME src))) (TOK_INSERT (TOK_DESTINATION (TOK_DIR TOK_TMP_FILE)) (TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL key)))))"
  - name: other
    tables:
      - name: t
        columns:
          - {name: a, type: "decimal(10,2)"}
`

func TestLoadCatalog(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()

	c, err := LoadCatalog(strings.NewReader(catalogYAML))
	require.NoError(err)

	src, err := c.GetTable(ctx, "DEFAULT", "Src")
	require.NoError(err)
	require.Equal("default.src", sql.QualifiedName(src))
	require.Len(src.Columns(), 2)
	require.Equal(sql.StringType, src.Columns()[0].Type)
	require.Equal(TextInputFormat, src.Storage().InputFormat)
	require.Equal(sql.ManagedTable, src.Type())

	acid, err := c.GetTable(ctx, "default", "acid")
	require.NoError(err)
	require.True(acid.IsTransactional())
	require.True(acid.Storage().IsBucketed())
	require.Equal(TextInputFormat, acid.Storage().InputFormat)

	v, err := c.GetTable(ctx, "default", "v")
	require.NoError(err)
	require.True(v.Type().IsView())
	require.Contains(v.ViewExpandedText(), "TOK_QUERY")

	other, err := c.GetTable(ctx, "other", "t")
	require.NoError(err)
	require.Equal(sql.DecimalType(10, 2), other.Columns()[0].Type)

	_, err = c.GetTable(ctx, "default", "missing")
	require.Error(err)
	require.True(sql.ErrInvalidTable.Is(err))
	_, err = c.GetTable(ctx, "nodb", "src")
	require.True(sql.ErrInvalidTable.Is(err))
	require.Equal(6, c.Lookups())
}

func TestGetPartitionsByNames(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()

	c, err := LoadCatalog(strings.NewReader(catalogYAML))
	require.NoError(err)
	srcpart, err := c.GetTable(ctx, "default", "srcpart")
	require.NoError(err)
	require.True(sql.IsPartitioned(srcpart))

	testCases := []struct {
		spec     string
		expected int
	}{
		{"ds=2008-04-08/hr=11", 1},
		{"ds=2008-04-08/hr", 2},
		{"ds=2008-04-08", 2},
		{"ds/hr=11", 2},
		{"ds=2009-01-01/hr=11", 0},
		{"", 3},
	}
	for _, tt := range testCases {
		t.Run(tt.spec, func(t *testing.T) {
			parts, err := c.GetPartitionsByNames(ctx, srcpart, ParsePartitionName(tt.spec))
			require.NoError(err)
			require.Len(parts, tt.expected)
		})
	}

	parts, err := c.GetPartitionsByNames(ctx, srcpart, ParsePartitionName("ds=2008-04-08/hr=12"))
	require.NoError(err)
	require.Equal("/warehouse/default.db/srcpart/ds=2008-04-08/hr=12", parts[0].Location())
	require.Equal(srcpart, parts[0].Table())
}

func TestAddPartitionErrors(t *testing.T) {
	require := require.New(t)
	c := NewCatalog()
	c.AddTable(NewTable("default", "p", []sql.FieldSchema{{Name: "a", Type: sql.IntType}},
		WithPartitionColumns(sql.FieldSchema{Name: "ds", Type: sql.StringType})))

	require.NoError(c.AddPartition("default", "p", "ds=1"))

	err := c.AddPartition("default", "p", "ds")
	require.True(ErrInvalidPartitionSpec.Is(err))
	err = c.AddPartition("default", "p", "ds=1/hr=2")
	require.True(ErrInvalidPartitionSpec.Is(err))
	err = c.AddPartition("default", "nope", "ds=1")
	require.True(sql.ErrInvalidTable.Is(err))
}

func TestCatalogFailures(t *testing.T) {
	require := require.New(t)
	c := NewCatalog()
	c.AddTable(NewTable("default", "t", []sql.FieldSchema{{Name: "a", Type: sql.IntType}}))
	c.FailOn("default.t", fmt.Errorf("connection refused"))

	_, err := c.GetTable(sql.NewEmptyContext(), "default", "t")
	require.Error(err)
	require.True(sql.IsEnvironmentError(err))
	require.False(sql.ErrInvalidTable.Is(err))
}

func TestCatalogSpecRoundTrip(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()

	c, err := LoadCatalog(strings.NewReader(catalogYAML))
	require.NoError(err)

	data, err := yaml.Marshal(c.Spec())
	require.NoError(err)
	c2, err := LoadCatalog(bytes.NewReader(data))
	require.NoError(err)

	for _, name := range []string{"src", "srcpart", "acid", "v"} {
		t1, err := c.GetTable(ctx, "default", name)
		require.NoError(err)
		t2, err := c2.GetTable(ctx, "default", name)
		require.NoError(err)
		require.Equal(t1, t2, name)
	}
	parts, err := c2.GetPartitionsByNames(ctx, mustTable(c2, "srcpart"), nil)
	require.NoError(err)
	require.Len(parts, 3)
}

func mustTable(c *Catalog, name string) *Table {
	return c.Database("default").Tables()[name]
}

func TestLoadCatalogErrors(t *testing.T) {
	require := require.New(t)

	_, err := LoadCatalog(strings.NewReader("databases: [{name: d, tables: [{name: t, columns: [{name: a, type: nosuchtype}]}]}]"))
	require.Error(err)
	require.True(ErrInvalidTableSpec.Is(err))

	_, err = LoadCatalog(strings.NewReader("databases: [{name: d, tables: [{name: t, type: weird}]}]"))
	require.True(ErrInvalidTableSpec.Is(err))

	_, err = LoadCatalog(strings.NewReader("databases: {"))
	require.True(ErrInvalidTableSpec.Is(err))

	_, err = LoadCatalogFile("/nonexistent/catalog.yaml")
	require.True(sql.IsEnvironmentError(err))
}

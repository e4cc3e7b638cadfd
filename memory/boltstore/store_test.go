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

package boltstore

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/difin/hive-sub000/memory"
	"github.com/difin/hive-sub000/sql"
)

func newCatalog() *memory.Catalog {
	c := memory.NewCatalog()
	c.AddTable(memory.NewTable("default", "src", []sql.FieldSchema{
		{Name: "key", Type: sql.StringType},
		{Name: "value", Type: sql.StringType},
	}))
	c.AddTable(memory.NewTable("default", "part", []sql.FieldSchema{{Name: "a", Type: sql.IntType}},
		memory.WithPartitionColumns(sql.FieldSchema{Name: "ds", Type: sql.StringType}),
		memory.WithBuckets(4, "a")))
	c.AddTable(memory.NewTable("sales", "orders", []sql.FieldSchema{{Name: "id", Type: sql.BigIntType}}, memory.Transactional()))
	_ = c.AddPartition("default", "part", "ds=1")
	_ = c.AddPartition("default", "part", "ds=2")
	return c
}

func openStore(t *testing.T) (*Store, func()) {
	dir, err := ioutil.TempDir("", "boltstore")
	require.NoError(t, err)
	s, err := Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	return s, func() {
		s.Close()
		os.RemoveAll(dir)
	}
}

func TestStoreGetTable(t *testing.T) {
	require := require.New(t)
	s, cleanup := openStore(t)
	defer cleanup()

	require.NoError(s.Save(newCatalog()))
	ctx := sql.NewEmptyContext()

	src, err := s.GetTable(ctx, "default", "SRC")
	require.NoError(err)
	require.Equal("default.src", sql.QualifiedName(src))
	require.Len(src.Columns(), 2)

	orders, err := s.GetTable(ctx, "sales", "orders")
	require.NoError(err)
	require.True(orders.IsTransactional())
	require.Equal(sql.BigIntType, orders.Columns()[0].Type)

	_, err = s.GetTable(ctx, "default", "missing")
	require.True(sql.ErrInvalidTable.Is(err))
	_, err = s.GetTable(ctx, "nodb", "src")
	require.True(sql.ErrInvalidTable.Is(err))

	part, err := s.GetTable(ctx, "default", "part")
	require.NoError(err)
	require.True(part.Storage().IsBucketed())
	parts, err := s.GetPartitionsByNames(ctx, part, memory.ParsePartitionName("ds=2"))
	require.NoError(err)
	require.Len(parts, 1)
	require.Equal("ds=2", parts[0].Spec().String())
}

func TestStoreLoad(t *testing.T) {
	require := require.New(t)
	s, cleanup := openStore(t)
	defer cleanup()

	original := newCatalog()
	require.NoError(s.Save(original))
	loaded, err := s.Load()
	require.NoError(err)

	ctx := sql.NewEmptyContext()
	for _, name := range [][2]string{{"default", "src"}, {"default", "part"}, {"sales", "orders"}} {
		want, err := original.GetTable(ctx, name[0], name[1])
		require.NoError(err)
		got, err := loaded.GetTable(ctx, name[0], name[1])
		require.NoError(err)
		require.Equal(want, got)
	}
	require.Len(loaded.Database("default").Partitions("part"), 2)
}

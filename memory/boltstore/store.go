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

// Package boltstore persists catalog snapshots in a bolt file. Each
// database is a bucket holding one YAML encoded table definition per key.
package boltstore

import (
	"os"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"gopkg.in/yaml.v2"

	"github.com/difin/hive-sub000/memory"
	"github.com/difin/hive-sub000/sql"
)

// Store is a bolt backed sql.Catalog.
type Store struct {
	db *bolt.DB
}

var _ sql.Catalog = (*Store)(nil)

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, sql.ErrInternal.Wrap(err, "opening catalog store "+path)
	}
	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing store without taking the write lock.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, sql.ErrInternal.Wrap(err, "opening catalog store "+path)
	}
	db, err := bolt.Open(path, 0400, &bolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return nil, sql.ErrInternal.Wrap(err, "opening catalog store "+path)
	}
	return &Store{db: db}, nil
}

// Close releases the bolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes every table of the catalog, replacing existing entries.
func (s *Store) Save(c *memory.Catalog) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, ds := range c.Spec().Databases {
			b, err := tx.CreateBucketIfNotExists([]byte(ds.Name))
			if err != nil {
				return err
			}
			for _, ts := range ds.Tables {
				data, err := yaml.Marshal(ts)
				if err != nil {
					return err
				}
				if err := b.Put([]byte(ts.Name), data); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return sql.ErrInternal.Wrap(err, "saving catalog")
	}
	return nil
}

// Load reads the whole store into an in-memory catalog.
func (s *Store) Load() (*memory.Catalog, error) {
	var spec memory.CatalogSpec
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			ds := memory.DatabaseSpec{Name: string(name)}
			err := b.ForEach(func(k, v []byte) error {
				var ts memory.TableSpec
				if err := yaml.Unmarshal(v, &ts); err != nil {
					return memory.ErrInvalidTableSpec.Wrap(err, string(k), "malformed YAML")
				}
				ds.Tables = append(ds.Tables, ts)
				return nil
			})
			if err != nil {
				return err
			}
			spec.Databases = append(spec.Databases, ds)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return spec.Build()
}

func (s *Store) spec(db, name string) (*memory.TableSpec, error) {
	var ts *memory.TableSpec
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(db))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(name))
		if v == nil {
			return nil
		}
		ts = new(memory.TableSpec)
		if err := yaml.Unmarshal(v, ts); err != nil {
			return memory.ErrInvalidTableSpec.Wrap(err, name, "malformed YAML")
		}
		return nil
	})
	return ts, err
}

// GetTable implements the sql.Catalog interface.
func (s *Store) GetTable(ctx *sql.Context, db, name string) (sql.Table, error) {
	db, name = strings.ToLower(db), strings.ToLower(name)
	ts, err := s.spec(db, name)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		return nil, sql.ErrInvalidTable.New(db + "." + name)
	}
	return ts.Build(db)
}

// GetPartitionsByNames implements the sql.Catalog interface.
func (s *Store) GetPartitionsByNames(ctx *sql.Context, table sql.Table, spec sql.PartitionSpec) ([]sql.Partition, error) {
	ts, err := s.spec(table.Database(), table.Name())
	if err != nil {
		return nil, err
	}
	if ts == nil {
		return nil, sql.ErrInvalidTable.New(sql.QualifiedName(table))
	}

	c := memory.NewCatalog()
	t, err := ts.Build(table.Database())
	if err != nil {
		return nil, err
	}
	c.AddTable(t)
	for _, p := range ts.Partitions {
		if err := c.AddPartition(t.Database(), t.Name(), p); err != nil {
			return nil, err
		}
	}
	return c.GetPartitionsByNames(ctx, t, spec)
}

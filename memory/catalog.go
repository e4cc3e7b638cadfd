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
	"sort"
	"strings"
	"sync"

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/difin/hive-sub000/sql"
)

// ErrInvalidPartitionSpec is returned when a partition spec does not
// match the partition columns of its table.
var ErrInvalidPartitionSpec = errors.NewKind("invalid partition spec %s for table %s")

// ErrInvalidTableSpec is returned when a serialized table cannot be
// decoded.
var ErrInvalidTableSpec = errors.NewKind("invalid definition of table %s: %s")

// Catalog is an in-memory sql.Catalog.
type Catalog struct {
	mu       sync.RWMutex
	dbs      map[string]*Database
	failures map[string]error
	lookups  int
}

var _ sql.Catalog = (*Catalog)(nil)

// NewCatalog creates a catalog holding an empty "default" database.
func NewCatalog() *Catalog {
	c := &Catalog{
		dbs:      make(map[string]*Database),
		failures: make(map[string]error),
	}
	c.AddDatabase(NewDatabase("default"))
	return c
}

// AddDatabase adds a database, replacing one with the same name.
func (c *Catalog) AddDatabase(db *Database) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dbs[db.Name()] = db
}

// Database returns a database, creating it when missing.
func (c *Catalog) Database(name string) *Database {
	c.mu.Lock()
	defer c.mu.Unlock()
	name = strings.ToLower(name)
	db, ok := c.dbs[name]
	if !ok {
		db = NewDatabase(name)
		c.dbs[name] = db
	}
	return db
}

// Databases returns the databases of the catalog sorted by name.
func (c *Catalog) Databases() []*Database {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dbs := make([]*Database, 0, len(c.dbs))
	for _, db := range c.dbs {
		dbs = append(dbs, db)
	}
	sort.Slice(dbs, func(i, j int) bool { return dbs[i].Name() < dbs[j].Name() })
	return dbs
}

// AddTable adds t to its database.
func (c *Catalog) AddTable(t *Table) {
	c.Database(t.Database()).AddTable(t)
}

// AddPartition adds a partition given by name, e.g. "ds=1/hr=2".
func (c *Catalog) AddPartition(db, table, name string) error {
	_, err := c.Database(db).AddPartition(table, ParsePartitionName(name))
	return err
}

// FailOn makes lookups of the qualified table name fail with err. It
// simulates metastore failures.
func (c *Catalog) FailOn(qualifiedName string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[strings.ToLower(qualifiedName)] = err
}

// Lookups returns the number of table lookups served.
func (c *Catalog) Lookups() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookups
}

// GetTable implements the sql.Catalog interface.
func (c *Catalog) GetTable(ctx *sql.Context, db, name string) (sql.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++

	db, name = strings.ToLower(db), strings.ToLower(name)
	if err, ok := c.failures[db+"."+name]; ok {
		return nil, sql.ErrInternal.Wrap(err, "catalog lookup of "+db+"."+name)
	}
	d, ok := c.dbs[db]
	if !ok {
		return nil, sql.ErrInvalidTable.New(db + "." + name)
	}
	t, ok := d.tables[name]
	if !ok {
		return nil, sql.ErrInvalidTable.New(db + "." + name)
	}
	return t, nil
}

// GetPartitionsByNames implements the sql.Catalog interface. It returns
// the partitions matching every valued column of spec.
func (c *Catalog) GetPartitionsByNames(ctx *sql.Context, table sql.Table, spec sql.PartitionSpec) ([]sql.Partition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.dbs[table.Database()]
	if !ok {
		return nil, sql.ErrInvalidTable.New(sql.QualifiedName(table))
	}
	var result []sql.Partition
	for _, p := range d.partitions[table.Name()] {
		if matches(p.spec, spec) {
			result = append(result, p)
		}
	}
	return result, nil
}

func matches(have, want sql.PartitionSpec) bool {
	for _, kv := range want {
		if kv.Value == "" {
			continue
		}
		v, ok := have.Get(kv.Column)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}

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

	"github.com/difin/hive-sub000/sql"
)

// Database is an in-memory database.
type Database struct {
	name       string
	tables     map[string]*Table
	partitions map[string][]*Partition
}

// NewDatabase creates a new database with the given name.
func NewDatabase(name string) *Database {
	return &Database{
		name:       strings.ToLower(name),
		tables:     make(map[string]*Table),
		partitions: make(map[string][]*Partition),
	}
}

// Name returns the database name.
func (d *Database) Name() string {
	return d.name
}

// Tables returns all tables in the database.
func (d *Database) Tables() map[string]*Table {
	return d.tables
}

// TableNames returns the table names in sorted order.
func (d *Database) TableNames() []string {
	names := make([]string, 0, len(d.tables))
	for n := range d.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddTable adds a new table to the database.
func (d *Database) AddTable(t *Table) {
	t.database = d.name
	d.tables[t.Name()] = t
}

// AddPartition adds a partition to a table of the database. The partition
// spec must name every partition column.
func (d *Database) AddPartition(table string, spec sql.PartitionSpec) (*Partition, error) {
	t, ok := d.tables[strings.ToLower(table)]
	if !ok {
		return nil, sql.ErrInvalidTable.New(d.name + "." + table)
	}
	if len(spec) != len(t.PartitionColumns()) || !spec.IsStatic() {
		return nil, ErrInvalidPartitionSpec.New(spec.String(), sql.QualifiedName(t))
	}
	p := &Partition{
		table:    t,
		spec:     spec,
		location: t.Storage().Location + "/" + spec.String(),
	}
	d.partitions[t.Name()] = append(d.partitions[t.Name()], p)
	return p, nil
}

// Partitions returns the partitions of a table.
func (d *Database) Partitions(table string) []*Partition {
	return d.partitions[strings.ToLower(table)]
}

// ParsePartitionName parses "ds=1/hr=2" into a spec. A component without
// '=' is a dynamic column.
func ParsePartitionName(name string) sql.PartitionSpec {
	var spec sql.PartitionSpec
	if name == "" {
		return spec
	}
	for _, part := range strings.Split(name, "/") {
		kv := strings.SplitN(part, "=", 2)
		pkv := sql.PartitionKeyValue{Column: strings.ToLower(kv[0])}
		if len(kv) == 2 {
			pkv.Value = kv[1]
		}
		spec = append(spec, pkv)
	}
	return spec
}

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
	"strings"

	"github.com/difin/hive-sub000/sql"
)

// Table is an in-memory table or view definition.
type Table struct {
	name             string
	database         string
	columns          []sql.FieldSchema
	partitionColumns []sql.FieldSchema
	storage          sql.StorageDescriptor
	constraints      sql.Constraints
	typ              sql.TableType
	transactional    bool
	insertOnly       bool
	viewText         string
	mvSources        []string
	properties       map[string]string
}

var _ sql.Table = (*Table)(nil)

// TableOption configures a table created by NewTable.
type TableOption func(*Table)

// WithPartitionColumns declares the partition columns.
func WithPartitionColumns(cols ...sql.FieldSchema) TableOption {
	return func(t *Table) {
		t.partitionColumns = append(t.partitionColumns, cols...)
	}
}

// WithStorage sets the storage descriptor.
func WithStorage(sd sql.StorageDescriptor) TableOption {
	return func(t *Table) {
		t.storage = sd
	}
}

// WithBuckets declares the table bucketed on cols.
func WithBuckets(n int, cols ...string) TableOption {
	return func(t *Table) {
		t.storage.NumBuckets = n
		t.storage.BucketCols = cols
	}
}

// WithSortColumns declares the sort order inside each bucket.
func WithSortColumns(cols ...sql.SortColumn) TableOption {
	return func(t *Table) {
		t.storage.SortCols = cols
	}
}

// WithConstraints sets the table constraints.
func WithConstraints(c sql.Constraints) TableOption {
	return func(t *Table) {
		t.constraints = c
	}
}

// WithTableType sets the table type; the default is a managed table.
func WithTableType(typ sql.TableType) TableOption {
	return func(t *Table) {
		t.typ = typ
	}
}

// Transactional marks the table as full ACID.
func Transactional() TableOption {
	return func(t *Table) {
		t.transactional = true
	}
}

// InsertOnly marks the table as insert-only transactional.
func InsertOnly() TableOption {
	return func(t *Table) {
		t.transactional = true
		t.insertOnly = true
	}
}

// WithProperty sets a table property.
func WithProperty(key, value string) TableOption {
	return func(t *Table) {
		t.properties[key] = value
	}
}

// NewTable creates a managed table with the default text storage.
func NewTable(db, name string, columns []sql.FieldSchema, opts ...TableOption) *Table {
	t := &Table{
		name:     strings.ToLower(name),
		database: strings.ToLower(db),
		columns:  columns,
		typ:      sql.ManagedTable,
		storage: sql.StorageDescriptor{
			InputFormat:  TextInputFormat,
			OutputFormat: TextOutputFormat,
			SerDe:        LazySimpleSerDe,
			Location:     "/warehouse/" + strings.ToLower(db) + ".db/" + strings.ToLower(name),
		},
		properties: make(map[string]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewView creates a view whose body is the AST dump text.
func NewView(db, name, text string, columns []sql.FieldSchema) *Table {
	t := NewTable(db, name, columns, WithTableType(sql.VirtualView))
	t.viewText = text
	t.storage = sql.StorageDescriptor{}
	return t
}

// NewMaterializedView creates a materialized view over sources.
func NewMaterializedView(db, name, text string, columns []sql.FieldSchema, sources ...string) *Table {
	t := NewTable(db, name, columns, WithTableType(sql.MaterializedView), Transactional())
	t.viewText = text
	t.mvSources = sources
	return t
}

// Storage formats of the default text table.
const (
	TextInputFormat  = "org.apache.hadoop.mapred.TextInputFormat"
	TextOutputFormat = "org.apache.hadoop.hive.ql.io.HiveIgnoreKeyTextOutputFormat"
	LazySimpleSerDe  = "org.apache.hadoop.hive.serde2.lazy.LazySimpleSerDe"
)

// Name implements the sql.Table interface.
func (t *Table) Name() string { return t.name }

// Database implements the sql.Table interface.
func (t *Table) Database() string { return t.database }

// Columns implements the sql.Table interface.
func (t *Table) Columns() []sql.FieldSchema { return t.columns }

// PartitionColumns implements the sql.Table interface.
func (t *Table) PartitionColumns() []sql.FieldSchema { return t.partitionColumns }

// Storage implements the sql.Table interface.
func (t *Table) Storage() sql.StorageDescriptor { return t.storage }

// Constraints implements the sql.Table interface.
func (t *Table) Constraints() sql.Constraints { return t.constraints }

// Type implements the sql.Table interface.
func (t *Table) Type() sql.TableType { return t.typ }

// IsTransactional implements the sql.Table interface.
func (t *Table) IsTransactional() bool { return t.transactional }

// IsInsertOnly implements the sql.Table interface.
func (t *Table) IsInsertOnly() bool { return t.insertOnly }

// ViewExpandedText implements the sql.Table interface.
func (t *Table) ViewExpandedText() string { return t.viewText }

// MaterializedViewSources implements the sql.Table interface.
func (t *Table) MaterializedViewSources() []string { return t.mvSources }

// Properties implements the sql.Table interface.
func (t *Table) Properties() map[string]string { return t.properties }

// Partition is one partition of an in-memory table.
type Partition struct {
	table    *Table
	spec     sql.PartitionSpec
	location string
}

var _ sql.Partition = (*Partition)(nil)

// Table implements the sql.Partition interface.
func (p *Partition) Table() sql.Table { return p.table }

// Spec implements the sql.Partition interface.
func (p *Partition) Spec() sql.PartitionSpec { return p.spec }

// Location implements the sql.Partition interface.
func (p *Partition) Location() string { return p.location }

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
	"strings"
)

// TableType distinguishes tables from views.
type TableType int

const (
	ManagedTable TableType = iota
	ExternalTable
	TemporaryTable
	VirtualView
	MaterializedView
)

func (t TableType) String() string {
	switch t {
	case ManagedTable:
		return "MANAGED_TABLE"
	case ExternalTable:
		return "EXTERNAL_TABLE"
	case TemporaryTable:
		return "TEMPORARY_TABLE"
	case VirtualView:
		return "VIRTUAL_VIEW"
	case MaterializedView:
		return "MATERIALIZED_VIEW"
	default:
		return "UNKNOWN"
	}
}

// IsView reports whether the object is a virtual or materialized view.
func (t TableType) IsView() bool {
	return t == VirtualView || t == MaterializedView
}

// FieldSchema is one column of a catalog table.
type FieldSchema struct {
	Name    string `yaml:"name"`
	Type    Type   `yaml:"-"`
	Comment string `yaml:"comment,omitempty"`
}

// SortColumn is one bucket sort column.
type SortColumn struct {
	Name string `yaml:"name"`
	Asc  bool   `yaml:"asc"`
}

// StorageDescriptor describes how a table is laid out on storage.
type StorageDescriptor struct {
	InputFormat  string       `yaml:"input_format"`
	OutputFormat string       `yaml:"output_format"`
	SerDe        string       `yaml:"serde"`
	Location     string       `yaml:"location"`
	NumBuckets   int          `yaml:"num_buckets"`
	BucketCols   []string     `yaml:"bucket_cols"`
	SortCols     []SortColumn `yaml:"sort_cols"`
	SkewedCols   []string     `yaml:"skewed_cols"`
}

// IsBucketed reports whether the table declares bucket columns.
func (s StorageDescriptor) IsBucketed() bool {
	return s.NumBuckets > 0 && len(s.BucketCols) > 0
}

// ForeignKey is a foreign key constraint.
type ForeignKey struct {
	Columns    []string `yaml:"columns"`
	RefTable   string   `yaml:"ref_table"`
	RefColumns []string `yaml:"ref_columns"`
}

// Constraints are the declared constraints of a table.
type Constraints struct {
	PrimaryKey  []string          `yaml:"primary_key"`
	ForeignKeys []ForeignKey      `yaml:"foreign_keys"`
	NotNull     []string          `yaml:"not_null"`
	Defaults    map[string]string `yaml:"defaults"`
	Checks      []string          `yaml:"checks"`
}

// IsNotNull reports whether col carries a NOT NULL constraint.
func (c Constraints) IsNotNull(col string) bool {
	for _, n := range c.NotNull {
		if strings.EqualFold(n, col) {
			return true
		}
	}
	for _, n := range c.PrimaryKey {
		if strings.EqualFold(n, col) {
			return true
		}
	}
	return false
}

// Table is the catalog's view of one table or view.
type Table interface {
	// Name is the unqualified, lower-cased table name.
	Name() string
	// Database is the owning database.
	Database() string
	Columns() []FieldSchema
	PartitionColumns() []FieldSchema
	Storage() StorageDescriptor
	Constraints() Constraints
	Type() TableType
	// IsTransactional reports full ACID support.
	IsTransactional() bool
	// IsInsertOnly reports insert-only transactional tables.
	IsInsertOnly() bool
	// ViewExpandedText is the AST dump of a view body.
	ViewExpandedText() string
	// MaterializedViewSources lists the source tables of a materialized
	// view.
	MaterializedViewSources() []string
	Properties() map[string]string
}

// QualifiedName returns "db.table".
func QualifiedName(t Table) string {
	return t.Database() + "." + t.Name()
}

// IsPartitioned reports whether the table has partition columns.
func IsPartitioned(t Table) bool {
	return len(t.PartitionColumns()) > 0
}

// PartitionKeyValue is one column of a partition spec. Value is empty for
// a dynamic partition column.
type PartitionKeyValue struct {
	Column string
	Value  string
}

// PartitionSpec is an ordered partition specification.
type PartitionSpec []PartitionKeyValue

// IsStatic reports whether every column has a value.
func (s PartitionSpec) IsStatic() bool {
	for _, kv := range s {
		if kv.Value == "" {
			return false
		}
	}
	return true
}

// StaticPrefix returns the leading columns that have values.
func (s PartitionSpec) StaticPrefix() PartitionSpec {
	for i, kv := range s {
		if kv.Value == "" {
			return s[:i]
		}
	}
	return s
}

// DynamicColumns returns the columns without values.
func (s PartitionSpec) DynamicColumns() []string {
	var cols []string
	for _, kv := range s {
		if kv.Value == "" {
			cols = append(cols, kv.Column)
		}
	}
	return cols
}

// Get returns the value of a column.
func (s PartitionSpec) Get(col string) (string, bool) {
	for _, kv := range s {
		if strings.EqualFold(kv.Column, col) {
			return kv.Value, true
		}
	}
	return "", false
}

func (s PartitionSpec) String() string {
	parts := make([]string, len(s))
	for i, kv := range s {
		if kv.Value == "" {
			parts[i] = kv.Column
		} else {
			parts[i] = fmt.Sprintf("%s=%s", kv.Column, kv.Value)
		}
	}
	return strings.Join(parts, "/")
}

// Partition is one partition of a table.
type Partition interface {
	Table() Table
	Spec() PartitionSpec
	Location() string
}

// Catalog resolves table names to metadata. Missing tables are reported
// with ErrInvalidTable; any other error is an environment failure.
type Catalog interface {
	GetTable(ctx *Context, db, name string) (Table, error)
	GetPartitionsByNames(ctx *Context, table Table, spec PartitionSpec) ([]Partition, error)
}

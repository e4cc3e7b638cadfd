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
	"io"
	"io/ioutil"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/difin/hive-sub000/sql"
)

// ColumnSpec is the serialized form of a column.
type ColumnSpec struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Comment string `yaml:"comment,omitempty"`
}

// TableSpec is the serialized form of a table, view or materialized view.
type TableSpec struct {
	Name             string                `yaml:"name"`
	Database         string                `yaml:"database,omitempty"`
	Type             string                `yaml:"type,omitempty"`
	Columns          []ColumnSpec          `yaml:"columns"`
	PartitionColumns []ColumnSpec          `yaml:"partition_columns,omitempty"`
	Storage          sql.StorageDescriptor `yaml:"storage,omitempty"`
	Constraints      sql.Constraints       `yaml:"constraints,omitempty"`
	Transactional    bool                  `yaml:"transactional,omitempty"`
	InsertOnly       bool                  `yaml:"insert_only,omitempty"`
	ViewText         string                `yaml:"view_text,omitempty"`
	Sources          []string              `yaml:"sources,omitempty"`
	Properties       map[string]string     `yaml:"properties,omitempty"`
	Partitions       []string              `yaml:"partitions,omitempty"`
}

// DatabaseSpec is the serialized form of a database.
type DatabaseSpec struct {
	Name   string      `yaml:"name"`
	Tables []TableSpec `yaml:"tables"`
}

// CatalogSpec is the serialized form of a catalog.
type CatalogSpec struct {
	Databases []DatabaseSpec `yaml:"databases"`
}

var tableTypes = map[string]sql.TableType{
	"":                  sql.ManagedTable,
	"managed":           sql.ManagedTable,
	"external":          sql.ExternalTable,
	"temporary":         sql.TemporaryTable,
	"view":              sql.VirtualView,
	"materialized_view": sql.MaterializedView,
}

func tableTypeName(t sql.TableType) string {
	switch t {
	case sql.ExternalTable:
		return "external"
	case sql.TemporaryTable:
		return "temporary"
	case sql.VirtualView:
		return "view"
	case sql.MaterializedView:
		return "materialized_view"
	default:
		return "managed"
	}
}

func parseColumns(specs []ColumnSpec) ([]sql.FieldSchema, error) {
	cols := make([]sql.FieldSchema, len(specs))
	for i, c := range specs {
		typ, err := sql.ParseType(c.Type)
		if err != nil {
			return nil, err
		}
		cols[i] = sql.FieldSchema{Name: strings.ToLower(c.Name), Type: typ, Comment: c.Comment}
	}
	return cols, nil
}

func columnSpecs(cols []sql.FieldSchema) []ColumnSpec {
	specs := make([]ColumnSpec, len(cols))
	for i, c := range cols {
		specs[i] = ColumnSpec{Name: c.Name, Type: c.Type.String(), Comment: c.Comment}
	}
	return specs
}

// Build creates the table described by the spec in database db, unless
// the spec names its own database.
func (s TableSpec) Build(db string) (*Table, error) {
	typ, ok := tableTypes[strings.ToLower(s.Type)]
	if !ok {
		return nil, ErrInvalidTableSpec.New(s.Name, "unknown table type "+s.Type)
	}
	if s.Database != "" {
		db = s.Database
	}
	cols, err := parseColumns(s.Columns)
	if err != nil {
		return nil, ErrInvalidTableSpec.Wrap(err, s.Name, "columns")
	}
	partCols, err := parseColumns(s.PartitionColumns)
	if err != nil {
		return nil, ErrInvalidTableSpec.Wrap(err, s.Name, "partition columns")
	}

	t := NewTable(db, s.Name, cols, WithTableType(typ), WithPartitionColumns(partCols...), WithConstraints(normalizeConstraints(s.Constraints)))
	if s.Storage.InputFormat != "" || s.Storage.OutputFormat != "" {
		t.storage = s.Storage
	} else {
		t.storage.NumBuckets = s.Storage.NumBuckets
		t.storage.BucketCols = s.Storage.BucketCols
		t.storage.SortCols = s.Storage.SortCols
		t.storage.SkewedCols = s.Storage.SkewedCols
		if s.Storage.Location != "" {
			t.storage.Location = s.Storage.Location
		}
	}
	if typ == sql.VirtualView {
		t.storage = sql.StorageDescriptor{}
	}
	t.storage = normalizeStorage(t.storage)
	t.transactional = s.Transactional || s.InsertOnly
	t.insertOnly = s.InsertOnly
	t.viewText = s.ViewText
	t.mvSources = s.Sources
	for k, v := range s.Properties {
		t.properties[k] = v
	}
	return t, nil
}

// Empty lists decode as empty slices; tables keep nil instead so decoded
// and constructed tables compare equal.
func normalizeStorage(sd sql.StorageDescriptor) sql.StorageDescriptor {
	if len(sd.BucketCols) == 0 {
		sd.BucketCols = nil
	}
	if len(sd.SortCols) == 0 {
		sd.SortCols = nil
	}
	if len(sd.SkewedCols) == 0 {
		sd.SkewedCols = nil
	}
	return sd
}

func normalizeConstraints(c sql.Constraints) sql.Constraints {
	if len(c.PrimaryKey) == 0 {
		c.PrimaryKey = nil
	}
	if len(c.ForeignKeys) == 0 {
		c.ForeignKeys = nil
	}
	if len(c.NotNull) == 0 {
		c.NotNull = nil
	}
	if len(c.Defaults) == 0 {
		c.Defaults = nil
	}
	if len(c.Checks) == 0 {
		c.Checks = nil
	}
	return c
}

// SpecOf returns the serialized form of t and its partitions.
func SpecOf(t *Table, partitions []*Partition) TableSpec {
	s := TableSpec{
		Name:             t.Name(),
		Database:         t.Database(),
		Type:             tableTypeName(t.Type()),
		Columns:          columnSpecs(t.Columns()),
		PartitionColumns: columnSpecs(t.PartitionColumns()),
		Storage:          t.Storage(),
		Constraints:      t.Constraints(),
		Transactional:    t.IsTransactional(),
		InsertOnly:       t.IsInsertOnly(),
		ViewText:         t.ViewExpandedText(),
		Sources:          t.MaterializedViewSources(),
	}
	if len(t.Properties()) > 0 {
		s.Properties = t.Properties()
	}
	for _, p := range partitions {
		s.Partitions = append(s.Partitions, p.Spec().String())
	}
	return s
}

// LoadCatalog reads a YAML catalog description.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, sql.ErrInternal.Wrap(err, "reading catalog")
	}
	var spec CatalogSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, ErrInvalidTableSpec.Wrap(err, "<catalog>", "malformed YAML")
	}
	return spec.Build()
}

// LoadCatalogFile is LoadCatalog over a file.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sql.ErrInternal.Wrap(err, "opening catalog")
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Build creates the catalog described by the spec.
func (s CatalogSpec) Build() (*Catalog, error) {
	c := NewCatalog()
	for _, dbSpec := range s.Databases {
		db := c.Database(dbSpec.Name)
		for _, ts := range dbSpec.Tables {
			t, err := ts.Build(db.Name())
			if err != nil {
				return nil, err
			}
			c.AddTable(t)
			for _, p := range ts.Partitions {
				if err := c.AddPartition(t.Database(), t.Name(), p); err != nil {
					return nil, err
				}
			}
		}
	}
	return c, nil
}

// Spec returns the serialized form of the catalog.
func (c *Catalog) Spec() CatalogSpec {
	var spec CatalogSpec
	for _, db := range c.Databases() {
		ds := DatabaseSpec{Name: db.Name()}
		for _, name := range db.TableNames() {
			ds.Tables = append(ds.Tables, SpecOf(db.tables[name], db.Partitions(name)))
		}
		spec.Databases = append(spec.Databases, ds)
	}
	return spec
}

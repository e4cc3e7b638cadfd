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

package plan

import (
	"github.com/mitchellh/hashstructure"

	"github.com/difin/hive-sub000/sql"
)

// EntityType is the kind of object read or written by a plan.
type EntityType int

const (
	TableEntity EntityType = iota
	PartitionEntity
	ViewEntity
	DirectoryEntity
	LocalDirectoryEntity
)

var entityTypeNames = map[EntityType]string{
	TableEntity:          "TABLE",
	PartitionEntity:      "PARTITION",
	ViewEntity:           "VIEW",
	DirectoryEntity:      "DFS_DIR",
	LocalDirectoryEntity: "LOCAL_DIR",
}

func (t EntityType) String() string {
	return entityTypeNames[t]
}

// ReadEntity is an object the plan reads.
type ReadEntity struct {
	Type EntityType
	// Name is the qualified table or view name, or a path.
	Name      string
	Partition string
	// Parents are the views through which the object was reached.
	Parents []string `hash:"ignore"`
	// Direct is set when the query names the object itself rather than
	// reaching it through a view.
	Direct bool `hash:"ignore"`
}

// WriteType is how a plan modifies a write entity.
type WriteType int

const (
	WriteInsert WriteType = iota
	WriteInsertOverwrite
	WriteUpdate
	WriteDelete
	WriteDDL
)

var writeTypeNames = map[WriteType]string{
	WriteInsert:          "INSERT",
	WriteInsertOverwrite: "INSERT_OVERWRITE",
	WriteUpdate:          "UPDATE",
	WriteDelete:          "DELETE",
	WriteDDL:             "DDL",
}

func (t WriteType) String() string {
	return writeTypeNames[t]
}

// WriteEntity is an object the plan writes.
type WriteEntity struct {
	Type      EntityType
	Name      string
	Partition string
	WriteType WriteType
	// Dynamic is set for partitions whose values are only known at run
	// time.
	Dynamic bool
}

// LoadTableWork moves staged sink output into a table or partition.
type LoadTableWork struct {
	DestID                  string
	Table                   string
	Partition               sql.PartitionSpec
	DynamicPartitionColumns []string
	SourceDir               string
	Replace                 bool
	Operation               sql.Operation
}

// LoadFileWork moves staged sink output into a directory.
type LoadFileWork struct {
	DestID      string
	SourceDir   string
	TargetDir   string
	IsLocal     bool
	Columns     []string
	ColumnTypes []string
}

// CachedResult is a previously computed query result returned by a
// results cache instead of a plan.
type CachedResult struct {
	Key      string
	Location string
	Schema   []sql.FieldSchema
}

// Plan is the result of analyzing one statement.
type Plan struct {
	Graph *Graph
	// Roots are the table scans of the plan.
	Roots []*Operator
	// Sinks are the file sinks, one per destination.
	Sinks      []*Operator
	LoadTables []*LoadTableWork
	LoadFiles  []*LoadFileWork
	Inputs     []*ReadEntity
	Outputs    []*WriteEntity
	// ResultSchema is the schema of the query result, empty for inserts.
	ResultSchema []sql.FieldSchema
	Warnings     []sql.Warning
	// CTEPlans are the plans of materialized CTEs, to run before this one.
	CTEPlans []*Plan
	// CachedResult is set when the compilation was short-circuited by a
	// results cache; the plan carries no operators then.
	CachedResult *CachedResult
	// Skipped is set when the target partition of an INSERT ... IF NOT
	// EXISTS already exists; the plan carries no operators then.
	Skipped bool

	inputIdx  map[uint64]*ReadEntity
	outputIdx map[uint64]*WriteEntity
}

// NewPlan creates an empty plan over graph.
func NewPlan(g *Graph) *Plan {
	return &Plan{
		Graph:     g,
		inputIdx:  make(map[uint64]*ReadEntity),
		outputIdx: make(map[uint64]*WriteEntity),
	}
}

// AddInput records a read entity. Reading the same object twice merges
// the view lineage and returns false.
func (p *Plan) AddInput(e *ReadEntity) (bool, error) {
	h, err := hashstructure.Hash(e, nil)
	if err != nil {
		return false, sql.ErrInternal.Wrap(err, "hashing read entity")
	}
	if p.inputIdx == nil {
		p.inputIdx = make(map[uint64]*ReadEntity)
	}
	if existing, ok := p.inputIdx[h]; ok {
		existing.Direct = existing.Direct || e.Direct
		for _, parent := range e.Parents {
			if !containsString(existing.Parents, parent) {
				existing.Parents = append(existing.Parents, parent)
			}
		}
		return false, nil
	}
	p.inputIdx[h] = e
	p.Inputs = append(p.Inputs, e)
	return true, nil
}

// AddOutput records a write entity, ignoring duplicates.
func (p *Plan) AddOutput(e *WriteEntity) (bool, error) {
	h, err := hashstructure.Hash(e, nil)
	if err != nil {
		return false, sql.ErrInternal.Wrap(err, "hashing write entity")
	}
	if p.outputIdx == nil {
		p.outputIdx = make(map[uint64]*WriteEntity)
	}
	if _, ok := p.outputIdx[h]; ok {
		return false, nil
	}
	p.outputIdx[h] = e
	p.Outputs = append(p.Outputs, e)
	return true, nil
}

// Input returns the read entity named name, or nil.
func (p *Plan) Input(name string) *ReadEntity {
	for _, e := range p.Inputs {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Operators returns every operator of the plan.
func (p *Plan) Operators() []*Operator {
	if p.Graph == nil {
		return nil
	}
	return p.Graph.Operators()
}

func containsString(list []string, s string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}

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
	"fmt"

	"github.com/difin/hive-sub000/sql"
)

// OperatorType identifies the variant of a logical operator.
type OperatorType int

const (
	TableScanOp OperatorType = iota
	FilterOp
	SelectOp
	JoinOp
	GroupByOp
	ReduceSinkOp
	UnionOp
	LimitOp
	ScriptOp
	UDTFOp
	LateralViewForwardOp
	LateralViewJoinOp
	FileSinkOp
	ForwardOp
	PTFOp
)

var operatorPrefixes = map[OperatorType]string{
	TableScanOp:          "TS",
	FilterOp:             "FIL",
	SelectOp:             "SEL",
	JoinOp:               "JOIN",
	GroupByOp:            "GBY",
	ReduceSinkOp:         "RS",
	UnionOp:              "UNION",
	LimitOp:              "LIM",
	ScriptOp:             "SCR",
	UDTFOp:               "UDTF",
	LateralViewForwardOp: "LVF",
	LateralViewJoinOp:    "LVJ",
	FileSinkOp:           "FS",
	ForwardOp:            "FOR",
	PTFOp:                "PTF",
}

var operatorNames = map[OperatorType]string{
	TableScanOp:          "TableScan",
	FilterOp:             "Filter",
	SelectOp:             "Select",
	JoinOp:               "Join",
	GroupByOp:            "GroupBy",
	ReduceSinkOp:         "ReduceSink",
	UnionOp:              "Union",
	LimitOp:              "Limit",
	ScriptOp:             "Script",
	UDTFOp:               "UDTF",
	LateralViewForwardOp: "LateralViewForward",
	LateralViewJoinOp:    "LateralViewJoin",
	FileSinkOp:           "FileSink",
	ForwardOp:            "Forward",
	PTFOp:                "PTF",
}

func (t OperatorType) String() string {
	if n, ok := operatorNames[t]; ok {
		return n
	}
	return fmt.Sprintf("OperatorType(%d)", int(t))
}

// Prefix returns the short name used in operator ids.
func (t OperatorType) Prefix() string {
	return operatorPrefixes[t]
}

// Descriptor is the operator specific part of a logical operator.
type Descriptor interface {
	fmt.Stringer
	// OperatorType returns the variant the descriptor configures.
	OperatorType() OperatorType
	// OutputColumnNames returns the internal names of the columns the
	// operator emits, in order.
	OutputColumnNames() []string
}

// Operator is a node of the logical plan DAG. Parents are the operators
// it reads from, children the operators consuming its output.
type Operator struct {
	ID     string
	Desc   Descriptor
	Schema sql.RowSchema
	// ColExprMap maps an output internal name to the expression it was
	// computed from.
	ColExprMap map[string]sql.Expression

	parents  []*Operator
	children []*Operator
}

// Type returns the operator variant.
func (o *Operator) Type() OperatorType {
	return o.Desc.OperatorType()
}

// Parents returns the operators this one reads from.
func (o *Operator) Parents() []*Operator {
	return o.parents
}

// Children returns the operators consuming this one.
func (o *Operator) Children() []*Operator {
	return o.children
}

// Parent returns the single parent of o, or nil.
func (o *Operator) Parent() *Operator {
	if len(o.parents) == 0 {
		return nil
	}
	return o.parents[0]
}

// AddParent links p as an additional input of o.
func (o *Operator) AddParent(p *Operator) {
	o.parents = append(o.parents, p)
	p.children = append(p.children, o)
}

// IsSink reports whether the operator terminates a branch of the DAG.
func (o *Operator) IsSink() bool {
	return o.Type() == FileSinkOp
}

// SetColumnExpression records how an output column was derived.
func (o *Operator) SetColumnExpression(name string, e sql.Expression) {
	if o.ColExprMap == nil {
		o.ColExprMap = make(map[string]sql.Expression)
	}
	o.ColExprMap[name] = e
}

func (o *Operator) String() string {
	return fmt.Sprintf("%s [%s]", o.ID, o.Desc)
}

// Graph allocates the operators of one compilation. Operator ids are
// unique within a graph.
type Graph struct {
	seq int
	ops []*Operator
}

// NewGraph creates an empty operator graph.
func NewGraph() *Graph {
	return &Graph{}
}

// New creates an operator reading from parents.
func (g *Graph) New(desc Descriptor, schema sql.RowSchema, parents ...*Operator) *Operator {
	op := &Operator{
		ID:     fmt.Sprintf("%s_%d", desc.OperatorType().Prefix(), g.seq),
		Desc:   desc,
		Schema: schema,
	}
	g.seq++
	for _, p := range parents {
		op.AddParent(p)
	}
	g.ops = append(g.ops, op)
	return op
}

// Operators returns every operator in creation order.
func (g *Graph) Operators() []*Operator {
	return g.ops
}

// Roots returns the operators without parents.
func (g *Graph) Roots() []*Operator {
	var roots []*Operator
	for _, op := range g.ops {
		if len(op.parents) == 0 {
			roots = append(roots, op)
		}
	}
	return roots
}

// Find returns the operators of the given type reachable from start by
// following children links, in breadth-first order.
func Find(start *Operator, t OperatorType) []*Operator {
	var result []*Operator
	seen := map[*Operator]bool{start: true}
	queue := []*Operator{start}
	for len(queue) > 0 {
		op := queue[0]
		queue = queue[1:]
		if op.Type() == t {
			result = append(result, op)
		}
		for _, c := range op.children {
			if !seen[c] {
				seen[c] = true
				queue = append(queue, c)
			}
		}
	}
	return result
}

// Ancestors returns every operator start reads from, directly or not,
// in breadth-first order.
func Ancestors(start *Operator) []*Operator {
	var result []*Operator
	seen := map[*Operator]bool{start: true}
	queue := []*Operator{start}
	for len(queue) > 0 {
		op := queue[0]
		queue = queue[1:]
		for _, p := range op.parents {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
				queue = append(queue, p)
			}
		}
	}
	return result
}

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
	"strings"

	"github.com/difin/hive-sub000/sql"
)

// GroupByMode is the stage a group-by operator computes.
type GroupByMode int

const (
	// Complete aggregates raw rows into final values.
	Complete GroupByMode = iota
	// Partial1 aggregates raw rows into partial results after a shuffle.
	Partial1
	// Partial2 merges partial results into partial results.
	Partial2
	// PartialS is the extra stage used for grouping sets that exceed the
	// cardinality threshold.
	PartialS
	// Final merges partial results into final values after a shuffle
	// keyed by the grouping keys.
	Final
	// Hash aggregates map-side into partial results.
	Hash
	// MergePartial merges map-side partial results into final values.
	MergePartial
)

var groupByModeNames = map[GroupByMode]string{
	Complete:     "COMPLETE",
	Partial1:     "PARTIAL1",
	Partial2:     "PARTIAL2",
	PartialS:     "PARTIALS",
	Final:        "FINAL",
	Hash:         "HASH",
	MergePartial: "MERGEPARTIAL",
}

func (m GroupByMode) String() string {
	return groupByModeNames[m]
}

// AggregationMode is the evaluation mode of a single aggregate.
type AggregationMode int

const (
	AggComplete AggregationMode = iota
	AggPartial1
	AggPartial2
	AggFinal
)

var aggregationModeNames = map[AggregationMode]string{
	AggComplete: "COMPLETE",
	AggPartial1: "PARTIAL1",
	AggPartial2: "PARTIAL2",
	AggFinal:    "FINAL",
}

func (m AggregationMode) String() string {
	return aggregationModeNames[m]
}

// AggregationDesc is one aggregate computed by a group-by operator.
type AggregationDesc struct {
	Name     string
	Args     []sql.Expression
	Distinct bool
	Mode     AggregationMode
	// Type is the output type in Mode: partial types for partial stages.
	Type sql.Type
}

func (a *AggregationDesc) String() string {
	if a.Distinct {
		return fmt.Sprintf("%s(DISTINCT %s)", a.Name, exprList(a.Args))
	}
	return fmt.Sprintf("%s(%s)", a.Name, exprList(a.Args))
}

// GroupByDesc groups rows by Keys and computes Aggregators.
type GroupByDesc struct {
	Mode        GroupByMode
	Keys        []sql.Expression
	Aggregators []*AggregationDesc
	Columns     []string
	// GroupingSets holds one bitmask per set; bit (n-1-i) set means key i
	// is rolled up to NULL.
	GroupingSets []int64
	// GroupingSetPosition is the index in Keys of the grouping id, -1 when
	// there are no grouping sets.
	GroupingSetPosition int
	// GroupingSetsExpanded is set on the stage that replicates rows per
	// grouping set.
	GroupingSetsExpanded bool
	// BucketGroup is set when the keys are a prefix of the bucketing of a
	// sorted table.
	BucketGroup bool
}

// OperatorType implements the Descriptor interface.
func (d *GroupByDesc) OperatorType() OperatorType { return GroupByOp }

// OutputColumnNames implements the Descriptor interface.
func (d *GroupByDesc) OutputColumnNames() []string { return d.Columns }

func (d *GroupByDesc) String() string {
	aggs := make([]string, len(d.Aggregators))
	for i, a := range d.Aggregators {
		aggs[i] = a.String()
	}
	s := fmt.Sprintf("GroupBy(mode: %s, keys: [%s], aggregations: [%s]", d.Mode, exprList(d.Keys), strings.Join(aggs, ", "))
	if len(d.GroupingSets) > 0 {
		sets := make([]string, len(d.GroupingSets))
		for i, g := range d.GroupingSets {
			sets[i] = fmt.Sprint(g)
		}
		s += ", grouping sets: [" + strings.Join(sets, ", ") + "]"
	}
	return s + ")"
}

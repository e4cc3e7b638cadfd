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

// SampleDesc is a TABLESAMPLE(BUCKET x OUT OF y [ON cols]) clause.
type SampleDesc struct {
	Numerator   int
	Denominator int
	Columns     []string
	// InputPruning is set when the sample columns are the table bucket
	// columns, so whole bucket files are selected instead of filtering.
	InputPruning bool
}

func (s *SampleDesc) String() string {
	return fmt.Sprintf("BUCKET %d OUT OF %d ON %s", s.Numerator, s.Denominator, strings.Join(s.Columns, ", "))
}

// SplitSampleDesc is a TABLESAMPLE(n PERCENT | n ROWS | n bytes) clause.
type SplitSampleDesc struct {
	Percent  float64
	RowCount int
	Length   int64
}

func (s *SplitSampleDesc) String() string {
	switch {
	case s.RowCount > 0:
		return fmt.Sprintf("%d ROWS", s.RowCount)
	case s.Length > 0:
		return fmt.Sprintf("%d bytes", s.Length)
	default:
		return fmt.Sprintf("%g PERCENT", s.Percent)
	}
}

// TableScanDesc reads a catalog table or a materialized CTE.
type TableScanDesc struct {
	Alias string
	// Table is the qualified table name.
	Table string
	// Columns are the internal names of the emitted columns, including
	// partition and virtual columns.
	Columns          []string
	PartitionColumns []string
	VirtualColumns   []string
	Sample           *SampleDesc
	SplitSample      *SplitSampleDesc
	// AsOf is the time travel spec, "VERSION <v>" or "TIMESTAMP <t>".
	AsOf string
	// RowLimit is pushed down from a LIMIT over a plain scan, -1 if none.
	RowLimit int
	// IsMaterializedCTE marks scans over a temporary CTE table.
	IsMaterializedCTE bool
}

// OperatorType implements the Descriptor interface.
func (d *TableScanDesc) OperatorType() OperatorType { return TableScanOp }

// OutputColumnNames implements the Descriptor interface.
func (d *TableScanDesc) OutputColumnNames() []string { return d.Columns }

func (d *TableScanDesc) String() string {
	s := fmt.Sprintf("TableScan(alias: %s, table: %s)", d.Alias, d.Table)
	if d.Sample != nil {
		s += " sample: " + d.Sample.String()
	}
	if d.SplitSample != nil {
		s += " split sample: " + d.SplitSample.String()
	}
	if d.AsOf != "" {
		s += " as of " + d.AsOf
	}
	return s
}

// FilterDesc keeps the rows matching Predicate. The schema passes through.
type FilterDesc struct {
	Predicate sql.Expression
	// IsSamplingPred marks the hash predicate generated for bucket
	// sampling.
	IsSamplingPred bool
	Columns        []string
}

// OperatorType implements the Descriptor interface.
func (d *FilterDesc) OperatorType() OperatorType { return FilterOp }

// OutputColumnNames implements the Descriptor interface.
func (d *FilterDesc) OutputColumnNames() []string { return d.Columns }

func (d *FilterDesc) String() string {
	return fmt.Sprintf("Filter(%s)", d.Predicate)
}

// SelectDesc projects one expression per output column.
type SelectDesc struct {
	Exprs   []sql.Expression
	Columns []string
	// SelectStar is set for projections produced by an unqualified *.
	SelectStar bool
}

// OperatorType implements the Descriptor interface.
func (d *SelectDesc) OperatorType() OperatorType { return SelectOp }

// OutputColumnNames implements the Descriptor interface.
func (d *SelectDesc) OutputColumnNames() []string { return d.Columns }

func (d *SelectDesc) String() string {
	return fmt.Sprintf("Select(%s)", exprList(d.Exprs))
}

// LimitDesc keeps Limit rows after skipping Offset rows.
type LimitDesc struct {
	Limit  int
	Offset int
	// Global marks the single reducer limit.
	Global  bool
	Columns []string
}

// OperatorType implements the Descriptor interface.
func (d *LimitDesc) OperatorType() OperatorType { return LimitOp }

// OutputColumnNames implements the Descriptor interface.
func (d *LimitDesc) OutputColumnNames() []string { return d.Columns }

func (d *LimitDesc) String() string {
	if d.Offset > 0 {
		return fmt.Sprintf("Limit(%d, offset: %d)", d.Limit, d.Offset)
	}
	return fmt.Sprintf("Limit(%d)", d.Limit)
}

// ForwardDesc fans one input out to several consumers.
type ForwardDesc struct {
	Columns []string
}

// OperatorType implements the Descriptor interface.
func (d *ForwardDesc) OperatorType() OperatorType { return ForwardOp }

// OutputColumnNames implements the Descriptor interface.
func (d *ForwardDesc) OutputColumnNames() []string { return d.Columns }

func (d *ForwardDesc) String() string { return "Forward" }

// UnionDesc merges NumInputs inputs with identical column layouts.
type UnionDesc struct {
	NumInputs int
	// Distinct is set for UNION DISTINCT; the de-duplication itself is a
	// group-by stacked on the union.
	Distinct bool
	Columns  []string
}

// OperatorType implements the Descriptor interface.
func (d *UnionDesc) OperatorType() OperatorType { return UnionOp }

// OutputColumnNames implements the Descriptor interface.
func (d *UnionDesc) OutputColumnNames() []string { return d.Columns }

func (d *UnionDesc) String() string {
	return fmt.Sprintf("Union(%d inputs)", d.NumInputs)
}

func exprList(es []sql.Expression) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

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
	"strconv"

	"github.com/difin/hive-sub000/sql"
)

const (
	// KeyPrefix prefixes the shuffle key columns of a reduce sink output.
	KeyPrefix = "KEY."
	// ValuePrefix prefixes the value columns of a reduce sink output.
	ValuePrefix = "VALUE."
)

// ReduceSinkKeyName returns the internal name of the i-th shuffle key.
func ReduceSinkKeyName(i int) string {
	return "reducesinkkey" + strconv.Itoa(i)
}

// ReduceSinkDesc is a shuffle boundary. Rows are partitioned by
// PartitionCols and sorted by KeyCols.
type ReduceSinkDesc struct {
	KeyCols       []sql.Expression
	ValueCols     []sql.Expression
	PartitionCols []sql.Expression
	// OutputKeyColumnNames and OutputValueColumnNames are the unprefixed
	// names, e.g. "reducesinkkey0" and "_col1".
	OutputKeyColumnNames   []string
	OutputValueColumnNames []string
	// Order holds one '+' or '-' per key column, NullOrder one 'a' (nulls
	// first) or 'z' (nulls last).
	Order     string
	NullOrder string
	// Tag identifies the input of a join, -1 elsewhere.
	Tag int
	// NumReducers is -1 when left to the runtime.
	NumReducers int
	// NumDistributionKeys is the prefix of KeyCols used for partitioning
	// when distinct aggregates add extra keys.
	NumDistributionKeys int
	// DistinctColumnIndices lists, per distinct aggregate, the positions
	// in KeyCols of its arguments.
	DistinctColumnIndices [][]int
	// Limit is pushed from a top-n over a sort, -1 if none.
	Limit int
}

// NewReduceSinkDesc creates a shuffle keyed by keys. Key and value names
// are generated positionally.
func NewReduceSinkDesc(keys, values, partitionCols []sql.Expression, order, nullOrder string, tag, numReducers int) *ReduceSinkDesc {
	d := &ReduceSinkDesc{
		KeyCols:             keys,
		ValueCols:           values,
		PartitionCols:       partitionCols,
		Order:               order,
		NullOrder:           nullOrder,
		Tag:                 tag,
		NumReducers:         numReducers,
		NumDistributionKeys: len(keys),
		Limit:               -1,
	}
	for i := range keys {
		d.OutputKeyColumnNames = append(d.OutputKeyColumnNames, ReduceSinkKeyName(i))
	}
	for i := range values {
		d.OutputValueColumnNames = append(d.OutputValueColumnNames, sql.InternalColumnName(i))
	}
	return d
}

// OperatorType implements the Descriptor interface.
func (d *ReduceSinkDesc) OperatorType() OperatorType { return ReduceSinkOp }

// OutputColumnNames implements the Descriptor interface.
func (d *ReduceSinkDesc) OutputColumnNames() []string {
	names := make([]string, 0, len(d.OutputKeyColumnNames)+len(d.OutputValueColumnNames))
	for _, k := range d.OutputKeyColumnNames {
		names = append(names, KeyPrefix+k)
	}
	for _, v := range d.OutputValueColumnNames {
		names = append(names, ValuePrefix+v)
	}
	return names
}

func (d *ReduceSinkDesc) String() string {
	s := fmt.Sprintf("ReduceSink(key: [%s], value: [%s], partition: [%s]", exprList(d.KeyCols), exprList(d.ValueCols), exprList(d.PartitionCols))
	if d.Order != "" {
		s += ", order: " + d.Order
	}
	if d.Tag >= 0 {
		s += fmt.Sprintf(", tag: %d", d.Tag)
	}
	if d.NumReducers > 0 {
		s += fmt.Sprintf(", reducers: %d", d.NumReducers)
	}
	return s + ")"
}

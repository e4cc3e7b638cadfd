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

package analyzer

import (
	"strings"

	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression"
	"github.com/difin/hive-sub000/sql/plan"
)

// Virtual columns every table scan exposes.
const (
	InputFileNameColumn = "input__file__name"
	BlockOffsetColumn   = "block__offset__inside__file"
	RowIDColumn         = "row__id"
)

var rowIDType = sql.StructOf(
	sql.StructField{Name: "writeid", Type: sql.BigIntType},
	sql.StructField{Name: "bucketid", Type: sql.IntType},
	sql.StructField{Name: "rowid", Type: sql.BigIntType},
)

// genTablePlan generates the scan of a table alias with its sampling
// filter. Regular columns come first, then partition columns, then the
// hidden virtual columns.
func (c *Compilation) genTablePlan(ctx *sql.Context, qb *QB, alias string) (*plan.Operator, error) {
	t, ok := qb.MetaData.Source(alias)
	if !ok {
		return nil, sql.ErrInternal.New("no table bound to alias " + alias)
	}

	rr := sql.NewRowResolver()
	desc := &plan.TableScanDesc{
		Alias:             alias,
		Table:             sql.QualifiedName(t),
		RowLimit:          -1,
		IsMaterializedCTE: isMaterializedCTE(t),
	}
	constraints := t.Constraints()
	storage := t.Storage()

	for _, col := range t.Columns() {
		name := strings.ToLower(col.Name)
		info := sql.NewColumnInfo(name, col.Type, alias, false)
		info.NotNull = constraints.IsNotNull(name)
		info.IsSkewed = containsFold(storage.SkewedCols, name)
		rr.Put(alias, name, info)
	}
	for _, col := range t.PartitionColumns() {
		name := strings.ToLower(col.Name)
		info := sql.NewColumnInfo(name, col.Type, alias, false)
		info.IsPartition = true
		rr.Put(alias, name, info)
		desc.PartitionColumns = append(desc.PartitionColumns, name)
	}
	virtual := []struct {
		name string
		typ  sql.Type
	}{
		{InputFileNameColumn, sql.StringType},
		{BlockOffsetColumn, sql.BigIntType},
	}
	if t.IsTransactional() {
		virtual = append(virtual, struct {
			name string
			typ  sql.Type
		}{RowIDColumn, rowIDType})
	}
	for _, v := range virtual {
		info := sql.NewColumnInfo(v.name, v.typ, alias, true)
		info.IsHidden = true
		rr.Put(alias, v.name, info)
		desc.VirtualColumns = append(desc.VirtualColumns, v.name)
	}
	desc.Columns = rr.ColumnInfos().Names()

	pi := qb.ParseInfo
	if spec, ok := pi.AsOf[alias]; ok {
		if spec.Version != "" {
			desc.AsOf = "VERSION " + spec.Version
		} else {
			desc.AsOf = "TIMESTAMP " + spec.Timestamp
		}
	}
	if ss, ok := pi.SplitSamples[alias]; ok {
		desc.SplitSample = &plan.SplitSampleDesc{Percent: ss.Percent, RowCount: ss.RowCount, Length: ss.Length}
	}

	op := c.putOp(desc, rr)
	ts, ok := pi.TableSamples[alias]
	if !ok {
		return op, nil
	}
	return c.genSampleFilter(ts, t, desc, op)
}

// genSampleFilter adds the bucket sampling predicate
// abs(hash(cols)) % den = num - 1 over a scan. Sampling on the bucket
// columns also lets the scan prune bucket files.
func (c *Compilation) genSampleFilter(ts *TableSample, t sql.Table, desc *plan.TableScanDesc, scan *plan.Operator) (*plan.Operator, error) {
	storage := t.Storage()
	rr := c.opRR[scan]

	var cols []sql.Expression
	var names []string
	if len(ts.Exprs) > 0 {
		exprs, err := expression.TypeCheckAll(ts.Exprs, c.typeCheckCtx(rr))
		if err != nil {
			return nil, err
		}
		cols = exprs
		for _, e := range exprs {
			names = append(names, e.String())
		}
	} else {
		for _, b := range storage.BucketCols {
			info, err := rr.Get(desc.Alias, b)
			if err != nil {
				return nil, err
			}
			if info == nil {
				return nil, sql.NewSemanticError(ts.Node, sql.ErrInvalidColumn.New(b))
			}
			cols = append(cols, expression.ColumnFromInfo(info))
			names = append(names, strings.ToLower(b))
		}
	}

	colsEqual := len(ts.Exprs) == 0 || equalFold(names, storage.BucketCols)
	pruning := false
	if colsEqual && storage.NumBuckets > 0 {
		n, d := storage.NumBuckets, ts.Denominator
		pruning = n == d || n%d == 0 || d%n == 0
	}
	desc.Sample = &plan.SampleDesc{
		Numerator:    ts.Numerator,
		Denominator:  ts.Denominator,
		Columns:      names,
		InputPruning: pruning,
	}

	hash, err := expression.NewBuiltin("hash", cols...)
	if err != nil {
		return nil, err
	}
	abs, err := expression.NewBuiltin("abs", hash)
	if err != nil {
		return nil, err
	}
	mod, err := expression.NewBuiltin("%", abs, expression.NewInt(int32(ts.Denominator)))
	if err != nil {
		return nil, err
	}
	pred, err := expression.NewEquals(mod, expression.NewInt(int32(ts.Numerator-1)))
	if err != nil {
		return nil, err
	}
	return c.putOp(&plan.FilterDesc{
		Predicate:      pred,
		IsSamplingPred: true,
		Columns:        rr.ColumnInfos().Names(),
	}, rr, scan), nil
}

func containsFold(list []string, s string) bool {
	for _, x := range list {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}

func equalFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

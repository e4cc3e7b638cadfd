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

	opentracing "github.com/opentracing/opentracing-go"

	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression"
	"github.com/difin/hive-sub000/sql/plan"
)

// genFileSinkPlan terminates a destination with a file sink and records
// the work that moves its output into place.
func (c *Compilation) genFileSinkPlan(ctx *sql.Context, qb *QB, dest *Destination, input *plan.Operator) (*plan.Operator, error) {
	span, ctx := ctx.Span("gen_filesink", opentracing.Tags{"dest": dest.Name})
	defer span.Finish()

	typ, ok := qb.MetaData.DestType(dest.Name)
	if !ok {
		return nil, sql.NewSemanticError(dest.Node, sql.ErrInternal.New("unresolved destination "+dest.Name))
	}
	switch typ {
	case plan.DestTable, plan.DestPartition:
		return c.genTableSink(ctx, qb, dest, typ, input)
	}

	dir, _ := qb.MetaData.DestDir(dest.Name)
	rr := c.opRR[input]
	schema := rr.ColumnInfos()
	names := outputNames(rr)
	desc := &plan.FileSinkDesc{
		DestID:      dest.Name,
		DestType:    typ,
		Directory:   dir,
		Overwrite:   true,
		Operation:   ctx.Operation(),
		Columns:     schema.Names(),
		ColumnTypes: schemaTypes(schema),
	}

	if typ == plan.DestTmpFile {
		c.Plan.ResultSchema = c.Plan.ResultSchema[:0]
		for i, info := range schema {
			c.Plan.ResultSchema = append(c.Plan.ResultSchema, sql.FieldSchema{Name: names[i], Type: info.Type})
		}
		return c.putOp(desc, rr, input), nil
	}

	desc.Directory = c.scratchDir(ctx, "-ext-"+dest.Name)
	types := make([]string, len(schema))
	for i, info := range schema {
		types[i] = info.Type.String()
	}
	c.Plan.LoadFiles = append(c.Plan.LoadFiles, &plan.LoadFileWork{
		DestID:      dest.Name,
		SourceDir:   desc.Directory,
		TargetDir:   dir,
		IsLocal:     typ == plan.DestLocalDir,
		Columns:     names,
		ColumnTypes: types,
	})
	return c.putOp(desc, rr, input), nil
}

// genTableSink writes into a table or partition. The select output is
// converted to the target columns and, for bucketed targets, shuffled on
// the bucket columns first.
func (c *Compilation) genTableSink(ctx *sql.Context, qb *QB, dest *Destination, typ plan.DestinationType, input *plan.Operator) (*plan.Operator, error) {
	t, _ := qb.MetaData.DestTable(dest.Name)
	var spec sql.PartitionSpec
	if p, ok := qb.MetaData.DestPartition(dest.Name); ok {
		spec = p.Spec
	}

	storage := t.Storage()
	enforce := c.Conf.GetBool(sql.ConfEnforceBucketing) && storage.IsBucketed()
	op, err := c.genConversionSelect(dest, t, spec, input, enforce)
	if err != nil {
		return nil, err
	}
	if enforce {
		if op, err = c.genBucketingShuffle(t, op); err != nil {
			return nil, err
		}
	}

	rr := c.opRR[op]
	schema := rr.ColumnInfos()
	desc := &plan.FileSinkDesc{
		DestID:                  dest.Name,
		DestType:                typ,
		Table:                   sql.QualifiedName(t),
		Partition:               spec,
		DynamicPartitionColumns: spec.DynamicColumns(),
		Directory:               c.scratchDir(ctx, "-ext-"+dest.Name),
		Overwrite:               !dest.InsertInto,
		Operation:               ctx.Operation(),
		Columns:                 schema.Names(),
		ColumnTypes:             schemaTypes(schema),
	}
	if enforce {
		desc.NumBuckets = storage.NumBuckets
		desc.BucketColumns = storage.BucketCols
	}
	c.Plan.LoadTables = append(c.Plan.LoadTables, &plan.LoadTableWork{
		DestID:                  dest.Name,
		Table:                   desc.Table,
		Partition:               spec,
		DynamicPartitionColumns: desc.DynamicPartitionColumns,
		SourceDir:               desc.Directory,
		Replace:                 !dest.InsertInto,
		Operation:               desc.Operation,
	})
	return c.putOp(desc, rr, op), nil
}

// genConversionSelect lays the select output out like the target: the
// table columns followed by the dynamic partition columns, each cast to
// the target type. Columns missing from an explicit column list are NULL.
// Without force, an input that already matches is returned as is.
func (c *Compilation) genConversionSelect(dest *Destination, t sql.Table, spec sql.PartitionSpec, input *plan.Operator, force bool) (*plan.Operator, error) {
	targets := append([]sql.FieldSchema(nil), t.Columns()...)
	for _, col := range spec.DynamicColumns() {
		for _, pc := range t.PartitionColumns() {
			if strings.EqualFold(pc.Name, col) {
				targets = append(targets, pc)
			}
		}
	}

	rr := c.opRR[input]
	schema := rr.ColumnInfos()
	want := len(targets)
	if len(dest.InsertColumns) > 0 {
		want = len(dest.InsertColumns)
	}
	if len(schema) != want {
		return nil, sql.NewSemanticError(dest.Node, ErrInsertColumnCount.New(sql.QualifiedName(t), want, len(schema)))
	}

	out := sql.NewRowResolver()
	sel := &plan.SelectDesc{}
	converted := false
	for i, target := range targets {
		src := i
		if len(dest.InsertColumns) > 0 {
			src = indexFold(dest.InsertColumns, target.Name)
		}
		var e sql.Expression
		if src < 0 {
			e = expression.NewCast(expression.NewNull(), target.Type)
			converted = true
		} else {
			from := schema[src].Type
			if !from.Equals(target.Type) {
				if !from.IsPrimitive() && !sql.ImplicitConvertible(from, target.Type) {
					return nil, sql.NewSemanticError(dest.Node, ErrInsertColumnType.New(src, from, target.Type))
				}
				converted = true
			}
			if src != i {
				converted = true
			}
			e = expression.NewCast(expression.ColumnFromInfo(schema[src]), target.Type)
		}
		info := sql.NewColumnInfo(sql.InternalColumnName(i), target.Type, "", false)
		info.Alias = strings.ToLower(target.Name)
		out.Put("", info.Alias, info)
		sel.Exprs = append(sel.Exprs, e)
	}
	if !converted && !force {
		return input, nil
	}
	sel.Columns = out.ColumnInfos().Names()
	op := c.putOp(sel, out, input)
	for i, name := range sel.Columns {
		op.SetColumnExpression(name, sel.Exprs[i])
	}
	return op, nil
}

// genBucketingShuffle distributes rows to one reducer per bucket on the
// bucket columns, sorted on the declared sort columns.
func (c *Compilation) genBucketingShuffle(t sql.Table, input *plan.Operator) (*plan.Operator, error) {
	storage := t.Storage()
	rr := c.opRR[input]
	lookup := func(name string) (sql.Expression, error) {
		info, err := rr.Get("", strings.ToLower(name))
		if err != nil || info == nil {
			return nil, sql.ErrInvalidColumn.New(name)
		}
		return expression.ColumnFromInfo(info), nil
	}

	var partition, keys []sql.Expression
	var order strings.Builder
	for _, col := range storage.BucketCols {
		e, err := lookup(col)
		if err != nil {
			return nil, err
		}
		partition = append(partition, e)
	}
	for _, sc := range storage.SortCols {
		e, err := lookup(sc.Name)
		if err != nil {
			return nil, err
		}
		keys = append(keys, e)
		if sc.Asc {
			order.WriteByte('+')
		} else {
			order.WriteByte('-')
		}
	}
	nullOrder := strings.Repeat("a", len(keys))
	return c.genShuffle(input, keys, partition, order.String(), nullOrder, storage.NumBuckets, -1), nil
}

// outputNames returns the visible name of every output column.
func outputNames(rr *sql.RowResolver) []string {
	schema := rr.ColumnInfos()
	names := make([]string, len(schema))
	for i, info := range schema {
		_, name, ok := rr.ReverseLookup(info.InternalName)
		if !ok || name == "" {
			name = info.InternalName
		}
		names[i] = name
	}
	return names
}

func schemaTypes(schema sql.RowSchema) []sql.Type {
	types := make([]sql.Type, len(schema))
	for i, info := range schema {
		types[i] = info.Type
	}
	return types
}

func indexFold(list []string, s string) int {
	for i, x := range list {
		if strings.EqualFold(x, s) {
			return i
		}
	}
	return -1
}

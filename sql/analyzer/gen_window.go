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

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression"
	"github.com/difin/hive-sub000/sql/expression/function"
	"github.com/difin/hive-sub000/sql/plan"
)

// genWindowingPlan evaluates the window functions of a destination. Calls
// sharing partitioning and ordering are computed by one shuffle and one
// windowing table function.
func (c *Compilation) genWindowingPlan(ctx *sql.Context, dest *Destination, input *plan.Operator) (*plan.Operator, error) {
	span, _ := ctx.Span("gen_windowing", opentracing.Tags{"dest": dest.Name})
	defer span.Finish()

	op := input
	for _, group := range dest.Windowing.groups() {
		w := group[0].Window
		tc := c.typeCheckCtx(c.opRR[op])
		partition, orderBy, err := c.windowKeys(tc, w.PartitionBy, w.OrderBy)
		if err != nil {
			return nil, err
		}

		keys := append(append([]sql.Expression(nil), partition...), orderBy...)
		order := strings.Repeat("+", len(partition)) + orderString(w.OrderBy)
		nullOrder := strings.Repeat("a", len(partition)) + nullOrderString(w.OrderBy)
		rs := c.genShuffleSink(op, keys, partition, order, nullOrder, c.numReducers(), -1)
		rsRR := c.opRR[rs]

		out, exprs := c.carryValues(rsRR, len(keys))
		desc := &plan.PTFDesc{Name: function.WindowingTableFunction}
		wtc := c.typeCheckCtx(rsRR)
		wtc.AllowWindowing = true
		for _, fn := range group {
			e, err := expression.TypeCheck(fn.Node, wtc)
			if err != nil {
				return nil, err
			}
			fpart, forder, err := c.windowKeys(wtc, fn.Window.PartitionBy, fn.Window.OrderBy)
			if err != nil {
				return nil, err
			}
			wf := &plan.WindowFunctionDesc{
				Alias:       fn.Alias,
				Function:    e,
				PartitionBy: fpart,
				OrderBy:     forder,
				Order:       orderString(fn.Window.OrderBy),
				IgnoreNulls: fn.IgnoreNulls,
			}
			if !fn.Window.Frame.isDefault(len(fn.Window.OrderBy) > 0) {
				wf.Frame = fn.Window.Frame.String()
			}
			desc.Functions = append(desc.Functions, wf)

			info := sql.NewColumnInfo(sql.InternalColumnName(out.Len()), e.Type(), "", false)
			info.Alias = fn.Alias
			out.Put("", fn.Alias, info)
			out.PutExpression(fn.Node, info)
		}
		desc.Columns = out.ColumnInfos().Names()
		op = c.putOp(desc, out, rs)
		for name, e := range exprs {
			op.SetColumnExpression(name, e)
		}
	}
	return op, nil
}

// windowKeys resolves the partitioning and ordering of a window. Sort
// keys must be primitive.
func (c *Compilation) windowKeys(tc *expression.TypeCheckCtx, partitionBy []parse.Node, orderBy []OrderExpr) ([]sql.Expression, []sql.Expression, error) {
	partition, err := expression.TypeCheckAll(partitionBy, tc)
	if err != nil {
		return nil, nil, err
	}
	var order []sql.Expression
	for _, o := range orderBy {
		e, err := expression.TypeCheck(o.Expr, tc)
		if err != nil {
			return nil, nil, err
		}
		if !e.Type().IsPrimitive() {
			return nil, nil, sql.NewSemanticError(o.Expr, ErrInvalidSortKey.New(o.Expr.Snippet(), e.Type()))
		}
		order = append(order, e)
	}
	return partition, order, nil
}

// carryValues binds the value columns of a reduce sink with nKeys keys to
// fresh positional columns under their names. It returns the resolver and
// the expression of every column.
func (c *Compilation) carryValues(rsRR *sql.RowResolver, nKeys int) (*sql.RowResolver, map[string]sql.Expression) {
	out := sql.NewRowResolver()
	exprs := make(map[string]sql.Expression)
	for _, info := range rsRR.ColumnInfos()[nKeys:] {
		renamed := info.Copy()
		renamed.InternalName = sql.InternalColumnName(out.Len())
		carry(out, rsRR, info, renamed)
		exprs[renamed.InternalName] = expression.ColumnFromInfo(info)
	}
	return out, exprs
}

// isDefault reports whether the frame is the one implied by a window
// without a frame clause.
func (f *WindowFrame) isDefault(ordered bool) bool {
	unboundedStart := f.Start.Kind == UnboundedBoundary && f.Start.Preceding
	if ordered {
		return !f.Rows && unboundedStart && f.End.Kind == CurrentRowBoundary
	}
	return f.Rows && unboundedStart && f.End.Kind == UnboundedBoundary && !f.End.Preceding
}

// genPTFPlan generates a partitioned table function of the FROM clause
// over the operator of its source. Its output is visible under the
// function's alias.
func (c *Compilation) genPTFPlan(ctx *sql.Context, ptf *PTFInvocation, src *plan.Operator) (*plan.Operator, error) {
	span, _ := ctx.Span("gen_ptf", opentracing.Tags{"function": ptf.Name})
	defer span.Finish()

	tc := c.typeCheckCtx(c.opRR[src])
	args, err := expression.TypeCheckAll(ptf.Args, tc)
	if err != nil {
		return nil, err
	}
	partition, orderBy, err := c.windowKeys(tc, ptf.PartitionBy, ptf.OrderBy)
	if err != nil {
		return nil, err
	}

	keys := append(append([]sql.Expression(nil), partition...), orderBy...)
	order := strings.Repeat("+", len(partition)) + orderString(ptf.OrderBy)
	nullOrder := strings.Repeat("a", len(partition)) + nullOrderString(ptf.OrderBy)
	rs := c.genShuffleSink(src, keys, partition, order, nullOrder, c.numReducers(), -1)
	rsRR := c.opRR[rs]

	out, exprs := c.carryValues(rsRR, len(keys))
	rsSchema := rsRR.ColumnInfos()
	desc := &plan.PTFDesc{
		Name:        ptf.Name,
		Args:        args,
		PartitionBy: columnRefs(rsSchema[:len(partition)]),
		OrderBy:     columnRefs(rsSchema[len(partition):len(keys)]),
		Columns:     out.ColumnInfos().Names(),
	}
	op := c.putOp(desc, out, rs)
	for name, e := range exprs {
		op.SetColumnExpression(name, e)
	}
	c.rebindAlias(op, ptf.Alias)
	return op, nil
}

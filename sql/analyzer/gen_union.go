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
	opentracing "github.com/opentracing/opentracing-go"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression"
	"github.com/difin/hive-sub000/sql/plan"
)

const (
	setOpLeftCount  = "_left_count"
	setOpRightCount = "_right_count"
)

// genSetOpPlan generates a set operation. A chain of UNION ALL is one
// n-ary union operator; the distinct forms and INTERSECT and EXCEPT group
// the union output.
func (c *Compilation) genSetOpPlan(ctx *sql.Context, e *QBExpr) (*plan.Operator, error) {
	span, ctx := ctx.Span("gen_setop", opentracing.Tags{"op": e.Op.String(), "alias": e.Alias})
	defer span.Finish()

	branches := []*QBExpr{e.Left, e.Right}
	if e.Op == UnionAll {
		branches = unionAllBranches(e)
	}
	inputs := make([]*plan.Operator, len(branches))
	for i, b := range branches {
		op, err := c.genPlanExpr(ctx, b)
		if err != nil {
			return nil, err
		}
		inputs[i] = op
	}
	names, types, err := c.setOpSchema(e, branches, inputs)
	if err != nil {
		return nil, err
	}

	if e.Op.IsUnion() {
		union := c.genUnionOp(e.Alias, names, types, e.Op.IsDistinct(), inputs...)
		if e.Op.IsDistinct() {
			return c.genDistinctPlan(ctx, union)
		}
		return union, nil
	}
	return c.genIntersectExceptPlan(e, names, types, inputs[0], inputs[1])
}

// unionAllBranches flattens nested UNION ALL operations into their
// operands, left to right.
func unionAllBranches(e *QBExpr) []*QBExpr {
	if e.Kind != SetOpExpr || e.Op != UnionAll {
		return []*QBExpr{e}
	}
	return append(unionAllBranches(e.Left), unionAllBranches(e.Right)...)
}

// setOpSchema checks that every branch has compatible columns and
// returns the output names, taken from the first branch, and the common
// types.
func (c *Compilation) setOpSchema(e *QBExpr, branches []*QBExpr, inputs []*plan.Operator) ([]string, []sql.Type, error) {
	first := c.opRR[inputs[0]]
	fs := first.ColumnInfos()
	names := make([]string, len(fs))
	types := make([]sql.Type, len(fs))
	for i, info := range fs {
		_, name, ok := first.ReverseLookup(info.InternalName)
		if !ok || name == "" {
			name = info.InternalName
		}
		names[i] = name
		types[i] = info.Type
	}
	for j, in := range inputs[1:] {
		schema := c.opRR[in].ColumnInfos()
		if len(schema) != len(fs) {
			return nil, nil, sql.NewSemanticError(e.Node, ErrUnionColumnCount.New(e.Op, branches[0].Alias, len(fs), branches[j+1].Alias, len(schema)))
		}
		for i, info := range schema {
			t, ok := sql.CommonTypeForUnion(types[i], info.Type)
			if !ok {
				return nil, nil, sql.NewSemanticError(e.Node, ErrUnionColumnType.New(e.Op, names[i], types[i], info.Type))
			}
			types[i] = t
		}
	}
	return names, types, nil
}

// genUnionOp unions inputs into one operator. When the first input is an
// identity select over a union of the same column types, the remaining
// inputs join that union and the select is returned. Inputs with
// narrower columns are cast first.
func (c *Compilation) genUnionOp(alias string, names []string, types []sql.Type, distinct bool, inputs ...*plan.Operator) *plan.Operator {
	if union, ok := c.extendableUnion(inputs[0], types); ok && !distinct {
		for _, in := range inputs[1:] {
			union.AddParent(c.genUnionInputCast(in, types))
		}
		union.Desc.(*plan.UnionDesc).NumInputs = len(union.Parents())

		sel := inputs[0]
		rr := sql.NewRowResolver()
		for i, info := range sel.Schema {
			renamed := info.Copy()
			renamed.TabAlias = alias
			renamed.Alias = names[i]
			rr.Put(alias, names[i], renamed)
		}
		c.opRR[sel] = rr
		sel.Schema = rr.ColumnInfos()
		return sel
	}

	parents := make([]*plan.Operator, len(inputs))
	for i, in := range inputs {
		parents[i] = c.genUnionInputCast(in, types)
	}
	rr := sql.NewRowResolver()
	for i, t := range types {
		info := sql.NewColumnInfo(sql.InternalColumnName(i), t, alias, false)
		info.Alias = names[i]
		rr.Put(alias, names[i], info)
	}
	desc := &plan.UnionDesc{
		NumInputs: len(parents),
		Distinct:  distinct,
		Columns:   rr.ColumnInfos().Names(),
	}
	return c.putOp(desc, rr, parents...)
}

// extendableUnion returns the union under an identity select when the
// select is its only consumer and the union columns already have types.
func (c *Compilation) extendableUnion(in *plan.Operator, types []sql.Type) (*plan.Operator, bool) {
	if in.Type() != plan.SelectOp || !isIdentitySelect(in) || len(in.Children()) != 0 {
		return nil, false
	}
	union := in.Parent()
	if union.Type() != plan.UnionOp || union.Desc.(*plan.UnionDesc).Distinct {
		return nil, false
	}
	for i, info := range union.Schema {
		if !info.Type.Equals(types[i]) {
			return nil, false
		}
	}
	return union, true
}

// isIdentitySelect reports whether a select emits the columns of its
// single parent unchanged and in order.
func isIdentitySelect(op *plan.Operator) bool {
	parent := op.Parent()
	sel, ok := op.Desc.(*plan.SelectDesc)
	if !ok || parent == nil || len(op.Parents()) != 1 || len(sel.Exprs) != len(parent.Schema) {
		return false
	}
	if len(parent.Children()) != 1 {
		return false
	}
	for i, e := range sel.Exprs {
		col, ok := e.(*expression.Column)
		if !ok || col.Name != parent.Schema[i].InternalName {
			return false
		}
	}
	return true
}

// genUnionInputCast converts the columns of in to types with a select,
// or returns in when they already match.
func (c *Compilation) genUnionInputCast(in *plan.Operator, types []sql.Type) *plan.Operator {
	schema := c.opRR[in].ColumnInfos()
	same := true
	for i, info := range schema {
		if !info.Type.Equals(types[i]) {
			same = false
			break
		}
	}
	if same {
		return in
	}

	rr := sql.NewRowResolver()
	sel := &plan.SelectDesc{}
	for i, info := range schema {
		renamed := info.Copy()
		renamed.InternalName = sql.InternalColumnName(i)
		renamed.Type = types[i]
		carry(rr, c.opRR[in], info, renamed)
		sel.Exprs = append(sel.Exprs, expression.NewCast(expression.ColumnFromInfo(info), types[i]))
	}
	sel.Columns = rr.ColumnInfos().Names()
	op := c.putOp(sel, rr, in)
	for i, name := range sel.Columns {
		op.SetColumnExpression(name, sel.Exprs[i])
	}
	return op
}

// genIntersectExceptPlan counts the rows of each side per distinct row
// over a tagged union and keeps the rows the operator retains. The ALL
// forms replicate each kept row by its remaining multiplicity.
func (c *Compilation) genIntersectExceptPlan(e *QBExpr, names []string, types []sql.Type, left, right *plan.Operator) (*plan.Operator, error) {
	lt := c.genSetOpTag(left, types, 1, 0)
	rt := c.genSetOpTag(right, types, 0, 1)
	tagged := append(append([]sql.Type(nil), types...), sql.BigIntType, sql.BigIntType)
	union := c.genUnionOp(e.Alias, append(append([]string(nil), names...), setOpLeftCount, setOpRightCount), tagged, false, lt, rt)

	n := len(types)
	urr := c.opRR[union]
	schema := urr.ColumnInfos()
	spec := &groupBySpec{input: union, node: e.Node, keys: columnRefs(schema[:n])}
	spec.bindKey = func(out *sql.RowResolver, i int, info *sql.ColumnInfo) {
		info.TabAlias = e.Alias
		info.Alias = names[i]
		out.Put(e.Alias, names[i], info)
	}
	for i, alias := range []string{setOpLeftCount, setOpRightCount} {
		sum, err := expression.NewBuiltin("sum", expression.ColumnFromInfo(schema[n+i]))
		if err != nil {
			return nil, sql.NewSemanticError(e.Node, err)
		}
		a, err := newAggregation(parse.Node{}, sum.(*expression.Func))
		if err != nil {
			return nil, sql.NewSemanticError(e.Node, err)
		}
		a.alias = alias
		spec.aggs = append(spec.aggs, a)
	}
	gby, err := c.genGroupByStages(spec)
	if err != nil {
		return nil, err
	}

	gschema := c.opRR[gby].ColumnInfos()
	lc := expression.ColumnFromInfo(gschema[len(gschema)-2])
	rc := expression.ColumnFromInfo(gschema[len(gschema)-1])
	zero := expression.NewBigInt(0)
	var preds []sql.Expression
	var multiplicity sql.Expression
	intersect := e.Op == IntersectAll || e.Op == IntersectDistinct
	if intersect {
		p1, err := expression.NewComparison(">", lc, zero)
		if err != nil {
			return nil, err
		}
		p2, err := expression.NewComparison(">", rc, zero)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p1, p2)
		less, err := expression.NewComparison("<", lc, rc)
		if err != nil {
			return nil, err
		}
		if multiplicity, err = expression.NewBuiltin("if", less, lc, rc); err != nil {
			return nil, err
		}
	} else {
		p1, err := expression.NewComparison(">", lc, zero)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p1)
		if e.Op.IsDistinct() {
			p2, err := expression.NewEquals(rc, zero)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p2)
		} else {
			p2, err := expression.NewComparison(">", lc, rc)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p2)
			if multiplicity, err = expression.NewBuiltin("-", lc, rc); err != nil {
				return nil, err
			}
		}
	}
	filter := c.genFilterOp(expression.NewAnd(preds...), gby)

	if e.Op.IsDistinct() {
		return c.genSetOpOutput(filter, 0, e.Alias, names), nil
	}
	args := append([]sql.Expression{multiplicity}, columnRefs(c.opRR[filter].ColumnInfos()[:n])...)
	fn, err := expression.NewBuiltin("replicate_rows", args...)
	if err != nil {
		return nil, sql.NewSemanticError(e.Node, err)
	}
	argOp := c.genProjection(filter, args)
	udtf := &plan.UDTFDesc{Function: c.rebaseArgs(fn.(*expression.Func), argOp)}
	rr := sql.NewRowResolver()
	for i, f := range fn.Type().Fields {
		putHidden(rr, sql.NewColumnInfo(sql.InternalColumnName(i), f.Type, "", false))
	}
	udtf.Columns = rr.ColumnInfos().Names()
	return c.genSetOpOutput(c.putOp(udtf, rr, argOp), 1, e.Alias, names), nil
}

// genSetOpTag appends the per-side row counters (l, r) to the columns of
// in, cast to types.
func (c *Compilation) genSetOpTag(in *plan.Operator, types []sql.Type, l, r int64) *plan.Operator {
	schema := c.opRR[in].ColumnInfos()
	rr := sql.NewRowResolver()
	sel := &plan.SelectDesc{}
	for i, info := range schema {
		renamed := info.Copy()
		renamed.InternalName = sql.InternalColumnName(i)
		renamed.Type = types[i]
		carry(rr, c.opRR[in], info, renamed)
		sel.Exprs = append(sel.Exprs, expression.NewCast(expression.ColumnFromInfo(info), types[i]))
	}
	for _, v := range []int64{l, r} {
		sel.Exprs = append(sel.Exprs, expression.NewBigInt(v))
		putHidden(rr, sql.NewColumnInfo(sql.InternalColumnName(rr.Len()), sql.BigIntType, "", false))
	}
	sel.Columns = rr.ColumnInfos().Names()
	op := c.putOp(sel, rr, in)
	for i, name := range sel.Columns {
		op.SetColumnExpression(name, sel.Exprs[i])
	}
	return op
}

// genSetOpOutput selects the columns of in starting at from as the named
// output of a set operation.
func (c *Compilation) genSetOpOutput(in *plan.Operator, from int, alias string, names []string) *plan.Operator {
	schema := c.opRR[in].ColumnInfos()[from:]
	rr := sql.NewRowResolver()
	sel := &plan.SelectDesc{}
	for i, name := range names {
		info := sql.NewColumnInfo(sql.InternalColumnName(i), schema[i].Type, alias, false)
		info.Alias = name
		rr.Put(alias, name, info)
		sel.Exprs = append(sel.Exprs, expression.ColumnFromInfo(schema[i]))
	}
	sel.Columns = rr.ColumnInfos().Names()
	op := c.putOp(sel, rr, in)
	for i, name := range sel.Columns {
		op.SetColumnExpression(name, sel.Exprs[i])
	}
	return op
}

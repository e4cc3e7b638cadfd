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
	"github.com/difin/hive-sub000/sql/plan"
)

// genJoinTreePlan generates the operators of a join tree, the nested
// level first.
func (c *Compilation) genJoinTreePlan(ctx *sql.Context, tree *JoinTree, sources map[string]*plan.Operator) (*plan.Operator, error) {
	inputs := make([]*plan.Operator, tree.Positions())
	for pos, alias := range tree.BaseSrc {
		if alias == "" {
			if tree.JoinSrc == nil {
				return nil, sql.ErrInternal.New("join position without source")
			}
			op, err := c.genJoinTreePlan(ctx, tree.JoinSrc, sources)
			if err != nil {
				return nil, err
			}
			inputs[pos] = op
			continue
		}
		op, ok := sources[alias]
		if !ok {
			return nil, sql.ErrInternal.New("no operator for join source " + alias)
		}
		inputs[pos] = op
	}
	return c.genJoinOperator(ctx, tree, inputs)
}

// genJoinOperator shuffles every input on its join keys and joins the
// tagged streams.
func (c *Compilation) genJoinOperator(ctx *sql.Context, tree *JoinTree, inputs []*plan.Operator) (*plan.Operator, error) {
	span, ctx := ctx.Span("gen_join", opentracing.Tags{"positions": len(inputs)})
	defer span.Finish()

	n := len(inputs)
	keys := make([][]sql.Expression, n)
	for pos := range inputs {
		op := inputs[pos]
		var err error
		if fs := tree.FiltersForPushing[pos]; len(fs) > 0 {
			if op, err = c.genConditionFilter(joinAnd(fs), op); err != nil {
				return nil, err
			}
		}
		ks, err := expression.TypeCheckAll(tree.Exprs[pos], c.typeCheckCtx(c.opRR[op]))
		if err != nil {
			return nil, err
		}
		op = c.genNotNullFilter(tree, pos, op, ks)
		if tree.isSemiPosition(pos) && len(ks) > 0 {
			if op, err = c.genSemiJoinDedup(tree, pos, op); err != nil {
				return nil, err
			}
			if ks, err = expression.TypeCheckAll(tree.Exprs[pos], c.typeCheckCtx(c.opRR[op])); err != nil {
				return nil, err
			}
		}
		inputs[pos] = op
		keys[pos] = ks
	}
	if err := reconcileJoinKeys(keys); err != nil {
		return nil, sql.NewSemanticError(tree.Node, err)
	}
	if len(keys[0]) == 0 && !tree.SubqueryRewrite && c.Conf.GetBool(sql.ConfStrictCartesianProduct) {
		return nil, sql.NewSemanticError(tree.Node, ErrCartesianProduct.New())
	}

	sinks := make([]*plan.Operator, n)
	for pos, op := range inputs {
		sinks[pos] = c.genJoinReduceSink(op, keys[pos], pos)
	}

	desc := &plan.JoinDesc{
		Keys:        make([][]sql.Expression, n),
		Exprs:       make([][]sql.Expression, n),
		Filters:     make([][]sql.Expression, n),
		FilterMap:   tree.FilterMap,
		NullSafes:   tree.NullSafes,
		NoOuterJoin: tree.NoOuterJoin,
		BaseSrc:     append([]string(nil), tree.BaseSrc...),
	}
	for _, cond := range tree.Conds {
		desc.Conds = append(desc.Conds, plan.JoinCondDesc{
			Left:      cond.Left,
			Right:     cond.Right,
			Type:      cond.Type,
			Preserved: cond.Preserved,
		})
	}

	keepSemi := len(tree.PostJoinFilters) > 0
	joinRR := sql.NewRowResolver()
	exprs := make(map[string]sql.Expression)
	var semiCols []string
	for pos, rs := range sinks {
		desc.TagOrder = append(desc.TagOrder, pos)
		rsRR := c.opRR[rs]
		schema := rsRR.ColumnInfos()
		nk := len(keys[pos])
		for i := 0; i < nk; i++ {
			desc.Keys[pos] = append(desc.Keys[pos], expression.ColumnFromInfo(schema[i]))
		}
		if fs := tree.Filters[pos]; len(fs) > 0 {
			preds, err := expression.TypeCheckAll(fs, c.typeCheckCtx(rsRR))
			if err != nil {
				return nil, err
			}
			for _, p := range preds {
				desc.Filters[pos] = append(desc.Filters[pos], expression.ToBoolean(p))
			}
		}
		semi := tree.isSemiPosition(pos)
		if semi && !keepSemi {
			desc.OmittedPositions = append(desc.OmittedPositions, pos)
			continue
		}
		for _, info := range schema[nk:] {
			renamed := info.Copy()
			renamed.InternalName = sql.InternalColumnName(joinRR.Len())
			carry(joinRR, rsRR, info, renamed)
			e := expression.ColumnFromInfo(info)
			desc.Exprs[pos] = append(desc.Exprs[pos], e)
			exprs[renamed.InternalName] = e
			if semi {
				semiCols = append(semiCols, renamed.InternalName)
			}
		}
	}
	if len(tree.UsingColumns) > 0 {
		joinRR.SetNamedJoinInfo(&sql.NamedJoinInfo{
			TableAliases: tree.Aliases(),
			NamedColumns: tree.UsingColumns,
		})
	}
	desc.Columns = joinRR.ColumnInfos().Names()
	op := c.putOp(desc, joinRR, sinks...)
	for name, e := range exprs {
		op.SetColumnExpression(name, e)
	}

	if len(tree.PostJoinFilters) > 0 {
		preds, err := expression.TypeCheckAll(tree.PostJoinFilters, c.typeCheckCtx(joinRR))
		if err != nil {
			return nil, err
		}
		if tree.hasOuter() {
			for _, p := range preds {
				desc.ResidualFilters = append(desc.ResidualFilters, expression.ToBoolean(p))
			}
		} else {
			op = c.genFilterOp(expression.NewAnd(preds...), op)
		}
	}
	if len(semiCols) > 0 {
		op = c.genDropColumns(op, semiCols)
	}
	return op, nil
}

// genJoinReduceSink shuffles one join input on keys. Its values are
// every input column, bound under the input's names.
func (c *Compilation) genJoinReduceSink(input *plan.Operator, keys []sql.Expression, tag int) *plan.Operator {
	rr := c.opRR[input]
	rsRR := sql.NewRowResolver()
	for i, k := range keys {
		putHidden(rsRR, sql.NewColumnInfo(plan.KeyPrefix+plan.ReduceSinkKeyName(i), k.Type(), "", false))
	}
	schema := rr.ColumnInfos()
	values := columnRefs(schema)
	for j, info := range schema {
		renamed := info.Copy()
		renamed.InternalName = plan.ValuePrefix + sql.InternalColumnName(j)
		carry(rsRR, rr, info, renamed)
	}

	desc := plan.NewReduceSinkDesc(keys, values, keys,
		strings.Repeat("+", len(keys)), strings.Repeat("a", len(keys)), tag, c.numReducers())
	op := c.putOp(desc, rsRR, input)
	for i, k := range keys {
		op.SetColumnExpression(plan.KeyPrefix+plan.ReduceSinkKeyName(i), k)
	}
	for j, v := range values {
		op.SetColumnExpression(plan.ValuePrefix+sql.InternalColumnName(j), v)
	}
	return op
}

// genNotNullFilter drops rows whose join keys are NULL before the
// shuffle. Outer joins keep them unless the join checks a NOT IN
// subquery. Null safe keys and columns that are never NULL need no test.
func (c *Compilation) genNotNullFilter(tree *JoinTree, pos int, input *plan.Operator, keys []sql.Expression) *plan.Operator {
	if !tree.NoOuterJoin && !tree.NotInCheck {
		return input
	}
	if pos == 0 && (tree.NotInCheck || tree.Type() == plan.LeftAntiSemiJoin) {
		return input
	}

	rr := c.opRR[input]
	var preds []sql.Expression
	for i, k := range keys {
		if i < len(tree.NullSafes) && tree.NullSafes[i] {
			continue
		}
		if col, ok := k.(*expression.Column); ok {
			if col.IsPartitionOrVirtual {
				continue
			}
			if info, ok := rr.ColumnInfos().Column(col.Name); ok && info.NotNull {
				continue
			}
		}
		preds = append(preds, expression.NewIsNotNull(k))
	}
	if len(preds) == 0 {
		return input
	}

	if input.Type() == plan.FilterOp && len(input.Children()) == 0 {
		if fd := input.Desc.(*plan.FilterDesc); !fd.IsSamplingPred {
			fd.Predicate = expression.NewAnd(append([]sql.Expression{fd.Predicate}, preds...)...)
			return input
		}
	}
	return c.genFilterOp(expression.NewAnd(preds...), input)
}

// genSemiJoinDedup groups the right input of a semi join by its join
// keys so every left row matches at most once. Columns read by the
// post-join filters are grouped on too.
func (c *Compilation) genSemiJoinDedup(tree *JoinTree, pos int, input *plan.Operator) (*plan.Operator, error) {
	rr := c.opRR[input]
	tc := c.typeCheckCtx(rr)

	type keyed struct {
		node parse.Node
		expr sql.Expression
	}
	var cols []keyed
	seen := make(map[string]bool)
	add := func(n parse.Node, optional bool) error {
		k := n.Normalized()
		if seen[k] {
			return nil
		}
		e, err := expression.TypeCheck(n, tc)
		if err != nil {
			if optional {
				return nil
			}
			return err
		}
		seen[k] = true
		cols = append(cols, keyed{n, e})
		return nil
	}
	for _, k := range tree.Exprs[pos] {
		if err := add(k, false); err != nil {
			return nil, err
		}
	}
	refs := append([]parse.Node(nil), tree.PostJoinFilters...)
	refs = append(refs, tree.Filters[pos]...)
	for _, f := range refs {
		var err error
		f.Walk(func(n parse.Node) bool {
			if err != nil {
				return false
			}
			if isColumnRef(n) {
				err = add(n, true)
				return false
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	selRR := sql.NewRowResolver()
	sel := &plan.SelectDesc{}
	for i, k := range cols {
		info := sql.NewColumnInfo(sql.InternalColumnName(i), k.expr.Type(), "", false)
		if col, ok := k.expr.(*expression.Column); ok {
			info.TabAlias = col.TabAlias
		}
		bindExpression(selRR, k.node, k.expr, info)
		sel.Exprs = append(sel.Exprs, k.expr)
	}
	sel.Columns = selRR.ColumnInfos().Names()
	selOp := c.putOp(sel, selRR, input)
	for i, name := range sel.Columns {
		selOp.SetColumnExpression(name, sel.Exprs[i])
	}

	gbyRR := sql.NewRowResolver()
	gby := &plan.GroupByDesc{Mode: plan.Hash, GroupingSetPosition: -1}
	for i, info := range selRR.ColumnInfos() {
		renamed := info.Copy()
		renamed.InternalName = sql.InternalColumnName(i)
		carry(gbyRR, selRR, info, renamed)
		gby.Keys = append(gby.Keys, expression.ColumnFromInfo(info))
	}
	gby.Columns = gbyRR.ColumnInfos().Names()
	return c.putOp(gby, gbyRR, selOp), nil
}

// genDropColumns projects away the named columns of input.
func (c *Compilation) genDropColumns(input *plan.Operator, drop []string) *plan.Operator {
	rr := c.opRR[input]
	out := sql.NewRowResolver()
	sel := &plan.SelectDesc{}
	for _, info := range rr.ColumnInfos() {
		if containsString(drop, info.InternalName) {
			continue
		}
		renamed := info.Copy()
		renamed.InternalName = sql.InternalColumnName(len(sel.Exprs))
		carry(out, rr, info, renamed)
		sel.Exprs = append(sel.Exprs, expression.ColumnFromInfo(info))
	}
	sel.Columns = out.ColumnInfos().Names()
	op := c.putOp(sel, out, input)
	for i, name := range sel.Columns {
		op.SetColumnExpression(name, sel.Exprs[i])
	}
	return op
}

// reconcileJoinKeys casts the keys of every position to the common type
// of their key index.
func reconcileJoinKeys(keys [][]sql.Expression) error {
	if len(keys) == 0 {
		return nil
	}
	for k := range keys[0] {
		common := keys[0][k].Type()
		for pos := 1; pos < len(keys); pos++ {
			if k >= len(keys[pos]) {
				return sql.ErrInternal.New("join key count mismatch")
			}
			t, ok := sql.CommonTypeForComparison(common, keys[pos][k].Type())
			if !ok {
				return sql.ErrNoCommonType.New(common, keys[pos][k].Type(), "join")
			}
			common = t
		}
		for pos := range keys {
			keys[pos][k] = expression.NewCast(keys[pos][k], common)
		}
	}
	return nil
}

// isSemiPosition reports whether pos is the right side of a semi join.
func (t *JoinTree) isSemiPosition(pos int) bool {
	for _, cond := range t.Conds {
		if cond.Right == pos && cond.Left != pos && cond.Type.IsSemi() {
			return true
		}
	}
	return false
}

// hasOuter reports whether any condition of the tree preserves
// unmatched rows.
func (t *JoinTree) hasOuter() bool {
	for _, cond := range t.Conds {
		if cond.Type.IsOuter() || cond.Type == plan.UniqueJoin {
			return true
		}
	}
	return false
}

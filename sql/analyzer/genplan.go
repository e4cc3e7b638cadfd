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
	dummyTableAlias = "_dummy_table"
	dummyTableName  = "_dummy_database._dummy_table"
)

// generatePlan builds the operator graph of the statement.
func generatePlan(ctx *sql.Context, a *Analyzer, c *Compilation) error {
	if c.skipped || c.Plan.CachedResult != nil {
		return nil
	}
	a.Log("generating operator graph")
	return c.generate(ctx)
}

// generate builds the operator graph of c.Root into c.Plan.
func (c *Compilation) generate(ctx *sql.Context) error {
	span, ctx := ctx.Span("gen_plan")
	defer span.Finish()

	_, err := c.genPlanExpr(ctx, c.Root)
	return err
}

func (c *Compilation) genPlanExpr(ctx *sql.Context, e *QBExpr) (*plan.Operator, error) {
	if e.Kind == SetOpExpr {
		return c.genSetOpPlan(ctx, e)
	}
	return c.genPlanQB(ctx, e.QB)
}

// genPlanQB generates one query block. A subquery block returns the last
// operator of its single destination; an outer block returns the last
// file sink.
func (c *Compilation) genPlanQB(ctx *sql.Context, qb *QB) (*plan.Operator, error) {
	span, ctx := ctx.Span("gen_plan_qb", opentracing.Tags{"qb": qb.ID})
	defer span.Finish()

	pi := qb.ParseInfo
	sources := make(map[string]*plan.Operator)
	srcRR := make(map[string]*sql.RowResolver)
	var order []string

	for _, alias := range qb.Aliases() {
		var op *plan.Operator
		var err error
		if _, ok := qb.Table(alias); ok {
			op, err = c.genTablePlan(ctx, qb, alias)
		} else if expr, ok := qb.Subquery(alias); ok {
			op, err = c.genSubqueryPlan(ctx, expr, alias)
		} else if ptf, ok := qb.PTF(alias); ok {
			src, found := sources[ptf.SourceAlias]
			if !found {
				return nil, sql.ErrInternal.New("no input for table function " + alias)
			}
			op, err = c.genPTFPlan(ctx, ptf, src)
			delete(sources, ptf.SourceAlias)
			delete(srcRR, ptf.SourceAlias)
			order = removeString(order, ptf.SourceAlias)
		} else {
			return nil, sql.ErrInternal.New("unknown source alias " + alias)
		}
		if err != nil {
			return nil, err
		}

		for _, lv := range qb.LateralViews(alias) {
			if op, err = c.genLateralViewPlan(ctx, lv, op); err != nil {
				return nil, err
			}
		}
		sources[alias] = op
		srcRR[alias] = c.opRR[op]
		order = append(order, alias)
	}

	var input *plan.Operator
	dests := pi.Destinations()
	switch {
	case pi.JoinExpr.Valid():
		tree, err := c.genJoinTree(pi.JoinExpr, srcRR)
		if err != nil {
			return nil, err
		}
		qb.JoinTree = tree
		if err := c.mergeJoinTrees(qb, srcRR); err != nil {
			return nil, err
		}
		if len(dests) == 1 {
			if where, ok := dests[0].Clause(WhereClause); ok {
				residual := c.pushWhereFilters(qb.JoinTree, where, srcRR)
				if len(residual) == 0 {
					dests[0].RemoveClause(WhereClause)
				} else {
					dests[0].SetClause(WhereClause, joinAnd(residual))
				}
			}
		}
		if input, err = c.genJoinTreePlan(ctx, qb.JoinTree, sources); err != nil {
			return nil, err
		}
	case len(order) > 0:
		input = sources[order[0]]
	default:
		input = c.genDummyScan()
	}

	if len(dests) > 1 {
		rr := c.opRR[input]
		input = c.putOp(&plan.ForwardDesc{Columns: rr.ColumnInfos().Names()}, rr, input)
	}

	var last *plan.Operator
	for _, dest := range dests {
		op, err := c.genDestPlan(ctx, qb, dest, input)
		if err != nil {
			return nil, err
		}
		if !qb.IsSubquery {
			if op, err = c.genFileSinkPlan(ctx, qb, dest, op); err != nil {
				return nil, err
			}
		}
		last = op
	}
	return last, nil
}

// genDummyScan reads the one row table used by queries without FROM.
func (c *Compilation) genDummyScan() *plan.Operator {
	return c.putOp(&plan.TableScanDesc{
		Alias:    dummyTableAlias,
		Table:    dummyTableName,
		RowLimit: -1,
	}, sql.NewRowResolver())
}

// genSubqueryPlan generates a FROM subquery and rebinds its output
// columns under the subquery alias.
func (c *Compilation) genSubqueryPlan(ctx *sql.Context, expr *QBExpr, alias string) (*plan.Operator, error) {
	op, err := c.genPlanExpr(ctx, expr)
	if err != nil {
		return nil, err
	}
	c.rebindAlias(op, alias)
	return op, nil
}

// rebindAlias makes every column of op visible as alias.col only.
func (c *Compilation) rebindAlias(op *plan.Operator, alias string) {
	old := c.opRR[op]
	rr := sql.NewRowResolver()
	for _, info := range old.ColumnInfos() {
		_, col, _ := old.ReverseLookup(info.InternalName)
		renamed := info.Copy()
		renamed.TabAlias = alias
		renamed.Alias = col
		rr.Put(alias, col, renamed)
	}
	c.opRR[op] = rr
	op.Schema = rr.ColumnInfos()
}

// genDestPlan generates the clauses of one destination over input, up to
// but excluding the file sink.
func (c *Compilation) genDestPlan(ctx *sql.Context, qb *QB, dest *Destination, input *plan.Operator) (*plan.Operator, error) {
	span, ctx := ctx.Span("gen_dest", opentracing.Tags{"dest": dest.Name})
	defer span.Finish()

	op := input
	var err error
	if where, ok := dest.Clause(WhereClause); ok {
		if op, err = c.genFilterPlan(ctx, qb, dest, where, op); err != nil {
			return nil, err
		}
	}
	if dest.HasClause(GroupByClause) || len(dest.Aggregations()) > 0 {
		if op, err = c.genGroupByPlan(ctx, qb, dest, op); err != nil {
			return nil, err
		}
	}
	if having, ok := dest.Clause(HavingClause); ok {
		having = c.substituteSelectAliases(dest, having, c.opRR[op])
		if op, err = c.genFilterPlan(ctx, qb, dest, having, op); err != nil {
			return nil, err
		}
	}
	if dest.Windowing != nil && len(dest.Windowing.Functions) > 0 {
		if op, err = c.genWindowingPlan(ctx, dest, op); err != nil {
			return nil, err
		}
	}
	if qualify, ok := dest.Clause(QualifyClause); ok {
		if op, err = c.genFilterPlan(ctx, qb, dest, qualify, op); err != nil {
			return nil, err
		}
	}
	if op, err = c.genSelectPlan(ctx, qb, dest, op); err != nil {
		return nil, err
	}
	if dest.Distinct {
		if op, err = c.genDistinctPlan(ctx, op); err != nil {
			return nil, err
		}
	}
	if op, err = c.genSortPlan(ctx, qb, dest, op); err != nil {
		return nil, err
	}
	if dest.Limit != nil {
		if op, err = c.genLimitPlan(ctx, qb, dest, op); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// substituteSelectAliases rewrites references to select aliases that the
// input does not resolve into the aliased expressions. pred is cloned
// only when something is replaced.
func (c *Compilation) substituteSelectAliases(dest *Destination, pred parse.Node, rr *sql.RowResolver) parse.Node {
	aliases := make(map[string]parse.Node)
	for _, se := range dest.SelectExprs() {
		if se.ChildCount() == 2 && se.Child(1).Kind() == parse.Identifier {
			aliases[parse.UnescapeIdentifier(se.Child(1).Text())] = se.Child(0)
		}
	}
	if len(aliases) == 0 {
		return pred
	}

	needs := func(n parse.Node) (parse.Node, bool) {
		if n.Kind() != parse.TokTableOrCol {
			return parse.Node{}, false
		}
		name := parse.UnescapeIdentifier(n.Child(0).Text())
		target, ok := aliases[name]
		if !ok {
			return parse.Node{}, false
		}
		if info, _ := rr.Get("", name); info != nil {
			return parse.Node{}, false
		}
		return target, true
	}

	found := false
	pred.Walk(func(n parse.Node) bool {
		if _, ok := needs(n); ok {
			found = true
		}
		return !found
	})
	if !found {
		return pred
	}

	clone := pred.Clone()
	var rewrite func(n parse.Node)
	rewrite = func(n parse.Node) {
		if target, ok := needs(n); ok {
			n.Rebind(target.Clone())
			return
		}
		for _, ch := range n.Children() {
			rewrite(ch)
		}
	}
	rewrite(clone)
	return clone
}

// bindExpression registers an output column computed for node. Plain
// column references also keep their qualified name so later clauses can
// refer to them as alias.col or col.
func bindExpression(rr *sql.RowResolver, node parse.Node, e sql.Expression, info *sql.ColumnInfo) {
	if col, ok := e.(*expression.Column); ok {
		if name, ok := columnRefName(node); ok {
			rr.Put(col.TabAlias, name, info)
		}
	}
	rr.PutExpression(node, info)
}

// carry binds renamed in to under every name orig has in from.
func carry(to, from *sql.RowResolver, orig, renamed *sql.ColumnInfo) {
	tab, col, ok := from.ReverseLookup(orig.InternalName)
	if !ok {
		to.Put("", renamed.InternalName, renamed)
		return
	}
	to.PutFrom(from, tab, col, renamed)
	for _, alt := range from.AlternateMappings(orig.InternalName) {
		to.PutFrom(from, alt[0], alt[1], renamed)
	}
}

// putHidden binds a column no clause refers to by name.
func putHidden(rr *sql.RowResolver, info *sql.ColumnInfo) {
	info.IsHidden = true
	rr.Put("", info.InternalName, info)
}

func isColumnRef(n parse.Node) bool {
	_, ok := columnRefName(n)
	return ok
}

// columnRefName returns the column name of col or alias.col.
func columnRefName(n parse.Node) (string, bool) {
	switch n.Kind() {
	case parse.TokTableOrCol:
		return parse.UnescapeIdentifier(n.Child(0).Text()), true
	case parse.Dot:
		if n.ChildCount() == 2 && n.Child(0).Kind() == parse.TokTableOrCol {
			return parse.UnescapeIdentifier(n.Child(1).Text()), true
		}
	}
	return "", false
}

// columnRefs returns references to every column of schema.
func columnRefs(schema sql.RowSchema) []sql.Expression {
	out := make([]sql.Expression, len(schema))
	for i, info := range schema {
		out[i] = expression.ColumnFromInfo(info)
	}
	return out
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, x := range list {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}

func (c *Compilation) numReducers() int {
	return c.Conf.GetInt(sql.ConfReducers)
}

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
	"fmt"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression"
	"github.com/difin/hive-sub000/sql/plan"
)

type subqueryKind int

const (
	scalarSubquery subqueryKind = iota
	inSubquery
	existsSubquery
)

// correlation is an equality between an outer expression and a column
// the subquery exposes under name.
type correlation struct {
	outer parse.Node
	name  string
}

// subqueryRewrite is a subquery predicate being turned into a join.
type subqueryRewrite struct {
	alias      string
	kind       subqueryKind
	negated    bool
	expr       *QBExpr
	corr       []correlation
	aggregated bool
	op         *plan.Operator
}

// subqueryKindOf reads the TOK_SUBQUERY_OP of a subquery expression.
func subqueryKindOf(sq parse.Node) (subqueryKind, bool) {
	kind, negated := scalarSubquery, false
	op := sq.Child(0)
	words := append([]parse.Node{op}, op.Children()...)
	for _, w := range words {
		switch strings.ToLower(w.Text()) {
		case "in":
			kind = inSubquery
		case "exists":
			kind = existsSubquery
		case "not", "!":
			negated = true
		}
	}
	return kind, negated
}

// genSubqueryFilter joins input with the subquery sq of pred and applies
// what remains of pred over the join.
//
// IN and EXISTS become left semi joins, their negations anti joins. A NOT
// IN over a nullable column also requires that the subquery yields no
// NULL. A scalar subquery is left outer joined and its value substituted
// into pred.
func (c *Compilation) genSubqueryFilter(ctx *sql.Context, qb *QB, dest *Destination, pred, sq parse.Node, input *plan.Operator) (*plan.Operator, error) {
	span, ctx := ctx.Span("gen_subquery", opentracing.Tags{"qb": qb.ID})
	defer span.Finish()

	kind, negated := subqueryKindOf(sq)
	var rest []parse.Node
	if kind != scalarSubquery {
		found := false
		for _, conj := range splitAnd(pred) {
			n := conj
			if n.Kind() == parse.KwNot && n.ChildCount() == 1 && n.Child(0) == sq {
				negated = !negated
				n = sq
			}
			if n == sq {
				found = true
				continue
			}
			rest = append(rest, conj)
		}
		if !found {
			return nil, sql.NewSemanticError(sq, ErrUnsupportedSubquery.New(sq.Snippet(), "Only SubQuery expressions that are top level conjuncts are allowed."))
		}
	}
	if kind == inSubquery && sq.ChildCount() < 3 {
		return nil, sql.NewSemanticError(sq, ErrUnsupportedSubquery.New(sq.Snippet(), "IN requires a left hand side expression."))
	}

	alias, ok := dest.SubqueryAlias(sq)
	if !ok {
		alias = c.nextSubqueryAlias("sq")
	}
	sr, err := c.prepareSubquery(ctx, qb, sq, alias, kind, negated, c.opRR[input])
	if err != nil {
		return nil, err
	}

	subRR := c.opRR[sr.op]
	schema := subRR.ColumnInfos()
	visible := len(schema) - len(sr.corr)
	if (kind == inSubquery || kind == scalarSubquery) && visible != 1 {
		return nil, sql.NewSemanticError(sq, ErrUnsupportedSubquery.New(sq.Snippet(), "SubQuery can contain only 1 item in Select List."))
	}
	var valueCol string
	if visible > 0 {
		valueCol = schema[0].Alias
	}

	ar := sq.Arena()
	tree := newJoinTree(sq, 2)
	tree.SubqueryRewrite = true
	tree.LeftAliases = c.opRR[input].TableAliases()
	tree.RightAliases = []string{alias}
	tree.BaseSrc[1] = alias
	for _, corr := range sr.corr {
		tree.addKey(corr.outer, qualifiedRef(ar, alias, corr.name), false)
	}
	if kind == inSubquery {
		tree.addKey(sq.Child(2), qualifiedRef(ar, alias, valueCol), false)
	}
	typ := plan.LeftSemiJoin
	switch {
	case kind == scalarSubquery:
		typ = plan.LeftOuterJoin
	case negated:
		typ = plan.LeftAntiSemiJoin
	}
	tree.Conds = []JoinCond{{Left: 0, Right: 1, Type: typ}}
	tree.NoOuterJoin = !typ.IsOuter()
	tree.NoSemiJoin = !typ.IsSemi()
	tree.NotInCheck = kind == inSubquery && negated
	if typ.IsSemi() {
		tree.RHSSemijoin[alias] = tree.Exprs[1]
	}

	left := input
	if kind == scalarSubquery && !sr.aggregated {
		check, err := c.genCountCheck(sr.op, nil, func(cnt sql.Expression) (sql.Expression, error) {
			checked, err := expression.NewBuiltin("sq_count_check", cnt)
			if err != nil {
				return nil, err
			}
			return expression.NewComparison("<=", checked, expression.NewBigInt(1))
		})
		if err != nil {
			return nil, err
		}
		if left, err = c.genCheckJoin(ctx, sq, input, check, false); err != nil {
			return nil, err
		}
	}

	op, err := c.genJoinOperator(ctx, tree, []*plan.Operator{left, sr.op})
	if err != nil {
		return nil, err
	}

	if tree.NotInCheck && len(sr.corr) == 0 && !schema[0].NotNull {
		col := expression.ColumnFromInfo(schema[0])
		check, err := c.genCountCheck(sr.op, expression.NewIsNull(col), func(cnt sql.Expression) (sql.Expression, error) {
			return expression.NewEquals(cnt, expression.NewBigInt(0))
		})
		if err != nil {
			return nil, err
		}
		if op, err = c.genCheckJoin(ctx, sq, op, check, true); err != nil {
			return nil, err
		}
	}

	if kind != scalarSubquery {
		if len(rest) == 0 {
			return op, nil
		}
		return c.genConditionFilter(joinAnd(rest), op)
	}

	rr := c.opRR[op]
	tc := c.typeCheckCtx(rr)
	tc.SubqueryHandler = func(n parse.Node) (sql.Expression, error) {
		if n != sq {
			return nil, ErrUnsupportedSubquery.New(n.Snippet(), "Only 1 SubQuery expression is supported.")
		}
		info, err := rr.Get(alias, valueCol)
		if err != nil {
			return nil, err
		}
		if info == nil {
			return nil, sql.ErrInvalidColumn.New(alias + "." + valueCol)
		}
		return expression.ColumnFromInfo(info), nil
	}
	e, err := expression.TypeCheck(pred, tc)
	if err != nil {
		return nil, err
	}
	op = c.genFilterOp(e, op)

	var drop []string
	for _, info := range c.opRR[op].ColumnInfos() {
		if tab, _, ok := c.opRR[op].ReverseLookup(info.InternalName); ok && tab == alias {
			drop = append(drop, info.InternalName)
		}
	}
	return c.genDropColumns(op, drop), nil
}

// prepareSubquery runs the first passes over the subquery, pulls its
// correlated equalities out of its WHERE clause and generates its plan
// under alias.
func (c *Compilation) prepareSubquery(ctx *sql.Context, qb *QB, sq parse.Node, alias string, kind subqueryKind, negated bool, outer *sql.RowResolver) (*subqueryRewrite, error) {
	query := sq.Child(1).Clone()
	expr, _, err := c.phase1QBExpr(ctx, query, qb.ID, alias)
	if err != nil {
		return nil, err
	}
	sr := &subqueryRewrite{alias: alias, kind: kind, negated: negated, expr: expr}
	if expr.Kind == LeafExpr {
		if err := sr.extractCorrelation(sq, outer); err != nil {
			return nil, err
		}
	}
	if err := c.getMetadataExpr(ctx, expr); err != nil {
		return nil, err
	}
	op, err := c.genPlanExpr(ctx, expr)
	if err != nil {
		return nil, err
	}
	c.rebindAlias(op, alias)
	sr.op = op
	return sr, nil
}

// extractCorrelation turns every WHERE conjunct of the subquery that
// refers to the outer block into a join key. The inner side is added to
// the select list, and to the grouping keys of an aggregating subquery.
func (sr *subqueryRewrite) extractCorrelation(sq parse.Node, outer *sql.RowResolver) error {
	sub := sr.expr.QB
	dests := sub.ParseInfo.Destinations()
	if len(dests) != 1 {
		return nil
	}
	d := dests[0]
	sr.aggregated = d.HasClause(GroupByClause) || len(d.Aggregations()) > 0
	where, ok := d.Clause(WhereClause)
	if !ok {
		return nil
	}
	sel, ok := d.Clause(SelectClause)
	if !ok {
		return nil
	}

	fail := func(reason string) error {
		return sql.NewSemanticError(sq, ErrUnsupportedSubquery.New(sq.Snippet(), reason))
	}
	ar := sq.Arena()
	var kept []parse.Node
	for _, conj := range splitAnd(where) {
		if !refersOuter(conj, outer, sub) {
			kept = append(kept, conj)
			continue
		}
		if conj.Kind() != parse.Equal {
			return fail("Only equality correlation with the outer query is supported.")
		}
		l, r := conj.Child(0), conj.Child(1)
		if refersOuter(r, outer, sub) {
			l, r = r, l
		}
		if !onlyOuter(l, outer, sub) || refersOuter(r, outer, sub) {
			return fail("Correlating expression cannot mix outer and inner column references.")
		}
		if sr.kind == scalarSubquery && !sr.aggregated {
			return fail("Correlated scalar subqueries must be aggregated.")
		}

		name := fmt.Sprintf("sq_corr_%d", len(sr.corr))
		sr.corr = append(sr.corr, correlation{outer: l, name: name})
		sel.AddChild(ar.New(parse.TokSelExpr, "", r.Clone(), ar.New(parse.Identifier, name)))
		if sr.aggregated {
			if gby, ok := d.Clause(GroupByClause); ok {
				gby.AddChild(r.Clone())
			} else {
				d.SetClause(GroupByClause, ar.New(parse.TokGroupBy, "", r.Clone()))
			}
		}
	}
	if len(sr.corr) == 0 {
		return nil
	}
	if len(kept) == 0 {
		d.RemoveClause(WhereClause)
	} else {
		d.SetClause(WhereClause, joinAnd(kept))
	}
	return nil
}

// genCountCheck counts the rows of input matching pred and keeps the
// count row only if check accepts it.
func (c *Compilation) genCountCheck(input *plan.Operator, pred sql.Expression, check func(sql.Expression) (sql.Expression, error)) (*plan.Operator, error) {
	op := input
	if pred != nil {
		op = c.genFilterOp(pred, op)
	}
	count := func(mode plan.GroupByMode, amode plan.AggregationMode, args []sql.Expression, parent *plan.Operator) *plan.Operator {
		rr := sql.NewRowResolver()
		putHidden(rr, sql.NewColumnInfo(sql.InternalColumnName(0), sql.BigIntType, "", false))
		return c.putOp(&plan.GroupByDesc{
			Mode: mode,
			Aggregators: []*plan.AggregationDesc{{
				Name: "count",
				Args: args,
				Mode: amode,
				Type: sql.BigIntType,
			}},
			Columns:             rr.ColumnInfos().Names(),
			GroupingSetPosition: -1,
		}, rr, parent)
	}

	partial := count(plan.Hash, plan.AggPartial1, nil, op)
	rsRR := sql.NewRowResolver()
	putHidden(rsRR, sql.NewColumnInfo(plan.ValuePrefix+sql.InternalColumnName(0), sql.BigIntType, "", false))
	value := expression.ColumnFromInfo(c.opRR[partial].ColumnInfos()[0])
	rs := c.putOp(plan.NewReduceSinkDesc(nil, []sql.Expression{value}, nil, "", "", -1, 1), rsRR, partial)
	rs.SetColumnExpression(plan.ValuePrefix+sql.InternalColumnName(0), value)

	final := count(plan.MergePartial, plan.AggFinal, []sql.Expression{expression.ColumnFromInfo(rsRR.ColumnInfos()[0])}, rs)
	cond, err := check(expression.ColumnFromInfo(c.opRR[final].ColumnInfos()[0]))
	if err != nil {
		return nil, err
	}
	return c.genFilterOp(cond, final), nil
}

// genCheckJoin keeps the rows of input only while check produces a row.
func (c *Compilation) genCheckJoin(ctx *sql.Context, sq parse.Node, input, check *plan.Operator, notIn bool) (*plan.Operator, error) {
	tree := newJoinTree(sq, 2)
	tree.SubqueryRewrite = true
	tree.NotInCheck = notIn
	tree.NoSemiJoin = false
	tree.LeftAliases = c.opRR[input].TableAliases()
	tree.Conds = []JoinCond{{Left: 0, Right: 1, Type: plan.LeftSemiJoin}}
	return c.genJoinOperator(ctx, tree, []*plan.Operator{input, check})
}

// qualifiedRef builds the AST of alias.col.
func qualifiedRef(ar *parse.Arena, alias, col string) parse.Node {
	return ar.New(parse.Dot, "",
		ar.New(parse.TokTableOrCol, "", ar.New(parse.Identifier, alias)),
		ar.New(parse.Identifier, col))
}

// refQualifier returns the lower-cased alias of an alias.col reference.
func refQualifier(n parse.Node) (string, bool) {
	if n.Kind() == parse.Dot && n.ChildCount() == 2 && n.Child(0).Kind() == parse.TokTableOrCol {
		return strings.ToLower(parse.UnescapeIdentifier(n.Child(0).Child(0).Text())), true
	}
	return "", false
}

func isOuterAlias(alias string, outer *sql.RowResolver, sub *QB) bool {
	return outer.HasTableAlias(alias) && !sub.HasAlias(alias)
}

// refersOuter reports whether n references a column of the outer block.
func refersOuter(n parse.Node, outer *sql.RowResolver, sub *QB) bool {
	found := false
	n.Walk(func(n parse.Node) bool {
		if q, ok := refQualifier(n); ok && isOuterAlias(q, outer, sub) {
			found = true
		}
		return !found
	})
	return found
}

// onlyOuter reports whether every column n references is qualified with
// an outer alias.
func onlyOuter(n parse.Node, outer *sql.RowResolver, sub *QB) bool {
	ok := true
	n.Walk(func(n parse.Node) bool {
		if !ok {
			return false
		}
		if q, qualified := refQualifier(n); qualified {
			ok = isOuterAlias(q, outer, sub)
			return false
		}
		if n.Kind() == parse.TokTableOrCol {
			ok = false
		}
		return ok
	})
	return ok
}

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
	"strconv"
	"strings"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
)

type walkResult int

const (
	walkContinue walkResult = iota
	// walkSkip abandons the statement: its conditional insert target
	// already exists.
	walkSkip
)

type phase1Ctx struct {
	dest    *Destination
	nextNum int
}

// resolveQueryBlocks is the first pass: it splits the statement into query
// blocks and records, per destination, the clauses, aggregations and
// window functions without consulting the catalog beyond conditional
// insert probes.
func resolveQueryBlocks(ctx *sql.Context, a *Analyzer, c *Compilation) error {
	if c.AST.Kind().IsSetOp() {
		c.AST = wrapSetOperation(c.AST)
	}
	if c.AST.Kind() != parse.TokQuery {
		return sql.NewSemanticError(c.AST, sql.ErrUnexpectedToken.New(c.AST.Kind()))
	}

	expr, res, err := c.phase1QBExpr(ctx, c.AST, "", "")
	if err != nil {
		return err
	}
	if res == walkSkip {
		a.Log("target partition exists, skipping statement")
		c.skipped = true
	}
	c.Root = expr
	c.QB = expr.QB
	return nil
}

// wrapSetOperation turns a bare set operation into a query selecting
// everything from it.
func wrapSetOperation(setop parse.Node) parse.Node {
	ar := setop.Arena()
	return ar.New(parse.TokQuery, "",
		ar.New(parse.TokFrom, "",
			ar.New(parse.TokSubquery, "", setop, ar.New(parse.Identifier, "_u1"))),
		ar.New(parse.TokInsert, "",
			ar.New(parse.TokDestination, "",
				ar.New(parse.TokDir, "", ar.New(parse.TokTmpFile, ""))),
			ar.New(parse.TokSelect, "",
				ar.New(parse.TokSelExpr, "", ar.New(parse.TokAllColRef, "")))))
}

// phase1QBExpr reads a query or set operation nested under the block with
// id outerID. Set operation branches are aliased alias-subquery1 and
// alias-subquery2.
func (c *Compilation) phase1QBExpr(ctx *sql.Context, node parse.Node, outerID, alias string) (*QBExpr, walkResult, error) {
	switch {
	case node.Kind() == parse.TokQuery:
		qb := NewQB(outerID, alias, alias != "")
		res, err := c.phase1(ctx, node, qb, &phase1Ctx{})
		if err != nil {
			return nil, res, err
		}
		return NewLeaf(qb), res, nil
	case node.Kind().IsSetOp():
		if node.ChildCount() != 2 {
			return nil, walkContinue, sql.NewSemanticError(node, sql.ErrUnexpectedToken.New(node.Kind()))
		}
		left, res, err := c.phase1QBExpr(ctx, node.Child(0), outerID, alias+"-subquery1")
		if err != nil || res == walkSkip {
			return nil, res, err
		}
		right, res, err := c.phase1QBExpr(ctx, node.Child(1), outerID, alias+"-subquery2")
		if err != nil || res == walkSkip {
			return nil, res, err
		}
		return NewSetOp(alias, setOpFromKind(node.Kind()), left, right, node), walkContinue, nil
	}
	return nil, walkContinue, sql.NewSemanticError(node, sql.ErrUnexpectedToken.New(node.Kind()))
}

func (c *Compilation) phase1(ctx *sql.Context, node parse.Node, qb *QB, p1 *phase1Ctx) (walkResult, error) {
	pi := qb.ParseInfo
	recurse := true

	switch node.Kind() {
	case parse.TokInsert:
		for _, child := range node.Children() {
			res, err := c.phase1(ctx, child, qb, p1)
			if err != nil || res == walkSkip {
				return res, err
			}
		}
		if p1.dest != nil {
			if err := c.resolvePositionAliases(p1.dest); err != nil {
				return walkContinue, err
			}
		}
		recurse = false

	case parse.TokSelect, parse.TokSelectDI:
		dest, err := currentDest(node, p1)
		if err != nil {
			return walkContinue, err
		}
		if dest.HasClause(SelectClause) {
			return walkContinue, sql.NewSemanticError(node, ErrMultipleSelect.New())
		}
		dest.SetClause(SelectClause, node)
		dest.Distinct = node.Kind() == parse.TokSelectDI
		if node.ChildCount() > 0 && node.Child(0).Kind() == parse.TokHintList {
			dest.Hints = node.Child(0)
		}
		var windows []parse.Node
		for _, se := range dest.SelectExprs() {
			if err := c.collectAggregations(se.Child(0), dest, &windows, false); err != nil {
				return walkContinue, err
			}
		}
		if err := c.addWindowFunctions(dest, windows); err != nil {
			return walkContinue, err
		}
		recurse = false

	case parse.TokWhere:
		dest, err := currentDest(node, p1)
		if err != nil {
			return walkContinue, err
		}
		dest.SetClause(WhereClause, node.Child(0))
		c.assignSubqueryAliases(dest, node.Child(0))
		recurse = false

	case parse.TokDestination, parse.TokInsertInto:
		dest := newDestination(fmt.Sprintf("insclause-%d", p1.nextNum), node)
		p1.nextNum++
		dest.InsertInto = node.Kind() == parse.TokInsertInto
		for _, child := range node.Children()[1:] {
			switch child.Kind() {
			case parse.TokIfNotExists:
				dest.IfNotExists = true
			case parse.TokTabColName:
				for _, col := range child.Children() {
					dest.InsertColumns = append(dest.InsertColumns, parse.UnescapeIdentifier(col.Text()))
				}
			}
		}
		pi.AddDestination(dest)
		p1.dest = dest
		if dest.IfNotExists {
			exists, err := c.targetPartitionExists(ctx, node.Child(0))
			if err != nil {
				return walkContinue, err
			}
			if exists {
				return walkSkip, nil
			}
		}
		recurse = false

	case parse.TokFrom:
		if node.ChildCount() != 1 {
			return walkContinue, sql.NewSemanticError(node, ErrInvalidJoinInput.New(node.Snippet()))
		}
		pi.FromExpr = node.Child(0)
		if err := c.processFromSource(ctx, qb, node.Child(0)); err != nil {
			return walkContinue, err
		}
		recurse = false

	case parse.TokClusterBy:
		dest, err := currentDest(node, p1)
		if err != nil {
			return walkContinue, err
		}
		for _, k := range []ClauseKind{DistributeByClause, SortByClause, OrderByClause} {
			if dest.HasClause(k) {
				return walkContinue, sql.NewSemanticError(node, ErrClusterByConflict.New(k))
			}
		}
		dest.SetClause(ClusterByClause, node)
		recurse = false

	case parse.TokDistributeBy, parse.TokSortBy, parse.TokOrderBy:
		dest, err := currentDest(node, p1)
		if err != nil {
			return walkContinue, err
		}
		kind := map[parse.Kind]ClauseKind{
			parse.TokDistributeBy: DistributeByClause,
			parse.TokSortBy:       SortByClause,
			parse.TokOrderBy:      OrderByClause,
		}[node.Kind()]
		if dest.HasClause(ClusterByClause) {
			return walkContinue, sql.NewSemanticError(node, ErrClusterByConflict.New(kind))
		}
		if (kind == SortByClause && dest.HasClause(OrderByClause)) || (kind == OrderByClause && dest.HasClause(SortByClause)) {
			return walkContinue, sql.NewSemanticError(node, ErrOrderBySortByConflict.New())
		}
		dest.SetClause(kind, node)
		recurse = false

	case parse.TokGroupBy, parse.TokRollupGroupBy, parse.TokCubeGroupBy, parse.TokGroupingSets:
		dest, err := currentDest(node, p1)
		if err != nil {
			return walkContinue, err
		}
		if dest.Distinct {
			return walkContinue, sql.NewSemanticError(node, ErrSelectDistinctWithGroupBy.New())
		}
		for _, key := range node.Children() {
			if key.Kind() == parse.TokAllColRef {
				return walkContinue, sql.NewSemanticError(key, ErrInvalidGroupByExpression.New("*"))
			}
		}
		dest.SetClause(GroupByClause, node)
		switch node.Kind() {
		case parse.TokRollupGroupBy:
			dest.GroupingKind = RollupGrouping
		case parse.TokCubeGroupBy:
			dest.GroupingKind = CubeGrouping
		case parse.TokGroupingSets:
			dest.GroupingKind = GroupingSetsGrouping
		}
		recurse = false

	case parse.TokHaving:
		dest, err := currentDest(node, p1)
		if err != nil {
			return walkContinue, err
		}
		dest.SetClause(HavingClause, node.Child(0))
		var windows []parse.Node
		if err := c.collectAggregations(node.Child(0), dest, &windows, false); err != nil {
			return walkContinue, err
		}
		if len(windows) > 0 {
			name := parse.UnescapeIdentifier(windows[0].Child(0).Text())
			return walkContinue, sql.NewSemanticError(windows[0], sql.ErrWindowingNotAllowed.New(name))
		}
		c.assignSubqueryAliases(dest, node.Child(0))
		recurse = false

	case parse.TokQualify:
		dest, err := currentDest(node, p1)
		if err != nil {
			return walkContinue, err
		}
		dest.SetClause(QualifyClause, node.Child(0))
		var windows []parse.Node
		if err := c.collectAggregations(node.Child(0), dest, &windows, false); err != nil {
			return walkContinue, err
		}
		if err := c.addWindowFunctions(dest, windows); err != nil {
			return walkContinue, err
		}
		recurse = false

	case parse.TokLimit:
		dest, err := currentDest(node, p1)
		if err != nil {
			return walkContinue, err
		}
		lim, err := limitFromNode(node)
		if err != nil {
			return walkContinue, err
		}
		dest.SetClause(LimitClause, node)
		dest.Limit = lim
		recurse = false

	case parse.TokCTE:
		if err := c.processCTE(qb, node); err != nil {
			return walkContinue, err
		}
		recurse = false
	}

	if !recurse {
		return walkContinue, nil
	}
	for _, child := range node.Children() {
		res, err := c.phase1(ctx, child, qb, p1)
		if err != nil || res == walkSkip {
			return res, err
		}
	}
	return walkContinue, nil
}

func currentDest(node parse.Node, p1 *phase1Ctx) (*Destination, error) {
	if p1.dest == nil {
		return nil, sql.NewSemanticError(node, ErrUnknownDestination.New(node.Kind()))
	}
	return p1.dest, nil
}

func limitFromNode(node parse.Node) (*Limit, error) {
	lim := &Limit{Node: node}
	var vals []int
	for _, c := range node.Children() {
		v, err := strconv.Atoi(strings.TrimRight(strings.ToUpper(c.Text()), "L"))
		if c.Kind() != parse.Number || err != nil || v < 0 {
			return nil, sql.NewSemanticError(c, ErrInvalidLimit.New(c.Text()))
		}
		vals = append(vals, v)
	}
	switch len(vals) {
	case 1:
		lim.Count = vals[0]
	case 2:
		lim.Offset, lim.Count = vals[0], vals[1]
	default:
		return nil, sql.NewSemanticError(node, ErrInvalidLimit.New(node.Snippet()))
	}
	return lim, nil
}

// windowSpecOf returns the window spec among the trailing children of a
// function call.
func windowSpecOf(n parse.Node) (parse.Node, bool) {
	for i := n.ChildCount() - 1; i > 0; i-- {
		switch c := n.Child(i); c.Kind() {
		case parse.TokWindowSpec:
			return c, true
		case parse.TokIgnoreNulls, parse.TokRespectNulls:
			continue
		}
		break
	}
	return parse.Node{}, false
}

// collectAggregations registers the aggregate calls of an expression and
// gathers its windowed calls. Subquery predicates are left alone.
func (c *Compilation) collectAggregations(n parse.Node, dest *Destination, windows *[]parse.Node, inWindow bool) error {
	switch n.Kind() {
	case parse.TokSubqueryExpr:
		return nil
	case parse.TokFunction, parse.TokFunctionDI, parse.TokFunctionStar:
		if n.ChildCount() == 0 {
			break
		}
		if _, ok := windowSpecOf(n); ok {
			*windows = append(*windows, n)
			for _, child := range n.Children() {
				if err := c.collectAggregations(child, dest, windows, true); err != nil {
					return err
				}
			}
			return nil
		}
		nameNode := n.Child(0)
		if nameNode.Kind() == parse.Identifier {
			name := parse.UnescapeIdentifier(nameNode.Text())
			info, ok := c.Registry.Function(name)
			if !ok {
				return sql.NewSemanticError(nameNode, sql.ErrInvalidFunction.New(name))
			}
			if (info.RequiresOver || info.Kind == sql.WindowFunction) && !inWindow {
				return sql.NewSemanticError(n, sql.ErrMissingOverClause.New(name))
			}
			if info.IsAggregate() {
				dest.AddAggregation(n)
				return nil
			}
		}
	}
	for _, child := range n.Children() {
		if err := c.collectAggregations(child, dest, windows, inWindow); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compilation) addWindowFunctions(dest *Destination, windows []parse.Node) error {
	if len(windows) == 0 {
		return nil
	}
	if dest.Windowing == nil {
		dest.Windowing = newWindowingSpec()
	}
	for _, w := range windows {
		fn, err := newWindowFunctionSpec(w)
		if err != nil {
			return err
		}
		info, ok := c.Registry.Function(fn.Name)
		if !ok {
			return sql.NewSemanticError(w, sql.ErrInvalidFunction.New(fn.Name))
		}
		if info.Kind != sql.WindowFunction && !info.IsAggregate() {
			return sql.NewSemanticError(w, sql.ErrWindowingNotAllowed.New(fn.Name))
		}
		if fn.IgnoreNulls && !info.SupportsNullTreatment {
			return sql.NewSemanticError(w, sql.ErrNullTreatmentNotSupported.New(fn.Name))
		}
		dest.Windowing.Add(fn)
	}
	return nil
}

// assignSubqueryAliases names the subquery predicates of a filter.
func (c *Compilation) assignSubqueryAliases(dest *Destination, pred parse.Node) {
	pred.Walk(func(n parse.Node) bool {
		if n.Kind() == parse.TokSubqueryExpr {
			if _, ok := dest.SubqueryAlias(n); !ok {
				dest.setSubqueryAlias(n, c.nextSubqueryAlias("sq"))
			}
			return false
		}
		return true
	})
}

// resolvePositionAliases replaces numeric GROUP BY and ORDER BY keys with
// the select expressions they point at, when enabled.
func (c *Compilation) resolvePositionAliases(dest *Destination) error {
	exprs := dest.SelectExprs()
	rewrite := func(clause ClauseKind, key parse.Node) error {
		if key.Kind() != parse.Number {
			return nil
		}
		pos, err := strconv.Atoi(key.Text())
		if err != nil {
			return nil
		}
		if dest.IsSelectStar() {
			return sql.NewSemanticError(key, ErrPositionAliasWithStar.New(clause))
		}
		if pos < 1 || pos > len(exprs) {
			return sql.NewSemanticError(key, ErrInvalidPositionAlias.New(clause, pos, len(exprs)))
		}
		key.Rebind(exprs[pos-1].Child(0).Clone())
		return nil
	}

	if gby, ok := dest.Clause(GroupByClause); ok && c.Conf.GetBool(sql.ConfGroupByPositionAlias) {
		for _, key := range gby.Children() {
			if key.Kind() == parse.TokGroupingSetsExpression {
				continue
			}
			if err := rewrite(GroupByClause, key); err != nil {
				return err
			}
		}
	}
	if oby, ok := dest.Clause(OrderByClause); ok && c.Conf.GetBool(sql.ConfOrderByPositionAlias) {
		for _, oe := range orderExprs(oby) {
			if err := rewrite(OrderByClause, oe.Expr); err != nil {
				return err
			}
		}
	}
	return nil
}

// targetPartitionExists probes the catalog for the static partition of a
// conditional insert.
func (c *Compilation) targetPartitionExists(ctx *sql.Context, target parse.Node) (bool, error) {
	if target.Kind() != parse.TokTab {
		return false, nil
	}
	db, name := tableNameFromNode(target.Child(0))
	specNode, ok := target.FirstChildOfKind(parse.TokPartSpec)
	if !ok {
		return false, nil
	}
	spec := partitionSpecFromNode(specNode)
	if !spec.IsStatic() {
		return false, nil
	}
	t, err := c.getTable(ctx, db, name)
	if err != nil {
		return false, sql.NewSemanticError(target, err)
	}
	parts, err := c.Catalog.GetPartitionsByNames(ctx, t, spec)
	if err != nil {
		return false, sql.ErrInternal.Wrap(err, "probing partition "+spec.String())
	}
	return len(parts) > 0, nil
}

// tableNameFromNode reads a TOK_TABNAME.
func tableNameFromNode(n parse.Node) (db, name string) {
	switch n.ChildCount() {
	case 1:
		return "", parse.UnescapeIdentifier(n.Child(0).Text())
	case 2:
		return parse.UnescapeIdentifier(n.Child(0).Text()), parse.UnescapeIdentifier(n.Child(1).Text())
	}
	return "", parse.UnescapeIdentifier(n.Text())
}

// partitionSpecFromNode reads a TOK_PARTSPEC. Columns without a value are
// dynamic.
func partitionSpecFromNode(n parse.Node) sql.PartitionSpec {
	var spec sql.PartitionSpec
	for _, pv := range n.Children() {
		if pv.Kind() != parse.TokPartVal || pv.ChildCount() == 0 {
			continue
		}
		kv := sql.PartitionKeyValue{Column: parse.UnescapeIdentifier(pv.Child(0).Text())}
		if pv.ChildCount() > 1 {
			kv.Value = pv.Child(1).Text()
		}
		spec = append(spec, kv)
	}
	return spec
}

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

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
)

// CTEClause is one WITH definition.
type CTEClause struct {
	Name string
	// Key is the scope qualified name, "<qb id>:<name>".
	Key string
	// Node is the body, a query or a set operation.
	Node parse.Node
	// Scope is the id of the query block declaring the clause.
	Scope string
	// Refs counts the references reachable from the statement.
	Refs int
	// Expr is the body as read while gathering references.
	Expr        *QBExpr
	deps        []*CTEClause
	Materialize bool
	Table       sql.Table
}

type cteRegistry struct {
	byKey map[string]*CTEClause
	order []*CTEClause
}

func newCTERegistry() *cteRegistry {
	return &cteRegistry{byKey: make(map[string]*CTEClause)}
}

// add registers a clause. Reading the same WITH block again, as inlining
// does, keeps the first registration.
func (r *cteRegistry) add(cl *CTEClause) {
	if _, ok := r.byKey[cl.Key]; ok {
		return
	}
	r.byKey[cl.Key] = cl
	r.order = append(r.order, cl)
}

// find resolves a name referenced from the block qbID, innermost scope
// first.
func (r *cteRegistry) find(qbID, name string) (*CTEClause, bool) {
	name = strings.ToLower(name)
	for id := qbID; id != ""; id = parentID(id) {
		if cl, ok := r.byKey[id+":"+name]; ok {
			return cl, true
		}
	}
	cl, ok := r.byKey[name]
	return cl, ok
}

// Clauses returns the registered clauses in declaration order.
func (r *cteRegistry) Clauses() []*CTEClause {
	return r.order
}

func cteKey(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + ":" + name
}

// processCTE reads a WITH block: (TOK_CTE (TOK_SUBQUERY body name)...).
func (c *Compilation) processCTE(qb *QB, node parse.Node) error {
	seen := make(map[string]bool)
	for _, sq := range node.Children() {
		if sq.Kind() != parse.TokSubquery || sq.ChildCount() != 2 {
			return sql.NewSemanticError(sq, ErrNoSubqueryAlias.New())
		}
		name := strings.ToLower(parse.UnescapeIdentifier(sq.Child(1).Text()))
		if seen[name] {
			return sql.NewSemanticError(sq.Child(1), ErrDuplicateCTE.New(name))
		}
		seen[name] = true
		c.ctes.add(&CTEClause{
			Name:  name,
			Key:   cteKey(qb.ID, name),
			Node:  sq.Child(0),
			Scope: qb.ID,
		})
	}
	return nil
}

// findCTE resolves an unqualified table name against the WITH clauses
// visible from qb.
func (c *Compilation) findCTE(qb *QB, ref *TableRef) (*CTEClause, bool) {
	if ref.Database != "" {
		return nil, false
	}
	return c.ctes.find(qb.ID, ref.Name)
}

// gatherCTEs counts the references to every WITH clause, rejects
// recursive definitions and decides which clauses are materialized.
func gatherCTEs(ctx *sql.Context, a *Analyzer, c *Compilation) error {
	if c.skipped || len(c.ctes.order) == 0 {
		return nil
	}
	var expanded []*CTEClause
	if err := c.gatherCTEReferences(ctx, c.Root, nil, &expanded); err != nil {
		return err
	}

	threshold := c.Conf.GetInt(sql.ConfCTEMaterializeThreshold)
	fullAggOnly := c.Conf.GetBool(sql.ConfCTEMaterializeFullAggOnly)
	for _, cl := range c.ctes.order {
		if threshold < 0 || cl.Expr == nil || cl.Refs < threshold {
			continue
		}
		if fullAggOnly && !isFullyAggregate(cl.Expr) {
			a.Log("cte %s referenced %d times, not materialized: not a full aggregate", cl.Name, cl.Refs)
			continue
		}
		a.Log("cte %s referenced %d times, materializing", cl.Name, cl.Refs)
		cl.Materialize = true
	}
	return nil
}

func (c *Compilation) gatherCTEReferences(ctx *sql.Context, e *QBExpr, current *CTEClause, expanded *[]*CTEClause) error {
	for _, qb := range e.Leaves() {
		for _, alias := range qb.TableAliases() {
			ref, _ := qb.Table(alias)
			cl, ok := c.findCTE(qb, ref)
			if !ok {
				continue
			}
			for _, x := range *expanded {
				if x == cl {
					return sql.NewSemanticError(ref.Node, ErrRecursiveCTE.New(cl.Name, cteCycle(*expanded, cl)))
				}
			}
			cl.Refs++
			if current != nil {
				current.deps = append(current.deps, cl)
			}
			if cl.Expr != nil {
				continue
			}
			expr, _, err := c.phase1QBExpr(ctx, cl.Node.Clone(), cl.Scope, cl.Name)
			if err != nil {
				return err
			}
			cl.Expr = expr
			*expanded = append(*expanded, cl)
			if err := c.gatherCTEReferences(ctx, expr, cl, expanded); err != nil {
				return err
			}
			*expanded = (*expanded)[:len(*expanded)-1]
		}
		for _, alias := range qb.SubqueryAliases() {
			sub, _ := qb.Subquery(alias)
			if err := c.gatherCTEReferences(ctx, sub, current, expanded); err != nil {
				return err
			}
		}
	}
	return nil
}

func cteCycle(stack []*CTEClause, repeated *CTEClause) string {
	names := make([]string, 0, len(stack)+1)
	start := 0
	for i, cl := range stack {
		if cl == repeated {
			start = i
			break
		}
	}
	for _, cl := range stack[start:] {
		names = append(names, cl.Name)
	}
	return strings.Join(append(names, repeated.Name), " -> ")
}

// isFullyAggregate reports whether every block of the expression
// aggregates without grouping keys and projects only aggregates and
// constants over them, so it yields a single row.
func isFullyAggregate(e *QBExpr) bool {
	for _, qb := range e.Leaves() {
		for _, dest := range qb.ParseInfo.Destinations() {
			if dest.HasClause(GroupByClause) || len(dest.Aggregations()) == 0 {
				return false
			}
			for _, se := range dest.SelectExprs() {
				if !isAggregateOnly(se.Child(0), dest) {
					return false
				}
			}
		}
	}
	return true
}

func isAggregateOnly(n parse.Node, dest *Destination) bool {
	if dest.HasAggregation(n) {
		return true
	}
	switch n.Kind() {
	case parse.TokTableOrCol, parse.TokAllColRef, parse.Dot:
		return false
	case parse.TokFunction, parse.TokFunctionDI, parse.TokFunctionStar:
		for _, arg := range n.Children()[1:] {
			if !isAggregateOnly(arg, dest) {
				return false
			}
		}
		return true
	}
	for _, child := range n.Children() {
		if !isAggregateOnly(child, dest) {
			return false
		}
	}
	return true
}

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
	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression"
	"github.com/difin/hive-sub000/sql/plan"
)

// genFilterPlan filters input by a WHERE, HAVING or QUALIFY predicate. A
// subquery predicate is rewritten into a join with the subquery before the
// rest of the predicate is applied.
func (c *Compilation) genFilterPlan(ctx *sql.Context, qb *QB, dest *Destination, pred parse.Node, input *plan.Operator) (*plan.Operator, error) {
	subs := findSubqueries(pred)
	if len(subs) == 0 {
		return c.genConditionFilter(pred, input)
	}
	if len(subs) > 1 {
		return nil, sql.NewSemanticError(subs[1], ErrUnsupportedSubquery.New(subs[1].Snippet(), "Only 1 SubQuery expression is supported."))
	}

	sq := subs[0]
	for i := 1; i < sq.ChildCount(); i++ {
		if nested := findSubqueries(sq.Child(i)); len(nested) > 0 {
			return nil, sql.NewSemanticError(nested[0], ErrUnsupportedSubquery.New(sq.Snippet(), "Nested SubQuery expressions are not supported."))
		}
	}
	if query := sq.Child(1); query.Kind() == parse.TokQuery {
		if nested := findNestedSubqueries(query); nested.Valid() {
			return nil, sql.NewSemanticError(nested, ErrUnsupportedSubquery.New(sq.Snippet(), "Nested SubQuery expressions are not supported."))
		}
	}
	return c.genSubqueryFilter(ctx, qb, dest, pred, sq, input)
}

// genConditionFilter type checks pred over input and filters by it.
func (c *Compilation) genConditionFilter(pred parse.Node, input *plan.Operator) (*plan.Operator, error) {
	e, err := expression.TypeCheck(pred, c.typeCheckCtx(c.opRR[input]))
	if err != nil {
		return nil, err
	}
	return c.genFilterOp(e, input), nil
}

// genFilterOp filters input by pred. A constant true predicate needs no
// operator and a NULL constant never matches.
func (c *Compilation) genFilterOp(pred sql.Expression, input *plan.Operator) *plan.Operator {
	pred = expression.ToBoolean(pred)
	if k, ok := pred.(*expression.Constant); ok {
		if k.IsNull() {
			pred = expression.NewBoolean(false)
		} else if k.IsTrue() {
			return input
		}
	}
	rr := c.opRR[input]
	return c.putOp(&plan.FilterDesc{
		Predicate: pred,
		Columns:   rr.ColumnInfos().Names(),
	}, rr, input)
}

// findSubqueries returns the outermost subquery expressions of n.
func findSubqueries(n parse.Node) []parse.Node {
	var out []parse.Node
	n.Walk(func(n parse.Node) bool {
		if n.Kind() == parse.TokSubqueryExpr {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// findNestedSubqueries returns the first subquery predicate in the WHERE
// or HAVING clauses of a query, if any.
func findNestedSubqueries(query parse.Node) parse.Node {
	var found parse.Node
	query.Walk(func(n parse.Node) bool {
		if found.Valid() {
			return false
		}
		if n.Kind() == parse.TokWhere || n.Kind() == parse.TokHaving {
			if subs := findSubqueries(n); len(subs) > 0 {
				found = subs[0]
			}
			return false
		}
		return true
	})
	return found
}

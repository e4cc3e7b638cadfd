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
	"sort"
	"strings"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/plan"
)

// MaskingPolicy is the row filter and the column masks applied to every
// read of one table. Expressions are AST dumps over the table columns.
type MaskingPolicy struct {
	RowFilter   string
	ColumnMasks map[string]string
}

// IsEmpty reports whether the policy leaves reads unchanged.
func (p *MaskingPolicy) IsEmpty() bool {
	return p == nil || (p.RowFilter == "" && len(p.ColumnMasks) == 0)
}

// TableMasker returns the masking policy of a table.
type TableMasker interface {
	Policy(ctx *sql.Context, table sql.Table, columns []string) (*MaskingPolicy, error)
}

// ResultsCache returns a previously computed result for a canonical query
// text read under a transaction snapshot.
type ResultsCache interface {
	Lookup(ctx *sql.Context, key, snapshot string) (*plan.CachedResult, bool, error)
}

// Authorizer checks the objects a plan reads and writes.
type Authorizer interface {
	Authorize(ctx *sql.Context, op sql.Operation, inputs []*plan.ReadEntity, outputs []*plan.WriteEntity) error
}

type maskTarget struct {
	node   parse.Node
	table  sql.Table
	alias  string
	policy *MaskingPolicy
}

// applyTableMasking replaces every masked table reference of the
// statement with a subquery applying the policy. Any replacement restarts
// the compilation from the rewritten text.
func applyTableMasking(ctx *sql.Context, a *Analyzer, c *Compilation) error {
	if a.Masker == nil || c.masked || c.skipped {
		return nil
	}
	targets, err := c.maskTargets(ctx, a.Masker)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}
	for _, t := range targets {
		sub, err := maskedSubquery(t)
		if err != nil {
			return err
		}
		t.node.Rebind(sub)
		a.Log("masked table %s as %s", sql.QualifiedName(t.table), t.alias)
	}

	ast, err := parse.ReadString(c.AST.String())
	if err != nil {
		return sql.ErrInternal.Wrap(err, "re-reading masked statement")
	}
	c.AST = ast
	c.restart = true
	return nil
}

func (c *Compilation) maskTargets(ctx *sql.Context, masker TableMasker) ([]*maskTarget, error) {
	cteNames := make(map[string]bool)
	for _, cl := range c.ctes.Clauses() {
		cteNames[cl.Name] = true
	}

	var refs []parse.Node
	c.AST.Walk(func(n parse.Node) bool {
		if n.Kind() == parse.TokTabRef {
			refs = append(refs, n)
		}
		return true
	})

	var targets []*maskTarget
	for _, ref := range refs {
		db, name := tableNameFromNode(ref.Child(0))
		if db == "" && cteNames[strings.ToLower(name)] {
			continue
		}
		t, err := c.getTable(ctx, db, name)
		if err != nil {
			return nil, sql.NewSemanticError(ref, err)
		}
		if t.Type().IsView() || isMaterializedCTE(t) {
			continue
		}
		var cols []string
		for _, col := range t.Columns() {
			cols = append(cols, strings.ToLower(col.Name))
		}
		policy, err := masker.Policy(ctx, t, cols)
		if err != nil {
			return nil, sql.ErrInternal.Wrap(err, "masking policy of "+sql.QualifiedName(t))
		}
		if policy.IsEmpty() {
			continue
		}
		alias := name
		if a, ok := ref.FirstChildOfKind(parse.TokTabAlias); ok {
			alias = parse.UnescapeIdentifier(a.Child(0).Text())
		}
		targets = append(targets, &maskTarget{node: ref, table: t, alias: alias, policy: policy})
	}
	return targets, nil
}

func maskingError(t *maskTarget, column, reason string) error {
	return &sql.SemanticError{
		Err:    ErrInvalidMaskingPolicy.New(sql.QualifiedName(t.table), reason),
		Node:   t.node,
		Table:  sql.QualifiedName(t.table),
		Column: column,
	}
}

// maskedSubquery builds
// (TOK_SUBQUERY (TOK_QUERY (TOK_FROM ref) (TOK_INSERT dest select [where])) alias).
func maskedSubquery(t *maskTarget) (parse.Node, error) {
	ar := t.node.Arena()
	known := make(map[string]bool)
	for _, col := range append(t.table.Columns(), t.table.PartitionColumns()...) {
		known[strings.ToLower(col.Name)] = true
	}
	masked := make([]string, 0, len(t.policy.ColumnMasks))
	for col := range t.policy.ColumnMasks {
		masked = append(masked, col)
	}
	sort.Strings(masked)
	for _, col := range masked {
		if !known[strings.ToLower(col)] {
			return parse.Node{}, maskingError(t, col, "unknown column "+col)
		}
	}

	src := ar.New(parse.TokTabRef, "", t.node.Child(0).Clone())
	for _, child := range t.node.Children()[1:] {
		if child.Kind() != parse.TokTabAlias {
			src.AddChild(child.Clone())
		}
	}

	sel := ar.New(parse.TokSelect, "")
	for _, col := range append(t.table.Columns(), t.table.PartitionColumns()...) {
		name := strings.ToLower(col.Name)
		expr := ar.New(parse.TokTableOrCol, "", ar.New(parse.Identifier, name))
		if text, ok := lookupFold(t.policy.ColumnMasks, name); ok {
			e, err := parse.ReadInto(ar, strings.NewReader(text))
			if err != nil {
				return parse.Node{}, maskingError(t, name, err.Error())
			}
			expr = e
		}
		sel.AddChild(ar.New(parse.TokSelExpr, "", expr, ar.New(parse.Identifier, name)))
	}

	insert := ar.New(parse.TokInsert, "",
		ar.New(parse.TokDestination, "", ar.New(parse.TokDir, "", ar.New(parse.TokTmpFile, ""))),
		sel)
	if t.policy.RowFilter != "" {
		filter, err := parse.ReadInto(ar, strings.NewReader(t.policy.RowFilter))
		if err != nil {
			return parse.Node{}, maskingError(t, "", err.Error())
		}
		insert.AddChild(ar.New(parse.TokWhere, "", filter))
	}
	query := ar.New(parse.TokQuery, "", ar.New(parse.TokFrom, "", src), insert)
	return ar.New(parse.TokSubquery, "", query, ar.New(parse.Identifier, t.alias)), nil
}

// checkResultsCache short-circuits plain queries whose result is cached
// for the current snapshot.
func checkResultsCache(ctx *sql.Context, a *Analyzer, c *Compilation) error {
	if a.Cache == nil || c.skipped || !c.Conf.GetBool(sql.ConfResultsCacheEnabled) {
		return nil
	}
	if ctx.Operation() != sql.OpQuery || !c.isPlainQuery() || c.hasNondeterministicCalls() {
		return nil
	}
	key := c.AST.Normalized() + "@" + ctx.CurrentDatabase()
	res, ok, err := a.Cache.Lookup(ctx, key, ctx.ValidTxnList())
	if err != nil {
		return sql.ErrInternal.Wrap(err, "results cache lookup")
	}
	if ok {
		a.Log("results cache hit for %s", key)
		c.Plan.CachedResult = res
	}
	return nil
}

func (c *Compilation) isPlainQuery() bool {
	if c.Root == nil || c.QB == nil {
		return false
	}
	for _, dest := range c.QB.ParseInfo.Destinations() {
		if t, _ := c.QB.MetaData.DestType(dest.Name); t != plan.DestTmpFile {
			return false
		}
	}
	return true
}

func (c *Compilation) hasNondeterministicCalls() bool {
	found := false
	c.AST.Walk(func(n parse.Node) bool {
		switch n.Kind() {
		case parse.TokFunction, parse.TokFunctionDI, parse.TokFunctionStar:
			if n.ChildCount() > 0 {
				name := parse.UnescapeIdentifier(n.Child(0).Text())
				if info, ok := c.Registry.Function(name); ok && !info.Deterministic {
					found = true
				}
			}
		}
		return !found
	})
	return found
}

func authorizePlan(ctx *sql.Context, a *Analyzer, c *Compilation) error {
	if a.Authorizer == nil || c.skipped {
		return nil
	}
	return a.Authorizer.Authorize(ctx, ctx.Operation(), c.Plan.Inputs, c.Plan.Outputs)
}

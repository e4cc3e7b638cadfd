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

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression"
	"github.com/difin/hive-sub000/sql/plan"
)

// Compilation holds the mutable state of compiling one statement. It is
// created per statement and never shared between statements.
type Compilation struct {
	AST      parse.Node
	Catalog  sql.Catalog
	Registry sql.FunctionRegistry
	Conf     *sql.Config

	// Root is the query expression of the statement; QB is its top
	// query block.
	Root *QBExpr
	QB   *QB

	Graph *plan.Graph
	Plan  *plan.Plan

	Translator *expression.Translator

	opRR map[*plan.Operator]*sql.RowResolver
	// tables caches catalog lookups and materialized CTEs by lower-cased
	// qualified name. It is shared with nested CTE compilations.
	tables map[string]sql.Table
	ctes   *cteRegistry
	// viewChain is the stack of views being expanded.
	viewChain []string
	// root is the outermost compilation; nested CTE compilations append
	// their plans to it.
	root *Compilation

	subquerySeq int
	// skipped is set when an INSERT ... IF NOT EXISTS target partition
	// already exists.
	skipped bool
	// restart asks the analyzer to compile the rewritten AST again.
	restart bool
	// masked is set once table masking rewrote the statement.
	masked bool
	// resultDir overrides the staging directory of the query result. A
	// materialized CTE writes its temporary table location.
	resultDir string
}

// NewCompilation creates the state for compiling ast.
func NewCompilation(ast parse.Node, catalog sql.Catalog, registry sql.FunctionRegistry, conf *sql.Config) *Compilation {
	if conf == nil {
		conf = sql.NewConfig()
	}
	g := plan.NewGraph()
	c := &Compilation{
		AST:        ast,
		Catalog:    catalog,
		Registry:   registry,
		Conf:       conf,
		Graph:      g,
		Plan:       plan.NewPlan(g),
		Translator: expression.NewTranslator(),
		opRR:       make(map[*plan.Operator]*sql.RowResolver),
		tables:     make(map[string]sql.Table),
		ctes:       newCTERegistry(),
	}
	c.root = c
	return c
}

// nested returns a compilation for a materialized CTE body. It shares the
// catalog, the table cache and the CTE registry but builds its own plan.
func (c *Compilation) nested() *Compilation {
	g := plan.NewGraph()
	return &Compilation{
		AST:        c.AST,
		Catalog:    c.Catalog,
		Registry:   c.Registry,
		Conf:       c.Conf,
		Graph:      g,
		Plan:       plan.NewPlan(g),
		Translator: expression.NewTranslator(),
		opRR:       make(map[*plan.Operator]*sql.RowResolver),
		tables:     c.tables,
		ctes:       c.ctes,
		viewChain:  c.viewChain,
		root:       c.root,
	}
}

// RowResolver returns the output resolver of an operator.
func (c *Compilation) RowResolver(op *plan.Operator) *sql.RowResolver {
	return c.opRR[op]
}

// putOp creates an operator whose output is described by rr.
func (c *Compilation) putOp(desc plan.Descriptor, rr *sql.RowResolver, parents ...*plan.Operator) *plan.Operator {
	op := c.Graph.New(desc, rr.ColumnInfos(), parents...)
	c.opRR[op] = rr
	return op
}

// nextSubqueryAlias returns a fresh alias for a rewritten subquery.
func (c *Compilation) nextSubqueryAlias(prefix string) string {
	c.root.subquerySeq++
	return fmt.Sprintf("%s_%d", prefix, c.root.subquerySeq)
}

// typeCheckCtx returns type checking rules over rr with the compilation's
// registry and folding settings.
func (c *Compilation) typeCheckCtx(rr *sql.RowResolver) *expression.TypeCheckCtx {
	tc := expression.NewTypeCheckCtx(rr, c.Registry)
	tc.FoldConstants = c.Conf.GetBool(sql.ConfConstantFolding)
	tc.Translator = c.Translator
	return tc
}

func tableKey(db, name string) string {
	return strings.ToLower(db + "." + name)
}

// getTable resolves a table through the compilation cache. A missing
// table is ErrInvalidTable; catalog failures are internal errors.
func (c *Compilation) getTable(ctx *sql.Context, db, name string) (sql.Table, error) {
	if db == "" {
		db = ctx.CurrentDatabase()
	}
	key := tableKey(db, name)
	if t, ok := c.tables[key]; ok {
		return t, nil
	}
	t, err := c.Catalog.GetTable(ctx, db, name)
	if err != nil {
		if sql.IsKind(err, sql.ErrInvalidTable) || sql.IsKind(err, sql.ErrInternal) {
			return nil, err
		}
		return nil, sql.ErrInternal.Wrap(err, "looking up table "+db+"."+name)
	}
	c.tables[key] = t
	return t, nil
}

// scratchDir returns a fresh directory under the scratch location.
func (c *Compilation) scratchDir(ctx *sql.Context, suffix string) string {
	base := strings.TrimRight(c.Conf.GetString(sql.ConfScratchDir), "/")
	return fmt.Sprintf("%s/%s/%s", base, ctx.QueryID(), suffix)
}

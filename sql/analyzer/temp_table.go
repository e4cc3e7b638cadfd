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
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/plan"
)

// cteTable is the temporary table holding a materialized CTE.
type cteTable struct {
	db       string
	name     string
	columns  []sql.FieldSchema
	location string
}

var _ sql.Table = (*cteTable)(nil)

func (t *cteTable) Name() string { return t.name }
func (t *cteTable) Database() string { return t.db }
func (t *cteTable) Columns() []sql.FieldSchema { return t.columns }
func (t *cteTable) PartitionColumns() []sql.FieldSchema { return nil }
func (t *cteTable) Constraints() sql.Constraints { return sql.Constraints{} }
func (t *cteTable) Type() sql.TableType { return sql.TemporaryTable }
func (t *cteTable) IsTransactional() bool { return false }
func (t *cteTable) IsInsertOnly() bool { return false }
func (t *cteTable) ViewExpandedText() string { return "" }
func (t *cteTable) MaterializedViewSources() []string { return nil }
func (t *cteTable) Properties() map[string]string { return nil }

func (t *cteTable) Storage() sql.StorageDescriptor {
	return sql.StorageDescriptor{Location: t.location}
}

func isMaterializedCTE(t sql.Table) bool {
	_, ok := t.(*cteTable)
	return ok
}

// materializeCTE compiles the body of a CTE into a plan of its own that
// fills a temporary table, and returns that table. The body is compiled
// once per statement.
func (c *Compilation) materializeCTE(ctx *sql.Context, cl *CTEClause) (sql.Table, error) {
	if cl.Table != nil {
		return cl.Table, nil
	}
	key := "cte:" + cl.Key
	if t, ok := c.tables[key]; ok {
		cl.Table = t
		return t, nil
	}

	span, ctx := ctx.Span("materialize_cte")
	defer span.Finish()

	body := cl.Node.Clone()
	if body.Kind().IsSetOp() {
		body = wrapSetOperation(body)
	}
	nc := c.nested()
	nc.resultDir = c.scratchDir(ctx, "-cte-"+cl.Name)
	expr, _, err := nc.phase1QBExpr(ctx, body, "", "")
	if err != nil {
		return nil, err
	}
	nc.Root, nc.QB = expr, expr.QB
	if err := nc.getMetadataExpr(ctx, expr); err != nil {
		return nil, err
	}
	if err := nc.generate(ctx); err != nil {
		return nil, err
	}
	if err := plan.Validate(nc.Plan); err != nil {
		return nil, err
	}
	collectSinks(nc.Plan)

	t := &cteTable{
		db:       ctx.CurrentDatabase(),
		name:     cl.Name,
		columns:  nc.Plan.ResultSchema,
		location: nc.resultDir,
	}
	nc.Plan.LoadTables = append(nc.Plan.LoadTables, &plan.LoadTableWork{
		DestID:    nc.QB.ParseInfo.Destinations()[0].Name,
		Table:     sql.QualifiedName(t),
		SourceDir: nc.resultDir,
		Replace:   true,
		Operation: sql.OpCreateTableAsSelect,
	})
	nc.Plan.ResultSchema = nil

	root := c.root.Plan
	root.CTEPlans = append(root.CTEPlans, nc.Plan)
	for _, in := range nc.Plan.Inputs {
		if _, err := root.AddInput(in); err != nil {
			return nil, err
		}
	}
	c.tables[key] = t
	cl.Table = t
	return t, nil
}

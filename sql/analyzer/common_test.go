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
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/difin/hive-sub000/memory"
	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression"
	"github.com/difin/hive-sub000/sql/expression/function"
	"github.com/difin/hive-sub000/sql/plan"
)

const testCatalogYAML = `
databases:
  - name: default
    tables:
      - name: t
        columns:
          - {name: a, type: int}
          - {name: b, type: string}
          - {name: c, type: double}
      - name: t1
        columns:
          - {name: id, type: int}
          - {name: v, type: string}
      - name: t2
        columns:
          - {name: id, type: int}
          - {name: w, type: string}
      - name: t3
        columns:
          - {name: id, type: bigint}
          - {name: x, type: string}
      - name: src
        columns:
          - {name: key, type: string}
          - {name: value, type: string}
      - name: srcpart
        columns:
          - {name: key, type: string}
          - {name: value, type: string}
        partition_columns:
          - {name: ds, type: string}
          - {name: hr, type: string}
        partitions: ["ds=2008-04-08/hr=11", "ds=2008-04-08/hr=12"]
      - name: bucketed
        columns:
          - {name: id, type: int}
          - {name: v, type: string}
        storage:
          num_buckets: 4
          bucket_cols: [id]
          sort_cols:
            - {name: id, asc: true}
      - name: dest
        columns:
          - {name: key, type: string}
          - {name: value, type: string}
      - name: dest2
        columns:
          - {name: key, type: string}
          - {name: value, type: string}
      - name: acid_t
        transactional: true
        columns:
          - {name: key, type: string}
          - {name: value, type: string}
      - name: arr
        columns:
          - {name: id, type: int}
          - {name: tags, type: "array<string>"}
      - name: v_src
        type: view
        columns:
          - {name: key, type: string}
        view_text: "(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME src))) (TOK_INSERT (TOK_DESTINATION (TOK_DIR TOK_TMP_FILE)) (TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL key)))))"
      - name: v_rec
        type: view
        columns:
          - {name: key, type: string}
        view_text: "(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME v_rec))) (TOK_INSERT (TOK_DESTINATION (TOK_DIR TOK_TMP_FILE)) (TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL key)))))"
`

func testCatalog(t *testing.T) *memory.Catalog {
	t.Helper()
	c, err := memory.LoadCatalog(strings.NewReader(testCatalogYAML))
	require.NoError(t, err)
	return c
}

func testContext(conf map[string]interface{}, opts ...sql.ContextOption) *sql.Context {
	cfg := sql.NewConfig()
	for k, v := range conf {
		cfg.Set(k, v)
	}
	return sql.NewContext(context.Background(), append([]sql.ContextOption{sql.WithConfig(cfg)}, opts...)...)
}

// compile analyzes an AST dump against the test catalog.
func compile(t *testing.T, ast string, conf map[string]interface{}) (*plan.Plan, error) {
	t.Helper()
	return compileWith(t, ast, conf)
}

func compileWith(t *testing.T, ast string, conf map[string]interface{}, opts ...sql.ContextOption) (*plan.Plan, error) {
	t.Helper()
	a := NewDefault(testCatalog(t), function.Default())
	return a.Analyze(testContext(conf, opts...), parse.MustRead(ast))
}

func mustCompile(t *testing.T, ast string, conf map[string]interface{}) *plan.Plan {
	t.Helper()
	p, err := compile(t, ast, conf)
	require.NoError(t, err)
	return p
}

// query wraps a select body into a plain query over from.
func query(from, body string) string {
	if from == "" {
		return "(TOK_QUERY (TOK_INSERT (TOK_DESTINATION (TOK_DIR TOK_TMP_FILE)) " + body + "))"
	}
	return "(TOK_QUERY (TOK_FROM " + from + ") (TOK_INSERT (TOK_DESTINATION (TOK_DIR TOK_TMP_FILE)) " + body + "))"
}

// chain follows first parents from op to a root.
func chain(op *plan.Operator) []plan.OperatorType {
	var types []plan.OperatorType
	for ; op != nil; op = op.Parent() {
		types = append(types, op.Type())
	}
	return types
}

func resultNames(p *plan.Plan) []string {
	names := make([]string, len(p.ResultSchema))
	for i, f := range p.ResultSchema {
		names[i] = f.Name
	}
	return names
}

func operatorsOf(p *plan.Plan, typ plan.OperatorType) []*plan.Operator {
	var ops []*plan.Operator
	for _, op := range p.Graph.Operators() {
		if op.Type() == typ {
			ops = append(ops, op)
		}
	}
	return ops
}

// hasCall reports whether e calls the named function anywhere.
func hasCall(e sql.Expression, name string) bool {
	found := false
	expression.Inspect(e, func(e sql.Expression) bool {
		if f, ok := e.(*expression.Func); ok && f.Name == name {
			found = true
		}
		return !found
	})
	return found
}

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
	"testing"

	"github.com/stretchr/testify/require"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression"
	"github.com/difin/hive-sub000/sql/plan"
)

const (
	selectStar = "(TOK_SELECT (TOK_SELEXPR TOK_ALLCOLREF))"
	joinT1T2   = "(TOK_JOIN (TOK_TABREF (TOK_TABNAME t1)) (TOK_TABREF (TOK_TABNAME t2)) (= (. (TOK_TABLE_OR_COL t1) id) (. (TOK_TABLE_OR_COL t2) id)))"
	leftT1T2   = "(TOK_LEFTOUTERJOIN (TOK_TABREF (TOK_TABNAME t1)) (TOK_TABREF (TOK_TABNAME t2)) (= (. (TOK_TABLE_OR_COL t1) id) (. (TOK_TABLE_OR_COL t2) id)))"
)

func subquery(body, alias string) string {
	return "(TOK_SUBQUERY " + body + " " + alias + ")"
}

func selectIDFrom(table string) string {
	return query("(TOK_TABREF (TOK_TABNAME "+table+"))", "(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL id)))")
}

func TestMapSideGroupBy(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME t))",
		"(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a)) (TOK_SELEXPR (TOK_FUNCTIONSTAR count))) (TOK_GROUPBY (TOK_TABLE_OR_COL a))"), nil)

	require.Len(p.Sinks, 1)
	require.Equal([]plan.OperatorType{
		plan.FileSinkOp,
		plan.GroupByOp,
		plan.ReduceSinkOp,
		plan.GroupByOp,
		plan.TableScanOp,
	}, chain(p.Sinks[0]))

	gbys := operatorsOf(p, plan.GroupByOp)
	require.Len(gbys, 2)
	modes := []plan.GroupByMode{
		gbys[0].Desc.(*plan.GroupByDesc).Mode,
		gbys[1].Desc.(*plan.GroupByDesc).Mode,
	}
	require.ElementsMatch([]plan.GroupByMode{plan.Hash, plan.MergePartial}, modes)

	require.Equal([]string{"a", "_c1"}, resultNames(p))
	require.True(p.ResultSchema[1].Type.Equals(sql.BigIntType))
}

func TestGroupByWithoutMapAggregation(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME t))",
		"(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a)) (TOK_SELEXPR (TOK_FUNCTION sum (TOK_TABLE_OR_COL c)))) (TOK_GROUPBY (TOK_TABLE_OR_COL a))"),
		map[string]interface{}{sql.ConfMapAggr: false})

	gbys := operatorsOf(p, plan.GroupByOp)
	require.Len(gbys, 1)
	require.Equal(plan.Complete, gbys[0].Desc.(*plan.GroupByDesc).Mode)
	require.Equal(plan.ReduceSinkOp, gbys[0].Parent().Type())
}

func TestJoinFilterPushdown(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query(joinT1T2, selectStar+" (TOK_WHERE (> (. (TOK_TABLE_OR_COL t1) id) 5))"), nil)

	joins := operatorsOf(p, plan.JoinOp)
	require.Len(joins, 1)
	join := joins[0]
	desc := join.Desc.(*plan.JoinDesc)
	require.Len(desc.Conds, 1)
	require.Equal(plan.InnerJoin, desc.Conds[0].Type)

	parents := join.Parents()
	require.Len(parents, 2)
	for pos, rs := range parents {
		require.Equal(plan.ReduceSinkOp, rs.Type())
		require.Equal(pos, rs.Desc.(*plan.ReduceSinkDesc).Tag)
	}

	pushed := func(rs *plan.Operator) bool {
		for op := rs.Parent(); op != nil; op = op.Parent() {
			if f, ok := op.Desc.(*plan.FilterDesc); ok && hasCall(f.Predicate, ">") {
				return true
			}
		}
		return false
	}
	require.True(pushed(parents[0]))
	require.False(pushed(parents[1]))

	// Nothing is left to filter above the join.
	for _, child := range join.Children() {
		if f, ok := child.Desc.(*plan.FilterDesc); ok {
			require.False(hasCall(f.Predicate, ">"))
		}
	}
	require.Len(p.ResultSchema, 4)
}

func TestInnerJoinFiltersNullKeys(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query(joinT1T2, selectStar), nil)

	for _, rs := range operatorsOf(p, plan.JoinOp)[0].Parents() {
		f, ok := rs.Parent().Desc.(*plan.FilterDesc)
		require.True(ok)
		require.True(hasCall(f.Predicate, "isnotnull"))
	}
}

func TestOuterJoinKeepsNullKeys(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query(leftT1T2, selectStar), nil)

	joins := operatorsOf(p, plan.JoinOp)
	require.Len(joins, 1)
	require.Equal(plan.LeftOuterJoin, joins[0].Desc.(*plan.JoinDesc).Conds[0].Type)
	for _, f := range operatorsOf(p, plan.FilterOp) {
		require.False(hasCall(f.Desc.(*plan.FilterDesc).Predicate, "isnotnull"))
	}
}

func TestOperatorSchemaMatchesOutputColumns(t *testing.T) {
	queries := map[string]string{
		"projection": query("(TOK_TABREF (TOK_TABNAME t))",
			"(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a)) (TOK_SELEXPR (TOK_TABLE_OR_COL b)) (TOK_SELEXPR (TOK_TABLE_OR_COL c)))"),
		"aggregation": query("(TOK_TABREF (TOK_TABNAME t))",
			"(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a)) (TOK_SELEXPR (TOK_FUNCTIONSTAR count))) (TOK_GROUPBY (TOK_TABLE_OR_COL a))"),
		"join":      query(joinT1T2, selectStar),
		"union all": query(subquery("(TOK_UNIONALL "+selectIDFrom("t1")+" "+selectIDFrom("t2")+")", "u"), selectStar),
	}

	for name, q := range queries {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			p := mustCompile(t, q, nil)
			for _, op := range p.Graph.Operators() {
				require.Len(op.Schema, len(op.Desc.OutputColumnNames()), op.ID)
			}
			require.NoError(plan.Validate(p))
		})
	}
}

func TestAmbiguousTableAlias(t *testing.T) {
	require := require.New(t)
	_, err := compile(t, query(
		"(TOK_JOIN (TOK_TABREF (TOK_TABNAME t1) (TOK_TABALIAS x)) (TOK_TABREF (TOK_TABNAME t2) (TOK_TABALIAS x)) (= (. (TOK_TABLE_OR_COL x) id) (. (TOK_TABLE_OR_COL x) id)))",
		selectStar), nil)
	require.Error(err)
	require.True(sql.IsKind(err, ErrAmbiguousTableAlias))
}

func TestUnknownColumn(t *testing.T) {
	require := require.New(t)
	_, err := compile(t, query("(TOK_TABREF (TOK_TABNAME t))", "(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL nope)))"), nil)
	require.Error(err)
	require.True(sql.IsKind(err, sql.ErrInvalidTableOrColumn))
}

func TestUnionAll(t *testing.T) {
	testCases := []struct {
		name  string
		right string
		typ   sql.Type
	}{
		{"same types", "t2", sql.IntType},
		{"widened", "t3", sql.BigIntType},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			p := mustCompile(t, query(subquery("(TOK_UNIONALL "+selectIDFrom("t1")+" "+selectIDFrom(tt.right)+")", "u"), selectStar), nil)

			unions := operatorsOf(p, plan.UnionOp)
			require.Len(unions, 1)
			require.Len(unions[0].Parents(), 2)
			require.Len(unions[0].Schema, 1)
			require.True(unions[0].Schema[0].Type.Equals(tt.typ))
			require.True(p.ResultSchema[0].Type.Equals(tt.typ))
		})
	}
}

func TestUnionAllFlattens(t *testing.T) {
	require := require.New(t)
	union := "(TOK_UNIONALL (TOK_UNIONALL " + selectIDFrom("t1") + " " + selectIDFrom("t2") + ") " + selectIDFrom("t1") + ")"
	p := mustCompile(t, query(subquery(union, "u"), selectStar), nil)

	unions := operatorsOf(p, plan.UnionOp)
	require.Len(unions, 1)
	require.Len(unions[0].Parents(), 3)
	require.Equal(3, unions[0].Desc.(*plan.UnionDesc).NumInputs)
}

func TestUnionDistinct(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query(subquery("(TOK_UNIONDISTINCT "+selectIDFrom("t1")+" "+selectIDFrom("t2")+")", "u"), selectStar), nil)

	require.Len(operatorsOf(p, plan.UnionOp), 1)
	require.NotEmpty(operatorsOf(p, plan.GroupByOp))
}

func TestUnionColumnCount(t *testing.T) {
	require := require.New(t)
	wide := query("(TOK_TABREF (TOK_TABNAME t1))", "(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL id)) (TOK_SELEXPR (TOK_TABLE_OR_COL v)))")
	_, err := compile(t, query(subquery("(TOK_UNIONALL "+selectIDFrom("t1")+" "+wide+")", "u"), selectStar), nil)
	require.Error(err)
	require.True(sql.IsKind(err, ErrUnionColumnCount))
}

func TestIntersectExcept(t *testing.T) {
	testCases := []struct {
		op        string
		replicate bool
	}{
		{"TOK_INTERSECTDISTINCT", false},
		{"TOK_INTERSECTALL", true},
		{"TOK_EXCEPTDISTINCT", false},
		{"TOK_EXCEPTALL", true},
	}

	for _, tt := range testCases {
		t.Run(tt.op, func(t *testing.T) {
			require := require.New(t)
			setop := "(" + tt.op + " " + selectIDFrom("t1") + " " + selectIDFrom("t2") + ")"
			p := mustCompile(t, query(subquery(setop, "s"), selectStar), nil)

			require.Len(operatorsOf(p, plan.UnionOp), 1)
			require.NotEmpty(operatorsOf(p, plan.GroupByOp))
			require.NotEmpty(operatorsOf(p, plan.FilterOp))
			require.Equal(tt.replicate, len(operatorsOf(p, plan.UDTFOp)) > 0)
			require.Len(p.ResultSchema, 1)
			require.Equal("id", p.ResultSchema[0].Name)
		})
	}
}

func TestOrderByLimit(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME t))",
		"(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a))) (TOK_ORDERBY (TOK_TABSORTCOLNAMEDESC (TOK_NULLS_LAST (TOK_TABLE_OR_COL a)))) (TOK_LIMIT 10)"), nil)

	var sorted *plan.ReduceSinkDesc
	for _, rs := range operatorsOf(p, plan.ReduceSinkOp) {
		if d := rs.Desc.(*plan.ReduceSinkDesc); d.Order != "" {
			sorted = d
		}
	}
	require.NotNil(sorted)
	require.Equal("-", sorted.Order)
	require.Equal("z", sorted.NullOrder)
	require.Equal(1, sorted.NumReducers)
	require.NotEmpty(operatorsOf(p, plan.LimitOp))
}

func TestStrictChecks(t *testing.T) {
	testCases := []struct {
		name string
		ast  string
		conf map[string]interface{}
		err  *errors.Kind
	}{
		{
			name: "order by without limit",
			ast:  query("(TOK_TABREF (TOK_TABNAME t))", "(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a))) (TOK_ORDERBY (TOK_TABSORTCOLNAMEASC (TOK_TABLE_OR_COL a)))"),
			conf: map[string]interface{}{sql.ConfStrictOrderByNoLimit: true},
			err:  ErrOrderByWithoutLimit,
		},
		{
			name: "cartesian product",
			ast:  query("(TOK_JOIN (TOK_TABREF (TOK_TABNAME t1)) (TOK_TABREF (TOK_TABNAME t2)))", selectStar),
			conf: map[string]interface{}{sql.ConfStrictCartesianProduct: true},
			err:  ErrCartesianProduct,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			_, err := compile(t, tt.ast, nil)
			require.NoError(err)

			_, err = compile(t, tt.ast, tt.conf)
			require.Error(err)
			require.True(sql.IsKind(err, tt.err))
		})
	}
}

func TestWindowFunctions(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME t))",
		"(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a)) (TOK_SELEXPR "+rankOverA+" r))"), nil)

	ptfs := operatorsOf(p, plan.PTFOp)
	require.Len(ptfs, 1)
	require.Equal(plan.ReduceSinkOp, ptfs[0].Parent().Type())
	require.Equal([]string{"a", "r"}, resultNames(p))
}

func TestLateralView(t *testing.T) {
	require := require.New(t)
	lv := `(TOK_LATERAL_VIEW
		(TOK_SELECT (TOK_SELEXPR (TOK_FUNCTION explode (TOK_TABLE_OR_COL tags)) tag (TOK_TABALIAS lv)))
		(TOK_TABREF (TOK_TABNAME arr)))`
	p := mustCompile(t, query(lv, "(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL id)) (TOK_SELEXPR (TOK_TABLE_OR_COL tag)))"), nil)

	require.Len(operatorsOf(p, plan.LateralViewForwardOp), 1)
	require.Len(operatorsOf(p, plan.UDTFOp), 1)
	joins := operatorsOf(p, plan.LateralViewJoinOp)
	require.Len(joins, 1)
	require.Len(joins[0].Parents(), 2)
	require.Equal([]string{"id", "tag"}, resultNames(p))
	require.True(p.ResultSchema[1].Type.Equals(sql.StringType))
}

func TestInsertOverwrite(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, `(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME src)))
		(TOK_INSERT (TOK_DESTINATION (TOK_TAB (TOK_TABNAME dest))) `+selectStar+`))`, nil)

	require.Empty(p.ResultSchema)
	require.Len(p.LoadTables, 1)
	require.Equal("default.dest", p.LoadTables[0].Table)
	require.True(p.LoadTables[0].Replace)
	require.Len(p.Outputs, 1)
	require.Equal(plan.WriteInsertOverwrite, p.Outputs[0].WriteType)
	require.NotNil(p.Input("default.src"))
}

func TestInsertIntoBucketedTable(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, `(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME t1)))
		(TOK_INSERT (TOK_INSERT_INTO (TOK_TAB (TOK_TABNAME bucketed))) `+selectStar+`))`, nil)

	require.Len(p.Sinks, 1)
	sink := p.Sinks[0]
	require.Equal(4, sink.Desc.(*plan.FileSinkDesc).NumBuckets)
	require.False(p.LoadTables[0].Replace)

	var rs *plan.Operator
	for op := sink.Parent(); op != nil; op = op.Parent() {
		if op.Type() == plan.ReduceSinkOp {
			rs = op
			break
		}
	}
	require.NotNil(rs)
	desc := rs.Desc.(*plan.ReduceSinkDesc)
	require.Equal(4, desc.NumReducers)
	require.Len(desc.PartitionCols, 1)
	require.Equal("+", desc.Order)
}

func TestInsertColumnCount(t *testing.T) {
	require := require.New(t)
	_, err := compile(t, `(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME t)))
		(TOK_INSERT (TOK_DESTINATION (TOK_TAB (TOK_TABNAME dest))) `+selectStar+`))`, nil)
	require.Error(err)
	require.True(sql.IsKind(err, ErrInsertColumnCount))
}

func TestViewExpansion(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME v_src))", selectStar), nil)

	require.Equal([]string{"key"}, resultNames(p))
	view := p.Input("default.v_src")
	require.NotNil(view)
	require.Equal(plan.ViewEntity, view.Type)
	src := p.Input("default.src")
	require.NotNil(src)
	require.Contains(src.Parents, "default.v_src")
}

func TestPartitionedScan(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME srcpart))", selectStar), nil)

	require.Len(p.Roots, 1)
	scan := p.Roots[0].Desc.(*plan.TableScanDesc)
	require.Equal([]string{"ds", "hr"}, scan.PartitionColumns)
	names := strings.Join(resultNames(p), ",")
	require.Equal("key,value,ds,hr", names)
}

func TestGlobalAggregate(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME t))",
		"(TOK_SELECT (TOK_SELEXPR (TOK_FUNCTION max (TOK_TABLE_OR_COL a))))"), nil)

	require.Equal([]string{"_c0"}, resultNames(p))
	require.True(p.ResultSchema[0].Type.Equals(sql.IntType))
	rs := operatorsOf(p, plan.ReduceSinkOp)
	require.Len(rs, 1)
	require.Equal(1, rs[0].Desc.(*plan.ReduceSinkDesc).NumReducers)
}

func TestHavingOnAggregate(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME t))", `
		(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a)) (TOK_SELEXPR (TOK_FUNCTIONSTAR count)))
		(TOK_GROUPBY (TOK_TABLE_OR_COL a))
		(TOK_HAVING (> (TOK_FUNCTIONSTAR COUNT) 1))`), nil)

	var having *plan.Operator
	for _, f := range operatorsOf(p, plan.FilterOp) {
		if hasCall(f.Desc.(*plan.FilterDesc).Predicate, ">") {
			having = f
		}
	}
	require.NotNil(having)
	require.Equal(plan.GroupByOp, having.Parent().Type())
	require.Equal([]string{"a", "_c1"}, resultNames(p))
}

func TestWriteTargetChecks(t *testing.T) {
	testCases := []struct {
		name string
		ast  string
		op   sql.Operation
		err  *errors.Kind
	}{
		{
			name: "recursive view",
			ast:  query("(TOK_TABREF (TOK_TABNAME v_rec))", selectStar),
			op:   sql.OpQuery,
			err:  ErrRecursiveView,
		},
		{
			name: "insert into view",
			ast: `(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME src)))
				(TOK_INSERT (TOK_INSERT_INTO (TOK_TAB (TOK_TABNAME v_src))) (TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL key)))))`,
			op:  sql.OpQuery,
			err: ErrInsertIntoView,
		},
		{
			name: "update of a non transactional table",
			ast: `(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME src)))
				(TOK_INSERT (TOK_DESTINATION (TOK_TAB (TOK_TABNAME dest))) ` + selectStar + `))`,
			op:  sql.OpUpdate,
			err: ErrAcidNotSupported,
		},
		{
			name: "delete from a non transactional table",
			ast: `(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME src)))
				(TOK_INSERT (TOK_DESTINATION (TOK_TAB (TOK_TABNAME dest))) ` + selectStar + `))`,
			op:  sql.OpDelete,
			err: ErrAcidNotSupported,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			_, err := compileWith(t, tt.ast, nil, sql.WithOperation(tt.op))
			require.Error(err)
			require.True(sql.IsKind(err, tt.err))
		})
	}
}

func TestUpdateTransactionalTable(t *testing.T) {
	require := require.New(t)
	p, err := compileWith(t, `(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME src)))
		(TOK_INSERT (TOK_DESTINATION (TOK_TAB (TOK_TABNAME acid_t))) `+selectStar+`))`,
		nil, sql.WithOperation(sql.OpUpdate))
	require.NoError(err)

	require.Len(p.Outputs, 1)
	require.Equal(plan.WriteUpdate, p.Outputs[0].WriteType)
	require.Equal(sql.OpUpdate, p.Sinks[0].Desc.(*plan.FileSinkDesc).Operation)
}

func TestOuterJoinMergeLimit(t *testing.T) {
	join := "(TOK_LEFTOUTERJOIN " + leftT1T2 + " (TOK_TABREF (TOK_TABNAME t1) (TOK_TABALIAS z)) (= (. (TOK_TABLE_OR_COL t1) id) (. (TOK_TABLE_OR_COL z) id)))"

	t.Run("within the limit", func(t *testing.T) {
		require := require.New(t)
		p := mustCompile(t, query(join, selectStar), nil)

		joins := operatorsOf(p, plan.JoinOp)
		require.Len(joins, 1)
		require.Len(joins[0].Parents(), 3)
	})

	t.Run("over the limit", func(t *testing.T) {
		require := require.New(t)
		_, err := compile(t, query(join, selectStar), map[string]interface{}{sql.ConfOuterJoinMergeLimit: 2})
		require.Error(err)
		require.True(sql.IsKind(err, ErrOuterJoinTooManyAliases))
	})
}

func TestGroupingSetsCardinality(t *testing.T) {
	cube := query("(TOK_TABREF (TOK_TABNAME t))", `
		(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a)) (TOK_SELEXPR (TOK_TABLE_OR_COL b)) (TOK_SELEXPR (TOK_FUNCTIONSTAR count)))
		(TOK_CUBE_GROUPBY (TOK_TABLE_OR_COL a) (TOK_TABLE_OR_COL b))`)

	t.Run("map side expansion", func(t *testing.T) {
		require := require.New(t)
		p := mustCompile(t, cube, nil)

		gbys := operatorsOf(p, plan.GroupByOp)
		require.Len(gbys, 2)
		var expanded []plan.GroupByMode
		for _, g := range gbys {
			if d := g.Desc.(*plan.GroupByDesc); d.GroupingSetsExpanded {
				expanded = append(expanded, d.Mode)
			}
		}
		require.Equal([]plan.GroupByMode{plan.Hash}, expanded)
		require.Equal([]string{"a", "b", "_c2"}, resultNames(p))
	})

	t.Run("extra stage above the threshold", func(t *testing.T) {
		require := require.New(t)
		p := mustCompile(t, cube, map[string]interface{}{sql.ConfGroupingSetCardinality: 2})

		gbys := operatorsOf(p, plan.GroupByOp)
		require.Len(gbys, 3)
		var expanded []plan.GroupByMode
		for _, g := range gbys {
			if d := g.Desc.(*plan.GroupByDesc); d.GroupingSetsExpanded {
				expanded = append(expanded, d.Mode)
			}
		}
		require.Equal([]plan.GroupByMode{plan.PartialS}, expanded)
		require.Len(operatorsOf(p, plan.ReduceSinkOp), 2)
		require.Equal([]string{"a", "b", "_c2"}, resultNames(p))
	})

	t.Run("skew above the threshold", func(t *testing.T) {
		require := require.New(t)
		_, err := compile(t, cube, map[string]interface{}{
			sql.ConfGroupingSetCardinality: 2,
			sql.ConfGroupBySkew:            true,
		})
		require.Error(err)
		require.True(sql.IsKind(err, ErrGroupingSetsSkew))
	})
}

func TestClusterByConflicts(t *testing.T) {
	const (
		clusterBy    = "(TOK_CLUSTERBY (TOK_TABLE_OR_COL a))"
		distributeBy = "(TOK_DISTRIBUTEBY (TOK_TABLE_OR_COL a))"
		sortBy       = "(TOK_SORTBY (TOK_TABSORTCOLNAMEASC (TOK_NULLS_FIRST (TOK_TABLE_OR_COL a))))"
		orderBy      = "(TOK_ORDERBY (TOK_TABSORTCOLNAMEASC (TOK_NULLS_FIRST (TOK_TABLE_OR_COL a))))"
	)
	testCases := []struct {
		name    string
		clauses string
		err     *errors.Kind
	}{
		{"cluster by then sort by", clusterBy + " " + sortBy, ErrClusterByConflict},
		{"sort by then cluster by", sortBy + " " + clusterBy, ErrClusterByConflict},
		{"distribute by then cluster by", distributeBy + " " + clusterBy, ErrClusterByConflict},
		{"cluster by then order by", clusterBy + " " + orderBy, ErrClusterByConflict},
		{"order by then sort by", orderBy + " " + sortBy, ErrOrderBySortByConflict},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			_, err := compile(t, query("(TOK_TABREF (TOK_TABNAME t))",
				"(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a))) "+tt.clauses), nil)
			require.Error(err)
			require.True(sql.IsKind(err, tt.err))
		})
	}

	t.Run("cluster by alone", func(t *testing.T) {
		require := require.New(t)
		p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME t))",
			"(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a))) "+clusterBy), nil)

		rs := operatorsOf(p, plan.ReduceSinkOp)
		require.Len(rs, 1)
		desc := rs[0].Desc.(*plan.ReduceSinkDesc)
		require.Equal("+", desc.Order)
		require.Len(desc.PartitionCols, 1)
	})
}

func TestMultiInsert(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, `(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME src)))
		(TOK_INSERT (TOK_DESTINATION (TOK_TAB (TOK_TABNAME dest))) `+selectStar+`)
		(TOK_INSERT (TOK_INSERT_INTO (TOK_TAB (TOK_TABNAME dest2))) `+selectStar+`))`, nil)

	forwards := operatorsOf(p, plan.ForwardOp)
	require.Len(forwards, 1)
	require.Len(forwards[0].Children(), 2)
	require.Equal(plan.TableScanOp, forwards[0].Parent().Type())

	require.Len(p.Sinks, 2)
	dests := []string{
		p.Sinks[0].Desc.(*plan.FileSinkDesc).DestID,
		p.Sinks[1].Desc.(*plan.FileSinkDesc).DestID,
	}
	require.ElementsMatch([]string{"insclause-0", "insclause-1"}, dests)
	require.Len(p.LoadTables, 2)
	require.Len(p.Outputs, 2)
	require.Empty(p.ResultSchema)
}

func TestInsertIfNotExists(t *testing.T) {
	insert := func(hr string) string {
		return `(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME src)))
			(TOK_INSERT (TOK_DESTINATION (TOK_TAB (TOK_TABNAME srcpart)
				(TOK_PARTSPEC (TOK_PARTVAL ds '2008-04-08') (TOK_PARTVAL hr '` + hr + `'))) TOK_IFNOTEXISTS) ` + selectStar + `))`
	}

	t.Run("existing partition", func(t *testing.T) {
		require := require.New(t)
		p := mustCompile(t, insert("11"), nil)

		require.True(p.Skipped)
		require.Empty(p.Graph.Operators())
		require.Empty(p.Sinks)
		require.Empty(p.Outputs)
		require.Empty(p.LoadTables)
	})

	t.Run("missing partition", func(t *testing.T) {
		require := require.New(t)
		p := mustCompile(t, insert("13"), nil)

		require.False(p.Skipped)
		require.Len(p.Sinks, 1)
		require.Len(p.Outputs, 1)
		require.Equal(plan.PartitionEntity, p.Outputs[0].Type)
		require.Equal("ds=2008-04-08/hr=13", p.Outputs[0].Partition)
	})
}

func TestUniqueJoin(t *testing.T) {
	require := require.New(t)
	join := `(TOK_UNIQUEJOIN
		PRESERVE (TOK_TABREF (TOK_TABNAME t1)) (TOK_EXPLIST (. (TOK_TABLE_OR_COL t1) id))
		(TOK_TABREF (TOK_TABNAME t2)) (TOK_EXPLIST (. (TOK_TABLE_OR_COL t2) id)))`
	p := mustCompile(t, query(join, selectStar), nil)

	joins := operatorsOf(p, plan.JoinOp)
	require.Len(joins, 1)
	require.Len(joins[0].Parents(), 2)
	desc := joins[0].Desc.(*plan.JoinDesc)
	require.Len(desc.Conds, 2)
	require.Equal(plan.UniqueJoin, desc.Conds[0].Type)
	require.True(desc.Conds[0].Preserved)
	require.False(desc.Conds[1].Preserved)
	// Unmatched keys are kept, so NULL keys are not filtered out.
	for _, f := range operatorsOf(p, plan.FilterOp) {
		require.False(hasCall(f.Desc.(*plan.FilterDesc).Predicate, "isnotnull"))
	}
	require.Len(p.ResultSchema, 4)
}

func TestQualify(t *testing.T) {
	require := require.New(t)
	p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME t))",
		"(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a))) (TOK_QUALIFY (= "+rankOverA+" 1))"), nil)

	ptfs := operatorsOf(p, plan.PTFOp)
	require.Len(ptfs, 1)
	children := ptfs[0].Children()
	require.Len(children, 1)
	f, ok := children[0].Desc.(*plan.FilterDesc)
	require.True(ok)
	require.True(hasCall(f.Predicate, "="))
	require.Equal([]string{"a"}, resultNames(p))
}

func TestTransform(t *testing.T) {
	testCases := []struct {
		name    string
		aliases string
		names   []string
	}{
		{"default columns", "", []string{"key", "value"}},
		{"alias list", " (TOK_ALIASLIST k v)", []string{"k", "v"}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			tr := "(TOK_TRANSFORM (TOK_EXPLIST (TOK_TABLE_OR_COL key) (TOK_TABLE_OR_COL value)) 'cat'" + tt.aliases + ")"
			p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME src))", "(TOK_SELECT (TOK_SELEXPR "+tr+"))"), nil)

			scripts := operatorsOf(p, plan.ScriptOp)
			require.Len(scripts, 1)
			require.Equal("cat", scripts[0].Desc.(*plan.ScriptDesc).Command)
			require.Equal(plan.SelectOp, scripts[0].Parent().Type())
			require.Equal(tt.names, resultNames(p))
		})
	}
}

func TestTransformWithGroupBy(t *testing.T) {
	require := require.New(t)
	_, err := compile(t, query("(TOK_TABREF (TOK_TABNAME src))",
		"(TOK_SELECT (TOK_SELEXPR (TOK_TRANSFORM (TOK_EXPLIST (TOK_TABLE_OR_COL key)) 'cat'))) (TOK_GROUPBY (TOK_TABLE_OR_COL key))"), nil)
	require.Error(err)
	require.True(sql.IsKind(err, ErrTransformWithClause))
}

func TestSplitSample(t *testing.T) {
	testCases := []struct {
		name   string
		sample string
		conf   map[string]interface{}
		want   *plan.SplitSampleDesc
		err    *errors.Kind
	}{
		{
			name:   "percent",
			sample: "(TOK_TABLESPLITSAMPLE TOK_PERCENT 10)",
			want:   &plan.SplitSampleDesc{Percent: 10},
		},
		{
			name:   "rows",
			sample: "(TOK_TABLESPLITSAMPLE TOK_ROWCOUNT 5)",
			want:   &plan.SplitSampleDesc{RowCount: 5},
		},
		{
			name:   "length",
			sample: "(TOK_TABLESPLITSAMPLE TOK_LENGTH 2k)",
			want:   &plan.SplitSampleDesc{Length: 2048},
		},
		{
			name:   "percent out of range",
			sample: "(TOK_TABLESPLITSAMPLE TOK_PERCENT 120)",
			err:    ErrInvalidSample,
		},
		{
			name:   "percent without combining input format",
			sample: "(TOK_TABLESPLITSAMPLE TOK_PERCENT 10)",
			conf:   map[string]interface{}{sql.ConfInputFormat: "org.apache.hadoop.hive.ql.io.HiveInputFormat"},
			err:    ErrSplitSampleInputFormat,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			p, err := compile(t, query("(TOK_TABREF (TOK_TABNAME t) "+tt.sample+")", selectStar), tt.conf)
			if tt.err != nil {
				require.Error(err)
				require.True(sql.IsKind(err, tt.err))
				return
			}
			require.NoError(err)
			require.Len(p.Roots, 1)
			require.Equal(tt.want, p.Roots[0].Desc.(*plan.TableScanDesc).SplitSample)
		})
	}
}

func TestBucketSampleColumns(t *testing.T) {
	sample := func(cols string) string {
		return query("(TOK_TABREF (TOK_TABNAME bucketed) (TOK_TABLEBUCKETSAMPLE 1 4 "+cols+"))", selectStar)
	}

	t.Run("two columns", func(t *testing.T) {
		require := require.New(t)
		p := mustCompile(t, sample("(TOK_TABLE_OR_COL id) (TOK_TABLE_OR_COL v)"), nil)

		desc := p.Roots[0].Desc.(*plan.TableScanDesc)
		require.NotNil(desc.Sample)
		require.Len(desc.Sample.Columns, 2)
		require.False(desc.Sample.InputPruning)
		filters := operatorsOf(p, plan.FilterOp)
		require.Len(filters, 1)
		require.True(filters[0].Desc.(*plan.FilterDesc).IsSamplingPred)
	})

	t.Run("three columns", func(t *testing.T) {
		require := require.New(t)
		_, err := compile(t, sample("(TOK_TABLE_OR_COL id) (TOK_TABLE_OR_COL v) (TOK_TABLE_OR_COL id)"), nil)
		require.Error(err)
		require.True(sql.IsKind(err, ErrSampleRestriction))
	})
}

func TestAsOf(t *testing.T) {
	testCases := []struct {
		clause string
		want   string
	}{
		{"(TOK_AS_OF_VERSION 3)", "VERSION 3"},
		{"(TOK_AS_OF_TIME '2024-01-01 00:00:00')", "TIMESTAMP 2024-01-01 00:00:00"},
	}

	for _, tt := range testCases {
		t.Run(tt.want, func(t *testing.T) {
			require := require.New(t)
			p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME t) "+tt.clause+")", selectStar), nil)

			require.Len(p.Roots, 1)
			require.Equal(tt.want, p.Roots[0].Desc.(*plan.TableScanDesc).AsOf)
		})
	}
}

func TestConstantFilters(t *testing.T) {
	t.Run("true", func(t *testing.T) {
		require := require.New(t)
		p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME t))", selectStar+" (TOK_WHERE TRUE)"), nil)
		require.Empty(operatorsOf(p, plan.FilterOp))
	})

	t.Run("null", func(t *testing.T) {
		require := require.New(t)
		p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME t))", selectStar+" (TOK_WHERE TOK_NULL)"), nil)

		filters := operatorsOf(p, plan.FilterOp)
		require.Len(filters, 1)
		k, ok := filters[0].Desc.(*plan.FilterDesc).Predicate.(*expression.Constant)
		require.True(ok)
		require.Equal(false, k.Value)
	})
}

func TestOffsetWithoutOrderBy(t *testing.T) {
	testCases := []struct {
		name     string
		clauses  string
		warnings int
	}{
		{"offset without order by", "(TOK_LIMIT 5 10)", 1},
		{"offset with order by", "(TOK_ORDERBY (TOK_TABSORTCOLNAMEASC (TOK_NULLS_FIRST (TOK_TABLE_OR_COL a)))) (TOK_LIMIT 5 10)", 0},
		{"no offset", "(TOK_LIMIT 10)", 0},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			p := mustCompile(t, query("(TOK_TABREF (TOK_TABNAME t))",
				"(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a))) "+tt.clauses), nil)

			require.Len(p.Warnings, tt.warnings)
			if tt.warnings > 0 {
				require.Contains(p.Warnings[0].Message, "OFFSET")
			}
			require.NotEmpty(operatorsOf(p, plan.LimitOp))
		})
	}
}

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

package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression"
)

func schemaOf(names ...string) sql.RowSchema {
	s := make(sql.RowSchema, len(names))
	for i, n := range names {
		s[i] = sql.NewColumnInfo(n, sql.IntType, "t", false)
	}
	return s
}

// scanFilterSink builds TS -> FIL -> SEL -> FS over columns a and b.
func scanFilterSink() (*Plan, []*Operator) {
	g := NewGraph()
	cols := []string{"a", "b"}
	a := expression.NewColumn("a", "t", sql.IntType)

	ts := g.New(&TableScanDesc{Alias: "t", Table: "default.t", Columns: cols, RowLimit: -1}, schemaOf(cols...))
	pred, _ := expression.NewComparison(">", a, expression.NewInt(5))
	fil := g.New(&FilterDesc{Predicate: pred, Columns: cols}, schemaOf(cols...), ts)
	sel := g.New(&SelectDesc{Exprs: []sql.Expression{a}, Columns: []string{"_col0"}}, schemaOf("_col0"), fil)
	fs := g.New(&FileSinkDesc{DestID: "insclause-0", DestType: DestTmpFile, Directory: "/tmp/hive/-mr-10000", Columns: []string{"_col0"}}, schemaOf("_col0"), sel)

	p := NewPlan(g)
	p.Roots = []*Operator{ts}
	p.Sinks = []*Operator{fs}
	return p, []*Operator{ts, fil, sel, fs}
}

func TestGraph(t *testing.T) {
	require := require.New(t)
	p, ops := scanFilterSink()
	ts, fil, sel, fs := ops[0], ops[1], ops[2], ops[3]

	require.Equal("TS_0", ts.ID)
	require.Equal("FIL_1", fil.ID)
	require.Equal("SEL_2", sel.ID)
	require.Equal("FS_3", fs.ID)

	require.Equal([]*Operator{fil}, ts.Children())
	require.Equal(ts, fil.Parent())
	require.Nil(ts.Parent())
	require.True(fs.IsSink())
	require.Equal(FilterOp, fil.Type())
	require.Equal("FIL", fil.Type().Prefix())

	require.Equal([]*Operator{ts}, p.Graph.Roots())
	require.Equal([]*Operator{sel}, Find(ts, SelectOp))
	require.Equal([]*Operator{sel, fil, ts}, Ancestors(fs))
	require.Len(p.Operators(), 4)
}

func TestValidate(t *testing.T) {
	require := require.New(t)

	p, _ := scanFilterSink()
	require.NoError(Validate(p))

	p, ops := scanFilterSink()
	ops[2].Schema = schemaOf("_col0", "_col1")
	err := Validate(p)
	require.Error(err)
	require.True(ErrSchemaArity.Is(err))

	p, ops = scanFilterSink()
	p.Graph.New(&ForwardDesc{Columns: []string{"a", "b"}}, schemaOf("a", "b"), ops[0])
	err = Validate(p)
	require.Error(err)
	require.True(ErrDanglingOperator.Is(err))

	p, ops = scanFilterSink()
	ops[1].AddParent(ops[2])
	err = Validate(p)
	require.Error(err)
	require.True(ErrCyclicPlan.Is(err))
}

func TestReduceSinkDesc(t *testing.T) {
	require := require.New(t)
	a := expression.NewColumn("_col0", "", sql.IntType)
	b := expression.NewColumn("_col1", "", sql.StringType)

	rs := NewReduceSinkDesc([]sql.Expression{a}, []sql.Expression{b}, []sql.Expression{a}, "+", "a", 1, -1)
	require.Equal([]string{"KEY.reducesinkkey0", "VALUE._col0"}, rs.OutputColumnNames())
	require.Equal(1, rs.NumDistributionKeys)
	require.Equal("ReduceSink(key: [_col0], value: [_col1], partition: [_col0], order: +, tag: 1)", rs.String())
}

func TestJoinDesc(t *testing.T) {
	require := require.New(t)
	d := &JoinDesc{Conds: []JoinCondDesc{
		{Left: 0, Right: 1, Type: InnerJoin},
		{Left: 1, Right: 2, Type: LeftOuterJoin},
		{Left: 2, Right: 3, Type: InnerJoin},
	}}
	require.Equal([]JoinType{InnerJoin, LeftOuterJoin}, d.JoinTypes())
	require.True(LeftOuterJoin.IsOuter())
	require.False(LeftSemiJoin.IsOuter())
	require.True(LeftAntiSemiJoin.IsSemi())
	require.Equal("INNER", InnerJoin.String())
}

func TestPlanEntities(t *testing.T) {
	require := require.New(t)
	p := NewPlan(NewGraph())

	added, err := p.AddInput(&ReadEntity{Type: TableEntity, Name: "default.t", Parents: []string{"default.v1"}})
	require.NoError(err)
	require.True(added)

	added, err = p.AddInput(&ReadEntity{Type: TableEntity, Name: "default.t", Parents: []string{"default.v2"}, Direct: true})
	require.NoError(err)
	require.False(added)

	added, err = p.AddInput(&ReadEntity{Type: ViewEntity, Name: "default.v1", Direct: true})
	require.NoError(err)
	require.True(added)

	require.Len(p.Inputs, 2)
	in := p.Input("default.t")
	require.Equal([]string{"default.v1", "default.v2"}, in.Parents)
	require.True(in.Direct)

	added, err = p.AddOutput(&WriteEntity{Type: TableEntity, Name: "default.dst", WriteType: WriteInsert})
	require.NoError(err)
	require.True(added)
	added, err = p.AddOutput(&WriteEntity{Type: TableEntity, Name: "default.dst", WriteType: WriteInsert})
	require.NoError(err)
	require.False(added)
	added, err = p.AddOutput(&WriteEntity{Type: TableEntity, Name: "default.dst", WriteType: WriteInsertOverwrite})
	require.NoError(err)
	require.True(added)
	require.Len(p.Outputs, 2)
}

const expectedExplain = `FS_3 FileSink(tmp file: /tmp/hive/-mr-10000)
 └─ SEL_2 Select(a)
     └─ FIL_1 Filter((a > 5))
         └─ TS_0 TableScan(alias: t, table: default.t)
Result schema: [a:int]
Warning: offset without order by
`

func TestExplain(t *testing.T) {
	require := require.New(t)
	p, _ := scanFilterSink()
	p.ResultSchema = []sql.FieldSchema{{Name: "a", Type: sql.IntType}}
	p.Warnings = []sql.Warning{{Message: "offset without order by"}}
	require.Equal(expectedExplain, Explain(p))

	p.CachedResult = &CachedResult{Location: "/cache/1"}
	require.Equal("Cached result: /cache/1\n", Explain(p))
}

func TestExplainSharedOperator(t *testing.T) {
	require := require.New(t)
	g := NewGraph()
	ts := g.New(&TableScanDesc{Alias: "t", Table: "default.t", Columns: []string{"a"}}, schemaOf("a"))
	fwd := g.New(&ForwardDesc{Columns: []string{"a"}}, schemaOf("a"), ts)
	fs1 := g.New(&FileSinkDesc{DestType: DestDir, Directory: "/d1", Columns: []string{"a"}}, schemaOf("a"), fwd)
	fs2 := g.New(&FileSinkDesc{DestType: DestDir, Directory: "/d2", Columns: []string{"a"}}, schemaOf("a"), fwd)
	p := NewPlan(g)
	p.Sinks = []*Operator{fs1, fs2}

	require.NoError(Validate(p))
	require.Equal(`FS_2 FileSink(directory: /d1)
 └─ FOR_1 Forward
     └─ TS_0 TableScan(alias: t, table: default.t)
FS_3 FileSink(directory: /d2)
 └─ FOR_1 (see above)
`, Explain(p))
}

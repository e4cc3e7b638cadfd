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

	opentracing "github.com/opentracing/opentracing-go"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression"
	"github.com/difin/hive-sub000/sql/plan"
)

// aggregation is a resolved aggregate call of a destination.
type aggregation struct {
	node    parse.Node
	fn      *expression.Func
	partial sql.Type
	// alias names an aggregate that has no node.
	alias string
}

func newAggregation(node parse.Node, fn *expression.Func) (*aggregation, error) {
	a := &aggregation{node: node, fn: fn, partial: fn.Typ}
	if fn.Info.PartialType == nil {
		return a, nil
	}
	types := make([]sql.Type, len(fn.Args))
	for i, arg := range fn.Args {
		types[i] = arg.Type()
	}
	var err error
	if a.partial, err = fn.Info.PartialType(types); err != nil {
		return nil, err
	}
	return a, nil
}

// groupBySpec is everything the group-by stages of a destination need.
type groupBySpec struct {
	input    *plan.Operator
	node     parse.Node
	keyNodes []parse.Node
	keys     []sql.Expression
	sets     []int64
	aggs     []*aggregation
	// distinct holds the arguments of every DISTINCT aggregate, deduped.
	distinct []sql.Expression
	// bindKey names key i of the last stage; nil binds keyNodes.
	bindKey func(rr *sql.RowResolver, i int, info *sql.ColumnInfo)
}

func (s *groupBySpec) hasSets() bool { return len(s.sets) > 0 }

// numGroupKeys counts the keys rows are grouped on, grouping id included.
func (s *groupBySpec) numGroupKeys() int {
	if s.hasSets() {
		return len(s.keys) + 1
	}
	return len(s.keys)
}

func (s *groupBySpec) groupingSetPosition() int {
	if s.hasSets() {
		return len(s.keys)
	}
	return -1
}

// distinctIndices lists, per DISTINCT aggregate, the key positions of its
// arguments when the distinct arguments follow offset group keys.
func (s *groupBySpec) distinctIndices(offset int) [][]int {
	var out [][]int
	for _, a := range s.aggs {
		if !a.fn.Distinct {
			continue
		}
		var idx []int
		for _, arg := range a.fn.Args {
			idx = append(idx, offset+expression.IndexOf(s.distinct, arg))
		}
		out = append(out, idx)
	}
	return out
}

// valueArgs dedupes the arguments of the non-distinct aggregates and
// returns, per aggregate, the positions of its arguments.
func (s *groupBySpec) valueArgs() ([]sql.Expression, [][]int) {
	var values []sql.Expression
	pos := make([][]int, len(s.aggs))
	for j, a := range s.aggs {
		if a.fn.Distinct {
			continue
		}
		for _, arg := range a.fn.Args {
			i := expression.IndexOf(values, arg)
			if i < 0 {
				i = len(values)
				values = append(values, arg)
			}
			pos[j] = append(pos[j], i)
		}
	}
	return values, pos
}

// multipleDistinctArgs reports whether DISTINCT aggregates disagree on
// their arguments.
func (s *groupBySpec) multipleDistinctArgs() bool {
	var first []sql.Expression
	seen := false
	for _, a := range s.aggs {
		if !a.fn.Distinct {
			continue
		}
		if !seen {
			first, seen = a.fn.Args, true
			continue
		}
		if len(a.fn.Args) != len(first) {
			return true
		}
		for i := range first {
			if !expression.Equal(first[i], a.fn.Args[i]) {
				return true
			}
		}
	}
	return false
}

func (s *groupBySpec) hasDistinct() bool { return len(s.distinct) > 0 }

// genGroupByPlan generates the aggregation of a destination. The stage
// layout depends on map-side aggregation, skew handling and the number
// of grouping sets.
func (c *Compilation) genGroupByPlan(ctx *sql.Context, qb *QB, dest *Destination, input *plan.Operator) (*plan.Operator, error) {
	span, ctx := ctx.Span("gen_groupby", opentracing.Tags{"dest": dest.Name})
	defer span.Finish()

	spec, err := c.groupBySpecOf(dest, input)
	if err != nil {
		return nil, err
	}
	return c.genGroupByStages(spec)
}

// groupBySpecOf resolves the keys, grouping sets and aggregates of dest
// over input.
func (c *Compilation) groupBySpecOf(dest *Destination, input *plan.Operator) (*groupBySpec, error) {
	rr := c.opRR[input]
	spec := &groupBySpec{input: input, node: dest.Node}

	gby, hasGroupBy := dest.Clause(GroupByClause)
	if hasGroupBy {
		spec.node = gby
		for _, k := range gby.Children() {
			if k.Kind() == parse.TokGroupingSetsExpression {
				continue
			}
			if indexOfNode(spec.keyNodes, k) < 0 {
				spec.keyNodes = append(spec.keyNodes, k)
			}
		}
	}
	keys, err := expression.TypeCheckAll(spec.keyNodes, c.typeCheckCtx(rr))
	if err != nil {
		return nil, err
	}
	spec.keys = keys

	if hasGroupBy {
		if spec.sets, err = groupingSets(dest.GroupingKind, gby, spec.keyNodes); err != nil {
			return nil, err
		}
	}
	if err := rewriteGroupingCalls(dest, spec.keyNodes, spec.hasSets()); err != nil {
		return nil, err
	}

	tc := c.typeCheckCtx(rr)
	tc.AllowAggregates = true
	for _, n := range dest.Aggregations() {
		e, err := expression.TypeCheck(n, tc)
		if err != nil {
			return nil, err
		}
		fn, ok := e.(*expression.Func)
		if !ok || !fn.IsAggregate() {
			return nil, sql.NewSemanticError(n, sql.ErrInternal.New("not an aggregate: "+n.Snippet()))
		}
		a, err := newAggregation(n, fn)
		if err != nil {
			return nil, sql.NewSemanticError(n, err)
		}
		spec.aggs = append(spec.aggs, a)
		if fn.Distinct {
			for _, arg := range fn.Args {
				if expression.IndexOf(spec.distinct, arg) < 0 {
					spec.distinct = append(spec.distinct, arg)
				}
			}
		}
	}
	return spec, nil
}

// genGroupByStages checks the configuration against spec and generates
// the stages.
func (c *Compilation) genGroupByStages(spec *groupBySpec) (*plan.Operator, error) {
	mapAggr := c.Conf.GetBool(sql.ConfMapAggr)
	skew := c.Conf.GetBool(sql.ConfGroupBySkew)
	threshold := c.Conf.GetInt(sql.ConfGroupingSetCardinality)
	manySets := len(spec.sets) > threshold

	switch {
	case spec.hasSets() && !mapAggr:
		return nil, sql.NewSemanticError(spec.node, ErrGroupingSetsNoMapAggr.New())
	case manySets && skew:
		return nil, sql.NewSemanticError(spec.node, ErrGroupingSetsSkew.New(threshold))
	case manySets && spec.hasDistinct():
		return nil, sql.NewSemanticError(spec.node, ErrGroupingSetsDistinct.New(threshold))
	case skew && spec.multipleDistinctArgs():
		return nil, sql.NewSemanticError(spec.node, ErrMultipleDistinctSkew.New())
	}

	switch {
	case mapAggr && manySets:
		return c.genGroupingSetsExtraStage(spec), nil
	case mapAggr && skew:
		return c.genMapGroupBySkew(spec)
	case mapAggr:
		return c.genMapGroupBy(spec), nil
	case skew:
		return c.genGroupByTwoStages(spec)
	}
	return c.genGroupByOneStage(spec), nil
}

// genMapGroupBy aggregates map-side, shuffles on the grouping keys and
// merges the partial results.
func (c *Compilation) genMapGroupBy(spec *groupBySpec) *plan.Operator {
	hashOp, nKeys := c.genHashGroupBy(spec, true)
	ng := spec.numGroupKeys()
	rs := c.genGroupByReduceSink(hashOp,
		c.columns(hashOp, 0, nKeys), c.columns(hashOp, nKeys, nKeys+len(spec.aggs)),
		ng, nil, spec.distinctIndices(ng))

	merge := &plan.GroupByDesc{
		Mode:                plan.MergePartial,
		Keys:                c.columns(rs, 0, ng),
		GroupingSets:        spec.sets,
		GroupingSetPosition: spec.groupingSetPosition(),
	}
	for j, a := range spec.aggs {
		if a.fn.Distinct {
			merge.Aggregators = append(merge.Aggregators, &plan.AggregationDesc{
				Name:     a.fn.Name,
				Args:     c.distinctArgs(rs, spec, a, ng),
				Distinct: true,
				Mode:     plan.AggComplete,
				Type:     a.fn.Typ,
			})
			continue
		}
		merge.Aggregators = append(merge.Aggregators, &plan.AggregationDesc{
			Name: a.fn.Name,
			Args: c.columns(rs, nKeys+j, nKeys+j+1),
			Mode: plan.AggFinal,
			Type: a.fn.Typ,
		})
	}
	return c.putGroupBy(merge, rs, spec, true)
}

// genGroupingSetsExtraStage aggregates without the grouping sets first
// and expands them after the first shuffle, so the map side does not
// replicate every row once per set.
func (c *Compilation) genGroupingSetsExtraStage(spec *groupBySpec) *plan.Operator {
	nk := len(spec.keys)
	na := len(spec.aggs)
	hashOp, _ := c.genHashGroupBy(spec, false)
	rs1 := c.genGroupByReduceSink(hashOp, c.columns(hashOp, 0, nk), c.columns(hashOp, nk, nk+na), nk, nil, nil)

	partials := &plan.GroupByDesc{
		Mode:                 plan.PartialS,
		Keys:                 append(c.columns(rs1, 0, nk), expression.NewBigInt(0)),
		GroupingSets:         spec.sets,
		GroupingSetPosition:  nk,
		GroupingSetsExpanded: true,
	}
	for j, a := range spec.aggs {
		partials.Aggregators = append(partials.Aggregators, &plan.AggregationDesc{
			Name: a.fn.Name,
			Args: c.columns(rs1, nk+j, nk+j+1),
			Mode: plan.AggPartial2,
			Type: a.partial,
		})
	}
	psOp := c.putGroupBy(partials, rs1, spec, false)
	return c.genFinalGroupBy(psOp, spec)
}

// genMapGroupBySkew aggregates map-side, spreads the partial results
// randomly, merges them and shuffles once more on the grouping keys.
func (c *Compilation) genMapGroupBySkew(spec *groupBySpec) (*plan.Operator, error) {
	hashOp, nKeys := c.genHashGroupBy(spec, true)
	ng := spec.numGroupKeys()
	partition, err := c.skewPartition(hashOp, spec, nKeys)
	if err != nil {
		return nil, err
	}
	rs1 := c.genGroupByReduceSink(hashOp,
		c.columns(hashOp, 0, nKeys), c.columns(hashOp, nKeys, nKeys+len(spec.aggs)),
		ng, partition, spec.distinctIndices(ng))

	p2 := &plan.GroupByDesc{
		Mode:                plan.Partial2,
		Keys:                c.columns(rs1, 0, ng),
		GroupingSets:        spec.sets,
		GroupingSetPosition: spec.groupingSetPosition(),
	}
	for j, a := range spec.aggs {
		if a.fn.Distinct {
			p2.Aggregators = append(p2.Aggregators, &plan.AggregationDesc{
				Name:     a.fn.Name,
				Args:     c.distinctArgs(rs1, spec, a, ng),
				Distinct: true,
				Mode:     plan.AggPartial1,
				Type:     a.partial,
			})
			continue
		}
		p2.Aggregators = append(p2.Aggregators, &plan.AggregationDesc{
			Name: a.fn.Name,
			Args: c.columns(rs1, nKeys+j, nKeys+j+1),
			Mode: plan.AggPartial2,
			Type: a.partial,
		})
	}
	p2Op := c.putGroupBy(p2, rs1, spec, false)
	return c.genFinalGroupBy(p2Op, spec), nil
}

// genGroupByTwoStages shuffles raw rows randomly, aggregates partially,
// and shuffles the partial results on the grouping keys.
func (c *Compilation) genGroupByTwoStages(spec *groupBySpec) (*plan.Operator, error) {
	nk := len(spec.keys)
	keys := append(append([]sql.Expression(nil), spec.keys...), spec.distinct...)
	values, valuePos := spec.valueArgs()

	var partition []sql.Expression
	if spec.hasDistinct() {
		partition = keys
	} else {
		r, err := expression.NewBuiltin("rand")
		if err != nil {
			return nil, err
		}
		partition = []sql.Expression{r}
	}
	rs1 := c.genGroupByReduceSink(spec.input, keys, values, nk, partition, spec.distinctIndices(nk))

	p1 := &plan.GroupByDesc{
		Mode:                plan.Partial1,
		Keys:                c.columns(rs1, 0, nk),
		GroupingSetPosition: -1,
	}
	for j, a := range spec.aggs {
		p1.Aggregators = append(p1.Aggregators, &plan.AggregationDesc{
			Name:     a.fn.Name,
			Args:     c.rawAggArgs(rs1, spec, j, len(keys), valuePos),
			Distinct: a.fn.Distinct,
			Mode:     plan.AggPartial1,
			Type:     a.partial,
		})
	}
	p1Op := c.putGroupBy(p1, rs1, spec, false)
	return c.genFinalGroupBy(p1Op, spec), nil
}

// genGroupByOneStage shuffles raw rows on the grouping keys and
// aggregates them in one step.
func (c *Compilation) genGroupByOneStage(spec *groupBySpec) *plan.Operator {
	nk := len(spec.keys)
	keys := append(append([]sql.Expression(nil), spec.keys...), spec.distinct...)
	values, valuePos := spec.valueArgs()
	rs := c.genGroupByReduceSink(spec.input, keys, values, nk, nil, spec.distinctIndices(nk))

	complete := &plan.GroupByDesc{
		Mode:                plan.Complete,
		Keys:                c.columns(rs, 0, nk),
		GroupingSetPosition: -1,
	}
	for j, a := range spec.aggs {
		complete.Aggregators = append(complete.Aggregators, &plan.AggregationDesc{
			Name:     a.fn.Name,
			Args:     c.rawAggArgs(rs, spec, j, len(keys), valuePos),
			Distinct: a.fn.Distinct,
			Mode:     plan.AggComplete,
			Type:     a.fn.Typ,
		})
	}
	return c.putGroupBy(complete, rs, spec, true)
}

// genHashGroupBy is the map-side stage. With sets it adds the grouping id
// key and replicates rows per set. It returns the operator and its
// number of keys.
func (c *Compilation) genHashGroupBy(spec *groupBySpec, withSets bool) (*plan.Operator, int) {
	keys := append([]sql.Expression(nil), spec.keys...)
	desc := &plan.GroupByDesc{Mode: plan.Hash, GroupingSetPosition: -1}
	if withSets && spec.hasSets() {
		desc.GroupingSetPosition = len(keys)
		desc.GroupingSets = spec.sets
		desc.GroupingSetsExpanded = true
		keys = append(keys, expression.NewBigInt(0))
	}
	if withSets {
		keys = append(keys, spec.distinct...)
	}
	desc.Keys = keys
	for _, a := range spec.aggs {
		desc.Aggregators = append(desc.Aggregators, &plan.AggregationDesc{
			Name:     a.fn.Name,
			Args:     a.fn.Args,
			Distinct: a.fn.Distinct,
			Mode:     plan.AggPartial1,
			Type:     a.partial,
		})
	}
	return c.putGroupBy(desc, spec.input, spec, false), len(keys)
}

// genFinalGroupBy shuffles partial results of input on the grouping keys
// and merges them into final values.
func (c *Compilation) genFinalGroupBy(input *plan.Operator, spec *groupBySpec) *plan.Operator {
	ng := spec.numGroupKeys()
	na := len(spec.aggs)
	rs := c.genGroupByReduceSink(input, c.columns(input, 0, ng), c.columns(input, ng, ng+na), ng, nil, nil)

	final := &plan.GroupByDesc{
		Mode:                plan.Final,
		Keys:                c.columns(rs, 0, ng),
		GroupingSets:        spec.sets,
		GroupingSetPosition: spec.groupingSetPosition(),
	}
	for j, a := range spec.aggs {
		final.Aggregators = append(final.Aggregators, &plan.AggregationDesc{
			Name: a.fn.Name,
			Args: c.columns(rs, ng+j, ng+j+1),
			Mode: plan.AggFinal,
			Type: a.fn.Typ,
		})
	}
	return c.putGroupBy(final, rs, spec, true)
}

// skewPartition spreads rows randomly unless DISTINCT aggregates need
// every value of their arguments on one reducer.
func (c *Compilation) skewPartition(input *plan.Operator, spec *groupBySpec, nKeys int) ([]sql.Expression, error) {
	if spec.hasDistinct() {
		return c.columns(input, 0, nKeys), nil
	}
	r, err := expression.NewBuiltin("rand")
	if err != nil {
		return nil, err
	}
	return []sql.Expression{r}, nil
}

// distinctArgs returns the shuffle keys holding the arguments of a
// DISTINCT aggregate.
func (c *Compilation) distinctArgs(rs *plan.Operator, spec *groupBySpec, a *aggregation, offset int) []sql.Expression {
	schema := c.opRR[rs].ColumnInfos()
	var out []sql.Expression
	for _, arg := range a.fn.Args {
		out = append(out, expression.ColumnFromInfo(schema[offset+expression.IndexOf(spec.distinct, arg)]))
	}
	return out
}

// rawAggArgs returns the arguments of aggregate j after a shuffle of raw
// rows with nKeys keys.
func (c *Compilation) rawAggArgs(rs *plan.Operator, spec *groupBySpec, j, nKeys int, valuePos [][]int) []sql.Expression {
	a := spec.aggs[j]
	if a.fn.Distinct {
		return c.distinctArgs(rs, spec, a, len(spec.keys))
	}
	schema := c.opRR[rs].ColumnInfos()
	var out []sql.Expression
	for _, p := range valuePos[j] {
		out = append(out, expression.ColumnFromInfo(schema[nKeys+p]))
	}
	return out
}

// columns references the output columns [from, to) of op.
func (c *Compilation) columns(op *plan.Operator, from, to int) []sql.Expression {
	return columnRefs(c.opRR[op].ColumnInfos()[from:to])
}

// putGroupBy registers a group-by stage. Intermediate stages expose
// positional hidden columns only; the final stage binds the keys and
// aggregates so later clauses resolve against it.
func (c *Compilation) putGroupBy(desc *plan.GroupByDesc, input *plan.Operator, spec *groupBySpec, final bool) *plan.Operator {
	rr := sql.NewRowResolver()
	for i, k := range desc.Keys {
		info := sql.NewColumnInfo(sql.InternalColumnName(i), k.Type(), "", false)
		switch {
		case !final:
			putHidden(rr, info)
		case i == desc.GroupingSetPosition:
			info.Alias = groupingIDColumn
			rr.Put("", groupingIDColumn, info)
		case i < len(spec.keys) && spec.bindKey != nil:
			spec.bindKey(rr, i, info)
		case i < len(spec.keyNodes):
			if col, ok := spec.keys[i].(*expression.Column); ok {
				info.TabAlias = col.TabAlias
			}
			bindExpression(rr, spec.keyNodes[i], spec.keys[i], info)
		default:
			putHidden(rr, info)
		}
	}
	for j, a := range desc.Aggregators {
		info := sql.NewColumnInfo(sql.InternalColumnName(len(desc.Keys)+j), a.Type, "", false)
		switch agg := spec.aggs[j]; {
		case final && agg.node.Valid():
			rr.PutExpression(agg.node, info)
		case final:
			info.Alias = agg.alias
			rr.Put("", agg.alias, info)
		default:
			putHidden(rr, info)
		}
	}
	desc.Columns = rr.ColumnInfos().Names()
	op := c.putOp(desc, rr, input)
	for i, k := range desc.Keys {
		op.SetColumnExpression(desc.Columns[i], k)
	}
	return op
}

// genGroupByReduceSink shuffles a group-by input. Rows are partitioned by
// partition, or the first numDist keys when nil. Without any key every
// row goes to a single reducer.
func (c *Compilation) genGroupByReduceSink(input *plan.Operator, keys, values []sql.Expression, numDist int, partition []sql.Expression, distinct [][]int) *plan.Operator {
	rr := sql.NewRowResolver()
	for i, k := range keys {
		putHidden(rr, sql.NewColumnInfo(plan.KeyPrefix+plan.ReduceSinkKeyName(i), k.Type(), "", false))
	}
	for j, v := range values {
		putHidden(rr, sql.NewColumnInfo(plan.ValuePrefix+sql.InternalColumnName(j), v.Type(), "", false))
	}
	if partition == nil {
		partition = keys[:numDist]
	}
	reducers := c.numReducers()
	if len(partition) == 0 {
		reducers = 1
	}

	desc := plan.NewReduceSinkDesc(keys, values, partition,
		strings.Repeat("+", len(keys)), strings.Repeat("a", len(keys)), -1, reducers)
	desc.NumDistributionKeys = numDist
	desc.DistinctColumnIndices = distinct
	op := c.putOp(desc, rr, input)
	for i, k := range keys {
		op.SetColumnExpression(plan.KeyPrefix+plan.ReduceSinkKeyName(i), k)
	}
	for j, v := range values {
		op.SetColumnExpression(plan.ValuePrefix+sql.InternalColumnName(j), v)
	}
	return op
}

// genDistinctPlan removes duplicate rows of a SELECT DISTINCT by grouping
// on every column.
func (c *Compilation) genDistinctPlan(ctx *sql.Context, input *plan.Operator) (*plan.Operator, error) {
	span, _ := ctx.Span("gen_distinct")
	defer span.Finish()

	rr := c.opRR[input]
	schema := rr.ColumnInfos()
	spec := &groupBySpec{input: input, keys: columnRefs(schema)}
	spec.bindKey = func(out *sql.RowResolver, i int, info *sql.ColumnInfo) {
		info.TabAlias = schema[i].TabAlias
		info.Alias = schema[i].Alias
		carry(out, rr, schema[i], info)
	}
	if c.Conf.GetBool(sql.ConfMapAggr) {
		return c.genMapGroupBy(spec), nil
	}
	return c.genGroupByOneStage(spec), nil
}

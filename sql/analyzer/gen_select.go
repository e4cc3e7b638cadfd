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
	"regexp"
	"strconv"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression"
	"github.com/difin/hive-sub000/sql/plan"
)

const (
	// autogenAliasMaxLength caps the function text part of generated
	// column aliases.
	autogenAliasMaxLength = 20

	scriptSerDe        = "org.apache.hadoop.hive.serde2.lazy.LazySimpleSerDe"
	scriptRecordReader = "org.apache.hadoop.hive.ql.exec.TextRecordReader"
	scriptRecordWriter = "org.apache.hadoop.hive.ql.exec.TextRecordWriter"
)

var (
	tokenText   = regexp.MustCompile(`(?i)tok_\S+`)
	nonWordText = regexp.MustCompile(`\W`)
)

// genSelectPlan generates the select list of a destination: stars and
// column regexes are expanded, every other expression becomes one output
// column. TRANSFORM and table-generating functions take their own paths.
func (c *Compilation) genSelectPlan(ctx *sql.Context, qb *QB, dest *Destination, input *plan.Operator) (*plan.Operator, error) {
	span, ctx := ctx.Span("gen_select", opentracing.Tags{"dest": dest.Name})
	defer span.Finish()

	exprs := dest.SelectExprs()
	for _, se := range exprs {
		if se.Child(0).Kind() == parse.TokTransform {
			return c.genScriptPlan(qb, dest, input)
		}
	}

	rr := c.opRR[input]
	tc := c.typeCheckCtx(rr)
	tc.AllowUDTF = true
	grouped := dest.HasClause(GroupByClause) || len(dest.Aggregations()) > 0

	out := sql.NewRowResolver()
	sel := &plan.SelectDesc{SelectStar: len(exprs) > 0}
	var nodes []parse.Node
	add := func(node parse.Node, e sql.Expression, tabAlias, alias string, src *sql.ColumnInfo) {
		info := sql.NewColumnInfo(sql.InternalColumnName(len(sel.Exprs)), e.Type(), tabAlias, false)
		info.Alias = alias
		if src != nil {
			info.IsVirtual = src.IsVirtual
			info.IsPartition = src.IsPartition
			info.NotNull = src.NotNull
		}
		out.Put(tabAlias, alias, info)
		if node.Valid() {
			out.PutExpression(node, info)
		}
		sel.Exprs = append(sel.Exprs, e)
		nodes = append(nodes, node)
	}

	for pos, se := range exprs {
		e := se.Child(0)
		if tab, pattern, ok := c.columnPattern(e, rr); ok {
			cols, err := rr.ExpandColumns(tab, pattern)
			if err != nil {
				return nil, sql.NewSemanticError(e, err)
			}
			for _, col := range cols {
				add(parse.Node{}, expression.ColumnFromInfo(col.Info), col.TabAlias, col.Alias, col.Info)
			}
			if e.Kind() != parse.TokAllColRef {
				sel.SelectStar = false
			}
			continue
		}
		sel.SelectStar = false

		v, err := expression.TypeCheck(e, tc)
		if err != nil {
			if grouped && sql.IsKind(err, sql.ErrInvalidTableOrColumn) {
				return nil, sql.NewSemanticError(e, ErrInvalidGroupByExpression.New(e.Snippet()))
			}
			return nil, err
		}
		if f, ok := v.(*expression.Func); ok && f.Info != nil && f.Info.IsUDTF() {
			return c.genUDTFPlan(qb, dest, se, f, input)
		}

		tabAlias, alias := "", c.autoAlias(e, pos)
		var src *sql.ColumnInfo
		if col, ok := v.(*expression.Column); ok {
			tabAlias = col.TabAlias
			src, _ = rr.ColumnInfos().Column(col.Name)
			if name, ok := columnRefName(e); ok {
				alias = name
			}
		}
		if a, ok := selectAlias(se); ok {
			alias = a
		}
		add(e, v, tabAlias, alias, src)
	}

	if op, ok := c.elideSelect(input, out, sel); ok {
		return op, nil
	}
	sel.Columns = out.ColumnInfos().Names()
	op := c.putOp(sel, out, input)
	for i, name := range sel.Columns {
		op.SetColumnExpression(name, sel.Exprs[i])
	}
	return op, nil
}

// elideSelect drops a select that emits the columns of a group-by in
// order. The group-by takes over the select's names.
func (c *Compilation) elideSelect(input *plan.Operator, out *sql.RowResolver, sel *plan.SelectDesc) (*plan.Operator, bool) {
	if input.Type() != plan.GroupByOp || len(input.Children()) > 0 {
		return nil, false
	}
	schema := c.opRR[input].ColumnInfos()
	if len(schema) != len(sel.Exprs) {
		return nil, false
	}
	for i, e := range sel.Exprs {
		col, ok := e.(*expression.Column)
		if !ok || col.Name != schema[i].InternalName {
			return nil, false
		}
	}

	rr := sql.NewRowResolver()
	outSchema := out.ColumnInfos()
	for i, info := range outSchema {
		renamed := info.Copy()
		renamed.InternalName = schema[i].InternalName
		carry(rr, out, info, renamed)
		if key, ok := expressionKey(out, info); ok {
			if n, ok := out.ExpressionNode(key); ok {
				rr.PutExpression(n, renamed)
			}
		}
	}
	c.opRR[input] = rr
	input.Schema = rr.ColumnInfos()
	return input, true
}

// expressionKey returns the expression key info is bound under, if any.
func expressionKey(rr *sql.RowResolver, info *sql.ColumnInfo) (string, bool) {
	tab, col, ok := rr.ReverseLookup(info.InternalName)
	if ok && tab == "" {
		if _, isExpr := rr.ExpressionNode(col); isExpr {
			return col, true
		}
	}
	for _, alt := range rr.AlternateMappings(info.InternalName) {
		if alt[0] != "" {
			continue
		}
		if _, isExpr := rr.ExpressionNode(alt[1]); isExpr {
			return alt[1], true
		}
	}
	return "", false
}

// columnPattern recognizes *, t.*, and backquoted column regexes when
// quoted identifiers are not supported.
func (c *Compilation) columnPattern(e parse.Node, rr *sql.RowResolver) (tab, pattern string, ok bool) {
	switch e.Kind() {
	case parse.TokAllColRef:
		if e.ChildCount() > 0 {
			tab = parse.UnescapeIdentifier(e.Child(0).Child(0).Text())
		}
		return tab, ".*", true
	case parse.TokTableOrCol:
		text := e.Child(0).Text()
		if c.Conf.SupportsRegexColumns() && parse.IsQuotedIdentifier(text) {
			return "", text[1 : len(text)-1], true
		}
	case parse.Dot:
		if e.ChildCount() != 2 || e.Child(0).Kind() != parse.TokTableOrCol {
			break
		}
		text := e.Child(1).Text()
		tab = parse.UnescapeIdentifier(e.Child(0).Child(0).Text())
		if c.Conf.SupportsRegexColumns() && parse.IsQuotedIdentifier(text) && rr.HasTableAlias(tab) {
			return tab, text[1 : len(text)-1], true
		}
	}
	return "", "", false
}

// selectAlias returns the AS alias of a select expression.
func selectAlias(se parse.Node) (string, bool) {
	if se.ChildCount() >= 2 && se.Child(1).Kind() == parse.Identifier {
		return parse.UnescapeIdentifier(se.Child(1).Text()), true
	}
	return "", false
}

// autoAlias names an unaliased expression at pos, either with the
// configured prefix or with the flattened function text.
func (c *Compilation) autoAlias(e parse.Node, pos int) string {
	if c.Conf.GetBool(sql.ConfColumnAliasIncludeFuncName) && isFunctionNode(e) {
		flat := tokenText.ReplaceAllString(e.Normalized(), "")
		flat = strings.Join(strings.Fields(nonWordText.ReplaceAllString(flat, " ")), "_")
		if len(flat) > autogenAliasMaxLength {
			flat = flat[:autogenAliasMaxLength]
		}
		return flat + "_" + strconv.Itoa(pos)
	}
	return c.Conf.GetString(sql.ConfColumnAliasPrefix) + strconv.Itoa(pos)
}

func isFunctionNode(n parse.Node) bool {
	switch n.Kind() {
	case parse.TokFunction, parse.TokFunctionDI, parse.TokFunctionStar:
		return true
	}
	return false
}

// hasLateralViews reports whether any source of qb carries a lateral
// view.
func hasLateralViews(qb *QB) bool {
	for _, alias := range qb.Aliases() {
		if len(qb.LateralViews(alias)) > 0 {
			return true
		}
	}
	return false
}

// genUDTFPlan generates a table-generating function in the select list:
// its arguments are projected and fed to a UDTF operator.
func (c *Compilation) genUDTFPlan(qb *QB, dest *Destination, se parse.Node, fn *expression.Func, input *plan.Operator) (*plan.Operator, error) {
	if len(dest.SelectExprs()) != 1 {
		return nil, sql.NewSemanticError(se, ErrUDTFMultipleExpressions.New())
	}
	for _, k := range []ClauseKind{GroupByClause, DistributeByClause, SortByClause, ClusterByClause} {
		if dest.HasClause(k) {
			return nil, sql.NewSemanticError(se, ErrUDTFWithClause.New(k))
		}
	}
	if dest.Distinct {
		return nil, sql.NewSemanticError(se, ErrUDTFWithClause.New("SELECT DISTINCT"))
	}
	if hasLateralViews(qb) {
		return nil, sql.NewSemanticError(se, ErrUDTFWithClause.New("LATERAL VIEW"))
	}

	var aliases []string
	for _, ch := range se.Children()[1:] {
		if ch.Kind() == parse.Identifier {
			aliases = append(aliases, parse.UnescapeIdentifier(ch.Text()))
		}
	}
	fields := fn.Typ.Fields
	if len(aliases) > 0 && len(aliases) != len(fields) {
		return nil, sql.NewSemanticError(se, ErrUDTFAliases.New(len(fields), len(aliases)))
	}

	argOp := c.genProjection(input, fn.Args)
	udtf := &plan.UDTFDesc{Function: c.rebaseArgs(fn, argOp)}
	rr := sql.NewRowResolver()
	for i, f := range fields {
		name := f.Name
		if len(aliases) > 0 {
			name = aliases[i]
		}
		info := sql.NewColumnInfo(sql.InternalColumnName(i), f.Type, "", false)
		info.Alias = name
		rr.Put("", name, info)
	}
	udtf.Columns = rr.ColumnInfos().Names()
	return c.putOp(udtf, rr, argOp), nil
}

// genProjection selects exprs over input as hidden positional columns.
func (c *Compilation) genProjection(input *plan.Operator, exprs []sql.Expression) *plan.Operator {
	rr := sql.NewRowResolver()
	sel := &plan.SelectDesc{Exprs: exprs}
	for i, e := range exprs {
		putHidden(rr, sql.NewColumnInfo(sql.InternalColumnName(i), e.Type(), "", false))
	}
	sel.Columns = rr.ColumnInfos().Names()
	op := c.putOp(sel, rr, input)
	for i, name := range sel.Columns {
		op.SetColumnExpression(name, exprs[i])
	}
	return op
}

// rebaseArgs rewrites a call whose arguments were projected by
// genProjection to read the projected columns.
func (c *Compilation) rebaseArgs(fn *expression.Func, proj *plan.Operator) *expression.Func {
	out := *fn
	out.Args = columnRefs(c.opRR[proj].ColumnInfos())
	return &out
}

// genScriptPlan generates SELECT TRANSFORM(args) USING 'cmd' [AS cols]:
// the arguments are projected and streamed through a script operator.
func (c *Compilation) genScriptPlan(qb *QB, dest *Destination, input *plan.Operator) (*plan.Operator, error) {
	exprs := dest.SelectExprs()
	tr := exprs[0].Child(0)
	switch {
	case len(exprs) > 1:
		return nil, sql.NewSemanticError(exprs[1], ErrTransformWithClause.New("other SELECT expressions"))
	case tr.Kind() != parse.TokTransform:
		return nil, sql.NewSemanticError(exprs[0], ErrTransformWithClause.New("other SELECT expressions"))
	case dest.HasClause(GroupByClause):
		return nil, sql.NewSemanticError(tr, ErrTransformWithClause.New(GroupByClause))
	case len(dest.Aggregations()) > 0:
		return nil, sql.NewSemanticError(tr, ErrTransformWithClause.New("aggregations"))
	case dest.Distinct:
		return nil, sql.NewSemanticError(tr, ErrTransformWithClause.New("SELECT DISTINCT"))
	case hasLateralViews(qb):
		return nil, sql.NewSemanticError(tr, ErrTransformWithClause.New("LATERAL VIEW"))
	}

	desc := &plan.ScriptDesc{
		InputSerDe:   scriptSerDe,
		OutputSerDe:  scriptSerDe,
		RecordReader: scriptRecordReader,
		RecordWriter: scriptRecordWriter,
	}
	var args []sql.Expression
	rr := sql.NewRowResolver()
	tc := c.typeCheckCtx(c.opRR[input])
	for _, ch := range tr.Children() {
		switch ch.Kind() {
		case parse.TokExpList:
			es, err := expression.TypeCheckAll(ch.Children(), tc)
			if err != nil {
				return nil, err
			}
			args = append(args, es...)
		case parse.StringLiteral:
			if desc.Command == "" {
				desc.Command = ch.Text()
			}
		case parse.TokAliasList:
			for i, a := range ch.Children() {
				name := parse.UnescapeIdentifier(a.Text())
				info := sql.NewColumnInfo(sql.InternalColumnName(i), sql.StringType, "", false)
				rr.Put("", name, info)
			}
		case parse.TokTabColList:
			for i, col := range ch.Children() {
				typ, err := expression.TypeFromNode(col.Child(1))
				if err != nil {
					return nil, sql.NewSemanticError(col, err)
				}
				info := sql.NewColumnInfo(sql.InternalColumnName(i), typ, "", false)
				rr.Put("", parse.UnescapeIdentifier(col.Child(0).Text()), info)
			}
		}
	}
	if desc.Command == "" {
		return nil, sql.NewSemanticError(tr, ErrTransformWithClause.New("no script command"))
	}
	if rr.Len() == 0 {
		rr.Put("", "key", sql.NewColumnInfo(sql.InternalColumnName(0), sql.StringType, "", false))
		rr.Put("", "value", sql.NewColumnInfo(sql.InternalColumnName(1), sql.StringType, "", false))
	}

	argOp := c.genProjection(input, args)
	desc.Columns = rr.ColumnInfos().Names()
	return c.putOp(desc, rr, argOp), nil
}

// genSortPlan generates the shuffle of CLUSTER BY, DISTRIBUTE BY, SORT BY
// and ORDER BY. Keys resolve against the select output. ORDER BY sorts on
// a single reducer.
func (c *Compilation) genSortPlan(ctx *sql.Context, qb *QB, dest *Destination, input *plan.Operator) (*plan.Operator, error) {
	var partitionNodes []parse.Node
	var sortKeys []OrderExpr
	if n, ok := dest.Clause(ClusterByClause); ok {
		partitionNodes = n.Children()
		for _, k := range n.Children() {
			sortKeys = append(sortKeys, OrderExpr{Expr: k, Asc: true, NullsFirst: true})
		}
	}
	if n, ok := dest.Clause(DistributeByClause); ok {
		partitionNodes = n.Children()
	}
	if n, ok := dest.Clause(SortByClause); ok {
		sortKeys = orderExprs(n)
	}
	orderBy, isOrderBy := dest.Clause(OrderByClause)
	if isOrderBy {
		sortKeys = orderExprs(orderBy)
	}
	if len(partitionNodes) == 0 && len(sortKeys) == 0 {
		return input, nil
	}

	span, _ := ctx.Span("gen_sort", opentracing.Tags{"dest": dest.Name})
	defer span.Finish()

	if isOrderBy && dest.Limit == nil && c.Conf.GetBool(sql.ConfStrictOrderByNoLimit) {
		return nil, sql.NewSemanticError(orderBy, ErrOrderByWithoutLimit.New())
	}

	tc := c.typeCheckCtx(c.opRR[input])
	partition, err := expression.TypeCheckAll(partitionNodes, tc)
	if err != nil {
		return nil, err
	}
	var keys []sql.Expression
	for _, k := range sortKeys {
		e, err := expression.TypeCheck(k.Expr, tc)
		if err != nil {
			return nil, err
		}
		if !e.Type().IsPrimitive() {
			return nil, sql.NewSemanticError(k.Expr, ErrInvalidSortKey.New(k.Expr.Snippet(), e.Type()))
		}
		keys = append(keys, e)
	}

	reducers := c.numReducers()
	limit := -1
	if isOrderBy {
		reducers = 1
		partition = nil
		if dest.Limit != nil {
			limit = dest.Limit.Offset + dest.Limit.Count
		}
	}
	return c.genShuffle(input, keys, partition, orderString(sortKeys), nullOrderString(sortKeys), reducers, limit), nil
}

// genShuffle routes every column of input through a reduce sink and
// projects the values back to positional columns under their names.
func (c *Compilation) genShuffle(input *plan.Operator, keys, partition []sql.Expression, order, nullOrder string, reducers, limit int) *plan.Operator {
	rr := c.opRR[input]
	schema := rr.ColumnInfos()
	rs := c.genShuffleSink(input, keys, partition, order, nullOrder, reducers, limit)
	rsRR := c.opRR[rs]

	out := sql.NewRowResolver()
	sel := &plan.SelectDesc{}
	for j, info := range schema {
		src := rsRR.ColumnInfos()[len(keys)+j]
		renamed := info.Copy()
		carry(out, rsRR, src, renamed)
		if key, ok := expressionKey(rr, info); ok {
			if n, ok := rr.ExpressionNode(key); ok {
				out.PutExpression(n, renamed)
			}
		}
		sel.Exprs = append(sel.Exprs, expression.ColumnFromInfo(src))
	}
	sel.Columns = out.ColumnInfos().Names()
	op := c.putOp(sel, out, rs)
	for i, name := range sel.Columns {
		op.SetColumnExpression(name, sel.Exprs[i])
	}
	return op
}

// genShuffleSink is the reduce sink of genShuffle. Its values carry the
// names of every input column.
func (c *Compilation) genShuffleSink(input *plan.Operator, keys, partition []sql.Expression, order, nullOrder string, reducers, limit int) *plan.Operator {
	rr := c.opRR[input]
	schema := rr.ColumnInfos()
	rsRR := sql.NewRowResolver()
	for i, k := range keys {
		putHidden(rsRR, sql.NewColumnInfo(plan.KeyPrefix+plan.ReduceSinkKeyName(i), k.Type(), "", false))
	}
	values := columnRefs(schema)
	for j, info := range schema {
		renamed := info.Copy()
		renamed.InternalName = plan.ValuePrefix + sql.InternalColumnName(j)
		carry(rsRR, rr, info, renamed)
	}
	if partition == nil {
		partition = []sql.Expression{}
	}
	desc := plan.NewReduceSinkDesc(keys, values, partition, order, nullOrder, -1, reducers)
	desc.Limit = limit
	rs := c.putOp(desc, rsRR, input)
	for i, k := range keys {
		rs.SetColumnExpression(plan.KeyPrefix+plan.ReduceSinkKeyName(i), k)
	}
	for j, v := range values {
		rs.SetColumnExpression(plan.ValuePrefix+sql.InternalColumnName(j), v)
	}
	return rs
}

// genLimitPlan generates LIMIT [offset,] count. Over a single reducer
// sort one global limit suffices. Otherwise each task limits locally and,
// when an offset or the extra stage asks for it, a single reducer applies
// the global slice.
func (c *Compilation) genLimitPlan(ctx *sql.Context, qb *QB, dest *Destination, input *plan.Operator) (*plan.Operator, error) {
	lim := dest.Limit
	_, sorted := dest.Clause(OrderByClause)
	if lim.Offset > 0 && !sorted {
		ctx.Warn(lim.Node.Line(), lim.Node.Col(), "LIMIT with OFFSET and no ORDER BY returns an undefined set of rows")
	}
	c.pushRowLimit(input, lim.Offset+lim.Count)

	if sorted {
		return c.genLimitOp(input, lim.Count, lim.Offset, true), nil
	}
	local := c.genLimitOp(input, lim.Offset+lim.Count, 0, false)
	if lim.Offset == 0 && !c.Conf.GetBool(sql.ConfLimitExtraStage) {
		return local, nil
	}
	shuffled := c.genShuffle(local, nil, nil, "", "", 1, -1)
	return c.genLimitOp(shuffled, lim.Count, lim.Offset, true), nil
}

func (c *Compilation) genLimitOp(input *plan.Operator, limit, offset int, global bool) *plan.Operator {
	rr := c.opRR[input]
	return c.putOp(&plan.LimitDesc{
		Limit:   limit,
		Offset:  offset,
		Global:  global,
		Columns: rr.ColumnInfos().Names(),
	}, rr, input)
}

// pushRowLimit bounds the rows a plain scan reads when a limit sits on a
// projection directly over it.
func (c *Compilation) pushRowLimit(input *plan.Operator, rows int) {
	if input.Type() != plan.SelectOp {
		return
	}
	scan := input.Parent()
	if scan == nil || scan.Type() != plan.TableScanOp || len(scan.Children()) != 1 {
		return
	}
	ts := scan.Desc.(*plan.TableScanDesc)
	if ts.Sample != nil || ts.SplitSample != nil {
		return
	}
	ts.RowLimit = rows
}

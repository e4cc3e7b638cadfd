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
	"strconv"
	"strings"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
)

func (c *Compilation) processFromSource(ctx *sql.Context, qb *QB, src parse.Node) error {
	switch {
	case src.Kind() == parse.TokTabRef:
		_, err := c.processTable(qb, src)
		return err
	case src.Kind() == parse.TokSubquery:
		_, err := c.processSubquery(ctx, qb, src)
		return err
	case src.Kind().IsJoin():
		qb.ParseInfo.JoinExpr = src
		return c.processJoin(ctx, qb, src)
	case src.Kind() == parse.TokLateralView || src.Kind() == parse.TokLateralViewOuter:
		_, err := c.processLateralView(ctx, qb, src)
		return err
	case src.Kind() == parse.TokPTBLFunction:
		_, err := c.processPTF(ctx, qb, src)
		return err
	}
	return sql.NewSemanticError(src, ErrInvalidJoinInput.New(src.Snippet()))
}

// processTable records a table reference with its sampling and time
// travel clauses. The alias defaults to the table name.
func (c *Compilation) processTable(qb *QB, tabref parse.Node) (string, error) {
	nameNode := tabref.Child(0)
	db, name := tableNameFromNode(nameNode)
	ref := &TableRef{Alias: name, Database: db, Name: name, Node: tabref}
	var bucket, split, asOf parse.Node
	for _, child := range tabref.Children()[1:] {
		switch child.Kind() {
		case parse.TokTableBucketSample:
			bucket = child
		case parse.TokTableSplitSample:
			split = child
		case parse.TokAsOfVersion, parse.TokAsOfTime:
			asOf = child
		case parse.TokTabAlias:
			ref.Alias = parse.UnescapeIdentifier(child.Child(0).Text())
		}
	}
	if err := qb.AddTable(ref); err != nil {
		return "", err
	}
	c.Translator.AddTable(nameNode, db, name)
	pi := qb.ParseInfo

	if bucket.Valid() {
		ts, err := tableSampleFromNode(nameNode, bucket)
		if err != nil {
			return "", err
		}
		pi.TableSamples[ref.Alias] = ts
	} else if split.Valid() {
		ss, err := c.splitSampleFromNode(split)
		if err != nil {
			return "", err
		}
		pi.SplitSamples[ref.Alias] = ss
	}
	if asOf.Valid() && asOf.ChildCount() == 1 {
		spec := &AsOfSpec{}
		if asOf.Kind() == parse.TokAsOfVersion {
			spec.Version = asOf.Child(0).Text()
		} else {
			spec.Timestamp = asOf.Child(0).Text()
		}
		pi.AsOf[ref.Alias] = spec
	}
	return ref.Alias, nil
}

func tableSampleFromNode(nameNode, clause parse.Node) (*TableSample, error) {
	if clause.ChildCount() < 2 {
		return nil, sql.NewSemanticError(clause, ErrInvalidSample.New(clause.Snippet()))
	}
	num, err1 := strconv.Atoi(clause.Child(0).Text())
	den, err2 := strconv.Atoi(clause.Child(1).Text())
	if err1 != nil || err2 != nil || num <= 0 || den <= 0 || num > den {
		return nil, sql.NewSemanticError(clause, ErrInvalidSample.New(clause.Snippet()))
	}
	ts := &TableSample{Numerator: num, Denominator: den, Node: clause}
	ts.Exprs = clause.Children()[2:]
	if len(ts.Exprs) > 2 {
		return nil, sql.NewSemanticError(nameNode, ErrSampleRestriction.New(clause.Snippet()))
	}
	return ts, nil
}

func (c *Compilation) splitSampleFromNode(clause parse.Node) (*SplitSample, error) {
	if clause.ChildCount() != 2 {
		return nil, sql.NewSemanticError(clause, ErrInvalidSample.New(clause.Snippet()))
	}
	kind, amount := clause.Child(0), clause.Child(1)
	value := amount.Text()
	ss := &SplitSample{Node: clause}
	combines := c.Conf.GetString(sql.ConfInputFormat) == sql.ConfSampleCombineInputFormatName

	switch kind.Kind() {
	case parse.TokPercent:
		if !combines {
			return nil, sql.NewSemanticError(amount, ErrSplitSampleInputFormat.New(c.Conf.GetString(sql.ConfInputFormat)))
		}
		p, err := strconv.ParseFloat(value, 64)
		if err != nil || p < 0 || p > 100 {
			return nil, sql.NewSemanticError(amount, ErrInvalidSample.New("sampling percentage should be between 0 and 100"))
		}
		ss.Kind, ss.Percent = PercentSample, p
	case parse.TokRowCount:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return nil, sql.NewSemanticError(amount, ErrInvalidSample.New(value))
		}
		ss.Kind, ss.RowCount = RowCountSample, n
	case parse.TokLength:
		if !combines {
			return nil, sql.NewSemanticError(amount, ErrSplitSampleInputFormat.New(c.Conf.GetString(sql.ConfInputFormat)))
		}
		length, err := parseLength(value)
		if err != nil {
			return nil, sql.NewSemanticError(amount, ErrInvalidSample.New(value))
		}
		ss.Kind, ss.Length = LengthSample, length
	default:
		return nil, sql.NewSemanticError(kind, ErrInvalidSample.New(clause.Snippet()))
	}
	return ss, nil
}

// parseLength reads sizes such as 100, 10k, 5M and 1g.
func parseLength(s string) (int64, error) {
	shift := uint(0)
	if s != "" {
		switch s[len(s)-1] {
		case 'k', 'K':
			shift = 10
		case 'm', 'M':
			shift = 20
		case 'g', 'G':
			shift = 30
		}
		if shift > 0 {
			s = s[:len(s)-1]
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, sql.ErrInvalidType.New(s)
	}
	return v << shift, nil
}

// processSubquery reads an aliased FROM subquery.
func (c *Compilation) processSubquery(ctx *sql.Context, qb *QB, subq parse.Node) (string, error) {
	if subq.ChildCount() != 2 {
		return "", sql.NewSemanticError(subq, ErrNoSubqueryAlias.New())
	}
	alias := parse.UnescapeIdentifier(subq.Child(1).Text())
	expr, _, err := c.phase1QBExpr(ctx, subq.Child(0), qb.ID, alias)
	if err != nil {
		return "", err
	}
	if err := qb.AddSubquery(alias, expr, subq); err != nil {
		return "", err
	}
	return alias, nil
}

func (c *Compilation) processJoin(ctx *sql.Context, qb *QB, join parse.Node) error {
	n := join.ChildCount()
	if join.Kind() != parse.TokUniqueJoin && n != 2 && n != 3 {
		return sql.NewSemanticError(join, ErrInvalidJoinInput.New(join.Snippet()))
	}
	for i, child := range join.Children() {
		if i == 2 && join.Kind() != parse.TokUniqueJoin {
			break
		}
		switch {
		case child.Kind() == parse.TokTabRef:
			if _, err := c.processTable(qb, child); err != nil {
				return err
			}
		case child.Kind() == parse.TokSubquery:
			if _, err := c.processSubquery(ctx, qb, child); err != nil {
				return err
			}
		case child.Kind() == parse.TokPTBLFunction:
			if !ptfHasAlias(child) {
				return sql.NewSemanticError(child, ErrPTFAlias.New(parse.UnescapeIdentifier(child.Child(0).Text())))
			}
			if _, err := c.processPTF(ctx, qb, child); err != nil {
				return err
			}
		case child.Kind() == parse.TokLateralView || child.Kind() == parse.TokLateralViewOuter:
			return sql.NewSemanticError(child, ErrLateralViewInJoin.New())
		case child.Kind().IsJoin():
			if err := c.processJoin(ctx, qb, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// processLateralView reads a lateral view and the source it applies to.
// It returns the alias of that source.
func (c *Compilation) processLateralView(ctx *sql.Context, qb *QB, lv parse.Node) (string, error) {
	if lv.ChildCount() != 2 {
		return "", sql.NewSemanticError(lv, ErrLateralViewChildren.New(lv.ChildCount()))
	}
	if err := c.checkLateralViewFunction(lv.Child(0)); err != nil {
		return "", err
	}

	var alias string
	var err error
	switch next := lv.Child(1); next.Kind() {
	case parse.TokTabRef:
		alias, err = c.processTable(qb, next)
	case parse.TokSubquery:
		alias, err = c.processSubquery(ctx, qb, next)
	case parse.TokLateralView, parse.TokLateralViewOuter:
		alias, err = c.processLateralView(ctx, qb, next)
	default:
		return "", sql.NewSemanticError(next, ErrInvalidJoinInput.New(next.Snippet()))
	}
	if err != nil {
		return "", err
	}
	qb.AddLateralView(alias, lv)
	return alias, nil
}

func (c *Compilation) checkLateralViewFunction(sel parse.Node) error {
	if sel.Kind() != parse.TokSelect || sel.ChildCount() != 1 {
		return sql.NewSemanticError(sel, ErrLateralViewUDTF.New(sel.Snippet()))
	}
	fn := sel.Child(0).Child(0)
	if fn.Kind() != parse.TokFunction {
		return sql.NewSemanticError(fn, ErrLateralViewUDTF.New(fn.Snippet()))
	}
	name := parse.UnescapeIdentifier(fn.Child(0).Text())
	info, ok := c.Registry.Function(name)
	if !ok {
		return sql.NewSemanticError(fn, sql.ErrInvalidFunction.New(name))
	}
	if !info.IsUDTF() {
		return sql.NewSemanticError(fn, ErrLateralViewUDTF.New(name))
	}
	if _, ok := sel.Child(0).FirstChildOfKind(parse.TokTabAlias); !ok {
		return sql.NewSemanticError(sel, ErrLateralViewUDTF.New("a lateral view needs a table alias"))
	}
	return nil
}

func ptfHasAlias(ptf parse.Node) bool {
	return ptf.ChildCount() > 1 && ptf.Child(1).Kind() == parse.Identifier
}

// processPTF reads a partitioned table function invocation:
// (TOK_PTBLFUNCTION name [alias] source [TOK_PARTITIONINGSPEC] args...).
func (c *Compilation) processPTF(ctx *sql.Context, qb *QB, node parse.Node) (string, error) {
	name := strings.ToLower(parse.UnescapeIdentifier(node.Child(0).Text()))
	info, ok := c.Registry.Function(name)
	if !ok || info.Kind != sql.TableFunction {
		return "", sql.NewSemanticError(node.Child(0), ErrInvalidTableFunction.New(name))
	}
	ptf := &PTFInvocation{Name: name, Node: node}
	rest := node.Children()[1:]
	if ptfHasAlias(node) {
		ptf.Alias = parse.UnescapeIdentifier(node.Child(1).Text())
		rest = rest[1:]
	} else {
		ptf.Alias = c.nextSubqueryAlias("ptf")
	}
	if len(rest) == 0 {
		return "", sql.NewSemanticError(node, ErrInvalidJoinInput.New(node.Snippet()))
	}

	var err error
	switch src := rest[0]; src.Kind() {
	case parse.TokTabRef:
		ptf.SourceAlias, err = c.processTable(qb, src)
	case parse.TokSubquery:
		ptf.SourceAlias, err = c.processSubquery(ctx, qb, src)
	default:
		return "", sql.NewSemanticError(src, ErrInvalidJoinInput.New(src.Snippet()))
	}
	if err != nil {
		return "", err
	}

	for _, arg := range rest[1:] {
		if arg.Kind() == parse.TokPartitioningSpec {
			w, err := windowSpecFromNode(arg.Arena().New(parse.TokWindowSpec, "", arg))
			if err != nil {
				return "", sql.NewSemanticError(arg, err)
			}
			ptf.PartitionBy = w.PartitionBy
			ptf.OrderBy = w.OrderBy
			continue
		}
		ptf.Args = append(ptf.Args, arg)
	}
	if err := qb.AddPTF(ptf); err != nil {
		return "", err
	}
	return ptf.Alias, nil
}

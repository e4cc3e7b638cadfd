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

// genLateralViewPlan applies a lateral view over op. The input is
// forwarded both to a select of all its columns and to the UDTF; the
// join concatenates each input row with the rows generated for it.
func (c *Compilation) genLateralViewPlan(ctx *sql.Context, lv parse.Node, op *plan.Operator) (*plan.Operator, error) {
	span, _ := ctx.Span("gen_lateral_view")
	defer span.Finish()

	se := lv.Child(0).Child(0)
	rr := c.opRR[op]
	tc := c.typeCheckCtx(rr)
	tc.AllowUDTF = true
	e, err := expression.TypeCheck(se.Child(0), tc)
	if err != nil {
		return nil, err
	}
	fn, ok := e.(*expression.Func)
	if !ok || !fn.Info.IsUDTF() {
		return nil, sql.NewSemanticError(se, ErrLateralViewUDTF.New(se.Child(0).Snippet()))
	}

	var tabAlias string
	var colAliases []string
	for _, ch := range se.Children()[1:] {
		switch ch.Kind() {
		case parse.TokTabAlias:
			tabAlias = parse.UnescapeIdentifier(ch.Child(0).Text())
		case parse.Identifier:
			colAliases = append(colAliases, parse.UnescapeIdentifier(ch.Text()))
		}
	}
	fields := fn.Typ.Fields
	if len(colAliases) > 0 && len(colAliases) != len(fields) {
		return nil, sql.NewSemanticError(se, ErrUDTFAliases.New(len(fields), len(colAliases)))
	}

	schema := rr.ColumnInfos()
	lvf := c.putOp(&plan.LateralViewForwardDesc{Columns: schema.Names()}, rr, op)

	selOp := c.putOp(&plan.SelectDesc{Exprs: columnRefs(schema), Columns: schema.Names()}, rr, lvf)
	for _, info := range schema {
		selOp.SetColumnExpression(info.InternalName, expression.ColumnFromInfo(info))
	}

	argOp := c.genProjection(lvf, fn.Args)
	udtfRR := sql.NewRowResolver()
	for i, f := range fields {
		putHidden(udtfRR, sql.NewColumnInfo(sql.InternalColumnName(i), f.Type, "", false))
	}
	outer := lv.Kind() == parse.TokLateralViewOuter
	udtf := c.putOp(&plan.UDTFDesc{
		Function: c.rebaseArgs(fn, argOp),
		Outer:    outer,
		Columns:  udtfRR.ColumnInfos().Names(),
	}, udtfRR, argOp)

	out := sql.NewRowResolver()
	for _, info := range schema {
		carry(out, rr, info, info.Copy())
	}
	for i, f := range fields {
		name := f.Name
		if len(colAliases) > 0 {
			name = colAliases[i]
		}
		info := sql.NewColumnInfo(sql.InternalColumnName(len(schema)+i), f.Type, tabAlias, false)
		info.Alias = name
		out.Put(tabAlias, name, info)
	}
	return c.putOp(&plan.LateralViewJoinDesc{
		NumSelColumns: len(schema),
		Outer:         outer,
		Columns:       out.ColumnInfos().Names(),
	}, out, selOp, udtf), nil
}

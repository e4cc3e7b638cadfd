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

package expression

import (
	"strconv"
	"strings"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
)

// TypeCheckCtx carries the input resolver and the rules of the clause an
// expression is checked in.
type TypeCheckCtx struct {
	RR       *sql.RowResolver
	Registry sql.FunctionRegistry

	// AllowAggregates permits aggregate calls that are not already
	// computed by the input.
	AllowAggregates bool
	// AllowWindowing permits calls carrying a window specification; the
	// specification itself is not checked here.
	AllowWindowing bool
	// AllowUDTF permits a table-generating call at the top level.
	AllowUDTF bool
	// AllowAllColRef permits * inside function arguments.
	AllowAllColRef bool
	// AllowExpressionLookup resolves whole subtrees already computed by
	// the input (group by keys, aggregations) before descending.
	AllowExpressionLookup bool
	// FoldConstants folds deterministic calls over constants.
	FoldConstants bool
	// Translator, if enabled, records qualified column spellings.
	Translator *Translator
	// SubqueryHandler plans subquery expressions; nil rejects them.
	SubqueryHandler func(node parse.Node) (sql.Expression, error)

	inAggregate int
	windowed    int
}

// NewTypeCheckCtx returns the rules for a plain projection over rr.
func NewTypeCheckCtx(rr *sql.RowResolver, registry sql.FunctionRegistry) *TypeCheckCtx {
	return &TypeCheckCtx{
		RR:                    rr,
		Registry:              registry,
		AllowAllColRef:        true,
		AllowExpressionLookup: true,
		FoldConstants:         true,
	}
}

// tableAlias is the intermediate result of a TOK_TABLE_OR_COL naming a
// table alias; it never leaves the checker.
type tableAlias struct {
	alias string
	node  parse.Node
}

func (t *tableAlias) Type() sql.Type             { return sql.VoidType }
func (t *tableAlias) Children() []sql.Expression { return nil }
func (t *tableAlias) String() string             { return t.alias }

func (t *tableAlias) WithChildren(...sql.Expression) (sql.Expression, error) {
	return t, nil
}

// TypeCheck converts an AST expression into a typed descriptor.
func TypeCheck(node parse.Node, tc *TypeCheckCtx) (sql.Expression, error) {
	e, err := tc.check(node, parse.Node{})
	if err != nil {
		return nil, sql.NewSemanticError(node, err)
	}
	if ta, ok := e.(*tableAlias); ok {
		return nil, sql.NewSemanticError(ta.node, sql.ErrInvalidColumn.New(ta.alias))
	}
	if f, ok := e.(*Func); ok && f.Info != nil && f.Info.IsUDTF() && !tc.AllowUDTF {
		return nil, sql.NewSemanticError(node, ErrUDTFNotAllowed.New())
	}
	return e, nil
}

// TypeCheckAll checks a list of expressions.
func TypeCheckAll(nodes []parse.Node, tc *TypeCheckCtx) ([]sql.Expression, error) {
	out := make([]sql.Expression, len(nodes))
	for i, n := range nodes {
		e, err := TypeCheck(n, tc)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (tc *TypeCheckCtx) check(node, parent parse.Node) (sql.Expression, error) {
	if tc.AllowExpressionLookup && node.ChildCount() > 0 {
		if info := tc.RR.GetExpression(node); info != nil {
			return ColumnFromInfo(info), nil
		}
	}

	e, err := tc.checkNode(node, parent)
	if err != nil {
		return nil, sql.NewSemanticError(node, err)
	}
	return e, nil
}

func (tc *TypeCheckCtx) checkNode(node, parent parse.Node) (sql.Expression, error) {
	switch node.Kind() {
	case parse.TokNull:
		return NewNull(), nil
	case parse.Number:
		return ParseNumber(node.Text())
	case parse.StringLiteral:
		return NewString(node.Text()), nil
	case parse.KwTrue:
		return NewBoolean(true), nil
	case parse.KwFalse:
		return NewBoolean(false), nil
	case parse.TokDateLiteral:
		return ParseDateLiteral(literalText(node))
	case parse.TokTimestampLiteral:
		return ParseTimestampLiteral(literalText(node))
	case parse.TokTableOrCol:
		return tc.checkTableOrCol(node, parent)
	case parse.Dot:
		return tc.checkDot(node)
	case parse.LSquare:
		return tc.checkIndex(node)
	case parse.TokFunction, parse.TokFunctionDI, parse.TokFunctionStar:
		return tc.checkFunction(node)
	case parse.TokAllColRef:
		return nil, ErrStarNotAllowed.New()
	case parse.TokSubqueryExpr:
		if tc.SubqueryHandler == nil {
			return nil, ErrSubqueryNotAllowed.New(node.Snippet())
		}
		return tc.SubqueryHandler(node)
	case parse.TokDefaultValue:
		return nil, ErrDefaultNotAllowed.New()
	case parse.KwAnd, parse.KwOr, parse.KwNot, parse.KwLike,
		parse.Equal, parse.EqualNS, parse.NotEqual, parse.LessThan, parse.LessThanOrEqualTo,
		parse.GreaterThan, parse.GreaterThanOrEqualTo,
		parse.Plus, parse.Minus, parse.Star, parse.Divide, parse.Mod:
		return tc.checkOperator(node)
	case parse.Identifier:
		// rlike, regexp and friends arrive as bare operator identifiers
		if node.ChildCount() > 0 {
			return tc.checkCall(node, strings.ToLower(node.Text()), node.Children(), false, false)
		}
	}
	return nil, sql.ErrUnexpectedToken.New(node.Kind())
}

func literalText(node parse.Node) string {
	if node.ChildCount() > 0 {
		return node.Child(0).Text()
	}
	return strings.Trim(node.Text(), "'\"")
}

func (tc *TypeCheckCtx) checkTableOrCol(node, parent parse.Node) (sql.Expression, error) {
	name := parse.UnescapeIdentifier(node.Child(0).Text())
	isAlias := tc.RR.HasTableAlias(name)
	info, err := tc.RR.Get("", name)
	if err != nil {
		return nil, err
	}

	if isAlias && (info == nil || (parent.Valid() && parent.Kind() == parse.Dot)) {
		return &tableAlias{alias: name, node: node}, nil
	}
	if info == nil {
		return nil, sql.ErrInvalidTableOrColumn.New(name, strings.Join(tc.visibleColumns(), ", "))
	}
	tc.Translator.AddColumn(node.Child(0), info.TabAlias, name)
	return ColumnFromInfo(info), nil
}

func (tc *TypeCheckCtx) visibleColumns() []string {
	var names []string
	for _, alias := range tc.RR.TableAliases() {
		for _, c := range tc.RR.FieldMap(alias) {
			if c.Info.IsHidden || alias == "" {
				continue
			}
			names = append(names, alias+"."+c.Alias)
		}
	}
	return names
}

func (tc *TypeCheckCtx) checkDot(node parse.Node) (sql.Expression, error) {
	if node.ChildCount() != 2 {
		return nil, sql.ErrUnexpectedToken.New(node.Kind())
	}
	left, err := tc.check(node.Child(0), node)
	if err != nil {
		return nil, err
	}
	field := parse.UnescapeIdentifier(node.Child(1).Text())

	if ta, ok := left.(*tableAlias); ok {
		info, err := tc.RR.Get(ta.alias, field)
		if err != nil {
			return nil, err
		}
		if info == nil {
			return nil, sql.ErrInvalidColumn.New(ta.alias + "." + field)
		}
		tc.Translator.AddColumn(node.Child(1), ta.alias, field)
		return ColumnFromInfo(info), nil
	}
	return NewField(left, field)
}

func (tc *TypeCheckCtx) checkIndex(node parse.Node) (sql.Expression, error) {
	if node.ChildCount() != 2 {
		return nil, sql.ErrUnexpectedToken.New(node.Kind())
	}
	return tc.checkCall(node, "index", node.Children(), false, false)
}

func (tc *TypeCheckCtx) checkOperator(node parse.Node) (sql.Expression, error) {
	name := node.Kind().String()
	switch {
	case node.Kind() == parse.Minus && node.ChildCount() == 1:
		name = "negative"
	case node.Kind() == parse.Plus && node.ChildCount() == 1:
		name = "positive"
	}
	return tc.checkCall(node, name, node.Children(), false, false)
}

func (tc *TypeCheckCtx) checkFunction(node parse.Node) (sql.Expression, error) {
	if node.ChildCount() == 0 {
		return nil, sql.ErrUnexpectedToken.New(node.Kind())
	}
	nameNode := node.Child(0)
	args := node.Children()[1:]

	if nameNode.Kind().IsTypeName() {
		return tc.checkCast(nameNode, args)
	}

	var hasWindow bool
	var nullTreatment parse.Node
	for len(args) > 0 {
		last := args[len(args)-1]
		switch last.Kind() {
		case parse.TokWindowSpec:
			hasWindow = true
			args = args[:len(args)-1]
			continue
		case parse.TokRespectNulls, parse.TokIgnoreNulls:
			nullTreatment = last
			args = args[:len(args)-1]
			continue
		}
		break
	}

	name := strings.ToLower(parse.UnescapeIdentifier(nameNode.Text()))
	info, ok := tc.Registry.Function(name)
	if !ok {
		return nil, sql.ErrInvalidFunction.New(name)
	}
	if nullTreatment.Valid() && !info.SupportsNullTreatment {
		return nil, sql.ErrNullTreatmentNotSupported.New(name)
	}
	if hasWindow && !tc.AllowWindowing {
		return nil, sql.ErrWindowingNotAllowed.New(name)
	}
	if info.RequiresOver && !hasWindow {
		return nil, sql.ErrMissingOverClause.New(name)
	}

	if hasWindow {
		tc.windowed++
		defer func() { tc.windowed-- }()
	}
	return tc.checkCall(node, name, args, node.Kind() == parse.TokFunctionDI, node.Kind() == parse.TokFunctionStar)
}

func (tc *TypeCheckCtx) checkCast(typeNode parse.Node, args []parse.Node) (sql.Expression, error) {
	if len(args) != 1 {
		return nil, sql.ErrInvalidArgumentCount.New("CAST", "1", len(args))
	}
	target, err := TypeFromNode(typeNode)
	if err != nil {
		return nil, err
	}
	arg, err := tc.check(args[0], parse.Node{})
	if err != nil {
		return nil, err
	}
	from := arg.Type()
	if !from.IsPrimitive() && !from.Equals(target) {
		return nil, sql.ErrInvalidCast.New(from, target)
	}
	cast := NewCast(arg, target)
	if tc.FoldConstants {
		return Fold(cast), nil
	}
	return cast, nil
}

// TypeFromNode reads a type token of a CAST such as (TOK_DECIMAL 10 2).
func TypeFromNode(n parse.Node) (sql.Type, error) {
	intArg := func(i int, def int) int {
		if n.ChildCount() <= i {
			return def
		}
		c, err := ParseNumber(n.Child(i).Text())
		if err != nil {
			return def
		}
		v, _ := sql.IntType.Convert(c.Value)
		return int(v.(int32))
	}
	switch n.Kind() {
	case parse.TokBoolean:
		return sql.BooleanType, nil
	case parse.TokTinyInt:
		return sql.TinyIntType, nil
	case parse.TokSmallInt:
		return sql.SmallIntType, nil
	case parse.TokInt:
		return sql.IntType, nil
	case parse.TokBigInt:
		return sql.BigIntType, nil
	case parse.TokFloat:
		return sql.FloatType, nil
	case parse.TokDouble:
		return sql.DoubleType, nil
	case parse.TokDecimal:
		return sql.DecimalType(intArg(0, 10), intArg(1, 0)), nil
	case parse.TokString:
		return sql.StringType, nil
	case parse.TokVarchar:
		return sql.VarcharType(intArg(0, 65535)), nil
	case parse.TokChar:
		return sql.CharType(intArg(0, 255)), nil
	case parse.TokDate:
		return sql.DateType, nil
	case parse.TokTimestamp:
		return sql.TimestampType, nil
	case parse.TokBinary:
		return sql.BinaryType, nil
	}
	return sql.Type{}, sql.ErrInvalidType.New(n.Text())
}

func (tc *TypeCheckCtx) checkCall(node parse.Node, name string, argNodes []parse.Node, distinct, star bool) (sql.Expression, error) {
	info, ok := tc.Registry.Function(name)
	if !ok {
		return nil, sql.ErrInvalidFunction.New(name)
	}

	if info.IsAggregate() {
		if tc.inAggregate > 0 {
			return nil, sql.ErrNestedAggregate.New(node.Snippet())
		}
		if !tc.AllowAggregates && tc.windowed == 0 {
			return nil, sql.ErrAggregateNotAllowed.New(name)
		}
		tc.inAggregate++
		defer func() { tc.inAggregate-- }()
	}
	if distinct && !info.SupportsDistinct {
		return nil, ErrDistinctNotSupported.New(name)
	}

	var args []sql.Expression
	for _, an := range argNodes {
		if an.Kind() == parse.TokAllColRef {
			if !tc.AllowAllColRef {
				return nil, ErrStarNotAllowed.New()
			}
			cols, err := tc.expandStar(an)
			if err != nil {
				return nil, err
			}
			args = append(args, cols...)
			continue
		}
		a, err := tc.check(an, node)
		if err != nil {
			return nil, err
		}
		if ta, ok := a.(*tableAlias); ok {
			return nil, sql.ErrInvalidColumn.New(ta.alias)
		}
		if f, ok := a.(*Func); ok && f.Info != nil && f.Info.IsUDTF() {
			return nil, ErrUDTFNotAllowed.New()
		}
		args = append(args, a)
	}

	if !star && !info.AcceptsArgs(len(args)) {
		return nil, sql.ErrInvalidArgumentCount.New(name, argCountString(info), len(args))
	}

	args, err := coerceArgs(info, args)
	if err != nil {
		return nil, err
	}

	types := make([]sql.Type, len(args))
	for i, a := range args {
		types[i] = a.Type()
	}
	var typ sql.Type
	if info.ReturnType != nil {
		typ, err = info.ReturnType(types)
		if err != nil {
			return nil, err
		}
	}
	if name == "named_struct" {
		if typ, err = namedStructFields(args); err != nil {
			return nil, err
		}
	}

	f := &Func{Name: info.Name, Info: info, Args: args, Typ: typ, Distinct: distinct, Star: star}
	if tc.FoldConstants {
		return Fold(f), nil
	}
	return f, nil
}

func argCountString(info *sql.FunctionInfo) string {
	switch {
	case info.MaxArgs == sql.AnyArgs:
		return "at least " + strconv.Itoa(info.MinArgs)
	case info.MinArgs == info.MaxArgs:
		return strconv.Itoa(info.MinArgs)
	}
	return strconv.Itoa(info.MinArgs) + " to " + strconv.Itoa(info.MaxArgs)
}

// coerceArgs inserts the implicit casts comparisons need.
func coerceArgs(info *sql.FunctionInfo, args []sql.Expression) ([]sql.Expression, error) {
	switch info.Name {
	case "=", "<=>", "<>", "<", "<=", ">", ">=":
		common, ok := sql.CommonTypeForComparison(args[0].Type(), args[1].Type())
		if !ok {
			return nil, sql.ErrNoCommonType.New(args[0].Type(), args[1].Type(), info.Name)
		}
		return []sql.Expression{NewCast(args[0], common), NewCast(args[1], common)}, nil
	case "in":
		common := args[0].Type()
		for _, a := range args[1:] {
			t, ok := sql.CommonTypeForComparison(common, a.Type())
			if !ok {
				return nil, sql.ErrNoCommonType.New(common, a.Type(), "in")
			}
			common = t
		}
		out := make([]sql.Expression, len(args))
		for i, a := range args {
			out[i] = NewCast(a, common)
		}
		return out, nil
	case "between":
		common := args[1].Type()
		for _, a := range args[2:] {
			t, ok := sql.CommonTypeForComparison(common, a.Type())
			if !ok {
				return nil, sql.ErrNoCommonType.New(common, a.Type(), "between")
			}
			common = t
		}
		out := []sql.Expression{args[0]}
		for _, a := range args[1:] {
			out = append(out, NewCast(a, common))
		}
		return out, nil
	case "and", "or", "not":
		out := make([]sql.Expression, len(args))
		for i, a := range args {
			if a.Type().Kind == sql.Void {
				out[i] = NewCast(a, sql.BooleanType)
			} else {
				out[i] = a
			}
		}
		return out, nil
	}
	return args, nil
}

func namedStructFields(args []sql.Expression) (sql.Type, error) {
	fields := make([]sql.StructField, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		c, ok := args[i].(*Constant)
		if !ok {
			return sql.Type{}, ErrNonConstantArgument.New(i+1, "named_struct")
		}
		name, ok := c.Value.(string)
		if !ok {
			return sql.Type{}, ErrNonConstantArgument.New(i+1, "named_struct")
		}
		fields = append(fields, sql.StructField{Name: strings.ToLower(name), Type: args[i+1].Type()})
	}
	return sql.StructOf(fields...), nil
}

func (tc *TypeCheckCtx) expandStar(node parse.Node) ([]sql.Expression, error) {
	tab := ""
	if node.ChildCount() > 0 {
		tab = parse.UnescapeIdentifier(node.Child(0).Child(0).Text())
	}
	cols, err := tc.RR.ExpandColumns(tab, ".*")
	if err != nil {
		return nil, err
	}
	out := make([]sql.Expression, len(cols))
	for i, c := range cols {
		out[i] = ColumnFromInfo(c.Info)
	}
	return out, nil
}

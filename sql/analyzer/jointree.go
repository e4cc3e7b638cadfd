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
	"sort"
	"strings"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/plan"
)

// JoinCond is one join condition between two positions of a join tree.
type JoinCond struct {
	Left  int
	Right int
	Type  plan.JoinType
	// Preserved marks a UNIQUEJOIN input declared with PRESERVE.
	Preserved bool
}

// JoinTree is one level of a left-deep join. Position 0 is the left input,
// a base source or the nested JoinSrc; every other position is a base
// source.
type JoinTree struct {
	LeftAlias    string
	LeftAliases  []string
	RightAliases []string
	// BaseSrc is the source alias per position, "" for the nested join.
	BaseSrc []string
	JoinSrc *JoinTree
	Conds   []JoinCond

	// Exprs holds the equi-join keys per position, aligned by key index.
	Exprs [][]parse.Node
	// Filters are single-position ON conditions kept at the join so outer
	// rows survive. FilterMap pairs each filtered position with the
	// position it is joined against and the number of its filters.
	Filters   [][]parse.Node
	FilterMap [][]int
	// FiltersForPushing are single-position conditions evaluated below
	// the join.
	FiltersForPushing [][]parse.Node
	// PostJoinFilters refer to both sides without being equi-join keys.
	PostJoinFilters []parse.Node
	NullSafes       []bool

	NoOuterJoin bool
	NoSemiJoin  bool
	// RHSSemijoin maps the right alias of a semijoin to the keys its input
	// is de-duplicated on.
	RHSSemijoin map[string][]parse.Node
	// NotInCheck marks the join of a NOT IN rewrite; it keeps the not-null
	// key filters although the join is outer.
	NotInCheck bool
	// SubqueryRewrite marks a join generated for a subquery predicate;
	// its keyless joins are not cartesian products of user tables.
	SubqueryRewrite bool
	UsingColumns    []string
	Node            parse.Node
}

func newJoinTree(node parse.Node, positions int) *JoinTree {
	return &JoinTree{
		BaseSrc:           make([]string, positions),
		Exprs:             make([][]parse.Node, positions),
		Filters:           make([][]parse.Node, positions),
		FilterMap:         make([][]int, positions),
		FiltersForPushing: make([][]parse.Node, positions),
		RHSSemijoin:       make(map[string][]parse.Node),
		NoOuterJoin:       true,
		NoSemiJoin:        true,
		Node:              node,
	}
}

// Aliases returns every base source alias under the tree, left to right.
func (t *JoinTree) Aliases() []string {
	return append(append([]string(nil), t.LeftAliases...), t.RightAliases...)
}

// Positions returns the number of join inputs.
func (t *JoinTree) Positions() int {
	return len(t.BaseSrc)
}

// Type returns the join type of the first condition.
func (t *JoinTree) Type() plan.JoinType {
	if len(t.Conds) == 0 {
		return plan.InnerJoin
	}
	return t.Conds[0].Type
}

// Position returns the input position a base alias belongs to, or -1.
func (t *JoinTree) Position(alias string) int {
	for pos, src := range t.BaseSrc {
		if src == alias {
			return pos
		}
	}
	if t.JoinSrc != nil && containsString(t.JoinSrc.Aliases(), alias) {
		return 0
	}
	return -1
}

// sourceOfAlias maps a qualifier used in a condition to the base source
// that exposes it: the source alias itself, or a lateral view alias bound
// in the source's resolver.
func (t *JoinTree) sourceOfAlias(q string, srcRR map[string]*sql.RowResolver) (string, bool) {
	for _, alias := range t.Aliases() {
		if alias == q {
			return alias, true
		}
	}
	for _, alias := range t.Aliases() {
		if rr, ok := srcRR[alias]; ok && rr.HasTableAlias(q) {
			return alias, true
		}
	}
	return "", false
}

func (t *JoinTree) columnSource(col string, srcRR map[string]*sql.RowResolver) (string, error) {
	var found []string
	for _, alias := range t.Aliases() {
		rr, ok := srcRR[alias]
		if !ok {
			continue
		}
		if info, _ := rr.Get("", col); info != nil {
			found = append(found, alias)
		}
	}
	switch len(found) {
	case 0:
		return "", sql.ErrInvalidTableOrColumn.New(col, strings.Join(t.Aliases(), ", "))
	case 1:
		return found[0], nil
	}
	return "", sql.ErrAmbiguousColumn.New(col, strings.Join(found, ", "))
}

// conditionAliases collects the base sources an expression refers to.
func (t *JoinTree) conditionAliases(n parse.Node, srcRR map[string]*sql.RowResolver, out map[string]bool) error {
	switch n.Kind() {
	case parse.TokSubqueryExpr:
		return sql.NewSemanticError(n, ErrUnsupportedSubquery.New(n.Snippet(), "subqueries are not supported in JOIN conditions"))
	case parse.TokTableOrCol:
		src, err := t.columnSource(parse.UnescapeIdentifier(n.Child(0).Text()), srcRR)
		if err != nil {
			return sql.NewSemanticError(n, err)
		}
		out[src] = true
		return nil
	case parse.Dot:
		if n.Child(0).Kind() == parse.TokTableOrCol {
			q := parse.UnescapeIdentifier(n.Child(0).Child(0).Text())
			if src, ok := t.sourceOfAlias(q, srcRR); ok {
				out[src] = true
				return nil
			}
		}
		return t.conditionAliases(n.Child(0), srcRR, out)
	}
	for _, child := range n.Children() {
		if err := t.conditionAliases(child, srcRR, out); err != nil {
			return err
		}
	}
	return nil
}

// sides reports whether the aliases touch the left and the right inputs.
func (t *JoinTree) sides(aliases map[string]bool) (left, right bool) {
	for a := range aliases {
		if containsString(t.LeftAliases, a) {
			left = true
		} else {
			right = true
		}
	}
	return left, right
}

// joinSourceAlias returns the alias of a FROM source usable as a join
// input.
func joinSourceAlias(n parse.Node) (string, bool) {
	switch n.Kind() {
	case parse.TokTabRef:
		_, name := tableNameFromNode(n.Child(0))
		if a, ok := n.FirstChildOfKind(parse.TokTabAlias); ok {
			return parse.UnescapeIdentifier(a.Child(0).Text()), true
		}
		return name, true
	case parse.TokSubquery:
		if n.ChildCount() == 2 {
			return parse.UnescapeIdentifier(n.Child(1).Text()), true
		}
	case parse.TokPTBLFunction:
		if ptfHasAlias(n) {
			return parse.UnescapeIdentifier(n.Child(1).Text()), true
		}
	}
	return "", false
}

func joinTypeOf(k parse.Kind) plan.JoinType {
	switch k {
	case parse.TokLeftOuterJoin:
		return plan.LeftOuterJoin
	case parse.TokRightOuterJoin:
		return plan.RightOuterJoin
	case parse.TokFullOuterJoin:
		return plan.FullOuterJoin
	case parse.TokLeftSemiJoin:
		return plan.LeftSemiJoin
	case parse.TokLeftAntiSemiJoin:
		return plan.LeftAntiSemiJoin
	case parse.TokUniqueJoin:
		return plan.UniqueJoin
	}
	return plan.InnerJoin
}

// genJoinTree builds the join tree of a FROM join. srcRR holds the output
// resolver of every base source, used to attribute unqualified columns.
func (c *Compilation) genJoinTree(node parse.Node, srcRR map[string]*sql.RowResolver) (*JoinTree, error) {
	if node.Kind() == parse.TokUniqueJoin {
		return c.genUniqueJoinTree(node, srcRR)
	}
	if node.ChildCount() < 2 {
		return nil, sql.NewSemanticError(node, ErrInvalidJoinInput.New(node.Snippet()))
	}
	typ := joinTypeOf(node.Kind())
	tree := newJoinTree(node, 2)
	tree.Conds = []JoinCond{{Left: 0, Right: 1, Type: typ}}
	tree.NoOuterJoin = !typ.IsOuter()
	tree.NoSemiJoin = !typ.IsSemi()

	left, right := node.Child(0), node.Child(1)
	if left.Kind().IsJoin() {
		sub, err := c.genJoinTree(left, srcRR)
		if err != nil {
			return nil, err
		}
		tree.JoinSrc = sub
		tree.LeftAliases = sub.Aliases()
	} else {
		alias, ok := joinSourceAlias(left)
		if !ok {
			return nil, sql.NewSemanticError(left, ErrInvalidJoinInput.New(left.Snippet()))
		}
		tree.LeftAlias = alias
		tree.LeftAliases = []string{alias}
		tree.BaseSrc[0] = alias
	}

	alias, ok := joinSourceAlias(right)
	if !ok {
		return nil, sql.NewSemanticError(right, ErrInvalidJoinInput.New(right.Snippet()))
	}
	tree.RightAliases = []string{alias}
	tree.BaseSrc[1] = alias

	if node.ChildCount() > 2 {
		cond := node.Child(2)
		var err error
		if cond.Kind() == parse.TokTabColName {
			err = c.parseUsingColumns(tree, cond, srcRR)
		} else {
			err = c.parseJoinCondition(tree, cond, srcRR)
		}
		if err != nil {
			return nil, err
		}
	}
	if typ.IsSemi() {
		tree.RHSSemijoin[alias] = tree.Exprs[1]
	}
	tree.buildFilterMap()
	return tree, nil
}

// genUniqueJoinTree builds the n-ary tree of
// (TOK_UNIQUEJOIN [PRESERVE] source (TOK_EXPLIST keys) ...).
func (c *Compilation) genUniqueJoinTree(node parse.Node, srcRR map[string]*sql.RowResolver) (*JoinTree, error) {
	var aliases []string
	var keys [][]parse.Node
	var preserved []bool
	preserve := false
	for _, child := range node.Children() {
		switch {
		case child.Kind() == parse.KwPreserve:
			preserve = true
		case child.Kind() == parse.TokExpList:
			if len(keys) != len(aliases)-1 {
				return nil, sql.NewSemanticError(child, ErrInvalidJoinInput.New(child.Snippet()))
			}
			keys = append(keys, child.Children())
		default:
			alias, ok := joinSourceAlias(child)
			if !ok {
				return nil, sql.NewSemanticError(child, ErrInvalidJoinInput.New(child.Snippet()))
			}
			aliases = append(aliases, alias)
			preserved = append(preserved, preserve)
			preserve = false
		}
	}
	if len(aliases) < 2 || len(keys) != len(aliases) {
		return nil, sql.NewSemanticError(node, ErrInvalidJoinInput.New(node.Snippet()))
	}

	tree := newJoinTree(node, len(aliases))
	tree.NoOuterJoin = false
	tree.LeftAlias = aliases[0]
	tree.LeftAliases = aliases[:1]
	tree.RightAliases = aliases[1:]
	copy(tree.BaseSrc, aliases)
	for i := range aliases {
		if len(keys[i]) != len(keys[0]) {
			return nil, sql.NewSemanticError(node.Child(0), ErrInvalidJoinCondition.New(node.Snippet()))
		}
		tree.Exprs[i] = keys[i]
		tree.Conds = append(tree.Conds, JoinCond{Left: i, Right: i, Type: plan.UniqueJoin, Preserved: preserved[i]})
	}
	for range keys[0] {
		tree.NullSafes = append(tree.NullSafes, false)
	}
	return tree, nil
}

// parseUsingColumns turns JOIN ... USING (cols) into equi-join keys on
// the first left source and the right source exposing each column.
func (c *Compilation) parseUsingColumns(tree *JoinTree, cond parse.Node, srcRR map[string]*sql.RowResolver) error {
	ar := cond.Arena()
	find := func(aliases []string, col string) (string, bool) {
		for _, a := range aliases {
			if rr, ok := srcRR[a]; ok {
				if info, _ := rr.Get(a, col); info != nil {
					return a, true
				}
			}
		}
		return "", false
	}
	for _, child := range cond.Children() {
		col := parse.UnescapeIdentifier(child.Text())
		l, lok := find(tree.LeftAliases, col)
		r, rok := find(tree.RightAliases, col)
		if !lok || !rok {
			return sql.NewSemanticError(child, ErrInvalidUsingColumn.New(col))
		}
		tree.addKey(qualifiedRef(ar, l, col), qualifiedRef(ar, r, col), false)
		tree.UsingColumns = append(tree.UsingColumns, col)
	}
	return nil
}

func (t *JoinTree) addKey(left, right parse.Node, nullSafe bool) {
	t.Exprs[0] = append(t.Exprs[0], left)
	t.Exprs[1] = append(t.Exprs[1], right)
	t.NullSafes = append(t.NullSafes, nullSafe)
}

// parseJoinCondition classifies the conjuncts of an ON condition into
// equi-join keys, single-side filters and post-join filters.
func (c *Compilation) parseJoinCondition(tree *JoinTree, cond parse.Node, srcRR map[string]*sql.RowResolver) error {
	if cond.Kind() == parse.KwAnd {
		for _, child := range cond.Children() {
			if err := c.parseJoinCondition(tree, child, srcRR); err != nil {
				return err
			}
		}
		return nil
	}

	if cond.Kind() == parse.Equal || cond.Kind() == parse.EqualNS {
		l, r := make(map[string]bool), make(map[string]bool)
		if err := tree.conditionAliases(cond.Child(0), srcRR, l); err != nil {
			return err
		}
		if err := tree.conditionAliases(cond.Child(1), srcRR, r); err != nil {
			return err
		}
		lLeft, lRight := tree.sides(l)
		rLeft, rRight := tree.sides(r)
		if lLeft && lRight {
			return sql.NewSemanticError(cond.Child(0), ErrInvalidJoinCondition.New(cond.Child(0).Snippet()))
		}
		if rLeft && rRight {
			return sql.NewSemanticError(cond.Child(1), ErrInvalidJoinCondition.New(cond.Child(1).Snippet()))
		}
		nullSafe := cond.Kind() == parse.EqualNS
		switch {
		case lLeft && rRight:
			tree.addKey(cond.Child(0), cond.Child(1), nullSafe)
			return nil
		case lRight && rLeft:
			tree.addKey(cond.Child(1), cond.Child(0), nullSafe)
			return nil
		}
	}

	aliases := make(map[string]bool)
	if err := tree.conditionAliases(cond, srcRR, aliases); err != nil {
		return err
	}
	left, right := tree.sides(aliases)
	typ := tree.Type()
	switch {
	case left && right:
		tree.PostJoinFilters = append(tree.PostJoinFilters, cond)
	case right:
		if typ == plan.RightOuterJoin || typ == plan.FullOuterJoin {
			tree.Filters[1] = append(tree.Filters[1], cond)
		} else {
			tree.FiltersForPushing[1] = append(tree.FiltersForPushing[1], cond)
		}
	default:
		if typ == plan.LeftOuterJoin || typ == plan.FullOuterJoin {
			tree.Filters[0] = append(tree.Filters[0], cond)
		} else {
			tree.FiltersForPushing[0] = append(tree.FiltersForPushing[0], cond)
		}
	}
	return nil
}

// buildFilterMap pairs every position retaining filters with the
// position of its join condition.
func (t *JoinTree) buildFilterMap() {
	for pos, fs := range t.Filters {
		if len(fs) == 0 {
			continue
		}
		other := 1
		if pos == 1 {
			other = 0
		}
		t.FilterMap[pos] = []int{other, len(fs)}
	}
}

// pushWhereFilters moves the WHERE conjuncts that refer to a single base
// source of an inner-only join tree below that source's join input. It
// returns the conjuncts left for the filter over the join.
func (c *Compilation) pushWhereFilters(tree *JoinTree, where parse.Node, srcRR map[string]*sql.RowResolver) []parse.Node {
	var residual []parse.Node
	for _, conj := range splitAnd(where) {
		if !pushable(conj) || !tree.innerOnly() {
			residual = append(residual, conj)
			continue
		}
		aliases := make(map[string]bool)
		if err := tree.conditionAliases(conj, srcRR, aliases); err != nil || len(aliases) != 1 {
			residual = append(residual, conj)
			continue
		}
		var alias string
		for a := range aliases {
			alias = a
		}
		if !tree.pushTo(alias, conj) {
			residual = append(residual, conj)
		}
	}
	return residual
}

func (t *JoinTree) innerOnly() bool {
	for cur := t; cur != nil; cur = cur.JoinSrc {
		for _, cond := range cur.Conds {
			if cond.Type != plan.InnerJoin {
				return false
			}
		}
	}
	return true
}

// pushTo adds a filter to the base position of alias, descending into
// nested trees.
func (t *JoinTree) pushTo(alias string, conj parse.Node) bool {
	for pos, src := range t.BaseSrc {
		if src == alias {
			t.FiltersForPushing[pos] = append(t.FiltersForPushing[pos], conj)
			return true
		}
	}
	if t.JoinSrc != nil {
		return t.JoinSrc.pushTo(alias, conj)
	}
	return false
}

// pushable rejects predicates that must run after the join: subqueries,
// aggregates and windowed calls.
func pushable(n parse.Node) bool {
	ok := true
	n.Walk(func(x parse.Node) bool {
		if x.Kind() == parse.TokSubqueryExpr {
			ok = false
		}
		if _, windowed := windowSpecOf(x); windowed && (x.Kind() == parse.TokFunction || x.Kind() == parse.TokFunctionStar || x.Kind() == parse.TokFunctionDI) {
			ok = false
		}
		if x.Kind() == parse.TokFunction && x.ChildCount() > 0 && x.Child(0).Kind() == parse.Identifier && isNondeterministicName(x.Child(0).Text()) {
			ok = false
		}
		return ok
	})
	return ok
}

func isNondeterministicName(name string) bool {
	switch strings.ToLower(name) {
	case "rand", "uuid", "reflect":
		return true
	}
	return false
}

func splitAnd(n parse.Node) []parse.Node {
	if n.Kind() == parse.KwAnd {
		var out []parse.Node
		for _, c := range n.Children() {
			out = append(out, splitAnd(c)...)
		}
		return out
	}
	return []parse.Node{n}
}

func joinAnd(nodes []parse.Node) parse.Node {
	switch len(nodes) {
	case 0:
		return parse.Node{}
	case 1:
		return nodes[0]
	}
	ar := nodes[0].Arena()
	return ar.New(parse.KwAnd, "", nodes...)
}

func normalizedKeys(nodes []parse.Node) []string {
	keys := make([]string, len(nodes))
	for i, n := range nodes {
		keys[i] = n.Normalized()
	}
	sort.Strings(keys)
	return keys
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

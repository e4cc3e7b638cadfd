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
	"github.com/difin/hive-sub000/sql/plan"
)

// mergeJoinTrees folds adjacent levels of a left-deep join tree into
// n-ary joins, innermost pair first. Levels that cannot be merged stay
// nested.
func (c *Compilation) mergeJoinTrees(qb *QB, srcRR map[string]*sql.RowResolver) error {
	var chain []*JoinTree
	for t := qb.JoinTree; t != nil; t = t.JoinSrc {
		chain = append(chain, t)
	}
	limit := c.Conf.GetInt(sql.ConfOuterJoinMergeLimit)
	for i := len(chain) - 2; i >= 0; i-- {
		node, target := chain[i], chain[i+1]
		merged, err := mergeJoins(node, target, srcRR, limit)
		if err != nil {
			return err
		}
		if !merged {
			continue
		}
		if i == 0 {
			qb.JoinTree = target
		} else {
			chain[i-1].JoinSrc = target
		}
		chain[i] = target
	}
	return nil
}

// mergePosition returns the position of target whose keys are a
// permutation of node's left keys, with the permutation mapping node key
// k to target key perm[k].
func mergePosition(node, target *JoinTree) (int, []int) {
	if len(node.Exprs[0]) == 0 {
		return -1, nil
	}
	want := normalizedKeys(node.Exprs[0])
	for pos := range target.BaseSrc {
		keys := target.Exprs[pos]
		if len(keys) != len(node.Exprs[0]) {
			continue
		}
		got := normalizedKeys(keys)
		equal := true
		for k := range want {
			if want[k] != got[k] {
				equal = false
				break
			}
		}
		if !equal {
			continue
		}
		perm := make([]int, len(keys))
		used := make([]bool, len(keys))
		for k, n := range node.Exprs[0] {
			for j, tk := range keys {
				if !used[j] && tk.Normalized() == n.Normalized() {
					perm[k], used[j] = j, true
					break
				}
			}
		}
		return pos, perm
	}
	return -1, nil
}

func joinTypesMatch(node, target *JoinTree) bool {
	typ := node.Type()
	if typ == plan.UniqueJoin {
		return false
	}
	for _, t := range []*JoinTree{node, target} {
		for _, cond := range t.Conds {
			if cond.Type != typ {
				return false
			}
		}
	}
	return true
}

// singlePosition reports whether every filter refers to base sources of
// one position of target.
func singlePosition(target *JoinTree, filters [][]parse.Node, pos int, srcRR map[string]*sql.RowResolver) bool {
	for _, fs := range filters {
		for _, f := range fs {
			aliases := make(map[string]bool)
			if err := target.conditionAliases(f, srcRR, aliases); err != nil {
				return false
			}
			for a := range aliases {
				if target.Position(a) != pos {
					return false
				}
			}
		}
	}
	return true
}

// mergeJoins folds node into target, its left input. It reports whether
// the merge happened.
func mergeJoins(node, target *JoinTree, srcRR map[string]*sql.RowResolver, limit int) (bool, error) {
	if !joinTypesMatch(node, target) {
		return false, nil
	}
	typ := node.Type()
	if (typ.IsOuter() || typ.IsSemi()) && (len(node.PostJoinFilters) > 0 || len(target.PostJoinFilters) > 0) {
		return false, nil
	}
	pos, perm := mergePosition(node, target)
	if pos < 0 {
		return false, nil
	}
	for k, j := range perm {
		if node.NullSafes[k] != target.NullSafes[j] {
			return false, nil
		}
	}
	if !singlePosition(target, [][]parse.Node{node.FiltersForPushing[0], node.Filters[0]}, pos, srcRR) {
		return false, nil
	}
	if typ.IsOuter() && target.Positions()+node.Positions()-1 > limit {
		return false, ErrOuterJoinTooManyAliases.New(limit)
	}

	target.FiltersForPushing[pos] = append(target.FiltersForPushing[pos], node.FiltersForPushing[0]...)
	if len(node.Filters[0]) > 0 {
		target.Filters[pos] = append(target.Filters[pos], node.Filters[0]...)
		target.FilterMap[pos] = append(target.FilterMap[pos], target.Positions(), len(node.Filters[0]))
	}

	for rpos := 1; rpos < node.Positions(); rpos++ {
		newPos := target.Positions()
		keys := make([]parse.Node, len(perm))
		for k, j := range perm {
			keys[j] = node.Exprs[rpos][k]
		}
		target.BaseSrc = append(target.BaseSrc, node.BaseSrc[rpos])
		target.Exprs = append(target.Exprs, keys)
		target.Filters = append(target.Filters, node.Filters[rpos])
		target.FiltersForPushing = append(target.FiltersForPushing, node.FiltersForPushing[rpos])
		var fm []int
		if n := len(node.Filters[rpos]); n > 0 {
			fm = []int{pos, n}
		}
		target.FilterMap = append(target.FilterMap, fm)
		target.Conds = append(target.Conds, JoinCond{Left: pos, Right: newPos, Type: typ})
	}
	target.RightAliases = append(target.RightAliases, node.RightAliases...)
	target.PostJoinFilters = append(target.PostJoinFilters, node.PostJoinFilters...)
	target.NoOuterJoin = target.NoOuterJoin && node.NoOuterJoin
	target.NoSemiJoin = target.NoSemiJoin && node.NoSemiJoin
	target.NotInCheck = target.NotInCheck || node.NotInCheck
	target.UsingColumns = append(target.UsingColumns, node.UsingColumns...)
	for alias, keys := range node.RHSSemijoin {
		target.RHSSemijoin[alias] = keys
	}
	return true, nil
}

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

const (
	// groupingIDColumn is the synthetic key identifying the grouping set
	// of a row.
	groupingIDColumn = "grouping__id"
	// maxGroupingKeys bounds the keys of a GROUP BY with grouping sets;
	// the grouping id is a 64 bit mask.
	maxGroupingKeys = 63
)

// groupingSets returns one mask per grouping set of a GROUP BY in clause
// order, nil for a plain GROUP BY. Bit n-1-i of a mask is set when key i
// is rolled up to NULL in that set.
func groupingSets(kind GroupingKind, gby parse.Node, keys []parse.Node) ([]int64, error) {
	if kind == PlainGrouping {
		return nil, nil
	}
	n := len(keys)
	if n > maxGroupingKeys {
		return nil, sql.NewSemanticError(gby, ErrGroupingSetsTooLarge.New(maxGroupingKeys, n))
	}
	full := int64(1)<<uint(n) - 1

	var masks []int64
	add := func(m int64) {
		for _, x := range masks {
			if x == m {
				return
			}
		}
		masks = append(masks, m)
	}

	switch kind {
	case RollupGrouping:
		for i := 0; i <= n; i++ {
			add(int64(1)<<uint(i) - 1)
		}
	case CubeGrouping:
		for m := int64(0); m <= full; m++ {
			add(m)
		}
	case GroupingSetsGrouping:
		for _, set := range gby.Children() {
			if set.Kind() != parse.TokGroupingSetsExpression {
				continue
			}
			mask := full
			for _, k := range set.Children() {
				i := indexOfNode(keys, k)
				if i < 0 {
					return nil, sql.NewSemanticError(k, ErrGroupingSetExpression.New(k.Snippet()))
				}
				mask &^= int64(1) << uint(n-1-i)
			}
			add(mask)
		}
	}

	degenerate := true
	for _, m := range masks {
		if m != 0 {
			degenerate = false
			break
		}
	}
	if degenerate {
		return nil, sql.NewSemanticError(gby, ErrGroupingSetsEmpty.New())
	}
	return masks, nil
}

// rewriteGroupingCalls turns grouping(key) in the select list and HAVING
// clause into grouping(grouping__id, bit), which tests the rolled up bit
// of key. Without grouping sets no key is ever rolled up and the call is
// the constant 0.
func rewriteGroupingCalls(dest *Destination, keys []parse.Node, hasSets bool) error {
	var roots []parse.Node
	for _, se := range dest.SelectExprs() {
		roots = append(roots, se.Child(0))
	}
	if having, ok := dest.Clause(HavingClause); ok {
		roots = append(roots, having)
	}

	var err error
	visit := func(n parse.Node) bool {
		if err != nil {
			return false
		}
		if !isGroupingCall(n) {
			return true
		}
		args := n.Children()[1:]
		if len(args) == 2 && isGroupingIDRef(args[0]) {
			return false
		}
		if len(args) != 1 {
			err = sql.NewSemanticError(n, sql.ErrInvalidArgumentCount.New("grouping", "1", len(args)))
			return false
		}
		i := indexOfNode(keys, args[0])
		if i < 0 {
			err = sql.NewSemanticError(args[0], ErrGroupingFunction.New(args[0].Snippet()))
			return false
		}
		ar := n.Arena()
		if !hasSets {
			n.Rebind(ar.New(parse.Number, "0L"))
			return false
		}
		bit := strconv.Itoa(len(keys) - 1 - i)
		n.Rebind(ar.New(parse.TokFunction, "",
			ar.New(parse.Identifier, "grouping"),
			ar.New(parse.TokTableOrCol, "", ar.New(parse.Identifier, groupingIDColumn)),
			ar.New(parse.Number, bit)))
		return false
	}
	for _, r := range roots {
		r.Walk(visit)
		if err != nil {
			return err
		}
	}
	return nil
}

func isGroupingCall(n parse.Node) bool {
	return n.Kind() == parse.TokFunction && n.ChildCount() > 0 &&
		n.Child(0).Kind() == parse.Identifier &&
		strings.EqualFold(parse.UnescapeIdentifier(n.Child(0).Text()), "grouping")
}

func isGroupingIDRef(n parse.Node) bool {
	return n.Kind() == parse.TokTableOrCol &&
		strings.EqualFold(parse.UnescapeIdentifier(n.Child(0).Text()), groupingIDColumn)
}

// indexOfNode finds n among nodes by normalized text.
func indexOfNode(nodes []parse.Node, n parse.Node) int {
	key := n.Normalized()
	for i, x := range nodes {
		if x.Normalized() == key {
			return i
		}
	}
	return -1
}

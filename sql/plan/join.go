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
	"fmt"
	"strings"

	"github.com/difin/hive-sub000/sql"
)

// JoinType is the kind of one pairwise join condition.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftOuterJoin
	RightOuterJoin
	FullOuterJoin
	LeftSemiJoin
	LeftAntiSemiJoin
	UniqueJoin
)

var joinTypeNames = map[JoinType]string{
	InnerJoin:        "INNER",
	LeftOuterJoin:    "LEFT_OUTER",
	RightOuterJoin:   "RIGHT_OUTER",
	FullOuterJoin:    "FULL_OUTER",
	LeftSemiJoin:     "LEFT_SEMI",
	LeftAntiSemiJoin: "ANTI",
	UniqueJoin:       "UNIQUE",
}

func (t JoinType) String() string {
	return joinTypeNames[t]
}

// IsOuter reports whether the join preserves unmatched rows of a side.
func (t JoinType) IsOuter() bool {
	return t == LeftOuterJoin || t == RightOuterJoin || t == FullOuterJoin
}

// IsSemi reports whether the join only filters its left input.
func (t JoinType) IsSemi() bool {
	return t == LeftSemiJoin || t == LeftAntiSemiJoin
}

// JoinCondDesc is one pairwise join between input positions.
type JoinCondDesc struct {
	Left  int
	Right int
	Type  JoinType
	// Preserved is set for UNIQUEJOIN inputs marked PRESERVE.
	Preserved bool
}

func (c JoinCondDesc) String() string {
	return fmt.Sprintf("%s %d to %d", c.Type, c.Left, c.Right)
}

// JoinDesc merges the tagged outputs of its reduce sink parents.
type JoinDesc struct {
	Conds []JoinCondDesc
	// Keys are the equi-join keys per input position.
	Keys [][]sql.Expression
	// Exprs are the emitted value expressions per input position.
	Exprs [][]sql.Expression
	// Filters are the single side conditions retained at the join, per
	// input position.
	Filters [][]sql.Expression
	// FilterMap lists, per input position, pairs of (other position,
	// number of filters of this position that apply to it).
	FilterMap [][]int
	// ResidualFilters reference several inputs and are not equi-keys.
	ResidualFilters []sql.Expression
	// NullSafes has one entry per key; true for <=> keys.
	NullSafes   []bool
	TagOrder    []int
	NoOuterJoin bool
	// BaseSrc are the aliases of the inputs, empty for nested joins.
	BaseSrc []string
	Columns []string
	// OmittedPositions are the input positions whose columns are not
	// emitted, i.e. the right side of semi joins.
	OmittedPositions []int
}

// OperatorType implements the Descriptor interface.
func (d *JoinDesc) OperatorType() OperatorType { return JoinOp }

// OutputColumnNames implements the Descriptor interface.
func (d *JoinDesc) OutputColumnNames() []string { return d.Columns }

// JoinTypes returns the distinct condition types in order of appearance.
func (d *JoinDesc) JoinTypes() []JoinType {
	var types []JoinType
	seen := map[JoinType]bool{}
	for _, c := range d.Conds {
		if !seen[c.Type] {
			seen[c.Type] = true
			types = append(types, c.Type)
		}
	}
	return types
}

func (d *JoinDesc) String() string {
	conds := make([]string, len(d.Conds))
	for i, c := range d.Conds {
		conds[i] = c.String()
	}
	keys := make([]string, len(d.Keys))
	for i, k := range d.Keys {
		keys[i] = fmt.Sprintf("%d: %s", i, exprList(k))
	}
	s := fmt.Sprintf("Join(%s, keys: {%s}", strings.Join(conds, ", "), strings.Join(keys, "; "))
	var filters []string
	for i, f := range d.Filters {
		if len(f) > 0 {
			filters = append(filters, fmt.Sprintf("%d: %s", i, exprList(f)))
		}
	}
	if len(filters) > 0 {
		s += ", filters: {" + strings.Join(filters, "; ") + "}"
	}
	if len(d.ResidualFilters) > 0 {
		s += ", residual: " + exprList(d.ResidualFilters)
	}
	return s + ")"
}

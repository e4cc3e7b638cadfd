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

package sql

import (
	"fmt"
	"strings"
)

// ColumnInfo describes one column of an operator's output row. The same
// instance may be shared by several row resolvers when a column passes
// through an operator unchanged, so it is never mutated once the operator
// that produced it is finalized.
type ColumnInfo struct {
	// InternalName is the positional name unique within one operator
	// output, e.g. "_col3" or "KEY.reducesinkkey0".
	InternalName string
	// Type is the fully resolved type of the column.
	Type Type
	// TabAlias is the alias of the table the column originates from, or
	// empty for derived columns.
	TabAlias string
	// Alias is the user-visible name the column was produced under.
	Alias string
	// IsVirtual marks virtual columns such as INPUT__FILE__NAME.
	IsVirtual bool
	// IsPartition marks partition columns.
	IsPartition bool
	// IsHidden columns are not expanded by SELECT *.
	IsHidden bool
	// IsSkewed marks skewed columns of list-bucketed tables.
	IsSkewed bool
	// NotNull is set when a constraint guarantees the column is never
	// NULL.
	NotNull bool
}

// NewColumnInfo creates a column.
func NewColumnInfo(internalName string, typ Type, tabAlias string, isVirtual bool) *ColumnInfo {
	return &ColumnInfo{
		InternalName: internalName,
		Type:         typ,
		TabAlias:     tabAlias,
		IsVirtual:    isVirtual,
	}
}

// Copy returns a shallow copy that may be renamed.
func (c *ColumnInfo) Copy() *ColumnInfo {
	cp := *c
	return &cp
}

// IsPartitionOrVirtual reports whether the column can never be NULL in a
// table scan.
func (c *ColumnInfo) IsPartitionOrVirtual() bool {
	return c.IsPartition || c.IsVirtual
}

func (c *ColumnInfo) String() string {
	return fmt.Sprintf("%s: %s", c.InternalName, c.Type)
}

// RowSchema is the ordered output schema of an operator.
type RowSchema []*ColumnInfo

// Names returns the internal names in order.
func (s RowSchema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.InternalName
	}
	return names
}

// Column returns the column with the given internal name.
func (s RowSchema) Column(internalName string) (*ColumnInfo, bool) {
	for _, c := range s {
		if c.InternalName == internalName {
			return c, true
		}
	}
	return nil, false
}

// Position returns the index of the column with the given internal name,
// or -1.
func (s RowSchema) Position(internalName string) int {
	for i, c := range s {
		if c.InternalName == internalName {
			return i
		}
	}
	return -1
}

func (s RowSchema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// InternalColumnName returns the positional internal name "_col<pos>".
func InternalColumnName(pos int) string {
	return fmt.Sprintf("_col%d", pos)
}

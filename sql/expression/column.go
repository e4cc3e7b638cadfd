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
	"github.com/difin/hive-sub000/sql"
)

// Column references a column of the input row of the operator the
// expression belongs to.
type Column struct {
	// Name is the internal name of the column in the input schema.
	Name     string
	TabAlias string
	Typ      sql.Type
	// IsPartitionOrVirtual marks columns that are never NULL in a scan.
	IsPartitionOrVirtual bool
	IsSkewed             bool
}

var _ sql.Expression = (*Column)(nil)

// NewColumn creates a column reference.
func NewColumn(name, tabAlias string, typ sql.Type) *Column {
	return &Column{Name: name, TabAlias: tabAlias, Typ: typ}
}

// ColumnFromInfo creates a reference to a resolver column.
func ColumnFromInfo(info *sql.ColumnInfo) *Column {
	return &Column{
		Name:                 info.InternalName,
		TabAlias:             info.TabAlias,
		Typ:                  info.Type,
		IsPartitionOrVirtual: info.IsPartitionOrVirtual(),
		IsSkewed:             info.IsSkewed,
	}
}

// Type implements the Expression interface.
func (c *Column) Type() sql.Type { return c.Typ }

// Children implements the Expression interface.
func (c *Column) Children() []sql.Expression { return nil }

// WithChildren implements the Expression interface.
func (c *Column) WithChildren(children ...sql.Expression) (sql.Expression, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvalidChildrenNumber.New(c, len(children), 0)
	}
	return c, nil
}

func (c *Column) String() string {
	return c.Name
}

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
	"fmt"

	"github.com/difin/hive-sub000/sql"
)

// Field projects a member out of a struct, or out of every element of an
// array of structs.
type Field struct {
	Struct sql.Expression
	Name   string
	Index  int
	IsList bool
	Typ    sql.Type
}

var _ sql.Expression = (*Field)(nil)

// NewField resolves name against the struct (or array of struct) type of
// e.
func NewField(e sql.Expression, name string) (*Field, error) {
	t := e.Type()
	isList := false
	if t.Kind == sql.Array && t.Elem != nil && t.Elem.Kind == sql.Struct {
		t = *t.Elem
		isList = true
	}
	if t.Kind != sql.Struct {
		return nil, ErrNotAStruct.New(e, e.Type())
	}
	for i, f := range t.Fields {
		if f.Name == name {
			typ := f.Type
			if isList {
				typ = sql.ArrayOf(typ)
			}
			return &Field{Struct: e, Name: name, Index: i, IsList: isList, Typ: typ}, nil
		}
	}
	return nil, ErrNoSuchField.New(name, e.Type())
}

// Type implements the Expression interface.
func (f *Field) Type() sql.Type { return f.Typ }

// Children implements the Expression interface.
func (f *Field) Children() []sql.Expression { return []sql.Expression{f.Struct} }

// WithChildren implements the Expression interface.
func (f *Field) WithChildren(children ...sql.Expression) (sql.Expression, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvalidChildrenNumber.New(f, len(children), 1)
	}
	nf := *f
	nf.Struct = children[0]
	return &nf, nil
}

func (f *Field) String() string {
	return fmt.Sprintf("%s.%s", f.Struct, f.Name)
}

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
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/difin/hive-sub000/sql"
)

// Constant is a typed literal. A nil Value is NULL.
type Constant struct {
	Value interface{}
	Typ   sql.Type
	// FoldedFrom keeps the text of the expression the constant was folded
	// from, if any.
	FoldedFrom string
}

var _ sql.Expression = (*Constant)(nil)

// NewConstant creates a constant, converting value to the type's
// representation.
func NewConstant(value interface{}, typ sql.Type) (*Constant, error) {
	v, err := typ.Convert(value)
	if err != nil {
		return nil, sql.ErrInvalidCast.New(fmt.Sprint(value), typ)
	}
	return &Constant{Value: v, Typ: typ}, nil
}

// NewNull creates a NULL of type void.
func NewNull() *Constant {
	return &Constant{Typ: sql.VoidType}
}

// NewBoolean creates a boolean constant.
func NewBoolean(b bool) *Constant {
	return &Constant{Value: b, Typ: sql.BooleanType}
}

// NewInt creates an int constant.
func NewInt(v int32) *Constant {
	return &Constant{Value: v, Typ: sql.IntType}
}

// NewBigInt creates a bigint constant.
func NewBigInt(v int64) *Constant {
	return &Constant{Value: v, Typ: sql.BigIntType}
}

// NewString creates a string constant.
func NewString(s string) *Constant {
	return &Constant{Value: s, Typ: sql.StringType}
}

// IsNull reports whether the constant is NULL.
func (c *Constant) IsNull() bool { return c.Value == nil }

// IsTrue reports whether the constant is boolean TRUE.
func (c *Constant) IsTrue() bool {
	b, ok := c.Value.(bool)
	return ok && b
}

// Type implements the Expression interface.
func (c *Constant) Type() sql.Type { return c.Typ }

// Children implements the Expression interface.
func (c *Constant) Children() []sql.Expression { return nil }

// WithChildren implements the Expression interface.
func (c *Constant) WithChildren(children ...sql.Expression) (sql.Expression, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvalidChildrenNumber.New(c, len(children), 0)
	}
	return c, nil
}

func (c *Constant) String() string {
	switch v := c.Value.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case decimal.Decimal:
		return v.String()
	case time.Time:
		if c.Typ.Kind == sql.Date {
			return "DATE'" + v.Format("2006-01-02") + "'"
		}
		return "TIMESTAMP'" + v.Format("2006-01-02 15:04:05") + "'"
	case int8:
		return fmt.Sprintf("%dY", v)
	case int16:
		return fmt.Sprintf("%dS", v)
	case int64:
		return fmt.Sprintf("%dL", v)
	case float32:
		return formatFloat(float64(v), 32)
	case float64:
		return formatFloat(v, 64)
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

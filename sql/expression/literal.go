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
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/difin/hive-sub000/sql"
)

// ParseNumber types a numeric literal. Suffixes Y, S, L, BD and D force
// tinyint, smallint, bigint, decimal and double; unsuffixed integers are
// int when they fit, then bigint, then decimal; literals with a fraction
// are decimal and literals with an exponent are double.
func ParseNumber(text string) (*Constant, error) {
	upper := strings.ToUpper(text)
	suffix := ""
	for _, s := range []string{"BD", "Y", "S", "L", "D"} {
		if strings.HasSuffix(upper, s) && len(upper) > len(s) {
			suffix = s
			upper = upper[:len(upper)-len(s)]
			break
		}
	}

	switch suffix {
	case "Y", "S", "L":
		n, err := strconv.ParseInt(upper, 10, 64)
		if err != nil {
			return nil, ErrInvalidNumber.New(text)
		}
		typ := map[string]sql.Type{"Y": sql.TinyIntType, "S": sql.SmallIntType, "L": sql.BigIntType}[suffix]
		if !fitsIn(n, typ) {
			return nil, ErrInvalidNumber.New(text)
		}
		return NewConstant(n, typ)
	case "D":
		f, err := strconv.ParseFloat(upper, 64)
		if err != nil {
			return nil, ErrInvalidNumber.New(text)
		}
		return &Constant{Value: f, Typ: sql.DoubleType}, nil
	case "BD":
		d, err := decimal.NewFromString(upper)
		if err != nil {
			return nil, ErrInvalidNumber.New(text)
		}
		return &Constant{Value: d, Typ: decimalTypeOf(d)}, nil
	}

	if strings.ContainsAny(upper, "E") {
		f, err := strconv.ParseFloat(upper, 64)
		if err != nil {
			return nil, ErrInvalidNumber.New(text)
		}
		return &Constant{Value: f, Typ: sql.DoubleType}, nil
	}
	if strings.Contains(upper, ".") {
		d, err := decimal.NewFromString(upper)
		if err != nil {
			return nil, ErrInvalidNumber.New(text)
		}
		return &Constant{Value: d, Typ: decimalTypeOf(d)}, nil
	}

	n, err := strconv.ParseInt(upper, 10, 64)
	if err != nil {
		d, derr := decimal.NewFromString(upper)
		if derr != nil {
			return nil, ErrInvalidNumber.New(text)
		}
		return &Constant{Value: d, Typ: decimalTypeOf(d)}, nil
	}
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return &Constant{Value: int32(n), Typ: sql.IntType}, nil
	}
	return &Constant{Value: n, Typ: sql.BigIntType}, nil
}

func fitsIn(n int64, t sql.Type) bool {
	switch t.Kind {
	case sql.TinyInt:
		return n >= math.MinInt8 && n <= math.MaxInt8
	case sql.SmallInt:
		return n >= math.MinInt16 && n <= math.MaxInt16
	}
	return true
}

func decimalTypeOf(d decimal.Decimal) sql.Type {
	scale := 0
	if e := d.Exponent(); e < 0 {
		scale = int(-e)
	}
	digits := len(d.Coefficient().String())
	if d.Sign() < 0 {
		digits--
	}
	if digits < scale {
		digits = scale
	}
	if digits == 0 {
		digits = 1
	}
	return sql.DecimalType(digits, scale)
}

// ParseDateLiteral types DATE 'yyyy-mm-dd'.
func ParseDateLiteral(s string) (*Constant, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return nil, ErrInvalidDateLiteral.New(s)
	}
	return &Constant{Value: t, Typ: sql.DateType}, nil
}

// ParseTimestampLiteral types TIMESTAMP 'yyyy-mm-dd hh:mm:ss[.fff]'.
func ParseTimestampLiteral(s string) (*Constant, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &Constant{Value: t, Typ: sql.TimestampType}, nil
		}
	}
	return nil, ErrInvalidTimestampLiteral.New(s)
}

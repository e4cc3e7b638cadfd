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

package function

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/difin/hive-sub000/sql"
)

type numKind int

const (
	numInt numKind = iota
	numFloat
	numDecimal
)

// promote brings constant operands to a common Go representation.
func promote(args []interface{}) (numKind, []int64, []float64, []decimal.Decimal, error) {
	kind := numInt
	for _, a := range args {
		switch a.(type) {
		case decimal.Decimal:
			if kind == numInt {
				kind = numDecimal
			}
		case float32, float64, string:
			// floats win over decimals, matching the type rules
			kind = numFloat
		}
	}

	ints := make([]int64, len(args))
	floats := make([]float64, len(args))
	decs := make([]decimal.Decimal, len(args))
	for i, a := range args {
		var err error
		switch kind {
		case numInt:
			ints[i], err = cast.ToInt64E(a)
		case numFloat:
			if d, ok := a.(decimal.Decimal); ok {
				floats[i] = d.InexactFloat64()
			} else {
				floats[i], err = cast.ToFloat64E(a)
			}
		case numDecimal:
			if d, ok := a.(decimal.Decimal); ok {
				decs[i] = d
			} else {
				var n int64
				n, err = cast.ToInt64E(a)
				decs[i] = decimal.NewFromInt(n)
			}
		}
		if err != nil {
			return 0, nil, nil, nil, err
		}
	}
	return kind, ints, floats, decs, nil
}

func anyNull(args []interface{}) bool {
	for _, a := range args {
		if a == nil {
			return true
		}
	}
	return false
}

func arithmeticEval(op byte) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		if anyNull(args) {
			return nil, nil
		}
		kind, ints, floats, decs, err := promote(args)
		if err != nil {
			return nil, err
		}
		switch kind {
		case numInt:
			a, b := ints[0], ints[1]
			switch op {
			case '+':
				return a + b, nil
			case '-':
				return a - b, nil
			case '*':
				return a * b, nil
			case '/':
				if b == 0 {
					return nil, nil
				}
				return float64(a) / float64(b), nil
			case '%':
				if b == 0 {
					return nil, nil
				}
				return a % b, nil
			}
		case numFloat:
			a, b := floats[0], floats[1]
			switch op {
			case '+':
				return a + b, nil
			case '-':
				return a - b, nil
			case '*':
				return a * b, nil
			case '/':
				if b == 0 {
					return nil, nil
				}
				return a / b, nil
			}
		case numDecimal:
			a, b := decs[0], decs[1]
			switch op {
			case '+':
				return a.Add(b), nil
			case '-':
				return a.Sub(b), nil
			case '*':
				return a.Mul(b), nil
			case '/':
				if b.IsZero() {
					return nil, nil
				}
				return a.Div(b), nil
			case '%':
				if b.IsZero() {
					return nil, nil
				}
				return a.Mod(b), nil
			}
		}
		return nil, sql.ErrInvalidArgumentType.New(string(op), "cannot fold")
	}
}

func negateEval(args []interface{}) (interface{}, error) {
	if anyNull(args) {
		return nil, nil
	}
	switch v := args[0].(type) {
	case decimal.Decimal:
		return v.Neg(), nil
	case float32:
		return -float64(v), nil
	case float64:
		return -v, nil
	}
	n, err := cast.ToInt64E(args[0])
	if err != nil {
		return nil, err
	}
	return -n, nil
}

// compare returns -1, 0 or 1.
func compare(a, b interface{}) (int, error) {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), nil
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, nil
			case !av:
				return -1, nil
			default:
				return 1, nil
			}
		}
	case time.Time:
		bv, err := cast.ToTimeE(b)
		if err != nil {
			return 0, err
		}
		switch {
		case av.Before(bv):
			return -1, nil
		case av.After(bv):
			return 1, nil
		}
		return 0, nil
	}

	kind, ints, floats, decs, err := promote([]interface{}{a, b})
	if err != nil {
		return 0, err
	}
	switch kind {
	case numInt:
		switch {
		case ints[0] < ints[1]:
			return -1, nil
		case ints[0] > ints[1]:
			return 1, nil
		}
		return 0, nil
	case numFloat:
		switch {
		case floats[0] < floats[1]:
			return -1, nil
		case floats[0] > floats[1]:
			return 1, nil
		}
		return 0, nil
	}
	return decs[0].Cmp(decs[1]), nil
}

func comparisonEval(pred func(int) bool, nullSafe bool) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		if nullSafe {
			if args[0] == nil || args[1] == nil {
				return args[0] == nil && args[1] == nil, nil
			}
		} else if anyNull(args) {
			return nil, nil
		}
		c, err := compare(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return pred(c), nil
	}
}

func andEval(args []interface{}) (interface{}, error) {
	sawNull := false
	for _, a := range args {
		if a == nil {
			sawNull = true
			continue
		}
		b, err := cast.ToBoolE(a)
		if err != nil {
			return nil, err
		}
		if !b {
			return false, nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return true, nil
}

func orEval(args []interface{}) (interface{}, error) {
	sawNull := false
	for _, a := range args {
		if a == nil {
			sawNull = true
			continue
		}
		b, err := cast.ToBoolE(a)
		if err != nil {
			return nil, err
		}
		if b {
			return true, nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return false, nil
}

func notEval(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	b, err := cast.ToBoolE(args[0])
	if err != nil {
		return nil, err
	}
	return !b, nil
}

func isNullEval(want bool) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		return (args[0] == nil) == want, nil
	}
}

func stringEval(f func(string) interface{}) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		if anyNull(args) {
			return nil, nil
		}
		s, err := cast.ToStringE(args[0])
		if err != nil {
			return nil, err
		}
		return f(s), nil
	}
}

func concatEval(args []interface{}) (interface{}, error) {
	if anyNull(args) {
		return nil, nil
	}
	var sb strings.Builder
	for _, a := range args {
		if d, ok := a.(decimal.Decimal); ok {
			sb.WriteString(d.String())
			continue
		}
		s, err := cast.ToStringE(a)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func coalesceEval(args []interface{}) (interface{}, error) {
	for _, a := range args {
		if a != nil {
			return a, nil
		}
	}
	return nil, nil
}

func ifEval(args []interface{}) (interface{}, error) {
	if args[0] != nil {
		b, err := cast.ToBoolE(args[0])
		if err != nil {
			return nil, err
		}
		if b {
			return args[1], nil
		}
	}
	return args[2], nil
}

func booleanEval(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	if s, ok := args[0].(string); ok {
		return s != "", nil
	}
	if d, ok := args[0].(decimal.Decimal); ok {
		return !d.IsZero(), nil
	}
	return cast.ToBoolE(args[0])
}

func bitwiseAndEval(args []interface{}) (interface{}, error) {
	if anyNull(args) {
		return nil, nil
	}
	a, err := cast.ToInt64E(args[0])
	if err != nil {
		return nil, err
	}
	b, err := cast.ToInt64E(args[1])
	if err != nil {
		return nil, err
	}
	return a & b, nil
}

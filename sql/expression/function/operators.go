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
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/difin/hive-sub000/sql"
)

func operator(name, infix string, min, max int, rt returnTypeFunc, eval func([]interface{}) (interface{}, error)) *sql.FunctionInfo {
	return &sql.FunctionInfo{
		Name:          name,
		Kind:          sql.ScalarFunction,
		MinArgs:       min,
		MaxArgs:       max,
		Infix:         infix,
		Deterministic: true,
		ReturnType:    rt,
		Eval:          eval,
	}
}

var operators = []*sql.FunctionInfo{
	operator("and", "and", 2, sql.AnyArgs, booleanArgs("and"), andEval),
	operator("or", "or", 2, sql.AnyArgs, booleanArgs("or"), orEval),
	operator("not", "not", 1, 1, booleanArgs("not"), notEval),
	operator("=", "=", 2, 2, comparison("="), comparisonEval(func(c int) bool { return c == 0 }, false)),
	operator("<=>", "<=>", 2, 2, comparison("<=>"), comparisonEval(func(c int) bool { return c == 0 }, true)),
	operator("<>", "<>", 2, 2, comparison("<>"), comparisonEval(func(c int) bool { return c != 0 }, false)),
	operator("<", "<", 2, 2, comparison("<"), comparisonEval(func(c int) bool { return c < 0 }, false)),
	operator("<=", "<=", 2, 2, comparison("<="), comparisonEval(func(c int) bool { return c <= 0 }, false)),
	operator(">", ">", 2, 2, comparison(">"), comparisonEval(func(c int) bool { return c > 0 }, false)),
	operator(">=", ">=", 2, 2, comparison(">="), comparisonEval(func(c int) bool { return c >= 0 }, false)),
	operator("+", "+", 2, 2, arithmetic("+"), arithmeticEval('+')),
	operator("-", "-", 2, 2, arithmetic("-"), arithmeticEval('-')),
	operator("*", "*", 2, 2, arithmetic("*"), arithmeticEval('*')),
	operator("/", "/", 2, 2, divide, arithmeticEval('/')),
	operator("%", "%", 2, 2, arithmetic("%"), arithmeticEval('%')),
	operator("&", "&", 2, 2, arithmetic("&"), bitwiseAndEval),
	operator("negative", "-", 1, 1, arithmetic("negative"), negateEval),
	operator("positive", "+", 1, 1, arithmetic("positive"), func(args []interface{}) (interface{}, error) { return args[0], nil }),
	operator("like", "like", 2, 2, fixed(sql.BooleanType), likeEval),
	operator("rlike", "rlike", 2, 2, fixed(sql.BooleanType), rlikeEval),
	operator("regexp", "regexp", 2, 2, fixed(sql.BooleanType), rlikeEval),
	{
		Name:          "isnull",
		Kind:          sql.ScalarFunction,
		MinArgs:       1,
		MaxArgs:       1,
		Deterministic: true,
		ReturnType:    fixed(sql.BooleanType),
		Eval:          isNullEval(true),
	},
	{
		Name:          "isnotnull",
		Kind:          sql.ScalarFunction,
		MinArgs:       1,
		MaxArgs:       1,
		Deterministic: true,
		ReturnType:    fixed(sql.BooleanType),
		Eval:          isNullEval(false),
	},
	{
		Name:          "between",
		Kind:          sql.ScalarFunction,
		MinArgs:       4,
		MaxArgs:       4,
		Deterministic: true,
		ReturnType:    betweenType,
	},
	{
		Name:          "in",
		Kind:          sql.ScalarFunction,
		MinArgs:       2,
		MaxArgs:       sql.AnyArgs,
		Deterministic: true,
		ReturnType:    inType,
	},
}

func betweenType(args []sql.Type) (sql.Type, error) {
	// args[0] is the invert flag
	for _, a := range args[2:] {
		if _, ok := sql.CommonTypeForComparison(args[1], a); !ok {
			return sql.Type{}, sql.ErrNoCommonType.New(args[1], a, "between")
		}
	}
	return sql.BooleanType, nil
}

func inType(args []sql.Type) (sql.Type, error) {
	for _, a := range args[1:] {
		if _, ok := sql.CommonTypeForComparison(args[0], a); !ok {
			return sql.Type{}, sql.ErrNoCommonType.New(args[0], a, "in")
		}
	}
	return sql.BooleanType, nil
}

// likePatternToRegex converts a SQL LIKE pattern to an anchored regular
// expression.
func likePatternToRegex(p string) string {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	escaped := false
	for _, r := range p {
		switch {
		case escaped:
			sb.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			sb.WriteString(".*")
		case r == '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}

func likeEval(args []interface{}) (interface{}, error) {
	if anyNull(args) {
		return nil, nil
	}
	s, p := cast.ToString(args[0]), cast.ToString(args[1])
	re, err := regexp.Compile(likePatternToRegex(p))
	if err != nil {
		return nil, err
	}
	return re.MatchString(s), nil
}

func rlikeEval(args []interface{}) (interface{}, error) {
	if anyNull(args) {
		return nil, nil
	}
	re, err := regexp.Compile(cast.ToString(args[1]))
	if err != nil {
		return nil, err
	}
	return re.MatchString(cast.ToString(args[0])), nil
}

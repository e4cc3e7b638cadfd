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
	"github.com/difin/hive-sub000/sql"
)

func aggregate(name string, min, max int, rt, partial returnTypeFunc) *sql.FunctionInfo {
	return &sql.FunctionInfo{
		Name:             name,
		Kind:             sql.AggregateFunction,
		MinArgs:          min,
		MaxArgs:          max,
		SupportsDistinct: true,
		Deterministic:    true,
		ReturnType:       rt,
		PartialType:      partial,
	}
}

func varianceType(name string) returnTypeFunc {
	return func(args []sql.Type) (sql.Type, error) {
		if _, ok := toNumeric(args[0]); !ok {
			return sql.Type{}, sql.ErrInvalidArgumentType.New(name, "only numeric or string type arguments are accepted but "+args[0].String()+" is passed")
		}
		return sql.DoubleType, nil
	}
}

func variancePartialType([]sql.Type) (sql.Type, error) {
	return sql.StructOf(
		sql.StructField{Name: "count", Type: sql.BigIntType},
		sql.StructField{Name: "sum", Type: sql.DoubleType},
		sql.StructField{Name: "variance", Type: sql.DoubleType},
	), nil
}

func collectType(args []sql.Type) (sql.Type, error) {
	return sql.ArrayOf(args[0]), nil
}

func percentileType(args []sql.Type) (sql.Type, error) {
	if len(args) > 1 && args[1].Kind == sql.Array {
		return sql.ArrayOf(sql.DoubleType), nil
	}
	return sql.DoubleType, nil
}

var aggregates = []*sql.FunctionInfo{
	aggregate("count", 0, sql.AnyArgs, fixed(sql.BigIntType), nil),
	aggregate("sum", 1, 1, sumType, nil),
	aggregate("avg", 1, 1, avgType, avgPartialType),
	aggregate("min", 1, 1, minMaxType("min"), nil),
	aggregate("max", 1, 1, minMaxType("max"), nil),
	aggregate("variance", 1, 1, varianceType("variance"), variancePartialType),
	aggregate("var_samp", 1, 1, varianceType("var_samp"), variancePartialType),
	aggregate("stddev", 1, 1, varianceType("stddev"), variancePartialType),
	aggregate("stddev_samp", 1, 1, varianceType("stddev_samp"), variancePartialType),
	aggregate("collect_set", 1, 1, collectType, nil),
	aggregate("collect_list", 1, 1, collectType, nil),
	aggregate("percentile", 2, 2, percentileType, nil),
	{
		Name:          "percentile_cont",
		Kind:          sql.AggregateFunction,
		MinArgs:       2,
		MaxArgs:       4,
		Ordered:       true,
		Deterministic: true,
		ReturnType:    fixed(sql.DoubleType),
	},
	{
		Name:          "percentile_disc",
		Kind:          sql.AggregateFunction,
		MinArgs:       2,
		MaxArgs:       4,
		Ordered:       true,
		Deterministic: true,
		ReturnType:    fixed(sql.DoubleType),
	},
	{
		Name:                  "first_value",
		Kind:                  sql.AggregateFunction,
		MinArgs:               1,
		MaxArgs:               2,
		SupportsNullTreatment: true,
		Deterministic:         true,
		ReturnType:            sameAsArg(0),
	},
	{
		Name:                  "last_value",
		Kind:                  sql.AggregateFunction,
		MinArgs:               1,
		MaxArgs:               2,
		SupportsNullTreatment: true,
		Deterministic:         true,
		ReturnType:            sameAsArg(0),
	},
}

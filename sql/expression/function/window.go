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

func window(name string, min, max int, rt returnTypeFunc) *sql.FunctionInfo {
	return &sql.FunctionInfo{
		Name:          name,
		Kind:          sql.WindowFunction,
		MinArgs:       min,
		MaxArgs:       max,
		RequiresOver:  true,
		Deterministic: true,
		ReturnType:    rt,
	}
}

func withNullTreatment(f *sql.FunctionInfo) *sql.FunctionInfo {
	f.SupportsNullTreatment = true
	return f
}

var windowFunctions = []*sql.FunctionInfo{
	window("rank", 0, sql.AnyArgs, fixed(sql.IntType)),
	window("dense_rank", 0, sql.AnyArgs, fixed(sql.IntType)),
	window("row_number", 0, 0, fixed(sql.IntType)),
	window("percent_rank", 0, sql.AnyArgs, fixed(sql.DoubleType)),
	window("cume_dist", 0, sql.AnyArgs, fixed(sql.DoubleType)),
	window("ntile", 1, 1, fixed(sql.IntType)),
	withNullTreatment(window("lead", 1, 3, sameAsArg(0))),
	withNullTreatment(window("lag", 1, 3, sameAsArg(0))),
}

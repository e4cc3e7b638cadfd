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

func udtf(name string, min, max int, rt returnTypeFunc) *sql.FunctionInfo {
	return &sql.FunctionInfo{
		Name:          name,
		Kind:          sql.TableGeneratingFunction,
		MinArgs:       min,
		MaxArgs:       max,
		Deterministic: true,
		ReturnType:    rt,
	}
}

var tableGenerating = []*sql.FunctionInfo{
	udtf("explode", 1, 1, explodeType),
	udtf("posexplode", 1, 1, posexplodeType),
	udtf("inline", 1, 1, inlineType),
	udtf("replicate_rows", 2, sql.AnyArgs, replicateRowsType),
}

// tableFunctions are the partitioned table functions usable in FROM. The
// windowing function is what window expressions are planned with.
var tableFunctions = []*sql.FunctionInfo{
	{Name: "noop", Kind: sql.TableFunction, MaxArgs: sql.AnyArgs, Deterministic: true},
	{Name: "noopwithmap", Kind: sql.TableFunction, MaxArgs: sql.AnyArgs, Deterministic: true},
	{Name: WindowingTableFunction, Kind: sql.TableFunction, MaxArgs: sql.AnyArgs, Deterministic: true},
}

// WindowingTableFunction is the partitioned table function window
// expressions are evaluated by.
const WindowingTableFunction = "windowingtablefunction"

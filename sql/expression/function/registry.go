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

	"github.com/difin/hive-sub000/sql"
)

// Registry is the built-in implementation of sql.FunctionRegistry. It is
// safe for concurrent reads once built.
type Registry struct {
	funcs map[string]*sql.FunctionInfo
}

var _ sql.FunctionRegistry = (*Registry)(nil)

// aliases maps parser spellings to registered names.
var aliases = map[string]string{
	"tok_isnull":    "isnull",
	"tok_isnotnull": "isnotnull",
	"!=":            "<>",
	"==":            "=",
	"substring":     "substr",
	"ceiling":       "ceil",
	"ucase":         "upper",
	"lcase":         "lower",
	"std":           "stddev",
	"stddev_pop":    "stddev",
	"var_pop":       "variance",
}

// NewRegistry returns a registry holding the default functions.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]*sql.FunctionInfo, len(Defaults))}
	for _, f := range Defaults {
		r.Register(f)
	}
	return r
}

var defaultRegistry = NewRegistry()

// Default returns the shared registry of built-in functions. It must not
// be modified.
func Default() *Registry {
	return defaultRegistry
}

// Register adds or replaces a function.
func (r *Registry) Register(f *sql.FunctionInfo) {
	r.funcs[strings.ToLower(f.Name)] = f
}

// Function implements the sql.FunctionRegistry interface.
func (r *Registry) Function(name string) (*sql.FunctionInfo, bool) {
	name = sql.NormalizeFunctionName(name)
	if a, ok := aliases[name]; ok {
		name = a
	}
	f, ok := r.funcs[name]
	return f, ok
}

// MustFunction is Function that panics for unknown names. Only used for
// the built-ins the planner synthesizes itself.
func (r *Registry) MustFunction(name string) *sql.FunctionInfo {
	f, ok := r.Function(name)
	if !ok {
		panic("unknown built-in function " + name)
	}
	return f
}

// Names returns the registered function names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	return names
}

// Defaults is the list of built-in functions.
var Defaults = concat(operators, scalars, aggregates, windowFunctions, tableGenerating, tableFunctions)

func concat(lists ...[]*sql.FunctionInfo) []*sql.FunctionInfo {
	var out []*sql.FunctionInfo
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

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

package sql

// Expression is a fully typed expression descriptor. Descriptors never
// escape the type checker unresolved.
type Expression interface {
	// Type returns the resolved result type.
	Type() Type
	// Children returns the argument expressions.
	Children() []Expression
	// WithChildren returns a copy with the children replaced.
	WithChildren(children ...Expression) (Expression, error)
	// String renders the expression the way the explain output shows it.
	String() string
}

// TransformExprFunc is a function that given an expression will return
// that expression as is or transformed along with an error, if any.
type TransformExprFunc func(Expression) (Expression, error)

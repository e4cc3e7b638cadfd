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

package plan

import errors "gopkg.in/src-d/go-errors.v1"

var (
	// ErrCyclicPlan is returned when an operator can reach itself.
	ErrCyclicPlan = errors.NewKind("operator graph has a cycle through %s")

	// ErrDanglingOperator is returned when an operator other than a sink
	// has no consumer.
	ErrDanglingOperator = errors.NewKind("operator %s has no children")

	// ErrSchemaArity is returned when an operator schema does not match
	// the output columns of its descriptor.
	ErrSchemaArity = errors.NewKind("operator %s has %d schema columns but its descriptor declares %d")

	// ErrBrokenLink is returned when parent and child lists disagree.
	ErrBrokenLink = errors.NewKind("operator %s lists %s as %s but the link is not mutual")
)

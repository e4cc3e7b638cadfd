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

// Validate checks the structural properties every generated plan has:
// the DAG is acyclic, parent and child links are mutual, every operator
// other than a sink has a consumer, and every schema has as many columns
// as its descriptor declares.
func Validate(p *Plan) error {
	ops := p.Operators()
	for _, op := range ops {
		if err := validateOperator(op); err != nil {
			return err
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*Operator]int, len(ops))
	var visit func(op *Operator) error
	visit = func(op *Operator) error {
		switch state[op] {
		case visiting:
			return ErrCyclicPlan.New(op.ID)
		case done:
			return nil
		}
		state[op] = visiting
		for _, c := range op.children {
			if err := visit(c); err != nil {
				return err
			}
		}
		state[op] = done
		return nil
	}
	for _, op := range ops {
		if err := visit(op); err != nil {
			return err
		}
	}
	return nil
}

func validateOperator(op *Operator) error {
	if n, m := len(op.Schema), len(op.Desc.OutputColumnNames()); n != m {
		return ErrSchemaArity.New(op.ID, n, m)
	}
	if !op.IsSink() && len(op.children) == 0 {
		return ErrDanglingOperator.New(op.ID)
	}
	for _, c := range op.children {
		if !containsOperator(c.parents, op) {
			return ErrBrokenLink.New(op.ID, c.ID, "child")
		}
	}
	for _, p := range op.parents {
		if !containsOperator(p.children, op) {
			return ErrBrokenLink.New(op.ID, p.ID, "parent")
		}
	}
	return nil
}

func containsOperator(ops []*Operator, op *Operator) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

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

import (
	"fmt"
	"strings"

	"github.com/difin/hive-sub000/sql"
)

// Explain renders the plan as one tree per sink, each operator followed
// by the operators it reads from. Operators shared by several sinks are
// printed in full once and referenced afterwards.
func Explain(p *Plan) string {
	if p.CachedResult != nil {
		return fmt.Sprintf("Cached result: %s\n", p.CachedResult.Location)
	}

	var sb strings.Builder
	for i, cte := range p.CTEPlans {
		fmt.Fprintf(&sb, "CTE stage %d:\n", i)
		sb.WriteString(indent(Explain(cte)))
	}

	printed := make(map[*Operator]bool)
	for _, sink := range p.Sinks {
		sb.WriteString(explainOperator(sink, printed))
	}

	if len(p.ResultSchema) > 0 {
		cols := make([]string, len(p.ResultSchema))
		for i, f := range p.ResultSchema {
			cols[i] = f.Name + ":" + f.Type.String()
		}
		fmt.Fprintf(&sb, "Result schema: [%s]\n", strings.Join(cols, ", "))
	}
	for _, w := range p.Warnings {
		fmt.Fprintf(&sb, "Warning: %s\n", w.Message)
	}
	return sb.String()
}

func explainOperator(op *Operator, printed map[*Operator]bool) string {
	pr := sql.NewTreePrinter()
	if printed[op] {
		pr.WriteNode("%s (see above)", op.ID)
		return pr.String()
	}
	printed[op] = true

	pr.WriteNode("%s %s", op.ID, op.Desc)
	children := make([]string, 0, len(op.parents))
	for _, parent := range op.parents {
		children = append(children, explainOperator(parent, printed))
	}
	if len(children) > 0 {
		pr.WriteChildren(children...)
	}
	return pr.String()
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n") + "\n"
}

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

import (
	"fmt"
	"strings"
)

// TreePrinter renders a node and its children as an indented tree.
type TreePrinter struct {
	buf         strings.Builder
	nodeWritten bool
	written     bool
}

// NewTreePrinter creates a new tree printer.
func NewTreePrinter() *TreePrinter {
	return new(TreePrinter)
}

// WriteNode writes the header line of the tree. It must be called once,
// before WriteChildren.
func (p *TreePrinter) WriteNode(format string, args ...interface{}) {
	if p.nodeWritten {
		panic("sql: tree printer node already written")
	}
	fmt.Fprintf(&p.buf, format, args...)
	p.buf.WriteByte('\n')
	p.nodeWritten = true
}

// WriteChildren writes the already rendered children of the node.
func (p *TreePrinter) WriteChildren(children ...string) {
	if !p.nodeWritten {
		panic("sql: tree printer children written before node")
	}
	if p.written {
		panic("sql: tree printer children already written")
	}
	for i, child := range children {
		last := i == len(children)-1
		lines := strings.Split(strings.TrimRight(child, "\n"), "\n")
		for j, l := range lines {
			switch {
			case j == 0 && last:
				p.buf.WriteString(" └─ ")
			case j == 0:
				p.buf.WriteString(" ├─ ")
			case last:
				p.buf.WriteString("    ")
			default:
				p.buf.WriteString(" │  ")
			}
			p.buf.WriteString(l)
			p.buf.WriteByte('\n')
		}
	}
	p.written = true
}

// String returns the rendered tree.
func (p *TreePrinter) String() string {
	return p.buf.String()
}

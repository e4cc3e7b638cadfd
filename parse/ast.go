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

package parse

import (
	"strings"
	"unicode/utf8"
)

// Arena owns every node of one parsed statement. Nodes refer to their
// children by index into the arena, so rewriting a subtree only rebinds the
// parent's child list.
type Arena struct {
	nodes []nodeData
}

type nodeData struct {
	kind     Kind
	text     string
	children []int32
	line     int
	col      int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Node is a handle to a node stored in an Arena. The zero Node is invalid.
type Node struct {
	a  *Arena
	id int32
}

// New appends a node to the arena. An empty text defaults to the kind's
// canonical text. Children from another arena are copied in.
func (a *Arena) New(kind Kind, text string, children ...Node) Node {
	if text == "" && kind != StringLiteral {
		text = kind.String()
	}
	ids := make([]int32, 0, len(children))
	for _, c := range children {
		ids = append(ids, a.adopt(c).id)
	}
	a.nodes = append(a.nodes, nodeData{kind: kind, text: text, children: ids})
	return Node{a: a, id: int32(len(a.nodes) - 1)}
}

// NewAt is like New but records the source position.
func (a *Arena) NewAt(kind Kind, text string, line, col int, children ...Node) Node {
	n := a.New(kind, text, children...)
	d := &a.nodes[n.id]
	d.line, d.col = line, col
	return n
}

// Len returns the number of nodes allocated in the arena.
func (a *Arena) Len() int {
	return len(a.nodes)
}

func (a *Arena) adopt(n Node) Node {
	if !n.Valid() {
		panic("parse: invalid child node")
	}
	if n.a == a {
		return n
	}
	return a.Import(n)
}

// Import deep-copies a node from another arena into this one.
func (a *Arena) Import(n Node) Node {
	d := n.data()
	children := make([]Node, 0, len(d.children))
	for _, c := range d.children {
		children = append(children, a.Import(Node{a: n.a, id: c}))
	}
	return a.NewAt(d.kind, d.text, d.line, d.col, children...)
}

// Clone deep-copies a subtree within its own arena.
func (n Node) Clone() Node {
	d := n.data()
	children := make([]Node, 0, len(d.children))
	for _, c := range d.children {
		children = append(children, Node{a: n.a, id: c}.Clone())
	}
	return n.a.NewAt(d.kind, d.text, d.line, d.col, children...)
}

// Valid reports whether the handle refers to a node.
func (n Node) Valid() bool {
	return n.a != nil
}

// Arena returns the arena owning the node.
func (n Node) Arena() *Arena {
	return n.a
}

func (n Node) data() *nodeData {
	return &n.a.nodes[n.id]
}

// Kind returns the token kind.
func (n Node) Kind() Kind {
	if !n.Valid() {
		return Invalid
	}
	return n.data().kind
}

// Text returns the token text.
func (n Node) Text() string {
	if !n.Valid() {
		return ""
	}
	return n.data().text
}

// Line returns the 1-based source line, 0 when unknown.
func (n Node) Line() int {
	return n.data().line
}

// Col returns the 1-based source column, 0 when unknown.
func (n Node) Col() int {
	return n.data().col
}

// ChildCount returns the number of children.
func (n Node) ChildCount() int {
	if !n.Valid() {
		return 0
	}
	return len(n.data().children)
}

// Child returns the i-th child.
func (n Node) Child(i int) Node {
	return Node{a: n.a, id: n.data().children[i]}
}

// Children returns all children in order.
func (n Node) Children() []Node {
	d := n.data()
	out := make([]Node, len(d.children))
	for i, c := range d.children {
		out[i] = Node{a: n.a, id: c}
	}
	return out
}

// FirstChildOfKind returns the first child with the given kind.
func (n Node) FirstChildOfKind(k Kind) (Node, bool) {
	for i := 0; i < n.ChildCount(); i++ {
		if c := n.Child(i); c.Kind() == k {
			return c, true
		}
	}
	return Node{}, false
}

// SetChild replaces the i-th child.
func (n Node) SetChild(i int, c Node) {
	n.data().children[i] = n.a.adopt(c).id
}

// AddChild appends a child.
func (n Node) AddChild(c Node) {
	id := n.a.adopt(c).id
	d := n.data()
	d.children = append(d.children, id)
}

// DeleteChild removes the i-th child.
func (n Node) DeleteChild(i int) {
	d := n.data()
	d.children = append(d.children[:i:i], d.children[i+1:]...)
}

// ReplaceChildren rebinds the whole child list.
func (n Node) ReplaceChildren(cs ...Node) {
	ids := make([]int32, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, n.a.adopt(c).id)
	}
	n.data().children = ids
}

// Rebind turns n into a copy of other's kind, text and children, keeping
// n's handle. Parents pointing at n see the replacement.
func (n Node) Rebind(other Node) {
	other = n.a.adopt(other)
	od := other.data()
	d := n.data()
	d.kind, d.text = od.kind, od.text
	d.children = append([]int32(nil), od.children...)
}

// Walk visits n and its descendants in pre-order until fn returns false.
func (n Node) Walk(fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for i := 0; i < n.ChildCount(); i++ {
		n.Child(i).Walk(fn)
	}
}

// String dumps the subtree in the same parenthesized form the reader
// accepts.
func (n Node) String() string {
	var sb strings.Builder
	n.write(&sb, false)
	return sb.String()
}

// Normalized returns the dump with identifiers lower-cased. Expressions
// that differ only in identifier case normalize to the same text.
func (n Node) Normalized() string {
	var sb strings.Builder
	n.write(&sb, true)
	return sb.String()
}

func (n Node) write(sb *strings.Builder, lower bool) {
	if !n.Valid() {
		sb.WriteString("nil")
		return
	}
	d := n.data()
	if len(d.children) > 0 {
		sb.WriteByte('(')
	}
	switch d.kind {
	case StringLiteral:
		sb.WriteString(quoteText(d.text))
	case Identifier:
		if lower {
			sb.WriteString(strings.ToLower(d.text))
		} else {
			sb.WriteString(d.text)
		}
	default:
		sb.WriteString(d.text)
	}
	for _, c := range d.children {
		sb.WriteByte(' ')
		Node{a: n.a, id: c}.write(sb, lower)
	}
	if len(d.children) > 0 {
		sb.WriteByte(')')
	}
}

func quoteText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// Snippet returns a short excerpt of the node's dump for error messages.
func (n Node) Snippet() string {
	s := n.String()
	if utf8.RuneCountInString(s) > 60 {
		s = string([]rune(s)[:57]) + "..."
	}
	return s
}

// UnescapeIdentifier strips surrounding backquotes and lower-cases.
func UnescapeIdentifier(s string) string {
	if len(s) >= 2 && s[0] == '`' && s[len(s)-1] == '`' {
		s = s[1 : len(s)-1]
	}
	return strings.ToLower(s)
}

// IsQuotedIdentifier reports whether the identifier text is backquoted.
func IsQuotedIdentifier(s string) bool {
	return len(s) >= 2 && s[0] == '`' && s[len(s)-1] == '`'
}

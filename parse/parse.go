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
	"io"
	"strings"
	"unicode"

	errors "gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrSyntax is returned when an AST dump is malformed.
	ErrSyntax = errors.NewKind("syntax error at %d:%d: %s")
)

// Read parses an AST dump such as
//
//	(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME t))) ...)
//
// into a fresh arena and returns its root.
func Read(input io.Reader) (Node, error) {
	return ReadInto(NewArena(), input)
}

// ReadString is Read over a string.
func ReadString(s string) (Node, error) {
	return Read(strings.NewReader(s))
}

// MustRead is ReadString that panics on error. Intended for tests and
// static fixtures.
func MustRead(s string) Node {
	n, err := ReadString(s)
	if err != nil {
		panic(err)
	}
	return n
}

// ReadInto parses a dump into an existing arena.
func ReadInto(a *Arena, input io.Reader) (Node, error) {
	l := NewLexer(input)
	if err := l.Run(); err != nil {
		return Node{}, err
	}

	st := newStack()
	var root Node
	for t := l.Next(); t != nil; t = l.Next() {
		switch t.Type {
		case ErrorToken:
			return Node{}, ErrSyntax.New(t.Line, t.Pos, t.Value)
		case EOFToken:
			if !st.isEmpty() {
				return Node{}, ErrSyntax.New(t.Line, t.Pos, "unbalanced parentheses")
			}
			if !root.Valid() {
				return Node{}, ErrSyntax.New(t.Line, t.Pos, "empty input")
			}
			return root, nil
		case LeftParenToken:
			head := l.Next()
			if head == nil || (head.Type != AtomToken && head.Type != QuotedIdentToken) {
				return Node{}, ErrSyntax.New(t.Line, t.Pos, "expecting a token name after '('")
			}
			kind, text := classify(head)
			st.put(&frame{kind: kind, text: text, line: int(head.Line), col: int(head.Pos)})
		case RightParenToken:
			if st.isEmpty() {
				return Node{}, ErrSyntax.New(t.Line, t.Pos, "unexpected ')'")
			}
			f := st.pop()
			n := a.NewAt(f.kind, f.text, f.line, f.col, f.children...)
			if err := attach(st, &root, n, t); err != nil {
				return Node{}, err
			}
		default:
			kind, text := classify(t)
			n := a.NewAt(kind, text, int(t.Line), int(t.Pos))
			if err := attach(st, &root, n, t); err != nil {
				return Node{}, err
			}
		}
	}

	return Node{}, ErrSyntax.New(0, 0, "unexpected end of input")
}

func attach(st *stack, root *Node, n Node, t *Token) error {
	if !st.isEmpty() {
		f := st.peek()
		f.children = append(f.children, n)
		return nil
	}
	if root.Valid() {
		return ErrSyntax.New(t.Line, t.Pos, "more than one root node")
	}
	*root = n
	return nil
}

func classify(t *Token) (Kind, string) {
	switch t.Type {
	case StringToken:
		return StringLiteral, t.Value
	case QuotedIdentToken:
		return Identifier, t.Value
	}

	if k, ok := LookupKind(t.Value); ok {
		return k, k.String()
	}
	if isNumber(t.Value) {
		return Number, t.Value
	}
	return Identifier, t.Value
}

// isNumber accepts integer and decimal literals with an optional exponent
// and one of the Hive type suffixes Y, S, L, BD or D.
func isNumber(s string) bool {
	upper := strings.ToUpper(s)
	for _, suffix := range []string{"BD", "Y", "S", "L", "D"} {
		if strings.HasSuffix(upper, suffix) && len(upper) > len(suffix) {
			upper = upper[:len(upper)-len(suffix)]
			break
		}
	}
	if strings.HasPrefix(upper, "-") {
		upper = upper[1:]
	}
	if upper == "" {
		return false
	}

	var digits, dots, exps int
	for i, r := range upper {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.':
			if dots > 0 || exps > 0 {
				return false
			}
			dots++
		case r == 'E':
			if exps > 0 || digits == 0 || i == len(upper)-1 {
				return false
			}
			exps++
		case (r == '+' || r == '-') && i > 0 && upper[i-1] == 'E':
		default:
			return false
		}
	}
	return digits > 0
}

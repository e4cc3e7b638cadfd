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
	"bufio"
	"fmt"
	"io"
	"strings"
)

type stateFunc func(*Lexer) (stateFunc, error)

// Lexer splits an AST dump into tokens.
type Lexer struct {
	source *bufio.Reader
	state  stateFunc
	tokens []*Token
	idx    uint
	line   uint
	pos    uint
	start  uint
	word   []rune
}

// NewLexer creates a lexer reading from input.
func NewLexer(input io.Reader) *Lexer {
	return &Lexer{
		source: bufio.NewReader(input),
		state:  lexLine,
		line:   1,
	}
}

func (l *Lexer) next() (r rune, err error) {
	r, _, err = l.source.ReadRune()
	if err != nil {
		return
	}

	if len(l.word) == 0 {
		l.start = l.pos + 1
	}
	l.word = append(l.word, r)
	l.pos++
	return
}

func (l *Lexer) ignore() {
	l.word = nil
}

func (l *Lexer) backup() error {
	err := l.source.UnreadRune()
	if err != nil {
		return err
	}

	if len(l.word) < 2 {
		l.word = nil
	} else {
		l.word = l.word[0 : len(l.word)-1]
	}

	l.pos--
	return nil
}

func (l *Lexer) peekWord() string {
	return string(l.word)
}

func (l *Lexer) newLine() {
	l.line++
	l.pos = 0
}

func (l *Lexer) emit(typ TokenType) {
	l.emitValue(typ, l.peekWord())
}

func (l *Lexer) emitValue(typ TokenType, value string) {
	l.tokens = append(l.tokens, NewToken(
		typ,
		value,
		l.line,
		l.start,
	))
	l.word = nil
}

func (l *Lexer) errorf(format string, args ...interface{}) stateFunc {
	l.tokens = append(l.tokens, NewToken(
		ErrorToken,
		fmt.Sprintf(format, args...),
		l.line,
		l.pos,
	))
	return nil
}

// Run tokenizes the whole input.
func (l *Lexer) Run() error {
	for l.state != nil {
		var err error
		l.state, err = l.state(l)
		if err == io.EOF {
			if strings.TrimSpace(l.peekWord()) != "" {
				l.emit(AtomToken)
			}
			l.emit(EOFToken)
			return nil
		} else if err != nil {
			return err
		}
	}

	return nil
}

// Next returns the next token, nil once the stream is exhausted.
func (l *Lexer) Next() *Token {
	if l.idx >= uint(len(l.tokens)) {
		return nil
	}
	tk := l.tokens[l.idx]
	l.idx++
	return tk
}

const (
	leftParen   = '('
	rightParen  = ')'
	quote       = '"'
	singleQuote = '\''
	backquote   = '`'
	backslash   = '\\'
)

func lexLine(l *Lexer) (stateFunc, error) {
	r, err := l.next()
	if err == io.EOF {
		l.emit(EOFToken)
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	switch true {
	case isSpace(r):
		return lexSpaces, nil
	case isEOL(r):
		return lexEOL, nil
	case r == leftParen:
		l.emit(LeftParenToken)
		return lexLine, nil
	case r == rightParen:
		l.emit(RightParenToken)
		return lexLine, nil
	case r == singleQuote:
		return lexSingleQuote, nil
	case r == quote:
		return lexQuote, nil
	case r == backquote:
		return lexBackquote, nil
	}

	return lexAtom, nil
}

func lexAtom(l *Lexer) (stateFunc, error) {
	for {
		r, err := l.next()
		if err != nil {
			return nil, err
		}

		if isAtomTermination(r) {
			if err := l.backup(); err != nil {
				return nil, err
			}

			l.emit(AtomToken)
			return lexLine, nil
		}
	}
}

func lexQuote(l *Lexer) (stateFunc, error) {
	return lexString(l, quote)
}

func lexSingleQuote(l *Lexer) (stateFunc, error) {
	return lexString(l, singleQuote)
}

func lexString(l *Lexer, quoteRune rune) (stateFunc, error) {
	var escaped bool
	var sb strings.Builder
	for {
		r, err := l.next()
		if err == io.EOF {
			return l.errorf("unterminated string literal"), nil
		} else if err != nil {
			return nil, err
		}

		switch {
		case escaped:
			sb.WriteRune(unescapeRune(r))
			escaped = false
		case r == backslash:
			escaped = true
		case r == quoteRune:
			l.emitValue(StringToken, sb.String())
			return lexLine, nil
		default:
			sb.WriteRune(r)
		}
	}
}

func unescapeRune(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	}
	return r
}

func lexBackquote(l *Lexer) (stateFunc, error) {
	for {
		r, err := l.next()
		if err == io.EOF {
			return l.errorf("unterminated quoted identifier"), nil
		} else if err != nil {
			return nil, err
		}

		if r == backquote {
			l.emit(QuotedIdentToken)
			return lexLine, nil
		}
	}
}

func lexSpaces(l *Lexer) (stateFunc, error) {
	for {
		r, err := l.next()
		if err != nil {
			return nil, err
		}

		if !isSpace(r) {
			if err := l.backup(); err != nil {
				return nil, err
			}
			l.ignore()
			return lexLine, nil
		}
	}
}

func lexEOL(l *Lexer) (stateFunc, error) {
	// first eol was already scanned
	l.newLine()
	l.ignore()

	for {
		r, err := l.next()
		if err != nil {
			return nil, err
		}

		if !isEOL(r) {
			if err := l.backup(); err != nil {
				return nil, err
			}
			l.ignore()
			return lexLine, nil
		}

		l.newLine()
		l.ignore()
	}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

func isEOL(r rune) bool {
	return r == '\r' || r == '\n'
}

func isAtomTermination(r rune) bool {
	return r == leftParen || r == rightParen || isSpace(r) || isEOL(r)
}

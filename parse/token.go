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

// Token is a lexical token of an AST dump.
type Token struct {
	Type  TokenType
	Value string
	Line  uint
	Pos   uint
}

// TokenType is the lexical class of a token.
type TokenType uint

const (
	ErrorToken TokenType = iota
	EOFToken
	LeftParenToken
	RightParenToken
	AtomToken
	StringToken
	QuotedIdentToken
)

func NewToken(typ TokenType, value string, line, pos uint) *Token {
	return &Token{
		Type:  typ,
		Value: value,
		Line:  line,
		Pos:   pos,
	}
}

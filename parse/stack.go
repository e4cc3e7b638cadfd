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

// frame is a node whose closing paren has not been read yet.
type frame struct {
	kind     Kind
	text     string
	line     int
	col      int
	children []Node
}

type stack []*frame

func (s stack) isEmpty() bool {
	return len(s) == 0
}

func (s stack) peek() *frame {
	return s[len(s)-1]
}

func (s *stack) put(f *frame) {
	*s = append(*s, f)
}

func (s *stack) pop() *frame {
	f := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]
	return f
}

func newStack() *stack {
	return new(stack)
}

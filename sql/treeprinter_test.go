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
	"testing"

	"github.com/stretchr/testify/require"
)

const expectedOperatorTree = `FS_4
 └─ JOIN_3
     ├─ RS_1
     │   └─ TS_0
     └─ RS_2
         └─ TS_5
`

func TestTreePrinter(t *testing.T) {
	left := NewTreePrinter()
	left.WriteNode("RS_%d", 1)
	left.WriteChildren("TS_0")

	right := NewTreePrinter()
	right.WriteNode("RS_%d", 2)
	right.WriteChildren("TS_5\n")

	join := NewTreePrinter()
	join.WriteNode("JOIN_3")
	join.WriteChildren(left.String(), right.String())

	p := NewTreePrinter()
	p.WriteNode("FS_4")
	p.WriteChildren(join.String())

	require.Equal(t, expectedOperatorTree, p.String())
}

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

package expression

import (
	"sort"

	"github.com/difin/hive-sub000/parse"
)

// Translation replaces the text of one AST token when the query text is
// regenerated, e.g. to persist a view definition with fully qualified
// names.
type Translation struct {
	Line        int
	Col         int
	Original    string
	Replacement string
}

// Translator collects translations. It is only enabled for statements
// whose text is persisted.
type Translator struct {
	enabled      bool
	translations map[[2]int]Translation
}

// NewTranslator returns a disabled translator.
func NewTranslator() *Translator {
	return &Translator{translations: make(map[[2]int]Translation)}
}

// Enable turns collection on.
func (t *Translator) Enable() { t.enabled = true }

// Enabled reports whether translations are collected.
func (t *Translator) Enabled() bool { return t != nil && t.enabled }

// Add records a replacement for node. Nodes without a source position
// are ignored.
func (t *Translator) Add(node parse.Node, replacement string) {
	if !t.Enabled() || node.Line() == 0 {
		return
	}
	key := [2]int{node.Line(), node.Col()}
	if _, ok := t.translations[key]; ok {
		return
	}
	t.translations[key] = Translation{
		Line:        node.Line(),
		Col:         node.Col(),
		Original:    node.Text(),
		Replacement: replacement,
	}
}

// AddColumn records the qualified spelling of a column reference.
func (t *Translator) AddColumn(node parse.Node, tabAlias, col string) {
	if tabAlias == "" {
		t.Add(node, quoteIdent(col))
		return
	}
	t.Add(node, quoteIdent(tabAlias)+"."+quoteIdent(col))
}

// AddTable records the qualified spelling of a table name.
func (t *Translator) AddTable(node parse.Node, db, table string) {
	t.Add(node, quoteIdent(db)+"."+quoteIdent(table))
}

// Translations returns the recorded translations in source order.
func (t *Translator) Translations() []Translation {
	if t == nil {
		return nil
	}
	out := make([]Translation, 0, len(t.translations))
	for _, tr := range t.translations {
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Col < out[j].Col
	})
	return out
}

func quoteIdent(s string) string {
	return "`" + s + "`"
}

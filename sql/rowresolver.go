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
	"regexp"
	"strings"

	"github.com/difin/hive-sub000/parse"
)

// NamedJoinInfo records the columns shared through JOIN ... USING so that
// star expansion lists them only once.
type NamedJoinInfo struct {
	TableAliases []string
	NamedColumns []string
}

// ResolvedColumn is one result of a star or regex expansion.
type ResolvedColumn struct {
	TabAlias string
	Alias    string
	Info     *ColumnInfo
}

type columnMap struct {
	names []string
	cols  map[string]*ColumnInfo
}

func (m *columnMap) put(name string, info *ColumnInfo) {
	if _, ok := m.cols[name]; !ok {
		m.names = append(m.names, name)
	}
	m.cols[name] = info
}

// RowResolver maps (table alias, column alias) pairs to the columns of one
// operator's output and back again. It is append-only while the operator
// it describes is being built.
type RowResolver struct {
	schema            RowSchema
	rslvMap           map[string]*columnMap
	aliasOrder        []string
	invRslvMap        map[string][2]string
	altInvRslvMap     map[string][][2]string
	exprMap           map[string]parse.Node
	checkForAmbiguity bool
	isExprResolver    bool
	namedJoinInfo     *NamedJoinInfo
	outer             *RowResolver
}

// NewRowResolver creates an empty resolver that rejects ambiguous
// unqualified lookups.
func NewRowResolver() *RowResolver {
	return &RowResolver{
		rslvMap:           make(map[string]*columnMap),
		invRslvMap:        make(map[string][2]string),
		altInvRslvMap:     make(map[string][][2]string),
		exprMap:           make(map[string]parse.Node),
		checkForAmbiguity: true,
	}
}

// SetCheckForAmbiguity toggles rejection of ambiguous unqualified lookups.
func (r *RowResolver) SetCheckForAmbiguity(check bool) {
	r.checkForAmbiguity = check
}

// CheckForAmbiguity reports whether ambiguous lookups fail.
func (r *RowResolver) CheckForAmbiguity() bool {
	return r.checkForAmbiguity
}

// SetIsExprResolver marks the resolver as describing an expression-keyed
// output (group by), where expressions win over plain columns.
func (r *RowResolver) SetIsExprResolver(b bool) {
	r.isExprResolver = b
}

// IsExprResolver reports whether SetIsExprResolver was called.
func (r *RowResolver) IsExprResolver() bool {
	return r.isExprResolver
}

// SetNamedJoinInfo records USING columns.
func (r *RowResolver) SetNamedJoinInfo(info *NamedJoinInfo) {
	r.namedJoinInfo = info
}

// NamedJoinInfo returns the USING columns, if any.
func (r *RowResolver) NamedJoinInfo() *NamedJoinInfo {
	return r.namedJoinInfo
}

// SetOuter chains an enclosing scope used for correlated references.
func (r *RowResolver) SetOuter(outer *RowResolver) {
	r.outer = outer
}

// Outer returns the enclosing scope.
func (r *RowResolver) Outer() *RowResolver {
	return r.outer
}

// Put registers a binding. Registering a column whose internal name is
// already present adds an alternate mapping without growing the schema.
func (r *RowResolver) Put(tabAlias, colAlias string, info *ColumnInfo) {
	r.put(strings.ToLower(tabAlias), strings.ToLower(colAlias), info)
}

func (r *RowResolver) put(tabAlias, colAlias string, info *ColumnInfo) {
	m, ok := r.rslvMap[tabAlias]
	if !ok {
		m = &columnMap{cols: make(map[string]*ColumnInfo)}
		r.rslvMap[tabAlias] = m
		r.aliasOrder = append(r.aliasOrder, tabAlias)
	}
	m.put(colAlias, info)

	if _, ok := r.invRslvMap[info.InternalName]; ok {
		r.altInvRslvMap[info.InternalName] = append(r.altInvRslvMap[info.InternalName], [2]string{tabAlias, colAlias})
		return
	}
	r.invRslvMap[info.InternalName] = [2]string{tabAlias, colAlias}
	if info.TabAlias == "" {
		info.TabAlias = tabAlias
	}
	if info.Alias == "" {
		info.Alias = colAlias
	}
	r.schema = append(r.schema, info)
}

// PutWithCheck is Put that fails when (tabAlias, colAlias) is already bound
// to a different column.
func (r *RowResolver) PutWithCheck(tabAlias, colAlias string, info *ColumnInfo) error {
	if m, ok := r.rslvMap[strings.ToLower(tabAlias)]; ok {
		if existing, ok := m.cols[strings.ToLower(colAlias)]; ok && existing.InternalName != info.InternalName {
			return ErrDuplicateColumn.New(tabAlias, colAlias)
		}
	}
	r.Put(tabAlias, colAlias, info)
	return nil
}

// Get resolves a column. A nil column with a nil error means unresolved.
// Unqualified lookups fail on ambiguity unless ambiguity checks are off.
func (r *RowResolver) Get(tabAlias, colAlias string) (*ColumnInfo, error) {
	tabAlias = strings.ToLower(tabAlias)
	colAlias = strings.ToLower(colAlias)

	if tabAlias != "" {
		m, ok := r.rslvMap[tabAlias]
		if !ok {
			return nil, nil
		}
		return m.cols[colAlias], nil
	}

	var found *ColumnInfo
	var foundIn []string
	for _, alias := range r.aliasOrder {
		info, ok := r.rslvMap[alias].cols[colAlias]
		if !ok {
			continue
		}
		if found == nil {
			found = info
			foundIn = append(foundIn, alias)
			continue
		}
		if found.InternalName != info.InternalName {
			foundIn = append(foundIn, alias)
		}
	}
	if len(foundIn) > 1 && r.checkForAmbiguity && !r.sharedUsingColumn(colAlias) {
		return nil, ErrAmbiguousColumn.New(colAlias, strings.Join(foundIn, ", "))
	}
	return found, nil
}

func (r *RowResolver) sharedUsingColumn(col string) bool {
	if r.namedJoinInfo == nil {
		return false
	}
	for _, c := range r.namedJoinInfo.NamedColumns {
		if c == col {
			return true
		}
	}
	return false
}

// LookupInScope resolves a column in this resolver, then in the enclosing
// scopes. depth is 0 for a local hit.
func (r *RowResolver) LookupInScope(tabAlias, colAlias string) (info *ColumnInfo, depth int, err error) {
	for cur := r; cur != nil; cur = cur.outer {
		info, err = cur.Get(tabAlias, colAlias)
		if err != nil || info != nil {
			return info, depth, err
		}
		depth++
	}
	return nil, 0, nil
}

// HasTableAlias reports whether any column is bound under the alias.
func (r *RowResolver) HasTableAlias(tabAlias string) bool {
	_, ok := r.rslvMap[strings.ToLower(tabAlias)]
	return ok
}

// TableAliases returns the aliases in registration order.
func (r *RowResolver) TableAliases() []string {
	return append([]string(nil), r.aliasOrder...)
}

// FieldMap returns the columns bound under one alias in registration
// order.
func (r *RowResolver) FieldMap(tabAlias string) []ResolvedColumn {
	m, ok := r.rslvMap[strings.ToLower(tabAlias)]
	if !ok {
		return nil
	}
	out := make([]ResolvedColumn, 0, len(m.names))
	for _, n := range m.names {
		out = append(out, ResolvedColumn{TabAlias: tabAlias, Alias: n, Info: m.cols[n]})
	}
	return out
}

// ReverseLookup returns the primary (table alias, column alias) of an
// internal name.
func (r *RowResolver) ReverseLookup(internalName string) (string, string, bool) {
	v, ok := r.invRslvMap[internalName]
	return v[0], v[1], ok
}

// AlternateMappings returns the secondary bindings of an internal name.
func (r *RowResolver) AlternateMappings(internalName string) [][2]string {
	return r.altInvRslvMap[internalName]
}

// PutExpression registers a column computed for an expression, keyed by
// its normalized text. The key keeps the case of token kinds, so it never
// collides with a column name.
func (r *RowResolver) PutExpression(node parse.Node, info *ColumnInfo) {
	key := node.Normalized()
	r.exprMap[key] = node
	r.put("", key, info)
}

// PutFrom binds info under (tabAlias, colAlias) as that pair is bound in
// from. Expression bindings stay expression bindings.
func (r *RowResolver) PutFrom(from *RowResolver, tabAlias, colAlias string, info *ColumnInfo) {
	if tabAlias == "" {
		if n, ok := from.exprMap[colAlias]; ok {
			r.PutExpression(n, info)
			return
		}
	}
	r.Put(tabAlias, colAlias, info)
}

// GetExpression resolves an expression registered with PutExpression.
func (r *RowResolver) GetExpression(node parse.Node) *ColumnInfo {
	m, ok := r.rslvMap[""]
	if !ok {
		return nil
	}
	return m.cols[node.Normalized()]
}

// ExpressionNode returns the AST registered for an expression key.
func (r *RowResolver) ExpressionNode(key string) (parse.Node, bool) {
	n, ok := r.exprMap[key]
	return n, ok
}

// ColumnInfos returns the output schema in order.
func (r *RowResolver) ColumnInfos() RowSchema {
	return r.schema
}

// Len returns the number of distinct columns.
func (r *RowResolver) Len() int {
	return len(r.schema)
}

// ExpandColumns matches every visible column of the alias (or of every
// alias when tabAlias is empty) whose name matches pattern. Matches come
// out alias by alias, columns in registration order; USING columns are
// listed once, first.
func (r *RowResolver) ExpandColumns(tabAlias string, pattern string) ([]ResolvedColumn, error) {
	re, err := regexp.Compile("(?i)^(?:" + pattern + ")$")
	if err != nil {
		return nil, ErrInvalidColumn.New(pattern)
	}

	tabAlias = strings.ToLower(tabAlias)
	if tabAlias != "" && !r.HasTableAlias(tabAlias) {
		return nil, ErrInvalidTableAlias.New(tabAlias)
	}

	var out []ResolvedColumn
	seen := make(map[string]bool)
	shared := make(map[string]bool)

	if nj := r.namedJoinInfo; nj != nil && (tabAlias == "" || containsString(nj.TableAliases, tabAlias)) {
		for _, col := range nj.NamedColumns {
			shared[col] = true
			for _, alias := range nj.TableAliases {
				info, _ := r.Get(alias, col)
				if info == nil {
					continue
				}
				if re.MatchString(col) && !seen[info.InternalName] {
					out = append(out, ResolvedColumn{TabAlias: alias, Alias: col, Info: info})
					seen[info.InternalName] = true
				}
				break
			}
		}
	}

	aliases := r.aliasOrder
	if tabAlias != "" {
		aliases = []string{tabAlias}
	}
	inJoin := func(alias string) bool {
		return r.namedJoinInfo != nil && containsString(r.namedJoinInfo.TableAliases, alias)
	}
	for _, alias := range aliases {
		if alias == "" {
			continue
		}
		m := r.rslvMap[alias]
		for _, name := range m.names {
			info := m.cols[name]
			if info.IsHidden || seen[info.InternalName] {
				continue
			}
			if shared[name] && inJoin(alias) {
				continue
			}
			if !re.MatchString(name) {
				continue
			}
			out = append(out, ResolvedColumn{TabAlias: alias, Alias: name, Info: info})
			seen[info.InternalName] = true
		}
	}

	if len(out) == 0 {
		return nil, ErrInvalidColumn.New(pattern)
	}
	return out, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *RowResolver) String() string {
	var sb strings.Builder
	for _, alias := range r.aliasOrder {
		m := r.rslvMap[alias]
		for _, n := range m.names {
			sb.WriteString(alias)
			sb.WriteByte('.')
			sb.WriteString(n)
			sb.WriteString("=")
			sb.WriteString(m.cols[n].String())
			sb.WriteString("; ")
		}
	}
	return sb.String()
}

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

package analyzer

import (
	"strings"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/plan"
)

// QB is one query block: a single SELECT with its sources and one or more
// destination clauses.
type QB struct {
	// ID is the colon separated path of subquery aliases leading to the
	// block; the outermost block has an empty id.
	ID    string
	Alias string

	ParseInfo *QBParseInfo
	MetaData  *QBMetaData
	JoinTree  *JoinTree

	// aliases lists every source alias in FROM order.
	aliases      []string
	tables       map[string]*TableRef
	subqueries   map[string]*QBExpr
	ptfs         map[string]*PTFInvocation
	lateralViews map[string][]parse.Node
	// viewAliases marks subquery aliases that are expanded views, with
	// the qualified view name.
	viewAliases map[string]string

	IsSubquery         bool
	IsCTAS             bool
	IsMaterializedView bool
	IsAnalyzeCommand   bool
}

// TableRef is a table reference of a FROM clause, before the name is
// resolved.
type TableRef struct {
	Alias    string
	Database string
	Name     string
	Node     parse.Node
}

// QualifiedName is "db.name" when a database is given, "name" otherwise.
func (t *TableRef) QualifiedName() string {
	if t.Database == "" {
		return t.Name
	}
	return t.Database + "." + t.Name
}

// PTFInvocation is a partitioned table function used in FROM.
type PTFInvocation struct {
	Name        string
	Alias       string
	SourceAlias string
	Node        parse.Node
	PartitionBy []parse.Node
	OrderBy     []OrderExpr
	Args        []parse.Node
}

// NewQB creates a query block nested under the block with id outerID.
func NewQB(outerID, alias string, isSubquery bool) *QB {
	alias = strings.ToLower(alias)
	id := alias
	if outerID != "" {
		id = outerID + ":" + alias
	}
	return &QB{
		ID:           id,
		Alias:        alias,
		ParseInfo:    newQBParseInfo(alias, isSubquery),
		MetaData:     newQBMetaData(),
		tables:       make(map[string]*TableRef),
		subqueries:   make(map[string]*QBExpr),
		ptfs:         make(map[string]*PTFInvocation),
		lateralViews: make(map[string][]parse.Node),
		viewAliases:  make(map[string]string),
		IsSubquery:   isSubquery,
	}
}

// parentID returns the id of the block enclosing the block with id id.
func parentID(id string) string {
	if i := strings.LastIndexByte(id, ':'); i >= 0 {
		return id[:i]
	}
	return ""
}

// HasAlias reports whether a source with the alias exists.
func (qb *QB) HasAlias(alias string) bool {
	alias = strings.ToLower(alias)
	for _, a := range qb.aliases {
		if a == alias {
			return true
		}
	}
	return false
}

// Aliases returns every source alias in FROM order.
func (qb *QB) Aliases() []string {
	return append([]string(nil), qb.aliases...)
}

func (qb *QB) addAlias(alias string, node parse.Node) error {
	if qb.HasAlias(alias) {
		return sql.NewSemanticError(node, ErrAmbiguousTableAlias.New(alias))
	}
	qb.aliases = append(qb.aliases, alias)
	return nil
}

// AddTable registers a table reference.
func (qb *QB) AddTable(ref *TableRef) error {
	if err := qb.addAlias(ref.Alias, ref.Node); err != nil {
		return err
	}
	qb.tables[ref.Alias] = ref
	return nil
}

// AddSubquery registers a FROM subquery.
func (qb *QB) AddSubquery(alias string, expr *QBExpr, node parse.Node) error {
	if err := qb.addAlias(alias, node); err != nil {
		return err
	}
	qb.subqueries[alias] = expr
	return nil
}

// AddPTF registers a partitioned table function.
func (qb *QB) AddPTF(ptf *PTFInvocation) error {
	if err := qb.addAlias(ptf.Alias, ptf.Node); err != nil {
		return err
	}
	qb.ptfs[ptf.Alias] = ptf
	return nil
}

// AddLateralView appends a lateral view applied over the source alias.
func (qb *QB) AddLateralView(alias string, node parse.Node) {
	qb.lateralViews[alias] = append(qb.lateralViews[alias], node)
}

// Table returns the table reference of an alias.
func (qb *QB) Table(alias string) (*TableRef, bool) {
	t, ok := qb.tables[strings.ToLower(alias)]
	return t, ok
}

// TableAliases returns the aliases of table references in FROM order.
func (qb *QB) TableAliases() []string {
	var out []string
	for _, a := range qb.aliases {
		if _, ok := qb.tables[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Subquery returns the FROM subquery of an alias.
func (qb *QB) Subquery(alias string) (*QBExpr, bool) {
	s, ok := qb.subqueries[strings.ToLower(alias)]
	return s, ok
}

// SubqueryAliases returns the aliases of FROM subqueries in FROM order.
func (qb *QB) SubqueryAliases() []string {
	var out []string
	for _, a := range qb.aliases {
		if _, ok := qb.subqueries[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// PTF returns the partitioned table function of an alias.
func (qb *QB) PTF(alias string) (*PTFInvocation, bool) {
	p, ok := qb.ptfs[strings.ToLower(alias)]
	return p, ok
}

// LateralViews returns the lateral views applied over an alias.
func (qb *QB) LateralViews(alias string) []parse.Node {
	return qb.lateralViews[strings.ToLower(alias)]
}

// ReplaceTableWithSubquery turns a table alias into a subquery alias,
// keeping its FROM position. It is used for inlined CTEs and views.
func (qb *QB) ReplaceTableWithSubquery(alias string, expr *QBExpr) {
	delete(qb.tables, alias)
	qb.subqueries[alias] = expr
}

// MarkView records that a subquery alias is an expanded view.
func (qb *QB) MarkView(alias, view string) {
	qb.viewAliases[alias] = view
}

// ViewName returns the view a subquery alias was expanded from.
func (qb *QB) ViewName(alias string) (string, bool) {
	v, ok := qb.viewAliases[alias]
	return v, ok
}

// ClauseKind enumerates the per-destination clauses.
type ClauseKind int

const (
	SelectClause ClauseKind = iota
	WhereClause
	GroupByClause
	HavingClause
	QualifyClause
	OrderByClause
	SortByClause
	ClusterByClause
	DistributeByClause
	LimitClause
)

var clauseNames = map[ClauseKind]string{
	SelectClause:       "SELECT",
	WhereClause:        "WHERE",
	GroupByClause:      "GROUP BY",
	HavingClause:       "HAVING",
	QualifyClause:      "QUALIFY",
	OrderByClause:      "ORDER BY",
	SortByClause:       "SORT BY",
	ClusterByClause:    "CLUSTER BY",
	DistributeByClause: "DISTRIBUTE BY",
	LimitClause:        "LIMIT",
}

func (k ClauseKind) String() string { return clauseNames[k] }

// GroupingKind is the grouping transform a GROUP BY applies.
type GroupingKind int

const (
	PlainGrouping GroupingKind = iota
	RollupGrouping
	CubeGrouping
	GroupingSetsGrouping
)

// Limit is a LIMIT clause; Offset is 0 when absent.
type Limit struct {
	Offset int
	Count  int
	Node   parse.Node
}

// Destination is one INSERT clause of a query block, with every clause
// that applies to it.
type Destination struct {
	Name string
	// Node is the TOK_DESTINATION or TOK_INSERT_INTO node.
	Node        parse.Node
	InsertInto  bool
	IfNotExists bool
	// InsertColumns is the explicit target column list of INSERT INTO.
	InsertColumns []string

	clauses map[ClauseKind]parse.Node

	Distinct     bool
	GroupingKind GroupingKind
	Limit        *Limit
	Hints        parse.Node

	aggregations    []parse.Node
	aggregationIdx  map[string]int
	distinctAggs    []parse.Node
	Windowing       *WindowingSpec
	subqueryAliases map[string]string
}

func newDestination(name string, node parse.Node) *Destination {
	return &Destination{
		Name:            name,
		Node:            node,
		clauses:         make(map[ClauseKind]parse.Node),
		aggregationIdx:  make(map[string]int),
		subqueryAliases: make(map[string]string),
	}
}

// Clause returns the AST of a clause. For WHERE, HAVING and QUALIFY it is
// the predicate, for SELECT and the ordering clauses the clause node.
func (d *Destination) Clause(k ClauseKind) (parse.Node, bool) {
	n, ok := d.clauses[k]
	return n, ok
}

// SetClause records a clause.
func (d *Destination) SetClause(k ClauseKind, n parse.Node) {
	d.clauses[k] = n
}

// RemoveClause drops a clause, e.g. a WHERE fully pushed below a join.
func (d *Destination) RemoveClause(k ClauseKind) {
	delete(d.clauses, k)
}

// HasClause reports whether a clause was given.
func (d *Destination) HasClause(k ClauseKind) bool {
	_, ok := d.clauses[k]
	return ok
}

// AddAggregation registers an aggregate call by its normalized text. It
// returns false for duplicates.
func (d *Destination) AddAggregation(n parse.Node) bool {
	key := n.Normalized()
	if _, ok := d.aggregationIdx[key]; ok {
		return false
	}
	d.aggregationIdx[key] = len(d.aggregations)
	d.aggregations = append(d.aggregations, n)
	if n.Kind() == parse.TokFunctionDI {
		d.distinctAggs = append(d.distinctAggs, n)
	}
	return true
}

// Aggregations returns the distinct aggregate calls in first-seen order.
func (d *Destination) Aggregations() []parse.Node {
	return d.aggregations
}

// DistinctAggregations returns the aggregate calls using DISTINCT.
func (d *Destination) DistinctAggregations() []parse.Node {
	return d.distinctAggs
}

// HasAggregation reports whether the normalized expression is a
// registered aggregate call.
func (d *Destination) HasAggregation(n parse.Node) bool {
	_, ok := d.aggregationIdx[n.Normalized()]
	return ok
}

// SelectExprs returns the TOK_SELEXPR children of the select clause.
func (d *Destination) SelectExprs() []parse.Node {
	sel, ok := d.clauses[SelectClause]
	if !ok {
		return nil
	}
	var out []parse.Node
	for _, c := range sel.Children() {
		if c.Kind() == parse.TokSelExpr {
			out = append(out, c)
		}
	}
	return out
}

// SubqueryAlias returns the alias assigned to a subquery predicate of the
// WHERE or HAVING clause.
func (d *Destination) SubqueryAlias(n parse.Node) (string, bool) {
	a, ok := d.subqueryAliases[n.Normalized()]
	return a, ok
}

func (d *Destination) setSubqueryAlias(n parse.Node, alias string) {
	d.subqueryAliases[n.Normalized()] = alias
}

// IsSelectStar reports whether the select list is a single unqualified
// or qualified *.
func (d *Destination) IsSelectStar() bool {
	for _, se := range d.SelectExprs() {
		if se.Child(0).Kind() == parse.TokAllColRef {
			return true
		}
	}
	return false
}

// QBParseInfo holds the clauses of a query block per destination, in
// destination order.
type QBParseInfo struct {
	Alias      string
	IsSubquery bool

	// JoinExpr is the join node of the FROM clause, if any.
	JoinExpr parse.Node
	// FromExpr is the single child of TOK_FROM.
	FromExpr parse.Node

	destOrder []string
	dests     map[string]*Destination

	TableSamples map[string]*TableSample
	SplitSamples map[string]*SplitSample
	AsOf         map[string]*AsOfSpec

	IsMultiInsert bool
}

func newQBParseInfo(alias string, isSubquery bool) *QBParseInfo {
	return &QBParseInfo{
		Alias:        alias,
		IsSubquery:   isSubquery,
		dests:        make(map[string]*Destination),
		TableSamples: make(map[string]*TableSample),
		SplitSamples: make(map[string]*SplitSample),
		AsOf:         make(map[string]*AsOfSpec),
	}
}

// AddDestination registers a destination clause.
func (p *QBParseInfo) AddDestination(d *Destination) {
	if _, ok := p.dests[d.Name]; !ok {
		p.destOrder = append(p.destOrder, d.Name)
	}
	p.dests[d.Name] = d
	p.IsMultiInsert = len(p.destOrder) > 1
}

// Destination returns a destination clause by name.
func (p *QBParseInfo) Destination(name string) (*Destination, bool) {
	d, ok := p.dests[name]
	return d, ok
}

// Destinations returns the destination clauses in query order.
func (p *QBParseInfo) Destinations() []*Destination {
	out := make([]*Destination, len(p.destOrder))
	for i, n := range p.destOrder {
		out[i] = p.dests[n]
	}
	return out
}

// TableSample is TABLESAMPLE(BUCKET x OUT OF y [ON cols]).
type TableSample struct {
	Numerator   int
	Denominator int
	Exprs       []parse.Node
	Node        parse.Node
}

// SplitSampleKind is what a split sample bounds.
type SplitSampleKind int

const (
	PercentSample SplitSampleKind = iota
	RowCountSample
	LengthSample
)

// SplitSample is TABLESAMPLE(n PERCENT | n ROWS | nM).
type SplitSample struct {
	Kind     SplitSampleKind
	Percent  float64
	RowCount int
	Length   int64
	Node     parse.Node
}

// AsOfSpec is a time travel clause.
type AsOfSpec struct {
	Version   string
	Timestamp string
}

func (s *AsOfSpec) String() string {
	if s.Version != "" {
		return "version " + s.Version
	}
	return "timestamp " + s.Timestamp
}

// DestPartition is a resolved partition write target.
type DestPartition struct {
	Table sql.Table
	Spec  sql.PartitionSpec
}

// QBMetaData holds the catalog objects a query block reads and writes.
type QBMetaData struct {
	aliasToTable    map[string]sql.Table
	destToTable     map[string]sql.Table
	destToPartition map[string]*DestPartition
	destToDir       map[string]string
	destType        map[string]plan.DestinationType
}

func newQBMetaData() *QBMetaData {
	return &QBMetaData{
		aliasToTable:    make(map[string]sql.Table),
		destToTable:     make(map[string]sql.Table),
		destToPartition: make(map[string]*DestPartition),
		destToDir:       make(map[string]string),
		destType:        make(map[string]plan.DestinationType),
	}
}

// SetSource binds a table alias to its catalog table.
func (m *QBMetaData) SetSource(alias string, t sql.Table) {
	m.aliasToTable[alias] = t
}

// Source returns the table bound to an alias.
func (m *QBMetaData) Source(alias string) (sql.Table, bool) {
	t, ok := m.aliasToTable[alias]
	return t, ok
}

// SetDestTable binds a destination to a table write.
func (m *QBMetaData) SetDestTable(dest string, t sql.Table) {
	m.destToTable[dest] = t
	m.destType[dest] = plan.DestTable
}

// SetDestPartition binds a destination to a partition write. A spec with
// dynamic columns writes the table.
func (m *QBMetaData) SetDestPartition(dest string, p *DestPartition) {
	m.destToPartition[dest] = p
	m.destToTable[dest] = p.Table
	if p.Spec.IsStatic() {
		m.destType[dest] = plan.DestPartition
	} else {
		m.destType[dest] = plan.DestTable
	}
}

// SetDestDir binds a destination to a directory or result file.
func (m *QBMetaData) SetDestDir(dest, dir string, typ plan.DestinationType) {
	m.destToDir[dest] = dir
	m.destType[dest] = typ
}

// DestType returns the kind of write target of a destination.
func (m *QBMetaData) DestType(dest string) (plan.DestinationType, bool) {
	t, ok := m.destType[dest]
	return t, ok
}

// DestTable returns the table written by a destination.
func (m *QBMetaData) DestTable(dest string) (sql.Table, bool) {
	t, ok := m.destToTable[dest]
	return t, ok
}

// DestPartition returns the static partition written by a destination.
func (m *QBMetaData) DestPartition(dest string) (*DestPartition, bool) {
	p, ok := m.destToPartition[dest]
	return p, ok
}

// DestDir returns the directory written by a destination.
func (m *QBMetaData) DestDir(dest string) (string, bool) {
	d, ok := m.destToDir[dest]
	return d, ok
}

// SetOpType is the operator of a set operation.
type SetOpType int

const (
	UnionAll SetOpType = iota
	UnionDistinct
	IntersectAll
	IntersectDistinct
	ExceptAll
	ExceptDistinct
)

var setOpNames = map[SetOpType]string{
	UnionAll:          "UNION ALL",
	UnionDistinct:     "UNION DISTINCT",
	IntersectAll:      "INTERSECT ALL",
	IntersectDistinct: "INTERSECT DISTINCT",
	ExceptAll:         "EXCEPT ALL",
	ExceptDistinct:    "EXCEPT DISTINCT",
}

func (o SetOpType) String() string { return setOpNames[o] }

// IsUnion reports whether the operator is a UNION.
func (o SetOpType) IsUnion() bool { return o == UnionAll || o == UnionDistinct }

// IsDistinct reports whether duplicates are removed.
func (o SetOpType) IsDistinct() bool {
	return o == UnionDistinct || o == IntersectDistinct || o == ExceptDistinct
}

func setOpFromKind(k parse.Kind) SetOpType {
	switch k {
	case parse.TokUnionDistinct:
		return UnionDistinct
	case parse.TokIntersectAll:
		return IntersectAll
	case parse.TokIntersectDistinct:
		return IntersectDistinct
	case parse.TokExceptAll:
		return ExceptAll
	case parse.TokExceptDistinct:
		return ExceptDistinct
	}
	return UnionAll
}

// QBExprKind tags a QBExpr.
type QBExprKind int

const (
	// LeafExpr wraps a single query block.
	LeafExpr QBExprKind = iota
	// SetOpExpr combines two expressions with a set operator.
	SetOpExpr
)

// QBExpr is a tree of query blocks combined by set operations. Leaves
// hold a query block, set operation nodes never do.
type QBExpr struct {
	Kind  QBExprKind
	Alias string

	QB *QB

	Op          SetOpType
	Left, Right *QBExpr
	Node        parse.Node
}

// NewLeaf wraps a query block.
func NewLeaf(qb *QB) *QBExpr {
	return &QBExpr{Kind: LeafExpr, Alias: qb.Alias, QB: qb}
}

// NewSetOp combines two expressions.
func NewSetOp(alias string, op SetOpType, left, right *QBExpr, node parse.Node) *QBExpr {
	return &QBExpr{Kind: SetOpExpr, Alias: alias, Op: op, Left: left, Right: right, Node: node}
}

// Leaves returns the query blocks of the expression from left to right.
func (e *QBExpr) Leaves() []*QB {
	if e.Kind == LeafExpr {
		return []*QB{e.QB}
	}
	return append(e.Left.Leaves(), e.Right.Leaves()...)
}

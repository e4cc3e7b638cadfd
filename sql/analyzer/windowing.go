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
	"fmt"
	"strconv"
	"strings"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
)

// OrderExpr is one sort key of ORDER BY, SORT BY or a window.
type OrderExpr struct {
	Expr       parse.Node
	Asc        bool
	NullsFirst bool
}

// orderExprs reads the sort keys of an ordering clause. Keys without a
// null ordering sort nulls first ascending and last descending.
func orderExprs(clause parse.Node) []OrderExpr {
	var out []OrderExpr
	for _, c := range clause.Children() {
		oe := OrderExpr{Expr: c, Asc: true, NullsFirst: true}
		switch c.Kind() {
		case parse.TokTabSortColNameAsc, parse.TokTabSortColNameDesc:
			oe.Asc = c.Kind() == parse.TokTabSortColNameAsc
			oe.NullsFirst = oe.Asc
			oe.Expr = c.Child(0)
			switch oe.Expr.Kind() {
			case parse.TokNullsFirst:
				oe.NullsFirst = true
				oe.Expr = oe.Expr.Child(0)
			case parse.TokNullsLast:
				oe.NullsFirst = false
				oe.Expr = oe.Expr.Child(0)
			}
		}
		out = append(out, oe)
	}
	return out
}

// orderString renders sort directions as '+' and '-'.
func orderString(keys []OrderExpr) string {
	var sb strings.Builder
	for _, k := range keys {
		if k.Asc {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

func nullOrderString(keys []OrderExpr) string {
	var sb strings.Builder
	for _, k := range keys {
		if k.NullsFirst {
			sb.WriteByte('a')
		} else {
			sb.WriteByte('z')
		}
	}
	return sb.String()
}

// BoundaryKind is the kind of a window frame boundary.
type BoundaryKind int

const (
	UnboundedBoundary BoundaryKind = iota
	CurrentRowBoundary
	OffsetBoundary
)

// WindowBoundary is one end of a window frame.
type WindowBoundary struct {
	Kind      BoundaryKind
	Preceding bool
	Offset    int
}

func (b WindowBoundary) String() string {
	dir := "FOLLOWING"
	if b.Preceding {
		dir = "PRECEDING"
	}
	switch b.Kind {
	case CurrentRowBoundary:
		return "CURRENT ROW"
	case UnboundedBoundary:
		return "UNBOUNDED " + dir
	}
	return fmt.Sprintf("%d %s", b.Offset, dir)
}

// position orders boundaries from the first to the last row of a
// partition.
func (b WindowBoundary) position() int {
	switch b.Kind {
	case CurrentRowBoundary:
		return 0
	case UnboundedBoundary:
		if b.Preceding {
			return -1 << 30
		}
		return 1 << 30
	}
	if b.Preceding {
		return -b.Offset
	}
	return b.Offset
}

// WindowFrame is a ROWS or RANGE frame.
type WindowFrame struct {
	Rows       bool
	Start, End WindowBoundary
}

func (f *WindowFrame) String() string {
	kind := "RANGE"
	if f.Rows {
		kind = "ROWS"
	}
	return fmt.Sprintf("%s BETWEEN %s AND %s", kind, f.Start, f.End)
}

// WindowSpec is the OVER clause of a window function.
type WindowSpec struct {
	PartitionBy []parse.Node
	OrderBy     []OrderExpr
	Frame       *WindowFrame
}

// shuffleKey identifies the partitioning and ordering of a window.
// Functions sharing it are computed by one operator.
func (w *WindowSpec) shuffleKey() string {
	var parts []string
	for _, p := range w.PartitionBy {
		parts = append(parts, p.Normalized())
	}
	parts = append(parts, "|")
	for _, o := range w.OrderBy {
		parts = append(parts, o.Expr.Normalized()+orderString([]OrderExpr{o})+nullOrderString([]OrderExpr{o}))
	}
	return strings.Join(parts, " ")
}

// WindowFunctionSpec is one window function call.
type WindowFunctionSpec struct {
	// Alias names the output column of the call.
	Alias       string
	Node        parse.Node
	Name        string
	Args        []parse.Node
	Distinct    bool
	Star        bool
	IgnoreNulls bool
	Window      *WindowSpec
}

// WindowingSpec holds the window functions of a destination.
type WindowingSpec struct {
	Functions []*WindowFunctionSpec
	byKey     map[string]*WindowFunctionSpec
}

func newWindowingSpec() *WindowingSpec {
	return &WindowingSpec{byKey: make(map[string]*WindowFunctionSpec)}
}

// Add registers a window function by the normalized text of its call.
// A repeated call returns the first registration.
func (s *WindowingSpec) Add(fn *WindowFunctionSpec) *WindowFunctionSpec {
	key := fn.Node.Normalized()
	if prev, ok := s.byKey[key]; ok {
		return prev
	}
	fn.Alias = fmt.Sprintf("%s_window_%d", fn.Name, len(s.Functions))
	s.byKey[key] = fn
	s.Functions = append(s.Functions, fn)
	return fn
}

// Lookup returns the registration of a window function call.
func (s *WindowingSpec) Lookup(n parse.Node) (*WindowFunctionSpec, bool) {
	fn, ok := s.byKey[n.Normalized()]
	return fn, ok
}

// groups returns the functions grouped by shuffle key, in first-seen
// order.
func (s *WindowingSpec) groups() [][]*WindowFunctionSpec {
	var keys []string
	byKey := make(map[string][]*WindowFunctionSpec)
	for _, fn := range s.Functions {
		k := fn.Window.shuffleKey()
		if _, ok := byKey[k]; !ok {
			keys = append(keys, k)
		}
		byKey[k] = append(byKey[k], fn)
	}
	out := make([][]*WindowFunctionSpec, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}

// newWindowFunctionSpec reads a windowed TOK_FUNCTION call.
func newWindowFunctionSpec(node parse.Node) (*WindowFunctionSpec, error) {
	fn := &WindowFunctionSpec{
		Node:     node,
		Name:     strings.ToLower(parse.UnescapeIdentifier(node.Child(0).Text())),
		Distinct: node.Kind() == parse.TokFunctionDI,
		Star:     node.Kind() == parse.TokFunctionStar,
	}
	for _, c := range node.Children()[1:] {
		switch c.Kind() {
		case parse.TokWindowSpec:
			w, err := windowSpecFromNode(c)
			if err != nil {
				return nil, sql.NewSemanticError(c, err)
			}
			fn.Window = w
		case parse.TokIgnoreNulls:
			fn.IgnoreNulls = true
		case parse.TokRespectNulls:
		default:
			fn.Args = append(fn.Args, c)
		}
	}
	return fn, nil
}

func windowSpecFromNode(n parse.Node) (*WindowSpec, error) {
	w := &WindowSpec{}
	for _, c := range n.Children() {
		switch c.Kind() {
		case parse.TokPartitioningSpec:
			for _, p := range c.Children() {
				switch p.Kind() {
				case parse.TokDistributeBy:
					w.PartitionBy = append(w.PartitionBy, p.Children()...)
				case parse.TokOrderBy, parse.TokSortBy:
					w.OrderBy = append(w.OrderBy, orderExprs(p)...)
				case parse.TokClusterBy:
					w.PartitionBy = append(w.PartitionBy, p.Children()...)
					for _, e := range p.Children() {
						w.OrderBy = append(w.OrderBy, OrderExpr{Expr: e, Asc: true, NullsFirst: true})
					}
				default:
					return nil, sql.ErrUnexpectedToken.New(p.Kind())
				}
			}
		case parse.TokWindowRange, parse.TokWindowValues:
			f, err := windowFrameFromNode(c)
			if err != nil {
				return nil, err
			}
			w.Frame = f
		default:
			return nil, sql.ErrUnexpectedToken.New(c.Kind())
		}
	}

	if w.Frame == nil {
		if len(w.OrderBy) > 0 {
			w.Frame = &WindowFrame{
				Start: WindowBoundary{Kind: UnboundedBoundary, Preceding: true},
				End:   WindowBoundary{Kind: CurrentRowBoundary},
			}
		} else {
			w.Frame = &WindowFrame{
				Rows:  true,
				Start: WindowBoundary{Kind: UnboundedBoundary, Preceding: true},
				End:   WindowBoundary{Kind: UnboundedBoundary},
			}
		}
	}

	if !w.Frame.Rows && (w.Frame.Start.Kind == OffsetBoundary || w.Frame.End.Kind == OffsetBoundary) && len(w.OrderBy) != 1 {
		return nil, ErrInvalidWindowFrame.New("range based window frame with an offset needs exactly one sort key")
	}
	return w, nil
}

func windowFrameFromNode(n parse.Node) (*WindowFrame, error) {
	if n.ChildCount() == 0 || n.ChildCount() > 2 {
		return nil, ErrInvalidWindowFrame.New(n.Snippet())
	}
	f := &WindowFrame{Rows: n.Kind() == parse.TokWindowRange}
	start, err := windowBoundary(n.Child(0))
	if err != nil {
		return nil, err
	}
	f.Start = start
	f.End = WindowBoundary{Kind: CurrentRowBoundary}
	if n.ChildCount() == 2 {
		if f.End, err = windowBoundary(n.Child(1)); err != nil {
			return nil, err
		}
	}

	switch {
	case f.Start.Kind == UnboundedBoundary && !f.Start.Preceding:
		return nil, ErrInvalidWindowFrame.New("start of a window cannot be UNBOUNDED FOLLOWING")
	case f.End.Kind == UnboundedBoundary && f.End.Preceding:
		return nil, ErrInvalidWindowFrame.New("end of a window cannot be UNBOUNDED PRECEDING")
	case f.Start.position() > f.End.position():
		return nil, ErrInvalidWindowFrame.New(fmt.Sprintf("window start %s is after window end %s", f.Start, f.End))
	}
	return f, nil
}

func windowBoundary(n parse.Node) (WindowBoundary, error) {
	switch n.Kind() {
	case parse.KwCurrent:
		return WindowBoundary{Kind: CurrentRowBoundary}, nil
	case parse.KwPreceding, parse.KwFollowing:
		b := WindowBoundary{Preceding: n.Kind() == parse.KwPreceding}
		if n.ChildCount() != 1 {
			return b, ErrInvalidWindowFrame.New(n.Snippet())
		}
		amount := n.Child(0)
		if amount.Kind() == parse.KwUnbounded {
			b.Kind = UnboundedBoundary
			return b, nil
		}
		v, err := strconv.Atoi(amount.Text())
		if err != nil || v < 0 {
			return b, ErrInvalidWindowFrame.New(n.Snippet())
		}
		b.Kind = OffsetBoundary
		b.Offset = v
		return b, nil
	}
	return WindowBoundary{}, ErrInvalidWindowFrame.New(n.Snippet())
}

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

package plan

import (
	"fmt"
	"strings"

	"github.com/difin/hive-sub000/sql"
)

// LateralViewForwardDesc splits its input between the select and the
// UDTF branch of a lateral view.
type LateralViewForwardDesc struct {
	Columns []string
}

// OperatorType implements the Descriptor interface.
func (d *LateralViewForwardDesc) OperatorType() OperatorType { return LateralViewForwardOp }

// OutputColumnNames implements the Descriptor interface.
func (d *LateralViewForwardDesc) OutputColumnNames() []string { return d.Columns }

func (d *LateralViewForwardDesc) String() string { return "LateralViewForward" }

// LateralViewJoinDesc concatenates each input row with the rows the
// UDTF produced for it. The first NumSelColumns columns come from the
// select branch.
type LateralViewJoinDesc struct {
	NumSelColumns int
	Outer         bool
	Columns       []string
}

// OperatorType implements the Descriptor interface.
func (d *LateralViewJoinDesc) OperatorType() OperatorType { return LateralViewJoinOp }

// OutputColumnNames implements the Descriptor interface.
func (d *LateralViewJoinDesc) OutputColumnNames() []string { return d.Columns }

func (d *LateralViewJoinDesc) String() string {
	if d.Outer {
		return "LateralViewJoin(outer)"
	}
	return "LateralViewJoin"
}

// UDTFDesc applies a table generating function.
type UDTFDesc struct {
	Function sql.Expression
	// Outer emits a row of NULLs for inputs producing no rows.
	Outer   bool
	Columns []string
}

// OperatorType implements the Descriptor interface.
func (d *UDTFDesc) OperatorType() OperatorType { return UDTFOp }

// OutputColumnNames implements the Descriptor interface.
func (d *UDTFDesc) OutputColumnNames() []string { return d.Columns }

func (d *UDTFDesc) String() string {
	return fmt.Sprintf("UDTF(%s)", d.Function)
}

// ScriptDesc streams rows through an external command.
type ScriptDesc struct {
	Command      string
	InputSerDe   string
	OutputSerDe  string
	RecordReader string
	RecordWriter string
	Columns      []string
}

// OperatorType implements the Descriptor interface.
func (d *ScriptDesc) OperatorType() OperatorType { return ScriptOp }

// OutputColumnNames implements the Descriptor interface.
func (d *ScriptDesc) OutputColumnNames() []string { return d.Columns }

func (d *ScriptDesc) String() string {
	return fmt.Sprintf("Script(%q)", d.Command)
}

// WindowFunctionDesc is one windowed function evaluated by a PTF.
type WindowFunctionDesc struct {
	Alias       string
	Function    sql.Expression
	PartitionBy []sql.Expression
	OrderBy     []sql.Expression
	// Order holds one '+' or '-' per OrderBy expression.
	Order string
	// Frame is the rendered ROWS or RANGE clause, empty for the default
	// frame.
	Frame       string
	IgnoreNulls bool
}

func (w *WindowFunctionDesc) String() string {
	s := fmt.Sprintf("%s: %s over (partition by %s order by %s", w.Alias, w.Function, exprList(w.PartitionBy), exprList(w.OrderBy))
	if w.Frame != "" {
		s += " " + w.Frame
	}
	return s + ")"
}

// PTFDesc evaluates a partitioned table function; windowing is the
// built-in windowing table function.
type PTFDesc struct {
	Name string
	// Args are the constant arguments of a table function in FROM.
	Args []sql.Expression
	// PartitionBy and OrderBy are the partitioning of a table function in
	// FROM; window functions carry their own.
	PartitionBy []sql.Expression
	OrderBy     []sql.Expression
	Functions   []*WindowFunctionDesc
	Columns     []string
}

// OperatorType implements the Descriptor interface.
func (d *PTFDesc) OperatorType() OperatorType { return PTFOp }

// OutputColumnNames implements the Descriptor interface.
func (d *PTFDesc) OutputColumnNames() []string { return d.Columns }

func (d *PTFDesc) String() string {
	fns := make([]string, len(d.Functions))
	for i, f := range d.Functions {
		fns[i] = f.String()
	}
	if len(d.Functions) == 0 {
		return fmt.Sprintf("PTF(%s(%s) partition by %s order by %s)", d.Name, exprList(d.Args), exprList(d.PartitionBy), exprList(d.OrderBy))
	}
	return fmt.Sprintf("PTF(%s: [%s])", d.Name, strings.Join(fns, ", "))
}

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
	"github.com/difin/hive-sub000/sql/expression"
	"github.com/difin/hive-sub000/sql/plan"
)

// formatFamilies maps the known input and output format classes to the
// storage family they belong to. Pairs of different families cannot be
// read back.
var formatFamilies = map[string]string{
	"org.apache.hadoop.mapred.TextInputFormat":                       "text",
	"org.apache.hadoop.hive.ql.io.HiveIgnoreKeyTextOutputFormat":     "text",
	"org.apache.hadoop.mapred.SequenceFileInputFormat":               "sequence",
	"org.apache.hadoop.hive.ql.io.HiveSequenceFileOutputFormat":      "sequence",
	"org.apache.hadoop.hive.ql.io.RCFileInputFormat":                 "rcfile",
	"org.apache.hadoop.hive.ql.io.RCFileOutputFormat":                "rcfile",
	"org.apache.hadoop.hive.ql.io.orc.OrcInputFormat":                "orc",
	"org.apache.hadoop.hive.ql.io.orc.OrcOutputFormat":               "orc",
	"org.apache.hadoop.hive.ql.io.parquet.MapredParquetInputFormat":  "parquet",
	"org.apache.hadoop.hive.ql.io.parquet.MapredParquetOutputFormat": "parquet",
	"org.apache.hadoop.hive.ql.io.avro.AvroContainerInputFormat":     "avro",
	"org.apache.hadoop.hive.ql.io.avro.AvroContainerOutputFormat":    "avro",
}

func validateFormats(t sql.Table) error {
	sd := t.Storage()
	in, inOK := formatFamilies[sd.InputFormat]
	out, outOK := formatFamilies[sd.OutputFormat]
	if inOK && outOK && in != out {
		return ErrInvalidFormat.New(sql.QualifiedName(t), sd.InputFormat, sd.OutputFormat)
	}
	return nil
}

// resolveMetadata is the second pass: it binds every table alias to a
// catalog table, a CTE or an expanded view, and every destination to its
// write target.
func resolveMetadata(ctx *sql.Context, a *Analyzer, c *Compilation) error {
	if c.skipped {
		return nil
	}
	return c.getMetadataExpr(ctx, c.Root)
}

func (c *Compilation) getMetadataExpr(ctx *sql.Context, e *QBExpr) error {
	for _, qb := range e.Leaves() {
		if err := c.getMetadata(ctx, qb); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compilation) getMetadata(ctx *sql.Context, qb *QB) error {
	for _, alias := range qb.TableAliases() {
		ref, _ := qb.Table(alias)
		if cl, ok := c.findCTE(qb, ref); ok {
			if err := c.bindCTE(ctx, qb, alias, cl); err != nil {
				return err
			}
			continue
		}

		t, err := c.getTable(ctx, ref.Database, ref.Name)
		if err != nil {
			return sql.NewSemanticError(ref.Node.Child(0), err)
		}
		if t.Type() == sql.VirtualView {
			if err := c.expandView(ctx, qb, ref, t); err != nil {
				return err
			}
			continue
		}
		if err := validateFormats(t); err != nil {
			return sql.NewSemanticError(ref.Node.Child(0), err)
		}
		if ts, ok := qb.ParseInfo.TableSamples[alias]; ok && len(ts.Exprs) == 0 && !t.Storage().IsBucketed() {
			return sql.NewSemanticError(ts.Node, ErrNonBucketedSample.New(alias))
		}
		qb.MetaData.SetSource(alias, t)
		if err := c.addTableInput(t); err != nil {
			return err
		}
	}

	for _, alias := range qb.SubqueryAliases() {
		sub, _ := qb.Subquery(alias)
		view, isView := qb.ViewName(alias)
		if isView {
			c.viewChain = append(c.viewChain, view)
		}
		err := c.getMetadataExpr(ctx, sub)
		if isView {
			c.viewChain = c.viewChain[:len(c.viewChain)-1]
		}
		if err != nil {
			return err
		}
	}

	for _, dest := range qb.ParseInfo.Destinations() {
		if err := c.resolveDestination(ctx, qb, dest); err != nil {
			return err
		}
	}
	return nil
}

// bindCTE inlines a CTE reference as a subquery, or binds it to the
// temporary table of a materialized CTE.
func (c *Compilation) bindCTE(ctx *sql.Context, qb *QB, alias string, cl *CTEClause) error {
	if cl.Materialize {
		t, err := c.materializeCTE(ctx, cl)
		if err != nil {
			return err
		}
		qb.MetaData.SetSource(alias, t)
		return nil
	}
	expr, _, err := c.phase1QBExpr(ctx, cl.Node.Clone(), qb.ID, alias)
	if err != nil {
		return err
	}
	qb.ReplaceTableWithSubquery(alias, expr)
	return nil
}

func (c *Compilation) parentView() []string {
	if len(c.viewChain) == 0 {
		return nil
	}
	return []string{c.viewChain[len(c.viewChain)-1]}
}

func (c *Compilation) addTableInput(t sql.Table) error {
	_, err := c.root.Plan.AddInput(&plan.ReadEntity{
		Type:    plan.TableEntity,
		Name:    sql.QualifiedName(t),
		Parents: c.parentView(),
		Direct:  len(c.viewChain) == 0,
	})
	return err
}

// expandView replaces a view reference with the parsed view body.
func (c *Compilation) expandView(ctx *sql.Context, qb *QB, ref *TableRef, t sql.Table) error {
	name := sql.QualifiedName(t)
	for i, v := range c.viewChain {
		if v == name {
			cycle := append(append([]string(nil), c.viewChain[i:]...), name)
			return sql.NewSemanticError(ref.Node, ErrRecursiveView.New(name, strings.Join(cycle, " -> ")))
		}
	}
	body, err := parse.ReadString(t.ViewExpandedText())
	if err != nil {
		return sql.NewSemanticError(ref.Node, sql.ErrInternal.Wrap(err, "reading definition of view "+name))
	}

	// the view body gets its own rewrite stream
	saved := c.Translator
	c.Translator = expression.NewTranslator()
	expr, _, err := c.phase1QBExpr(ctx, body, qb.ID, ref.Alias)
	c.Translator = saved
	if err != nil {
		return err
	}
	qb.ReplaceTableWithSubquery(ref.Alias, expr)
	qb.MarkView(ref.Alias, name)

	_, err = c.root.Plan.AddInput(&plan.ReadEntity{
		Type:    plan.ViewEntity,
		Name:    name,
		Parents: c.parentView(),
		Direct:  len(c.viewChain) == 0,
	})
	return err
}

func (c *Compilation) resolveDestination(ctx *sql.Context, qb *QB, dest *Destination) error {
	target := dest.Node.Child(0)
	switch target.Kind() {
	case parse.TokTab:
		return c.resolveTableDestination(ctx, qb, dest, target)
	case parse.TokDir:
		if target.ChildCount() == 0 {
			return sql.NewSemanticError(target, sql.ErrUnexpectedToken.New(target.Kind()))
		}
		if target.Child(0).Kind() == parse.TokTmpFile {
			dir := c.resultDir
			if dir == "" || qb.IsSubquery {
				dir = c.scratchDir(ctx, "-mr-"+dest.Name)
			}
			qb.MetaData.SetDestDir(dest.Name, dir, plan.DestTmpFile)
			return nil
		}
		path := target.Child(0).Text()
		qb.MetaData.SetDestDir(dest.Name, path, plan.DestDir)
		_, err := c.root.Plan.AddOutput(&plan.WriteEntity{
			Type:      plan.DirectoryEntity,
			Name:      path,
			WriteType: plan.WriteInsertOverwrite,
		})
		return err
	case parse.TokLocalDir:
		path := target.Child(0).Text()
		qb.MetaData.SetDestDir(dest.Name, path, plan.DestLocalDir)
		_, err := c.root.Plan.AddOutput(&plan.WriteEntity{
			Type:      plan.LocalDirectoryEntity,
			Name:      path,
			WriteType: plan.WriteInsertOverwrite,
		})
		return err
	}
	return sql.NewSemanticError(target, sql.ErrUnexpectedToken.New(target.Kind()))
}

func (c *Compilation) resolveTableDestination(ctx *sql.Context, qb *QB, dest *Destination, target parse.Node) error {
	nameNode := target.Child(0)
	db, name := tableNameFromNode(nameNode)
	t, err := c.getTable(ctx, db, name)
	if err != nil {
		return sql.NewSemanticError(nameNode, err)
	}
	qualified := sql.QualifiedName(t)
	op := ctx.Operation()

	if t.Type().IsView() && !(t.Type() == sql.MaterializedView && op == sql.OpRebuildMaterializedView) {
		return sql.NewSemanticError(nameNode, ErrInsertIntoView.New(qualified))
	}
	if op.IsAcid() && !t.IsTransactional() {
		return sql.NewSemanticError(nameNode, ErrAcidNotSupported.New(op, qualified))
	}
	if err := validateFormats(t); err != nil {
		return sql.NewSemanticError(nameNode, err)
	}

	var spec sql.PartitionSpec
	if specNode, ok := target.FirstChildOfKind(parse.TokPartSpec); ok {
		if !sql.IsPartitioned(t) {
			return sql.NewSemanticError(specNode, ErrPartitionSpecNonPartitioned.New(qualified))
		}
		spec, err = c.validatePartitionSpec(t, partitionSpecFromNode(specNode))
		if err != nil {
			return sql.NewSemanticError(specNode, err)
		}
	} else if sql.IsPartitioned(t) {
		if !c.Conf.GetBool(sql.ConfDynamicPartition) {
			return sql.NewSemanticError(nameNode, ErrNeedPartitionSpec.New(qualified))
		}
		if strings.EqualFold(c.Conf.GetString(sql.ConfDynamicPartitionMode), "strict") {
			return sql.NewSemanticError(nameNode, ErrDynamicPartitionStrictMode.New(qualified))
		}
		for _, pc := range t.PartitionColumns() {
			spec = append(spec, sql.PartitionKeyValue{Column: pc.Name})
		}
	}

	if spec != nil {
		qb.MetaData.SetDestPartition(dest.Name, &DestPartition{Table: t, Spec: spec})
	} else {
		qb.MetaData.SetDestTable(dest.Name, t)
	}

	if err := checkInsertColumns(t, spec, dest); err != nil {
		return err
	}
	substituteDefaults(t, dest)

	we := &plan.WriteEntity{Type: plan.TableEntity, Name: qualified, WriteType: writeTypeOf(op, dest)}
	if spec != nil {
		if spec.IsStatic() {
			we.Type = plan.PartitionEntity
			we.Partition = spec.String()
		} else {
			we.Dynamic = true
		}
	}
	_, err = c.root.Plan.AddOutput(we)
	return err
}

func writeTypeOf(op sql.Operation, dest *Destination) plan.WriteType {
	switch {
	case op == sql.OpUpdate:
		return plan.WriteUpdate
	case op == sql.OpDelete:
		return plan.WriteDelete
	case dest.InsertInto:
		return plan.WriteInsert
	}
	return plan.WriteInsertOverwrite
}

// validatePartitionSpec orders a partition spec like the table partition
// columns and checks the static and dynamic parts.
func (c *Compilation) validatePartitionSpec(t sql.Table, spec sql.PartitionSpec) (sql.PartitionSpec, error) {
	qualified := sql.QualifiedName(t)
	cols := t.PartitionColumns()
	for _, kv := range spec {
		found := false
		for _, pc := range cols {
			if strings.EqualFold(pc.Name, kv.Column) {
				found = true
				break
			}
		}
		if !found {
			return nil, ErrInvalidPartitionColumn.New(kv.Column, qualified)
		}
	}
	if len(spec) != len(cols) {
		return nil, ErrNeedPartitionSpec.New(qualified)
	}

	ordered := make(sql.PartitionSpec, 0, len(cols))
	for _, pc := range cols {
		v, _ := spec.Get(pc.Name)
		if v != "" {
			if _, err := pc.Type.Convert(v); err != nil {
				return nil, ErrInvalidPartitionValue.New(v, pc.Name)
			}
		}
		ordered = append(ordered, sql.PartitionKeyValue{Column: strings.ToLower(pc.Name), Value: v})
	}
	if ordered.IsStatic() {
		return ordered, nil
	}

	if !c.Conf.GetBool(sql.ConfDynamicPartition) {
		return nil, ErrDynamicPartitionDisabled.New()
	}
	if strings.EqualFold(c.Conf.GetString(sql.ConfDynamicPartitionMode), "strict") && ordered[0].Value == "" {
		return nil, ErrDynamicPartitionStrictMode.New(qualified)
	}
	dynamic := ""
	for _, kv := range ordered {
		if kv.Value == "" && dynamic == "" {
			dynamic = kv.Column
		} else if kv.Value != "" && dynamic != "" {
			return nil, ErrDynamicBeforeStatic.New(dynamic)
		}
	}
	return ordered, nil
}

// checkInsertColumns validates the explicit column list of INSERT INTO.
func checkInsertColumns(t sql.Table, spec sql.PartitionSpec, dest *Destination) error {
	if len(dest.InsertColumns) == 0 {
		return nil
	}
	valid := make(map[string]bool)
	for _, col := range t.Columns() {
		valid[strings.ToLower(col.Name)] = true
	}
	for _, col := range spec.DynamicColumns() {
		valid[strings.ToLower(col)] = true
	}
	seen := make(map[string]bool)
	for _, col := range dest.InsertColumns {
		if seen[col] {
			return sql.NewSemanticError(dest.Node, sql.ErrDuplicateColumn.New(sql.QualifiedName(t), col))
		}
		seen[col] = true
		if !valid[col] {
			return sql.NewSemanticError(dest.Node, sql.ErrInvalidColumn.New(col))
		}
	}
	return nil
}

// substituteDefaults replaces DEFAULT select expressions with the default
// constraint of the target column, or NULL.
func substituteDefaults(t sql.Table, dest *Destination) {
	targets := dest.InsertColumns
	if len(targets) == 0 {
		for _, col := range t.Columns() {
			targets = append(targets, strings.ToLower(col.Name))
		}
	}
	defaults := t.Constraints().Defaults
	for i, se := range dest.SelectExprs() {
		expr := se.Child(0)
		if expr.Kind() != parse.TokDefaultValue {
			continue
		}
		ar := expr.Arena()
		replacement := ar.New(parse.TokNull, "")
		if i < len(targets) {
			if text, ok := lookupFold(defaults, targets[i]); ok {
				def, err := parse.ReadInto(ar, strings.NewReader(text))
				if err != nil {
					def = ar.New(parse.StringLiteral, text)
				}
				replacement = def
			}
		}
		expr.Rebind(replacement)
	}
}

func lookupFold(m map[string]string, key string) (string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

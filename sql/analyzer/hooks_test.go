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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/expression/function"
	"github.com/difin/hive-sub000/sql/plan"
)

type policyMasker map[string]*MaskingPolicy

func (m policyMasker) Policy(_ *sql.Context, t sql.Table, _ []string) (*MaskingPolicy, error) {
	return m[sql.QualifiedName(t)], nil
}

type recordingAuthorizer struct {
	inputs  []string
	outputs []string
	err     error
}

func (a *recordingAuthorizer) Authorize(_ *sql.Context, _ sql.Operation, inputs []*plan.ReadEntity, outputs []*plan.WriteEntity) error {
	for _, e := range inputs {
		a.inputs = append(a.inputs, e.Name)
	}
	for _, e := range outputs {
		a.outputs = append(a.outputs, e.Name)
	}
	return a.err
}

type staticCache struct {
	keys []string
	hit  *plan.CachedResult
}

func (c *staticCache) Lookup(_ *sql.Context, key, _ string) (*plan.CachedResult, bool, error) {
	c.keys = append(c.keys, key)
	return c.hit, c.hit != nil, nil
}

var selectA = query("(TOK_TABREF (TOK_TABNAME t))", "(TOK_SELECT (TOK_SELEXPR (TOK_TABLE_OR_COL a)))")

func TestRowFilterMasking(t *testing.T) {
	require := require.New(t)
	a := NewBuilder(testCatalog(t), function.Default()).
		WithTableMasker(policyMasker{"default.t": {RowFilter: "(> (TOK_TABLE_OR_COL a) 0)"}}).
		Build()

	p, err := a.Analyze(testContext(nil), parse.MustRead(selectA))
	require.NoError(err)

	var filtered bool
	for _, f := range operatorsOf(p, plan.FilterOp) {
		if hasCall(f.Desc.(*plan.FilterDesc).Predicate, ">") {
			filtered = true
		}
	}
	require.True(filtered)
	require.Equal([]string{"a"}, resultNames(p))
}

func TestMaskingUnknownColumn(t *testing.T) {
	require := require.New(t)
	a := NewBuilder(testCatalog(t), function.Default()).
		WithTableMasker(policyMasker{"default.t": {ColumnMasks: map[string]string{"nope": "0"}}}).
		Build()

	_, err := a.Analyze(testContext(nil), parse.MustRead(selectA))
	require.Error(err)
	require.True(sql.IsKind(err, ErrInvalidMaskingPolicy))
}

func TestEmptyMaskingPolicy(t *testing.T) {
	require := require.New(t)
	a := NewBuilder(testCatalog(t), function.Default()).
		WithTableMasker(policyMasker{}).
		Build()

	p, err := a.Analyze(testContext(nil), parse.MustRead(selectA))
	require.NoError(err)
	require.Empty(operatorsOf(p, plan.FilterOp))
}

func TestAuthorizer(t *testing.T) {
	require := require.New(t)
	auth := &recordingAuthorizer{}
	a := NewBuilder(testCatalog(t), function.Default()).WithAuthorizer(auth).Build()

	_, err := a.Analyze(testContext(nil), parse.MustRead(`(TOK_QUERY (TOK_FROM (TOK_TABREF (TOK_TABNAME src)))
		(TOK_INSERT (TOK_DESTINATION (TOK_TAB (TOK_TABNAME dest))) (TOK_SELECT (TOK_SELEXPR TOK_ALLCOLREF))))`))
	require.NoError(err)
	require.Equal([]string{"default.src"}, auth.inputs)
	require.Equal([]string{"default.dest"}, auth.outputs)

	auth.err = fmt.Errorf("denied")
	_, err = a.Analyze(testContext(nil), parse.MustRead(selectA))
	require.EqualError(err, "denied")
}

func TestResultsCache(t *testing.T) {
	require := require.New(t)
	cache := &staticCache{hit: &plan.CachedResult{Key: "k", Location: "/cache/1"}}
	a := NewBuilder(testCatalog(t), function.Default()).WithResultsCache(cache).Build()

	p, err := a.Analyze(testContext(nil), parse.MustRead(selectA))
	require.NoError(err)
	require.Nil(p.CachedResult)
	require.Empty(cache.keys)

	p, err = a.Analyze(testContext(map[string]interface{}{sql.ConfResultsCacheEnabled: true}), parse.MustRead(selectA))
	require.NoError(err)
	require.Equal(cache.hit, p.CachedResult)
	require.Empty(p.Sinks)
	require.Len(cache.keys, 1)
}

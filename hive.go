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

package hive

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/analyzer"
	"github.com/difin/hive-sub000/sql/expression/function"
	"github.com/difin/hive-sub000/sql/plan"
)

// Config for the compiler.
type Config struct {
	// Vars are the configuration variables every compilation starts from.
	// Nil means the defaults.
	Vars *sql.Config
	// Debug logs every analyzer rule.
	Debug bool
	// Verbose logs the generated plans.
	Verbose    bool
	Masker     analyzer.TableMasker
	Cache      analyzer.ResultsCache
	Authorizer analyzer.Authorizer
}

// Compiler turns statement ASTs into logical plans.
type Compiler struct {
	Catalog  sql.Catalog
	Analyzer *analyzer.Analyzer
	Vars     *sql.Config
}

// NewDefault creates a new default Compiler over the catalog.
func NewDefault(catalog sql.Catalog) *Compiler {
	return New(catalog, nil)
}

// New creates a new Compiler with a custom configuration. To create a
// Compiler with the default settings use NewDefault.
func New(catalog sql.Catalog, cfg *Config) *Compiler {
	if cfg == nil {
		cfg = &Config{}
	}
	vars := cfg.Vars
	if vars == nil {
		vars = sql.NewConfig()
	}

	b := analyzer.NewBuilder(catalog, function.Default())
	if cfg.Debug {
		b = b.WithDebug()
	}
	if cfg.Masker != nil {
		b = b.WithTableMasker(cfg.Masker)
	}
	if cfg.Cache != nil {
		b = b.WithResultsCache(cfg.Cache)
	}
	if cfg.Authorizer != nil {
		b = b.WithAuthorizer(cfg.Authorizer)
	}
	a := b.Build()
	a.Verbose = cfg.Verbose

	return &Compiler{Catalog: catalog, Analyzer: a, Vars: vars}
}

// NewContext creates a compilation context holding a copy of the
// compiler variables, so per statement settings do not leak.
func (c *Compiler) NewContext(ctx context.Context, opts ...sql.ContextOption) *sql.Context {
	opts = append([]sql.ContextOption{sql.WithConfig(c.Vars.Clone())}, opts...)
	return sql.NewContext(ctx, opts...)
}

// Compile reads an AST dump and analyzes it.
func (c *Compiler) Compile(ctx *sql.Context, ast string) (*plan.Plan, error) {
	node, err := parse.Read(strings.NewReader(ast))
	if err != nil {
		ctx.GetLogger().WithError(err).Debug("unable to read statement")
		return nil, err
	}
	return c.CompileNode(ctx, node)
}

// CompileNode analyzes a parsed statement.
func (c *Compiler) CompileNode(ctx *sql.Context, node parse.Node) (*plan.Plan, error) {
	logger := ctx.GetLogger().WithFields(logrus.Fields{
		"statement": node.Kind().String(),
		"database":  ctx.CurrentDatabase(),
	})
	logger.Debug("compiling")

	p, err := c.Analyzer.Analyze(ctx, node)
	if err != nil {
		logger.WithError(err).Debug("compilation failed")
		return nil, err
	}
	logger.WithField("operators", len(p.Operators())).Debug("compiled")
	return p, nil
}

// Explain compiles a statement and renders its plan.
func (c *Compiler) Explain(ctx *sql.Context, ast string) (string, error) {
	p, err := c.Compile(ctx, ast)
	if err != nil {
		return "", err
	}
	return plan.Explain(p), nil
}

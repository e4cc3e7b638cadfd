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
	"os"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/difin/hive-sub000/parse"
	"github.com/difin/hive-sub000/sql"
	"github.com/difin/hive-sub000/sql/plan"
)

const debugAnalyzerKey = "DEBUG_ANALYZER"

// RuleFunc is the function signature of every analyzer rule.
type RuleFunc func(*sql.Context, *Analyzer, *Compilation) error

// Rule to transform a compilation.
type Rule struct {
	// Name of the rule.
	Name string
	// Apply transforms the compilation state.
	Apply RuleFunc
}

// Batch executes a set of rules in order.
type Batch struct {
	Desc  string
	Rules []Rule
}

// Eval applies the rules of the batch. A rule asking for a restart stops
// the batch.
func (b *Batch) Eval(ctx *sql.Context, a *Analyzer, c *Compilation) error {
	for _, rule := range b.Rules {
		if c.restart {
			return nil
		}
		a.Log("evaluating rule %s", rule.Name)
		span, ctx := ctx.Span(rule.Name)
		err := rule.Apply(ctx, a, c)
		span.Finish()
		if err != nil {
			return err
		}
	}
	return nil
}

// OnceBeforeDefault parses the statement into query blocks.
var OnceBeforeDefault = []Rule{
	{"phase1", resolveQueryBlocks},
	{"gather_ctes", gatherCTEs},
}

// DefaultRules resolve catalog objects and generate the operator graph.
var DefaultRules = []Rule{
	{"get_metadata", resolveMetadata},
	{"apply_table_masking", applyTableMasking},
	{"check_results_cache", checkResultsCache},
	{"gen_plan", generatePlan},
}

// DefaultValidationRules check the generated plan.
var DefaultValidationRules = []Rule{
	{"validate_plan", validatePlan},
	{"authorize", authorizePlan},
}

// OnceAfterAll finish the plan.
var OnceAfterAll = []Rule{
	{"finalize_plan", finalizePlan},
}

// Builder provides an easy way to generate Analyzer with custom rules and
// hooks.
type Builder struct {
	preAnalyzeRules  []Rule
	postAnalyzeRules []Rule
	catalog          sql.Catalog
	registry         sql.FunctionRegistry
	masker           TableMasker
	cache            ResultsCache
	authorizer       Authorizer
	debug            bool
}

// NewBuilder creates a new Builder over a catalog and a function registry.
func NewBuilder(c sql.Catalog, r sql.FunctionRegistry) *Builder {
	return &Builder{catalog: c, registry: r}
}

// WithDebug activates debug on the Analyzer.
func (ab *Builder) WithDebug() *Builder {
	ab.debug = true
	return ab
}

// WithTableMasker installs a row filtering and column masking hook.
func (ab *Builder) WithTableMasker(m TableMasker) *Builder {
	ab.masker = m
	return ab
}

// WithResultsCache installs a query results cache.
func (ab *Builder) WithResultsCache(rc ResultsCache) *Builder {
	ab.cache = rc
	return ab
}

// WithAuthorizer installs an authorization hook.
func (ab *Builder) WithAuthorizer(auth Authorizer) *Builder {
	ab.authorizer = auth
	return ab
}

// AddPreAnalyzeRule adds a new rule to the analyzer before the standard
// analyzer rules.
func (ab *Builder) AddPreAnalyzeRule(name string, fn RuleFunc) *Builder {
	ab.preAnalyzeRules = append(ab.preAnalyzeRules, Rule{name, fn})
	return ab
}

// AddPostAnalyzeRule adds a new rule to the analyzer after the standard
// analyzer rules.
func (ab *Builder) AddPostAnalyzeRule(name string, fn RuleFunc) *Builder {
	ab.postAnalyzeRules = append(ab.postAnalyzeRules, Rule{name, fn})
	return ab
}

// Build creates a new Analyzer.
func (ab *Builder) Build() *Analyzer {
	_, debug := os.LookupEnv(debugAnalyzerKey)
	batches := []*Batch{
		{Desc: "pre-analyzer", Rules: ab.preAnalyzeRules},
		{Desc: "once-before", Rules: OnceBeforeDefault},
		{Desc: "default-rules", Rules: DefaultRules},
		{Desc: "post-analyzer", Rules: ab.postAnalyzeRules},
		{Desc: "validation", Rules: DefaultValidationRules},
		{Desc: "after-all", Rules: OnceAfterAll},
	}

	return &Analyzer{
		Debug:      debug || ab.debug,
		debugCtx:   make([]string, 0),
		Batches:    batches,
		Catalog:    ab.catalog,
		Registry:   ab.registry,
		Masker:     ab.masker,
		Cache:      ab.cache,
		Authorizer: ab.authorizer,
	}
}

// Analyzer turns statement ASTs into logical plans.
type Analyzer struct {
	// Whether to log various debugging messages
	Debug bool
	// Whether to output the plan after generation
	Verbose  bool
	debugCtx []string
	// Batches of Rules to apply.
	Batches []*Batch
	// Catalog of tables and views.
	Catalog sql.Catalog
	// Registry of functions.
	Registry sql.FunctionRegistry

	Masker     TableMasker
	Cache      ResultsCache
	Authorizer Authorizer
}

// NewDefault creates a default Analyzer instance with all default Rules
// and no hooks.
func NewDefault(c sql.Catalog, r sql.FunctionRegistry) *Analyzer {
	return NewBuilder(c, r).Build()
}

// Log prints an INFO message with the given message and args if the
// analyzer is in debug mode.
func (a *Analyzer) Log(msg string, args ...interface{}) {
	if a != nil && a.Debug {
		if len(a.debugCtx) > 0 {
			ctx := strings.Join(a.debugCtx, "/")
			logrus.Infof("%s: "+msg, append([]interface{}{ctx}, args...)...)
		} else {
			logrus.Infof(msg, args...)
		}
	}
}

// LogPlan prints the plan if Verbose logging is enabled.
func (a *Analyzer) LogPlan(p *plan.Plan) {
	if a != nil && p != nil && a.Verbose {
		if len(a.debugCtx) > 0 {
			logrus.Infof("%s:\n%s", strings.Join(a.debugCtx, "/"), plan.Explain(p))
		} else {
			logrus.Info(plan.Explain(p))
		}
	}
}

// PushDebugContext pushes the given context string onto the context stack,
// to use when logging debug messages.
func (a *Analyzer) PushDebugContext(msg string) {
	if a != nil {
		a.debugCtx = append(a.debugCtx, msg)
	}
}

// PopDebugContext pops a context message off the context stack.
func (a *Analyzer) PopDebugContext() {
	if a != nil && len(a.debugCtx) > 0 {
		a.debugCtx = a.debugCtx[:len(a.debugCtx)-1]
	}
}

// Analyze compiles a statement AST into a plan. A compilation restarted
// by table masking is compiled once more from the rewritten AST.
func (a *Analyzer) Analyze(ctx *sql.Context, ast parse.Node) (*plan.Plan, error) {
	span, ctx := ctx.Span("analyze", opentracing.Tags{
		"query": ctx.Query(),
	})
	defer span.Finish()

	conf := ctx.Config
	c := NewCompilation(ast, a.Catalog, a.Registry, conf)
	a.Log("starting analysis of %s", ast.Kind())
	if err := a.run(ctx, c); err != nil {
		return nil, err
	}
	if c.restart {
		a.Log("restarting analysis of the masked statement")
		next := NewCompilation(c.AST, a.Catalog, a.Registry, conf)
		next.masked = true
		if err := a.run(ctx, next); err != nil {
			return nil, err
		}
		c = next
	}

	span.SetTag("skipped", c.skipped)
	return c.Plan, nil
}

func (a *Analyzer) run(ctx *sql.Context, c *Compilation) error {
	for _, batch := range a.Batches {
		a.PushDebugContext(batch.Desc)
		err := batch.Eval(ctx, a, c)
		a.PopDebugContext()
		if err != nil {
			return err
		}
		if c.restart {
			return nil
		}
	}
	return nil
}

func validatePlan(ctx *sql.Context, a *Analyzer, c *Compilation) error {
	if c.skipped || c.Plan.CachedResult != nil {
		return nil
	}
	return plan.Validate(c.Plan)
}

func finalizePlan(ctx *sql.Context, a *Analyzer, c *Compilation) error {
	p := c.Plan
	collectSinks(p)
	p.Skipped = c.skipped
	p.Warnings = ctx.Warnings()
	a.LogPlan(p)
	return nil
}

func collectSinks(p *plan.Plan) {
	p.Roots = p.Graph.Roots()
	p.Sinks = p.Sinks[:0]
	for _, op := range p.Graph.Operators() {
		if op.Type() == plan.FileSinkOp {
			p.Sinks = append(p.Sinks, op)
		}
	}
}

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
	"context"
	"fmt"
	"sync"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// Operation is the kind of statement being compiled.
type Operation int

const (
	// OpQuery is a plain query or INSERT.
	OpQuery Operation = iota
	// OpUpdate is an UPDATE rewritten into an insert.
	OpUpdate
	// OpDelete is a DELETE rewritten into an insert.
	OpDelete
	// OpMerge is a MERGE rewritten into a multi-insert.
	OpMerge
	// OpCreateTableAsSelect is CREATE TABLE ... AS SELECT.
	OpCreateTableAsSelect
	// OpCreateView is CREATE VIEW ... AS SELECT.
	OpCreateView
	// OpRebuildMaterializedView is ALTER MATERIALIZED VIEW ... REBUILD.
	OpRebuildMaterializedView
	// OpExplain is EXPLAIN <query>.
	OpExplain
)

func (o Operation) String() string {
	switch o {
	case OpQuery:
		return "QUERY"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	case OpMerge:
		return "MERGE"
	case OpCreateTableAsSelect:
		return "CREATETABLE_AS_SELECT"
	case OpCreateView:
		return "CREATEVIEW"
	case OpRebuildMaterializedView:
		return "ALTER_MATERIALIZED_VIEW_REBUILD"
	case OpExplain:
		return "EXPLAIN"
	default:
		return "UNKNOWN"
	}
}

// IsAcid reports whether the operation requires a transactional target.
func (o Operation) IsAcid() bool {
	return o == OpUpdate || o == OpDelete || o == OpMerge
}

// Warning is an advisory message produced during compilation.
type Warning struct {
	Message string
	Line    int
	Col     int
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d:%d %s", w.Line, w.Col, w.Message)
	}
	return w.Message
}

// Context of one compilation.
type Context struct {
	context.Context
	Config *Config

	queryID     string
	query       string
	currentDB   string
	user        string
	operation   Operation
	queryTime   time.Time
	tracer      opentracing.Tracer
	logger      *logrus.Entry
	warnings    *warningSink
	validTxnIDs string
}

type warningSink struct {
	mu   sync.Mutex
	list []Warning
}

// ContextOption is a function to configure the context.
type ContextOption func(*Context)

// WithTracer adds the given tracer to the context.
func WithTracer(t opentracing.Tracer) ContextOption {
	return func(ctx *Context) {
		ctx.tracer = t
	}
}

// WithQuery adds the given query text to the context.
func WithQuery(q string) ContextOption {
	return func(ctx *Context) {
		ctx.query = q
	}
}

// WithConfig sets the configuration of the compilation.
func WithConfig(c *Config) ContextOption {
	return func(ctx *Context) {
		ctx.Config = c
	}
}

// WithCurrentDatabase sets the database unqualified table names resolve
// against.
func WithCurrentDatabase(db string) ContextOption {
	return func(ctx *Context) {
		ctx.currentDB = db
	}
}

// WithUser sets the user the compilation runs as.
func WithUser(user string) ContextOption {
	return func(ctx *Context) {
		ctx.user = user
	}
}

// WithOperation sets the statement kind.
func WithOperation(op Operation) ContextOption {
	return func(ctx *Context) {
		ctx.operation = op
	}
}

// WithValidTxnList sets the snapshot token used by the results cache.
func WithValidTxnList(s string) ContextOption {
	return func(ctx *Context) {
		ctx.validTxnIDs = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) ContextOption {
	return func(ctx *Context) {
		ctx.logger = l
	}
}

// NewContext creates a new compilation context. By default it has a noop
// tracer, the default configuration and the "default" database.
func NewContext(ctx context.Context, opts ...ContextOption) *Context {
	c := &Context{
		Context:   ctx,
		queryID:   uuid.NewV4().String(),
		currentDB: "default",
		queryTime: time.Now(),
		tracer:    opentracing.NoopTracer{},
		warnings:  &warningSink{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Config == nil {
		c.Config = NewConfig()
	}
	if c.logger == nil {
		c.logger = logrus.StandardLogger().WithField(QueryIDLogField, c.queryID)
	}
	return c
}

// NewEmptyContext returns a default context with default values.
func NewEmptyContext() *Context { return NewContext(context.TODO()) }

// QueryIDLogField is the log field carrying the compilation id.
const QueryIDLogField = "queryID"

// QueryID returns the unique id of the compilation.
func (c *Context) QueryID() string { return c.queryID }

// Query returns the query text, if known.
func (c *Context) Query() string { return c.query }

// CurrentDatabase returns the database unqualified names resolve against.
func (c *Context) CurrentDatabase() string { return c.currentDB }

// User returns the user the compilation runs as.
func (c *Context) User() string { return c.user }

// Operation returns the statement kind.
func (c *Context) Operation() Operation { return c.operation }

// ValidTxnList returns the snapshot token.
func (c *Context) ValidTxnList() string { return c.validTxnIDs }

// QueryTime returns the time the compilation started.
func (c *Context) QueryTime() time.Time { return c.queryTime }

// GetLogger returns the logger of the compilation.
func (c *Context) GetLogger() *logrus.Entry { return c.logger }

// SetLogger replaces the logger of the compilation.
func (c *Context) SetLogger(l *logrus.Entry) { c.logger = l }

// Span creates a new tracing span with the given context.
// It will return the span and a new context that should be passed to all
// children of this span.
func (c *Context) Span(
	opName string,
	opts ...opentracing.StartSpanOption,
) (opentracing.Span, *Context) {
	parentSpan := opentracing.SpanFromContext(c.Context)
	if parentSpan != nil {
		opts = append(opts, opentracing.ChildOf(parentSpan.Context()))
	}
	span := c.tracer.StartSpan(opName, opts...)
	ctx := opentracing.ContextWithSpan(c.Context, span)

	return span, c.WithContext(ctx)
}

// WithContext returns a new context with the given underlying context.
// Warnings are shared with the parent.
func (c *Context) WithContext(ctx context.Context) *Context {
	return &Context{
		Context:     ctx,
		Config:      c.Config,
		queryID:     c.queryID,
		query:       c.query,
		currentDB:   c.currentDB,
		user:        c.user,
		operation:   c.operation,
		queryTime:   c.queryTime,
		tracer:      c.tracer,
		logger:      c.logger,
		validTxnIDs: c.validTxnIDs,
		warnings:    c.warnings,
	}
}

// Warn records an advisory warning and logs it.
func (c *Context) Warn(line, col int, msg string, args ...interface{}) {
	w := Warning{Message: fmt.Sprintf(msg, args...), Line: line, Col: col}
	c.logger.Warn(w.String())
	c.warnings.mu.Lock()
	c.warnings.list = append(c.warnings.list, w)
	c.warnings.mu.Unlock()
}

// Warnings returns the warnings recorded so far.
func (c *Context) Warnings() []Warning {
	c.warnings.mu.Lock()
	defer c.warnings.mu.Unlock()
	return append([]Warning(nil), c.warnings.list...)
}

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

package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	hive "github.com/difin/hive-sub000"
	"github.com/difin/hive-sub000/memory"
	"github.com/difin/hive-sub000/memory/boltstore"
	"github.com/difin/hive-sub000/sql"
)

type explainOptions struct {
	catalog  string
	conf     string
	database string
	user     string
	set      []string
	debug    bool
	verbose  bool
}

func explainCommand() *cobra.Command {
	var opts explainOptions
	cmd := &cobra.Command{
		Use:   "explain <query.ast>",
		Short: "Compile an AST dump and print its plan",
		Long:  "Compile an AST dump, read from a file or from stdin when the path is -, and print the operator tree of every destination.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd.Context(), opts, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.catalog, "catalog", "", "catalog file, YAML or a bolt store (.db)")
	flags.StringVar(&opts.conf, "conf", "", "YAML file of configuration variables")
	flags.StringVar(&opts.database, "db", "default", "current database")
	flags.StringVar(&opts.user, "user", "", "user the statement runs as")
	flags.StringArrayVar(&opts.set, "set", nil, "configuration variable as name=value, repeatable")
	flags.BoolVar(&opts.debug, "debug", false, "log every analyzer rule")
	flags.BoolVar(&opts.verbose, "verbose", false, "log the generated plan")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}

func runExplain(ctx context.Context, opts explainOptions, path string, stdin io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	catalog, closeCatalog, err := openCatalog(opts.catalog)
	if err != nil {
		return err
	}
	defer closeCatalog()

	vars := sql.NewConfig()
	if opts.conf != "" {
		if vars, err = sql.LoadConfigFile(opts.conf); err != nil {
			return err
		}
	}
	for _, kv := range opts.set {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			return fmt.Errorf("invalid --set %q, want name=value", kv)
		}
		vars.Set(kv[:i], kv[i+1:])
	}

	ast, err := readAST(path, stdin)
	if err != nil {
		return err
	}

	c := hive.New(catalog, &hive.Config{Vars: vars, Debug: opts.debug, Verbose: opts.verbose})
	sctx := c.NewContext(ctx,
		sql.WithQuery(ast),
		sql.WithCurrentDatabase(opts.database),
		sql.WithUser(opts.user),
	)
	text, err := c.Explain(sctx, ast)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, text)
	return err
}

// openCatalog loads a YAML catalog or opens a bolt store read only.
func openCatalog(path string) (sql.Catalog, func(), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".bolt":
		store, err := boltstore.OpenReadOnly(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	c, err := memory.LoadCatalogFile(path)
	if err != nil {
		return nil, nil, err
	}
	return c, func() {}, nil
}

func readAST(path string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = ioutil.ReadAll(stdin)
	} else {
		data, err = ioutil.ReadFile(path)
	}
	if err != nil {
		return "", sql.ErrInternal.Wrap(err, "reading "+path)
	}
	return string(data), nil
}

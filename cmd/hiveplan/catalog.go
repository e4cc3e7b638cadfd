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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/difin/hive-sub000/memory"
	"github.com/difin/hive-sub000/memory/boltstore"
)

func catalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage catalog stores",
	}
	cmd.AddCommand(catalogImportCommand(), catalogListCommand())
	return cmd
}

func catalogImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <catalog.yaml> <store.db>",
		Short: "Write a YAML catalog into a bolt store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := memory.LoadCatalogFile(args[0])
			if err != nil {
				return err
			}
			store, err := boltstore.Open(args[1])
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Save(c)
		},
	}
}

func catalogListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <store.db>",
		Short: "List the tables of a bolt store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := boltstore.OpenReadOnly(args[0])
			if err != nil {
				return err
			}
			defer store.Close()
			c, err := store.Load()
			if err != nil {
				return err
			}
			for _, db := range c.Databases() {
				for _, name := range db.TableNames() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s.%s\n", db.Name(), name)
				}
			}
			return nil
		},
	}
}

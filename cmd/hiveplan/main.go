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

// Command hiveplan compiles HiveQL AST dumps into logical plans.
package main

import (
	"os"

	"github.com/spf13/cobra"

	hive "github.com/difin/hive-sub000"
	"github.com/difin/hive-sub000/sql"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		if sql.IsEnvironmentError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var logOpts hive.LogOptions
	cmd := &cobra.Command{
		Use:          "hiveplan",
		Short:        "HiveQL semantic analysis and logical plan generation",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logOpts.Out = cmd.ErrOrStderr()
			return hive.ConfigureLogging(logOpts)
		},
	}
	cmd.PersistentFlags().StringVar(&logOpts.Level, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&logOpts.JSON, "log-json", false, "log in JSON")

	cmd.AddCommand(explainCommand(), catalogCommand())
	return cmd
}

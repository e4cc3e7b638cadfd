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
	"io"

	"github.com/sirupsen/logrus"
)

// LogOptions configure the process wide logger.
type LogOptions struct {
	// Level is a logrus level name, "info" when empty.
	Level string
	JSON  bool
	Out   io.Writer
}

// ConfigureLogging applies opts to the standard logrus logger, which
// every compilation context logs through by default.
func ConfigureLogging(opts LogOptions) error {
	level := logrus.InfoLevel
	if opts.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(opts.Level); err != nil {
			return err
		}
	}
	logrus.SetLevel(level)
	if opts.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	if opts.Out != nil {
		logrus.SetOutput(opts.Out)
	}
	return nil
}

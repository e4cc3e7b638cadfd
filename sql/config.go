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
	"io"
	"io/ioutil"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

// Configuration variable names.
const (
	ConfMapAggr                      = "hive.map.aggr"
	ConfGroupBySkew                  = "hive.groupby.skewindata"
	ConfGroupingSetCardinality       = "hive.new.job.grouping.set.cardinality"
	ConfCTEMaterializeThreshold      = "hive.optimize.cte.materialize.threshold"
	ConfCTEMaterializeFullAggOnly    = "hive.optimize.cte.materialize.full.aggregate.only"
	ConfQuotedIdentifiers            = "hive.support.quoted.identifiers"
	ConfColumnAliasPrefix            = "hive.autogen.columnalias.prefix.label"
	ConfColumnAliasIncludeFuncName   = "hive.autogen.columnalias.prefix.includefuncname"
	ConfGroupByPositionAlias         = "hive.groupby.position.alias"
	ConfOrderByPositionAlias         = "hive.orderby.position.alias"
	ConfDynamicPartition             = "hive.exec.dynamic.partition"
	ConfDynamicPartitionMode         = "hive.exec.dynamic.partition.mode"
	ConfStrictCartesianProduct       = "hive.strict.checks.cartesian.product"
	ConfStrictOrderByNoLimit         = "hive.strict.checks.orderby.no.limit"
	ConfInputFormat                  = "hive.input.format"
	ConfLimitExtraStage              = "hive.limit.extra.stage"
	ConfConstantFolding              = "hive.constant.folding"
	ConfScratchDir                   = "hive.exec.scratchdir"
	ConfEnforceBucketing             = "hive.enforce.bucketing"
	ConfMultiGroupBySingleReducer    = "hive.multigroupby.singlereducer"
	ConfResultsCacheEnabled          = "hive.query.results.cache.enabled"
	ConfMaskingRestart               = "hive.security.masking.restart"
	ConfReducers                     = "mapreduce.job.reduces"
	ConfOuterJoinMergeLimit          = "hive.outerjoin.merge.aliases.max"
	ConfDefaultPartitionName         = "hive.exec.default.partition.name"
	ConfStrictTypeSafety             = "hive.strict.checks.type.safety"
	ConfSampleCombineInputFormatName = "org.apache.hadoop.hive.ql.io.CombineHiveInputFormat"
)

var defaultConfig = map[string]interface{}{
	ConfMapAggr:                    true,
	ConfGroupBySkew:                false,
	ConfGroupingSetCardinality:     30,
	ConfCTEMaterializeThreshold:    -1,
	ConfCTEMaterializeFullAggOnly:  true,
	ConfQuotedIdentifiers:          "column",
	ConfColumnAliasPrefix:          "_c",
	ConfColumnAliasIncludeFuncName: false,
	ConfGroupByPositionAlias:       false,
	ConfOrderByPositionAlias:       true,
	ConfDynamicPartition:           true,
	ConfDynamicPartitionMode:       "strict",
	ConfStrictCartesianProduct:     false,
	ConfStrictOrderByNoLimit:       false,
	ConfInputFormat:                ConfSampleCombineInputFormatName,
	ConfLimitExtraStage:            true,
	ConfConstantFolding:            true,
	ConfScratchDir:                 "/tmp/hive",
	ConfEnforceBucketing:           true,
	ConfMultiGroupBySingleReducer:  true,
	ConfResultsCacheEnabled:        false,
	ConfMaskingRestart:             true,
	ConfReducers:                   -1,
	ConfOuterJoinMergeLimit:        16,
	ConfDefaultPartitionName:       "__HIVE_DEFAULT_PARTITION__",
	ConfStrictTypeSafety:           false,
}

// Config holds the variables of one compilation. Keys are case
// insensitive HiveConf names; values are coerced on read.
type Config struct {
	vars map[string]interface{}
}

// NewConfig returns a configuration holding the defaults.
func NewConfig() *Config {
	c := &Config{vars: make(map[string]interface{}, len(defaultConfig))}
	for k, v := range defaultConfig {
		c.vars[k] = v
	}
	return c
}

// LoadConfig reads a YAML mapping of variable names to values on top of
// the defaults.
func LoadConfig(r io.Reader) (*Config, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, ErrInternal.Wrap(err, "reading configuration")
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ErrInvalidConfig.New(err.Error())
	}

	c := NewConfig()
	for k, v := range raw {
		c.Set(k, v)
	}
	return c, nil
}

// LoadConfigFile is LoadConfig over a file.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrInternal.Wrap(err, "opening configuration")
	}
	defer f.Close()
	return LoadConfig(f)
}

// Set assigns a variable.
func (c *Config) Set(key string, value interface{}) {
	c.vars[strings.ToLower(key)] = value
}

// Get returns the raw value of a variable.
func (c *Config) Get(key string) (interface{}, bool) {
	v, ok := c.vars[strings.ToLower(key)]
	return v, ok
}

// GetBool returns a variable as a bool; unset or malformed values are
// false.
func (c *Config) GetBool(key string) bool {
	v, _ := c.Get(key)
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false
	}
	return b
}

// GetInt returns a variable as an int; unset or malformed values are 0.
func (c *Config) GetInt(key string) int {
	v, _ := c.Get(key)
	return cast.ToInt(v)
}

// GetString returns a variable as a string.
func (c *Config) GetString(key string) string {
	v, _ := c.Get(key)
	return cast.ToString(v)
}

// Clone returns an independent copy.
func (c *Config) Clone() *Config {
	cp := &Config{vars: make(map[string]interface{}, len(c.vars))}
	for k, v := range c.vars {
		cp.vars[k] = v
	}
	return cp
}

// Keys returns the variable names in sorted order.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.vars))
	for k := range c.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SupportsRegexColumns reports whether backquoted column references are
// treated as regular expressions.
func (c *Config) SupportsRegexColumns() bool {
	return strings.EqualFold(c.GetString(ConfQuotedIdentifiers), "none")
}

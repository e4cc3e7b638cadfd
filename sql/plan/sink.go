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

package plan

import (
	"fmt"

	"github.com/difin/hive-sub000/sql"
)

// DestinationType is the kind of write target of a file sink.
type DestinationType int

const (
	// DestTmpFile is the result of a plain query.
	DestTmpFile DestinationType = iota
	DestTable
	DestPartition
	DestDir
	DestLocalDir
)

var destinationNames = map[DestinationType]string{
	DestTmpFile:   "tmp file",
	DestTable:     "table",
	DestPartition: "partition",
	DestDir:       "directory",
	DestLocalDir:  "local directory",
}

func (t DestinationType) String() string {
	return destinationNames[t]
}

// FileSinkDesc writes its input to a destination.
type FileSinkDesc struct {
	DestID   string
	DestType DestinationType
	// Table is the qualified target table for table and partition
	// destinations.
	Table string
	// Partition is the target spec; dynamic columns have empty values.
	Partition               sql.PartitionSpec
	DynamicPartitionColumns []string
	// Directory is the staging or target directory.
	Directory string
	Overwrite bool
	// NumBuckets and BucketColumns are set when bucketing is enforced on
	// insert.
	NumBuckets    int
	BucketColumns []string
	Operation     sql.Operation
	Columns       []string
	ColumnTypes   []sql.Type
}

// OperatorType implements the Descriptor interface.
func (d *FileSinkDesc) OperatorType() OperatorType { return FileSinkOp }

// OutputColumnNames implements the Descriptor interface.
func (d *FileSinkDesc) OutputColumnNames() []string { return d.Columns }

func (d *FileSinkDesc) String() string {
	switch d.DestType {
	case DestTable:
		return fmt.Sprintf("FileSink(%s: %s, directory: %s)", d.DestType, d.Table, d.Directory)
	case DestPartition:
		return fmt.Sprintf("FileSink(%s: %s/%s, directory: %s)", d.DestType, d.Table, d.Partition, d.Directory)
	default:
		return fmt.Sprintf("FileSink(%s: %s)", d.DestType, d.Directory)
	}
}

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

import errors "gopkg.in/src-d/go-errors.v1"

var (
	// ErrAmbiguousTableAlias is returned when two sources of one query
	// block share an alias.
	ErrAmbiguousTableAlias = errors.NewKind("Ambiguous table alias '%s'")

	// ErrNoSubqueryAlias is returned for a FROM subquery without alias.
	ErrNoSubqueryAlias = errors.NewKind("No alias for subquery")

	// ErrDuplicateCTE is returned for two CTEs with one name in one WITH.
	ErrDuplicateCTE = errors.NewKind("Duplicate definition of %s")

	// ErrRecursiveCTE is returned when a CTE refers to itself, directly
	// or through other CTEs.
	ErrRecursiveCTE = errors.NewKind("Recursive cte %s detected (cycle: %s)")

	// ErrRecursiveView is returned when a view expands into itself.
	ErrRecursiveView = errors.NewKind("Recursive view %s detected (cycle: %s)")

	// ErrClusterByConflict is returned when CLUSTER BY is combined with
	// DISTRIBUTE BY, SORT BY or ORDER BY.
	ErrClusterByConflict = errors.NewKind("Cannot have both CLUSTER BY and %s clauses")

	// ErrOrderBySortByConflict is returned for ORDER BY with SORT BY.
	ErrOrderBySortByConflict = errors.NewKind("Cannot have both ORDER BY and SORT BY clauses")

	// ErrMultipleSelect is returned for a second select list in one
	// destination.
	ErrMultipleSelect = errors.NewKind("Only one SELECT clause is allowed per destination")

	// ErrInvalidLimit is returned for a LIMIT that is not a non-negative
	// integer.
	ErrInvalidLimit = errors.NewKind("Invalid LIMIT or OFFSET value %s")

	// ErrInvalidPositionAlias is returned for a positional reference out
	// of the select list range.
	ErrInvalidPositionAlias = errors.NewKind("Invalid position alias in %s: position %d is not in the select list of %d expressions")

	// ErrPositionAliasWithStar is returned for a positional reference over
	// a select list using *.
	ErrPositionAliasWithStar = errors.NewKind("Position alias in %s is not supported with SELECT *")

	// ErrSampleRestriction is returned for a bucket sample over more than
	// two columns.
	ErrSampleRestriction = errors.NewKind("Cannot sample on more than two columns: %s")

	// ErrInvalidSample is returned for malformed sampling clauses.
	ErrInvalidSample = errors.NewKind("Invalid sampling clause: %s")

	// ErrNonBucketedSample is returned for a bucket sample without
	// columns over a table that declares no bucket columns.
	ErrNonBucketedSample = errors.NewKind("Sampling expression needed for non-bucketed table %s")

	// ErrSplitSampleInputFormat is returned for split sampling with an
	// input format that cannot combine splits.
	ErrSplitSampleInputFormat = errors.NewKind("Percentage sampling is not supported in %s")

	// ErrLateralViewInJoin is returned for a lateral view used directly
	// as a join input.
	ErrLateralViewInJoin = errors.NewKind("Join with a lateral view is not supported")

	// ErrLateralViewChildren is returned for a malformed lateral view.
	ErrLateralViewChildren = errors.NewKind("Lateral view expects 2 children, got %d")

	// ErrLateralViewUDTF is returned when a lateral view does not call a
	// table-generating function.
	ErrLateralViewUDTF = errors.NewKind("Lateral view requires a table-generating function, got %s")

	// ErrPTFAlias is returned for a partitioned table function used in a
	// join without alias.
	ErrPTFAlias = errors.NewKind("Partitioned table function %s used in a join requires an alias")

	// ErrInvalidTableFunction is returned for an unknown partitioned
	// table function.
	ErrInvalidTableFunction = errors.NewKind("%s is not a partitioned table function")

	// ErrInvalidJoinInput is returned for an unsupported join child.
	ErrInvalidJoinInput = errors.NewKind("Invalid join input %s")

	// ErrInvalidJoinCondition is returned for a join condition mixing
	// both sides inside one operand of an equality.
	ErrInvalidJoinCondition = errors.NewKind("Both left and right aliases encountered in JOIN condition operand %s")

	// ErrCartesianProduct is returned for joins without keys when strict
	// cartesian checks are on.
	ErrCartesianProduct = errors.NewKind("Cartesian products are disabled for safety reasons")

	// ErrOuterJoinTooManyAliases is returned when merging outer joins
	// would exceed the alias limit.
	ErrOuterJoinTooManyAliases = errors.NewKind("Cannot merge an outer join with more than %d aliases")

	// ErrInvalidUsingColumn is returned for a USING column missing on one
	// side.
	ErrInvalidUsingColumn = errors.NewKind("Column %s in USING clause is not present on both sides of the join")

	// ErrInsertIntoView is returned for writes to a view.
	ErrInsertIntoView = errors.NewKind("Cannot insert into target table because it is a view: %s")

	// ErrAcidNotSupported is returned for UPDATE / DELETE / MERGE over a
	// non transactional table.
	ErrAcidNotSupported = errors.NewKind("Attempt to do %s on table %s that is not transactional")

	// ErrInvalidFormat is returned for unsupported storage format
	// combinations.
	ErrInvalidFormat = errors.NewKind("Table %s has an incompatible input/output format pair %s/%s")

	// ErrPartitionSpecNonPartitioned is returned for a partition spec on
	// a table without partition columns.
	ErrPartitionSpecNonPartitioned = errors.NewKind("Table %s is not partitioned but a partition spec exists")

	// ErrInvalidPartitionColumn is returned for a partition spec naming
	// an unknown or out of order column.
	ErrInvalidPartitionColumn = errors.NewKind("Partition column %s is not a partition column of %s at this position")

	// ErrNeedPartitionSpec is returned for an insert into a partitioned
	// table without spec when dynamic partitioning is disabled.
	ErrNeedPartitionSpec = errors.NewKind("Need to specify partition columns because the destination table %s is partitioned")

	// ErrDynamicPartitionDisabled is returned for dynamic partitions when
	// they are disabled.
	ErrDynamicPartitionDisabled = errors.NewKind("Dynamic partition is disabled")

	// ErrDynamicPartitionStrictMode is returned for a fully dynamic
	// partition spec in strict mode.
	ErrDynamicPartitionStrictMode = errors.NewKind("Dynamic partition strict mode requires at least one static partition column of %s")

	// ErrDynamicBeforeStatic is returned when a static partition column
	// follows a dynamic one.
	ErrDynamicBeforeStatic = errors.NewKind("Dynamic partition column %s cannot be followed by static partition columns")

	// ErrInsertColumnCount is returned when the select list does not
	// match the destination columns.
	ErrInsertColumnCount = errors.NewKind("Cannot insert into target table %s: table has %d columns but the query has %d columns")

	// ErrInsertColumnType is returned when a select column cannot be
	// converted to the destination column type.
	ErrInsertColumnType = errors.NewKind("Cannot convert column %d from %s to %s")

	// ErrUnsupportedSubquery is returned for subquery predicates the
	// planner cannot rewrite.
	ErrUnsupportedSubquery = errors.NewKind("Unsupported SubQuery Expression %s: %s")

	// ErrGroupingSetsEmpty is returned when every grouping set includes
	// every grouping key.
	ErrGroupingSetsEmpty = errors.NewKind("Empty grouping sets not allowed")

	// ErrGroupingSetExpression is returned for a grouping set expression
	// that is not a grouping key.
	ErrGroupingSetExpression = errors.NewKind("Grouping sets expression %s is not in GROUP BY key")

	// ErrGroupingSetsTooLarge is returned when the grouping keys do not
	// fit the grouping id.
	ErrGroupingSetsTooLarge = errors.NewKind("Grouping sets are limited to %d grouping keys, got %d")

	// ErrGroupingSetsNoMapAggr is returned for grouping sets without
	// map-side aggregation.
	ErrGroupingSetsNoMapAggr = errors.NewKind("Grouping sets aggregations (with rollups or cubes) are not allowed if map-side aggregation is turned off")

	// ErrGroupingSetsSkew is returned when grouping sets need an extra
	// stage and skew handling is on.
	ErrGroupingSetsSkew = errors.NewKind("Grouping sets with more than %d sets are not allowed with skewed data handling")

	// ErrGroupingSetsDistinct is returned when grouping sets need an
	// extra stage and distinct aggregates are present.
	ErrGroupingSetsDistinct = errors.NewKind("Grouping sets with more than %d sets are not allowed with distinct aggregates")

	// ErrGroupingFunction is returned for grouping() over a non key.
	ErrGroupingFunction = errors.NewKind("Expression in GROUPING function not present in GROUP BY: %s")

	// ErrMultipleDistinctSkew is returned for several distinct
	// aggregates over different columns with skew handling.
	ErrMultipleDistinctSkew = errors.NewKind("DISTINCT on different columns not supported with skew in data")

	// ErrInvalidGroupByExpression is returned for select expressions not
	// computable from the grouping keys.
	ErrInvalidGroupByExpression = errors.NewKind("Expression not in GROUP BY key %s")

	// ErrUDTFWithClause is returned for a table-generating function
	// combined with a clause it excludes.
	ErrUDTFWithClause = errors.NewKind("%s is not supported with table-generating functions in the SELECT clause")

	// ErrUDTFMultipleExpressions is returned for a table-generating
	// function that is not the only select expression.
	ErrUDTFMultipleExpressions = errors.NewKind("Only a single expression in the SELECT clause is supported with UDTF's")

	// ErrUDTFAliases is returned when aliases do not match the generated
	// columns.
	ErrUDTFAliases = errors.NewKind("The number of aliases supplied in the AS clause does not match the number of columns output by the UDTF: expected %d aliases but got %d")

	// ErrTransformWithClause is returned for TRANSFORM combined with a
	// clause it excludes.
	ErrTransformWithClause = errors.NewKind("TRANSFORM is not supported with %s")

	// ErrUnionColumnCount is returned for set operation branches with
	// different arity.
	ErrUnionColumnCount = errors.NewKind("Schema of both sides of %s should match: %s has %d columns and %s has %d columns")

	// ErrUnionColumnType is returned when set operation columns have no
	// common type.
	ErrUnionColumnType = errors.NewKind("Schema of both sides of %s should match: column %s is of type %s on first table and type %s on second table")

	// ErrInvalidSortKey is returned for sort keys that are not orderable.
	ErrInvalidSortKey = errors.NewKind("Cannot sort by %s of type %s")

	// ErrOrderByWithoutLimit is returned for ORDER BY without LIMIT when
	// strict checks are on.
	ErrOrderByWithoutLimit = errors.NewKind("Order by-s without limit are disabled for safety reasons")

	// ErrUnknownDestination is returned for a destination token the
	// planner does not handle.
	ErrUnknownDestination = errors.NewKind("Unknown destination %s")

	// ErrInvalidMaskingPolicy is returned for a masking policy whose
	// expressions do not parse or name unknown columns.
	ErrInvalidMaskingPolicy = errors.NewKind("Invalid masking policy for %s: %s")

	// ErrSelectDistinctWithGroupBy is returned for SELECT DISTINCT
	// combined with GROUP BY.
	ErrSelectDistinctWithGroupBy = errors.NewKind("SELECT DISTINCT and GROUP BY can not be in the same query")

	// ErrInvalidWindowFrame is returned for malformed window frames.
	ErrInvalidWindowFrame = errors.NewKind("Invalid window frame: %s")

	// ErrInvalidPartitionValue is returned for an unusable partition
	// value in a partition spec.
	ErrInvalidPartitionValue = errors.NewKind("Invalid partition value %s for column %s")

	// ErrNotAuthorized is returned by authorizers.
	ErrNotAuthorized = errors.NewKind("Permission denied: user %s is not allowed to %s %s")
)

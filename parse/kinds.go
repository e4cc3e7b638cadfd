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

package parse

import "strings"

// Kind is the token kind of an AST node.
type Kind int

// Token kinds produced by the HiveQL parser. The zero value is Invalid.
const (
	Invalid Kind = iota

	Identifier
	Number
	StringLiteral

	// statement structure
	TokQuery
	TokFrom
	TokInsert
	TokDestination
	TokInsertInto
	TokDir
	TokLocalDir
	TokTmpFile
	TokTab
	TokTabName
	TokPartSpec
	TokPartVal
	TokIfNotExists
	TokTabColName
	TokSelect
	TokSelectDI
	TokSelExpr
	TokHintList
	TokWhere
	TokGroupBy
	TokRollupGroupBy
	TokCubeGroupBy
	TokGroupingSets
	TokGroupingSetsExpression
	TokHaving
	TokQualify
	TokOrderBy
	TokSortBy
	TokClusterBy
	TokDistributeBy
	TokTabSortColNameAsc
	TokTabSortColNameDesc
	TokNullsFirst
	TokNullsLast
	TokLimit
	TokCTE
	TokSubquery
	TokTabRef
	TokTabAlias
	TokTableBucketSample
	TokTableSplitSample
	TokPercent
	TokRowCount
	TokLength
	TokAsOfVersion
	TokAsOfTime

	// joins
	TokJoin
	TokLeftOuterJoin
	TokRightOuterJoin
	TokFullOuterJoin
	TokLeftSemiJoin
	TokLeftAntiSemiJoin
	TokCrossJoin
	TokUniqueJoin
	KwPreserve
	TokExpList
	TokLateralView
	TokLateralViewOuter
	TokPTBLFunction

	// windowing
	TokPartitioningSpec
	TokWindowSpec
	TokWindowRange
	TokWindowValues
	KwPreceding
	KwFollowing
	KwCurrent
	KwUnbounded
	TokRespectNulls
	TokIgnoreNulls

	// set operations
	TokUnionAll
	TokUnionDistinct
	TokIntersectAll
	TokIntersectDistinct
	TokExceptAll
	TokExceptDistinct

	// subqueries, scripts
	TokSubqueryExpr
	TokSubqueryOp
	TokTransform
	TokAliasList
	TokTabColList
	TokTabCol

	// expressions
	TokAllColRef
	TokTableOrCol
	Dot
	LSquare
	TokFunction
	TokFunctionDI
	TokFunctionStar
	TokNull
	KwTrue
	KwFalse
	TokDefaultValue
	TokDateLiteral
	TokTimestampLiteral
	KwAnd
	KwOr
	KwNot
	KwLike
	Equal
	EqualNS
	NotEqual
	LessThan
	LessThanOrEqualTo
	GreaterThan
	GreaterThanOrEqualTo
	Plus
	Minus
	Star
	Divide
	Mod

	// primitive type names used by CAST
	TokBoolean
	TokTinyInt
	TokSmallInt
	TokInt
	TokBigInt
	TokFloat
	TokDouble
	TokDecimal
	TokString
	TokVarchar
	TokChar
	TokDate
	TokTimestamp
	TokBinary

	numKinds
)

var kindText = [numKinds]string{
	Invalid:       "<invalid>",
	Identifier:    "Identifier",
	Number:        "Number",
	StringLiteral: "StringLiteral",

	TokQuery:                  "TOK_QUERY",
	TokFrom:                   "TOK_FROM",
	TokInsert:                 "TOK_INSERT",
	TokDestination:            "TOK_DESTINATION",
	TokInsertInto:             "TOK_INSERT_INTO",
	TokDir:                    "TOK_DIR",
	TokLocalDir:               "TOK_LOCAL_DIR",
	TokTmpFile:                "TOK_TMP_FILE",
	TokTab:                    "TOK_TAB",
	TokTabName:                "TOK_TABNAME",
	TokPartSpec:               "TOK_PARTSPEC",
	TokPartVal:                "TOK_PARTVAL",
	TokIfNotExists:            "TOK_IFNOTEXISTS",
	TokTabColName:             "TOK_TABCOLNAME",
	TokSelect:                 "TOK_SELECT",
	TokSelectDI:               "TOK_SELECTDI",
	TokSelExpr:                "TOK_SELEXPR",
	TokHintList:               "TOK_HINTLIST",
	TokWhere:                  "TOK_WHERE",
	TokGroupBy:                "TOK_GROUPBY",
	TokRollupGroupBy:          "TOK_ROLLUP_GROUPBY",
	TokCubeGroupBy:            "TOK_CUBE_GROUPBY",
	TokGroupingSets:           "TOK_GROUPING_SETS",
	TokGroupingSetsExpression: "TOK_GROUPING_SETS_EXPRESSION",
	TokHaving:                 "TOK_HAVING",
	TokQualify:                "TOK_QUALIFY",
	TokOrderBy:                "TOK_ORDERBY",
	TokSortBy:                 "TOK_SORTBY",
	TokClusterBy:              "TOK_CLUSTERBY",
	TokDistributeBy:           "TOK_DISTRIBUTEBY",
	TokTabSortColNameAsc:      "TOK_TABSORTCOLNAMEASC",
	TokTabSortColNameDesc:     "TOK_TABSORTCOLNAMEDESC",
	TokNullsFirst:             "TOK_NULLS_FIRST",
	TokNullsLast:              "TOK_NULLS_LAST",
	TokLimit:                  "TOK_LIMIT",
	TokCTE:                    "TOK_CTE",
	TokSubquery:               "TOK_SUBQUERY",
	TokTabRef:                 "TOK_TABREF",
	TokTabAlias:               "TOK_TABALIAS",
	TokTableBucketSample:      "TOK_TABLEBUCKETSAMPLE",
	TokTableSplitSample:       "TOK_TABLESPLITSAMPLE",
	TokPercent:                "TOK_PERCENT",
	TokRowCount:               "TOK_ROWCOUNT",
	TokLength:                 "TOK_LENGTH",
	TokAsOfVersion:            "TOK_AS_OF_VERSION",
	TokAsOfTime:               "TOK_AS_OF_TIME",

	TokJoin:             "TOK_JOIN",
	TokLeftOuterJoin:    "TOK_LEFTOUTERJOIN",
	TokRightOuterJoin:   "TOK_RIGHTOUTERJOIN",
	TokFullOuterJoin:    "TOK_FULLOUTERJOIN",
	TokLeftSemiJoin:     "TOK_LEFTSEMIJOIN",
	TokLeftAntiSemiJoin: "TOK_LEFTANTISEMIJOIN",
	TokCrossJoin:        "TOK_CROSSJOIN",
	TokUniqueJoin:       "TOK_UNIQUEJOIN",
	KwPreserve:          "PRESERVE",
	TokExpList:          "TOK_EXPLIST",
	TokLateralView:      "TOK_LATERAL_VIEW",
	TokLateralViewOuter: "TOK_LATERAL_VIEW_OUTER",
	TokPTBLFunction:     "TOK_PTBLFUNCTION",

	TokPartitioningSpec: "TOK_PARTITIONINGSPEC",
	TokWindowSpec:       "TOK_WINDOWSPEC",
	TokWindowRange:      "TOK_WINDOWRANGE",
	TokWindowValues:     "TOK_WINDOWVALUES",
	KwPreceding:         "PRECEDING",
	KwFollowing:         "FOLLOWING",
	KwCurrent:           "CURRENT",
	KwUnbounded:         "UNBOUNDED",
	TokRespectNulls:     "TOK_RESPECT_NULLS",
	TokIgnoreNulls:      "TOK_IGNORE_NULLS",

	TokUnionAll:          "TOK_UNIONALL",
	TokUnionDistinct:     "TOK_UNIONDISTINCT",
	TokIntersectAll:      "TOK_INTERSECTALL",
	TokIntersectDistinct: "TOK_INTERSECTDISTINCT",
	TokExceptAll:         "TOK_EXCEPTALL",
	TokExceptDistinct:    "TOK_EXCEPTDISTINCT",

	TokSubqueryExpr: "TOK_SUBQUERY_EXPR",
	TokSubqueryOp:   "TOK_SUBQUERY_OP",
	TokTransform:    "TOK_TRANSFORM",
	TokAliasList:    "TOK_ALIASLIST",
	TokTabColList:   "TOK_TABCOLLIST",
	TokTabCol:       "TOK_TABCOL",

	TokAllColRef:         "TOK_ALLCOLREF",
	TokTableOrCol:        "TOK_TABLE_OR_COL",
	Dot:                  ".",
	LSquare:              "[",
	TokFunction:          "TOK_FUNCTION",
	TokFunctionDI:        "TOK_FUNCTIONDI",
	TokFunctionStar:      "TOK_FUNCTIONSTAR",
	TokNull:              "TOK_NULL",
	KwTrue:               "TRUE",
	KwFalse:              "FALSE",
	TokDefaultValue:      "TOK_DEFAULT_VALUE",
	TokDateLiteral:       "TOK_DATELITERAL",
	TokTimestampLiteral:  "TOK_TIMESTAMPLITERAL",
	KwAnd:                "and",
	KwOr:                 "or",
	KwNot:                "not",
	KwLike:               "like",
	Equal:                "=",
	EqualNS:              "<=>",
	NotEqual:             "<>",
	LessThan:             "<",
	LessThanOrEqualTo:    "<=",
	GreaterThan:          ">",
	GreaterThanOrEqualTo: ">=",
	Plus:                 "+",
	Minus:                "-",
	Star:                 "*",
	Divide:               "/",
	Mod:                  "%",

	TokBoolean:   "TOK_BOOLEAN",
	TokTinyInt:   "TOK_TINYINT",
	TokSmallInt:  "TOK_SMALLINT",
	TokInt:       "TOK_INT",
	TokBigInt:    "TOK_BIGINT",
	TokFloat:     "TOK_FLOAT",
	TokDouble:    "TOK_DOUBLE",
	TokDecimal:   "TOK_DECIMAL",
	TokString:    "TOK_STRING",
	TokVarchar:   "TOK_VARCHAR",
	TokChar:      "TOK_CHAR",
	TokDate:      "TOK_DATE",
	TokTimestamp: "TOK_TIMESTAMP",
	TokBinary:    "TOK_BINARY",
}

var kindByText map[string]Kind

func init() {
	kindByText = make(map[string]Kind, numKinds)
	for k := TokQuery; k < numKinds; k++ {
		kindByText[strings.ToLower(kindText[k])] = k
	}
	kindByText["!="] = NotEqual
	kindByText["=="] = Equal
}

// String returns the canonical token text of the kind.
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return kindText[Invalid]
	}
	return kindText[k]
}

// LookupKind returns the kind whose canonical text is s, ignoring case.
func LookupKind(s string) (Kind, bool) {
	k, ok := kindByText[strings.ToLower(s)]
	return k, ok
}

// IsJoin reports whether the kind is one of the join tokens.
func (k Kind) IsJoin() bool {
	switch k {
	case TokJoin, TokLeftOuterJoin, TokRightOuterJoin, TokFullOuterJoin,
		TokLeftSemiJoin, TokLeftAntiSemiJoin, TokCrossJoin, TokUniqueJoin:
		return true
	}
	return false
}

// IsSetOp reports whether the kind is a UNION, INTERSECT or EXCEPT token.
func (k Kind) IsSetOp() bool {
	return k >= TokUnionAll && k <= TokExceptDistinct
}

// IsComparison reports whether the kind is a binary comparison operator.
func (k Kind) IsComparison() bool {
	return k >= Equal && k <= GreaterThanOrEqualTo
}

// IsTypeName reports whether the kind names a primitive type in a CAST.
func (k Kind) IsTypeName() bool {
	return k >= TokBoolean && k <= TokBinary
}

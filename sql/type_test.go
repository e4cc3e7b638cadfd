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
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	testCases := []struct {
		in       string
		expected Type
	}{
		{"int", IntType},
		{"INTEGER", IntType},
		{"decimal", DecimalType(10, 0)},
		{"decimal(12, 2)", DecimalType(12, 2)},
		{"varchar(10)", VarcharType(10)},
		{"char(3)", CharType(3)},
		{"array<string>", ArrayOf(StringType)},
		{"map<string,array<int>>", MapOf(StringType, ArrayOf(IntType))},
		{"struct<a:int,b:string>", StructOf(StructField{"a", IntType}, StructField{"b", StringType})},
	}

	for _, tt := range testCases {
		t.Run(tt.in, func(t *testing.T) {
			typ, err := ParseType(tt.in)
			require.NoError(t, err)
			require.True(t, tt.expected.Equals(typ), "expected %s, got %s", tt.expected, typ)
		})
	}
}

func TestParseTypeErrors(t *testing.T) {
	for _, in := range []string{"", "integ", "varchar", "array<int", "map<int>", "int extra"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseType(in)
			require.Error(t, err)
			require.True(t, ErrInvalidType.Is(err))
		})
	}
}

func TestDecimalPrecisionCap(t *testing.T) {
	require.Equal(t, MaxDecimalPrecision, DecimalType(60, 2).Precision)
}

func TestCommonTypeForComparison(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     Type
		expected Type
		ok       bool
	}{
		{"same", IntType, IntType, IntType, true},
		{"int bigint", IntType, BigIntType, BigIntType, true},
		{"tinyint double", TinyIntType, DoubleType, DoubleType, true},
		{"int decimal", IntType, DecimalType(5, 2), DecimalType(12, 2), true},
		{"string int", StringType, IntType, DoubleType, true},
		{"string date", StringType, DateType, DateType, true},
		{"date timestamp", DateType, TimestampType, TimestampType, true},
		{"void", VoidType, StringType, StringType, true},
		{"varchar varchar", VarcharType(3), VarcharType(7), VarcharType(7), true},
		{"varchar string", VarcharType(3), StringType, StringType, true},
		{"boolean int", BooleanType, IntType, Type{}, false},
		{"array int", ArrayOf(IntType), IntType, Type{}, false},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			typ, ok := CommonTypeForComparison(tt.a, tt.b)
			require.Equal(tt.ok, ok)
			if ok {
				require.True(tt.expected.Equals(typ), "expected %s, got %s", tt.expected, typ)
			}
		})
	}
}

func TestCommonTypeForUnion(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     Type
		expected Type
		ok       bool
	}{
		{"int int", IntType, IntType, IntType, true},
		{"int double", IntType, DoubleType, DoubleType, true},
		{"int string", IntType, StringType, StringType, true},
		{"date string", DateType, StringType, StringType, true},
		{"array widen", ArrayOf(IntType), ArrayOf(BigIntType), ArrayOf(BigIntType), true},
		{"boolean int", BooleanType, IntType, Type{}, false},
		{"array map", ArrayOf(IntType), MapOf(IntType, IntType), Type{}, false},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			typ, ok := CommonTypeForUnion(tt.a, tt.b)
			require.Equal(tt.ok, ok)
			if ok {
				require.True(tt.expected.Equals(typ), "expected %s, got %s", tt.expected, typ)
			}
		})
	}
}

func TestImplicitConvertible(t *testing.T) {
	require := require.New(t)
	require.True(ImplicitConvertible(IntType, BigIntType))
	require.True(ImplicitConvertible(VoidType, ArrayOf(IntType)))
	require.True(ImplicitConvertible(StringType, DoubleType))
	require.True(ImplicitConvertible(DateType, TimestampType))
	require.False(ImplicitConvertible(BigIntType, IntType))
	require.False(ImplicitConvertible(BooleanType, IntType))
	require.False(ImplicitConvertible(TimestampType, DateType))
}

func TestConvert(t *testing.T) {
	require := require.New(t)

	v, err := IntType.Convert("5")
	require.NoError(err)
	require.Equal(int32(5), v)

	v, err = BigIntType.Convert(int32(7))
	require.NoError(err)
	require.Equal(int64(7), v)

	v, err = DecimalType(10, 2).Convert("1.25")
	require.NoError(err)
	require.True(decimal.RequireFromString("1.25").Equal(v.(decimal.Decimal)))

	v, err = VarcharType(2).Convert("abc")
	require.NoError(err)
	require.Equal("ab", v)

	v, err = StringType.Convert(nil)
	require.NoError(err)
	require.Nil(v)

	_, err = IntType.Convert("x")
	require.Error(err)
}

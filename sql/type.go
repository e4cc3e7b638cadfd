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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Kind is the category of a type.
type Kind int

const (
	Void Kind = iota
	Boolean
	TinyInt
	SmallInt
	Int
	BigInt
	Decimal
	Float
	Double
	String
	Varchar
	Char
	Date
	Timestamp
	Binary
	Array
	Map
	Struct
)

var kindNames = map[Kind]string{
	Void:      "void",
	Boolean:   "boolean",
	TinyInt:   "tinyint",
	SmallInt:  "smallint",
	Int:       "int",
	BigInt:    "bigint",
	Decimal:   "decimal",
	Float:     "float",
	Double:    "double",
	String:    "string",
	Varchar:   "varchar",
	Char:      "char",
	Date:      "date",
	Timestamp: "timestamp",
	Binary:    "binary",
	Array:     "array",
	Map:       "map",
	Struct:    "struct",
}

const (
	// MaxDecimalPrecision is the widest decimal representable.
	MaxDecimalPrecision = 38
	defaultDecimalPrecision = 10
)

// Type is a fully resolved column or expression type.
type Type struct {
	Kind      Kind
	Precision int
	Scale     int
	Length    int
	Elem      *Type
	Key       *Type
	Value     *Type
	Fields    []StructField
}

// StructField is one named member of a struct type.
type StructField struct {
	Name string
	Type Type
}

var (
	VoidType      = Type{Kind: Void}
	BooleanType   = Type{Kind: Boolean}
	TinyIntType   = Type{Kind: TinyInt}
	SmallIntType  = Type{Kind: SmallInt}
	IntType       = Type{Kind: Int}
	BigIntType    = Type{Kind: BigInt}
	FloatType     = Type{Kind: Float}
	DoubleType    = Type{Kind: Double}
	StringType    = Type{Kind: String}
	DateType      = Type{Kind: Date}
	TimestampType = Type{Kind: Timestamp}
	BinaryType    = Type{Kind: Binary}
)

// DecimalType returns decimal(precision, scale), clamped to the maximum
// precision.
func DecimalType(precision, scale int) Type {
	if precision > MaxDecimalPrecision {
		precision = MaxDecimalPrecision
	}
	if scale > precision {
		scale = precision
	}
	return Type{Kind: Decimal, Precision: precision, Scale: scale}
}

// VarcharType returns varchar(length).
func VarcharType(length int) Type {
	return Type{Kind: Varchar, Length: length}
}

// CharType returns char(length).
func CharType(length int) Type {
	return Type{Kind: Char, Length: length}
}

// ArrayOf returns array<elem>.
func ArrayOf(elem Type) Type {
	return Type{Kind: Array, Elem: &elem}
}

// MapOf returns map<key,value>.
func MapOf(key, value Type) Type {
	return Type{Kind: Map, Key: &key, Value: &value}
}

// StructOf returns struct<fields>.
func StructOf(fields ...StructField) Type {
	return Type{Kind: Struct, Fields: fields}
}

// String returns the HiveQL spelling of the type.
func (t Type) String() string {
	switch t.Kind {
	case Decimal:
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	case Varchar, Char:
		return fmt.Sprintf("%s(%d)", kindNames[t.Kind], t.Length)
	case Array:
		return fmt.Sprintf("array<%s>", t.Elem)
	case Map:
		return fmt.Sprintf("map<%s,%s>", t.Key, t.Value)
	case Struct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Name + ":" + f.Type.String()
		}
		return "struct<" + strings.Join(parts, ",") + ">"
	}
	return kindNames[t.Kind]
}

// Equals reports structural type equality.
func (t Type) Equals(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case Decimal:
		return t.Precision == o.Precision && t.Scale == o.Scale
	case Varchar, Char:
		return t.Length == o.Length
	case Array:
		return t.Elem.Equals(*o.Elem)
	case Map:
		return t.Key.Equals(*o.Key) && t.Value.Equals(*o.Value)
	case Struct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equals(o.Fields[i].Type) {
				return false
			}
		}
	}
	return true
}

// IsPrimitive reports whether the type is not array, map or struct.
func (t Type) IsPrimitive() bool {
	return t.Kind < Array
}

// IsNumeric reports whether the type is in the numeric group.
func (t Type) IsNumeric() bool {
	return t.Kind >= TinyInt && t.Kind <= Double
}

// IsIntegral reports whether the type is an exact integer type.
func (t Type) IsIntegral() bool {
	return t.Kind >= TinyInt && t.Kind <= BigInt
}

// IsStringGroup reports whether the type is string, varchar or char.
func (t Type) IsStringGroup() bool {
	return t.Kind == String || t.Kind == Varchar || t.Kind == Char
}

// IsDateGroup reports whether the type is date or timestamp.
func (t Type) IsDateGroup() bool {
	return t.Kind == Date || t.Kind == Timestamp
}

// asDecimal returns the decimal type able to hold every value of an
// integral or decimal type.
func (t Type) asDecimal() Type {
	switch t.Kind {
	case TinyInt:
		return DecimalType(3, 0)
	case SmallInt:
		return DecimalType(5, 0)
	case Int:
		return DecimalType(10, 0)
	case BigInt:
		return DecimalType(19, 0)
	case Decimal:
		return t
	}
	return DecimalType(MaxDecimalPrecision, 18)
}

func mergeDecimal(a, b Type) Type {
	a, b = a.asDecimal(), b.asDecimal()
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	intDigits := a.Precision - a.Scale
	if d := b.Precision - b.Scale; d > intDigits {
		intDigits = d
	}
	return DecimalType(intDigits+scale, scale)
}

// ImplicitConvertible reports whether a value of type from can be used
// where type to is expected without an explicit CAST.
func ImplicitConvertible(from, to Type) bool {
	if from.Equals(to) || from.Kind == Void {
		return true
	}
	if !from.IsPrimitive() || !to.IsPrimitive() {
		return from.Kind == to.Kind && complexConvertible(from, to)
	}
	switch {
	case from.IsStringGroup() && to.IsStringGroup():
		return true
	case from.IsStringGroup() && (to.Kind == Double || to.Kind == Decimal):
		return true
	case from.IsDateGroup() && to.IsStringGroup():
		return true
	case from.Kind == Date && to.Kind == Timestamp:
		return true
	case from.IsNumeric() && to.IsStringGroup():
		return true
	case from.IsNumeric() && to.IsNumeric():
		return from.Kind <= to.Kind
	}
	return false
}

func complexConvertible(from, to Type) bool {
	switch from.Kind {
	case Array:
		return ImplicitConvertible(*from.Elem, *to.Elem)
	case Map:
		return ImplicitConvertible(*from.Key, *to.Key) && ImplicitConvertible(*from.Value, *to.Value)
	case Struct:
		if len(from.Fields) != len(to.Fields) {
			return false
		}
		for i := range from.Fields {
			if !ImplicitConvertible(from.Fields[i].Type, to.Fields[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}

// widen picks the type of kind k that holds both a and b.
func widen(a, b Type, k Kind) Type {
	switch k {
	case Decimal:
		return mergeDecimal(a, b)
	case Varchar:
		l := a.Length
		if b.Length > l {
			l = b.Length
		}
		if a.Kind != Varchar || b.Kind != Varchar {
			return StringType
		}
		return VarcharType(l)
	}
	return Type{Kind: k}
}

var numericLadder = []Kind{TinyInt, SmallInt, Int, BigInt, Decimal, Float, Double}

// CommonTypeForComparison returns the type both operands are cast to before
// comparing them. The boolean is false when the operands are not comparable.
func CommonTypeForComparison(a, b Type) (Type, bool) {
	if a.Equals(b) {
		return a, true
	}
	if a.Kind == Void {
		return b, true
	}
	if b.Kind == Void {
		return a, true
	}
	if !a.IsPrimitive() || !b.IsPrimitive() {
		return Type{}, false
	}
	if a.IsStringGroup() && b.IsStringGroup() {
		if a.Kind == Varchar && b.Kind == Varchar {
			return widen(a, b, Varchar), true
		}
		return StringType, true
	}
	// date and timestamp take precedence over strings
	if a.IsStringGroup() && b.IsDateGroup() {
		return b, true
	}
	if b.IsStringGroup() && a.IsDateGroup() {
		return a, true
	}
	if a.IsDateGroup() && b.IsDateGroup() {
		return TimestampType, true
	}
	if (a.IsNumeric() || b.IsNumeric()) && (a.Kind == Timestamp || b.Kind == Timestamp) {
		return DoubleType, true
	}
	if a.Kind == Boolean || b.Kind == Boolean || a.Kind == Binary || b.Kind == Binary {
		return Type{}, false
	}
	if (a.IsStringGroup() && b.IsNumeric()) || (b.IsStringGroup() && a.IsNumeric()) {
		return DoubleType, true
	}
	for _, k := range numericLadder {
		t := Type{Kind: k}
		if ImplicitConvertible(a, t) && ImplicitConvertible(b, t) {
			return widen(a, b, k), true
		}
	}
	return Type{}, false
}

// CommonTypeForUnion returns the type a UNION column is widened to. Strings
// absorb every other primitive.
func CommonTypeForUnion(a, b Type) (Type, bool) {
	if a.Equals(b) {
		return a, true
	}
	if a.Kind == Void {
		return b, true
	}
	if b.Kind == Void {
		return a, true
	}
	if !a.IsPrimitive() || !b.IsPrimitive() {
		if a.Kind != b.Kind {
			return Type{}, false
		}
		return unionComplex(a, b)
	}
	if a.IsStringGroup() || b.IsStringGroup() {
		if a.Kind == Varchar && b.Kind == Varchar {
			return widen(a, b, Varchar), true
		}
		return StringType, true
	}
	if a.IsDateGroup() && b.IsDateGroup() {
		return TimestampType, true
	}
	if a.IsNumeric() && b.IsNumeric() {
		k := a.Kind
		if b.Kind > k {
			k = b.Kind
		}
		return widen(a, b, k), true
	}
	return Type{}, false
}

func unionComplex(a, b Type) (Type, bool) {
	switch a.Kind {
	case Array:
		e, ok := CommonTypeForUnion(*a.Elem, *b.Elem)
		return ArrayOf(e), ok
	case Map:
		k, ok1 := CommonTypeForUnion(*a.Key, *b.Key)
		v, ok2 := CommonTypeForUnion(*a.Value, *b.Value)
		return MapOf(k, v), ok1 && ok2
	case Struct:
		if len(a.Fields) != len(b.Fields) {
			return Type{}, false
		}
		fields := make([]StructField, len(a.Fields))
		for i := range a.Fields {
			t, ok := CommonTypeForUnion(a.Fields[i].Type, b.Fields[i].Type)
			if !ok || a.Fields[i].Name != b.Fields[i].Name {
				return Type{}, false
			}
			fields[i] = StructField{Name: a.Fields[i].Name, Type: t}
		}
		return StructOf(fields...), true
	}
	return Type{}, false
}

// Convert coerces a constant value into the Go representation of the type.
// NULL stays nil.
func (t Type) Convert(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if d, ok := v.(decimal.Decimal); ok && t.Kind != Decimal {
		if t.IsStringGroup() {
			v = d.String()
		} else if t.IsIntegral() {
			v = d.IntPart()
		} else {
			v = d.InexactFloat64()
		}
	}
	switch t.Kind {
	case Boolean:
		return cast.ToBoolE(v)
	case TinyInt:
		return cast.ToInt8E(v)
	case SmallInt:
		return cast.ToInt16E(v)
	case Int:
		return cast.ToInt32E(v)
	case BigInt:
		return cast.ToInt64E(v)
	case Float:
		return cast.ToFloat32E(v)
	case Double:
		return cast.ToFloat64E(v)
	case Decimal:
		return toDecimal(v)
	case String, Varchar, Char:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, err
		}
		if t.Length > 0 && len(s) > t.Length {
			s = s[:t.Length]
		}
		return s, nil
	case Date, Timestamp:
		return cast.ToTimeE(v)
	}
	return nil, ErrInvalidType.New(t.String())
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch v := v.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	case float32:
		return decimal.NewFromFloat32(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case time.Time:
		return decimal.NewFromInt(v.Unix()), nil
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromInt(i), nil
}

// ParseType parses a HiveQL type name such as "map<string,array<int>>".
func ParseType(s string) (Type, error) {
	p := &typeParser{s: strings.ToLower(strings.TrimSpace(s))}
	t, err := p.parse()
	if err != nil {
		return Type{}, err
	}
	if p.pos != len(p.s) {
		return Type{}, ErrInvalidType.New(s)
	}
	return t, nil
}

// MustParseType is ParseType that panics on error.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	s   string
	pos int
}

func (p *typeParser) ident() string {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_') {
			break
		}
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *typeParser) skipSpaces() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) expect(c byte) error {
	p.skipSpaces()
	if p.pos >= len(p.s) || p.s[p.pos] != c {
		return ErrInvalidType.New(p.s)
	}
	p.pos++
	p.skipSpaces()
	return nil
}

func (p *typeParser) peek(c byte) bool {
	p.skipSpaces()
	return p.pos < len(p.s) && p.s[p.pos] == c
}

func (p *typeParser) ints() ([]int, error) {
	var out []int
	if !p.peek('(') {
		return nil, nil
	}
	p.pos++
	for {
		p.skipSpaces()
		n, err := strconv.Atoi(p.ident())
		if err != nil {
			return nil, ErrInvalidType.New(p.s)
		}
		out = append(out, n)
		if p.peek(',') {
			p.pos++
			continue
		}
		return out, p.expect(')')
	}
}

func (p *typeParser) parse() (Type, error) {
	p.skipSpaces()
	name := p.ident()
	switch name {
	case "void":
		return VoidType, nil
	case "boolean":
		return BooleanType, nil
	case "tinyint":
		return TinyIntType, nil
	case "smallint":
		return SmallIntType, nil
	case "int", "integer":
		return IntType, nil
	case "bigint":
		return BigIntType, nil
	case "float":
		return FloatType, nil
	case "double":
		return DoubleType, nil
	case "string":
		return StringType, nil
	case "date":
		return DateType, nil
	case "timestamp":
		return TimestampType, nil
	case "binary":
		return BinaryType, nil
	case "decimal":
		args, err := p.ints()
		if err != nil {
			return Type{}, err
		}
		switch len(args) {
		case 0:
			return DecimalType(defaultDecimalPrecision, 0), nil
		case 1:
			return DecimalType(args[0], 0), nil
		case 2:
			return DecimalType(args[0], args[1]), nil
		}
	case "varchar", "char":
		args, err := p.ints()
		if err != nil || len(args) != 1 {
			return Type{}, ErrInvalidType.New(p.s)
		}
		if name == "char" {
			return CharType(args[0]), nil
		}
		return VarcharType(args[0]), nil
	case "array":
		if err := p.expect('<'); err != nil {
			return Type{}, err
		}
		elem, err := p.parse()
		if err != nil {
			return Type{}, err
		}
		return ArrayOf(elem), p.expect('>')
	case "map":
		if err := p.expect('<'); err != nil {
			return Type{}, err
		}
		k, err := p.parse()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect(','); err != nil {
			return Type{}, err
		}
		v, err := p.parse()
		if err != nil {
			return Type{}, err
		}
		return MapOf(k, v), p.expect('>')
	case "struct":
		if err := p.expect('<'); err != nil {
			return Type{}, err
		}
		var fields []StructField
		for {
			fname := p.ident()
			if err := p.expect(':'); err != nil {
				return Type{}, err
			}
			ft, err := p.parse()
			if err != nil {
				return Type{}, err
			}
			fields = append(fields, StructField{Name: fname, Type: ft})
			if p.peek(',') {
				p.pos++
				p.skipSpaces()
				continue
			}
			return StructOf(fields...), p.expect('>')
		}
	}
	return Type{}, ErrInvalidType.New(p.s)
}

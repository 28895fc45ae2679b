/*
Copyright 2025 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package sqltypes implements the datum model used by the executor:
// typed, possibly NULL values and rows of them.
package sqltypes

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"vitess.io/vtexec/go/vt/vterrors"
)

// Kind is the type of a Value.
type Kind uint8

// The supported kinds. Null sorts before every other kind.
const (
	Null Kind = iota
	Bool
	Int64
	Float64
	Decimal
	Text
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Decimal:
		return "decimal"
	case Text:
		return "text"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// KindFromString parses the name produced by Kind.String.
func KindFromString(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "null":
		return Null, nil
	case "bool", "boolean":
		return Bool, nil
	case "int64", "int", "integer", "bigint":
		return Int64, nil
	case "float64", "float", "double":
		return Float64, nil
	case "decimal", "numeric":
		return Decimal, nil
	case "text", "varchar", "string":
		return Text, nil
	}
	return Null, vterrors.Errorf(vterrors.INVALID_ARGUMENT, "unknown type %q", s)
}

// IsNumeric returns true for the kinds that take part in arithmetic.
func (k Kind) IsNumeric() bool {
	return k == Int64 || k == Float64 || k == Decimal
}

// Value is a single datum. The zero Value is NULL.
// Values are immutable once built and can be shared freely.
type Value struct {
	kind Kind
	i    int64
	f    float64
	d    *apd.Decimal
	s    string
}

// Row is a list of values.
type Row = []Value

// NULL is the NULL value.
var NULL = Value{}

// NewBool builds a Bool value.
func NewBool(b bool) Value {
	if b {
		return Value{kind: Bool, i: 1}
	}
	return Value{kind: Bool}
}

// NewInt64 builds an Int64 value.
func NewInt64(v int64) Value {
	return Value{kind: Int64, i: v}
}

// NewFloat64 builds a Float64 value.
func NewFloat64(v float64) Value {
	return Value{kind: Float64, f: v}
}

// NewDecimal builds a Decimal value. The decimal is copied.
func NewDecimal(d *apd.Decimal) Value {
	var c apd.Decimal
	c.Set(d)
	return Value{kind: Decimal, d: &c}
}

// NewDecimalFromString parses a decimal literal.
func NewDecimalFromString(s string) (Value, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return NULL, vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.WrongValue, "invalid decimal %q", s)
	}
	return Value{kind: Decimal, d: d}, nil
}

// NewText builds a Text value.
func NewText(s string) Value {
	return Value{kind: Text, s: s}
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull returns true if the value is NULL.
func (v Value) IsNull() bool { return v.kind == Null }

// IsNumeric returns true if the value is an Int64, Float64 or Decimal.
func (v Value) IsNumeric() bool { return v.kind.IsNumeric() }

// Bool returns the boolean payload. It is only meaningful for Bool values.
func (v Value) Bool() bool { return v.i != 0 }

// Int64 returns the integer payload. It is only meaningful for Int64 values.
func (v Value) Int64() int64 { return v.i }

// Float64 returns the float payload. It is only meaningful for Float64 values.
func (v Value) Float64() float64 { return v.f }

// Decimal returns the decimal payload. The returned decimal must not be modified.
func (v Value) Decimal() *apd.Decimal { return v.d }

// Text returns the text payload. It is only meaningful for Text values.
func (v Value) Text() string { return v.s }

// String returns a printable version of the value.
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "NULL"
	case Bool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case Int64:
		return strconv.FormatInt(v.i, 10)
	case Float64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Decimal:
		return v.d.Text('f')
	case Text:
		return v.s
	}
	return "?"
}

// ToSQL returns the value the way it would be written as a literal.
func (v Value) ToSQL() string {
	if v.kind == Text {
		return strconv.Quote(v.s)
	}
	return v.String()
}

// Equal returns true if both values have the same kind and payload.
// It is stricter than NullsafeCompare: 1 and 1.0 are not Equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool, Int64:
		return v.i == o.i
	case Float64:
		return v.f == o.f
	case Decimal:
		return v.d.Cmp(o.d) == 0
	case Text:
		return v.s == o.s
	}
	return false
}

// RowString prints a row as (v1, v2, ...).
func RowString(row Row) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range row {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.ToSQL())
	}
	sb.WriteByte(')')
	return sb.String()
}

// RowsEqual returns true if both rows hold Equal values.
func RowsEqual(a, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// CopyRow returns a shallow copy of the row. Values are immutable so
// the copy never aliases mutable state.
func CopyRow(row Row) Row {
	if row == nil {
		return nil
	}
	out := make(Row, len(row))
	copy(out, row)
	return out
}

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

package evalengine

import (
	"math"

	"github.com/cockroachdb/apd/v3"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/evalctx"
)

// CompareOp is a comparison operator.
type CompareOp int8

const (
	Equal CompareOp = iota
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
)

var compareOpNames = [...]string{
	Equal:        "=",
	NotEqual:     "!=",
	Less:         "<",
	LessEqual:    "<=",
	Greater:      ">",
	GreaterEqual: ">=",
}

func (op CompareOp) String() string { return compareOpNames[op] }

// CompareOpFromString parses a comparison operator.
func CompareOpFromString(s string) (CompareOp, bool) {
	for i, name := range compareOpNames {
		if name == s {
			return CompareOp(i), true
		}
	}
	if s == "<>" {
		return NotEqual, true
	}
	return 0, false
}

func (c *Comparison) Eval(ctx *evalctx.ExprContext) (sqltypes.Value, error) {
	l, err := c.Left.Eval(ctx)
	if err != nil {
		return sqltypes.NULL, err
	}
	r, err := c.Right.Eval(ctx)
	if err != nil {
		return sqltypes.NULL, err
	}
	if l.IsNull() || r.IsNull() {
		return sqltypes.NULL, nil
	}
	cmp, err := sqltypes.NullsafeCompare(l, r)
	if err != nil {
		return sqltypes.NULL, err
	}
	var b bool
	switch c.Op {
	case Equal:
		b = cmp == 0
	case NotEqual:
		b = cmp != 0
	case Less:
		b = cmp < 0
	case LessEqual:
		b = cmp <= 0
	case Greater:
		b = cmp > 0
	case GreaterEqual:
		b = cmp >= 0
	}
	return sqltypes.NewBool(b), nil
}

func (c *Comparison) String() string {
	return c.Left.String() + " " + c.Op.String() + " " + c.Right.String()
}

// LogicalOp is AND or OR.
type LogicalOp int8

const (
	And LogicalOp = iota
	Or
)

func (op LogicalOp) String() string {
	if op == And {
		return "and"
	}
	return "or"
}

func (l *Logical) Eval(ctx *evalctx.ExprContext) (sqltypes.Value, error) {
	// AND: false wins over NULL; OR: true wins over NULL.
	decisive := l.Op == Or
	sawNull := false
	for _, arg := range l.Args {
		v, err := arg.Eval(ctx)
		if err != nil {
			return sqltypes.NULL, err
		}
		if v.IsNull() {
			sawNull = true
			continue
		}
		b, err := sqltypes.ToBool(v)
		if err != nil {
			return sqltypes.NULL, err
		}
		if b == decisive {
			return sqltypes.NewBool(decisive), nil
		}
	}
	if sawNull {
		return sqltypes.NULL, nil
	}
	return sqltypes.NewBool(!decisive), nil
}

func (l *Logical) String() string {
	return "(" + joinExprs(l.Args, " "+l.Op.String()+" ") + ")"
}

// ArithmeticOp is a numeric operator.
type ArithmeticOp int8

const (
	Add ArithmeticOp = iota
	Sub
	Mul
	Div
	Mod
)

var arithmeticOpNames = [...]string{Add: "+", Sub: "-", Mul: "*", Div: "/", Mod: "%"}

func (op ArithmeticOp) String() string { return arithmeticOpNames[op] }

// ArithmeticOpFromString parses an arithmetic operator.
func ArithmeticOpFromString(s string) (ArithmeticOp, bool) {
	for i, name := range arithmeticOpNames {
		if name == s {
			return ArithmeticOp(i), true
		}
	}
	return 0, false
}

var errDivisionByZero = vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.DivisionByZero, "division by zero")

func outOfRange(op ArithmeticOp, l, r sqltypes.Value) error {
	return vterrors.NewErrorf(vterrors.OUT_OF_RANGE, vterrors.DataOutOfRange, "integer out of range in %s %s %s", l, op, r)
}

func (a *Arithmetic) Eval(ctx *evalctx.ExprContext) (sqltypes.Value, error) {
	l, err := a.Left.Eval(ctx)
	if err != nil {
		return sqltypes.NULL, err
	}
	r, err := a.Right.Eval(ctx)
	if err != nil {
		return sqltypes.NULL, err
	}
	return Arith(a.Op, l, r)
}

func (a *Arithmetic) String() string {
	return "(" + a.Left.String() + " " + a.Op.String() + " " + a.Right.String() + ")"
}

// Arith applies op to two values. Integer operands stay integers and
// report overflow; a decimal operand makes the result decimal; otherwise
// the result is a float. Text operands are coerced to numbers.
func Arith(op ArithmeticOp, l, r sqltypes.Value) (sqltypes.Value, error) {
	if l.IsNull() || r.IsNull() {
		return sqltypes.NULL, nil
	}
	var err error
	if l, err = toNumeric(l); err != nil {
		return sqltypes.NULL, err
	}
	if r, err = toNumeric(r); err != nil {
		return sqltypes.NULL, err
	}
	switch {
	case l.Kind() == sqltypes.Int64 && r.Kind() == sqltypes.Int64:
		return intArith(op, l, r)
	case l.Kind() == sqltypes.Decimal || r.Kind() == sqltypes.Decimal:
		return decimalArith(op, l, r)
	}
	return floatArith(op, l, r)
}

func toNumeric(v sqltypes.Value) (sqltypes.Value, error) {
	switch v.Kind() {
	case sqltypes.Int64, sqltypes.Float64, sqltypes.Decimal:
		return v, nil
	case sqltypes.Text:
		if i, err := sqltypes.ToInt64(v); err == nil {
			return sqltypes.NewInt64(i), nil
		}
		return sqltypes.Cast(v, sqltypes.Decimal)
	}
	return sqltypes.NULL, vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.CantCoerce, "cannot use %s %s in arithmetic", v.Kind(), v.ToSQL())
}

func intArith(op ArithmeticOp, l, r sqltypes.Value) (sqltypes.Value, error) {
	x, y := l.Int64(), r.Int64()
	switch op {
	case Add:
		s := x + y
		if (s > x) != (y > 0) {
			return sqltypes.NULL, outOfRange(op, l, r)
		}
		return sqltypes.NewInt64(s), nil
	case Sub:
		d := x - y
		if (d < x) != (y > 0) {
			return sqltypes.NULL, outOfRange(op, l, r)
		}
		return sqltypes.NewInt64(d), nil
	case Mul:
		if x == 0 || y == 0 {
			return sqltypes.NewInt64(0), nil
		}
		p := x * y
		if p/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
			return sqltypes.NULL, outOfRange(op, l, r)
		}
		return sqltypes.NewInt64(p), nil
	case Div:
		if y == 0 {
			return sqltypes.NULL, errDivisionByZero
		}
		if x == math.MinInt64 && y == -1 {
			return sqltypes.NULL, outOfRange(op, l, r)
		}
		return sqltypes.NewInt64(x / y), nil
	case Mod:
		if y == 0 {
			return sqltypes.NULL, errDivisionByZero
		}
		if y == -1 {
			return sqltypes.NewInt64(0), nil
		}
		return sqltypes.NewInt64(x % y), nil
	}
	return sqltypes.NULL, vterrors.VT13001("unknown arithmetic operator")
}

func floatArith(op ArithmeticOp, l, r sqltypes.Value) (sqltypes.Value, error) {
	x, err := sqltypes.ToFloat64(l)
	if err != nil {
		return sqltypes.NULL, err
	}
	y, err := sqltypes.ToFloat64(r)
	if err != nil {
		return sqltypes.NULL, err
	}
	var f float64
	switch op {
	case Add:
		f = x + y
	case Sub:
		f = x - y
	case Mul:
		f = x * y
	case Div:
		if y == 0 {
			return sqltypes.NULL, errDivisionByZero
		}
		f = x / y
	case Mod:
		if y == 0 {
			return sqltypes.NULL, errDivisionByZero
		}
		f = math.Mod(x, y)
	}
	if math.IsInf(f, 0) {
		return sqltypes.NULL, vterrors.NewErrorf(vterrors.OUT_OF_RANGE, vterrors.DataOutOfRange, "value out of range: overflow")
	}
	return sqltypes.NewFloat64(f), nil
}

func decimalArith(op ArithmeticOp, l, r sqltypes.Value) (sqltypes.Value, error) {
	x, err := sqltypes.ToDecimal(l)
	if err != nil {
		return sqltypes.NULL, err
	}
	y, err := sqltypes.ToDecimal(r)
	if err != nil {
		return sqltypes.NULL, err
	}
	var res apd.Decimal
	ctx := sqltypes.DecimalContext
	switch op {
	case Add:
		_, err = ctx.Add(&res, x, y)
	case Sub:
		_, err = ctx.Sub(&res, x, y)
	case Mul:
		_, err = ctx.Mul(&res, x, y)
	case Div:
		if y.IsZero() {
			return sqltypes.NULL, errDivisionByZero
		}
		_, err = ctx.Quo(&res, x, y)
		res.Reduce(&res)
	case Mod:
		if y.IsZero() {
			return sqltypes.NULL, errDivisionByZero
		}
		_, err = ctx.Rem(&res, x, y)
	}
	if err != nil {
		return sqltypes.NULL, vterrors.NewErrorf(vterrors.OUT_OF_RANGE, vterrors.DataOutOfRange, "numeric %s failed: %v", op, err)
	}
	return sqltypes.NewDecimal(&res), nil
}

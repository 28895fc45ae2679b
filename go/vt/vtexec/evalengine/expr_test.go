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
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/evalctx"
	"vitess.io/vtexec/go/vt/vtexec/slot"
)

func lit(v sqltypes.Value) *Literal { return &Literal{Val: v} }

func TestEval(t *testing.T) {
	null := lit(sqltypes.NULL)
	one := NewLiteralInt(1)
	two := NewLiteralInt(2)
	dec, _ := sqltypes.NewDecimalFromString("1.5")

	tcases := []struct {
		expr Expr
		out  string
	}{
		{NewComparison(Less, one, two), "true"},
		{NewComparison(Equal, one, lit(sqltypes.NewFloat64(1))), "true"},
		{NewComparison(NotEqual, one, null), "NULL"},
		{NewAnd(one, null), "NULL"},
		{NewAnd(lit(sqltypes.NewBool(false)), null), "false"},
		{NewOr(null, one), "true"},
		{NewOr(null, lit(sqltypes.NewBool(false))), "NULL"},
		{&Not{Arg: null}, "NULL"},
		{&Not{Arg: one}, "false"},
		{&IsNull{Arg: null}, "true"},
		{&IsNull{Arg: one, Negate: true}, "true"},
		{&Arithmetic{Op: Add, Left: one, Right: two}, "3"},
		{&Arithmetic{Op: Div, Left: NewLiteralInt(7), Right: two}, "3"},
		{&Arithmetic{Op: Mul, Left: lit(dec), Right: two}, "3.0"},
		{&Arithmetic{Op: Sub, Left: one, Right: null}, "NULL"},
		{&Arithmetic{Op: Add, Left: NewLiteralText("4"), Right: one}, "5"},
		{&Cast{Arg: NewLiteralText("12"), Type: sqltypes.Int64}, "12"},
		{&Func{Name: "abs", Args: []Expr{NewLiteralInt(-4)}}, "4"},
		{&Func{Name: "upper", Args: []Expr{NewLiteralText("abc")}}, "ABC"},
		{&Func{Name: "upper", Args: []Expr{null}}, "NULL"},
		{&Func{Name: "coalesce", Args: []Expr{null, two}}, "2"},
		{&Func{Name: "concat", Args: []Expr{NewLiteralText("a"), null, one}}, "a1"},
		{&Func{Name: "length", Args: []Expr{NewLiteralText("héllo")}}, "5"},
	}
	for _, tc := range tcases {
		t.Run(tc.expr.String(), func(t *testing.T) {
			ctx := evalctx.New(nil)
			v, err := tc.expr.Eval(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.out, v.String())
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tcases := []struct {
		expr  Expr
		state vterrors.State
	}{
		{&Arithmetic{Op: Div, Left: NewLiteralInt(1), Right: NewLiteralInt(0)}, vterrors.DivisionByZero},
		{&Arithmetic{Op: Mod, Left: NewLiteralInt(1), Right: lit(sqltypes.NewFloat64(0))}, vterrors.DivisionByZero},
		{&Arithmetic{Op: Add, Left: NewLiteralInt(1<<62 + 1<<62 - 1), Right: NewLiteralInt(1 << 62)}, vterrors.DataOutOfRange},
		{&Cast{Arg: NewLiteralText("abc"), Type: sqltypes.Int64}, vterrors.CantCoerce},
		{NewComparison(Equal, NewLiteralText("a"), NewLiteralInt(1)), vterrors.CantCoerce},
		{&Func{Name: "nope", Args: nil}, vterrors.NoSuchFunction},
		{&Param{ID: 3}, vterrors.NoSuchParam},
	}
	for _, tc := range tcases {
		t.Run(tc.expr.String(), func(t *testing.T) {
			_, err := tc.expr.Eval(evalctx.New(nil))
			require.Error(t, err)
			assert.Equal(t, tc.state, vterrors.ErrState(err))
		})
	}
}

func TestColumnSources(t *testing.T) {
	outer := slot.New(2)
	outer.StoreOwned(sqltypes.Row{sqltypes.NewInt64(1), sqltypes.NewText("o")})
	inner := slot.New(1)
	inner.StoreOwned(sqltypes.Row{sqltypes.NewText("i")})

	ctx := evalctx.New([]sqltypes.Value{sqltypes.NewInt64(42)})
	ctx.Bind(outer, inner, nil)

	v, err := NewColumn(OuterRow, 1).Eval(ctx)
	require.NoError(t, err)
	assert.Equal(t, "o", v.String())

	v, err = NewColumn(InnerRow, 0).Eval(ctx)
	require.NoError(t, err)
	assert.Equal(t, "i", v.String())

	v, err = (&Param{ID: 0}).Eval(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v.Int64())

	_, err = NewColumn(ScanRow, 0).Eval(ctx)
	require.Error(t, err)
	assert.Equal(t, vterrors.INTERNAL, vterrors.Code(err))
}

func TestExecQual(t *testing.T) {
	ctx := evalctx.New(nil)
	ok, err := ExecQual(nil, ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ExecQual([]Expr{NewLiteralInt(1), lit(sqltypes.NULL)}, ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ExecQual([]Expr{NewComparison(Greater, NewLiteralInt(2), NewLiteralInt(1))}, ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExecProject(t *testing.T) {
	scan := slot.New(2)
	scan.StoreOwned(sqltypes.MakeTestRow([]sqltypes.Kind{sqltypes.Int64, sqltypes.Int64}, "3|4"))
	ctx := evalctx.New(nil)
	ctx.Bind(nil, nil, scan)

	row, err := ExecProject([]Expr{
		&Arithmetic{Op: Mul, Left: NewColumn(ScanRow, 0), Right: NewColumn(ScanRow, 1)},
		NewColumn(ScanRow, 0),
	}, ctx)
	require.NoError(t, err)
	assert.Equal(t, "(12, 3)", sqltypes.RowString(row))
}

func TestParams(t *testing.T) {
	var set bitset.BitSet
	Params(&set,
		NewComparison(Equal, NewColumn(ScanRow, 0), &Param{ID: 2}),
		&Func{Name: "coalesce", Args: []Expr{&Param{ID: 5}, NewLiteralInt(1)}},
		nil,
	)
	assert.Equal(t, uint(2), set.Count())
	assert.True(t, set.Test(2))
	assert.True(t, set.Test(5))
}

func TestCompareOpFromString(t *testing.T) {
	op, ok := CompareOpFromString("<>")
	require.True(t, ok)
	assert.Equal(t, NotEqual, op)
	_, ok = CompareOpFromString("~")
	assert.False(t, ok)
}

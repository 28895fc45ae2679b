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
	"strings"

	"github.com/cockroachdb/apd/v3"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/evalctx"
)

type builtin struct {
	minArgs, maxArgs int
	// strict functions return NULL when any argument is NULL.
	strict bool
	call   func(args []sqltypes.Value) (sqltypes.Value, error)
}

var builtins = map[string]builtin{
	"abs":      {minArgs: 1, maxArgs: 1, strict: true, call: fnAbs},
	"lower":    {minArgs: 1, maxArgs: 1, strict: true, call: textFn(strings.ToLower)},
	"upper":    {minArgs: 1, maxArgs: 1, strict: true, call: textFn(strings.ToUpper)},
	"length":   {minArgs: 1, maxArgs: 1, strict: true, call: fnLength},
	"coalesce": {minArgs: 1, maxArgs: -1, call: fnCoalesce},
	"concat":   {minArgs: 1, maxArgs: -1, call: fnConcat},
}

// CheckFunc validates a call to a builtin function.
func CheckFunc(name string, nargs int) error {
	b, ok := builtins[name]
	if !ok {
		return vterrors.NewErrorf(vterrors.NOT_FOUND, vterrors.NoSuchFunction, "function %s does not exist", name)
	}
	if nargs < b.minArgs || (b.maxArgs >= 0 && nargs > b.maxArgs) {
		return vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.WrongArguments, "wrong number of arguments to %s: %d", name, nargs)
	}
	return nil
}

func (f *Func) Eval(ctx *evalctx.ExprContext) (sqltypes.Value, error) {
	b, ok := builtins[f.Name]
	if !ok {
		return sqltypes.NULL, CheckFunc(f.Name, len(f.Args))
	}
	args := ctx.Alloc(len(f.Args))
	for i, a := range f.Args {
		v, err := a.Eval(ctx)
		if err != nil {
			return sqltypes.NULL, err
		}
		if v.IsNull() && b.strict {
			return sqltypes.NULL, nil
		}
		args[i] = v
	}
	return b.call(args)
}

func (f *Func) String() string {
	return f.Name + "(" + joinExprs(f.Args, ", ") + ")"
}

func fnAbs(args []sqltypes.Value) (sqltypes.Value, error) {
	v := args[0]
	switch v.Kind() {
	case sqltypes.Int64:
		if v.Int64() == math.MinInt64 {
			return sqltypes.NULL, vterrors.NewErrorf(vterrors.OUT_OF_RANGE, vterrors.DataOutOfRange, "integer out of range in abs(%s)", v)
		}
		if v.Int64() < 0 {
			return sqltypes.NewInt64(-v.Int64()), nil
		}
		return v, nil
	case sqltypes.Float64:
		return sqltypes.NewFloat64(math.Abs(v.Float64())), nil
	case sqltypes.Decimal:
		var d apd.Decimal
		d.Abs(v.Decimal())
		return sqltypes.NewDecimal(&d), nil
	}
	return sqltypes.NULL, vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.WrongArguments, "abs of %s is not defined", v.Kind())
}

func textFn(fn func(string) string) func(args []sqltypes.Value) (sqltypes.Value, error) {
	return func(args []sqltypes.Value) (sqltypes.Value, error) {
		return sqltypes.NewText(fn(args[0].String())), nil
	}
}

func fnLength(args []sqltypes.Value) (sqltypes.Value, error) {
	return sqltypes.NewInt64(int64(len([]rune(args[0].String())))), nil
}

func fnCoalesce(args []sqltypes.Value) (sqltypes.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return sqltypes.NULL, nil
}

func fnConcat(args []sqltypes.Value) (sqltypes.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		if !a.IsNull() {
			sb.WriteString(a.String())
		}
	}
	return sqltypes.NewText(sb.String()), nil
}

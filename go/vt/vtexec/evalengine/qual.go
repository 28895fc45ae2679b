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
	"github.com/bits-and-blooms/bitset"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vtexec/evalctx"
)

// ExecQual evaluates an implicitly AND-ed list of conditions. An empty
// list is true; a NULL condition counts as false.
func ExecQual(qual []Expr, ctx *evalctx.ExprContext) (bool, error) {
	for _, e := range qual {
		v, err := e.Eval(ctx)
		if err != nil {
			return false, err
		}
		if v.IsNull() {
			return false, nil
		}
		b, err := sqltypes.ToBool(v)
		if err != nil || !b {
			return false, err
		}
	}
	return true, nil
}

// ExecProject evaluates a target list into a row allocated from the
// context's arena. The row is valid until the arena is reset.
func ExecProject(targets []Expr, ctx *evalctx.ExprContext) (sqltypes.Row, error) {
	row := ctx.Alloc(len(targets))
	for i, e := range targets {
		v, err := e.Eval(ctx)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// EvalKeys evaluates a list of key expressions into out.
func EvalKeys(keys []Expr, ctx *evalctx.ExprContext, out []sqltypes.Value) error {
	for i, e := range keys {
		v, err := e.Eval(ctx)
		if err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}

// Walk calls fn for e and every sub-expression of e, parents first.
// Returning false from fn skips the children of that node.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch e := e.(type) {
	case *Comparison:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case *Arithmetic:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case *Logical:
		for _, a := range e.Args {
			Walk(a, fn)
		}
	case *Not:
		Walk(e.Arg, fn)
	case *IsNull:
		Walk(e.Arg, fn)
	case *Cast:
		Walk(e.Arg, fn)
	case *Func:
		for _, a := range e.Args {
			Walk(a, fn)
		}
	}
}

// Params adds the ids of the parameters referenced by exprs to set.
func Params(set *bitset.BitSet, exprs ...Expr) {
	for _, e := range exprs {
		Walk(e, func(e Expr) bool {
			if p, ok := e.(*Param); ok && p.ID >= 0 {
				set.Set(uint(p.ID))
			}
			return true
		})
	}
}

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

// Package evalengine evaluates the scalar expressions, aggregates and
// set-returning functions found in plans.
package evalengine

import (
	"fmt"
	"strconv"
	"strings"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/evalctx"
)

// Expr is a scalar expression.
type Expr interface {
	// Eval computes the value of the expression for the rows bound in ctx.
	Eval(ctx *evalctx.ExprContext) (sqltypes.Value, error)
	String() string
	expr()
}

var (
	_ Expr = (*Column)(nil)
	_ Expr = (*Literal)(nil)
	_ Expr = (*Param)(nil)
	_ Expr = (*Comparison)(nil)
	_ Expr = (*Arithmetic)(nil)
	_ Expr = (*Logical)(nil)
	_ Expr = (*Not)(nil)
	_ Expr = (*IsNull)(nil)
	_ Expr = (*Cast)(nil)
	_ Expr = (*AggRef)(nil)
	_ Expr = (*Func)(nil)
)

// Source selects which bound row a Column reads.
type Source int8

const (
	ScanRow Source = iota
	OuterRow
	InnerRow
)

func (s Source) String() string {
	switch s {
	case ScanRow:
		return "scan"
	case OuterRow:
		return "outer"
	case InnerRow:
		return "inner"
	}
	return "?"
}

type (
	// Column reads a column of one of the bound rows.
	Column struct {
		Source Source
		Index  int
		Name   string
	}

	// Literal is a constant.
	Literal struct {
		Val sqltypes.Value
	}

	// Param reads an executor parameter.
	Param struct {
		ID int
	}

	// Comparison compares two operands. It is NULL if either side is NULL.
	Comparison struct {
		Op          CompareOp
		Left, Right Expr
	}

	// Arithmetic applies a numeric operator. It is NULL if either side is NULL.
	Arithmetic struct {
		Op          ArithmeticOp
		Left, Right Expr
	}

	// Logical is an AND or OR over any number of operands, with SQL's
	// three-valued semantics.
	Logical struct {
		Op   LogicalOp
		Args []Expr
	}

	// Not negates a boolean. NOT NULL is NULL.
	Not struct {
		Arg Expr
	}

	// IsNull tests for NULL, or for NOT NULL when Negate is set.
	IsNull struct {
		Arg    Expr
		Negate bool
	}

	// Cast converts its argument to another kind.
	Cast struct {
		Arg  Expr
		Type sqltypes.Kind
	}

	// AggRef reads the finalized value of an aggregate of the current group.
	AggRef struct {
		Index int
	}

	// Func calls a builtin scalar function.
	Func struct {
		Name string
		Args []Expr
	}
)

func (*Column) expr()     {}
func (*Literal) expr()    {}
func (*Param) expr()      {}
func (*Comparison) expr() {}
func (*Arithmetic) expr() {}
func (*Logical) expr()    {}
func (*Not) expr()        {}
func (*IsNull) expr()     {}
func (*Cast) expr()       {}
func (*AggRef) expr()     {}
func (*Func) expr()       {}

// NewColumn returns a reference to the idx-th column of the given row.
func NewColumn(src Source, idx int) *Column {
	return &Column{Source: src, Index: idx}
}

// NewLiteralInt returns an integer literal.
func NewLiteralInt(v int64) *Literal {
	return &Literal{Val: sqltypes.NewInt64(v)}
}

// NewLiteralText returns a text literal.
func NewLiteralText(s string) *Literal {
	return &Literal{Val: sqltypes.NewText(s)}
}

// NewComparison returns `left op right`.
func NewComparison(op CompareOp, left, right Expr) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right}
}

// NewAnd returns the conjunction of args.
func NewAnd(args ...Expr) *Logical {
	return &Logical{Op: And, Args: args}
}

// NewOr returns the disjunction of args.
func NewOr(args ...Expr) *Logical {
	return &Logical{Op: Or, Args: args}
}

func (c *Column) Eval(ctx *evalctx.ExprContext) (sqltypes.Value, error) {
	var s = ctx.Scan
	switch c.Source {
	case OuterRow:
		s = ctx.Outer
	case InnerRow:
		s = ctx.Inner
	}
	if s == nil {
		return sqltypes.NULL, vterrors.VT13001(fmt.Sprintf("%s row is not bound", c.Source))
	}
	return s.Value(c.Index), nil
}

func (c *Column) String() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Source.String() + "." + strconv.Itoa(c.Index)
}

func (l *Literal) Eval(*evalctx.ExprContext) (sqltypes.Value, error) {
	return l.Val, nil
}

func (l *Literal) String() string {
	return l.Val.ToSQL()
}

func (p *Param) Eval(ctx *evalctx.ExprContext) (sqltypes.Value, error) {
	if p.ID < 0 || p.ID >= len(ctx.Params) {
		return sqltypes.NULL, vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.NoSuchParam, "parameter $%d is not defined", p.ID)
	}
	return ctx.Params[p.ID], nil
}

func (p *Param) String() string {
	return "$" + strconv.Itoa(p.ID)
}

func (n *Not) Eval(ctx *evalctx.ExprContext) (sqltypes.Value, error) {
	v, err := n.Arg.Eval(ctx)
	if err != nil || v.IsNull() {
		return sqltypes.NULL, err
	}
	b, err := sqltypes.ToBool(v)
	if err != nil {
		return sqltypes.NULL, err
	}
	return sqltypes.NewBool(!b), nil
}

func (n *Not) String() string {
	return "not " + n.Arg.String()
}

func (n *IsNull) Eval(ctx *evalctx.ExprContext) (sqltypes.Value, error) {
	v, err := n.Arg.Eval(ctx)
	if err != nil {
		return sqltypes.NULL, err
	}
	return sqltypes.NewBool(v.IsNull() != n.Negate), nil
}

func (n *IsNull) String() string {
	if n.Negate {
		return n.Arg.String() + " is not null"
	}
	return n.Arg.String() + " is null"
}

func (c *Cast) Eval(ctx *evalctx.ExprContext) (sqltypes.Value, error) {
	v, err := c.Arg.Eval(ctx)
	if err != nil {
		return sqltypes.NULL, err
	}
	return sqltypes.Cast(v, c.Type)
}

func (c *Cast) String() string {
	return "cast(" + c.Arg.String() + " as " + c.Type.String() + ")"
}

func (a *AggRef) Eval(ctx *evalctx.ExprContext) (sqltypes.Value, error) {
	if a.Index < 0 || a.Index >= len(ctx.AggValues) {
		return sqltypes.NULL, vterrors.VT13001(fmt.Sprintf("aggregate %d is not available", a.Index))
	}
	return ctx.AggValues[a.Index], nil
}

func (a *AggRef) String() string {
	return "agg." + strconv.Itoa(a.Index)
}

func joinExprs(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, sep)
}

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

/*
Package planfile reads plans written by hand, in YAML or JSON, for the
vtexec command and for tests. A file holds the plan tree, optional CTEs,
parameter values and inline tables for an in-memory store:

	tables:
	  - name: t
	    columns: [{name: id, type: int64}, {name: v, type: text}]
	    rows: [[1, a], [2, b]]
	    indexes: [{name: t_v, column: v}]
	params: [1]
	plan:
	  op: Limit
	  count: 10
	  input:
	    op: SeqScan
	    relation: t
	    qual: [{op: ">=", args: [{col: 0}, {param: 0}]}]

An expression is either a bare literal or an object with exactly one of
col, lit, null_lit, param, agg_ref, op, func or cast. A NULL literal is
written {null_lit: true}.
*/
package planfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/engine/opcode"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/storage"
	"vitess.io/vtexec/go/vt/vtexec/storage/memstore"
)

// File is the decoded form of a plan file.
type File struct {
	Tables    []Table `json:"tables,omitempty"`
	Params    []any   `json:"params,omitempty"`
	NumParams int     `json:"num_params,omitempty"`
	CTEs      []CTE   `json:"ctes,omitempty"`
	Plan      *Node   `json:"plan"`
}

// Table is an inline relation loaded into a memstore.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows,omitempty"`
	Indexes []Index  `json:"indexes,omitempty"`
}

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Index struct {
	Name   string `json:"name"`
	Column string `json:"column"`
}

type CTE struct {
	Name string `json:"name"`
	Plan *Node  `json:"plan"`
}

// Node is one plan node. Op is the node kind as printed by EXPLAIN; the
// other fields apply to the kinds that have them.
type Node struct {
	Op     string  `json:"op"`
	Target []*Expr `json:"target,omitempty"`
	Qual   []*Expr `json:"qual,omitempty"`
	Input  *Node   `json:"input,omitempty"`
	Inner  *Node   `json:"inner,omitempty"`
	Inputs []*Node `json:"inputs,omitempty"`
	Rows   float64 `json:"rows,omitempty"`
	Width  int     `json:"width,omitempty"`

	ConstantQual []*Expr     `json:"constant_qual,omitempty"`
	Relation     string      `json:"relation,omitempty"`
	Index        string      `json:"index,omitempty"`
	Keys         []ScanKey   `json:"keys,omitempty"`
	Backward     bool        `json:"backward,omitempty"`
	Func         string      `json:"func,omitempty"`
	Args         []*Expr     `json:"args,omitempty"`
	Values       [][]*Expr   `json:"values,omitempty"`
	CTE          string      `json:"cte,omitempty"`
	JoinType     string      `json:"join_type,omitempty"`
	JoinQual     []*Expr     `json:"join_qual,omitempty"`
	Params       []Param     `json:"params,omitempty"`
	MergeClauses []Clause    `json:"merge_clauses,omitempty"`
	HashClauses  []Clause    `json:"hash_clauses,omitempty"`
	SortKeys     []SortKey   `json:"sort_keys,omitempty"`
	Cols         []int       `json:"cols,omitempty"`
	Strategy     string      `json:"strategy,omitempty"`
	GroupCols    []int       `json:"group_cols,omitempty"`
	Aggregates   []Aggregate `json:"aggregates,omitempty"`
	NumGroups    int         `json:"num_groups,omitempty"`
	Cmd          string      `json:"cmd,omitempty"`
	FlagCol      int         `json:"flag_col,omitempty"`
	Offset       *Expr       `json:"offset,omitempty"`
	Count        *Expr       `json:"count,omitempty"`
}

type ScanKey struct {
	Col   int    `json:"col"`
	Op    string `json:"op"`
	Value *Expr  `json:"value"`
}

// Param binds an outer column of a NestLoop to a parameter slot.
type Param struct {
	ID       int `json:"param"`
	OuterCol int `json:"outer_col"`
}

// Clause is a merge or hash join equality. Desc and NullsFirst only
// apply to merge joins.
type Clause struct {
	Outer      *Expr `json:"outer"`
	Inner      *Expr `json:"inner"`
	Desc       bool  `json:"desc,omitempty"`
	NullsFirst bool  `json:"nulls_first,omitempty"`
}

type SortKey struct {
	Col        int  `json:"col"`
	Desc       bool `json:"desc,omitempty"`
	NullsFirst bool `json:"nulls_first,omitempty"`
}

// Aggregate is an aggregate call; Func is an opcode name such as
// "count_star" or "sum_distinct".
type Aggregate struct {
	Func string `json:"func"`
	Arg  *Expr  `json:"arg,omitempty"`
}

// Expr is an expression. See the package documentation.
type Expr struct {
	Col     *int    `json:"col,omitempty"`
	From    string  `json:"from,omitempty"`
	Name    string  `json:"name,omitempty"`
	Lit     any     `json:"lit,omitempty"`
	Type    string  `json:"type,omitempty"`
	NullLit bool    `json:"null_lit,omitempty"`
	Param   *int    `json:"param,omitempty"`
	AggRef  *int    `json:"agg_ref,omitempty"`
	Op      string  `json:"op,omitempty"`
	Func    string  `json:"func,omitempty"`
	Cast    string  `json:"cast,omitempty"`
	Args    []*Expr `json:"args,omitempty"`
}

// UnmarshalJSON accepts a bare literal in place of an expression object.
func (e *Expr) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '{' {
		type plain Expr
		return decodeJSON(data, (*plain)(e))
	}
	var v any
	if err := decodeJSON(data, &v); err != nil {
		return err
	}
	e.Lit = v
	return nil
}

func useNumber(d *json.Decoder) *json.Decoder {
	d.UseNumber()
	return d
}

func decodeJSON(data []byte, v any) error {
	d := json.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	return useNumber(d).Decode(v)
}

// Parse decodes a plan file. Unknown fields are an error.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f, useNumber); err != nil {
		return nil, vterrors.Wrap(vterrors.Errorf(vterrors.INVALID_ARGUMENT, "%v", err), "cannot parse plan file")
	}
	if f.Plan == nil {
		return nil, vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.BadPlan, "plan file has no plan")
	}
	return &f, nil
}

// Load reads and parses the plan file at path.
func Load(fs afero.Fs, path string) (*File, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, vterrors.Wrapf(err, "cannot read plan file %s", path)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, vterrors.Wrapf(err, "%s", path)
	}
	return f, nil
}

// Statement converts the file into a planned statement. NumParams is
// raised to cover every parameter the plan references.
func (f *File) Statement() (*plan.PlannedStmt, error) {
	b := &builder{numParams: max(f.NumParams, len(f.Params))}
	stmt := &plan.PlannedStmt{}
	for _, cte := range f.CTEs {
		n, err := b.node(cte.Plan, "cte "+cte.Name)
		if err != nil {
			return nil, err
		}
		stmt.CTEs = append(stmt.CTEs, plan.CTE{Name: cte.Name, Plan: n})
	}
	n, err := b.node(f.Plan, "plan")
	if err != nil {
		return nil, err
	}
	stmt.Plan = n
	stmt.NumParams = b.numParams
	return stmt, nil
}

// ParamValues returns the external parameter values.
func (f *File) ParamValues() ([]sqltypes.Value, error) {
	out := make([]sqltypes.Value, len(f.Params))
	for i, raw := range f.Params {
		v, err := toValue(raw, "")
		if err != nil {
			return nil, vterrors.Wrapf(err, "param %d", i)
		}
		out[i] = v
	}
	return out, nil
}

// Store loads the inline tables into a new in-memory store.
func (f *File) Store() (*memstore.Store, error) {
	s := memstore.New()
	for _, t := range f.Tables {
		cols := make([]storage.Column, len(t.Columns))
		for i, c := range t.Columns {
			kind, err := sqltypes.KindFromString(c.Type)
			if err != nil {
				return nil, vterrors.Wrapf(err, "table %s column %s", t.Name, c.Name)
			}
			cols[i] = storage.Column{Name: c.Name, Kind: kind}
		}
		if _, err := s.CreateTable(t.Name, cols); err != nil {
			return nil, err
		}
		for i, raw := range t.Rows {
			if len(raw) != len(cols) {
				return nil, vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.WrongNumberOfColumns,
					"table %s row %d has %d values, expected %d", t.Name, i, len(raw), len(cols))
			}
			row := make(sqltypes.Row, len(raw))
			for j, v := range raw {
				val, err := toValue(v, cols[j].Kind.String())
				if err != nil {
					return nil, vterrors.Wrapf(err, "table %s row %d", t.Name, i)
				}
				row[j] = val
			}
			if err := s.Insert(t.Name, row); err != nil {
				return nil, err
			}
		}
		for _, idx := range t.Indexes {
			col := columnIndex(cols, idx.Column)
			if col < 0 {
				return nil, vterrors.Errorf(vterrors.INVALID_ARGUMENT, "index %s: table %s has no column %s", idx.Name, t.Name, idx.Column)
			}
			if _, err := s.CreateIndex(idx.Name, t.Name, col); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func columnIndex(cols []storage.Column, name string) int {
	for i, c := range cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// toValue converts a decoded literal, casting it to kind when given.
func toValue(raw any, kind string) (sqltypes.Value, error) {
	var v sqltypes.Value
	switch raw := raw.(type) {
	case nil:
		return sqltypes.NULL, nil
	case bool:
		v = sqltypes.NewBool(raw)
	case string:
		v = sqltypes.NewText(raw)
	case json.Number:
		if i, err := raw.Int64(); err == nil {
			v = sqltypes.NewInt64(i)
		} else {
			d, err := sqltypes.NewDecimalFromString(raw.String())
			if err != nil {
				return sqltypes.NULL, err
			}
			v = d
		}
	default:
		return sqltypes.NULL, vterrors.Errorf(vterrors.INVALID_ARGUMENT, "unsupported literal %v", raw)
	}
	if kind == "" {
		return v, nil
	}
	k, err := sqltypes.KindFromString(kind)
	if err != nil {
		return sqltypes.NULL, err
	}
	return sqltypes.Cast(v, k)
}

type builder struct {
	numParams int
}

func badPlan(path, format string, args ...any) error {
	return vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.BadPlan, "%s: %s", path, fmt.Sprintf(format, args...))
}

func (b *builder) useParam(id int) {
	b.numParams = max(b.numParams, id+1)
}

func (b *builder) node(n *Node, path string) (plan.Node, error) {
	if n == nil {
		return nil, nil
	}
	kind, ok := plan.KindFromString(n.Op)
	if !ok {
		return nil, badPlan(path, "unknown node %q", n.Op)
	}
	path += "." + n.Op

	var base plan.Base
	var err error
	if base.TargetList, err = b.exprs(n.Target, path+".target"); err != nil {
		return nil, err
	}
	if base.Qual, err = b.exprs(n.Qual, path+".qual"); err != nil {
		return nil, err
	}
	if base.Left, err = b.node(n.Input, path); err != nil {
		return nil, err
	}
	if base.Right, err = b.node(n.Inner, path); err != nil {
		return nil, err
	}
	base.Rows = n.Rows
	base.Width = n.Width

	switch kind {
	case plan.KindResult:
		cq, err := b.exprs(n.ConstantQual, path+".constant_qual")
		if err != nil {
			return nil, err
		}
		return &plan.Result{Base: base, ConstantQual: cq}, nil
	case plan.KindAppend:
		out := &plan.Append{Base: base}
		for _, in := range n.Inputs {
			c, err := b.node(in, path)
			if err != nil {
				return nil, err
			}
			out.Plans = append(out.Plans, c)
		}
		return out, nil
	case plan.KindSeqScan:
		keys, err := b.scanKeys(n.Keys, path)
		if err != nil {
			return nil, err
		}
		return &plan.SeqScan{Base: base, Relation: n.Relation, Keys: keys}, nil
	case plan.KindIndexScan:
		keys, err := b.scanKeys(n.Keys, path)
		if err != nil {
			return nil, err
		}
		return &plan.IndexScan{Base: base, Index: n.Index, Keys: keys, Backward: n.Backward}, nil
	case plan.KindFunctionScan:
		args, err := b.exprs(n.Args, path+".args")
		if err != nil {
			return nil, err
		}
		return &plan.FunctionScan{Base: base, Func: n.Func, Args: args}, nil
	case plan.KindSubqueryScan:
		return &plan.SubqueryScan{Base: base}, nil
	case plan.KindValuesScan:
		out := &plan.ValuesScan{Base: base}
		for i, row := range n.Values {
			exprs, err := b.exprs(row, fmt.Sprintf("%s.values[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out.Rows = append(out.Rows, exprs)
		}
		if out.Base.Rows == 0 {
			out.Base.Rows = float64(len(out.Rows))
		}
		return out, nil
	case plan.KindCteScan:
		return &plan.CteScan{Base: base, CTE: n.CTE}, nil
	case plan.KindNestLoop, plan.KindMergeJoin, plan.KindHashJoin:
		return b.join(kind, base, n, path)
	case plan.KindHash:
		return &plan.Hash{Base: base}, nil
	case plan.KindMaterial:
		return &plan.Material{Base: base}, nil
	case plan.KindSort:
		out := &plan.Sort{Base: base}
		for _, k := range n.SortKeys {
			out.Keys = append(out.Keys, plan.SortKey{Col: k.Col, Desc: k.Desc, NullsFirst: k.NullsFirst})
		}
		return out, nil
	case plan.KindGroup:
		return &plan.Group{Base: base, Cols: n.Cols}, nil
	case plan.KindAgg:
		return b.agg(base, n, path)
	case plan.KindUnique:
		return &plan.Unique{Base: base, Cols: n.Cols}, nil
	case plan.KindSetOp:
		cmd, err := opcode.ParseSetOpCmd(n.Cmd)
		if err != nil {
			return nil, badPlan(path, "%v", err)
		}
		return &plan.SetOp{Base: base, Cmd: cmd, Cols: n.Cols, FlagCol: n.FlagCol}, nil
	case plan.KindLimit:
		out := &plan.Limit{Base: base}
		if out.Offset, err = b.expr(n.Offset, path+".offset"); err != nil {
			return nil, err
		}
		if out.Count, err = b.expr(n.Count, path+".count"); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, badPlan(path, "unsupported node")
}

func (b *builder) join(kind plan.Kind, base plan.Base, n *Node, path string) (plan.Node, error) {
	jt := opcode.InnerJoin
	if n.JoinType != "" {
		var err error
		if jt, err = opcode.ParseJoinType(n.JoinType); err != nil {
			return nil, badPlan(path, "%v", err)
		}
	}
	jq, err := b.exprs(n.JoinQual, path+".join_qual")
	if err != nil {
		return nil, err
	}
	switch kind {
	case plan.KindNestLoop:
		out := &plan.NestLoop{Base: base, JoinType: jt, JoinQual: jq}
		for _, p := range n.Params {
			b.useParam(p.ID)
			out.Params = append(out.Params, plan.NestLoopParam{ParamID: p.ID, OuterCol: p.OuterCol})
		}
		return out, nil
	case plan.KindMergeJoin:
		out := &plan.MergeJoin{Base: base, JoinType: jt, JoinQual: jq}
		for i, c := range n.MergeClauses {
			outer, inner, err := b.clause(c, fmt.Sprintf("%s.merge_clauses[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out.Clauses = append(out.Clauses, plan.MergeClause{OuterKey: outer, InnerKey: inner, Desc: c.Desc, NullsFirst: c.NullsFirst})
		}
		return out, nil
	default:
		out := &plan.HashJoin{Base: base, JoinType: jt, JoinQual: jq}
		for i, c := range n.HashClauses {
			outer, inner, err := b.clause(c, fmt.Sprintf("%s.hash_clauses[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out.Clauses = append(out.Clauses, plan.HashClause{OuterKey: outer, InnerKey: inner})
		}
		return out, nil
	}
}

func (b *builder) clause(c Clause, path string) (evalengine.Expr, evalengine.Expr, error) {
	if c.Outer == nil || c.Inner == nil {
		return nil, nil, badPlan(path, "join clause needs both outer and inner keys")
	}
	outer, err := b.expr(c.Outer, path+".outer")
	if err != nil {
		return nil, nil, err
	}
	inner, err := b.expr(c.Inner, path+".inner")
	if err != nil {
		return nil, nil, err
	}
	return outer, inner, nil
}

func (b *builder) agg(base plan.Base, n *Node, path string) (plan.Node, error) {
	strategy := opcode.AggPlain
	if n.Strategy != "" {
		var err error
		if strategy, err = opcode.ParseAggStrategy(n.Strategy); err != nil {
			return nil, badPlan(path, "%v", err)
		}
	}
	out := &plan.Agg{Base: base, Strategy: strategy, GroupCols: n.GroupCols, NumGroups: n.NumGroups}
	for i, a := range n.Aggregates {
		code, ok := opcode.SupportedAggregates[a.Func]
		if !ok {
			return nil, vterrors.NewErrorf(vterrors.NOT_FOUND, vterrors.NoSuchFunction, "%s: aggregate %s does not exist", path, a.Func)
		}
		arg, err := b.expr(a.Arg, fmt.Sprintf("%s.aggregates[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out.Aggregates = append(out.Aggregates, &evalengine.Aggregate{Opcode: code, Arg: arg})
	}
	return out, nil
}

func (b *builder) scanKeys(keys []ScanKey, path string) ([]plan.ScanKey, error) {
	var out []plan.ScanKey
	for i, k := range keys {
		op, ok := storage.KeyOpFromString(k.Op)
		if !ok {
			return nil, badPlan(path, "unknown scan key operator %q", k.Op)
		}
		if k.Value == nil {
			return nil, badPlan(path, "scan key %d has no value", i)
		}
		v, err := b.expr(k.Value, fmt.Sprintf("%s.keys[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, plan.ScanKey{Col: k.Col, Op: op, Value: v})
	}
	return out, nil
}

func (b *builder) exprs(in []*Expr, path string) ([]evalengine.Expr, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]evalengine.Expr, len(in))
	for i, e := range in {
		if e == nil {
			return nil, badPlan(path, "missing expression %d", i)
		}
		var err error
		if out[i], err = b.expr(e, path); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// expr converts e. A nil e stays nil.
func (b *builder) expr(e *Expr, path string) (evalengine.Expr, error) {
	if e == nil {
		return nil, nil
	}
	switch {
	case e.Col != nil:
		src := evalengine.ScanRow
		switch e.From {
		case "", "scan":
		case "outer":
			src = evalengine.OuterRow
		case "inner":
			src = evalengine.InnerRow
		default:
			return nil, badPlan(path, "unknown row %q", e.From)
		}
		return &evalengine.Column{Source: src, Index: *e.Col, Name: e.Name}, nil
	case e.NullLit:
		return &evalengine.Literal{}, nil
	case e.Lit != nil:
		v, err := toValue(e.Lit, e.Type)
		if err != nil {
			return nil, vterrors.Wrapf(err, "%s", path)
		}
		return &evalengine.Literal{Val: v}, nil
	case e.Param != nil:
		b.useParam(*e.Param)
		return &evalengine.Param{ID: *e.Param}, nil
	case e.AggRef != nil:
		return &evalengine.AggRef{Index: *e.AggRef}, nil
	case e.Cast != "":
		kind, err := sqltypes.KindFromString(e.Cast)
		if err != nil {
			return nil, err
		}
		args, err := b.nargs(e, 1, path)
		if err != nil {
			return nil, err
		}
		return &evalengine.Cast{Arg: args[0], Type: kind}, nil
	case e.Func != "":
		args, err := b.exprs(e.Args, path)
		if err != nil {
			return nil, err
		}
		if err := evalengine.CheckFunc(e.Func, len(args)); err != nil {
			return nil, err
		}
		return &evalengine.Func{Name: e.Func, Args: args}, nil
	case e.Op != "":
		return b.operator(e, path)
	}
	return nil, badPlan(path, "empty expression")
}

func (b *builder) nargs(e *Expr, n int, path string) ([]evalengine.Expr, error) {
	if len(e.Args) != n {
		return nil, badPlan(path, "%s%s takes %d arguments, got %d", e.Op, e.Cast, n, len(e.Args))
	}
	return b.exprs(e.Args, path)
}

func (b *builder) operator(e *Expr, path string) (evalengine.Expr, error) {
	op := strings.ToLower(e.Op)
	switch op {
	case "and", "or":
		args, err := b.exprs(e.Args, path)
		if err != nil {
			return nil, err
		}
		if op == "and" {
			return evalengine.NewAnd(args...), nil
		}
		return evalengine.NewOr(args...), nil
	case "not":
		args, err := b.nargs(e, 1, path)
		if err != nil {
			return nil, err
		}
		return &evalengine.Not{Arg: args[0]}, nil
	case "is_null", "is_not_null":
		args, err := b.nargs(e, 1, path)
		if err != nil {
			return nil, err
		}
		return &evalengine.IsNull{Arg: args[0], Negate: op == "is_not_null"}, nil
	}
	args, err := b.nargs(e, 2, path)
	if err != nil {
		return nil, err
	}
	if cmp, ok := evalengine.CompareOpFromString(op); ok {
		return evalengine.NewComparison(cmp, args[0], args[1]), nil
	}
	if arith, ok := evalengine.ArithmeticOpFromString(op); ok {
		return &evalengine.Arithmetic{Op: arith, Left: args[0], Right: args[1]}, nil
	}
	return nil, badPlan(path, "unknown operator %q", e.Op)
}

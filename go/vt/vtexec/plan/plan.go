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

// Package plan holds the immutable descriptors produced by a planner and
// consumed by the engine. A descriptor may be shared by several operator
// states; nothing in the engine modifies it.
package plan

import (
	"vitess.io/vtexec/go/vt/vtexec/engine/opcode"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

// Kind tags the variant of a plan node.
type Kind int8

const (
	KindResult Kind = iota
	KindAppend
	KindSeqScan
	KindIndexScan
	KindFunctionScan
	KindSubqueryScan
	KindValuesScan
	KindCteScan
	KindNestLoop
	KindMergeJoin
	KindHashJoin
	KindHash
	KindMaterial
	KindSort
	KindGroup
	KindAgg
	KindUnique
	KindSetOp
	KindLimit
)

var kindNames = [...]string{
	KindResult:       "Result",
	KindAppend:       "Append",
	KindSeqScan:      "SeqScan",
	KindIndexScan:    "IndexScan",
	KindFunctionScan: "FunctionScan",
	KindSubqueryScan: "SubqueryScan",
	KindValuesScan:   "ValuesScan",
	KindCteScan:      "CteScan",
	KindNestLoop:     "NestLoop",
	KindMergeJoin:    "MergeJoin",
	KindHashJoin:     "HashJoin",
	KindHash:         "Hash",
	KindMaterial:     "Material",
	KindSort:         "Sort",
	KindGroup:        "Group",
	KindAgg:          "Agg",
	KindUnique:       "Unique",
	KindSetOp:        "SetOp",
	KindLimit:        "Limit",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// KindFromString is the inverse of Kind.String.
func KindFromString(s string) (Kind, bool) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), true
		}
	}
	return 0, false
}

// Node is a plan descriptor.
type Node interface {
	Kind() Kind
	// Common returns the fields every node has.
	Common() *Base
}

// Base is embedded by every node.
type Base struct {
	// TargetList computes the output row. A nil list passes the input row
	// through unchanged.
	TargetList []evalengine.Expr
	// Qual filters rows before projection. The conditions are AND-ed.
	Qual []evalengine.Expr
	// Left is the outer or only child; Right is the inner child of a join.
	Left, Right Node
	// Rows is the planner's estimate of the number of output rows.
	Rows float64
	// Width is the planner's estimate of the average output row size in
	// bytes.
	Width int
}

func (b *Base) Common() *Base { return b }

// ScanKey restricts a scan. Value may reference parameters and is
// evaluated every time the scan is (re)started.
type ScanKey struct {
	Col   int
	Op    storage.KeyOp
	Value evalengine.Expr
}

type (
	// Result evaluates its target list once when it has no child, or
	// projects each child row. ConstantQual is checked once per scan; when
	// false the node returns no rows.
	Result struct {
		Base
		ConstantQual []evalengine.Expr
	}

	// Append returns the rows of each child in turn.
	Append struct {
		Base
		Plans []Node
	}

	// SeqScan reads a relation in physical order.
	SeqScan struct {
		Base
		Relation string
		Keys     []ScanKey
	}

	// IndexScan reads a relation through an ordered index.
	IndexScan struct {
		Base
		Index    string
		Keys     []ScanKey
		Backward bool
	}

	// FunctionScan returns the rows of a set-returning function.
	FunctionScan struct {
		Base
		Func string
		Args []evalengine.Expr
	}

	// SubqueryScan returns the rows of its child, as a scan.
	SubqueryScan struct {
		Base
	}

	// ValuesScan returns a list of constant rows.
	ValuesScan struct {
		Base
		Rows [][]evalengine.Expr
	}

	// CteScan reads a common table expression. Every CteScan of the same
	// CTE shares one tuplestore filled on demand.
	CteScan struct {
		Base
		CTE string
	}

	// NestLoop joins each outer row with the rows of a rescan of the inner
	// child.
	NestLoop struct {
		Base
		JoinType opcode.JoinType
		JoinQual []evalengine.Expr
		Params   []NestLoopParam
	}

	// MergeJoin joins two inputs sorted on the merge clauses.
	MergeJoin struct {
		Base
		JoinType opcode.JoinType
		JoinQual []evalengine.Expr
		Clauses  []MergeClause
	}

	// HashJoin builds a hash table from the inner child, which must be a
	// Hash node, and looks up each outer row in it.
	HashJoin struct {
		Base
		JoinType opcode.JoinType
		JoinQual []evalengine.Expr
		Clauses  []HashClause
	}

	// Hash is the build side of a HashJoin.
	Hash struct {
		Base
	}

	// Material spools its child into a tuplestore.
	Material struct {
		Base
	}

	// Sort orders its child.
	Sort struct {
		Base
		Keys []SortKey
	}

	// Group returns one row per group of a sorted input.
	Group struct {
		Base
		Cols []int
	}

	// Agg computes aggregates per group. With a nil TargetList the output
	// row is the group columns followed by the aggregate values.
	Agg struct {
		Base
		Strategy   opcode.AggStrategy
		GroupCols  []int
		Aggregates []*evalengine.Aggregate
		// NumGroups is the planner's estimate for hashed aggregation.
		NumGroups int
	}

	// Unique removes adjacent duplicates of a sorted input.
	Unique struct {
		Base
		Cols []int
	}

	// SetOp implements INTERSECT and EXCEPT over a sorted input whose
	// FlagCol tells which side each row came from (0 left, 1 right). The
	// flag column is not part of the output.
	SetOp struct {
		Base
		Cmd     opcode.SetOpCmd
		Cols    []int
		FlagCol int
	}

	// Limit skips Offset rows and returns at most Count rows. Nil
	// expressions mean no offset and no limit.
	Limit struct {
		Base
		Offset evalengine.Expr
		Count  evalengine.Expr
	}
)

// NestLoopParam passes a column of the current outer row to the inner
// side as an executor parameter.
type NestLoopParam struct {
	ParamID  int
	OuterCol int
}

// MergeClause is one equality of a merge join. Both inputs are sorted on
// their key in the given order.
type MergeClause struct {
	OuterKey   evalengine.Expr
	InnerKey   evalengine.Expr
	Desc       bool
	NullsFirst bool
}

// HashClause is one equality of a hash join.
type HashClause struct {
	OuterKey evalengine.Expr
	InnerKey evalengine.Expr
}

// SortKey is one column of a sort.
type SortKey struct {
	Col        int
	Desc       bool
	NullsFirst bool
}

func (*Result) Kind() Kind       { return KindResult }
func (*Append) Kind() Kind       { return KindAppend }
func (*SeqScan) Kind() Kind      { return KindSeqScan }
func (*IndexScan) Kind() Kind    { return KindIndexScan }
func (*FunctionScan) Kind() Kind { return KindFunctionScan }
func (*SubqueryScan) Kind() Kind { return KindSubqueryScan }
func (*ValuesScan) Kind() Kind   { return KindValuesScan }
func (*CteScan) Kind() Kind      { return KindCteScan }
func (*NestLoop) Kind() Kind     { return KindNestLoop }
func (*MergeJoin) Kind() Kind    { return KindMergeJoin }
func (*HashJoin) Kind() Kind     { return KindHashJoin }
func (*Hash) Kind() Kind         { return KindHash }
func (*Material) Kind() Kind     { return KindMaterial }
func (*Sort) Kind() Kind         { return KindSort }
func (*Group) Kind() Kind        { return KindGroup }
func (*Agg) Kind() Kind          { return KindAgg }
func (*Unique) Kind() Kind       { return KindUnique }
func (*SetOp) Kind() Kind        { return KindSetOp }
func (*Limit) Kind() Kind        { return KindLimit }

// Children returns the child descriptors of n in execution order.
func Children(n Node) []Node {
	if a, ok := n.(*Append); ok {
		return a.Plans
	}
	b := n.Common()
	var out []Node
	if b.Left != nil {
		out = append(out, b.Left)
	}
	if b.Right != nil {
		out = append(out, b.Right)
	}
	return out
}

// Walk visits n and its descendants, parents first.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// CTE is a named subplan referenced by CteScan nodes.
type CTE struct {
	Name string
	Plan Node
}

// PlannedStmt is the unit handed to the executor.
type PlannedStmt struct {
	Plan Node
	CTEs []CTE
	// NumParams is the number of parameter slots, external and internal.
	NumParams int
}

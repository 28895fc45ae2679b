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

package engine

import (
	"context"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/prometheus/client_golang/prometheus"

	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/evalctx"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

// EFlags tell an operator what its parent will ask of it beyond forward
// reads. They are fixed when the operator is initialized.
type EFlags uint8

const (
	// EFlagRewind means the parent may rescan with unchanged parameters
	// and expects that to be cheap.
	EFlagRewind EFlags = 1 << iota
	// EFlagBackward means rows may be fetched in the backward direction.
	EFlagBackward
	// EFlagMark means the parent calls MarkPos and RestorePos.
	EFlagMark
)

func (f EFlags) has(flag EFlags) bool { return f&flag != 0 }

// PlanState is the runtime state of one plan node. A tree of PlanStates
// is built by Init and torn down by End.
type PlanState interface {
	// Plan returns the descriptor this state executes.
	Plan() plan.Node
	// Arity is the number of columns of the rows returned by Next.
	Arity() int
	// Inputs returns the child states in execution order.
	Inputs() []PlanState

	// Next returns the next row in the direction of the execution state,
	// or nil at the end of data. The returned slot is owned by the
	// operator and only valid until the next call.
	Next(ctx context.Context) (*slot.Slot, error)
	// ReScan restarts the operator. Cached work is kept unless a parameter
	// it was computed from changed.
	ReScan() error
	// End releases everything the operator and its inputs hold. It is safe
	// to call more than once.
	End() error

	// Instrumentation returns the counters of this state.
	Instrumentation() Instrumentation

	base() *baseState
}

// operator is the contract between baseState and the concrete states.
type operator interface {
	PlanState
	// exec produces the next row, or nil at the end of data.
	exec(ctx context.Context) (*slot.Slot, error)
	// rescan resets the operator-specific state.
	rescan() error
	// shutdown releases the operator-specific resources.
	shutdown() error
}

// marker is implemented by the states that support MarkPos and RestorePos.
type marker interface {
	markPos() error
	restrPos() error
}

// Instrumentation counts the activity of one operator state.
type Instrumentation struct {
	// Calls is the number of Next calls.
	Calls uint64
	// Rows is the number of rows returned.
	Rows uint64
	// Loops is the number of scans, the first one included.
	Loops uint64
}

// baseState holds the fields shared by every operator. It is embedded by
// value in each concrete state.
type baseState struct {
	self   operator
	node   plan.Node
	estate *ExecutionState
	eflags EFlags

	exprCtx *evalctx.ExprContext
	// result is the projection slot, nil for operators that return an
	// input slot unchanged.
	result *slot.Slot
	arity  int

	left, right PlanState

	// chgParam holds the parameters changed since the last scan; allParam
	// the ones this node or a descendant depends on.
	chgParam *bitset.BitSet
	allParam *bitset.BitSet

	// eofDir is the direction in which Next last returned end of data.
	eofDir  storage.Direction
	ended   bool
	// scanned is set once Next runs after the last (re)scan. A rescan of
	// a state nobody read from does not start a new loop.
	scanned bool

	instr   Instrumentation
	rowsOut prometheus.Counter
}

// setup finishes the initialization of a state whose inputs have been
// initialized. arity is the width of the rows the operator produces
// before projection.
func (b *baseState) setup(self operator, node plan.Node, estate *ExecutionState, eflags EFlags, arity int) {
	b.self = self
	b.node = node
	b.estate = estate
	b.eflags = eflags
	b.exprCtx = evalctx.New(estate.Params)
	b.chgParam = &bitset.BitSet{}
	b.allParam = &bitset.BitSet{}
	evalengine.Params(b.allParam, nodeExprs(node)...)
	for _, in := range self.Inputs() {
		b.allParam.InPlaceUnion(in.base().allParam)
	}
	b.arity = arity
	if tl := node.Common().TargetList; tl != nil {
		b.arity = len(tl)
		b.result = estate.newSlot(b.arity)
	}
	b.instr.Loops = 1
	b.rowsOut = estate.metrics.operatorRows(node.Kind())
	estate.states = append(estate.states, self)
}

// Plan satisfies the PlanState interface.
func (b *baseState) Plan() plan.Node { return b.node }

// Arity satisfies the PlanState interface.
func (b *baseState) Arity() int { return b.arity }

// Inputs satisfies the PlanState interface.
func (b *baseState) Inputs() []PlanState {
	var out []PlanState
	if b.left != nil {
		out = append(out, b.left)
	}
	if b.right != nil {
		out = append(out, b.right)
	}
	return out
}

// Instrumentation satisfies the PlanState interface.
func (b *baseState) Instrumentation() Instrumentation { return b.instr }

func (b *baseState) base() *baseState { return b }

// Next satisfies the PlanState interface.
func (b *baseState) Next(ctx context.Context) (*slot.Slot, error) {
	if b.ended {
		return nil, vterrors.VT13001(fmt.Sprintf("%s: Next called after End", b.node.Kind()))
	}
	if b.chgParam.Any() {
		if err := b.ReScan(); err != nil {
			return nil, err
		}
	}
	b.instr.Calls++
	b.scanned = true
	dir := b.estate.Direction
	if dir == storage.NoMovement || b.eofDir == dir {
		return nil, nil
	}
	s, err := b.self.exec(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		b.eofDir = dir
		return nil, nil
	}
	b.eofDir = storage.NoMovement
	b.instr.Rows++
	if b.rowsOut != nil {
		b.rowsOut.Inc()
	}
	return s, nil
}

// ReScan satisfies the PlanState interface.
func (b *baseState) ReScan() error {
	if b.ended {
		return vterrors.VT13001(fmt.Sprintf("%s: ReScan called after End", b.node.Kind()))
	}
	if b.chgParam.Any() {
		for _, in := range b.self.Inputs() {
			in.base().updateChangedParams(b.chgParam)
		}
	}
	if b.result != nil {
		b.result.Clear()
	}
	if err := b.self.rescan(); err != nil {
		return err
	}
	b.chgParam.ClearAll()
	b.eofDir = storage.NoMovement
	if b.scanned {
		b.instr.Loops++
		b.scanned = false
	}
	return nil
}

// End satisfies the PlanState interface.
func (b *baseState) End() error {
	if b.ended {
		return nil
	}
	b.ended = true
	err := b.self.shutdown()
	if b.result != nil {
		b.result.Clear()
	}
	b.exprCtx.Shutdown()
	for _, in := range b.self.Inputs() {
		if cerr := in.End(); err == nil {
			err = cerr
		}
	}
	return err
}

// updateChangedParams adds the changed parameters this node depends on to
// its own changed set.
func (b *baseState) updateChangedParams(changed *bitset.BitSet) {
	b.chgParam.InPlaceUnion(changed.Intersection(b.allParam))
}

// paramsChanged returns true if any of the parameters referenced by exprs
// changed since the last scan.
func (b *baseState) paramsChanged(exprs ...evalengine.Expr) bool {
	if b.chgParam.None() {
		return false
	}
	var set bitset.BitSet
	evalengine.Params(&set, exprs...)
	return b.chgParam.IntersectionCardinality(&set) > 0
}

// rescanInput rescans an input now, unless it has changed parameters of
// its own, in which case it rescans itself on its next Next.
func rescanInput(in PlanState) error {
	if in.base().chgParam.Any() {
		return nil
	}
	return in.ReScan()
}

// qual evaluates the node qual against the rows bound in the context.
func (b *baseState) qual() (bool, error) {
	return evalengine.ExecQual(b.node.Common().Qual, b.exprCtx)
}

// project evaluates the target list against the bound rows, or returns
// input unchanged when the node has none.
func (b *baseState) project(input *slot.Slot) (*slot.Slot, error) {
	tl := b.node.Common().TargetList
	if tl == nil {
		return input, nil
	}
	row, err := evalengine.ExecProject(tl, b.exprCtx)
	if err != nil {
		return nil, err
	}
	b.result.StoreBorrowed(row, nil)
	return b.result, nil
}

// MarkPos remembers the row last returned by ps.
func MarkPos(ps PlanState) error {
	m, ok := ps.(marker)
	if !ok {
		return vterrors.VT13001(fmt.Sprintf("%s does not support mark", ps.Plan().Kind()))
	}
	return m.markPos()
}

// RestorePos makes the next Next of ps return the row marked by MarkPos.
func RestorePos(ps PlanState) error {
	m, ok := ps.(marker)
	if !ok {
		return vterrors.VT13001(fmt.Sprintf("%s does not support restore", ps.Plan().Kind()))
	}
	if err := m.restrPos(); err != nil {
		return err
	}
	ps.base().eofDir = storage.NoMovement
	return nil
}

// SupportsBackward returns true if the operator for n can return rows in
// the backward direction.
func SupportsBackward(n plan.Node) bool {
	switch n := n.(type) {
	case *plan.Result:
		return n.Left == nil || SupportsBackward(n.Left)
	case *plan.Append:
		for _, p := range n.Plans {
			if !SupportsBackward(p) {
				return false
			}
		}
		return true
	case *plan.SeqScan, *plan.IndexScan, *plan.FunctionScan, *plan.ValuesScan, *plan.CteScan,
		*plan.Material, *plan.Sort:
		return true
	case *plan.SubqueryScan:
		return SupportsBackward(n.Left)
	case *plan.Limit:
		return SupportsBackward(n.Left)
	case *plan.Unique:
		return SupportsBackward(n.Left)
	}
	return false
}

// SupportsMark returns true if the operator for n implements MarkPos and
// RestorePos.
func SupportsMark(n plan.Node) bool {
	switch n.(type) {
	case *plan.SeqScan, *plan.IndexScan, *plan.FunctionScan, *plan.ValuesScan, *plan.CteScan,
		*plan.Material, *plan.Sort:
		return true
	}
	return false
}

// nodeExprs returns every expression of n that is evaluated by n itself.
func nodeExprs(n plan.Node) []evalengine.Expr {
	b := n.Common()
	out := append(append([]evalengine.Expr{}, b.TargetList...), b.Qual...)
	switch n := n.(type) {
	case *plan.Result:
		out = append(out, n.ConstantQual...)
	case *plan.SeqScan:
		for _, k := range n.Keys {
			out = append(out, k.Value)
		}
	case *plan.IndexScan:
		for _, k := range n.Keys {
			out = append(out, k.Value)
		}
	case *plan.FunctionScan:
		out = append(out, n.Args...)
	case *plan.ValuesScan:
		for _, row := range n.Rows {
			out = append(out, row...)
		}
	case *plan.NestLoop:
		out = append(out, n.JoinQual...)
	case *plan.MergeJoin:
		out = append(out, n.JoinQual...)
		for _, c := range n.Clauses {
			out = append(out, c.OuterKey, c.InnerKey)
		}
	case *plan.HashJoin:
		out = append(out, n.JoinQual...)
		for _, c := range n.Clauses {
			out = append(out, c.OuterKey, c.InnerKey)
		}
	case *plan.Agg:
		for _, a := range n.Aggregates {
			if a.Arg != nil {
				out = append(out, a.Arg)
			}
		}
	case *plan.Limit:
		if n.Offset != nil {
			out = append(out, n.Offset)
		}
		if n.Count != nil {
			out = append(out, n.Count)
		}
	}
	return out
}

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
	"vitess.io/vtexec/go/vt/vtexec/engine/opcode"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/slot"
)

// joinState is embedded by the three join operators. It holds the parts
// that do not depend on the join method: the join type, the join qual,
// the null rows used for outer joins and the construction of output rows.
type joinState struct {
	baseState
	joinType opcode.JoinType
	joinQual []evalengine.Expr

	// nullOuter and nullInner stand in for the missing side of an unmatched
	// row in an outer join.
	nullOuter *slot.Slot
	nullInner *slot.Slot

	// joined holds the concatenated row when the node has no target list.
	joined *slot.Slot
}

func (j *joinState) initJoin(jt opcode.JoinType, joinQual []evalengine.Expr, outer, inner PlanState, estate *ExecutionState) {
	j.joinType = jt
	j.joinQual = joinQual
	j.left = outer
	j.right = inner
	if jt.FillsOuter() || jt == opcode.AntiJoin {
		j.nullInner = estate.nullSlot(inner.Arity())
	}
	if jt.FillsInner() {
		j.nullOuter = estate.nullSlot(outer.Arity())
	}
	j.joined = estate.newSlot(j.joinArity())
}

// joinArity is the width of an output row before projection: the outer
// columns followed by the inner ones, or only the outer columns for semi
// and anti joins.
func (j *joinState) joinArity() int {
	if j.joinType == opcode.SemiJoin || j.joinType == opcode.AntiJoin {
		return j.left.Arity()
	}
	return j.left.Arity() + j.right.Arity()
}

func (j *joinState) fillOuter() bool {
	return j.joinType.FillsOuter() || j.joinType == opcode.AntiJoin
}

func (j *joinState) fillInner() bool {
	return j.joinType.FillsInner()
}

// emit checks the node qual against the pair and returns the output row,
// or nil if the qual rejects it. The caller has already bound the pair
// when it evaluated the join qual; it is bound again here because the
// null-extended paths come straight to emit.
func (j *joinState) emit(outer, inner *slot.Slot) (*slot.Slot, error) {
	j.exprCtx.Bind(outer, inner, nil)
	ok, err := j.qual()
	if err != nil || !ok {
		return nil, err
	}
	if j.node.Common().TargetList != nil {
		return j.project(nil)
	}
	row := j.exprCtx.Alloc(j.joinArity())
	n := copy(row, outer.Row())
	if j.joinType != opcode.SemiJoin && j.joinType != opcode.AntiJoin {
		copy(row[n:], inner.Row())
	}
	j.joined.StoreBorrowed(row, nil)
	return j.joined, nil
}

// emitNullInner returns outer extended with NULLs for the inner side.
func (j *joinState) emitNullInner(outer *slot.Slot) (*slot.Slot, error) {
	j.exprCtx.ResetArena()
	return j.emit(outer, j.nullInner)
}

// emitNullOuter returns inner extended with NULLs for the outer side.
func (j *joinState) emitNullOuter(inner *slot.Slot) (*slot.Slot, error) {
	j.exprCtx.ResetArena()
	return j.emit(j.nullOuter, inner)
}

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

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/engine/opcode"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
)

var _ PlanState = (*AggregateState)(nil)

// aggGroup is the running state of one group.
type aggGroup struct {
	// first is an owned copy of the first input row of the group. Target
	// list and qual see it as the scan row.
	first  sqltypes.Row
	states []*evalengine.AggState
}

// AggregateState computes aggregates over the whole input, over groups
// of a sorted input, or over groups kept in a hash table.
type AggregateState struct {
	baseState
	strategy opcode.AggStrategy
	aggs     []*evalengine.Aggregate

	// next holds the row that starts the following group of a sorted
	// input.
	next *slot.Slot
	done bool

	// hashed
	groups  map[sqltypes.HashCode][]*aggGroup
	order   []*aggGroup
	filled  bool
	iterPos int

	rep     *slot.Slot
	nullRow *slot.Slot
	aggVals sqltypes.Row
	outSlot *slot.Slot
}

func initAgg(ctx context.Context, n *plan.Agg, estate *ExecutionState, eflags EFlags) (*AggregateState, error) {
	child, err := initInput(ctx, n, n.Left, estate, eflags&^(EFlagBackward|EFlagMark))
	if err != nil {
		return nil, err
	}
	if err := checkCols(n.Kind(), n.GroupCols, child.Arity()); err != nil {
		return nil, err
	}
	for _, a := range n.Aggregates {
		if err := evalengine.CheckAggregate(a); err != nil {
			return nil, err
		}
	}
	switch n.Strategy {
	case opcode.AggPlain:
		if len(n.GroupCols) > 0 {
			return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "plain aggregation with grouping columns")
		}
	case opcode.AggSorted, opcode.AggHashed:
	default:
		return nil, vterrors.VT12001("aggregation strategy " + n.Strategy.String())
	}

	s := &AggregateState{strategy: n.Strategy, aggs: n.Aggregates}
	s.left = child
	s.setup(s, n, estate, eflags, len(n.GroupCols)+len(n.Aggregates))
	s.next = estate.newSlot(child.Arity())
	s.rep = estate.newSlot(child.Arity())
	s.nullRow = estate.nullSlot(child.Arity())
	s.aggVals = make(sqltypes.Row, len(n.Aggregates))
	s.outSlot = estate.newSlot(len(n.GroupCols) + len(n.Aggregates))
	return s, nil
}

func (s *AggregateState) newGroup(first sqltypes.Row) *aggGroup {
	g := &aggGroup{first: first, states: make([]*evalengine.AggState, len(s.aggs))}
	for i, a := range s.aggs {
		g.states[i] = evalengine.NewAggState(a)
	}
	return g
}

// advance feeds the input row bound as the scan row to every aggregate.
func (s *AggregateState) advance(g *aggGroup, in *slot.Slot) error {
	s.exprCtx.ResetArena()
	s.exprCtx.Bind(nil, nil, in)
	for _, st := range g.states {
		if err := st.Advance(s.exprCtx); err != nil {
			return err
		}
	}
	return nil
}

// finish finalizes g and returns the output row, or nil if the qual
// rejects the group.
func (s *AggregateState) finish(g *aggGroup) (*slot.Slot, error) {
	for i, st := range g.states {
		v, err := st.Final()
		if err != nil {
			return nil, err
		}
		s.aggVals[i] = v
	}
	s.exprCtx.ResetArena()
	if g.first != nil {
		s.rep.StoreBorrowed(g.first, nil)
		s.exprCtx.Bind(nil, nil, s.rep)
	} else {
		// plain aggregation of an empty input
		s.exprCtx.Bind(nil, nil, s.nullRow)
	}
	s.exprCtx.AggValues = s.aggVals
	ok, err := s.qual()
	if err != nil || !ok {
		return nil, err
	}
	if s.node.Common().TargetList != nil {
		return s.project(nil)
	}
	cols := s.node.(*plan.Agg).GroupCols
	row := s.exprCtx.Alloc(len(cols) + len(s.aggVals))
	for i, c := range cols {
		row[i] = g.first[c]
	}
	copy(row[len(cols):], s.aggVals)
	s.outSlot.StoreBorrowed(row, nil)
	return s.outSlot, nil
}

func (s *AggregateState) exec(ctx context.Context) (*slot.Slot, error) {
	switch s.strategy {
	case opcode.AggPlain:
		return s.execPlain(ctx)
	case opcode.AggSorted:
		return s.execSorted(ctx)
	default:
		return s.execHashed(ctx)
	}
}

// execPlain returns a single row, even for an empty input.
func (s *AggregateState) execPlain(ctx context.Context) (*slot.Slot, error) {
	if s.done {
		return nil, nil
	}
	s.done = true
	var g *aggGroup
	for {
		in, err := s.left.Next(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			break
		}
		if g == nil {
			g = s.newGroup(in.Copy())
		}
		if err := s.advance(g, in); err != nil {
			return nil, err
		}
	}
	if g == nil {
		g = s.newGroup(nil)
	}
	return s.finish(g)
}

func (s *AggregateState) execSorted(ctx context.Context) (*slot.Slot, error) {
	cols := s.node.(*plan.Agg).GroupCols
	for !s.done {
		// the first row of the group was read by the previous call
		var g *aggGroup
		if s.next.IsEmpty() {
			in, err := s.left.Next(ctx)
			if err != nil {
				return nil, err
			}
			if in == nil {
				s.done = true
				return nil, nil
			}
			g = s.newGroup(in.Copy())
			if err := s.advance(g, in); err != nil {
				return nil, err
			}
		} else {
			g = s.newGroup(s.next.Copy())
			if err := s.advance(g, s.next); err != nil {
				return nil, err
			}
			s.next.Clear()
		}

		for {
			in, err := s.left.Next(ctx)
			if err != nil {
				return nil, err
			}
			if in == nil {
				s.done = true
				break
			}
			same, err := tuplesMatch(g.first, in.Row(), cols)
			if err != nil {
				return nil, err
			}
			if !same {
				s.next.CopyFrom(in)
				break
			}
			if err := s.advance(g, in); err != nil {
				return nil, err
			}
		}

		out, err := s.finish(g)
		if err != nil || out != nil {
			return out, err
		}
	}
	return nil, nil
}

// fillHash reads the whole input into the hash table.
func (s *AggregateState) fillHash(ctx context.Context) error {
	n := s.node.(*plan.Agg)
	s.groups = make(map[sqltypes.HashCode][]*aggGroup, max(n.NumGroups, 0))
	s.order = s.order[:0]
	for {
		in, err := s.left.Next(ctx)
		if err != nil {
			return err
		}
		if in == nil {
			break
		}
		row := in.Row()
		hash := sqltypes.HashRow(row, n.GroupCols)
		var g *aggGroup
		for _, cand := range s.groups[hash] {
			same, err := tuplesMatch(cand.first, row, n.GroupCols)
			if err != nil {
				return err
			}
			if same {
				g = cand
				break
			}
		}
		if g == nil {
			g = s.newGroup(in.Copy())
			s.groups[hash] = append(s.groups[hash], g)
			s.order = append(s.order, g)
		}
		if err := s.advance(g, in); err != nil {
			return err
		}
	}
	s.filled = true
	s.iterPos = 0
	return nil
}

func (s *AggregateState) execHashed(ctx context.Context) (*slot.Slot, error) {
	if !s.filled {
		if err := s.fillHash(ctx); err != nil {
			return nil, err
		}
	}
	for s.iterPos < len(s.order) {
		g := s.order[s.iterPos]
		s.iterPos++
		out, err := s.finish(g)
		if err != nil || out != nil {
			return out, err
		}
	}
	return nil, nil
}

func (s *AggregateState) aggArgs() []evalengine.Expr {
	var out []evalengine.Expr
	for _, a := range s.aggs {
		if a.Arg != nil {
			out = append(out, a.Arg)
		}
	}
	return out
}

func (s *AggregateState) rescan() error {
	s.done = false
	s.next.Clear()
	s.rep.Clear()
	if s.strategy == opcode.AggHashed && s.filled {
		// the table can be read again unless the input or an aggregate
		// argument changed
		if s.left.base().chgParam.None() && !s.paramsChanged(s.aggArgs()...) {
			s.iterPos = 0
			return nil
		}
		s.filled = false
		s.groups, s.order = nil, nil
	}
	return rescanInput(s.left)
}

func (s *AggregateState) shutdown() error {
	s.next.Clear()
	s.rep.Clear()
	s.groups, s.order = nil, nil
	return nil
}

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

	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
)

var _ PlanState = (*UniqueState)(nil)

// UniqueState drops rows equal on the unique columns to the row returned
// before them. The input must be sorted on those columns. Going backward
// it returns the last row of each group instead of the first.
type UniqueState struct {
	baseState
	// last is an owned copy of the row returned last.
	last *slot.Slot
}

func initUnique(ctx context.Context, n *plan.Unique, estate *ExecutionState, eflags EFlags) (*UniqueState, error) {
	if n.TargetList != nil || len(n.Qual) > 0 {
		return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "Unique node cannot project or filter")
	}
	child, err := initInput(ctx, n, n.Left, estate, eflags&^EFlagMark)
	if err != nil {
		return nil, err
	}
	if err := checkCols(n.Kind(), n.Cols, child.Arity()); err != nil {
		return nil, err
	}
	s := &UniqueState{}
	s.left = child
	s.setup(s, n, estate, eflags, child.Arity())
	s.last = estate.newSlot(child.Arity())
	return s, nil
}

func (s *UniqueState) exec(ctx context.Context) (*slot.Slot, error) {
	cols := s.node.(*plan.Unique).Cols
	for {
		in, err := s.left.Next(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			// forget the last row in case the direction changes
			s.last.Clear()
			return nil, nil
		}
		if s.last.IsEmpty() {
			s.last.CopyFrom(in)
			return s.last, nil
		}
		same, err := tuplesMatch(s.last.Row(), in.Row(), cols)
		if err != nil {
			return nil, err
		}
		if !same {
			s.last.CopyFrom(in)
			return s.last, nil
		}
	}
}

func (s *UniqueState) rescan() error {
	s.last.Clear()
	return rescanInput(s.left)
}

func (s *UniqueState) shutdown() error {
	s.last.Clear()
	return nil
}

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
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
)

var _ PlanState = (*GroupState)(nil)

// tuplesMatch reports whether a and b agree on cols. Two NULLs are the
// same group.
func tuplesMatch(a, b sqltypes.Row, cols []int) (bool, error) {
	for _, c := range cols {
		cmp, err := sqltypes.NullsafeCompare(a[c], b[c])
		if err != nil || cmp != 0 {
			return false, err
		}
	}
	return true, nil
}

// checkCols validates column indexes against an input arity.
func checkCols(kind plan.Kind, cols []int, arity int) error {
	for _, c := range cols {
		if c < 0 || c >= arity {
			return vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "%s column %d is out of range", kind, c)
		}
	}
	return nil
}

// GroupState returns the first row of every group of a sorted input,
// filtered by the node qual.
type GroupState struct {
	baseState
	// first holds an owned copy of the first row of the current group.
	first *slot.Slot
	done  bool
}

func initGroup(ctx context.Context, n *plan.Group, estate *ExecutionState, eflags EFlags) (*GroupState, error) {
	child, err := initInput(ctx, n, n.Left, estate, eflags&^(EFlagBackward|EFlagMark))
	if err != nil {
		return nil, err
	}
	if err := checkCols(n.Kind(), n.Cols, child.Arity()); err != nil {
		return nil, err
	}
	s := &GroupState{}
	s.left = child
	s.setup(s, n, estate, eflags, child.Arity())
	s.first = estate.newSlot(child.Arity())
	return s, nil
}

// startGroup makes in the first row of a new group and returns the
// projected row if the group passes the qual.
func (s *GroupState) startGroup(in *slot.Slot) (*slot.Slot, error) {
	s.first.CopyFrom(in)
	s.exprCtx.ResetArena()
	s.exprCtx.Bind(nil, nil, s.first)
	ok, err := s.qual()
	if err != nil || !ok {
		return nil, err
	}
	return s.project(s.first)
}

func (s *GroupState) exec(ctx context.Context) (*slot.Slot, error) {
	if s.done {
		return nil, nil
	}
	cols := s.node.(*plan.Group).Cols
	if s.first.IsEmpty() {
		in, err := s.left.Next(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			s.done = true
			return nil, nil
		}
		if out, err := s.startGroup(in); out != nil || err != nil {
			return out, err
		}
	}
	for {
		// skip the rest of the current group
		var in *slot.Slot
		for {
			var err error
			in, err = s.left.Next(ctx)
			if err != nil {
				return nil, err
			}
			if in == nil {
				s.done = true
				return nil, nil
			}
			same, err := tuplesMatch(s.first.Row(), in.Row(), cols)
			if err != nil {
				return nil, err
			}
			if !same {
				break
			}
		}
		if out, err := s.startGroup(in); out != nil || err != nil {
			return out, err
		}
	}
}

func (s *GroupState) rescan() error {
	s.first.Clear()
	s.done = false
	return rescanInput(s.left)
}

func (s *GroupState) shutdown() error {
	s.first.Clear()
	return nil
}

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

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
)

var _ PlanState = (*SetOpState)(nil)

// SetOpState implements the set operations over an input sorted on the
// compared columns, where the flag column tells which side of the
// operation each row comes from. For each group it counts the rows of
// both sides and returns as many copies of the group as the operation
// asks for. The flag column is not returned.
type SetOpState struct {
	baseState
	first  *slot.Slot
	next   *slot.Slot
	out    *slot.Slot
	copies int64
	done   bool
}

func initSetOp(ctx context.Context, n *plan.SetOp, estate *ExecutionState, eflags EFlags) (*SetOpState, error) {
	if n.TargetList != nil || len(n.Qual) > 0 {
		return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "SetOp node cannot project or filter")
	}
	child, err := initInput(ctx, n, n.Left, estate, eflags&^(EFlagBackward|EFlagMark))
	if err != nil {
		return nil, err
	}
	if err := checkCols(n.Kind(), append([]int{n.FlagCol}, n.Cols...), child.Arity()); err != nil {
		return nil, err
	}
	s := &SetOpState{}
	s.left = child
	s.setup(s, n, estate, eflags, child.Arity()-1)
	s.first = estate.newSlot(child.Arity())
	s.next = estate.newSlot(child.Arity())
	s.out = estate.newSlot(child.Arity() - 1)
	return s, nil
}

// side returns 0 for a row of the left input and 1 for the right one.
func (s *SetOpState) side(row sqltypes.Row) (int64, error) {
	flag := row[s.node.(*plan.SetOp).FlagCol]
	v, err := sqltypes.ToInt64(flag)
	if err != nil || (v != 0 && v != 1) {
		return 0, vterrors.VT13001(fmt.Sprintf("set operation flag must be 0 or 1, got %s", flag.String()))
	}
	return v, nil
}

func (s *SetOpState) exec(ctx context.Context) (*slot.Slot, error) {
	n := s.node.(*plan.SetOp)
	for {
		if s.copies > 0 {
			s.copies--
			return s.out, nil
		}
		if s.done {
			return nil, nil
		}

		if s.next.IsEmpty() {
			in, err := s.left.Next(ctx)
			if err != nil {
				return nil, err
			}
			if in == nil {
				s.done = true
				continue
			}
			s.first.CopyFrom(in)
		} else {
			s.first.CopyFrom(s.next)
			s.next.Clear()
		}

		var counts [2]int64
		side, err := s.side(s.first.Row())
		if err != nil {
			return nil, err
		}
		counts[side]++
		for {
			in, err := s.left.Next(ctx)
			if err != nil {
				return nil, err
			}
			if in == nil {
				s.done = true
				break
			}
			same, err := tuplesMatch(s.first.Row(), in.Row(), n.Cols)
			if err != nil {
				return nil, err
			}
			if !same {
				s.next.CopyFrom(in)
				break
			}
			side, err := s.side(in.Row())
			if err != nil {
				return nil, err
			}
			counts[side]++
		}

		s.copies = n.Cmd.Copies(counts[0], counts[1])
		if s.copies > 0 {
			row := make(sqltypes.Row, 0, s.out.Arity())
			for i, v := range s.first.Row() {
				if i != n.FlagCol {
					row = append(row, v)
				}
			}
			s.out.StoreOwned(row)
		}
	}
}

func (s *SetOpState) rescan() error {
	s.first.Clear()
	s.next.Clear()
	s.out.Clear()
	s.copies = 0
	s.done = false
	return rescanInput(s.left)
}

func (s *SetOpState) shutdown() error {
	s.first.Clear()
	s.next.Clear()
	s.out.Clear()
	return nil
}

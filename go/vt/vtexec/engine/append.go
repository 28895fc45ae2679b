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
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

var _ PlanState = (*AppendState)(nil)

// AppendState returns the rows of each input in turn, last input first
// when scanning backward.
type AppendState struct {
	baseState
	plans []PlanState
	// whichPlan goes from -1 to len(plans); -2 means not started.
	whichPlan int
}

const appendNotStarted = -2

func initAppend(ctx context.Context, n *plan.Append, estate *ExecutionState, eflags EFlags) (*AppendState, error) {
	s := &AppendState{whichPlan: appendNotStarted}
	arity := -1
	for _, p := range n.Plans {
		child, err := InitNode(ctx, p, estate, eflags)
		if err != nil {
			return nil, err
		}
		s.plans = append(s.plans, child)
		if arity >= 0 && child.Arity() != arity {
			return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.WrongNumberOfColumns,
				"append input %d returns %d columns, expected %d", len(s.plans)-1, child.Arity(), arity)
		}
		arity = child.Arity()
	}
	s.setup(s, n, estate, eflags, max(arity, 0))
	return s, nil
}

// Inputs satisfies the PlanState interface.
func (s *AppendState) Inputs() []PlanState { return s.plans }

func (s *AppendState) exec(ctx context.Context) (*slot.Slot, error) {
	dir := s.estate.Direction
	if s.whichPlan == appendNotStarted {
		s.whichPlan = 0
		if dir == storage.Backward {
			s.whichPlan = len(s.plans) - 1
		}
	}
	for {
		if s.whichPlan < 0 || s.whichPlan >= len(s.plans) {
			// step back onto the last input when the direction reverses
			next := s.whichPlan + int(dir)
			if next < 0 || next >= len(s.plans) {
				return nil, nil
			}
			s.whichPlan = next
		}
		in, err := s.plans[s.whichPlan].Next(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			s.whichPlan += int(dir)
			if s.whichPlan < 0 || s.whichPlan >= len(s.plans) {
				return nil, nil
			}
			continue
		}
		s.exprCtx.ResetArena()
		s.exprCtx.Bind(nil, nil, in)
		ok, err := s.qual()
		if err != nil {
			return nil, err
		}
		if ok {
			return s.project(in)
		}
	}
}

func (s *AppendState) rescan() error {
	for _, p := range s.plans {
		if err := rescanInput(p); err != nil {
			return err
		}
	}
	s.whichPlan = appendNotStarted
	return nil
}

func (s *AppendState) shutdown() error { return nil }

func (s *AppendState) setBound(bound int64) {
	for _, p := range s.plans {
		setTupleBound(p, bound)
	}
}

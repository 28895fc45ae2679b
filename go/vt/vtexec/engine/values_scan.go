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
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
)

var (
	_ PlanState = (*ValuesScanState)(nil)
	_ marker    = (*ValuesScanState)(nil)
)

// ValuesScanState returns a list of rows computed from expressions. The
// expressions are evaluated every time a row is returned, so they see the
// current parameter values.
type ValuesScanState struct {
	baseState
	scan *slot.Slot
	// cur goes from -1 (before the first row) to len(rows).
	cur            int
	mark           int
	marked         bool
	restorePending bool
}

func initValuesScan(_ context.Context, n *plan.ValuesScan, estate *ExecutionState, eflags EFlags) (*ValuesScanState, error) {
	arity := 0
	for i, row := range n.Rows {
		if i == 0 {
			arity = len(row)
		} else if len(row) != arity {
			return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.WrongNumberOfColumns,
				"values row %d has %d columns, expected %d", i, len(row), arity)
		}
	}
	s := &ValuesScanState{cur: -1}
	s.setup(s, n, estate, eflags, arity)
	s.scan = estate.newSlot(arity)
	return s, nil
}

func (s *ValuesScanState) exec(context.Context) (*slot.Slot, error) {
	rows := s.node.(*plan.ValuesScan).Rows
	for {
		if s.restorePending {
			s.restorePending = false
			s.cur = s.mark
		} else {
			s.cur = min(max(s.cur+int(s.estate.Direction), -1), len(rows))
		}
		if s.cur < 0 || s.cur >= len(rows) {
			s.scan.Clear()
			return nil, nil
		}

		s.exprCtx.ResetArena()
		s.exprCtx.Bind(nil, nil, nil)
		row, err := evalengine.ExecProject(rows[s.cur], s.exprCtx)
		if err != nil {
			return nil, err
		}
		s.scan.StoreBorrowed(row, nil)
		s.exprCtx.Bind(nil, nil, s.scan)
		ok, err := s.qual()
		if err != nil {
			return nil, err
		}
		if ok {
			return s.project(s.scan)
		}
	}
}

func (s *ValuesScanState) rescan() error {
	s.scan.Clear()
	s.cur = -1
	s.restorePending = false
	return nil
}

func (s *ValuesScanState) shutdown() error {
	s.scan.Clear()
	return nil
}

func (s *ValuesScanState) markPos() error {
	s.mark = s.cur
	s.marked = true
	s.restorePending = false
	return nil
}

func (s *ValuesScanState) restrPos() error {
	if !s.marked {
		return vterrors.NewErrorf(vterrors.FAILED_PRECONDITION, vterrors.CursorNotMarked, "values scan: restore without mark")
	}
	s.restorePending = true
	return nil
}

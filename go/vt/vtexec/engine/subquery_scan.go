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

	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
)

var _ PlanState = (*SubqueryScanState)(nil)

// SubqueryScanState scans the result of its input as if it were a
// relation.
type SubqueryScanState struct {
	baseState
}

func initSubqueryScan(ctx context.Context, n *plan.SubqueryScan, estate *ExecutionState, eflags EFlags) (*SubqueryScanState, error) {
	child, err := initInput(ctx, n, n.Left, estate, eflags)
	if err != nil {
		return nil, err
	}
	s := &SubqueryScanState{}
	s.left = child
	s.setup(s, n, estate, eflags, child.Arity())
	return s, nil
}

func (s *SubqueryScanState) exec(ctx context.Context) (*slot.Slot, error) {
	for {
		in, err := s.left.Next(ctx)
		if err != nil || in == nil {
			return nil, err
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

func (s *SubqueryScanState) rescan() error {
	return rescanInput(s.left)
}

func (s *SubqueryScanState) shutdown() error { return nil }

func (s *SubqueryScanState) setBound(bound int64) {
	if len(s.node.Common().Qual) == 0 {
		setTupleBound(s.left, bound)
	}
}

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

	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
)

var _ PlanState = (*ResultState)(nil)

// ResultState is the state of a Result node. Without an input it returns
// a single row computed from its target list. The constant qual is
// checked once per scan.
type ResultState struct {
	baseState
	checkedQual bool
	// done is set once the single row of an input-less Result was returned.
	done bool
}

func initResult(ctx context.Context, n *plan.Result, estate *ExecutionState, eflags EFlags) (*ResultState, error) {
	s := &ResultState{}
	arity := 0
	if n.Left != nil {
		child, err := InitNode(ctx, n.Left, estate, eflags)
		if err != nil {
			return nil, err
		}
		s.left = child
		arity = child.Arity()
	}
	s.setup(s, n, estate, eflags, arity)
	if s.left == nil && n.TargetList == nil {
		// a Result with neither input nor target list returns one empty row
		s.result = estate.newSlot(0)
	}
	return s, nil
}

func (s *ResultState) exec(ctx context.Context) (*slot.Slot, error) {
	n := s.node.(*plan.Result)
	if !s.checkedQual {
		s.checkedQual = true
		s.exprCtx.ResetArena()
		s.exprCtx.Bind(nil, nil, nil)
		ok, err := evalengine.ExecQual(n.ConstantQual, s.exprCtx)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.done = true
		}
	}
	if s.done {
		return nil, nil
	}
	if s.left == nil {
		s.done = true
		s.exprCtx.ResetArena()
		s.exprCtx.Bind(nil, nil, nil)
		ok, err := s.qual()
		if err != nil || !ok {
			return nil, err
		}
		if n.TargetList == nil {
			s.result.StoreOwned(nil)
			return s.result, nil
		}
		return s.project(nil)
	}
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

func (s *ResultState) rescan() error {
	s.checkedQual = false
	s.done = false
	if s.left != nil {
		return rescanInput(s.left)
	}
	return nil
}

func (s *ResultState) shutdown() error { return nil }

// setBound passes a row bound through a Result that does not filter.
func (s *ResultState) setBound(bound int64) {
	if s.left != nil && len(s.node.Common().Qual) == 0 {
		setTupleBound(s.left, bound)
	}
}

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
	"vitess.io/vtexec/go/vt/vtexec/engine/opcode"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
)

var _ PlanState = (*NestLoopState)(nil)

// NestLoopState joins every outer row with the rows of a fresh scan of
// the inner input. Outer columns named by the plan's parameters are
// passed to the inner side before each inner scan.
type NestLoopState struct {
	joinState
	needNewOuter bool
	matchedOuter bool
	outer        *slot.Slot
}

func initNestLoop(ctx context.Context, n *plan.NestLoop, estate *ExecutionState, eflags EFlags) (*NestLoopState, error) {
	switch n.JoinType {
	case opcode.InnerJoin, opcode.LeftJoin, opcode.SemiJoin, opcode.AntiJoin:
	default:
		return nil, vterrors.VT12001("nested loop " + n.JoinType.String() + " join")
	}
	outer, err := initInput(ctx, n, n.Left, estate, eflags&^(EFlagBackward|EFlagMark))
	if err != nil {
		return nil, err
	}
	// without parameters the inner scans are all the same, so rescans
	// should be cheap
	innerFlags := eflags &^ (EFlagBackward | EFlagMark)
	if len(n.Params) == 0 {
		innerFlags |= EFlagRewind
	} else {
		innerFlags &^= EFlagRewind
	}
	inner, err := initInput(ctx, n, n.Right, estate, innerFlags)
	if err != nil {
		return nil, err
	}
	for _, p := range n.Params {
		if p.ParamID < 0 || p.ParamID >= len(estate.Params) {
			return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.NoSuchParam, "nested loop parameter $%d is out of range", p.ParamID)
		}
		if p.OuterCol < 0 || p.OuterCol >= outer.Arity() {
			return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "nested loop parameter column %d is out of range", p.OuterCol)
		}
	}
	s := &NestLoopState{needNewOuter: true}
	s.initJoin(n.JoinType, n.JoinQual, outer, inner, estate)
	s.setup(s, n, estate, eflags, s.joinArity())
	return s, nil
}

func (s *NestLoopState) exec(ctx context.Context) (*slot.Slot, error) {
	n := s.node.(*plan.NestLoop)
	for {
		if s.needNewOuter {
			outer, err := s.left.Next(ctx)
			if err != nil || outer == nil {
				return nil, err
			}
			s.outer = outer
			s.needNewOuter = false
			s.matchedOuter = false

			if len(n.Params) > 0 {
				inner := s.right.base()
				for _, p := range n.Params {
					s.estate.Params[p.ParamID] = outer.Value(p.OuterCol)
					inner.chgParam.Set(uint(p.ParamID))
				}
			}
			if err := s.right.ReScan(); err != nil {
				return nil, err
			}
		}

		inner, err := s.right.Next(ctx)
		if err != nil {
			return nil, err
		}
		if inner == nil {
			s.needNewOuter = true
			if !s.matchedOuter && s.fillOuter() {
				if out, err := s.emitNullInner(s.outer); out != nil || err != nil {
					return out, err
				}
			}
			continue
		}

		s.exprCtx.ResetArena()
		s.exprCtx.Bind(s.outer, inner, nil)
		ok, err := evalengine.ExecQual(s.joinQual, s.exprCtx)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		s.matchedOuter = true
		if s.joinType == opcode.AntiJoin {
			s.needNewOuter = true
			continue
		}
		if s.joinType == opcode.SemiJoin {
			s.needNewOuter = true
		}
		if out, err := s.emit(s.outer, inner); out != nil || err != nil {
			return out, err
		}
	}
}

func (s *NestLoopState) rescan() error {
	s.needNewOuter = true
	s.matchedOuter = false
	s.outer = nil
	// the inner side is rescanned for every new outer row anyway
	return rescanInput(s.left)
}

func (s *NestLoopState) shutdown() error {
	s.outer = nil
	return nil
}

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
	"math"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

// bounder is implemented by the states that can use, or pass down, the
// number of rows their parent will read at most.
type bounder interface {
	// setBound sets the bound; a negative bound means unbounded.
	setBound(bound int64)
}

// setTupleBound tells ps that at most bound rows will be read from it.
// States that cannot use the information ignore it.
func setTupleBound(ps PlanState, bound int64) {
	if b, ok := ps.(bounder); ok {
		b.setBound(bound)
	}
}

type limitState int8

const (
	limitInitial limitState = iota
	limitRescan
	limitEmpty
	limitInWindow
	limitSubplanEOF
	limitWindowEnd
	limitWindowStart
)

var _ PlanState = (*LimitState)(nil)

// LimitState skips the first offset rows of its input and returns at most
// count rows after them. It can be read in both directions inside the
// window.
type LimitState struct {
	baseState
	state limitState

	offset  int64
	count   int64
	noCount bool
	// position is the input position of subSlot, counted from 1.
	position int64
	subSlot  *slot.Slot
}

func initLimit(ctx context.Context, n *plan.Limit, estate *ExecutionState, eflags EFlags) (*LimitState, error) {
	if n.TargetList != nil || len(n.Qual) > 0 {
		return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "Limit node cannot project or filter")
	}
	child, err := initInput(ctx, n, n.Left, estate, eflags)
	if err != nil {
		return nil, err
	}
	s := &LimitState{state: limitInitial}
	s.left = child
	s.setup(s, n, estate, eflags, child.Arity())
	return s, nil
}

// evalBound evaluates an offset or count expression. NULL returns
// ok=false.
func (s *LimitState) evalBound(e evalengine.Expr, what string) (v int64, ok bool, err error) {
	val, err := e.Eval(s.exprCtx)
	if err != nil {
		return 0, false, err
	}
	if val.IsNull() {
		return 0, false, nil
	}
	v, err = sqltypes.ToInt64(val)
	if err != nil {
		return 0, false, err
	}
	if v < 0 {
		return 0, false, vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.DataOutOfRange, "%s must not be negative", what)
	}
	return v, true, nil
}

// recomputeLimits evaluates offset and count for a new scan and passes
// the number of rows needed down to the input.
func (s *LimitState) recomputeLimits() error {
	n := s.node.(*plan.Limit)
	s.exprCtx.ResetArena()
	s.exprCtx.Bind(nil, nil, nil)

	s.offset = 0
	if n.Offset != nil {
		off, _, err := s.evalBound(n.Offset, "OFFSET")
		if err != nil {
			return err
		}
		s.offset = off
	}

	s.count, s.noCount = 0, true
	if n.Count != nil {
		cnt, ok, err := s.evalBound(n.Count, "LIMIT")
		if err != nil {
			return err
		}
		s.count, s.noCount = cnt, !ok
	}

	s.position = 0
	s.subSlot = nil
	s.state = limitRescan

	bound := int64(-1)
	if !s.noCount && s.count <= math.MaxInt64-s.offset {
		bound = s.count + s.offset
	}
	setTupleBound(s.left, bound)
	return nil
}

func (s *LimitState) exec(ctx context.Context) (*slot.Slot, error) {
	forward := s.estate.Direction == storage.Forward

	switch s.state {
	case limitInitial:
		if err := s.recomputeLimits(); err != nil {
			return nil, err
		}
		fallthrough

	case limitRescan:
		if !forward {
			return nil, nil
		}
		if !s.noCount && s.count <= 0 {
			s.state = limitEmpty
			return nil, nil
		}
		for {
			in, err := s.left.Next(ctx)
			if err != nil {
				return nil, err
			}
			if in == nil {
				// too few rows to return any
				s.state = limitEmpty
				return nil, nil
			}
			s.subSlot = in
			s.position++
			if s.position > s.offset {
				break
			}
		}
		s.state = limitInWindow

	case limitEmpty:
		return nil, nil

	case limitInWindow:
		if forward {
			if !s.noCount && s.position-s.offset >= s.count {
				s.state = limitWindowEnd
				return nil, nil
			}
			in, err := s.left.Next(ctx)
			if err != nil {
				return nil, err
			}
			if in == nil {
				s.state = limitSubplanEOF
				return nil, nil
			}
			s.subSlot = in
			s.position++
		} else {
			if s.position <= s.offset+1 {
				s.state = limitWindowStart
				return nil, nil
			}
			in, err := s.left.Next(ctx)
			if err != nil {
				return nil, err
			}
			if in == nil {
				return nil, vterrors.VT13001("Limit input ended while backing up inside the window")
			}
			s.subSlot = in
			s.position--
		}

	case limitSubplanEOF:
		if forward {
			return nil, nil
		}
		// back up to the last row of the input, which is in the window
		in, err := s.left.Next(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			return nil, vterrors.VT13001("Limit input ended while backing up from its end")
		}
		s.subSlot = in
		s.state = limitInWindow

	case limitWindowEnd:
		if forward {
			return nil, nil
		}
		// the input was not advanced past the last row returned
		s.state = limitInWindow

	case limitWindowStart:
		if !forward {
			return nil, nil
		}
		s.state = limitInWindow

	default:
		return nil, vterrors.VT13001("impossible Limit state")
	}

	return s.subSlot, nil
}

func (s *LimitState) rescan() error {
	if err := s.recomputeLimits(); err != nil {
		return err
	}
	return rescanInput(s.left)
}

func (s *LimitState) shutdown() error {
	s.subSlot = nil
	return nil
}

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
	"vitess.io/vtexec/go/vt/vtexec/engine/opcode"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
)

var _ PlanState = (*MergeJoinState)(nil)

type mjState int8

const (
	mjInitializeOuter mjState = iota
	mjInitializeInner
	mjJoinTuples
	mjNextInner
	mjNextOuter
	mjTestOuter
	mjSkipTest
	mjSkipOuterAdvance
	mjSkipInnerAdvance
	mjEndOuter
	mjEndInner
	mjDone
)

func (s mjState) String() string {
	switch s {
	case mjInitializeOuter:
		return "InitializeOuter"
	case mjInitializeInner:
		return "InitializeInner"
	case mjJoinTuples:
		return "JoinTuples"
	case mjNextInner:
		return "NextInner"
	case mjNextOuter:
		return "NextOuter"
	case mjTestOuter:
		return "TestOuter"
	case mjSkipTest:
		return "SkipTest"
	case mjSkipOuterAdvance:
		return "SkipOuterAdvance"
	case mjSkipInnerAdvance:
		return "SkipInnerAdvance"
	case mjEndOuter:
		return "EndOuter"
	case mjEndInner:
		return "EndInner"
	case mjDone:
		return "Done"
	}
	return fmt.Sprintf("mjState(%d)", int(s))
}

// MergeJoinState joins two inputs sorted on the merge keys. The inner
// input is marked at the first row of each group of equal keys, so that
// a following outer row with the same keys can restore it and join the
// group again.
type MergeJoinState struct {
	joinState
	state mjState

	outerKeyExprs []evalengine.Expr
	innerKeyExprs []evalengine.Expr
	// comparers apply to key rows, one column per merge clause.
	comparers []sqltypes.Comparer

	outer, inner         *slot.Slot
	outerKeys, innerKeys sqltypes.Row
	markedKeys           sqltypes.Row
	outerMatchable       bool
	innerMatchable       bool
	matchedOuter         bool
	matchedInner         bool
}

func initMergeJoin(ctx context.Context, n *plan.MergeJoin, estate *ExecutionState, eflags EFlags) (*MergeJoinState, error) {
	switch n.JoinType {
	case opcode.InnerJoin, opcode.LeftJoin, opcode.SemiJoin, opcode.AntiJoin:
	case opcode.RightJoin, opcode.FullJoin:
		if len(n.JoinQual) > 0 {
			return nil, vterrors.VT12001(n.JoinType.String() + " merge join with non-merge join conditions")
		}
	default:
		return nil, vterrors.VT12001("merge " + n.JoinType.String() + " join")
	}
	if len(n.Clauses) == 0 {
		return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "merge join without merge clauses")
	}

	outer, err := initInput(ctx, n, n.Left, estate, eflags&^(EFlagBackward|EFlagMark))
	if err != nil {
		return nil, err
	}
	// the inner side is re-read from its mark for every outer row of a
	// group, so it needs mark support; anything else is spooled
	innerPlan := n.Right
	if innerPlan != nil && !SupportsMark(innerPlan) {
		rb := innerPlan.Common()
		innerPlan = &plan.Material{Base: plan.Base{Left: innerPlan, Rows: rb.Rows, Width: rb.Width}}
	}
	inner, err := initInput(ctx, n, innerPlan, estate, (eflags&^EFlagBackward)|EFlagMark)
	if err != nil {
		return nil, err
	}

	s := &MergeJoinState{state: mjInitializeOuter}
	for i, c := range n.Clauses {
		s.outerKeyExprs = append(s.outerKeyExprs, c.OuterKey)
		s.innerKeyExprs = append(s.innerKeyExprs, c.InnerKey)
		s.comparers = append(s.comparers, sqltypes.Comparer{Col: i, Desc: c.Desc, NullsFirst: c.NullsFirst})
	}
	s.outerKeys = make(sqltypes.Row, len(n.Clauses))
	s.innerKeys = make(sqltypes.Row, len(n.Clauses))
	s.initJoin(n.JoinType, n.JoinQual, outer, inner, estate)
	s.setup(s, n, estate, eflags, s.joinArity())
	return s, nil
}

// evalKeys computes the merge keys of row into keys and reports whether
// the row can match anything. A NULL key never matches.
func (s *MergeJoinState) evalKeys(exprs []evalengine.Expr, row *slot.Slot, outer bool, keys sqltypes.Row) (bool, error) {
	if outer {
		s.exprCtx.Bind(row, nil, nil)
	} else {
		s.exprCtx.Bind(nil, row, nil)
	}
	if err := evalengine.EvalKeys(exprs, s.exprCtx, keys); err != nil {
		return false, err
	}
	for _, v := range keys {
		if v.IsNull() {
			return false, nil
		}
	}
	return true, nil
}

func (s *MergeJoinState) fetchOuter(ctx context.Context) error {
	outer, err := s.left.Next(ctx)
	if err != nil {
		return err
	}
	s.outer = outer
	s.matchedOuter = false
	s.outerMatchable = false
	if outer != nil {
		s.outerMatchable, err = s.evalKeys(s.outerKeyExprs, outer, true, s.outerKeys)
	}
	return err
}

func (s *MergeJoinState) fetchInner(ctx context.Context) error {
	inner, err := s.right.Next(ctx)
	if err != nil {
		return err
	}
	s.inner = inner
	s.matchedInner = false
	s.innerMatchable = false
	if inner != nil {
		s.innerMatchable, err = s.evalKeys(s.innerKeyExprs, inner, false, s.innerKeys)
	}
	return err
}

// compare orders the current outer keys against keys.
func (s *MergeJoinState) compare(keys sqltypes.Row) (int, error) {
	return sqltypes.CompareRows(s.comparers, s.outerKeys, keys)
}

// fillOuterRow returns the current outer row null-extended if the join
// type asks for it and the row found no match.
func (s *MergeJoinState) fillOuterRow() (*slot.Slot, error) {
	if s.outer == nil || s.matchedOuter || !s.fillOuter() {
		return nil, nil
	}
	s.matchedOuter = true
	return s.emitNullInner(s.outer)
}

func (s *MergeJoinState) fillInnerRow() (*slot.Slot, error) {
	if s.inner == nil || s.matchedInner || !s.fillInner() {
		return nil, nil
	}
	s.matchedInner = true
	return s.emitNullOuter(s.inner)
}

// outerExhausted picks the next state once the outer input ran out.
func (s *MergeJoinState) outerExhausted() {
	if s.fillInner() && s.inner != nil {
		s.state = mjEndOuter
		return
	}
	s.state = mjDone
}

func (s *MergeJoinState) innerExhausted() {
	if s.fillOuter() && s.outer != nil {
		s.state = mjEndInner
		return
	}
	s.state = mjDone
}

func (s *MergeJoinState) exec(ctx context.Context) (*slot.Slot, error) {
	for {
		switch s.state {
		case mjInitializeOuter:
			if err := s.fetchOuter(ctx); err != nil {
				return nil, err
			}
			if s.outer == nil {
				// the inner rows still have to be emitted for right and
				// full joins
				if !s.fillInner() {
					s.state = mjDone
					continue
				}
				if err := s.fetchInner(ctx); err != nil {
					return nil, err
				}
				s.outerExhausted()
				continue
			}
			if s.outerMatchable {
				s.state = mjInitializeInner
				continue
			}
			if out, err := s.fillOuterRow(); out != nil || err != nil {
				return out, err
			}

		case mjInitializeInner:
			if err := s.fetchInner(ctx); err != nil {
				return nil, err
			}
			if s.inner == nil {
				s.innerExhausted()
				continue
			}
			if s.innerMatchable {
				s.state = mjSkipTest
				continue
			}
			if out, err := s.fillInnerRow(); out != nil || err != nil {
				return out, err
			}

		case mjSkipTest:
			c, err := s.compare(s.innerKeys)
			if err != nil {
				return nil, err
			}
			switch {
			case c == 0:
				if err := MarkPos(s.right); err != nil {
					return nil, err
				}
				s.markedKeys = sqltypes.CopyRow(s.innerKeys)
				s.state = mjJoinTuples
			case c < 0:
				s.state = mjSkipOuterAdvance
			default:
				s.state = mjSkipInnerAdvance
			}

		case mjJoinTuples:
			// keys are equal here; the rest of the join condition decides
			s.state = mjNextInner
			s.exprCtx.ResetArena()
			s.exprCtx.Bind(s.outer, s.inner, nil)
			ok, err := evalengine.ExecQual(s.joinQual, s.exprCtx)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			s.matchedOuter = true
			s.matchedInner = true
			switch s.joinType {
			case opcode.AntiJoin:
				s.state = mjNextOuter
				continue
			case opcode.SemiJoin:
				s.state = mjNextOuter
			}
			if out, err := s.emit(s.outer, s.inner); out != nil || err != nil {
				return out, err
			}

		case mjNextInner:
			if out, err := s.fillInnerRow(); out != nil || err != nil {
				return out, err
			}
			if err := s.fetchInner(ctx); err != nil {
				return nil, err
			}
			if s.inner == nil || !s.innerMatchable {
				// a NULL key sorts after every outer key
				s.state = mjNextOuter
				continue
			}
			c, err := s.compare(s.innerKeys)
			if err != nil {
				return nil, err
			}
			if c == 0 {
				s.state = mjJoinTuples
			} else {
				s.state = mjNextOuter
			}

		case mjNextOuter:
			if out, err := s.fillOuterRow(); out != nil || err != nil {
				return out, err
			}
			if err := s.fetchOuter(ctx); err != nil {
				return nil, err
			}
			if s.outer == nil {
				s.outerExhausted()
				continue
			}
			if s.outerMatchable {
				s.state = mjTestOuter
			}

		case mjTestOuter:
			c, err := s.compare(s.markedKeys)
			if err != nil {
				return nil, err
			}
			if c == 0 {
				// same keys as the previous group: join it again
				if err := RestorePos(s.right); err != nil {
					return nil, err
				}
				if err := s.fetchInner(ctx); err != nil {
					return nil, err
				}
				if s.inner == nil {
					return nil, vterrors.VT13001("merge join: restored inner position returned no row")
				}
				s.matchedInner = true
				s.state = mjJoinTuples
				continue
			}
			if s.inner == nil {
				s.innerExhausted()
				continue
			}
			s.state = mjSkipTest

		case mjSkipOuterAdvance:
			if out, err := s.fillOuterRow(); out != nil || err != nil {
				return out, err
			}
			if err := s.fetchOuter(ctx); err != nil {
				return nil, err
			}
			if s.outer == nil {
				s.outerExhausted()
				continue
			}
			if s.outerMatchable {
				s.state = mjSkipTest
			}

		case mjSkipInnerAdvance:
			if out, err := s.fillInnerRow(); out != nil || err != nil {
				return out, err
			}
			if err := s.fetchInner(ctx); err != nil {
				return nil, err
			}
			if s.inner == nil {
				s.innerExhausted()
				continue
			}
			if s.innerMatchable {
				s.state = mjSkipTest
			}

		case mjEndOuter:
			if out, err := s.fillInnerRow(); out != nil || err != nil {
				return out, err
			}
			if err := s.fetchInner(ctx); err != nil {
				return nil, err
			}
			if s.inner == nil {
				s.state = mjDone
			}

		case mjEndInner:
			if out, err := s.fillOuterRow(); out != nil || err != nil {
				return out, err
			}
			if err := s.fetchOuter(ctx); err != nil {
				return nil, err
			}
			if s.outer == nil {
				s.state = mjDone
			}

		case mjDone:
			return nil, nil

		default:
			return nil, vterrors.VT13001("merge join: unexpected state " + s.state.String())
		}
	}
}

func (s *MergeJoinState) rescan() error {
	s.state = mjInitializeOuter
	s.outer, s.inner = nil, nil
	s.markedKeys = nil
	s.matchedOuter, s.matchedInner = false, false
	if err := rescanInput(s.left); err != nil {
		return err
	}
	return rescanInput(s.right)
}

func (s *MergeJoinState) shutdown() error {
	s.outer, s.inner = nil, nil
	return nil
}

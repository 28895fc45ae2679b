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
	"vitess.io/vtexec/go/vt/vtexec/engine/opcode"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
	"vitess.io/vtexec/go/vt/vtexec/storage"
	"vitess.io/vtexec/go/vt/vtexec/tuplestore"
)

var _ PlanState = (*HashJoinState)(nil)

type hjState int8

const (
	hjBuild hjState = iota
	hjNeedNewOuter
	hjScanBucket
	hjFillOuterTuple
	hjNeedNewBatch
	hjDone
)

// HashJoinState builds a hash table from its Hash input and looks up
// every outer row in it. When the inner side does not fit in the work
// memory, both sides are split into batches by hash and the batches
// after the first are joined from temporary files.
type HashJoinState struct {
	joinState
	state hjState
	hash  *HashState
	table *hashTable

	outerKeyExprs []evalengine.Expr
	innerKeyExprs []evalengine.Expr
	outerKeys     sqltypes.Row

	outer        *slot.Slot
	outerHash    sqltypes.HashCode
	matchedOuter bool
	entry        *hashEntry
	innerSlot    *slot.Slot

	// batchOuter reads the outer rows saved for the current batch.
	batchOuter     *tuplestore.Reader
	batchOuterSlot *slot.Slot
}

func initHashJoin(ctx context.Context, n *plan.HashJoin, estate *ExecutionState, eflags EFlags) (*HashJoinState, error) {
	switch n.JoinType {
	case opcode.InnerJoin, opcode.LeftJoin, opcode.SemiJoin, opcode.AntiJoin:
	default:
		return nil, vterrors.VT12001("hash " + n.JoinType.String() + " join")
	}
	if len(n.Clauses) == 0 {
		return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "hash join without hash clauses")
	}
	if _, ok := n.Right.(*plan.Hash); !ok {
		return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "the inner input of a hash join must be a Hash node")
	}
	childFlags := eflags &^ (EFlagBackward | EFlagMark)
	outer, err := initInput(ctx, n, n.Left, estate, childFlags)
	if err != nil {
		return nil, err
	}
	inner, err := initInput(ctx, n, n.Right, estate, childFlags)
	if err != nil {
		return nil, err
	}

	s := &HashJoinState{state: hjBuild, hash: inner.(*HashState)}
	for _, c := range n.Clauses {
		s.outerKeyExprs = append(s.outerKeyExprs, c.OuterKey)
		s.innerKeyExprs = append(s.innerKeyExprs, c.InnerKey)
	}
	s.outerKeys = make(sqltypes.Row, len(n.Clauses))
	s.initJoin(n.JoinType, n.JoinQual, outer, inner, estate)
	s.setup(s, n, estate, eflags, s.joinArity())
	s.innerSlot = estate.newSlot(inner.Arity())
	s.batchOuterSlot = estate.newSlot(outer.Arity())
	return s, nil
}

// emptyInnerShortcut is true when an empty inner side means an empty
// result, so the outer side need not be read at all.
func (s *HashJoinState) emptyInnerShortcut() bool {
	return s.joinType == opcode.InnerJoin || s.joinType == opcode.SemiJoin
}

// nextOuter returns the next outer row of the current batch with its
// keys evaluated into s.outerKeys. Rows of the first batch come from the
// outer input; rows that belong to a later batch are saved on the way.
func (s *HashJoinState) nextOuter(ctx context.Context) (row *slot.Slot, matchable bool, err error) {
	ht := s.table
	for {
		if ht.curBatch == 0 {
			row, err = s.left.Next(ctx)
			if err != nil || row == nil {
				return nil, false, err
			}
			s.exprCtx.Bind(row, nil, nil)
			hash, ok, err := evalHashKeys(s.exprCtx, s.outerKeyExprs, s.outerKeys)
			if err != nil || !ok {
				return row, false, err
			}
			if _, batch := ht.bucketBatch(hash); batch != ht.curBatch {
				if err := ht.save(ht.outerBatches, batch, hash, row.Row(), "hash-outer"); err != nil {
					return nil, false, err
				}
				continue
			}
			s.outerHash = hash
			return row, true, nil
		}

		if s.batchOuter == nil {
			return nil, false, nil
		}
		tagged, err := s.batchOuter.Next(storage.Forward)
		if err != nil || tagged == nil {
			return nil, false, err
		}
		s.batchOuterSlot.StoreBorrowed(tagged[:len(tagged)-1], nil)
		s.exprCtx.Bind(s.batchOuterSlot, nil, nil)
		if err := evalengine.EvalKeys(s.outerKeyExprs, s.exprCtx, s.outerKeys); err != nil {
			return nil, false, err
		}
		s.outerHash = sqltypes.HashCode(tagged[len(tagged)-1].Int64())
		return s.batchOuterSlot, true, nil
	}
}

// nextBatch moves to the next batch that can produce rows. It returns
// false once every batch is done.
func (s *HashJoinState) nextBatch() (bool, error) {
	ht := s.table
	// the outer rows of the finished batch are not needed anymore
	if err := s.estate.closeTuplestore("hashjoin", ht.outerBatches[ht.curBatch]); err != nil {
		return false, err
	}
	ht.outerBatches[ht.curBatch] = nil
	s.batchOuter = nil
	s.batchOuterSlot.Clear()

	for batch := ht.curBatch + 1; batch < ht.nbatch; batch++ {
		outer := ht.outerBatches[batch]
		if outer == nil && !s.fillInner() {
			// no outer rows: nothing to join, nothing to fill
			if err := s.estate.closeTuplestore("hashjoin", ht.innerBatches[batch]); err != nil {
				return false, err
			}
			ht.innerBatches[batch] = nil
			continue
		}
		if ht.innerBatches[batch] == nil && s.emptyInnerShortcut() {
			if err := s.estate.closeTuplestore("hashjoin", outer); err != nil {
				return false, err
			}
			ht.outerBatches[batch] = nil
			continue
		}
		if err := s.hash.loadBatch(ht, batch); err != nil {
			return false, err
		}
		if outer != nil {
			s.batchOuter = outer.NewReader()
		}
		return true, nil
	}
	ht.curBatch = ht.nbatch
	return false, nil
}

func (s *HashJoinState) exec(ctx context.Context) (*slot.Slot, error) {
	for {
		switch s.state {
		case hjBuild:
			ht, err := s.hash.build(ctx, s.innerKeyExprs)
			if err != nil {
				return nil, err
			}
			s.table = ht
			s.estate.metrics.hashJoinBatches(ht.nbatch)
			if ht.nbatch > 1 {
				s.estate.Logger.InfoS("Hash join using batches", "batches", ht.nbatch, "rows", ht.rows)
			}
			if ht.empty() && s.emptyInnerShortcut() {
				s.state = hjDone
				continue
			}
			s.state = hjNeedNewOuter

		case hjNeedNewOuter:
			outer, matchable, err := s.nextOuter(ctx)
			if err != nil {
				return nil, err
			}
			if outer == nil {
				s.state = hjNeedNewBatch
				continue
			}
			s.outer = outer
			s.matchedOuter = false
			if !matchable {
				// a NULL key matches nothing
				s.state = hjFillOuterTuple
				continue
			}
			s.entry = s.table.lookup(s.outerHash)
			s.state = hjScanBucket

		case hjScanBucket:
			e := s.entry
			if e == nil {
				s.state = hjFillOuterTuple
				continue
			}
			s.entry = e.next
			if e.hash != s.outerHash || !s.keysEqual(e.keys) {
				continue
			}
			s.innerSlot.StoreBorrowed(e.row, nil)
			s.exprCtx.ResetArena()
			s.exprCtx.Bind(s.outer, s.innerSlot, nil)
			ok, err := evalengine.ExecQual(s.joinQual, s.exprCtx)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			s.matchedOuter = true
			switch s.joinType {
			case opcode.AntiJoin:
				s.state = hjNeedNewOuter
				continue
			case opcode.SemiJoin:
				s.state = hjNeedNewOuter
			}
			if out, err := s.emit(s.outer, s.innerSlot); out != nil || err != nil {
				return out, err
			}

		case hjFillOuterTuple:
			s.state = hjNeedNewOuter
			if !s.matchedOuter && s.fillOuter() {
				s.matchedOuter = true
				if out, err := s.emitNullInner(s.outer); out != nil || err != nil {
					return out, err
				}
			}

		case hjNeedNewBatch:
			ok, err := s.nextBatch()
			if err != nil {
				return nil, err
			}
			if !ok {
				s.state = hjDone
				continue
			}
			s.state = hjNeedNewOuter

		case hjDone:
			return nil, nil

		default:
			return nil, vterrors.VT13001("hash join: unexpected state")
		}
	}
}

// keysEqual compares the outer keys with the keys of an inner entry.
func (s *HashJoinState) keysEqual(keys sqltypes.Row) bool {
	for i, v := range s.outerKeys {
		eq, err := sqltypes.IsNullOrCompareEqual(v, keys[i])
		if err != nil || !eq {
			return false
		}
	}
	return true
}

func (s *HashJoinState) rescan() error {
	s.outer, s.entry = nil, nil
	s.matchedOuter = false
	s.innerSlot.Clear()
	s.batchOuter = nil
	s.batchOuterSlot.Clear()

	ht := s.table
	if ht != nil && ht.nbatch == 1 && s.hash.chgParam.None() && !s.paramsChanged(s.innerKeyExprs...) {
		// the table is still valid: restart matching from the first batch
		ht.curBatch = 0
		if ht.empty() && s.emptyInnerShortcut() {
			s.state = hjDone
		} else {
			s.state = hjNeedNewOuter
		}
		return rescanInput(s.left)
	}

	if ht != nil {
		s.estate.Logger.DebugS("Rebuilding hash table on rescan", "batches", ht.nbatch)
	}
	s.table = nil
	if err := s.hash.destroy(); err != nil {
		return err
	}
	s.state = hjBuild
	if err := s.hash.ReScan(); err != nil {
		return err
	}
	return rescanInput(s.left)
}

func (s *HashJoinState) shutdown() error {
	s.outer, s.entry = nil, nil
	s.innerSlot.Clear()
	s.batchOuterSlot.Clear()
	s.table = nil
	// the Hash input releases the table when it ends
	return nil
}

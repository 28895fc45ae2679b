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
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
	"vitess.io/vtexec/go/vt/vtexec/tuplestore"
)

var (
	_ PlanState             = (*FunctionScanState)(nil)
	_ marker                = (*FunctionScanState)(nil)
	_ evalengine.ResultSink = (*ReturnSetInfo)(nil)
)

// ReturnSetInfo collects the rows of a set-returning function into a
// tuplestore owned by the caller. Functions call ReturnRow once per row
// and Done when the set is complete.
type ReturnSetInfo struct {
	store *tuplestore.Store
	arity int
	rows  int
	done  bool
}

// NewReturnSetInfo returns a sink appending rows of the given arity to
// store.
func NewReturnSetInfo(store *tuplestore.Store, arity int) *ReturnSetInfo {
	return &ReturnSetInfo{store: store, arity: arity}
}

// ReturnRow satisfies the evalengine.ResultSink interface. The row is
// copied.
func (r *ReturnSetInfo) ReturnRow(row sqltypes.Row) error {
	if r.done {
		return vterrors.VT13001("set-returning function returned a row after completion")
	}
	if len(row) != r.arity {
		return vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.WrongNumberOfColumns,
			"function returned a row of %d columns, expected %d", len(row), r.arity)
	}
	r.rows++
	return r.store.Append(row)
}

// Done satisfies the evalengine.ResultSink interface.
func (r *ReturnSetInfo) Done() error {
	if r.done {
		return vterrors.VT13001("set-returning function completed twice")
	}
	r.done = true
	return nil
}

// Rows is the number of rows returned so far.
func (r *ReturnSetInfo) Rows() int { return r.rows }

// IsDone returns true once Done was called.
func (r *ReturnSetInfo) IsDone() bool { return r.done }

// FunctionScanState runs a set-returning function into a tuplestore on
// the first Next and then reads the tuplestore.
type FunctionScanState struct {
	baseState
	fn     *evalengine.SetFunc
	scan   *slot.Slot
	store  *tuplestore.Store
	reader *tuplestore.Reader
}

func initFunctionScan(_ context.Context, n *plan.FunctionScan, estate *ExecutionState, eflags EFlags) (*FunctionScanState, error) {
	fn, err := evalengine.LookupSetFunc(n.Func, len(n.Args))
	if err != nil {
		return nil, err
	}
	s := &FunctionScanState{fn: fn}
	s.setup(s, n, estate, eflags, fn.Arity())
	s.scan = estate.newSlot(fn.Arity())
	return s, nil
}

// fill evaluates the arguments and runs the function to completion.
func (s *FunctionScanState) fill(ctx context.Context) error {
	n := s.node.(*plan.FunctionScan)
	s.exprCtx.ResetArena()
	s.exprCtx.Bind(nil, nil, nil)
	args := make([]sqltypes.Value, len(n.Args))
	if err := evalengine.EvalKeys(n.Args, s.exprCtx, args); err != nil {
		return err
	}

	s.store = s.estate.newTuplestore("function", s.eflags.has(EFlagBackward|EFlagMark|EFlagRewind))
	s.reader = s.store.NewReader()
	rsinfo := NewReturnSetInfo(s.store, s.fn.Arity())
	switch s.fn.Mode {
	case evalengine.Materialize:
		if err := s.fn.Materialize(args, rsinfo); err != nil {
			return err
		}
	default:
		it, err := s.fn.Start(args)
		if err != nil {
			return err
		}
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			row, err := it.Next()
			if err != nil {
				return err
			}
			if row == nil {
				break
			}
			if err := rsinfo.ReturnRow(row); err != nil {
				return err
			}
		}
		if err := rsinfo.Done(); err != nil {
			return err
		}
	}
	if !rsinfo.IsDone() {
		return vterrors.VT13001(s.fn.Name + " did not complete its result set")
	}
	return nil
}

func (s *FunctionScanState) exec(ctx context.Context) (*slot.Slot, error) {
	if s.store == nil {
		if err := s.fill(ctx); err != nil {
			return nil, err
		}
	}
	for {
		row, err := s.reader.Next(s.estate.Direction)
		if err != nil {
			return nil, err
		}
		if row == nil {
			s.scan.Clear()
			return nil, nil
		}
		s.scan.StoreBorrowed(row, nil)
		s.exprCtx.ResetArena()
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

func (s *FunctionScanState) rescan() error {
	s.scan.Clear()
	if s.store == nil {
		return nil
	}
	n := s.node.(*plan.FunctionScan)
	if s.paramsChanged(n.Args...) {
		err := s.estate.closeTuplestore("function", s.store)
		s.store, s.reader = nil, nil
		return err
	}
	s.reader.Rewind()
	return nil
}

func (s *FunctionScanState) shutdown() error {
	s.scan.Clear()
	err := s.estate.closeTuplestore("function", s.store)
	s.store, s.reader = nil, nil
	return err
}

func (s *FunctionScanState) markPos() error {
	if s.reader == nil {
		return vterrors.VT13001("function scan: mark before the first row")
	}
	s.reader.Mark()
	return nil
}

func (s *FunctionScanState) restrPos() error {
	if s.reader == nil {
		return vterrors.NewErrorf(vterrors.FAILED_PRECONDITION, vterrors.CursorNotMarked, "function scan: restore without mark")
	}
	return s.reader.Restore()
}

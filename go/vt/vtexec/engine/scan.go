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
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

var (
	_ PlanState = (*SeqScanState)(nil)
	_ PlanState = (*IndexScanState)(nil)
	_ marker    = (*SeqScanState)(nil)
	_ marker    = (*IndexScanState)(nil)
)

// storageScan reads rows from a storage cursor. Rows are stored borrowed
// in the scan slot, so their buffer pins are released by the next row or
// by End.
type storageScan struct {
	baseState
	cursor storage.Cursor
	scan   *slot.Slot
	keys   []plan.ScanKey
	// sign is Backward for index scans that walk the index in reverse.
	sign storage.Direction
}

// SeqScanState is the state of a SeqScan node.
type SeqScanState struct {
	storageScan
	rel storage.Relation
}

// IndexScanState is the state of an IndexScan node.
type IndexScanState struct {
	storageScan
	index storage.Index
}

func initSeqScan(ctx context.Context, n *plan.SeqScan, estate *ExecutionState, eflags EFlags) (*SeqScanState, error) {
	if estate.Catalog == nil {
		return nil, vterrors.VT13001("no catalog to resolve " + n.Relation)
	}
	rel, err := estate.Catalog.Relation(n.Relation)
	if err != nil {
		return nil, err
	}
	s := &SeqScanState{rel: rel}
	s.keys = n.Keys
	s.sign = storage.Forward
	s.setup(s, n, estate, eflags, len(rel.Columns()))
	s.scan = estate.newSlot(len(rel.Columns()))
	keys, err := s.evalKeys()
	if err != nil {
		return nil, err
	}
	s.cursor, err = rel.BeginScan(ctx, estate.Direction, estate.Snapshot, keys)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func initIndexScan(ctx context.Context, n *plan.IndexScan, estate *ExecutionState, eflags EFlags) (*IndexScanState, error) {
	if estate.Catalog == nil {
		return nil, vterrors.VT13001("no catalog to resolve " + n.Index)
	}
	idx, err := estate.Catalog.Index(n.Index)
	if err != nil {
		return nil, err
	}
	arity := len(idx.Relation().Columns())
	s := &IndexScanState{index: idx}
	s.keys = n.Keys
	s.sign = storage.Forward
	if n.Backward {
		s.sign = storage.Backward
	}
	s.setup(s, n, estate, eflags, arity)
	s.scan = estate.newSlot(arity)
	keys, err := s.evalKeys()
	if err != nil {
		return nil, err
	}
	s.cursor, err = idx.BeginScan(ctx, estate.Direction*s.sign, estate.Snapshot, keys)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// evalKeys computes the scan keys, which may depend on parameters.
func (s *storageScan) evalKeys() ([]storage.ScanKey, error) {
	if len(s.keys) == 0 {
		return nil, nil
	}
	out := make([]storage.ScanKey, len(s.keys))
	for i, k := range s.keys {
		v, err := k.Value.Eval(s.exprCtx)
		if err != nil {
			return nil, err
		}
		out[i] = storage.ScanKey{Col: k.Col, Op: k.Op, Value: v}
	}
	return out, nil
}

func (s *storageScan) keyExprs() []evalengine.Expr {
	out := make([]evalengine.Expr, len(s.keys))
	for i, k := range s.keys {
		out[i] = k.Value
	}
	return out
}

func (s *storageScan) exec(context.Context) (*slot.Slot, error) {
	dir := s.estate.Direction * s.sign
	for {
		row, pin, id, err := s.cursor.Next(dir)
		if err != nil {
			return nil, err
		}
		if row == nil {
			s.scan.Clear()
			return nil, nil
		}
		s.scan.StoreBorrowed(row, pin)
		s.scan.SetRowID(id)

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

func (s *storageScan) rescan() error {
	s.scan.Clear()
	var keys []storage.ScanKey
	if s.paramsChanged(s.keyExprs()...) {
		var err error
		if keys, err = s.evalKeys(); err != nil {
			return err
		}
	}
	return s.cursor.Rescan(keys)
}

func (s *storageScan) shutdown() error {
	s.scan.Clear()
	if s.cursor == nil {
		return nil
	}
	return s.cursor.End()
}

func (s *storageScan) markPos() error {
	return s.cursor.Mark()
}

func (s *storageScan) restrPos() error {
	return s.cursor.Restore()
}

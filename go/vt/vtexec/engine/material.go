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
	"vitess.io/vtexec/go/vt/vtexec/tuplestore"
)

var (
	_ PlanState = (*MaterialState)(nil)
	_ marker    = (*MaterialState)(nil)
)

// MaterialState reads its whole input into a tuplestore on the first
// Next and returns the stored rows from then on. The store keeps every
// row only when the parent may rewind, scan backward or restore a mark;
// otherwise rows are dropped once read.
type MaterialState struct {
	baseState
	randomAccess bool
	store        *tuplestore.Store
	reader       *tuplestore.Reader
	filled       bool
	scan         *slot.Slot
}

func initMaterial(ctx context.Context, n *plan.Material, estate *ExecutionState, eflags EFlags) (*MaterialState, error) {
	if n.TargetList != nil || len(n.Qual) > 0 {
		return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "Material node cannot project or filter")
	}
	// the input is read once, forward, and never marked
	child, err := initInput(ctx, n, n.Left, estate, eflags&^(EFlagRewind|EFlagBackward|EFlagMark))
	if err != nil {
		return nil, err
	}
	s := &MaterialState{randomAccess: eflags.has(EFlagRewind | EFlagBackward | EFlagMark)}
	s.left = child
	s.setup(s, n, estate, eflags, child.Arity())
	s.store = estate.newTuplestore("material", s.randomAccess)
	s.reader = s.store.NewReader()
	s.scan = estate.newSlot(child.Arity())
	return s, nil
}

// fill spools the whole input. Rows are pulled forward whatever the
// direction of the current scan.
func (s *MaterialState) fill(ctx context.Context) error {
	dir := s.estate.Direction
	s.estate.Direction = storage.Forward
	defer func() { s.estate.Direction = dir }()
	for {
		in, err := s.left.Next(ctx)
		if err != nil {
			return err
		}
		if in == nil {
			break
		}
		if err := s.store.Append(in.Row()); err != nil {
			return err
		}
	}
	s.filled = true
	if s.store.Spilled() {
		s.estate.Logger.DebugS("Material spilled", "rows", s.store.Len(), "path", s.store.Path())
	}
	return nil
}

func (s *MaterialState) exec(ctx context.Context) (*slot.Slot, error) {
	if !s.filled {
		if err := s.fill(ctx); err != nil {
			return nil, err
		}
	}
	row, err := s.reader.Next(s.estate.Direction)
	if err != nil {
		return nil, err
	}
	if !s.randomAccess {
		s.store.Trim()
	}
	if row == nil {
		s.scan.Clear()
		return nil, nil
	}
	s.scan.StoreBorrowed(row, nil)
	return s.scan, nil
}

func (s *MaterialState) rescan() error {
	s.scan.Clear()
	if !s.filled {
		return rescanInput(s.left)
	}
	// the stored rows are still good unless the input changed or some
	// were dropped
	if s.randomAccess && s.left.base().chgParam.None() {
		s.reader.Rewind()
		return nil
	}
	s.filled = false
	if err := s.store.Clear(); err != nil {
		return err
	}
	return rescanInput(s.left)
}

func (s *MaterialState) shutdown() error {
	s.scan.Clear()
	return s.estate.closeTuplestore("material", s.store)
}

func (s *MaterialState) markPos() error {
	s.reader.Mark()
	return nil
}

func (s *MaterialState) restrPos() error {
	return s.reader.Restore()
}

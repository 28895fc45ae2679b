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

	"github.com/dustin/go-humanize"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
	"vitess.io/vtexec/go/vt/vtexec/storage"
	"vitess.io/vtexec/go/vt/vtexec/tuplesort"
)

var (
	_ PlanState = (*SortState)(nil)
	_ marker    = (*SortState)(nil)
	_ bounder   = (*SortState)(nil)
)

// SortState sorts its whole input on the first Next. A parent Limit may
// pass down a bound, in which case only the first rows are kept.
type SortState struct {
	baseState
	comparers []sqltypes.Comparer
	sort      *tuplesort.Sort
	scan      *slot.Slot

	// bound is the number of rows the parent needs, -1 for all of them.
	bound int64
	// sortedBound is the bound the current sort was done with.
	sortedBound int64
}

func initSort(ctx context.Context, n *plan.Sort, estate *ExecutionState, eflags EFlags) (*SortState, error) {
	if n.TargetList != nil || len(n.Qual) > 0 {
		return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "Sort node cannot project or filter")
	}
	child, err := initInput(ctx, n, n.Left, estate, eflags&^(EFlagRewind|EFlagBackward|EFlagMark))
	if err != nil {
		return nil, err
	}
	s := &SortState{bound: -1, sortedBound: -1}
	for _, k := range n.Keys {
		if k.Col < 0 || k.Col >= child.Arity() {
			return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "sort column %d is out of range", k.Col)
		}
		s.comparers = append(s.comparers, sqltypes.Comparer{Col: k.Col, Desc: k.Desc, NullsFirst: k.NullsFirst})
	}
	s.left = child
	s.setup(s, n, estate, eflags, child.Arity())
	s.scan = estate.newSlot(child.Arity())
	return s, nil
}

func (s *SortState) setBound(bound int64) {
	s.bound = bound
}

// boundFor converts a bound to the tuplesort setting. A bounded sort
// cannot go backward past its window or be restored to an arbitrary
// mark, so it is only used when the parent only reads forward.
func (s *SortState) boundFor(bound int64) int {
	if bound < 0 || bound > math.MaxInt32 || s.eflags.has(EFlagBackward|EFlagMark) {
		return 0
	}
	// a zero bound would mean no bound to the tuplesort
	return max(int(bound), 1)
}

func (s *SortState) perform(ctx context.Context) error {
	sort := s.estate.newSort(s.comparers, s.boundFor(s.bound))
	s.sort = sort
	s.sortedBound = s.bound

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
		if err := sort.Put(in.Row()); err != nil {
			return err
		}
	}
	if err := sort.PerformSort(); err != nil {
		return err
	}
	if sort.Spilled() {
		s.estate.Logger.InfoS("Sort spilled to disk", "rows", sort.Len(), "spilled", humanize.IBytes(uint64(sort.SpilledBytes())))
	}
	return nil
}

func (s *SortState) exec(ctx context.Context) (*slot.Slot, error) {
	if s.sort == nil {
		if err := s.perform(ctx); err != nil {
			return nil, err
		}
	}
	row, err := s.sort.Next(s.estate.Direction)
	if err != nil {
		return nil, err
	}
	if row == nil {
		s.scan.Clear()
		return nil, nil
	}
	s.scan.StoreBorrowed(row, nil)
	return s.scan, nil
}

func (s *SortState) closeSort() error {
	if s.sort == nil {
		return nil
	}
	s.estate.metrics.spilled("sort", s.sort.SpilledBytes())
	err := s.sort.Close()
	s.sort = nil
	return err
}

func (s *SortState) rescan() error {
	s.scan.Clear()
	if s.sort == nil {
		return rescanInput(s.left)
	}
	// the sorted rows can be read again if nothing they depend on changed
	if s.left.base().chgParam.None() && s.eflags.has(EFlagRewind|EFlagBackward|EFlagMark) && s.bound == s.sortedBound {
		s.sort.Rescan()
		return nil
	}
	if err := s.closeSort(); err != nil {
		return err
	}
	return rescanInput(s.left)
}

func (s *SortState) shutdown() error {
	s.scan.Clear()
	return s.closeSort()
}

func (s *SortState) markPos() error {
	if s.sort == nil {
		return vterrors.VT13001("sort: mark before the first row")
	}
	s.sort.Mark()
	return nil
}

func (s *SortState) restrPos() error {
	if s.sort == nil {
		return vterrors.NewErrorf(vterrors.FAILED_PRECONDITION, vterrors.CursorNotMarked, "sort: restore without mark")
	}
	return s.sort.Restore()
}

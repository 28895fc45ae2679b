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

// Package tuplesort sorts rows in memory, keeping only the first N rows
// when bounded, or through sorted runs on disk when the input does not
// fit in work-mem. The sorted result is read with a position API that
// supports both directions and mark/restore.
package tuplesort

import (
	"container/heap"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/log"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/storage"
	"vitess.io/vtexec/go/vt/vtexec/tuplestore"
)

// Options configures a Sort.
type Options struct {
	WorkMem  uint64
	Fs       afero.Fs
	TempDir  string
	Compress bool
	// Bound, when positive, is the number of leading rows the caller
	// needs. The sort then keeps at most Bound rows in a heap.
	Bound int
}

type state int8

const (
	loading state = iota
	sortedInMemory
	sortedOnTape
)

// Sort accumulates rows with Put, sorts them with PerformSort and then
// returns them with Next.
type Sort struct {
	opts      Options
	comparers []sqltypes.Comparer
	state     state

	rows     []sqltypes.Row
	memBytes uint64

	// bounded mode
	heap *sortHeap
	seq  int

	// external mode
	runs   []*tuplestore.Store
	result *tuplestore.Store
	reader *tuplestore.Reader

	// position in rows while sortedInMemory, from -1 to len(rows)
	cur            int
	mark           int
	marked         bool
	restorePending bool

	spilledBytes int64
}

// New returns an empty sort ordering rows by the given comparers.
func New(comparers []sqltypes.Comparer, opts Options) *Sort {
	s := &Sort{opts: opts, comparers: comparers}
	if opts.Bound > 0 {
		s.heap = &sortHeap{comparers: comparers, reverse: true}
	}
	return s
}

// Bounded returns true if the sort only keeps the first Bound rows.
func (s *Sort) Bounded() bool { return s.heap != nil }

// Spilled returns true if the sort used sorted runs on disk.
func (s *Sort) Spilled() bool { return len(s.runs) > 0 || s.result != nil }

// SpilledBytes returns the number of bytes written to sorted runs.
func (s *Sort) SpilledBytes() int64 { return s.spilledBytes }

// Put adds a copy of row to the sort.
func (s *Sort) Put(row sqltypes.Row) error {
	if s.state != loading {
		return vterrors.VT13001("tuplesort: put after sort")
	}
	row = sqltypes.CopyRow(row)
	if s.heap != nil {
		heap.Push(s.heap, heapRow{row: row, seq: s.seq})
		s.seq++
		// the heap keeps the largest row on top, so popping drops it
		for s.heap.Len() > s.opts.Bound {
			_ = heap.Pop(s.heap)
		}
		return s.heap.err
	}
	s.rows = append(s.rows, row)
	s.memBytes += uint64(sqltypes.RowSize(row))
	if s.opts.WorkMem > 0 && s.memBytes > s.opts.WorkMem {
		return s.dumpRun()
	}
	return nil
}

func (s *Sort) sortRows() error {
	var err error
	slices.SortStableFunc(s.rows, func(a, b sqltypes.Row) int {
		if err != nil {
			return 0
		}
		c, cerr := sqltypes.CompareRows(s.comparers, a, b)
		if cerr != nil {
			err = cerr
		}
		return c
	})
	return err
}

func (s *Sort) newStore(name string, workMem uint64) *tuplestore.Store {
	return tuplestore.New(tuplestore.Options{
		WorkMem:      workMem,
		Fs:           s.opts.Fs,
		TempDir:      s.opts.TempDir,
		Compress:     s.opts.Compress,
		RandomAccess: true,
		Name:         name,
	})
}

// dumpRun writes the in-memory rows as one sorted run.
func (s *Sort) dumpRun() error {
	if err := s.sortRows(); err != nil {
		return err
	}
	// a work-mem of one byte sends the run to disk right away
	run := s.newStore("sortrun", 1)
	for _, row := range s.rows {
		if err := run.Append(row); err != nil {
			_ = run.Close()
			return err
		}
	}
	s.runs = append(s.runs, run)
	s.spilledBytes += run.SpilledBytes()
	log.DebugS("Sort wrote run", "run", len(s.runs), "rows", len(s.rows), "mem", humanize.IBytes(s.memBytes))
	s.rows = s.rows[:0]
	s.memBytes = 0
	return nil
}

// PerformSort finishes the input. Rows can be read afterwards.
func (s *Sort) PerformSort() error {
	if s.state != loading {
		return vterrors.VT13001("tuplesort: sorted twice")
	}
	switch {
	case s.heap != nil:
		s.heap.reverse = false
		slices.SortFunc(s.heap.rows, s.heap.compare)
		if s.heap.err != nil {
			return s.heap.err
		}
		s.rows = make([]sqltypes.Row, len(s.heap.rows))
		for i, hr := range s.heap.rows {
			s.rows[i] = hr.row
		}
		s.heap = &sortHeap{comparers: s.comparers}
		s.state = sortedInMemory
	case len(s.runs) > 0:
		if len(s.rows) > 0 {
			if err := s.dumpRun(); err != nil {
				return err
			}
		}
		if err := s.merge(); err != nil {
			return err
		}
		s.state = sortedOnTape
	default:
		if err := s.sortRows(); err != nil {
			return err
		}
		s.state = sortedInMemory
	}
	s.cur = -1
	return nil
}

// merge combines the runs into a single random-access store. Ties go to
// the earlier run, which keeps the sort stable.
func (s *Sort) merge() error {
	log.InfoS("Merging sorted runs", "runs", len(s.runs), "spilled", humanize.IBytes(uint64(s.spilledBytes)))
	s.result = s.newStore("sorted", s.opts.WorkMem)
	mh := &mergeHeap{comparers: s.comparers}
	for i, run := range s.runs {
		r := run.NewReader()
		row, err := r.Next(storage.Forward)
		if err != nil {
			return err
		}
		if row != nil {
			mh.items = append(mh.items, mergeItem{row: row, run: i, reader: r})
		}
	}
	heap.Init(mh)
	for mh.Len() > 0 {
		if mh.err != nil {
			return mh.err
		}
		top := &mh.items[0]
		if err := s.result.Append(top.row); err != nil {
			return err
		}
		row, err := top.reader.Next(storage.Forward)
		if err != nil {
			return err
		}
		if row == nil {
			heap.Pop(mh)
			continue
		}
		top.row = row
		heap.Fix(mh, 0)
	}
	if mh.err != nil {
		return mh.err
	}
	s.spilledBytes += s.result.SpilledBytes()
	for _, run := range s.runs {
		if err := run.Close(); err != nil {
			return err
		}
	}
	s.runs = nil
	s.reader = s.result.NewReader()
	return nil
}

// Next returns the next sorted row in dir, or nil past either end.
func (s *Sort) Next(dir storage.Direction) (sqltypes.Row, error) {
	switch s.state {
	case sortedOnTape:
		return s.reader.Next(dir)
	case sortedInMemory:
	default:
		return nil, vterrors.VT13001("tuplesort: read before sort")
	}
	if s.restorePending {
		s.restorePending = false
		s.cur = s.mark
	} else {
		s.cur = min(max(s.cur+int(dir), -1), len(s.rows))
	}
	if s.cur < 0 || s.cur >= len(s.rows) {
		return nil, nil
	}
	return s.rows[s.cur], nil
}

// Mark remembers the current row.
func (s *Sort) Mark() {
	if s.reader != nil {
		s.reader.Mark()
		return
	}
	s.mark = s.cur
	s.marked = true
	s.restorePending = false
}

// Restore makes the next Next return the marked row.
func (s *Sort) Restore() error {
	if s.reader != nil {
		return s.reader.Restore()
	}
	if !s.marked {
		return vterrors.NewErrorf(vterrors.FAILED_PRECONDITION, vterrors.CursorNotMarked, "tuplesort: restore without mark")
	}
	s.restorePending = true
	return nil
}

// Rescan rewinds the sorted output.
func (s *Sort) Rescan() {
	if s.reader != nil {
		s.reader.Rewind()
		return
	}
	s.cur = -1
	s.restorePending = false
}

// Sorted returns true once PerformSort has completed.
func (s *Sort) Sorted() bool { return s.state != loading }

// Len returns the number of sorted rows held in memory, or in the final
// store.
func (s *Sort) Len() int {
	if s.result != nil {
		return s.result.Len()
	}
	return len(s.rows)
}

// Close releases every run and the final store.
func (s *Sort) Close() error {
	var err error
	for _, run := range s.runs {
		if cerr := run.Close(); err == nil {
			err = cerr
		}
	}
	s.runs = nil
	if s.result != nil {
		if cerr := s.result.Close(); err == nil {
			err = cerr
		}
		s.result, s.reader = nil, nil
	}
	s.rows = nil
	s.heap = nil
	return err
}

type heapRow struct {
	row sqltypes.Row
	seq int
}

// sortHeap orders rows on the comparers, ties broken by arrival.
type sortHeap struct {
	rows      []heapRow
	comparers []sqltypes.Comparer
	reverse   bool
	err       error
}

func (sh *sortHeap) compare(a, b heapRow) int {
	if sh.err != nil {
		return 0
	}
	c, err := sqltypes.CompareRows(sh.comparers, a.row, b.row)
	if err != nil {
		sh.err = err
		return 0
	}
	if c == 0 {
		c = a.seq - b.seq
	}
	if sh.reverse {
		c = -c
	}
	return c
}

// Len satisfies sort.Interface and heap.Interface.
func (sh *sortHeap) Len() int { return len(sh.rows) }

// Less satisfies sort.Interface and heap.Interface.
func (sh *sortHeap) Less(i, j int) bool { return sh.compare(sh.rows[i], sh.rows[j]) < 0 }

// Swap satisfies sort.Interface and heap.Interface.
func (sh *sortHeap) Swap(i, j int) { sh.rows[i], sh.rows[j] = sh.rows[j], sh.rows[i] }

// Push satisfies heap.Interface.
func (sh *sortHeap) Push(x any) { sh.rows = append(sh.rows, x.(heapRow)) }

// Pop satisfies heap.Interface.
func (sh *sortHeap) Pop() any {
	n := len(sh.rows)
	x := sh.rows[n-1]
	sh.rows = sh.rows[:n-1]
	return x
}

type mergeItem struct {
	row    sqltypes.Row
	run    int
	reader *tuplestore.Reader
}

type mergeHeap struct {
	items     []mergeItem
	comparers []sqltypes.Comparer
	err       error
}

func (mh *mergeHeap) Len() int { return len(mh.items) }

func (mh *mergeHeap) Less(i, j int) bool {
	c, err := sqltypes.CompareRows(mh.comparers, mh.items[i].row, mh.items[j].row)
	if err != nil {
		mh.err = err
		return false
	}
	if c == 0 {
		return mh.items[i].run < mh.items[j].run
	}
	return c < 0
}

func (mh *mergeHeap) Swap(i, j int) { mh.items[i], mh.items[j] = mh.items[j], mh.items[i] }

func (mh *mergeHeap) Push(x any) { mh.items = append(mh.items, x.(mergeItem)) }

func (mh *mergeHeap) Pop() any {
	n := len(mh.items)
	x := mh.items[n-1]
	mh.items = mh.items[:n-1]
	return x
}

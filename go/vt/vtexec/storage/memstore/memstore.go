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

// Package memstore is an in-memory implementation of the storage
// interfaces. Rows live in fixed-size pages; every row handed to a cursor
// caller pins its page until the pin is released, and the store keeps a
// count of outstanding pins so tests can check that nothing leaks.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

// PageSize is the number of rows per page.
const PageSize = 64

var (
	_ storage.Catalog  = (*Store)(nil)
	_ storage.Relation = (*Table)(nil)
	_ storage.Index    = (*Index)(nil)
	_ storage.Cursor   = (*cursor)(nil)
)

// Store is a catalog of in-memory tables and indexes.
type Store struct {
	mu      sync.Mutex
	tables  map[string]*Table
	indexes map[string]*Index
	// seq is the sequence number of the last insert.
	seq    uint64
	pinned int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tables:  make(map[string]*Table),
		indexes: make(map[string]*Index),
	}
}

type page struct {
	rows []storedRow
	pins int
}

type storedRow struct {
	row sqltypes.Row
	seq uint64
	id  storage.RowID
}

type rowRef struct {
	page *page
	idx  int
}

func (r rowRef) get() *storedRow { return &r.page.rows[r.idx] }

// Table is an in-memory relation.
type Table struct {
	store   *Store
	name    string
	columns []storage.Column
	pages   []*page
	indexes []*Index
	nextID  storage.RowID
}

// CreateTable adds an empty table.
func (s *Store) CreateTable(name string, columns []storage.Column) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; ok {
		return nil, vterrors.Errorf(vterrors.ALREADY_EXISTS, "relation %s already exists", name)
	}
	t := &Table{store: s, name: name, columns: columns}
	s.tables[name] = t
	return t, nil
}

// CreateIndex adds an ordered index on column col of table.
func (s *Store) CreateIndex(name, table string, col int) (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; ok {
		return nil, vterrors.Errorf(vterrors.ALREADY_EXISTS, "index %s already exists", name)
	}
	t, ok := s.tables[table]
	if !ok {
		return nil, noSuchTable(table)
	}
	if col < 0 || col >= len(t.columns) {
		return nil, vterrors.Errorf(vterrors.INVALID_ARGUMENT, "column %d out of range for %s", col, table)
	}
	idx := &Index{
		name:  name,
		table: t,
		col:   col,
		tree:  btree.NewG[indexEntry](16, entryLess),
	}
	for _, p := range t.pages {
		for i := range p.rows {
			idx.insert(rowRef{page: p, idx: i})
		}
	}
	t.indexes = append(t.indexes, idx)
	s.indexes[name] = idx
	return idx, nil
}

// Insert appends rows to a table. Values are cast to the column kinds.
func (s *Store) Insert(table string, rows ...sqltypes.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		return noSuchTable(table)
	}
	for _, row := range rows {
		if len(row) != len(t.columns) {
			return vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.WrongNumberOfColumns, "%s has %d columns, got %d values", table, len(t.columns), len(row))
		}
		stored := make(sqltypes.Row, len(row))
		for i, v := range row {
			cv, err := sqltypes.Cast(v, t.columns[i].Kind)
			if err != nil {
				return err
			}
			stored[i] = cv
		}
		if len(t.pages) == 0 || len(t.pages[len(t.pages)-1].rows) == PageSize {
			t.pages = append(t.pages, &page{rows: make([]storedRow, 0, PageSize)})
		}
		p := t.pages[len(t.pages)-1]
		s.seq++
		t.nextID++
		p.rows = append(p.rows, storedRow{row: stored, seq: s.seq, id: t.nextID})
		for _, idx := range t.indexes {
			idx.insert(rowRef{page: p, idx: len(p.rows) - 1})
		}
	}
	return nil
}

// Snapshot returns a snapshot that sees every row inserted so far.
func (s *Store) Snapshot() storage.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storage.Snapshot(s.seq)
}

// PinnedBuffers returns the number of pins not yet released.
func (s *Store) PinnedBuffers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinned
}

// Relation implements storage.Catalog.
func (s *Store) Relation(name string) (storage.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, noSuchTable(name)
	}
	return t, nil
}

// Index implements storage.Catalog.
func (s *Store) Index(name string) (storage.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[name]
	if !ok {
		return nil, vterrors.NewErrorf(vterrors.NOT_FOUND, vterrors.NoSuchIndex, "index %s does not exist", name)
	}
	return idx, nil
}

func noSuchTable(name string) error {
	return vterrors.NewErrorf(vterrors.NOT_FOUND, vterrors.NoSuchTable, "relation %s does not exist", name)
}

type pagePin struct {
	store    *Store
	page     *page
	released bool
}

func (s *Store) pin(p *page) *pagePin {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.pins++
	s.pinned++
	return &pagePin{store: s, page: p}
}

// Release implements storage.Pin. Releasing a pin twice panics.
func (pp *pagePin) Release() {
	pp.store.mu.Lock()
	defer pp.store.mu.Unlock()
	if pp.released {
		panic("memstore: buffer pin released twice")
	}
	pp.released = true
	pp.page.pins--
	pp.store.pinned--
}

func (t *Table) Name() string { return t.name }

func (t *Table) Columns() []storage.Column { return t.columns }

// BeginScan implements storage.Relation.
func (t *Table) BeginScan(ctx context.Context, dir storage.Direction, snap storage.Snapshot, keys []storage.ScanKey) (storage.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := &cursor{
		store: t.store,
		dir:   dir,
		snap:  snap,
		keys:  keys,
		collect: func(snap storage.Snapshot, keys []storage.ScanKey) ([]rowRef, error) {
			return t.collect(snap, keys)
		},
	}
	if err := c.reset(); err != nil {
		return nil, err
	}
	return c, nil
}

func (t *Table) collect(snap storage.Snapshot, keys []storage.ScanKey) ([]rowRef, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var refs []rowRef
	for _, p := range t.pages {
		for i := range p.rows {
			r := &p.rows[i]
			if r.seq > uint64(snap) {
				continue
			}
			ok, err := storage.MatchesAll(keys, r.row)
			if err != nil {
				return nil, err
			}
			if ok {
				refs = append(refs, rowRef{page: p, idx: i})
			}
		}
	}
	return refs, nil
}

type cursor struct {
	store   *Store
	dir     storage.Direction
	snap    storage.Snapshot
	keys    []storage.ScanKey
	collect func(storage.Snapshot, []storage.ScanKey) ([]rowRef, error)

	refs []rowRef
	// cur goes from -1 (before the first row) to len(refs) (after the last).
	cur            int
	mark           int
	marked         bool
	restorePending bool
	ended          bool
}

func (c *cursor) reset() error {
	refs, err := c.collect(c.snap, c.keys)
	if err != nil {
		return err
	}
	c.refs = refs
	c.cur = -1
	if c.dir == storage.Backward {
		c.cur = len(refs)
	}
	c.marked = false
	c.restorePending = false
	return nil
}

func (c *cursor) Next(dir storage.Direction) (sqltypes.Row, storage.Pin, storage.RowID, error) {
	if c.ended {
		return nil, nil, 0, vterrors.VT13001("memstore: cursor used after End")
	}
	if c.restorePending {
		c.restorePending = false
		c.cur = c.mark
	} else {
		c.cur = min(max(c.cur+int(dir), -1), len(c.refs))
	}
	if c.cur < 0 || c.cur >= len(c.refs) {
		return nil, nil, 0, nil
	}
	ref := c.refs[c.cur]
	r := ref.get()
	return r.row, c.store.pin(ref.page), r.id, nil
}

func (c *cursor) Mark() error {
	c.mark = c.cur
	c.marked = true
	return nil
}

func (c *cursor) Restore() error {
	if !c.marked {
		return vterrors.NewErrorf(vterrors.FAILED_PRECONDITION, vterrors.CursorNotMarked, "memstore: restore without mark")
	}
	c.restorePending = true
	return nil
}

func (c *cursor) Rescan(keys []storage.ScanKey) error {
	if keys != nil {
		c.keys = keys
	}
	return c.reset()
}

func (c *cursor) End() error {
	c.ended = true
	c.refs = nil
	return nil
}

func (s *Store) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("memstore(%d tables, %d indexes)", len(s.tables), len(s.indexes))
}

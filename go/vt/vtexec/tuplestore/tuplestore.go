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

// Package tuplestore implements a spooled row store with any number of
// independent read pointers. Rows are kept in memory until the store
// outgrows its work-mem budget, after which every row is moved to a
// temporary file of compressed blocks.
package tuplestore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/gammazero/deque"
	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/log"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

// blockSize is the uncompressed size at which a spill block is flushed.
const blockSize = 64 << 10

const (
	codecRaw    byte = 0
	codecSnappy byte = 1
)

// Options configures a Store.
type Options struct {
	// WorkMem is the number of bytes kept in memory before spilling.
	// Zero means no limit.
	WorkMem uint64
	// Fs is the filesystem for spill files. Defaults to the OS filesystem.
	Fs afero.Fs
	// TempDir is the directory of spill files. Defaults to os.TempDir().
	TempDir string
	// Compress compresses spill blocks with snappy.
	Compress bool
	// RandomAccess keeps every row readable for the life of the store.
	// Without it, Trim may drop rows no reader can reach anymore.
	RandomAccess bool
	// Name is used in log messages.
	Name string
}

type block struct {
	offset int64
	length int
	// first is the row number of the first row in the block.
	first int
	n     int
}

// Store is a spooled row store. It is not safe for concurrent use.
type Store struct {
	opts Options

	// mem holds rows [trimmed, count) while the store is in memory.
	mem      deque.Deque[sqltypes.Row]
	memBytes uint64
	count    int
	trimmed  int

	spilled      bool
	file         afero.File
	path         string
	fileSize     int64
	blocks       []block
	pending      []byte
	pendingFirst int
	pendingRows  []sqltypes.Row
	cacheBlock   int
	cacheRows    []sqltypes.Row

	readers []*Reader
	closed  bool
}

// New returns an empty store.
func New(opts Options) *Store {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Name == "" {
		opts.Name = "tuplestore"
	}
	return &Store{opts: opts, cacheBlock: -1}
}

// Len returns the number of rows appended since the last Clear.
func (s *Store) Len() int { return s.count }

// Spilled returns true once rows have moved to a temporary file.
func (s *Store) Spilled() bool { return s.spilled }

// SpilledBytes returns the size of the temporary file.
func (s *Store) SpilledBytes() int64 { return s.fileSize + int64(len(s.pending)) }

// Path returns the temporary file name, or "" while in memory.
func (s *Store) Path() string { return s.path }

// Append adds a copy of row at the end of the store.
func (s *Store) Append(row sqltypes.Row) error {
	if s.closed {
		return vterrors.VT13001("append to a closed tuplestore")
	}
	row = sqltypes.CopyRow(row)
	if s.spilled {
		s.count++
		return s.appendPending(row)
	}
	s.mem.PushBack(row)
	s.count++
	s.memBytes += uint64(sqltypes.RowSize(row))
	if s.opts.WorkMem > 0 && s.memBytes > s.opts.WorkMem {
		return s.spill()
	}
	return nil
}

func (s *Store) spill() error {
	s.path = filepath.Join(s.opts.TempDir, "vtexec-"+s.opts.Name+"-"+uuid.NewString()+".tmp")
	f, err := s.opts.Fs.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		s.path = ""
		return vterrors.Wrapf(err, "creating spill file for %s", s.opts.Name)
	}
	s.file = f
	s.spilled = true
	s.pendingFirst = s.trimmed

	log.InfoS("Spilling tuplestore to disk", "name", s.opts.Name, "rows", s.mem.Len(), "mem", humanize.IBytes(s.memBytes), "path", s.path)
	for s.mem.Len() > 0 {
		if err := s.appendPending(s.mem.PopFront()); err != nil {
			return err
		}
	}
	s.memBytes = 0
	return nil
}

func (s *Store) appendPending(row sqltypes.Row) error {
	s.pending = sqltypes.EncodeRow(s.pending, row)
	s.pendingRows = append(s.pendingRows, row)
	if len(s.pending) >= blockSize {
		return s.flush()
	}
	return nil
}

// flush writes the pending rows as one block.
func (s *Store) flush() error {
	if len(s.pendingRows) == 0 {
		return nil
	}
	codec, payload := codecRaw, s.pending
	if s.opts.Compress {
		codec, payload = codecSnappy, snappy.Encode(nil, s.pending)
	}
	buf := make([]byte, 5, 5+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	buf[4] = codec
	buf = append(buf, payload...)
	if _, err := s.file.WriteAt(buf, s.fileSize); err != nil {
		return vterrors.Wrapf(err, "writing %s", s.path)
	}
	s.blocks = append(s.blocks, block{offset: s.fileSize, length: len(buf), first: s.pendingFirst, n: len(s.pendingRows)})
	s.fileSize += int64(len(buf))
	s.pendingFirst += len(s.pendingRows)
	s.pending = s.pending[:0]
	s.pendingRows = s.pendingRows[:0]
	return nil
}

// row returns row number i.
func (s *Store) row(i int) (sqltypes.Row, error) {
	if i < s.trimmed {
		return nil, vterrors.VT13001("tuplestore: read of a trimmed row")
	}
	if !s.spilled {
		return s.mem.At(i - s.trimmed), nil
	}
	if i >= s.pendingFirst {
		return s.pendingRows[i-s.pendingFirst], nil
	}
	b := sort.Search(len(s.blocks), func(j int) bool { return s.blocks[j].first+s.blocks[j].n > i })
	if b != s.cacheBlock {
		rows, err := s.readBlock(s.blocks[b])
		if err != nil {
			return nil, err
		}
		s.cacheBlock, s.cacheRows = b, rows
	}
	return s.cacheRows[i-s.blocks[b].first], nil
}

func (s *Store) readBlock(b block) ([]sqltypes.Row, error) {
	buf := make([]byte, b.length)
	if _, err := s.file.ReadAt(buf, b.offset); err != nil {
		return nil, vterrors.Wrapf(err, "reading %s", s.path)
	}
	size := binary.LittleEndian.Uint32(buf)
	if int(size) != b.length-5 {
		return nil, vterrors.Errorf(vterrors.DATA_LOSS, "corrupt block at offset %d of %s", b.offset, s.path)
	}
	payload := buf[5:]
	if buf[4] == codecSnappy {
		var err error
		if payload, err = snappy.Decode(nil, payload); err != nil {
			return nil, vterrors.Wrapf(err, "decompressing block of %s", s.path)
		}
	}
	rows := make([]sqltypes.Row, 0, b.n)
	for len(payload) > 0 {
		row, n, err := sqltypes.DecodeRow(payload)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		payload = payload[n:]
	}
	if len(rows) != b.n {
		return nil, vterrors.Errorf(vterrors.DATA_LOSS, "block at offset %d of %s has %d rows, expected %d", b.offset, s.path, len(rows), b.n)
	}
	return rows, nil
}

// Trim drops in-memory rows that no reader can return anymore. It does
// nothing for random-access stores and once the store has spilled.
func (s *Store) Trim() {
	if s.opts.RandomAccess || s.spilled || len(s.readers) == 0 {
		return
	}
	keep := s.count
	for _, r := range s.readers {
		keep = min(keep, r.oldestNeeded())
	}
	for s.trimmed < keep && s.mem.Len() > 0 {
		row := s.mem.PopFront()
		s.memBytes -= uint64(sqltypes.RowSize(row))
		s.trimmed++
	}
}

// Clear drops every row and removes the temporary file. Readers are
// rewound. The store can be reused.
func (s *Store) Clear() error {
	err := s.removeFile()
	s.mem.Clear()
	s.memBytes = 0
	s.count = 0
	s.trimmed = 0
	s.spilled = false
	s.blocks = nil
	s.pending = nil
	s.pendingRows = nil
	s.pendingFirst = 0
	s.cacheBlock, s.cacheRows = -1, nil
	for _, r := range s.readers {
		r.Rewind()
		r.marked = false
	}
	return err
}

// Close releases the store. The temporary file is removed exactly once;
// closing twice is harmless.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	err := s.Clear()
	s.closed = true
	s.readers = nil
	return err
}

func (s *Store) removeFile() error {
	if s.file == nil {
		return nil
	}
	f, path := s.file, s.path
	s.file, s.path, s.fileSize = nil, "", 0
	err := f.Close()
	if rmErr := s.opts.Fs.Remove(path); err == nil {
		err = rmErr
	}
	if err != nil {
		return vterrors.Wrapf(err, "removing %s", path)
	}
	return nil
}

// Reader is a read pointer into a Store.
type Reader struct {
	s *Store
	// cur is the last row returned, or -1 before the first row. Once a
	// forward read runs past the end, atEOF is set and cur stays on the
	// last row so that rows appended later are still returned.
	cur   int
	atEOF bool

	mark    int
	marked  bool
	restore bool
}

// NewReader adds a read pointer positioned before the first row.
func (s *Store) NewReader() *Reader {
	r := &Reader{s: s, cur: -1}
	s.readers = append(s.readers, r)
	return r
}

func (r *Reader) oldestNeeded() int {
	oldest := max(r.cur, 0)
	if r.marked {
		oldest = min(oldest, max(r.mark, 0))
	}
	return oldest
}

// Next moves one row in dir and returns it, or nil past either end.
func (r *Reader) Next(dir storage.Direction) (sqltypes.Row, error) {
	s := r.s
	if s.closed {
		return nil, vterrors.VT13001("read from a closed tuplestore")
	}
	if r.restore {
		r.restore = false
		r.atEOF = false
		r.cur = r.mark
		if r.cur >= 0 && r.cur < s.count {
			return s.row(r.cur)
		}
		return nil, nil
	}
	switch dir {
	case storage.Forward:
		if r.cur+1 < s.count {
			r.cur++
			r.atEOF = false
			return s.row(r.cur)
		}
		r.cur = s.count - 1
		r.atEOF = true
		return nil, nil
	case storage.Backward:
		if r.atEOF {
			r.atEOF = false
			if r.cur >= 0 {
				return s.row(r.cur)
			}
			return nil, nil
		}
		if r.cur <= 0 {
			r.cur = -1
			return nil, nil
		}
		if r.cur-1 < s.trimmed {
			return nil, vterrors.VT13001("tuplestore: backward read of a trimmed row")
		}
		r.cur--
		return s.row(r.cur)
	}
	if r.cur >= 0 && !r.atEOF {
		return s.row(r.cur)
	}
	return nil, nil
}

// AtEOF returns true if the last forward read ran past the end.
func (r *Reader) AtEOF() bool { return r.atEOF }

// Rewind moves the reader before the first row.
func (r *Reader) Rewind() {
	r.cur = -1
	r.atEOF = false
	r.restore = false
}

// Mark remembers the current row.
func (r *Reader) Mark() {
	r.mark = r.cur
	r.marked = true
	r.restore = false
}

// Restore makes the next Next, in either direction, return the marked row.
func (r *Reader) Restore() error {
	if !r.marked {
		return vterrors.NewErrorf(vterrors.FAILED_PRECONDITION, vterrors.CursorNotMarked, "tuplestore: restore without mark")
	}
	r.restore = true
	return nil
}

// CopyFrom positions r where other is.
func (r *Reader) CopyFrom(other *Reader) {
	r.cur, r.atEOF = other.cur, other.atEOF
	r.mark, r.marked, r.restore = other.mark, other.marked, other.restore
}

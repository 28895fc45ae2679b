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

package memstore

import (
	"context"

	"github.com/google/btree"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

// Index is an ordered index on one column of a Table.
type Index struct {
	name  string
	table *Table
	col   int
	tree  *btree.BTreeG[indexEntry]
}

type indexEntry struct {
	key sqltypes.Value
	id  storage.RowID
	ref rowRef
}

// entryLess orders entries by key, NULLs first, then by row id so that
// duplicate keys keep insertion order. Keys of incomparable kinds are
// ordered by kind.
func entryLess(a, b indexEntry) bool {
	c, err := sqltypes.NullsafeCompare(a.key, b.key)
	if err != nil {
		return a.key.Kind() < b.key.Kind()
	}
	if c != 0 {
		return c < 0
	}
	return a.id < b.id
}

func (idx *Index) insert(ref rowRef) {
	r := ref.get()
	idx.tree.ReplaceOrInsert(indexEntry{key: r.row[idx.col], id: r.id, ref: ref})
}

func (idx *Index) Name() string { return idx.name }

func (idx *Index) Relation() storage.Relation { return idx.table }

func (idx *Index) Column() int { return idx.col }

// BeginScan implements storage.Index. Scan keys apply to the indexed
// column whatever their Col.
func (idx *Index) BeginScan(ctx context.Context, dir storage.Direction, snap storage.Snapshot, keys []storage.ScanKey) (storage.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := &cursor{
		store:   idx.table.store,
		dir:     dir,
		snap:    snap,
		keys:    keys,
		collect: idx.collect,
	}
	if err := c.reset(); err != nil {
		return nil, err
	}
	return c, nil
}

func (idx *Index) collect(snap storage.Snapshot, keys []storage.ScanKey) ([]rowRef, error) {
	idx.table.store.mu.Lock()
	defer idx.table.store.mu.Unlock()

	lower, hasLower := lowerBound(keys)
	var refs []rowRef
	var err error
	iter := func(e indexEntry) bool {
		r := e.ref.get()
		if r.seq > uint64(snap) {
			return true
		}
		for _, k := range keys {
			var ok bool
			ok, err = k.Matches(e.key)
			if err != nil {
				return false
			}
			if !ok {
				if pastUpperBound(k, e.key) {
					return false
				}
				return true
			}
		}
		refs = append(refs, e.ref)
		return true
	}
	if hasLower {
		idx.tree.AscendGreaterOrEqual(indexEntry{key: lower}, iter)
	} else {
		idx.tree.Ascend(iter)
	}
	return refs, err
}

// lowerBound returns the smallest key value the scan can match.
func lowerBound(keys []storage.ScanKey) (sqltypes.Value, bool) {
	var lower sqltypes.Value
	found := false
	for _, k := range keys {
		switch k.Op {
		case storage.KeyEqual, storage.KeyGreater, storage.KeyGreaterEqual:
			if k.Value.IsNull() {
				continue
			}
			if !found {
				lower, found = k.Value, true
				continue
			}
			if c, err := sqltypes.NullsafeCompare(k.Value, lower); err == nil && c > 0 {
				lower = k.Value
			}
		}
	}
	return lower, found
}

// pastUpperBound is true when no later entry can satisfy k.
func pastUpperBound(k storage.ScanKey, v sqltypes.Value) bool {
	if v.IsNull() || k.Value.IsNull() {
		return false
	}
	c, err := sqltypes.NullsafeCompare(v, k.Value)
	if err != nil {
		return false
	}
	switch k.Op {
	case storage.KeyEqual, storage.KeyLessEqual:
		return c > 0
	case storage.KeyLess:
		return c >= 0
	}
	return false
}

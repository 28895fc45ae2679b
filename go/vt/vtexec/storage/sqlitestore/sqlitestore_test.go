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

package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/test/utils"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Exec(ctx, "CREATE TABLE t (id INTEGER, name TEXT, price NUMERIC(10,2))"))
	require.NoError(t, s.Exec(ctx, "CREATE INDEX t_name ON t (name)"))
	require.NoError(t, s.Exec(ctx, "INSERT INTO t VALUES (1, 'c', 1.5), (2, 'a', NULL), (3, 'b', 2), (4, NULL, 3)"))
	return s
}

func readAll(t *testing.T, c storage.Cursor, dir storage.Direction) []sqltypes.Row {
	t.Helper()
	var out []sqltypes.Row
	for {
		row, pin, _, err := c.Next(dir)
		require.NoError(t, err)
		require.Nil(t, pin)
		if row == nil {
			return out
		}
		out = append(out, row)
	}
}

func TestRelationScan(t *testing.T) {
	s := openTestStore(t)
	rel, err := s.Relation("t")
	require.NoError(t, err)
	assert.Equal(t, []storage.Column{
		{Name: "id", Kind: sqltypes.Int64},
		{Name: "name", Kind: sqltypes.Text},
		{Name: "price", Kind: sqltypes.Decimal},
	}, rel.Columns())

	c, err := rel.BeginScan(context.Background(), storage.Forward, storage.Latest, []storage.ScanKey{
		{Col: 0, Op: storage.KeyGreaterEqual, Value: sqltypes.NewInt64(2)},
	})
	require.NoError(t, err)
	rows := readAll(t, c, storage.Forward)
	assert.Equal(t, "(2, \"a\", NULL)\n(3, \"b\", 2)\n(4, NULL, 3)\n", sqltypes.PrintRows(rows))

	require.NoError(t, c.Rescan([]storage.ScanKey{{Col: 1, Op: storage.KeyEqual, Value: sqltypes.NewText("c")}}))
	rows = readAll(t, c, storage.Forward)
	require.Len(t, rows, 1)
	assert.Equal(t, sqltypes.Decimal, rows[0][2].Kind())
	require.NoError(t, c.End())
}

func TestIndexScan(t *testing.T) {
	s := openTestStore(t)
	idx, err := s.Index("t_name")
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Column())

	c, err := idx.BeginScan(context.Background(), storage.Backward, storage.Latest, nil)
	require.NoError(t, err)
	var ids []int64
	for _, row := range readAll(t, c, storage.Backward) {
		ids = append(ids, row[0].Int64())
	}
	// SQLite sorts NULL first, so walking backwards ends with it
	assert.Equal(t, []int64{1, 3, 2, 4}, ids)

	_, err = s.Index("nope")
	assert.Equal(t, vterrors.NoSuchIndex, vterrors.ErrState(err))
	_, err = s.Relation("nope")
	assert.Equal(t, vterrors.NoSuchTable, vterrors.ErrState(err))
}

func TestCursorMarkRestore(t *testing.T) {
	s := openTestStore(t)
	rel, err := s.Relation("t")
	require.NoError(t, err)
	c, err := rel.BeginScan(context.Background(), storage.Forward, storage.Latest, nil)
	require.NoError(t, err)

	row, _, _, err := c.Next(storage.Forward)
	require.NoError(t, err)
	assert.EqualValues(t, 1, row[0].Int64())
	require.NoError(t, c.Mark())
	_, _, _, _ = c.Next(storage.Forward)
	_, _, _, _ = c.Next(storage.Forward)
	require.NoError(t, c.Restore())

	row, _, id, err := c.Next(storage.Forward)
	require.NoError(t, err)
	assert.EqualValues(t, 1, row[0].Int64())
	assert.EqualValues(t, 1, id)
}

func TestCloseStopsConnections(t *testing.T) {
	ctx := utils.LeakCheckContext(t)
	s, err := Open(filepath.Join(t.TempDir(), "leak.db"))
	require.NoError(t, err)
	require.NoError(t, s.Exec(ctx, "CREATE TABLE t (id INTEGER)"))
	require.NoError(t, s.Exec(ctx, "INSERT INTO t VALUES (1), (2)"))

	rel, err := s.Relation("t")
	require.NoError(t, err)
	c, err := rel.BeginScan(ctx, storage.Forward, storage.Latest, nil)
	require.NoError(t, err)
	assert.Len(t, readAll(t, c, storage.Forward), 2)
	require.NoError(t, c.End())
	require.NoError(t, s.Close())
}

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

// Package sqlitestore exposes the tables of a SQLite database through the
// storage interfaces. Scans read their whole result when they start, so
// rows are owned and carry no pins.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/log"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

var (
	_ storage.Catalog  = (*Store)(nil)
	_ storage.Relation = (*relation)(nil)
	_ storage.Index    = (*index)(nil)
	_ storage.Cursor   = (*cursor)(nil)
)

// Store is a catalog backed by a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, vterrors.Wrapf(err, "opening %s", path)
	}
	// one connection, so that in-memory databases are not per-connection
	db.SetMaxOpenConns(1)
	log.Infof("Opened sqlite database %s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exec runs a statement against the database.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// kindOf maps a declared SQLite column type to a value kind, following
// the SQLite type affinity rules.
func kindOf(declared string) sqltypes.Kind {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "BOOL"):
		return sqltypes.Bool
	case strings.Contains(t, "INT"):
		return sqltypes.Int64
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return sqltypes.Text
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return sqltypes.Float64
	case strings.Contains(t, "DEC"), strings.Contains(t, "NUM"):
		return sqltypes.Decimal
	}
	return sqltypes.Text
}

// Relation implements storage.Catalog.
func (s *Store) Relation(name string) (storage.Relation, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name)))
	if err != nil {
		return nil, vterrors.Wrapf(err, "reading columns of %s", name)
	}
	defer rows.Close()

	rel := &relation{store: s, name: name}
	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		rel.columns = append(rel.columns, storage.Column{Name: colName, Kind: kindOf(colType)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(rel.columns) == 0 {
		return nil, vterrors.NewErrorf(vterrors.NOT_FOUND, vterrors.NoSuchTable, "relation %s does not exist", name)
	}
	return rel, nil
}

// Index implements storage.Catalog. Only single-column indexes can be
// scanned.
func (s *Store) Index(name string) (storage.Index, error) {
	var table string
	err := s.db.QueryRow("SELECT tbl_name FROM sqlite_master WHERE type = 'index' AND name = ?", name).Scan(&table)
	if err == sql.ErrNoRows {
		return nil, vterrors.NewErrorf(vterrors.NOT_FOUND, vterrors.NoSuchIndex, "index %s does not exist", name)
	}
	if err != nil {
		return nil, vterrors.Wrapf(err, "looking up index %s", name)
	}
	r, err := s.Relation(table)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(name)))
	if err != nil {
		return nil, vterrors.Wrapf(err, "reading index %s", name)
	}
	defer rows.Close()
	var cols []int
	for rows.Next() {
		var (
			seqno, cid int
			colName    sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		cols = append(cols, cid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) != 1 || cols[0] < 0 {
		return nil, vterrors.VT12001(fmt.Sprintf("index %s is not a single-column index", name))
	}
	return &index{name: name, rel: r.(*relation), col: cols[0]}, nil
}

type relation struct {
	store   *Store
	name    string
	columns []storage.Column
}

func (r *relation) Name() string { return r.name }

func (r *relation) Columns() []storage.Column { return r.columns }

// BeginScan implements storage.Relation. SQLite has no snapshots of its
// own here; every committed row is visible.
func (r *relation) BeginScan(ctx context.Context, dir storage.Direction, _ storage.Snapshot, keys []storage.ScanKey) (storage.Cursor, error) {
	return r.store.newCursor(ctx, r, -1, dir, keys)
}

type index struct {
	name string
	rel  *relation
	col  int
}

func (idx *index) Name() string { return idx.name }

func (idx *index) Relation() storage.Relation { return idx.rel }

func (idx *index) Column() int { return idx.col }

// BeginScan implements storage.Index.
func (idx *index) BeginScan(ctx context.Context, dir storage.Direction, _ storage.Snapshot, keys []storage.ScanKey) (storage.Cursor, error) {
	return idx.rel.store.newCursor(ctx, idx.rel, idx.col, dir, keys)
}

// newCursor starts a scan in rowid order, or in the order of column
// indexCol when it is not negative. Keys of index scans always apply to
// indexCol.
func (s *Store) newCursor(ctx context.Context, rel *relation, indexCol int, dir storage.Direction, keys []storage.ScanKey) (*cursor, error) {
	c := &cursor{ctx: ctx, store: s, rel: rel, indexCol: indexCol, dir: dir, keys: keys}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

type cursor struct {
	ctx      context.Context
	store    *Store
	rel      *relation
	indexCol int
	dir      storage.Direction
	keys     []storage.ScanKey

	rows []sqltypes.Row
	ids  []storage.RowID
	// cur goes from -1 (before the first row) to len(rows) (after the last).
	cur            int
	mark           int
	marked         bool
	restorePending bool
	ended          bool
}

func (c *cursor) query() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT rowid")
	for _, col := range c.rel.columns {
		sb.WriteString(", ")
		sb.WriteString(quoteIdent(col.Name))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(c.rel.name))
	var args []any
	for i, k := range c.keys {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		col := k.Col
		if c.indexCol >= 0 {
			col = c.indexCol
		}
		sb.WriteString(quoteIdent(c.rel.columns[col].Name))
		sb.WriteString(" ")
		sb.WriteString(k.Op.String())
		sb.WriteString(" ?")
		args = append(args, toDriver(k.Value))
	}
	sb.WriteString(" ORDER BY ")
	if c.indexCol >= 0 {
		sb.WriteString(quoteIdent(c.rel.columns[c.indexCol].Name))
		sb.WriteString(", ")
	}
	sb.WriteString("rowid")
	return sb.String(), args
}

func toDriver(v sqltypes.Value) any {
	switch v.Kind() {
	case sqltypes.Null:
		return nil
	case sqltypes.Bool:
		return v.Bool()
	case sqltypes.Int64:
		return v.Int64()
	case sqltypes.Float64:
		return v.Float64()
	}
	return v.String()
}

func fromDriver(raw any, kind sqltypes.Kind) (sqltypes.Value, error) {
	var v sqltypes.Value
	switch raw := raw.(type) {
	case nil:
		return sqltypes.NULL, nil
	case int64:
		v = sqltypes.NewInt64(raw)
	case float64:
		v = sqltypes.NewFloat64(raw)
	case bool:
		v = sqltypes.NewBool(raw)
	case []byte:
		v = sqltypes.NewText(string(raw))
	case string:
		v = sqltypes.NewText(raw)
	default:
		v = sqltypes.NewText(fmt.Sprint(raw))
	}
	return sqltypes.Cast(v, kind)
}

func (c *cursor) load() error {
	q, args := c.query()
	rows, err := c.store.db.QueryContext(c.ctx, q, args...)
	if err != nil {
		return vterrors.Wrapf(err, "scanning %s", c.rel.name)
	}
	defer rows.Close()

	c.rows, c.ids = nil, nil
	raw := make([]any, len(c.rel.columns)+1)
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		row := make(sqltypes.Row, len(c.rel.columns))
		for i, col := range c.rel.columns {
			if row[i], err = fromDriver(raw[i+1], col.Kind); err != nil {
				return err
			}
		}
		id, _ := raw[0].(int64)
		c.rows = append(c.rows, row)
		c.ids = append(c.ids, storage.RowID(id))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	c.cur = -1
	if c.dir == storage.Backward {
		c.cur = len(c.rows)
	}
	c.marked = false
	c.restorePending = false
	return nil
}

func (c *cursor) Next(dir storage.Direction) (sqltypes.Row, storage.Pin, storage.RowID, error) {
	if c.ended {
		return nil, nil, 0, vterrors.VT13001("sqlitestore: cursor used after End")
	}
	if c.restorePending {
		c.restorePending = false
		c.cur = c.mark
	} else {
		c.cur = min(max(c.cur+int(dir), -1), len(c.rows))
	}
	if c.cur < 0 || c.cur >= len(c.rows) {
		return nil, nil, 0, nil
	}
	return c.rows[c.cur], nil, c.ids[c.cur], nil
}

func (c *cursor) Mark() error {
	c.mark = c.cur
	c.marked = true
	return nil
}

func (c *cursor) Restore() error {
	if !c.marked {
		return vterrors.NewErrorf(vterrors.FAILED_PRECONDITION, vterrors.CursorNotMarked, "sqlitestore: restore without mark")
	}
	c.restorePending = true
	return nil
}

func (c *cursor) Rescan(keys []storage.ScanKey) error {
	if keys != nil {
		c.keys = keys
	}
	return c.load()
}

func (c *cursor) End() error {
	c.ended = true
	c.rows, c.ids = nil, nil
	return nil
}

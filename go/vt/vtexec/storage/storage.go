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

// Package storage declares the narrow interfaces through which the
// executor reads rows. Physical row access, visibility and locking are
// the business of the implementations.
package storage

//go:generate mockgen -destination=mock_storage.go -package=storage . Catalog,Relation,Index,Cursor

import (
	"context"
	"math"

	"vitess.io/vtexec/go/sqltypes"
)

// Direction is the direction of a scan.
type Direction int8

const (
	Backward   Direction = -1
	NoMovement Direction = 0
	Forward    Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Backward:
		return "backward"
	case NoMovement:
		return "no movement"
	case Forward:
		return "forward"
	}
	return "invalid"
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction { return -d }

// Snapshot selects which rows are visible to a scan: a row is visible if
// it was inserted at or before the snapshot.
type Snapshot uint64

// Latest sees every committed row.
const Latest Snapshot = math.MaxUint64

// RowID identifies a row within its relation.
type RowID uint64

// Pin guards a buffer that a borrowed row points into. Release must be
// called exactly once.
type Pin interface {
	Release()
}

// KeyOp is the comparison of a scan key.
type KeyOp int8

const (
	KeyEqual KeyOp = iota
	KeyLess
	KeyLessEqual
	KeyGreater
	KeyGreaterEqual
)

func (op KeyOp) String() string {
	switch op {
	case KeyEqual:
		return "="
	case KeyLess:
		return "<"
	case KeyLessEqual:
		return "<="
	case KeyGreater:
		return ">"
	case KeyGreaterEqual:
		return ">="
	}
	return "?"
}

// KeyOpFromString is the inverse of KeyOp.String.
func KeyOpFromString(s string) (KeyOp, bool) {
	for op := KeyEqual; op <= KeyGreaterEqual; op++ {
		if op.String() == s {
			return op, true
		}
	}
	return 0, false
}

// ScanKey restricts a scan to rows whose column Col satisfies
// `Col Op Value`. For index scans Col is ignored and the index column is
// used. A NULL Value matches nothing.
type ScanKey struct {
	Col   int
	Op    KeyOp
	Value sqltypes.Value
}

// Matches checks a single value against the key.
func (k ScanKey) Matches(v sqltypes.Value) (bool, error) {
	if v.IsNull() || k.Value.IsNull() {
		return false, nil
	}
	c, err := sqltypes.NullsafeCompare(v, k.Value)
	if err != nil {
		return false, err
	}
	switch k.Op {
	case KeyEqual:
		return c == 0, nil
	case KeyLess:
		return c < 0, nil
	case KeyLessEqual:
		return c <= 0, nil
	case KeyGreater:
		return c > 0, nil
	case KeyGreaterEqual:
		return c >= 0, nil
	}
	return false, nil
}

// MatchesAll applies every key to a row.
func MatchesAll(keys []ScanKey, row sqltypes.Row) (bool, error) {
	for _, k := range keys {
		ok, err := k.Matches(row[k.Col])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Column describes one column of a relation.
type Column struct {
	Name string
	Kind sqltypes.Kind
}

// Catalog resolves relation and index names.
type Catalog interface {
	Relation(name string) (Relation, error)
	Index(name string) (Index, error)
}

// Relation is a stored table.
type Relation interface {
	Name() string
	Columns() []Column
	// BeginScan opens a cursor over the rows visible in snap that satisfy
	// keys. The cursor starts before the first row when dir is Forward and
	// after the last row when dir is Backward.
	BeginScan(ctx context.Context, dir Direction, snap Snapshot, keys []ScanKey) (Cursor, error)
}

// Index is an ordered single-column index over a relation.
type Index interface {
	Name() string
	Relation() Relation
	// Column is the indexed column of the relation.
	Column() int
	// BeginScan opens a cursor returning rows in index order.
	BeginScan(ctx context.Context, dir Direction, snap Snapshot, keys []ScanKey) (Cursor, error)
}

// Cursor walks the rows of a scan.
//
// The cursor has a current position that moves one row per call to Next
// in the requested direction. Moving past either end returns a nil row;
// moving back in the opposite direction then returns the first or last row
// again.
type Cursor interface {
	// Next returns the next row in dir, or a nil row at the end of the scan.
	// When pin is non-nil the row is only valid until pin.Release.
	Next(dir Direction) (row sqltypes.Row, pin Pin, id RowID, err error)
	// Mark remembers the current row.
	Mark() error
	// Restore returns to the marked row: the next call to Next, in either
	// direction, returns the marked row again.
	Restore() error
	// Rescan restarts the scan, with new keys if keys is non-nil.
	Rescan(keys []ScanKey) error
	// End releases the cursor.
	End() error
}

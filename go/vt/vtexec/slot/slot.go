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

// Package slot implements the row container passed between operators.
package slot

import (
	"fmt"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

// Ownership tells whether a slot's row may outlive the next store.
type Ownership int8

const (
	// Empty means the slot holds no row.
	Empty Ownership = iota
	// Borrowed rows point into memory owned by someone else: a pinned
	// storage buffer, or the evaluation arena of the producing operator.
	// They are valid until the slot is cleared or stored into again.
	Borrowed
	// Owned rows are independent copies, valid until the slot is cleared.
	Owned
)

func (o Ownership) String() string {
	switch o {
	case Empty:
		return "empty"
	case Borrowed:
		return "borrowed"
	case Owned:
		return "owned"
	}
	return "invalid"
}

// Slot holds at most one row of a fixed arity.
type Slot struct {
	arity int
	row   sqltypes.Row
	own   Ownership
	pin   storage.Pin

	rowID    storage.RowID
	hasRowID bool
}

// New returns an empty slot for rows of the given arity.
func New(arity int) *Slot {
	if arity < 0 {
		panic(fmt.Sprintf("slot: negative arity %d", arity))
	}
	return &Slot{arity: arity}
}

// Arity is the number of columns of the rows this slot holds.
func (s *Slot) Arity() int { return s.arity }

// Ownership returns how the current row is held.
func (s *Slot) Ownership() Ownership { return s.own }

// IsEmpty returns true if the slot has no current row.
func (s *Slot) IsEmpty() bool { return s.own == Empty }

func (s *Slot) checkArity(row sqltypes.Row) {
	if len(row) != s.arity {
		panic(fmt.Sprintf("slot: row of %d columns stored in slot of arity %d", len(row), s.arity))
	}
}

// StoreBorrowed stores a row that the slot does not own. pin, if not nil,
// is released when the row is replaced or the slot is cleared.
func (s *Slot) StoreBorrowed(row sqltypes.Row, pin storage.Pin) {
	s.checkArity(row)
	s.Clear()
	s.row = row
	s.pin = pin
	s.own = Borrowed
}

// StoreOwned stores a row that becomes the property of the slot. The caller
// must not modify row afterwards.
func (s *Slot) StoreOwned(row sqltypes.Row) {
	s.checkArity(row)
	s.Clear()
	s.row = row
	s.own = Owned
}

// SetRowID records the identity of the stored row.
func (s *Slot) SetRowID(id storage.RowID) {
	s.rowID = id
	s.hasRowID = true
}

// RowID returns the identity of the stored row, if known.
func (s *Slot) RowID() (storage.RowID, bool) {
	return s.rowID, s.hasRowID
}

// Clear empties the slot, releasing the buffer pin of a borrowed row.
// Clearing an empty slot does nothing.
func (s *Slot) Clear() {
	if s.pin != nil {
		pin := s.pin
		s.pin = nil
		pin.Release()
	}
	s.row = nil
	s.own = Empty
	s.hasRowID = false
}

// Column returns the i-th value of the current row and whether it is NULL.
// Asking for a column beyond the arity is a programming error.
func (s *Slot) Column(i int) (sqltypes.Value, bool) {
	if i < 0 || i >= s.arity {
		panic(fmt.Sprintf("slot: column %d out of range for arity %d", i, s.arity))
	}
	if s.own == Empty {
		panic("slot: column read from an empty slot")
	}
	v := s.row[i]
	return v, v.IsNull()
}

// Value returns the i-th value of the current row.
func (s *Slot) Value(i int) sqltypes.Value {
	v, _ := s.Column(i)
	return v
}

// Row returns the current row. A borrowed row must not be retained past
// the next store or clear; use Copy for that.
func (s *Slot) Row() sqltypes.Row {
	return s.row
}

// Copy returns an owned copy of the current row.
func (s *Slot) Copy() sqltypes.Row {
	return sqltypes.CopyRow(s.row)
}

// Materialize turns a borrowed row into an owned one, releasing its pin.
func (s *Slot) Materialize() {
	if s.own != Borrowed {
		return
	}
	row := sqltypes.CopyRow(s.row)
	id, hasID := s.rowID, s.hasRowID
	s.StoreOwned(row)
	s.rowID, s.hasRowID = id, hasID
}

// CopyFrom stores an owned copy of other's row, or clears the slot if
// other is empty.
func (s *Slot) CopyFrom(other *Slot) {
	if other.IsEmpty() {
		s.Clear()
		return
	}
	s.StoreOwned(other.Copy())
	s.rowID, s.hasRowID = other.rowID, other.hasRowID
}

func (s *Slot) String() string {
	if s.own == Empty {
		return "<empty>"
	}
	return sqltypes.RowString(s.row)
}

// Table owns the slots of one execution. Releasing the table clears every
// slot it handed out.
type Table struct {
	slots []*Slot
}

// NewSlot returns an empty slot registered in the table.
func (t *Table) NewSlot(arity int) *Slot {
	s := New(arity)
	t.slots = append(t.slots, s)
	return s
}

// Release clears every slot.
func (t *Table) Release() {
	for _, s := range t.slots {
		s.Clear()
	}
	t.slots = nil
}

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

package sqltypes

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/apd/v3"

	"vitess.io/vtexec/go/vt/vterrors"
)

// EncodeRow appends the binary form of a row to dst. The format is a
// uvarint column count followed by one kind byte and payload per value.
func EncodeRow(dst []byte, row Row) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(row)))
	for _, v := range row {
		dst = append(dst, byte(v.kind))
		switch v.kind {
		case Bool, Int64:
			dst = binary.AppendVarint(dst, v.i)
		case Float64:
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.f))
		case Decimal:
			dst = appendString(dst, v.d.String())
		case Text:
			dst = appendString(dst, v.s)
		}
	}
	return dst
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

var errCorruptRow = vterrors.New(vterrors.DATA_LOSS, "corrupt encoded row")

// DecodeRow parses a row produced by EncodeRow and returns it along
// with the number of bytes consumed.
func DecodeRow(buf []byte) (Row, int, error) {
	n, pos := binary.Uvarint(buf)
	if pos <= 0 || n > uint64(len(buf)) {
		return nil, 0, errCorruptRow
	}
	row := make(Row, n)
	for i := range row {
		if pos >= len(buf) {
			return nil, 0, errCorruptRow
		}
		kind := Kind(buf[pos])
		pos++
		switch kind {
		case Null:
		case Bool, Int64:
			v, sz := binary.Varint(buf[pos:])
			if sz <= 0 {
				return nil, 0, errCorruptRow
			}
			pos += sz
			row[i] = Value{kind: kind, i: v}
		case Float64:
			if pos+8 > len(buf) {
				return nil, 0, errCorruptRow
			}
			row[i] = NewFloat64(math.Float64frombits(binary.LittleEndian.Uint64(buf[pos:])))
			pos += 8
		case Decimal, Text:
			s, sz, err := readString(buf[pos:])
			if err != nil {
				return nil, 0, err
			}
			pos += sz
			if kind == Text {
				row[i] = NewText(s)
				continue
			}
			d, _, err := apd.NewFromString(s)
			if err != nil {
				return nil, 0, errCorruptRow
			}
			row[i] = Value{kind: Decimal, d: d}
		default:
			return nil, 0, errCorruptRow
		}
	}
	return row, pos, nil
}

func readString(buf []byte) (string, int, error) {
	l, sz := binary.Uvarint(buf)
	if sz <= 0 || uint64(len(buf)-sz) < l {
		return "", 0, errCorruptRow
	}
	return string(buf[sz : sz+int(l)]), sz + int(l), nil
}

// valueOverhead approximates the in-memory size of a Value header.
const valueOverhead = 48

// RowSize estimates the memory held by a row, for work-mem accounting.
func RowSize(row Row) int {
	size := 24 + len(row)*valueOverhead
	for _, v := range row {
		switch v.kind {
		case Text:
			size += len(v.s)
		case Decimal:
			size += 64
		}
	}
	return size
}

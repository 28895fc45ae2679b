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

	"github.com/cespare/xxhash/v2"
)

// HashCode is the hash of a value or a list of values.
type HashCode = uint64

const (
	hashTagNull byte = iota
	hashTagBool
	hashTagInt
	hashTagFloat
	hashTagText
)

// HashValue feeds v into the digest. Numeric values that compare equal
// with NullsafeCompare hash equally regardless of their kind.
func HashValue(h *xxhash.Digest, v Value) {
	var buf [9]byte
	switch v.kind {
	case Null:
		buf[0] = hashTagNull
		_, _ = h.Write(buf[:1])
	case Bool:
		buf[0] = hashTagBool
		buf[1] = byte(v.i)
		_, _ = h.Write(buf[:2])
	case Int64, Float64, Decimal:
		if i, ok := integralValue(v); ok {
			buf[0] = hashTagInt
			binary.LittleEndian.PutUint64(buf[1:], uint64(i))
		} else {
			f, _ := ToFloat64(v)
			buf[0] = hashTagFloat
			binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(f))
		}
		_, _ = h.Write(buf[:])
	case Text:
		buf[0] = hashTagText
		_, _ = h.Write(buf[:1])
		_, _ = h.WriteString(v.s)
		// terminate so that ("ab","c") and ("a","bc") differ
		_, _ = h.Write([]byte{0})
	}
}

func integralValue(v Value) (int64, bool) {
	switch v.kind {
	case Int64:
		return v.i, true
	case Float64:
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
			return int64(v.f), true
		}
	case Decimal:
		if IsIntegral(v) {
			if i, err := v.d.Int64(); err == nil {
				return i, true
			}
		}
	}
	return 0, false
}

// HashRow hashes the given columns of a row.
func HashRow(row Row, cols []int) HashCode {
	h := xxhash.New()
	for _, c := range cols {
		HashValue(h, row[c])
	}
	return h.Sum64()
}

// HashValues hashes every value of the list.
func HashValues(vals []Value) HashCode {
	h := xxhash.New()
	for _, v := range vals {
		HashValue(h, v)
	}
	return h.Sum64()
}

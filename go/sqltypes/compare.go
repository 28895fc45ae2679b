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
	"cmp"
	"math"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"vitess.io/vtexec/go/vt/vterrors"
)

// NullsafeCompare returns 0 if v1==v2, -1 if v1<v2, and 1 if v1>v2.
// NULL is the lowest value. If any value is
// numeric, then a numeric comparison is performed after
// necessary conversions. Comparing a number against text
// or a boolean against anything but a boolean is an error.
func NullsafeCompare(v1, v2 Value) (int, error) {
	if v1.IsNull() {
		if v2.IsNull() {
			return 0, nil
		}
		return -1, nil
	}
	if v2.IsNull() {
		return 1, nil
	}
	if v1.IsNumeric() && v2.IsNumeric() {
		return compareNumeric(v1, v2)
	}
	if v1.kind != v2.kind {
		return 0, vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.CantCoerce, "cannot compare %s with %s", v1.kind, v2.kind)
	}
	switch v1.kind {
	case Text:
		return strings.Compare(v1.s, v2.s), nil
	case Bool:
		return cmp.Compare(v1.i, v2.i), nil
	}
	return 0, vterrors.VT13001("unexpected kind in comparison: " + v1.kind.String())
}

func compareNumeric(v1, v2 Value) (int, error) {
	switch {
	case v1.kind == Int64 && v2.kind == Int64:
		return cmp.Compare(v1.i, v2.i), nil
	case v1.kind == Decimal || v2.kind == Decimal:
		d1, err := ToDecimal(v1)
		if err != nil {
			return 0, err
		}
		d2, err := ToDecimal(v2)
		if err != nil {
			return 0, err
		}
		return d1.Cmp(d2), nil
	case v1.kind == Int64:
		return compareIntFloat(v1.i, v2.f), nil
	case v2.kind == Int64:
		return -compareIntFloat(v2.i, v1.f), nil
	}
	return cmp.Compare(v1.f, v2.f), nil
}

// compareIntFloat compares i and f exactly. Converting i to float64 would
// round integers beyond 2^53 onto their neighbours. NaN sorts below every
// number, as it does between floats.
func compareIntFloat(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f >= 1<<63:
		return -1
	case f < -(1 << 63):
		return 1
	}
	t := math.Trunc(f)
	if c := cmp.Compare(i, int64(t)); c != 0 {
		return c
	}
	return cmp.Compare(t, f)
}

// IsNullOrCompareEqual is used by key matching: it returns false as soon
// as either side is NULL, because NULL keys never match anything.
func IsNullOrCompareEqual(v1, v2 Value) (bool, error) {
	if v1.IsNull() || v2.IsNull() {
		return false, nil
	}
	c, err := NullsafeCompare(v1, v2)
	return c == 0, err
}

// Comparer compares one column of two rows.
type Comparer struct {
	Col        int
	Desc       bool
	NullsFirst bool
}

// Compare orders a and b on the comparer's column. NULLs are placed
// according to NullsFirst independent of the direction.
func (c Comparer) Compare(a, b Row) (int, error) {
	va, vb := a[c.Col], b[c.Col]
	if va.IsNull() || vb.IsNull() {
		switch {
		case va.IsNull() && vb.IsNull():
			return 0, nil
		case va.IsNull():
			if c.NullsFirst {
				return -1, nil
			}
			return 1, nil
		default:
			if c.NullsFirst {
				return 1, nil
			}
			return -1, nil
		}
	}
	r, err := NullsafeCompare(va, vb)
	if err != nil {
		return 0, err
	}
	if c.Desc {
		r = -r
	}
	return r, nil
}

// CompareRows applies the comparers in order and returns the first
// non-zero result.
func CompareRows(comparers []Comparer, a, b Row) (int, error) {
	for _, c := range comparers {
		r, err := c.Compare(a, b)
		if err != nil || r != 0 {
			return r, err
		}
	}
	return 0, nil
}

var decimalZero = apd.New(0, 0)

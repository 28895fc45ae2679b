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

package utils

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"vitess.io/vtexec/go/sqltypes"
)

// valueComparer compares values the way the executor does, so an int64 and
// a decimal holding the same number are not equal but two NULLs are.
var valueComparer = cmp.Comparer(func(a, b sqltypes.Value) bool {
	return a.Equal(b)
})

// RowSetDiff returns the difference between two row sets, ignoring order
// but not duplicates. It is empty when the sets are equal.
func RowSetDiff(want, got []sqltypes.Row) string {
	return cmp.Diff(want, got,
		valueComparer,
		cmpopts.EquateEmpty(),
		cmpopts.SortSlices(func(a, b sqltypes.Row) bool {
			return sqltypes.RowString(a) < sqltypes.RowString(b)
		}),
	)
}

// MustMatchRowSet fails the test if want and got do not hold the same rows
// in any order.
func MustMatchRowSet(t testing.TB, want, got []sqltypes.Row, errMsg ...string) {
	t.Helper()
	if diff := RowSetDiff(want, got); diff != "" {
		t.Fatalf("%v: (-want +got)\n%v", errMsg, diff)
	}
}

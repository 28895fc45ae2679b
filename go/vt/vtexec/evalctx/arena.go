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

package evalctx

import (
	"vitess.io/vtexec/go/sqltypes"
)

const arenaChunk = 256

// Arena is a bump allocator of values. Memory handed out is reused after
// Reset, so callers must not keep slices across resets.
type Arena struct {
	chunks [][]sqltypes.Value
	cur    int
	used   int
}

// Alloc returns a zeroed slice of n values.
func (a *Arena) Alloc(n int) []sqltypes.Value {
	if n == 0 {
		return nil
	}
	for a.cur < len(a.chunks) {
		chunk := a.chunks[a.cur]
		if a.used+n <= len(chunk) {
			out := chunk[a.used : a.used+n : a.used+n]
			a.used += n
			return out
		}
		a.cur++
		a.used = 0
	}
	size := max(arenaChunk, n)
	a.chunks = append(a.chunks, make([]sqltypes.Value, size))
	a.cur = len(a.chunks) - 1
	a.used = n
	return a.chunks[a.cur][:n:n]
}

// Reset makes all memory available again. Previously returned values are
// overwritten with NULL so stale references read NULL rather than a later
// row's data.
func (a *Arena) Reset() {
	for i := 0; i < a.cur && i < len(a.chunks); i++ {
		clear(a.chunks[i])
	}
	if a.cur < len(a.chunks) {
		clear(a.chunks[a.cur][:a.used])
	}
	a.cur = 0
	a.used = 0
}

// Size is the number of values the arena can hold without growing.
func (a *Arena) Size() int {
	n := 0
	for _, c := range a.chunks {
		n += len(c)
	}
	return n
}

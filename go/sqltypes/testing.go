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
	"strings"
)

// Functions in this file should only be used for testing.
// This is an experiment to see if test code bloat can be
// reduced and readability improved.

// MakeTestRows builds rows from a list of kinds and a list of
// pipe-separated values. Example:
//
//	MakeTestRows("int64|text", "1|a", "2|null")
//
// The literal "null" yields NULL for any kind. It panics on
// malformed input.
func MakeTestRows(kinds string, rows ...string) []Row {
	ks := splitKinds(kinds)
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, MakeTestRow(ks, r))
	}
	return out
}

// MakeTestRow builds a single row.
func MakeTestRow(kinds []Kind, row string) Row {
	fields := strings.Split(row, "|")
	if len(fields) != len(kinds) {
		panic("row " + row + " does not match the number of kinds")
	}
	out := make(Row, len(fields))
	for i, f := range fields {
		if f == "null" {
			continue
		}
		v, err := Cast(NewText(f), kinds[i])
		if err != nil {
			panic(err)
		}
		out[i] = v
	}
	return out
}

func splitKinds(kinds string) []Kind {
	var out []Kind
	for _, k := range strings.Split(kinds, "|") {
		kind, err := KindFromString(k)
		if err != nil {
			panic(err)
		}
		out = append(out, kind)
	}
	return out
}

// TestInt64s builds a list of single-column rows from integers.
func TestInt64s(vals ...int64) []Row {
	out := make([]Row, len(vals))
	for i, v := range vals {
		out[i] = Row{NewInt64(v)}
	}
	return out
}

// PrintRows renders rows one per line for use in test expectations.
func PrintRows(rows []Row) string {
	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(RowString(r))
		sb.WriteByte('\n')
	}
	return sb.String()
}

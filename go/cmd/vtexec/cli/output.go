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

package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
)

// Output formats of the run command.
const (
	formatAuto  = "auto"
	formatTable = "table"
	formatTSV   = "tsv"
)

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q, expected one of %s", format, strings.Join(allowed, ", "))
}

// isTerminal returns true when w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// columnNames names the output columns after the target list of the
// root node, falling back to column1, column2... Nodes that return their
// input rows unchanged are looked through.
func columnNames(root plan.Node, width int) []string {
	node := root
	for node.Common().TargetList == nil && node.Common().Left != nil {
		switch node.Kind() {
		case plan.KindLimit, plan.KindSort, plan.KindMaterial, plan.KindUnique:
			node = node.Common().Left
			continue
		}
		break
	}
	targets := node.Common().TargetList
	names := make([]string, width)
	for i := range names {
		if len(targets) == width {
			if col, ok := targets[i].(*evalengine.Column); ok && col.Name != "" {
				names[i] = col.Name
				continue
			}
		}
		names[i] = "column" + strconv.Itoa(i+1)
	}
	return names
}

func cells(row sqltypes.Row) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = v.String()
	}
	return out
}

// writeRows prints rows as a table when format asks for it, or when it is
// auto and w is a terminal. Otherwise rows are written tab separated,
// one per line, without a header.
func writeRows(w io.Writer, format string, names []string, rows []sqltypes.Row) error {
	if format == formatTable || (format == formatAuto && isTerminal(w)) {
		return writeTable(w, names, rows)
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(cells(row), "\t")); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(w io.Writer, names []string, rows []sqltypes.Row) error {
	table := tablewriter.NewWriter(w)
	table.Header(names)
	data := make([][]string, len(rows))
	for i, row := range rows {
		data[i] = cells(row)
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return err
}

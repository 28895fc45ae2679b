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
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/log"
	"vitess.io/vtexec/go/vt/utils"
	"vitess.io/vtexec/go/vt/vtexec/engine"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

// discard drops the rows it receives.
var discard = engine.ReceiverFunc(func(sqltypes.Row) error { return nil })

type runOptions struct {
	*rootOptions
	limit    int64
	backward bool
	format   string
	analyze  bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "run [--limit <n>] [--backward] [--format auto|table|tsv] [--analyze] <plan-file>",
		Short: "Runs a plan and prints its rows.",
		Long: `Runs a plan and prints its rows.

With --backward the whole result is read forward first and the rows are then
fetched backward, from the last one. Plans that cannot be read backward are
materialized for that.`,
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.limit < 0 {
				return fmt.Errorf("--limit must not be negative, got %d", opts.limit)
			}
			return checkFormat(opts.format, formatAuto, formatTable, formatTSV)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0])
		},
	}
	flags := cmd.Flags()
	utils.SetFlagInt64Var(flags, &opts.limit, "limit", 0, "maximum number of rows to print, 0 for all")
	utils.SetFlagBoolVar(flags, &opts.backward, "backward", false, "print the rows in reverse order by scrolling backward")
	utils.SetFlagStringVar(flags, &opts.format, "format", formatAuto, "output format: auto, table or tsv")
	utils.SetFlagBoolVar(flags, &opts.analyze, "analyze", false, "print the plan with execution counters to stderr after the rows")
	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, path string) error {
	f, err := o.loadPlan(path)
	if err != nil {
		return err
	}
	stmt, err := f.Statement()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	return o.execute(ctx, f, stmt, o.backward, func(e *engine.Executor) error {
		rows, err := o.fetch(ctx, e)
		if err != nil {
			return err
		}
		width := 0
		if len(rows) > 0 {
			width = len(rows[0])
		}
		if err := writeRows(cmd.OutOrStdout(), o.format, columnNames(stmt.Plan, width), rows); err != nil {
			return err
		}
		if o.analyze {
			fmt.Fprint(cmd.ErrOrStderr(), e.Description().Tree())
		}
		log.InfoS("Plan finished", "plan", path, "rows", len(rows))
		return nil
	})
}

func (o *runOptions) fetch(ctx context.Context, e *engine.Executor) ([]sqltypes.Row, error) {
	var c engine.RowCollector
	dir := storage.Forward
	if o.backward {
		if _, err := e.Run(ctx, storage.Forward, 0, discard); err != nil {
			return nil, err
		}
		dir = storage.Backward
	}
	_, err := e.Run(ctx, dir, uint64(o.limit), &c)
	return c.Rows, err
}

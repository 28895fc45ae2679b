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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vitess.io/vtexec/go/vt/utils"
	"vitess.io/vtexec/go/vt/vtexec/engine"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

const (
	formatTree = "tree"
	formatJSON = "json"
)

type explainOptions struct {
	*rootOptions
	format  string
	analyze bool
}

func newExplainCommand(root *rootOptions) *cobra.Command {
	opts := &explainOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "explain [--format tree|json] [--analyze] <plan-file>",
		Short: "Prints the operator tree of a plan.",
		Long: `Prints the operator tree of a plan.

With --analyze the plan is run to completion, discarding its rows, and every
operator is printed with the number of calls, rows and loops it did.`,
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return checkFormat(opts.format, formatTree, formatJSON)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.explain(cmd, args[0])
		},
	}
	utils.SetFlagStringVar(cmd.Flags(), &opts.format, "format", formatTree, "output format: tree or json")
	utils.SetFlagBoolVar(cmd.Flags(), &opts.analyze, "analyze", false, "run the plan and include execution counters")
	return cmd
}

func (o *explainOptions) explain(cmd *cobra.Command, path string) error {
	f, err := o.loadPlan(path)
	if err != nil {
		return err
	}
	stmt, err := f.Statement()
	if err != nil {
		return err
	}

	desc := engine.NodeToPlanDescription(stmt.Plan)
	if o.analyze {
		err := o.execute(cmd.Context(), f, stmt, false, func(e *engine.Executor) error {
			if _, err := e.Run(cmd.Context(), storage.Forward, 0, discard); err != nil {
				return err
			}
			desc = e.Description()
			return nil
		})
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if o.format == formatJSON {
		data, err := json.MarshalIndent(desc, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", data)
		return err
	}
	_, err = fmt.Fprint(out, desc.Tree())
	return err
}

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

// Package cli implements the vtexec command: it runs or explains plans
// read from plan files.
package cli

import (
	"context"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"vitess.io/vtexec/go/viperutil"
	"vitess.io/vtexec/go/vt/log"
	"vitess.io/vtexec/go/vt/utils"
	"vitess.io/vtexec/go/vt/vtexec/engine"
	"vitess.io/vtexec/go/vt/vtexec/execconfig"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/planfile"
	"vitess.io/vtexec/go/vt/vtexec/storage"
	"vitess.io/vtexec/go/vt/vtexec/storage/sqlitestore"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configFile string
	sqlitePath string

	// fs is where plan files are read from and spill files written to.
	fs afero.Fs
}

// New returns the vtexec root command with its subcommands.
func New() *cobra.Command {
	return newRoot(afero.NewOsFs())
}

func newRoot(fs afero.Fs) *cobra.Command {
	opts := &rootOptions{fs: fs}
	root := &cobra.Command{
		Use:   "vtexec",
		Short: "vtexec runs query plans with the vtexec executor.",
		Long: `vtexec runs query plans with the vtexec executor.

Plans are read from YAML or JSON plan files. Tables defined inline in the
plan file are loaded into an in-memory store, unless --sqlite names a
SQLite database to read relations from instead.`,
		Example: `vtexec run plan.yaml --limit 10
vtexec run plan.yaml --sqlite data.db --backward
vtexec explain plan.yaml --format json`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := log.Init(cmd.Flags()); err != nil {
				return err
			}
			return viperutil.LoadConfig(opts.configFile)
		},
	}

	flags := root.PersistentFlags()
	flags.SetNormalizeFunc(utils.NormalizeUnderscoresToDashes)
	utils.SetFlagStringVar(flags, &opts.configFile, "config", "", "config file (yaml, json or toml) with executor settings")
	utils.SetFlagStringVar(flags, &opts.sqlitePath, "sqlite", "", "SQLite database to read relations from, instead of the tables of the plan file")
	log.RegisterFlags(flags)
	execconfig.RegisterFlags(flags)

	root.AddCommand(newRunCommand(opts), newExplainCommand(opts))
	return root
}

// loadPlan reads the plan file at path.
func (o *rootOptions) loadPlan(path string) (*planfile.File, error) {
	return planfile.Load(o.fs, path)
}

// openCatalog returns the relations the plan reads and a function
// releasing them.
func (o *rootOptions) openCatalog(f *planfile.File) (storage.Catalog, func() error, error) {
	if o.sqlitePath != "" {
		if len(f.Tables) > 0 {
			log.WarnS("Ignoring the tables of the plan file", "sqlite", o.sqlitePath, "tables", len(f.Tables))
		}
		db, err := sqlitestore.Open(o.sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	store, err := f.Store()
	if err != nil {
		return nil, nil, err
	}
	return store, func() error { return nil }, nil
}

// execute starts stmt with the parameters and relations of f, hands the
// executor to fn and ends it.
func (o *rootOptions) execute(ctx context.Context, f *planfile.File, stmt *plan.PlannedStmt, scroll bool, fn func(e *engine.Executor) error) (err error) {
	params, err := f.ParamValues()
	if err != nil {
		return err
	}
	catalog, closeCatalog, err := o.openCatalog(f)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeCatalog(); err == nil {
			err = cerr
		}
	}()

	cfg := execconfig.Current()
	e, err := engine.Start(ctx, stmt, engine.Options{
		Catalog: catalog,
		Params:  params,
		Config:  &cfg,
		Fs:      o.fs,
		Scroll:  scroll,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.End(); err == nil {
			err = cerr
		}
	}()
	return fn(e)
}

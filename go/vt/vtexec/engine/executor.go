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

package engine

import (
	"context"
	"errors"

	"github.com/spf13/afero"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/execconfig"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

// Options are the per-statement inputs of Start.
type Options struct {
	Catalog storage.Catalog
	// Snapshot decides which rows are visible; zero means storage.Latest.
	Snapshot storage.Snapshot
	// Params are the external parameter values, by parameter id.
	Params []sqltypes.Value
	// Config overrides the process-wide executor settings.
	Config *execconfig.Config
	// Fs is where spill files go. Defaults to the OS filesystem.
	Fs      afero.Fs
	Metrics *Metrics
	// Scroll asks for a result that can be read backward and rewound.
	Scroll bool
}

// Receiver gets the rows produced by Run. The row is only valid during
// the call; Receive must copy what it keeps.
type Receiver interface {
	Receive(row sqltypes.Row) error
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(row sqltypes.Row) error

// Receive satisfies the Receiver interface.
func (f ReceiverFunc) Receive(row sqltypes.Row) error { return f(row) }

// RowCollector is a Receiver that keeps a copy of every row.
type RowCollector struct {
	Rows []sqltypes.Row
}

// Receive satisfies the Receiver interface.
func (c *RowCollector) Receive(row sqltypes.Row) error {
	c.Rows = append(c.Rows, sqltypes.CopyRow(row))
	return nil
}

// Executor runs one planned statement.
type Executor struct {
	stmt   *plan.PlannedStmt
	estate *ExecutionState
	root   PlanState
	ended  bool

	rowsSent uint64
}

// Start initializes the state tree of stmt. The returned executor must be
// ended with End, even when Run fails.
func Start(ctx context.Context, stmt *plan.PlannedStmt, opts Options) (*Executor, error) {
	if stmt == nil || stmt.Plan == nil {
		return nil, vterrors.VT13001("Start called without a plan")
	}
	estate := newExecutionState(stmt, opts)

	root := stmt.Plan
	var eflags EFlags
	if opts.Scroll {
		eflags = EFlagRewind | EFlagBackward
		if !SupportsBackward(root) {
			root = &plan.Material{Base: plan.Base{Left: root, Rows: root.Common().Rows, Width: root.Common().Width}}
		}
	}

	ps, err := InitNode(ctx, root, estate, eflags)
	if err != nil {
		if cerr := estate.endAll(); cerr != nil {
			estate.Logger.WarnS("Cleanup after failed start failed", "error", cerr)
		}
		estate.metrics.run("init_error")
		return nil, err
	}
	estate.Logger.InfoS("Executor started", "root", root.Kind().String(), "params", len(estate.Params), "scroll", opts.Scroll)
	return &Executor{stmt: stmt, estate: estate, root: ps}, nil
}

// Run fetches up to count rows in dir and sends them to recv. A count of
// zero fetches every remaining row. It returns the number of rows sent.
// Cancellation of ctx is checked between rows.
func (e *Executor) Run(ctx context.Context, dir storage.Direction, count uint64, recv Receiver) (uint64, error) {
	if e.ended {
		return 0, vterrors.NewErrorf(vterrors.FAILED_PRECONDITION, vterrors.ExecutorEnded, "executor already ended")
	}
	e.estate.Direction = dir
	if dir == storage.NoMovement {
		return 0, nil
	}

	var sent uint64
	for count == 0 || sent < count {
		if err := ctx.Err(); err != nil {
			e.estate.metrics.run("canceled")
			code := vterrors.CANCELED
			if errors.Is(err, context.DeadlineExceeded) {
				code = vterrors.DEADLINE_EXCEEDED
			}
			return sent, vterrors.NewErrorf(code, vterrors.QueryInterrupted, "query interrupted: %v", err)
		}
		s, err := e.root.Next(ctx)
		if err != nil {
			e.estate.metrics.run("error")
			return sent, err
		}
		if s == nil {
			break
		}
		if err := recv.Receive(s.Row()); err != nil {
			e.estate.metrics.run("error")
			return sent, err
		}
		sent++
	}
	e.rowsSent += sent
	e.estate.metrics.run("ok")
	return sent, nil
}

// Rewind restarts the result from its first row.
func (e *Executor) Rewind() error {
	if e.ended {
		return vterrors.NewErrorf(vterrors.FAILED_PRECONDITION, vterrors.ExecutorEnded, "executor already ended")
	}
	return e.root.ReScan()
}

// End releases every resource of the statement. It is safe to call more
// than once.
func (e *Executor) End() error {
	if e.ended {
		return nil
	}
	e.ended = true
	err := e.estate.endAll()
	e.estate.Logger.InfoS("Executor ended", "rows", e.rowsSent)
	return err
}

// Root returns the root operator state.
func (e *Executor) Root() PlanState { return e.root }

// State returns the execution state shared by the operators.
func (e *Executor) State() *ExecutionState { return e.estate }

// Description describes the state tree with the counters collected so far.
func (e *Executor) Description() PlanDescription {
	return StateToPlanDescription(e.root)
}

// RunAll is a convenience that starts stmt, fetches every row forward and
// ends the executor.
func RunAll(ctx context.Context, stmt *plan.PlannedStmt, opts Options) (rows []sqltypes.Row, err error) {
	e, err := Start(ctx, stmt, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := e.End(); err == nil {
			err = cerr
		}
	}()
	var c RowCollector
	if _, err := e.Run(ctx, storage.Forward, 0, &c); err != nil {
		return nil, err
	}
	return c.Rows, nil
}

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
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/log"
	"vitess.io/vtexec/go/vt/vtexec/execconfig"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
	"vitess.io/vtexec/go/vt/vtexec/storage"
	"vitess.io/vtexec/go/vt/vtexec/tuplesort"
	"vitess.io/vtexec/go/vt/vtexec/tuplestore"
)

// ExecutionState is created once per statement and shared by reference by
// every operator state of the tree.
type ExecutionState struct {
	// Direction is the direction of the current Run.
	Direction storage.Direction
	// Snapshot decides which rows the scans see. The zero value of
	// Options.Snapshot means storage.Latest.
	Snapshot storage.Snapshot
	// Params holds the external parameters followed by the ones set by
	// nested loops. Its length never changes after Start.
	Params []sqltypes.Value
	// Catalog resolves the relations and indexes named by the plan.
	Catalog storage.Catalog
	// Config is the snapshot of the executor settings for this statement.
	Config execconfig.Config
	// Fs is where spill files are created.
	Fs afero.Fs
	// QueryID identifies the statement in logs and spill file names.
	QueryID string
	// Logger adds the query id to every record.
	Logger log.Logger

	slots   slot.Table
	cteDefs map[string]plan.Node
	ctes    map[string]*cteShared
	// states lists every initialized operator state in init order.
	states  []PlanState
	metrics *Metrics
}

func newExecutionState(stmt *plan.PlannedStmt, opts Options) *ExecutionState {
	cfg := execconfig.Current()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	snap := opts.Snapshot
	if snap == 0 {
		snap = storage.Latest
	}
	params := make([]sqltypes.Value, max(stmt.NumParams, len(opts.Params)))
	copy(params, opts.Params)

	id := uuid.NewString()
	es := &ExecutionState{
		Direction: storage.Forward,
		Snapshot:  snap,
		Params:    params,
		Catalog:   opts.Catalog,
		Config:    cfg,
		Fs:        fs,
		QueryID:   id,
		Logger:    log.With("query_id", id),
		cteDefs:   make(map[string]plan.Node, len(stmt.CTEs)),
		ctes:      make(map[string]*cteShared),
		metrics:   opts.Metrics,
	}
	if es.metrics == nil && cfg.MetricsEnabled {
		es.metrics = InitializeMetrics()
	}
	for _, cte := range stmt.CTEs {
		es.cteDefs[cte.Name] = cte.Plan
	}
	return es
}

func (es *ExecutionState) newSlot(arity int) *slot.Slot {
	return es.slots.NewSlot(arity)
}

// nullSlot returns a slot holding a row of arity NULLs.
func (es *ExecutionState) nullSlot(arity int) *slot.Slot {
	s := es.newSlot(arity)
	s.StoreOwned(make(sqltypes.Row, arity))
	return s
}

func (es *ExecutionState) newTuplestore(name string, randomAccess bool) *tuplestore.Store {
	return tuplestore.New(tuplestore.Options{
		WorkMem:      es.Config.WorkMem,
		Fs:           es.Fs,
		TempDir:      es.Config.TempDir,
		Compress:     es.Config.SpillCompression,
		RandomAccess: randomAccess,
		Name:         name,
	})
}

func (es *ExecutionState) newSort(comparers []sqltypes.Comparer, bound int) *tuplesort.Sort {
	return tuplesort.New(comparers, tuplesort.Options{
		WorkMem:  es.Config.WorkMem,
		Fs:       es.Fs,
		TempDir:  es.Config.TempDir,
		Compress: es.Config.SpillCompression,
		Bound:    bound,
	})
}

// closeTuplestore closes ts and records what it spilled.
func (es *ExecutionState) closeTuplestore(component string, ts *tuplestore.Store) error {
	if ts == nil {
		return nil
	}
	if ts.Spilled() {
		es.metrics.spilled(component, ts.SpilledBytes())
	}
	return ts.Close()
}

// endAll ends every initialized state, last initialized first. It is used
// when a statement fails before a complete tree exists.
func (es *ExecutionState) endAll() error {
	var err error
	for i := len(es.states) - 1; i >= 0; i-- {
		if cerr := es.states[i].End(); err == nil {
			err = cerr
		}
	}
	if cerr := es.endCTEs(); err == nil {
		err = cerr
	}
	es.slots.Release()
	return err
}

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
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/engine/opcode"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

func testOptions(catalog storage.Catalog) Options {
	return Options{
		Catalog: catalog,
		Config:  testConfig(1 << 20),
		Fs:      afero.NewMemMapFs(),
		Metrics: NewMetrics(prometheus.NewRegistry()),
	}
}

func startTest(t *testing.T, stmt *plan.PlannedStmt, opts Options) *Executor {
	t.Helper()
	e, err := Start(t.Context(), stmt, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.End() })
	return e
}

func TestExecutorRun(t *testing.T) {
	opts := testOptions(nil)
	e := startTest(t, &plan.PlannedStmt{Plan: seq(1, 5)}, opts)

	var c RowCollector
	n, err := e.Run(t.Context(), storage.Forward, 2, &c)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = e.Run(t.Context(), storage.Forward, 0, &c)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(c.Rows))

	// at the end, further runs return nothing
	n, err = e.Run(t.Context(), storage.Forward, 0, &c)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.Run(t.Context(), storage.NoMovement, 10, &c)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, e.End())
	require.NoError(t, e.End())
	_, err = e.Run(t.Context(), storage.Forward, 0, &c)
	require.Error(t, err)
	assert.Equal(t, vterrors.ExecutorEnded, vterrors.ErrState(err))
	assert.Equal(t, vterrors.ExecutorEnded, vterrors.ErrState(e.Rewind()))

	assert.Equal(t, 3.0, testutil.ToFloat64(opts.Metrics.runs.WithLabelValues("ok")))
	assert.Equal(t, 5.0, testutil.ToFloat64(opts.Metrics.rowsReturned.WithLabelValues("ValuesScan")))
}

func TestExecutorReceiverError(t *testing.T) {
	e := startTest(t, &plan.PlannedStmt{Plan: seq(1, 5)}, testOptions(nil))
	boom := errors.New("client went away")
	var got int
	n, err := e.Run(t.Context(), storage.Forward, 0, ReceiverFunc(func(row sqltypes.Row) error {
		got++
		if got == 3 {
			return boom
		}
		return nil
	}))
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 2, n)
}

func TestExecutorCancel(t *testing.T) {
	e := startTest(t, &plan.PlannedStmt{Plan: seq(1, 5)}, testOptions(nil))

	ctx, cancel := context.WithCancel(t.Context())
	n, err := e.Run(ctx, storage.Forward, 0, ReceiverFunc(func(sqltypes.Row) error {
		cancel()
		return nil
	}))
	require.Error(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, vterrors.CANCELED, vterrors.Code(err))
	assert.Equal(t, vterrors.QueryInterrupted, vterrors.ErrState(err))

	ctx, cancel = context.WithDeadline(t.Context(), time.Now().Add(-time.Second))
	defer cancel()
	_, err = e.Run(ctx, storage.Forward, 0, &RowCollector{})
	require.Error(t, err)
	assert.Equal(t, vterrors.DEADLINE_EXCEEDED, vterrors.Code(err))

	// the executor can still be used with a live context
	var c RowCollector
	_, err = e.Run(t.Context(), storage.Forward, 0, &c)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4, 5}, ids(c.Rows))
}

func TestExecutorScroll(t *testing.T) {
	join := &plan.NestLoop{
		Base:     plan.Base{Left: seq(1, 3), Right: seq(1, 3), TargetList: []evalengine.Expr{outerCol(0)}},
		JoinType: opcode.SemiJoin,
		JoinQual: []evalengine.Expr{eq(outerCol(0), innerCol(0))},
	}
	opts := testOptions(nil)
	opts.Scroll = true
	e := startTest(t, &plan.PlannedStmt{Plan: join}, opts)

	// the join cannot go backward, so the result is spooled
	_, ok := e.Root().(*MaterialState)
	require.True(t, ok, "root is %T", e.Root())

	var c RowCollector
	_, err := e.Run(t.Context(), storage.Forward, 0, &c)
	require.NoError(t, err)
	_, err = e.Run(t.Context(), storage.Backward, 2, &c)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 3, 2}, ids(c.Rows))

	require.NoError(t, e.Rewind())
	c.Rows = nil
	_, err = e.Run(t.Context(), storage.Forward, 1, &c)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(c.Rows))
}

func TestExecutorScrollNotWrapped(t *testing.T) {
	opts := testOptions(nil)
	opts.Scroll = true
	e := startTest(t, &plan.PlannedStmt{Plan: seq(1, 3)}, opts)
	_, ok := e.Root().(*ValuesScanState)
	assert.True(t, ok)
}

func TestExecutorParamsAndSnapshot(t *testing.T) {
	store := newTestStore(t, 4, 4)
	snap := store.Snapshot()
	require.NoError(t, store.Insert("t", sqltypes.Row{sqltypes.NewInt64(5), sqltypes.NewInt64(1)}))

	stmt := &plan.PlannedStmt{
		Plan: &plan.SeqScan{
			Base:     plan.Base{TargetList: []evalengine.Expr{scanCol(0)}},
			Relation: "t",
			Keys:     []plan.ScanKey{{Col: 1, Op: storage.KeyGreaterEqual, Value: &evalengine.Param{ID: 0}}},
		},
		NumParams: 1,
	}
	opts := testOptions(store)
	opts.Params = []sqltypes.Value{sqltypes.NewInt64(1)}

	rows, err := RunAll(t.Context(), stmt, opts)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 5}, ids(rows))

	opts.Snapshot = snap
	rows, err = RunAll(t.Context(), stmt, opts)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(rows))
	assert.Zero(t, store.PinnedBuffers())
}

func TestExecutorStartErrors(t *testing.T) {
	_, err := Start(t.Context(), &plan.PlannedStmt{}, testOptions(nil))
	require.Error(t, err)
	assert.Equal(t, vterrors.INTERNAL, vterrors.Code(err))

	// a failure in the middle of the tree releases what was initialized
	store := newTestStore(t, 3, 3)
	opts := testOptions(store)
	_, err = Start(t.Context(), &plan.PlannedStmt{Plan: &plan.NestLoop{
		Base: plan.Base{Left: &plan.SeqScan{Relation: "t"}, Right: &plan.SeqScan{Relation: "nope"}},
	}}, opts)
	require.Error(t, err)
	assert.Equal(t, vterrors.NOT_FOUND, vterrors.Code(err))
	assert.Zero(t, store.PinnedBuffers())
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.runs.WithLabelValues("init_error")))
}

func TestExecutorStorageErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := storage.NewMockCatalog(ctrl)
	rel := storage.NewMockRelation(ctrl)
	cursor := storage.NewMockCursor(ctrl)

	cols := []storage.Column{{Name: "a", Kind: sqltypes.Int64}}
	catalog.EXPECT().Relation("r").Return(rel, nil)
	rel.EXPECT().Columns().Return(cols).AnyTimes()
	rel.EXPECT().BeginScan(gomock.Any(), storage.Forward, storage.Latest, gomock.Nil()).Return(cursor, nil)
	gomock.InOrder(
		cursor.EXPECT().Next(storage.Forward).Return(sqltypes.Row{sqltypes.NewInt64(1)}, nil, storage.RowID(1), nil),
		cursor.EXPECT().Next(storage.Forward).Return(nil, nil, storage.RowID(0), errors.New("disk on fire")),
	)
	cursor.EXPECT().End().Return(nil).Times(1)

	opts := testOptions(catalog)
	e := startTest(t, &plan.PlannedStmt{Plan: &plan.SeqScan{Relation: "r"}}, opts)
	var c RowCollector
	n, err := e.Run(t.Context(), storage.Forward, 0, &c)
	require.ErrorContains(t, err, "disk on fire")
	assert.EqualValues(t, 1, n)
	require.NoError(t, e.End())
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.runs.WithLabelValues("error")))
}

func TestExecutorDescription(t *testing.T) {
	stmt := &plan.PlannedStmt{Plan: limitPlan(
		&plan.Sort{Base: plan.Base{Left: seq(1, 5)}, Keys: []plan.SortKey{{Col: 0, Desc: true}}},
		nil, lit(2),
	)}
	e := startTest(t, stmt, testOptions(nil))
	_, err := e.Run(t.Context(), storage.Forward, 0, &RowCollector{})
	require.NoError(t, err)

	desc := e.Description()
	assert.Equal(t, "Limit", desc.OperatorType)
	require.Len(t, desc.Inputs, 1)
	sort := desc.Inputs[0]
	assert.Equal(t, "0 DESC", sort.Other["SortKey"])
	require.NotNil(t, sort.Instr)
	assert.EqualValues(t, 2, sort.Instr.Rows)
	assert.EqualValues(t, 5, sort.Inputs[0].Instr.Rows)

	assert.Equal(t, "Limit [calls=3 rows=2 loops=1]", desc.Title())
	tree := desc.Tree()
	assert.Contains(t, tree, "Sort [calls=2 rows=2 loops=1]")
	assert.Contains(t, tree, "SortKey: 0 DESC")
	assert.Contains(t, tree, "RowCount: 5")

	out, err := json.Marshal(desc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"OperatorType":"Limit"`)
	assert.Contains(t, string(out), `"Instrumentation":{"Calls":3,"Rows":2,"Loops":1}`)

	planOnly := NodeToPlanDescription(stmt.Plan)
	assert.Nil(t, planOnly.Instr)
	assert.Equal(t, "2", planOnly.Other["Count"])
}

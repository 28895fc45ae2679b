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
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

func TestSeqScan(t *testing.T) {
	store := newTestStore(t, 6, 2)
	es := newTestState(t, 0, store)
	ps := initTest(t, es, &plan.SeqScan{
		Base: plan.Base{
			Qual:       []evalengine.Expr{eq(scanCol(1), lit(0))},
			TargetList: []evalengine.Expr{scanCol(0)},
		},
		Relation: "t",
	}, EFlagBackward)
	assert.Equal(t, []int64{2, 4, 6}, ids(drain(t, ps)))

	es.Direction = storage.Backward
	assert.Equal(t, []int64{6, 4, 2}, ids(drain(t, ps)))

	es.Direction = storage.Forward
	require.NoError(t, ps.ReScan())
	assert.Equal(t, []int64{2, 4, 6}, ids(drain(t, ps)))

	require.NoError(t, ps.End())
	assert.Zero(t, store.PinnedBuffers())
}

func TestSeqScanUnknownRelation(t *testing.T) {
	es := newTestState(t, 0, newTestStore(t, 1, 1))
	_, err := InitNode(t.Context(), &plan.SeqScan{Relation: "missing"}, es, 0)
	require.Error(t, err)
	assert.Equal(t, vterrors.NOT_FOUND, vterrors.Code(err))
}

func TestSeqScanMarkRestore(t *testing.T) {
	store := newTestStore(t, 5, 5)
	es := newTestState(t, 0, store)
	ps := initTest(t, es, &plan.SeqScan{Relation: "t"}, EFlagMark)
	assert.Equal(t, []int64{1, 2}, ids(nextN(t, ps, 2)))
	require.NoError(t, MarkPos(ps))
	assert.Equal(t, []int64{3, 4, 5}, ids(drain(t, ps)))
	require.NoError(t, RestorePos(ps))
	assert.Equal(t, []int64{2, 3, 4, 5}, ids(drain(t, ps)))
}

func TestIndexScan(t *testing.T) {
	store := newTestStore(t, 9, 3)
	es := newTestState(t, 0, store)
	keys := []plan.ScanKey{{Col: 1, Op: storage.KeyGreaterEqual, Value: lit(1)}}

	ps := initTest(t, es, &plan.IndexScan{Index: "t_v", Keys: keys}, 0)
	rows := drain(t, ps)
	assert.ElementsMatch(t, []int64{1, 2, 4, 5, 7, 8}, ids(rows))
	assert.True(t, slices.IsSortedFunc(rows, func(a, b sqltypes.Row) int {
		return int(a[1].Int64() - b[1].Int64())
	}), "rows are in index order")

	back := initTest(t, es, &plan.IndexScan{Index: "t_v", Keys: keys, Backward: true}, 0)
	reversed := ids(drain(t, back))
	slices.Reverse(reversed)
	assert.Equal(t, ids(rows), reversed)

	desc := NodeToPlanDescription(back.Plan())
	assert.Equal(t, "Backward", desc.Variant)
	assert.Equal(t, "t_v", desc.Other["Index"])
}

func TestIndexScanParamKeys(t *testing.T) {
	store := newTestStore(t, 9, 3)
	es := newTestState(t, 1, store)
	es.Params[0] = sqltypes.NewInt64(2)
	ps := initTest(t, es, &plan.IndexScan{
		Index: "t_v",
		Keys:  []plan.ScanKey{{Col: 1, Op: storage.KeyEqual, Value: &evalengine.Param{ID: 0}}},
	}, 0)
	assert.ElementsMatch(t, []int64{2, 5, 8}, ids(drain(t, ps)))

	es.Params[0] = sqltypes.NewInt64(0)
	ps.base().chgParam.Set(0)
	assert.ElementsMatch(t, []int64{3, 6, 9}, ids(drain(t, ps)))
}

func TestFunctionScan(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, &plan.FunctionScan{
		Base: plan.Base{Qual: []evalengine.Expr{evalengine.NewComparison(evalengine.Greater, scanCol(0), lit(2))}},
		Func: "generate_series",
		Args: []evalengine.Expr{lit(1), lit(5)},
	}, EFlagBackward|EFlagRewind)
	assert.Equal(t, []int64{3, 4, 5}, ids(drain(t, ps)))

	es.Direction = storage.Backward
	assert.Equal(t, []int64{5, 4, 3}, ids(drain(t, ps)))

	es.Direction = storage.Forward
	require.NoError(t, ps.ReScan())
	assert.Equal(t, []int64{3, 4, 5}, ids(drain(t, ps)))
}

func TestFunctionScanMaterialize(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, &plan.FunctionScan{
		Func: "unnest_text",
		Args: []evalengine.Expr{evalengine.NewLiteralText("a,b,c"), evalengine.NewLiteralText(",")},
	}, 0)
	assert.Equal(t, []string{`("a")`, `("b")`, `("c")`}, rowStrings(drain(t, ps)))
}

func TestFunctionScanUnknown(t *testing.T) {
	es := newTestState(t, 0, nil)
	_, err := InitNode(t.Context(), &plan.FunctionScan{Func: "nope"}, es, 0)
	require.Error(t, err)
	assert.Equal(t, vterrors.NoSuchFunction, vterrors.ErrState(err))
}

func TestValuesScanMarkRestore(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, seq(1, 4), EFlagMark)
	err := RestorePos(ps)
	require.Error(t, err)
	assert.Equal(t, vterrors.CursorNotMarked, vterrors.ErrState(err))

	nextN(t, ps, 1)
	require.NoError(t, MarkPos(ps))
	assert.Equal(t, []int64{2, 3, 4}, ids(drain(t, ps)))
	require.NoError(t, RestorePos(ps))
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(drain(t, ps)))
}

func TestValuesScanArity(t *testing.T) {
	es := newTestState(t, 0, nil)
	_, err := InitNode(t.Context(), valuesOf([]any{1}, []any{1, 2}), es, 0)
	require.Error(t, err)
	assert.Equal(t, vterrors.WrongNumberOfColumns, vterrors.ErrState(err))
}

func TestCteScan(t *testing.T) {
	stmt := &plan.PlannedStmt{CTEs: []plan.CTE{{Name: "c", Plan: seq(1, 3)}}}
	es := newStmtState(t, stmt, nil)
	ps := initTest(t, es, &plan.Append{Plans: []plan.Node{
		&plan.CteScan{CTE: "c"},
		&plan.CteScan{Base: plan.Base{TargetList: []evalengine.Expr{scanCol(0)}}, CTE: "c"},
	}}, 0)
	assert.Equal(t, []int64{1, 2, 3, 1, 2, 3}, ids(drain(t, ps)))

	// the second scan read the rows spooled by the first one
	shared := es.ctes["c"]
	require.NotNil(t, shared)
	assert.EqualValues(t, 3, shared.state.Instrumentation().Rows)

	require.NoError(t, ps.ReScan())
	assert.Equal(t, []int64{1, 2, 3, 1, 2, 3}, ids(drain(t, ps)))
	assert.EqualValues(t, 3, shared.state.Instrumentation().Rows)
}

func TestCteScanInterleaved(t *testing.T) {
	stmt := &plan.PlannedStmt{CTEs: []plan.CTE{{Name: "c", Plan: seq(1, 3)}}}
	es := newStmtState(t, stmt, nil)
	ps := initTest(t, es, &plan.NestLoop{
		Base: plan.Base{Left: &plan.CteScan{CTE: "c"}, Right: &plan.CteScan{CTE: "c"}},
	}, 0)
	assert.Len(t, drain(t, ps), 9)
}

func TestCteScanUnknown(t *testing.T) {
	es := newTestState(t, 0, nil)
	_, err := InitNode(t.Context(), &plan.CteScan{CTE: "nope"}, es, 0)
	require.Error(t, err)
	assert.Equal(t, vterrors.NoSuchCTE, vterrors.ErrState(err))
}

func TestAppend(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, &plan.Append{Plans: []plan.Node{seq(1, 2), emptyValues(1), seq(3, 4)}}, EFlagBackward)
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(drain(t, ps)))

	es.Direction = storage.Backward
	assert.Equal(t, []int64{4, 3, 2, 1}, ids(drain(t, ps)))

	es.Direction = storage.Forward
	require.NoError(t, ps.ReScan())
	assert.Equal(t, []int64{1, 2}, ids(nextN(t, ps, 2)))

	_, err := InitNode(t.Context(), &plan.Append{Plans: []plan.Node{seq(1, 2), valuesOf([]any{1, 2})}}, es, 0)
	require.Error(t, err)
	assert.Equal(t, vterrors.WrongNumberOfColumns, vterrors.ErrState(err))
}

func TestResult(t *testing.T) {
	t.Run("without input", func(t *testing.T) {
		es := newTestState(t, 0, nil)
		ps := initTest(t, es, &plan.Result{Base: plan.Base{TargetList: []evalengine.Expr{lit(7), evalengine.NewLiteralText("x")}}}, 0)
		assert.Equal(t, []string{`(7, "x")`}, rowStrings(drain(t, ps)))
		require.NoError(t, ps.ReScan())
		assert.Len(t, drain(t, ps), 1)
	})
	t.Run("false constant qual", func(t *testing.T) {
		es := newTestState(t, 0, nil)
		ps := initTest(t, es, &plan.Result{
			Base:         plan.Base{Left: seq(1, 3)},
			ConstantQual: []evalengine.Expr{eq(lit(1), lit(2))},
		}, 0)
		assert.Empty(t, drain(t, ps))
		assert.Zero(t, ps.Inputs()[0].Instrumentation().Calls)
	})
	t.Run("projection and filter", func(t *testing.T) {
		es := newTestState(t, 0, nil)
		ps := initTest(t, es, &plan.Result{
			Base: plan.Base{
				Left:       seq(1, 4),
				Qual:       []evalengine.Expr{evalengine.NewComparison(evalengine.NotEqual, scanCol(0), lit(2))},
				TargetList: []evalengine.Expr{&evalengine.Arithmetic{Op: evalengine.Mul, Left: scanCol(0), Right: lit(10)}},
			},
		}, 0)
		assert.Equal(t, []int64{10, 30, 40}, ids(drain(t, ps)))
	})
	t.Run("empty row", func(t *testing.T) {
		es := newTestState(t, 0, nil)
		ps := initTest(t, es, &plan.Result{}, 0)
		rows := drain(t, ps)
		require.Len(t, rows, 1)
		assert.Empty(t, rows[0])
	})
}

func TestSubqueryScan(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, &plan.SubqueryScan{
		Base: plan.Base{
			Left: seq(1, 5),
			Qual: []evalengine.Expr{evalengine.NewComparison(evalengine.LessEqual, scanCol(0), lit(2))},
		},
	}, EFlagBackward)
	assert.Equal(t, []int64{1, 2}, ids(drain(t, ps)))
	es.Direction = storage.Backward
	assert.Equal(t, []int64{2, 1}, ids(drain(t, ps)))
}

func TestScansReleasePins(t *testing.T) {
	store := newTestStore(t, 50, 5)
	es := newTestState(t, 0, store)
	nodes := []plan.Node{
		&plan.SeqScan{Relation: "t"},
		&plan.IndexScan{Index: "t_v"},
		&plan.Sort{Base: plan.Base{Left: &plan.SeqScan{Relation: "t"}}, Keys: []plan.SortKey{{Col: 1}}},
		&plan.Material{Base: plan.Base{Left: &plan.IndexScan{Index: "t_v"}}},
	}
	for _, n := range nodes {
		ps := initTest(t, es, n, 0)
		assert.Len(t, nextN(t, ps, 2), 2)
	}
	assert.NotZero(t, store.PinnedBuffers())
	require.NoError(t, es.endAll())
	assert.Zero(t, store.PinnedBuffers())
}

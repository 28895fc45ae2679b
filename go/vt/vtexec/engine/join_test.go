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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/test/utils"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/engine/opcode"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

func TestNestLoopJoinTypes(t *testing.T) {
	outer := intValues(1, 2, 3)
	outer.Rows = append(outer.Rows, []evalengine.Expr{nullLit()})
	inner := intValues(2, 3, 3, 4)

	tcases := []struct {
		joinType opcode.JoinType
		want     []string
	}{{
		joinType: opcode.InnerJoin,
		want:     []string{"(2, 2)", "(3, 3)", "(3, 3)"},
	}, {
		joinType: opcode.LeftJoin,
		want:     []string{"(1, NULL)", "(2, 2)", "(3, 3)", "(3, 3)", "(NULL, NULL)"},
	}, {
		joinType: opcode.SemiJoin,
		want:     []string{"(2)", "(3)"},
	}, {
		joinType: opcode.AntiJoin,
		want:     []string{"(1)", "(NULL)"},
	}}
	for _, tcase := range tcases {
		t.Run(tcase.joinType.String(), func(t *testing.T) {
			es := newTestState(t, 0, nil)
			ps := initTest(t, es, &plan.NestLoop{
				Base:     plan.Base{Left: outer, Right: inner},
				JoinType: tcase.joinType,
				JoinQual: []evalengine.Expr{eq(outerCol(0), innerCol(0))},
			}, 0)
			assert.Equal(t, tcase.want, rowStrings(drain(t, ps)))

			// a rescan replays the same result
			require.NoError(t, ps.ReScan())
			assert.Equal(t, tcase.want, rowStrings(drain(t, ps)))
		})
	}
}

func TestNestLoopUnsupportedJoinType(t *testing.T) {
	es := newTestState(t, 0, nil)
	_, err := InitNode(t.Context(), &plan.NestLoop{
		Base:     plan.Base{Left: intValues(1), Right: intValues(1)},
		JoinType: opcode.FullJoin,
	}, es, 0)
	require.Error(t, err)
	assert.Equal(t, vterrors.UNIMPLEMENTED, vterrors.Code(err))
}

func TestNestLoopParams(t *testing.T) {
	store := newTestStore(t, 9, 3)
	es := newTestState(t, 1, store)
	ps := initTest(t, es, &plan.NestLoop{
		Base: plan.Base{
			Left: intValues(1, 2, 3),
			Right: &plan.SeqScan{
				Relation: "t",
				Keys:     []plan.ScanKey{{Col: 1, Op: storage.KeyEqual, Value: &evalengine.Param{ID: 0}}},
			},
		},
		JoinType: opcode.InnerJoin,
		Params:   []plan.NestLoopParam{{ParamID: 0, OuterCol: 0}},
	}, 0)

	want := []string{"(1, 1, 1)", "(1, 4, 1)", "(1, 7, 1)", "(2, 2, 2)", "(2, 5, 2)", "(2, 8, 2)"}
	assert.Equal(t, want, rowStrings(drain(t, ps)))
	// one loop per outer row: the rescan before the first one reads nothing
	assert.EqualValues(t, 3, ps.Inputs()[1].Instrumentation().Loops)

	require.NoError(t, ps.ReScan())
	assert.Equal(t, want, rowStrings(drain(t, ps)))

	require.NoError(t, es.endAll())
	assert.Zero(t, store.PinnedBuffers())
}

func TestNestLoopParamOutOfRange(t *testing.T) {
	es := newTestState(t, 1, nil)
	_, err := InitNode(t.Context(), &plan.NestLoop{
		Base:   plan.Base{Left: intValues(1), Right: intValues(1)},
		Params: []plan.NestLoopParam{{ParamID: 3, OuterCol: 0}},
	}, es, 0)
	require.Error(t, err)
	assert.Equal(t, vterrors.NoSuchParam, vterrors.ErrState(err))
}

// joinInputs returns two-column inputs (key, id) with duplicate and NULL
// keys.
func joinInputs(outerRows, innerRows int) (*plan.ValuesScan, *plan.ValuesScan) {
	var outer, inner [][]any
	for i := range outerRows {
		var key any = i % 37
		if i%50 == 0 {
			key = nil
		}
		outer = append(outer, []any{key, i})
	}
	for j := range innerRows {
		var key any = j % 41
		if j%60 == 0 {
			key = nil
		}
		inner = append(inner, []any{key, 1000 + j})
	}
	return valuesOf(outer...), valuesOf(inner...)
}

func hashJoinPlan(jt opcode.JoinType, outer, inner plan.Node, innerRows float64) *plan.HashJoin {
	return &plan.HashJoin{
		Base: plan.Base{
			Left:  outer,
			Right: &plan.Hash{Base: plan.Base{Left: inner, Rows: innerRows, Width: 16}},
		},
		JoinType: jt,
		Clauses:  []plan.HashClause{{OuterKey: outerCol(0), InnerKey: innerCol(0)}},
	}
}

func TestHashJoinMatchesNestLoop(t *testing.T) {
	outer, inner := joinInputs(200, 300)

	tcases := []struct {
		name      string
		workMem   uint64
		innerRows float64
		batched   bool
	}{
		{name: "in memory", workMem: 1 << 20, innerRows: 300},
		{name: "batches from estimate", workMem: 2048, innerRows: 300, batched: true},
		{name: "batches grown while building", workMem: 2048, innerRows: 10, batched: true},
	}
	for _, jt := range []opcode.JoinType{opcode.InnerJoin, opcode.LeftJoin, opcode.SemiJoin, opcode.AntiJoin} {
		es := newTestState(t, 0, nil)
		want := drain(t, initTest(t, es, &plan.NestLoop{
			Base:     plan.Base{Left: outer, Right: inner},
			JoinType: jt,
			JoinQual: []evalengine.Expr{eq(outerCol(0), innerCol(0))},
		}, 0))

		for _, tcase := range tcases {
			t.Run(jt.String()+"/"+tcase.name, func(t *testing.T) {
				es := newTestState(t, 0, nil)
				es.Config.WorkMem = tcase.workMem
				ps := initTest(t, es, hashJoinPlan(jt, outer, inner, tcase.innerRows), 0)
				got := drain(t, ps)
				utils.MustMatchRowSet(t, want, got)

				hj := ps.(*HashJoinState)
				if hj.table != nil {
					if tcase.batched {
						assert.Greater(t, hj.table.nbatch, 1)
					} else {
						assert.Equal(t, 1, hj.table.nbatch)
					}
				}

				// rescans rebuild or reuse the table and return the same rows
				require.NoError(t, ps.ReScan())
				utils.MustMatchRowSet(t, want, drain(t, ps))
			})
		}
	}
}

func TestHashJoinEmptyInner(t *testing.T) {
	t.Run("inner join skips the outer side", func(t *testing.T) {
		es := newTestState(t, 0, nil)
		ps := initTest(t, es, hashJoinPlan(opcode.InnerJoin, intValues(1, 2, 3), emptyValues(1), 1), 0)
		assert.Empty(t, drain(t, ps))
		assert.Zero(t, ps.Inputs()[0].Instrumentation().Calls)
	})
	t.Run("left join returns every outer row", func(t *testing.T) {
		es := newTestState(t, 0, nil)
		ps := initTest(t, es, hashJoinPlan(opcode.LeftJoin, intValues(1, 2, 3), emptyValues(1), 1), 0)
		assert.Equal(t, []string{"(1, NULL)", "(2, NULL)", "(3, NULL)"}, rowStrings(drain(t, ps)))
	})
	t.Run("anti join returns every outer row", func(t *testing.T) {
		es := newTestState(t, 0, nil)
		ps := initTest(t, es, hashJoinPlan(opcode.AntiJoin, intValues(1, 2, 3), emptyValues(1), 1), 0)
		assert.Equal(t, []string{"(1)", "(2)", "(3)"}, rowStrings(drain(t, ps)))
	})
}

func TestHashJoinReusesTable(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, hashJoinPlan(opcode.InnerJoin, intValues(1, 2, 3), intValues(2, 3, 4), 3), 0)
	want := []string{"(2, 2)", "(3, 3)"}
	assert.Equal(t, want, rowStrings(drain(t, ps)))

	for range 2 {
		require.NoError(t, ps.ReScan())
		assert.Equal(t, want, rowStrings(drain(t, ps)))
	}
	// the single batch table survives the rescans, so the Hash input was
	// not read again
	hash := ps.Inputs()[1]
	assert.EqualValues(t, 1, hash.Instrumentation().Loops)
	assert.EqualValues(t, 3, ps.Instrumentation().Loops)
}

func TestHashJoinRebuildsOnParamChange(t *testing.T) {
	filtered := intValues(1, 2, 3)
	filtered.Qual = []evalengine.Expr{eq(scanCol(0), &evalengine.Param{ID: 0})}

	es := newTestState(t, 1, nil)
	ps := initTest(t, es, &plan.NestLoop{
		Base: plan.Base{
			Left:  intValues(1, 2),
			Right: hashJoinPlan(opcode.InnerJoin, intValues(1, 2, 3), filtered, 1),
		},
		JoinType: opcode.InnerJoin,
		Params:   []plan.NestLoopParam{{ParamID: 0, OuterCol: 0}},
	}, 0)
	assert.Equal(t, []string{"(1, 1, 1)", "(2, 2, 2)"}, rowStrings(drain(t, ps)))
}

func TestHashJoinRebuildsOnInnerKeyParam(t *testing.T) {
	// the parameter only appears in the inner hash key, which belongs to
	// the join rather than to its Hash input
	hj := hashJoinPlan(opcode.InnerJoin, intValues(10, 20), intValues(9, 18), 2)
	hj.Clauses[0].InnerKey = &evalengine.Arithmetic{Op: evalengine.Add, Left: innerCol(0), Right: &evalengine.Param{ID: 0}}

	es := newTestState(t, 1, nil)
	ps := initTest(t, es, &plan.NestLoop{
		Base:     plan.Base{Left: intValues(1, 2), Right: hj},
		JoinType: opcode.InnerJoin,
		Params:   []plan.NestLoopParam{{ParamID: 0, OuterCol: 0}},
	}, 0)
	assert.Equal(t, []string{"(1, 10, 9)", "(2, 20, 18)"}, rowStrings(drain(t, ps)))
	assert.EqualValues(t, 2, ps.Inputs()[1].Inputs()[1].Instrumentation().Loops)
}

func TestHashJoinRejectsRightJoin(t *testing.T) {
	es := newTestState(t, 0, nil)
	_, err := InitNode(t.Context(), hashJoinPlan(opcode.RightJoin, intValues(1), intValues(1), 1), es, 0)
	require.Error(t, err)
	assert.Equal(t, vterrors.UNIMPLEMENTED, vterrors.Code(err))

	_, err = InitNode(t.Context(), &plan.HashJoin{
		Base:    plan.Base{Left: intValues(1), Right: intValues(1)},
		Clauses: []plan.HashClause{{OuterKey: outerCol(0), InnerKey: innerCol(0)}},
	}, es, 0)
	require.Error(t, err)
	assert.Equal(t, vterrors.BadPlan, vterrors.ErrState(err))
}

func mergeJoinPlan(jt opcode.JoinType, outer, inner plan.Node) *plan.MergeJoin {
	return &plan.MergeJoin{
		Base:     plan.Base{Left: outer, Right: inner},
		JoinType: jt,
		Clauses:  []plan.MergeClause{{OuterKey: outerCol(0), InnerKey: innerCol(0)}},
	}
}

func TestMergeJoin(t *testing.T) {
	// (key, id), sorted on key with NULLs last
	outer := valuesOf([]any{1, 10}, []any{1, 11}, []any{2, 12}, []any{3, 13}, []any{3, 14}, []any{5, 15}, []any{nil, 16})
	inner := valuesOf([]any{1, 20}, []any{1, 21}, []any{3, 22}, []any{3, 23}, []any{3, 24}, []any{4, 25}, []any{nil, 26})

	pairs := []string{
		"(1, 10, 1, 20)", "(1, 10, 1, 21)", "(1, 11, 1, 20)", "(1, 11, 1, 21)",
		"(3, 13, 3, 22)", "(3, 13, 3, 23)", "(3, 13, 3, 24)",
		"(3, 14, 3, 22)", "(3, 14, 3, 23)", "(3, 14, 3, 24)",
	}
	outerOnly := []string{"(2, 12, NULL, NULL)", "(5, 15, NULL, NULL)", "(NULL, 16, NULL, NULL)"}
	innerOnly := []string{"(NULL, NULL, 4, 25)", "(NULL, NULL, NULL, 26)"}

	tcases := []struct {
		joinType opcode.JoinType
		want     []string
	}{
		{joinType: opcode.InnerJoin, want: pairs},
		{joinType: opcode.LeftJoin, want: append(append([]string{}, pairs...), outerOnly...)},
		{joinType: opcode.RightJoin, want: append(append([]string{}, pairs...), innerOnly...)},
		{joinType: opcode.FullJoin, want: append(append(append([]string{}, pairs...), outerOnly...), innerOnly...)},
		{joinType: opcode.SemiJoin, want: []string{"(1, 10)", "(1, 11)", "(3, 13)", "(3, 14)"}},
		{joinType: opcode.AntiJoin, want: []string{"(2, 12)", "(5, 15)", "(NULL, 16)"}},
	}
	for _, tcase := range tcases {
		t.Run(tcase.joinType.String(), func(t *testing.T) {
			es := newTestState(t, 0, nil)
			ps := initTest(t, es, mergeJoinPlan(tcase.joinType, outer, inner), 0)
			assert.ElementsMatch(t, tcase.want, rowStrings(drain(t, ps)))

			require.NoError(t, ps.ReScan())
			assert.ElementsMatch(t, tcase.want, rowStrings(drain(t, ps)))
		})
	}
}

func TestMergeJoinMatchesNestLoop(t *testing.T) {
	outer, inner := joinInputs(120, 90)
	sorted := func(n plan.Node) plan.Node {
		return &plan.Sort{Base: plan.Base{Left: n}, Keys: []plan.SortKey{{Col: 0}}}
	}
	for _, jt := range []opcode.JoinType{opcode.InnerJoin, opcode.LeftJoin, opcode.SemiJoin, opcode.AntiJoin} {
		t.Run(jt.String(), func(t *testing.T) {
			es := newTestState(t, 0, nil)
			want := drain(t, initTest(t, es, &plan.NestLoop{
				Base:     plan.Base{Left: outer, Right: inner},
				JoinType: jt,
				JoinQual: []evalengine.Expr{eq(outerCol(0), innerCol(0))},
			}, 0))
			got := drain(t, initTest(t, es, mergeJoinPlan(jt, sorted(outer), sorted(inner)), 0))
			utils.MustMatchRowSet(t, want, got)
		})
	}
}

func TestMergeJoinMaterializesInner(t *testing.T) {
	es := newTestState(t, 0, nil)
	inner := &plan.SubqueryScan{Base: plan.Base{Left: intValues(1, 1, 2)}}
	ps := initTest(t, es, mergeJoinPlan(opcode.InnerJoin, intValues(1, 1, 2), inner), 0)

	_, ok := ps.Inputs()[1].(*MaterialState)
	require.True(t, ok, "inner input is %T", ps.Inputs()[1])
	assert.Equal(t, []string{"(1, 1)", "(1, 1)", "(1, 1)", "(1, 1)", "(2, 2)"}, rowStrings(drain(t, ps)))

	desc := StateToPlanDescription(ps)
	assert.Equal(t, "Material", desc.Inputs[1].OperatorType)
}

func TestMergeJoinQual(t *testing.T) {
	outer := valuesOf([]any{1, 1}, []any{1, 2}, []any{2, 3})
	inner := valuesOf([]any{1, 2}, []any{1, 5}, []any{2, 3})

	es := newTestState(t, 0, nil)
	n := mergeJoinPlan(opcode.LeftJoin, outer, inner)
	n.JoinQual = []evalengine.Expr{eq(outerCol(1), innerCol(1))}
	ps := initTest(t, es, n, 0)
	assert.Equal(t, []string{"(1, 1, NULL, NULL)", "(1, 2, 1, 2)", "(2, 3, 2, 3)"}, rowStrings(drain(t, ps)))

	n = mergeJoinPlan(opcode.FullJoin, outer, inner)
	n.JoinQual = []evalengine.Expr{eq(outerCol(1), innerCol(1))}
	_, err := InitNode(t.Context(), n, es, 0)
	require.Error(t, err)
	assert.Equal(t, vterrors.UNIMPLEMENTED, vterrors.Code(err))
}

func TestJoinEndWithoutNext(t *testing.T) {
	store := newTestStore(t, 20, 4)
	scan := func() plan.Node { return &plan.SeqScan{Relation: "t"} }
	sortedScan := func() plan.Node {
		return &plan.Sort{Base: plan.Base{Left: scan()}, Keys: []plan.SortKey{{Col: 1}}}
	}
	clause := []plan.HashClause{{OuterKey: outerCol(1), InnerKey: innerCol(1)}}
	nodes := map[string]plan.Node{
		"nestloop": &plan.NestLoop{Base: plan.Base{Left: scan(), Right: scan()}},
		"merge": &plan.MergeJoin{
			Base:    plan.Base{Left: sortedScan(), Right: sortedScan()},
			Clauses: []plan.MergeClause{{OuterKey: outerCol(1), InnerKey: innerCol(1)}},
		},
		"hash": &plan.HashJoin{
			Base:    plan.Base{Left: scan(), Right: &plan.Hash{Base: plan.Base{Left: scan()}}},
			Clauses: clause,
		},
	}
	for name, n := range nodes {
		t.Run(name, func(t *testing.T) {
			es := newTestState(t, 0, store)
			ps := initTest(t, es, n, 0)
			require.NoError(t, ps.End())
			require.NoError(t, ps.End())

			es = newTestState(t, 0, store)
			ps = initTest(t, es, n, 0)
			rows := nextN(t, ps, 3)
			assert.Len(t, rows, 3)
			require.NoError(t, es.endAll())
			assert.Zero(t, store.PinnedBuffers())
		})
	}
}

func TestNestLoopTargetList(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, &plan.NestLoop{
		Base: plan.Base{
			Left:       intValues(1, 2),
			Right:      intValues(10, 20),
			TargetList: []evalengine.Expr{innerCol(0), outerCol(0)},
		},
	}, 0)
	want := sqltypes.MakeTestRows("int64|int64", "10|1", "20|1", "10|2", "20|2")
	assert.Equal(t, rowStrings(want), rowStrings(drain(t, ps)))
}

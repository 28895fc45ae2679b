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
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/engine/opcode"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/storage"
)

func seq(from, to int) *plan.ValuesScan {
	var vals []int
	for i := from; i <= to; i++ {
		vals = append(vals, i)
	}
	return intValues(vals...)
}

func TestSort(t *testing.T) {
	input := valuesOf([]any{3}, []any{1}, []any{nil}, []any{2})

	tcases := []struct {
		name string
		key  plan.SortKey
		want []string
	}{
		{name: "ascending", key: plan.SortKey{Col: 0}, want: []string{"(1)", "(2)", "(3)", "(NULL)"}},
		{name: "descending nulls first", key: plan.SortKey{Col: 0, Desc: true, NullsFirst: true}, want: []string{"(NULL)", "(3)", "(2)", "(1)"}},
		{name: "ascending nulls first", key: plan.SortKey{Col: 0, NullsFirst: true}, want: []string{"(NULL)", "(1)", "(2)", "(3)"}},
	}
	for _, tcase := range tcases {
		t.Run(tcase.name, func(t *testing.T) {
			es := newTestState(t, 0, nil)
			ps := initTest(t, es, &plan.Sort{Base: plan.Base{Left: input}, Keys: []plan.SortKey{tcase.key}}, 0)
			assert.Equal(t, tcase.want, rowStrings(drain(t, ps)))
		})
	}
}

func TestSortSpills(t *testing.T) {
	es := newTestState(t, 0, nil)
	es.Config.WorkMem = 1024
	var vals []int
	for i := range 500 {
		vals = append(vals, (i*7919)%500)
	}
	ps := initTest(t, es, &plan.Sort{Base: plan.Base{Left: intValues(vals...)}, Keys: []plan.SortKey{{Col: 0}}}, 0)
	got := ids(drain(t, ps))
	require.Len(t, got, 500)
	for i, v := range got {
		assert.EqualValues(t, i, v)
	}
}

func TestSortUnique(t *testing.T) {
	es := newTestState(t, 0, nil)
	n := &plan.Unique{
		Base: plan.Base{Left: &plan.Sort{Base: plan.Base{Left: intValues(3, 1, 2, 1, 3)}, Keys: []plan.SortKey{{Col: 0}}}},
		Cols: []int{0},
	}
	ps := initTest(t, es, n, EFlagBackward|EFlagRewind)
	assert.Equal(t, []int64{1, 2, 3}, ids(drain(t, ps)))

	es.Direction = storage.Backward
	assert.Equal(t, []int64{3, 2, 1}, ids(drain(t, ps)))

	es.Direction = storage.Forward
	require.NoError(t, ps.ReScan())
	assert.Equal(t, []int64{1, 2, 3}, ids(drain(t, ps)))
	// the sorted rows were kept for the rescan
	assert.EqualValues(t, 1, ps.Inputs()[0].Inputs()[0].Instrumentation().Loops)
}

func TestUniqueRejectsMark(t *testing.T) {
	es := newTestState(t, 0, nil)
	_, err := InitNode(t.Context(), &plan.Unique{Base: plan.Base{Left: intValues(1)}, Cols: []int{0}}, es, EFlagMark)
	require.Error(t, err)
	assert.Equal(t, vterrors.BadPlan, vterrors.ErrState(err))
}

func limitPlan(input plan.Node, offset, count evalengine.Expr) *plan.Limit {
	return &plan.Limit{Base: plan.Base{Left: input}, Offset: offset, Count: count}
}

func TestLimit(t *testing.T) {
	tcases := []struct {
		name          string
		offset, count evalengine.Expr
		want          []int64
	}{
		{name: "offset and count", offset: lit(2), count: lit(3), want: []int64{3, 4, 5}},
		{name: "count only", count: lit(2), want: []int64{1, 2}},
		{name: "offset only", offset: lit(8), want: []int64{9, 10}},
		{name: "null count means all", offset: lit(7), count: nullLit(), want: []int64{8, 9, 10}},
		{name: "null offset means zero", offset: nullLit(), count: lit(1), want: []int64{1}},
		{name: "count zero", count: lit(0), want: []int64{}},
		{name: "offset past the end", offset: lit(20), count: lit(3), want: []int64{}},
		{name: "window past the end", offset: lit(8), count: lit(5), want: []int64{9, 10}},
	}
	for _, tcase := range tcases {
		t.Run(tcase.name, func(t *testing.T) {
			es := newTestState(t, 0, nil)
			ps := initTest(t, es, limitPlan(seq(1, 10), tcase.offset, tcase.count), 0)
			assert.Equal(t, tcase.want, ids(drain(t, ps)))
			require.NoError(t, ps.ReScan())
			assert.Equal(t, tcase.want, ids(drain(t, ps)))
		})
	}
}

func TestLimitNegative(t *testing.T) {
	for _, n := range []*plan.Limit{
		limitPlan(seq(1, 3), lit(-1), nil),
		limitPlan(seq(1, 3), nil, lit(-5)),
	} {
		es := newTestState(t, 0, nil)
		ps := initTest(t, es, n, 0)
		_, err := ps.Next(t.Context())
		require.Error(t, err)
		assert.Equal(t, vterrors.INVALID_ARGUMENT, vterrors.Code(err))
		assert.Equal(t, vterrors.DataOutOfRange, vterrors.ErrState(err))
	}
}

func TestLimitBackward(t *testing.T) {
	t.Run("from the window end", func(t *testing.T) {
		es := newTestState(t, 0, nil)
		ps := initTest(t, es, limitPlan(seq(1, 10), lit(2), lit(3)), EFlagBackward)
		assert.Equal(t, []int64{3, 4, 5}, ids(drain(t, ps)))

		es.Direction = storage.Backward
		assert.Equal(t, []int64{5, 4, 3}, ids(drain(t, ps)))

		es.Direction = storage.Forward
		assert.Equal(t, []int64{3, 4, 5}, ids(drain(t, ps)))
	})
	t.Run("from the end of the input", func(t *testing.T) {
		es := newTestState(t, 0, nil)
		ps := initTest(t, es, limitPlan(seq(1, 10), lit(7), lit(20)), EFlagBackward)
		assert.Equal(t, []int64{8, 9, 10}, ids(drain(t, ps)))

		es.Direction = storage.Backward
		assert.Equal(t, []int64{10, 9, 8}, ids(drain(t, ps)))
	})
	t.Run("through material", func(t *testing.T) {
		es := newTestState(t, 0, nil)
		input := &plan.Material{Base: plan.Base{Left: &plan.SubqueryScan{Base: plan.Base{Left: seq(1, 10)}}}}
		ps := initTest(t, es, limitPlan(input, lit(2), lit(3)), EFlagBackward)
		assert.Equal(t, []int64{3, 4}, ids(nextN(t, ps, 2)))

		es.Direction = storage.Backward
		assert.Equal(t, []int64{3}, ids(drain(t, ps)))
	})
}

func TestLimitBoundsSort(t *testing.T) {
	es := newTestState(t, 0, nil)
	sorted := &plan.Sort{Base: plan.Base{Left: intValues(9, 3, 7, 1, 5, 2, 8)}, Keys: []plan.SortKey{{Col: 0, Desc: true}}}
	ps := initTest(t, es, limitPlan(sorted, lit(1), lit(2)), 0)
	assert.Equal(t, []int64{8, 7}, ids(drain(t, ps)))

	sort := ps.Inputs()[0].(*SortState)
	assert.EqualValues(t, 3, sort.bound)
	assert.EqualValues(t, 3, sort.sortedBound)
}

func TestLimitParam(t *testing.T) {
	es := newTestState(t, 1, nil)
	es.Params[0] = sqltypes.NewInt64(2)
	ps := initTest(t, es, limitPlan(seq(1, 10), nil, &evalengine.Param{ID: 0}), 0)
	assert.Equal(t, []int64{1, 2}, ids(drain(t, ps)))

	es.Params[0] = sqltypes.NewInt64(4)
	ps.base().chgParam.Set(0)
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(drain(t, ps)))
}

func TestMaterialMarkRestore(t *testing.T) {
	es := newTestState(t, 0, nil)
	input := &plan.SubqueryScan{Base: plan.Base{Left: seq(1, 5)}}
	ps := initTest(t, es, &plan.Material{Base: plan.Base{Left: input}}, EFlagMark)

	assert.Equal(t, []int64{1, 2}, ids(nextN(t, ps, 2)))
	require.NoError(t, MarkPos(ps))
	assert.Equal(t, []int64{3, 4}, ids(nextN(t, ps, 2)))
	require.NoError(t, RestorePos(ps))
	assert.Equal(t, []int64{2, 3, 4, 5}, ids(drain(t, ps)))

	// the input was read once
	assert.EqualValues(t, 6, ps.Inputs()[0].Instrumentation().Calls)
}

func TestMaterialRescan(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, &plan.Material{Base: plan.Base{Left: seq(1, 3)}}, EFlagRewind)
	assert.Equal(t, []int64{1, 2, 3}, ids(drain(t, ps)))
	require.NoError(t, ps.ReScan())
	assert.Equal(t, []int64{1, 2, 3}, ids(drain(t, ps)))
	assert.EqualValues(t, 1, ps.Inputs()[0].Instrumentation().Loops)
}

func TestMarkUnsupported(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, &plan.SubqueryScan{Base: plan.Base{Left: seq(1, 2)}}, 0)
	require.Error(t, MarkPos(ps))
	require.Error(t, RestorePos(ps))

	ps = initTest(t, es, &plan.Sort{Base: plan.Base{Left: seq(1, 2)}, Keys: []plan.SortKey{{Col: 0}}}, EFlagMark)
	err := RestorePos(ps)
	require.Error(t, err)
	assert.Equal(t, vterrors.CursorNotMarked, vterrors.ErrState(err))
}

func aggs(codes ...opcode.AggregateOpcode) []*evalengine.Aggregate {
	out := make([]*evalengine.Aggregate, len(codes))
	for i, c := range codes {
		out[i] = &evalengine.Aggregate{Opcode: c, Arg: scanCol(1)}
		if c == opcode.AggregateCountStar {
			out[i].Arg = nil
		}
	}
	return out
}

func TestAggPlain(t *testing.T) {
	n := func(input plan.Node) *plan.Agg {
		in := &plan.Result{Base: plan.Base{Left: input, TargetList: []evalengine.Expr{scanCol(0), scanCol(0)}}}
		return &plan.Agg{
			Base:       plan.Base{Left: in},
			Strategy:   opcode.AggPlain,
			Aggregates: aggs(opcode.AggregateCountStar, opcode.AggregateSum, opcode.AggregateMin, opcode.AggregateMax, opcode.AggregateCount),
		}
	}
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, n(intValues(1, 2, 3)), 0)
	assert.Equal(t, []string{"(3, 6, 1, 3, 3)"}, rowStrings(drain(t, ps)))
	require.NoError(t, ps.ReScan())
	assert.Equal(t, []string{"(3, 6, 1, 3, 3)"}, rowStrings(drain(t, ps)))

	ps = initTest(t, es, n(emptyValues(1)), 0)
	assert.Equal(t, []string{"(0, NULL, NULL, NULL, 0)"}, rowStrings(drain(t, ps)))
}

func groupedInput() *plan.ValuesScan {
	return valuesOf([]any{1, 10}, []any{1, 20}, []any{2, 5}, []any{3, nil})
}

func TestAggSorted(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, &plan.Agg{
		Base:       plan.Base{Left: groupedInput()},
		Strategy:   opcode.AggSorted,
		GroupCols:  []int{0},
		Aggregates: aggs(opcode.AggregateCount, opcode.AggregateMax),
	}, 0)
	want := []string{"(1, 2, 20)", "(2, 1, 5)", "(3, 0, NULL)"}
	assert.Equal(t, want, rowStrings(drain(t, ps)))
	require.NoError(t, ps.ReScan())
	assert.Equal(t, want, rowStrings(drain(t, ps)))
}

func TestAggHashed(t *testing.T) {
	input := valuesOf([]any{2, 5}, []any{1, 10}, []any{3, nil}, []any{1, 20})
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, &plan.Agg{
		Base:       plan.Base{Left: input},
		Strategy:   opcode.AggHashed,
		GroupCols:  []int{0},
		Aggregates: aggs(opcode.AggregateCount, opcode.AggregateMax),
		NumGroups:  3,
	}, 0)
	want := []string{"(1, 2, 20)", "(2, 1, 5)", "(3, 0, NULL)"}
	assert.ElementsMatch(t, want, rowStrings(drain(t, ps)))

	// the hash table is kept across a rescan
	require.NoError(t, ps.ReScan())
	assert.ElementsMatch(t, want, rowStrings(drain(t, ps)))
	assert.EqualValues(t, 1, ps.Inputs()[0].Instrumentation().Loops)
}

func TestAggHaving(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, &plan.Agg{
		Base: plan.Base{
			Left:       groupedInput(),
			Qual:       []evalengine.Expr{evalengine.NewComparison(evalengine.Greater, &evalengine.AggRef{Index: 0}, lit(0))},
			TargetList: []evalengine.Expr{scanCol(0), &evalengine.AggRef{Index: 1}},
		},
		Strategy:   opcode.AggSorted,
		GroupCols:  []int{0},
		Aggregates: aggs(opcode.AggregateCount, opcode.AggregateMin),
	}, 0)
	assert.Equal(t, []string{"(1, 10)", "(2, 5)"}, rowStrings(drain(t, ps)))
}

func TestAggBadPlan(t *testing.T) {
	es := newTestState(t, 0, nil)
	_, err := InitNode(t.Context(), &plan.Agg{
		Base:      plan.Base{Left: groupedInput()},
		Strategy:  opcode.AggPlain,
		GroupCols: []int{0},
	}, es, 0)
	require.Error(t, err)
	assert.Equal(t, vterrors.BadPlan, vterrors.ErrState(err))

	_, err = InitNode(t.Context(), &plan.Agg{
		Base:      plan.Base{Left: groupedInput()},
		Strategy:  opcode.AggSorted,
		GroupCols: []int{4},
	}, es, 0)
	require.Error(t, err)
	assert.Equal(t, vterrors.BadPlan, vterrors.ErrState(err))
}

func TestGroup(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, &plan.Group{
		Base: plan.Base{Left: valuesOf([]any{1, "a"}, []any{1, "b"}, []any{2, "c"}, []any{nil, "d"}, []any{nil, "e"})},
		Cols: []int{0},
	}, 0)
	want := []string{`(1, "a")`, `(2, "c")`, `(NULL, "d")`}
	assert.Equal(t, want, rowStrings(drain(t, ps)))
	require.NoError(t, ps.ReScan())
	assert.Equal(t, want, rowStrings(drain(t, ps)))
}

func TestSetOp(t *testing.T) {
	// (value, flag) sorted on value; flag 0 is the left input
	input := valuesOf(
		[]any{1, 0}, []any{1, 0}, []any{1, 1},
		[]any{2, 0},
		[]any{3, 0}, []any{3, 1}, []any{3, 1},
		[]any{4, 1},
	)
	tcases := []struct {
		cmd  opcode.SetOpCmd
		want []int64
	}{
		{cmd: opcode.Intersect, want: []int64{1, 3}},
		{cmd: opcode.IntersectAll, want: []int64{1, 3}},
		{cmd: opcode.Except, want: []int64{2}},
		{cmd: opcode.ExceptAll, want: []int64{1, 2}},
		{cmd: opcode.Union, want: []int64{1, 2, 3, 4}},
		{cmd: opcode.UnionAll, want: []int64{1, 1, 1, 2, 3, 3, 3, 4}},
	}
	for _, tcase := range tcases {
		t.Run(tcase.cmd.String(), func(t *testing.T) {
			es := newTestState(t, 0, nil)
			ps := initTest(t, es, &plan.SetOp{Base: plan.Base{Left: input}, Cmd: tcase.cmd, Cols: []int{0}, FlagCol: 1}, 0)
			assert.Equal(t, 1, ps.Arity())
			assert.Equal(t, tcase.want, ids(drain(t, ps)))
			require.NoError(t, ps.ReScan())
			assert.Equal(t, tcase.want, ids(drain(t, ps)))
		})
	}
}

func TestSetOpBadFlag(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, &plan.SetOp{Base: plan.Base{Left: valuesOf([]any{1, 7})}, Cmd: opcode.Intersect, Cols: []int{0}, FlagCol: 1}, 0)
	_, err := ps.Next(t.Context())
	require.Error(t, err)
	assert.Equal(t, vterrors.INTERNAL, vterrors.Code(err))
}

func TestPipelineEndWithoutNext(t *testing.T) {
	sorted := func() plan.Node {
		return &plan.Sort{Base: plan.Base{Left: groupedInput()}, Keys: []plan.SortKey{{Col: 0}}}
	}
	nodes := map[string]plan.Node{
		"sort":     sorted(),
		"unique":   &plan.Unique{Base: plan.Base{Left: sorted()}, Cols: []int{0}},
		"group":    &plan.Group{Base: plan.Base{Left: sorted()}, Cols: []int{0}},
		"agg":      &plan.Agg{Base: plan.Base{Left: sorted()}, Strategy: opcode.AggHashed, GroupCols: []int{0}, Aggregates: aggs(opcode.AggregateCountStar)},
		"setop":    &plan.SetOp{Base: plan.Base{Left: valuesOf([]any{1, 0})}, Cmd: opcode.Union, Cols: []int{0}, FlagCol: 1},
		"limit":    limitPlan(sorted(), lit(1), lit(1)),
		"material": &plan.Material{Base: plan.Base{Left: sorted()}},
	}
	for name, n := range nodes {
		t.Run(name, func(t *testing.T) {
			es := newTestState(t, 0, nil)
			ps := initTest(t, es, n, 0)
			require.NoError(t, ps.End())
			require.NoError(t, ps.End())

			_, err := ps.Next(t.Context())
			require.Error(t, err)
			assert.Equal(t, vterrors.INTERNAL, vterrors.Code(err))
			require.Error(t, ps.ReScan())

			// and after a partial read
			ps = initTest(t, es, n, 0)
			nextN(t, ps, 1)
			require.NoError(t, ps.End())
		})
	}
}

func TestLoopsCountScansThatWereRead(t *testing.T) {
	es := newTestState(t, 0, nil)
	ps := initTest(t, es, seq(1, 3), 0)
	require.NoError(t, ps.ReScan())
	require.NoError(t, ps.ReScan())
	assert.EqualValues(t, 1, ps.Instrumentation().Loops)

	assert.Equal(t, []int64{1, 2, 3}, ids(drain(t, ps)))
	require.NoError(t, ps.ReScan())
	assert.Equal(t, []int64{1, 2, 3}, ids(drain(t, ps)))
	assert.EqualValues(t, 2, ps.Instrumentation().Loops)
}

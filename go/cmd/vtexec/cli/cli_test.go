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
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitess.io/vtexec/go/vt/vtexec/engine"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/storage/sqlitestore"
)

const sortedPlan = `
tables:
  - name: t
    columns: [{name: id, type: int64}, {name: name, type: text}]
    rows: [[1, a], [2, b], [3, c], [4, d]]
plan:
  op: Limit
  count: 2
  input:
    op: Sort
    sort_keys: [{col: 0, desc: true}]
    input:
      op: SeqScan
      relation: t
      target: [{col: 0, name: id}, {col: 1, name: name}]
`

const seriesPlan = `
plan:
  op: NestLoop
  join_type: semi
  join_qual: [{op: "=", args: [{col: 0, from: outer}, {col: 0, from: inner}]}]
  target: [{col: 0, from: outer}]
  input: {op: FunctionScan, func: generate_series, args: [1, 5]}
  inner: {op: ValuesScan, values: [[1], [2], [3], [4], [5]]}
`

// execute runs the vtexec command with args against a filesystem holding
// the given plan files, and returns stdout and stderr.
func execute(t *testing.T, files map[string]string, args ...string) (string, string, error) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	var stdout, stderr bytes.Buffer
	root := newRoot(fs)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRunTSV(t *testing.T) {
	out, _, err := execute(t, map[string]string{"/plan.yaml": sortedPlan}, "run", "/plan.yaml")
	require.NoError(t, err)
	assert.Equal(t, "4\td\n3\tc\n", out)
}

func TestRunTable(t *testing.T) {
	out, _, err := execute(t, map[string]string{"/plan.yaml": sortedPlan}, "run", "--format", "table", "/plan.yaml")
	require.NoError(t, err)
	header := strings.ToLower(strings.SplitN(out, "\n", 3)[1])
	assert.Contains(t, header, "id")
	assert.Contains(t, header, "name")
	assert.NotContains(t, header, "column")
	assert.Contains(t, out, "(2 rows)")
}

func TestColumnNames(t *testing.T) {
	scan := &plan.SeqScan{Base: plan.Base{TargetList: []evalengine.Expr{
		&evalengine.Column{Source: evalengine.ScanRow, Index: 0, Name: "id"},
		&evalengine.Column{Source: evalengine.ScanRow, Index: 1},
	}}}
	root := &plan.Limit{Base: plan.Base{Left: &plan.Sort{Base: plan.Base{Left: scan}}}}
	assert.Equal(t, []string{"id", "column2"}, columnNames(root, 2))

	// a projecting node hides the names below it
	agg := &plan.Agg{Base: plan.Base{Left: scan}}
	assert.Equal(t, []string{"column1", "column2"}, columnNames(agg, 2))
}

func TestRunBackward(t *testing.T) {
	out, _, err := execute(t, map[string]string{"/series.yaml": seriesPlan}, "run", "--backward", "--limit", "2", "/series.yaml")
	require.NoError(t, err)
	assert.Equal(t, "5\n4\n", out)

	out, _, err = execute(t, map[string]string{"/series.yaml": seriesPlan}, "run", "--limit", "2", "/series.yaml")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n", out)
}

func TestRunAnalyze(t *testing.T) {
	out, errOut, err := execute(t, map[string]string{"/plan.yaml": sortedPlan}, "run", "--analyze", "/plan.yaml")
	require.NoError(t, err)
	assert.Equal(t, "4\td\n3\tc\n", out)
	assert.Contains(t, errOut, "Limit [calls=3 rows=2 loops=1]")
	assert.Contains(t, errOut, "SeqScan [calls=5 rows=4 loops=1]")
}

func TestRunSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")
	db, err := sqlitestore.Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, db.Exec(ctx, "CREATE TABLE t (id INTEGER, name TEXT)"))
	require.NoError(t, db.Exec(ctx, "INSERT INTO t VALUES (1, 'x'), (2, 'y'), (3, 'z')"))
	require.NoError(t, db.Close())

	out, _, err := execute(t, map[string]string{"/plan.yaml": sortedPlan}, "run", "--sqlite", path, "/plan.yaml")
	require.NoError(t, err)
	assert.Equal(t, "3\tz\n2\ty\n", out)
}

func TestExplain(t *testing.T) {
	files := map[string]string{"/plan.yaml": sortedPlan}

	out, _, err := execute(t, files, "explain", "/plan.yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Limit\n"), out)
	assert.Contains(t, out, "Sort")
	assert.Contains(t, out, "SortKey: 0 DESC")
	assert.NotContains(t, out, "calls=")

	out, _, err = execute(t, files, "explain", "--format", "json", "/plan.yaml")
	require.NoError(t, err)
	var desc engine.PlanDescription
	require.NoError(t, json.Unmarshal([]byte(out), &desc))
	assert.Equal(t, "Limit", desc.OperatorType)
	require.Len(t, desc.Inputs, 1)
	assert.Equal(t, "Sort", desc.Inputs[0].OperatorType)
	assert.Nil(t, desc.Instr)

	out, _, err = execute(t, files, "explain", "--analyze", "/plan.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Limit [calls=3 rows=2 loops=1]")
}

func TestCommandErrors(t *testing.T) {
	files := map[string]string{"/plan.yaml": sortedPlan, "/bad.yaml": "plan: {op: Teleport}"}
	tcases := []struct {
		name string
		args []string
		want string
	}{{
		name: "missing file",
		args: []string{"run", "/nope.yaml"},
		want: "cannot read plan file",
	}, {
		name: "bad plan",
		args: []string{"run", "/bad.yaml"},
		want: "unknown node",
	}, {
		name: "bad run format",
		args: []string{"run", "--format", "xml", "/plan.yaml"},
		want: "unknown format",
	}, {
		name: "bad explain format",
		args: []string{"explain", "--format", "table", "/plan.yaml"},
		want: "unknown format",
	}, {
		name: "negative limit",
		args: []string{"run", "--limit", "-1", "/plan.yaml"},
		want: "must not be negative",
	}, {
		name: "no plan file",
		args: []string{"run"},
		want: "accepts 1 arg",
	}}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := execute(t, files, tc.args...)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

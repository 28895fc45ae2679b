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
	"fmt"
	"sort"
	"strings"

	"github.com/xlab/treeprint"

	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
)

// PlanDescription is used to create a serializable representation of the
// operator tree
type PlanDescription struct {
	OperatorType string
	Variant      string            `json:",omitempty"`
	Other        map[string]any    `json:",omitempty"`
	Instr        *Instrumentation  `json:"Instrumentation,omitempty"`
	Inputs       []PlanDescription `json:",omitempty"`
}

// NodeToPlanDescription transforms a plan tree into a corresponding
// PlanDescription tree.
func NodeToPlanDescription(n plan.Node) PlanDescription {
	this := describe(n)
	for _, input := range plan.Children(n) {
		this.Inputs = append(this.Inputs, NodeToPlanDescription(input))
	}
	return this
}

// StateToPlanDescription describes an initialized state tree, with the
// counters of each state. Operators added at init, like the Material
// under a merge join, show up here and not in the plan.
func StateToPlanDescription(ps PlanState) PlanDescription {
	this := describe(ps.Plan())
	instr := ps.Instrumentation()
	this.Instr = &instr
	for _, input := range ps.Inputs() {
		this.Inputs = append(this.Inputs, StateToPlanDescription(input))
	}
	return this
}

func exprList(exprs []evalengine.Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func intList(cols []int) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return strings.Join(parts, ", ")
}

func describe(n plan.Node) PlanDescription {
	other := map[string]any{}
	b := n.Common()
	if b.TargetList != nil {
		other["Output"] = exprList(b.TargetList)
	}
	if len(b.Qual) > 0 {
		other["Filter"] = exprList(b.Qual)
	}
	pd := PlanDescription{OperatorType: n.Kind().String()}

	switch n := n.(type) {
	case *plan.Result:
		if len(n.ConstantQual) > 0 {
			other["OneTimeFilter"] = exprList(n.ConstantQual)
		}
	case *plan.SeqScan:
		other["Relation"] = n.Relation
		if len(n.Keys) > 0 {
			other["Keys"] = scanKeys(n.Keys)
		}
	case *plan.IndexScan:
		other["Index"] = n.Index
		if len(n.Keys) > 0 {
			other["Keys"] = scanKeys(n.Keys)
		}
		if n.Backward {
			pd.Variant = "Backward"
		}
	case *plan.FunctionScan:
		other["Function"] = fmt.Sprintf("%s(%s)", n.Func, exprList(n.Args))
	case *plan.ValuesScan:
		other["RowCount"] = len(n.Rows)
	case *plan.CteScan:
		other["CTE"] = n.CTE
	case *plan.NestLoop:
		pd.Variant = n.JoinType.String()
		if len(n.JoinQual) > 0 {
			other["JoinFilter"] = exprList(n.JoinQual)
		}
		if len(n.Params) > 0 {
			params := make([]string, len(n.Params))
			for i, p := range n.Params {
				params[i] = fmt.Sprintf(":%d = outer.%d", p.ParamID, p.OuterCol)
			}
			other["Params"] = strings.Join(params, ", ")
		}
	case *plan.MergeJoin:
		pd.Variant = n.JoinType.String()
		clauses := make([]string, len(n.Clauses))
		for i, c := range n.Clauses {
			clauses[i] = fmt.Sprintf("%s = %s", c.OuterKey, c.InnerKey)
			if c.Desc {
				clauses[i] += " DESC"
			}
		}
		other["MergeCond"] = strings.Join(clauses, ", ")
		if len(n.JoinQual) > 0 {
			other["JoinFilter"] = exprList(n.JoinQual)
		}
	case *plan.HashJoin:
		pd.Variant = n.JoinType.String()
		clauses := make([]string, len(n.Clauses))
		for i, c := range n.Clauses {
			clauses[i] = fmt.Sprintf("%s = %s", c.OuterKey, c.InnerKey)
		}
		other["HashCond"] = strings.Join(clauses, ", ")
		if len(n.JoinQual) > 0 {
			other["JoinFilter"] = exprList(n.JoinQual)
		}
	case *plan.Sort:
		keys := make([]string, len(n.Keys))
		for i, k := range n.Keys {
			keys[i] = fmt.Sprintf("%d", k.Col)
			if k.Desc {
				keys[i] += " DESC"
			}
			if k.NullsFirst {
				keys[i] += " NULLS FIRST"
			}
		}
		other["SortKey"] = strings.Join(keys, ", ")
	case *plan.Group:
		other["GroupBy"] = intList(n.Cols)
	case *plan.Agg:
		pd.Variant = n.Strategy.String()
		if len(n.GroupCols) > 0 {
			other["GroupBy"] = intList(n.GroupCols)
		}
		aggs := make([]string, len(n.Aggregates))
		for i, a := range n.Aggregates {
			aggs[i] = a.String()
		}
		other["Aggregates"] = strings.Join(aggs, ", ")
	case *plan.Unique:
		other["Columns"] = intList(n.Cols)
	case *plan.SetOp:
		pd.Variant = n.Cmd.String()
		other["Columns"] = intList(n.Cols)
		other["FlagColumn"] = n.FlagCol
	case *plan.Limit:
		if n.Count != nil {
			other["Count"] = n.Count.String()
		}
		if n.Offset != nil {
			other["Offset"] = n.Offset.String()
		}
	}
	if len(other) > 0 {
		pd.Other = other
	}
	return pd
}

func scanKeys(keys []plan.ScanKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d %s %s", k.Col, k.Op, k.Value)
	}
	return strings.Join(parts, " AND ")
}

// Title is the one-line summary of the operator.
func (pd PlanDescription) Title() string {
	var sb strings.Builder
	sb.WriteString(pd.OperatorType)
	if pd.Variant != "" {
		sb.WriteString(" (")
		sb.WriteString(pd.Variant)
		sb.WriteString(")")
	}
	if pd.Instr != nil {
		fmt.Fprintf(&sb, " [calls=%d rows=%d loops=%d]", pd.Instr.Calls, pd.Instr.Rows, pd.Instr.Loops)
	}
	return sb.String()
}

// Tree renders the description as an indented tree.
func (pd PlanDescription) Tree() string {
	return pd.asTree(nil).String()
}

func (pd PlanDescription) asTree(root treeprint.Tree) treeprint.Tree {
	var branch treeprint.Tree
	if root == nil {
		branch = treeprint.NewWithRoot(pd.Title())
	} else {
		branch = root.AddBranch(pd.Title())
	}
	keys := make([]string, 0, len(pd.Other))
	for k := range pd.Other {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		branch.AddNode(fmt.Sprintf("%s: %v", k, pd.Other[k]))
	}
	for _, input := range pd.Inputs {
		input.asTree(branch)
	}
	return branch
}

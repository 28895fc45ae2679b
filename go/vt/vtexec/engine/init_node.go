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
	"fmt"

	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/plan"
)

// InitNode builds the state tree for n, inputs first. eflags are the
// capabilities the caller requires from the root.
func InitNode(ctx context.Context, n plan.Node, estate *ExecutionState, eflags EFlags) (PlanState, error) {
	if n == nil {
		return nil, vterrors.VT13001("missing plan node")
	}
	if err := checkFlags(n, eflags); err != nil {
		return nil, err
	}
	switch n := n.(type) {
	case *plan.Result:
		return initResult(ctx, n, estate, eflags)
	case *plan.Append:
		return initAppend(ctx, n, estate, eflags)
	case *plan.SeqScan:
		return initSeqScan(ctx, n, estate, eflags)
	case *plan.IndexScan:
		return initIndexScan(ctx, n, estate, eflags)
	case *plan.FunctionScan:
		return initFunctionScan(ctx, n, estate, eflags)
	case *plan.SubqueryScan:
		return initSubqueryScan(ctx, n, estate, eflags)
	case *plan.ValuesScan:
		return initValuesScan(ctx, n, estate, eflags)
	case *plan.CteScan:
		return initCteScan(ctx, n, estate, eflags)
	case *plan.NestLoop:
		return initNestLoop(ctx, n, estate, eflags)
	case *plan.MergeJoin:
		return initMergeJoin(ctx, n, estate, eflags)
	case *plan.HashJoin:
		return initHashJoin(ctx, n, estate, eflags)
	case *plan.Hash:
		return initHash(ctx, n, estate, eflags)
	case *plan.Material:
		return initMaterial(ctx, n, estate, eflags)
	case *plan.Sort:
		return initSort(ctx, n, estate, eflags)
	case *plan.Group:
		return initGroup(ctx, n, estate, eflags)
	case *plan.Agg:
		return initAgg(ctx, n, estate, eflags)
	case *plan.Unique:
		return initUnique(ctx, n, estate, eflags)
	case *plan.SetOp:
		return initSetOp(ctx, n, estate, eflags)
	case *plan.Limit:
		return initLimit(ctx, n, estate, eflags)
	}
	return nil, vterrors.VT13001(fmt.Sprintf("unrecognized plan node %T", n))
}

// initInput initializes a required child.
func initInput(ctx context.Context, parent, child plan.Node, estate *ExecutionState, eflags EFlags) (PlanState, error) {
	if child == nil {
		return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "%s requires an input", parent.Kind())
	}
	return InitNode(ctx, child, estate, eflags)
}

// checkFlags rejects capabilities the operator for n cannot provide.
func checkFlags(n plan.Node, eflags EFlags) error {
	if eflags.has(EFlagBackward) && !SupportsBackward(n) {
		return vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "%s does not support backward scans", n.Kind())
	}
	if eflags.has(EFlagMark) && !SupportsMark(n) {
		return vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "%s does not support mark and restore", n.Kind())
	}
	return nil
}

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

	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
	"vitess.io/vtexec/go/vt/vtexec/storage"
	"vitess.io/vtexec/go/vt/vtexec/tuplestore"
)

var (
	_ PlanState = (*CteScanState)(nil)
	_ marker    = (*CteScanState)(nil)
)

// cteShared is the part of a CTE common to all the scans reading it: the
// subplan state and the tuplestore it is spooled into on demand.
type cteShared struct {
	name  string
	state PlanState
	store *tuplestore.Store
	// eof is set once the subplan is exhausted.
	eof bool
}

// cte returns the shared state of the named CTE, initializing its subplan
// on first use.
func (es *ExecutionState) cte(ctx context.Context, name string) (*cteShared, error) {
	if shared, ok := es.ctes[name]; ok {
		return shared, nil
	}
	def, ok := es.cteDefs[name]
	if !ok {
		return nil, vterrors.NewErrorf(vterrors.NOT_FOUND, vterrors.NoSuchCTE, "common table expression %s does not exist", name)
	}
	st, err := InitNode(ctx, def, es, 0)
	if err != nil {
		return nil, err
	}
	shared := &cteShared{
		name:  name,
		state: st,
		store: es.newTuplestore("cte-"+name, true),
	}
	es.ctes[name] = shared
	return shared, nil
}

// endCTEs ends every CTE subplan and releases the shared tuplestores.
func (es *ExecutionState) endCTEs() error {
	var err error
	for name, shared := range es.ctes {
		if cerr := shared.state.End(); err == nil {
			err = cerr
		}
		if cerr := es.closeTuplestore("cte", shared.store); err == nil {
			err = cerr
		}
		delete(es.ctes, name)
	}
	return err
}

// CteScanState reads a CTE through its own read pointer into the shared
// tuplestore. A scan that runs past the rows spooled so far pulls the
// next row from the subplan.
type CteScanState struct {
	baseState
	shared *cteShared
	reader *tuplestore.Reader
	scan   *slot.Slot
}

func initCteScan(ctx context.Context, n *plan.CteScan, estate *ExecutionState, eflags EFlags) (*CteScanState, error) {
	shared, err := estate.cte(ctx, n.CTE)
	if err != nil {
		return nil, err
	}
	arity := shared.state.Arity()
	s := &CteScanState{shared: shared, reader: shared.store.NewReader()}
	s.setup(s, n, estate, eflags, arity)
	s.allParam.InPlaceUnion(shared.state.base().allParam)
	s.scan = estate.newSlot(arity)
	return s, nil
}

func (s *CteScanState) fetch(ctx context.Context) (*slot.Slot, error) {
	dir := s.estate.Direction
	row, err := s.reader.Next(dir)
	if err != nil {
		return nil, err
	}
	if row == nil && dir == storage.Forward && !s.shared.eof {
		in, err := s.shared.state.Next(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			s.shared.eof = true
			return nil, nil
		}
		if err := s.shared.store.Append(in.Row()); err != nil {
			return nil, err
		}
		if row, err = s.reader.Next(dir); err != nil {
			return nil, err
		}
	}
	if row == nil {
		return nil, nil
	}
	s.scan.StoreBorrowed(row, nil)
	return s.scan, nil
}

func (s *CteScanState) exec(ctx context.Context) (*slot.Slot, error) {
	for {
		in, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			s.scan.Clear()
			return nil, nil
		}
		s.exprCtx.ResetArena()
		s.exprCtx.Bind(nil, nil, in)
		ok, err := s.qual()
		if err != nil {
			return nil, err
		}
		if ok {
			return s.project(in)
		}
	}
}

func (s *CteScanState) rescan() error {
	s.scan.Clear()
	cte := s.shared.state.base()
	if s.chgParam.IntersectionCardinality(cte.allParam) > 0 {
		// the CTE result depends on a changed parameter: start over for
		// every reader
		if err := s.shared.store.Clear(); err != nil {
			return err
		}
		s.shared.eof = false
		cte.updateChangedParams(s.chgParam)
		return nil
	}
	s.reader.Rewind()
	return nil
}

func (s *CteScanState) shutdown() error {
	s.scan.Clear()
	return nil
}

func (s *CteScanState) markPos() error {
	s.reader.Mark()
	return nil
}

func (s *CteScanState) restrPos() error {
	return s.reader.Restore()
}

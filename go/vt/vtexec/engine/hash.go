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
	"math"
	"math/bits"

	"github.com/dustin/go-humanize"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/evalctx"
	"vitess.io/vtexec/go/vt/vtexec/evalengine"
	"vitess.io/vtexec/go/vt/vtexec/plan"
	"vitess.io/vtexec/go/vt/vtexec/slot"
	"vitess.io/vtexec/go/vt/vtexec/storage"
	"vitess.io/vtexec/go/vt/vtexec/tuplestore"
)

var _ PlanState = (*HashState)(nil)

// hashEntryOverhead approximates the memory of an entry besides its row.
const hashEntryOverhead = 48

type hashEntry struct {
	hash sqltypes.HashCode
	row  sqltypes.Row
	keys sqltypes.Row
	next *hashEntry
}

// hashTable is the in-memory part of a hash join. Rows whose hash falls
// into a batch other than the current one wait in per-batch tuplestores,
// with the hash appended as an extra column.
type hashTable struct {
	estate *ExecutionState

	buckets     []*hashEntry
	log2Buckets int
	nbatch      int
	curBatch    int
	// growEnabled is cleared when doubling the batches did not free any
	// memory, as happens with many rows of the same hash.
	growEnabled bool

	spaceUsed    uint64
	spaceAllowed uint64
	rows         int

	innerBatches []*tuplestore.Store
	outerBatches []*tuplestore.Store
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// newHashTable sizes a table for the estimated inner relation. The number
// of batches is the estimated inner size divided by the work memory,
// rounded up to a power of two.
func newHashTable(estate *ExecutionState, estRows float64, width int) *hashTable {
	cfg := estate.Config
	rows := max(int(math.Ceil(estRows)), 1)
	width = max(width, 8)

	nbatch := 1
	if cfg.WorkMem > 0 {
		inner := float64(rows) * float64(width+hashEntryOverhead)
		if inner > float64(cfg.WorkMem) {
			nbatch = nextPow2(int(math.Ceil(inner / float64(cfg.WorkMem))))
		}
	}
	nbuckets := nextPow2(max(cfg.HashMinBuckets, rows/nbatch, 1))

	ht := &hashTable{
		estate:       estate,
		buckets:      make([]*hashEntry, nbuckets),
		log2Buckets:  bits.TrailingZeros(uint(nbuckets)),
		nbatch:       nbatch,
		growEnabled:  true,
		spaceAllowed: cfg.WorkMem,
	}
	ht.innerBatches = make([]*tuplestore.Store, nbatch)
	ht.outerBatches = make([]*tuplestore.Store, nbatch)
	return ht
}

// bucketBatch returns where a hash goes. The low bits pick the bucket and
// the next ones the batch, so doubling the batches never moves a row to
// an earlier batch.
func (ht *hashTable) bucketBatch(hash sqltypes.HashCode) (bucket, batch int) {
	bucket = int(hash & uint64(len(ht.buckets)-1))
	if ht.nbatch > 1 {
		batch = int((hash >> ht.log2Buckets) & uint64(ht.nbatch-1))
	}
	return bucket, batch
}

// insert puts an owned row into the current batch.
func (ht *hashTable) insert(hash sqltypes.HashCode, row, keys sqltypes.Row) error {
	bucket, _ := ht.bucketBatch(hash)
	ht.buckets[bucket] = &hashEntry{hash: hash, row: row, keys: keys, next: ht.buckets[bucket]}
	ht.rows++
	ht.spaceUsed += uint64(sqltypes.RowSize(row)+sqltypes.RowSize(keys)) + hashEntryOverhead
	if ht.spaceAllowed > 0 && ht.spaceUsed > ht.spaceAllowed && ht.growEnabled {
		return ht.increaseBatches()
	}
	return nil
}

// save appends row, tagged with its hash, to the file of batch.
func (ht *hashTable) save(batches []*tuplestore.Store, batch int, hash sqltypes.HashCode, row sqltypes.Row, name string) error {
	if batches[batch] == nil {
		batches[batch] = ht.estate.newTuplestore(name, false)
	}
	tagged := make(sqltypes.Row, len(row)+1)
	copy(tagged, row)
	tagged[len(row)] = sqltypes.NewInt64(int64(hash))
	return batches[batch].Append(tagged)
}

// increaseBatches doubles the number of batches and moves the rows that
// no longer belong to the current batch out of memory.
func (ht *hashTable) increaseBatches() error {
	old := ht.nbatch
	if old > math.MaxInt32/2 {
		ht.growEnabled = false
		return nil
	}
	ht.nbatch *= 2
	ht.innerBatches = append(ht.innerBatches, make([]*tuplestore.Store, old)...)
	ht.outerBatches = append(ht.outerBatches, make([]*tuplestore.Store, old)...)

	var kept, moved int
	for i, e := range ht.buckets {
		var prev *hashEntry
		for e != nil {
			next := e.next
			if _, batch := ht.bucketBatch(e.hash); batch != ht.curBatch {
				if err := ht.save(ht.innerBatches, batch, e.hash, e.row, "hash-inner"); err != nil {
					return err
				}
				ht.spaceUsed -= uint64(sqltypes.RowSize(e.row)+sqltypes.RowSize(e.keys)) + hashEntryOverhead
				ht.rows--
				moved++
				if prev == nil {
					ht.buckets[i] = next
				} else {
					prev.next = next
				}
			} else {
				kept++
				prev = e
			}
			e = next
		}
	}
	if moved == 0 || kept == 0 {
		ht.growEnabled = false
	}
	ht.estate.Logger.DebugS("Hash join increased batches",
		"batches", ht.nbatch, "moved", moved, "kept", kept, "mem", humanize.IBytes(ht.spaceUsed))
	return nil
}

// resetBuckets empties the in-memory table.
func (ht *hashTable) resetBuckets() {
	clear(ht.buckets)
	ht.rows = 0
	ht.spaceUsed = 0
}

// empty is true when no inner row was kept, in memory or in a batch.
func (ht *hashTable) empty() bool {
	if ht.rows > 0 {
		return false
	}
	for _, ts := range ht.innerBatches {
		if ts != nil && ts.Len() > 0 {
			return false
		}
	}
	return true
}

// lookup returns the first entry of the bucket of hash.
func (ht *hashTable) lookup(hash sqltypes.HashCode) *hashEntry {
	bucket, _ := ht.bucketBatch(hash)
	return ht.buckets[bucket]
}

// close removes every batch file.
func (ht *hashTable) close() error {
	var err error
	for _, batches := range [][]*tuplestore.Store{ht.innerBatches, ht.outerBatches} {
		for i, ts := range batches {
			if cerr := ht.estate.closeTuplestore("hashjoin", ts); err == nil {
				err = cerr
			}
			batches[i] = nil
		}
	}
	ht.resetBuckets()
	return err
}

// HashState builds the hash table of its parent HashJoin from its input.
// It does not return rows through Next.
type HashState struct {
	baseState
	keyExprs []evalengine.Expr
	keys     sqltypes.Row
	table    *hashTable
}

func initHash(ctx context.Context, n *plan.Hash, estate *ExecutionState, eflags EFlags) (*HashState, error) {
	if n.TargetList != nil || len(n.Qual) > 0 {
		return nil, vterrors.NewErrorf(vterrors.INTERNAL, vterrors.BadPlan, "Hash node cannot project or filter")
	}
	// the table is rebuilt or kept as a whole; the input is never rewound
	child, err := initInput(ctx, n, n.Left, estate, eflags&^(EFlagBackward|EFlagMark|EFlagRewind))
	if err != nil {
		return nil, err
	}
	s := &HashState{}
	s.left = child
	s.setup(s, n, estate, eflags, child.Arity())
	return s, nil
}

func (s *HashState) exec(context.Context) (*slot.Slot, error) {
	return nil, vterrors.VT13001("Hash node does not return rows")
}

// evalHashKeys evaluates exprs against the rows bound in ctx into keys
// and returns their hash. ok is false when a key is NULL.
func evalHashKeys(ctx *evalctx.ExprContext, exprs []evalengine.Expr, keys sqltypes.Row) (hash sqltypes.HashCode, ok bool, err error) {
	if err := evalengine.EvalKeys(exprs, ctx, keys); err != nil {
		return 0, false, err
	}
	for _, v := range keys {
		if v.IsNull() {
			return 0, false, nil
		}
	}
	return sqltypes.HashValues(keys), true, nil
}

// build reads the whole input into a new table sized from the plan
// estimates. Rows with a NULL key are dropped: they cannot match and no
// supported join type returns unmatched inner rows.
func (s *HashState) build(ctx context.Context, keyExprs []evalengine.Expr) (*hashTable, error) {
	s.keyExprs = keyExprs
	s.keys = make(sqltypes.Row, len(keyExprs))

	est := s.node.Common()
	rows, width := est.Rows, est.Width
	if rows == 0 {
		cb := s.left.Plan().Common()
		rows, width = cb.Rows, cb.Width
	}
	ht := newHashTable(s.estate, rows, width)
	s.table = ht
	s.scanned = true

	for {
		in, err := s.left.Next(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			break
		}
		s.instr.Calls++
		s.exprCtx.Bind(nil, in, nil)
		hash, ok, err := evalHashKeys(s.exprCtx, s.keyExprs, s.keys)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		s.instr.Rows++
		if _, batch := ht.bucketBatch(hash); batch != ht.curBatch {
			if err := ht.save(ht.innerBatches, batch, hash, in.Row(), "hash-inner"); err != nil {
				return nil, err
			}
			continue
		}
		if err := ht.insert(hash, in.Copy(), sqltypes.CopyRow(s.keys)); err != nil {
			return nil, err
		}
	}
	return ht, nil
}

// loadBatch fills the in-memory table with the inner rows of batch.
func (s *HashState) loadBatch(ht *hashTable, batch int) error {
	ht.resetBuckets()
	ht.curBatch = batch
	ts := ht.innerBatches[batch]
	if ts == nil {
		return nil
	}
	rd := ts.NewReader()
	row := s.estate.newSlot(s.left.Arity())
	defer row.Clear()
	for {
		tagged, err := rd.Next(storage.Forward)
		if err != nil {
			return err
		}
		if tagged == nil {
			break
		}
		data := tagged[:len(tagged)-1]
		hash := sqltypes.HashCode(tagged[len(tagged)-1].Int64())
		bucket, b := ht.bucketBatch(hash)
		if b != batch {
			// saved before the number of batches grew
			if err := ht.save(ht.innerBatches, b, hash, data, "hash-inner"); err != nil {
				return err
			}
			continue
		}
		row.StoreBorrowed(data, nil)
		s.exprCtx.Bind(nil, row, nil)
		if err := evalengine.EvalKeys(s.keyExprs, s.exprCtx, s.keys); err != nil {
			return err
		}
		ht.buckets[bucket] = &hashEntry{hash: hash, row: sqltypes.CopyRow(data), keys: sqltypes.CopyRow(s.keys), next: ht.buckets[bucket]}
		ht.rows++
		ht.spaceUsed += uint64(sqltypes.RowSize(data)+sqltypes.RowSize(s.keys)) + hashEntryOverhead
	}
	// the inner rows of a batch are read once
	err := s.estate.closeTuplestore("hashjoin", ts)
	ht.innerBatches[batch] = nil
	return err
}

// destroy releases the table and its batch files.
func (s *HashState) destroy() error {
	if s.table == nil {
		return nil
	}
	err := s.table.close()
	s.table = nil
	return err
}

func (s *HashState) rescan() error {
	return rescanInput(s.left)
}

func (s *HashState) shutdown() error {
	return s.destroy()
}

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

package evalengine

import (
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/apd/v3"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
	"vitess.io/vtexec/go/vt/vtexec/engine/opcode"
	"vitess.io/vtexec/go/vt/vtexec/evalctx"
)

// Aggregate is one aggregate call of an Agg node.
type Aggregate struct {
	Opcode opcode.AggregateOpcode
	// Arg is nil for count(*).
	Arg Expr
}

func (a *Aggregate) String() string {
	if a.Arg == nil {
		if a.Opcode == opcode.AggregateCountStar {
			return "count(*)"
		}
		return a.Opcode.String() + "()"
	}
	return a.Opcode.String() + "(" + a.Arg.String() + ")"
}

// CheckAggregate validates an aggregate call.
func CheckAggregate(a *Aggregate) error {
	if a.Opcode == opcode.AggregateUnassigned || a.Opcode.String() == "ERROR" {
		return vterrors.NewErrorf(vterrors.NOT_FOUND, vterrors.NoSuchFunction, "unknown aggregate %d", int(a.Opcode))
	}
	if a.Opcode == opcode.AggregateCountStar {
		if a.Arg != nil {
			return vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.WrongArguments, "count(*) takes no argument")
		}
		return nil
	}
	if a.Arg == nil {
		return vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.WrongArguments, "%s requires an argument", a.Opcode)
	}
	return nil
}

// AggState is the running state of one aggregate over one group.
type AggState struct {
	agg *Aggregate

	count int64

	// sum and avg accumulate exactly until a float input shows up
	dsum     apd.Decimal
	fsum     float64
	sawFloat bool

	// min, max, bool_and and bool_or
	val sqltypes.Value

	seen map[sqltypes.HashCode][]sqltypes.Value
}

// NewAggState returns an empty state for agg.
func NewAggState(agg *Aggregate) *AggState {
	s := &AggState{agg: agg}
	s.Reset()
	return s
}

// Reset empties the state for a new group.
func (s *AggState) Reset() {
	s.count = 0
	s.dsum.SetInt64(0)
	s.fsum = 0
	s.sawFloat = false
	s.val = sqltypes.NULL
	if s.agg.Opcode.IsDistinct() {
		s.seen = make(map[sqltypes.HashCode][]sqltypes.Value)
	} else {
		s.seen = nil
	}
}

// Advance evaluates the aggregate argument against ctx and feeds it to
// the transition function.
func (s *AggState) Advance(ctx *evalctx.ExprContext) error {
	if s.agg.Opcode == opcode.AggregateCountStar {
		s.count++
		return nil
	}
	v, err := s.agg.Arg.Eval(ctx)
	if err != nil {
		return err
	}
	return s.AdvanceValue(v)
}

// AdvanceValue feeds one input value to the transition function. NULL
// inputs are ignored by every aggregate except count(*).
func (s *AggState) AdvanceValue(v sqltypes.Value) error {
	code := s.agg.Opcode
	if code == opcode.AggregateCountStar {
		s.count++
		return nil
	}
	if v.IsNull() {
		return nil
	}
	if s.seen != nil {
		dup, err := s.checkSeen(v)
		if err != nil || dup {
			return err
		}
	}

	switch code {
	case opcode.AggregateCount, opcode.AggregateCountDistinct:
		s.count++
	case opcode.AggregateSum, opcode.AggregateSumDistinct, opcode.AggregateAvg, opcode.AggregateAvgDistinct:
		return s.addSum(v)
	case opcode.AggregateMin, opcode.AggregateMax:
		s.count++
		if s.val.IsNull() {
			s.val = v
			return nil
		}
		c, err := sqltypes.NullsafeCompare(v, s.val)
		if err != nil {
			return err
		}
		if (code == opcode.AggregateMin && c < 0) || (code == opcode.AggregateMax && c > 0) {
			s.val = v
		}
	case opcode.AggregateBoolAnd, opcode.AggregateBoolOr:
		b, err := sqltypes.ToBool(v)
		if err != nil {
			return err
		}
		if s.val.IsNull() {
			s.val = sqltypes.NewBool(b)
		} else if code == opcode.AggregateBoolAnd {
			s.val = sqltypes.NewBool(s.val.Bool() && b)
		} else {
			s.val = sqltypes.NewBool(s.val.Bool() || b)
		}
		s.count++
	default:
		return vterrors.VT13001("unexpected aggregate " + code.String())
	}
	return nil
}

func (s *AggState) checkSeen(v sqltypes.Value) (bool, error) {
	h := xxhash.New()
	sqltypes.HashValue(h, v)
	code := h.Sum64()
	for _, prev := range s.seen[code] {
		c, err := sqltypes.NullsafeCompare(prev, v)
		if err != nil {
			return false, err
		}
		if c == 0 {
			return true, nil
		}
	}
	s.seen[code] = append(s.seen[code], v)
	return false, nil
}

func (s *AggState) addSum(v sqltypes.Value) error {
	v, err := toNumeric(v)
	if err != nil {
		return err
	}
	s.count++
	if v.Kind() == sqltypes.Float64 {
		s.sawFloat = true
		s.fsum += v.Float64()
		if math.IsInf(s.fsum, 0) {
			return vterrors.NewErrorf(vterrors.OUT_OF_RANGE, vterrors.DataOutOfRange, "value out of range: overflow")
		}
		return nil
	}
	d, err := sqltypes.ToDecimal(v)
	if err != nil {
		return err
	}
	if _, err := sqltypes.DecimalContext.Add(&s.dsum, &s.dsum, d); err != nil {
		return vterrors.NewErrorf(vterrors.OUT_OF_RANGE, vterrors.DataOutOfRange, "numeric sum failed: %v", err)
	}
	return nil
}

// Final computes the aggregate value of the group. It does not modify
// the state.
func (s *AggState) Final() (sqltypes.Value, error) {
	switch s.agg.Opcode {
	case opcode.AggregateCount, opcode.AggregateCountStar, opcode.AggregateCountDistinct:
		return sqltypes.NewInt64(s.count), nil
	case opcode.AggregateMin, opcode.AggregateMax, opcode.AggregateBoolAnd, opcode.AggregateBoolOr:
		return s.val, nil
	case opcode.AggregateSum, opcode.AggregateSumDistinct:
		if s.count == 0 {
			return sqltypes.NULL, nil
		}
		return s.sum()
	case opcode.AggregateAvg, opcode.AggregateAvgDistinct:
		if s.count == 0 {
			return sqltypes.NULL, nil
		}
		sum, err := s.sum()
		if err != nil {
			return sqltypes.NULL, err
		}
		return Arith(Div, sum, s.divisor())
	}
	return sqltypes.NULL, vterrors.VT13001("unexpected aggregate " + s.agg.Opcode.String())
}

func (s *AggState) sum() (sqltypes.Value, error) {
	if !s.sawFloat {
		return sqltypes.NewDecimal(&s.dsum), nil
	}
	f, err := s.dsum.Float64()
	if err != nil {
		return sqltypes.NULL, vterrors.NewErrorf(vterrors.OUT_OF_RANGE, vterrors.DataOutOfRange, "value out of range: %v", err)
	}
	return sqltypes.NewFloat64(f + s.fsum), nil
}

// divisor is the row count as a decimal so that avg of integers does not
// truncate.
func (s *AggState) divisor() sqltypes.Value {
	if s.sawFloat {
		return sqltypes.NewFloat64(float64(s.count))
	}
	return sqltypes.NewDecimal(apd.New(s.count, 0))
}

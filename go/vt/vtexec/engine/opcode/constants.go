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

package opcode

import (
	"encoding/json"
	"fmt"

	"vitess.io/vtexec/go/sqltypes"
)

// AggregateOpcode is the aggregation Opcode.
type AggregateOpcode int

// These constants list the possible aggregate opcodes.
const (
	AggregateUnassigned = AggregateOpcode(iota)
	AggregateCount
	AggregateSum
	AggregateMin
	AggregateMax
	AggregateCountDistinct
	AggregateSumDistinct
	AggregateCountStar
	AggregateAvg
	AggregateAvgDistinct
	AggregateBoolAnd
	AggregateBoolOr
	_NumOfOpCodes // This line must be last of the opcodes!
)

// SupportedAggregates maps the list of supported aggregate
// functions to their opcodes.
var SupportedAggregates = map[string]AggregateOpcode{
	"count":          AggregateCount,
	"sum":            AggregateSum,
	"min":            AggregateMin,
	"max":            AggregateMax,
	"count_distinct": AggregateCountDistinct,
	"sum_distinct":   AggregateSumDistinct,
	"count_star":     AggregateCountStar,
	"avg":            AggregateAvg,
	"avg_distinct":   AggregateAvgDistinct,
	"bool_and":       AggregateBoolAnd,
	"bool_or":        AggregateBoolOr,
}

var AggregateName = map[AggregateOpcode]string{
	AggregateCount:         "count",
	AggregateSum:           "sum",
	AggregateMin:           "min",
	AggregateMax:           "max",
	AggregateCountDistinct: "count_distinct",
	AggregateSumDistinct:   "sum_distinct",
	AggregateCountStar:     "count_star",
	AggregateAvg:           "avg",
	AggregateAvgDistinct:   "avg_distinct",
	AggregateBoolAnd:       "bool_and",
	AggregateBoolOr:        "bool_or",
}

func (code AggregateOpcode) String() string {
	name := AggregateName[code]
	if name == "" {
		name = "ERROR"
	}
	return name
}

// MarshalJSON serializes the AggregateOpcode as a JSON string.
// It's used for testing and diagnostics.
func (code AggregateOpcode) MarshalJSON() ([]byte, error) {
	return json.Marshal(code.String())
}

// SQLType returns the kind produced by the aggregate for an input of
// the given kind.
func (code AggregateOpcode) SQLType(in sqltypes.Kind) sqltypes.Kind {
	switch code {
	case AggregateUnassigned:
		return sqltypes.Null
	case AggregateCount, AggregateCountStar, AggregateCountDistinct:
		return sqltypes.Int64
	case AggregateMin, AggregateMax:
		return in
	case AggregateSum, AggregateSumDistinct:
		switch in {
		case sqltypes.Float64:
			return sqltypes.Float64
		case sqltypes.Null:
			return sqltypes.Null
		}
		return sqltypes.Decimal
	case AggregateAvg, AggregateAvgDistinct:
		if in == sqltypes.Float64 {
			return sqltypes.Float64
		}
		return sqltypes.Decimal
	case AggregateBoolAnd, AggregateBoolOr:
		return sqltypes.Bool
	default:
		panic(code.String()) // we have a unit test checking we never reach here
	}
}

// NeedsComparableValues returns true if the aggregate compares input
// values against each other.
func (code AggregateOpcode) NeedsComparableValues() bool {
	switch code {
	case AggregateCountDistinct, AggregateSumDistinct, AggregateAvgDistinct, AggregateMin, AggregateMax:
		return true
	default:
		return false
	}
}

// IsDistinct returns true if the aggregate only considers distinct inputs.
func (code AggregateOpcode) IsDistinct() bool {
	switch code {
	case AggregateCountDistinct, AggregateSumDistinct, AggregateAvgDistinct:
		return true
	default:
		return false
	}
}

// JoinType is the type of a join.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
	SemiJoin
	AntiJoin
)

var joinNames = [...]string{
	InnerJoin: "inner",
	LeftJoin:  "left",
	RightJoin: "right",
	FullJoin:  "full",
	SemiJoin:  "semi",
	AntiJoin:  "anti",
}

func (jt JoinType) String() string {
	if jt < 0 || int(jt) >= len(joinNames) {
		return "ERROR"
	}
	return joinNames[jt]
}

// MarshalJSON serializes the JoinType as a JSON string.
func (jt JoinType) MarshalJSON() ([]byte, error) {
	return json.Marshal(jt.String())
}

// FillsOuter is true when unmatched outer rows are emitted null-extended.
func (jt JoinType) FillsOuter() bool { return jt == LeftJoin || jt == FullJoin }

// FillsInner is true when unmatched inner rows are emitted null-extended.
func (jt JoinType) FillsInner() bool { return jt == RightJoin || jt == FullJoin }

// ParseJoinType is the inverse of JoinType.String.
func ParseJoinType(s string) (JoinType, error) {
	for i, name := range joinNames {
		if name == s {
			return JoinType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown join type %q", s)
}

// AggStrategy is how an Agg node groups its input.
type AggStrategy int

const (
	// AggPlain aggregates the whole input into a single row.
	AggPlain AggStrategy = iota
	// AggSorted expects input sorted on the grouping columns.
	AggSorted
	// AggHashed groups in a hash table.
	AggHashed
)

var strategyNames = [...]string{AggPlain: "plain", AggSorted: "sorted", AggHashed: "hashed"}

func (s AggStrategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return "ERROR"
	}
	return strategyNames[s]
}

// MarshalJSON serializes the AggStrategy as a JSON string.
func (s AggStrategy) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ParseAggStrategy is the inverse of AggStrategy.String.
func ParseAggStrategy(s string) (AggStrategy, error) {
	for i, name := range strategyNames {
		if name == s {
			return AggStrategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown aggregate strategy %q", s)
}

// SetOpCmd is the flavor of a SetOp node.
type SetOpCmd int

const (
	Intersect SetOpCmd = iota
	IntersectAll
	Except
	ExceptAll
	Union
	UnionAll
)

var setOpNames = [...]string{
	Intersect:    "intersect",
	IntersectAll: "intersect_all",
	Except:       "except",
	ExceptAll:    "except_all",
	Union:        "union",
	UnionAll:     "union_all",
}

func (c SetOpCmd) String() string {
	if c < 0 || int(c) >= len(setOpNames) {
		return "ERROR"
	}
	return setOpNames[c]
}

// MarshalJSON serializes the SetOpCmd as a JSON string.
func (c SetOpCmd) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// ParseSetOpCmd is the inverse of SetOpCmd.String.
func ParseSetOpCmd(s string) (SetOpCmd, error) {
	for i, name := range setOpNames {
		if name == s {
			return SetOpCmd(i), nil
		}
	}
	return 0, fmt.Errorf("unknown set operation %q", s)
}

// Copies returns how many copies of a group with numLeft rows from the
// left input and numRight from the right input the set operation emits.
func (c SetOpCmd) Copies(numLeft, numRight int64) int64 {
	switch c {
	case Intersect:
		if numLeft > 0 && numRight > 0 {
			return 1
		}
	case IntersectAll:
		return min(numLeft, numRight)
	case Except:
		if numLeft > 0 && numRight == 0 {
			return 1
		}
	case ExceptAll:
		return max(numLeft-numRight, 0)
	case Union:
		if numLeft+numRight > 0 {
			return 1
		}
	case UnionAll:
		return numLeft + numRight
	}
	return 0
}

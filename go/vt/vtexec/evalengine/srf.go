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
	"strings"

	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vterrors"
)

// SetFuncMode is how a set-returning function hands back its rows.
type SetFuncMode int8

const (
	// ValuePerCall functions return an iterator the caller pulls rows from.
	ValuePerCall SetFuncMode = iota
	// Materialize functions push every row into a ResultSink before
	// returning.
	Materialize
)

func (m SetFuncMode) String() string {
	if m == Materialize {
		return "materialize"
	}
	return "value_per_call"
}

// RowIterator produces the rows of a value-per-call function. Next returns
// a nil row once the set is exhausted.
type RowIterator interface {
	Next() (sqltypes.Row, error)
}

// ResultSink receives the rows of a function running in Materialize mode.
// Done must be called once after the last row.
type ResultSink interface {
	ReturnRow(row sqltypes.Row) error
	Done() error
}

// SetFunc is a builtin set-returning function.
type SetFunc struct {
	Name    string
	Mode    SetFuncMode
	Columns []string

	minArgs, maxArgs int

	// start is set for ValuePerCall functions.
	start func(args []sqltypes.Value) (RowIterator, error)
	// materialize is set for Materialize functions.
	materialize func(args []sqltypes.Value, sink ResultSink) error
}

// Arity is the number of columns of the rows the function returns.
func (f *SetFunc) Arity() int { return len(f.Columns) }

// Start begins a value-per-call invocation.
func (f *SetFunc) Start(args []sqltypes.Value) (RowIterator, error) {
	if f.Mode != ValuePerCall {
		return nil, vterrors.VT13001(f.Name + " does not support value-per-call mode")
	}
	return f.start(args)
}

// Materialize runs a materialize-mode invocation into sink.
func (f *SetFunc) Materialize(args []sqltypes.Value, sink ResultSink) error {
	if f.Mode != Materialize {
		return vterrors.VT13001(f.Name + " does not support materialize mode")
	}
	return f.materialize(args, sink)
}

var setFuncs = map[string]*SetFunc{
	"generate_series": {
		Name:    "generate_series",
		Mode:    ValuePerCall,
		Columns: []string{"generate_series"},
		minArgs: 2,
		maxArgs: 3,
		start:   startGenerateSeries,
	},
	"unnest_text": {
		Name:        "unnest_text",
		Mode:        Materialize,
		Columns:     []string{"unnest_text"},
		minArgs:     2,
		maxArgs:     2,
		materialize: unnestText,
	},
}

// LookupSetFunc returns the set-returning function called name, after
// checking the number of arguments.
func LookupSetFunc(name string, nargs int) (*SetFunc, error) {
	f, ok := setFuncs[name]
	if !ok {
		return nil, vterrors.NewErrorf(vterrors.NOT_FOUND, vterrors.NoSuchFunction, "function %s does not exist", name)
	}
	if nargs < f.minArgs || nargs > f.maxArgs {
		return nil, vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.WrongArguments, "wrong number of arguments to %s: %d", name, nargs)
	}
	return f, nil
}

type seriesIterator struct {
	cur, stop, step int64
	done            bool
}

func startGenerateSeries(args []sqltypes.Value) (RowIterator, error) {
	for _, a := range args {
		if a.IsNull() {
			return &seriesIterator{done: true}, nil
		}
	}
	it := &seriesIterator{step: 1}
	var err error
	if it.cur, err = sqltypes.ToInt64(args[0]); err != nil {
		return nil, err
	}
	if it.stop, err = sqltypes.ToInt64(args[1]); err != nil {
		return nil, err
	}
	if len(args) == 3 {
		if it.step, err = sqltypes.ToInt64(args[2]); err != nil {
			return nil, err
		}
		if it.step == 0 {
			return nil, vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.WrongValue, "step size cannot equal zero")
		}
	}
	return it, nil
}

func (it *seriesIterator) Next() (sqltypes.Row, error) {
	if it.done || (it.step > 0 && it.cur > it.stop) || (it.step < 0 && it.cur < it.stop) {
		it.done = true
		return nil, nil
	}
	row := sqltypes.Row{sqltypes.NewInt64(it.cur)}
	next := it.cur + it.step
	// stop instead of wrapping around
	if (it.step > 0 && next < it.cur) || (it.step < 0 && next > it.cur) {
		it.done = true
	}
	it.cur = next
	return row, nil
}

func unnestText(args []sqltypes.Value, sink ResultSink) error {
	if !args[0].IsNull() && !args[1].IsNull() {
		for _, part := range strings.Split(args[0].String(), args[1].String()) {
			if err := sink.ReturnRow(sqltypes.Row{sqltypes.NewText(part)}); err != nil {
				return err
			}
		}
	}
	return sink.Done()
}

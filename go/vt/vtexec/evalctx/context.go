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

// Package evalctx holds the per-operator scratch state used to evaluate
// expressions against the rows currently flowing through an operator.
package evalctx

import (
	"vitess.io/vtexec/go/sqltypes"
	"vitess.io/vtexec/go/vt/vtexec/slot"
)

// ExprContext is the evaluation context of one operator. The rows visible
// to expressions are set with Bind; values allocated from the arena are
// valid until the next ResetArena.
type ExprContext struct {
	Scan  *slot.Slot
	Inner *slot.Slot
	Outer *slot.Slot

	// Params are the executor parameters, shared by every context of a
	// statement.
	Params []sqltypes.Value

	// AggValues holds the finalized aggregates of the current group.
	AggValues []sqltypes.Value

	arena     Arena
	callbacks []func()
	shutdown  bool
}

// New returns a context reading the given parameter list.
func New(params []sqltypes.Value) *ExprContext {
	return &ExprContext{Params: params}
}

// Bind sets the rows visible to expression evaluation. A nil slot hides
// that input.
func (c *ExprContext) Bind(outer, inner, scan *slot.Slot) {
	c.Outer = outer
	c.Inner = inner
	c.Scan = scan
}

// ResetArena invalidates every value allocated since the previous reset.
// It must be called before evaluating expressions for a new row.
func (c *ExprContext) ResetArena() {
	c.arena.Reset()
}

// Alloc returns n values from the arena.
func (c *ExprContext) Alloc(n int) []sqltypes.Value {
	return c.arena.Alloc(n)
}

// RegisterCallback adds fn to the functions run by Shutdown. Callbacks run
// in reverse registration order. Registering after Shutdown runs fn
// immediately.
func (c *ExprContext) RegisterCallback(fn func()) {
	if c.shutdown {
		fn()
		return
	}
	c.callbacks = append(c.callbacks, fn)
}

// Shutdown runs the registered callbacks exactly once and drops the arena.
func (c *ExprContext) Shutdown() {
	if c.shutdown {
		return
	}
	c.shutdown = true
	for i := len(c.callbacks) - 1; i >= 0; i-- {
		fn := c.callbacks[i]
		c.callbacks[i] = nil
		fn()
	}
	c.callbacks = nil
	c.arena = Arena{}
	c.Bind(nil, nil, nil)
}

// IsShutdown returns true once Shutdown has run.
func (c *ExprContext) IsShutdown() bool {
	return c.shutdown
}

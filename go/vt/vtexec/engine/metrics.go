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
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"vitess.io/vtexec/go/vt/vtexec/plan"
)

// Metrics are the prometheus collectors of the engine. A nil *Metrics
// records nothing.
type Metrics struct {
	rowsReturned *prometheus.CounterVec
	spilledBytes *prometheus.CounterVec
	hashBatches  prometheus.Histogram
	runs         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rowsReturned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vtexec",
			Name:      "operator_rows_total",
			Help:      "Rows returned by operator states, by operator kind.",
		}, []string{"operator"}),
		spilledBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vtexec",
			Name:      "spilled_bytes_total",
			Help:      "Bytes written to temporary files, by component.",
		}, []string{"component"}),
		hashBatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vtexec",
			Name:      "hash_join_batches",
			Help:      "Number of batches used by hash joins.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vtexec",
			Name:      "executor_runs_total",
			Help:      "Executor runs by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.rowsReturned, m.spilledBytes, m.hashBatches, m.runs)
	}
	return m
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// InitializeMetrics returns the metrics registered with the default
// prometheus registry, creating them on first use.
func InitializeMetrics() *Metrics {
	once.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func (m *Metrics) operatorRows(kind plan.Kind) prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.rowsReturned.WithLabelValues(kind.String())
}

func (m *Metrics) spilled(component string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.spilledBytes.WithLabelValues(component).Add(float64(n))
}

func (m *Metrics) hashJoinBatches(n int) {
	if m == nil {
		return
	}
	m.hashBatches.Observe(float64(n))
}

func (m *Metrics) run(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

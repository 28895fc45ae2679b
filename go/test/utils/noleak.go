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

package utils

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// leakRetries and leakBackoff bound how long a check waits for goroutines
// that are still winding down, such as spill writers closing their files.
const (
	leakRetries = 5
	leakBackoff = 100 * time.Millisecond
)

// ignoredGoroutines are long-lived goroutines started by libraries rather
// than by the code under test.
var ignoredGoroutines = []goleak.Option{
	goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"),
	goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"),
	goleak.IgnoreTopFunction("testing.tRunner.func1"),
	goleak.IgnoreAnyFunction("database/sql.(*DB).connectionOpener"),
}

// LeakCheckContext returns a Context that is cancelled when the test ends.
// A test that passed is then checked for leaked goroutines.
func LeakCheckContext(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		EnsureNoLeaks(t)
	})
	return ctx
}

// EnsureNoLeaks fails a passing test if goroutines are left running.
func EnsureNoLeaks(t testing.TB) {
	if t.Failed() {
		return
	}
	if err := GetLeaks(); err != nil {
		t.Fatal(err)
	}
}

// GetLeaks returns an error describing the goroutines still running, or nil.
// TestMain functions call it after the package's tests are done.
func GetLeaks() error {
	var err error
	for range leakRetries {
		if err = goleak.Find(ignoredGoroutines...); err == nil {
			return nil
		}
		time.Sleep(leakBackoff)
	}
	return err
}

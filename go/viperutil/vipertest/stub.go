/*
Copyright 2023 The Vitess Authors.

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

package vipertest

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"vitess.io/vtexec/go/viperutil"
)

// Stub makes val read from v for the rest of the test. Stubbing the same
// value twice onto one viper fails the test.
func Stub[T any](t *testing.T, v *viper.Viper, val viperutil.Value[T]) {
	t.Helper()

	if !assert.False(t, v.InConfig(val.Key()), "value for key %s already stubbed", val.Key()) {
		return
	}
	t.Cleanup(val.ReadFrom(v))
}

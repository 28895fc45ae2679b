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

package execconfig

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitess.io/vtexec/go/viperutil/vipertest"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.EqualValues(t, DefaultWorkMem, cfg.WorkMem)
	assert.True(t, cfg.SpillCompression)
	assert.Equal(t, 1024, cfg.HashMinBuckets)
	assert.NotEmpty(t, cfg.TempDir)
}

func TestStubbedConfig(t *testing.T) {
	v := viper.New()
	vipertest.Stub(t, v, workMem)
	vipertest.Stub(t, v, hashMinBuckets)

	v.Set(workMem.Key(), "64KiB")
	v.Set(hashMinBuckets.Key(), 16)

	cfg := Current()
	assert.EqualValues(t, 64<<10, cfg.WorkMem)
	assert.Equal(t, 16, cfg.HashMinBuckets)
}

func TestRegisterFlags(t *testing.T) {
	fs := pflag.NewFlagSet("vtexec", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--work-mem", "1MiB", "--spill-compression=false"}))

	cfg := Current()
	assert.EqualValues(t, 1<<20, cfg.WorkMem)
	assert.False(t, cfg.SpillCompression)
}

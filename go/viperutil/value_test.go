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

package viperutil_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitess.io/vtexec/go/viperutil"
	"vitess.io/vtexec/go/viperutil/vipertest"
)

func TestConfigureDefaultsAndFlags(t *testing.T) {
	batches := viperutil.Configure("test.batches", viperutil.Options[int]{
		FlagName: "batches",
		Default:  4,
	})
	assert.Equal(t, 4, batches.Get())
	assert.Equal(t, 4, batches.Default())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("batches", 4, "")
	viperutil.BindFlags(fs, batches)
	require.NoError(t, fs.Parse([]string{"--batches", "16"}))
	assert.Equal(t, 16, batches.Get())
}

func TestBindFlagsPanicsOnMissingFlag(t *testing.T) {
	val := viperutil.Configure("test.missing", viperutil.Options[string]{FlagName: "not-there"})
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	assert.Panics(t, func() { viperutil.BindFlags(fs, val) })
}

func TestConfigureEnv(t *testing.T) {
	t.Setenv("VTEXEC_TEST_TIMEOUT", "3s")
	val := viperutil.Configure("test.timeout", viperutil.Options[time.Duration]{
		EnvVars: []string{"VTEXEC_TEST_TIMEOUT"},
		Default: time.Second,
	})
	assert.Equal(t, 3*time.Second, val.Get())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("test:\n  tempdir: /scratch\n"), 0o644))

	val := viperutil.Configure("test.tempdir", viperutil.Options[string]{Default: "/tmp"})
	require.NoError(t, viperutil.LoadConfig(path))
	assert.Equal(t, "/scratch", val.Get())

	assert.Error(t, viperutil.LoadConfig(filepath.Join(dir, "nope.yaml")))
	require.NoError(t, viperutil.LoadConfig(""))
}

func TestStub(t *testing.T) {
	val := viperutil.Configure("test.stubbed", viperutil.Options[bool]{Default: false})

	t.Run("stubbed", func(t *testing.T) {
		v := viper.New()
		vipertest.Stub(t, v, val)
		v.Set(val.Key(), true)
		assert.True(t, val.Get())
	})

	assert.False(t, val.Get())
}

func TestGetFuncForTypePanics(t *testing.T) {
	assert.Panics(t, func() { viperutil.GetFuncForType[struct{}]() })
}

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
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFlagVar is a generic helper to test the flag setters for various data types.
func testFlagVar[T any](t *testing.T, name string, def T, usage string, setter func(fs *pflag.FlagSet, p *T, name string, def T, usage string)) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var value T
	setter(fs, &value, name, def, usage)

	f := fs.Lookup(name)
	require.NotNil(t, f, "flag %q should be registered", name)
	assert.Equal(t, usage, f.Usage)
	assert.False(t, f.Hidden)
	assert.Equal(t, def, value)
}

func TestSetFlagIntVar(t *testing.T) {
	testFlagVar(t, "int-flag", 42, "an integer flag", SetFlagIntVar)
}

func TestSetFlagBoolVar(t *testing.T) {
	testFlagVar(t, "bool-flag", true, "a boolean flag", SetFlagBoolVar)
}

func TestSetFlagStringVar(t *testing.T) {
	testFlagVar(t, "string-flag", "x", "a string flag", SetFlagStringVar)
}

func TestSetFlagBytesVar(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var size ByteSize
	SetFlagBytesVar(fs, &size, "work-mem", 4<<20, "memory per operator")
	assert.EqualValues(t, 4<<20, size)
	assert.Equal(t, "4.0 MiB", fs.Lookup("work-mem").DefValue)

	require.NoError(t, fs.Parse([]string{"--work-mem", "64kB"}))
	assert.EqualValues(t, 64000, size)

	require.NoError(t, fs.Set("work-mem", "1 MiB"))
	assert.EqualValues(t, 1<<20, size)

	assert.Error(t, fs.Set("work-mem", "lots"))
}

func TestNormalizeUnderscoresToDashes(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	assert.Equal(t, pflag.NormalizedName("work-mem"), NormalizeUnderscoresToDashes(fs, "work_mem"))
	assert.Equal(t, pflag.NormalizedName("log_dir"), NormalizeUnderscoresToDashes(fs, "log_dir"))
	assert.Equal(t, pflag.NormalizedName("a-b_c"), NormalizeUnderscoresToDashes(fs, "a-b_c"))
}

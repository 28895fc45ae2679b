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

// Package execconfig holds the tunables of the executor.
package execconfig

import (
	"os"

	"github.com/spf13/pflag"

	"vitess.io/vtexec/go/viperutil"
	"vitess.io/vtexec/go/viperutil/funcs"
	"vitess.io/vtexec/go/vt/utils"
)

// DefaultWorkMem is the memory budget of a single spooling or hashing
// operator before it starts using temporary files.
const DefaultWorkMem = 4 << 20

var (
	workMem = viperutil.Configure("exec.work-mem", viperutil.Options[uint64]{
		FlagName: "work-mem",
		EnvVars:  []string{"VTEXEC_WORK_MEM"},
		Default:  DefaultWorkMem,
		GetFunc:  funcs.GetBytes,
	})
	tempDir = viperutil.Configure("exec.temp-dir", viperutil.Options[string]{
		FlagName: "temp-dir",
		EnvVars:  []string{"VTEXEC_TEMP_DIR"},
		Default:  os.TempDir(),
	})
	spillCompression = viperutil.Configure("exec.spill-compression", viperutil.Options[bool]{
		FlagName: "spill-compression",
		EnvVars:  []string{"VTEXEC_SPILL_COMPRESSION"},
		Default:  true,
	})
	hashMinBuckets = viperutil.Configure("exec.hash-min-buckets", viperutil.Options[int]{
		FlagName: "hash-min-buckets",
		EnvVars:  []string{"VTEXEC_HASH_MIN_BUCKETS"},
		Default:  1024,
	})
	metricsEnabled = viperutil.Configure("exec.metrics-enabled", viperutil.Options[bool]{
		FlagName: "metrics-enabled",
		EnvVars:  []string{"VTEXEC_METRICS_ENABLED"},
		Default:  false,
	})
)

// Config is a snapshot of the executor settings, taken once per statement.
type Config struct {
	// WorkMem is the number of bytes a tuplestore, sort or hash table may
	// hold in memory before spilling.
	WorkMem uint64
	// TempDir is where spill files are created.
	TempDir string
	// SpillCompression compresses spill file blocks with snappy.
	SpillCompression bool
	// HashMinBuckets is the smallest bucket count of a hash join table.
	HashMinBuckets int
	// MetricsEnabled turns on the prometheus collectors of the engine.
	MetricsEnabled bool
}

// RegisterFlags installs the executor flags on fs and binds them to the
// config values.
func RegisterFlags(fs *pflag.FlagSet) {
	var (
		mem         = utils.ByteSize(workMem.Default())
		dir         string
		compression bool
		buckets     int
		metrics     bool
	)
	utils.SetFlagBytesVar(fs, &mem, "work-mem", mem, "memory an operator may use before spilling to temporary files")
	utils.SetFlagStringVar(fs, &dir, "temp-dir", tempDir.Default(), "directory for temporary spill files")
	utils.SetFlagBoolVar(fs, &compression, "spill-compression", spillCompression.Default(), "compress spill files with snappy")
	utils.SetFlagIntVar(fs, &buckets, "hash-min-buckets", hashMinBuckets.Default(), "minimum number of buckets of a hash join table")
	utils.SetFlagBoolVar(fs, &metrics, "metrics-enabled", metricsEnabled.Default(), "export executor metrics")

	viperutil.BindFlags(fs, workMem, tempDir, spillCompression, hashMinBuckets, metricsEnabled)
}

// Current returns the settings as currently configured by flags,
// environment and config file.
func Current() Config {
	return Config{
		WorkMem:          workMem.Get(),
		TempDir:          tempDir.Get(),
		SpillCompression: spillCompression.Get(),
		HashMinBuckets:   hashMinBuckets.Get(),
		MetricsEnabled:   metricsEnabled.Get(),
	}
}

// Default returns the built-in settings, ignoring flags and environment.
func Default() Config {
	return Config{
		WorkMem:          workMem.Default(),
		TempDir:          tempDir.Default(),
		SpillCompression: spillCompression.Default(),
		HashMinBuckets:   hashMinBuckets.Default(),
		MetricsEnabled:   metricsEnabled.Default(),
	}
}

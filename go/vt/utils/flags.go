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
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

func warnUnderscores(name string) {
	if strings.Contains(name, "_") {
		fmt.Fprintf(os.Stderr, "[WARNING] flag %s uses underscores, please use dashes\n", name)
	}
}

// setFlagVar registers a typed flag through one of the pflag.FlagSet
// XxxVar methods.
func setFlagVar[T any](fs *pflag.FlagSet, p *T, name string, def T, usage string,
	setFunc func(fs *pflag.FlagSet, p *T, name string, def T, usage string)) {
	warnUnderscores(name)
	setFunc(fs, p, name, def, usage)
}

func SetFlagIntVar(fs *pflag.FlagSet, p *int, name string, def int, usage string) {
	setFlagVar(fs, p, name, def, usage, (*pflag.FlagSet).IntVar)
}

func SetFlagInt64Var(fs *pflag.FlagSet, p *int64, name string, def int64, usage string) {
	setFlagVar(fs, p, name, def, usage, (*pflag.FlagSet).Int64Var)
}

func SetFlagBoolVar(fs *pflag.FlagSet, p *bool, name string, def bool, usage string) {
	setFlagVar(fs, p, name, def, usage, (*pflag.FlagSet).BoolVar)
}

func SetFlagStringVar(fs *pflag.FlagSet, p *string, name string, def string, usage string) {
	setFlagVar(fs, p, name, def, usage, (*pflag.FlagSet).StringVar)
}

// SetFlagVar registers a flag that implements the pflag.Value interface.
func SetFlagVar(fs *pflag.FlagSet, value pflag.Value, name, usage string) {
	warnUnderscores(name)
	fs.Var(value, name, usage)
}

// ByteSize is a pflag.Value holding a size in bytes. It accepts both
// plain numbers and human readable sizes such as "64MB" or "4 MiB".
type ByteSize uint64

func (b *ByteSize) Set(s string) error {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

func (b *ByteSize) String() string {
	return humanize.IBytes(uint64(*b))
}

func (b *ByteSize) Type() string {
	return "bytes"
}

// SetFlagBytesVar registers a ByteSize flag.
func SetFlagBytesVar(fs *pflag.FlagSet, p *ByteSize, name string, def ByteSize, usage string) {
	*p = def
	SetFlagVar(fs, p, name, usage)
}

var (
	deprecationWarningsEmitted = make(map[string]bool)
)

// NormalizeUnderscoresToDashes translates flag names from underscores to dashes and prints a deprecation warning.
func NormalizeUnderscoresToDashes(f *pflag.FlagSet, name string) pflag.NormalizedName {
	// `log_dir`, `log_link` and `log_backtrace_at` are exceptions because they are used by glog.
	if name == "log_dir" || name == "log_link" || name == "log_backtrace_at" {
		return pflag.NormalizedName(name)
	}

	// We only want to normalize flags that purely use underscores.
	if !strings.Contains(name, "_") || strings.Contains(name, "-") {
		return pflag.NormalizedName(name)
	}

	normalizedName := strings.ReplaceAll(name, "_", "-")

	// Only emit a warning if we haven't emitted one yet
	if !deprecationWarningsEmitted[name] {
		deprecationWarningsEmitted[name] = true
		fmt.Fprintf(os.Stderr, "Flag --%s has been deprecated, use --%s instead \n", name, normalizedName)
	}

	return pflag.NormalizedName(normalizedName)
}

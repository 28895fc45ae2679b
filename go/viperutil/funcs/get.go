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

// Package funcs provides custom getter functions for values that viper
// cannot decode on its own.
package funcs

import (
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// GetPath returns a GetFunc that expands a slice of strings into individual
// paths based on standard POSIX shell $PATH separator parsing.
func GetPath(v *viper.Viper) func(key string) []string {
	return func(key string) (paths []string) {
		for _, val := range v.GetStringSlice(key) {
			if val != "" {
				paths = append(paths, filepath.SplitList(val)...)
			}
		}

		return paths
	}
}

// GetBytes returns a GetFunc that reads a size in bytes. Strings are parsed
// as human readable sizes ("64MB", "4 MiB"), anything else as an integer.
// Values that cannot be parsed yield 0.
func GetBytes(v *viper.Viper) func(key string) uint64 {
	return func(key string) uint64 {
		switch raw := v.Get(key).(type) {
		case string:
			n, err := humanize.ParseBytes(strings.TrimSpace(raw))
			if err != nil {
				return 0
			}
			return n
		default:
			return cast.ToUint64(raw)
		}
	}
}

/*
Copyright 2019 The Vitess Authors.

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

// Package log provides a thin adapter around glog with optional structured
// logging via slog.
//
// By default, it uses glog and its flags. Structured logging is enabled only
// when the --log-fmt flag is explicitly set.
package log

import (
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"vitess.io/vtexec/go/vt/utils"
)

var (
	// V quickly checks if the logging verbosity meets a threshold.
	V = glog.V

	// Flush ensures any pending I/O is written.
	Flush = glog.Flush

	// Infof formats arguments like fmt.Printf and logs at the info level.
	Infof = glog.Infof
	// Warningf formats arguments like fmt.Printf and logs at the warning level.
	Warningf = glog.Warningf
	// Errorf formats arguments like fmt.Printf and logs at the error level.
	Errorf = glog.Errorf
)

// Level is the glog verbosity level.
type Level = glog.Level

// RegisterFlags installs log flags on the given FlagSet.
func RegisterFlags(fs *pflag.FlagSet) {
	utils.SetFlagVar(fs, &rotateSize{}, "log-rotate-max-size", "size at which log files are rotated, such as 512MiB or 1GB")
	utils.SetFlagStringVar(fs, &logFormat, "log-fmt", "json", "format for structured logging output: json or logfmt")
	utils.SetFlagStringVar(fs, &logLevel, "log-level", "info", "minimum structured logging level: info, warn, debug, or error")
}

// rotateSize reads and writes glog.MaxSize atomically, since glog checks
// it from its own goroutines.
type rotateSize struct{}

func (rotateSize) String() string {
	return humanize.IBytes(atomic.LoadUint64(&glog.MaxSize))
}

func (rotateSize) Set(s string) error {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return err
	}
	atomic.StoreUint64(&glog.MaxSize, n)
	return nil
}

func (rotateSize) Type() string {
	return "bytes"
}

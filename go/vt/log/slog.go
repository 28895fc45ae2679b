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

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/pflag"
)

var (
	// logFormat is the configured log format.
	logFormat string

	// logLevel is the configured log level.
	logLevel string

	// structuredLoggingEnabled controls whether structured logging is enabled. If it's disabled,
	// logging is performed through glog. If enabled, logging is instead through slog.
	structuredLoggingEnabled atomic.Bool
)

// Init configures logging based on the parsed flags.
func Init(fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}

	formatFlag := fs.Lookup("log-fmt")
	if formatFlag == nil || !formatFlag.Changed {
		return nil
	}
	return InitStructured(os.Stderr, logFormat, logLevel)
}

// InitStructured switches to structured logging on w with the given
// format and minimum level.
func InitStructured(w io.Writer, format, level string) error {
	lvl, err := slogLevel(level)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{AddSource: true, Level: lvl}
	handler, err := slogHandler(w, format, opts)
	if err != nil {
		return err
	}

	structuredLoggingEnabled.Store(true)
	slog.SetDefault(slog.New(handler))
	return nil
}

// slogLevel maps the log-level flag value to a slog.Level.
func slogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log-level %q: expected debug, info, warn, or error", level)
	}
}

// slogHandler returns a [slog.Handler] for the given format and options.
func slogHandler(w io.Writer, format string, opts *slog.HandlerOptions) (slog.Handler, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	case "logfmt":
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("invalid log-fmt %q: expected json or logfmt", format)
	}
}

// logS emits a structured log record when structured logging is enabled.
// When structured logging is disabled, logS forwards the call to glog
// using the severity implied by level.
func logS(level slog.Level, depth int, msg string, args ...any) {
	if !structuredLoggingEnabled.Load() {
		logGlog(level, depth, msg, args...)
		return
	}

	logger := slog.Default()

	ctx := context.Background()
	if !logger.Enabled(ctx, level) {
		return
	}

	// Adjust the caller depth (+3) to bypass the helper functions.
	var pcs [1]uintptr
	runtime.Callers(depth+3, pcs[:])

	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(args...)

	_ = logger.Handler().Handle(ctx, record)
}

// Enabled reports whether a log call at the provided level would be emitted.
// Without structured logging, debug output is gated by glog verbosity 1.
func Enabled(level slog.Level) bool {
	if structuredLoggingEnabled.Load() {
		return slog.Default().Enabled(context.Background(), level)
	}

	if level < slog.LevelInfo {
		return bool(glog.V(glog.Level(1)))
	}

	return true
}

// logGlog formats a structured log call as a glog message.
func logGlog(level slog.Level, depth int, msg string, args ...any) {
	// Skip logGlog, logS, and the wrapper.
	depth += 3

	line := make([]any, 0, len(args)+1)
	line = append(line, msg)
	for i := 0; i+1 < len(args); i += 2 {
		line = append(line, fmt.Sprintf(" %v=%v", args[i], args[i+1]))
	}

	switch level {
	case slog.LevelDebug:
		if glog.V(1) {
			glog.InfoDepth(depth, line...)
		}
	case slog.LevelWarn:
		glog.WarningDepth(depth, line...)
	case slog.LevelError:
		glog.ErrorDepth(depth, line...)
	default:
		glog.InfoDepth(depth, line...)
	}
}

// InfoS logs at the Info level.
func InfoS(msg string, args ...any) {
	logS(slog.LevelInfo, 0, msg, args...)
}

// WarnS logs at the Warn level.
func WarnS(msg string, args ...any) {
	logS(slog.LevelWarn, 0, msg, args...)
}

// DebugS logs at the Debug level.
func DebugS(msg string, args ...any) {
	logS(slog.LevelDebug, 0, msg, args...)
}

// ErrorS logs at the Error level.
func ErrorS(msg string, args ...any) {
	logS(slog.LevelError, 0, msg, args...)
}

// Logger carries a fixed set of key/value pairs that are appended to
// every record, such as the query id of an executor run.
type Logger struct {
	attrs []any
}

// With returns a Logger that adds the given key/value pairs.
func With(args ...any) Logger {
	return Logger{attrs: args}
}

// With returns a copy of l extended with more key/value pairs.
func (l Logger) With(args ...any) Logger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	return Logger{attrs: append(attrs, args...)}
}

func (l Logger) args(args []any) []any {
	if len(l.attrs) == 0 {
		return args
	}
	out := make([]any, 0, len(args)+len(l.attrs))
	out = append(out, args...)
	return append(out, l.attrs...)
}

func (l Logger) InfoS(msg string, args ...any) {
	logS(slog.LevelInfo, 0, msg, l.args(args)...)
}

func (l Logger) WarnS(msg string, args ...any) {
	logS(slog.LevelWarn, 0, msg, l.args(args)...)
}

func (l Logger) DebugS(msg string, args ...any) {
	if !Enabled(slog.LevelDebug) {
		return
	}
	logS(slog.LevelDebug, 0, msg, l.args(args)...)
}

func (l Logger) ErrorS(msg string, args ...any) {
	logS(slog.LevelError, 0, msg, l.args(args)...)
}

// SetLogger replaces the structured logger used by the log package. The returned function restores
// the previous logger. Used for testing.
func SetLogger(logger *slog.Logger) func() {
	if logger == nil {
		return func() {}
	}

	previousEnabled := structuredLoggingEnabled.Load()
	previousDefault := slog.Default()

	slog.SetDefault(logger)
	structuredLoggingEnabled.Store(true)

	return func() {
		slog.SetDefault(previousDefault)
		structuredLoggingEnabled.Store(previousEnabled)
	}
}

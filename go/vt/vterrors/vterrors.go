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

// Package vterrors provides simple error handling primitives for the
// executor.
//
// Every error created here carries an ErrCode, an optional State and the
// stack of the call site that created it. The stack is only printed when
// the error is formatted with %+v, or when LogErrStacks is set.
//
// Use Wrap or Wrapf to add context to an error while keeping its code:
//
//	if err := cursor.Next(); err != nil {
//		return vterrors.Wrapf(err, "scan of %s", rel.Name())
//	}
//
// RootCause walks the chain of wrapped errors and returns the innermost
// one, and Code returns the code of the first coded error in the chain.
package vterrors

import (
	"context"
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/pkg/errors"
)

// LogErrStacks controls whether printing errors includes the
// embedded stack trace in the output.
var LogErrStacks bool

type vtError struct {
	code  ErrCode
	state State
	err   error
}

// New returns an error with the supplied message.
// New also records the stack trace at the point it was called.
func New(code ErrCode, message string) error {
	return &vtError{
		code: code,
		err:  pkgerrors.New(message),
	}
}

// Errorf formats according to a format specifier and returns the string
// as a value that satisfies error.
// Errorf also records the stack trace at the point it was called.
func Errorf(code ErrCode, format string, args ...any) error {
	return &vtError{
		code: code,
		err:  pkgerrors.Errorf(format, args...),
	}
}

// NewErrorf formats according to a format specifier and returns the string
// as a value that satisfies error. The returned error also carries state.
func NewErrorf(code ErrCode, state State, format string, args ...any) error {
	return &vtError{
		code:  code,
		state: state,
		err:   pkgerrors.Errorf(format, args...),
	}
}

func (e *vtError) Error() string {
	return e.err.Error()
}

func (e *vtError) ErrorCode() ErrCode {
	return e.code
}

func (e *vtError) ErrorState() State {
	return e.state
}

func (e *vtError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') || LogErrStacks {
			fmt.Fprintf(s, "%+v", e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

type wrapping struct {
	cause error
	err   error
}

func (w *wrapping) Error() string { return w.err.Error() }
func (w *wrapping) Cause() error  { return w.cause }
func (w *wrapping) Unwrap() error { return w.cause }

func (w *wrapping) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') || LogErrStacks {
			fmt.Fprintf(s, "%+v", w.cause)
			fmt.Fprintf(s, "\n%+v", w.err.(stackTracer).StackTrace())
			_, _ = io.WriteString(s, "\n"+w.Error())
			return
		}
		fallthrough
	case 's':
		_, _ = io.WriteString(s, w.Error())
	case 'q':
		fmt.Fprintf(s, "%q", w.Error())
	}
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Wrap returns an error annotating err with a stack trace
// at the point Wrap is called, and the supplied message.
// If err is nil, Wrap returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrapping{
		cause: err,
		err:   pkgerrors.Wrap(err, message),
	}
}

// Wrapf returns an error annotating err with a stack trace
// at the point Wrapf is called, and the format specifier.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapping{
		cause: err,
		err:   pkgerrors.Wrapf(err, format, args...),
	}
}

// Cause returns the immediate cause of an error, or nil if the error
// does not wrap anything.
func Cause(err error) error {
	type causer interface {
		Cause() error
	}
	if c, ok := err.(causer); ok {
		return c.Cause()
	}
	return nil
}

// RootCause returns the underlying cause of the error, if possible.
func RootCause(err error) error {
	for {
		cause := Cause(err)
		if cause == nil {
			return err
		}
		err = cause
	}
}

// Code returns the error code if it's a vtError.
// If err is nil, it returns ok.
func Code(err error) ErrCode {
	if err == nil {
		return OK
	}
	var ec ErrorWithCode
	if errors.As(err, &ec) {
		return ec.ErrorCode()
	}
	// Handle some special cases.
	switch {
	case errors.Is(err, context.Canceled):
		return CANCELED
	case errors.Is(err, context.DeadlineExceeded):
		return DEADLINE_EXCEEDED
	}
	return UNKNOWN
}

// ErrState returns the error state if it's a vtError.
// If err is nil, it returns Undefined.
func ErrState(err error) State {
	var es ErrorWithState
	if errors.As(err, &es) {
		return es.ErrorState()
	}
	return Undefined
}

// Equals returns true iff the error message and the code returned by Code()
// are equal.
func Equals(a, b error) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Error() == b.Error() && Code(a) == Code(b)
}

// VT13001 reports a condition that the executor considers impossible.
func VT13001(arg string) error {
	return NewErrorf(INTERNAL, Undefined, "[BUG] %s", arg)
}

// VT12001 reports a feature the executor does not support.
func VT12001(arg string) error {
	return NewErrorf(UNIMPLEMENTED, NotSupportedYet, "VT12001: unsupported: %s", arg)
}

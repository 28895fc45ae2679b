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

package vterrors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(nil, "no error"))
	require.NoError(t, Wrapf(nil, "no error %d", 1))
}

func TestWrap(t *testing.T) {
	tests := []struct {
		err         error
		message     string
		wantMessage string
		wantCode    ErrCode
	}{
		{io.EOF, "read error", "read error: EOF", UNKNOWN},
		{New(ALREADY_EXISTS, "oops"), "client error", "client error: oops", ALREADY_EXISTS},
		{NewErrorf(INVALID_ARGUMENT, DivisionByZero, "division by zero"), "eval", "eval: division by zero", INVALID_ARGUMENT},
	}

	for _, tt := range tests {
		got := Wrap(tt.err, tt.message)
		assert.Equal(t, tt.wantMessage, got.Error())
		assert.Equal(t, tt.wantCode, Code(got))
	}
}

func TestRootCause(t *testing.T) {
	x := New(FAILED_PRECONDITION, "error")
	tests := []struct {
		err  error
		want error
	}{{
		err:  nil,
		want: nil,
	}, {
		err:  io.EOF,
		want: io.EOF,
	}, {
		err:  Wrap(io.EOF, "ignored"),
		want: io.EOF,
	}, {
		err:  Wrapf(Wrap(x, "one"), "two"),
		want: x,
	}, {
		err:  x,
		want: x,
	}}

	for i, tt := range tests {
		assert.Equal(t, tt.want, RootCause(tt.err), "test %d", i+1)
	}
}

func TestCause(t *testing.T) {
	assert.Nil(t, Cause(nil))
	assert.Nil(t, Cause(io.EOF))
	assert.Equal(t, io.EOF, Cause(Wrap(io.EOF, "ignored")))
	assert.Nil(t, Cause(New(FAILED_PRECONDITION, "error")))
}

func TestErrorf(t *testing.T) {
	assert.EqualError(t, Errorf(DATA_LOSS, "read error without format specifiers"), "read error without format specifiers")
	assert.EqualError(t, Errorf(DATA_LOSS, "read error with %d format specifier", 1), "read error with 1 format specifier")
}

func innerMost() error {
	return Wrap(io.ErrNoProgress, "oh noes")
}

func middle() error {
	return innerMost()
}

func outer() error {
	return middle()
}

func TestStackFormat(t *testing.T) {
	err := outer()
	got := fmt.Sprintf("%v", err)
	assert.NotContains(t, got, "innerMost")

	LogErrStacks = true
	defer func() { LogErrStacks = false }()
	got = fmt.Sprintf("%v", err)
	assert.Contains(t, got, "innerMost")
	assert.Contains(t, got, "middle")
	assert.Contains(t, got, "outer")
}

func TestWrapping(t *testing.T) {
	err1 := Errorf(UNAVAILABLE, "foo")
	err2 := Wrapf(err1, "bar")
	err3 := Wrapf(err2, "baz")
	errorWithoutStack := fmt.Sprintf("%v", err3)
	errorWithStack := fmt.Sprintf("%+v", err3)

	assert.Equal(t, "baz: bar: foo", err3.Error())
	assert.Equal(t, UNAVAILABLE, Code(err3))
	assert.NotContains(t, errorWithoutStack, "TestWrapping")
	assert.Contains(t, errorWithStack, "foo")
	assert.Contains(t, errorWithStack, "baz")
	assert.Contains(t, errorWithStack, "TestWrapping")
}

func TestCode(t *testing.T) {
	testcases := []struct {
		in   error
		want ErrCode
	}{{
		in:   nil,
		want: OK,
	}, {
		in:   errors.New("generic"),
		want: UNKNOWN,
	}, {
		in:   New(CANCELED, "generic"),
		want: CANCELED,
	}, {
		in:   context.Canceled,
		want: CANCELED,
	}, {
		in:   fmt.Errorf("wrapped: %w", context.DeadlineExceeded),
		want: DEADLINE_EXCEEDED,
	}}
	for _, tcase := range testcases {
		assert.Equal(t, tcase.want, Code(tcase.in), "Code(%v)", tcase.in)
	}
}

func TestState(t *testing.T) {
	err := Wrap(NewErrorf(INVALID_ARGUMENT, CantCoerce, "cannot cast"), "projection")
	assert.Equal(t, CantCoerce, ErrState(err))
	assert.Equal(t, Undefined, ErrState(io.EOF))
	assert.Equal(t, NotSupportedYet, ErrState(VT12001("right merge join with join filter")))
	assert.Equal(t, INTERNAL, Code(VT13001("node ended twice")))
	assert.EqualError(t, VT13001("node ended twice"), "[BUG] node ended twice")
}

func TestEquals(t *testing.T) {
	assert.True(t, Equals(nil, nil))
	assert.False(t, Equals(nil, io.EOF))
	assert.True(t, Equals(New(INTERNAL, "x"), New(INTERNAL, "x")))
	assert.False(t, Equals(New(INTERNAL, "x"), New(UNKNOWN, "x")))
	assert.Equal(t, "FAILED_PRECONDITION", FAILED_PRECONDITION.String())
}

func TestErrCodeString(t *testing.T) {
	var code ErrCode = Code(Wrap(New(RESOURCE_EXHAUSTED, "work-mem"), "spilling"))
	assert.Equal(t, "RESOURCE_EXHAUSTED", code.String())
	assert.Equal(t, "UNKNOWN", ErrCode(99).String())
}

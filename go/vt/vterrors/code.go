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

// ErrCode is the category of an error. The values mirror the canonical
// RPC status codes so errors can be classified the same way everywhere.
type ErrCode int32

const (
	OK ErrCode = iota
	CANCELED
	UNKNOWN
	INVALID_ARGUMENT
	DEADLINE_EXCEEDED
	NOT_FOUND
	ALREADY_EXISTS
	PERMISSION_DENIED
	RESOURCE_EXHAUSTED
	FAILED_PRECONDITION
	ABORTED
	OUT_OF_RANGE
	UNIMPLEMENTED
	INTERNAL
	UNAVAILABLE
	DATA_LOSS
)

var codeNames = [...]string{
	OK:                  "OK",
	CANCELED:            "CANCELED",
	UNKNOWN:             "UNKNOWN",
	INVALID_ARGUMENT:    "INVALID_ARGUMENT",
	DEADLINE_EXCEEDED:   "DEADLINE_EXCEEDED",
	NOT_FOUND:           "NOT_FOUND",
	ALREADY_EXISTS:      "ALREADY_EXISTS",
	PERMISSION_DENIED:   "PERMISSION_DENIED",
	RESOURCE_EXHAUSTED:  "RESOURCE_EXHAUSTED",
	FAILED_PRECONDITION: "FAILED_PRECONDITION",
	ABORTED:             "ABORTED",
	OUT_OF_RANGE:        "OUT_OF_RANGE",
	UNIMPLEMENTED:       "UNIMPLEMENTED",
	INTERNAL:            "INTERNAL",
	UNAVAILABLE:         "UNAVAILABLE",
	DATA_LOSS:           "DATA_LOSS",
}

func (c ErrCode) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return "UNKNOWN"
	}
	return codeNames[c]
}

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

package viperutil

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/viper"
)

// GetFuncForType returns the default getter function for a given type T. A
// getter function is a function which takes a viper and returns a function that
// takes a key and (finally!) returns a value of type T.
//
// For example, the default getter for a value of type string is a function that
// takes a viper instance v and calls v.GetString with the provided key.
//
// It panics for types it does not know about. Values of those types must
// pass an explicit GetFunc in their Options.
func GetFuncForType[T any]() func(v *viper.Viper) func(key string) T {
	var (
		t T
		f any
	)

	typ := reflect.TypeOf(t)
	switch typ.Kind() {
	case reflect.Bool:
		f = func(v *viper.Viper) func(key string) bool {
			return v.GetBool
		}
	case reflect.Int:
		f = func(v *viper.Viper) func(key string) int {
			return v.GetInt
		}
	case reflect.Int64:
		switch typ {
		case reflect.TypeOf(time.Duration(0)):
			f = func(v *viper.Viper) func(key string) time.Duration {
				return v.GetDuration
			}
		default:
			f = func(v *viper.Viper) func(key string) int64 {
				return v.GetInt64
			}
		}
	case reflect.Uint64:
		f = func(v *viper.Viper) func(key string) uint64 {
			return v.GetUint64
		}
	case reflect.Float64:
		f = func(v *viper.Viper) func(key string) float64 {
			return v.GetFloat64
		}
	case reflect.String:
		f = func(v *viper.Viper) func(key string) string {
			return v.GetString
		}
	case reflect.Slice:
		if typ.Elem().Kind() == reflect.String {
			f = func(v *viper.Viper) func(key string) []string {
				return v.GetStringSlice
			}
		}
	}

	if f == nil {
		panic(fmt.Sprintf("no default GetFunc for type %T; call Configure with a custom GetFunc", t))
	}
	return f.(func(v *viper.Viper) func(key string) T)
}

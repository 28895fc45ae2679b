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

/*
Package viperutil provides a utility layer to streamline and standardize
interacting with viper-backed configuration values across the executor.

Each setting is declared once with Configure, naming its config key, the
flag and environment variables that may override it, and its default:

	var workMem = viperutil.Configure("exec.work-mem", viperutil.Options[uint64]{
		FlagName: "work-mem",
		EnvVars:  []string{"VTEXEC_WORK_MEM"},
		Default:  4 << 20,
		GetFunc:  funcs.GetBytes,
	})

After flags are registered, BindFlags ties the values to the parsed flag
set, and LoadConfig merges a config file underneath them.
*/
package viperutil

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vitess.io/vtexec/go/vt/vterrors"
)

// registry holds every configured value. Values are read when a config
// file is loaded or flags are parsed and keep them for the lifetime of
// the process.
var registry = viper.New()

// ErrNoFlagDefined is returned by BindFlags when a value names a flag the
// flag set does not define.
var ErrNoFlagDefined = vterrors.New(vterrors.INVALID_ARGUMENT, "flag not defined")

// Options control how Configure binds a value.
type Options[T any] struct {
	// Aliases are additional keys for the value.
	Aliases []string
	// FlagName is the flag that overrides the value once BindFlags ran.
	FlagName string
	// EnvVars override the value when set in the environment.
	EnvVars []string
	Default T
	// GetFunc reads the value out of a viper. When nil, GetFuncForType
	// picks one.
	GetFunc func(v *viper.Viper) func(key string) T
}

// Registerable is what BindFlags needs of a value, whatever its type.
type Registerable interface {
	Key() string
	FlagName() string
}

// Value is a typed config value.
type Value[T any] interface {
	Registerable

	// Get returns the current value: a flag set on the command line, an
	// environment variable, a loaded config file or the default, in that
	// order of precedence.
	Get() T
	// Set overrides every other source.
	Set(v T)
	Default() T
	// ReadFrom makes Get read from v until the returned function is
	// called. It exists for vipertest.
	ReadFrom(v *viper.Viper) (restore func())
}

type setting[T any] struct {
	key      string
	flagName string
	def      T
	getFunc  func(v *viper.Viper) func(key string) T
	get      func(key string) T
}

func (s *setting[T]) Key() string      { return s.key }
func (s *setting[T]) FlagName() string { return s.flagName }
func (s *setting[T]) Default() T       { return s.def }
func (s *setting[T]) Get() T           { return s.get(s.key) }
func (s *setting[T]) Set(v T)          { registry.Set(s.key, v) }

func (s *setting[T]) ReadFrom(v *viper.Viper) func() {
	old := s.get
	s.get = s.getFunc(v)
	return func() { s.get = old }
}

// Configure declares a value under key.
func Configure[T any](key string, opts Options[T]) Value[T] {
	getFunc := opts.GetFunc
	if getFunc == nil {
		getFunc = GetFuncForType[T]()
	}
	s := &setting[T]{
		key:      key,
		flagName: opts.FlagName,
		def:      opts.Default,
		getFunc:  getFunc,
		get:      getFunc(registry),
	}

	registry.SetDefault(key, opts.Default)
	for _, alias := range opts.Aliases {
		registry.RegisterAlias(alias, key)
	}
	if len(opts.EnvVars) > 0 {
		_ = registry.BindEnv(append([]string{key}, opts.EnvVars...)...)
	}
	return s
}

// BindFlags ties values to the flags of fs they name. It panics when fs
// lacks one of those flags, so it runs after the flags are defined.
func BindFlags(fs *pflag.FlagSet, values ...Registerable) {
	for _, val := range values {
		name := val.FlagName()
		if name == "" {
			continue
		}
		flag := fs.Lookup(name)
		if flag == nil {
			panic(vterrors.Wrapf(ErrNoFlagDefined, "binding %s to flag %s", val.Key(), name))
		}
		_ = registry.BindPFlag(val.Key(), flag)
		if flag.Name != val.Key() {
			registry.RegisterAlias(flag.Name, val.Key())
		}
	}
}

// LoadConfig merges a config file (yaml, json or toml, picked by its
// extension) underneath the configured values.
func LoadConfig(path string) error {
	if path == "" {
		return nil
	}
	registry.SetConfigFile(path)
	if err := registry.MergeInConfig(); err != nil {
		return vterrors.Wrapf(err, "loading config %s", path)
	}
	return nil
}

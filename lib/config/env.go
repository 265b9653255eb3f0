// Copyright 2018 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"strings"

	"github.com/alien-bunny/hutch/lib/env"
)

var _ Provider = &EnvConfigProvider{}

// EnvConfigProvider reads config values from environment variables.
//
// A config key maps to the variable name PREFIX_KEY_FIELD. The provider
// snapshots the environment on first use; call Reset to pick up changes.
type EnvConfigProvider struct {
	Prefix    string
	Separator string
	snapshot  map[string]string
}

func NewEnvConfigProvider() *EnvConfigProvider {
	return &EnvConfigProvider{
		Separator: "_",
	}
}

// Reset drops the environment snapshot.
func (e *EnvConfigProvider) Reset() {
	e.snapshot = nil
}

func (e *EnvConfigProvider) Has(key string) bool {
	e.snapshotEnv()

	prefix := e.varName(key)
	for name := range e.snapshot {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

func (e *EnvConfigProvider) Unmarshal(key string, v interface{}) error {
	e.snapshotEnv()

	u := env.NewUnmarshaler()
	u.Prefix = key
	u.Separator = e.Separator
	u.Loader = func(name string) (string, bool) {
		val, found := e.snapshot[e.varName(name)]
		return val, found
	}

	return u.Unmarshal(v)
}

func (e *EnvConfigProvider) snapshotEnv() {
	if e.snapshot != nil {
		return
	}

	e.snapshot = make(map[string]string)
	for _, ev := range os.Environ() {
		parts := strings.SplitN(ev, "=", 2)
		e.snapshot[parts[0]] = parts[1]
	}
}

func (e *EnvConfigProvider) varName(key string) string {
	key = strings.ToUpper(key)
	if e.Prefix == "" {
		return key
	}

	return e.Prefix + e.Separator + key
}

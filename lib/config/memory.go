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
	"sync"

	"github.com/imdario/mergo"

	"github.com/alien-bunny/hutch/lib/errors"
)

var _ WritableProvider = &MemoryConfigProvider{}

// MemoryConfigProvider keeps config values in memory.
//
// Mostly useful in tests and as a scratch override layer on top of the file
// based providers.
type MemoryConfigProvider struct {
	mtx   sync.RWMutex
	store map[string]interface{}
}

func NewMemoryConfigProvider() *MemoryConfigProvider {
	m := &MemoryConfigProvider{}
	m.Reset()
	return m
}

func (m *MemoryConfigProvider) Reset() {
	m.mtx.Lock()
	m.store = make(map[string]interface{})
	m.mtx.Unlock()
}

func (m *MemoryConfigProvider) CanSave(key string) bool {
	return true
}

func (m *MemoryConfigProvider) Save(key string, v interface{}) error {
	m.mtx.Lock()
	m.store[key] = v
	m.mtx.Unlock()

	return nil
}

func (m *MemoryConfigProvider) Has(key string) bool {
	m.mtx.RLock()
	_, found := m.store[key]
	m.mtx.RUnlock()

	return found
}

func (m *MemoryConfigProvider) Unmarshal(key string, v interface{}) error {
	m.mtx.RLock()
	val, found := m.store[key]
	m.mtx.RUnlock()

	if !found {
		return errors.New("value not found")
	}

	return mergo.Merge(v, val)
}

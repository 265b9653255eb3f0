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

// Package config is a schema checked, multi-provider configuration store.
//
// Values are read from providers in order and merged, so the environment can
// override a config directory, which can override in-memory defaults. Every
// key must have a registered schema type before it can be read.
package config

import (
	"reflect"
	"sync"

	"github.com/imdario/mergo"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/log"
)

// ConfigSchemaProvider announces config keys and their types.
//
// Middlewares, services and handlers can implement this interface. The server
// registers their schemas when they are added.
type ConfigSchemaProvider interface {
	ConfigSchema() map[string]reflect.Type
}

type Provider interface {
	Has(key string) bool
	Unmarshal(key string, v interface{}) error
}

type WritableProvider interface {
	Provider
	CanSave(key string) bool
	Save(key string, v interface{}) error
}

type Saver interface {
	Save(v interface{}) error
}

var _ Saver = saverFunc(nil)

type saverFunc func(v interface{}) error

func (f saverFunc) Save(v interface{}) error {
	return f(v)
}

// Store reads config values from its providers.
type Store struct {
	mtx       sync.RWMutex
	schemas   map[string]reflect.Type
	providers []Provider
	cache     map[string]interface{}
	logger    log.Logger
}

func NewStore(logger log.Logger) *Store {
	return &Store{
		schemas: make(map[string]reflect.Type),
		cache:   make(map[string]interface{}),
		logger:  logger,
	}
}

// AddProviders appends providers to the store. Later providers override
// earlier ones when both have a key.
func (s *Store) AddProviders(providers ...Provider) {
	s.mtx.Lock()
	s.providers = append(s.providers, providers...)
	s.cache = make(map[string]interface{})
	s.mtx.Unlock()
}

// MaybeRegisterSchema registers the config schema of v if it provides one.
// Safe to call on a nil store, so wiring code does not have to care whether
// configuration is set up.
func (s *Store) MaybeRegisterSchema(v interface{}) {
	if s == nil {
		return
	}

	if csp, ok := v.(ConfigSchemaProvider); ok {
		for name, t := range csp.ConfigSchema() {
			s.RegisterSchema(name, t)
		}
	}
}

func (s *Store) RegisterSchema(name string, schema reflect.Type) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if registered, found := s.schemas[name]; found && registered != schema {
		panic("schema " + name + " is already registered")
	}

	s.schemas[name] = schema
}

func (s *Store) ClearCache() {
	s.mtx.Lock()
	s.cache = make(map[string]interface{})
	s.mtx.Unlock()
}

// Get returns the merged value for a key, or nil when no provider has it.
func (s *Store) Get(key string) (interface{}, error) {
	s.mtx.RLock()
	schema, found := s.schemas[key]
	if !found {
		s.mtx.RUnlock()
		return nil, SchemaNotFoundError{key}
	}

	if val, cached := s.cache[key]; cached {
		s.mtx.RUnlock()
		return val, nil
	}
	s.mtx.RUnlock()

	val, err := s.find(key, schema)
	if err != nil {
		return nil, err
	}

	if val != nil {
		s.mtx.Lock()
		s.cache[key] = val
		s.mtx.Unlock()
	}

	return val, nil
}

// GetWritable returns the value for a key along with a saver that persists a
// new value through the first provider that can save it.
func (s *Store) GetWritable(key string) (interface{}, Saver, error) {
	val, err := s.Get(key)
	if err != nil {
		return nil, nil, err
	}

	return val, saverFunc(func(v interface{}) error {
		return s.set(key, v)
	}), nil
}

// find merges the key's value across all providers that have it. Earlier
// providers win on conflicting fields, matching the merge semantics of mergo.
func (s *Store) find(key string, schema reflect.Type) (interface{}, error) {
	var ptr reflect.Value
	merge := false

	s.mtx.RLock()
	providers := s.providers[:]
	s.mtx.RUnlock()

	for _, provider := range providers {
		if provider.Has(key) {
			currentPtr := reflect.New(schema)
			if err := provider.Unmarshal(key, currentPtr.Interface()); err != nil {
				return nil, err
			}
			if !merge {
				ptr = currentPtr
				merge = true
			} else if err := mergo.Merge(ptr.Interface(), reflect.Indirect(currentPtr).Interface()); err != nil {
				return nil, err
			}
		}
	}

	if ptr.IsValid() {
		return reflect.Indirect(ptr).Interface(), nil
	}

	return nil, nil
}

func (s *Store) set(key string, v interface{}) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if schema, found := s.schemas[key]; !found {
		return SchemaNotFoundError{key}
	} else if reflect.TypeOf(v) != schema {
		return errors.New("invalid type for config key " + key)
	}

	for _, provider := range s.providers {
		if wp, ok := provider.(WritableProvider); ok && wp.CanSave(key) {
			if err := wp.Save(key, v); err != nil {
				return err
			}
			s.cache[key] = v
			return nil
		}
	}

	return errors.New("failed to save config")
}

var _ error = SchemaNotFoundError{}

type SchemaNotFoundError struct {
	Key string
}

func (e SchemaNotFoundError) Error() string {
	return "no schema registered for config key: " + e.Key
}

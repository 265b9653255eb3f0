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

// Package middleware implements a middleware stack with dependency tracking.
//
// Handlers and middlewares can declare which middlewares they rely on, and the
// stack refuses registrations whose dependencies are not on the stack yet.
package middleware

import (
	"net/http"
	"reflect"
)

type HandlerWrapper interface {
	Wrap(http.Handler) http.Handler
}

type HasMiddlewareDependencies interface {
	Dependencies() []string
}

type Middleware interface {
	HandlerWrapper
	HasMiddlewareDependencies
}

// Func adapts a plain wrapper function into a dependency-free Middleware.
type Func func(http.Handler) http.Handler

func (mf Func) Wrap(next http.Handler) http.Handler {
	return mf(next)
}

func (mf Func) Dependencies() []string {
	return []string{}
}

// NoDependencies can be embedded into a middleware that relies on nothing.
type NoDependencies struct{}

func (n NoDependencies) Dependencies() []string {
	return []string{}
}

// DependencyError is returned when a registration names a middleware that is
// not on the stack or any of its parents.
type DependencyError struct {
	NotFound string
	Provided []string
}

func (de DependencyError) Error() string {
	return `dependency "` + de.NotFound + `" is not found`
}

type wrappedHandler struct {
	http.Handler
	deps []string
}

func (wh *wrappedHandler) Dependencies() []string {
	return wh.deps
}

func (wh *wrappedHandler) Unwrap() http.Handler {
	return wh.Handler
}

// WrapHandler attaches middleware dependencies to a handler.
func WrapHandler(h http.Handler, dependencies ...string) http.Handler {
	return &wrappedHandler{
		Handler: h,
		deps:    dependencies,
	}
}

func WrapHandlerFunc(f func(http.ResponseWriter, *http.Request), dependencies ...string) http.Handler {
	return WrapHandler(http.HandlerFunc(f), dependencies...)
}

// Stack is an ordered middleware list with dependency validation.
//
// A stack can have a parent. Dependencies satisfied by the parent count as
// satisfied on the child. This lets per-endpoint stacks extend the server's
// global stack.
type Stack struct {
	chain  []Middleware
	known  map[string]struct{}
	parent *Stack
}

func NewStack(parent *Stack) *Stack {
	return &Stack{
		chain:  make([]Middleware, 0),
		known:  make(map[string]struct{}),
		parent: parent,
	}
}

// Push appends a middleware to the stack.
func (ms *Stack) Push(m Middleware) error {
	return ms.insert(m, false)
}

// Shift prepends a middleware to the stack.
func (ms *Stack) Shift(m Middleware) error {
	return ms.insert(m, true)
}

func (ms *Stack) insert(m Middleware, front bool) error {
	if verr := ms.validate(m); verr != nil {
		return verr
	}

	ms.known[reflect.TypeOf(m).String()] = struct{}{}

	if front {
		ms.chain = append([]Middleware{m}, ms.chain...)
	} else {
		ms.chain = append(ms.chain, m)
	}

	return nil
}

// ValidateHandler checks that the handler's declared dependencies are all
// satisfied by this stack or its ancestors.
func (ms *Stack) ValidateHandler(h http.Handler) error {
	if d, ok := h.(HasMiddlewareDependencies); ok {
		return ms.validate(d)
	}

	return nil
}

func (ms *Stack) validate(d HasMiddlewareDependencies) error {
	for _, dep := range d.Dependencies() {
		if ms.satisfies(dep) {
			continue
		}

		return DependencyError{
			NotFound: dep,
			Provided: ms.allKnown(),
		}
	}

	return nil
}

func (ms *Stack) satisfies(dep string) bool {
	for s := ms; s != nil; s = s.parent {
		if _, ok := s.known[dep]; ok {
			return true
		}
	}

	return false
}

func (ms *Stack) allKnown() []string {
	var deps []string

	for s := ms; s != nil; s = s.parent {
		for d := range s.known {
			deps = append(deps, d)
		}
	}

	return deps
}

// Wrap wraps a handler with the stack's middlewares. The first middleware on
// the stack becomes the outermost wrapper.
func (ms *Stack) Wrap(handler http.Handler) http.Handler {
	for i := len(ms.chain) - 1; i >= 0; i-- {
		handler = ms.chain[i].Wrap(handler)
	}

	return handler
}

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

package errors

import (
	"net/http"
	"strings"
)

// Source points at the part of the request an error item originates from.
//
// Exactly one of Pointer (a JSON pointer into the request body) or Parameter
// (a query string parameter name) is set.
type Source struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// Item is a single machine-readable error of an APIError.
type Item struct {
	Code   string  `json:"code"`
	Detail string  `json:"detail,omitempty"`
	Source *Source `json:"source,omitempty"`
}

var _ Error = &APIError{}

// APIError is an error that maps to an HTTP error response.
//
// The response body is {"errors": [...]} with one entry per Item. APIError
// values pass through the error handler middleware verbatim, so endpoint code
// can abort with a precise status and error list via FailAPI.
type APIError struct {
	Status int    `json:"-"`
	Items  []Item `json:"errors"`
}

// NewAPIError creates an APIError for the given HTTP status code.
//
// If no items are given, a single item with the lowercased status text as its
// code is generated.
func NewAPIError(status int, items ...Item) *APIError {
	if len(items) == 0 {
		items = []Item{{
			Code: strings.ToLower(strings.Replace(http.StatusText(status), " ", "_", -1)),
		}}
	}

	return &APIError{
		Status: status,
		Items:  items,
	}
}

// C is a shorthand constructing an Item from an error code.
func C(code string) Item {
	return Item{Code: code}
}

// CD is a shorthand constructing an Item from a code and a detail message.
func CD(code, detail string) Item {
	return Item{Code: code, Detail: detail}
}

func (e *APIError) Error() string {
	codes := make([]string, len(e.Items))
	for i, item := range e.Items {
		codes[i] = item.Code
		if item.Detail != "" {
			codes[i] += ": " + item.Detail
		}
	}

	return http.StatusText(e.Status) + " (" + strings.Join(codes, ", ") + ")"
}

func (e *APIError) UserError() string {
	return e.Error()
}

// WithSourceParameter returns a copy of the error with every item's source set
// to the given query parameter.
func (e *APIError) WithSourceParameter(param string) *APIError {
	return e.withSource(&Source{Parameter: param})
}

// WithSourcePointer returns a copy of the error with every item's source set
// to the given JSON pointer.
func (e *APIError) WithSourcePointer(pointer string) *APIError {
	return e.withSource(&Source{Pointer: pointer})
}

func (e *APIError) withSource(src *Source) *APIError {
	items := make([]Item, len(e.Items))
	for i, item := range e.Items {
		item.Source = src
		items[i] = item
	}

	return &APIError{
		Status: e.Status,
		Items:  items,
	}
}

// FailAPI aborts the current request with an APIError.
func FailAPI(status int, items ...Item) {
	err := NewAPIError(status, items...)
	Fail(err.Status, err)
}

// ConvertAPIError extracts an *APIError from err if there is one in its chain.
func ConvertAPIError(err error) (*APIError, bool) {
	for err != nil {
		if apierr, ok := err.(*APIError); ok {
			return apierr, true
		}

		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return nil, false
		}
		err = cause.Cause()
	}

	return nil, false
}

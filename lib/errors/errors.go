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
	"errors"
	"strings"
)

// Error extends the built-in error interface with a message that is displayed to the end user.
type Error interface {
	// Error that is displayed in the logs and debug messages. Should contain diagnostical information.
	Error() string
	// Error that is displayed to the end user.
	UserError() string
}

var _ Error = &errorWrapper{}

type errorWrapper struct {
	error
	message string
}

func (ew *errorWrapper) UserError() string {
	return ew.message
}

func (ew *errorWrapper) Cause() error {
	return ew.error
}

// Wrap wraps an error message into an Error.
func Wrap(err error, message string) Error {
	return &errorWrapper{
		error:   err,
		message: message,
	}
}

// NewError creates a new verbose error message.
//
// If err is an empty string, then message will be used instead.
func NewError(err, message string) Error {
	if err == "" {
		err = message
	}

	return Wrap(errors.New(err), message)
}

// New is a replacement function for errors.New().
//
// This function constructs an Error where both the diagnostic error and the end user error is the same.
func New(message string) error {
	return NewError(message, message)
}

// Fail stops the current request by panicking with a Panic value.
//
// The error handler middleware recovers it and renders the error response.
func Fail(code int, err error) {
	panic(Panic{
		Code: code,
		Err:  err,
	})
}

var _ Error = Panic{}

// Panic is a custom panic data structure for the error handler middleware.
type Panic struct {
	Code          int
	Err           error
	StackTrace    string
	DisplayErrors bool
}

func (p Panic) Error() string {
	return p.Err.Error()
}

func (p Panic) String() string {
	return p.Err.Error()
}

func (p Panic) UserError() string {
	if ve, ok := p.Err.(Error); ok {
		return ve.UserError()
	}

	return ""
}

var _ Error = MultiError{}

// MultiError aggregates a list of errors into one.
type MultiError struct {
	Errors []error
}

// NewMultiError creates a MultiError from a list of errors, skipping nils.
//
// Returns nil when no error remains.
func NewMultiError(errs []error) error {
	var filtered []error
	for _, e := range errs {
		if e != nil {
			filtered = append(filtered, e)
		}
	}

	if len(filtered) == 0 {
		return nil
	}

	return MultiError{Errors: filtered}
}

func (m MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}

	return strings.Join(msgs, "; ")
}

func (m MultiError) UserError() string {
	var msgs []string
	for _, e := range m.Errors {
		if ve, ok := e.(Error); ok {
			if ue := ve.UserError(); ue != "" {
				msgs = append(msgs, ue)
			}
		}
	}

	return strings.Join(msgs, "; ")
}

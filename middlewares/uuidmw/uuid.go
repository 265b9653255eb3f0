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

package uuidmw

import (
	"net/http"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/middleware"
	"github.com/alien-bunny/hutch/lib/server"
	"github.com/alien-bunny/hutch/lib/uuid"
	"github.com/alien-bunny/hutch/middlewares/errormw"
)

var _ middleware.Middleware = &UUIDMiddleware{}

// UUIDMiddleware rejects requests whose URL parameters are not valid UUIDs.
//
// It relies on the URL parameters being present in the context, so it can
// only be used as a handler middleware.
type UUIDMiddleware struct {
	parameters []string
	strict     bool
}

// New creates a new UUIDMiddleware guarding the given URL parameters.
//
// When strict is false, empty values pass.
func New(strict bool, parameters ...string) *UUIDMiddleware {
	return &UUIDMiddleware{
		parameters: parameters,
		strict:     strict,
	}
}

func (m *UUIDMiddleware) Dependencies() []string {
	return []string{
		errormw.MiddlewareDependencyError,
	}
}

func (m *UUIDMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := server.GetParams(r)

		for _, param := range m.parameters {
			m.check(params.ByName(param))
		}

		next.ServeHTTP(w, r)
	})
}

func (m *UUIDMiddleware) check(value string) {
	if value == "" {
		if m.strict {
			errors.Fail(http.StatusNotFound, nil)
		}

		return
	}

	if _, err := uuid.FromString(value); err != nil {
		errors.Fail(http.StatusNotFound, nil)
	}
}

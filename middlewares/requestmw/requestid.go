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

package requestmw

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/alien-bunny/hutch/lib/middleware"
	"github.com/alien-bunny/hutch/lib/util"
)

const (
	MiddlewareDependencyRequestID = "*requestmw.RequestIDMiddleware"
	reqIDKey                      = "hutchreqid"

	// Short ids keep the access log lines readable. Collisions across the
	// lifetime of a single process are acceptable.
	reqIDBytes = 4
)

var _ middleware.Middleware = &RequestIDMiddleware{}

// RequestIDMiddleware tags every request with a random id for logging.
type RequestIDMiddleware struct {
	middleware.NoDependencies
}

func NewRequestIDMiddleware() *RequestIDMiddleware {
	return &RequestIDMiddleware{}
}

func (rid *RequestIDMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, reqIDBytes)
		rand.Read(buf)

		next.ServeHTTP(w, util.SetContext(r, reqIDKey, hex.EncodeToString(buf)))
	})
}

// GetRequestID returns the current request's request id, or "" outside the
// middleware.
func GetRequestID(r *http.Request) string {
	if val := r.Context().Value(reqIDKey); val != nil {
		return val.(string)
	}

	return ""
}

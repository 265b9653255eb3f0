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

// Package securitymw contains middlewares hardening the HTTP surface.
package securitymw

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alien-bunny/hutch/lib/middleware"
)

const MiddlewareDependencyHSTS = "*securitymw.HSTSMiddleware"

var _ middleware.Middleware = &HSTSMiddleware{}

// HSTSMiddleware sets the Strict-Transport-Security header on TLS responses.
type HSTSMiddleware struct {
	MaxAge            time.Duration
	IncludeSubDomains bool

	middleware.NoDependencies
}

func (h *HSTSMiddleware) Wrap(next http.Handler) http.Handler {
	value := h.String()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The header only has meaning on a secure channel.
		if r.TLS != nil && value != "" {
			w.Header().Set("Strict-Transport-Security", value)
		}
		next.ServeHTTP(w, r)
	})
}

// String renders the header value from the configured directives.
func (h *HSTSMiddleware) String() string {
	var b strings.Builder

	if h.MaxAge > 0 {
		fmt.Fprintf(&b, "max-age=%d", int64(h.MaxAge.Seconds()))
	}

	if h.IncludeSubDomains {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString("includeSubDomains")
	}

	return b.String()
}

// LengthLimitMiddleware rejects requests that declare a body larger than
// limit, and caps undeclared bodies with http.MaxBytesReader.
func LengthLimitMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				rejectOversized(w)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

func rejectOversized(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		w.Header().Set("Connection", "close")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusExpectationFailed)
		w.Write([]byte("request too large"))
		flusher.Flush()
	}

	// Tear down the connection so the client stops uploading.
	if hijacker, ok := w.(http.Hijacker); ok {
		conn, _, _ := hijacker.Hijack()
		conn.Close()
	}
}

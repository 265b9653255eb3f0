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

package rendermw

import (
	"net/http"

	"github.com/alien-bunny/hutch/lib/middleware"
	"github.com/alien-bunny/hutch/lib/render"
	"github.com/alien-bunny/hutch/lib/util"
)

const (
	MiddlewareDependencyRender = "*rendermw.RendererMiddleware"

	renderKey = "hutchrender"
)

var _ middleware.Middleware = &RendererMiddleware{}

// RendererMiddleware puts a fresh Renderer into every request context and
// writes it out after the handler returns.
//
// It also changes the ResponseWriter for the inner middlewares and the
// handler: WriteHeader() does not write the headers, it records the status
// code on the Renderer instead. Without this, a middleware below this one
// could commit the headers before the Renderer gets to pick the content
// type. See rendererResponseWriter.WriteHeader().
type RendererMiddleware struct {
	middleware.NoDependencies
}

func New() *RendererMiddleware {
	return &RendererMiddleware{}
}

func (m *RendererMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		renderer := render.NewRenderer()
		rw := &rendererResponseWriter{
			ResponseWriterWrapper: util.ResponseWriterWrapper{ResponseWriter: w},
			Renderer:              renderer,
		}

		next.ServeHTTP(rw, util.SetContext(r, renderKey, renderer))

		renderer.Render(w, r)
	})
}

// Render gets the Renderer struct from the request context.
func Render(r *http.Request) *render.Renderer {
	return r.Context().Value(renderKey).(*render.Renderer)
}

var _ http.Hijacker = &rendererResponseWriter{}
var _ http.Flusher = &rendererResponseWriter{}
var _ http.Pusher = &rendererResponseWriter{}

type rendererResponseWriter struct {
	util.ResponseWriterWrapper
	*render.Renderer
}

func (r *rendererResponseWriter) Write(b []byte) (int, error) {
	if !r.Renderer.IsRendered() {
		r.ResponseWriter.WriteHeader(r.Renderer.Code)
		r.Renderer.SetRendered()
	}
	return r.ResponseWriter.Write(b)
}

// WriteHeader records the status code on the Renderer instead of writing it.
//
// The Renderer writes the code together with the negotiated Content-Type when
// the middleware unwinds. An already set non-default code wins over 200 or 0.
func (r *rendererResponseWriter) WriteHeader(code int) {
	if r.Renderer.Code == 0 || (code != http.StatusOK && code != 0) {
		r.Renderer.SetCode(code)
	}
}

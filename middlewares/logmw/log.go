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

package logmw

import (
	"io"
	"net/http"

	"github.com/alien-bunny/hutch/lib/log"
	"github.com/alien-bunny/hutch/lib/middleware"
	"github.com/alien-bunny/hutch/lib/util"
	"github.com/alien-bunny/hutch/middlewares/requestmw"
	"github.com/fatih/color"
)

const (
	MiddlewareDependencyLog = "*logmw.LoggerMiddleware"
	categoryKey             = "category"
	componentKey            = "component"
	logKey                  = "hutchlog"
)

const (
	CategoryFormatError       = "format error"
	CategoryValidationFailure = "validation failure"
	CategoryTracing           = "tracing"
	CategoryInputError        = "input error"
)

var _ middleware.Middleware = &LoggerMiddleware{}

// LoggerMiddleware injects a request-scoped logger into the request context.
//
// When a request id is present, every line logged below this middleware
// carries it, so the log lines of a single request can be grepped together.
type LoggerMiddleware struct {
	logger log.Logger

	middleware.NoDependencies
}

func New(logger log.Logger) *LoggerMiddleware {
	return &LoggerMiddleware{
		logger: logger,
	}
}

func (lm *LoggerMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := lm.logger

		if reqid := requestmw.GetRequestID(r); reqid != "" {
			l = log.With(l, "requestid", reqidstr(reqid))
		}

		next.ServeHTTP(w, Update(r, l))
	})
}

var reqidcolor = color.New(color.FgRed)

type reqidstr string

func (s reqidstr) Format(w io.Writer) {
	reqidcolor.Fprint(w, string(s))
}

// Update replaces the logger in the request context.
func Update(r *http.Request, logger log.Logger) *http.Request {
	return util.SetContext(r, logKey, logger)
}

func fromRequest(r *http.Request) log.Logger {
	return r.Context().Value(logKey).(log.Logger)
}

func annotate(l log.Logger, component, category interface{}) log.Logger {
	if component != nil {
		l = log.With(l, componentKey, component)
	}
	if category != nil {
		l = log.With(l, categoryKey, category)
	}

	return l
}

// Debug returns the request's logger at debug level, annotated with the
// component and category keys. Info, Warn and Error work the same way.
func Debug(r *http.Request, component, category interface{}) log.Logger {
	return annotate(log.Debug(fromRequest(r)), component, category)
}

func Info(r *http.Request, component, category interface{}) log.Logger {
	return annotate(log.Info(fromRequest(r)), component, category)
}

func Warn(r *http.Request, component, category interface{}) log.Logger {
	return annotate(log.Warn(fromRequest(r)), component, category)
}

func Error(r *http.Request, component, category interface{}) log.Logger {
	return annotate(log.Error(fromRequest(r)), component, category)
}

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

package errormw

import (
	"fmt"
	"html/template"
	"net/http"
	"runtime"
	"strings"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/middleware"
	"github.com/alien-bunny/hutch/lib/render"
	"github.com/alien-bunny/hutch/middlewares/logmw"
	"github.com/alien-bunny/hutch/middlewares/requestmw"
)

const (
	MiddlewareDependencyError = "*errormw.ErrorHandlerMiddleware"
	error_component           = "error middleware"
)

// Color codes for HTML error pages
var (
	OtherForegroundColor   = "fdf6e3"
	WarningForegroundColor = "fdf6e3"
	ErrorForegroundColor   = "fdf6e3"
	OtherBackgroundColor   = "268bd2"
	WarningBackgroundColor = "b58900"
	ErrorBackgroundColor   = "dc322f"
)

var _ middleware.Middleware = &ErrorHandlerMiddleware{}

// ErrorHandlerMiddleware recovers panics and renders them as error responses.
//
// A recovered errors.Panic keeps its status code, anything else becomes a
// 500. When the panic carries an errors.APIError, clients negotiating a
// structured format receive its full {"errors": [...]} body, so resource
// endpoints can abort with errors.FailAPI anywhere below this middleware.
type ErrorHandlerMiddleware struct {
	displayErrors bool
}

func New(displayErrors bool) *ErrorHandlerMiddleware {
	return &ErrorHandlerMiddleware{
		displayErrors: displayErrors,
	}
}

func (e *ErrorHandlerMiddleware) Dependencies() []string {
	return []string{logmw.MiddlewareDependencyLog}
}

func (e *ErrorHandlerMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			p := asPanic(rec)
			p.DisplayErrors = e.displayErrors
			p.StackTrace = captureStack()

			renderPanic(p, w, r)
		}()

		next.ServeHTTP(w, r)
	})
}

// asPanic normalizes an arbitrary recovered value into an errors.Panic.
func asPanic(rec interface{}) errors.Panic {
	if p, ok := rec.(errors.Panic); ok {
		return p
	}

	err, ok := rec.(error)
	if !ok {
		// Raw panic values carry no user-safe message, so they stay out
		// of the response body.
		err = fmt.Errorf("%v", rec)
	}

	return errors.Panic{
		Code: http.StatusInternalServerError,
		Err:  err,
	}
}

func captureStack() string {
	buf := make([]byte, 8192)
	runtime.Stack(buf, false)
	return strings.TrimRight(string(buf), "\x00")
}

func renderPanic(p errors.Panic, w http.ResponseWriter, r *http.Request) {
	apiErr, isAPIError := errors.ConvertAPIError(p.Err)
	if !isAPIError {
		apiErr = errors.NewAPIError(p.Code)
		if p.DisplayErrors && p.Err != nil {
			apiErr.Items[0].Detail = p.Error()
		} else if ue := p.UserError(); ue != "" {
			apiErr.Items[0].Detail = ue
		}
	}

	if p.Err != nil {
		logmw.Info(r, error_component, nil).Log("error", p.Err)
		logmw.Debug(r, error_component, logmw.CategoryTracing).Log("stacktrace", p.StackTrace)
	}

	pageData := NewErrorPageData(apiErr.Status, r)
	pageData.Message = apiErr.Error()
	if p.DisplayErrors {
		pageData.Logs = p.StackTrace
	}

	text := pageData.Message
	if pageData.RequestID != "" {
		text += "\n\nRequestID: " + pageData.RequestID
	}
	if p.DisplayErrors {
		text += "\n\n" + pageData.Logs
	}

	render.NewRenderer().
		SetCode(apiErr.Status).
		JSON(apiErr).
		HTML(ErrorPage, pageData).
		XML(apiErr.Items, false).
		Text(text).
		Render(w, r)
}

// ErrorPageData contains data for the ErrorPage template.
type ErrorPageData struct {
	BackgroundColor string
	ForegroundColor string
	Code            int
	Message         string
	Logs            string
	RequestID       string
}

func NewErrorPageData(code int, r *http.Request) ErrorPageData {
	fg, bg := pageColors(code)

	return ErrorPageData{
		BackgroundColor: bg,
		ForegroundColor: fg,
		Code:            code,
		RequestID:       requestmw.GetRequestID(r),
	}
}

func pageColors(code int) (fg string, bg string) {
	switch {
	case code >= 500 && code <= 599:
		return ErrorForegroundColor, ErrorBackgroundColor
	case code >= 400 && code <= 499:
		return WarningForegroundColor, WarningBackgroundColor
	default:
		return OtherForegroundColor, OtherBackgroundColor
	}
}

// ErrorPage is the default HTML template for the standard HTML error page.
var ErrorPage = template.Must(template.New("ErrorPage").Parse(`<!DOCTYPE HTML>
<html>
<head>
	<meta http-equiv="X-UA-Compatible" content="IE=edge,chrome=1" />
	<meta charset="utf8" />
	<title>Error</title>
	<style type="text/css">
		body {
			background-color: #{{.BackgroundColor}};
			color: #{{.ForegroundColor}};
		}
	</style>
</head>
	<body>
		<h1>HTTP Error {{.Code}}</h1>
		<p>{{.Message}}</p>
		<hr/>
		{{if .RequestID}}<p> Request ID: {{.RequestID}} </p>
		<hr/>{{end}}
		<pre>{{.Logs}}</pre>
	</body>
</html>
`))

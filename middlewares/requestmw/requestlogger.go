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
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/alien-bunny/hutch/lib/middleware"
	"github.com/alien-bunny/hutch/lib/util"
	"github.com/fatih/color"
	kitlog "github.com/go-kit/kit/log"
)

const MiddlewareDependencyRequestlogger = "*requestmw.RequestLoggerMiddleware"

var _ middleware.Middleware = &RequestLoggerMiddleware{}

// RequestLoggerMiddleware writes an access log line for every request.
type RequestLoggerMiddleware struct {
	logger kitlog.Logger
	middleware.NoDependencies
}

func NewRequestLoggerMiddleware(logger kitlog.Logger) *RequestLoggerMiddleware {
	return &RequestLoggerMiddleware{
		logger: logger,
	}
}

func (rl *RequestLoggerMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		url := scheme + "://" + r.Host + r.URL.Path

		l := rl.logger
		if requestid := GetRequestID(r); requestid != "" {
			l = kitlog.With(l, "requestid", colored{requestid, reqidColor})
		}

		rw := &statusRecorder{
			ResponseWriterWrapper: util.ResponseWriterWrapper{ResponseWriter: w},
			code:                  http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		l.Log(
			"httpmethod", colored{r.Method, methodColor},
			"httpreq", colored{url, pathColor},
			"httpcode", colored{strconv.Itoa(rw.code), statusColor(rw.code)},
			"start", colored{started.Format("2006/01/02 15:04:05"), startColor},
			"duration", colored{formatDuration(time.Since(started)), timeColor},
		)
	})
}

var (
	statusColors = map[int]*color.Color{
		1: color.New(color.FgBlack, color.BgWhite),
		2: color.New(color.FgWhite, color.BgGreen),
		3: color.New(color.FgWhite, color.BgBlue),
		4: color.New(color.FgWhite, color.BgYellow),
		5: color.New(color.FgWhite, color.BgRed),
	}
	methodColor = color.New(color.FgCyan)
	pathColor   = color.New(color.FgBlue)
	reqidColor  = color.New(color.FgRed)
	startColor  = color.New(color.Faint)
	timeColor   = color.New(color.Bold)
)

// colored makes a log value render with a color on the dev logger. The prod
// logger ignores the Format method and logs the raw value.
type colored struct {
	value string
	color *color.Color
}

func (c colored) String() string {
	return c.value
}

func (c colored) Format(w io.Writer) {
	if c.color == nil {
		io.WriteString(w, c.value)
		return
	}

	c.color.Fprint(w, c.value)
}

func statusColor(code int) *color.Color {
	return statusColors[code/100]
}

func formatDuration(d time.Duration) string {
	ns := d.Nanoseconds()
	switch {
	case ns >= int64(time.Second):
		return fmt.Sprintf("%.2fs", d.Seconds())
	case ns >= int64(time.Millisecond):
		return fmt.Sprintf("%.2fms", float64(ns)/float64(time.Millisecond))
	case ns >= int64(time.Microsecond):
		return fmt.Sprintf("%.2fµs", float64(ns)/float64(time.Microsecond))
	}

	return fmt.Sprintf("%dns", ns)
}

var _ http.ResponseWriter = &statusRecorder{}
var _ http.Hijacker = &statusRecorder{}
var _ http.Flusher = &statusRecorder{}
var _ http.Pusher = &statusRecorder{}

type statusRecorder struct {
	util.ResponseWriterWrapper
	code int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.code = code
	rw.ResponseWriterWrapper.WriteHeader(code)
}

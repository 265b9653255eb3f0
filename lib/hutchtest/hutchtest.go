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

// Package hutchtest contains helpers for integration testing servers and middlewares.
package hutchtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alien-bunny/hutch"
	"github.com/alien-bunny/hutch/lib/config"
	"github.com/alien-bunny/hutch/lib/db"
	"github.com/alien-bunny/hutch/lib/log"
	"github.com/alien-bunny/hutch/lib/middleware"
	"github.com/alien-bunny/hutch/lib/server"
	"github.com/alien-bunny/hutch/middlewares/dbmw"
	. "github.com/onsi/gomega"
)

var LoggerWriter = io.Discard

func init() {
	if os.Getenv("VERBOSE") == "1" {
		LoggerWriter = os.Stdout
	}
}

// SetupFunc configures the test server before it starts serving requests.
type SetupFunc func(conf *config.Store, s *server.Server) error

func GetLogger() log.Logger {
	return log.NewDevLogger(LoggerWriter)
}

// GetConfig returns a config store preloaded with test-friendly server settings.
func GetConfig(logger log.Logger) *config.Store {
	conf := config.NewStore(logger)
	conf.RegisterSchema("hutch", reflect.TypeOf(hutch.Config{}))
	conf.RegisterSchema("database", reflect.TypeOf(dbmw.DBConfig{}))

	mp := config.NewMemoryConfigProvider()
	mp.Save("hutch", serverConfig())
	mp.Save("database", dbConfig())
	conf.AddProviders(mp)

	return conf
}

// MockDBMiddleware injects a database connection into every request.
//
// Put it on the stack after the db middleware, so handlers that declare the db
// dependency get the mock connection instead of a real one.
type MockDBMiddleware struct {
	Conn db.DB
	middleware.NoDependencies
}

func NewMockDBMiddleware(conn db.DB) *MockDBMiddleware {
	return &MockDBMiddleware{Conn: conn}
}

func (m *MockDBMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = dbmw.SetConnection(r, m.Conn)
		next.ServeHTTP(w, r)
	})
}

// NewSQLMock creates a sqlmock connection for MockDBMiddleware.
func NewSQLMock() (*MockDBMiddleware, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	Expect(err).NotTo(HaveOccurred())
	return NewMockDBMiddleware(conn), mock
}

// TestMiddleware sends a GET / request through the stack into the handler.
func TestMiddleware(stack *middleware.Stack, handler http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r, reqerr := NewRequest("GET", "/", nil)
	Expect(reqerr).NotTo(HaveOccurred())

	stack.Wrap(handler).ServeHTTP(w, r)

	return w
}

func NewRequest(method, url string, body io.Reader) (*http.Request, error) {
	r, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}

	r.Header.Set("Host", "test")
	r.Host = "test"

	return r, nil
}

func serverConfig() hutch.Config {
	c := hutch.Config{
		Root: false,
		Gzip: false,
	}

	c.Directories.Assets = "-"

	c.DB.MaxIdleConn = 1
	c.DB.MaxOpenConn = 1
	c.DB.ConnectionMaxLifetime = 120

	c.Log.Access = true
	c.Log.DisplayErrors = true

	return c
}

func dbConfig() dbmw.DBConfig {
	return dbmw.DBConfig{
		ConnectionString: os.Getenv("HUTCH_TEST_DB"),
	}
}

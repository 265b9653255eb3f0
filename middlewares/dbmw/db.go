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

package dbmw

import (
	"database/sql"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/alien-bunny/hutch/lib/config"
	"github.com/alien-bunny/hutch/lib/db"
	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/middleware"
	"github.com/alien-bunny/hutch/lib/util"
)

const (
	MiddlewareDependencyDB = "*dbmw.Middleware"

	dbConnectionKey = "hutchdb"
)

// GetConnection returns DB from the request context. It returns nil when no
// connection middleware ran for the request.
func GetConnection(r *http.Request) db.DB {
	conn, _ := r.Context().Value(dbConnectionKey).(db.DB)
	return conn
}

// SetConnection places a database connection in the request context.
//
// Test helpers use this to inject mock connections below the middleware.
func SetConnection(r *http.Request, conn db.DB) *http.Request {
	return util.SetContext(r, dbConnectionKey, conn)
}

type DBConfig struct {
	ConnectionString string
}

var _ middleware.Middleware = &Middleware{}
var _ config.ConfigSchemaProvider = &Middleware{}

// Middleware lazily opens a shared database connection and puts it in the
// request context.
//
// The connection string comes from the "database" config key. Connections are
// pooled per connection string, so a config change picks up a fresh pool
// without restarting.
type Middleware struct {
	MaxIdleConnections    int
	MaxOpenConnections    int
	ConnectionMaxLifetime time.Duration

	mtx   sync.Mutex
	pools map[string]*sql.DB
	conf  *config.Store

	middleware.NoDependencies
}

func NewMiddleware(conf *config.Store) *Middleware {
	return &Middleware{
		pools: make(map[string]*sql.DB),
		conf:  conf,
	}
}

func (m *Middleware) ConfigSchema() map[string]reflect.Type {
	return map[string]reflect.Type{
		"database": reflect.TypeOf(DBConfig{}),
	}
}

func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if connStr := m.connectionString(); connStr != "" {
			r = SetConnection(r, m.pool(connStr))
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) connectionString() string {
	confInterface, err := m.conf.Get("database")
	if err != nil {
		errors.Fail(http.StatusInternalServerError, err)
	}

	if confInterface == nil {
		return ""
	}

	return confInterface.(DBConfig).ConnectionString
}

func (m *Middleware) pool(connStr string) *sql.DB {
	m.mtx.Lock()
	// Dialing below might panic, but this lock must be unlocked, else the
	// whole server will freeze up.
	defer m.mtx.Unlock()

	if conn, ok := m.pools[connStr]; ok {
		return conn
	}

	if m.pools == nil {
		m.pools = make(map[string]*sql.DB)
	}

	conn := db.RetryDBConn(connStr, 10)
	conn.SetMaxIdleConns(m.MaxIdleConnections)
	conn.SetMaxOpenConns(m.MaxOpenConnections)
	conn.SetConnMaxLifetime(m.ConnectionMaxLifetime)
	m.pools[connStr] = conn

	return conn
}

// Close shuts down every pool. The middleware keeps working, reconnecting on
// the next request.
func (m *Middleware) Close() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for _, conn := range m.pools {
		conn.Close()
	}

	m.pools = make(map[string]*sql.DB)
}

func (m *Middleware) Connections() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return len(m.pools)
}

var _ middleware.Middleware = &TransactionMiddleware{}

// TransactionMiddleware turns the DB connection in the context into a
// transaction.
//
// The transaction gets committed after the handler returns, or rolled back
// when the handler panics.
type TransactionMiddleware struct {
}

func Begin() *TransactionMiddleware {
	return &TransactionMiddleware{}
}

func (t *TransactionMiddleware) Dependencies() []string {
	return []string{MiddlewareDependencyDB}
}

func (t *TransactionMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tx *sql.Tx

		if dbconn, ok := GetConnection(r).(*sql.DB); ok {
			var err error
			tx, err = dbconn.Begin()
			if err != nil {
				errors.Fail(http.StatusInternalServerError, err)
			}
			defer tx.Rollback()
			r = SetConnection(r, tx)
		}

		next.ServeHTTP(w, r)

		if tx != nil {
			if cerr := tx.Commit(); cerr != nil && cerr != sql.ErrTxDone {
				errors.Fail(http.StatusInternalServerError, cerr)
			}
		}
	})
}

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

// Package db contains the thin plumbing between the kit and database/sql.
//
// The kit does not own SQL execution. Resource delegates run their queries
// through the DB interface, which is satisfied by both *sql.DB and *sql.Tx,
// so the transaction middleware can swap one for the other per request.
package db

import (
	"database/sql"
	"net"
	"time"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/lib/pq"
)

// DB is an abstraction over *sql.DB and *sql.Tx.
type DB interface {
	Exec(string, ...interface{}) (sql.Result, error)
	Query(string, ...interface{}) (*sql.Rows, error)
	QueryRow(string, ...interface{}) *sql.Row
	Prepare(string) (*sql.Stmt, error)
}

func ConnectToDB(connectString string) (*sql.DB, error) {
	return sql.Open("postgres", connectString)
}

// RetryDBConn connects to the database, retrying dial errors once per second.
func RetryDBConn(connectString string, tries uint) *sql.DB {
	for {
		conn, err := ConnectToDB(connectString)
		if err == nil {
			return conn
		}

		operr, ok := err.(*net.OpError)
		if !ok || operr.Op != "dial" || tries == 0 {
			panic(err)
		}

		tries--
		time.Sleep(time.Second)
	}
}

// TableExists checks if a table is present in the connected schema.
func TableExists(conn DB, table string) bool {
	var found bool
	err := conn.QueryRow("SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table).Scan(&found)

	return err == nil && found
}

// ConvertDBError converts an error with conv if that error is *pq.Error.
//
// Useful when processing database errors (e.g. constraint violations), so the user can get a nice error message.
func ConvertDBError(err error, conv func(*pq.Error) errors.Error) error {
	if err == nil {
		return nil
	}

	if perr, ok := err.(*pq.Error); ok {
		return conv(perr)
	}

	return err
}

// IsConstraintViolation tells if err is a Postgres integrity constraint violation.
//
// Class 23 covers unique, foreign key, not null and check violations.
func IsConstraintViolation(err error) bool {
	perr, ok := err.(*pq.Error)

	return ok && perr.Code.Class() == "23"
}

// ConstraintErrorConverter converts a constraint violation error into a user-friendly message.
func ConstraintErrorConverter(msgMap map[string]string) func(*pq.Error) errors.Error {
	return func(err *pq.Error) errors.Error {
		if msg, ok := msgMap[err.Constraint]; ok {
			return errors.Wrap(err, msg)
		}

		return errors.NewError(err.Message, err.Detail)
	}
}

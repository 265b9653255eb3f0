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

package db_test

import (
	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alien-bunny/hutch/lib/db"
	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/lib/pq"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("DB", func() {
	Describe("Checking whether a table exists", func() {
		var (
			conn db.DB
			mock sqlmock.Sqlmock
		)

		BeforeEach(func() {
			var err error
			conn, mock, err = sqlmock.New()
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(mock.ExpectationsWereMet()).NotTo(HaveOccurred())
		})

		It("should report an existing table", func() {
			mock.ExpectQuery("SELECT EXISTS").
				WithArgs("test").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			Expect(db.TableExists(conn, "test")).To(BeTrue())
		})

		It("should report a missing table", func() {
			mock.ExpectQuery("SELECT EXISTS").
				WithArgs("missing").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			Expect(db.TableExists(conn, "missing")).To(BeFalse())
		})
	})

	Describe("Error converter", func() {
		It("should return nil for nil", func() {
			Expect(db.ConvertDBError(nil, nil)).To(BeNil())
		})

		It("should return the error when it is not a db error", func() {
			err := errors.New("asdf")
			Expect(db.ConvertDBError(err, nil)).To(Equal(err))
		})

		It("should convert a constraint violation into a user message", func() {
			perr := &pq.Error{
				Code:       "23505",
				Message:    "duplicate key value violates unique constraint",
				Constraint: "test_name_key",
			}

			Expect(db.IsConstraintViolation(perr)).To(BeTrue())

			converted := db.ConvertDBError(perr, db.ConstraintErrorConverter(map[string]string{
				"test_name_key": "this name is taken",
			}))
			Expect(converted.(errors.Error).UserError()).To(Equal("this name is taken"))
		})

		It("should fall back to the error detail for unknown constraints", func() {
			perr := &pq.Error{
				Code:    "23503",
				Message: "insert violates foreign key constraint",
				Detail:  "the referenced row does not exist",
			}

			converted := db.ConvertDBError(perr, db.ConstraintErrorConverter(nil))
			Expect(converted.(errors.Error).UserError()).To(Equal("the referenced row does not exist"))
		})

		It("should not flag other errors as constraint violations", func() {
			Expect(db.IsConstraintViolation(errors.New("asdf"))).To(BeFalse())
			Expect(db.IsConstraintViolation(&pq.Error{Code: "42P07"})).To(BeFalse())
		})
	})
})

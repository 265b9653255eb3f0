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

package resource_test

import (
	"database/sql"
	"encoding/json"
	"net/http"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
)

type testEnvelope struct {
	Data   testResource           `json:"data"`
	Meta   map[string]interface{} `json:"meta"`
	Errors []map[string]interface{} `json:"errors"`
}

type testListEnvelope struct {
	Data []testResource         `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}

var mock sqlmock.Sqlmock

var _ = Describe("Resource", func() {
	BeforeEach(func() {
		conn, m, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		delegate.conn = conn
		mock = m
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).NotTo(HaveOccurred())
	})

	It("should list an empty endpoint", func() {
		mock.ExpectQuery("SELECT id, name, count FROM tests").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "count"}))

		client := clientFactory()
		client.Request("GET", "/api/tests", nil, nil, func(resp *http.Response) {
			list := &testListEnvelope{}
			client.AssertJSON(resp, list, PointTo(MatchAllFields(Fields{
				"Data": BeEmpty(),
				"Meta": HaveKeyWithValue("has_next_page", false),
			})))
		}, http.StatusOK)
	})

	It("should create a resource", func() {
		mock.ExpectQuery("INSERT INTO tests").
			WithArgs("asdf", 5).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		client := clientFactory()
		body := client.DataBuffer(map[string]interface{}{"name": "asdf", "count": 5})
		client.Request("POST", "/api/tests", body, nil, func(resp *http.Response) {
			Expect(resp.Header.Get("Location")).To(Equal("/api/tests/1"))

			env := &testEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(env)).To(BeNil())
			Expect(env.Data.ID).To(Equal(int64(1)))
			Expect(env.Data.Name).To(Equal("asdf"))
			Expect(env.Data.Touched).To(BeTrue())
		}, http.StatusCreated)
	})

	It("should reject a client-supplied id on create", func() {
		client := clientFactory()
		body := client.DataBuffer(map[string]interface{}{"id": 3, "name": "asdf"})
		client.Request("POST", "/api/tests", body, nil, func(resp *http.Response) {
			env := &testEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(env)).To(BeNil())
			Expect(env.Errors).To(HaveLen(1))
			Expect(env.Errors[0]["code"]).To(Equal("invalid_id.forbidden"))
		}, http.StatusForbidden)
	})

	It("should reject an invalid resource", func() {
		client := clientFactory()
		body := client.DataBuffer(map[string]interface{}{"count": 5})
		client.Request("POST", "/api/tests", body, nil, func(resp *http.Response) {
			env := &testEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(env)).To(BeNil())
			Expect(env.Errors).NotTo(BeEmpty())
			Expect(env.Errors[0]["code"]).To(Equal("invalid_data"))
		}, http.StatusUnprocessableEntity)
	})

	It("should reject a body without the data envelope", func() {
		client := clientFactory()
		body := client.JSONBuffer(map[string]interface{}{"name": "asdf"})
		client.Request("POST", "/api/tests", body, nil, nil, http.StatusBadRequest)
	})

	It("should retrieve a resource", func() {
		mock.ExpectQuery("SELECT id, name, count FROM tests WHERE id").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "count"}).AddRow(1, "asdf", 5))

		client := clientFactory()
		client.Request("GET", "/api/tests/1", nil, nil, func(resp *http.Response) {
			env := &testEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(env)).To(BeNil())
			Expect(env.Data.Name).To(Equal("asdf"))
			Expect(env.Data.Count).To(Equal(5))
		}, http.StatusOK)
	})

	It("should 404 on a missing resource", func() {
		mock.ExpectQuery("SELECT id, name, count FROM tests WHERE id").
			WithArgs(42).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "count"}))

		client := clientFactory()
		client.Request("GET", "/api/tests/42", nil, nil, nil, http.StatusNotFound)
	})

	It("should 404 on an unparseable id", func() {
		client := clientFactory()
		client.Request("GET", "/api/tests/notanumber", nil, nil, nil, http.StatusNotFound)
	})

	It("should update a resource", func() {
		mock.ExpectQuery("SELECT id, name, count FROM tests WHERE id").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "count"}).AddRow(1, "asdf", 5))
		mock.ExpectExec("UPDATE tests SET").
			WithArgs(int64(1), "zxcvbn", 6).
			WillReturnResult(sqlmock.NewResult(0, 1))

		client := clientFactory()
		body := client.DataBuffer(map[string]interface{}{"id": 1, "name": "zxcvbn", "count": 6})
		client.Request("PUT", "/api/tests/1", body, nil, func(resp *http.Response) {
			env := &testEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(env)).To(BeNil())
			Expect(env.Data.Name).To(Equal("zxcvbn"))
			Expect(env.Data.Touched).To(BeTrue())
		}, http.StatusOK)
	})

	It("should reject an update without an id", func() {
		client := clientFactory()
		body := client.DataBuffer(map[string]interface{}{"name": "zxcvbn"})
		client.Request("PUT", "/api/tests/1", body, nil, func(resp *http.Response) {
			env := &testEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(env)).To(BeNil())
			Expect(env.Errors[0]["code"]).To(Equal("invalid_id.missing"))
		}, http.StatusUnprocessableEntity)
	})

	It("should reject an update with a mismatching id", func() {
		client := clientFactory()
		body := client.DataBuffer(map[string]interface{}{"id": 2, "name": "zxcvbn"})
		client.Request("PUT", "/api/tests/1", body, nil, func(resp *http.Response) {
			env := &testEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(env)).To(BeNil())
			Expect(env.Errors[0]["code"]).To(Equal("invalid_id.mismatch"))
		}, http.StatusConflict)
	})

	It("should patch a resource partially", func() {
		mock.ExpectQuery("SELECT id, name, count FROM tests WHERE id").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "count"}).AddRow(1, "asdf", 5))
		mock.ExpectExec("UPDATE tests SET").
			WithArgs(int64(1), "asdf", 7).
			WillReturnResult(sqlmock.NewResult(0, 1))

		client := clientFactory()
		body := client.DataBuffer(map[string]interface{}{"count": 7})
		client.Request("PATCH", "/api/tests/1", body, nil, func(resp *http.Response) {
			env := &testEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(env)).To(BeNil())
			Expect(env.Data.Name).To(Equal("asdf"))
			Expect(env.Data.Count).To(Equal(7))
		}, http.StatusOK)
	})

	It("should delete a resource", func() {
		mock.ExpectQuery("SELECT id, name, count FROM tests WHERE id").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "count"}).AddRow(1, "asdf", 5))
		mock.ExpectExec("DELETE FROM tests WHERE id").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		client := clientFactory()
		client.Request("DELETE", "/api/tests/1", nil, nil, nil, http.StatusNoContent)
	})

	It("should filter, sort and limit the listing", func() {
		mock.ExpectQuery("SELECT id, name, count FROM tests WHERE .*name.* ORDER BY count DESC LIMIT 3").
			WithArgs("asdf").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "count"}).
				AddRow(1, "asdf", 9).
				AddRow(2, "asdf", 8).
				AddRow(3, "asdf", 7))

		client := clientFactory()
		client.Request("GET", "/api/tests?name=asdf&sort=-count&limit=2", nil, nil, func(resp *http.Response) {
			list := &testListEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(list)).To(BeNil())
			Expect(list.Data).To(HaveLen(2))
			Expect(list.Meta).To(HaveKeyWithValue("has_next_page", true))
		}, http.StatusOK)
	})

	It("should reject an unknown sort field", func() {
		client := clientFactory()
		client.Request("GET", "/api/tests?sort=nope", nil, nil, func(resp *http.Response) {
			env := &testEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(env)).To(BeNil())
			Expect(env.Errors[0]["code"]).To(Equal("invalid_sort"))
		}, http.StatusBadRequest)
	})
})

type accountEnvelope struct {
	Data accountResource `json:"data"`
}

var accountMock sqlmock.Sqlmock

func asOwner(owner string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("X-Owner", owner)
	}
}

var _ = Describe("Resource transactions", func() {
	BeforeEach(func() {
		conn, m, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		accountConnMW.Conn = conn
		accountMock = m
	})

	AfterEach(func() {
		Expect(accountMock.ExpectationsWereMet()).NotTo(HaveOccurred())
	})

	It("should create inside a request transaction", func() {
		accountMock.ExpectBegin()
		accountMock.ExpectQuery("INSERT INTO accounts").
			WithArgs("fred").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		accountMock.ExpectCommit()

		client := accountClientFactory()
		body := client.DataBuffer(map[string]interface{}{"owner": "fred"})
		client.Request("POST", "/api/accounts", body, nil, func(resp *http.Response) {
			Expect(resp.Header.Get("Location")).To(Equal("/api/accounts/1"))
		}, http.StatusCreated)
	})

	It("should roll back a failed write", func() {
		accountMock.ExpectBegin()
		accountMock.ExpectQuery("INSERT INTO accounts").
			WithArgs("fred").
			WillReturnError(sql.ErrConnDone)
		accountMock.ExpectRollback()

		client := accountClientFactory()
		body := client.DataBuffer(map[string]interface{}{"owner": "fred"})
		client.Request("POST", "/api/accounts", body, nil, nil, http.StatusInternalServerError)
	})

	It("should delete inside a request transaction", func() {
		accountMock.ExpectBegin()
		accountMock.ExpectQuery("SELECT id, owner FROM accounts WHERE").
			WithArgs(1, "fred").
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner"}).AddRow(1, "fred"))
		accountMock.ExpectExec("DELETE FROM accounts WHERE id").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		accountMock.ExpectCommit()

		client := accountClientFactory()
		client.Request("DELETE", "/api/accounts/1", nil, asOwner("fred"), nil, http.StatusNoContent)
	})
})

var _ = Describe("Resource authorization", func() {
	BeforeEach(func() {
		conn, m, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		accountConnMW.Conn = conn
		accountMock = m
	})

	AfterEach(func() {
		Expect(accountMock.ExpectationsWereMet()).NotTo(HaveOccurred())
	})

	It("should retrieve a row visible to the requester", func() {
		accountMock.ExpectQuery("SELECT id, owner FROM accounts WHERE .*owner").
			WithArgs(1, "fred").
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner"}).AddRow(1, "fred"))

		client := accountClientFactory()
		client.Request("GET", "/api/accounts/1", nil, asOwner("fred"), func(resp *http.Response) {
			env := &accountEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(env)).To(BeNil())
			Expect(env.Data.Owner).To(Equal("fred"))
		}, http.StatusOK)
	})

	It("should hide rows belonging to someone else", func() {
		accountMock.ExpectQuery("SELECT id, owner FROM accounts WHERE .*owner").
			WithArgs(1, "barney").
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner"}))

		client := accountClientFactory()
		client.Request("GET", "/api/accounts/1", nil, asOwner("barney"), nil, http.StatusNotFound)
	})

	It("should restrict deletes to visible rows", func() {
		accountMock.ExpectBegin()
		accountMock.ExpectQuery("SELECT id, owner FROM accounts WHERE .*owner").
			WithArgs(2, "barney").
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner"}))
		accountMock.ExpectRollback()

		client := accountClientFactory()
		client.Request("DELETE", "/api/accounts/2", nil, asOwner("barney"), nil, http.StatusNotFound)
	})
})

type draftEnvelope struct {
	Data draftResource `json:"data"`
}

var _ = Describe("Resource upserts", func() {
	var draftMock sqlmock.Sqlmock

	BeforeEach(func() {
		conn, m, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		drafts.conn = conn
		draftMock = m
	})

	AfterEach(func() {
		Expect(draftMock.ExpectationsWereMet()).NotTo(HaveOccurred())
	})

	It("should accept a client-supplied id", func() {
		draftMock.ExpectExec("INSERT INTO drafts").
			WithArgs(int64(3), "plan").
			WillReturnResult(sqlmock.NewResult(3, 1))

		client := draftClientFactory()
		body := client.DataBuffer(map[string]interface{}{"id": 3, "name": "plan"})
		client.Request("POST", "/api/drafts", body, nil, func(resp *http.Response) {
			Expect(resp.Header.Get("Location")).To(Equal("/api/drafts/3"))
		}, http.StatusCreated)
	})

	It("should create a missing resource on update", func() {
		draftMock.ExpectQuery("SELECT id, name FROM drafts WHERE id").
			WithArgs(9).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
		draftMock.ExpectExec("INSERT INTO drafts").
			WithArgs(int64(9), "later").
			WillReturnResult(sqlmock.NewResult(9, 1))

		client := draftClientFactory()
		body := client.DataBuffer(map[string]interface{}{"id": 9, "name": "later"})
		client.Request("PUT", "/api/drafts/9", body, nil, func(resp *http.Response) {
			env := &draftEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(env)).To(BeNil())
			Expect(env.Data.Name).To(Equal("later"))
		}, http.StatusCreated)
	})

	It("should create a missing resource on retrieve", func() {
		draftMock.ExpectQuery("SELECT id, name FROM drafts WHERE id").
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
		draftMock.ExpectExec("INSERT INTO drafts").
			WithArgs(int64(5), "").
			WillReturnResult(sqlmock.NewResult(5, 1))

		client := draftClientFactory()
		client.Request("GET", "/api/drafts/5", nil, nil, func(resp *http.Response) {
			env := &draftEnvelope{}
			client.ConsumePrefix(resp)
			Expect(json.NewDecoder(resp.Body).Decode(env)).To(BeNil())
			Expect(env.Data.ID).To(Equal(int64(5)))
		}, http.StatusCreated)
	})
})

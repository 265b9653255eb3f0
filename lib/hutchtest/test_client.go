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

package hutchtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/types"
)

// TestClientDelegate is the transport behind a TestClient. It is either a
// real HTTP client or a direct handler call.
type TestClientDelegate interface {
	Do(*http.Request) (*http.Response, error)
	NewRequest(method, target string, body io.Reader) *http.Request
}

// TestClient drives a test server with gomega-asserted requests.
type TestClient struct {
	Delegate TestClientDelegate
	// Token is sent as a bearer token on every request when set.
	Token string
	base  string
}

// Request sends a request and asserts the response status code.
//
// body may be nil. processReq can modify the request before sending,
// processResp can inspect the response; both may be nil. On an unexpected
// status code the response body is dumped to help debugging.
func (tc *TestClient) Request(method, endpoint string, body io.Reader, processReq func(*http.Request), processResp func(*http.Response), statusCode int) {
	req := tc.Delegate.NewRequest(method, tc.base+endpoint, body)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.Token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.Token)
	}
	if processReq != nil {
		processReq(req)
	}

	resp, err := tc.Delegate.Do(req)
	Expect(err).To(BeNil())
	defer resp.Body.Close()

	done := false
	defer func() {
		if !done {
			fmt.Printf("\n%s %s\n\n%s\n\n", method, endpoint, tc.ReadBody(resp, false))
		}
	}()

	Expect(statusCode).To(Equal(resp.StatusCode))
	if processResp != nil {
		processResp(resp)
	}

	done = true
}

// JSONBuffer creates an in-memory buffer of a serialized JSON value.
func (tc *TestClient) JSONBuffer(v interface{}) io.Reader {
	buf := bytes.NewBuffer(nil)
	Expect(json.NewEncoder(buf).Encode(v)).To(BeNil())
	return buf
}

// DataBuffer creates an in-memory buffer of v wrapped in a data envelope.
func (tc *TestClient) DataBuffer(v interface{}) io.Reader {
	return tc.JSONBuffer(map[string]interface{}{"data": v})
}

// AssertJSON decodes the JSON body of the response into v and matches it.
//
//	c.Request("GET", "/api/endpoint", nil, nil, func(r *http.Response) {
//		data := &dataType{}
//		c.AssertJSON(resp, data, PointTo(MatchAllFields(Fields{
//			"Fields": Not(BeZero()),
//		})))
//	}, http.StatusOK)
func (tc *TestClient) AssertJSON(resp *http.Response, v interface{}, matcher types.GomegaMatcher) {
	tc.ConsumePrefix(resp)
	Expect(json.NewDecoder(resp.Body).Decode(v)).To(BeNil())
	Expect(v).To(matcher)
}

// AssertFile asserts that the response body is equal to a file's content.
func (tc *TestClient) AssertFile(resp *http.Response, path string) {
	Expect(resp.StatusCode).To(Equal(http.StatusOK))

	body, err := io.ReadAll(resp.Body)
	Expect(err).To(BeNil())
	defer resp.Body.Close()

	file, err := os.ReadFile(path)
	Expect(err).To(BeNil())

	Expect(body).To(Equal(file))
}

// ConsumePrefix reads the JSON security prefix off the response body and
// reports whether it was there.
func (tc *TestClient) ConsumePrefix(r *http.Response) bool {
	prefix := make([]byte, 6)
	_, err := io.ReadFull(r.Body, prefix)
	Expect(err).To(BeNil())
	return string(prefix) == ")]}',\n"
}

// ReadBody reads the rest of the response body into a string.
func (tc *TestClient) ReadBody(r *http.Response, JSONPrefix bool) string {
	if JSONPrefix {
		Expect(tc.ConsumePrefix(r)).To(BeTrue())
	}

	b, err := io.ReadAll(r.Body)
	Expect(err).To(BeNil())

	return string(b)
}

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

package auth_test

import (
	"net/http"

	"github.com/alien-bunny/hutch/lib/auth"
	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func request(headers map[string]string, url string) *http.Request {
	r, err := http.NewRequest("GET", url, nil)
	Expect(err).NotTo(HaveOccurred())
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

var _ = Describe("Credentials", func() {
	It("should travel with the request", func() {
		r := request(nil, "/")
		Expect(auth.GetCredentials(r)).To(BeNil())

		r = auth.SetCredentials(r, "user")
		Expect(auth.GetCredentials(r)).To(Equal("user"))
	})
})

var _ = Describe("Header authentication", func() {
	a := &auth.HeaderAuthenticator{
		Resolve: func(r *http.Request, token string) (interface{}, error) {
			if token == "valid" {
				return "user", nil
			}
			return nil, errors.NewAPIError(http.StatusUnauthorized, errors.C("invalid_token"))
		},
	}

	It("should leave requests without a token anonymous", func() {
		creds, err := a.Authenticate(request(nil, "/"))
		Expect(err).NotTo(HaveOccurred())
		Expect(creds).To(BeNil())
	})

	It("should resolve a bearer token", func() {
		creds, err := a.Authenticate(request(map[string]string{"Authorization": "Bearer valid"}, "/"))
		Expect(err).NotTo(HaveOccurred())
		Expect(creds).To(Equal("user"))
	})

	It("should reject a malformed header", func() {
		_, err := a.Authenticate(request(map[string]string{"Authorization": "garbage"}, "/"))
		Expect(err).To(HaveOccurred())
	})

	It("should reject an unexpected scheme", func() {
		_, err := a.Authenticate(request(map[string]string{"Authorization": "Basic dXNlcjpwdw=="}, "/"))
		Expect(err).To(HaveOccurred())

		apierr, ok := errors.ConvertAPIError(err)
		Expect(ok).To(BeTrue())
		Expect(apierr.Items[0].Code).To(Equal("invalid_authorization.scheme"))
	})

	It("should fall back to the token argument when configured", func() {
		withArg := &auth.HeaderAuthenticator{
			TokenArg: "token",
			Resolve:  a.Resolve,
		}

		creds, err := withArg.Authenticate(request(nil, "/?token=valid"))
		Expect(err).NotTo(HaveOccurred())
		Expect(creds).To(Equal("user"))
	})
})

var _ = Describe("JWT authentication", func() {
	key := []byte("0123456789abcdef0123456789abcdef")
	a := auth.NewJWTAuthenticator(func(t *jwt.Token) (interface{}, error) {
		return key, nil
	})

	sign := func(claims jwt.MapClaims, key []byte) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		Expect(err).NotTo(HaveOccurred())
		return token
	}

	It("should expose the claims of a valid token", func() {
		token := sign(jwt.MapClaims{"sub": "user"}, key)
		creds, err := a.Authenticate(request(map[string]string{"Authorization": "Bearer " + token}, "/"))
		Expect(err).NotTo(HaveOccurred())

		claims, ok := creds.(jwt.MapClaims)
		Expect(ok).To(BeTrue())
		Expect(claims["sub"]).To(Equal("user"))
	})

	It("should reject a token with a bad signature", func() {
		token := sign(jwt.MapClaims{"sub": "user"}, []byte("another key another key another "))
		_, err := a.Authenticate(request(map[string]string{"Authorization": "Bearer " + token}, "/"))
		Expect(err).To(HaveOccurred())

		apierr, ok := errors.ConvertAPIError(err)
		Expect(ok).To(BeTrue())
		Expect(apierr.Status).To(Equal(http.StatusUnauthorized))
		Expect(apierr.Items[0].Code).To(Equal("invalid_token"))
	})
})

var _ = Describe("Authorizers", func() {
	It("should allow everything by default", func() {
		a := auth.NoOpAuthorizer{}
		r := request(nil, "/")
		Expect(a.AuthorizeRequest(r)).To(BeNil())
		Expect(a.AuthorizeCreate(r, nil)).To(BeNil())
	})

	It("should reject anonymous requests when credentials are demanded", func() {
		a := auth.HasAnyCredentialsAuthorizer{}
		err := a.AuthorizeRequest(request(nil, "/"))
		Expect(err).To(HaveOccurred())

		apierr, ok := errors.ConvertAPIError(err)
		Expect(ok).To(BeTrue())
		Expect(apierr.Status).To(Equal(http.StatusUnauthorized))

		Expect(a.AuthorizeRequest(auth.SetCredentials(request(nil, "/"), "user"))).To(BeNil())
	})

	It("should route every write through the modify decision", func() {
		var actions []string
		a := &auth.ModifyAuthorizer{
			Modify: func(r *http.Request, item interface{}, action string) error {
				actions = append(actions, action)
				return auth.Forbidden()
			},
		}

		r := auth.SetCredentials(request(nil, "/"), "user")
		Expect(a.AuthorizeCreate(r, nil)).To(HaveOccurred())
		Expect(a.AuthorizeUpdate(r, nil)).To(HaveOccurred())
		Expect(a.AuthorizeDelete(r, nil)).To(HaveOccurred())
		Expect(actions).To(Equal([]string{"create", "update", "delete"}))
	})

	It("should reject writes with a forbidden error", func() {
		apierr, ok := errors.ConvertAPIError(auth.Forbidden())
		Expect(ok).To(BeTrue())
		Expect(apierr.Status).To(Equal(http.StatusForbidden))
		Expect(apierr.Items[0].Code).To(Equal("forbidden"))
	})
})

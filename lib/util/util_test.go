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

package util_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"net/http"

	"github.com/alien-bunny/hutch/lib/util"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Util", func() {
	DescribeTable("Placeholder intervals",
		func(start, end int, placeholders string, expected bool) {
			result := util.GeneratePlaceholders(uint(start), uint(end))
			if expected {
				Expect(placeholders).To(Equal(result))
			} else {
				Expect(placeholders).NotTo(Equal(result))
			}
		},
		Entry("1->1", 1, 1, "", true),
		Entry("1->2", 1, 2, "$1", true),
		Entry("1->5", 1, 5, "$1, $2, $3, $4", true),
		Entry("2->5", 2, 5, "$2, $3, $4", true),
		Entry("2->3", 2, 3, "$2, $3", false),
	)

	Describe("Random values", func() {
		It("should generate a string of the requested length", func() {
			Expect(util.RandomString(16)).To(HaveLen(16))
		})

		It("should generate a hex encoded secret", func() {
			Expect(util.RandomSecret(32)).To(HaveLen(64))
			Expect(util.RandomSecret(32)).To(MatchRegexp("^[0-9a-f]+$"))
		})
	})

	Describe("A private key", func() {
		It("should survive a marshal round trip", func() {
			key, err := rsa.GenerateKey(rand.Reader, 1024)
			Expect(err).NotTo(HaveOccurred())

			marshaled := util.MarshalPrivateKey(key)
			Expect(marshaled).NotTo(BeEmpty())

			unmarshaled := util.UnmarshalPrivateKey(marshaled)
			Expect(unmarshaled).NotTo(BeNil())
			Expect(unmarshaled.Equal(key)).To(BeTrue())
		})

		It("should not unmarshal garbage", func() {
			Expect(util.UnmarshalPrivateKey([]byte("garbage"))).To(BeNil())
		})
	})

	Describe("A generated certificate", func() {
		It("should be a valid key pair", func() {
			cert, key := util.GenerateCertificate("example.com", "ACME Co")
			_, err := tls.X509KeyPair([]byte(cert), []byte(key))
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Building a link", func() {
		It("should keep the request path when no path is given", func() {
			r, err := http.NewRequest("GET", "http://example.com/a/b", nil)
			Expect(err).NotTo(HaveOccurred())

			u := util.BuildLink(r, "", map[string]string{"page": "2"})
			Expect(u.Path).To(Equal("/a/b"))
			Expect(u.Query().Get("page")).To(Equal("2"))
		})

		It("should override the path when one is given", func() {
			r, err := http.NewRequest("GET", "http://example.com/a/b", nil)
			Expect(err).NotTo(HaveOccurred())

			u := util.BuildLink(r, "/c", nil)
			Expect(u.Path).To(Equal("/c"))
		})
	})
})

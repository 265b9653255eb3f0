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

package related_test

import (
	"net/http"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/related"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type author struct {
	ID   float64
	Name string
}

var authors = map[float64]*author{
	1: {ID: 1, Name: "asdf"},
	2: {ID: 2, Name: "qwer"},
}

func loadAuthor(r *http.Request, id interface{}) (interface{}, error) {
	fid, ok := id.(float64)
	if !ok {
		return nil, errors.New("bad id")
	}

	a, found := authors[fid]
	if !found {
		return nil, nil
	}

	return a, nil
}

var _ = Describe("Related resolver", func() {
	rel := related.New(map[string]related.Loader{
		"author":  loadAuthor,
		"editors": loadAuthor,
	})

	r, _ := http.NewRequest("POST", "/", nil)

	It("should replace a reference with the loaded item", func() {
		data := map[string]interface{}{
			"title":  "a post",
			"author": map[string]interface{}{"id": float64(1)},
		}

		Expect(rel.Resolve(r, data)).To(BeNil())
		Expect(data["author"]).To(Equal(authors[1]))
		Expect(data["title"]).To(Equal("a post"))
	})

	It("should resolve reference lists element by element", func() {
		data := map[string]interface{}{
			"editors": []interface{}{
				map[string]interface{}{"id": float64(1)},
				map[string]interface{}{"id": float64(2)},
			},
		}

		Expect(rel.Resolve(r, data)).To(BeNil())
		Expect(data["editors"]).To(Equal([]interface{}{authors[1], authors[2]}))
	})

	It("should leave absent and null references alone", func() {
		data := map[string]interface{}{
			"author": nil,
		}

		Expect(rel.Resolve(r, data)).To(BeNil())
		Expect(data["author"]).To(BeNil())
	})

	expectItemCode := func(err error, code string) {
		Expect(err).To(HaveOccurred())
		apierr, ok := errors.ConvertAPIError(err)
		Expect(ok).To(BeTrue())
		Expect(apierr.Status).To(Equal(http.StatusUnprocessableEntity))
		Expect(apierr.Items[0].Code).To(Equal(code))
		Expect(apierr.Items[0].Source.Pointer).To(Equal("/data/author"))
	}

	It("should reject a reference that is not an object", func() {
		err := rel.Resolve(r, map[string]interface{}{"author": "asdf"})
		expectItemCode(err, "invalid_related")
	})

	It("should reject a reference without an id", func() {
		err := rel.Resolve(r, map[string]interface{}{
			"author": map[string]interface{}{"name": "asdf"},
		})
		expectItemCode(err, "invalid_related.missing_id")
	})

	It("should reject a dangling reference", func() {
		err := rel.Resolve(r, map[string]interface{}{
			"author": map[string]interface{}{"id": float64(42)},
		})
		expectItemCode(err, "invalid_related.not_found")
	})
})

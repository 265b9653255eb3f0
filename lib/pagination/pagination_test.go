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

package pagination_test

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/pagination"
	"github.com/alien-bunny/hutch/lib/query"
	"github.com/alien-bunny/hutch/lib/schema"
	"github.com/alien-bunny/hutch/lib/sorting"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type testItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type testView struct {
	schema *schema.Schema
	sorter sorting.FieldSorter
}

func (v testView) Schema() *schema.Schema      { return v.schema }
func (v testView) Sorter() sorting.FieldSorter { return v.sorter }

func request(url string) *http.Request {
	r, err := http.NewRequest("GET", url, nil)
	Expect(err).NotTo(HaveOccurred())
	return r
}

// fakeFetch pretends the table holds total rows and honors the query's limit.
func fakeFetch(total int, captured **query.Select) pagination.Fetcher {
	return func(sel *query.Select) ([]interface{}, error) {
		if captured != nil {
			*captured = sel
		}

		count := total
		sql, _ := sel.Build()
		if idx := strings.Index(sql, "LIMIT "); idx >= 0 {
			rest := sql[idx+len("LIMIT "):]
			if end := strings.IndexByte(rest, ' '); end >= 0 {
				rest = rest[:end]
			}
			limit, err := strconv.Atoi(rest)
			Expect(err).NotTo(HaveOccurred())
			if limit < count {
				count = limit
			}
		}

		items := make([]interface{}, count)
		for i := range items {
			items[i] = &testItem{ID: i + 1, Name: "item"}
		}
		return items, nil
	}
}

var _ = Describe("Limit pagination", func() {
	view := testView{schema: schema.New(schema.Int("id"), schema.String("name"))}

	It("should apply the default limit and over-fetch by one", func() {
		p := pagination.NewLimit(2, 10)
		var sel *query.Select
		items, meta, err := p.Paginate(request("/tests"), view, query.NewSelect("tests", "id"), fakeFetch(5, &sel))
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(2))
		Expect(meta["has_next_page"]).To(BeTrue())

		sql, _ := sel.Build()
		Expect(sql).To(ContainSubstring("LIMIT 3"))
	})

	It("should report the last page", func() {
		p := pagination.NewLimit(10, 10)
		items, meta, err := p.Paginate(request("/tests"), view, query.NewSelect("tests", "id"), fakeFetch(5, nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(5))
		Expect(meta["has_next_page"]).To(BeFalse())
	})

	It("should clamp the requested limit to the maximum", func() {
		p := pagination.NewLimit(2, 4)
		var sel *query.Select
		_, _, err := p.Paginate(request("/tests?limit=100"), view, query.NewSelect("tests", "id"), fakeFetch(5, &sel))
		Expect(err).NotTo(HaveOccurred())

		sql, _ := sel.Build()
		Expect(sql).To(ContainSubstring("LIMIT 5"))
	})

	It("should reject a malformed limit", func() {
		p := pagination.NewLimit(2, 4)
		_, _, err := p.Paginate(request("/tests?limit=asdf"), view, query.NewSelect("tests", "id"), fakeFetch(5, nil))
		Expect(err).To(HaveOccurred())

		apierr, ok := errors.ConvertAPIError(err)
		Expect(ok).To(BeTrue())
		Expect(apierr.Status).To(Equal(http.StatusBadRequest))
		Expect(apierr.Items[0].Code).To(Equal("invalid_limit"))
	})

	It("should panic when the default exceeds the maximum", func() {
		Expect(func() { pagination.NewLimit(100, 10) }).To(Panic())
	})
})

var _ = Describe("Offset and page pagination", func() {
	view := testView{schema: schema.New(schema.Int("id"), schema.String("name"))}

	It("should apply the offset argument", func() {
		p := pagination.NewLimitOffset(2, 10)
		var sel *query.Select
		_, _, err := p.Paginate(request("/tests?offset=4"), view, query.NewSelect("tests", "id"), fakeFetch(5, &sel))
		Expect(err).NotTo(HaveOccurred())

		sql, _ := sel.Build()
		Expect(sql).To(ContainSubstring("OFFSET 4"))
	})

	It("should translate the page argument into an offset", func() {
		p := pagination.NewPage(10)
		var sel *query.Select
		_, _, err := p.Paginate(request("/tests?page=2"), view, query.NewSelect("tests", "id"), fakeFetch(5, &sel))
		Expect(err).NotTo(HaveOccurred())

		sql, _ := sel.Build()
		Expect(sql).To(ContainSubstring("LIMIT 11"))
		Expect(sql).To(ContainSubstring("OFFSET 20"))
	})
})

var _ = Describe("Cursor pagination", func() {
	view := testView{
		schema: schema.New(schema.Int("id"), schema.String("name")),
		sorter: sorting.New("name"),
	}

	It("should encode and decode cursors", func() {
		values := []string{"asdf", "42"}
		decoded, err := pagination.DecodeCursor(pagination.EncodeCursor(values))
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(values))
	})

	It("should reject a malformed cursor", func() {
		_, err := pagination.DecodeCursor("???")
		Expect(err).To(HaveOccurred())
	})

	It("should attach a cursor to every item", func() {
		p := pagination.NewRelayCursor(2, 10)
		items, meta, err := p.Paginate(request("/tests?sort=name"), view, query.NewSelect("tests", "id", "name"), fakeFetch(5, nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(2))
		Expect(meta["cursors"]).To(HaveLen(2))
	})

	It("should complete the ordering with the id fields", func() {
		p := pagination.NewRelayCursor(2, 10)
		var sel *query.Select
		_, _, err := p.Paginate(request("/tests?sort=-name"), view, query.NewSelect("tests", "id", "name"), fakeFetch(5, &sel))
		Expect(err).NotTo(HaveOccurred())

		// The id ordering inherits the direction of the last explicit field.
		Expect(sel.Orderings()).To(ContainElement(query.Ordering{Column: "id", Asc: false}))
	})

	It("should filter rows before the cursor", func() {
		p := pagination.NewRelayCursor(2, 10)
		cursor := pagination.EncodeCursor([]string{"asdf", "3"})

		var sel *query.Select
		_, _, err := p.Paginate(request("/tests?sort=name&cursor="+cursor), view, query.NewSelect("tests", "id", "name"), fakeFetch(5, &sel))
		Expect(err).NotTo(HaveOccurred())

		sql, args := sel.Build()
		Expect(sql).To(ContainSubstring("WHERE (name > $1) OR ((name = $2) AND (id > $3))"))
		Expect(args).To(Equal([]interface{}{"asdf", "asdf", 3}))
	})

	It("should reject a cursor of the wrong length", func() {
		p := pagination.NewRelayCursor(2, 10)
		cursor := pagination.EncodeCursor([]string{"asdf"})

		_, _, err := p.Paginate(request("/tests?sort=name&cursor="+cursor), view, query.NewSelect("tests", "id", "name"), fakeFetch(5, nil))
		Expect(err).To(HaveOccurred())

		apierr, ok := errors.ConvertAPIError(err)
		Expect(ok).To(BeTrue())
		Expect(apierr.Items[0].Code).To(Equal("invalid_cursor.length"))
	})

	It("should reject a cursor with unparseable values", func() {
		p := pagination.NewRelayCursor(2, 10)
		cursor := pagination.EncodeCursor([]string{"asdf", "not-an-int"})

		_, _, err := p.Paginate(request("/tests?sort=name&cursor="+cursor), view, query.NewSelect("tests", "id", "name"), fakeFetch(5, nil))
		Expect(err).To(HaveOccurred())

		apierr, ok := errors.ConvertAPIError(err)
		Expect(ok).To(BeTrue())
		Expect(apierr.Items[0].Code).To(Equal("invalid_cursor"))
	})

	It("should provide single item cursors", func() {
		p := pagination.NewRelayCursor(2, 10)
		meta, err := p.ItemMeta(request("/tests"), view, &testItem{ID: 3, Name: "asdf"})
		Expect(err).NotTo(HaveOccurred())
		Expect(meta["cursor"]).To(Equal(pagination.EncodeCursor([]string{"3"})))
	})
})

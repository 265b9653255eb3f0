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

package render_test

import (
	"bytes"
	"crypto/rand"
	"html/template"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/alien-bunny/hutch/lib/render"
	"github.com/alien-bunny/hutch/lib/util"
)

type payload struct {
	Num int
	Tag string
}

func setup() (*render.Renderer, *httptest.ResponseRecorder, *http.Request) {
	r := render.NewRenderer()
	rr := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)

	return r, rr, req
}

func prefixed(j string) string {
	return render.JSONSecurityPrefix + j + "\n"
}

type closableReader struct {
	*bytes.Reader
	Closed bool
}

func (cr *closableReader) Close() error {
	cr.Closed = true
	return nil
}

type secretive struct {
	Secret string
}

func (s *secretive) Sanitize() {
	s.Secret = ""
}

var _ = Describe("Render", func() {
	p := payload{7, "carrot"}
	pjson := prefixed(`{"Num":7,"Tag":"carrot"}`)
	pxml := "<payload>\n\t<Num>7</Num>\n\t<Tag>carrot</Tag>\n</payload>"

	Describe("content negotiation", func() {
		Context("with multiple offers and an Accept header", func() {
			r, rr, req := setup()
			req.Header.Set("Accept", "application/json")
			r.XML(p, false).JSON(p).SetCode(http.StatusTeapot)
			r.Render(rr, req)

			It("should pick the offer matching the Accept header", func() {
				Expect(rr.Body.String()).To(Equal(pjson))
			})

			It("should write the status code that was set", func() {
				Expect(rr.Code).To(Equal(http.StatusTeapot))
			})
		})

		Context("with multiple offers and no Accept header", func() {
			r, rr, req := setup()
			r.XML(p, true).JSON(p)
			r.Render(rr, req)

			It("should fall back to the first offer", func() {
				Expect(rr.Code).To(Equal(http.StatusOK))
				Expect(rr.Body.String()).To(Equal(pxml))
			})
		})
	})

	Describe("empty responses", func() {
		Context("with no offers", func() {
			r, rr, req := setup()
			r.Render(rr, req)

			It("should respond with 204 and no body", func() {
				Expect(rr.Code).To(Equal(http.StatusNoContent))
				Expect(rr.Body.Bytes()).To(BeEmpty())
			})
		})

		Context("with no offers but a status code set", func() {
			r, rr, req := setup()
			r.SetCode(http.StatusTeapot).Render(rr, req)

			It("should respond with the set code and no body", func() {
				Expect(rr.Code).To(Equal(http.StatusTeapot))
				Expect(rr.Body.Bytes()).To(BeEmpty())
			})
		})

		Context("when already marked rendered", func() {
			r, rr, req := setup()
			r.SetRendered()
			r.Render(rr, req)

			It("should report rendered and write nothing", func() {
				Expect(r.IsRendered()).To(BeTrue())
				Expect(rr.Body.Bytes()).To(BeEmpty())
			})
		})
	})

	Describe("the data envelope", func() {
		Context("without meta", func() {
			r, rr, req := setup()
			req.Header.Set("Accept", "application/json")
			r.Data(p)
			r.Render(rr, req)

			It("should wrap the value in a data key", func() {
				Expect(rr.Code).To(Equal(http.StatusOK))
				Expect(rr.Body.String()).To(Equal(prefixed(`{"data":{"Num":7,"Tag":"carrot"}}`)))
			})
		})

		Context("with meta", func() {
			r, rr, req := setup()
			req.Header.Set("Accept", "application/json")
			r.DataMeta(p, map[string]interface{}{"has_next_page": false})
			r.Render(rr, req)

			It("should render data and meta side by side", func() {
				Expect(rr.Code).To(Equal(http.StatusOK))
				Expect(rr.Body.String()).To(Equal(prefixed(`{"data":{"Num":7,"Tag":"carrot"},"meta":{"has_next_page":false}}`)))
			})
		})
	})

	Describe("a text offer", func() {
		r, rr, req := setup()
		r.Text(p.Tag).Render(rr, req)

		It("should write the text verbatim", func() {
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(Equal(p.Tag))
		})
	})

	Describe("a binary offer", func() {
		blob := make([]byte, 4096)
		io.ReadFull(rand.Reader, blob)
		ct := "misc/blob"
		fn := "blob.bin"
		cr := &closableReader{Reader: bytes.NewReader(blob)}
		r, rr, req := setup()
		r.Binary(ct, fn, cr)
		r.Render(rr, req)

		It("should close the stream", func() {
			Expect(cr.Closed).To(BeTrue())
		})

		It("should copy the content untouched", func() {
			Expect(rr.Body.Bytes()).To(Equal(blob))
		})

		It("should set the download headers", func() {
			Expect(rr.Header().Get("Content-Type")).To(Equal(ct))
			Expect(rr.Header().Get("Content-Disposition")).To(Equal("attachment; filename=" + fn))
		})
	})

	Describe("an HTML offer", func() {
		tpl := template.Must(template.New("page").Parse(`<html><head><title>{{.Tag}}</title></head><body><p>{{.Num}}</p></body></html>`))
		r, rr, req := setup()
		r.HTML(tpl, p)
		r.Render(rr, req)

		It("should execute the template with the value", func() {
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Header().Get("Content-Type")).To(Equal("text/html"))
			Expect(rr.Body.String()).To(Equal(`<html><head><title>carrot</title></head><body><p>7</p></body></html>`))
		})
	})

	Describe("CSV offers", func() {
		rows := [][]string{
			{"x", "y", "@z"},
			{"=4", "-5", "+6"},
		}
		escaped := "x,y,\"\t@z\"\n\"\t=4\",\"\t-5\",\"\t+6\"\n"

		expectCSV := func(rr *httptest.ResponseRecorder) {
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Header().Get("Content-Type")).To(Equal("text/csv"))
			Expect(rr.Body.String()).To(Equal(escaped))
		}

		Context("from a [][]string", func() {
			r, rr, req := setup()
			r.CSV(rows)
			r.Render(rr, req)

			It("should write escaped CSV", func() {
				expectCSV(rr)
			})
		})

		Context("from a channel", func() {
			ch := make(chan []string)
			go func() {
				for _, row := range rows {
					ch <- row
				}
				close(ch)
			}()

			r, rr, req := setup()
			r.CSVChannel(ch)
			r.Render(rr, req)

			It("should drain the channel into escaped CSV", func() {
				Expect(ch).To(BeClosed())
				expectCSV(rr)
			})
		})

		Context("from a generator function", func() {
			row := 0
			gen := func(f http.Flusher) ([]string, error) {
				if row == len(rows) {
					return []string{}, io.EOF
				}

				row++
				return rows[row-1], nil
			}

			r, rr, req := setup()
			r.CSVGenerator(gen)
			r.Render(rr, req)

			It("should pull rows until EOF into escaped CSV", func() {
				Expect(row).To(Equal(len(rows)))
				expectCSV(rr)
			})
		})
	})

	Describe("sanitization", func() {
		tpl := template.Must(template.New("page").Parse(`<html><head><title>title</title></head><body><p>{{.Secret}}</p></body></html>`))
		DescribeTable("a sanitizable value never leaks its secret",
			func(format func(*render.Renderer, interface{})) {
				r, rr, req := setup()
				secret := util.RandomString(8)
				format(r, &secretive{Secret: secret})
				r.Render(rr, req)

				Expect(rr.Code).To(Equal(http.StatusOK))
				Expect(rr.Body.String()).NotTo(ContainSubstring(secret))
			},
			Entry("JSON", func(r *render.Renderer, v interface{}) { r.JSON(v) }),
			Entry("HTML", func(r *render.Renderer, v interface{}) { r.HTML(tpl, v) }),
			Entry("XML", func(r *render.Renderer, v interface{}) { r.XML(v, true) }),
			Entry("YAML", func(r *render.Renderer, v interface{}) { r.YAML(v) }),
			Entry("TOML", func(r *render.Renderer, v interface{}) { r.TOML(v) }),
		)
	})
})

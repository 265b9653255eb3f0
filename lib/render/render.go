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

// Package render writes negotiated responses.
//
// A handler collects offers on a per-request Renderer, and the best one
// according to the client's Accept header gets written. The server's
// preference is the order the offers were added in.
package render

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"html/template"
	"io"
	"net/http"

	"github.com/golang/gddo/httputil"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v2"
)

const JSONSecurityPrefix = ")]}',\n"

// JSONPrefix is a global switch for the ")]}',\n" JSON response prefix.
//
// The prefix protects browser clients against JSON hijacking, but the client
// has to strip it before parsing.
var JSONPrefix = true

// Sanitizer removes sensitive data from a value before it is rendered.
type Sanitizer interface {
	Sanitize()
}

// Envelope is the wire shape of resource responses.
//
// The resource payload goes under data, pagination and other bookkeeping
// under meta.
type Envelope struct {
	Data interface{} `json:"data"`
	Meta interface{} `json:"meta,omitempty"`
}

type offer struct {
	mediaType string
	write     func(w http.ResponseWriter)
}

// Renderer collects content type offers for a single response.
//
//	func pageHandler(w http.ResponseWriter, r *http.Request) {
//	    ...
//	    hutch.Render(r).
//	        HTML(pageTemplate, data).
//	        JSON(data)
//	}
//
// Here the server prefers HTML because that is the first offer, but a client
// asking for JSON gets JSON.
type Renderer struct {
	offers   []offer
	rendered bool
	Code     int // HTTP status code.
}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// SetCode sets the HTTP status code.
func (r *Renderer) SetCode(code int) *Renderer {
	r.Code = code
	return r
}

// AddOffer adds an offer for the content negotiation.
//
// Prefer the typed methods (JSON, Data, HTML, Text) over this.
func (r *Renderer) AddOffer(mediaType string, handler func(w http.ResponseWriter)) *Renderer {
	r.offers = append(r.offers, offer{mediaType: mediaType, write: handler})

	return r
}

// Render writes the best offer according to the client's preferences.
//
// With no offers the response is just a status code, defaulting to 204.
// Rendering a second time is a no-op.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request) {
	if r.rendered {
		return
	}
	defer r.SetRendered()

	if len(r.offers) == 0 {
		if r.Code == 0 || r.Code == http.StatusOK {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(r.Code)
		}
		return
	}

	chosen := r.offers[0]
	if len(r.offers) > 1 {
		mt := httputil.NegotiateContentType(req, r.mediaTypes(), chosen.mediaType)
		for _, o := range r.offers {
			if o.mediaType == mt {
				chosen = o
				break
			}
		}
	}

	w.Header().Add("Content-Type", chosen.mediaType)

	if r.Code > 0 {
		w.WriteHeader(r.Code)
	}

	chosen.write(w)
}

func (r *Renderer) mediaTypes() []string {
	types := make([]string, len(r.offers))
	for i, o := range r.offers {
		types[i] = o.mediaType
	}

	return types
}

// IsRendered checks if the renderer has written its content to an output.
func (r *Renderer) IsRendered() bool {
	return r.rendered
}

// SetRendered marks this Renderer as rendered, making Render a no-op.
func (r *Renderer) SetRendered() {
	r.rendered = true
}

// Data adds the common format offers with v wrapped in a data envelope.
func (r *Renderer) Data(v interface{}) *Renderer {
	return r.CommonFormats(Envelope{Data: v})
}

// DataMeta adds the common format offers with v and meta wrapped in an
// envelope.
func (r *Renderer) DataMeta(v, meta interface{}) *Renderer {
	return r.CommonFormats(Envelope{Data: v, Meta: meta})
}

// CommonFormats adds JSON, YAML, TOML and XML offers.
func (r *Renderer) CommonFormats(v interface{}) *Renderer {
	return r.JSON(v).YAML(v).TOML(v).XML(v, true)
}

// JSON adds a JSON offer.
func (r *Renderer) JSON(v interface{}) *Renderer {
	return r.AddOffer("application/json", func(w http.ResponseWriter) {
		if JSONPrefix {
			w.Write([]byte(JSONSecurityPrefix))
		}
		maybeSanitize(v)
		json.NewEncoder(w).Encode(v)
	})
}

// HTML adds an HTML offer rendered with the given template.
func (r *Renderer) HTML(t *template.Template, v interface{}) *Renderer {
	return r.AddOffer("text/html", func(w http.ResponseWriter) {
		maybeSanitize(v)
		if terr := t.Execute(w, v); terr != nil {
			panic(terr)
		}
	})
}

// Text adds a plain text offer.
func (r *Renderer) Text(t string) *Renderer {
	return r.AddOffer("text/plain", func(w http.ResponseWriter) {
		w.Write([]byte(t))
	})
}

// XML adds an XML offer.
//
// If pretty is set, the output is indented and served as text/xml instead of
// application/xml.
func (r *Renderer) XML(v interface{}, pretty bool) *Renderer {
	mt := "application/xml"
	if pretty {
		mt = "text/xml"
	}

	return r.AddOffer(mt, func(w http.ResponseWriter) {
		maybeSanitize(v)
		e := xml.NewEncoder(w)
		if pretty {
			e.Indent("", "\t")
		}
		e.Encode(v)
	})
}

// YAML adds a YAML offer.
func (r *Renderer) YAML(v interface{}) *Renderer {
	return r.AddOffer("application/yaml", func(w http.ResponseWriter) {
		maybeSanitize(v)
		yaml.NewEncoder(w).Encode(v)
	})
}

// TOML adds a TOML offer.
func (r *Renderer) TOML(v interface{}) *Renderer {
	return r.AddOffer("application/toml", func(w http.ResponseWriter) {
		maybeSanitize(v)
		toml.NewEncoder(w).Encode(v)
	})
}

// Binary adds a binary file offer.
//
// If reader is an io.ReadCloser, it will be closed after the copy.
func (r *Renderer) Binary(mediaType, filename string, reader io.Reader) *Renderer {
	return r.AddOffer(mediaType, func(w http.ResponseWriter) {
		w.Header().Set("Content-Disposition", "attachment; filename="+filename)
		io.Copy(w, reader)
		if rc, ok := reader.(io.ReadCloser); ok {
			rc.Close()
		}
	})
}

// CSV adds a CSV offer from an in-memory record list.
func (r *Renderer) CSV(records [][]string) *Renderer {
	return r.AddOffer("text/csv", func(w http.ResponseWriter) {
		csvw := csv.NewWriter(w)
		for _, record := range records {
			csvw.Write(escapeCSVRecord(record))
		}
		csvw.Flush()
	})
}

// CSVChannel adds a CSV offer streamed from a channel.
func (r *Renderer) CSVChannel(records <-chan []string) *Renderer {
	return r.AddOffer("text/csv", func(w http.ResponseWriter) {
		csvw := csv.NewWriter(w)
		for record := range records {
			csvw.Write(escapeCSVRecord(record))
		}
		csvw.Flush()
	})
}

// CSVGenerator adds a CSV offer driven by a generator function.
//
// The stream stops at the first error the generator returns.
func (r *Renderer) CSVGenerator(recgen func(http.Flusher) ([]string, error)) *Renderer {
	return r.AddOffer("text/csv", func(w http.ResponseWriter) {
		csvw := csv.NewWriter(w)
		defer csvw.Flush()
		for {
			record, err := recgen(csvw)
			if err != nil {
				return
			}
			csvw.Write(escapeCSVRecord(record))
		}
	})
}

// escapeCSVRecord guards against CSV injection.
//
// A field starting with =, -, + or @ can coerce spreadsheet applications into
// executing code, so those fields get a tab prefix.
//
// See: http://georgemauer.net/2017/10/07/csv-injection.html
func escapeCSVRecord(record []string) []string {
	for i, field := range record {
		if len(field) > 0 {
			switch field[0] {
			case '=', '-', '+', '@':
				record[i] = "\t" + field
			}
		}
	}

	return record
}

func maybeSanitize(v interface{}) {
	if sanitizer, ok := v.(Sanitizer); ok {
		sanitizer.Sanitize()
	}
}

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

// Package decoder turns request bodies into values based on the Content-Type
// header.
package decoder

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v2"

	"github.com/alien-bunny/hutch/lib/errors"
)

var (
	NoDecoderErr   = errors.New("no decoder found for the request content type")
	MissingDataErr = errors.New("request body must be an object under a data key")
)

// Validator validates a decoded value.
type Validator interface {
	Validate() error
}

// Decoders maps content types to body decoders. Applications can register
// their own by adding entries before serving requests.
var Decoders = map[string]func(body io.Reader, v interface{}) error{
	"application/json": JSONDecoder,
	"application/yaml": YAMLDecoder,
	"application/toml": TOMLDecoder,
	"application/xml":  XMLDecoder,
	"text/xml":         XMLDecoder,
	"text/csv":         CSVDecoder,
}

func JSONDecoder(body io.Reader, v interface{}) error {
	return json.NewDecoder(body).Decode(v)
}

func YAMLDecoder(body io.Reader, v interface{}) error {
	return yaml.NewDecoder(body).Decode(v)
}

func TOMLDecoder(body io.Reader, v interface{}) error {
	return toml.NewDecoder(body).Decode(v)
}

func XMLDecoder(body io.Reader, v interface{}) error {
	return xml.NewDecoder(body).Decode(v)
}

// CSVDecoder reads the whole body as CSV records.
//
// v must be *[][]string
func CSVDecoder(body io.Reader, v interface{}) error {
	m, ok := v.(*[][]string)
	if !ok {
		return errors.New("invalid data type for csv")
	}

	var err error
	*m, err = csv.NewReader(body).ReadAll()
	return err
}

// Decode decodes a request body into v and closes the body.
//
// The decoder is chosen by the Content-Type header alone. A missing or
// unregistered content type fails with NoDecoderErr.
func Decode(r *http.Request, v interface{}) error {
	dec, ok := Decoders[mediaType(r)]
	if !ok {
		return NoDecoderErr
	}

	defer r.Body.Close()
	return dec(r.Body, v)
}

func mediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}

	return strings.TrimSpace(ct)
}

// DecodeData decodes an enveloped request body and returns the contents of
// its data key.
//
// Resource write endpoints expect bodies shaped as {"data": {...}}. A body
// without the data key fails with MissingDataErr.
func DecodeData(r *http.Request) (map[string]interface{}, error) {
	var envelope struct {
		Data map[string]interface{} `json:"data" yaml:"data" toml:"data"`
	}

	if err := Decode(r, &envelope); err != nil {
		return nil, err
	}

	if envelope.Data == nil {
		return nil, MissingDataErr
	}

	return envelope.Data, nil
}

// MustDecode is Decode converted to the panic-based error flow. An
// unregistered content type becomes a 415, a malformed body a 400, and a
// failing Validate a 422, all caught by the error handler middleware.
func MustDecode(r *http.Request, v interface{}) {
	switch err := Decode(r, v); {
	case err == NoDecoderErr:
		errors.Fail(http.StatusUnsupportedMediaType, err)
	case err != nil:
		errors.Fail(http.StatusBadRequest, err)
	}

	if validator, ok := v.(Validator); ok {
		if err := validator.Validate(); err != nil {
			errors.Fail(http.StatusUnprocessableEntity, err)
		}
	}
}

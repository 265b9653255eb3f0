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

// Package env fills configuration structs from environment variables.
//
// Variable names are derived from the struct field path, joined with the
// separator and uppercased. A field can override its own name segment with
// an `env:"NAME"` struct tag.
package env

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

type InvalidUnmarshalError struct {
	Type        reflect.Type
	Unsupported bool
}

func (e *InvalidUnmarshalError) Error() string {
	if e.Type == nil {
		return "env: Unmarshal(nil)"
	}

	if e.Type.Kind() != reflect.Ptr && !e.Unsupported {
		return "env: Unmarshal(non-pointer " + e.Type.String() + ")"
	}

	return "env: Unmarshal(" + e.Type.String() + ")"
}

// Unmarshaler maps environment variables onto a struct.
type Unmarshaler struct {
	// NameConverter normalizes a field name before it becomes a name segment.
	NameConverter func(string) string
	// Loader looks up a variable. Defaults to os.LookupEnv; tests swap it out.
	Loader    func(string) (string, bool)
	Prefix    string
	Separator string
	// Strict makes fields with unsupported kinds an error instead of
	// silently skipping them.
	Strict bool
}

func NewUnmarshaler() *Unmarshaler {
	return &Unmarshaler{
		NameConverter: strings.ToLower,
		Loader:        os.LookupEnv,
		Separator:     "_",
	}
}

// Unmarshal fills v from the environment. v must be a non-nil pointer to a
// struct or scalar.
func (u *Unmarshaler) Unmarshal(v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return &InvalidUnmarshalError{reflect.TypeOf(v), false}
	}

	return u.fill(u.Prefix, rv)
}

var durationType = reflect.TypeOf(time.Duration(0))

func (u *Unmarshaler) fill(name string, rv reflect.Value) error {
	name = strings.ToUpper(name)

	switch rv.Kind() {
	case reflect.Ptr:
		return u.fill(name, rv.Elem())
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			if err := u.fill(u.fieldName(name, t.Field(i)), rv.Field(i)); err != nil {
				return err
			}
		}

		return nil
	}

	val, found := u.Loader(name)
	if !found {
		if u.supported(rv.Kind()) || !u.Strict {
			return nil
		}

		return &InvalidUnmarshalError{rv.Type(), true}
	}

	return u.set(rv, val)
}

func (u *Unmarshaler) supported(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}

	return false
}

func (u *Unmarshaler) set(rv reflect.Value, val string) error {
	switch rv.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err != nil {
			return err
		}
		rv.SetBool(b)
	case reflect.String:
		rv.SetString(val)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Type() == durationType {
			d, err := time.ParseDuration(val)
			if err != nil {
				return err
			}
			rv.SetInt(int64(d))

			return nil
		}

		i, err := strconv.ParseInt(val, 0, 64)
		if err != nil {
			return err
		}
		rv.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := strconv.ParseUint(val, 0, 64)
		if err != nil {
			return err
		}
		rv.SetUint(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		rv.SetFloat(f)
	default:
		if u.Strict {
			return &InvalidUnmarshalError{rv.Type(), true}
		}
	}

	return nil
}

func (u *Unmarshaler) fieldName(parent string, field reflect.StructField) string {
	segment := field.Tag.Get("env")
	if segment == "" {
		segment = field.Name
		if u.NameConverter != nil {
			segment = u.NameConverter(segment)
		}
	}

	if parent == "" {
		return segment
	}

	return parent + u.Separator + segment
}

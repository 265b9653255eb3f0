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

// Package schema describes resources declaratively.
//
// A Schema binds the API surface of a resource (field names, id fields,
// validation rules) to its database columns. Validation itself is delegated to
// go-playground/validator struct tags; the schema translates violations into
// the kit's API error items with JSON pointers into the request body.
//
// Schema fields also carry the string parsing and formatting used wherever a
// field value travels in a query string: filter arguments and pagination
// cursors.
package schema

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/uuid"
	"github.com/go-playground/validator/v10"
)

// Field binds one API field to a database column.
type Field struct {
	// Name is the field's name on the API surface (its JSON key).
	Name string
	// Column is the database column the field maps to. Defaults to Name.
	Column string
	// Parse converts a query string value (filter argument, cursor segment)
	// into the field's Go value. Defaults to the identity string parser.
	Parse func(raw string) (interface{}, error)
	// Format renders the field's Go value into a cursor segment. Defaults to
	// fmt-style stringification.
	Format func(v interface{}) string
	// Get reads the field's value from a resource struct. Defaults to a
	// reflective lookup by JSON tag.
	Get func(item interface{}) interface{}
}

func (f Field) column() string {
	if f.Column != "" {
		return f.Column
	}

	return f.Name
}

// String declares a string field.
func String(name string) Field {
	return Field{
		Name: name,
		Parse: func(raw string) (interface{}, error) {
			return raw, nil
		},
	}
}

// Int declares an integer field.
func Int(name string) Field {
	return Field{
		Name: name,
		Parse: func(raw string) (interface{}, error) {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, errors.NewError(err.Error(), "invalid integer: "+raw)
			}
			return v, nil
		},
	}
}

// Bool declares a boolean field.
func Bool(name string) Field {
	return Field{
		Name: name,
		Parse: func(raw string) (interface{}, error) {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, errors.NewError(err.Error(), "invalid boolean: "+raw)
			}
			return v, nil
		},
	}
}

// Time declares a timestamp field serialized with the given layout.
func Time(name, layout string) Field {
	return Field{
		Name: name,
		Parse: func(raw string) (interface{}, error) {
			v, err := time.Parse(layout, raw)
			if err != nil {
				return nil, errors.NewError(err.Error(), "invalid timestamp: "+raw)
			}
			return v, nil
		},
		Format: func(v interface{}) string {
			if t, ok := v.(time.Time); ok {
				return t.Format(layout)
			}
			return stringify(v)
		},
	}
}

// UUID declares a UUID field.
func UUID(name string) Field {
	return Field{
		Name: name,
		Parse: func(raw string) (interface{}, error) {
			v, err := uuid.FromString(raw)
			if err != nil {
				return nil, errors.NewError(err.Error(), "invalid uuid: "+raw)
			}
			return v, nil
		},
	}
}

// WithColumn overrides the database column of the field.
func (f Field) WithColumn(column string) Field {
	f.Column = column
	return f
}

// WithGetter overrides the reflective value lookup of the field.
func (f Field) WithGetter(get func(item interface{}) interface{}) Field {
	f.Get = get
	return f
}

// Schema is the declarative description of a resource type.
type Schema struct {
	fields   []Field
	byName   map[string]Field
	idFields []string
	validate *validator.Validate
}

// New creates a Schema from a field list. The first field is the id field
// unless IDFields overrides it.
func New(fields ...Field) *Schema {
	v := validator.New()
	// Report violations under the field's JSON key, not the Go struct name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Schema{
		fields:   fields,
		byName:   make(map[string]Field, len(fields)),
		validate: v,
	}
	for _, f := range fields {
		s.byName[f.Name] = f
	}
	if len(fields) > 0 {
		s.idFields = []string{fields[0].Name}
	}

	return s
}

// IDFields designates the fields identifying a single resource.
func (s *Schema) IDFields(names ...string) *Schema {
	s.idFields = names
	return s
}

// IDFieldNames returns the names of the id fields.
func (s *Schema) IDFieldNames() []string {
	return s.idFields[:]
}

// Fields returns all declared fields in order.
func (s *Schema) Fields() []Field {
	return s.fields[:]
}

// Field looks up a field by API name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Column returns the database column of an API field name.
//
// Unknown names map to themselves so callers can decide how strict to be.
func (s *Schema) Column(name string) string {
	if f, ok := s.byName[name]; ok {
		return f.column()
	}

	return name
}

// Columns lists the database columns of all fields in declaration order.
func (s *Schema) Columns() []string {
	columns := make([]string, len(s.fields))
	for i, f := range s.fields {
		columns[i] = f.column()
	}

	return columns
}

// ParseValue parses a query string value with the named field's parser.
func (s *Schema) ParseValue(name, raw string) (interface{}, error) {
	f, ok := s.byName[name]
	if !ok || f.Parse == nil {
		return raw, nil
	}

	return f.Parse(raw)
}

// FormatValue renders a field value of an item into its string form.
func (s *Schema) FormatValue(name string, item interface{}) string {
	f, ok := s.byName[name]
	if !ok {
		return ""
	}

	v := s.Value(f, item)
	if f.Format != nil {
		return f.Format(v)
	}

	return stringify(v)
}

// Value reads a field's value from a resource struct.
func (s *Schema) Value(f Field, item interface{}) interface{} {
	if f.Get != nil {
		return f.Get(item)
	}

	return reflectValue(item, f.Name)
}

// Validate runs struct validation on a decoded resource.
//
// Violations become a 422 APIError with one item per failed field, pointing
// at /data/<field>.
func (s *Schema) Validate(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	items := make([]errors.Item, len(verrs))
	for i, fe := range verrs {
		items[i] = errors.Item{
			Code:   "invalid_data",
			Detail: "failed validation: " + fe.Tag(),
			Source: &errors.Source{Pointer: "/data/" + fe.Field()},
		}
	}

	return errors.NewAPIError(http.StatusUnprocessableEntity, items...)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case interface{ String() string }:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return reflect.ValueOf(v).String()
	}
}

// reflectValue finds a struct field by its JSON tag (falling back to the
// lowercased field name) and returns its value.
func reflectValue(item interface{}, name string) interface{} {
	rv := reflect.ValueOf(item)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tag := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
		if tag == name || (tag == "" && strings.EqualFold(sf.Name, name)) {
			return rv.Field(i).Interface()
		}
	}

	return nil
}

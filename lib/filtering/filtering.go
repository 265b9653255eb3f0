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

// Package filtering narrows list queries from request arguments.
//
// A Filtering maps query parameter names to filters. Column filters compare a
// schema field with an operator, model filters run an arbitrary condition
// builder. Comma separated argument values combine with OR.
package filtering

import (
	"net/http"
	"strings"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/query"
	"github.com/alien-bunny/hutch/lib/schema"
)

// View exposes what filters need from the resource.
type View interface {
	Schema() *schema.Schema
}

// Filter builds a condition from a single argument value.
type Filter interface {
	// Filter returns the condition for one argument value. A nil condition
	// with a nil error skips the value.
	Filter(view View, arg, value string) (query.Cond, error)

	// IsRequired reports whether the argument must be present on the request.
	IsRequired() bool

	// IsEmptyAllowed reports whether an empty argument value is passed to the
	// filter instead of being rejected.
	IsEmptyAllowed() bool
}

// DefaultingFilter is a Filter with a fallback value for absent arguments.
type DefaultingFilter interface {
	Filter

	// MissingValue returns the value the filter applies when the argument is
	// not on the request. The bool reports whether a fallback is set.
	MissingValue() (string, bool)
}

// Filtering applies the configured filters to a list query.
type Filtering struct {
	filters map[string]Filter
}

// New creates a Filtering over the given argument name to filter mapping.
func New(filters map[string]Filter) *Filtering {
	return &Filtering{filters: filters}
}

// Filter narrows sel with the conditions parsed from the request arguments.
func (f *Filtering) Filter(r *http.Request, view View, sel *query.Select) error {
	args := r.URL.Query()

	for arg, filter := range f.filters {
		value, found := args.Get(arg), true
		if _, ok := args[arg]; !ok {
			if filter.IsRequired() {
				return errors.NewAPIError(http.StatusBadRequest, errors.C("invalid_filter.missing")).
					WithSourceParameter(arg)
			}

			found = false
			if def, ok := filter.(DefaultingFilter); ok {
				value, found = def.MissingValue()
			}
		}
		if !found {
			continue
		}

		cond, err := filterArg(view, filter, arg, value)
		if err != nil {
			return err
		}
		if cond != nil {
			sel.Where(cond)
		}
	}

	return nil
}

// filterArg splits the argument value on commas and ORs the per-value
// conditions together.
func filterArg(view View, filter Filter, arg, value string) (query.Cond, error) {
	values := []string{value}
	if !filter.IsEmptyAllowed() {
		values = strings.Split(value, ",")
	}

	var conds []query.Cond
	for _, v := range values {
		if v == "" && !filter.IsEmptyAllowed() {
			return nil, errors.NewAPIError(http.StatusBadRequest, errors.CD("invalid_filter", "empty filter value")).
				WithSourceParameter(arg)
		}

		cond, err := filter.Filter(view, arg, v)
		if err != nil {
			return nil, err
		}
		if cond != nil {
			conds = append(conds, cond)
		}
	}

	if len(conds) == 0 {
		return nil, nil
	}

	return query.Or(conds...), nil
}

// Operator compares a column against a parsed value.
type Operator func(column string, value interface{}) query.Cond

// Comparison operators for column filters.
var (
	Eq    Operator = query.Eq
	NotEq Operator = query.NotEq
	Lt    Operator = query.Lt
	Lte   Operator = query.Lte
	Gt    Operator = query.Gt
	Gte   Operator = query.Gte
	Like  Operator = query.Like
)

// ColumnFilter compares a schema field using an operator. Values are parsed
// with the field's parser, so a filter on an int field rejects non-numeric
// input with a 400.
type ColumnFilter struct {
	field       string
	operator    Operator
	missing     string
	hasMissing  bool
	required    bool
	allowEmpty  bool
	skipInvalid bool
}

var _ Filter = &ColumnFilter{}
var _ DefaultingFilter = &ColumnFilter{}

// Column creates a filter comparing the named schema field with op.
func Column(field string, op Operator) *ColumnFilter {
	return &ColumnFilter{field: field, operator: op}
}

// Required marks the filter argument mandatory. Requests without it fail with
// invalid_filter.missing.
func (f *ColumnFilter) Required() *ColumnFilter {
	clone := *f
	clone.required = true
	return &clone
}

// AllowEmpty passes an empty argument value to the field parser instead of
// rejecting it. It also disables comma splitting.
func (f *ColumnFilter) AllowEmpty() *ColumnFilter {
	clone := *f
	clone.allowEmpty = true
	return &clone
}

// Missing applies value when the request does not carry the argument. The
// value goes through the field parser like a real argument.
func (f *ColumnFilter) Missing(value string) *ColumnFilter {
	clone := *f
	clone.missing = value
	clone.hasMissing = true
	return &clone
}

// SkipInvalid turns unparseable values into an empty result set instead of a
// 400 response.
func (f *ColumnFilter) SkipInvalid() *ColumnFilter {
	clone := *f
	clone.skipInvalid = true
	return &clone
}

func (f *ColumnFilter) Filter(view View, arg, value string) (query.Cond, error) {
	parsed, err := view.Schema().ParseValue(f.field, value)
	if err != nil {
		if f.skipInvalid {
			return query.False(), nil
		}

		detail := err.Error()
		if ue, ok := err.(errors.Error); ok {
			detail = ue.UserError()
		}
		return nil, errors.NewAPIError(http.StatusBadRequest, errors.CD("invalid_filter", detail)).
			WithSourceParameter(arg)
	}

	return f.operator(view.Schema().Column(f.field), parsed), nil
}

func (f *ColumnFilter) IsRequired() bool             { return f.required }
func (f *ColumnFilter) IsEmptyAllowed() bool         { return f.allowEmpty }
func (f *ColumnFilter) MissingValue() (string, bool) { return f.missing, f.hasMissing }

// ModelFilter runs a custom condition builder on the raw argument value.
type ModelFilter struct {
	build      func(view View, value string) (query.Cond, error)
	required   bool
	allowEmpty bool
}

var _ Filter = &ModelFilter{}

// Model creates a filter from a condition builder.
func Model(build func(view View, value string) (query.Cond, error)) *ModelFilter {
	return &ModelFilter{build: build}
}

// Required marks the filter argument mandatory.
func (f *ModelFilter) Required() *ModelFilter {
	clone := *f
	clone.required = true
	return &clone
}

// AllowEmpty passes an empty argument value to the builder and disables comma
// splitting.
func (f *ModelFilter) AllowEmpty() *ModelFilter {
	clone := *f
	clone.allowEmpty = true
	return &clone
}

func (f *ModelFilter) Filter(view View, arg, value string) (query.Cond, error) {
	return f.build(view, value)
}

func (f *ModelFilter) IsRequired() bool     { return f.required }
func (f *ModelFilter) IsEmptyAllowed() bool { return f.allowEmpty }

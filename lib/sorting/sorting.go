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

// Package sorting translates the sort query argument into ORDER BY clauses.
//
// A sort spec is a comma separated field list. A - prefix reverses a field:
//
//     ?sort=name,-created
package sorting

import (
	"net/http"
	"strings"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/query"
	"github.com/alien-bunny/hutch/lib/schema"
)

// SortArg is the name of the query parameter carrying the sort spec.
const SortArg = "sort"

// View is the part of a resource controller the sorters need.
type View interface {
	Schema() *schema.Schema
}

// FieldOrdering is one parsed entry of a sort spec.
type FieldOrdering struct {
	Field string
	Asc   bool
}

// FieldSorter is a sorting strategy for listing endpoints.
//
// RequestFieldOrderings exposes the orderings chosen for a request so cursor
// pagination can align its cursors with them.
type FieldSorter interface {
	Sort(r *http.Request, view View, sel *query.Select) error
	RequestFieldOrderings(r *http.Request, view View) ([]FieldOrdering, error)
}

// ParseSpec parses a sort spec string into field orderings.
func ParseSpec(spec string) ([]FieldOrdering, error) {
	if spec == "" {
		return nil, errors.New("empty sort spec")
	}

	parts := strings.Split(spec, ",")
	orderings := make([]FieldOrdering, len(parts))
	for i, part := range parts {
		field, asc := part, true
		if strings.HasPrefix(part, "-") {
			field, asc = part[1:], false
		}
		if field == "" {
			return nil, errors.New("empty sort field")
		}
		orderings[i] = FieldOrdering{Field: field, Asc: asc}
	}

	return orderings, nil
}

// ApplyFieldOrderings appends the orderings to the query, mapping API field
// names to columns through the view's schema.
func ApplyFieldOrderings(view View, sel *query.Select, orderings []FieldOrdering) {
	for _, o := range orderings {
		sel.OrderBy(view.Schema().Column(o.Field), o.Asc)
	}
}

var _ FieldSorter = &Sorting{}

// Sorting sorts by the fields requested in the sort query argument.
//
// Only whitelisted fields are accepted. A request without a sort argument
// falls back to the default spec, if one is set.
type Sorting struct {
	enabled  map[string]struct{}
	defaults []FieldOrdering
}

// New creates a Sorting strategy whitelisting the given fields.
func New(fields ...string) *Sorting {
	enabled := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		enabled[f] = struct{}{}
	}

	return &Sorting{enabled: enabled}
}

// Default sets the sort spec applied when the request has no sort argument.
func (s *Sorting) Default(spec string) *Sorting {
	orderings, err := ParseSpec(spec)
	if err != nil {
		panic(err)
	}
	s.defaults = orderings

	return s
}

func (s *Sorting) Sort(r *http.Request, view View, sel *query.Select) error {
	orderings, err := s.RequestFieldOrderings(r, view)
	if err != nil {
		return err
	}

	ApplyFieldOrderings(view, sel, orderings)

	return nil
}

func (s *Sorting) RequestFieldOrderings(r *http.Request, view View) ([]FieldOrdering, error) {
	spec := r.URL.Query().Get(SortArg)
	if spec == "" {
		return s.defaults, nil
	}

	orderings, err := ParseSpec(spec)
	if err != nil {
		return nil, errors.NewAPIError(http.StatusBadRequest, errors.C("invalid_sort")).WithSourceParameter(SortArg)
	}

	for _, o := range orderings {
		if _, ok := s.enabled[o.Field]; !ok {
			return nil, errors.NewAPIError(
				http.StatusBadRequest,
				errors.CD("invalid_sort", "sorting on "+o.Field+" is not enabled"),
			).WithSourceParameter(SortArg)
		}
	}

	return orderings, nil
}

var _ FieldSorter = FixedSorting{}

// FixedSorting applies a static sort spec, ignoring the request.
type FixedSorting struct {
	orderings []FieldOrdering
}

// Fixed creates a FixedSorting from a sort spec. It panics on a bad spec,
// since the spec is part of the view declaration.
func Fixed(spec string) FixedSorting {
	orderings, err := ParseSpec(spec)
	if err != nil {
		panic(err)
	}

	return FixedSorting{orderings: orderings}
}

func (s FixedSorting) Sort(r *http.Request, view View, sel *query.Select) error {
	ApplyFieldOrderings(view, sel, s.orderings)

	return nil
}

func (s FixedSorting) RequestFieldOrderings(r *http.Request, view View) ([]FieldOrdering, error) {
	return s.orderings, nil
}

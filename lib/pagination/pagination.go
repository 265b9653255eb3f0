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

// Package pagination divides listing results into pages.
//
// All strategies work by narrowing the listing SELECT before the resource
// delegate executes it. The limit-based strategies over-fetch by one row to
// learn whether a next page exists without a COUNT query.
package pagination

import (
	"net/http"
	"strconv"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/query"
	"github.com/alien-bunny/hutch/lib/schema"
	"github.com/alien-bunny/hutch/lib/sorting"
)

const (
	// LimitArg is the query parameter carrying the page size.
	LimitArg = "limit"
	// OffsetArg is the query parameter carrying the page offset.
	OffsetArg = "offset"
	// PageArg is the query parameter carrying the page number.
	PageArg = "page"
)

// Meta is merged into the response meta key.
type Meta map[string]interface{}

// View is the part of a resource controller the paginators need.
type View interface {
	Schema() *schema.Schema
	Sorter() sorting.FieldSorter
}

// Fetcher executes the listing SELECT and scans the rows into resources.
type Fetcher func(sel *query.Select) ([]interface{}, error)

// Paginator is a pagination strategy for listing endpoints.
type Paginator interface {
	// Paginate narrows sel, executes it through fetch and returns the items
	// of the requested page along with response metadata.
	Paginate(r *http.Request, view View, sel *query.Select, fetch Fetcher) ([]interface{}, Meta, error)
	// ItemMeta returns metadata describing a single item's position, or nil.
	ItemMeta(r *http.Request, view View, item interface{}) (Meta, error)
}

func parseNonNegativeArg(r *http.Request, arg string) (int, bool, error) {
	raw := r.URL.Query().Get(arg)
	if raw == "" {
		return 0, false, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false, errors.NewAPIError(http.StatusBadRequest, errors.C("invalid_"+arg)).WithSourceParameter(arg)
	}

	return v, true, nil
}

// fetchLimited over-fetches one row beyond limit to detect a next page.
// A negative limit disables limiting.
func fetchLimited(limit int, sel *query.Select, fetch Fetcher) ([]interface{}, Meta, error) {
	if limit >= 0 {
		sel.Limit(limit + 1)
	}

	items, err := fetch(sel)
	if err != nil {
		return nil, nil, err
	}

	hasNextPage := false
	if limit >= 0 && len(items) > limit {
		hasNextPage = true
		items = items[:limit]
	}

	return items, Meta{"has_next_page": hasNextPage}, nil
}

var _ Paginator = MaxLimit{}

// MaxLimit caps the number of returned items without reading request args.
type MaxLimit struct {
	Max int
}

func (p MaxLimit) Paginate(r *http.Request, view View, sel *query.Select, fetch Fetcher) ([]interface{}, Meta, error) {
	return fetchLimited(p.Max, sel, fetch)
}

func (p MaxLimit) ItemMeta(r *http.Request, view View, item interface{}) (Meta, error) {
	return nil, nil
}

var _ Paginator = &Limit{}

// Limit reads the page size from the limit query argument.
//
// Without a limit argument the default applies; requested limits are clamped
// to the maximum. A negative default or maximum means unset.
type Limit struct {
	defaultLimit int
	maxLimit     int
}

// NewLimit creates a Limit paginator. Pass -1 to leave a bound unset.
func NewLimit(defaultLimit, maxLimit int) *Limit {
	if defaultLimit < 0 {
		defaultLimit = maxLimit
	}
	if maxLimit >= 0 && defaultLimit > maxLimit {
		panic("default limit exceeds max limit")
	}

	return &Limit{
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

func (p *Limit) requestLimit(r *http.Request) (int, error) {
	limit, present, err := parseNonNegativeArg(r, LimitArg)
	if err != nil {
		return 0, err
	}
	if !present {
		return p.defaultLimit, nil
	}

	if p.maxLimit >= 0 && limit > p.maxLimit {
		limit = p.maxLimit
	}

	return limit, nil
}

func (p *Limit) Paginate(r *http.Request, view View, sel *query.Select, fetch Fetcher) ([]interface{}, Meta, error) {
	limit, err := p.requestLimit(r)
	if err != nil {
		return nil, nil, err
	}

	return fetchLimited(limit, sel, fetch)
}

func (p *Limit) ItemMeta(r *http.Request, view View, item interface{}) (Meta, error) {
	return nil, nil
}

var _ Paginator = &LimitOffset{}

// LimitOffset composes Limit with the offset query argument, so arbitrary
// pages can be addressed.
type LimitOffset struct {
	Limit
}

// NewLimitOffset creates a LimitOffset paginator. Pass -1 to leave a bound unset.
func NewLimitOffset(defaultLimit, maxLimit int) *LimitOffset {
	return &LimitOffset{Limit: *NewLimit(defaultLimit, maxLimit)}
}

func (p *LimitOffset) Paginate(r *http.Request, view View, sel *query.Select, fetch Fetcher) ([]interface{}, Meta, error) {
	offset, _, err := parseNonNegativeArg(r, OffsetArg)
	if err != nil {
		return nil, nil, err
	}
	sel.Offset(offset)

	return p.Limit.Paginate(r, view, sel, fetch)
}

var _ Paginator = &PagePagination{}

// PagePagination abstracts limit and offset into a fixed page size and a
// zero-based page number argument.
type PagePagination struct {
	pageSize int
}

func NewPage(pageSize int) *PagePagination {
	return &PagePagination{pageSize: pageSize}
}

func (p *PagePagination) Paginate(r *http.Request, view View, sel *query.Select, fetch Fetcher) ([]interface{}, Meta, error) {
	page, _, err := parseNonNegativeArg(r, PageArg)
	if err != nil {
		return nil, nil, err
	}
	sel.Offset(page * p.pageSize)

	return fetchLimited(p.pageSize, sel, fetch)
}

func (p *PagePagination) ItemMeta(r *http.Request, view View, item interface{}) (Meta, error) {
	return nil, nil
}

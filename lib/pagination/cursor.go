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

package pagination

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/query"
	"github.com/alien-bunny/hutch/lib/sorting"
)

// CursorArg is the query parameter carrying the page cursor.
const CursorArg = "cursor"

// EncodeCursor renders field values into a cursor string.
//
// Each value is urlsafe-base64 encoded without padding; the segments are
// joined with dots. The encoding is stable under collection writes, unlike an
// offset.
func EncodeCursor(values []string) string {
	segments := make([]string, len(values))
	for i, v := range values {
		segments[i] = base64.RawURLEncoding.EncodeToString([]byte(v))
	}

	return strings.Join(segments, ".")
}

// DecodeCursor splits a cursor string back into its field values.
func DecodeCursor(cursor string) ([]string, error) {
	segments := strings.Split(cursor, ".")
	values := make([]string, len(segments))
	for i, segment := range segments {
		raw, err := base64.RawURLEncoding.DecodeString(segment)
		if err != nil {
			return nil, errors.NewAPIError(http.StatusBadRequest, errors.C("invalid_cursor.encoding"))
		}
		values[i] = string(raw)
	}

	return values, nil
}

var _ Paginator = &RelayCursor{}

// RelayCursor implements cursor pagination compatible with the Relay
// connection spec: the response meta carries one cursor per item, and the
// cursor argument addresses the page after the item it encodes.
//
// The view must have a sorter. The request orderings are extended with the
// schema's id fields so the ordering is total; the id fields inherit the
// direction of the last explicit ordering, so reversing the sort reverses the
// ids as well.
type RelayCursor struct {
	Limit
}

// NewRelayCursor creates a RelayCursor paginator. Pass -1 to leave a bound unset.
func NewRelayCursor(defaultLimit, maxLimit int) *RelayCursor {
	return &RelayCursor{Limit: *NewLimit(defaultLimit, maxLimit)}
}

func (p *RelayCursor) Paginate(r *http.Request, view View, sel *query.Select, fetch Fetcher) ([]interface{}, Meta, error) {
	explicit, missing, err := p.fieldOrderings(r, view)
	if err != nil {
		return nil, nil, err
	}

	// The controller already applied the explicit sort; only the implicit id
	// orderings are appended here.
	sorting.ApplyFieldOrderings(view, sel, missing)
	orderings := append(explicit, missing...)

	cursorValues, err := p.requestCursor(r, view, orderings)
	if err != nil {
		return nil, nil, err
	}
	if cursorValues != nil {
		sel.Where(cursorFilter(view, orderings, cursorValues))
	}

	items, meta, err := p.Limit.Paginate(r, view, sel, fetch)
	if err != nil {
		return nil, nil, err
	}

	cursors := make([]string, len(items))
	for i, item := range items {
		cursors[i] = p.renderCursor(view, orderings, item)
	}
	meta["cursors"] = cursors

	return items, meta, nil
}

func (p *RelayCursor) ItemMeta(r *http.Request, view View, item interface{}) (Meta, error) {
	explicit, missing, err := p.fieldOrderings(r, view)
	if err != nil {
		return nil, err
	}

	return Meta{"cursor": p.renderCursor(view, append(explicit, missing...), item)}, nil
}

// fieldOrderings returns the explicit request orderings and the id field
// orderings not covered by them.
func (p *RelayCursor) fieldOrderings(r *http.Request, view View) ([]sorting.FieldOrdering, []sorting.FieldOrdering, error) {
	sorter := view.Sorter()
	if sorter == nil {
		return nil, nil, errors.New("cursor pagination needs sorting on the view")
	}

	explicit, err := sorter.RequestFieldOrderings(r, view)
	if err != nil {
		return nil, nil, err
	}

	covered := make(map[string]struct{}, len(explicit))
	lastAsc := true
	for _, o := range explicit {
		covered[o.Field] = struct{}{}
		lastAsc = o.Asc
	}

	var missing []sorting.FieldOrdering
	for _, idField := range view.Schema().IDFieldNames() {
		if _, ok := covered[idField]; !ok {
			missing = append(missing, sorting.FieldOrdering{Field: idField, Asc: lastAsc})
		}
	}

	return explicit, missing, nil
}

// requestCursor decodes and parses the cursor argument. A missing argument
// yields nil values and no error.
func (p *RelayCursor) requestCursor(r *http.Request, view View, orderings []sorting.FieldOrdering) ([]interface{}, error) {
	cursor := r.URL.Query().Get(CursorArg)
	if cursor == "" {
		return nil, nil
	}

	raw, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err.(*errors.APIError).WithSourceParameter(CursorArg)
	}

	if len(raw) != len(orderings) {
		return nil, errors.NewAPIError(http.StatusBadRequest, errors.C("invalid_cursor.length")).WithSourceParameter(CursorArg)
	}

	values := make([]interface{}, len(raw))
	for i, o := range orderings {
		v, perr := view.Schema().ParseValue(o.Field, raw[i])
		if perr != nil {
			detail := perr.Error()
			if ue, ok := perr.(errors.Error); ok {
				detail = ue.UserError()
			}
			return nil, errors.NewAPIError(http.StatusBadRequest, errors.CD("invalid_cursor", detail)).WithSourceParameter(CursorArg)
		}
		values[i] = v
	}

	return values, nil
}

// cursorFilter builds the tuple comparison selecting rows after the cursor:
//
//     (a > ?) OR (a = ? AND b > ?) OR (a = ? AND b = ? AND id > ?)
//
// with the comparison flipped for descending fields.
func cursorFilter(view View, orderings []sorting.FieldOrdering, values []interface{}) query.Cond {
	clauses := make([]query.Cond, len(orderings))
	for i := range orderings {
		parts := make([]query.Cond, 0, i+1)
		for j := 0; j < i; j++ {
			parts = append(parts, query.Eq(view.Schema().Column(orderings[j].Field), values[j]))
		}

		column := view.Schema().Column(orderings[i].Field)
		if orderings[i].Asc {
			parts = append(parts, query.Gt(column, values[i]))
		} else {
			parts = append(parts, query.Lt(column, values[i]))
		}

		clauses[i] = query.And(parts...)
	}

	return query.Or(clauses...)
}

func (p *RelayCursor) renderCursor(view View, orderings []sorting.FieldOrdering, item interface{}) string {
	values := make([]string, len(orderings))
	for i, o := range orderings {
		values[i] = view.Schema().FormatValue(o.Field, item)
	}

	return EncodeCursor(values)
}

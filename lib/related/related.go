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

// Package related resolves nested references on write payloads.
//
// A payload like {"author": {"id": 3}} names a row in another resource. The
// resolver loads that row with a caller supplied loader and replaces the
// reference with it, so the delegate sees a resolved item instead of a bare
// id. Unresolvable references fail the request with a 422 pointing at the
// offending field.
package related

import (
	"net/http"

	"github.com/alien-bunny/hutch/lib/errors"
)

// Loader loads the referenced item by id. Returning a nil item reports the
// reference as dangling.
type Loader func(r *http.Request, id interface{}) (interface{}, error)

// Related resolves the configured payload fields.
type Related struct {
	loaders map[string]Loader
}

// New creates a resolver over the given field name to loader mapping.
func New(loaders map[string]Loader) *Related {
	return &Related{loaders: loaders}
}

// Resolve replaces the reference fields in data with their loaded items. Data
// is modified in place. Fields absent from the payload are left alone, and a
// null reference stays null.
func (rel *Related) Resolve(r *http.Request, data map[string]interface{}) error {
	for field, loader := range rel.loaders {
		value, ok := data[field]
		if !ok || value == nil {
			continue
		}

		switch v := value.(type) {
		case []interface{}:
			resolved := make([]interface{}, len(v))
			for i, ref := range v {
				item, err := resolveOne(r, loader, field, ref)
				if err != nil {
					return err
				}
				resolved[i] = item
			}
			data[field] = resolved
		default:
			item, err := resolveOne(r, loader, field, value)
			if err != nil {
				return err
			}
			data[field] = item
		}
	}

	return nil
}

func resolveOne(r *http.Request, loader Loader, field string, value interface{}) (interface{}, error) {
	ref, ok := value.(map[string]interface{})
	if !ok {
		return nil, relatedError(field, "invalid_related")
	}

	id, ok := ref["id"]
	if !ok {
		return nil, relatedError(field, "invalid_related.missing_id")
	}

	item, err := loader(r, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, relatedError(field, "invalid_related.not_found")
	}

	return item, nil
}

func relatedError(field, code string) error {
	return errors.NewAPIError(http.StatusUnprocessableEntity, errors.C(code)).
		WithSourcePointer("/data/" + field)
}

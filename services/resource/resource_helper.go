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

package resource

import (
	"github.com/alien-bunny/hutch/lib/pagination"
	"github.com/alien-bunny/hutch/lib/render"
)

// Formatter formats resources for the HTTP response.
type Formatter interface {
	FormatSingle(Resource, pagination.Meta, *render.Renderer)
	FormatMulti([]interface{}, pagination.Meta, *render.Renderer)
}

var _ Formatter = &DefaultFormatter{}

// DefaultFormatter wraps resources in the data/meta envelope on the common formats.
type DefaultFormatter struct {
}

func (f *DefaultFormatter) FormatSingle(res Resource, meta pagination.Meta, r *render.Renderer) {
	if len(meta) > 0 {
		r.DataMeta(res, meta)
		return
	}

	r.Data(res)
}

func (f *DefaultFormatter) FormatMulti(items []interface{}, meta pagination.Meta, r *render.Renderer) {
	if items == nil {
		items = []interface{}{}
	}

	if len(meta) > 0 {
		r.DataMeta(items, meta)
		return
	}

	r.Data(items)
}

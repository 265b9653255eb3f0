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
	"net/http"

	"github.com/alien-bunny/hutch/lib/event"
	"github.com/alien-bunny/hutch/lib/pagination"
)

const (
	EventBeforeList   = "before-resource-list"
	EventAfterList    = "after-resource-list"
	EventBeforePost   = "before-resource-post"
	EventDuringPost   = "during-resource-post"
	EventAfterPost    = "after-resource-post"
	EventBeforeGet    = "before-resource-get"
	EventAfterGet     = "after-resource-get"
	EventBeforePut    = "before-resource-put"
	EventDuringPut    = "during-resource-put"
	EventAfterPut     = "after-resource-put"
	EventBeforeDelete = "before-resource-delete"
	EventDuringDelete = "during-resource-delete"
	EventAfterDelete  = "after-resource-delete"
)

type resourceEventBase struct {
	r *http.Request
}

func (e resourceEventBase) ErrorStrategy() event.ErrorStrategy {
	return event.ErrorStrategyAggregate
}

func (e resourceEventBase) Request() *http.Request {
	return e.r
}

type BeforeListEvent struct {
	resourceEventBase
}

func (e *BeforeListEvent) Name() string {
	return EventBeforeList
}

func NewBeforeListEvent(r *http.Request) *BeforeListEvent {
	return &BeforeListEvent{
		resourceEventBase{r: r},
	}
}

type AfterListEvent struct {
	resourceEventBase
	items []interface{}
	meta  pagination.Meta
}

func (e *AfterListEvent) Name() string {
	return EventAfterList
}

// Items returns the listed resources.
func (e *AfterListEvent) Items() []interface{} {
	return e.items
}

// Meta returns the pagination metadata of the listing.
func (e *AfterListEvent) Meta() pagination.Meta {
	return e.meta
}

func NewAfterListEvent(r *http.Request, items []interface{}, meta pagination.Meta) *AfterListEvent {
	return &AfterListEvent{
		resourceEventBase: resourceEventBase{r: r},
		items:             items,
		meta:              meta,
	}
}

type CRUDEvent struct {
	resourceEventBase
	resource  Resource
	eventName string
}

func (e *CRUDEvent) Name() string {
	return e.eventName
}

func (e *CRUDEvent) Resource() Resource {
	return e.resource
}

func NewCRUDEvent(eventName string, r *http.Request, resource Resource) *CRUDEvent {
	return &CRUDEvent{
		resourceEventBase: resourceEventBase{r},
		resource:          resource,
		eventName:         eventName,
	}
}

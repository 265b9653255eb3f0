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

package auth

import (
	"net/http"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/query"
)

// Authorizer decides what an authenticated request may see and change.
//
// AuthorizeRequest runs once per request, before anything else. FilterQuery
// narrows list and retrieve queries to the visible rows. The item hooks run
// against the decoded or loaded item before the write is issued.
type Authorizer interface {
	AuthorizeRequest(r *http.Request) error
	FilterQuery(r *http.Request, sel *query.Select) error
	AuthorizeCreate(r *http.Request, item interface{}) error
	AuthorizeUpdate(r *http.Request, item interface{}) error
	AuthorizeDelete(r *http.Request, item interface{}) error
}

// NoOpAuthorizer allows everything.
type NoOpAuthorizer struct{}

var _ Authorizer = NoOpAuthorizer{}

func (NoOpAuthorizer) AuthorizeRequest(r *http.Request) error                  { return nil }
func (NoOpAuthorizer) FilterQuery(r *http.Request, sel *query.Select) error    { return nil }
func (NoOpAuthorizer) AuthorizeCreate(r *http.Request, item interface{}) error { return nil }
func (NoOpAuthorizer) AuthorizeUpdate(r *http.Request, item interface{}) error { return nil }
func (NoOpAuthorizer) AuthorizeDelete(r *http.Request, item interface{}) error { return nil }

// HasAnyCredentialsAuthorizer rejects anonymous requests and allows
// everything else.
type HasAnyCredentialsAuthorizer struct {
	NoOpAuthorizer
}

func (HasAnyCredentialsAuthorizer) AuthorizeRequest(r *http.Request) error {
	if GetCredentials(r) == nil {
		return errors.NewAPIError(http.StatusUnauthorized, errors.C("invalid_credentials.missing"))
	}

	return nil
}

// ModifyAuthorizer applies one decision to every write while leaving reads
// open. Embed it and override the hooks that need finer grain.
type ModifyAuthorizer struct {
	HasAnyCredentialsAuthorizer

	// Modify decides whether the request may change the item. The action is
	// one of "create", "update" and "delete".
	Modify func(r *http.Request, item interface{}, action string) error
}

func (a *ModifyAuthorizer) AuthorizeCreate(r *http.Request, item interface{}) error {
	return a.Modify(r, item, "create")
}

func (a *ModifyAuthorizer) AuthorizeUpdate(r *http.Request, item interface{}) error {
	return a.Modify(r, item, "update")
}

func (a *ModifyAuthorizer) AuthorizeDelete(r *http.Request, item interface{}) error {
	return a.Modify(r, item, "delete")
}

// Forbidden is the canonical write rejection for authorizers.
func Forbidden() error {
	return errors.NewAPIError(http.StatusForbidden, errors.C("forbidden"))
}

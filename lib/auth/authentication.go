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

// Package auth supplies authentication and authorization components for
// resource controllers.
//
// An Authenticator resolves request credentials and stores them on the
// request context. An Authorizer decides, given those credentials, what the
// request may see and change.
package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/util"
)

type credentialsKey struct{}

// SetCredentials returns a shallow copy of r carrying the credentials.
func SetCredentials(r *http.Request, credentials interface{}) *http.Request {
	return util.SetContext(r, credentialsKey{}, credentials)
}

// GetCredentials returns the credentials the authenticator stored on the
// request, or nil when the request is anonymous.
func GetCredentials(r *http.Request) interface{} {
	return r.Context().Value(credentialsKey{})
}

// Authenticator resolves request credentials.
//
// A nil credentials value with a nil error means the request is anonymous;
// rejecting anonymous requests is the authorizer's call, not the
// authenticator's.
type Authenticator interface {
	Authenticate(r *http.Request) (interface{}, error)
}

// NoOpAuthenticator treats every request as anonymous.
type NoOpAuthenticator struct{}

func (NoOpAuthenticator) Authenticate(r *http.Request) (interface{}, error) {
	return nil, nil
}

// HeaderAuthenticator reads a bearer-style token from the Authorization
// header and resolves it with a caller supplied function.
type HeaderAuthenticator struct {
	// Scheme is the expected authorization scheme. Matching is case
	// insensitive. Defaults to "Bearer".
	Scheme string

	// TokenArg optionally names a query parameter consulted when the header
	// is absent.
	TokenArg string

	// Resolve turns the raw token into credentials.
	Resolve func(r *http.Request, token string) (interface{}, error)
}

func (a *HeaderAuthenticator) Authenticate(r *http.Request) (interface{}, error) {
	token, err := a.token(r)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	return a.Resolve(r, token)
}

func (a *HeaderAuthenticator) token(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if a.TokenArg != "" {
			return r.URL.Query().Get(a.TokenArg), nil
		}
		return "", nil
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", errors.NewAPIError(http.StatusUnauthorized, errors.C("invalid_authorization"))
	}

	scheme := a.Scheme
	if scheme == "" {
		scheme = "Bearer"
	}
	if !strings.EqualFold(parts[0], scheme) {
		return "", errors.NewAPIError(http.StatusUnauthorized, errors.C("invalid_authorization.scheme"))
	}

	return parts[1], nil
}

// JWTAuthenticator verifies signed JWT bearer tokens and exposes their claims
// as credentials.
type JWTAuthenticator struct {
	header *HeaderAuthenticator

	keyfunc jwt.Keyfunc
	options []jwt.ParserOption
}

// NewJWTAuthenticator creates an authenticator verifying tokens with keyfunc.
// Options narrow acceptance, typically jwt.WithIssuer and jwt.WithAudience.
func NewJWTAuthenticator(keyfunc jwt.Keyfunc, options ...jwt.ParserOption) *JWTAuthenticator {
	a := &JWTAuthenticator{
		keyfunc: keyfunc,
		options: options,
	}
	a.header = &HeaderAuthenticator{Resolve: a.resolve}

	return a
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (interface{}, error) {
	return a.header.Authenticate(r)
}

func (a *JWTAuthenticator) resolve(r *http.Request, token string) (interface{}, error) {
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, a.keyfunc, a.options...); err != nil {
		return nil, errors.NewAPIError(http.StatusUnauthorized, errors.CD("invalid_token", err.Error()))
	}

	return claims, nil
}

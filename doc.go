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

/*
Package hutch is the main package of the Hutch REST toolkit.

This package contains the glue that assembles the server and the default middlewares.
If you want to get started, you probably want to take a look at Hop and Pet.

The lowest level component is the Server component. It is a wrapper on the top of
httprouter that adds middlewares along with a few useful features. On the server you
can configure Services. Services are logical units of endpoints that share a piece of
schema. On the top of the services, there are resources. Resources are CRUD endpoints
described by a schema, with pluggable pagination, sorting, filtering, authentication
and authorization. The operations can be customized with delegates and event handlers.

Quick and dirty usage:

	func main() {
		hutch.Hop(func(conf *config.Store, s *server.Server) error {
			res := resource.NewController(event.NewDispatcher(), postStorage{}, postSchema).
				List(postStorage{}).
				Post(postStorage{}).
				Get(postStorage{})
			s.RegisterService(res)

			return nil
		}, nil)
	}
*/
package hutch

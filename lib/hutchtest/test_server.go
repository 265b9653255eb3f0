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

package hutchtest

import (
	"time"

	"github.com/alien-bunny/hutch"
	"github.com/alien-bunny/hutch/lib/server"
	"github.com/alien-bunny/hutch/lib/util"
)

// Hop starts a listening test server and returns its base url and a client factory.
func Hop(setup SetupFunc) (string, func() *TestClient) {
	base := NewTestServer().Start(setup)
	return base, func() *TestClient {
		return NewHTTPTestClient(base)
	}
}

// HopMock assembles a test server without listening and returns a client factory
// that talks to its handler directly.
func HopMock(setup SetupFunc) (string, func() *TestClient) {
	s := NewTestServer()
	srv := s.Setup(setup)
	handler := srv.Handler()
	base := "http://" + s.Addr

	return base, func() *TestClient {
		return NewMockTestClient(base, handler)
	}
}

// TestServer is a temporary Server for integration tests.
type TestServer struct {
	Addr string
}

func NewTestServer() *TestServer {
	return &TestServer{
		Addr: util.TestServerAddress(),
	}
}

// Setup sets up a mock server.
func (s *TestServer) Setup(setup SetupFunc) *server.Server {
	logger := GetLogger()
	conf := GetConfig(logger)
	srv, err := hutch.Pet(conf, logger)
	if err != nil {
		panic(err)
	}

	if setup != nil {
		if err := setup(conf, srv); err != nil {
			panic(err)
		}
	}

	return srv
}

// Start starts a Server with test-optimized settings.
func (s *TestServer) Start(setup SetupFunc) string {
	srv := s.Setup(setup)
	go srv.StartHTTP(s.Addr)
	// Give the listener a moment to come up.
	time.Sleep(time.Second)
	return "http://" + s.Addr
}

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

package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	stdlog "log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"

	"github.com/alien-bunny/hutch/lib/config"
	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/log"
	"github.com/alien-bunny/hutch/lib/middleware"
	"github.com/alien-bunny/hutch/lib/util"
)

const paramKey = "hutchparam"

// Service is a group of endpoints that belong together, usually because they
// operate on the same resource.
type Service interface {
	// Name returns the name of this service instance.
	Name() string
	// Register adds the service endpoints to the server.
	Register(*Server) error
}

// ServiceName is a convenience base for Service implementations.
type ServiceName string

func (n ServiceName) Name() string {
	return string(n)
}

// Server wraps an httprouter with a validated middleware stack.
type Server struct {
	Router          *httprouter.Router
	config          *config.Store
	middlewareStack *middleware.Stack
	Logger          log.Logger
	TLSConfig       *tls.Config
	HTTPServer      *http.Server
	services        []Service
}

func NewServer(config *config.Store, logger log.Logger) *Server {
	s := &Server{
		Router:          httprouter.New(),
		config:          config,
		middlewareStack: middleware.NewStack(nil),
		Logger:          logger,
	}
	s.Router.RedirectTrailingSlash = true
	s.Router.RedirectFixedPath = true
	s.Router.HandleMethodNotAllowed = true
	s.Router.HandleOPTIONS = true

	return s
}

// Use adds a middleware to the top of the middleware stack.
func (s *Server) Use(m middleware.Middleware) {
	if merr := s.middlewareStack.Push(m); merr != nil {
		panic(merr)
	}
	s.config.MaybeRegisterSchema(m)
}

// UseF adds a middleware function to the top of the middleware stack.
func (s *Server) UseF(m func(http.Handler) http.Handler) {
	s.Use(middleware.Func(m))
}

// UseTop adds a middleware to the bottom of the middleware stack.
func (s *Server) UseTop(m middleware.Middleware) {
	if merr := s.middlewareStack.Shift(m); merr != nil {
		panic(merr)
	}
	s.config.MaybeRegisterSchema(m)
}

// UseTopF adds a middleware function to the bottom of the middleware stack.
func (s *Server) UseTopF(m func(http.Handler) http.Handler) {
	s.UseTop(middleware.Func(m))
}

// UseHandler runs h before the rest of the chain on every request.
func (s *Server) UseHandler(h http.Handler) {
	s.UseF(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, r)
			next.ServeHTTP(w, r)
		})
	})
}

// Handler assembles the middleware stack around the router.
func (s *Server) Handler() http.Handler {
	return s.middlewareStack.Wrap(s.Router)
}

// Handle registers a handler on the router.
//
// The extra middleware list applies to this handler only. Registration panics
// when a middleware dependency of the handler is not satisfied by the stack.
func (s *Server) Handle(method, path string, handler http.Handler, middlewares ...middleware.Middleware) {
	h := handler

	// callstack cleanup
	if hu, ok := h.(HandlerUnwrapper); ok {
		h = hu.Unwrap()
	}

	stack := s.middlewareStack
	if len(middlewares) > 0 {
		stack = middleware.NewStack(s.middlewareStack)
		for _, m := range middlewares {
			if merr := stack.Push(m); merr != nil {
				panic(merr)
			}
		}

		h = stack.Wrap(h)
	}

	if verr := stack.ValidateHandler(handler); verr != nil {
		panic(verr)
	}

	s.config.MaybeRegisterSchema(handler)

	s.Router.Handle(method, path, func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		h.ServeHTTP(w, util.SetContext(r, paramKey, p))
	})
}

func (s *Server) Head(path string, handler http.Handler, middlewares ...middleware.Middleware) {
	s.Handle(http.MethodHead, path, handler, middlewares...)
}

func (s *Server) Get(path string, handler http.Handler, middlewares ...middleware.Middleware) {
	s.Handle(http.MethodGet, path, handler, middlewares...)
}

func (s *Server) Post(path string, handler http.Handler, middlewares ...middleware.Middleware) {
	s.Handle(http.MethodPost, path, handler, middlewares...)
}

func (s *Server) Put(path string, handler http.Handler, middlewares ...middleware.Middleware) {
	s.Handle(http.MethodPut, path, handler, middlewares...)
}

func (s *Server) Delete(path string, handler http.Handler, middlewares ...middleware.Middleware) {
	s.Handle(http.MethodDelete, path, handler, middlewares...)
}

func (s *Server) Patch(path string, handler http.Handler, middlewares ...middleware.Middleware) {
	s.Handle(http.MethodPatch, path, handler, middlewares...)
}

func (s *Server) Options(path string, handler http.Handler, middlewares ...middleware.Middleware) {
	s.Handle(http.MethodOptions, path, handler, middlewares...)
}

// The F variants take a handler function instead of a handler.

func (s *Server) HeadF(path string, handler http.HandlerFunc, middlewares ...middleware.Middleware) {
	s.Head(path, handler, middlewares...)
}

func (s *Server) GetF(path string, handler http.HandlerFunc, middlewares ...middleware.Middleware) {
	s.Get(path, handler, middlewares...)
}

func (s *Server) PostF(path string, handler http.HandlerFunc, middlewares ...middleware.Middleware) {
	s.Post(path, handler, middlewares...)
}

func (s *Server) PutF(path string, handler http.HandlerFunc, middlewares ...middleware.Middleware) {
	s.Put(path, handler, middlewares...)
}

func (s *Server) DeleteF(path string, handler http.HandlerFunc, middlewares ...middleware.Middleware) {
	s.Delete(path, handler, middlewares...)
}

func (s *Server) PatchF(path string, handler http.HandlerFunc, middlewares ...middleware.Middleware) {
	s.Patch(path, handler, middlewares...)
}

func (s *Server) OptionsF(path string, handler http.HandlerFunc, middlewares ...middleware.Middleware) {
	s.Options(path, handler, middlewares...)
}

// GetParams returns the path parameter values from the request.
func GetParams(r *http.Request) httprouter.Params {
	return r.Context().Value(paramKey).(httprouter.Params)
}

// AddStaticLocalDir serves a local directory under a path prefix.
func (s *Server) AddStaticLocalDir(prefix, path string) *Server {
	s.Router.ServeFiles(prefix+"/*filepath", http.Dir(path))

	return s
}

// AddFile serves a single local file on a path.
func (s *Server) AddFile(path, file string) *Server {
	s.GetF(path, func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, file)
	})

	return s
}

// RegisterService registers the endpoints of a service on the server.
func (s *Server) RegisterService(svc Service) {
	if svc.Name() == "" {
		panic("empty service name")
	}

	s.services = append(s.services, svc)
	s.config.MaybeRegisterSchema(svc)
	if rerr := svc.Register(s); rerr != nil {
		panic(rerr)
	}
}

// StartHTTP starts a plain HTTP listener on addr.
func (s *Server) StartHTTP(addr string) error {
	return s.listenAndServe(addr, "", "", true)
}

// StartHTTPS starts a TLS listener on addr.
//
// certFile and keyFile can be empty when a TLSConfig supplies the certificate,
// for example through EnableAutocert.
func (s *Server) StartHTTPS(addr, certFile, keyFile string) error {
	return s.listenAndServe(addr, certFile, keyFile, false)
}

func (s *Server) listenAndServe(addr, certFile, keyFile string, forceHTTP bool) error {
	s.HTTPServer = &http.Server{
		Addr:      addr,
		Handler:   s.Handler(),
		TLSConfig: s.TLSConfig,
		ErrorLog:  stdlog.New(log.NewStdlibAdapter(s.Logger), "", stdlog.LstdFlags),
	}

	s.Logger.Log("serveraddr", addr)

	if forceHTTP || (certFile == "" || keyFile == "") && s.TLSConfig == nil {
		return s.HTTPServer.ListenAndServe()
	}

	return s.HTTPServer.ListenAndServeTLS(certFile, keyFile)
}

// Shutdown gracefully stops a started server. In-flight requests finish
// before the listener closes.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.HTTPServer == nil {
		return nil
	}

	return s.HTTPServer.Shutdown(ctx)
}

// EnableAutocert configures automatic certificates from an ACME CA.
//
// cacheDir defaults to "private/autocert-cache" when empty. The account key
// is kept next to the certificate cache and reused across restarts.
// hostPolicy must allow at least one host.
func (s *Server) EnableAutocert(caDirEndpoint, cacheDir string, hostPolicy autocert.HostPolicy) error {
	if cacheDir == "" {
		cacheDir = "private/autocert-cache"
	}

	key, err := loadOrCreateAccountKey(filepath.Join(cacheDir, ".server.key"))
	if err != nil {
		return err
	}

	m := autocert.Manager{
		Client: &acme.Client{
			Key:          key,
			DirectoryURL: caDirEndpoint,
		},
		Prompt:     autocert.AcceptTOS,
		HostPolicy: hostPolicy,
		Cache:      autocert.DirCache(cacheDir),
	}

	if s.TLSConfig == nil {
		s.TLSConfig = &tls.Config{}
	}
	s.TLSConfig.GetCertificate = m.GetCertificate

	return nil
}

// EnableLetsEncrypt configures automatic certificates from Let's Encrypt.
//
// See EnableAutocert for cacheDir and hostPolicy.
func (s *Server) EnableLetsEncrypt(cacheDir string, hostPolicy autocert.HostPolicy) error {
	return s.EnableAutocert(acme.LetsEncryptURL, cacheDir, hostPolicy)
}

func loadOrCreateAccountKey(path string) (*rsa.PrivateKey, error) {
	if _, err := os.Stat(path); err == nil {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		key := util.UnmarshalPrivateKey(content)
		if key == nil {
			return nil, errors.New("failed to load server private key")
		}

		return key, nil
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, util.MarshalPrivateKey(key), 0600); err != nil {
		return nil, err
	}

	return key, nil
}

// HandlerUnwrapper exposes the innermost handler of a wrapped handler chain.
type HandlerUnwrapper interface {
	Unwrap() http.Handler
}

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

package hutch

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/alien-bunny/hutch/lib/certcache"
	"github.com/alien-bunny/hutch/lib/config"
	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/log"
	"github.com/alien-bunny/hutch/lib/middleware"
	"github.com/alien-bunny/hutch/lib/server"
	"github.com/alien-bunny/hutch/middlewares/dbmw"
	"github.com/alien-bunny/hutch/middlewares/errormw"
	"github.com/alien-bunny/hutch/middlewares/logmw"
	"github.com/alien-bunny/hutch/middlewares/rendermw"
	"github.com/alien-bunny/hutch/middlewares/requestmw"
	"github.com/alien-bunny/hutch/middlewares/securitymw"
	"golang.org/x/crypto/acme/autocert"
)

const (
	// VERSION is the version of the framework.
	VERSION = "dev"

	// DefaultBodyLimit is the request body limit when the configuration does not set one.
	DefaultBodyLimit = 4 << 20
)

// Config is the configuration schema of the server, registered under the "hutch" key.
type Config struct {
	Host string
	Port string
	DB   struct {
		MaxIdleConn           int
		MaxOpenConn           int
		ConnectionMaxLifetime int64
	}
	Directories struct {
		Assets string
	}
	Log struct {
		Access        bool
		DisplayErrors bool
	}
	Root      bool
	Gzip      bool
	BodyLimit int64
	HTTPS         struct {
		LetsEncrypt bool
		Autocert    string
		CertFile    string
		KeyFile     string
	}
	Timeout int
}

// Hop loads the configuration, assembles a server with Pet and runs it until SIGINT.
//
// The configure callback runs after the default middlewares are in place, but before
// the server starts listening. Most applications register their services there.
func Hop(configure func(conf *config.Store, s *server.Server) error, logger log.Logger) error {
	if logger == nil {
		logger = log.NewDevLogger(os.Stdout)
	}
	conf := config.NewStore(logger)
	conf.RegisterSchema("hutch", reflect.TypeOf(Config{}))
	conf.AddProviders(
		config.NewEnvConfigProvider(),
		config.NewDirectoryConfigProvider(".", true),
	)

	s, err := Pet(conf, logger)
	if err != nil {
		logger.Log("pet", err)
		os.Exit(1)
	}

	if err := configure(conf, s); err != nil {
		logger.Log("server configuration", err)
		os.Exit(1)
	}

	serverConfig := getConfig(conf, logger)

	if serverConfig.HTTPS.LetsEncrypt {
		if err := s.EnableLetsEncrypt("", hostPolicy(serverConfig)); err != nil {
			logger.Log("letsencrypt", err)
			os.Exit(1)
		}
	} else if serverConfig.HTTPS.Autocert != "" {
		if err := s.EnableAutocert(serverConfig.HTTPS.Autocert, "", hostPolicy(serverConfig)); err != nil {
			logger.Log("autocert", err)
			os.Exit(1)
		}
	} else if serverConfig.HTTPS.CertFile != "" && serverConfig.HTTPS.KeyFile != "" {
		s.TLSConfig = &tls.Config{}
		cc := certcache.New(logger, func(host string) (string, string, error) {
			cert, err := os.ReadFile(serverConfig.HTTPS.CertFile)
			if err != nil {
				return "", "", err
			}
			key, err := os.ReadFile(serverConfig.HTTPS.KeyFile)
			if err != nil {
				return "", "", err
			}
			return string(cert), string(key), nil
		})
		s.TLSConfig.GetCertificate = cc.Get
	}

	if s.TLSConfig != nil {
		s.TLSConfig.PreferServerCipherSuites = true
		s.TLSConfig.CurvePreferences = []tls.CurveID{
			tls.CurveP256,
			tls.X25519,
		}
		s.TLSConfig.MinVersion = tls.VersionTLS12
		s.TLSConfig.CipherSuites = []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		}
	}

	stopch := make(chan os.Signal, 1)
	signal.Notify(stopch, os.Interrupt)

	addr := serverConfig.Host + ":" + serverConfig.Port
	go func() {
		if err := s.StartHTTPS(addr, "", ""); err != nil && err != http.ErrServerClosed {
			logger.Log("startserver", err)
			os.Exit(1)
		}
	}()
	<-stopch

	logger.Log("graceful", "received sigint")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(serverConfig.Timeout)*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Log("graceful", "shutting down", "error", err)
	} else {
		logger.Log("graceful", "stopped")
	}

	return nil
}

func hostPolicy(serverConfig Config) autocert.HostPolicy {
	return func(ctx context.Context, host string) error {
		if serverConfig.Host != "" && host != serverConfig.Host {
			return errors.New("host not configured")
		}

		return nil
	}
}

// Pet creates a server with the default middleware stack.
//
// The stack is request id, access log, gzip, request logger, error handler,
// renderer, body length limit and the database connection. Resource services
// assume all of these are present.
func Pet(conf *config.Store, logger log.Logger) (*server.Server, error) {
	conf.RegisterSchema("hutch", reflect.TypeOf(Config{}))

	serverConfig := getConfig(conf, logger)

	s := server.NewServer(conf, logger)
	s.Router.NotFound = simpleErrorPage(http.StatusNotFound)
	s.Router.MethodNotAllowed = simpleErrorPage(http.StatusMethodNotAllowed)

	if hostname, _ := os.Hostname(); hostname != "" {
		s.Logger = log.With(s.Logger, "hostname", hostname)
	}

	s.Use(requestmw.NewRequestIDMiddleware())

	if serverConfig.Log.Access {
		s.Use(requestmw.NewRequestLoggerMiddleware(s.Logger))
	}

	if serverConfig.Gzip {
		handler, err := gziphandler.GzipHandlerWithOpts(gziphandler.CompressionLevel(9))
		if err != nil {
			return nil, err
		}
		s.Use(middleware.Func(handler))
	}

	s.UseHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Set("X-Powered-By", "Hutch "+VERSION)
	}))

	s.Use(logmw.New(s.Logger))

	s.Use(errormw.New(serverConfig.Log.DisplayErrors))

	s.Use(rendermw.New())

	bodyLimit := serverConfig.BodyLimit
	if bodyLimit == 0 {
		bodyLimit = DefaultBodyLimit
	}
	s.Use(middleware.Func(securitymw.LengthLimitMiddleware(bodyLimit)))

	dbMiddleware := dbmw.NewMiddleware(conf)
	dbMiddleware.MaxIdleConnections = serverConfig.DB.MaxIdleConn
	dbMiddleware.MaxOpenConnections = serverConfig.DB.MaxOpenConn
	dbMiddleware.ConnectionMaxLifetime = time.Duration(serverConfig.DB.ConnectionMaxLifetime) * time.Second
	s.Use(dbMiddleware)

	if serverConfig.Directories.Assets != "-" {
		if serverConfig.Directories.Assets == "" {
			serverConfig.Directories.Assets = "assets"
		}

		s.AddStaticLocalDir("/assets", serverConfig.Directories.Assets)

		if serverConfig.Root {
			s.AddFile("/", filepath.Join(serverConfig.Directories.Assets, "index.html"))
		}
	}

	AddPing(s)

	return s, nil
}

// AddPing registers a trivial health check endpoint on the server.
func AddPing(s *server.Server) {
	s.GetF("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		Render(r).
			JSON(map[string]string{"ping": "pong"}).
			Text("pong")
	})
}

func getConfig(conf *config.Store, logger log.Logger) Config {
	serverConfigInterface, err := conf.Get("hutch")
	if err != nil {
		logger.Log("configuration load", err)
		os.Exit(1)
	}
	if serverConfigInterface == nil {
		return Config{}
	}
	return serverConfigInterface.(Config)
}

var defaultDeps = []string{
	requestmw.MiddlewareDependencyRequestID,
	logmw.MiddlewareDependencyLog,
	errormw.MiddlewareDependencyError,
	rendermw.MiddlewareDependencyRender,
	dbmw.MiddlewareDependencyDB,
}

type DefaultDependencies struct{}

func (d DefaultDependencies) Dependencies() []string {
	return defaultDeps
}

// WrapHandler adds all middlewares from Pet as a dependency to the given handler.
func WrapHandler(h http.Handler, extradeps ...string) http.Handler {
	return middleware.WrapHandler(h, append(defaultDeps, extradeps...)...)
}

// WrapHandlerFunc wraps a handler func with WrapHandler.
func WrapHandlerFunc(f func(http.ResponseWriter, *http.Request), extradeps ...string) http.Handler {
	return WrapHandler(http.HandlerFunc(f), extradeps...)
}

func simpleErrorPage(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pd := errormw.NewErrorPageData(code, r)
		Render(r).SetCode(code).HTML(errormw.ErrorPage, pd)
	})
}

// Pager is a function that implements pagination for listing endpoints.
//
// It extracts the "page" query from the url, and returns the offset to that given page.
// The parameter limit specifies the number of elements on a given page.
func Pager(r *http.Request, limit int) int {
	start := 0

	if page := r.URL.Query().Get("page"); page != "" {
		pagenum, err := strconv.Atoi(page)
		MaybeFail(http.StatusBadRequest, err)
		start = (pagenum - 1) * limit
	}

	return start
}

// RedirectHTTPSServer sets up and starts a http server that redirects all requests to https.
func RedirectHTTPSServer(logger log.Logger, addr string) error {
	return (&http.Server{
		Addr:         addr,
		ReadTimeout:  4 * time.Second,
		WriteTimeout: 4 * time.Second,
		IdleTimeout:  128 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Connection", "close")

			newUrl := "https://" + r.Host + r.URL.String()

			log.Debug(logger).Log(
				"component", "redirect server",
				"from", r.URL.String(),
				"to", newUrl,
			)

			http.Redirect(w, r, newUrl, http.StatusMovedPermanently)
		}),
	}).ListenAndServe()
}

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

// Package certcache caches parsed TLS certificates per server name.
package certcache

import (
	"crypto/tls"
	"sync"

	"github.com/alien-bunny/hutch/lib/log"
)

// Loader fetches the PEM encoded certificate and key for a host.
type Loader func(host string) (cert string, key string, err error)

// CertCache resolves TLS certificates through a loader and keeps the parsed
// key pairs in memory. Get is safe for the tls.Config.GetCertificate hook.
type CertCache struct {
	mtx    sync.RWMutex
	certs  map[string]*tls.Certificate
	logger log.Logger
	load   Loader
}

func New(logger log.Logger, loader Loader) *CertCache {
	c := &CertCache{
		logger: logger,
		load:   loader,
	}
	c.Clear()

	return c
}

// Clear drops all cached certificates. Certificates get reloaded on the next
// handshake for their host.
func (c *CertCache) Clear() {
	c.mtx.Lock()
	c.certs = make(map[string]*tls.Certificate)
	c.mtx.Unlock()

	log.Debug(c.logger).Log("component", "certcache", "event", "clear")
}

// Get returns the certificate for the handshake's server name.
func (c *CertCache) Get(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	name := hello.ServerName

	c.mtx.RLock()
	cert := c.certs[name]
	c.mtx.RUnlock()

	if cert != nil {
		log.Debug(c.logger).Log("component", "certcache", "host", name, "cached", "true")
		return cert, nil
	}

	pemCert, pemKey, err := c.load(name)
	if err != nil {
		return nil, err
	}

	kp, err := tls.X509KeyPair([]byte(pemCert), []byte(pemKey))
	if err != nil {
		return nil, err
	}

	c.mtx.Lock()
	c.certs[name] = &kp
	c.mtx.Unlock()

	log.Debug(c.logger).Log("component", "certcache", "host", name, "cached", "false")

	return &kp, nil
}

// Copyright 2025 The flowkv Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package adminserver is the process's HTTP side channel: Prometheus
// scraping, pprof profiles, and two operator actions (log level, config
// reload) that sit alongside the KV listener rather than inside it.
package adminserver

import (
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowkv/flowkv/confengine"
	"github.com/flowkv/flowkv/internal/sigs"
	"github.com/flowkv/flowkv/logger"
)

// Config mirrors the `[adminserver]` TOML table.
type Config struct {
	Enabled bool          `config:"enabled"`
	Address string        `config:"address"`
	Pprof   bool          `config:"pprof"`
	Timeout time.Duration `config:"timeout"`
}

// Server is a small router carrying /metrics, optionally /debug/pprof/*,
// and the two operator routes described in the package doc.
type Server struct {
	config Config
	router *mux.Router
	server *http.Server
}

// New builds a Server from the `adminserver` section of conf. Returns a nil
// Server (and nil error) when the section disables it; callers must check
// before calling ListenAndServe.
func New(conf *confengine.Config) (*Server, error) {
	var config Config
	if err := conf.UnpackChild("adminserver", &config); err != nil {
		return nil, err
	}
	if !config.Enabled {
		return nil, nil
	}

	router := mux.NewRouter()
	s := &Server{
		config: config,
		router: router,
		server: &http.Server{
			Handler:      router,
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
		},
	}

	s.RegisterGetRoute("/metrics", promhttp.Handler().ServeHTTP)
	s.registerOperatorRoutes()
	if config.Pprof {
		s.registerPprofRoutes()
	}
	return s, nil
}

// ListenAndServe blocks serving the admin routes until the listener fails.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	logger.Infof("adminserver: listening on %s", s.config.Address)
	return s.server.Serve(l)
}

// RegisterGetRoute exposes a GET handler at path, for callers (e.g. kvserver)
// that want to contribute their own diagnostic endpoints.
func (s *Server) RegisterGetRoute(path string, f http.HandlerFunc) {
	s.router.Methods(http.MethodGet).Path(path).HandlerFunc(f)
}

// RegisterPostRoute exposes a POST handler at path.
func (s *Server) RegisterPostRoute(path string, f http.HandlerFunc) {
	s.router.Methods(http.MethodPost).Path(path).HandlerFunc(f)
}

func (s *Server) registerPprofRoutes() {
	s.RegisterGetRoute("/debug/pprof/cmdline", pprof.Cmdline)
	s.RegisterGetRoute("/debug/pprof/profile", pprof.Profile)
	s.RegisterGetRoute("/debug/pprof/symbol", pprof.Symbol)
	s.RegisterGetRoute("/debug/pprof/trace", pprof.Trace)
	s.RegisterGetRoute("/debug/pprof/{other}", pprof.Index)
}

// registerOperatorRoutes wires /-/logger (set the log level) and /-/reload
// (trigger the same SIGHUP path `kill -HUP` would).
func (s *Server) registerOperatorRoutes() {
	s.RegisterPostRoute("/-/logger", func(w http.ResponseWriter, r *http.Request) {
		level := r.URL.Query().Get("level")
		if level == "" {
			http.Error(w, "missing ?level=debug|info|warn|error", http.StatusBadRequest)
			return
		}
		logger.SetLoggerLevel(level)
		w.WriteHeader(http.StatusOK)
	})

	s.RegisterPostRoute("/-/reload", func(w http.ResponseWriter, r *http.Request) {
		if err := sigs.SelfReload(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}

// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api assembles the REST surface of the node.
package api

import (
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/cstake/cstake/api/events"
	"github.com/cstake/cstake/api/restutil"
	"github.com/cstake/cstake/api/staking"
	"github.com/cstake/cstake/api/subscriptions"
	"github.com/cstake/cstake/log"
	"github.com/cstake/cstake/node"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins  string
	PprofOn         bool
	EnableReqLogger bool
	EnableMetrics   bool
	LogsLimit       uint64
}

// New return api router. The returned closer terminates hijacked websocket
// connections, which outlive server shutdown otherwise.
func New(node *node.Node, opts Options) (http.HandlerFunc, func()) {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	router.Path("/").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		restutil.WriteJSON(w, restutil.M{"name": "cstake"})
	})

	staking.New(node).
		Mount(router, "/staking")
	events.New(node, opts.LogsLimit).
		Mount(router, "/events")
	subs := subscriptions.New(node, origins)
	subs.Mount(router, "/subscriptions")

	if opts.PprofOn {
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	if opts.EnableMetrics {
		router.Use(metricsMiddleware)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	if opts.EnableReqLogger {
		handler = requestLoggerHandler(handler, logger)
	}

	return handler.ServeHTTP, subs.Close
}

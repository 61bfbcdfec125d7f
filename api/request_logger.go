// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"time"

	"github.com/pborman/uuid"

	"github.com/cstake/cstake/log"
)

// requestLoggerHandler tags every request with an id and logs it on the way
// in and out.
func requestLoggerHandler(handler http.Handler, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New()
		}
		w.Header().Set("X-Request-ID", requestID)

		startTime := time.Now()
		logger.Info("incoming request",
			"id", requestID,
			"method", r.Method,
			"uri", r.URL.String(),
			"remote", r.RemoteAddr,
		)

		mrw := newMetricsResponseWriter(w)
		handler.ServeHTTP(mrw, r)

		logger.Info("request handled",
			"id", requestID,
			"code", mrw.statusCode,
			"duration", time.Since(startTime),
		)
	})
}

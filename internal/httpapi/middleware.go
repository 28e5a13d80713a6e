// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// rateLimit builds an IP-keyed sliding-window limiter, rps requests per
// second mapped onto a one-minute window to match httprate's counter
// granularity.
func rateLimit(rps int) func(http.Handler) http.Handler {
	window := time.Minute
	limit := rps * 60

	limiter := httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/problem+json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"system/rate_limited","title":"Too Many Requests","status":429,"code":"RATE_LIMITED"}`))
		}),
	)
	return limiter
}

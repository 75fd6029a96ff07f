package main

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/wrale/smarthome-transit-sensor/cmd/smarthome-sensor/handlers/common"
)

// rateLimit wraps a route in one token bucket shared by all callers.
// A non-positive rate disables limiting.
func rateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}

	return func(next http.Handler) http.Handler {
		lim := rate.NewLimiter(rate.Limit(perSecond), burst)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				w.Header().Set("Retry-After", "1")
				common.WriteText(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

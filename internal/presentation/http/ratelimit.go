package httppresentation

import (
	"net/http"

	"golang.org/x/time/rate"
)

const msgTooManyRequests = "Too many requests"

// withRateLimit sheds load with a 429 envelope once the shared token bucket
// is empty. A nil limiter disables limiting.
func withRateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, failureResponse{Success: false, Error: msgTooManyRequests})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

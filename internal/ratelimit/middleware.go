package ratelimit

import (
	"net"
	"net/http"
	"strconv"

	"github.com/kuitang/yanote/internal/errs"
	"github.com/kuitang/yanote/internal/obs"
)

// RetryAfterSeconds is sent in Retry-After on rejected requests.
const RetryAfterSeconds = 1

var errTooManyRequests = errs.New(errs.RateLimited, "Too Many Requests")

// RateLimitMiddleware limits members by the ID userID returns and
// everyone else by client IP. Every response carries
// X-RateLimit-Remaining; rejected ones also get Retry-After.
func RateLimitMiddleware(limiter *RateLimiter, userID func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, tier := clientKey(r, userID)
			bucket := limiter.GetLimiter(key, tier)

			if !bucket.Allow() {
				reject(w, r, tier)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(int(bucket.Tokens()), 0)))
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request, userID func(r *http.Request) string) (string, Tier) {
	if id := userID(r); id != "" {
		return id, Member
	}
	return ClientIP(r), Anonymous
}

func reject(w http.ResponseWriter, r *http.Request, tier Tier) {
	obs.RateLimitedTotal.WithLabelValues(tier.String()).Inc()
	obs.From(r.Context()).With("pkg", "ratelimit").Info("rate_limited", "tier", tier.String(), "path", r.URL.Path)

	h := w.Header()
	h.Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
	h.Set("X-RateLimit-Remaining", "0")
	http.Error(w, errs.MessageOf(errTooManyRequests), errs.HTTPStatus(errs.CodeOf(errTooManyRequests)))
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

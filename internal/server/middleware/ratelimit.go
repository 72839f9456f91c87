package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wagerhouse/bookd/internal/domain"
)

// maxPeekBytes caps how much request body the throttle reads while
// sniffing the bettor address. Bet bodies are tiny; anything larger is
// left for the handler's decoder to reject.
const maxPeekBytes = 64 << 10

// BetThrottle returns middleware that applies the sliding-window rate
// limit to bet placement, keyed by the bettor address in the request
// body so one bettor cannot burst through multiple proxies. Requests
// without a parseable address fall back to the client IP.
func BetThrottle(limiter domain.RateLimiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:bets:" + throttleKey(r)

			allowed, err := limiter.Allow(r.Context(), key, limit, window)
			if err != nil {
				// On rate-limiter errors, fail open to avoid blocking
				// legitimate traffic. The error is not surfaced to the client.
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// throttleKey peeks at the JSON body for the bettor address and restores
// the body for the handler. Falls back to the client IP when no valid
// address is present.
func throttleKey(r *http.Request) string {
	if r.Body == nil {
		return "ip:" + extractClientIP(r)
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(buf))
	if err != nil {
		return "ip:" + extractClientIP(r)
	}

	var peek struct {
		Bettor string `json:"bettor"`
	}
	if json.Unmarshal(buf, &peek) != nil || !common.IsHexAddress(peek.Bettor) {
		return "ip:" + extractClientIP(r)
	}
	return "bettor:" + strings.ToLower(common.HexToAddress(peek.Bettor).Hex())
}

// extractClientIP attempts to determine the real client IP from standard
// proxy headers, falling back to the direct remote address.
func extractClientIP(r *http.Request) string {
	// Check X-Forwarded-For first (may contain multiple IPs).
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}

	// Check X-Real-IP.
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

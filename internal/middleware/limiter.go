package middleware

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

func internalServiceKey() string {
	return os.Getenv("INTERNAL_SECRET_KEY")
}

// Rate Limit Tiers
const (
	// Order submission (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	// Printer polling loops run every few seconds per device
	limitPolling = rate.Limit(30)
	burstPolling = 60

	// Internal / trusted services
	limitInternal = rate.Limit(100)
	burstInternal = 200
)

// visitor holds the rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	visitors = make(map[string]*visitor)
	mu       sync.Mutex
)

// init starts the background cleanup routine.
func init() {
	go cleanupVisitors()
}

// getVisitor retrieves or creates a rate limiter for the given identity key.
func getVisitor(key string, r rate.Limit, b int) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	v, exists := visitors[key]
	if !exists {
		limiter := rate.NewLimiter(r, b)
		visitors[key] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupVisitors removes old entries from the visitors map to prevent memory leaks.
func cleanupVisitors() {
	for {
		time.Sleep(time.Minute)

		mu.Lock()
		for key, v := range visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(visitors, key)
			}
		}
		mu.Unlock()
	}
}

// RateLimitMiddleware checks if the request is allowed by the rate limiter.
func RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, burst, tier := resolveRateTier(r)

		// Identity: printer hardware address on the polling endpoints, then
		// client device ID, then remote IP for anonymous requests.
		var identity string
		if mac := printerFromPath(r.URL.Path); mac != "" {
			identity = "printer:" + mac
		} else if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" {
			identity = "device:" + deviceID
		} else {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			identity = "ip:" + ip
		}

		// The same identity gets separate quotas per tier.
		key := fmt.Sprintf("%s:%s", identity, tier)

		limiter := getVisitor(key, limit, burst)
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// resolveRateTier determines which rate limit policy applies to the request.
func resolveRateTier(r *http.Request) (rate.Limit, int, string) {
	// Trusted backend-to-backend callers identify with a shared header.
	if key := r.Header.Get("X-Service-Auth"); key != "" && key == internalServiceKey() {
		return limitInternal, burstInternal, "internal"
	}

	// Printer firmware polls aggressively; give it room.
	if strings.HasPrefix(r.URL.Path, "/api/printer/") {
		return limitPolling, burstPolling, "polling"
	}

	return limitGeneral, burstGeneral, "general"
}

// printerFromPath extracts the MAC segment from /api/printer/{mac}/... paths.
func printerFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/printer/")
	if !ok {
		return ""
	}
	mac, _, _ := strings.Cut(rest, "/")
	return mac
}
